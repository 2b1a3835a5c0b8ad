package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"dentaldir/internal/config"
	"dentaldir/internal/logging"
	"dentaldir/internal/ratelimit"
)

const serviceName = "dentaldir"

// Server serves Service over HTTP.
type Server struct {
	bind    string
	token   string
	svc     *Service
	limiter ratelimit.Limiter
	logger  *slog.Logger
	engine  *gin.Engine

	listener net.Listener
	server   *http.Server
}

// NewServer builds the router. A nil limiter disables rate limiting and an
// empty api_token disables authentication.
func NewServer(cfg *config.Config, svc *Service, limiter ratelimit.Limiter, logger *slog.Logger) *Server {
	s := &Server{
		bind:    strings.TrimSpace(cfg.Paths.APIBind),
		token:   strings.TrimSpace(cfg.Paths.APIToken),
		svc:     svc,
		limiter: limiter,
		logger:  logging.NewComponentLogger(logger, "api-server"),
	}
	s.engine = s.routes()
	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(requestID(), s.requestLogger(), s.recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", s.handleHealth)

	guarded := router.Group("/", bearerAuth(s.token), s.rateLimit())
	guarded.POST("/functions/regenerate", s.handleFunction)

	apiGroup := guarded.Group("/api")
	{
		apiGroup.GET("/jobs", s.handleJobs)
		apiGroup.GET("/jobs/:id", s.handleJob)
		apiGroup.GET("/jobs/:id/items", s.handleJobItems)
		apiGroup.GET("/pages/:id/versions", s.handleVersions)
		apiGroup.GET("/search", s.handleSearch)
	}

	router.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "route not found")
	})
	return router
}

// Handler exposes the router for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured bind address and serves until ctx is
// cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s.bind == "" {
		return fmt.Errorf("api listen: bind address is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.token != ""),
		logging.Bool("rate_limited", s.limiter != nil),
	)
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting up to five seconds for in-flight
// requests.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{Status: "OK", Service: serviceName, Storage: "ok"}
	if err := s.svc.Ping(c.Request.Context()); err != nil {
		resp.Status = "degraded"
		resp.Storage = "unreachable"
		resp.Error = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleFunction(c *gin.Context) {
	var req FunctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	ctx := c.Request.Context()

	switch strings.TrimSpace(req.Action) {
	case ActionProcessJob:
		result, err := s.svc.RunJob(ctx, req.JobRequest)
		if err != nil {
			s.fail(c, "process_job", err)
			return
		}
		c.JSON(http.StatusOK, ProcessJobResponse{
			Success:    true,
			JobID:      result.JobID,
			Status:     string(result.Status),
			Processed:  result.Processed,
			Successful: result.Successful,
			Failed:     result.Failed,
			Errors:     result.Errors,
		})
	case ActionRollbackPage:
		version, err := s.svc.Rollback(ctx, req.VersionID)
		if err != nil {
			s.fail(c, "rollback_page", err)
			return
		}
		c.JSON(http.StatusOK, RollbackResponse{
			Success: true,
			Message: fmt.Sprintf("Page %s restored to the content before version %s", version.PageID, version.ID),
		})
	default:
		writeError(c, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
	}
}

func (s *Server) handleJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	jobs, err := s.svc.Jobs(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, "list_jobs", err)
		return
	}
	c.JSON(http.StatusOK, JobListResponse{Jobs: jobs})
}

func (s *Server) handleJob(c *gin.Context) {
	job, err := s.svc.Job(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, "get_job", err)
		return
	}
	c.JSON(http.StatusOK, JobResponse{Job: *job})
}

func (s *Server) handleJobItems(c *gin.Context) {
	jobID := c.Param("id")
	items, err := s.svc.Items(c.Request.Context(), jobID)
	if err != nil {
		s.fail(c, "list_items", err)
		return
	}
	c.JSON(http.StatusOK, JobItemsResponse{JobID: jobID, Items: items})
}

func (s *Server) handleVersions(c *gin.Context) {
	pageID := c.Param("id")
	versions, err := s.svc.Versions(c.Request.Context(), pageID)
	if err != nil {
		s.fail(c, "list_versions", err)
		return
	}
	c.JSON(http.StatusOK, VersionsResponse{PageID: pageID, Versions: versions})
}

func (s *Server) handleSearch(c *gin.Context) {
	kind := c.Query("kind")
	query := c.Query("q")
	results, err := s.svc.Search(c.Request.Context(), kind, query)
	if err != nil {
		s.fail(c, "search", err)
		return
	}
	c.JSON(http.StatusOK, SearchResponse{Kind: kind, Query: query, Results: results})
}

// fail logs err with the request's correlation id and answers with the
// mapped status.
func (s *Server) fail(c *gin.Context, op string, err error) {
	status := StatusFor(err)
	logger := logging.WithContext(c.Request.Context(), s.logger)
	attrs := []logging.Attr{
		logging.String("operation", op),
		logging.Int("status", status),
		logging.Error(err),
		logging.ErrorKind(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", logging.Args(attrs...)...)
	} else {
		logger.Warn("request rejected", logging.Args(attrs...)...)
	}
	writeError(c, status, err.Error())
}

func writeError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message})
}

