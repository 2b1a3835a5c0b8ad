// Package apiclient talks to a running dentaldir server so the CLI can poll
// job progress without opening the database itself.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dentaldir/internal/api"
	"dentaldir/internal/store"
)

// ErrAPIUnavailable reports that no server address is configured.
var ErrAPIUnavailable = errors.New("dentaldir API unavailable")

// Client is a small JSON client for the read endpoints.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// New builds a client for bind ("host:port" or a URL). An empty bind returns
// a nil client.
func New(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		http:  &http.Client{Timeout: 30 * time.Second},
		token: strings.TrimSpace(token),
	}, nil
}

// Job fetches one job with its counters.
func (c *Client) Job(ctx context.Context, id string) (api.Job, error) {
	var resp api.JobResponse
	if err := c.get(ctx, "/api/jobs/"+url.PathEscape(id), &resp); err != nil {
		return api.Job{}, err
	}
	return resp.Job, nil
}

// Watch polls the job every interval, calling fn with each snapshot whose
// processed count changed, until the job reaches a terminal status or ctx
// ends.
func (c *Client) Watch(ctx context.Context, id string, interval time.Duration, fn func(api.Job)) (api.Job, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	lastProcessed := -1
	for {
		job, err := c.Job(ctx, id)
		if err != nil {
			return api.Job{}, err
		}
		if job.Progress.Processed != lastProcessed || isTerminal(job.Status) {
			lastProcessed = job.Progress.Processed
			if fn != nil {
				fn(job)
			}
		}
		if isTerminal(job.Status) {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func isTerminal(status string) bool {
	s, ok := store.ParseJobStatus(status)
	return ok && s.IsTerminal()
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("GET %s returned status %d: %s", path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("GET %s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// IsAPIUnavailable reports whether err means the server could not be reached.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
