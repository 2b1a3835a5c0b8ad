package daemonrun_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"dentaldir/internal/api"
	"dentaldir/internal/config"
	"dentaldir/internal/daemonrun"
	"dentaldir/internal/store"
	"dentaldir/internal/testsupport"
)

type echoAI struct{}

func (echoAI) CompleteJSON(context.Context, string, string) (string, error) {
	return `{"h1": "Best Dentists in Al Nahda, Sharjah"}`, nil
}

func TestOpenWiresSQLiteRuntime(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	rt, err := daemonrun.Open(ctx, cfg, nil, daemonrun.WithCompleter(echoAI{}))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rt.Close()

	if _, ok := rt.Repo.(*store.Store); !ok {
		t.Fatalf("expected sqlite store, got %T", rt.Repo)
	}
	if rt.Redis != nil {
		t.Fatal("redis should be disabled without a url")
	}
	testsupport.SeedPage(t, rt.Repo, "p1", "sharjah/al-nahda/braces")

	threshold := 0
	result, err := rt.Service.RunJob(ctx, api.JobRequest{
		PageIDs:          []string{"p1"},
		Config:           store.RegenerationConfig{RegenerateH1: true},
		ApplyMode:        config.ApplyModeAuto,
		QualityThreshold: &threshold,
	})
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if result.Successful != 1 || result.JobID == "" {
		t.Fatalf("unexpected result %+v", result)
	}
	page, err := rt.Repo.GetPage(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if page.H1 != "Best Dentists in Al Nahda, Sharjah" {
		t.Fatalf("h1 not applied: %q", page.H1)
	}
}

func TestOpenUsesConfiguredLLMEndpoint(t *testing.T) {
	var calls atomic.Int32
	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected auth header %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{
				"content": `{"meta_description": "Compare braces clinics in Al Nahda, Sharjah."}`,
			}}},
		})
	}))
	defer llmServer.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithLLMServer(llmServer.URL))
	ctx := context.Background()
	rt, err := daemonrun.Open(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rt.Close()
	testsupport.SeedPage(t, rt.Repo, "p1", "sharjah/al-nahda/braces")

	result, err := rt.Service.RunJob(ctx, api.JobRequest{
		PageIDs:   []string{"p1"},
		Config:    store.RegenerationConfig{RegenerateMetaDescription: true},
		ApplyMode: config.ApplyModePreview,
	})
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if result.Successful != 1 || calls.Load() != 1 {
		t.Fatalf("unexpected result %+v after %d calls", result, calls.Load())
	}
	items, err := rt.Service.Items(ctx, result.JobID)
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 1 || items[0].ChangesApplied || items[0].UsedFallback {
		t.Fatalf("preview item should be generated but not applied: %+v", items)
	}
}

func TestOpenRepositoryRejectsMissingPostgresURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Storage.Driver = config.StorageDriverPostgres
	cfg.Storage.DatabaseURL = ""
	if _, err := daemonrun.OpenRepository(context.Background(), cfg); err == nil {
		t.Fatal("expected error for empty database url")
	}
}

func TestRunServesUntilCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- daemonrun.Run(ctx, cfg, daemonrun.Options{Bind: addr, LogLevel: "error"})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("health status %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became ready: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if _, err := os.Stat(filepath.Join(testsupport.BaseDir(cfg), "logs", "dentaldir.log")); err != nil {
		t.Fatalf("expected server log file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, "dentaldir.pid")); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed on shutdown, got %v", err)
	}
}
