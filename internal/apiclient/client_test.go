package apiclient_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"dentaldir/internal/api"
	"dentaldir/internal/apiclient"
)

func TestNewEmptyBind(t *testing.T) {
	client, err := apiclient.New("", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if client != nil {
		t.Fatal("expected nil client for empty bind")
	}
	if _, err := client.Job(context.Background(), "x"); !apiclient.IsAPIUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestWatchPollsUntilTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/jobs/job-1" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header %q", got)
		}
		n := calls.Add(1)
		status := "running"
		if n >= 3 {
			status = "completed"
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"job":{"id":"job-1","status":%q,"progress":{"total":3,"processed":%d}}}`, status, n)
	}))
	defer srv.Close()

	client, err := apiclient.New(srv.URL, "tok")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var seen []api.Job
	final, err := client.Watch(context.Background(), "job-1", time.Millisecond, func(j api.Job) {
		seen = append(seen, j)
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if final.Status != "completed" || len(seen) != 3 {
		t.Fatalf("unexpected final %+v after %d snapshots", final, len(seen))
	}
}

func TestJobSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"job nope not found"}`))
	}))
	defer srv.Close()

	client, _ := apiclient.New(srv.URL, "")
	_, err := client.Job(context.Background(), "nope")
	if err == nil || !strings.Contains(err.Error(), "job nope not found") {
		t.Fatalf("expected API error message, got %v", err)
	}
}

func TestIsAPIUnavailableForRefusedConnection(t *testing.T) {
	client, _ := apiclient.New("127.0.0.1:1", "")
	_, err := client.Job(context.Background(), "x")
	if !apiclient.IsAPIUnavailable(err) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if apiclient.IsAPIUnavailable(errors.New("other")) {
		t.Fatal("plain errors are not unavailability")
	}
}
