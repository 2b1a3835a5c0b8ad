package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dentaldir/internal/api"
	"dentaldir/internal/regen"
)

const titlePayload = `{"meta_title": "Top Rated Dentists in Dubai Marina, Dubai"}`

func importSamplePages(t *testing.T, env *cliTestEnv) {
	t.Helper()
	path := writePagesFile(t, env, []map[string]any{
		{"id": "p1", "slug": "dubai/dubai-marina/teeth-whitening", "h1": "Teeth whitening", "meta_title": "Old title"},
		{"id": "p2", "slug": "sharjah/al-nahda", "h1": "Dentists in Al Nahda", "meta_title": "Old title"},
	})
	out, _, err := runCLI(t, env, "page", "import", path)
	if err != nil {
		t.Fatalf("page import: %v", err)
	}
	requireContains(t, out, "Imported 2 page(s)")
}

func TestJobRunShowItemsAndRollback(t *testing.T) {
	env := setupCLITestEnv(t, titlePayload)
	importSamplePages(t, env)

	out, _, err := runCLI(t, env, "--json", "job", "run",
		"--job-id", "cli-job", "--pages", "p1,missing", "--fields", "meta_title", "--apply-mode", "auto_apply")
	if err != nil {
		t.Fatalf("job run: %v", err)
	}
	var result regen.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode result %q: %v", out, err)
	}
	if result.Successful != 1 || result.Failed != 1 || len(result.Errors) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if env.llmCalls.Load() != 1 {
		t.Fatalf("expected one AI call, got %d", env.llmCalls.Load())
	}

	out, _, err = runCLI(t, env, "job", "show", "cli-job")
	if err != nil {
		t.Fatalf("job show: %v", err)
	}
	requireContains(t, out, "completed")
	requireContains(t, out, "Page missing: page not found")

	out, _, err = runCLI(t, env, "job", "items", "cli-job")
	if err != nil {
		t.Fatalf("job items: %v", err)
	}
	requireContains(t, out, "p1")
	requireContains(t, out, "page not found")

	out, _, err = runCLI(t, env, "--json", "page", "history", "p1")
	if err != nil {
		t.Fatalf("page history: %v", err)
	}
	var history api.VersionsResponse
	if err := json.Unmarshal([]byte(out), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history.Versions) != 1 || history.Versions[0].ContentAfter.MetaTitle != "Top Rated Dentists in Dubai Marina, Dubai" {
		t.Fatalf("unexpected history %+v", history)
	}

	out, _, err = runCLI(t, env, "page", "rollback", history.Versions[0].ID)
	if err != nil {
		t.Fatalf("page rollback: %v", err)
	}
	requireContains(t, out, "restored")

	out, _, err = runCLI(t, env, "job", "list")
	if err != nil {
		t.Fatalf("job list: %v", err)
	}
	requireContains(t, out, "cli-job")
}

func TestJobRunRejectsUnknownField(t *testing.T) {
	env := setupCLITestEnv(t, titlePayload)
	if _, _, err := runCLI(t, env, "job", "run", "--pages", "p1", "--fields", "colour"); err == nil {
		t.Fatal("expected error for unknown field")
	}
	if _, _, err := runCLI(t, env, "job", "run"); err == nil {
		t.Fatal("expected error without pages")
	}
}

func TestJobShowUnknown(t *testing.T) {
	env := setupCLITestEnv(t, titlePayload)
	if _, _, err := runCLI(t, env, "job", "show", "nope"); err == nil {
		t.Fatal("expected not found error")
	}
}

func TestSearchCommand(t *testing.T) {
	env := setupCLITestEnv(t, titlePayload)
	importSamplePages(t, env)

	out, _, err := runCLI(t, env, "search", "location", "nahda")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	requireContains(t, out, "Al Nahda, Sharjah")

	out, _, err = runCLI(t, env, "search", "service", "zzzz")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	requireContains(t, out, "No matches")

	if _, _, err := runCLI(t, env, "search", "planet", "mars"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestJobSweepWithNothingStale(t *testing.T) {
	env := setupCLITestEnv(t, titlePayload)
	out, _, err := runCLI(t, env, "job", "sweep")
	if err != nil {
		t.Fatalf("job sweep: %v", err)
	}
	requireContains(t, out, "No stale jobs")
}

func TestPageImportRequiresIDs(t *testing.T) {
	env := setupCLITestEnv(t, titlePayload)
	path := writePagesFile(t, env, []map[string]any{{"slug": "dubai/jumeirah"}})
	if _, _, err := runCLI(t, env, "page", "import", path); err == nil {
		t.Fatal("expected error for page without id")
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t, titlePayload)

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestParseFields(t *testing.T) {
	cfg, err := parseFields([]string{"h1", "faq"})
	if err != nil {
		t.Fatalf("parseFields: %v", err)
	}
	if !cfg.RegenerateH1 || !cfg.RegenerateFAQ || cfg.RegenerateContent {
		t.Fatalf("unexpected config %+v", cfg)
	}
	all, err := parseFields([]string{"all"})
	if err != nil || len(all.Fields()) != 6 {
		t.Fatalf("all should select six fields, got %v (%v)", all.Fields(), err)
	}
}

func TestJobWatchFollowsRemoteJob(t *testing.T) {
	env := setupCLITestEnv(t, titlePayload)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"job":{"id":"remote-1","status":"completed","apply_mode":"preview","progress":{"total":2,"processed":2,"successful":2,"percent":100}}}`))
	}))
	defer srv.Close()

	out, _, err := runCLI(t, env, "job", "watch", "remote-1", "--server", srv.URL, "--interval", "1ms")
	if err != nil {
		t.Fatalf("job watch: %v", err)
	}
	requireContains(t, out, "completed 2/2 ok=2 failed=0")
	requireContains(t, out, "remote-1")
}

func TestJobWatchUnreachableServer(t *testing.T) {
	env := setupCLITestEnv(t, titlePayload)
	_, _, err := runCLI(t, env, "job", "watch", "remote-1", "--server", "127.0.0.1:1")
	if err == nil || !strings.Contains(err.Error(), "not reachable") {
		t.Fatalf("expected unreachable error, got %v", err)
	}
}

func TestConfigValidateChecksLLM(t *testing.T) {
	env := setupCLITestEnv(t, `{"ok": true}`)
	out, _, err := runCLI(t, env, "config", "validate", "--check-llm")
	if err != nil {
		t.Fatalf("config validate --check-llm: %v", err)
	}
	requireContains(t, out, "reachable")
	if env.llmCalls.Load() != 1 {
		t.Fatalf("expected one AI call, got %d", env.llmCalls.Load())
	}

	env = setupCLITestEnv(t, `{"ok": false}`)
	if _, _, err := runCLI(t, env, "config", "validate", "--check-llm"); err == nil {
		t.Fatal("expected health check failure")
	}
}
