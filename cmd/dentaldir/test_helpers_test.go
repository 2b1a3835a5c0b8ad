package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"dentaldir/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	llmCalls   *atomic.Int32
}

// setupCLITestEnv writes a config pointing at temp directories and a fake
// completion endpoint that answers every prompt with payload.
func setupCLITestEnv(t *testing.T, payload string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("REDIS_URL", "")
	t.Setenv("DATABASE_URL", "")

	calls := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": payload}}},
		})
	}))
	t.Cleanup(server.Close)

	configPath := filepath.Join(base, "dentaldir.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
api_bind = "127.0.0.1:0"

[llm]
api_key = "test"
base_url = %q
model = "test-model"

[regeneration]
inter_item_delay_seconds = 0
backoff_base_seconds = 0

[logging]
level = "error"
`, filepath.Join(base, "data"), filepath.Join(base, "logs"), server.URL)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return &cliTestEnv{baseDir: base, configPath: configPath, llmCalls: calls}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writePagesFile(t *testing.T, env *cliTestEnv, pages []map[string]any) string {
	t.Helper()
	path := filepath.Join(env.baseDir, "pages.json")
	testsupport.WriteJSON(t, path, pages)
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
