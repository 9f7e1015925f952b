package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardrail/internal/core/app"
	"guardrail/internal/ui/report"
)

const cliFacts = `{"unit":{"name":"shop.web.CartController"}}
{"unit":{"name":"shop.domain.Cart"}}
{"unit":{"name":"shop.persistence.CartStore"}}
{"depends_on":{"source":"shop.web.CartController","target":"shop.domain.Cart","kind":"call"}}
{"depends_on":{"source":"shop.web.CartController","target":"shop.persistence.CartStore","kind":"call","file":"src/CartController.java","line":12}}
{"depends_on":{"source":"shop.domain.Cart","target":"shop.persistence.CartStore","kind":"field"}}
`

const cliRules = `
[[rules]]
name = "web-skips-persistence"
kind = "forbidden"

[rules.forbidden]
reason = "web talks to the domain only"
from = { package = ["..web.."] }
to = { package = ["..persistence.."] }
`

type cliFixture struct {
	root   string
	config string
}

func newCLIFixture(t *testing.T) cliFixture {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "facts.jsonl"), []byte(cliFacts), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "rules.toml"), []byte(cliRules), 0o644))

	cfg := "rule_files = [\"rules.toml\"]\n\n" +
		"[paths]\nproject_root = " + quote(root) + "\n\n" +
		"[facts]\nfiles = [\"facts.jsonl\"]\n"
	cfgPath := filepath.Join(root, "guardrail.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cliFixture{root: root, config: cfgPath}
}

func quote(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Version(t *testing.T) {
	code, out, _ := runCLI(t, "--version")
	assert.Equal(t, report.ExitPass, code)
	assert.True(t, strings.HasPrefix(out, "guardrail "))
}

func TestRun_UsageErrors(t *testing.T) {
	cases := [][]string{
		{"--no-such-flag"},
		{"--trace", "--impact", "x", "a", "b"},
		{"--mcp", "--watch"},
		{"--format", "html"},
		{"stray-argument"},
	}
	for _, args := range cases {
		code, _, _ := runCLI(t, args...)
		assert.Equal(t, report.ExitUsage, code, "args %v", args)
	}
}

func TestRun_CheckReportsViolations(t *testing.T) {
	f := newCLIFixture(t)

	code, out, _ := runCLI(t, "check", "--config", f.config)
	assert.Equal(t, report.ExitViolations, code)
	assert.Contains(t, out, "[FAIL] web-skips-persistence")
	assert.Contains(t, out, "src/CartController.java:12")
}

func TestRun_CheckWritesJSONReport(t *testing.T) {
	f := newCLIFixture(t)
	outPath := filepath.Join(f.root, "reports", "report.json")

	code, stdout, _ := runCLI(t, "--config", f.config, "--format", "json", "--out", outPath)
	assert.Equal(t, report.ExitViolations, code)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, false, decoded["passed"])
	assert.EqualValues(t, 1, decoded["total_violations"])
}

func TestRun_RulesFlagOverridesConfig(t *testing.T) {
	f := newCLIFixture(t)
	empty := filepath.Join(f.root, "none.toml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	code, out, _ := runCLI(t, "--config", f.config, "--rules", empty)
	assert.Equal(t, report.ExitPass, code)
	assert.Contains(t, out, "PASS")
}

func TestRun_ConfigErrors(t *testing.T) {
	code, _, _ := runCLI(t, "--config", filepath.Join(t.TempDir(), "missing.toml"))
	assert.Equal(t, report.ExitConfigError, code)

	f := newCLIFixture(t)
	dangling := filepath.Join(f.root, "dangling.jsonl")
	require.NoError(t, os.WriteFile(dangling, []byte(`{"depends_on":{"source":"a.A","target":"b.B"}}`+"\n"), 0o644))
	code, _, _ = runCLI(t, "--config", f.config, "--facts", dangling)
	assert.Equal(t, report.ExitConfigError, code)
}

func TestRun_TraceAndImpact(t *testing.T) {
	f := newCLIFixture(t)

	code, out, _ := runCLI(t, "--config", f.config, "--trace", "shop.web.CartController", "shop.persistence.CartStore")
	assert.Equal(t, report.ExitPass, code)
	assert.Contains(t, out, "-> shop.persistence.CartStore")

	code, _, _ = runCLI(t, "--config", f.config, "--trace", "shop.persistence.CartStore", "shop.web.CartController")
	assert.Equal(t, report.ExitViolations, code)

	code, _, _ = runCLI(t, "--config", f.config, "--trace", "only-one")
	assert.Equal(t, report.ExitUsage, code)

	code, out, _ = runCLI(t, "--config", f.config, "--impact", "shop.persistence.CartStore")
	assert.Equal(t, report.ExitPass, code)
	assert.Contains(t, out, "direct dependents (2)")

	code, out, _ = runCLI(t, "--config", f.config, "--metrics", "1")
	assert.Equal(t, report.ExitPass, code)
	assert.Contains(t, out, "shop.persistence.CartStore")
}

func TestRun_HistoryAndTrend(t *testing.T) {
	f := newCLIFixture(t)
	dbDir := filepath.Join(f.root, "db")
	cfgWithDB := filepath.Join(f.root, "with-db.toml")
	base, err := os.ReadFile(f.config)
	require.NoError(t, err)
	extra := "\n[db]\npath = " + quote(filepath.Join(dbDir, "history.db")) + "\n"
	require.NoError(t, os.WriteFile(cfgWithDB, append(base, []byte(extra)...), 0o644))
	require.NoError(t, os.MkdirAll(dbDir, 0o755))

	code, _, _ := runCLI(t, "--config", cfgWithDB, "--trend")
	assert.Equal(t, report.ExitConfigError, code, "history is off without --history")

	for i := 0; i < 2; i++ {
		code, _, _ = runCLI(t, "--config", cfgWithDB, "--history")
		require.Equal(t, report.ExitViolations, code)
	}

	code, out, _ := runCLI(t, "--config", cfgWithDB, "--history", "--trend", "--since", "24h")
	assert.Equal(t, report.ExitPass, code)
	assert.Contains(t, out, "2 runs")
	assert.Contains(t, out, "violations=1 (+0)")
}

func TestParseSince(t *testing.T) {
	got, err := parseSince("2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = parseSince("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = parseSince("last tuesday")
	require.Error(t, err)
}

type fakeHealth struct{ status string }

func (f fakeHealth) Health() app.HealthStatus {
	return app.HealthStatus{Status: f.status, Timestamp: time.Now(), Components: map[string]string{"graph": "x"}}
}

func TestObservabilityServer_Health(t *testing.T) {
	for _, tc := range []struct {
		status string
		code   int
	}{
		{"up", http.StatusOK},
		{"degraded", http.StatusServiceUnavailable},
	} {
		srv := httptest.NewServer(NewObservabilityServer("", fakeHealth{status: tc.status}).Handler())
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		var body app.HealthStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		_ = resp.Body.Close()
		srv.Close()

		assert.Equal(t, tc.code, resp.StatusCode)
		assert.Equal(t, tc.status, body.Status)
	}
}
