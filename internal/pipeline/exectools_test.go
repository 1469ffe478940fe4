package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Pelix05/Code-Agent-Project/internal/config"
	"github.com/Pelix05/Code-Agent-Project/internal/workspace"
)

func shToolset(t *testing.T, tools config.LanguageToolsConfig, timeout time.Duration) (*ExecToolset, workspace.Descriptor) {
	t.Helper()
	ws := workspace.Descriptor{
		ID:       "ws_20260101_000000",
		Language: workspace.LangPy,
		WorkDir:  t.TempDir(),
	}
	return NewExecToolset(workspace.LangPy, tools, timeout, 5), ws
}

func TestRenderArgvSubstitution(t *testing.T) {
	t.Parallel()

	ts, ws := shToolset(t, config.LanguageToolsConfig{}, 0)
	argv, err := ts.renderArgv([]string{"tool", "--repo-dir", "{workdir}", "--max-iters", "{max_iters}"}, ws)
	if err != nil {
		t.Fatalf("renderArgv: %v", err)
	}
	if argv[2] != ws.WorkDir {
		t.Errorf("workdir arg = %q", argv[2])
	}
	if argv[4] != "5" {
		t.Errorf("max-iters arg = %q", argv[4])
	}

	if _, err := ts.renderArgv(nil, ws); err == nil {
		t.Error("empty template should be an error")
	}
}

func TestAnalyzeCapturesNonZeroExit(t *testing.T) {
	t.Parallel()

	ts, ws := shToolset(t, config.LanguageToolsConfig{
		Static: []string{"sh", "-c", "echo 'lint: 2 findings'; exit 3"},
	}, time.Minute)

	out, err := ts.Analyze(context.Background(), ws)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !strings.Contains(out, "lint: 2 findings") {
		t.Errorf("output = %q", out)
	}
}

func TestTestEnforcesDeadline(t *testing.T) {
	t.Parallel()

	ts, ws := shToolset(t, config.LanguageToolsConfig{
		Dynamic: []string{"sh", "-c", "echo started; sleep 30"},
	}, 100*time.Millisecond)

	start := time.Now()
	out, err := ts.Test(context.Background(), ws)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Fatal("deadline enforcement took too long")
	}
	if !strings.Contains(out, "started") {
		t.Errorf("partial output should be captured, got %q", out)
	}
}

func TestFixParsesJSONReport(t *testing.T) {
	t.Parallel()

	ts, ws := shToolset(t, config.LanguageToolsConfig{
		AutoFix: []string{"sh", "-c", `echo '{"iterations": 2, "fixed": true}'`},
	}, time.Minute)

	report, err := ts.Fix(context.Background(), ws)
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if !strings.Contains(string(report), `"iterations": 2`) {
		t.Errorf("report = %s", report)
	}
}

func TestFixRejectsNonJSONOutput(t *testing.T) {
	t.Parallel()

	ts, ws := shToolset(t, config.LanguageToolsConfig{
		AutoFix: []string{"sh", "-c", "echo Traceback; exit 1"},
	}, time.Minute)

	if _, err := ts.Fix(context.Background(), ws); err == nil {
		t.Fatal("non-JSON fixer output should be an error")
	}
}
