package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Pelix05/Code-Agent-Project/internal/config"
	"github.com/Pelix05/Code-Agent-Project/internal/log"
	"github.com/Pelix05/Code-Agent-Project/internal/workspace"
)

const (
	// maxToolOutputBytes caps the captured output of one tool invocation.
	maxToolOutputBytes = 1 << 20

	// terminationGracePeriod is the time between SIGTERM and SIGKILL when a
	// tool overruns its deadline.
	terminationGracePeriod = 5 * time.Second
)

// Argv template placeholders understood by the tool configuration.
const (
	placeholderWorkdir  = "{workdir}"
	placeholderMaxIters = "{max_iters}"
)

// ExecToolset runs the configured external analyzer, tester, and fixer
// commands for one language. Every invocation gets a hard deadline; a tool
// that ignores SIGTERM is killed after a grace period.
type ExecToolset struct {
	lang     workspace.Language
	tools    config.LanguageToolsConfig
	timeout  time.Duration
	maxIters int
	logger   *slog.Logger
}

func NewExecToolset(lang workspace.Language, tools config.LanguageToolsConfig, timeout time.Duration, maxIters int) *ExecToolset {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if maxIters <= 0 {
		maxIters = 5
	}
	return &ExecToolset{
		lang:     lang,
		tools:    tools,
		timeout:  timeout,
		maxIters: maxIters,
		logger:   log.WithComponent("tools").With("language", string(lang)),
	}
}

// Analyze runs the static analyzer. A non-zero tool exit is not an error; the
// captured output is the report either way.
func (t *ExecToolset) Analyze(ctx context.Context, ws workspace.Descriptor) (string, error) {
	return t.runCaptured(ctx, t.tools.Static, ws, "static")
}

// Test runs the dynamic tester. A non-zero tool exit is not an error; failing
// tests are part of the transcript.
func (t *ExecToolset) Test(ctx context.Context, ws workspace.Descriptor) (string, error) {
	return t.runCaptured(ctx, t.tools.Dynamic, ws, "dynamic")
}

// Fix runs the auto-fixer and parses its stdout as a JSON report.
func (t *ExecToolset) Fix(ctx context.Context, ws workspace.Descriptor) (json.RawMessage, error) {
	out, err := t.run(ctx, t.tools.AutoFix, ws, "auto_fix")
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, err
		}
	}

	report := []byte(strings.TrimSpace(out))
	if len(report) == 0 || !json.Valid(report) {
		return nil, fmt.Errorf("auto-fixer produced no JSON report: %s", firstLine(out))
	}
	return json.RawMessage(report), nil
}

// runCaptured runs a tool and folds a non-zero exit into the captured output.
func (t *ExecToolset) runCaptured(ctx context.Context, argvTemplate []string, ws workspace.Descriptor, stage string) (string, error) {
	out, err := t.run(ctx, argvTemplate, ws, stage)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			t.logger.Warn("tool exited non-zero", "stage", stage, "workspace", ws.ID, "exit_code", exitErr.ExitCode())
			return out, nil
		}
		return out, err
	}
	return out, nil
}

func (t *ExecToolset) run(ctx context.Context, argvTemplate []string, ws workspace.Descriptor, stage string) (string, error) {
	argv, err := t.renderArgv(argvTemplate, ws)
	if err != nil {
		return "", err
	}

	t.logger.Debug("running tool", "stage", stage, "workspace", ws.ID, "argv", strings.Join(argv, " "), "timeout", t.timeout)
	start := time.Now()
	out, err := runWithDeadline(ctx, argv, ws.WorkDir, t.timeout, t.logger.With("stage", stage, "workspace", ws.ID))
	t.logger.Info("tool finished", "stage", stage, "workspace", ws.ID, "elapsed", time.Since(start), "failed", err != nil)
	return out, err
}

// renderArgv substitutes the template placeholders into a fresh argv.
func (t *ExecToolset) renderArgv(template []string, ws workspace.Descriptor) ([]string, error) {
	if len(template) == 0 {
		return nil, fmt.Errorf("no command configured for language %q", t.lang)
	}
	argv := make([]string, len(template))
	for i, arg := range template {
		arg = strings.ReplaceAll(arg, placeholderWorkdir, ws.WorkDir)
		arg = strings.ReplaceAll(arg, placeholderMaxIters, strconv.Itoa(t.maxIters))
		argv[i] = arg
	}
	return argv, nil
}

// runWithDeadline starts argv in dir and waits for it to finish, capturing
// combined output. When the deadline passes the process gets SIGTERM, then
// SIGKILL after the grace period. The returned error is
// context.DeadlineExceeded for overruns and *exec.ExitError for non-zero
// exits; captured output is returned in every case.
func runWithDeadline(ctx context.Context, argv []string, dir string, timeout time.Duration, logger *slog.Logger) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %q: %w", argv[0], err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	terminate := func(reason string) (string, error) {
		logger.Warn("terminating tool", "reason", reason)
		if cmd.Process != nil {
			if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
				logger.Error("failed to send SIGTERM", "error", err)
			}
		}

		grace := time.NewTimer(terminationGracePeriod)
		defer grace.Stop()

		select {
		case <-waitErr:
		case <-grace.C:
			logger.Warn("tool ignored SIGTERM, sending SIGKILL")
			if cmd.Process != nil {
				if err := cmd.Process.Kill(); err != nil {
					logger.Error("failed to send SIGKILL", "error", err)
				}
			}
			<-waitErr
		}
		return truncateOutput(output.String()), context.DeadlineExceeded
	}

	select {
	case <-timer.C:
		return terminate("deadline exceeded")
	case <-ctx.Done():
		out, _ := terminate("shutdown requested")
		return out, ctx.Err()
	case err := <-waitErr:
		return truncateOutput(output.String()), err
	}
}

func truncateOutput(s string) string {
	if len(s) > maxToolOutputBytes {
		return s[:maxToolOutputBytes]
	}
	return s
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
