package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Pelix05/Code-Agent-Project/internal/log"
)

// Status of a single patch application attempt.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Record describes the outcome of applying one patch file. Detail is empty
// when the strict apply succeeded, names the fallback mode that succeeded, or
// carries the first line of the strict failure output.
type Record struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Applier applies patch_*.diff files to a working tree with git, falling back
// to progressively looser apply modes when the strict mode fails.
type Applier struct {
	logger *slog.Logger
}

func NewApplier() *Applier {
	return &Applier{logger: log.WithComponent("patch")}
}

// Discover returns the patch files in dir, sorted by name. A missing or empty
// directory yields an empty slice.
func (a *Applier) Discover(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "patch_*.diff"))
	if err != nil {
		return nil, fmt.Errorf("scan patch directory %q: %w", dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// ApplyAll applies every patch file found in patchesDir against workDir, in
// name order. One failing patch never aborts the batch; the outcome of every
// patch is reported.
func (a *Applier) ApplyAll(ctx context.Context, patchesDir, workDir string) ([]Record, error) {
	patches, err := a.Discover(patchesDir)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(patches))
	for _, patchPath := range patches {
		rec := a.applyOne(ctx, patchPath, workDir)
		a.logger.Info("patch applied",
			"patch", rec.Name,
			"status", rec.Status,
			"detail", rec.Detail,
		)
		records = append(records, rec)
	}
	return records, nil
}

// applyOne tries strict apply first, then --unidiff-zero for zero-context
// diffs, then --reject to land whatever hunks still fit. git exits non-zero
// from --reject whenever any hunk was rejected, so that tier counts as
// success when it left reject files behind. The failure detail is always
// taken from the strict attempt.
func (a *Applier) applyOne(ctx context.Context, patchPath, workDir string) Record {
	name := filepath.Base(patchPath)

	strictOut, strictErr := runGitApply(ctx, workDir, patchPath)
	if strictErr == nil {
		return Record{Name: name, Status: StatusSuccess}
	}

	if _, err := runGitApply(ctx, workDir, patchPath, "--unidiff-zero"); err == nil {
		return Record{Name: name, Status: StatusSuccess, Detail: "applied with --unidiff-zero"}
	}

	rejectsBefore := rejectFiles(workDir)
	_, rejectErr := runGitApply(ctx, workDir, patchPath, "--reject")
	if rejectErr == nil || wroteRejects(workDir, rejectsBefore, rejectErr) {
		return Record{Name: name, Status: StatusSuccess, Detail: "applied with --reject"}
	}

	return Record{Name: name, Status: StatusFailed, Detail: firstLine(strictOut)}
}

// rejectFiles lists the .rej files currently under root.
func rejectFiles(root string) map[string]struct{} {
	found := map[string]struct{}{}
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.HasSuffix(p, ".rej") {
			found[p] = struct{}{}
		}
		return nil
	})
	return found
}

// wroteRejects reports whether a non-zero --reject run still landed hunks:
// git exited with a hunk failure and new reject files appeared. Any other
// error, such as a corrupt patch or a missing target file, stays a failure.
func wroteRejects(workDir string, before map[string]struct{}, runErr error) bool {
	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		return false
	}
	for p := range rejectFiles(workDir) {
		if _, ok := before[p]; !ok {
			return true
		}
	}
	return false
}

func runGitApply(ctx context.Context, workDir, patchPath string, extra ...string) (string, error) {
	args := append([]string{"apply"}, extra...)
	args = append(args, patchPath)

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = workDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
