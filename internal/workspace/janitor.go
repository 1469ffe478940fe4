package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// SweepReport summarizes a janitor pass.
type SweepReport struct {
	DeletedDirs int
}

// Janitor deletes workspace directories older than a retention period, based
// on directory modification time. It only runs when the operator configures a
// positive retention; by default workspaces live until deleted out of band.
type Janitor struct {
	baseDir   string
	retention time.Duration
	tick      time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewJanitor(baseDir string, retention, tick time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		baseDir:   baseDir,
		retention: retention,
		tick:      tick,
		logger:    logger.With("component", "janitor"),
		now:       time.Now,
	}
}

// Run sweeps on every tick until ctx is cancelled. Blocking.
func (j *Janitor) Run(ctx context.Context) error {
	if j.retention <= 0 {
		return fmt.Errorf("janitor retention must be positive")
	}
	j.logger.Info("workspace janitor started", "retention", j.retention, "tick", j.tick)
	defer j.logger.Info("workspace janitor stopped")

	ticker := time.NewTicker(j.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			report, err := j.Sweep(ctx)
			if err != nil {
				j.logger.Error("workspace sweep failed", "error", err)
				continue
			}
			if report.DeletedDirs > 0 {
				j.logger.Info("workspace sweep complete", "deleted", report.DeletedDirs)
			}
		}
	}
}

// Sweep removes workspace directories whose modification time is older than
// the retention period.
func (j *Janitor) Sweep(ctx context.Context) (SweepReport, error) {
	if err := ctx.Err(); err != nil {
		return SweepReport{}, err
	}
	if j.retention <= 0 {
		return SweepReport{}, fmt.Errorf("retention must be positive")
	}

	entries, err := os.ReadDir(j.baseDir)
	if os.IsNotExist(err) {
		return SweepReport{}, nil
	}
	if err != nil {
		return SweepReport{}, fmt.Errorf("read workspace base directory: %w", err)
	}

	cutoff := j.now().Add(-j.retention)
	report := SweepReport{}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return report, fmt.Errorf("read workspace entry info %q: %w", entry.Name(), err)
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(j.baseDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return report, fmt.Errorf("remove workspace %q: %w", entry.Name(), err)
		}
		report.DeletedDirs++
	}

	return report, nil
}
