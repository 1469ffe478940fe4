package pipeline

import (
	"context"
	"encoding/json"

	"github.com/Pelix05/Code-Agent-Project/internal/workspace"
)

// StaticAnalyzer inspects a working copy without executing it and returns a
// human-readable report.
type StaticAnalyzer interface {
	Analyze(ctx context.Context, ws workspace.Descriptor) (string, error)
}

// DynamicTester builds and/or runs the working copy's test suite and returns
// the raw transcript.
type DynamicTester interface {
	Test(ctx context.Context, ws workspace.Descriptor) (string, error)
}

// AutoFixer iteratively repairs the working copy and returns an opaque JSON
// report produced by the fixer tool.
type AutoFixer interface {
	Fix(ctx context.Context, ws workspace.Descriptor) (json.RawMessage, error)
}

// Toolset bundles the three pipeline capabilities for one language.
type Toolset interface {
	StaticAnalyzer
	DynamicTester
	AutoFixer
}
