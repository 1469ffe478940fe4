package pipeline

import (
	"encoding/json"
	"strings"
)

// Result is the document persisted as result.json when a pipeline run
// finishes. Static and dynamic stages contribute raw tool output; the cleaned
// dynamic transcript omits patch bookkeeping lines so the test outcome reads
// on its own.
type Result struct {
	Workspace      string          `json:"workspace"`
	Language       string          `json:"language"`
	Static         string          `json:"static"`
	DynamicRaw     string          `json:"dynamic_raw"`
	Dynamic        string          `json:"dynamic"`
	AutoFixReports json.RawMessage `json:"auto_fix_reports"`
}

// patchNoisePrefix marks dynamic-tester lines that report patch application
// rather than test outcomes.
const patchNoisePrefix = "Patches applied:"

// CleanDynamicOutput drops patch bookkeeping lines from a dynamic test
// transcript. Line endings and surrounding blank lines are otherwise
// preserved.
func CleanDynamicOutput(raw string) string {
	if raw == "" {
		return ""
	}
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), patchNoisePrefix) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
