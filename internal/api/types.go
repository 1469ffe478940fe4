package api

import "encoding/json"

// Response statuses used across endpoints.
const (
	statusAccepted   = "Accepted"
	statusError      = "Error"
	statusSuccess    = "Success"
	statusProcessing = "Processing"
	statusDone       = "Done"
)

// UploadResponse is returned by POST /upload on success.
type UploadResponse struct {
	Status    string `json:"status"`
	Workspace string `json:"workspace"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// StatusResponse is returned by GET /status. Result is only present once the
// pipeline has finished.
type StatusResponse struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
}

// ProcessResponse is returned by POST /process.
type ProcessResponse struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
}

// CompareResponse is returned by POST /compare_patch.
type CompareResponse struct {
	Status    string `json:"status"`
	Workspace string `json:"workspace"`
	File      string `json:"file"`
	Diff      string `json:"diff"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	QueueDepth    int    `json:"queue_depth"`
	Workspaces    int    `json:"workspaces"`
}
