package queue

import (
	"errors"
	"time"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one queued pipeline execution for a workspace.
type Run struct {
	ID          string
	WorkspaceID string
	Language    string
	Status      Status
	SubmittedBy string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	LastError   *string
}

// EnqueueRequest describes a pipeline run to admit to the queue.
type EnqueueRequest struct {
	WorkspaceID string
	Language    string
	SubmittedBy string
}

var ErrRunNotFound = errors.New("run not found")
