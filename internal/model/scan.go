package model

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a persisted scan.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ParseStatus converts a stored status string into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusRunning, StatusPaused, StatusCompleted, StatusFailed:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown scan status %q", s)
	}
}

// Resumable reports whether a scan in this state can be continued.
func (s Status) Resumable() bool {
	return s == StatusPaused
}

// Scan is the durable record of one root-path traversal attempt.
type Scan struct {
	ID          int64
	RootPath    string
	StartedAt   time.Time
	CompletedAt *time.Time
	Stats
	Status Status
	// Runner identifies the controller instance that last ran the scan.
	Runner string
}

// Orphaned reports whether the record looks like it was left behind by a
// process that died mid-scan.
func (s Scan) Orphaned() bool {
	return s.Status == StatusRunning && s.CompletedAt == nil
}
