package client

import "strings"

// JobStatus is the client's view of a remote job.
type JobStatus string

const (
	StatusPending JobStatus = "pending"
	StatusSuccess JobStatus = "success"
	StatusFail    JobStatus = "fail"
)

// IsTerminal reports whether polling should stop.
func (s JobStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFail
}

// ParseStatus maps the backend's free-text status. Anything unrecognized,
// including "processing" or "queued", stays pending.
func ParseStatus(raw string) JobStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "failed", "error", "cancelled", "canceled":
		return StatusFail
	case "completed", "complete", "done", "finished", "success":
		return StatusSuccess
	default:
		return StatusPending
	}
}
