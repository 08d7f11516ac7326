package job

import "time"

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the job will not change again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Job struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Quality   string    `json:"quality"`
	Format    string    `json:"format"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	FilePath  string    `json:"file_path,omitempty"`
	Size      int64     `json:"size,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Options struct {
	DataDir           string
	MaxConcurrentJobs int
	// JobTimeout bounds a single fetch; zero means no limit.
	JobTimeout time.Duration
	// Store defaults to the file store under DataDir.
	Store JobStore
}

const defaultMaxConcurrent = 2
