package job

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"workbench/internal/fetch"
)

// Manager keeps jobs in memory, persists them through a JobStore and runs
// fetches in the background with bounded concurrency.
type Manager struct {
	mu         sync.RWMutex
	jobs       map[string]*Job
	semaphore  chan struct{}
	fetch      fetch.Func
	jobTimeout time.Duration
	workersWG  sync.WaitGroup
	baseCtx    context.Context
	store      JobStore
}

// NewManager creates a manager with default options suitable for tests
func NewManager() *Manager {
	return NewManagerWithOptions(Options{
		DataDir:           "data",
		MaxConcurrentJobs: defaultMaxConcurrent,
	})
}

// NewManagerWithOptions creates a manager with provided configuration
func NewManagerWithOptions(opts Options) *Manager {
	if opts.MaxConcurrentJobs <= 0 {
		opts.MaxConcurrentJobs = 1
	}
	store := opts.Store
	if store == nil {
		store = NewFileStore(opts.DataDir)
	}
	return &Manager{
		jobs:       make(map[string]*Job),
		semaphore:  make(chan struct{}, opts.MaxConcurrentJobs),
		fetch:      fetch.New(fetch.Options{}).Fetch,
		jobTimeout: opts.JobTimeout,
		baseCtx:    context.Background(),
		store:      store,
	}
}

// IsBusy reports whether the system is currently at max concurrent processing
func (m *Manager) IsBusy() bool {
	return len(m.semaphore) >= cap(m.semaphore)
}

// Enqueue creates a job and starts fetching it. It fails with ErrBusy instead
// of queueing when every worker slot is taken.
func (m *Manager) Enqueue(videoURL, quality, format string) (Job, error) {
	videoURL = strings.TrimSpace(videoURL)
	if videoURL == "" {
		return Job{}, ErrEmptyURL
	}

	// Acquire the slot up front so IsBusy reflects the new job immediately.
	select {
	case m.semaphore <- struct{}{}:
	default:
		return Job{}, ErrBusy
	}

	now := time.Now().UTC()
	newJob := &Job{
		ID:        uuid.NewString(),
		URL:       videoURL,
		Quality:   quality,
		Format:    format,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.jobs[newJob.ID] = newJob
	snapshot := *newJob
	m.mu.Unlock()

	if err := m.persistJob(snapshot); err != nil { // best-effort
		log.Warn().Str("job_id", newJob.ID).Err(err).Msg("persist job failed")
	}

	m.workersWG.Add(1)
	go func() {
		defer m.workersWG.Done()
		m.startProcessing(newJob.ID)
	}()

	return snapshot, nil
}

// GetJob returns a copy of the job.
func (m *Manager) GetJob(jobID string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	found, ok := m.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *found, true
}

// SetBaseContext sets the base context used to control long-running operations (e.g., downloads).
// Intended to be set at process startup and cancelled during shutdown.
func (m *Manager) SetBaseContext(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()
}

// WaitAll blocks until all in-flight workers finish or the context is done.
// Returns true if all workers finished, false if timed out.
func (m *Manager) WaitAll(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		m.workersWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// UseFetcher replaces the downloader.
// Not safe for concurrent mutation with running jobs; intended for setup only.
func (m *Manager) UseFetcher(fn fetch.Func) {
	m.mu.Lock()
	m.fetch = fn
	m.mu.Unlock()
}

// Close releases the store.
func (m *Manager) Close() error {
	return m.store.Close() //nolint:wrapcheck
}

func (m *Manager) persistJob(snapshot Job) error {
	return m.store.SaveJob(context.Background(), &snapshot) //nolint:wrapcheck
}
