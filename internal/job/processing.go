package job

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// startProcessing runs the fetch for a job whose worker slot is already held.
func (m *Manager) startProcessing(jobID string) {
	defer func() { <-m.semaphore }()

	m.mu.Lock()
	current, found := m.jobs[jobID]
	if !found {
		m.mu.Unlock()
		return
	}
	current.Status = StatusProcessing
	current.UpdatedAt = time.Now().UTC()
	videoURL := current.URL
	fetcher := m.fetch
	// allow cancellation on graceful shutdown
	processingContext := m.baseCtx
	snapshot := *current
	m.mu.Unlock()
	if err := m.persistJob(snapshot); err != nil {
		log.Warn().Str("job_id", jobID).Err(err).Msg("persist processing failed")
	}

	if processingContext == nil {
		processingContext = context.Background()
	}
	jobDirectory, err := m.store.EnsureJobDir(processingContext, jobID)
	if err != nil {
		m.failJob(jobID, "failed to create job dir: "+err.Error())
		return
	}

	if m.jobTimeout > 0 {
		var cancel context.CancelFunc
		processingContext, cancel = context.WithTimeout(processingContext, m.jobTimeout)
		defer cancel()
	}

	started := time.Now()
	result, err := fetcher(processingContext, jobDirectory, jobID, videoURL)
	if err != nil {
		log.Warn().Str("job_id", jobID).Err(err).Dur("took", time.Since(started)).Msg("fetch failed")
		m.failJob(jobID, err.Error())
		return
	}

	m.mu.Lock()
	current.Status = StatusCompleted
	current.Filename = result.Filename
	current.FilePath = result.Path
	current.Size = result.Size
	current.UpdatedAt = time.Now().UTC()
	snapshot = *current
	m.mu.Unlock()
	if err := m.persistJob(snapshot); err != nil {
		log.Warn().Str("job_id", jobID).Err(err).Msg("persist final state failed")
	}
	log.Info().Str("job_id", jobID).Dur("took", time.Since(started)).Msg("job completed")
}

func (m *Manager) failJob(jobID, msg string) {
	m.mu.Lock()
	current, found := m.jobs[jobID]
	if !found {
		m.mu.Unlock()
		return
	}
	current.Status = StatusFailed
	current.Error = msg
	current.UpdatedAt = time.Now().UTC()
	snapshot := *current
	m.mu.Unlock()
	if err := m.persistJob(snapshot); err != nil {
		log.Warn().Str("job_id", jobID).Err(err).Msg("persist failed state failed")
	}
}
