package job

import (
	"context"
	"fmt"
	"time"
)

const interruptedMessage = "interrupted by server restart"

// LoadFromDisk loads persisted jobs into memory.
// Jobs left queued or processing by a previous run are marked as failed.
func (m *Manager) LoadFromDisk() error {
	loadedJobs, err := m.store.LoadJobs(context.Background())
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}
	for _, loaded := range loadedJobs {
		if !loaded.Status.IsTerminal() {
			loaded.Status = StatusFailed
			loaded.Error = interruptedMessage
			loaded.UpdatedAt = time.Now().UTC()
			_ = m.persistJob(*loaded)
		}
		m.mu.Lock()
		m.jobs[loaded.ID] = loaded
		m.mu.Unlock()
	}
	return nil
}
