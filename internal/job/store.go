package job

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	fileutil "workbench/internal/file"
)

// JobStore abstracts persistence for jobs and resolution of their directories.
type JobStore interface {
	SaveJob(ctx context.Context, j *Job) error
	LoadJobs(ctx context.Context) ([]*Job, error)
	EnsureJobDir(ctx context.Context, jobID string) (string, error)
	Close() error
}

// jobDirs resolves data/jobs/<id>; both stores keep downloaded files there.
type jobDirs struct {
	dataDir string
}

func (d jobDirs) jobDir(jobID string) string {
	return filepath.Join(d.dataDir, "jobs", jobID)
}

func (d jobDirs) EnsureJobDir(ctx context.Context, jobID string) (string, error) { //nolint:revive,stylecheck // context reserved for future use
	dir := d.jobDir(jobID)
	if err := fileutil.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("ensure job dir: %w", err)
	}
	return dir, nil
}

// fileStore implements JobStore with one status.json per job directory.
type fileStore struct {
	jobDirs
}

func NewFileStore(dataDir string) JobStore { //nolint:ireturn
	if dataDir == "" {
		dataDir = "data"
	}
	return &fileStore{jobDirs{dataDir: dataDir}}
}

func (s *fileStore) statusPath(jobID string) string {
	return filepath.Join(s.jobDir(jobID), "status.json")
}

func (s *fileStore) SaveJob(ctx context.Context, j *Job) error {
	if _, err := s.EnsureJobDir(ctx, j.ID); err != nil {
		return err
	}
	return fileutil.WriteJSONAtomic(s.statusPath(j.ID), j) //nolint:wrapcheck
}

func (s *fileStore) LoadJobs(ctx context.Context) ([]*Job, error) { //nolint:revive,stylecheck // context reserved for future use
	root := filepath.Join(s.dataDir, "jobs")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	jobs := make([]*Job, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		b, err := os.ReadFile(s.statusPath(e.Name())) //nolint:gosec // path is controlled by application
		if err != nil {
			continue
		}
		var j Job
		if err := json.Unmarshal(b, &j); err != nil {
			continue
		}
		jobs = append(jobs, &j)
	}
	return jobs, nil
}

func (s *fileStore) Close() error { return nil }
