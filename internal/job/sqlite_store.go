package job

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	fileutil "workbench/internal/file"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	quality    TEXT NOT NULL DEFAULT '',
	format     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	filename   TEXT NOT NULL DEFAULT '',
	file_path  TEXT NOT NULL DEFAULT '',
	size       INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

const upsertJob = `
INSERT INTO jobs (id, url, quality, format, status, error, filename, file_path, size, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	status = excluded.status,
	error = excluded.error,
	filename = excluded.filename,
	file_path = excluded.file_path,
	size = excluded.size,
	updated_at = excluded.updated_at`

// sqliteStore keeps job records in data/jobs.db; files stay under data/jobs/<id>.
type sqliteStore struct {
	jobDirs
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the job database under dataDir.
func NewSQLiteStore(ctx context.Context, dataDir string) (JobStore, error) { //nolint:ireturn
	if dataDir == "" {
		dataDir = "data"
	}
	if err := fileutil.EnsureDir(dataDir); err != nil {
		return nil, err //nolint:wrapcheck
	}
	dsn := "file:" + filepath.Join(dataDir, "jobs.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps sqlite free of SQLITE_BUSY under concurrent workers
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &sqliteStore{jobDirs: jobDirs{dataDir: dataDir}, db: db}, nil
}

func (s *sqliteStore) SaveJob(ctx context.Context, j *Job) error {
	_, err := s.db.ExecContext(ctx, upsertJob,
		j.ID, j.URL, j.Quality, j.Format, string(j.Status), j.Error,
		j.Filename, j.FilePath, j.Size,
		j.CreatedAt.UTC().Format(time.RFC3339Nano), j.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

func (s *sqliteStore) LoadJobs(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, url, quality, format, status, error, filename, file_path, size, created_at, updated_at FROM jobs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var (
			j                    Job
			status               string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&j.ID, &j.URL, &j.Quality, &j.Format, &status, &j.Error,
			&j.Filename, &j.FilePath, &j.Size, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j.Status = Status(status)
		j.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		j.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		jobs = append(jobs, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close() //nolint:wrapcheck
}
