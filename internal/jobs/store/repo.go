// Package store is the durable file-based State Store: job records and
// their control side-channel live as plain files under a state directory,
// written atomically (temp file + rename) so a crash mid-write never
// corrupts the record a resumed job would read back
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dukafeed/internal/jobs/domain"
	tim "dukafeed/internal/platform/time"
)

// FS is a domain.StateStore backed by one JSON file per job under dir/jobs
// and a one-line control file per job under dir/control
type FS struct {
	dir string
}

// NewFS returns a FS rooted at dir, creating its subdirectories if absent
func NewFS(dir string) (*FS, error) {
	for _, sub := range []string{"jobs", "control", "logs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create state dir %s: %w", sub, err)
		}
	}
	return &FS{dir: dir}, nil
}

func (f *FS) jobPath(id domain.JobId) string {
	return filepath.Join(f.dir, "jobs", string(id)+".json")
}

func (f *FS) lock(id domain.JobId) *JobLock {
	return NewJobLock(filepath.Join(f.dir, "jobs"), string(id))
}

// writeAtomic writes b to path via a temp file in the same directory
// followed by a rename, so readers never observe a partial write
func writeAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// SaveJob persists the full job record, overwriting any prior version.
// SchemaVersion is stamped to the store's current version on every write
func (f *FS) SaveJob(ctx context.Context, job domain.DownloadJob) error {
	job.SchemaVersion = domain.CurrentSchemaVersion
	return f.lock(job.JobId).WithLock(ctx, func() error {
		b, err := json.MarshalIndent(job, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal job %s: %w", job.JobId, err)
		}
		return writeAtomic(f.jobPath(job.JobId), b)
	})
}

// GetJob loads a job record by id
func (f *FS) GetJob(ctx context.Context, id domain.JobId) (domain.DownloadJob, error) {
	var job domain.DownloadJob
	b, err := os.ReadFile(f.jobPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return job, fmt.Errorf("job %s not found", id)
	}
	if err != nil {
		return job, fmt.Errorf("read job %s: %w", id, err)
	}
	if err := json.Unmarshal(b, &job); err != nil {
		return job, fmt.Errorf("decode job %s: %w", id, err)
	}
	return job, nil
}

// ListJobs returns every job record under the store, sorted by id
func (f *FS) ListJobs(ctx context.Context) ([]domain.DownloadJob, error) {
	entries, err := os.ReadDir(filepath.Join(f.dir, "jobs"))
	if err != nil {
		return nil, fmt.Errorf("list jobs dir: %w", err)
	}

	var jobs []domain.DownloadJob
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := domain.JobId(strings.TrimSuffix(name, ".json"))
		job, err := f.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].JobId < jobs[j].JobId })
	return jobs, nil
}

// UpdateProgress advances one task's resume point within a job record.
// Called far more often than SetStatus, so it's a targeted read-modify-
// write rather than requiring the caller to hold the whole record
func (f *FS) UpdateProgress(ctx context.Context, id domain.JobId, taskIdx int, progress int) error {
	return f.lock(id).WithLock(ctx, func() error {
		job, err := f.GetJob(ctx, id)
		if err != nil {
			return err
		}
		if taskIdx < 0 || taskIdx >= len(job.Tasks) {
			return fmt.Errorf("task index %d out of range for job %s", taskIdx, id)
		}
		job.Tasks[taskIdx].Progress = progress

		b, err := json.MarshalIndent(job, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal job %s: %w", id, err)
		}
		return writeAtomic(f.jobPath(id), b)
	})
}

// AppendMissingHour records hourIdx as skipped on the given task
func (f *FS) AppendMissingHour(ctx context.Context, id domain.JobId, taskIdx int, hourIdx int) error {
	return f.lock(id).WithLock(ctx, func() error {
		job, err := f.GetJob(ctx, id)
		if err != nil {
			return err
		}
		if taskIdx < 0 || taskIdx >= len(job.Tasks) {
			return fmt.Errorf("task index %d out of range for job %s", taskIdx, id)
		}
		job.Tasks[taskIdx].MissingHours = append(job.Tasks[taskIdx].MissingHours, hourIdx)

		b, err := json.MarshalIndent(job, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal job %s: %w", id, err)
		}
		return writeAtomic(f.jobPath(id), b)
	})
}

// SetProgress overwrites the job's top-level Progress snapshot
func (f *FS) SetProgress(ctx context.Context, id domain.JobId, progress domain.Progress) error {
	return f.lock(id).WithLock(ctx, func() error {
		job, err := f.GetJob(ctx, id)
		if err != nil {
			return err
		}
		job.Progress = progress

		b, err := json.MarshalIndent(job, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal job %s: %w", id, err)
		}
		return writeAtomic(f.jobPath(id), b)
	})
}

// SetStatus updates a job's top-level status, stamping FinishedAt the
// first time it becomes terminal
func (f *FS) SetStatus(ctx context.Context, id domain.JobId, status domain.JobStatus) error {
	return f.lock(id).WithLock(ctx, func() error {
		job, err := f.GetJob(ctx, id)
		if err != nil {
			return err
		}
		job.Status = status
		if status.IsTerminal() && job.FinishedAt == nil {
			job.FinishedAt = tim.Ptr(time.Now().UTC())
		}

		b, err := json.MarshalIndent(job, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal job %s: %w", id, err)
		}
		return writeAtomic(f.jobPath(id), b)
	})
}

// Clean removes a job's record, lock and logs. Non-terminal jobs are
// refused unless force is set, to avoid deleting state out from under a
// running supervisor
func (f *FS) Clean(ctx context.Context, id domain.JobId, force bool) error {
	if !force {
		job, err := f.GetJob(ctx, id)
		if err != nil {
			return err
		}
		if !job.Status.IsTerminal() {
			return fmt.Errorf("job %s is not terminal (status %s); use force to remove anyway", id, job.Status.Name)
		}
	}

	for _, p := range []string{
		f.jobPath(id),
		filepath.Join(f.dir, "jobs", string(id)+".lock"),
		filepath.Join(f.dir, "control", string(id)+".ctl"),
		filepath.Join(f.dir, "logs", string(id)+".out"),
		filepath.Join(f.dir, "logs", string(id)+".err"),
	} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}
