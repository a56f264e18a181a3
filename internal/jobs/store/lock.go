package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryInterval = 25 * time.Millisecond

// JobLock is a per-job advisory file lock, held for the duration of a
// single state-store mutation (save, status change, progress update).
// Unlike the teacher's transaction-scoped Postgres advisory lock, a file
// lock has no natural tx boundary, so callers take it for exactly the
// critical section that touches the job's JSON record
type JobLock struct {
	fl *flock.Flock
}

// NewJobLock returns the lock for a job's lock file under dir. It touches
// no file itself; the lock file is created on first acquisition
func NewJobLock(dir string, id string) *JobLock {
	return &JobLock{fl: flock.New(filepath.Join(dir, id+".lock"))}
}

// WithLock runs do while holding an exclusive lock, blocking until ctx
// is done or the lock is acquired
func (l *JobLock) WithLock(ctx context.Context, do func() error) error {
	ok, err := l.fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("acquire job lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("job lock held by another process")
	}
	defer l.fl.Unlock()

	return do()
}
