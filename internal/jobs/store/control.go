package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dukafeed/internal/jobs/domain"
)

// Control is a domain.ControlStore backed by one-line files under
// dir/control: a separate CLI invocation writes a command, and the
// running supervisor polls and clears it. No lock is needed since each
// write replaces the single-word file atomically (temp file + rename)
type Control struct {
	dir string
}

// NewControl returns a Control rooted at the same state dir FS uses
func NewControl(dir string) *Control {
	return &Control{dir: dir}
}

func (c *Control) path(id domain.JobId) string {
	return filepath.Join(c.dir, "control", string(id)+".ctl")
}

func (c *Control) write(id domain.JobId, cmd domain.ControlCommand) error {
	if err := writeAtomic(c.path(id), []byte(cmd)); err != nil {
		return fmt.Errorf("write control command for job %s: %w", id, err)
	}
	return nil
}

// RequestPause asks a running job to suspend at its next checkpoint
func (c *Control) RequestPause(ctx context.Context, id domain.JobId) error {
	return c.write(id, domain.ControlPause)
}

// RequestResume asks a paused job to continue
func (c *Control) RequestResume(ctx context.Context, id domain.JobId) error {
	return c.write(id, domain.ControlResume)
}

// RequestKill asks a running job to stop and mark itself Cancelled
func (c *Control) RequestKill(ctx context.Context, id domain.JobId) error {
	return c.write(id, domain.ControlKill)
}

// Poll returns the pending command for id, if any, and clears it so the
// same command isn't acted on twice
func (c *Control) Poll(ctx context.Context, id domain.JobId) (domain.ControlCommand, error) {
	b, err := os.ReadFile(c.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return domain.ControlNone, nil
	}
	if err != nil {
		return domain.ControlNone, fmt.Errorf("read control file for job %s: %w", id, err)
	}

	cmd := domain.ControlCommand(b)
	if cmd == domain.ControlNone {
		return domain.ControlNone, nil
	}
	if err := os.Remove(c.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return domain.ControlNone, fmt.Errorf("clear control file for job %s: %w", id, err)
	}
	return cmd, nil
}
