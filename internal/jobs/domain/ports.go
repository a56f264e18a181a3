package domain

import "context"

// StateStore is the durable job store: atomic save/load of DownloadJob
// records plus a progress side-channel a running supervisor updates far
// more often than it rewrites the full job record
type StateStore interface {
	SaveJob(ctx context.Context, job DownloadJob) error
	GetJob(ctx context.Context, id JobId) (DownloadJob, error)
	ListJobs(ctx context.Context) ([]DownloadJob, error)
	UpdateProgress(ctx context.Context, id JobId, taskIdx int, progress int) error
	// AppendMissingHour records hourIdx as skipped (the hour surfaced as a
	// Corrupt or EmptyHour-kind error) on the given task, for later inspection
	AppendMissingHour(ctx context.Context, id JobId, taskIdx int, hourIdx int) error
	SetStatus(ctx context.Context, id JobId, status JobStatus) error
	// SetProgress overwrites the job's top-level Progress snapshot
	SetProgress(ctx context.Context, id JobId, progress Progress) error
	// Clean removes a job's on-disk record, lock and logs. Refuses
	// non-terminal jobs unless force is set
	Clean(ctx context.Context, id JobId, force bool) error
}

// ControlStore is the side-channel the Supervisor polls for pause/resume/
// kill requests while a job runs, and that a separate CLI invocation
// writes to without needing to reach into the running process
type ControlStore interface {
	RequestPause(ctx context.Context, id JobId) error
	RequestResume(ctx context.Context, id JobId) error
	RequestKill(ctx context.Context, id JobId) error
	// Poll returns the pending control command, if any, and clears it
	Poll(ctx context.Context, id JobId) (ControlCommand, error)
}

// ControlCommand is a pending out-of-band request for a running job
type ControlCommand string

const (
	ControlNone   ControlCommand = ""
	ControlPause  ControlCommand = "pause"
	ControlResume ControlCommand = "resume"
	ControlKill   ControlCommand = "kill"
)

// Spawner launches a job's work in a detached child process and records
// its PID on the job record
type Spawner interface {
	Spawn(ctx context.Context, id JobId) (pid int, err error)
}
