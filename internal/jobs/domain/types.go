// Package domain holds the job model the Supervisor, State Store and
// Detached Spawner operate on: a DownloadJob is a tree of per-instrument
// tasks, each tracking its own resume point and progress
package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobId is an opaque collision-free identifier within the state store
type JobId string

// NewJobId mints a fresh JobId
func NewJobId() JobId { return JobId(uuid.NewString()) }

// JobStatus is the job's lifecycle state. Failed carries a reason
type JobStatus struct {
	Name   string // Pending, Running, Paused, Completed, Failed, Cancelled
	Reason string // set only when Name == "Failed"
}

var (
	StatusPending   = JobStatus{Name: "Pending"}
	StatusRunning   = JobStatus{Name: "Running"}
	StatusPaused    = JobStatus{Name: "Paused"}
	StatusCompleted = JobStatus{Name: "Completed"}
	StatusCancelled = JobStatus{Name: "Cancelled"}
)

// Failed builds a Failed status carrying reason
func Failed(reason string) JobStatus { return JobStatus{Name: "Failed", Reason: reason} }

// IsTerminal reports whether the status is one the Supervisor will not
// advance further (Completed, Failed or Cancelled)
func (s JobStatus) IsTerminal() bool {
	switch s.Name {
	case "Completed", "Failed", "Cancelled":
		return true
	default:
		return false
	}
}

// InstrumentTask is one instrument's slice of a DownloadJob. Progress is
// the index into the task's planned hour slots of the next one to fetch,
// i.e. the resume point
type InstrumentTask struct {
	InstrumentID    string
	RangeStart      time.Time
	RangeEnd        time.Time
	OutputTarget    string // path of the single file the task writes to
	Format          string // "csv", "json" or "parquet"; ignored when Timeframe is set
	Timeframe       string // set when this task aggregates instead of serializing
	Progress        int    // next HourSlot index to fetch
	ConsecutiveErrs int    // surfaced-error counter driving the 3-strikes rule
	MissingHours    []int  // hour indices skipped after surfacing a Corrupt or EmptyHour-kind error
	Status          JobStatus
}

// CurrentSchemaVersion is stamped onto every DownloadJob the State Store
// writes, so a future incompatible change to the persisted shape has
// something to branch on when reading an older record
const CurrentSchemaVersion = 1

// DownloadJob is the durable unit the State Store persists. Lifecycle:
// Pending on save, Running on first task start, Paused via control
// command, Completed when every task reaches the end of its range,
// Failed if any task exceeds its retry budget and isn't ignorable,
// Cancelled on kill
type DownloadJob struct {
	SchemaVersion int // stamped by the State Store on every write
	JobId         JobId
	CreatedAt     time.Time
	Tasks         []InstrumentTask
	Status        JobStatus
	PID           int // 0 until a detached child is spawned
	Progress      Progress
	FinishedAt    *time.Time // nil until the job reaches a terminal status
}

// Progress is the atomic snapshot the Supervisor updates as it works and
// the State Store persists alongside the job record, so a status command
// running in another process reads a point-in-time view rather than
// recomputing it from the task list
type Progress struct {
	TasksDone    int
	HoursFetched int64
	BytesTotal   int64
	LastError    string
}
