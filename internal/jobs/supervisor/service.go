// Package supervisor runs a DownloadJob's tasks to completion: one
// worker per instrument task, each driving a Tick Stream into its
// formatter or aggregator, checkpointing progress after every batch, and
// polling a low-cadence control channel for pause/resume/kill
package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"dukafeed/internal/aggregate"
	"dukafeed/internal/archive"
	"dukafeed/internal/format"
	"dukafeed/internal/jobs/domain"
	perr "dukafeed/internal/platform/errors"
	"dukafeed/internal/platform/logger"
)

// progressTracker accumulates domain.Progress fields across every task
// goroutine in a single RunJob call. The counters are updated with atomics
// and the last-error string under a mutex, so any task worker can call in
// without its own lock; snapshot gives a status command a point-in-time copy
type progressTracker struct {
	tasksDone    int64
	hoursFetched int64
	bytesTotal   int64
	mu           sync.Mutex
	lastError    string
}

func (p *progressTracker) addHour(bytes int64) {
	atomic.AddInt64(&p.hoursFetched, 1)
	atomic.AddInt64(&p.bytesTotal, bytes)
}

func (p *progressTracker) taskDone() {
	atomic.AddInt64(&p.tasksDone, 1)
}

func (p *progressTracker) setLastError(msg string) {
	p.mu.Lock()
	p.lastError = msg
	p.mu.Unlock()
}

func (p *progressTracker) snapshot() domain.Progress {
	p.mu.Lock()
	lastErr := p.lastError
	p.mu.Unlock()
	return domain.Progress{
		TasksDone:    int(atomic.LoadInt64(&p.tasksDone)),
		HoursFetched: atomic.LoadInt64(&p.hoursFetched),
		BytesTotal:   atomic.LoadInt64(&p.bytesTotal),
		LastError:    lastErr,
	}
}

// Config tunes worker count, control-poll cadence and the failure budget
type Config struct {
	Workers              int           // parallel tasks; <=0 -> 1
	StreamConcurrency    int           // per-task in-flight fetches; <=0 -> archive default
	PollInterval         time.Duration // control-file poll cadence; <=0 -> 500ms
	MaxConsecutiveErrors int           // task failure threshold; <=0 -> 3
}

// Service drives jobs loaded from a StateStore through to a terminal
// status, honoring ControlStore commands while running
type Service struct {
	Store   domain.StateStore
	Control domain.ControlStore
	Fetcher archive.Fetcher
	Lookup  func(id string) (archive.Instrument, bool)
	Cfg     Config
}

// New constructs a Service
func New(store domain.StateStore, control domain.ControlStore, fetcher archive.Fetcher,
	lookup func(string) (archive.Instrument, bool), cfg Config) *Service {
	return &Service{Store: store, Control: control, Fetcher: fetcher, Lookup: lookup, Cfg: cfg}
}

// RunJob drives job id's tasks to completion. It blocks until every task
// reaches a terminal state, the job is cancelled, or ctx is done
func (s *Service) RunJob(ctx context.Context, id domain.JobId) error {
	job, err := s.Store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return nil
	}

	if err := s.Store.SetStatus(ctx, id, domain.StatusRunning); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var paused int32
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.controlLoop(runCtx, id, &paused, cancel)
	}()

	workers := s.Cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var taskWG sync.WaitGroup
	var anyFailed int32
	progress := &progressTracker{}
	for _, t := range job.Tasks {
		if t.Status.IsTerminal() {
			progress.taskDone()
		}
	}

	for i := range job.Tasks {
		if job.Tasks[i].Status.IsTerminal() {
			continue
		}
		i := i
		sem <- struct{}{}
		taskWG.Add(1)
		go func() {
			defer func() { <-sem; taskWG.Done() }()
			if err := s.runTask(runCtx, id, i, &paused, progress); err != nil {
				atomic.StoreInt32(&anyFailed, 1)
				progress.setLastError(err.Error())
				logger.C(runCtx).Error().Err(err).Str("instrument", job.Tasks[i].InstrumentID).
					Msg("dukafeed: task failed")
			}
			progress.taskDone()
			_ = s.Store.SetProgress(ctx, id, progress.snapshot())
		}()
	}
	taskWG.Wait()
	cancel()
	wg.Wait()

	if runCtx.Err() != nil && errors.Is(runCtx.Err(), context.Canceled) {
		final, err := s.Store.GetJob(ctx, id)
		if err == nil && final.Status == domain.StatusCancelled {
			return nil
		}
	}

	if atomic.LoadInt32(&anyFailed) == 1 {
		reason := "one or more instrument tasks failed"
		if err := s.Store.SetStatus(ctx, id, domain.Failed(reason)); err != nil {
			return err
		}
		return errors.New(reason)
	}
	return s.Store.SetStatus(ctx, id, domain.StatusCompleted)
}

// controlLoop polls for pause/resume/kill at Cfg.PollInterval and
// translates them into the paused flag workers check between hours, or
// into an outright cancellation of runCtx on kill
func (s *Service) controlLoop(ctx context.Context, id domain.JobId, paused *int32, cancel context.CancelFunc) {
	interval := s.Cfg.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			cmd, err := s.Control.Poll(ctx, id)
			if err != nil {
				continue
			}
			switch cmd {
			case domain.ControlPause:
				atomic.StoreInt32(paused, 1)
				_ = s.Store.SetStatus(ctx, id, domain.StatusPaused)
			case domain.ControlResume:
				atomic.StoreInt32(paused, 0)
				_ = s.Store.SetStatus(ctx, id, domain.StatusRunning)
			case domain.ControlKill:
				_ = s.Store.SetStatus(ctx, id, domain.StatusCancelled)
				cancel()
				return
			}
		}
	}
}

// runTask drives one instrument task from its saved resume point to the
// end of its range, persisting Progress after each successfully
// processed hour. A Permanent error fails the task at once; three
// consecutive other surfaced errors (Transient exhausted, IO, unclassified)
// fail it too. Hours that surface as a Corrupt or EmptyHour-kind error are
// logged, recorded as missing and do not count against the budget; an
// hour the fetcher reports as empty arrives as an empty batch and is not
// recorded as missing
func (s *Service) runTask(ctx context.Context, id domain.JobId, idx int, paused *int32, progress *progressTracker) error {
	job, err := s.Store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	task := job.Tasks[idx]

	inst, ok := s.Lookup(task.InstrumentID)
	if !ok {
		return s.failTask(ctx, id, idx, "unknown instrument "+task.InstrumentID)
	}

	slots := archive.PlanRange(archive.DateRange{Start: task.RangeStart, End: task.RangeEnd})
	if task.Progress >= len(slots) {
		return s.completeTask(ctx, id, idx)
	}
	remaining := slots[task.Progress:]

	sink, closeSink, err := s.openSink(task)
	if err != nil {
		return s.failTask(ctx, id, idx, err.Error())
	}
	defer closeSink()

	var formatter format.Formatter
	var agg *aggregate.Aggregator
	wroteHeader := task.Progress > 0
	if task.Timeframe != "" {
		agg = aggregate.NewAggregator(aggregate.Timeframe(task.Timeframe))
	} else {
		f, ok := format.ByName(task.Format)
		if !ok {
			return s.failTask(ctx, id, idx, "unknown output format "+task.Format)
		}
		formatter = f
		if !wroteHeader {
			if err := formatter.WriteHeader(sink); err != nil {
				return s.failTask(ctx, id, idx, err.Error())
			}
		}
	}

	maxErrs := s.Cfg.MaxConsecutiveErrors
	if maxErrs <= 0 {
		maxErrs = 3
	}
	consecutive := task.ConsecutiveErrs

	concurrency := s.Cfg.StreamConcurrency
	stream := archive.NewTickStreamForSlots(s.Fetcher, inst, remaining, concurrency)

	i := 0
	for res := range stream.Results(ctx) {
		if err := waitWhilePaused(ctx, paused); err != nil {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if res.Err != nil && perr.KindOf(res.Err) == perr.KindPermanent {
			return s.failTask(ctx, id, idx, res.Err.Error())
		}
		if res.Err != nil && perr.KindOf(res.Err) != perr.KindEmptyHour && perr.KindOf(res.Err) != perr.KindCorrupt {
			consecutive++
			if consecutive >= maxErrs {
				return s.failTask(ctx, id, idx, res.Err.Error())
			}
			if err := s.Store.UpdateProgress(ctx, id, idx, task.Progress+i); err != nil {
				return err
			}
			i++
			continue
		}
		consecutive = 0

		if res.Err != nil {
			// EmptyHour or Corrupt: skip, don't fail, record as missing
			logger.C(ctx).Warn().Err(res.Err).Str("instrument", task.InstrumentID).
				Int("hour_index", task.Progress+i).Msg("dukafeed: hour skipped")
			if err := s.Store.AppendMissingHour(ctx, id, idx, task.Progress+i); err != nil {
				return err
			}
			progress.addHour(0)
			i++
			if err := s.Store.UpdateProgress(ctx, id, idx, task.Progress+i); err != nil {
				return err
			}
			continue
		}

		if agg != nil {
			if err := s.writeBars(sink, agg, res.Batch); err != nil {
				return s.failTask(ctx, id, idx, err.Error())
			}
		} else if len(res.Batch.Ticks) > 0 {
			if err := formatter.WriteBatch(sink, res.Batch); err != nil {
				return s.failTask(ctx, id, idx, err.Error())
			}
		}

		progress.addHour(int64(len(res.Batch.Ticks)) * archive.RawTickSizeBytes)
		i++
		if err := s.Store.UpdateProgress(ctx, id, idx, task.Progress+i); err != nil {
			return err
		}
		_ = s.Store.SetProgress(ctx, id, progress.snapshot())
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if agg != nil {
		if bar := agg.Finish(); bar != nil {
			if err := writeBar(sink, *bar); err != nil {
				return s.failTask(ctx, id, idx, err.Error())
			}
		}
	} else if err := formatter.WriteFooter(sink); err != nil {
		return s.failTask(ctx, id, idx, err.Error())
	}

	return s.completeTask(ctx, id, idx)
}

// writeBars folds a batch's ticks through the aggregator, writing each
// closed bar as a JSON line as it emerges
func (s *Service) writeBars(sink *os.File, agg *aggregate.Aggregator, batch archive.TickBatch) error {
	for _, tick := range batch.Ticks {
		bar, err := agg.Process(tick)
		if err != nil {
			return err
		}
		if bar == nil {
			continue
		}
		if err := writeBar(sink, *bar); err != nil {
			return err
		}
	}
	return nil
}

func writeBar(w *os.File, bar aggregate.Bar) error {
	b, err := json.Marshal(bar)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

func (s *Service) openSink(task domain.InstrumentTask) (*os.File, func(), error) {
	flags := os.O_CREATE | os.O_WRONLY
	if task.Progress > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(task.OutputTarget, flags, 0o644)
	if err != nil {
		return nil, func() {}, err
	}
	return f, func() { _ = f.Close() }, nil
}

// failTask persists the task's Failed status and returns a non-nil error
// regardless, so the caller's task-failed bookkeeping always fires even
// when the persistence write itself succeeds
func (s *Service) failTask(ctx context.Context, id domain.JobId, idx int, reason string) error {
	job, err := s.Store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	job.Tasks[idx].Status = domain.Failed(reason)
	if err := s.Store.SaveJob(ctx, job); err != nil {
		return err
	}
	return errors.New(reason)
}

func (s *Service) completeTask(ctx context.Context, id domain.JobId, idx int) error {
	job, err := s.Store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	job.Tasks[idx].Status = domain.StatusCompleted
	return s.Store.SaveJob(ctx, job)
}

// waitWhilePaused blocks while the paused flag is set, returning early if
// ctx is cancelled
func waitWhilePaused(ctx context.Context, paused *int32) error {
	for atomic.LoadInt32(paused) == 1 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}
