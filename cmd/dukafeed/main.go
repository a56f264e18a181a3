// Command dukafeed downloads Dukascopy tick archives into CSV/JSON files
// or OHLCV bars, running each download as a durable background job:
// submit returns immediately after spawning a detached worker, and
// status/pause/resume/kill/clean manage it from any later invocation
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"dukafeed/internal/archive"
	"dukafeed/internal/instruments"
	"dukafeed/internal/jobs/domain"
	"dukafeed/internal/jobs/spawn"
	"dukafeed/internal/jobs/store"
	"dukafeed/internal/jobs/supervisor"
	"dukafeed/internal/platform/config"
	"dukafeed/internal/platform/logger"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitBadUsage  = 2
	exitNotFound  = 3
	exitJobFailed = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	l := logger.Get()
	stateDir := config.New().Prefix("DUKAFEED_").MayString("STATE_DIR", "./.dukafeed")

	fs, err := store.NewFS(stateDir)
	if err != nil {
		l.Error().Err(err).Msg("dukafeed: open state store")
		return exitFailure
	}
	ctl := store.NewControl(stateDir)

	if runJobID := flagRunJob(args); runJobID != "" {
		return runJob(stateDir, fs, ctl, domain.JobId(runJobID))
	}

	if len(args) == 0 {
		usage()
		return exitBadUsage
	}

	switch args[0] {
	case "submit":
		return cmdSubmit(fs, stateDir, args[1:])
	case "status":
		return cmdStatus(fs, args[1:])
	case "list":
		return cmdList(fs)
	case "pause":
		return cmdControl(ctl, args[1:], ctl.RequestPause)
	case "resume":
		return cmdControl(ctl, args[1:], ctl.RequestResume)
	case "kill":
		return cmdControl(ctl, args[1:], ctl.RequestKill)
	case "clean":
		return cmdClean(fs, args[1:])
	default:
		usage()
		return exitBadUsage
	}
}

// flagRunJob extracts --run-job's value from args without disturbing the
// subcommand dispatch above; it's the detached child's re-entry path
func flagRunJob(args []string) string {
	for i, a := range args {
		switch {
		case a == "--run-job" || a == "-run-job":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(a, "--run-job="):
			return strings.TrimPrefix(a, "--run-job=")
		case strings.HasPrefix(a, "-run-job="):
			return strings.TrimPrefix(a, "-run-job=")
		}
	}
	return ""
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  dukafeed submit -instrument ID -start YYYY-MM-DD -end YYYY-MM-DD -out FILE [-format csv|json|parquet] [-timeframe TF]
  dukafeed status <job-id>
  dukafeed list
  dukafeed pause|resume|kill <job-id>
  dukafeed clean <job-id>
  dukafeed --run-job <job-id>   (re-entry point for the detached worker, not for interactive use)`)
}

func cmdSubmit(fs *store.FS, stateDir string, args []string) int {
	fset := flag.NewFlagSet("submit", flag.ContinueOnError)
	instrumentID := fset.String("instrument", "", "instrument id, e.g. eurusd")
	startStr := fset.String("start", "", "UTC start day YYYY-MM-DD")
	endStr := fset.String("end", "", "UTC end day YYYY-MM-DD, inclusive")
	out := fset.String("out", "", "output file path")
	format := fset.String("format", "csv", "csv | json | parquet")
	timeframe := fset.String("timeframe", "", "aggregate to this OHLCV timeframe instead of writing raw ticks")
	if err := fset.Parse(args); err != nil {
		return exitBadUsage
	}

	if *instrumentID == "" || *startStr == "" || *endStr == "" || *out == "" {
		usage()
		return exitBadUsage
	}
	if _, ok := instruments.Lookup(*instrumentID); !ok {
		fmt.Fprintf(os.Stderr, "unknown instrument %q\n", *instrumentID)
		return exitNotFound
	}
	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad -start: %v\n", err)
		return exitBadUsage
	}
	end, err := time.Parse("2006-01-02", *endStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad -end: %v\n", err)
		return exitBadUsage
	}
	if end.Before(start) {
		fmt.Fprintln(os.Stderr, "-end must not be before -start")
		return exitBadUsage
	}

	job := domain.DownloadJob{
		JobId:     domain.NewJobId(),
		CreatedAt: time.Now().UTC(),
		Status:    domain.StatusPending,
		Tasks: []domain.InstrumentTask{
			{
				InstrumentID: *instrumentID,
				RangeStart:   start.UTC(),
				RangeEnd:     end.UTC(),
				OutputTarget: *out,
				Format:       *format,
				Timeframe:    *timeframe,
			},
		},
	}
	if err := fs.SaveJob(context.Background(), job); err != nil {
		fmt.Fprintf(os.Stderr, "save job: %v\n", err)
		return exitFailure
	}

	spawner, err := spawn.NewProcess(stateDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "spawn: %v\n", err)
		return exitFailure
	}
	pid, err := spawner.Spawn(context.Background(), job.JobId)
	if err != nil {
		fmt.Fprintf(os.Stderr, "spawn: %v\n", err)
		return exitFailure
	}
	job.PID = pid
	if err := fs.SaveJob(context.Background(), job); err != nil {
		fmt.Fprintf(os.Stderr, "save job pid: %v\n", err)
		return exitFailure
	}

	fmt.Println(job.JobId)
	return exitOK
}

func cmdStatus(fs *store.FS, args []string) int {
	if len(args) != 1 {
		usage()
		return exitBadUsage
	}
	job, err := fs.GetJob(context.Background(), domain.JobId(args[0]))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitNotFound
	}
	printJob(job)
	return exitOK
}

func cmdList(fs *store.FS) int {
	jobs, err := fs.ListJobs(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	for _, job := range jobs {
		printJob(job)
	}
	return exitOK
}

func printJob(job domain.DownloadJob) {
	fmt.Printf("%s  %s  pid=%d  schema=%d", job.JobId, job.Status.Name, job.PID, job.SchemaVersion)
	if job.FinishedAt != nil {
		fmt.Printf("  finished_at=%s", job.FinishedAt.Format(time.RFC3339))
	}
	fmt.Println()
	fmt.Printf("  tasks_done=%d  hours_fetched=%d  bytes_total=%d",
		job.Progress.TasksDone, job.Progress.HoursFetched, job.Progress.BytesTotal)
	if job.Progress.LastError != "" {
		fmt.Printf("  last_error=%q", job.Progress.LastError)
	}
	fmt.Println()
	for _, t := range job.Tasks {
		fmt.Printf("  %s  %s  progress=%d  missing=%v\n", t.InstrumentID, t.Status.Name, t.Progress, t.MissingHours)
	}
}

func cmdControl(ctl *store.Control, args []string, do func(context.Context, domain.JobId) error) int {
	if len(args) != 1 {
		usage()
		return exitBadUsage
	}
	if err := do(context.Background(), domain.JobId(args[0])); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	return exitOK
}

func cmdClean(fs *store.FS, args []string) int {
	if len(args) != 1 {
		usage()
		return exitBadUsage
	}
	if err := fs.Clean(context.Background(), domain.JobId(args[0]), false); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	return exitOK
}

// runJob is the detached child's entrypoint, invoked as
// "dukafeed --run-job <id>". It runs the supervisor synchronously to
// completion and maps the outcome onto the documented exit codes
func runJob(stateDir string, fs *store.FS, ctl *store.Control, id domain.JobId) int {
	l := logger.Get()

	if _, err := fs.GetJob(context.Background(), id); err != nil {
		l.Error().Err(err).Str("job_id", string(id)).Msg("dukafeed: job not found")
		return exitNotFound
	}

	svc := supervisor.New(fs, ctl, archive.NewHTTPFetcher(), instruments.Lookup, supervisor.Config{
		Workers: 4,
	})

	ctx := logger.WithJob(context.Background(), string(id), "", "")
	if err := svc.RunJob(ctx, id); err != nil {
		logger.C(ctx).Error().Err(err).Msg("dukafeed: job failed")
		return exitJobFailed
	}
	return exitOK
}
