// Package scheduler implements the single long-lived server loop (C7):
// boot-time crash recovery and artifact GC, periodic scheduled-run
// activation, and FIFO dispatch of waiting runs. Grounded on the
// goroutine-based trigger loop in
// backend/internal/application/trigger/cron_scheduler.go, generalised from
// cron-expression triggers to a poll-driven, persisted-state loop since
// this system's schedule entries advance by a fixed calendar interval
// rather than a cron expression.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/smilemakc/toolflow/pkg/run"
)

// Interval is a Schedule Entry's recurrence.
type Interval string

const (
	IntervalDaily   Interval = "DAILY"
	IntervalWeekly  Interval = "WEEKLY"
	IntervalMonthly Interval = "MONTHLY"
)

// Advance returns next_event advanced by one period of i from from.
func (i Interval) Advance(from time.Time) time.Time {
	switch i {
	case IntervalWeekly:
		return from.AddDate(0, 0, 7)
	case IntervalMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from.AddDate(0, 0, 1)
	}
}

// ScheduleEntry is a periodic activation rule for a run.
type ScheduleEntry struct {
	RunID     uuid.UUID
	Interval  Interval
	IsActive  bool
	NextEvent time.Time
}

// Gateway is the persistence surface the scheduler loop needs. It embeds
// run.Gateway since boot-time GC and run activation share the file/run
// tables with the run engine.
type Gateway interface {
	run.Gateway

	// ResetStuckRuns resets every run stuck in RUN (from a prior crash)
	// back to WAIT.
	ResetStuckRuns(ctx context.Context) error

	// ExpiredFiles returns every file row whose expiry has passed asOf.
	ExpiredFiles(ctx context.Context, asOf time.Time) ([]run.FileRow, error)
	DeleteFileRow(ctx context.Context, f run.FileRow) error

	DueScheduleEntries(ctx context.Context, asOf time.Time) ([]ScheduleEntry, error)
	AdvanceSchedule(ctx context.Context, runID uuid.UUID, next time.Time) error
	DeleteRunFiles(ctx context.Context, runID uuid.UUID) error
	SetRunWaitIfNotRunning(ctx context.Context, runID uuid.UUID) error

	// PickWaitingRun returns the earliest-created run with status WAIT (ties
	// broken by id), if any.
	PickWaitingRun(ctx context.Context) (uuid.UUID, bool, error)
	SetRunStatus(ctx context.Context, runID uuid.UUID, status run.Status) error
}

// Loop is the server's single scheduler loop.
type Loop struct {
	Gateway Gateway
	// Spawn dispatches runID's execution fire-and-forget; the loop never
	// awaits it. Production wiring is (*run.Engine).Execute run in its own
	// goroutine with error logging.
	Spawn func(runID uuid.UUID)
	Log   zerolog.Logger

	GCInterval   time.Duration
	PollInterval time.Duration

	lastGC time.Time
}

func (l *Loop) gcInterval() time.Duration {
	if l.GCInterval <= 0 {
		return 5 * time.Minute
	}
	return l.GCInterval
}

func (l *Loop) pollInterval() time.Duration {
	if l.PollInterval <= 0 {
		return 500 * time.Millisecond
	}
	return l.PollInterval
}

// Boot runs the one-time startup recovery: GC expired artifacts and reset
// any run stuck in RUN from an unclean shutdown.
func (l *Loop) Boot(ctx context.Context) error {
	if err := l.gc(ctx); err != nil {
		return err
	}
	if err := l.Gateway.ResetStuckRuns(ctx); err != nil {
		return err
	}
	l.lastGC = now()
	return nil
}

// Run executes the periodic loop until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if l.lastGC.IsZero() {
		if err := l.Boot(ctx); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if now().Sub(l.lastGC) >= l.gcInterval() {
			if err := l.gc(ctx); err != nil {
				l.Log.Error().Err(err).Msg("gc failed")
			}
			l.lastGC = now()
		}

		if err := l.activateScheduled(ctx); err != nil {
			l.Log.Error().Err(err).Msg("schedule activation failed")
		}

		runID, found, err := l.Gateway.PickWaitingRun(ctx)
		if err != nil {
			l.Log.Error().Err(err).Msg("pick waiting run failed")
		}
		if found {
			if err := l.Gateway.SetRunStatus(ctx, runID, run.StatusRun); err != nil {
				l.Log.Error().Err(err).Str("run_id", runID.String()).Msg("mark run RUN failed")
				continue
			}
			l.Spawn(runID)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.pollInterval()):
		}
	}
}

func (l *Loop) gc(ctx context.Context) error {
	expired, err := l.Gateway.ExpiredFiles(ctx, now())
	if err != nil {
		return err
	}
	for _, f := range expired {
		if err := l.Gateway.RemoveArtifact(f.UUID); err != nil {
			l.Log.Warn().Err(err).Str("uuid", f.UUID.String()).Msg("remove expired artifact failed")
		}
		if err := l.Gateway.DeleteFileRow(ctx, f); err != nil {
			l.Log.Error().Err(err).Str("uuid", f.UUID.String()).Msg("delete expired file row failed")
		}
	}
	return nil
}

func (l *Loop) activateScheduled(ctx context.Context) error {
	due, err := l.Gateway.DueScheduleEntries(ctx, now())
	if err != nil {
		return err
	}
	for _, e := range due {
		if !e.IsActive {
			continue
		}
		if err := l.Gateway.DeleteRunFiles(ctx, e.RunID); err != nil {
			l.Log.Error().Err(err).Str("run_id", e.RunID.String()).Msg("delete prior run files failed")
			continue
		}
		if err := l.Gateway.SetRunWaitIfNotRunning(ctx, e.RunID); err != nil {
			l.Log.Error().Err(err).Str("run_id", e.RunID.String()).Msg("activate run failed")
			continue
		}
		if err := l.Gateway.AdvanceSchedule(ctx, e.RunID, e.Interval.Advance(e.NextEvent)); err != nil {
			l.Log.Error().Err(err).Str("run_id", e.RunID.String()).Msg("advance schedule failed")
		}
	}
	return nil
}

// now is the loop's time source, overridable in tests.
var now = time.Now
