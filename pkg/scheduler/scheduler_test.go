package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/smilemakc/toolflow/pkg/run"
	"github.com/smilemakc/toolflow/pkg/workflow"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu sync.Mutex

	resetStuckCalled bool
	expired          []run.FileRow
	deletedFileRows  []run.FileRow
	removedArtifacts []uuid.UUID

	due             []ScheduleEntry
	deletedRunFiles []uuid.UUID
	waitedRuns      []uuid.UUID
	advanced        map[uuid.UUID]time.Time

	waitQueue  []uuid.UUID
	statusSet  map[uuid.UUID]run.Status
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{advanced: map[uuid.UUID]time.Time{}, statusSet: map[uuid.UUID]run.Status{}}
}

func (g *fakeGateway) LoadWorkflow(ctx context.Context, id uuid.UUID) (*workflow.Workflow, error) {
	return nil, errors.New("not implemented")
}
func (g *fakeGateway) GetRun(ctx context.Context, id uuid.UUID) (*run.Run, error) {
	return nil, errors.New("not implemented")
}
func (g *fakeGateway) CreateRun(ctx context.Context, r *run.Run) error { return nil }
func (g *fakeGateway) UpdateRunStatus(ctx context.Context, r *run.Run) error { return nil }
func (g *fakeGateway) ListFiles(ctx context.Context, runID uuid.UUID) ([]run.FileRow, error) {
	return nil, nil
}
func (g *fakeGateway) InsertFile(ctx context.Context, f run.FileRow) error { return nil }
func (g *fakeGateway) DeleteFile(ctx context.Context, runID uuid.UUID, nodeID string) error {
	return nil
}
func (g *fakeGateway) RemoveArtifact(id uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removedArtifacts = append(g.removedArtifacts, id)
	return nil
}

func (g *fakeGateway) ResetStuckRuns(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetStuckCalled = true
	return nil
}

func (g *fakeGateway) ExpiredFiles(ctx context.Context, asOf time.Time) ([]run.FileRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.expired, nil
}

func (g *fakeGateway) DeleteFileRow(ctx context.Context, f run.FileRow) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletedFileRows = append(g.deletedFileRows, f)
	return nil
}

func (g *fakeGateway) DueScheduleEntries(ctx context.Context, asOf time.Time) ([]ScheduleEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.due, nil
}

func (g *fakeGateway) AdvanceSchedule(ctx context.Context, runID uuid.UUID, next time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.advanced[runID] = next
	return nil
}

func (g *fakeGateway) DeleteRunFiles(ctx context.Context, runID uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletedRunFiles = append(g.deletedRunFiles, runID)
	return nil
}

func (g *fakeGateway) SetRunWaitIfNotRunning(ctx context.Context, runID uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.waitedRuns = append(g.waitedRuns, runID)
	return nil
}

func (g *fakeGateway) PickWaitingRun(ctx context.Context) (uuid.UUID, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.waitQueue) == 0 {
		return uuid.UUID{}, false, nil
	}
	id := g.waitQueue[0]
	g.waitQueue = g.waitQueue[1:]
	return id, true, nil
}

func (g *fakeGateway) SetRunStatus(ctx context.Context, runID uuid.UUID, status run.Status) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusSet[runID] = status
	return nil
}

func TestLoop_Boot_ResetsStuckRunsAndGCs(t *testing.T) {
	gw := newFakeGateway()
	expiredID := uuid.New()
	gw.expired = []run.FileRow{{UUID: expiredID, NodeID: "A"}}

	l := &Loop{Gateway: gw, Spawn: func(uuid.UUID) {}, Log: zerolog.Nop()}
	require.NoError(t, l.Boot(context.Background()))

	require.True(t, gw.resetStuckCalled)
	require.Equal(t, []uuid.UUID{expiredID}, gw.removedArtifacts)
	require.Len(t, gw.deletedFileRows, 1)
}

func TestLoop_ActivatesDueScheduleEntry(t *testing.T) {
	gw := newFakeGateway()
	runID := uuid.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	gw.due = []ScheduleEntry{{RunID: runID, Interval: IntervalDaily, IsActive: true, NextEvent: base}}

	l := &Loop{Gateway: gw, Spawn: func(uuid.UUID) {}, Log: zerolog.Nop()}
	require.NoError(t, l.activateScheduled(context.Background()))

	require.Equal(t, []uuid.UUID{runID}, gw.deletedRunFiles)
	require.Equal(t, []uuid.UUID{runID}, gw.waitedRuns)
	require.Equal(t, base.AddDate(0, 0, 1), gw.advanced[runID])
}

func TestLoop_PicksWaitingRunAndSpawns(t *testing.T) {
	gw := newFakeGateway()
	runID := uuid.New()
	gw.waitQueue = []uuid.UUID{runID}

	var spawned uuid.UUID
	var wg sync.WaitGroup
	wg.Add(1)
	l := &Loop{
		Gateway: gw,
		Spawn: func(id uuid.UUID) {
			spawned = id
			wg.Done()
		},
		Log:          zerolog.Nop(),
		PollInterval: 10 * time.Millisecond,
	}
	l.lastGC = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = l.Run(ctx)

	wg.Wait()
	require.Equal(t, runID, spawned)
	require.Equal(t, run.StatusRun, gw.statusSet[runID])
}

func TestInterval_Advance(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, base.AddDate(0, 0, 1), IntervalDaily.Advance(base))
	require.Equal(t, base.AddDate(0, 0, 7), IntervalWeekly.Advance(base))
	require.Equal(t, base.AddDate(0, 1, 0), IntervalMonthly.Advance(base))
}
