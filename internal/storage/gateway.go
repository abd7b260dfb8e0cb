package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/smilemakc/toolflow/pkg/artifact"
	"github.com/smilemakc/toolflow/pkg/run"
	"github.com/smilemakc/toolflow/pkg/scheduler"
	"github.com/smilemakc/toolflow/pkg/toolflowerr"
	"github.com/smilemakc/toolflow/pkg/workflow"
)

// Gateway implements run.Gateway and scheduler.Gateway against Postgres via
// bun, plus the on-disk artifact store for file removal.
type Gateway struct {
	DB        *bun.DB
	Artifacts *artifact.Store
	Log       zerolog.Logger
}

var (
	_ run.Gateway       = (*Gateway)(nil)
	_ scheduler.Gateway = (*Gateway)(nil)
)

func (g *Gateway) LoadWorkflow(ctx context.Context, id uuid.UUID) (*workflow.Workflow, error) {
	row := new(workflowRow)
	if err := g.DB.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: load workflow %s: %v", toolflowerr.ErrPersistence, id, err)
	}
	var wf workflow.Workflow
	if err := json.Unmarshal(row.JSON, &wf); err != nil {
		return nil, fmt.Errorf("%w: decode workflow %s: %v", toolflowerr.ErrPersistence, id, err)
	}
	return &wf, nil
}

// SaveWorkflow inserts or updates wf's row.
func (g *Gateway) SaveWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	payload, err := json.Marshal(wf)
	if err != nil {
		return err
	}
	row := &workflowRow{ID: wf.ID, Name: wf.Name, JSON: payload, State: string(wf.State), UserID: wf.UserID}
	_, err = g.DB.NewInsert().Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("json = EXCLUDED.json").
		Set("state = EXCLUDED.state").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: save workflow %s: %v", toolflowerr.ErrPersistence, wf.ID, err)
	}
	return nil
}

func (g *Gateway) GetRun(ctx context.Context, id uuid.UUID) (*run.Run, error) {
	row := new(runRow)
	if err := g.DB.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: get run %s: %v", toolflowerr.ErrPersistence, id, err)
	}
	return runRowToDomain(row)
}

func (g *Gateway) CreateRun(ctx context.Context, r *run.Run) error {
	row, err := runDomainToRow(r)
	if err != nil {
		return err
	}
	if _, err := g.DB.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("%w: create run %s: %v", toolflowerr.ErrPersistence, r.ID, err)
	}
	return nil
}

func (g *Gateway) UpdateRunStatus(ctx context.Context, r *run.Run) error {
	row, err := runDomainToRow(r)
	if err != nil {
		return err
	}
	_, err = g.DB.NewUpdate().Model(row).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: update run %s: %v", toolflowerr.ErrPersistence, r.ID, err)
	}
	return nil
}

func (g *Gateway) ListFiles(ctx context.Context, runID uuid.UUID) ([]run.FileRow, error) {
	var rows []fileRow
	if err := g.DB.NewSelect().Model(&rows).Where("run_id = ?", runID).Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: list files for run %s: %v", toolflowerr.ErrPersistence, runID, err)
	}
	out := make([]run.FileRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, fileRowToDomain(r))
	}
	return out, nil
}

func (g *Gateway) InsertFile(ctx context.Context, f run.FileRow) error {
	row := &fileRow{
		UUID:     f.UUID,
		RunID:    f.RunID,
		NodeID:   f.NodeID,
		IsOutput: f.ExpiresAt == nil,
		Rows:     f.RowsWritten,
		Expires:  f.ExpiresAt,
	}
	if _, err := g.DB.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("%w: insert file row for node %s: %v", toolflowerr.ErrPersistence, f.NodeID, err)
	}
	return nil
}

func (g *Gateway) DeleteFile(ctx context.Context, runID uuid.UUID, nodeID string) error {
	_, err := g.DB.NewDelete().Model((*fileRow)(nil)).
		Where("run_id = ? AND node_id = ?", runID, nodeID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: delete file row for node %s: %v", toolflowerr.ErrPersistence, nodeID, err)
	}
	return nil
}

// RemoveArtifact deletes the on-disk artifact first, per the File Record
// invariant: removal must precede (or accompany) the row's deletion. It
// reports the error rather than swallowing it here: every caller (run's
// resume path, the scheduler's gc) treats this as best-effort and logs the
// error itself instead of failing, the same pattern scheduler.go's gc uses.
func (g *Gateway) RemoveArtifact(id uuid.UUID) error {
	return g.Artifacts.Remove(id)
}

func (g *Gateway) ResetStuckRuns(ctx context.Context) error {
	_, err := g.DB.NewUpdate().Model((*runRow)(nil)).
		Set("status = ?", string(run.StatusWait)).
		Where("status = ?", string(run.StatusRun)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: reset stuck runs: %v", toolflowerr.ErrPersistence, err)
	}
	return nil
}

func (g *Gateway) ExpiredFiles(ctx context.Context, asOf time.Time) ([]run.FileRow, error) {
	var rows []fileRow
	err := g.DB.NewSelect().Model(&rows).
		Where("expires IS NOT NULL AND expires <= ?", asOf).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list expired files: %v", toolflowerr.ErrPersistence, err)
	}
	out := make([]run.FileRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, fileRowToDomain(r))
	}
	return out, nil
}

func (g *Gateway) DeleteFileRow(ctx context.Context, f run.FileRow) error {
	return g.DeleteFile(ctx, f.RunID, f.NodeID)
}

func (g *Gateway) DueScheduleEntries(ctx context.Context, asOf time.Time) ([]scheduler.ScheduleEntry, error) {
	var rows []schedulerRow
	err := g.DB.NewSelect().Model(&rows).
		Where("is_active AND next_event <= ?", asOf).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list due schedule entries: %v", toolflowerr.ErrPersistence, err)
	}
	out := make([]scheduler.ScheduleEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, scheduler.ScheduleEntry{
			RunID:     r.RunID,
			Interval:  scheduler.Interval(r.Interval),
			IsActive:  r.IsActive,
			NextEvent: r.NextEvent,
		})
	}
	return out, nil
}

func (g *Gateway) AdvanceSchedule(ctx context.Context, runID uuid.UUID, next time.Time) error {
	_, err := g.DB.NewUpdate().Model((*schedulerRow)(nil)).
		Set("next_event = ?", next).
		Where("run_id = ?", runID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: advance schedule for run %s: %v", toolflowerr.ErrPersistence, runID, err)
	}
	return nil
}

// DeleteRunFiles removes every on-disk artifact belonging to runID and then
// deletes all its file rows. Per-artifact removal errors are logged and do
// not block the remaining removals or the row deletion (spec §7: "File GC
// errors are non-fatal and do not block subsequent deletions").
func (g *Gateway) DeleteRunFiles(ctx context.Context, runID uuid.UUID) error {
	var rows []fileRow
	if err := g.DB.NewSelect().Model(&rows).Where("run_id = ?", runID).Scan(ctx); err != nil {
		return fmt.Errorf("%w: list run files %s: %v", toolflowerr.ErrPersistence, runID, err)
	}
	for _, r := range rows {
		if err := g.Artifacts.Remove(r.UUID); err != nil {
			g.Log.Warn().Err(err).Str("uuid", r.UUID.String()).Str("run_id", runID.String()).Msg("remove run artifact failed")
		}
	}
	_, err := g.DB.NewDelete().Model((*fileRow)(nil)).Where("run_id = ?", runID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: delete run files %s: %v", toolflowerr.ErrPersistence, runID, err)
	}
	return nil
}

func (g *Gateway) SetRunWaitIfNotRunning(ctx context.Context, runID uuid.UUID) error {
	_, err := g.DB.NewUpdate().Model((*runRow)(nil)).
		Set("status = ?", string(run.StatusWait)).
		Where("id = ? AND status <> ?", runID, string(run.StatusRun)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: activate run %s: %v", toolflowerr.ErrPersistence, runID, err)
	}
	return nil
}

func (g *Gateway) PickWaitingRun(ctx context.Context) (uuid.UUID, bool, error) {
	row := new(runRow)
	err := g.DB.NewSelect().Model(row).
		Where("status = ?", string(run.StatusWait)).
		OrderExpr("ts_created ASC, id ASC").Limit(1).Scan(ctx)
	if err != nil {
		if err == bun.ErrNoRows {
			return uuid.UUID{}, false, nil
		}
		return uuid.UUID{}, false, fmt.Errorf("%w: pick waiting run: %v", toolflowerr.ErrPersistence, err)
	}
	return row.ID, true, nil
}

func (g *Gateway) SetRunStatus(ctx context.Context, runID uuid.UUID, status run.Status) error {
	_, err := g.DB.NewUpdate().Model((*runRow)(nil)).
		Set("status = ?", string(status)).
		Where("id = ?", runID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: set run %s status: %v", toolflowerr.ErrPersistence, runID, err)
	}
	return nil
}

func fileRowToDomain(r fileRow) run.FileRow {
	return run.FileRow{RunID: r.RunID, NodeID: r.NodeID, UUID: r.UUID, RowsWritten: r.Rows, ExpiresAt: r.Expires}
}

func runRowToDomain(row *runRow) (*run.Run, error) {
	var details []run.NodeStatus
	if len(row.Details) > 0 {
		if err := json.Unmarshal(row.Details, &details); err != nil {
			return nil, fmt.Errorf("%w: decode run details %s: %v", toolflowerr.ErrPersistence, row.ID, err)
		}
	}
	return &run.Run{
		ID:         row.ID,
		WorkflowID: row.WorkflowID,
		Status:     run.Status(row.Status),
		TSCreated:  row.TSCreated,
		TSLast:     row.TSLast,
		NodesTotal: row.NodesTotal,
		NodesDone:  row.NodesDone,
		Details:    details,
	}, nil
}

func runDomainToRow(r *run.Run) (*runRow, error) {
	details, err := json.Marshal(r.Details)
	if err != nil {
		return nil, err
	}
	return &runRow{
		ID:         r.ID,
		WorkflowID: r.WorkflowID,
		Status:     string(r.Status),
		TSCreated:  r.TSCreated,
		TSLast:     r.TSLast,
		NodesTotal: r.NodesTotal,
		NodesDone:  r.NodesDone,
		Details:    details,
	}, nil
}
