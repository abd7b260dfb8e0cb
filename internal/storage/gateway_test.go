package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/toolflow/pkg/artifact"
	"github.com/smilemakc/toolflow/pkg/run"
)

// newBunDBWithMock mirrors the teacher's sqlmock-backed bun.DB test helper.
func newBunDBWithMock(t *testing.T) (*bun.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return bun.NewDB(db, pgdialect.New()), mock
}

func TestGateway_PickWaitingRun_NoneWaiting(t *testing.T) {
	db, mock := newBunDBWithMock(t)
	mock.ExpectQuery(`SELECT .* FROM "run"`).WillReturnError(sql.ErrNoRows)

	gw := &Gateway{DB: db}
	_, found, err := gw.PickWaitingRun(context.Background())
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_PickWaitingRun_Found(t *testing.T) {
	db, mock := newBunDBWithMock(t)
	runID := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "workflow_id", "status", "ts_created", "ts_last", "nodes_total", "nodes_done", "details"}).
		AddRow(runID, uuid.New(), "WAIT", time.Now(), time.Now(), 3, 0, []byte("[]"))
	mock.ExpectQuery(`SELECT .* FROM "run"`).WillReturnRows(rows)

	gw := &Gateway{DB: db}
	id, found, err := gw.PickWaitingRun(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, runID, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_SetRunStatus(t *testing.T) {
	db, mock := newBunDBWithMock(t)
	runID := uuid.New()
	mock.ExpectExec(`UPDATE "run"`).WillReturnResult(sqlmock.NewResult(0, 1))

	gw := &Gateway{DB: db}
	require.NoError(t, gw.SetRunStatus(context.Background(), runID, run.StatusRun))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_GetRun_DecodesDetails(t *testing.T) {
	db, mock := newBunDBWithMock(t)
	runID := uuid.New()
	wfID := uuid.New()
	details := []byte(`[{"NodeID":"A","Status":"DONE","IsOutputNode":false}]`)
	rows := sqlmock.NewRows([]string{"id", "workflow_id", "status", "ts_created", "ts_last", "nodes_total", "nodes_done", "details"}).
		AddRow(runID, wfID, "RUN", time.Now(), time.Now(), 1, 1, details)
	mock.ExpectQuery(`SELECT .* FROM "run"`).WillReturnRows(rows)

	gw := &Gateway{DB: db}
	r, err := gw.GetRun(context.Background(), runID)
	require.NoError(t, err)
	require.Equal(t, run.StatusRun, r.Status)
	require.Len(t, r.Details, 1)
	require.Equal(t, "A", r.Details[0].NodeID)
	require.Equal(t, run.NodeDone, r.Details[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_InsertFile_PersistsRowCount(t *testing.T) {
	db, mock := newBunDBWithMock(t)
	runID := uuid.New()
	fileID := uuid.New()

	mock.ExpectExec(`INSERT INTO "file"`).
		WithArgs(fileID, runID, "A", true, 7, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	gw := &Gateway{DB: db, Log: zerolog.Nop()}
	err := gw.InsertFile(context.Background(), run.FileRow{
		RunID:       runID,
		NodeID:      "A",
		UUID:        fileID,
		RowsWritten: 7,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGateway_DeleteRunFiles_ToleratesArtifactRemovalFailure(t *testing.T) {
	db, mock := newBunDBWithMock(t)
	runID := uuid.New()
	goneUUID := uuid.New()

	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"uuid", "run_id", "node_id", "is_output", "rows", "expires"}).
		AddRow(goneUUID, runID, "A", false, 0, nil)
	mock.ExpectQuery(`SELECT .* FROM "file"`).WillReturnRows(rows)
	mock.ExpectExec(`DELETE FROM "file"`).WillReturnResult(sqlmock.NewResult(0, 1))

	gw := &Gateway{DB: db, Artifacts: store, Log: zerolog.Nop()}
	err = gw.DeleteRunFiles(context.Background(), runID)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
