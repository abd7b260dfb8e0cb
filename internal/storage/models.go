// Package storage implements the persistence gateway (C8): bun-backed
// repositories over the workflow/run/file/scheduler/user tables, grounded
// on src/internal/db/tables.go and mixins.go. It implements run.Gateway and
// scheduler.Gateway so pkg/run and pkg/scheduler never import this package
// directly.
package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// workflowRow is the `workflow` table: id, name, json (serialized
// workflow), state, user_id per spec §6.
type workflowRow struct {
	bun.BaseModel `bun:"table:workflow"`

	ID     uuid.UUID `bun:",pk,type:uuid"`
	Name   string    `bun:"name,notnull"`
	JSON   []byte    `bun:"json,type:jsonb,notnull"`
	State  string    `bun:"state,notnull"`
	UserID uuid.UUID `bun:"user_id,type:uuid,notnull"`
}

// runRow is the `run` table.
type runRow struct {
	bun.BaseModel `bun:"table:run"`

	ID         uuid.UUID `bun:",pk,type:uuid"`
	WorkflowID uuid.UUID `bun:"workflow_id,type:uuid,notnull"`
	Status     string    `bun:"status,notnull"`
	TSCreated  time.Time `bun:"ts_created,notnull"`
	TSLast     time.Time `bun:"ts_last,notnull"`
	NodesTotal int       `bun:"nodes_total,notnull"`
	NodesDone  int       `bun:"nodes_done,notnull"`
	Details    []byte    `bun:"details,type:jsonb"`
}

// fileRow is the `file` table.
type fileRow struct {
	bun.BaseModel `bun:"table:file"`

	ID       int64      `bun:",pk,autoincrement"`
	UUID     uuid.UUID  `bun:"uuid,type:uuid,notnull"`
	RunID    uuid.UUID  `bun:"run_id,type:uuid,notnull"`
	NodeID   string     `bun:"node_id,notnull"`
	IsOutput bool       `bun:"is_output,notnull"`
	Rows     int        `bun:"rows,notnull"`
	Expires  *time.Time `bun:"expires"`
}

// schedulerRow is the `scheduler` table.
type schedulerRow struct {
	bun.BaseModel `bun:"table:scheduler"`

	RunID     uuid.UUID `bun:",pk,type:uuid"`
	Interval  string    `bun:"interval,notnull"`
	IsActive  bool      `bun:"is_active,notnull"`
	NextEvent time.Time `bun:"next_event,notnull"`
}

// userRow is the `user` table: an opaque OAuth credential blob.
type userRow struct {
	bun.BaseModel `bun:"table:user"`

	ID    uuid.UUID `bun:",pk,type:uuid"`
	OAuth []byte    `bun:"oauth,type:jsonb"`
}

// AllModels lists every model this package registers, for callers (tests,
// migrations) that need to create tables in isolation.
func AllModels() []interface{} {
	return []interface{}{
		(*workflowRow)(nil),
		(*runRow)(nil),
		(*fileRow)(nil),
		(*schedulerRow)(nil),
		(*userRow)(nil),
	}
}
