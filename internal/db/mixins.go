package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TimeStamped stamps created_at/updated_at on insert/update, grounded on
// src/internal/db/mixins.go.
type TimeStamped struct {
	CreatedAt *time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at,omitempty"`
}

var _ bun.BeforeAppendModelHook = (*TimeStamped)(nil)

func (m *TimeStamped) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	t := time.Now()
	switch query.(type) {
	case *bun.InsertQuery:
		m.CreatedAt = &t
		m.UpdatedAt = &t
	case *bun.UpdateQuery:
		m.UpdatedAt = &t
	}
	return nil
}

// UUIDPk is a server-generated UUID primary key.
type UUIDPk struct {
	ID *uuid.UUID `bun:",pk,type:uuid,default:uuid_generate_v4()" json:"id,omitempty"`
}

// Base combines the two mixins above.
type Base struct {
	UUIDPk
	TimeStamped
}

var _ bun.BeforeAppendModelHook = (*Base)(nil)

func (b *Base) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return b.TimeStamped.BeforeAppendModel(ctx, query)
}
