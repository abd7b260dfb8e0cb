package storage

import (
	"context"

	"github.com/uptrace/bun"
)

// Migrate creates every table this package owns if it does not already
// exist, grounded on src/internal/db/tables.go's BunTables.Add.
func Migrate(ctx context.Context, db *bun.DB) error {
	for _, model := range AllModels() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
