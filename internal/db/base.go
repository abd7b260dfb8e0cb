// Package db wires the bun ORM connection to Postgres, grounded on
// src/internal/db/base.go.
package db

import (
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/smilemakc/toolflow/internal/config"
)

var (
	bunDB   *bun.DB
	bunOnce sync.Once
)

func initBun() {
	cfg := config.App()
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithAddr(cfg.Database.Host+":"+cfg.Database.Port),
		pgdriver.WithInsecure(true),
		pgdriver.WithDatabase(cfg.Database.Name),
		pgdriver.WithPassword(cfg.Database.Password),
		pgdriver.WithUser(cfg.Database.User),
		pgdriver.WithTimeout(5*time.Second),
		pgdriver.WithDialTimeout(5*time.Second),
		pgdriver.WithReadTimeout(5*time.Second),
		pgdriver.WithWriteTimeout(5*time.Second),
	))
	bunDB = bun.NewDB(sqldb, pgdialect.New())
	bunDB.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithVerbose(cfg.Database.Debug),
	))
	if _, err := bunDB.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`); err != nil {
		log.Fatal().Err(err).Msg("add uuid-ossp extension")
	}
}

// DB returns the process-wide *bun.DB, connecting on first use.
func DB() *bun.DB {
	bunOnce.Do(initBun)
	return bunDB
}

// OnShutdown closes the pooled connection; call once at process exit.
func OnShutdown() error {
	return DB().Close()
}
