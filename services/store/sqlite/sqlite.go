package sqlite

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"sjsage522/outletscraper/logger"
	"sjsage522/outletscraper/services/store"
)

const schema = `CREATE TABLE IF NOT EXISTS outlets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	operating_hours TEXT NOT NULL DEFAULT '',
	map_link TEXT NOT NULL DEFAULT '',
	latitude REAL,
	longitude REAL
)`

func init() {
	store.Register("sqlite", New)
}

// New opens a SQLite store. DSN is a file path or ":memory:".
func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// one connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)

	s, err := store.NewSQLStore(ctx, db, schema, logger.ForStore().WithField("driver", "sqlite"))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
