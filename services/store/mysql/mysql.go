package mysql

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"sjsage522/outletscraper/logger"
	"sjsage522/outletscraper/services/store"
)

const schema = `CREATE TABLE IF NOT EXISTS outlets (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	name VARCHAR(255) NOT NULL DEFAULT '',
	address TEXT NOT NULL,
	operating_hours TEXT NOT NULL,
	map_link TEXT NOT NULL,
	latitude DOUBLE NULL,
	longitude DOUBLE NULL
) CHARACTER SET utf8mb4`

func init() {
	store.Register("mysql", New)
}

// New opens a MySQL store. DSN uses the go-sql-driver format,
// e.g. "user:pass@tcp(localhost:3306)/outlets".
func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)

	s, err := store.NewSQLStore(ctx, db, schema, logger.ForStore().WithField("driver", "mysql"))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
