package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sjsage522/outletscraper/internal/crawler"
	"sjsage522/outletscraper/logger"
	"sjsage522/outletscraper/pkg/errors"
	"sjsage522/outletscraper/services/store"
)

const schema = `CREATE TABLE IF NOT EXISTS outlets (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	operating_hours TEXT NOT NULL DEFAULT '',
	map_link TEXT NOT NULL DEFAULT '',
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION
)`

var columns = []string{"name", "address", "operating_hours", "map_link"}

func init() {
	store.Register("postgres", New)
}

// Repo implements store.Store on a pgx connection pool
type Repo struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// New connects to Postgres and creates the outlet table
func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, errors.NewStorage("connect", "failed to create pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.NewStorage("connect", "failed to reach database", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, errors.NewStorage("migrate", fmt.Sprintf("create table %s", store.Table), err)
	}
	return &Repo{pool: pool, logger: logger.ForStore().WithField("driver", "postgres")}, nil
}

// ReplaceAll clears the table and bulk loads outlets with COPY
func (r *Repo) ReplaceAll(ctx context.Context, outlets []crawler.Outlet) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM "+store.Table); err != nil {
			return fmt.Errorf("clear outlets: %w", err)
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{store.Table}, columns,
			pgx.CopyFromSlice(len(outlets), func(i int) ([]any, error) {
				o := outlets[i]
				return []any{o.Name, o.Address, o.OperatingHours, o.MapLink}, nil
			}))
		if err != nil {
			return fmt.Errorf("copy outlets: %w", err)
		}
		return nil
	})
	if err != nil {
		return errors.NewStorage("replace", "replace outlets", err)
	}
	r.logger.Info().Int("count", len(outlets)).Msg("Replaced stored outlets")
	return nil
}

func (r *Repo) List(ctx context.Context) ([]store.Row, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, name, address, operating_hours, map_link, latitude, longitude FROM "+store.Table+" ORDER BY id")
	if err != nil {
		return nil, errors.NewStorage("list", "query outlets", err)
	}
	defer rows.Close()

	var out []store.Row
	for rows.Next() {
		var row store.Row
		if err := rows.Scan(&row.ID, &row.Name, &row.Address, &row.OperatingHours, &row.MapLink, &row.Latitude, &row.Longitude); err != nil {
			return nil, errors.NewStorage("list", "scan outlet", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("list", "iterate outlets", err)
	}
	return out, nil
}

func (r *Repo) Close() error {
	r.pool.Close()
	return nil
}
