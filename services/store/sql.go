package store

import (
	"context"
	"database/sql"
	"fmt"

	"sjsage522/outletscraper/internal/crawler"
	"sjsage522/outletscraper/logger"
	"sjsage522/outletscraper/pkg/errors"
)

// SQLStore implements Store on database/sql for drivers that use "?"
// placeholders (sqlite and mysql).
type SQLStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewSQLStore wraps db and creates the outlet table with schema
func NewSQLStore(ctx context.Context, db *sql.DB, schema string, log *logger.Logger) (*SQLStore, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.NewStorage("connect", "failed to reach database", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, errors.NewStorage("migrate", fmt.Sprintf("create table %s", Table), err)
	}
	return &SQLStore{db: db, logger: log}, nil
}

func (s *SQLStore) ReplaceAll(ctx context.Context, outlets []crawler.Outlet) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorage("replace", "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+Table); err != nil {
		return errors.NewStorage("replace", "clear outlets", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO "+Table+" (name, address, operating_hours, map_link) VALUES (?, ?, ?, ?)")
	if err != nil {
		return errors.NewStorage("replace", "prepare insert", err)
	}
	defer stmt.Close()

	for _, o := range outlets {
		if _, err := stmt.ExecContext(ctx, o.Name, o.Address, o.OperatingHours, o.MapLink); err != nil {
			return errors.NewStorage("replace", fmt.Sprintf("insert outlet %q", o.Name), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorage("replace", "commit", err)
	}
	s.logger.Info().Int("count", len(outlets)).Msg("Replaced stored outlets")
	return nil
}

func (s *SQLStore) List(ctx context.Context) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, address, operating_hours, map_link, latitude, longitude FROM "+Table+" ORDER BY id")
	if err != nil {
		return nil, errors.NewStorage("list", "query outlets", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Name, &r.Address, &r.OperatingHours, &r.MapLink, &r.Latitude, &r.Longitude); err != nil {
			return nil, errors.NewStorage("list", "scan outlet", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("list", "iterate outlets", err)
	}
	return out, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
