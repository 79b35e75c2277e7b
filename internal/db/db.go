// Package db is the Postgres stop repository, including resolution of the
// per-city database produced by the GTFS importer.
package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const pingTimeout = 5 * time.Second

// Open returns a pool sized for short stop lookups. It does not connect;
// call Ping for that.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return db.PingContext(ctx)
}

// columnSet reports which of cols exist on schema.table.
func columnSet(ctx context.Context, db *sql.DB, schema, table string, cols ...string) (map[string]bool, error) {
	found := make(map[string]bool, len(cols))
	if len(cols) == 0 {
		return found, nil
	}
	rows, err := db.QueryContext(ctx, `SELECT column_name FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2 AND column_name = ANY($3)`, schema, table, cols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		found[name] = true
	}
	return found, rows.Err()
}
