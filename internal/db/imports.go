package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ResolveCityDatabase returns the db_name of the most recent successful GTFS
// import whose name matches city, from public.latest_successful_imports on
// the meta database.
func ResolveCityDatabase(ctx context.Context, meta *sql.DB, city string) (string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", fmt.Errorf("city is required")
	}
	q := `
SELECT db_name
FROM public.latest_successful_imports
WHERE db_name ILIKE '%' || $1 || '%'
ORDER BY imported_at DESC
LIMIT 1`
	var dbName sql.NullString
	if err := meta.QueryRowContext(ctx, q, city).Scan(&dbName); err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("no stops database found for city like %q", city)
		}
		return "", err
	}
	if !dbName.Valid || dbName.String == "" {
		return "", fmt.Errorf("empty db_name for city like %q", city)
	}
	return dbName.String, nil
}

// OpenForCity connects to dsn, resolves the newest import for city and
// returns a connection to that database. With an empty city it opens dsn.
func OpenForCity(ctx context.Context, dsn, city string) (*sql.DB, error) {
	if strings.TrimSpace(city) == "" {
		return Open(dsn)
	}
	meta, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	defer meta.Close()
	name, err := ResolveCityDatabase(ctx, meta, city)
	if err != nil {
		return nil, err
	}
	cityDSN, err := WithDBName(dsn, name)
	if err != nil {
		return nil, fmt.Errorf("build city dsn: %w", err)
	}
	return Open(cityDSN)
}

// WithDBName swaps the database in a postgres URL DSN, keeping credentials
// and query parameters. A DSN without a scheme is read as postgres://.
func WithDBName(dsn, database string) (string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", errors.New("empty DSN")
	}
	if !strings.Contains(dsn, "://") {
		dsn = "postgres://" + dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("unsupported dsn scheme %q", u.Scheme)
	}
	u.Path = "/" + strings.TrimPrefix(database, "/")
	return u.String(), nil
}
