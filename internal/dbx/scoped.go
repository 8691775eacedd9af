package dbx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrUnsupportedURI is returned for connection URIs whose scheme has no driver.
var ErrUnsupportedURI = errors.New("unsupported database uri")

// Queryer is what read-only repositories need from a sqlx handle.
// *sqlx.DB and *sqlx.Tx both satisfy it.
type Queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
	DriverName() string
}

// ResolveURI maps a connection URI to a registered driver name and the DSN
// that driver expects.
//
//	postgres://... | postgresql://...  -> pgx
//	sqlite://path | file:...           -> sqlite
func ResolveURI(uri string) (driver, dsn string, err error) {
	uri = strings.TrimSpace(uri)
	switch {
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		return "pgx", uri, nil
	case strings.HasPrefix(uri, "sqlite://"):
		path := strings.TrimPrefix(uri, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("%w: empty sqlite path", ErrUnsupportedURI)
		}
		return "sqlite", path, nil
	case strings.HasPrefix(uri, "file:"):
		return "sqlite", uri, nil
	default:
		return "", "", ErrUnsupportedURI
	}
}

// Connect opens and pings the database behind uri.
func Connect(ctx context.Context, uri string) (*sqlx.DB, error) {
	driver, dsn, err := ResolveURI(uri)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	return db, nil
}

// WithDB connects to uri, runs fn and always closes the connection before
// returning, on success, error or panic.
func WithDB(ctx context.Context, uri string, fn func(ctx context.Context, db *sqlx.DB) error) (err error) {
	db, err := Connect(ctx, uri)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(ctx, db)
}
