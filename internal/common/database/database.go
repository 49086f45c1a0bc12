// internal/common/database/database.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"incompat-report/internal/common/config"
	apperrors "incompat-report/internal/common/errors"
)

// Opener hands out a fresh connection per call. Callers close what they open.
type Opener interface {
	Open(ctx context.Context) (*sql.DB, error)
	Location() string
}

// OpenerFunc adapts a function to Opener, mainly for tests.
type OpenerFunc func(ctx context.Context) (*sql.DB, error)

func (f OpenerFunc) Open(ctx context.Context) (*sql.DB, error) { return f(ctx) }

func (f OpenerFunc) Location() string { return "custom" }

// Source opens the configured SCIL store.
type Source struct {
	cfg config.DatabaseConfig
}

func NewSource(cfg config.DatabaseConfig) *Source {
	return &Source{cfg: cfg}
}

// Location is what the report prints as "Base de datos". Postgres URLs are
// shown without their password.
func (s *Source) Location() string {
	return s.redactedLocation()
}

// Open connects and pings. A sqlite path that does not exist is rejected
// instead of letting the driver create an empty database.
func (s *Source) Open(ctx context.Context) (*sql.DB, error) {
	driverName := s.cfg.Driver
	switch driverName {
	case config.DriverSQLite:
		if _, err := os.Stat(s.cfg.Path); err != nil {
			return nil, apperrors.NewDatabaseConnectionFailedError(s.cfg.Path, err)
		}
	case config.DriverPostgres:
	default:
		return nil, apperrors.NewConfigInvalidError(fmt.Sprintf("unsupported database driver %q", driverName))
	}

	db, err := sql.Open(driverName, s.cfg.Path)
	if err != nil {
		return nil, apperrors.NewDatabaseConnectionFailedError(s.redactedLocation(), err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.NewDatabaseConnectionFailedError(s.redactedLocation(), err)
	}
	return db, nil
}

// redactedLocation keeps postgres DSNs (which may carry a password) out of errors.
func (s *Source) redactedLocation() string {
	if s.cfg.Driver != config.DriverPostgres {
		return s.cfg.Path
	}
	if u, err := url.Parse(s.cfg.Path); err == nil && u.Scheme != "" {
		return u.Redacted()
	}
	return "postgres"
}
