package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/xavierca1/kviz-leads/internal/entity"
)

// Pool is the subset of *pgxpool.Pool used by the repository, so tests can
// swap in pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// LeadStore is a lead repository that also owns its connection and schema.
type LeadStore interface {
	entity.LeadRepository
	Migrate(ctx context.Context) error
	Close() error
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open builds the lead store for driver. Connections are lazy: an
// unreachable Postgres is not an error here, it shows up in Ping.
func Open(ctx context.Context, driver, dsn string, maxConns int32) (LeadStore, error) {
	switch driver {
	case DriverPostgres, "":
		pool, err := NewPostgresPool(ctx, dsn, maxConns)
		if err != nil {
			return nil, err
		}
		return NewPostgresLeadRepository(pool), nil
	case DriverSQLite:
		return NewSQLiteLeadRepository(dsn)
	default:
		return nil, eris.Errorf("database: unknown driver %q", driver)
	}
}

func NewPostgresPool(ctx context.Context, connString string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	cfg.MaxConns = maxConns
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	return pool, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
