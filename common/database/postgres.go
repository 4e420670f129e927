// Package database holds the Postgres plumbing shared by repositories:
// pool construction, embedded migrations and operation timeouts.
package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// QueryTimeout bounds a single read, including the startup ping.
	QueryTimeout = 5 * time.Second
	// WriteTimeout bounds a write or a whole transaction, such as a thread
	// stored with its first message.
	WriteTimeout = 10 * time.Second
	// MigrationLockTimeout bounds the wait for the migration lock held by
	// another instance starting at the same time.
	MigrationLockTimeout = 30 * time.Second
)

// QueryContext derives a context bounded by QueryTimeout.
func QueryContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, QueryTimeout)
}

// WriteContext derives a context bounded by WriteTimeout.
func WriteContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, WriteTimeout)
}

// Connect opens a pgx pool and pings it.
func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := QueryContext(ctx)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Direction selects which way Migrate moves the schema.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Migrate applies the migrations found in migrations (a directory of
// NNN_name.up.sql / NNN_name.down.sql files) to the database.
// No pending migrations is not an error.
func Migrate(migrations fs.FS, dir string, databaseURL string, direction Direction) error {
	src, err := iofs.New(migrations, dir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("initialize migrations: %w", err)
	}
	defer m.Close()
	m.LockTimeout = MigrationLockTimeout

	switch direction {
	case Up:
		err = m.Up()
	case Down:
		err = m.Down()
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	return nil
}
