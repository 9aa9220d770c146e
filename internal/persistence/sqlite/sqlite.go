// Package sqlite implements the persistence repositories on top of SQLite using
// the pure Go modernc.org/sqlite driver. Schema changes are applied with
// golang-migrate from the embedded migrations directory.
package sqlite

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage bundles every SQLite-backed repository over a single connection pool.
type Storage struct {
	pool *ConnectionPool

	*UserRepository
	*RoomRepository
	*BookingRepository
	*TokenRepository
}

// Open connects to the database identified by dsn. Call Migrate before use.
func Open(dsn string) (*Storage, error) {
	pool, err := NewConnectionPool(dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(context.Background()); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	return &Storage{
		pool:              pool,
		UserRepository:    NewUserRepository(pool),
		RoomRepository:    NewRoomRepository(pool),
		BookingRepository: NewBookingRepository(pool),
		TokenRepository:   NewTokenRepository(pool),
	}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

// Pool exposes the connection pool for callers that need raw access.
func (s *Storage) Pool() *ConnectionPool {
	return s.pool
}

// Migrate applies every pending migration. Running it on an up-to-date schema is a no-op.
func (s *Storage) Migrate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(s.pool.DB().DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to prepare migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	// m.Close would also close the shared database handle, so only the source is released.
	defer source.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// SchemaVersion reports the currently applied migration version.
func (s *Storage) SchemaVersion(ctx context.Context) (uint, bool, error) {
	var row struct {
		Version uint `db:"version"`
		Dirty   bool `db:"dirty"`
	}
	if err := s.pool.DB().GetContext(ctx, &row, `SELECT version, dirty FROM schema_migrations LIMIT 1`); err != nil {
		return 0, false, NewErrorMapper().MapError(err)
	}
	return row.Version, row.Dirty, nil
}
