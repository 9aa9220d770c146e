package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

var testNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	dir := t.TempDir()
	dsn := "file:" + filepath.Join(dir, "booking.db")
	storage, err := Open(dsn)
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}

	t.Cleanup(func() {
		_ = storage.Close()
	})

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return storage
}

func seedUser(t *testing.T, storage *Storage, id, email string) persistence.User {
	t.Helper()

	user := persistence.User{
		ID:           id,
		Email:        email,
		DisplayName:  id,
		PasswordHash: "hash",
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	if err := storage.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user %s: %v", id, err)
	}
	return user
}

func seedRoom(t *testing.T, storage *Storage, id, name string) persistence.Room {
	t.Helper()

	room := persistence.Room{
		ID:        id,
		Name:      name,
		Location:  "Floor 3",
		TimeStart: "08:00",
		TimeEnd:   "20:00",
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	if err := storage.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("failed to seed room %s: %v", id, err)
	}
	return room
}

func TestStorage_MigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	if err := storage.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	version, dirty, err := storage.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != 2 || dirty {
		t.Fatalf("expected clean schema version 2, got %d (dirty=%v)", version, dirty)
	}
}

func TestStorage_SatisfiesRepositories(t *testing.T) {
	storage := newTestStorage(t)

	var _ persistence.UserRepository = storage
	var _ persistence.RoomRepository = storage
	var _ persistence.BookingRepository = storage
	var _ persistence.TokenRepository = storage

	if err := storage.Pool().Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestStorage_ForeignKeysEnabled(t *testing.T) {
	storage := newTestStorage(t)

	var enabled int
	if err := storage.Pool().DB().Get(&enabled, `PRAGMA foreign_keys`); err != nil {
		t.Fatalf("PRAGMA foreign_keys failed: %v", err)
	}
	if enabled != 1 {
		t.Fatalf("expected foreign keys to be enabled, got %d", enabled)
	}
}

func TestStorage_CloseIsSafeOnNil(t *testing.T) {
	var storage *Storage
	if err := storage.Close(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
