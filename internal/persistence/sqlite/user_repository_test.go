package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	user := persistence.User{
		ID:           "user-1",
		Email:        "alice@example.com",
		DisplayName:  "Alice",
		PasswordHash: "hash",
		IsAdmin:      true,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	if err := storage.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	fetched, err := storage.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if fetched.Email != user.Email || !fetched.IsAdmin || fetched.PasswordHash != "hash" {
		t.Fatalf("unexpected user retrieved: %#v", fetched)
	}
	if !fetched.CreatedAt.Equal(testNow) {
		t.Fatalf("expected created_at %v, got %v", testNow, fetched.CreatedAt)
	}
}

func TestUserRepository_EmailIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	seedUser(t, storage, "user-1", "Alice@Example.com")

	fetched, err := storage.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if fetched.ID != "user-1" {
		t.Fatalf("unexpected user: %#v", fetched)
	}

	duplicate := persistence.User{ID: "user-2", Email: "ALICE@example.com", DisplayName: "Other", PasswordHash: "x", CreatedAt: testNow, UpdatedAt: testNow}
	if err := storage.CreateUser(ctx, duplicate); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestUserRepository_UpdateKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	user := seedUser(t, storage, "user-1", "alice@example.com")

	user.DisplayName = "Alice Updated"
	user.CreatedAt = testNow.Add(time.Hour)
	user.UpdatedAt = testNow.Add(time.Minute)
	if err := storage.UpdateUser(ctx, user); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	fetched, err := storage.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if fetched.DisplayName != "Alice Updated" {
		t.Fatalf("expected updated display name, got %q", fetched.DisplayName)
	}
	if !fetched.CreatedAt.Equal(testNow) || !fetched.UpdatedAt.Equal(testNow.Add(time.Minute)) {
		t.Fatalf("unexpected timestamps: %#v", fetched)
	}

	missing := persistence.User{ID: "ghost", Email: "ghost@example.com", PasswordHash: "x"}
	if err := storage.UpdateUser(ctx, missing); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	seedUser(t, storage, "user-b", "b@example.com")
	seedUser(t, storage, "user-a", "a@example.com")

	users, err := storage.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 2 || users[0].ID != "user-a" || users[1].ID != "user-b" {
		t.Fatalf("unexpected users: %#v", users)
	}

	if err := storage.DeleteUser(ctx, "user-a"); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if err := storage.DeleteUser(ctx, "user-a"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := storage.GetUser(ctx, "user-a"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
