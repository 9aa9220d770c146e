package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/civil"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/memory"
)

func TestRoomRepositoryRoundTripsHours(t *testing.T) {
	ctx := context.Background()
	rooms := NewRoomRepository(memory.New())

	open, err := rooms.CreateRoom(ctx, application.Room{ID: "open", Name: "Atrium"})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if open.HasHours() {
		t.Fatalf("expected room without hours, got %v-%v", open.TimeStart, open.TimeEnd)
	}

	lab, err := rooms.CreateRoom(ctx, application.Room{
		ID:        "lab",
		Name:      "Lab A",
		TimeStart: civil.NewTimeOfDay(8, 0),
		TimeEnd:   civil.NewTimeOfDay(18, 0),
	})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if lab.TimeStart.String() != "08:00" || lab.TimeEnd.String() != "18:00" {
		t.Fatalf("unexpected hours %v-%v", lab.TimeStart, lab.TimeEnd)
	}
}

func TestRoomRepositoryRejectsCorruptHours(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	if err := store.CreateRoom(ctx, persistence.Room{ID: "bad", Name: "Bad", TimeStart: "8am", TimeEnd: "18:00"}); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	if _, err := NewRoomRepository(store).GetRoom(ctx, "bad"); err == nil {
		t.Fatal("expected an error for a malformed opening time")
	}
}

func TestBookingRepositoryConvertsGuard(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	if err := store.CreateUser(ctx, persistence.User{ID: "alice", Email: "alice@example.com"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := store.CreateRoom(ctx, persistence.Room{ID: "room", Name: "Room"}); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	bookings := NewBookingRepository(store)
	first := application.Booking{
		ID:        "first",
		Title:     "Standup",
		Date:      civil.MustParseDate("2024-03-04"),
		StartTime: civil.NewTimeOfDay(10, 0),
		EndTime:   civil.NewTimeOfDay(11, 0),
		RoomID:    "room",
		UserID:    "alice",
	}
	stored, err := bookings.CreateBooking(ctx, first, nil)
	if err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}
	if stored.Date != first.Date || stored.EndTime != first.EndTime {
		t.Fatalf("unexpected stored booking %+v", stored)
	}

	errTaken := errors.New("taken")
	second := first
	second.ID = "second"
	_, err = bookings.CreateBooking(ctx, second, func(existing []application.Booking) error {
		if len(existing) != 1 || existing[0].StartTime != civil.NewTimeOfDay(10, 0) {
			t.Fatalf("guard received %+v", existing)
		}
		return errTaken
	})
	if !errors.Is(err, errTaken) {
		t.Fatalf("expected guard error, got %v", err)
	}

	listed, err := bookings.ListBookings(ctx, application.BookingFilter{UserID: "alice"})
	if err != nil {
		t.Fatalf("ListBookings failed: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "first" {
		t.Fatalf("expected only the first booking, got %+v", listed)
	}
}

func TestUserRepositoryExposesCredentials(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(memory.New())

	creds := application.UserCredentials{
		User:         application.User{ID: "u1", Email: "Alice@Example.com", DisplayName: "Alice", IsAdmin: true},
		PasswordHash: "hash",
	}
	if _, err := users.CreateUser(ctx, creds); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	found, err := users.GetUserCredentialsByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserCredentialsByEmail failed: %v", err)
	}
	if found.PasswordHash != "hash" || !found.User.IsAdmin {
		t.Fatalf("unexpected credentials %+v", found)
	}

	if _, err := users.GetUser(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
