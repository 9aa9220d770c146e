package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

func newBooking(id, roomID, userID string) persistence.Booking {
	return persistence.Booking{
		ID:        id,
		Title:     "Standup " + id,
		Date:      "2024-03-04",
		StartTime: "10:00",
		EndTime:   "11:00",
		RoomID:    roomID,
		UserID:    userID,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
}

func TestBookingRepository_ListKeepsCreationOrder(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	seedUser(t, storage, "alice", "alice@example.com")
	seedUser(t, storage, "bob", "bob@example.com")
	seedRoom(t, storage, "lab-a", "Lab A")
	seedRoom(t, storage, "lab-b", "Lab B")

	for _, b := range []persistence.Booking{
		newBooking("z", "lab-a", "alice"),
		newBooking("a", "lab-b", "bob"),
		newBooking("m", "lab-a", "bob"),
	} {
		if err := storage.CreateBooking(ctx, b, nil); err != nil {
			t.Fatalf("CreateBooking %s failed: %v", b.ID, err)
		}
	}

	all, err := storage.ListBookings(ctx, persistence.BookingFilter{})
	if err != nil {
		t.Fatalf("ListBookings failed: %v", err)
	}
	if got := bookingIDs(all); got != "z,a,m" {
		t.Fatalf("expected creation order z,a,m, got %s", got)
	}

	byRoom, err := storage.ListBookings(ctx, persistence.BookingFilter{RoomID: "lab-a"})
	if err != nil {
		t.Fatalf("ListBookings by room failed: %v", err)
	}
	if got := bookingIDs(byRoom); got != "z,m" {
		t.Fatalf("expected z,m for lab-a, got %s", got)
	}

	byBoth, err := storage.ListBookings(ctx, persistence.BookingFilter{RoomID: "lab-a", UserID: "bob"})
	if err != nil {
		t.Fatalf("ListBookings by room and user failed: %v", err)
	}
	if got := bookingIDs(byBoth); got != "m" {
		t.Fatalf("expected m, got %s", got)
	}
}

func TestBookingRepository_GuardSeesRoomBookingsAndCanAbort(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	seedUser(t, storage, "alice", "alice@example.com")
	seedRoom(t, storage, "lab-a", "Lab A")
	seedRoom(t, storage, "lab-b", "Lab B")

	if err := storage.CreateBooking(ctx, newBooking("first", "lab-a", "alice"), nil); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}
	if err := storage.CreateBooking(ctx, newBooking("elsewhere", "lab-b", "alice"), nil); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}

	var seen []persistence.Booking
	errRejected := errors.New("rejected")
	err := storage.CreateBooking(ctx, newBooking("second", "lab-a", "alice"), func(existing []persistence.Booking) error {
		seen = existing
		return errRejected
	})
	if !errors.Is(err, errRejected) {
		t.Fatalf("expected guard error to pass through, got %v", err)
	}
	if got := bookingIDs(seen); got != "first" {
		t.Fatalf("guard should only see lab-a bookings, got %s", got)
	}
	if _, err := storage.GetBooking(ctx, "second"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("rejected booking must not be stored, got %v", err)
	}
}

func TestBookingRepository_UpdatePreservesOwner(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	seedUser(t, storage, "alice", "alice@example.com")
	seedUser(t, storage, "bob", "bob@example.com")
	seedRoom(t, storage, "lab-a", "Lab A")

	booking := newBooking("b1", "lab-a", "alice")
	if err := storage.CreateBooking(ctx, booking, nil); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}

	booking.UserID = "bob"
	booking.Title = "Retro"
	booking.RecurrenceRule = "RRULE:FREQ=WEEKLY;BYDAY=MO"
	booking.UpdatedAt = testNow.Add(time.Hour)
	if err := storage.UpdateBooking(ctx, booking, nil); err != nil {
		t.Fatalf("UpdateBooking failed: %v", err)
	}

	fetched, err := storage.GetBooking(ctx, "b1")
	if err != nil {
		t.Fatalf("GetBooking failed: %v", err)
	}
	if fetched.UserID != "alice" {
		t.Fatalf("owner must not change, got %s", fetched.UserID)
	}
	if fetched.Title != "Retro" || fetched.RecurrenceRule != "RRULE:FREQ=WEEKLY;BYDAY=MO" {
		t.Fatalf("unexpected booking after update: %#v", fetched)
	}
	if !fetched.CreatedAt.Equal(testNow) || !fetched.UpdatedAt.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("unexpected timestamps: %#v", fetched)
	}

	if err := storage.UpdateBooking(ctx, newBooking("missing", "lab-a", "alice"), nil); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBookingRepository_References(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	seedUser(t, storage, "alice", "alice@example.com")
	seedRoom(t, storage, "lab-a", "Lab A")

	if err := storage.CreateBooking(ctx, newBooking("b1", "nowhere", "alice"), nil); !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation for unknown room, got %v", err)
	}
	if err := storage.CreateBooking(ctx, newBooking("b1", "lab-a", "nobody"), nil); !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation for unknown user, got %v", err)
	}

	invalid := newBooking("b2", "lab-a", "alice")
	invalid.StartTime, invalid.EndTime = "12:00", "11:00"
	if err := storage.CreateBooking(ctx, invalid, nil); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for inverted times, got %v", err)
	}
}

func TestBookingRepository_CascadeDeletes(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	seedUser(t, storage, "alice", "alice@example.com")
	seedUser(t, storage, "bob", "bob@example.com")
	seedRoom(t, storage, "lab-a", "Lab A")
	seedRoom(t, storage, "lab-b", "Lab B")

	for _, b := range []persistence.Booking{
		newBooking("a1", "lab-a", "alice"),
		newBooking("b1", "lab-b", "bob"),
		newBooking("a2", "lab-b", "alice"),
	} {
		if err := storage.CreateBooking(ctx, b, nil); err != nil {
			t.Fatalf("CreateBooking %s failed: %v", b.ID, err)
		}
	}

	if err := storage.DeleteRoom(ctx, "lab-a"); err != nil {
		t.Fatalf("DeleteRoom failed: %v", err)
	}
	if err := storage.DeleteUser(ctx, "alice"); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	remaining, err := storage.ListBookings(ctx, persistence.BookingFilter{})
	if err != nil {
		t.Fatalf("ListBookings failed: %v", err)
	}
	if got := bookingIDs(remaining); got != "b1" {
		t.Fatalf("expected only b1 to remain, got %s", got)
	}

	if err := storage.DeleteBooking(ctx, "b1"); err != nil {
		t.Fatalf("DeleteBooking failed: %v", err)
	}
	if err := storage.DeleteBooking(ctx, "b1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func bookingIDs(bookings []persistence.Booking) string {
	var out string
	for i, b := range bookings {
		if i > 0 {
			out += ","
		}
		out += b.ID
	}
	return out
}
