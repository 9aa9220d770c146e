package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// RoomRepository exposes CRUD operations for rooms. Deleting a room deletes its bookings.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// BookingFilter narrows booking queries. Empty fields do not filter.
type BookingFilter struct {
	RoomID string
	UserID string
}

// BookingGuard inspects the bookings already stored for the target room, in
// creation order, before a write is applied. Returning an error aborts the write
// and the error is passed through to the caller unchanged.
type BookingGuard func(existing []Booking) error

// BookingRepository stores bookings. Listing returns bookings in creation order.
//
// CreateBooking and UpdateBooking run the guard and the write in one critical
// section, so no other write to the same store can slip in between them.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking, guard BookingGuard) error
	UpdateBooking(ctx context.Context, booking Booking, guard BookingGuard) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

// TokenRepository tracks revoked session tokens until they expire.
type TokenRepository interface {
	RevokeToken(ctx context.Context, token RevokedToken) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
	DeleteExpiredTokens(ctx context.Context, reference time.Time) error
}
