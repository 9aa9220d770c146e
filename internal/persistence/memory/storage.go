// Package memory provides a mutex-guarded, in-process implementation of the
// persistence repositories. It backs tests and the BOOKING_STORAGE=memory mode.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// Storage implements every persistence repository in memory.
type Storage struct {
	mu           sync.RWMutex
	users        map[string]persistence.User
	rooms        map[string]persistence.Room
	bookings     map[string]persistence.Booking
	bookingOrder []string
	revoked      map[string]persistence.RevokedToken
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		users:    make(map[string]persistence.User),
		rooms:    make(map[string]persistence.Room),
		bookings: make(map[string]persistence.Booking),
		revoked:  make(map[string]persistence.RevokedToken),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// Migrate initialises the storage. No-op for the in-memory implementation.
func (s *Storage) Migrate(context.Context) error {
	return nil
}

// --- UserRepository implementation ---

// CreateUser stores a new user.
func (s *Storage) CreateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("memory: user %s already exists: %w", user.ID, persistence.ErrDuplicate)
	}
	if err := s.ensureUniqueEmailLocked(user.ID, user.Email); err != nil {
		return err
	}

	s.users[user.ID] = user
	return nil
}

// UpdateUser updates an existing user.
func (s *Storage) UpdateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := s.ensureUniqueEmailLocked(user.ID, user.Email); err != nil {
		return err
	}

	user.CreatedAt = existing.CreatedAt
	s.users[user.ID] = user
	return nil
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address, ignoring case.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

// ListUsers returns all users ordered by CreatedAt ascending.
func (s *Storage) ListUsers(ctx context.Context) ([]persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})

	return users, nil
}

// DeleteUser removes a user and the bookings they own.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return persistence.ErrNotFound
	}

	delete(s.users, id)
	s.deleteBookingsLocked(func(b persistence.Booking) bool { return b.UserID == id })
	return nil
}

func (s *Storage) ensureUniqueEmailLocked(id, email string) error {
	for existingID, user := range s.users {
		if existingID == id {
			continue
		}
		if strings.EqualFold(user.Email, email) {
			return fmt.Errorf("memory: email %s already exists: %w", email, persistence.ErrDuplicate)
		}
	}
	return nil
}

// --- RoomRepository implementation ---

// CreateRoom stores a new meeting room.
func (s *Storage) CreateRoom(ctx context.Context, room persistence.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return fmt.Errorf("memory: room %s already exists: %w", room.ID, persistence.ErrDuplicate)
	}

	s.rooms[room.ID] = room
	return nil
}

// UpdateRoom updates an existing meeting room.
func (s *Storage) UpdateRoom(ctx context.Context, room persistence.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rooms[room.ID]
	if !ok {
		return persistence.ErrNotFound
	}

	room.CreatedAt = existing.CreatedAt
	s.rooms[room.ID] = room
	return nil
}

// GetRoom retrieves a room by ID.
func (s *Storage) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

// ListRooms returns all rooms ordered by name.
func (s *Storage) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name == rooms[j].Name {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].Name < rooms[j].Name
	})

	return rooms, nil
}

// DeleteRoom removes a room and every booking made for it.
func (s *Storage) DeleteRoom(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return persistence.ErrNotFound
	}

	delete(s.rooms, id)
	s.deleteBookingsLocked(func(b persistence.Booking) bool { return b.RoomID == id })
	return nil
}

// --- BookingRepository implementation ---

// CreateBooking runs guard against the room's bookings and stores booking when it passes.
func (s *Storage) CreateBooking(ctx context.Context, booking persistence.Booking, guard persistence.BookingGuard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[booking.ID]; ok {
		return fmt.Errorf("memory: booking %s already exists: %w", booking.ID, persistence.ErrDuplicate)
	}
	if err := s.checkBookingReferencesLocked(booking); err != nil {
		return err
	}
	if guard != nil {
		if err := guard(s.listBookingsLocked(persistence.BookingFilter{RoomID: booking.RoomID})); err != nil {
			return err
		}
	}

	s.bookings[booking.ID] = booking
	s.bookingOrder = append(s.bookingOrder, booking.ID)
	return nil
}

// UpdateBooking runs guard against the room's bookings and replaces booking when it passes.
// The owner and creation time of the stored booking are preserved.
func (s *Storage) UpdateBooking(ctx context.Context, booking persistence.Booking, guard persistence.BookingGuard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.bookings[booking.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	booking.UserID = existing.UserID
	booking.CreatedAt = existing.CreatedAt

	if err := s.checkBookingReferencesLocked(booking); err != nil {
		return err
	}
	if guard != nil {
		if err := guard(s.listBookingsLocked(persistence.BookingFilter{RoomID: booking.RoomID})); err != nil {
			return err
		}
	}

	s.bookings[booking.ID] = booking
	return nil
}

// GetBooking retrieves a booking by ID.
func (s *Storage) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	booking, ok := s.bookings[id]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return booking, nil
}

// ListBookings returns bookings matching filter in creation order.
func (s *Storage) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listBookingsLocked(filter), nil
}

// DeleteBooking removes a booking by ID.
func (s *Storage) DeleteBooking(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[id]; !ok {
		return persistence.ErrNotFound
	}
	s.deleteBookingsLocked(func(b persistence.Booking) bool { return b.ID == id })
	return nil
}

func (s *Storage) listBookingsLocked(filter persistence.BookingFilter) []persistence.Booking {
	out := make([]persistence.Booking, 0, len(s.bookingOrder))
	for _, id := range s.bookingOrder {
		booking := s.bookings[id]
		if filter.RoomID != "" && booking.RoomID != filter.RoomID {
			continue
		}
		if filter.UserID != "" && booking.UserID != filter.UserID {
			continue
		}
		out = append(out, booking)
	}
	return out
}

func (s *Storage) deleteBookingsLocked(match func(persistence.Booking) bool) {
	s.bookingOrder = slices.DeleteFunc(s.bookingOrder, func(id string) bool {
		if match(s.bookings[id]) {
			delete(s.bookings, id)
			return true
		}
		return false
	})
}

func (s *Storage) checkBookingReferencesLocked(booking persistence.Booking) error {
	if _, ok := s.rooms[booking.RoomID]; !ok {
		return fmt.Errorf("memory: room %s does not exist: %w", booking.RoomID, persistence.ErrForeignKeyViolation)
	}
	if _, ok := s.users[booking.UserID]; !ok {
		return fmt.Errorf("memory: user %s does not exist: %w", booking.UserID, persistence.ErrForeignKeyViolation)
	}
	return nil
}

// --- TokenRepository implementation ---

// RevokeToken records a revoked session token. Revoking a token twice keeps the first record.
func (s *Storage) RevokeToken(ctx context.Context, token persistence.RevokedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.revoked[token.TokenID]; !ok {
		s.revoked[token.TokenID] = token
	}
	return nil
}

// IsTokenRevoked reports whether tokenID was revoked.
func (s *Storage) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.revoked[tokenID]
	return ok, nil
}

// DeleteExpiredTokens drops revocations whose token expired at or before reference.
func (s *Storage) DeleteExpiredTokens(ctx context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, token := range s.revoked {
		if !token.ExpiresAt.After(reference) {
			delete(s.revoked, id)
		}
	}
	return nil
}
