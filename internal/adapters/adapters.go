// Package adapters bridges the application services to the persistence
// repositories, converting between the wire-format persistence models and the
// typed application models.
package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/civil"
	"github.com/example/room-booking/internal/persistence"
)

// Store is the full set of repositories the services need.
type Store interface {
	persistence.UserRepository
	persistence.RoomRepository
	persistence.BookingRepository
	persistence.TokenRepository
}

// UserRepository adapts persistence.UserRepository to the user, auth and booking services.
type UserRepository struct {
	repo persistence.UserRepository
}

// NewUserRepository wraps repo.
func NewUserRepository(repo persistence.UserRepository) *UserRepository {
	return &UserRepository{repo: repo}
}

func (a *UserRepository) CreateUser(ctx context.Context, creds application.UserCredentials) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(creds)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, creds.User.ID)
}

func (a *UserRepository) UpdateUser(ctx context.Context, creds application.UserCredentials) (application.User, error) {
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(creds)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, creds.User.ID)
}

func (a *UserRepository) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *UserRepository) GetUserCredentials(ctx context.Context, id string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{User: toApplicationUser(stored), PasswordHash: stored.PasswordHash}, nil
}

func (a *UserRepository) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{User: toApplicationUser(stored), PasswordHash: stored.PasswordHash}, nil
}

func (a *UserRepository) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

func (a *UserRepository) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

// RoomRepository adapts persistence.RoomRepository to the room and booking services.
type RoomRepository struct {
	repo persistence.RoomRepository
}

// NewRoomRepository wraps repo.
func NewRoomRepository(repo persistence.RoomRepository) *RoomRepository {
	return &RoomRepository{repo: repo}
}

func (a *RoomRepository) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.CreateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *RoomRepository) UpdateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.UpdateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *RoomRepository) GetRoom(ctx context.Context, id string) (application.Room, error) {
	stored, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored)
}

func (a *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	return a.repo.DeleteRoom(ctx, id)
}

func (a *RoomRepository) ListRooms(ctx context.Context) ([]application.Room, error) {
	models, err := a.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		room, err := toApplicationRoom(model)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// BookingRepository adapts persistence.BookingRepository to the booking service.
type BookingRepository struct {
	repo persistence.BookingRepository
}

// NewBookingRepository wraps repo.
func NewBookingRepository(repo persistence.BookingRepository) *BookingRepository {
	return &BookingRepository{repo: repo}
}

func (a *BookingRepository) CreateBooking(ctx context.Context, booking application.Booking, guard application.BookingGuard) (application.Booking, error) {
	if err := a.repo.CreateBooking(ctx, toPersistenceBooking(booking), adaptGuard(guard)); err != nil {
		return application.Booking{}, err
	}
	return a.GetBooking(ctx, booking.ID)
}

func (a *BookingRepository) UpdateBooking(ctx context.Context, booking application.Booking, guard application.BookingGuard) (application.Booking, error) {
	if err := a.repo.UpdateBooking(ctx, toPersistenceBooking(booking), adaptGuard(guard)); err != nil {
		return application.Booking{}, err
	}
	return a.GetBooking(ctx, booking.ID)
}

func (a *BookingRepository) GetBooking(ctx context.Context, id string) (application.Booking, error) {
	stored, err := a.repo.GetBooking(ctx, id)
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(stored)
}

func (a *BookingRepository) ListBookings(ctx context.Context, filter application.BookingFilter) ([]application.Booking, error) {
	models, err := a.repo.ListBookings(ctx, persistence.BookingFilter{RoomID: filter.RoomID, UserID: filter.UserID})
	if err != nil {
		return nil, err
	}
	return toApplicationBookings(models)
}

func (a *BookingRepository) DeleteBooking(ctx context.Context, id string) error {
	return a.repo.DeleteBooking(ctx, id)
}

func adaptGuard(guard application.BookingGuard) persistence.BookingGuard {
	if guard == nil {
		return nil
	}
	return func(existing []persistence.Booking) error {
		bookings, err := toApplicationBookings(existing)
		if err != nil {
			return err
		}
		return guard(bookings)
	}
}

// TokenRevocationStore adapts persistence.TokenRepository to the auth service.
type TokenRevocationStore struct {
	repo persistence.TokenRepository
}

// NewTokenRevocationStore wraps repo.
func NewTokenRevocationStore(repo persistence.TokenRepository) *TokenRevocationStore {
	return &TokenRevocationStore{repo: repo}
}

func (a *TokenRevocationStore) RevokeToken(ctx context.Context, tokenID, userID string, expiresAt, revokedAt time.Time) error {
	return a.repo.RevokeToken(ctx, persistence.RevokedToken{
		TokenID:   tokenID,
		UserID:    userID,
		ExpiresAt: expiresAt.UTC(),
		RevokedAt: revokedAt.UTC(),
	})
}

func (a *TokenRevocationStore) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	return a.repo.IsTokenRevoked(ctx, tokenID)
}

func (a *TokenRevocationStore) DeleteExpiredTokens(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredTokens(ctx, reference.UTC())
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		IsAdmin:     model.IsAdmin,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceUser(creds application.UserCredentials) persistence.User {
	return persistence.User{
		ID:           creds.User.ID,
		Email:        creds.User.Email,
		DisplayName:  creds.User.DisplayName,
		PasswordHash: creds.PasswordHash,
		IsAdmin:      creds.User.IsAdmin,
		CreatedAt:    creds.User.CreatedAt.UTC(),
		UpdatedAt:    creds.User.UpdatedAt.UTC(),
	}
}

func toApplicationRoom(model persistence.Room) (application.Room, error) {
	room := application.Room{
		ID:        model.ID,
		Name:      model.Name,
		Location:  model.Location,
		Purpose:   model.Purpose,
		Image:     model.Image,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
	var err error
	if room.TimeStart, err = parseOptionalTime(model.TimeStart); err != nil {
		return application.Room{}, fmt.Errorf("room %s: opening time: %w", model.ID, err)
	}
	if room.TimeEnd, err = parseOptionalTime(model.TimeEnd); err != nil {
		return application.Room{}, fmt.Errorf("room %s: closing time: %w", model.ID, err)
	}
	return room, nil
}

func toPersistenceRoom(room application.Room) persistence.Room {
	model := persistence.Room{
		ID:        room.ID,
		Name:      room.Name,
		Location:  room.Location,
		Purpose:   room.Purpose,
		Image:     room.Image,
		CreatedAt: room.CreatedAt.UTC(),
		UpdatedAt: room.UpdatedAt.UTC(),
	}
	if room.HasHours() {
		model.TimeStart = room.TimeStart.String()
		model.TimeEnd = room.TimeEnd.String()
	}
	return model
}

func toApplicationBooking(model persistence.Booking) (application.Booking, error) {
	date, err := civil.ParseDate(model.Date)
	if err != nil {
		return application.Booking{}, fmt.Errorf("booking %s: %w", model.ID, err)
	}
	start, err := civil.ParseTimeOfDay(model.StartTime)
	if err != nil {
		return application.Booking{}, fmt.Errorf("booking %s: start time: %w", model.ID, err)
	}
	end, err := civil.ParseTimeOfDay(model.EndTime)
	if err != nil {
		return application.Booking{}, fmt.Errorf("booking %s: end time: %w", model.ID, err)
	}
	return application.Booking{
		ID:             model.ID,
		Title:          model.Title,
		Date:           date,
		StartTime:      start,
		EndTime:        end,
		RoomID:         model.RoomID,
		Description:    model.Description,
		RecurrenceRule: model.RecurrenceRule,
		UserID:         model.UserID,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}, nil
}

func toApplicationBookings(models []persistence.Booking) ([]application.Booking, error) {
	bookings := make([]application.Booking, 0, len(models))
	for _, model := range models {
		booking, err := toApplicationBooking(model)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, nil
}

func toPersistenceBooking(booking application.Booking) persistence.Booking {
	return persistence.Booking{
		ID:             booking.ID,
		Title:          booking.Title,
		Date:           booking.Date.String(),
		StartTime:      booking.StartTime.String(),
		EndTime:        booking.EndTime.String(),
		RoomID:         booking.RoomID,
		Description:    booking.Description,
		RecurrenceRule: booking.RecurrenceRule,
		UserID:         booking.UserID,
		CreatedAt:      booking.CreatedAt.UTC(),
		UpdatedAt:      booking.UpdatedAt.UTC(),
	}
}

func parseOptionalTime(value string) (civil.TimeOfDay, error) {
	if value == "" {
		return 0, nil
	}
	return civil.ParseTimeOfDay(value)
}
