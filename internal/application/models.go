package application

import (
	"time"

	"github.com/example/room-booking/internal/civil"
	"github.com/example/room-booking/internal/recurrence"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// CanModify reports whether the principal may change a resource owned by ownerID.
func (p Principal) CanModify(ownerID string) bool {
	return p.IsAdmin || (p.UserID != "" && p.UserID == ownerID)
}

// Booking represents a reservation of a room, either a one-off slot or a series
// anchored at Date. RecurrenceRule is kept exactly as submitted.
type Booking struct {
	ID             string
	Title          string
	Date           civil.Date
	StartTime      civil.TimeOfDay
	EndTime        civil.TimeOfDay
	RoomID         string
	Description    string
	RecurrenceRule string
	UserID         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Rule returns the parsed recurrence rule, or nil for a one-off booking.
func (b Booking) Rule() *recurrence.Rule {
	return recurrence.ParseOptional(b.RecurrenceRule)
}

// IsRecurring reports whether the booking repeats.
func (b Booking) IsRecurring() bool {
	return b.Rule() != nil
}

// BookingInput captures caller provided booking fields in their wire form.
// UserID is optional and defaults to the acting principal.
type BookingInput struct {
	Title          string
	Date           string
	StartTime      string
	EndTime        string
	RoomID         string
	Description    string
	RecurrenceRule string
	UserID         string
}

// BookingPatch carries the fields of an update. Nil fields keep their stored value;
// an empty RecurrenceRule turns a series back into a one-off booking.
type BookingPatch struct {
	Title          *string
	Date           *string
	StartTime      *string
	EndTime        *string
	RoomID         *string
	Description    *string
	RecurrenceRule *string
}

// ConflictReport is the outcome of a conflict check. When OutsideRoomHours is set
// Conflicts is empty.
type ConflictReport struct {
	HasConflict      bool
	OutsideRoomHours bool
	Conflicts        []Booking
}

// Occurrence is one dated instance of a booking.
type Occurrence struct {
	Booking Booking
	Date    civil.Date
}

// CreateBookingParams wraps the data required to create a booking.
type CreateBookingParams struct {
	Principal Principal
	Input     BookingInput
}

// UpdateBookingParams wraps the data required to update a booking.
type UpdateBookingParams struct {
	Principal Principal
	BookingID string
	Patch     BookingPatch
}

// ListBookingsParams wraps the filters accepted when listing bookings.
type ListBookingsParams struct {
	Principal Principal
	RoomID    string
	UserID    string
}

// CheckConflictParams wraps a pre-submit conflict check. ExcludeID names the
// booking being edited, if any.
type CheckConflictParams struct {
	Principal Principal
	Input     BookingInput
	ExcludeID string
}

// CalendarParams selects the occurrences to render. RoomID is optional.
type CalendarParams struct {
	Principal Principal
	RoomID    string
	From      civil.Date
	To        civil.Date
}

// RoomInput captures caller provided room fields. TimeStart and TimeEnd are HH:MM;
// leaving both empty makes the room available all day.
type RoomInput struct {
	Name      string
	Location  string
	TimeStart string
	TimeEnd   string
	Purpose   string
	Image     string
}

// Room represents a catalog entry for a bookable meeting room.
type Room struct {
	ID        string
	Name      string
	Location  string
	TimeStart civil.TimeOfDay
	TimeEnd   civil.TimeOfDay
	Purpose   string
	Image     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasHours reports whether the room restricts bookings to a daily window.
func (r Room) HasHours() bool {
	return r.TimeStart != 0 || r.TimeEnd != 0
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Input     RoomInput
}

// UserInput captures caller provided user attributes. Password is required on
// create and optional on update.
type UserInput struct {
	Email       string
	DisplayName string
	Password    string
	IsAdmin     bool
}

// User represents an account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update a user.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// Session represents a signed session token issued to a user.
type Session struct {
	ID        string
	UserID    string
	IsAdmin   bool
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}
