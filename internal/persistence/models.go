package persistence

import "time"

// User represents an account allowed to book rooms.
type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	DisplayName  string    `db:"display_name"`
	PasswordHash string    `db:"password_hash"`
	IsAdmin      bool      `db:"is_admin"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Room represents a bookable meeting room. TimeStart and TimeEnd hold the daily
// availability window as HH:MM strings.
type Room struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Location  string    `db:"location"`
	TimeStart string    `db:"time_start"`
	TimeEnd   string    `db:"time_end"`
	Purpose   string    `db:"purpose"`
	Image     string    `db:"image"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Booking represents a reservation of a room. Date is the YYYY-MM-DD anchor,
// StartTime and EndTime are HH:MM, and RecurrenceRule holds the rule string
// exactly as submitted (empty for a one-off booking).
type Booking struct {
	ID             string    `db:"id"`
	Title          string    `db:"title"`
	Date           string    `db:"date"`
	StartTime      string    `db:"start_time"`
	EndTime        string    `db:"end_time"`
	RoomID         string    `db:"room_id"`
	Description    string    `db:"description"`
	RecurrenceRule string    `db:"recurrence_rule"`
	UserID         string    `db:"user_id"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// RevokedToken records a session token that was logged out before it expired.
type RevokedToken struct {
	TokenID   string    `db:"token_id"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	RevokedAt time.Time `db:"revoked_at"`
}
