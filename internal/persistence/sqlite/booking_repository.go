package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/example/room-booking/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository using SQLite.
// Bookings are listed in insertion order, which SQLite tracks through rowid.
type BookingRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewBookingRepository creates a new SQLite booking repository.
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

type bookingRow struct {
	ID             string `db:"id"`
	Title          string `db:"title"`
	Date           string `db:"date"`
	StartTime      string `db:"start_time"`
	EndTime        string `db:"end_time"`
	RoomID         string `db:"room_id"`
	Description    string `db:"description"`
	RecurrenceRule string `db:"recurrence_rule"`
	UserID         string `db:"user_id"`
	CreatedAt      string `db:"created_at"`
	UpdatedAt      string `db:"updated_at"`
}

func newBookingRow(booking persistence.Booking) bookingRow {
	return bookingRow{
		ID:             booking.ID,
		Title:          booking.Title,
		Date:           booking.Date,
		StartTime:      booking.StartTime,
		EndTime:        booking.EndTime,
		RoomID:         booking.RoomID,
		Description:    booking.Description,
		RecurrenceRule: booking.RecurrenceRule,
		UserID:         booking.UserID,
		CreatedAt:      formatTime(booking.CreatedAt),
		UpdatedAt:      formatTime(booking.UpdatedAt),
	}
}

func (row bookingRow) toPersistence() (persistence.Booking, error) {
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return persistence.Booking{}, err
	}
	updatedAt, err := parseTime(row.UpdatedAt)
	if err != nil {
		return persistence.Booking{}, err
	}
	return persistence.Booking{
		ID:             row.ID,
		Title:          row.Title,
		Date:           row.Date,
		StartTime:      row.StartTime,
		EndTime:        row.EndTime,
		RoomID:         row.RoomID,
		Description:    row.Description,
		RecurrenceRule: row.RecurrenceRule,
		UserID:         row.UserID,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

const bookingColumns = `id, title, date, start_time, end_time, room_id, description, recurrence_rule, user_id, created_at, updated_at`

// CreateBooking runs guard against the room's bookings and inserts booking when it
// passes. Both happen inside one transaction.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking, guard persistence.BookingGuard) error {
	if booking.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			if found, err := exists(ctx, tx, `SELECT COUNT(1) FROM bookings WHERE id = ?`, booking.ID); err != nil {
				return err
			} else if found {
				return fmt.Errorf("sqlite: booking %s already exists: %w", booking.ID, persistence.ErrDuplicate)
			}
			if err := checkBookingReferences(ctx, tx, booking); err != nil {
				return err
			}
			if err := runGuard(ctx, tx, booking.RoomID, guard); err != nil {
				return err
			}

			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO bookings (`+bookingColumns+`)
				VALUES (:id, :title, :date, :start_time, :end_time, :room_id, :description,
				        :recurrence_rule, :user_id, :created_at, :updated_at)`,
				newBookingRow(booking))
			return err
		})
	})
}

// UpdateBooking runs guard against the room's bookings and replaces booking when it
// passes. The owner and creation time of the stored booking are preserved.
func (r *BookingRepository) UpdateBooking(ctx context.Context, booking persistence.Booking, guard persistence.BookingGuard) error {
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			var owner struct {
				UserID string `db:"user_id"`
			}
			if err := tx.GetContext(ctx, &owner, `SELECT user_id FROM bookings WHERE id = ?`, booking.ID); err != nil {
				return r.mapper.MapError(err)
			}
			booking.UserID = owner.UserID

			if err := checkBookingReferences(ctx, tx, booking); err != nil {
				return err
			}
			if err := runGuard(ctx, tx, booking.RoomID, guard); err != nil {
				return err
			}

			result, err := tx.NamedExecContext(ctx, `
				UPDATE bookings
				SET title = :title, date = :date, start_time = :start_time, end_time = :end_time,
				    room_id = :room_id, description = :description, recurrence_rule = :recurrence_rule,
				    updated_at = :updated_at
				WHERE id = :id`,
				newBookingRow(booking))
			if err != nil {
				return err
			}
			return requireAffected(result)
		})
	})
}

// GetBooking retrieves a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	var row bookingRow
	if err := r.pool.DB().GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id); err != nil {
		return persistence.Booking{}, r.mapper.MapError(err)
	}
	return row.toPersistence()
}

// ListBookings returns bookings matching filter in creation order.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	return listBookings(ctx, r.pool.DB(), filter)
}

// DeleteBooking removes a booking by ID.
func (r *BookingRepository) DeleteBooking(ctx context.Context, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
}

func runGuard(ctx context.Context, q sqlx.QueryerContext, roomID string, guard persistence.BookingGuard) error {
	if guard == nil {
		return nil
	}
	existing, err := listBookings(ctx, q, persistence.BookingFilter{RoomID: roomID})
	if err != nil {
		return err
	}
	return guard(existing)
}

func checkBookingReferences(ctx context.Context, q sqlx.QueryerContext, booking persistence.Booking) error {
	found, err := exists(ctx, q, `SELECT COUNT(1) FROM rooms WHERE id = ?`, booking.RoomID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("sqlite: room %s does not exist: %w", booking.RoomID, persistence.ErrForeignKeyViolation)
	}

	found, err = exists(ctx, q, `SELECT COUNT(1) FROM users WHERE id = ?`, booking.UserID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("sqlite: user %s does not exist: %w", booking.UserID, persistence.ErrForeignKeyViolation)
	}
	return nil
}

func exists(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (bool, error) {
	var count int
	if err := sqlx.GetContext(ctx, q, &count, query, args...); err != nil {
		return false, err
	}
	return count > 0, nil
}

func listBookings(ctx context.Context, q sqlx.QueryerContext, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.RoomID != "" {
		clauses = append(clauses, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY rowid`

	var rows []bookingRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, NewErrorMapper().MapError(err)
	}

	bookings := make([]persistence.Booking, 0, len(rows))
	for _, row := range rows {
		booking, err := row.toPersistence()
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, nil
}
