package sqlite

import (
	"context"

	"github.com/example/room-booking/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository using SQLite.
type RoomRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewRoomRepository creates a new SQLite room repository.
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

type roomRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Location  string `db:"location"`
	TimeStart string `db:"time_start"`
	TimeEnd   string `db:"time_end"`
	Purpose   string `db:"purpose"`
	Image     string `db:"image"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func newRoomRow(room persistence.Room) roomRow {
	return roomRow{
		ID:        room.ID,
		Name:      room.Name,
		Location:  room.Location,
		TimeStart: room.TimeStart,
		TimeEnd:   room.TimeEnd,
		Purpose:   room.Purpose,
		Image:     room.Image,
		CreatedAt: formatTime(room.CreatedAt),
		UpdatedAt: formatTime(room.UpdatedAt),
	}
}

func (row roomRow) toPersistence() (persistence.Room, error) {
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return persistence.Room{}, err
	}
	updatedAt, err := parseTime(row.UpdatedAt)
	if err != nil {
		return persistence.Room{}, err
	}
	return persistence.Room{
		ID:        row.ID,
		Name:      row.Name,
		Location:  row.Location,
		TimeStart: row.TimeStart,
		TimeEnd:   row.TimeEnd,
		Purpose:   row.Purpose,
		Image:     row.Image,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

const roomColumns = `id, name, location, time_start, time_end, purpose, image, created_at, updated_at`

// CreateRoom inserts a new meeting room.
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().NamedExecContext(ctx, `
			INSERT INTO rooms (`+roomColumns+`)
			VALUES (:id, :name, :location, :time_start, :time_end, :purpose, :image, :created_at, :updated_at)`,
			newRoomRow(room))
		return err
	})
}

// UpdateRoom replaces the stored fields of an existing room. The creation time is kept.
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().NamedExecContext(ctx, `
			UPDATE rooms
			SET name = :name, location = :location, time_start = :time_start, time_end = :time_end,
			    purpose = :purpose, image = :image, updated_at = :updated_at
			WHERE id = :id`,
			newRoomRow(room))
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
}

// GetRoom retrieves a room by ID.
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	var row roomRow
	if err := r.pool.DB().GetContext(ctx, &row, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id); err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}
	return row.toPersistence()
}

// ListRooms returns all rooms ordered by name.
func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	var rows []roomRow
	if err := r.pool.DB().SelectContext(ctx, &rows, `SELECT `+roomColumns+` FROM rooms ORDER BY name, id`); err != nil {
		return nil, r.mapper.MapError(err)
	}

	rooms := make([]persistence.Room, 0, len(rows))
	for _, row := range rows {
		room, err := row.toPersistence()
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// DeleteRoom removes a room. Its bookings are removed by the foreign key cascade.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
}
