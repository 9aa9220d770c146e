package application

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/example/room-booking/internal/civil"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/scheduler"
)

// DefaultMaxCalendarDays bounds the range a single calendar request may span.
const DefaultMaxCalendarDays = 366

// BookingRepository captures the persistence operations needed by the booking service.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking, guard BookingGuard) (Booking, error)
	UpdateBooking(ctx context.Context, booking Booking, guard BookingGuard) (Booking, error)
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

// BookingFilter narrows booking listings. Empty fields do not filter.
type BookingFilter struct {
	RoomID string
	UserID string
}

// BookingGuard runs against the target room's bookings, in creation order, in the
// same critical section as the write it protects. Returning an error aborts the write.
type BookingGuard func(existing []Booking) error

// RoomCatalog exposes room lookup operations.
type RoomCatalog interface {
	GetRoom(ctx context.Context, id string) (Room, error)
}

// UserDirectory exposes user lookup operations.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (User, error)
}

// BookingServiceConfig tunes recurrence expansion and conflict handling.
type BookingServiceConfig struct {
	// MaxOccurrences caps every series expansion. Zero selects recurrence.DefaultMaxOccurrences.
	MaxOccurrences int
	// OpenEndedMonths bounds existing series without UNTIL during conflict checks.
	OpenEndedMonths int
	// RejectConflicts turns conflict reports into ErrConflict on create and update.
	RejectConflicts bool
	// MaxCalendarDays bounds calendar requests. Zero selects DefaultMaxCalendarDays.
	MaxCalendarDays int
	// CalendarCacheTTL controls how long expanded calendar ranges are reused.
	CalendarCacheTTL time.Duration
}

// BookingService orchestrates validation, authorization, conflict detection, and
// persistence for bookings.
type BookingService struct {
	bookings        BookingRepository
	rooms           RoomCatalog
	users           UserDirectory
	engine          *recurrence.Engine
	resolver        *scheduler.Resolver
	rejectConflicts bool
	maxCalendarDays int
	cache           *calendarCache
	idGenerator     func() string
	now             func() time.Time
	logger          *slog.Logger
}

// NewBookingService wires dependencies for booking operations.
func NewBookingService(bookings BookingRepository, rooms RoomCatalog, users UserDirectory, idGenerator func() string, now func() time.Time, cfg BookingServiceConfig) *BookingService {
	return NewBookingServiceWithLogger(bookings, rooms, users, idGenerator, now, cfg, nil)
}

// NewBookingServiceWithLogger wires dependencies for booking operations with a specified logger.
func NewBookingServiceWithLogger(bookings BookingRepository, rooms RoomCatalog, users UserDirectory, idGenerator func() string, now func() time.Time, cfg BookingServiceConfig, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	maxDays := cfg.MaxCalendarDays
	if maxDays <= 0 {
		maxDays = DefaultMaxCalendarDays
	}
	return &BookingService{
		bookings: bookings,
		rooms:    rooms,
		users:    users,
		engine:   recurrence.NewEngine(cfg.MaxOccurrences),
		resolver: scheduler.NewResolver(scheduler.Options{
			MaxOccurrences:  cfg.MaxOccurrences,
			OpenEndedMonths: cfg.OpenEndedMonths,
		}),
		rejectConflicts: cfg.RejectConflicts,
		maxCalendarDays: maxDays,
		cache:           newCalendarCache(cfg.CalendarCacheTTL, 0),
		idGenerator:     idGenerator,
		now:             now,
		logger:          defaultLogger(logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// CreateBooking validates the input, checks it against the room's bookings, and
// persists it. The returned report is advisory unless RejectConflicts is set, in
// which case a conflicting booking is not stored and ErrConflict is returned along
// with the report.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (booking Booking, report ConflictReport, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateBooking",
		"principal_id", params.Principal.UserID,
		"room_id", params.Input.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"booking_id", booking.ID,
			"has_conflict", report.HasConflict,
		).InfoContext(ctx, "booking created")
	}()

	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	ownerID := strings.TrimSpace(params.Input.UserID)
	if ownerID == "" {
		ownerID = params.Principal.UserID
	}
	if !params.Principal.CanModify(ownerID) {
		err = fmt.Errorf("%w: only administrators can book on behalf of another user", ErrUnauthorized)
		return
	}

	draft, vErr := parseBookingInput(params.Input, true)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var room Room
	room, err = s.lookupRoom(ctx, draft.RoomID)
	if err != nil {
		return
	}
	if ownerID != params.Principal.UserID {
		if err = s.ensureUserExists(ctx, ownerID); err != nil {
			return
		}
	}

	now := s.now()
	candidate := draft
	candidate.ID = s.idGenerator()
	candidate.UserID = ownerID
	candidate.CreatedAt = now
	candidate.UpdatedAt = now

	booking, err = s.bookings.CreateBooking(ctx, candidate, s.conflictGuard(room, candidate, "", &report))
	if err != nil {
		booking = Booking{}
		err = mapBookingRepoError(err)
		return
	}

	s.cache.Invalidate()
	return
}

// UpdateBooking applies patch-merge semantics to an existing booking: nil fields keep
// their stored value. Only the owner or an administrator may update a booking, and
// the conflict check ignores the booking being edited.
func (s *BookingService) UpdateBooking(ctx context.Context, params UpdateBookingParams) (booking Booking, report ConflictReport, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateBooking",
		"principal_id", params.Principal.UserID,
		"booking_id", params.BookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("has_conflict", report.HasConflict).InfoContext(ctx, "booking updated")
	}()

	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	var existing Booking
	existing, err = s.bookings.GetBooking(ctx, params.BookingID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	if !params.Principal.CanModify(existing.UserID) {
		err = fmt.Errorf("%w: only the booking owner or an administrator can edit this booking", ErrUnauthorized)
		return
	}

	draft, vErr := parseBookingInput(applyBookingPatch(bookingInputOf(existing), params.Patch), true)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var room Room
	room, err = s.lookupRoom(ctx, draft.RoomID)
	if err != nil {
		return
	}

	candidate := draft
	candidate.ID = existing.ID
	candidate.UserID = existing.UserID
	candidate.CreatedAt = existing.CreatedAt
	candidate.UpdatedAt = s.now()

	booking, err = s.bookings.UpdateBooking(ctx, candidate, s.conflictGuard(room, candidate, existing.ID, &report))
	if err != nil {
		booking = Booking{}
		err = mapBookingRepoError(err)
		return
	}

	s.cache.Invalidate()
	return
}

// DeleteBooking removes a booking when requested by its owner or an administrator.
// Deleting a series removes every occurrence.
func (s *BookingService) DeleteBooking(ctx context.Context, principal Principal, bookingID string) (err error) {
	if s == nil {
		return fmt.Errorf("BookingService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteBooking",
		"principal_id", principal.UserID,
		"booking_id", bookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking deleted")
	}()

	if s.bookings == nil {
		return fmt.Errorf("booking repository not configured")
	}

	existing, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return mapBookingRepoError(err)
	}
	if !principal.CanModify(existing.UserID) {
		return fmt.Errorf("%w: only the booking owner or an administrator can delete this booking", ErrUnauthorized)
	}

	if err = s.bookings.DeleteBooking(ctx, bookingID); err != nil {
		return mapBookingRepoError(err)
	}

	s.cache.Invalidate()
	return nil
}

// GetBooking returns a single booking. Bookings are visible to every authenticated user.
func (s *BookingService) GetBooking(ctx context.Context, principal Principal, bookingID string) (Booking, error) {
	if s == nil {
		return Booking{}, fmt.Errorf("BookingService is nil")
	}
	if s.bookings == nil {
		return Booking{}, fmt.Errorf("booking repository not configured")
	}

	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		err = mapBookingRepoError(err)
		s.loggerWith(ctx, "GetBooking", "principal_id", principal.UserID, "booking_id", bookingID).
			ErrorContext(ctx, "failed to get booking", "error", err, "error_kind", ErrorKind(err))
		return Booking{}, err
	}
	return booking, nil
}

// ListBookings returns bookings in creation order, optionally filtered by room and owner.
func (s *BookingService) ListBookings(ctx context.Context, params ListBookingsParams) (bookings []Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListBookings",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
		"user_id", params.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list bookings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(bookings)).InfoContext(ctx, "bookings listed")
	}()

	bookings, err = s.bookings.ListBookings(ctx, BookingFilter{
		RoomID: strings.TrimSpace(params.RoomID),
		UserID: strings.TrimSpace(params.UserID),
	})
	if err != nil {
		err = mapBookingRepoError(err)
	}
	return
}

// CheckConflict runs the conflict resolver for a booking that has not been saved.
// The title is not required for a check.
func (s *BookingService) CheckConflict(ctx context.Context, params CheckConflictParams) (report ConflictReport, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CheckConflict",
		"principal_id", params.Principal.UserID,
		"room_id", params.Input.RoomID,
		"exclude_id", params.ExcludeID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "conflict check failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"has_conflict", report.HasConflict,
			"conflict_count", len(report.Conflicts),
		).InfoContext(ctx, "conflict check completed")
	}()

	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	draft, vErr := parseBookingInput(params.Input, false)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var room Room
	room, err = s.lookupRoom(ctx, draft.RoomID)
	if err != nil {
		return
	}

	var existing []Booking
	existing, err = s.bookings.ListBookings(ctx, BookingFilter{RoomID: draft.RoomID})
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	report = s.evaluate(room, draft, strings.TrimSpace(params.ExcludeID), existing)
	return
}

// Calendar expands every booking, optionally limited to one room, into its
// occurrences within [From, To]. Results are ordered by date, start time, and
// booking ID.
func (s *BookingService) Calendar(ctx context.Context, params CalendarParams) (occurrences []Occurrence, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Calendar",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
		"from", params.From.String(),
		"to", params.To.String(),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build calendar", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(occurrences)).InfoContext(ctx, "calendar built")
	}()

	if vErr := s.validateRange(params.From, params.To); vErr.HasErrors() {
		err = vErr
		return
	}
	if s.bookings == nil {
		return nil, nil
	}

	params.RoomID = strings.TrimSpace(params.RoomID)
	key := buildCalendarCacheKey(params)
	if cached, ok := s.cache.Get(key); ok {
		occurrences = cached
		return
	}
	generation := s.cache.Generation()

	var bookings []Booking
	bookings, err = s.bookings.ListBookings(ctx, BookingFilter{RoomID: params.RoomID})
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	for _, booking := range bookings {
		for date := range s.engine.Between(booking.Date, booking.Rule(), params.From, params.To) {
			occurrences = append(occurrences, Occurrence{Booking: booking, Date: date})
		}
	}
	slices.SortStableFunc(occurrences, compareOccurrences)

	s.cache.Store(key, generation, occurrences)
	return
}

// InvalidateCalendar drops every cached calendar range. Room and user deletes call
// it because they remove bookings behind the service's back.
func (s *BookingService) InvalidateCalendar() {
	if s == nil {
		return
	}
	s.cache.Invalidate()
}

// MaxOccurrences returns the cap applied to every series expansion.
func (s *BookingService) MaxOccurrences() int {
	if s == nil {
		return recurrence.DefaultMaxOccurrences
	}
	return s.engine.MaxOccurrences()
}

// BookingOccurrences returns the capped expansion of a single booking.
func (s *BookingService) BookingOccurrences(ctx context.Context, principal Principal, bookingID string) ([]civil.Date, error) {
	booking, err := s.GetBooking(ctx, principal, bookingID)
	if err != nil {
		return nil, err
	}
	return s.engine.Expand(booking.Date, booking.Rule()), nil
}

func (s *BookingService) validateRange(from, to civil.Date) *ValidationError {
	vErr := &ValidationError{}
	if from.IsZero() {
		vErr.add("from", "from is required")
	}
	if to.IsZero() {
		vErr.add("to", "to is required")
	}
	if vErr.HasErrors() {
		return vErr
	}
	if to.Before(from) {
		vErr.add("to", "to must not be before from")
	} else if from.DaysUntil(to) >= s.maxCalendarDays {
		vErr.add("to", fmt.Sprintf("range must not exceed %d days", s.maxCalendarDays))
	}
	return vErr
}

func (s *BookingService) lookupRoom(ctx context.Context, roomID string) (Room, error) {
	if s.rooms == nil {
		return Room{ID: roomID}, nil
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
			vErr := &ValidationError{}
			vErr.add("roomId", "room does not exist")
			return Room{}, vErr
		}
		return Room{}, err
	}
	return room, nil
}

func (s *BookingService) ensureUserExists(ctx context.Context, userID string) error {
	if s.users == nil {
		return nil
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
			vErr := &ValidationError{}
			vErr.add("userId", "user does not exist")
			return vErr
		}
		return err
	}
	return nil
}

// conflictGuard evaluates candidate inside the repository's critical section and
// records the outcome in report.
func (s *BookingService) conflictGuard(room Room, candidate Booking, excludeID string, report *ConflictReport) BookingGuard {
	return func(existing []Booking) error {
		*report = s.evaluate(room, candidate, excludeID, existing)
		if s.rejectConflicts && report.HasConflict {
			return fmt.Errorf("%w: %s", ErrConflict, describeConflict(*report))
		}
		return nil
	}
}

func (s *BookingService) evaluate(room Room, candidate Booking, excludeID string, existing []Booking) ConflictReport {
	others := make([]scheduler.Booking, len(existing))
	for i, b := range existing {
		others[i] = scheduler.Booking{
			ID:     b.ID,
			RoomID: b.RoomID,
			Date:   b.Date,
			Start:  b.StartTime,
			End:    b.EndTime,
			Rule:   b.Rule(),
		}
	}

	result := s.resolver.Check(
		scheduler.Room{ID: room.ID, Opens: room.TimeStart, Closes: room.TimeEnd},
		scheduler.Proposal{
			RoomID:    candidate.RoomID,
			Date:      candidate.Date,
			Start:     candidate.StartTime,
			End:       candidate.EndTime,
			Rule:      candidate.Rule(),
			ExcludeID: excludeID,
		},
		others,
	)

	report := ConflictReport{HasConflict: result.HasConflict, OutsideRoomHours: result.OutsideRoomHours}
	for _, conflict := range result.Conflicts {
		idx := slices.IndexFunc(existing, func(b Booking) bool { return b.ID == conflict.ID })
		if idx >= 0 {
			report.Conflicts = append(report.Conflicts, existing[idx])
		}
	}
	return report
}

func describeConflict(report ConflictReport) string {
	if report.OutsideRoomHours {
		return "booking is outside the room's hours"
	}
	return fmt.Sprintf("booking overlaps %d existing booking(s)", len(report.Conflicts))
}

func compareOccurrences(a, b Occurrence) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Booking.StartTime, b.Booking.StartTime); c != 0 {
		return c
	}
	return strings.Compare(a.Booking.ID, b.Booking.ID)
}

// parseBookingInput validates the wire form of a booking and returns it as a
// Booking without identity, owner, or timestamps.
func parseBookingInput(input BookingInput, requireTitle bool) (Booking, *ValidationError) {
	vErr := &ValidationError{}
	booking := Booking{
		Title:          strings.TrimSpace(input.Title),
		RoomID:         strings.TrimSpace(input.RoomID),
		Description:    strings.TrimSpace(input.Description),
		RecurrenceRule: strings.TrimSpace(input.RecurrenceRule),
	}

	if requireTitle && booking.Title == "" {
		vErr.add("title", "title is required")
	}
	if booking.RoomID == "" {
		vErr.add("roomId", "room is required")
	}

	if value := strings.TrimSpace(input.Date); value == "" {
		vErr.add("date", "date is required")
	} else if date, err := civil.ParseDate(value); err != nil {
		vErr.add("date", "date must be formatted as YYYY-MM-DD")
	} else {
		booking.Date = date
	}

	startOK := parseTimeField(vErr, "startTime", "start time", input.StartTime, &booking.StartTime)
	endOK := parseTimeField(vErr, "endTime", "end time", input.EndTime, &booking.EndTime)
	if startOK && endOK && booking.StartTime >= booking.EndTime {
		vErr.add("endTime", "end time must be after start time")
	}

	return booking, vErr
}

func parseTimeField(vErr *ValidationError, field, label, value string, dst *civil.TimeOfDay) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		vErr.add(field, label+" is required")
		return false
	}
	parsed, err := civil.ParseTimeOfDay(value)
	if err != nil {
		vErr.add(field, label+" must be formatted as HH:MM")
		return false
	}
	*dst = parsed
	return true
}

func bookingInputOf(b Booking) BookingInput {
	return BookingInput{
		Title:          b.Title,
		Date:           b.Date.String(),
		StartTime:      b.StartTime.String(),
		EndTime:        b.EndTime.String(),
		RoomID:         b.RoomID,
		Description:    b.Description,
		RecurrenceRule: b.RecurrenceRule,
		UserID:         b.UserID,
	}
}

func applyBookingPatch(input BookingInput, patch BookingPatch) BookingInput {
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&input.Title, patch.Title)
	apply(&input.Date, patch.Date)
	apply(&input.StartTime, patch.StartTime)
	apply(&input.EndTime, patch.EndTime)
	apply(&input.RoomID, patch.RoomID)
	apply(&input.Description, patch.Description)
	apply(&input.RecurrenceRule, patch.RecurrenceRule)
	return input
}

func mapBookingRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound):
		return err
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("roomId", "room or owner does not exist")
		return vErr
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("booking", "booking violates a storage constraint")
		return vErr
	}
	return err
}
