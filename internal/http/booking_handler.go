package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/civil"
)

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.Booking, application.ConflictReport, error)
	UpdateBooking(ctx context.Context, params application.UpdateBookingParams) (application.Booking, application.ConflictReport, error)
	GetBooking(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error)
	DeleteBooking(ctx context.Context, principal application.Principal, bookingID string) error
	ListBookings(ctx context.Context, params application.ListBookingsParams) ([]application.Booking, error)
	CheckConflict(ctx context.Context, params application.CheckConflictParams) (application.ConflictReport, error)
	Calendar(ctx context.Context, params application.CalendarParams) ([]application.Occurrence, error)
	BookingOccurrences(ctx context.Context, principal application.Principal, bookingID string) ([]civil.Date, error)
}

type BookingHandler struct {
	service   bookingService
	responder responder
	logger    *slog.Logger
}

func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode booking request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	booking, report, err := h.service.CreateBooking(r.Context(), application.CreateBookingParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.writeBookingError(r.Context(), w, err, report)
		return
	}

	h.renderBooking(r.Context(), w, http.StatusCreated, booking, report)
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID := pathID(r)
	if bookingID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req bookingPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "booking_id", bookingID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode booking update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	booking, report, err := h.service.UpdateBooking(r.Context(), application.UpdateBookingParams{
		Principal: principal,
		BookingID: bookingID,
		Patch:     req.toPatch(),
	})
	if err != nil {
		h.writeBookingError(r.Context(), w, err, report)
		return
	}

	h.renderBooking(r.Context(), w, http.StatusOK, booking, report)
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID := pathID(r)
	if bookingID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	booking, err := h.service.GetBooking(r.Context(), principal, bookingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID := pathID(r)
	if bookingID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteBooking(r.Context(), principal, bookingID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()
	bookings, err := h.service.ListBookings(r.Context(), application.ListBookingsParams{
		Principal: principal,
		RoomID:    strings.TrimSpace(query.Get("roomId")),
		UserID:    strings.TrimSpace(query.Get("userId")),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Bookings: toBookingDTOs(bookings)})
}

// Check runs the conflict resolver against a draft booking without storing it.
func (h *BookingHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Check", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode conflict check", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	report, err := h.service.CheckConflict(r.Context(), application.CheckConflictParams{
		Principal: principal,
		Input:     req.toInput(),
		ExcludeID: strings.TrimSpace(req.ExcludeID),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toConflictDTO(report))
}

// Occurrences lists the dates a booking expands to, capped by the engine.
func (h *BookingHandler) Occurrences(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID := pathID(r)
	if bookingID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	dates, err := h.service.BookingOccurrences(r.Context(), principal, bookingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]string, 0, len(dates))
	for _, date := range dates {
		out = append(out, date.String())
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, occurrencesResponse{BookingID: bookingID, Dates: out})
}

// Calendar expands bookings into dated occurrences for ?from=&to=, optionally
// limited to ?roomId=.
func (h *BookingHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	params, vErr := calendarParams(r.URL.Query(), principal)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	occurrences, err := h.service.Calendar(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, calendarResponse{Occurrences: toOccurrenceDTOs(occurrences)})
}

func (h *BookingHandler) renderBooking(ctx context.Context, w http.ResponseWriter, status int, booking application.Booking, report application.ConflictReport) {
	payload := bookingResponse{Booking: toBookingDTO(booking)}
	if report.HasConflict {
		conflict := toConflictDTO(report)
		payload.Conflict = &conflict
	}
	h.responder.writeJSON(ctx, w, status, payload)
}

// writeBookingError attaches the conflict report to 409 responses so clients can
// show what they collided with.
func (h *BookingHandler) writeBookingError(ctx context.Context, w http.ResponseWriter, err error, report application.ConflictReport) {
	if !errors.Is(err, application.ErrConflict) {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	status, payload := errorPayload(err)
	conflict := toConflictDTO(report)
	payload.Conflict = &conflict
	h.responder.writeJSON(ctx, w, status, payload)
}

// calendarParams returns a *application.ValidationError for unreadable dates.
func calendarParams(values url.Values, principal application.Principal) (application.CalendarParams, error) {
	params := application.CalendarParams{
		Principal: principal,
		RoomID:    strings.TrimSpace(values.Get("roomId")),
	}
	fields := make(map[string]string)
	for _, field := range []struct {
		key string
		dst *civil.Date
	}{
		{key: "from", dst: &params.From},
		{key: "to", dst: &params.To},
	} {
		value := strings.TrimSpace(values.Get(field.key))
		if value == "" {
			continue
		}
		date, err := civil.ParseDate(value)
		if err != nil {
			fields[field.key] = "date must be formatted as YYYY-MM-DD"
			continue
		}
		*field.dst = date
	}
	if len(fields) > 0 {
		return params, &application.ValidationError{FieldErrors: fields}
	}
	return params, nil
}

type bookingRequest struct {
	Title          string `json:"title"`
	Date           string `json:"date"`
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime"`
	RoomID         string `json:"roomId"`
	Description    string `json:"description"`
	RecurrenceRule string `json:"recurrenceRule"`
	UserID         string `json:"userId"`
}

func (r bookingRequest) toInput() application.BookingInput {
	return application.BookingInput{
		Title:          r.Title,
		Date:           r.Date,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		RoomID:         r.RoomID,
		Description:    r.Description,
		RecurrenceRule: r.RecurrenceRule,
		UserID:         r.UserID,
	}
}

type checkRequest struct {
	bookingRequest
	ExcludeID string `json:"excludeId"`
}

// bookingPatchRequest leaves absent fields nil so they keep their stored value.
type bookingPatchRequest struct {
	Title          *string `json:"title"`
	Date           *string `json:"date"`
	StartTime      *string `json:"startTime"`
	EndTime        *string `json:"endTime"`
	RoomID         *string `json:"roomId"`
	Description    *string `json:"description"`
	RecurrenceRule *string `json:"recurrenceRule"`
}

func (r bookingPatchRequest) toPatch() application.BookingPatch {
	return application.BookingPatch{
		Title:          r.Title,
		Date:           r.Date,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		RoomID:         r.RoomID,
		Description:    r.Description,
		RecurrenceRule: r.RecurrenceRule,
	}
}

type bookingResponse struct {
	Booking  bookingDTO   `json:"booking"`
	Conflict *conflictDTO `json:"conflict,omitempty"`
}

type listBookingsResponse struct {
	Bookings []bookingDTO `json:"bookings"`
}

type occurrencesResponse struct {
	BookingID string   `json:"bookingId"`
	Dates     []string `json:"dates"`
}

type calendarResponse struct {
	Occurrences []occurrenceDTO `json:"occurrences"`
}

type bookingDTO struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Date           string `json:"date"`
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime"`
	RoomID         string `json:"roomId"`
	Description    string `json:"description"`
	RecurrenceRule string `json:"recurrenceRule"`
	UserID         string `json:"userId"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

type conflictDTO struct {
	HasConflict       bool         `json:"hasConflict"`
	OutsideRoomHours  bool         `json:"outsideRoomHours"`
	ConflictingEvents []bookingDTO `json:"conflictingEvents"`
}

type occurrenceDTO struct {
	Date      string     `json:"date"`
	StartTime string     `json:"startTime"`
	EndTime   string     `json:"endTime"`
	Booking   bookingDTO `json:"booking"`
}

func toBookingDTO(booking application.Booking) bookingDTO {
	return bookingDTO{
		ID:             booking.ID,
		Title:          booking.Title,
		Date:           booking.Date.String(),
		StartTime:      booking.StartTime.String(),
		EndTime:        booking.EndTime.String(),
		RoomID:         booking.RoomID,
		Description:    booking.Description,
		RecurrenceRule: booking.RecurrenceRule,
		UserID:         booking.UserID,
		CreatedAt:      booking.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:      booking.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toBookingDTOs(bookings []application.Booking) []bookingDTO {
	out := make([]bookingDTO, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, toBookingDTO(booking))
	}
	return out
}

func toConflictDTO(report application.ConflictReport) conflictDTO {
	return conflictDTO{
		HasConflict:       report.HasConflict,
		OutsideRoomHours:  report.OutsideRoomHours,
		ConflictingEvents: toBookingDTOs(report.Conflicts),
	}
}

func toOccurrenceDTOs(occurrences []application.Occurrence) []occurrenceDTO {
	out := make([]occurrenceDTO, 0, len(occurrences))
	for _, occurrence := range occurrences {
		out = append(out, occurrenceDTO{
			Date:      occurrence.Date.String(),
			StartTime: occurrence.Booking.StartTime.String(),
			EndTime:   occurrence.Booking.EndTime.String(),
			Booking:   toBookingDTO(occurrence.Booking),
		})
	}
	return out
}
