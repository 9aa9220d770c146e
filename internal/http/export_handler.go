package http

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/civil"
	"github.com/example/room-booking/internal/export"
)

// exportWindowDays is the spreadsheet range used when ?from=&to= are omitted.
const exportWindowDays = 30

type exportRoomService interface {
	GetRoom(ctx context.Context, principal application.Principal, roomID string) (application.Room, error)
}

type exportBookingService interface {
	ListBookings(ctx context.Context, params application.ListBookingsParams) ([]application.Booking, error)
	Calendar(ctx context.Context, params application.CalendarParams) ([]application.Occurrence, error)
	MaxOccurrences() int
}

// ExportHandler serves downloadable room calendars.
type ExportHandler struct {
	rooms     exportRoomService
	bookings  exportBookingService
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

func NewExportHandler(rooms exportRoomService, bookings exportBookingService, now func() time.Time, logger *slog.Logger) *ExportHandler {
	if now == nil {
		now = time.Now
	}
	base := defaultLogger(logger)
	return &ExportHandler{rooms: rooms, bookings: bookings, now: now, responder: newResponder(base), logger: base}
}

func (h *ExportHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ExportHandler", operation, attrs...)
}

// ICS streams every booking of the room as an iCalendar feed.
func (h *ExportHandler) ICS(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.rooms == nil || h.bookings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	room, ok := h.lookupRoom(w, r, principal)
	if !ok {
		return
	}

	bookings, err := h.bookings.ListBookings(r.Context(), application.ListBookingsParams{Principal: principal, RoomID: room.ID})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteICS(&buf, room, bookings, h.bookings.MaxOccurrences(), h.now()); err != nil {
		h.log(r.Context(), "ICS", "room_id", room.ID).ErrorContext(r.Context(), "failed to render calendar", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, nil)
		return
	}

	h.log(r.Context(), "ICS", "room_id", room.ID, "booking_count", len(bookings)).InfoContext(r.Context(), "calendar exported")
	writeAttachment(w, "text/calendar; charset=utf-8", room.ID+".ics", buf.Bytes())
}

// XLSX renders the room's occurrences within ?from=&to= as a spreadsheet. Missing
// bounds default to a window starting today.
func (h *ExportHandler) XLSX(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.rooms == nil || h.bookings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	params, vErr := calendarParams(r.URL.Query(), principal)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	room, ok := h.lookupRoom(w, r, principal)
	if !ok {
		return
	}

	params.RoomID = room.ID
	if params.From.IsZero() {
		params.From = civil.DateOf(h.now())
	}
	if params.To.IsZero() {
		params.To = params.From.AddDays(exportWindowDays - 1)
	}

	occurrences, err := h.bookings.Calendar(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, room, occurrences); err != nil {
		h.log(r.Context(), "XLSX", "room_id", room.ID).ErrorContext(r.Context(), "failed to render workbook", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, nil)
		return
	}

	h.log(r.Context(), "XLSX", "room_id", room.ID, "occurrence_count", len(occurrences)).InfoContext(r.Context(), "workbook exported")
	filename := fmt.Sprintf("%s_%s_%s.xlsx", room.ID, params.From, params.To)
	writeAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", filename, buf.Bytes())
}

func (h *ExportHandler) lookupRoom(w http.ResponseWriter, r *http.Request, principal application.Principal) (application.Room, bool) {
	roomID := pathID(r)
	if roomID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return application.Room{}, false
	}
	room, err := h.rooms.GetRoom(r.Context(), principal, roomID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return application.Room{}, false
	}
	return room, true
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
