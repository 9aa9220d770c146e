package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

type RouterConfig struct {
	Auth     *AuthHandler
	Users    *UserHandler
	Rooms    *RoomHandler
	Bookings *BookingHandler
	Exports  *ExportHandler
	// Sessions guards every route except login and the health check.
	Sessions   SessionValidator
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	if cfg.Auth != nil {
		router.HandleFunc("/sessions", cfg.Auth.CreateSession).Methods(http.MethodPost)
	}

	api := router.NewRoute().Subrouter()
	if cfg.Sessions != nil {
		api.Use(RequireSession(cfg.Sessions, cfg.Logger))
	}

	if cfg.Auth != nil {
		api.HandleFunc("/sessions/current", cfg.Auth.CurrentSession).Methods(http.MethodGet)
		api.HandleFunc("/sessions/current", cfg.Auth.DeleteCurrentSession).Methods(http.MethodDelete)
	}

	if cfg.Bookings != nil {
		api.HandleFunc("/bookings", cfg.Bookings.List).Methods(http.MethodGet)
		api.HandleFunc("/bookings", cfg.Bookings.Create).Methods(http.MethodPost)
		api.HandleFunc("/bookings/check", cfg.Bookings.Check).Methods(http.MethodPost)
		api.HandleFunc("/bookings/{id}", cfg.Bookings.Get).Methods(http.MethodGet)
		api.HandleFunc("/bookings/{id}", cfg.Bookings.Update).Methods(http.MethodPut)
		api.HandleFunc("/bookings/{id}", cfg.Bookings.Delete).Methods(http.MethodDelete)
		api.HandleFunc("/bookings/{id}/occurrences", cfg.Bookings.Occurrences).Methods(http.MethodGet)
		api.HandleFunc("/calendar", cfg.Bookings.Calendar).Methods(http.MethodGet)
	}

	if cfg.Rooms != nil {
		api.HandleFunc("/rooms", cfg.Rooms.List).Methods(http.MethodGet)
		api.HandleFunc("/rooms", cfg.Rooms.Create).Methods(http.MethodPost)
		api.HandleFunc("/rooms/{id}", cfg.Rooms.Get).Methods(http.MethodGet)
		api.HandleFunc("/rooms/{id}", cfg.Rooms.Update).Methods(http.MethodPut)
		api.HandleFunc("/rooms/{id}", cfg.Rooms.Delete).Methods(http.MethodDelete)
	}

	if cfg.Exports != nil {
		api.HandleFunc("/rooms/{id}/calendar.ics", cfg.Exports.ICS).Methods(http.MethodGet)
		api.HandleFunc("/rooms/{id}/calendar.xlsx", cfg.Exports.XLSX).Methods(http.MethodGet)
	}

	if cfg.Users != nil {
		api.HandleFunc("/users", cfg.Users.List).Methods(http.MethodGet)
		api.HandleFunc("/users", cfg.Users.Create).Methods(http.MethodPost)
		api.HandleFunc("/users/{id}", cfg.Users.Get).Methods(http.MethodGet)
		api.HandleFunc("/users/{id}", cfg.Users.Update).Methods(http.MethodPut)
		api.HandleFunc("/users/{id}", cfg.Users.Delete).Methods(http.MethodDelete)
	}

	var handler http.Handler = router
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}

func healthz(w http.ResponseWriter, r *http.Request) {
	newResponder(LoggerFromContext(r.Context())).writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// pathID returns the trimmed {id} route variable.
func pathID(r *http.Request) string {
	return strings.TrimSpace(mux.Vars(r)["id"])
}
