package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/room-booking/internal/adapters"
	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/config"
	httptransport "github.com/example/room-booking/internal/http"
	"github.com/example/room-booking/internal/logging"
	"github.com/example/room-booking/internal/persistence/memory"
	"github.com/example/room-booking/internal/persistence/sqlite"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HTTPPort))
	if err != nil {
		logger.Error("failed to listen", "error", err, "port", cfg.HTTPPort)
		os.Exit(1)
	}

	if err := run(ctx, cfg, logger, listener); err != nil {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// store is what the services need from a storage backend plus its lifecycle.
type store interface {
	adapters.Store
	Migrate(ctx context.Context) error
	Close() error
}

// openStore opens and migrates the configured backend.
func openStore(ctx context.Context, cfg config.Config) (store, error) {
	var st store
	switch cfg.Storage {
	case config.StorageMemory:
		st = memory.New()
	case config.StorageSQLite:
		storage, err := sqlite.Open(cfg.SQLiteDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		st = storage
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage)
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return st, nil
}

type services struct {
	bookings *application.BookingService
	rooms    *application.RoomService
	users    *application.UserService
	auth     *application.AuthService
}

func newServices(cfg config.Config, st store, now func() time.Time, logger *slog.Logger) services {
	users := adapters.NewUserRepository(st)
	rooms := adapters.NewRoomRepository(st)

	svc := services{
		bookings: application.NewBookingServiceWithLogger(
			adapters.NewBookingRepository(st),
			rooms,
			users,
			uuid.NewString,
			now,
			application.BookingServiceConfig{
				MaxOccurrences:  cfg.MaxOccurrences,
				OpenEndedMonths: cfg.OpenEndedMonths,
				RejectConflicts: cfg.RejectConflicts,
			},
			logger,
		),
		rooms: application.NewRoomServiceWithLogger(rooms, uuid.NewString, now, logger),
		users: application.NewUserServiceWithLogger(users, application.HashPassword, uuid.NewString, now, logger),
		auth: application.NewAuthServiceWithLogger(
			users,
			adapters.NewTokenRevocationStore(st),
			application.VerifyPassword,
			uuid.NewString,
			now,
			application.AuthServiceConfig{Secret: []byte(cfg.SessionSecret), SessionTTL: cfg.SessionTTL},
			logger,
		),
	}
	svc.rooms.SetCalendarInvalidator(svc.bookings)
	svc.users.SetCalendarInvalidator(svc.bookings)
	return svc
}

func newHandler(svc services, now func() time.Time, logger *slog.Logger) http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Auth:       httptransport.NewAuthHandler(svc.auth, logger),
		Users:      httptransport.NewUserHandler(svc.users, logger),
		Rooms:      httptransport.NewRoomHandler(svc.rooms, logger),
		Bookings:   httptransport.NewBookingHandler(svc.bookings, logger),
		Exports:    httptransport.NewExportHandler(svc.rooms, svc.bookings, now, logger),
		Sessions:   svc.auth,
		Logger:     logger,
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
}

// run serves the API on listener until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger, listener net.Listener) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	now := time.Now
	svc := newServices(cfg, st, now, logger)

	if cfg.HasBootstrapAdmin() {
		if _, _, err := svc.users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap administrator: %w", err)
		}
	}

	server := &http.Server{
		Handler:           newHandler(svc, now, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownErr <- server.Shutdown(shutdownCtx)
	}()

	logger.Info("room booking API listening", "addr", listener.Addr().String(), "storage", cfg.Storage)
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdownErr; err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	logger.Info("room booking API stopped")
	return nil
}
