package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/room-booking/internal/adapters"
	"github.com/example/room-booking/internal/application"
)

// TestSessionSecret signs session tokens issued by services built in tests.
var TestSessionSecret = []byte("test-session-secret-0123456789")

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

func (f *ServiceFactory) defaults(idGen func() string, now func() time.Time) (func() string, func() time.Time) {
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return idGen, now
}

// BookingServiceDeps captures dependencies for constructing a booking service.
type BookingServiceDeps struct {
	Bookings    application.BookingRepository
	Rooms       application.RoomCatalog
	Users       application.UserDirectory
	Config      application.BookingServiceConfig
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewBookingService builds a booking service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewBookingService(deps BookingServiceDeps) *application.BookingService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewBookingServiceWithLogger(
		deps.Bookings,
		deps.Rooms,
		deps.Users,
		idGen,
		now,
		deps.Config,
		deps.Logger,
	)
}

// RoomServiceDeps captures dependencies for constructing a room service.
type RoomServiceDeps struct {
	Rooms       application.RoomRepository
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewRoomService builds a room service using the supplied dependencies.
func (f *ServiceFactory) NewRoomService(deps RoomServiceDeps) *application.RoomService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewRoomServiceWithLogger(deps.Rooms, idGen, now, deps.Logger)
}

// UserServiceDeps captures dependencies for constructing a user service.
// A nil Hasher selects a cheap deterministic hash.
type UserServiceDeps struct {
	Users       application.UserRepository
	Hasher      application.PasswordHasher
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewUserService builds a user service using the supplied dependencies.
func (f *ServiceFactory) NewUserService(deps UserServiceDeps) *application.UserService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	hasher := deps.Hasher
	if hasher == nil {
		hasher = PlainHash
	}
	return application.NewUserServiceWithLogger(deps.Users, hasher, idGen, now, deps.Logger)
}

// AuthServiceDeps captures dependencies for constructing an auth service.
// A nil PasswordVerify pairs with PlainHash.
type AuthServiceDeps struct {
	Credentials    application.CredentialStore
	Revocations    application.TokenRevocationStore
	PasswordVerify application.PasswordVerifier
	IDGenerator    func() string
	Now            func() time.Time
	SessionTTL     time.Duration
	Logger         *slog.Logger
}

// NewAuthService builds an auth service using the supplied dependencies.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) *application.AuthService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	verify := deps.PasswordVerify
	if verify == nil {
		verify = VerifyPlainHash
	}
	return application.NewAuthServiceWithLogger(
		deps.Credentials,
		deps.Revocations,
		verify,
		idGen,
		now,
		application.AuthServiceConfig{Secret: TestSessionSecret, SessionTTL: deps.SessionTTL},
		deps.Logger,
	)
}

// Services bundles every application service wired to one store.
type Services struct {
	Bookings *application.BookingService
	Rooms    *application.RoomService
	Users    *application.UserService
	Auth     *application.AuthService
}

// NewServices wires all services to store through the repository adapters. Room
// and user deletes clear the booking service's calendar cache.
func (f *ServiceFactory) NewServices(store adapters.Store, cfg application.BookingServiceConfig) Services {
	users := adapters.NewUserRepository(store)
	rooms := adapters.NewRoomRepository(store)
	services := Services{
		Bookings: f.NewBookingService(BookingServiceDeps{
			Bookings: adapters.NewBookingRepository(store),
			Rooms:    rooms,
			Users:    users,
			Config:   cfg,
		}),
		Rooms: f.NewRoomService(RoomServiceDeps{Rooms: rooms}),
		Users: f.NewUserService(UserServiceDeps{Users: users}),
		Auth: f.NewAuthService(AuthServiceDeps{
			Credentials: users,
			Revocations: adapters.NewTokenRevocationStore(store),
		}),
	}
	services.Rooms.SetCalendarInvalidator(services.Bookings)
	services.Users.SetCalendarInvalidator(services.Bookings)
	return services
}

// PlainHash is a reversible stand-in for Argon2id that keeps tests fast.
func PlainHash(password string) (string, error) {
	return "plain:" + password, nil
}

// VerifyPlainHash checks hashes produced by PlainHash.
func VerifyPlainHash(hashedPassword, password string) error {
	if hashedPassword != "plain:"+password {
		return application.ErrInvalidCredentials
	}
	return nil
}
