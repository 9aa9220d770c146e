package testfixtures

import (
	"context"
	"errors"
	"testing"

	"github.com/example/room-booking/internal/adapters"
	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/civil"
	"github.com/example/room-booking/internal/persistence/memory"
)

func TestServiceFactoryNewUserService(t *testing.T) {
	factory := NewServiceFactory()
	store := memory.New()

	svc := factory.NewUserService(UserServiceDeps{Users: adapters.NewUserRepository(store)})
	principal := application.Principal{UserID: "admin", IsAdmin: true}
	input := NewUserFixture(WithUserEmail("user@example.com")).Input("password1")

	user, err := svc.CreateUser(context.Background(), application.CreateUserParams{Principal: principal, Input: input})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	if user.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", user.ID)
	}
	if !user.CreatedAt.Equal(factory.Clock.Current()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Current(), user.CreatedAt)
	}

	stored, err := store.GetUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUser returned error: %v", err)
	}
	if stored.PasswordHash != "plain:password1" {
		t.Fatalf("expected password to be hashed with PlainHash, got %q", stored.PasswordHash)
	}
}

// labStores yields every storage backend the services run against.
func labStores(t *testing.T) map[string]adapters.Store {
	return map[string]adapters.Store{
		"memory": memory.New(),
		"sqlite": NewSQLiteHarness(t).Storage,
	}
}

func TestServicesLabAScenario(t *testing.T) {
	for name, store := range labStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			factory := NewServiceFactory()
			services := factory.NewServices(store, application.BookingServiceConfig{})

			admin, _, err := services.Users.EnsureAdmin(ctx, "admin@example.com", "password1")
			if err != nil {
				t.Fatalf("EnsureAdmin failed: %v", err)
			}
			principal := application.Principal{UserID: admin.ID, IsAdmin: true}

			lab, err := services.Rooms.CreateRoom(ctx, application.CreateRoomParams{
				Principal: principal,
				Input:     NewRoomFixture(WithRoomName("Lab A"), WithRoomHours("08:00", "18:00")).Input(),
			})
			if err != nil {
				t.Fatalf("CreateRoom failed: %v", err)
			}

			series, report, err := services.Bookings.CreateBooking(ctx, application.CreateBookingParams{
				Principal: principal,
				Input: NewBookingFixture(
					WithBookingRoom(lab.ID),
					WithBookingOwner(""),
					WithBookingSlot("2024-03-04", "10:00", "11:00"),
					WithBookingRule("RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR;UNTIL=20240329T235959Z"),
				).Input(),
			})
			if err != nil {
				t.Fatalf("CreateBooking failed: %v", err)
			}
			if report.HasConflict {
				t.Fatalf("expected the first booking to be free, got %+v", report)
			}

			wednesday, err := services.Bookings.CheckConflict(ctx, application.CheckConflictParams{
				Principal: principal,
				Input:     NewBookingFixture(WithBookingRoom(lab.ID), WithBookingSlot("2024-03-06", "10:30", "11:30")).Input(),
			})
			if err != nil {
				t.Fatalf("CheckConflict failed: %v", err)
			}
			if !wednesday.HasConflict || len(wednesday.Conflicts) != 1 || wednesday.Conflicts[0].ID != series.ID {
				t.Fatalf("expected Wednesday to conflict with the series, got %+v", wednesday)
			}

			thursday, err := services.Bookings.CheckConflict(ctx, application.CheckConflictParams{
				Principal: principal,
				Input:     NewBookingFixture(WithBookingRoom(lab.ID), WithBookingSlot("2024-03-07", "10:00", "11:00")).Input(),
			})
			if err != nil {
				t.Fatalf("CheckConflict failed: %v", err)
			}
			if thursday.HasConflict {
				t.Fatalf("expected Thursday to be free, got %+v", thursday)
			}

			occurrences, err := services.Bookings.Calendar(ctx, application.CalendarParams{
				Principal: principal,
				RoomID:    lab.ID,
				From:      civil.MustParseDate("2024-03-01"),
				To:        civil.MustParseDate("2024-03-31"),
			})
			if err != nil {
				t.Fatalf("Calendar failed: %v", err)
			}
			if len(occurrences) != 12 {
				t.Fatalf("expected 12 occurrences in March, got %d", len(occurrences))
			}
		})
	}
}

func TestServicesGuardedWrites(t *testing.T) {
	for name, store := range labStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			services := NewServiceFactory().NewServices(store, application.BookingServiceConfig{RejectConflicts: true})

			admin, _, err := services.Users.EnsureAdmin(ctx, "admin@example.com", "password1")
			if err != nil {
				t.Fatalf("EnsureAdmin failed: %v", err)
			}
			principal := application.Principal{UserID: admin.ID, IsAdmin: true}

			room, err := services.Rooms.CreateRoom(ctx, application.CreateRoomParams{Principal: principal, Input: NewRoomFixture().Input()})
			if err != nil {
				t.Fatalf("CreateRoom failed: %v", err)
			}

			input := NewBookingFixture(WithBookingRoom(room.ID), WithBookingOwner(""), WithBookingSlot("2024-03-04", "09:00", "10:00")).Input()
			if _, _, err := services.Bookings.CreateBooking(ctx, application.CreateBookingParams{Principal: principal, Input: input}); err != nil {
				t.Fatalf("CreateBooking failed: %v", err)
			}

			_, report, err := services.Bookings.CreateBooking(ctx, application.CreateBookingParams{Principal: principal, Input: input})
			if !errors.Is(err, application.ErrConflict) {
				t.Fatalf("expected ErrConflict, got %v", err)
			}
			if len(report.Conflicts) != 1 {
				t.Fatalf("expected one conflicting booking, got %+v", report)
			}

			bookings, err := services.Bookings.ListBookings(ctx, application.ListBookingsParams{Principal: principal})
			if err != nil {
				t.Fatalf("ListBookings failed: %v", err)
			}
			if len(bookings) != 1 {
				t.Fatalf("expected the rejected booking not to be stored, got %d bookings", len(bookings))
			}
		})
	}
}

func TestServicesSessionLifecycle(t *testing.T) {
	for name, store := range labStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			services := NewServiceFactory().NewServices(store, application.BookingServiceConfig{})

			if _, _, err := services.Users.EnsureAdmin(ctx, "admin@example.com", "password1"); err != nil {
				t.Fatalf("EnsureAdmin failed: %v", err)
			}

			result, err := services.Auth.Authenticate(ctx, application.AuthenticateParams{Email: "ADMIN@example.com", Password: "password1"})
			if err != nil {
				t.Fatalf("Authenticate failed: %v", err)
			}

			principal, err := services.Auth.ValidateSession(ctx, result.Session.Token)
			if err != nil {
				t.Fatalf("ValidateSession failed: %v", err)
			}
			if !principal.IsAdmin || principal.UserID != result.User.ID {
				t.Fatalf("unexpected principal %+v", principal)
			}

			if err := services.Auth.RevokeSession(ctx, result.Session.Token); err != nil {
				t.Fatalf("RevokeSession failed: %v", err)
			}
			if _, err := services.Auth.ValidateSession(ctx, result.Session.Token); !errors.Is(err, application.ErrSessionRevoked) {
				t.Fatalf("expected ErrSessionRevoked, got %v", err)
			}
		})
	}
}
