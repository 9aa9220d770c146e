package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func plainVerifier(hashedPassword, password string) error {
	if hashedPassword != password {
		return ErrInvalidCredentials
	}
	return nil
}

func newTestAuthService(creds CredentialStore, revocations TokenRevocationStore, now func() time.Time) *AuthService {
	return NewAuthService(creds, revocations, plainVerifier, func() string { return "session-1" }, now, AuthServiceConfig{
		Secret:     testSecret,
		SessionTTL: time.Hour,
	})
}

func TestAuthService_Authenticate(t *testing.T) {
	t.Parallel()

	t.Run("issues sessions for valid credentials", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		creds := &credentialStoreStub{
			credentials: UserCredentials{
				User:         User{ID: "user-1", Email: "user@example.com", IsAdmin: true},
				PasswordHash: "secret",
			},
		}
		svc := newTestAuthService(creds, newRevocationStoreStub(), func() time.Time { return now })

		result, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: " User@example.com ", Password: "secret"})
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}

		session := result.Session
		if session.ID != "session-1" || session.UserID != "user-1" || !session.IsAdmin {
			t.Fatalf("unexpected session %+v", session)
		}
		if !session.ExpiresAt.Equal(now.Add(time.Hour)) {
			t.Fatalf("expected session to expire after the TTL, got %s", session.ExpiresAt)
		}
		if strings.Count(session.Token, ".") != 2 {
			t.Fatalf("expected a signed JWT, got %q", session.Token)
		}

		claims := &SessionClaims{}
		_, err = jwt.ParseWithClaims(session.Token, claims, func(*jwt.Token) (any, error) { return testSecret, nil },
			jwt.WithTimeFunc(func() time.Time { return now }))
		if err != nil {
			t.Fatalf("expected token to verify, got %v", err)
		}
		if claims.ID != "session-1" || claims.UserID != "user-1" || !claims.IsAdmin {
			t.Fatalf("unexpected claims %+v", claims)
		}
	})

	t.Run("rejects invalid credentials with sentinel error", func(t *testing.T) {
		t.Parallel()

		creds := &credentialStoreStub{
			credentials: UserCredentials{User: User{ID: "user"}, PasswordHash: "expected"},
		}
		svc := newTestAuthService(creds, nil, time.Now)

		_, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "user@example.com", Password: "wrong"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("hides unknown emails behind invalid credentials", func(t *testing.T) {
		t.Parallel()

		svc := newTestAuthService(&credentialStoreStub{}, nil, time.Now)

		_, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "ghost@example.com", Password: "secret"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("requires email and password", func(t *testing.T) {
		t.Parallel()

		svc := newTestAuthService(&credentialStoreStub{}, nil, time.Now)

		_, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "user@example.com"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("propagates repository failures", func(t *testing.T) {
		t.Parallel()

		expected := errors.New("boom")
		svc := newTestAuthService(&credentialStoreStub{err: expected}, nil, time.Now)

		_, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "user@example.com", Password: "secret"})
		if !errors.Is(err, expected) {
			t.Fatalf("expected error %v, got %v", expected, err)
		}
	})

	t.Run("requires a signing secret", func(t *testing.T) {
		t.Parallel()

		creds := &credentialStoreStub{
			credentials: UserCredentials{User: User{ID: "user"}, PasswordHash: "secret"},
		}
		svc := NewAuthService(creds, nil, plainVerifier, nil, nil, AuthServiceConfig{})

		if _, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "user@example.com", Password: "secret"}); err == nil {
			t.Fatalf("expected missing secret to fail")
		}
	})
}

func TestAuthService_ValidateSession(t *testing.T) {
	t.Parallel()

	login := func(t *testing.T, svc *AuthService) string {
		t.Helper()
		result, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "user@example.com", Password: "secret"})
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		return result.Session.Token
	}

	t.Run("returns the principal for active sessions", func(t *testing.T) {
		t.Parallel()

		creds := &credentialStoreStub{
			credentials: UserCredentials{User: User{ID: "user-1", IsAdmin: false}, PasswordHash: "secret"},
		}
		svc := newTestAuthService(creds, newRevocationStoreStub(), time.Now)
		token := login(t, svc)

		creds.credentials.User.IsAdmin = true

		principal, err := svc.ValidateSession(context.Background(), token)
		if err != nil {
			t.Fatalf("expected valid session, got %v", err)
		}
		if principal.UserID != "user-1" || !principal.IsAdmin {
			t.Fatalf("expected admin flag to follow the user record, got %+v", principal)
		}
	})

	t.Run("rejects expired sessions", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		clock := &now
		creds := &credentialStoreStub{
			credentials: UserCredentials{User: User{ID: "user-1"}, PasswordHash: "secret"},
		}
		svc := newTestAuthService(creds, newRevocationStoreStub(), func() time.Time { return *clock })
		token := login(t, svc)

		*clock = now.Add(2 * time.Hour)

		if _, err := svc.ValidateSession(context.Background(), token); !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}
	})

	t.Run("rejects tokens signed with another secret", func(t *testing.T) {
		t.Parallel()

		creds := &credentialStoreStub{
			credentials: UserCredentials{User: User{ID: "user-1"}, PasswordHash: "secret"},
		}
		issuer := NewAuthService(creds, nil, plainVerifier, nil, nil, AuthServiceConfig{Secret: []byte("another-secret-value")})
		token := login(t, issuer)

		svc := newTestAuthService(creds, newRevocationStoreStub(), time.Now)
		if _, err := svc.ValidateSession(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("rejects garbage tokens", func(t *testing.T) {
		t.Parallel()

		svc := newTestAuthService(&credentialStoreStub{}, nil, time.Now)

		if _, err := svc.ValidateSession(context.Background(), "not-a-token"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if _, err := svc.ValidateSession(context.Background(), "  "); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials for empty token, got %v", err)
		}
	})

	t.Run("rejects sessions of deleted users", func(t *testing.T) {
		t.Parallel()

		creds := &credentialStoreStub{
			credentials: UserCredentials{User: User{ID: "user-1"}, PasswordHash: "secret"},
		}
		svc := newTestAuthService(creds, newRevocationStoreStub(), time.Now)
		token := login(t, svc)

		creds.credentials.User.ID = "someone-else"

		if _, err := svc.ValidateSession(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestAuthService_RevokeSession(t *testing.T) {
	t.Parallel()

	t.Run("revoked sessions no longer validate", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		creds := &credentialStoreStub{
			credentials: UserCredentials{User: User{ID: "user-1"}, PasswordHash: "secret"},
		}
		store := newRevocationStoreStub()
		svc := newTestAuthService(creds, store, func() time.Time { return now })

		result, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "user@example.com", Password: "secret"})
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}

		if err := svc.RevokeSession(context.Background(), result.Session.Token); err != nil {
			t.Fatalf("RevokeSession failed: %v", err)
		}
		if got := store.expiries["session-1"]; !got.Equal(now.Add(time.Hour)) {
			t.Fatalf("expected revocation to last until expiry, got %s", got)
		}
		if len(store.pruneCalls) != 1 || !store.pruneCalls[0].Equal(now) {
			t.Fatalf("expected expired revocations to be pruned at now, got %v", store.pruneCalls)
		}

		if _, err := svc.ValidateSession(context.Background(), result.Session.Token); !errors.Is(err, ErrSessionRevoked) {
			t.Fatalf("expected ErrSessionRevoked, got %v", err)
		}
	})

	t.Run("rejects tokens that cannot be verified", func(t *testing.T) {
		t.Parallel()

		svc := newTestAuthService(&credentialStoreStub{}, newRevocationStoreStub(), time.Now)

		if err := svc.RevokeSession(context.Background(), "forged"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
		if err := svc.RevokeSession(context.Background(), ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("ignores expired tokens", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		clock := &now
		creds := &credentialStoreStub{
			credentials: UserCredentials{User: User{ID: "user-1"}, PasswordHash: "secret"},
		}
		store := newRevocationStoreStub()
		svc := newTestAuthService(creds, store, func() time.Time { return *clock })

		result, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "user@example.com", Password: "secret"})
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		*clock = now.Add(48 * time.Hour)

		if err := svc.RevokeSession(context.Background(), result.Session.Token); err != nil {
			t.Fatalf("expected expired token to be accepted, got %v", err)
		}
		if len(store.expiries) != 0 {
			t.Fatalf("expected nothing to be recorded, got %v", store.expiries)
		}
	})

	t.Run("propagates store failures", func(t *testing.T) {
		t.Parallel()

		expected := errors.New("cleanup-failed")
		creds := &credentialStoreStub{
			credentials: UserCredentials{User: User{ID: "user-1"}, PasswordHash: "secret"},
		}
		store := newRevocationStoreStub()
		store.pruneErr = expected
		svc := newTestAuthService(creds, store, time.Now)

		result, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "user@example.com", Password: "secret"})
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if err := svc.RevokeSession(context.Background(), result.Session.Token); !errors.Is(err, expected) {
			t.Fatalf("expected cleanup error %v, got %v", expected, err)
		}
	})
}

// credentialStoreStub implements CredentialStore for tests.
type credentialStoreStub struct {
	credentials UserCredentials
	err         error
}

func (c *credentialStoreStub) GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error) {
	if c.err != nil {
		return UserCredentials{}, c.err
	}
	if c.credentials.User.ID == "" {
		return UserCredentials{}, ErrNotFound
	}
	return c.credentials, nil
}

func (c *credentialStoreStub) GetUser(ctx context.Context, id string) (User, error) {
	if c.err != nil {
		return User{}, c.err
	}
	if c.credentials.User.ID == id {
		return c.credentials.User, nil
	}
	return User{}, ErrNotFound
}

// revocationStoreStub provides an in-memory TokenRevocationStore for tests.
type revocationStoreStub struct {
	expiries   map[string]time.Time
	pruneCalls []time.Time
	pruneErr   error
}

func newRevocationStoreStub() *revocationStoreStub {
	return &revocationStoreStub{expiries: make(map[string]time.Time)}
}

func (s *revocationStoreStub) RevokeToken(ctx context.Context, tokenID, userID string, expiresAt, revokedAt time.Time) error {
	s.expiries[tokenID] = expiresAt
	return nil
}

func (s *revocationStoreStub) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, ok := s.expiries[tokenID]
	return ok, nil
}

func (s *revocationStoreStub) DeleteExpiredTokens(ctx context.Context, reference time.Time) error {
	if s.pruneErr != nil {
		return s.pruneErr
	}
	s.pruneCalls = append(s.pruneCalls, reference)
	for id, expiresAt := range s.expiries {
		if !expiresAt.After(reference) {
			delete(s.expiries, id)
		}
	}
	return nil
}
