package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionIssuer = "room-booking"

// CredentialStore exposes user credential lookup operations required by the auth service.
type CredentialStore interface {
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	GetUser(ctx context.Context, id string) (User, error)
}

// TokenRevocationStore remembers logged out session tokens until they expire.
type TokenRevocationStore interface {
	RevokeToken(ctx context.Context, tokenID, userID string, expiresAt, revokedAt time.Time) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
	DeleteExpiredTokens(ctx context.Context, reference time.Time) error
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// AuthServiceConfig carries the signing secret and lifetime of session tokens.
type AuthServiceConfig struct {
	Secret     []byte
	SessionTTL time.Duration
}

// SessionClaims is the payload of a signed session token.
type SessionClaims struct {
	UserID  string `json:"uid"`
	IsAdmin bool   `json:"adm"`
	jwt.RegisteredClaims
}

// AuthService coordinates login, session validation and logout.
type AuthService struct {
	credentials    CredentialStore
	revocations    TokenRevocationStore
	verifyPassword PasswordVerifier
	idGenerator    func() string
	now            func() time.Time
	secret         []byte
	sessionTTL     time.Duration
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, revocations TokenRevocationStore, verify PasswordVerifier, idGenerator func() string, now func() time.Time, cfg AuthServiceConfig) *AuthService {
	return NewAuthServiceWithLogger(credentials, revocations, verify, idGenerator, now, cfg, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(credentials CredentialStore, revocations TokenRevocationStore, verify PasswordVerifier, idGenerator func() string, now func() time.Time, cfg AuthServiceConfig, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	return &AuthService{
		credentials:    credentials,
		revocations:    revocations,
		verifyPassword: verify,
		idGenerator:    idGenerator,
		now:            now,
		secret:         cfg.Secret,
		sessionTTL:     cfg.SessionTTL,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate validates credentials and issues a signed session token.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	password := params.Password

	logger := s.loggerWith(ctx, "Authenticate",
		"email", email,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"user_id", result.User.ID,
			"session_id", result.Session.ID,
		).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds UserCredentials
	creds, err = s.credentials.GetUserCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(mapUserRepoError(err), ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}

	if err = s.verifyPassword(creds.PasswordHash, password); err != nil {
		err = ErrInvalidCredentials
		return
	}

	var session Session
	session, err = s.issue(creds.User)
	if err != nil {
		return
	}

	result = AuthenticateResult{User: creds.User, Session: session}
	return
}

func (s *AuthService) issue(user User) (Session, error) {
	if len(s.secret) == 0 {
		return Session{}, fmt.Errorf("session secret not configured")
	}

	now := s.now()
	session := Session{
		ID:        s.idGenerator(),
		UserID:    user.ID,
		IsAdmin:   user.IsAdmin,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	claims := SessionClaims{
		UserID:  user.ID,
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Issuer:    sessionIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign session token: %w", err)
	}
	session.Token = token
	return session, nil
}

// parse verifies the signature and expiry of token and returns its claims.
func (s *AuthService) parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return claims, ErrSessionExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.ID == "" || claims.UserID == "" {
		return nil, fmt.Errorf("%w: session token is missing its identifiers", ErrUnauthorized)
	}
	return claims, nil
}

// RevokeSession records the token as logged out. Tokens that already expired need
// no record and are accepted silently.
func (s *AuthService) RevokeSession(ctx context.Context, token string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.revocations == nil {
		return fmt.Errorf("token revocation store not configured")
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "RevokeSession", "token_provided", trimmed != "")
	if trimmed == "" {
		logger.ErrorContext(ctx, "failed to revoke session", "error", ErrInvalidCredentials, "error_kind", ErrorKind(ErrInvalidCredentials))
		return ErrInvalidCredentials
	}

	claims, err := s.parse(trimmed)
	if errors.Is(err, ErrSessionExpired) {
		logger.InfoContext(ctx, "session already expired")
		return nil
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to revoke session", "error", ErrInvalidCredentials, "error_kind", ErrorKind(ErrInvalidCredentials))
		return ErrInvalidCredentials
	}

	logger = logger.With("session_id", claims.ID, "user_id", claims.UserID)
	now := s.now()
	if err := s.revocations.RevokeToken(ctx, claims.ID, claims.UserID, claims.ExpiresAt.Time, now); err != nil {
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	if err := s.revocations.DeleteExpiredTokens(ctx, now); err != nil {
		logger.ErrorContext(ctx, "failed to prune expired revocations", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "session revoked")
	return nil
}

// ValidateSession verifies that the provided token is a live session and returns
// its principal. The administrator flag is read from the current user record.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateSession", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("principal_id", principal.UserID).InfoContext(ctx, "session validated")
	}()

	if trimmed == "" {
		err = ErrInvalidCredentials
		return
	}

	var claims *SessionClaims
	claims, err = s.parse(trimmed)
	if err != nil {
		return
	}

	if s.revocations != nil {
		var revoked bool
		revoked, err = s.revocations.IsTokenRevoked(ctx, claims.ID)
		if err != nil {
			return
		}
		if revoked {
			err = ErrSessionRevoked
			return
		}
	}

	var user User
	user, err = s.credentials.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(mapUserRepoError(err), ErrNotFound) {
			err = ErrUnauthorized
		}
		return
	}

	principal = Principal{UserID: user.ID, IsAdmin: user.IsAdmin}
	return
}
