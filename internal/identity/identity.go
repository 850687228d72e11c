// Package identity is the sign-up/sign-in collaborator: it owns credentials,
// issues session tokens and exposes the authenticated Principal.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/PaulBabatuyi/duochat/internal/apperr"
	"github.com/PaulBabatuyi/duochat/internal/auth"
	"github.com/PaulBabatuyi/duochat/internal/data"
	"github.com/PaulBabatuyi/duochat/internal/normalize"
)

// MinPasswordLength is the shortest password SignUp accepts.
const MinPasswordLength = 6

// Principal is an authenticated identity.
type Principal struct {
	ID          string
	Email       string
	DisplayName string
}

// Credentials is what a successful sign-in produces.
type Credentials struct {
	Principal Principal
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// AccountStore is the subset of data.AccountsStore the service needs.
type AccountStore interface {
	CreateAccount(ctx context.Context, email, displayName, hashedPassword string) (*data.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*data.Account, error)
}

// Revocations remembers signed-out token ids until they expire.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Service implements sign-up, sign-in, token authentication and sign-out.
type Service struct {
	accounts AccountStore
	tokens   *auth.JWTManager
	revoked  Revocations
	log      *slog.Logger
	now      func() time.Time
}

// NewService wires the identity service.
func NewService(accounts AccountStore, tokens *auth.JWTManager, revoked Revocations, log *slog.Logger) *Service {
	return &Service{
		accounts: accounts,
		tokens:   tokens,
		revoked:  revoked,
		log:      log.With("component", "identity"),
		now:      time.Now,
	}
}

// SignUpInput is the registration form.
type SignUpInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	DisplayName     string
}

// Validate rejects bad input before any network call.
func (in SignUpInput) Validate() error {
	const op = "identity.SignUp"

	email := normalize.Email(in.Email)
	if email == "" {
		return apperr.Invalid(op, "email is required")
	}
	if !strings.Contains(email, "@") {
		return apperr.Invalid(op, "email is invalid")
	}
	if in.Password != in.ConfirmPassword {
		return apperr.Invalid(op, "passwords don't match")
	}
	if len(in.Password) < MinPasswordLength {
		return apperr.Invalid(op, "password should be at least 6 characters")
	}
	return nil
}

// SignUp creates an account and signs it in.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*Credentials, error) {
	const op = "identity.SignUp"

	if err := in.Validate(); err != nil {
		return nil, err
	}

	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.E(op, apperr.Unknown, "", err)
	}

	name := normalize.DisplayName(in.DisplayName, in.Email)
	acct, err := s.accounts.CreateAccount(ctx, in.Email, name, hashed)
	if err != nil {
		if !apperr.Is(err, apperr.Conflict) {
			s.log.Error("create account failed", "error", err)
		}
		return nil, err
	}

	s.log.Info("account created", "user_id", acct.ID.Hex())
	return s.issue(acct)
}

// SignIn verifies an email/password pair. Unknown emails and wrong passwords
// produce the same Auth error.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Credentials, error) {
	const op = "identity.SignIn"

	if normalize.Email(email) == "" || password == "" {
		return nil, apperr.Invalid(op, "email and password are required")
	}

	acct, err := s.accounts.GetAccountByEmail(ctx, email)
	if errors.Is(err, data.ErrNotFound) {
		return nil, apperr.E(op, apperr.Auth, "invalid credentials", nil)
	}
	if err != nil {
		s.log.Error("account lookup failed", "error", err)
		return nil, err
	}

	if err := auth.CheckPassword(acct.Password, password); err != nil {
		return nil, apperr.E(op, apperr.Auth, "invalid credentials", nil)
	}
	return s.issue(acct)
}

func (s *Service) issue(acct *data.Account) (*Credentials, error) {
	p := Principal{
		ID:          acct.ID.Hex(),
		Email:       acct.Email,
		DisplayName: normalize.DisplayName(acct.DisplayName, acct.Email),
	}
	token, claims, err := s.tokens.GenerateToken(p.ID, p.Email, p.DisplayName)
	if err != nil {
		return nil, apperr.E("identity.issue", apperr.Unknown, "failed to generate token", err)
	}
	return &Credentials{
		Principal: p,
		Token:     token,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Authenticate verifies a bearer token and checks it has not been revoked.
func (s *Service) Authenticate(ctx context.Context, token string) (*Credentials, error) {
	const op = "identity.Authenticate"

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.E(op, apperr.Auth, "missing token", nil)
	}

	claims, err := s.tokens.VerifyToken(token)
	if err != nil {
		return nil, apperr.E(op, apperr.Auth, "invalid token", err)
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		s.log.Error("revocation check failed", "error", err)
		return nil, apperr.E(op, apperr.Unavailable, "", err)
	}
	if revoked {
		return nil, apperr.E(op, apperr.Auth, "session ended", nil)
	}

	return &Credentials{
		Principal: Principal{
			ID:          claims.UserID,
			Email:       claims.Email,
			DisplayName: normalize.DisplayName(claims.Name, claims.Email),
		},
		Token:     token,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Check re-validates a long-lived session. A session whose token expired or
// was revoked elsewhere is ended, which notifies its subscribers. A failed
// revocation lookup leaves the session alone and is returned as Unavailable.
func (s *Service) Check(ctx context.Context, sess *Session) error {
	const op = "identity.Check"

	creds := sess.Credentials()
	if !sess.Active() || creds == nil {
		return apperr.E(op, apperr.Auth, "session ended", nil)
	}
	if !s.now().Before(creds.ExpiresAt) {
		sess.End()
		return apperr.E(op, apperr.Auth, "session expired", nil)
	}

	revoked, err := s.revoked.IsRevoked(ctx, creds.TokenID)
	if err != nil {
		s.log.Warn("revocation check failed", "user_id", creds.Principal.ID, "error", err)
		return apperr.E(op, apperr.Unavailable, "", err)
	}
	if revoked {
		sess.End()
		s.log.Info("session revoked", "user_id", creds.Principal.ID)
		return apperr.E(op, apperr.Auth, "session ended", nil)
	}
	return nil
}

// SignOut revokes the session's token and ends the session, notifying its
// subscribers. Ending an already-ended session is a no-op.
func (s *Service) SignOut(ctx context.Context, sess *Session) error {
	creds := sess.Credentials()
	if creds == nil {
		return nil
	}
	if err := s.revoked.Revoke(ctx, creds.TokenID, creds.ExpiresAt); err != nil {
		s.log.Error("revoke token failed", "user_id", creds.Principal.ID, "error", err)
		return apperr.E("identity.SignOut", apperr.Unavailable, "", err)
	}
	sess.End()
	s.log.Info("signed out", "user_id", creds.Principal.ID)
	return nil
}
