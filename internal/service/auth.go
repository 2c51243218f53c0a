// Package service provides the authentication and profile business logic,
// delegating persistence to repositories.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/beitak/beitak/internal/apperr"
	"github.com/beitak/beitak/internal/metrics"
	"github.com/beitak/beitak/internal/models"
)

const (
	// MinPasswordLength is the shortest password accepted at sign-up and reset.
	MinPasswordLength = 8
	// DefaultCodeTTL bounds how long a magic-link or reset code stays redeemable.
	DefaultCodeTTL = 10 * time.Minute
	// MaxCodeAttempts is the number of wrong guesses that burns a code.
	MaxCodeAttempts = 5
)

var (
	// ErrInvalidCredentials signals a wrong email or password.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrInvalidCode signals an unknown, expired or mismatching one-time code.
	ErrInvalidCode = errors.New("invalid or expired code")
)

// UserRepository defines the user and code persistence the auth service needs.
type UserRepository interface {
	CreateUser(ctx context.Context, email string, passwordHash []byte) (models.User, error)
	EnsureUser(ctx context.Context, email string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	SetPassword(ctx context.Context, email string, passwordHash []byte) error
	SaveCode(ctx context.Context, code models.AuthCode) error
	GetCode(ctx context.Context, email string, purpose models.CodePurpose) (models.AuthCode, error)
	RecordFailedAttempt(ctx context.Context, email string, purpose models.CodePurpose) (int, error)
	DeleteCode(ctx context.Context, email string, purpose models.CodePurpose) error
}

// ProfileCreator creates the profile row at first authentication.
type ProfileCreator interface {
	CreateProfile(ctx context.Context, id, email string) error
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error
}

// AuthOptions tunes an AuthService. Zero values fall back to defaults.
type AuthOptions struct {
	// CallbackURL is the deep link embedded in magic-link mails.
	CallbackURL string
	CodeTTL     time.Duration
	// HashCost is the bcrypt cost; tests lower it to bcrypt.MinCost.
	HashCost int
	// IDTokens verifies provider ID tokens. Nil disables OAuth sign-in.
	IDTokens IDTokenVerifier
}

// AuthService implements magic-link, password and reset flows.
type AuthService struct {
	users    UserRepository
	profiles ProfileCreator
	tokens   *TokenService
	mailer   Mailer
	idTokens IDTokenVerifier
	metrics  *metrics.Metrics
	log      *zap.Logger

	callbackURL string
	codeTTL     time.Duration
	hashCost    int
	now         func() time.Time
}

// NewAuthService constructs an AuthService. All collaborators are required.
func NewAuthService(
	users UserRepository,
	profiles ProfileCreator,
	tokens *TokenService,
	mailer Mailer,
	m *metrics.Metrics,
	log *zap.Logger,
	opts AuthOptions,
) *AuthService {
	s := &AuthService{
		users:       users,
		profiles:    profiles,
		tokens:      tokens,
		mailer:      mailer,
		idTokens:    opts.IDTokens,
		metrics:     m,
		log:         log,
		callbackURL: opts.CallbackURL,
		codeTTL:     opts.CodeTTL,
		hashCost:    opts.HashCost,
		now:         time.Now,
	}
	if s.codeTTL <= 0 {
		s.codeTTL = DefaultCodeTTL
	}
	if s.hashCost == 0 {
		s.hashCost = bcrypt.DefaultCost
	}
	return s
}

// SendMagicLink mails a one-time sign-in code and the matching deep link to email.
func (s *AuthService) SendMagicLink(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	code, err := s.issueCode(ctx, email, models.PurposeMagicLink)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Your Beitak sign-in code is %s.\nOpen %s to continue.", code, s.magicLink(email, code))
	if err := s.mailer.Send(ctx, email, "Sign in to Beitak", body); err != nil {
		return fmt.Errorf("send magic link: %w", err)
	}
	s.metrics.MagicLinksSent.Inc()
	return nil
}

// VerifyCode redeems a magic-link code. The account and its profile row are
// created on first use.
func (s *AuthService) VerifyCode(ctx context.Context, email, code string) (models.AuthToken, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return models.AuthToken{}, err
	}
	if err := s.redeemCode(ctx, email, code, models.PurposeMagicLink); err != nil {
		return models.AuthToken{}, err
	}
	u, err := s.users.EnsureUser(ctx, email)
	if err != nil {
		return models.AuthToken{}, err
	}
	if err := s.profiles.CreateProfile(ctx, u.ID, u.Email); err != nil {
		return models.AuthToken{}, err
	}
	return s.signIn(u.ID, "otp")
}

// SignInWithIDToken exchanges a provider ID token for a session. The account
// is keyed by the token's verified email, so it joins any magic-link or
// password account with the same address.
func (s *AuthService) SignInWithIDToken(ctx context.Context, provider, idToken string) (models.AuthToken, error) {
	if strings.TrimSpace(idToken) == "" {
		return models.AuthToken{}, apperr.Invalid("id_token", "id token is required")
	}
	if s.idTokens == nil {
		return models.AuthToken{}, apperr.Invalid("provider", "sign-in with %q is not available", provider)
	}
	id, err := s.idTokens.Verify(ctx, provider, idToken)
	if err != nil {
		return models.AuthToken{}, err
	}
	email, err := normalizeEmail(id.Email)
	if err != nil {
		return models.AuthToken{}, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}
	u, err := s.users.EnsureUser(ctx, email)
	if err != nil {
		return models.AuthToken{}, err
	}
	if err := s.profiles.CreateProfile(ctx, u.ID, u.Email); err != nil {
		return models.AuthToken{}, err
	}
	return s.signIn(u.ID, "oauth_"+id.Provider)
}

// SignUp registers a password account and pre-fills the profile's full name.
func (s *AuthService) SignUp(ctx context.Context, fullName, email, password string) (models.AuthToken, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return models.AuthToken{}, apperr.Invalid("full_name", "full name is required")
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return models.AuthToken{}, err
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return models.AuthToken{}, err
	}
	u, err := s.users.CreateUser(ctx, email, hash)
	if err != nil {
		return models.AuthToken{}, err
	}
	if err := s.profiles.CreateProfile(ctx, u.ID, u.Email); err != nil {
		return models.AuthToken{}, err
	}
	if err := s.profiles.UpdateProfile(ctx, u.ID, models.ProfileUpdate{FullName: &fullName}); err != nil {
		return models.AuthToken{}, err
	}
	return s.signIn(u.ID, "password")
}

// SignIn authenticates with email and password.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (models.AuthToken, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.AuthToken{}, ErrInvalidCredentials
		}
		return models.AuthToken{}, err
	}
	if len(u.PasswordHash) == 0 {
		return models.AuthToken{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return models.AuthToken{}, ErrInvalidCredentials
	}
	if err := s.profiles.CreateProfile(ctx, u.ID, u.Email); err != nil {
		return models.AuthToken{}, err
	}
	return s.signIn(u.ID, "password")
}

// ResetPassword mails a reset code. Unknown emails are accepted silently so
// the endpoint does not reveal which addresses are registered.
func (s *AuthService) ResetPassword(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.log.Debug("password reset for unknown email")
			return nil
		}
		return err
	}
	code, err := s.issueCode(ctx, email, models.PurposePasswordReset)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Your Beitak password reset code is %s.", code)
	if err := s.mailer.Send(ctx, email, "Reset your Beitak password", body); err != nil {
		return fmt.Errorf("send reset code: %w", err)
	}
	return nil
}

// ConfirmReset redeems a reset code and stores the new password.
func (s *AuthService) ConfirmReset(ctx context.Context, email, code, newPassword string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.redeemCode(ctx, email, code, models.PurposePasswordReset); err != nil {
		return err
	}
	if err := s.users.SetPassword(ctx, email, hash); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return ErrInvalidCode
		}
		return err
	}
	return nil
}

// Authenticate verifies a bearer token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Claims, error) {
	return s.tokens.Verify(ctx, token)
}

// SignOut revokes the token described by claims.
func (s *AuthService) SignOut(ctx context.Context, claims *Claims) error {
	if err := s.tokens.Revoke(ctx, claims); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.metrics.SignOuts.Inc()
	return nil
}

func (s *AuthService) signIn(userID, method string) (models.AuthToken, error) {
	tok, err := s.tokens.Issue(userID)
	if err != nil {
		return models.AuthToken{}, err
	}
	s.metrics.IncSignIn(method)
	return tok, nil
}

func (s *AuthService) issueCode(ctx context.Context, email string, purpose models.CodePurpose) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}
	err = s.users.SaveCode(ctx, models.AuthCode{
		Email:     email,
		Purpose:   purpose,
		CodeHash:  hash,
		ExpiresAt: s.now().Add(s.codeTTL).UTC(),
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

func (s *AuthService) redeemCode(ctx context.Context, email, code string, purpose models.CodePurpose) error {
	stored, err := s.users.GetCode(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return ErrInvalidCode
		}
		return err
	}
	if !s.now().Before(stored.ExpiresAt) || stored.Attempts >= MaxCodeAttempts {
		s.burnCode(ctx, email, purpose)
		return ErrInvalidCode
	}
	if err := bcrypt.CompareHashAndPassword(stored.CodeHash, []byte(strings.TrimSpace(code))); err != nil {
		attempts, err := s.users.RecordFailedAttempt(ctx, email, purpose)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
		case err != nil:
			// Without a counter the code cannot be trusted any longer.
			s.log.Warn("failed to count code attempt", zap.Error(err))
			s.burnCode(ctx, email, purpose)
		case attempts >= MaxCodeAttempts:
			s.log.Info("code burnt after too many attempts", zap.String("purpose", string(purpose)))
			s.burnCode(ctx, email, purpose)
		}
		return ErrInvalidCode
	}
	return s.users.DeleteCode(ctx, email, purpose)
}

func (s *AuthService) burnCode(ctx context.Context, email string, purpose models.CodePurpose) {
	if err := s.users.DeleteCode(ctx, email, purpose); err != nil {
		s.log.Warn("failed to delete code", zap.Error(err))
	}
}

func (s *AuthService) hashPassword(password string) ([]byte, error) {
	if len(password) < MinPasswordLength {
		return nil, apperr.Invalid("password", "password must be at least %d characters", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (s *AuthService) magicLink(email, code string) string {
	u, err := url.Parse(s.callbackURL)
	if err != nil || s.callbackURL == "" {
		return ""
	}
	q := u.Query()
	q.Set("email", email)
	q.Set("code", code)
	u.RawQuery = q.Encode()
	return u.String()
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Invalid("email", "please enter a valid email")
	}
	return email, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
