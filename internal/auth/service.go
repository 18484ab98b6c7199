package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/shared"
	"github.com/sizang-hub/sizang-hub/internal/users"
)

// UserStore is the subset of the users repository auth relies on.
type UserStore interface {
	Get(ctx context.Context, id string) (users.User, error)
	GetByEmail(ctx context.Context, email string) (users.User, error)
	Create(ctx context.Context, input users.NewUser) (users.User, error)
	MarkVerified(ctx context.Context, id string) (users.User, error)
	SetPassword(ctx context.Context, id, hash string) error
}

// Mailer delivers account emails. Implementations usually enqueue work.
type Mailer interface {
	SendVerification(ctx context.Context, to Recipient, token string) error
	SendWelcome(ctx context.Context, to Recipient) error
	SendPasswordReset(ctx context.Context, to Recipient, token string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	users    UserStore
	mailer   Mailer
	throttle *Throttle
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
	cost     int
}

// Option configures Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) { s.now = fn }
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithThrottle overrides the sign-in throttle.
func WithThrottle(t *Throttle) Option {
	return func(s *Service) { s.throttle = t }
}

// NewService constructs a new Service.
func NewService(repo Repository, store UserStore, mailer Mailer, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:     repo,
		users:    store,
		mailer:   mailer,
		throttle: NewThrottle(5, time.Minute),
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
		cost:     bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup creates an unverified member and sends the verification email.
// The new account is not signed in.
func (s *Service) Signup(ctx context.Context, input SignupInput) (users.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if err := s.validate.Struct(input); err != nil {
		return users.User{}, err
	}
	languages, err := users.NormalizeLanguages(input.Languages)
	if err != nil {
		return users.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return users.User{}, fmt.Errorf("auth: hash password: %w", err)
	}
	user, err := s.users.Create(ctx, users.NewUser{
		Email:        input.Email,
		DisplayName:  input.DisplayName,
		PasswordHash: string(hash),
		Role:         rbac.RoleMember,
		Languages:    languages,
	})
	if err != nil {
		return users.User{}, err
	}
	if err := s.sendVerification(ctx, user); err != nil {
		return user, err
	}
	return user, nil
}

// ResendVerification rotates the verification token of an unverified
// account. Unknown and already verified addresses are ignored.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, httpx.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return nil
	}
	if err := s.repo.InvalidateTokens(ctx, user.ID, PurposeVerification); err != nil {
		return err
	}
	return s.sendVerification(ctx, user)
}

// Verify consumes a verification token and returns the now verified actor.
func (s *Service) Verify(ctx context.Context, token string) (rbac.Actor, error) {
	userID, err := s.repo.ConsumeToken(ctx, hashToken(token), PurposeVerification, s.now())
	if err != nil {
		return rbac.Actor{}, err
	}
	user, err := s.users.MarkVerified(ctx, userID)
	if err != nil {
		return rbac.Actor{}, err
	}
	if err := s.mailer.SendWelcome(ctx, recipientOf(user)); err != nil {
		s.logger.Warn("enqueue welcome email", slog.String("user_id", user.ID), slog.Any("error", err))
	}
	return user.Actor(), nil
}

// Login checks credentials and returns the actor to sign in.
func (s *Service) Login(ctx context.Context, input LoginInput) (rbac.Actor, error) {
	if err := s.validate.Struct(input); err != nil {
		return rbac.Actor{}, shared.ErrInvalidCredentials
	}
	if !s.throttle.Allow(input.Email) {
		return rbac.Actor{}, shared.ErrTooManyAttempts
	}
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(input.Email))
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return rbac.Actor{}, shared.ErrInvalidCredentials
		}
		return rbac.Actor{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return rbac.Actor{}, shared.ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return rbac.Actor{}, shared.ErrEmailNotVerified
	}
	s.throttle.Reset(input.Email)
	return user.Actor(), nil
}

// ForgotPassword issues a reset token when the address belongs to an
// account. The outcome is never revealed to the caller.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, httpx.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.repo.InvalidateTokens(ctx, user.ID, PurposeReset); err != nil {
		return err
	}
	token, err := s.issueToken(ctx, user.ID, PurposeReset)
	if err != nil {
		return err
	}
	return s.mailer.SendPasswordReset(ctx, recipientOf(user), token)
}

// ResetPassword consumes a reset token, stores the new password and returns
// the actor to sign in. Completing a reset also proves email ownership.
func (s *Service) ResetPassword(ctx context.Context, input ResetInput) (rbac.Actor, error) {
	if err := s.validate.Struct(input); err != nil {
		return rbac.Actor{}, err
	}
	userID, err := s.repo.ConsumeToken(ctx, hashToken(input.Token), PurposeReset, s.now())
	if err != nil {
		return rbac.Actor{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return rbac.Actor{}, fmt.Errorf("auth: hash password: %w", err)
	}
	if err := s.users.SetPassword(ctx, userID, string(hash)); err != nil {
		return rbac.Actor{}, err
	}
	user, err := s.users.MarkVerified(ctx, userID)
	if err != nil {
		return rbac.Actor{}, err
	}
	return user.Actor(), nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// PurgeExpired removes expired tokens and session rows.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}

func (s *Service) sendVerification(ctx context.Context, user users.User) error {
	token, err := s.issueToken(ctx, user.ID, PurposeVerification)
	if err != nil {
		return err
	}
	return s.mailer.SendVerification(ctx, recipientOf(user), token)
}

func (s *Service) issueToken(ctx context.Context, userID string, purpose TokenPurpose) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: token entropy: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	if err := s.repo.CreateToken(ctx, hashToken(token), userID, purpose, s.now().Add(oneTimeTokenTTL)); err != nil {
		return "", err
	}
	return token, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}

func recipientOf(u users.User) Recipient {
	return Recipient{UserID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}

// LogMailer writes account emails to the log instead of sending them.
type LogMailer struct {
	Logger  *slog.Logger
	BaseURL string
}

// SendVerification implements Mailer.
func (m LogMailer) SendVerification(ctx context.Context, to Recipient, token string) error {
	m.Logger.Info("verification email", slog.String("to", to.Email), slog.String("link", m.BaseURL+"/auth/verify?token="+token))
	return nil
}

// SendWelcome implements Mailer.
func (m LogMailer) SendWelcome(ctx context.Context, to Recipient) error {
	m.Logger.Info("welcome email", slog.String("to", to.Email))
	return nil
}

// SendPasswordReset implements Mailer.
func (m LogMailer) SendPasswordReset(ctx context.Context, to Recipient, token string) error {
	m.Logger.Info("password reset email", slog.String("to", to.Email), slog.String("link", m.BaseURL+"/auth/reset-password?token="+token))
	return nil
}
