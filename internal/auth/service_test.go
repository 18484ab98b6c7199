package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/shared"
)

type fixture struct {
	svc    *Service
	repo   *memoryRepo
	users  *memoryUsers
	mailer *recordingMailer
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{repo: newMemoryRepo(), users: newMemoryUsers(), mailer: &recordingMailer{}, now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	f.svc = NewService(f.repo, f.users, f.mailer, nil, WithBcryptCost(bcrypt.MinCost), WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) signup(t *testing.T, email string) string {
	t.Helper()
	_, err := f.svc.Signup(context.Background(), SignupInput{Email: email, Password: "Password123!", DisplayName: "Khup Thang", Languages: []string{"ctd"}})
	require.NoError(t, err)
	mail, ok := f.mailer.last("verification")
	require.True(t, ok)
	return mail.token
}

func TestSignupVerifyLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	token := f.signup(t, " Khup@Example.com ")

	_, err := f.svc.Login(ctx, LoginInput{Email: "khup@example.com", Password: "Password123!"})
	assert.ErrorIs(t, err, shared.ErrEmailNotVerified)

	actor, err := f.svc.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleMember, actor.Role)
	assert.True(t, actor.EmailVerified)
	_, ok := f.mailer.last("welcome")
	assert.True(t, ok)

	_, err = f.svc.Verify(ctx, token)
	assert.ErrorIs(t, err, shared.ErrTokenInvalid, "tokens are single use")

	actor, err = f.svc.Login(ctx, LoginInput{Email: "KHUP@example.com", Password: "Password123!"})
	require.NoError(t, err)
	assert.Equal(t, "khup@example.com", actor.Email)

	_, err = f.svc.Login(ctx, LoginInput{Email: "khup@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestSignupRejectsDuplicatesAndBadInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.signup(t, "lal@example.com")

	_, err := f.svc.Signup(ctx, SignupInput{Email: "LAL@example.com", Password: "Password123!", DisplayName: "Lal"})
	assert.ErrorIs(t, err, httpx.ErrDuplicate)

	_, err = f.svc.Signup(ctx, SignupInput{Email: "nope", Password: "short", DisplayName: "L"})
	assert.Error(t, err)
	assert.True(t, httpx.IsClientError(err))
}

func TestVerificationTokenExpires(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	token := f.signup(t, "cin@example.com")

	f.now = f.now.Add(25 * time.Hour)
	_, err := f.svc.Verify(ctx, token)
	assert.ErrorIs(t, err, shared.ErrTokenInvalid)
}

func TestResendRotatesToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.signup(t, "cin@example.com")

	require.NoError(t, f.svc.ResendVerification(ctx, "cin@example.com"))
	second, _ := f.mailer.last("verification")
	assert.NotEqual(t, first, second.token)

	_, err := f.svc.Verify(ctx, first)
	assert.ErrorIs(t, err, shared.ErrTokenInvalid)
	_, err = f.svc.Verify(ctx, second.token)
	assert.NoError(t, err)

	require.NoError(t, f.svc.ResendVerification(ctx, "nobody@example.com"))
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.signup(t, "niang@example.com")

	require.NoError(t, f.svc.ForgotPassword(ctx, "ghost@example.com"))
	_, sent := f.mailer.last("reset")
	assert.False(t, sent)

	require.NoError(t, f.svc.ForgotPassword(ctx, "niang@example.com"))
	mail, sent := f.mailer.last("reset")
	require.True(t, sent)

	actor, err := f.svc.ResetPassword(ctx, ResetInput{Token: mail.token, Password: "NewPassword1"})
	require.NoError(t, err)
	assert.True(t, actor.EmailVerified)

	_, err = f.svc.Login(ctx, LoginInput{Email: "niang@example.com", Password: "NewPassword1"})
	assert.NoError(t, err)

	_, err = f.svc.ResetPassword(ctx, ResetInput{Token: mail.token, Password: "Another123"})
	assert.ErrorIs(t, err, shared.ErrTokenInvalid)
}

func TestLoginThrottle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.throttle = NewThrottle(2, time.Hour)

	for i := 0; i < 2; i++ {
		_, err := f.svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "x"})
		assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	}
	_, err := f.svc.Login(ctx, LoginInput{Email: "A@example.com", Password: "x"})
	assert.ErrorIs(t, err, shared.ErrTooManyAttempts)
}

func TestPurgeExpired(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "old@example.com")
	f.now = f.now.Add(48 * time.Hour)
	n, err := f.svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
