package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/shared"
	"github.com/sizang-hub/sizang-hub/internal/users"
)

type storedToken struct {
	userID   string
	purpose  TokenPurpose
	expires  time.Time
	consumed bool
}

type memoryRepo struct {
	mu       sync.Mutex
	tokens   map[string]*storedToken
	sessions map[string]string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{tokens: map[string]*storedToken{}, sessions: map[string]string{}}
}

func (m *memoryRepo) CreateToken(ctx context.Context, hash, userID string, purpose TokenPurpose, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[hash] = &storedToken{userID: userID, purpose: purpose, expires: expiresAt}
	return nil
}

func (m *memoryRepo) ConsumeToken(ctx context.Context, hash string, purpose TokenPurpose, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[hash]
	if !ok || tok.consumed || tok.purpose != purpose || !now.Before(tok.expires) {
		return "", shared.ErrTokenInvalid
	}
	tok.consumed = true
	return tok.userID, nil
}

func (m *memoryRepo) InvalidateTokens(ctx context.Context, userID string, purpose TokenPurpose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tok := range m.tokens {
		if tok.userID == userID && tok.purpose == purpose {
			tok.consumed = true
		}
	}
	return nil
}

func (m *memoryRepo) CreateSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = userID
	return nil
}

func (m *memoryRepo) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memoryRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for hash, tok := range m.tokens {
		if now.After(tok.expires) {
			delete(m.tokens, hash)
			n++
		}
	}
	return n, nil
}

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]users.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]users.User{}}
}

func (m *memoryUsers) Get(ctx context.Context, id string) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return users.User{}, fmt.Errorf("%w: user %s", httpx.ErrNotFound, id)
	}
	return u, nil
}

func (m *memoryUsers) GetByEmail(ctx context.Context, email string) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return users.User{}, fmt.Errorf("%w: user %s", httpx.ErrNotFound, email)
}

func (m *memoryUsers) Create(ctx context.Context, input users.NewUser) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, input.Email) {
			return users.User{}, fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
		}
	}
	u := users.User{
		ID:            fmt.Sprintf("u%d", len(m.users)+1),
		Email:         input.Email,
		DisplayName:   input.DisplayName,
		PasswordHash:  input.PasswordHash,
		Role:          input.Role,
		EmailVerified: input.Verified,
		Languages:     input.Languages,
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memoryUsers) MarkVerified(ctx context.Context, id string) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return users.User{}, httpx.ErrNotFound
	}
	u.EmailVerified = true
	m.users[id] = u
	return u, nil
}

func (m *memoryUsers) SetPassword(ctx context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return httpx.ErrNotFound
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

type sentMail struct {
	kind  string
	to    Recipient
	token string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) record(kind string, to Recipient, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: kind, to: to, token: token})
	return nil
}

func (m *recordingMailer) SendVerification(ctx context.Context, to Recipient, token string) error {
	return m.record("verification", to, token)
}

func (m *recordingMailer) SendWelcome(ctx context.Context, to Recipient) error {
	return m.record("welcome", to, "")
}

func (m *recordingMailer) SendPasswordReset(ctx context.Context, to Recipient, token string) error {
	return m.record("reset", to, token)
}

func (m *recordingMailer) last(kind string) (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == kind {
			return m.sent[i], true
		}
	}
	return sentMail{}, false
}
