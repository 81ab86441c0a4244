package auth

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"infinitiflow/internal/config"
	"infinitiflow/internal/services/email"
	"infinitiflow/internal/services/subscription"
	"infinitiflow/internal/services/tokens"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var silentLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// memUsers is an in-memory UsersRepo with the same update semantics as the Mongo one.
type memUsers struct {
	mu     sync.Mutex
	byID   map[bson.ObjectID]User
	writes int
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[bson.ObjectID]User{}}
}

func (m *memUsers) Create(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	m.byID[user.ID] = *user
	return nil
}

func (m *memUsers) find(match func(User) bool) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if match(u) {
			cp := u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUsers) FindByID(_ context.Context, id bson.ObjectID) (*User, error) {
	return m.find(func(u User) bool { return u.ID == id })
}

func (m *memUsers) FindByEmail(_ context.Context, addr string) (*User, error) {
	return m.find(func(u User) bool { return u.Email == addr })
}

func (m *memUsers) Update(_ context.Context, id bson.ObjectID, ch Changes) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if ch.FirstName != nil {
		u.FirstName = *ch.FirstName
	}
	if ch.LastName != nil {
		u.LastName = *ch.LastName
	}
	if ch.Company != nil {
		u.Company = *ch.Company
	}
	if ch.Role != nil {
		u.Role = *ch.Role
	}
	if ch.Active != nil {
		u.Active = *ch.Active
	}
	if ch.PasswordHash != nil {
		u.PasswordHash = *ch.PasswordHash
	}
	if ch.PasswordChangedAt != nil {
		changed := *ch.PasswordChangedAt
		u.PasswordChangedAt = &changed
	}
	u.UpdatedAt = ch.UpdatedAt
	m.byID[id] = u
	m.writes++
	return &u, nil
}

func tokenSlots(u *User, kind TokenKind) (*string, **time.Time) {
	if kind == TokenEmailVerification {
		return &u.EmailVerificationToken, &u.EmailVerificationExpires
	}
	return &u.PasswordResetToken, &u.PasswordResetExpires
}

func (m *memUsers) SetToken(_ context.Context, id bson.ObjectID, kind TokenKind, hashed string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	token, exp := tokenSlots(&u, kind)
	*token, *exp = hashed, &expires
	m.byID[id] = u
	m.writes++
	return nil
}

func (m *memUsers) ClearToken(_ context.Context, id bson.ObjectID, kind TokenKind, hashed string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil
	}
	token, exp := tokenSlots(&u, kind)
	if *token == hashed {
		*token, *exp = "", nil
		m.byID[id] = u
		m.writes++
	}
	return nil
}

// consume finds and updates under one lock, like FindOneAndUpdate.
func (m *memUsers) consume(kind TokenKind, hashed string, now time.Time, apply func(*User)) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.byID {
		token, exp := tokenSlots(&u, kind)
		if *token != hashed || *exp == nil || !(*exp).After(now) {
			continue
		}
		*token, *exp = "", nil
		apply(&u)
		u.UpdatedAt = now
		m.byID[id] = u
		m.writes++
		return &u, nil
	}
	return nil, ErrNotFound
}

func (m *memUsers) ConsumeResetToken(_ context.Context, hashed string, now time.Time, passwordHash string, changedAt time.Time) (*User, error) {
	return m.consume(TokenPasswordReset, hashed, now, func(u *User) {
		u.PasswordHash = passwordHash
		u.PasswordChangedAt = &changedAt
		u.resetLockout()
	})
}

func (m *memUsers) ConsumeVerificationToken(_ context.Context, hashed string, now time.Time) (*User, error) {
	return m.consume(TokenEmailVerification, hashed, now, func(u *User) {
		u.IsEmailVerified = true
	})
}

func (m *memUsers) RecordLoginFailure(_ context.Context, id bson.ObjectID, restart bool, maxAttempts int, lockUntil time.Time) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if restart {
		u.LoginAttempts = 1
	} else {
		u.LoginAttempts++
	}
	if u.LoginAttempts >= maxAttempts {
		u.LockUntil = &lockUntil
	} else {
		u.LockUntil = nil
	}
	m.byID[id] = u
	return &u, nil
}

func (m *memUsers) RecordLogin(_ context.Context, id bson.ObjectID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.LoginAttempts = 0
	u.LockUntil = nil
	u.LastLoginAt = &at
	m.byID[id] = u
	return nil
}

func (m *memUsers) get(id bson.ObjectID) User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

func (m *memUsers) put(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[u.ID] = u
}

type memSubs struct {
	mu   sync.Mutex
	subs map[bson.ObjectID]*subscription.Subscription
}

func (m *memSubs) Open(_ context.Context, userID bson.ObjectID) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs == nil {
		m.subs = map[bson.ObjectID]*subscription.Subscription{}
	}
	s := subscription.New(userID, time.Now().UTC())
	m.subs[userID] = s
	return s, nil
}

func (m *memSubs) ForUser(_ context.Context, userID bson.ObjectID) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[userID]
	if !ok {
		return nil, subscription.ErrNotFound
	}
	return s, nil
}

type outbox struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg email.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) last(t email.Template) (email.Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.sent) - 1; i >= 0; i-- {
		if o.sent[i].Template == t {
			return o.sent[i], true
		}
	}
	return email.Message{}, false
}

// tokenFromLink returns the last path segment of the link in msg.
func tokenFromLink(msg email.Message) string {
	url, _ := msg.Data["url"].(string)
	return url[strings.LastIndex(url, "/")+1:]
}

var testConfig = config.Config{
	BcryptCost:       4,
	ClientURL:        "http://localhost:3000",
	JWTSecret:        "test-access-secret-with-at-least-32-chars",
	JWTRefreshSecret: "test-refresh-secret-with-at-least-32-chars",
	JWTAlgorithm:     "HS256",
	JWTExpire:        15 * time.Minute,
	JWTRefreshExpire: 720 * time.Hour,
}

type harness struct {
	svc    *Service
	users  *memUsers
	subs   *memSubs
	mail   *outbox
	issuer *tokens.Issuer
	clock  time.Time
}

func newHarness() *harness {
	h := &harness{
		users:  newMemUsers(),
		subs:   &memSubs{},
		mail:   &outbox{},
		issuer: tokens.NewIssuer(testConfig),
		clock:  time.Now().UTC(),
	}
	h.svc = NewService(h.users, h.subs, h.issuer, h.mail, testConfig, silentLogger)
	h.svc.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
}
