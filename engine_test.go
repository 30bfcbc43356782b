package goReset

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goReset/internal/limiters"
	"github.com/MrEthical07/goReset/internal/stores"
	"github.com/MrEthical07/goReset/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockDirectory struct {
	mu        sync.Mutex
	users     map[string]UserRecord // keyed by normalized email
	byID      map[string]string
	lookupErr error
	updateErr error

	updatePasswordCalls int
}

func newMockDirectory(users ...UserRecord) *mockDirectory {
	d := &mockDirectory{
		users: map[string]UserRecord{},
		byID:  map[string]string{},
	}
	for _, u := range users {
		d.users[u.Email] = u
		d.byID[u.UserID] = u.Email
	}
	return d
}

func (d *mockDirectory) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lookupErr != nil {
		return UserRecord{}, d.lookupErr
	}
	user, ok := d.users[email]
	if !ok {
		return UserRecord{}, errors.New("user not found")
	}
	return user, nil
}

func (d *mockDirectory) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.updatePasswordCalls++
	if d.updateErr != nil {
		return d.updateErr
	}

	email, ok := d.byID[userID]
	if !ok {
		return errors.New("user not found")
	}
	user := d.users[email]
	user.PasswordHash = newHash
	d.users[email] = user
	return nil
}

type recordingMailer struct {
	sent    chan EmailMessage
	sendErr error
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{
		sent: make(chan EmailMessage, 16),
	}
}

func (m *recordingMailer) Send(_ context.Context, msg EmailMessage) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent <- msg
	return nil
}

func (m *recordingMailer) waitForMessage(t *testing.T) EmailMessage {
	t.Helper()

	select {
	case msg := <-m.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reset mail")
		return EmailMessage{}
	}
}

// codeFromBody extracts the plaintext code from the dispatched mail body.
func codeFromBody(t *testing.T, body string) string {
	t.Helper()

	const marker = "code is: "
	idx := strings.Index(body, marker)
	if idx < 0 {
		t.Fatalf("mail body missing code marker: %q", body)
	}
	rest := body[idx+len(marker):]
	end := strings.IndexByte(rest, '\n')
	if end < 0 {
		end = len(rest)
	}
	return rest[:end]
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func newTestHasher(t *testing.T) *password.Argon2 {
	t.Helper()

	h, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return h
}

func newTestEngine(
	t *testing.T,
	rdb *redis.Client,
	dir UserDirectory,
	mail EmailSender,
) (*Engine, *testClock) {
	t.Helper()

	clock := newTestClock()
	cfg := defaultConfig()

	engine := &Engine{
		config: cfg,
		store:  stores.NewResetStore(rdb, cfg.Reset.RedisPrefix, clock.Now),
		limiter: limiters.NewResetLimiter(rdb, limiters.Config{
			Cooldown:    cfg.Reset.Cooldown,
			MaxPerEmail: cfg.Reset.MaxRequestsPerEmail,
			MaxPerIP:    cfg.Reset.MaxRequestsPerIP,
			Window:      cfg.Reset.RateWindow,
		}, cfg.Reset.RedisPrefix, clock.Now),
		directory:    dir,
		mailer:       mail,
		metrics:      NewMetrics(cfg.Metrics),
		passwordHash: newTestHasher(t),
		now:          clock.Now,
	}
	return engine, clock
}

// clearCooldown advances both the logical clock and miniredis time past the
// cooldown so the next request is admitted.
func clearCooldown(mr *miniredis.Miniredis, clock *testClock) {
	mr.FastForward(61 * time.Second)
	clock.Advance(61 * time.Second)
}

func TestConfigValidateDefaults(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"short digits", func(c *Config) { c.Reset.CodeDigits = 4 }},
		{"token ttl above code ttl", func(c *Config) { c.Reset.TokenTTL = c.Reset.CodeTTL + time.Minute }},
		{"zero cooldown", func(c *Config) { c.Reset.Cooldown = 0 }},
		{"zero attempts", func(c *Config) { c.Reset.MaxVerifyAttempts = 0 }},
		{"weak password floor", func(c *Config) { c.Reset.MinPasswordLength = 6 }},
		{"empty prefix", func(c *Config) { c.Reset.RedisPrefix = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestBuilderRequiresDependencies(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	if _, err := New().Build(); err == nil {
		t.Fatal("expected error without redis")
	}
	if _, err := New().WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error without user directory")
	}
	if _, err := New().WithRedis(rdb).WithUserDirectory(newMockDirectory()).Build(); err == nil {
		t.Fatal("expected error without mailer")
	}

	b := New().
		WithRedis(rdb).
		WithUserDirectory(newMockDirectory()).
		WithMailer(newRecordingMailer())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on builder reuse")
	}
}

func TestAuthenticate(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	hasher := newTestHasher(t)
	hash, err := hasher.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	dir := newMockDirectory(UserRecord{UserID: "u1", Email: "alice@example.com", PasswordHash: hash})
	engine, _ := newTestEngine(t, rdb, dir, newRecordingMailer())

	ctx := context.Background()

	user, err := engine.Authenticate(ctx, "Alice@Example.com ", "correct horse battery")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if user.UserID != "u1" {
		t.Fatalf("expected user u1, got %q", user.UserID)
	}

	if _, err := engine.Authenticate(ctx, "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := engine.Authenticate(ctx, "nobody@example.com", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}
