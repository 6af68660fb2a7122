package session

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"ai4free/internal/kvstore"
	"ai4free/internal/metrics"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 9, 3, 8, 0, 0, 0, time.UTC)}
}

func TestLoginWithAllowedPassword(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(0)
	clock := newClock()
	g := NewGate(ctx, store, "", Options{Clock: clock.Now})

	if g.IsAuthenticated() {
		t.Fatal("fresh gate must not be authenticated")
	}
	if !g.Login(ctx, "admin123") {
		t.Fatal("expected login to succeed")
	}
	if !g.IsAuthenticated() || g.Error() != "" {
		t.Fatalf("unexpected state: auth=%v err=%q", g.IsAuthenticated(), g.Error())
	}
	flag, _, _ := store.Get(ctx, KeyAuthenticated)
	if flag != "true" {
		t.Fatalf("expected flag true, got %q", flag)
	}
	raw, _, _ := store.Get(ctx, KeyLoginTime)
	if raw != strconv.FormatInt(clock.Now().UnixMilli(), 10) {
		t.Fatalf("unexpected login time %q", raw)
	}
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	g := NewGate(ctx, kvstore.NewMemoryStore(0), "", Options{})

	if g.Login(ctx, "   ") {
		t.Fatal("blank password must be rejected")
	}
	if g.Error() != MsgPasswordRequired {
		t.Fatalf("unexpected error %q", g.Error())
	}
	if g.Login(ctx, "nope") {
		t.Fatal("unknown password must be rejected")
	}
	want := "密码错误，请重试。可用密码：admin, admin123, admin2024!"
	if g.Error() != want {
		t.Fatalf("expected %q, got %q", want, g.Error())
	}
	if g.IsAuthenticated() {
		t.Fatal("failed login must not authenticate")
	}
	if !g.Login(ctx, "admin") || g.Error() != "" {
		t.Fatal("successful login must clear the previous error")
	}
}

func TestLoginUsesConfiguredPasswords(t *testing.T) {
	ctx := context.Background()
	g := NewGate(ctx, kvstore.NewMemoryStore(0), "", Options{Passwords: []string{"s3cret"}})
	if g.Login(ctx, "admin") {
		t.Fatal("default password must not work when passwords are configured")
	}
	if g.Error() != "密码错误，请重试。可用密码：s3cret" {
		t.Fatalf("unexpected error %q", g.Error())
	}
	if !g.Login(ctx, "s3cret") {
		t.Fatal("configured password should work")
	}
}

func TestLogoutClearsState(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(0)
	g := NewGate(ctx, store, "p:", Options{})
	g.Login(ctx, "admin")
	g.Logout(ctx)
	if g.IsAuthenticated() {
		t.Fatal("expected logged out")
	}
	keys, _ := store.Keys(ctx)
	if len(keys) != 0 {
		t.Fatalf("expected no session keys, got %v", keys)
	}
}

func TestStateSurvivesReload(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(0)
	clock := newClock()
	g := NewGate(ctx, store, "s1:", Options{Clock: clock.Now})
	g.Login(ctx, "admin")

	reloaded := NewGate(ctx, store, "s1:", Options{Clock: clock.Now})
	if !reloaded.IsAuthenticated() {
		t.Fatal("a reloaded gate should restore the login flag")
	}
	other := NewGate(ctx, store, "s2:", Options{Clock: clock.Now})
	if other.IsAuthenticated() {
		t.Fatal("sessions must not share state")
	}
}

func TestExpiryAfterMaxAge(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(0)
	clock := newClock()
	collector := metrics.NewCollector()
	g := NewGate(ctx, store, "", Options{Clock: clock.Now, Metrics: collector})
	g.Login(ctx, "admin")

	clock.Advance(24 * time.Hour)
	if g.CheckExpiry(ctx) {
		t.Fatal("exactly 24h must not expire")
	}
	clock.Advance(time.Millisecond)
	if !g.CheckExpiry(ctx) {
		t.Fatal("expected expiry after 24h")
	}
	if g.IsAuthenticated() {
		t.Fatal("expired session must be logged out")
	}
	if _, ok, _ := store.Get(ctx, KeyLoginTime); ok {
		t.Fatal("expired session must clear login time")
	}
}

func TestExpiredOnReload(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(0)
	clock := newClock()
	NewGate(ctx, store, "", Options{Clock: clock.Now}).Login(ctx, "admin")
	clock.Advance(25 * time.Hour)
	if NewGate(ctx, store, "", Options{Clock: clock.Now}).IsAuthenticated() {
		t.Fatal("a stale login must be dropped at construction")
	}
}

func TestMissingLoginTimeDoesNotExpire(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(0)
	_ = store.Set(ctx, KeyAuthenticated, "true")
	clock := newClock()
	g := NewGate(ctx, store, "", Options{Clock: clock.Now})
	clock.Advance(48 * time.Hour)
	if g.CheckExpiry(ctx) || !g.IsAuthenticated() {
		t.Fatal("without a login time the flag should be kept")
	}
	_ = store.Set(ctx, KeyLoginTime, "garbage")
	if g.CheckExpiry(ctx) {
		t.Fatal("unparsable login time should be ignored")
	}
	if st := g.Status(ctx); !st.Authenticated || st.ExpiresAt != nil {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestStatusReportsExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	g := NewGate(ctx, kvstore.NewMemoryStore(0), "", Options{Clock: clock.Now, MaxAge: time.Hour})
	g.Login(ctx, "admin")
	st := g.Status(ctx)
	if st.ExpiresAt == nil || !st.ExpiresAt.Equal(clock.Now().Add(time.Hour)) {
		t.Fatalf("unexpected status %+v", st)
	}
}
