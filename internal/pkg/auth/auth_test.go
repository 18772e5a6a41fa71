package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/gateway"
)

func newTestJWT() *JWTService {
	return NewJWTService(JWTConfig{
		SecretKey:   "test-secret",
		TokenIssuer: "unilife-test",
		TokenTTL:    time.Hour,
	})
}

func TestJWTRoundTrip(t *testing.T) {
	svc := newTestJWT()
	token, expiry, err := svc.IssueToken(gateway.Identity{
		UID: "u1", Email: "mario@unikorestudent.it", DisplayName: "Mario",
	})
	assert.Equal(t, err, nil)
	assert.Equal(t, expiry.After(time.Now()), true)

	identity, err := svc.VerifyIdentity(token)
	assert.Equal(t, err, nil)
	assert.Equal(t, identity.UID, "u1")
	assert.Equal(t, identity.Email, "mario@unikorestudent.it")
	assert.Equal(t, identity.DisplayName, "Mario")
}

func TestJWTRejections(t *testing.T) {
	svc := newTestJWT()

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(JWTConfig{SecretKey: "other", TokenIssuer: "unilife-test", TokenTTL: time.Hour})
		token, _, err := other.IssueToken(gateway.Identity{UID: "u1", Email: "a@b.it"})
		assert.Equal(t, err, nil)
		_, err = svc.ValidateToken(token)
		assert.Equal(t, errors.Is(err, ErrInvalidToken), true)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTService(JWTConfig{SecretKey: "test-secret", TokenIssuer: "elsewhere", TokenTTL: time.Hour})
		token, _, _ := other.IssueToken(gateway.Identity{UID: "u1", Email: "a@b.it"})
		_, err := svc.ValidateToken(token)
		assert.Equal(t, errors.Is(err, ErrInvalidToken), true)
	})

	t.Run("expired", func(t *testing.T) {
		token, _, _ := svc.IssueToken(gateway.Identity{
			UID: "u1", Email: "a@b.it", ExpiresAt: time.Now().Add(-time.Minute),
		})
		_, err := svc.ValidateToken(token)
		assert.Equal(t, errors.Is(err, ErrExpiredToken), true)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := svc.ValidateToken("")
		assert.Equal(t, errors.Is(err, ErrInvalidFormat), true)
	})
}

func TestExtractBearerToken(t *testing.T) {
	token, err := ExtractBearerToken("Bearer abc")
	assert.Equal(t, err, nil)
	assert.Equal(t, token, "abc")

	token, _ = ExtractBearerToken("abc")
	assert.Equal(t, token, "abc")

	_, err = ExtractBearerToken("  ")
	assert.Equal(t, err, ErrInvalidFormat)
}

type recorder struct {
	mu     sync.Mutex
	events []*gateway.Identity
}

func (r *recorder) observe(identity *gateway.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, identity)
}

func (r *recorder) snapshot() []*gateway.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*gateway.Identity(nil), r.events...)
}

func TestTokenProvider(t *testing.T) {
	svc := newTestJWT()
	provider := NewTokenProvider(svc, zerolog.Nop())

	rec := &recorder{}
	unsubscribe := provider.ObserveAuthState(rec.observe)
	defer unsubscribe()

	events := rec.snapshot()
	assert.Equal(t, len(events), 1)
	assert.Equal(t, events[0] == nil, true)

	token, _, _ := svc.IssueToken(gateway.Identity{UID: "u1", Email: "mario@unikorestudent.it"})
	identity, err := provider.SignIn(context.Background(), token)
	assert.Equal(t, err, nil)
	assert.Equal(t, identity.UID, "u1")
	assert.Equal(t, provider.Current().UID, "u1")

	_, err = provider.SignIn(context.Background(), "garbage")
	assert.NotEqual(t, err, nil)
	assert.Equal(t, provider.Current().UID, "u1")

	assert.Equal(t, provider.SignOut(context.Background()), nil)
	assert.Equal(t, provider.Current() == nil, true)

	events = rec.snapshot()
	assert.Equal(t, len(events), 3)
	assert.Equal(t, events[1].UID, "u1")
	assert.Equal(t, events[2] == nil, true)
}

func TestTokenProviderObserverMaySignOut(t *testing.T) {
	svc := newTestJWT()
	provider := NewTokenProvider(svc, zerolog.Nop())

	provider.ObserveAuthState(func(identity *gateway.Identity) {
		if identity != nil {
			_ = provider.SignOut(context.Background())
		}
	})

	token, _, _ := svc.IssueToken(gateway.Identity{UID: "u1", Email: "x@gmail.com"})
	_, err := provider.SignIn(context.Background(), token)
	assert.Equal(t, err, nil)
	assert.Equal(t, provider.Current() == nil, true)
}

func TestTokenProviderExpiry(t *testing.T) {
	precision := jwt.TimePrecision
	jwt.TimePrecision = time.Millisecond
	defer func() { jwt.TimePrecision = precision }()

	svc := newTestJWT()
	provider := NewTokenProvider(svc, zerolog.Nop())

	signedOut := make(chan struct{}, 1)
	provider.ObserveAuthState(func(identity *gateway.Identity) {
		if identity == nil && provider.Current() == nil {
			select {
			case signedOut <- struct{}{}:
			default:
			}
		}
	})
	<-signedOut // initial state

	token, _, _ := svc.IssueToken(gateway.Identity{
		UID: "u1", Email: "a@b.it", ExpiresAt: time.Now().Add(300 * time.Millisecond),
	})
	_, err := provider.SignIn(context.Background(), token)
	assert.Equal(t, err, nil)

	select {
	case <-signedOut:
	case <-time.After(3 * time.Second):
		t.Fatal("expected a signed-out event when the token expired")
	}
	assert.Equal(t, provider.Current() == nil, true)
}
