package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/gateway"
)

// TokenProvider is a gateway.AuthProvider backed by signed ID tokens. It
// holds at most one identity and emits a signed-out event when its token
// expires.
type TokenProvider struct {
	jwt    *JWTService
	logger zerolog.Logger

	mu        sync.Mutex
	current   *gateway.Identity
	observers map[uint64]gateway.AuthStateFunc
	nextID    uint64
	expiry    *time.Timer
	gen       uint64
}

// NewTokenProvider creates a provider that verifies credentials with jwtService.
func NewTokenProvider(jwtService *JWTService, logger zerolog.Logger) *TokenProvider {
	return &TokenProvider{
		jwt:       jwtService,
		logger:    logger,
		observers: make(map[uint64]gateway.AuthStateFunc),
	}
}

// ObserveAuthState registers fn and calls it with the current state.
func (p *TokenProvider) ObserveAuthState(fn gateway.AuthStateFunc) gateway.Unsubscribe {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.observers[id] = fn
	current := copyIdentity(p.current)
	p.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.observers, id)
			p.mu.Unlock()
		})
	}
}

// SignIn verifies credential, an ID token, and makes its identity current.
func (p *TokenProvider) SignIn(ctx context.Context, credential string) (*gateway.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	identity, err := p.jwt.VerifyIdentity(credential)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Rejected ID token")
		return nil, err
	}

	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.stopTimerLocked()
	p.current = copyIdentity(identity)
	if ttl := time.Until(identity.ExpiresAt); ttl > 0 {
		p.expiry = time.AfterFunc(ttl, func() { p.expire(gen) })
	}
	p.mu.Unlock()

	p.logger.Info().Str("uid", identity.UID).Time("expiresAt", identity.ExpiresAt).Msg("Identity signed in")
	p.dispatch(identity)
	return copyIdentity(identity), nil
}

// SignOut clears the current identity.
func (p *TokenProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.gen++
	p.stopTimerLocked()
	wasSignedIn := p.current != nil
	p.current = nil
	p.mu.Unlock()

	if wasSignedIn {
		p.logger.Info().Msg("Identity signed out")
	}
	p.dispatch(nil)
	return nil
}

// Current returns a copy of the signed-in identity, or nil.
func (p *TokenProvider) Current() *gateway.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyIdentity(p.current)
}

func (p *TokenProvider) expire(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.current == nil {
		p.mu.Unlock()
		return
	}
	uid := p.current.UID
	p.current = nil
	p.expiry = nil
	p.mu.Unlock()

	p.logger.Info().Str("uid", uid).Msg("ID token expired")
	p.dispatch(nil)
}

func (p *TokenProvider) stopTimerLocked() {
	if p.expiry != nil {
		p.expiry.Stop()
		p.expiry = nil
	}
}

// dispatch runs observers outside the lock so they may call back into the provider.
func (p *TokenProvider) dispatch(identity *gateway.Identity) {
	p.mu.Lock()
	fns := make([]gateway.AuthStateFunc, 0, len(p.observers))
	for _, fn := range p.observers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(copyIdentity(identity))
	}
}

func copyIdentity(identity *gateway.Identity) *gateway.Identity {
	if identity == nil {
		return nil
	}
	c := *identity
	return &c
}
