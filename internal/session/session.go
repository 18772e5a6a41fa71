// Package session projects the auth provider's state onto the current user.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/app/models"
	"github.com/yigit/unilife/internal/app/repositories"
	"github.com/yigit/unilife/internal/gateway"
	"github.com/yigit/unilife/internal/pkg/apperrors"
	"github.com/yigit/unilife/internal/pkg/validation"
)

// State is a point-in-time view of the session.
type State struct {
	User               *models.User
	Authenticated      bool
	Guest              bool
	BackendUnreachable bool
	// LastError is the most recent sign-in rejection or resolution failure
	LastError error
}

// Listener receives every state transition.
type Listener func(State)

// UserLookup returns the live copy of a user, if one is cached.
type UserLookup func(id string) (models.User, bool)

// Config for the session store
type Config struct {
	AllowedEmailDomain string
	// ResolveTimeout bounds the user document read/create after sign-in
	ResolveTimeout time.Duration
}

// Store holds the current session.
type Store struct {
	provider gateway.AuthProvider
	users    *repositories.UserRepository
	config   Config
	logger   zerolog.Logger

	mu        sync.Mutex
	state     State
	epoch     uint64
	lookup    UserLookup
	listeners map[uint64]Listener
	nextID    uint64
	unobserve gateway.Unsubscribe
}

// NewStore creates a session store. Call Start to begin following the provider.
func NewStore(provider gateway.AuthProvider, users *repositories.UserRepository, config Config, logger zerolog.Logger) *Store {
	if config.ResolveTimeout <= 0 {
		config.ResolveTimeout = 10 * time.Second
	}
	return &Store{
		provider:  provider,
		users:     users,
		config:    config,
		logger:    logger,
		listeners: make(map[uint64]Listener),
	}
}

// Start subscribes to auth state changes. The provider reports its current
// state right away, so a still-valid identity is resolved before Start returns.
func (s *Store) Start() {
	unobserve := s.provider.ObserveAuthState(s.handleAuthState)
	s.mu.Lock()
	s.unobserve = unobserve
	s.mu.Unlock()
}

// Stop releases the auth state subscription.
func (s *Store) Stop() {
	s.mu.Lock()
	unobserve := s.unobserve
	s.unobserve = nil
	s.mu.Unlock()
	if unobserve != nil {
		unobserve()
	}
}

// SetUserLookup installs the source of the reactive current user.
func (s *Store) SetUserLookup(lookup UserLookup) {
	s.mu.Lock()
	s.lookup = lookup
	s.mu.Unlock()
}

// OnChange registers fn for every state transition.
func (s *Store) OnChange(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// CurrentUser returns the signed-in user, preferring the live cached copy
// so profile and karma changes show up. Nil when unauthenticated.
func (s *Store) CurrentUser() *models.User {
	s.mu.Lock()
	st := s.snapshotLocked()
	lookup := s.lookup
	s.mu.Unlock()

	if !st.Authenticated || st.User == nil {
		return nil
	}
	if !st.Guest && lookup != nil {
		if u, ok := lookup(st.User.ID); ok {
			return &u
		}
	}
	return st.User
}

// RequireUser returns the current user or ErrNotAuthenticated.
func (s *Store) RequireUser() (*models.User, error) {
	u := s.CurrentUser()
	if u == nil {
		return nil, apperrors.ErrNotAuthenticated
	}
	return u, nil
}

// SignIn verifies credential with the provider and returns the resolved user.
func (s *Store) SignIn(ctx context.Context, credential string) (*models.User, error) {
	identity, err := s.provider.SignIn(ctx, credential)
	if err != nil {
		s.update(nil, func(st *State) { st.LastError = err })
		return nil, err
	}

	st := s.State()
	if st.Authenticated && !st.Guest && st.User != nil && st.User.ID == identity.UID {
		return st.User, nil
	}
	if st.LastError != nil {
		return nil, st.LastError
	}
	return nil, apperrors.ErrBackendUnavailable
}

// EnterGuest starts a local demo session. No user document is written.
func (s *Store) EnterGuest(ctx context.Context) *models.User {
	if s.provider.Current() != nil {
		if err := s.provider.SignOut(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Remote sign-out before guest session failed")
		}
	}

	demo := models.NewDemoUser()
	epoch := s.bump()
	s.update(&epoch, func(st *State) {
		*st = State{User: demo, Authenticated: true, Guest: true, BackendUnreachable: st.BackendUnreachable}
	})
	s.logger.Info().Str("userID", demo.ID).Msg("Guest session started")
	return demo
}

// SignOut clears the local session, guest included, then signs out remotely.
func (s *Store) SignOut(ctx context.Context) error {
	epoch := s.bump()
	s.update(&epoch, func(st *State) {
		*st = State{BackendUnreachable: st.BackendUnreachable}
	})

	if err := s.provider.SignOut(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Remote sign-out failed")
	}
	return nil
}

// ReportFailure raises the backend-unreachable flag if err says the backend
// could not be reached.
func (s *Store) ReportFailure(err error) {
	if !errors.Is(err, apperrors.ErrBackendUnavailable) {
		return
	}
	s.update(nil, func(st *State) { st.BackendUnreachable = true })
}

// ReportSuccess clears the backend-unreachable flag.
func (s *Store) ReportSuccess() {
	s.update(nil, func(st *State) { st.BackendUnreachable = false })
}

func (s *Store) handleAuthState(identity *gateway.Identity) {
	epoch := s.bump()

	if identity == nil {
		s.update(&epoch, func(st *State) {
			if st.Guest {
				return
			}
			*st = State{BackendUnreachable: st.BackendUnreachable, LastError: st.LastError}
		})
		return
	}

	log := s.logger.With().Str("uid", identity.UID).Logger()

	if !validation.IsInstitutionalEmail(identity.Email, s.config.AllowedEmailDomain) {
		rejection := apperrors.NewCustomError(apperrors.ErrEmailDomainNotAllowed,
			fmt.Sprintf("only %s accounts may sign in", s.config.AllowedEmailDomain))
		log.Warn().Str("email", identity.Email).Msg("Sign-in rejected: email domain not allowed")
		s.update(&epoch, func(st *State) {
			*st = State{BackendUnreachable: st.BackendUnreachable, LastError: rejection}
		})
		if err := s.provider.SignOut(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Sign-out after rejection failed")
		}
		return
	}

	user, err := s.resolveUser(*identity)
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve user for identity")
		s.update(&epoch, func(st *State) {
			st.LastError = err
			if errors.Is(err, apperrors.ErrBackendUnavailable) {
				st.BackendUnreachable = true
			}
		})
		return
	}

	log.Info().Str("userID", user.ID).Msg("Session established")
	s.update(&epoch, func(st *State) {
		*st = State{User: user, Authenticated: true}
	})
}

// resolveUser loads users/{uid}, creating it with defaults on first sign-in.
func (s *Store) resolveUser(identity gateway.Identity) (*models.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ResolveTimeout)
	defer cancel()

	user, err := s.users.GetByID(ctx, identity.UID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrResourceNotFound) {
		return nil, err
	}

	user = models.NewUserFromIdentity(identity)
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info().Str("userID", user.ID).Msg("Created user record for new identity")
	return user, nil
}

func (s *Store) bump() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	return s.epoch
}

// update applies fn to the state unless epoch is set and stale, then
// notifies listeners outside the lock if anything changed.
func (s *Store) update(epoch *uint64, fn func(st *State)) {
	s.mu.Lock()
	if epoch != nil && *epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	before := s.state
	fn(&s.state)
	if sameState(before, s.state) {
		s.mu.Unlock()
		return
	}
	snapshot := s.snapshotLocked()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

func (s *Store) snapshotLocked() State {
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

func sameState(a, b State) bool {
	return a.User == b.User &&
		a.Authenticated == b.Authenticated &&
		a.Guest == b.Guest &&
		a.BackendUnreachable == b.BackendUnreachable &&
		sameError(a.LastError, b.LastError)
}

// sameError avoids == on error values, which panics for uncomparable types.
func sameError(a, b error) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Error() == b.Error()
}
