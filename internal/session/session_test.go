package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/app/models"
	"github.com/yigit/unilife/internal/app/repositories"
	"github.com/yigit/unilife/internal/gateway"
	"github.com/yigit/unilife/internal/gateway/memstore"
	"github.com/yigit/unilife/internal/pkg/apperrors"
	"github.com/yigit/unilife/internal/pkg/auth"
)

type fixture struct {
	store    *memstore.Store
	jwt      *auth.JWTService
	provider *auth.TokenProvider
	session  *Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New(zerolog.Nop())
	t.Cleanup(func() { store.Close() })

	jwtService := auth.NewJWTService(auth.JWTConfig{SecretKey: "s", TokenIssuer: "unilife-test", TokenTTL: time.Hour})
	provider := auth.NewTokenProvider(jwtService, zerolog.Nop())
	session := NewStore(provider, repositories.NewUserRepository(store), Config{
		AllowedEmailDomain: "@unikorestudent.it",
	}, zerolog.Nop())
	session.Start()
	t.Cleanup(session.Stop)

	return &fixture{store: store, jwt: jwtService, provider: provider, session: session}
}

func (f *fixture) token(t *testing.T, uid, email string) string {
	t.Helper()
	token, _, err := f.jwt.IssueToken(gateway.Identity{UID: uid, Email: email})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func TestSignInRejectsForeignDomain(t *testing.T) {
	f := newFixture(t)

	user, err := f.session.SignIn(context.Background(), f.token(t, "g1", "x@gmail.com"))
	assert.Equal(t, user == nil, true)
	assert.Equal(t, errors.Is(err, apperrors.ErrEmailDomainNotAllowed), true)

	st := f.session.State()
	assert.Equal(t, st.Authenticated, false)
	assert.Equal(t, st.User == nil, true)
	assert.Equal(t, f.provider.Current() == nil, true)

	_, err = f.store.GetOne(context.Background(), models.CollectionUsers, "g1")
	assert.Equal(t, errors.Is(err, gateway.ErrNotFound), true)
}

func TestSignInCreatesUserWithDefaults(t *testing.T) {
	f := newFixture(t)

	user, err := f.session.SignIn(context.Background(), f.token(t, "u1", "mario@unikorestudent.it"))
	assert.Equal(t, err, nil)
	assert.Equal(t, user.ID, "u1")
	assert.Equal(t, user.Name, models.DefaultUserName)
	assert.Equal(t, user.Karma, 0)

	doc, err := f.store.GetOne(context.Background(), models.CollectionUsers, "u1")
	assert.Equal(t, err, nil)
	stored, err := models.DecodeUser(*doc)
	assert.Equal(t, err, nil)
	assert.Equal(t, stored.Course, models.DefaultUserCourse)
	assert.Equal(t, stored.Year, models.DefaultUserYear)
	assert.Equal(t, stored.Role, models.RoleStudent)
}

func TestSignInLoadsExistingUser(t *testing.T) {
	f := newFixture(t)
	err := f.store.SetAt(context.Background(), models.CollectionUsers, "u2", map[string]any{
		"name": "Giulia", "email": "giulia@unikorestudent.it", "karma": 60,
	})
	assert.Equal(t, err, nil)

	user, err := f.session.SignIn(context.Background(), f.token(t, "u2", "giulia@unikorestudent.it"))
	assert.Equal(t, err, nil)
	assert.Equal(t, user.Name, "Giulia")
	assert.Equal(t, user.Karma, 60)
}

func TestGuestSessionIgnoresSignedOutEvents(t *testing.T) {
	f := newFixture(t)

	demo := f.session.EnterGuest(context.Background())
	assert.Equal(t, demo.ID, models.DemoUserID)

	assert.Equal(t, f.provider.SignOut(context.Background()), nil)
	st := f.session.State()
	assert.Equal(t, st.Authenticated, true)
	assert.Equal(t, st.Guest, true)
	assert.Equal(t, f.session.CurrentUser().ID, models.DemoUserID)

	_, err := f.store.GetOne(context.Background(), models.CollectionUsers, models.DemoUserID)
	assert.Equal(t, errors.Is(err, gateway.ErrNotFound), true)

	assert.Equal(t, f.session.SignOut(context.Background()), nil)
	assert.Equal(t, f.session.State().Authenticated, false)
	assert.Equal(t, f.session.CurrentUser() == nil, true)
}

func TestBackendFailureKeepsPriorSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.SignIn(context.Background(), f.token(t, "u1", "mario@unikorestudent.it"))
	assert.Equal(t, err, nil)

	f.store.SetFailure(errors.New("connection refused"))
	_, err = f.session.SignIn(context.Background(), f.token(t, "u3", "anna@unikorestudent.it"))
	assert.Equal(t, errors.Is(err, apperrors.ErrBackendUnavailable), true)

	st := f.session.State()
	assert.Equal(t, st.Authenticated, true)
	assert.Equal(t, st.User.ID, "u1")
	assert.Equal(t, st.BackendUnreachable, true)

	f.session.ReportSuccess()
	assert.Equal(t, f.session.State().BackendUnreachable, false)
}

func TestListenersAndUserLookup(t *testing.T) {
	f := newFixture(t)

	var mu sync.Mutex
	var seen []bool
	unsubscribe := f.session.OnChange(func(st State) {
		mu.Lock()
		seen = append(seen, st.Authenticated)
		mu.Unlock()
	})
	defer unsubscribe()

	_, err := f.session.SignIn(context.Background(), f.token(t, "u1", "mario@unikorestudent.it"))
	assert.Equal(t, err, nil)

	f.session.SetUserLookup(func(id string) (models.User, bool) {
		return models.User{ID: id, Name: "Live", Karma: 10}, true
	})
	assert.Equal(t, f.session.CurrentUser().Karma, 10)

	assert.Equal(t, f.session.SignOut(context.Background()), nil)
	_, err = f.session.RequireUser()
	assert.Equal(t, err, apperrors.ErrNotAuthenticated)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, seen, []bool{true, false})
}
