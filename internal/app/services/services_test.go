package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/app/models"
	"github.com/yigit/unilife/internal/app/models/dto"
	"github.com/yigit/unilife/internal/app/repositories"
	"github.com/yigit/unilife/internal/gateway"
	"github.com/yigit/unilife/internal/gateway/memstore"
	"github.com/yigit/unilife/internal/livesync"
	"github.com/yigit/unilife/internal/pkg/apperrors"
	"github.com/yigit/unilife/internal/pkg/assistant"
	"github.com/yigit/unilife/internal/pkg/auth"
	"github.com/yigit/unilife/internal/session"
)

type env struct {
	ctx     context.Context
	store   *memstore.Store
	repos   *repositories.Repositories
	jwt     *auth.JWTService
	session *session.Store
	svc     *Services
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := memstore.New(zerolog.Nop())
	t.Cleanup(func() { store.Close() })

	jwtService := auth.NewJWTService(auth.JWTConfig{SecretKey: "s", TokenIssuer: "unilife-test", TokenTTL: time.Hour})
	repos := repositories.NewRepositories(store)
	sess := session.NewStore(auth.NewTokenProvider(jwtService, zerolog.Nop()), repos.UserRepository,
		session.Config{AllowedEmailDomain: "@unikorestudent.it"}, zerolog.Nop())
	sess.Start()
	t.Cleanup(sess.Stop)

	syncer := livesync.NewSyncer(store, nil, zerolog.Nop())
	t.Cleanup(syncer.Stop)
	t.Cleanup(syncer.Follow(sess))
	ai := assistant.New(ctx, nil, assistant.Config{}, nil, zerolog.Nop())

	return &env{
		ctx:     ctx,
		store:   store,
		repos:   repos,
		jwt:     jwtService,
		session: sess,
		svc:     NewServices(repos, sess, syncer, ai, nil, zerolog.Nop()),
	}
}

// as signs in uid, creating its user document on first use.
func (e *env) as(t *testing.T, uid string) {
	t.Helper()
	token, _, err := e.jwt.IssueToken(gateway.Identity{UID: uid, Email: uid + "@unikorestudent.it", DisplayName: uid})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := e.session.SignIn(e.ctx, token); err != nil {
		t.Fatalf("sign in %s: %v", uid, err)
	}
}

func (e *env) karma(t *testing.T, uid string) int {
	t.Helper()
	u, err := e.repos.UserRepository.GetByID(e.ctx, uid)
	if err != nil {
		t.Fatalf("get user %s: %v", uid, err)
	}
	return u.Karma
}

func (e *env) circle(t *testing.T, id string) *models.Circle {
	t.Helper()
	c, err := e.repos.CircleRepository.GetByID(e.ctx, id)
	if err != nil {
		t.Fatalf("get circle %s: %v", id, err)
	}
	return c
}

func (e *env) newCircle(t *testing.T) string {
	t.Helper()
	id, err := e.svc.CircleService.CreateCircle(e.ctx, &dto.CreateCircleRequest{Name: "Analisi I", Subject: "Matematica"})
	if err != nil {
		t.Fatalf("create circle: %v", err)
	}
	return id
}

func TestIntentsRequireSession(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.CircleService.CreateCircle(e.ctx, &dto.CreateCircleRequest{Name: "x"})
	assert.Equal(t, err, apperrors.ErrNotAuthenticated)
	assert.Equal(t, e.svc.CircleService.JoinCircle(e.ctx, "c1"), apperrors.ErrNotAuthenticated)
	_, err = e.svc.AssistantService.SummarizeNote(e.ctx, "n1")
	assert.Equal(t, err, apperrors.ErrNotAuthenticated)
}

func TestCreateAndJoinCircle(t *testing.T) {
	e := newEnv(t)
	e.as(t, "alice")
	id := e.newCircle(t)

	c := e.circle(t, id)
	assert.Equal(t, c.CreatorID, "alice")
	assert.Equal(t, c.Members, []string{"alice"})
	assert.Equal(t, c.Category, models.DefaultCircleCategory)
	assert.Equal(t, len(c.Chat), 0)

	e.as(t, "bob")
	assert.Equal(t, e.svc.CircleService.JoinCircle(e.ctx, id), nil)
	assert.Equal(t, e.svc.CircleService.JoinCircle(e.ctx, id), nil)
	assert.Equal(t, e.circle(t, id).Members, []string{"alice", "bob"})

	err := e.svc.CircleService.JoinCircle(e.ctx, "missing")
	assert.Equal(t, errors.Is(err, apperrors.ErrResourceNotFound), true)
}

func TestConcurrentMessagesAreBothKept(t *testing.T) {
	e := newEnv(t)
	e.as(t, "alice")
	id := e.newCircle(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, text := range []string{"ciao", "ci vediamo alle 15"} {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			_, errs[i] = e.svc.CircleService.SendMessage(e.ctx, id, &dto.SendMessageRequest{Text: text})
		}(i, text)
	}
	wg.Wait()
	assert.Equal(t, errs[0], nil)
	assert.Equal(t, errs[1], nil)

	chat := e.circle(t, id).Chat
	assert.Equal(t, len(chat), 2)
	assert.NotEqual(t, chat[0].ID, chat[1].ID)

	_, err := e.svc.CircleService.SendMessage(e.ctx, id, &dto.SendMessageRequest{Text: "   "})
	assert.Equal(t, errors.Is(err, apperrors.ErrValidationFailed), true)
}

func TestToggleReaction(t *testing.T) {
	e := newEnv(t)
	e.as(t, "alice")
	id := e.newCircle(t)
	msg, err := e.svc.CircleService.SendMessage(e.ctx, id, &dto.SendMessageRequest{Text: "ciao"})
	assert.Equal(t, err, nil)

	react := &dto.ToggleReactionRequest{Emoji: "👍"}
	assert.Equal(t, e.svc.CircleService.ToggleReaction(e.ctx, id, msg.ID, react), nil)
	assert.Equal(t, e.circle(t, id).Chat[0].Reactions["👍"], []string{"alice"})

	assert.Equal(t, e.svc.CircleService.ToggleReaction(e.ctx, id, msg.ID, react), nil)
	_, present := e.circle(t, id).Chat[0].Reactions["👍"]
	assert.Equal(t, present, false)

	err = e.svc.CircleService.ToggleReaction(e.ctx, id, "nope", react)
	assert.Equal(t, errors.Is(err, apperrors.ErrResourceNotFound), true)
}

func TestStaleChatWriteIsAConflict(t *testing.T) {
	e := newEnv(t)
	e.as(t, "alice")
	id := e.newCircle(t)
	_, err := e.svc.CircleService.SendMessage(e.ctx, id, &dto.SendMessageRequest{Text: "ciao"})
	assert.Equal(t, err, nil)

	read := e.circle(t, id)
	chat, _ := read.ToggleReaction(read.Chat[0].ID, "🔥", "alice")

	_, err = e.svc.CircleService.SendMessage(e.ctx, id, &dto.SendMessageRequest{Text: "nel frattempo"})
	assert.Equal(t, err, nil)

	err = e.repos.CircleRepository.ReplaceChat(e.ctx, id, chat, read.Version)
	assert.Equal(t, errors.Is(err, apperrors.ErrConflict), true)
	assert.Equal(t, len(e.circle(t, id).Chat), 2)
}

func TestFulfillmentScenario(t *testing.T) {
	e := newEnv(t)
	e.as(t, "anna")
	circleID := e.newCircle(t)
	reqID, err := e.svc.RequestService.AddRequest(e.ctx, circleID, &dto.AddNoteRequestRequest{Topic: "Serie di Fourier"})
	assert.Equal(t, err, nil)

	err = e.svc.RequestService.FulfillRequest(e.ctx, reqID)
	assert.Equal(t, errors.Is(err, apperrors.ErrOwnRequest), true)

	e.as(t, "bruno")
	assert.Equal(t, e.svc.RequestService.FulfillRequest(e.ctx, reqID), nil)

	e.as(t, "dario")
	err = e.svc.RequestService.FulfillRequest(e.ctx, reqID)
	assert.Equal(t, errors.Is(err, apperrors.ErrRequestNotOpen), true)

	e.as(t, "bruno")
	err = e.svc.RequestService.FulfillRequest(e.ctx, reqID)
	assert.Equal(t, errors.Is(err, apperrors.ErrRequestNotOpen), true)

	req, err := e.repos.NoteRequestRepository.GetByID(e.ctx, reqID)
	assert.Equal(t, err, nil)
	assert.Equal(t, req.Status, models.RequestFulfilled)
	assert.Equal(t, req.FulfilledBy, "bruno")

	assert.Equal(t, e.karma(t, "bruno"), models.KarmaRequestFulfilled)
	assert.Equal(t, e.karma(t, "dario"), 0)
	assert.Equal(t, e.karma(t, "anna"), 0)

	anna, _ := e.repos.UserRepository.GetByID(e.ctx, "anna")
	assert.Equal(t, len(anna.Notifications), 1)
	assert.Equal(t, anna.Notifications[0].Type, models.NotificationNoteProvided)
}

func TestKarmaFormula(t *testing.T) {
	e := newEnv(t)
	e.as(t, "anna")
	circleID := e.newCircle(t)
	var requests []string
	for _, topic := range []string{"Integrali", "Limiti"} {
		id, err := e.svc.RequestService.AddRequest(e.ctx, circleID, &dto.AddNoteRequestRequest{Topic: topic})
		assert.Equal(t, err, nil)
		requests = append(requests, id)
	}

	e.as(t, "bruno")
	for i := 0; i < 3; i++ {
		_, err := e.svc.NoteService.AddNote(e.ctx, circleID, &dto.AddNoteRequest{Title: "Appunti", FileBytes: 1572864})
		assert.Equal(t, err, nil)
	}
	for _, id := range requests {
		assert.Equal(t, e.svc.RequestService.FulfillRequest(e.ctx, id), nil)
	}

	assert.Equal(t, e.karma(t, "bruno"), 3*models.KarmaNoteShared+2*models.KarmaRequestFulfilled)
}

func TestNoteDefaults(t *testing.T) {
	e := newEnv(t)
	e.as(t, "anna")
	circleID := e.newCircle(t)

	id, err := e.svc.NoteService.AddNote(e.ctx, circleID, &dto.AddNoteRequest{Title: "Fisica", FileName: "fisica.pdf", FileBytes: 1572864})
	assert.Equal(t, err, nil)
	note, err := e.repos.NoteRepository.GetByID(e.ctx, id)
	assert.Equal(t, err, nil)
	assert.Equal(t, note.FileSize, "1.5 MB")
	assert.Equal(t, note.FileURL, "#")
	assert.Equal(t, note.Visibility, models.VisibilityGroup)
	assert.Equal(t, note.AuthorID, "anna")

	_, err = e.svc.NoteService.AddNote(e.ctx, "missing", &dto.AddNoteRequest{Title: "x"})
	assert.Equal(t, errors.Is(err, apperrors.ErrResourceNotFound), true)
}

func TestAnnouncementsAreCreatorOnly(t *testing.T) {
	e := newEnv(t)
	e.as(t, "anna")
	circleID := e.newCircle(t)
	_, err := e.svc.NoteService.AddAnnouncement(e.ctx, circleID, &dto.AddAnnouncementRequest{Title: "Esame spostato", Priority: "high"})
	assert.Equal(t, err, nil)

	e.as(t, "bruno")
	_, err = e.svc.NoteService.AddAnnouncement(e.ctx, circleID, &dto.AddAnnouncementRequest{Title: "Spam"})
	assert.Equal(t, errors.Is(err, apperrors.ErrPermissionDenied), true)
}

func TestFriendRequests(t *testing.T) {
	e := newEnv(t)
	e.as(t, "anna")
	e.as(t, "bruno")

	assert.Equal(t, e.svc.ProfileService.SendFriendRequest(e.ctx, "anna"), nil)
	assert.Equal(t, e.svc.ProfileService.SendFriendRequest(e.ctx, "anna"), nil)

	anna, err := e.repos.UserRepository.GetByID(e.ctx, "anna")
	assert.Equal(t, err, nil)
	assert.Equal(t, anna.PendingRequests, []string{"bruno"})
	assert.Equal(t, len(anna.Notifications), 1)
	assert.Equal(t, anna.Notifications[0].Type, models.NotificationFriendRequest)

	err = e.svc.ProfileService.SendFriendRequest(e.ctx, "bruno")
	assert.Equal(t, errors.Is(err, apperrors.ErrBadRequest), true)
}

func TestConcurrentFriendRequestsNotifyOnce(t *testing.T) {
	e := newEnv(t)
	e.as(t, "anna")
	e.as(t, "bruno")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = e.svc.ProfileService.SendFriendRequest(e.ctx, "anna")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.Equal(t, err, nil)
	}
	anna, err := e.repos.UserRepository.GetByID(e.ctx, "anna")
	assert.Equal(t, err, nil)
	assert.Equal(t, anna.PendingRequests, []string{"bruno"})
	assert.Equal(t, len(anna.Notifications), 1)
}

func TestStaleFriendRequestWriteIsAConflict(t *testing.T) {
	e := newEnv(t)
	e.as(t, "anna")

	anna, err := e.repos.UserRepository.GetByID(e.ctx, "anna")
	assert.Equal(t, err, nil)
	assert.Equal(t, e.repos.UserRepository.AddKarma(e.ctx, "anna", 10), nil)

	notification := models.Notification{ID: "n1", Type: models.NotificationFriendRequest, SenderID: "bruno", SenderName: "bruno"}
	err = e.repos.UserRepository.AddFriendRequest(e.ctx, "anna", "bruno", notification, anna.Version)
	assert.Equal(t, errors.Is(err, apperrors.ErrConflict), true)

	anna, _ = e.repos.UserRepository.GetByID(e.ctx, "anna")
	assert.Equal(t, len(anna.PendingRequests), 0)
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t)
	e.as(t, "anna")

	err := e.svc.ProfileService.UpdateProfile(e.ctx, &dto.UpdateProfileRequest{
		Bio: "Ingegneria informatica", Year: "2° Anno", Role: "tutor",
		Interests: []string{"Go", " go ", "Reti"}, GithubUsername: "@anna-dev",
	})
	assert.Equal(t, err, nil)

	anna, _ := e.repos.UserRepository.GetByID(e.ctx, "anna")
	assert.Equal(t, anna.Role, models.RoleTutor)
	assert.Equal(t, anna.Interests, []string{"Go", "Reti"})
	assert.Equal(t, anna.GithubUsername, "anna-dev")
	assert.Equal(t, anna.Course, models.DefaultUserCourse)

	err = e.svc.ProfileService.UpdateProfile(e.ctx, &dto.UpdateProfileRequest{GithubUsername: "not a user"})
	assert.Equal(t, errors.Is(err, apperrors.ErrValidationFailed), true)
}

func TestBackendFailureRaisesIndicator(t *testing.T) {
	e := newEnv(t)
	e.as(t, "anna")
	circleID := e.newCircle(t)

	e.store.SetFailure(errors.New("unavailable"))
	err := e.svc.CircleService.JoinCircle(e.ctx, circleID)
	assert.Equal(t, errors.Is(err, apperrors.ErrBackendUnavailable), true)
	assert.Equal(t, e.session.State().BackendUnreachable, true)

	e.store.SetFailure(nil)
	assert.Equal(t, e.svc.CircleService.JoinCircle(e.ctx, circleID), nil)
	assert.Equal(t, e.session.State().BackendUnreachable, false)
}

func TestAssistantFallsBackWhenDisabled(t *testing.T) {
	e := newEnv(t)
	e.as(t, "anna")
	circleID := e.newCircle(t)
	noteID, err := e.svc.NoteService.AddNote(e.ctx, circleID, &dto.AddNoteRequest{Title: "Fisica", Content: "Cinematica"})
	assert.Equal(t, err, nil)

	text, err := e.svc.AssistantService.SummarizeNote(e.ctx, noteID)
	assert.Equal(t, err, nil)
	assert.Equal(t, text, "Errore durante l'elaborazione del riassunto.")

	_, err = e.svc.AssistantService.SummarizeNote(e.ctx, "missing")
	assert.Equal(t, errors.Is(err, apperrors.ErrResourceNotFound), true)
}

func TestStudyPlanForFreshRequest(t *testing.T) {
	e := newEnv(t)
	e.as(t, "anna")
	circleID := e.newCircle(t)

	requestID, err := e.svc.RequestService.AddRequest(e.ctx, circleID, &dto.AddNoteRequestRequest{Topic: "Integrali", Description: "per parti"})
	assert.Equal(t, err, nil)

	// Asked for before the live cache has caught up.
	text, err := e.svc.AssistantService.SuggestPlanForRequest(e.ctx, requestID)
	assert.Equal(t, err, nil)
	assert.Equal(t, text, "Errore nella generazione del piano di studio.")

	_, err = e.svc.AssistantService.SuggestPlanForRequest(e.ctx, "missing")
	assert.Equal(t, errors.Is(err, apperrors.ErrResourceNotFound), true)
}
