package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	appAuth "github.com/yigit/unilife/internal/app/auth"
	"github.com/yigit/unilife/internal/app/models"
	"github.com/yigit/unilife/internal/app/repositories"
	"github.com/yigit/unilife/internal/livesync"
	"github.com/yigit/unilife/internal/pkg/apperrors"
	"github.com/yigit/unilife/internal/pkg/assistant"
	"github.com/yigit/unilife/internal/pkg/metrics"
	"github.com/yigit/unilife/internal/session"
)

// Services defined in this package:
// - CircleService: create/join circles, chat messages and reactions
// - NoteService: shared notes and announcements
// - RequestService: note requests and their fulfillment
// - ProfileService: profile edits and friend requests
// - AssistantService: AI summaries and study plans over cached entities
//
// None of them update local state: results arrive through the live caches.

// Services holds all the service instances
type Services struct {
	CircleService    CircleService
	NoteService      NoteService
	RequestService   RequestService
	ProfileService   ProfileService
	AssistantService AssistantService
}

// NewServices wires every service
func NewServices(
	repos *repositories.Repositories,
	sess *session.Store,
	syncer *livesync.Syncer,
	ai *assistant.Assistant,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Services {
	base := intentRunner{session: sess, metrics: m}
	authz := appAuth.NewAuthorizationService(repos.CircleRepository)
	return &Services{
		CircleService:    NewCircleService(repos.CircleRepository, base, logger.With().Str("service", "circle").Logger()),
		NoteService:      NewNoteService(repos.NoteRepository, repos.AnnouncementRepository, repos.CircleRepository, repos.UserRepository, authz, base, logger.With().Str("service", "note").Logger()),
		RequestService:   NewRequestService(repos.NoteRequestRepository, repos.CircleRepository, repos.UserRepository, authz, base, logger.With().Str("service", "request").Logger()),
		ProfileService:   NewProfileService(repos.UserRepository, base, logger.With().Str("service", "profile").Logger()),
		AssistantService: NewAssistantService(syncer, repos.NoteRepository, repos.NoteRequestRepository, ai, base, logger.With().Str("service", "assistant").Logger()),
	}
}

// intentRunner applies the rules every mutation intent shares: an
// authenticated caller, outcome metrics and the backend connectivity flag.
type intentRunner struct {
	session *session.Store
	metrics *metrics.Metrics
}

func (r intentRunner) run(name string, fn func(user *models.User) error) error {
	user, err := r.session.RequireUser()
	if err != nil {
		return err
	}

	err = fn(user)
	r.metrics.IntentDone(name, err)
	if err != nil {
		r.session.ReportFailure(err)
		return err
	}
	r.session.ReportSuccess()
	return nil
}

// awardKarma credits karma to userID. A guest has no user document to
// credit, which is not an error.
func awardKarma(ctx context.Context, users *repositories.UserRepository, logger zerolog.Logger, userID string, karma int) error {
	err := users.AddKarma(ctx, userID, karma)
	if errors.Is(err, apperrors.ErrResourceNotFound) {
		logger.Warn().Str("userID", userID).Int("karma", karma).Msg("No user document to credit karma to")
		return nil
	}
	return err
}
