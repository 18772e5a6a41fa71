package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	appAuth "github.com/yigit/unilife/internal/app/auth"
	"github.com/yigit/unilife/internal/app/models"
	"github.com/yigit/unilife/internal/app/models/dto"
	"github.com/yigit/unilife/internal/app/repositories"
	"github.com/yigit/unilife/internal/pkg/apperrors"
)

// RequestService defines the interface for note request operations
type RequestService interface {
	AddRequest(ctx context.Context, circleID string, req *dto.AddNoteRequestRequest) (string, error)
	FulfillRequest(ctx context.Context, requestID string) error
}

// requestServiceImpl implements RequestService
type requestServiceImpl struct {
	requestRepo *repositories.NoteRequestRepository
	circleRepo  *repositories.CircleRepository
	userRepo    *repositories.UserRepository
	authz       *appAuth.AuthorizationService
	intents     intentRunner
	logger      zerolog.Logger
}

// NewRequestService creates a new RequestService
func NewRequestService(
	requestRepo *repositories.NoteRequestRepository,
	circleRepo *repositories.CircleRepository,
	userRepo *repositories.UserRepository,
	authz *appAuth.AuthorizationService,
	intents intentRunner,
	logger zerolog.Logger,
) RequestService {
	return &requestServiceImpl{
		requestRepo: requestRepo,
		circleRepo:  circleRepo,
		userRepo:    userRepo,
		authz:       authz,
		intents:     intents,
		logger:      logger,
	}
}

// AddRequest opens a request for notes on a topic
func (s *requestServiceImpl) AddRequest(ctx context.Context, circleID string, req *dto.AddNoteRequestRequest) (string, error) {
	var id string
	err := s.intents.run("add_request", func(user *models.User) error {
		topic := strings.TrimSpace(req.Topic)
		if topic == "" {
			return apperrors.NewValidationError("topic", "topic is required")
		}
		if _, err := s.circleRepo.GetByID(ctx, circleID); err != nil {
			return err
		}

		var err error
		id, err = s.requestRepo.Create(ctx, &models.NoteRequest{
			CircleID:     circleID,
			AuthorID:     user.ID,
			AuthorName:   user.Name,
			AuthorAvatar: user.Avatar,
			Topic:        topic,
			Description:  strings.TrimSpace(req.Description),
			Timestamp:    models.FormatTimestamp(time.Now()),
			Status:       models.RequestOpen,
		})
		return err
	})
	return id, err
}

// FulfillRequest marks an open request of another user as fulfilled by the
// caller, who earns the fulfillment karma. The transition happens at most
// once: a concurrent fulfiller loses with ErrRequestNotOpen or ErrConflict.
func (s *requestServiceImpl) FulfillRequest(ctx context.Context, requestID string) error {
	return s.intents.run("fulfill_request", func(user *models.User) error {
		req, err := s.requestRepo.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if err := s.authz.ValidateFulfiller(req, user.ID); err != nil {
			return err
		}

		if err := s.requestRepo.MarkFulfilled(ctx, requestID, user.ID, req.Version); err != nil {
			if !errors.Is(err, apperrors.ErrConflict) {
				return err
			}
			// Tell the caller why, if someone else got there first.
			if latest, rerr := s.requestRepo.GetByID(ctx, requestID); rerr == nil && !latest.IsOpen() {
				return appAuth.ErrRequestNotOpen()
			}
			return err
		}

		s.logger.Info().Str("requestID", requestID).Str("fulfilledBy", user.ID).Msg("Note request fulfilled")
		if err := awardKarma(ctx, s.userRepo, s.logger, user.ID, models.KarmaRequestFulfilled); err != nil {
			return err
		}
		s.notifyAuthor(ctx, req, user)
		return nil
	})
}

// notifyAuthor tells the request author their notes arrived. Best effort.
func (s *requestServiceImpl) notifyAuthor(ctx context.Context, req *models.NoteRequest, fulfiller *models.User) {
	notification := models.Notification{
		ID:         ulid.Make().String(),
		Type:       models.NotificationNoteProvided,
		SenderID:   fulfiller.ID,
		SenderName: fulfiller.Name,
		CircleID:   req.CircleID,
		Timestamp:  models.FormatTimestamp(time.Now()),
	}
	if err := s.userRepo.AddNotification(ctx, req.AuthorID, notification); err != nil {
		s.logger.Warn().Err(err).Str("authorID", req.AuthorID).Msg("Failed to notify request author")
	}
}
