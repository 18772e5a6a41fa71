package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/app/models"
	"github.com/yigit/unilife/internal/app/models/dto"
	"github.com/yigit/unilife/internal/app/repositories"
	"github.com/yigit/unilife/internal/pkg/apperrors"
	"github.com/yigit/unilife/internal/pkg/validation"
)

// CircleService defines the interface for circle operations
type CircleService interface {
	CreateCircle(ctx context.Context, req *dto.CreateCircleRequest) (string, error)
	JoinCircle(ctx context.Context, circleID string) error
	SendMessage(ctx context.Context, circleID string, req *dto.SendMessageRequest) (*models.ChatMessage, error)
	ToggleReaction(ctx context.Context, circleID, messageID string, req *dto.ToggleReactionRequest) error
}

// circleServiceImpl implements CircleService
type circleServiceImpl struct {
	circleRepo *repositories.CircleRepository
	intents    intentRunner
	logger     zerolog.Logger
}

// NewCircleService creates a new CircleService
func NewCircleService(circleRepo *repositories.CircleRepository, intents intentRunner, logger zerolog.Logger) CircleService {
	return &circleServiceImpl{
		circleRepo: circleRepo,
		intents:    intents,
		logger:     logger,
	}
}

// CreateCircle creates a circle whose only member is the caller
func (s *circleServiceImpl) CreateCircle(ctx context.Context, req *dto.CreateCircleRequest) (string, error) {
	var id string
	err := s.intents.run("create_circle", func(user *models.User) error {
		name := strings.TrimSpace(req.Name)
		if !validation.NewStringValidation(name).WithMaxLength(100).Validate() {
			return apperrors.NewValidationError("name", "circle name is required")
		}
		category := strings.TrimSpace(req.Category)
		if category == "" {
			category = models.DefaultCircleCategory
		}

		circle := &models.Circle{
			Name:           name,
			Subject:        strings.TrimSpace(req.Subject),
			ExamDate:       req.ExamDate,
			Category:       category,
			Description:    strings.TrimSpace(req.Description),
			CreatorID:      user.ID,
			Members:        []string{user.ID},
			PendingMembers: []string{},
			Chat:           []models.ChatMessage{},
			CreatedAt:      models.FormatTimestamp(time.Now()),
		}

		var err error
		id, err = s.circleRepo.Create(ctx, circle)
		if err != nil {
			return err
		}
		s.logger.Info().Str("circleID", id).Str("creatorID", user.ID).Msg("Circle created")
		return nil
	})
	return id, err
}

// JoinCircle adds the caller to the circle's members. Joining twice is a no-op.
func (s *circleServiceImpl) JoinCircle(ctx context.Context, circleID string) error {
	return s.intents.run("join_circle", func(user *models.User) error {
		if err := s.circleRepo.AddMember(ctx, circleID, user.ID); err != nil {
			return err
		}
		s.logger.Debug().Str("circleID", circleID).Str("userID", user.ID).Msg("Joined circle")
		return nil
	})
}

// SendMessage appends a message from the caller to the circle chat
func (s *circleServiceImpl) SendMessage(ctx context.Context, circleID string, req *dto.SendMessageRequest) (*models.ChatMessage, error) {
	var msg *models.ChatMessage
	err := s.intents.run("send_message", func(user *models.User) error {
		text := strings.TrimSpace(req.Text)
		if !validation.NewStringValidation(text).WithMaxLength(validation.TextMaxLength).Validate() {
			return apperrors.NewValidationError("text", "message text is required")
		}

		m := models.ChatMessage{
			ID:           ulid.Make().String(),
			SenderID:     user.ID,
			SenderName:   user.Name,
			SenderAvatar: user.Avatar,
			Text:         text,
			Timestamp:    models.FormatTimestamp(time.Now()),
			Reactions:    models.Reactions{},
		}
		if err := s.circleRepo.AppendMessage(ctx, circleID, m); err != nil {
			return err
		}
		msg = &m
		return nil
	})
	return msg, err
}

// ToggleReaction flips the caller's emoji on a message. The chat is written
// back only if nobody changed the circle since it was read.
func (s *circleServiceImpl) ToggleReaction(ctx context.Context, circleID, messageID string, req *dto.ToggleReactionRequest) error {
	return s.intents.run("toggle_reaction", func(user *models.User) error {
		emoji := strings.TrimSpace(req.Emoji)
		if emoji == "" {
			return apperrors.NewValidationError("emoji", "emoji is required")
		}

		circle, err := s.circleRepo.GetByID(ctx, circleID)
		if err != nil {
			return err
		}
		chat, ok := circle.ToggleReaction(messageID, emoji, user.ID)
		if !ok {
			return apperrors.NewResourceNotFoundError(fmt.Sprintf("message %s not found in circle %s", messageID, circleID))
		}

		if err := s.circleRepo.ReplaceChat(ctx, circleID, chat, circle.Version); err != nil {
			s.logger.Warn().Err(err).Str("circleID", circleID).Str("messageID", messageID).Msg("Reaction not applied")
			return err
		}
		return nil
	})
}
