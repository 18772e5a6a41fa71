package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/yigit/unilife/internal/app/models"
	"github.com/yigit/unilife/internal/app/repositories"
	"github.com/yigit/unilife/internal/pkg/apperrors"
	"github.com/yigit/unilife/internal/pkg/logger"
)

// AuthorizationService answers who may do what inside a circle
type AuthorizationService struct {
	circleRepo *repositories.CircleRepository
}

// NewAuthorizationService creates a new AuthorizationService
func NewAuthorizationService(circleRepo *repositories.CircleRepository) *AuthorizationService {
	return &AuthorizationService{circleRepo: circleRepo}
}

// IsCircleCreator checks if userID created the circle
func (s *AuthorizationService) IsCircleCreator(ctx context.Context, circleID, userID string) (bool, error) {
	circle, err := s.circleRepo.GetByID(ctx, circleID)
	if err != nil {
		if errors.Is(err, apperrors.ErrResourceNotFound) {
			return false, err
		}
		logger.Error().Err(err).Str("circleID", circleID).Msg("Error getting circle in IsCircleCreator")
		return false, fmt.Errorf("failed to check circle creator: %w", err)
	}
	return circle.CreatorID == userID, nil
}

// ValidateAnnouncementAuthor returns a permission error unless userID may
// post announcements in the circle.
func (s *AuthorizationService) ValidateAnnouncementAuthor(ctx context.Context, circleID, userID string) error {
	isCreator, err := s.IsCircleCreator(ctx, circleID, userID)
	if err != nil {
		return err
	}
	if !isCreator {
		return apperrors.NewForbiddenError("only the circle creator can post announcements")
	}
	return nil
}

// ValidateFulfiller checks that userID may fulfill req: it must still be
// open and belong to someone else.
func (s *AuthorizationService) ValidateFulfiller(req *models.NoteRequest, userID string) error {
	if !req.IsOpen() {
		return ErrRequestNotOpen()
	}
	if req.AuthorID == userID {
		return apperrors.NewCustomError(apperrors.ErrOwnRequest, "you cannot fulfill your own note request")
	}
	return nil
}

// ErrRequestNotOpen is the error for a request somebody already fulfilled
func ErrRequestNotOpen() error {
	return apperrors.NewCustomError(apperrors.ErrRequestNotOpen, "this note request has already been fulfilled")
}
