package services

import (
	"context"
	"errors"
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

// ProfileService defines the interface for profile operations
type ProfileService interface {
	UpdateProfile(ctx context.Context, req *dto.UpdateProfileRequest) error
	SendFriendRequest(ctx context.Context, recipientID string) error
}

// profileServiceImpl implements ProfileService
type profileServiceImpl struct {
	userRepo *repositories.UserRepository
	intents  intentRunner
	logger   zerolog.Logger
}

// NewProfileService creates a new ProfileService
func NewProfileService(userRepo *repositories.UserRepository, intents intentRunner, logger zerolog.Logger) ProfileService {
	return &profileServiceImpl{
		userRepo: userRepo,
		intents:  intents,
		logger:   logger,
	}
}

// UpdateProfile writes the caller's editable profile fields in one update
func (s *profileServiceImpl) UpdateProfile(ctx context.Context, req *dto.UpdateProfileRequest) error {
	return s.intents.run("update_profile", func(user *models.User) error {
		update, err := profileUpdateFromRequest(req)
		if err != nil {
			return err
		}
		if err := s.userRepo.UpdateProfile(ctx, user.ID, update); err != nil {
			return err
		}
		s.logger.Debug().Str("userID", user.ID).Msg("Profile updated")
		return nil
	})
}

func profileUpdateFromRequest(req *dto.UpdateProfileRequest) (repositories.ProfileUpdate, error) {
	bio := strings.TrimSpace(req.Bio)
	if !validation.NewStringValidation(bio).WithRequired(false).WithMaxLength(validation.BioMaxLength).Validate() {
		return repositories.ProfileUpdate{}, apperrors.NewValidationError("bio", "bio is too long")
	}

	role := models.RoleType(req.Role)
	if role == "" {
		role = models.RoleStudent
	}
	if !role.Valid() {
		return repositories.ProfileUpdate{}, apperrors.NewValidationError("role", "role must be student, tutor or representative")
	}

	github := strings.TrimPrefix(strings.TrimSpace(req.GithubUsername), "@")
	if !validation.NewStringValidation(github).WithRequired(false).WithPattern(validation.CompiledPatterns.GithubUsername).Validate() {
		return repositories.ProfileUpdate{}, apperrors.NewValidationError("githubUsername", "invalid GitHub username")
	}

	interests := validation.ParseInterests(strings.Join(req.Interests, ","))
	if len(interests) > validation.MaxInterests {
		return repositories.ProfileUpdate{}, apperrors.NewValidationError("interests", "too many interests")
	}
	for _, interest := range interests {
		if !validation.NewStringValidation(interest).WithMaxLength(validation.InterestMaxLength).Validate() {
			return repositories.ProfileUpdate{}, apperrors.NewValidationError("interests", "interest is too long")
		}
	}

	return repositories.ProfileUpdate{
		Bio:            bio,
		Year:           strings.TrimSpace(req.Year),
		Role:           role,
		Interests:      interests,
		GithubUsername: github,
	}, nil
}

// SendFriendRequest asks recipientID for friendship. Repeating a pending
// request or asking an existing friend does nothing.
func (s *profileServiceImpl) SendFriendRequest(ctx context.Context, recipientID string) error {
	return s.intents.run("send_friend_request", func(user *models.User) error {
		if recipientID == user.ID {
			return apperrors.NewBadRequestError("you cannot send a friend request to yourself")
		}

		recipient, err := s.userRepo.GetByID(ctx, recipientID)
		if err != nil {
			return err
		}
		if recipient.IsFriend(user.ID) || recipient.HasPendingRequestFrom(user.ID) {
			s.logger.Debug().Str("recipientID", recipientID).Str("senderID", user.ID).Msg("Friend request already pending or accepted")
			return nil
		}

		notification := models.Notification{
			ID:         ulid.Make().String(),
			Type:       models.NotificationFriendRequest,
			SenderID:   user.ID,
			SenderName: user.Name,
			Timestamp:  models.FormatTimestamp(time.Now()),
		}
		err = s.userRepo.AddFriendRequest(ctx, recipientID, user.ID, notification, recipient.Version)
		if !errors.Is(err, apperrors.ErrConflict) {
			return err
		}
		// A concurrent request from the same sender may have landed first.
		latest, rerr := s.userRepo.GetByID(ctx, recipientID)
		if rerr == nil && (latest.IsFriend(user.ID) || latest.HasPendingRequestFrom(user.ID)) {
			return nil
		}
		return err
	})
}
