package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	appAuth "github.com/yigit/unilife/internal/app/auth"
	"github.com/yigit/unilife/internal/app/models"
	"github.com/yigit/unilife/internal/app/models/dto"
	"github.com/yigit/unilife/internal/app/repositories"
	"github.com/yigit/unilife/internal/pkg/apperrors"
)

// NoteService defines the interface for shared notes and announcements
type NoteService interface {
	AddNote(ctx context.Context, circleID string, req *dto.AddNoteRequest) (string, error)
	AddAnnouncement(ctx context.Context, circleID string, req *dto.AddAnnouncementRequest) (string, error)
}

// noteServiceImpl implements NoteService
type noteServiceImpl struct {
	noteRepo         *repositories.NoteRepository
	announcementRepo *repositories.AnnouncementRepository
	circleRepo       *repositories.CircleRepository
	userRepo         *repositories.UserRepository
	authz            *appAuth.AuthorizationService
	intents          intentRunner
	logger           zerolog.Logger
}

// NewNoteService creates a new NoteService
func NewNoteService(
	noteRepo *repositories.NoteRepository,
	announcementRepo *repositories.AnnouncementRepository,
	circleRepo *repositories.CircleRepository,
	userRepo *repositories.UserRepository,
	authz *appAuth.AuthorizationService,
	intents intentRunner,
	logger zerolog.Logger,
) NoteService {
	return &noteServiceImpl{
		noteRepo:         noteRepo,
		announcementRepo: announcementRepo,
		circleRepo:       circleRepo,
		userRepo:         userRepo,
		authz:            authz,
		intents:          intents,
		logger:           logger,
	}
}

// AddNote shares a note in a circle and rewards the author
func (s *noteServiceImpl) AddNote(ctx context.Context, circleID string, req *dto.AddNoteRequest) (string, error) {
	var id string
	err := s.intents.run("add_note", func(user *models.User) error {
		title := strings.TrimSpace(req.Title)
		if title == "" {
			return apperrors.NewValidationError("title", "note title is required")
		}
		if _, err := s.circleRepo.GetByID(ctx, circleID); err != nil {
			return err
		}

		visibility := models.Visibility(req.Visibility)
		if visibility == "" {
			visibility = models.VisibilityGroup
		}
		tags := req.Tags
		if tags == nil {
			tags = []string{}
		}

		note := &models.Note{
			Title:      title,
			Content:    req.Content,
			AuthorID:   user.ID,
			CircleID:   circleID,
			Tags:       tags,
			CreatedAt:  models.FormatTimestamp(time.Now()),
			Visibility: visibility,
			FileName:   req.FileName,
			FileSize:   models.FormatFileSize(req.FileBytes),
			FileURL:    models.PlaceholderFileURL,
		}

		var err error
		id, err = s.noteRepo.Create(ctx, note)
		if err != nil {
			return err
		}
		s.logger.Info().Str("noteID", id).Str("circleID", circleID).Msg("Note shared")
		return awardKarma(ctx, s.userRepo, s.logger, user.ID, models.KarmaNoteShared)
	})
	return id, err
}

// AddAnnouncement posts an announcement; only the circle creator may do so
func (s *noteServiceImpl) AddAnnouncement(ctx context.Context, circleID string, req *dto.AddAnnouncementRequest) (string, error) {
	var id string
	err := s.intents.run("add_announcement", func(user *models.User) error {
		title := strings.TrimSpace(req.Title)
		if title == "" {
			return apperrors.NewValidationError("title", "announcement title is required")
		}

		if err := s.authz.ValidateAnnouncementAuthor(ctx, circleID, user.ID); err != nil {
			return err
		}

		priority := models.AnnouncementPriority(req.Priority)
		if priority == "" {
			priority = models.PriorityNormal
		}

		var err error
		id, err = s.announcementRepo.Create(ctx, &models.Announcement{
			Title:     title,
			Content:   req.Content,
			AuthorID:  user.ID,
			CircleID:  circleID,
			Timestamp: models.FormatTimestamp(time.Now()),
			Priority:  priority,
		})
		return err
	})
	return id, err
}
