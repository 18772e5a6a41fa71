package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/app/models"
	"github.com/yigit/unilife/internal/app/repositories"
	"github.com/yigit/unilife/internal/livesync"
	"github.com/yigit/unilife/internal/pkg/apperrors"
	"github.com/yigit/unilife/internal/pkg/assistant"
)

// AssistantService runs the study assistant on cached entities
type AssistantService interface {
	SummarizeNote(ctx context.Context, noteID string) (string, error)
	SuggestPlanForRequest(ctx context.Context, requestID string) (string, error)
}

// assistantServiceImpl implements AssistantService
type assistantServiceImpl struct {
	syncer      *livesync.Syncer
	noteRepo    *repositories.NoteRepository
	requestRepo *repositories.NoteRequestRepository
	assistant   *assistant.Assistant
	intents     intentRunner
	logger      zerolog.Logger
}

// NewAssistantService creates a new AssistantService
func NewAssistantService(
	syncer *livesync.Syncer,
	noteRepo *repositories.NoteRepository,
	requestRepo *repositories.NoteRequestRepository,
	ai *assistant.Assistant,
	intents intentRunner,
	logger zerolog.Logger,
) AssistantService {
	return &assistantServiceImpl{
		syncer:      syncer,
		noteRepo:    noteRepo,
		requestRepo: requestRepo,
		assistant:   ai,
		intents:     intents,
		logger:      logger,
	}
}

// SummarizeNote summarizes a note's title and content. The generated text
// always comes back; only an unknown note is an error.
func (s *assistantServiceImpl) SummarizeNote(ctx context.Context, noteID string) (string, error) {
	if _, err := s.intents.session.RequireUser(); err != nil {
		return "", err
	}

	note, err := s.syncer.Note(noteID)
	if errors.Is(err, apperrors.ErrResourceNotFound) {
		// Not pushed yet; ask the store directly.
		var stored *models.Note
		stored, err = s.noteRepo.GetByID(ctx, noteID)
		if err == nil {
			note = *stored
		}
	}
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(note.Title + "\n\n" + note.Content)
	return s.assistant.Summarize(ctx, text), nil
}

// SuggestPlanForRequest drafts a study plan for a note request's topic
func (s *assistantServiceImpl) SuggestPlanForRequest(ctx context.Context, requestID string) (string, error) {
	if _, err := s.intents.session.RequireUser(); err != nil {
		return "", err
	}

	req, err := s.syncer.NoteRequest(requestID)
	if errors.Is(err, apperrors.ErrResourceNotFound) {
		var stored *models.NoteRequest
		stored, err = s.requestRepo.GetByID(ctx, requestID)
		if err == nil {
			req = *stored
		}
	}
	if err != nil {
		return "", err
	}

	topic := req.Topic
	if req.Description != "" {
		topic += ": " + req.Description
	}
	return s.assistant.SuggestPlan(ctx, topic), nil
}
