package repositories

import (
	"context"

	"github.com/yigit/unilife/internal/app/models"
	"github.com/yigit/unilife/internal/gateway"
	"github.com/yigit/unilife/internal/pkg/logger"
)

// NoteRepository handles notes documents
type NoteRepository struct {
	store gateway.DocumentStore
}

// NewNoteRepository creates a new NoteRepository
func NewNoteRepository(store gateway.DocumentStore) *NoteRepository {
	return &NoteRepository{store: store}
}

// GetByID reads a note from the store.
func (r *NoteRepository) GetByID(ctx context.Context, id string) (*models.Note, error) {
	doc, err := r.store.GetOne(ctx, models.CollectionNotes, id)
	if err != nil {
		return nil, translateError(err, "note", id)
	}
	note, err := models.DecodeNote(*doc)
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// Create stores a note and returns its generated id.
func (r *NoteRepository) Create(ctx context.Context, note *models.Note) (string, error) {
	data, err := encodeEntity(note)
	if err != nil {
		return "", err
	}
	id, err := r.store.CreateWithGeneratedID(ctx, models.CollectionNotes, data)
	if err != nil {
		logger.Error().Err(err).Str("circleID", note.CircleID).Msg("Error creating note")
		return "", translateError(err, "note", note.Title)
	}
	return id, nil
}

// AnnouncementRepository handles announcements documents
type AnnouncementRepository struct {
	store gateway.DocumentStore
}

// NewAnnouncementRepository creates a new AnnouncementRepository
func NewAnnouncementRepository(store gateway.DocumentStore) *AnnouncementRepository {
	return &AnnouncementRepository{store: store}
}

// Create stores an announcement and returns its generated id.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) (string, error) {
	data, err := encodeEntity(announcement)
	if err != nil {
		return "", err
	}
	id, err := r.store.CreateWithGeneratedID(ctx, models.CollectionAnnouncements, data)
	if err != nil {
		logger.Error().Err(err).Str("circleID", announcement.CircleID).Msg("Error creating announcement")
		return "", translateError(err, "announcement", announcement.Title)
	}
	return id, nil
}
