package repositories

import (
	"context"

	"github.com/yigit/unilife/internal/app/models"
	"github.com/yigit/unilife/internal/gateway"
	"github.com/yigit/unilife/internal/pkg/logger"
)

// NoteRequestRepository handles noteRequests documents
type NoteRequestRepository struct {
	store gateway.DocumentStore
}

// NewNoteRequestRepository creates a new NoteRequestRepository
func NewNoteRequestRepository(store gateway.DocumentStore) *NoteRequestRepository {
	return &NoteRequestRepository{store: store}
}

// GetByID reads the latest stored request, version included.
func (r *NoteRequestRepository) GetByID(ctx context.Context, id string) (*models.NoteRequest, error) {
	doc, err := r.store.GetOne(ctx, models.CollectionNoteRequests, id)
	if err != nil {
		return nil, translateError(err, "note request", id)
	}
	req, err := models.DecodeNoteRequest(*doc)
	if err != nil {
		logger.Error().Err(err).Str("requestID", id).Msg("Stored note request does not decode")
		return nil, err
	}
	return &req, nil
}

// Create stores a request and returns its generated id.
func (r *NoteRequestRepository) Create(ctx context.Context, req *models.NoteRequest) (string, error) {
	data, err := encodeEntity(req)
	if err != nil {
		return "", err
	}
	id, err := r.store.CreateWithGeneratedID(ctx, models.CollectionNoteRequests, data)
	if err != nil {
		logger.Error().Err(err).Str("circleID", req.CircleID).Msg("Error creating note request")
		return "", translateError(err, "note request", req.Topic)
	}
	return id, nil
}

// MarkFulfilled moves the request to fulfilled by fulfillerID, provided it is
// still at version.
func (r *NoteRequestRepository) MarkFulfilled(ctx context.Context, id, fulfillerID string, version int64) error {
	fields := map[string]any{
		"status":      string(models.RequestFulfilled),
		"fulfilledBy": fulfillerID,
	}
	if err := r.store.UpdateFields(ctx, models.CollectionNoteRequests, id, fields, gateway.IfVersion(version)); err != nil {
		return translateError(err, "note request", id)
	}
	return nil
}
