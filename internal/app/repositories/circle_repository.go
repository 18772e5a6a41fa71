package repositories

import (
	"context"

	"github.com/yigit/unilife/internal/app/models"
	"github.com/yigit/unilife/internal/gateway"
	"github.com/yigit/unilife/internal/pkg/logger"
)

// CircleRepository handles circles documents, chat included
type CircleRepository struct {
	store gateway.DocumentStore
}

// NewCircleRepository creates a new CircleRepository
func NewCircleRepository(store gateway.DocumentStore) *CircleRepository {
	return &CircleRepository{store: store}
}

// GetByID reads the latest stored circle, version included.
func (r *CircleRepository) GetByID(ctx context.Context, id string) (*models.Circle, error) {
	doc, err := r.store.GetOne(ctx, models.CollectionCircles, id)
	if err != nil {
		return nil, translateError(err, "circle", id)
	}
	circle, err := models.DecodeCircle(*doc)
	if err != nil {
		logger.Error().Err(err).Str("circleID", id).Msg("Stored circle does not decode")
		return nil, err
	}
	return &circle, nil
}

// Create stores a new circle and returns its generated id.
func (r *CircleRepository) Create(ctx context.Context, circle *models.Circle) (string, error) {
	data, err := encodeEntity(circle)
	if err != nil {
		return "", err
	}
	id, err := r.store.CreateWithGeneratedID(ctx, models.CollectionCircles, data)
	if err != nil {
		logger.Error().Err(err).Str("name", circle.Name).Msg("Error creating circle")
		return "", translateError(err, "circle", circle.Name)
	}
	return id, nil
}

// AddMember adds userID to the member set; repeated calls are no-ops.
func (r *CircleRepository) AddMember(ctx context.Context, circleID, userID string) error {
	fields := map[string]any{"members": gateway.ArrayUnion(userID)}
	if err := r.store.UpdateFields(ctx, models.CollectionCircles, circleID, fields); err != nil {
		return translateError(err, "circle", circleID)
	}
	return nil
}

// AppendMessage adds msg to the chat array.
func (r *CircleRepository) AppendMessage(ctx context.Context, circleID string, msg models.ChatMessage) error {
	fields := map[string]any{"chat": gateway.ArrayUnion(msg)}
	if err := r.store.UpdateFields(ctx, models.CollectionCircles, circleID, fields); err != nil {
		return translateError(err, "circle", circleID)
	}
	return nil
}

// ReplaceChat overwrites the chat array if the circle is still at version.
func (r *CircleRepository) ReplaceChat(ctx context.Context, circleID string, chat []models.ChatMessage, version int64) error {
	fields := map[string]any{"chat": chat}
	if err := r.store.UpdateFields(ctx, models.CollectionCircles, circleID, fields, gateway.IfVersion(version)); err != nil {
		return translateError(err, "circle", circleID)
	}
	return nil
}
