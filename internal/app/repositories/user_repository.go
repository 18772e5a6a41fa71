package repositories

import (
	"context"

	"github.com/yigit/unilife/internal/app/models"
	"github.com/yigit/unilife/internal/gateway"
	"github.com/yigit/unilife/internal/pkg/logger"
)

// UserRepository handles users documents
type UserRepository struct {
	store gateway.DocumentStore
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(store gateway.DocumentStore) *UserRepository {
	return &UserRepository{store: store}
}

// GetByID reads users/{id} straight from the store.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	doc, err := r.store.GetOne(ctx, models.CollectionUsers, id)
	if err != nil {
		return nil, translateError(err, "user", id)
	}
	user, err := models.DecodeUser(*doc)
	if err != nil {
		logger.Error().Err(err).Str("userID", id).Msg("Stored user does not decode")
		return nil, err
	}
	return &user, nil
}

// Create writes the user document at users/{user.ID}.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	data, err := encodeEntity(user)
	if err != nil {
		return err
	}
	if err := r.store.SetAt(ctx, models.CollectionUsers, user.ID, data); err != nil {
		logger.Error().Err(err).Str("userID", user.ID).Msg("Error creating user")
		return translateError(err, "user", user.ID)
	}
	return nil
}

// ProfileUpdate holds the editable profile fields
type ProfileUpdate struct {
	Bio            string
	Year           string
	Role           models.RoleType
	Interests      []string
	GithubUsername string
}

// UpdateProfile writes all editable fields in one update.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) error {
	interests := update.Interests
	if interests == nil {
		interests = []string{}
	}
	fields := map[string]any{
		"bio":            update.Bio,
		"year":           update.Year,
		"role":           string(update.Role),
		"interests":      interests,
		"githubUsername": update.GithubUsername,
	}
	if err := r.store.UpdateFields(ctx, models.CollectionUsers, id, fields); err != nil {
		return translateError(err, "user", id)
	}
	return nil
}

// AddKarma increments the user's karma by delta.
func (r *UserRepository) AddKarma(ctx context.Context, id string, delta int) error {
	fields := map[string]any{"karma": gateway.Increment(int64(delta))}
	if err := r.store.UpdateFields(ctx, models.CollectionUsers, id, fields); err != nil {
		return translateError(err, "user", id)
	}
	return nil
}

// AddFriendRequest records senderID as pending on recipientID together with
// its notification, in one write. It fails with ErrConflict unless the
// recipient document is still at version.
func (r *UserRepository) AddFriendRequest(ctx context.Context, recipientID, senderID string, notification models.Notification, version int64) error {
	fields := map[string]any{
		"pendingRequests": gateway.ArrayUnion(senderID),
		"notifications":   gateway.ArrayUnion(notification),
	}
	if err := r.store.UpdateFields(ctx, models.CollectionUsers, recipientID, fields, gateway.IfVersion(version)); err != nil {
		return translateError(err, "user", recipientID)
	}
	return nil
}

// AddNotification appends a notification to the user's list.
func (r *UserRepository) AddNotification(ctx context.Context, userID string, notification models.Notification) error {
	fields := map[string]any{"notifications": gateway.ArrayUnion(notification)}
	if err := r.store.UpdateFields(ctx, models.CollectionUsers, userID, fields); err != nil {
		return translateError(err, "user", userID)
	}
	return nil
}
