package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/app/models"
	"github.com/yigit/unilife/internal/app/repositories"
	"github.com/yigit/unilife/internal/gateway/memstore"
	"github.com/yigit/unilife/internal/pkg/apperrors"
)

func TestAnnouncementAuthor(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(zerolog.Nop())
	defer store.Close()
	circles := repositories.NewCircleRepository(store)
	authz := NewAuthorizationService(circles)

	id, err := circles.Create(ctx, &models.Circle{Name: "Analisi I", CreatorID: "anna", Members: []string{"anna", "bruno"}})
	assert.Equal(t, err, nil)

	assert.Equal(t, authz.ValidateAnnouncementAuthor(ctx, id, "anna"), nil)

	err = authz.ValidateAnnouncementAuthor(ctx, id, "bruno")
	assert.Equal(t, errors.Is(err, apperrors.ErrPermissionDenied), true)

	err = authz.ValidateAnnouncementAuthor(ctx, "missing", "anna")
	assert.Equal(t, errors.Is(err, apperrors.ErrResourceNotFound), true)
}

func TestValidateFulfiller(t *testing.T) {
	authz := NewAuthorizationService(nil)

	open := &models.NoteRequest{AuthorID: "anna", Status: models.RequestOpen}
	assert.Equal(t, authz.ValidateFulfiller(open, "bruno"), nil)
	assert.Equal(t, errors.Is(authz.ValidateFulfiller(open, "anna"), apperrors.ErrOwnRequest), true)

	done := &models.NoteRequest{AuthorID: "anna", Status: models.RequestFulfilled}
	assert.Equal(t, errors.Is(authz.ValidateFulfiller(done, "bruno"), apperrors.ErrRequestNotOpen), true)
}
