package repositories

import (
	"errors"
	"fmt"

	"github.com/yigit/unilife/internal/gateway"
	"github.com/yigit/unilife/internal/pkg/apperrors"
)

// Repositories holds all the repository instances
type Repositories struct {
	UserRepository         *UserRepository
	CircleRepository       *CircleRepository
	NoteRepository         *NoteRepository
	AnnouncementRepository *AnnouncementRepository
	NoteRequestRepository  *NoteRequestRepository
}

// NewRepositories initializes all repositories
func NewRepositories(store gateway.DocumentStore) *Repositories {
	return &Repositories{
		UserRepository:         NewUserRepository(store),
		CircleRepository:       NewCircleRepository(store),
		NoteRepository:         NewNoteRepository(store),
		AnnouncementRepository: NewAnnouncementRepository(store),
		NoteRequestRepository:  NewNoteRequestRepository(store),
	}
}

// translateError maps gateway errors onto application errors. Anything the
// store could not serve is reported as ErrBackendUnavailable.
func translateError(err error, entity, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gateway.ErrNotFound):
		return apperrors.NewResourceNotFoundError(fmt.Sprintf("%s %s not found", entity, id))
	case errors.Is(err, gateway.ErrVersionConflict):
		return apperrors.NewConflictError(fmt.Sprintf("%s %s was modified concurrently, reload and try again", entity, id))
	case errors.Is(err, gateway.ErrAlreadyExists):
		return apperrors.NewCustomError(apperrors.ErrResourceAlreadyExists, fmt.Sprintf("%s %s already exists", entity, id))
	default:
		return fmt.Errorf("%s %s: %w: %w", entity, id, apperrors.ErrBackendUnavailable, err)
	}
}

// encodeEntity turns an entity into document data. The id lives in the
// document key, not in its data.
func encodeEntity(v any) (map[string]any, error) {
	data, err := gateway.Encode(v)
	if err != nil {
		return nil, err
	}
	delete(data, "id")
	return data, nil
}
