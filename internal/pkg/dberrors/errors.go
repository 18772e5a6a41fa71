package dberrors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yigit/unilife/internal/gateway"
)

const (
	uniqueViolation = "23505"

	// DocumentsPrimaryKey is the primary key constraint of the documents table.
	DocumentsPrimaryKey = "documents_pkey"
)

// IsDuplicateConstraintError checks if the error is a PostgreSQL unique violation error
// for a specific constraint.
func IsDuplicateConstraintError(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraintName
}

// TranslateDocumentError maps driver errors for a document write onto gateway errors.
func TranslateDocumentError(err error, collection, id string) error {
	if err == nil {
		return nil
	}
	if IsDuplicateConstraintError(err, DocumentsPrimaryKey) {
		return fmt.Errorf("%s/%s: %w", collection, id, gateway.ErrAlreadyExists)
	}
	return fmt.Errorf("failed to write %s/%s: %w", collection, id, err)
}
