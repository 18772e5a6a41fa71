// Package sqlitestore provides a SQLite-backed DocumentStore for running the
// sync core against a local file.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/yigit/unilife/internal/gateway"
)

var _ gateway.DocumentStore = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);
`

// Store keeps documents as JSON text in one table. A single connection
// serializes writes.
type Store struct {
	db     *sql.DB
	bc     *gateway.Broadcaster
	logger zerolog.Logger
}

// New opens (and creates if needed) the database at dbPath.
func New(dbPath string, logger zerolog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &Store{db: db, logger: logger.With().Str("store", "sqlite").Logger()}
	s.bc = gateway.NewBroadcaster(s.load, s.logger)
	return s, nil
}

func (s *Store) Subscribe(q gateway.Query, onSnapshot gateway.SnapshotFunc, onError gateway.ErrorFunc) gateway.Unsubscribe {
	return s.bc.Subscribe(q, onSnapshot, onError)
}

func (s *Store) load(ctx context.Context, q gateway.Query) ([]gateway.Document, error) {
	builder := squirrel.Select("id", "data", "version", "updated_at").
		From("documents").
		Where(squirrel.Eq{"collection": q.Collection})

	if q.OrderBy != "" {
		if !gateway.ValidFieldName(q.OrderBy) {
			return nil, fmt.Errorf("invalid order field %q", q.OrderBy)
		}
		dir := "ASC"
		if q.Direction == gateway.Descending {
			dir = "DESC"
		}
		builder = builder.OrderBy(fmt.Sprintf("json_extract(data, '$.%s') %s NULLS LAST", q.OrderBy, dir))
	}
	builder = builder.OrderBy("id ASC")

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []gateway.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (gateway.Document, error) {
	var (
		doc       gateway.Document
		raw       string
		updatedAt string
	)
	if err := row.Scan(&doc.ID, &raw, &doc.Version, &updatedAt); err != nil {
		return doc, err
	}
	if err := json.Unmarshal([]byte(raw), &doc.Data); err != nil {
		return doc, fmt.Errorf("document %s holds invalid JSON: %w", doc.ID, err)
	}
	doc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return doc, nil
}

func (s *Store) GetOne(ctx context.Context, collection, id string) (*gateway.Document, error) {
	query, args, err := squirrel.Select("id", "data", "version", "updated_at").
		From("documents").
		Where(squirrel.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, gateway.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return &doc, nil
}

func (s *Store) CreateWithGeneratedID(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.New().String()
	err := s.write(ctx, collection, id, func(current *gateway.Document) (map[string]any, error) {
		if current != nil {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, gateway.ErrAlreadyExists)
		}
		return gateway.ApplyUpdate(nil, data)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) SetAt(ctx context.Context, collection, id string, data map[string]any) error {
	return s.write(ctx, collection, id, func(current *gateway.Document) (map[string]any, error) {
		return gateway.ApplyUpdate(nil, data)
	})
}

func (s *Store) UpdateFields(ctx context.Context, collection, id string, fields map[string]any, opts ...gateway.WriteOption) error {
	o := gateway.BuildWriteOptions(opts...)
	return s.write(ctx, collection, id, func(current *gateway.Document) (map[string]any, error) {
		if current == nil {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, gateway.ErrNotFound)
		}
		if o.IfVersion != 0 && current.Version != o.IfVersion {
			return nil, fmt.Errorf("%s/%s at version %d, expected %d: %w",
				collection, id, current.Version, o.IfVersion, gateway.ErrVersionConflict)
		}
		return gateway.ApplyUpdate(current.Data, fields)
	})
}

// write runs read-modify-write for one document in a transaction.
func (s *Store) write(ctx context.Context, collection, id string, mutate func(current *gateway.Document) (map[string]any, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := squirrel.Select("id", "data", "version", "updated_at").
		From("documents").
		Where(squirrel.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}

	var current *gateway.Document
	doc, err := scanDocument(tx.QueryRowContext(ctx, query, args...))
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to read %s/%s: %w", collection, id, err)
	default:
		current = &doc
	}

	data, err := mutate(current)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var builder squirrel.Sqlizer
	if current == nil {
		builder = squirrel.Insert("documents").
			Columns("collection", "id", "data", "version", "created_at", "updated_at").
			Values(collection, id, string(raw), 1, now, now)
	} else {
		builder = squirrel.Update("documents").
			Set("data", string(raw)).
			Set("version", current.Version+1).
			Set("updated_at", now).
			Where(squirrel.Eq{"collection": collection, "id": id})
	}
	stmt, stmtArgs, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx, stmt, stmtArgs...); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.bc.Notify(collection)
	return nil
}

// Close releases subscriptions and closes the database.
func (s *Store) Close() error {
	s.bc.Close()
	return s.db.Close()
}
