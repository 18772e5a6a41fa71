// Package pgstore implements the DocumentStore on PostgreSQL. Documents are
// JSONB rows; changes are pushed to every process through LISTEN/NOTIFY.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/db"
	"github.com/yigit/unilife/internal/gateway"
	"github.com/yigit/unilife/internal/pkg/dberrors"
)

const notifyChannel = "unilife_documents"

var _ gateway.DocumentStore = (*Store)(nil)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Store is a PostgreSQL document store.
type Store struct {
	db        *db.PostgresDB
	bc        *gateway.Broadcaster
	logger    zerolog.Logger
	reconnect time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// New wraps database and starts the notification listener. The schema must
// already be migrated.
func New(database *db.PostgresDB, reconnect time.Duration, logger zerolog.Logger) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		db:        database,
		logger:    logger.With().Str("store", "postgres").Logger(),
		reconnect: reconnect,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	s.bc = gateway.NewBroadcaster(s.load, s.logger)
	go s.listen(ctx)
	return s
}

func (s *Store) Subscribe(q gateway.Query, onSnapshot gateway.SnapshotFunc, onError gateway.ErrorFunc) gateway.Unsubscribe {
	return s.bc.Subscribe(q, onSnapshot, onError)
}

func (s *Store) listen(ctx context.Context) {
	defer close(s.done)
	for {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn().Err(err).Dur("retryIn", s.reconnect).Msg("Notification listener lost its connection")
		s.bc.Fail("", fmt.Errorf("live updates interrupted: %w", err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnect):
		}
	}
}

func (s *Store) listenOnce(ctx context.Context) error {
	pooled, err := s.db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listener connection: %w", err)
	}
	// The listening connection never goes back to the pool.
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.logger.Info().Str("channel", notifyChannel).Msg("Listening for document changes")

	// Anything written while disconnected is picked up by a full reload.
	s.bc.NotifyAll()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.bc.Notify(n.Payload)
	}
}

func (s *Store) load(ctx context.Context, q gateway.Query) ([]gateway.Document, error) {
	builder := psql.Select("id", "data", "version", "updated_at").
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
		builder = builder.OrderBy(fmt.Sprintf("data->'%s' %s NULLS LAST", q.OrderBy, dir))
	}
	builder = builder.OrderBy("id ASC")

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []gateway.Document
	for rows.Next() {
		var doc gateway.Document
		if err := rows.Scan(&doc.ID, &doc.Data, &doc.Version, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s document: %w", q.Collection, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) GetOne(ctx context.Context, collection, id string) (*gateway.Document, error) {
	query, args, err := psql.Select("id", "data", "version", "updated_at").
		From("documents").
		Where(squirrel.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	var doc gateway.Document
	err = s.db.Pool.QueryRow(ctx, query, args...).Scan(&doc.ID, &doc.Data, &doc.Version, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, gateway.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return &doc, nil
}

func (s *Store) CreateWithGeneratedID(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.New().String()
	err := s.write(ctx, collection, id, false, func(current *gateway.Document) (map[string]any, error) {
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
	return s.write(ctx, collection, id, true, func(current *gateway.Document) (map[string]any, error) {
		return gateway.ApplyUpdate(nil, data)
	})
}

func (s *Store) UpdateFields(ctx context.Context, collection, id string, fields map[string]any, opts ...gateway.WriteOption) error {
	o := gateway.BuildWriteOptions(opts...)
	return s.write(ctx, collection, id, false, func(current *gateway.Document) (map[string]any, error) {
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

// write locks the row, computes the new data and notifies listeners on commit.
func (s *Store) write(ctx context.Context, collection, id string, upsert bool,
	mutate func(current *gateway.Document) (map[string]any, error)) error {
	return s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		query, args, err := psql.Select("id", "data", "version", "updated_at").
			From("documents").
			Where(squirrel.Eq{"collection": collection, "id": id}).
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return fmt.Errorf("error building SQL: %w", err)
		}

		var (
			current *gateway.Document
			doc     gateway.Document
		)
		err = tx.QueryRow(ctx, query, args...).Scan(&doc.ID, &doc.Data, &doc.Version, &doc.UpdatedAt)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to lock %s/%s: %w", collection, id, err)
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

		var stmt squirrel.Sqlizer
		if current == nil {
			insert := psql.Insert("documents").
				Columns("collection", "id", "data").
				Values(collection, id, raw)
			if upsert {
				insert = insert.Suffix("ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, " +
					"version = documents.version + 1, updated_at = NOW()")
			}
			stmt = insert
		} else {
			stmt = psql.Update("documents").
				Set("data", raw).
				Set("version", squirrel.Expr("version + 1")).
				Set("updated_at", squirrel.Expr("NOW()")).
				Where(squirrel.Eq{"collection": collection, "id": id})
		}

		sql, stmtArgs, err := stmt.ToSql()
		if err != nil {
			return fmt.Errorf("error building SQL: %w", err)
		}
		if _, err := tx.Exec(ctx, sql, stmtArgs...); err != nil {
			return dberrors.TranslateDocumentError(err, collection, id)
		}

		// Delivered to listeners when the transaction commits.
		if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", notifyChannel, collection); err != nil {
			return fmt.Errorf("failed to notify %s: %w", collection, err)
		}
		return nil
	})
}

// Close stops the listener and releases subscriptions. The pool is owned
// by the caller.
func (s *Store) Close() error {
	s.cancel()
	<-s.done
	s.bc.Close()
	return nil
}
