// Package memstore is an in-process DocumentStore used for the demo backend
// and in tests.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/gateway"
)

var _ gateway.DocumentStore = (*Store)(nil)

type record struct {
	data      map[string]any
	version   int64
	updatedAt time.Time
}

// Store keeps collections in memory. Writes are serialized by a single mutex.
type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]*record
	failure     error
	closed      bool

	bc  *gateway.Broadcaster
	now func() time.Time
}

// New creates an empty Store.
func New(logger zerolog.Logger) *Store {
	s := &Store{
		collections: make(map[string]map[string]*record),
		now:         time.Now,
	}
	s.bc = gateway.NewBroadcaster(s.load, logger.With().Str("store", "memory").Logger())
	return s
}

// SetFailure makes every read and write fail with err until called with nil.
// Subscriptions receive err on their error callback.
func (s *Store) SetFailure(err error) {
	s.mu.Lock()
	s.failure = err
	s.mu.Unlock()
	if err != nil {
		s.bc.Fail("", err)
		return
	}
	s.bc.NotifyAll()
}

// FailSubscriptions delivers err to the subscriptions on collection only.
func (s *Store) FailSubscriptions(collection string, err error) {
	s.bc.Fail(collection, err)
}

func (s *Store) Subscribe(q gateway.Query, onSnapshot gateway.SnapshotFunc, onError gateway.ErrorFunc) gateway.Unsubscribe {
	return s.bc.Subscribe(q, onSnapshot, onError)
}

func (s *Store) load(ctx context.Context, q gateway.Query) ([]gateway.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return nil, err
	}

	coll := s.collections[q.Collection]
	docs := make([]gateway.Document, 0, len(coll))
	for id, rec := range coll {
		doc, err := rec.document(id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	gateway.SortDocuments(docs, q)
	return docs, nil
}

func (s *Store) GetOne(ctx context.Context, collection, id string) (*gateway.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return nil, err
	}

	rec, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, gateway.ErrNotFound)
	}
	doc, err := rec.document(id)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) CreateWithGeneratedID(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.New().String()
	if err := s.write(collection, id, func(rec *record, exists bool) (map[string]any, error) {
		if exists {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, gateway.ErrAlreadyExists)
		}
		return gateway.ApplyUpdate(nil, data)
	}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) SetAt(ctx context.Context, collection, id string, data map[string]any) error {
	return s.write(collection, id, func(rec *record, exists bool) (map[string]any, error) {
		return gateway.ApplyUpdate(nil, data)
	})
}

func (s *Store) UpdateFields(ctx context.Context, collection, id string, fields map[string]any, opts ...gateway.WriteOption) error {
	o := gateway.BuildWriteOptions(opts...)
	return s.write(collection, id, func(rec *record, exists bool) (map[string]any, error) {
		if !exists {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, gateway.ErrNotFound)
		}
		if o.IfVersion != 0 && rec.version != o.IfVersion {
			return nil, fmt.Errorf("%s/%s at version %d, expected %d: %w",
				collection, id, rec.version, o.IfVersion, gateway.ErrVersionConflict)
		}
		return gateway.ApplyUpdate(rec.data, fields)
	})
}

func (s *Store) write(collection, id string, mutate func(rec *record, exists bool) (map[string]any, error)) error {
	s.mu.Lock()
	if err := s.checkLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]*record)
		s.collections[collection] = coll
	}
	rec, exists := coll[id]
	data, err := mutate(rec, exists)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !exists {
		rec = &record{}
		coll[id] = rec
	}
	rec.data = data
	rec.version++
	rec.updatedAt = s.now()
	s.mu.Unlock()

	s.bc.Notify(collection)
	return nil
}

func (s *Store) checkLocked() error {
	if s.closed {
		return gateway.ErrClosed
	}
	return s.failure
}

// Close releases all subscriptions.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.bc.Close()
	return nil
}

func (r *record) document(id string) (gateway.Document, error) {
	data, err := gateway.ApplyUpdate(r.data, nil)
	if err != nil {
		return gateway.Document{}, err
	}
	return gateway.Document{ID: id, Data: data, Version: r.version, UpdatedAt: r.updatedAt}, nil
}
