// Package gateway defines the contracts the sync core relies on: a document
// store with push subscriptions and an auth provider with observable state.
package gateway

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrAlreadyExists   = errors.New("document already exists")
	ErrVersionConflict = errors.New("document changed since it was read")
	ErrClosed          = errors.New("document store closed")
)

// Document is one record of a collection as delivered by the store.
type Document struct {
	ID        string
	Data      map[string]any
	Version   int64
	UpdatedAt time.Time
}

// Direction of an ordered query.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Query selects a whole collection, optionally ordered by one field.
type Query struct {
	Collection string
	OrderBy    string
	Direction  Direction
}

// Collection returns an unordered query over name.
func Collection(name string) Query {
	return Query{Collection: name}
}

// OrderByDesc returns a copy of q ordered by field, newest first.
func (q Query) OrderByDesc(field string) Query {
	q.OrderBy = field
	q.Direction = Descending
	return q
}

// OrderByAsc returns a copy of q ordered by field ascending.
func (q Query) OrderByAsc(field string) Query {
	q.OrderBy = field
	q.Direction = Ascending
	return q
}

type (
	SnapshotFunc func(docs []Document)
	ErrorFunc    func(err error)
	// Unsubscribe releases a subscription. Once it returns, the
	// subscription's callbacks are never invoked again.
	Unsubscribe func()
)

// WriteOptions are the preconditions attached to a write.
type WriteOptions struct {
	IfVersion int64
}

type WriteOption func(*WriteOptions)

// IfVersion makes the write fail with ErrVersionConflict unless the stored
// document still has version v.
func IfVersion(v int64) WriteOption {
	return func(o *WriteOptions) {
		o.IfVersion = v
	}
}

// BuildWriteOptions folds opts into a WriteOptions value.
func BuildWriteOptions(opts ...WriteOption) WriteOptions {
	var o WriteOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DocumentStore is the remote document database. Every subscription
// delivers the full, ordered contents of its collection on each change.
type DocumentStore interface {
	Subscribe(q Query, onSnapshot SnapshotFunc, onError ErrorFunc) Unsubscribe
	GetOne(ctx context.Context, collection, id string) (*Document, error)
	CreateWithGeneratedID(ctx context.Context, collection string, data map[string]any) (string, error)
	SetAt(ctx context.Context, collection, id string, data map[string]any) error
	// UpdateFields merges fields into the document. Values may be
	// Transforms, which are applied against the stored value.
	UpdateFields(ctx context.Context, collection, id string, fields map[string]any, opts ...WriteOption) error
	Close() error
}

// Identity is the signed-in principal reported by the auth provider.
type Identity struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	PhotoURL    string    `json:"photoUrl,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// AuthStateFunc receives the current identity, or nil when signed out.
type AuthStateFunc func(identity *Identity)

// AuthProvider signs users in and out and reports auth state changes.
type AuthProvider interface {
	// ObserveAuthState calls fn with the current state right away and
	// again on every change.
	ObserveAuthState(fn AuthStateFunc) Unsubscribe
	SignIn(ctx context.Context, credential string) (*Identity, error)
	SignOut(ctx context.Context) error
	Current() *Identity
}
