package gateway

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Loader reads the full, ordered contents selected by a query.
type Loader func(ctx context.Context, q Query) ([]Document, error)

// Broadcaster fans store changes out to subscriptions. Each subscription
// runs on its own goroutine; wake-ups coalesce, so a burst of writes may
// produce a single delivery of the latest contents.
type Broadcaster struct {
	load   Loader
	logger zerolog.Logger

	mu     sync.Mutex
	subs   map[uint64]*subscription
	nextID uint64
	closed bool
}

type subscription struct {
	query  Query
	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	pendingErr error
}

// NewBroadcaster creates a Broadcaster that reloads through load.
func NewBroadcaster(load Loader, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		load:   load,
		logger: logger,
		subs:   make(map[uint64]*subscription),
	}
}

// Subscribe registers a listener for q. The first delivery happens as soon
// as the subscription goroutine starts.
func (b *Broadcaster) Subscribe(q Query, onSnapshot SnapshotFunc, onError ErrorFunc) Unsubscribe {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		query:  q,
		wake:   make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		if onError != nil {
			onError(ErrClosed)
		}
		return func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	sub.signal()
	go sub.run(ctx, b.load, onSnapshot, onError)

	b.logger.Debug().Str("collection", q.Collection).Uint64("subscriptionID", id).Msg("Subscription opened")

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			cancel()
			<-sub.done
			b.logger.Debug().Str("collection", q.Collection).Uint64("subscriptionID", id).Msg("Subscription released")
		})
	}
}

// Notify wakes every subscription on collection.
func (b *Broadcaster) Notify(collection string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if sub.query.Collection == collection {
			sub.signal()
		}
	}
}

// NotifyAll wakes every subscription.
func (b *Broadcaster) NotifyAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		sub.signal()
	}
}

// Fail delivers err to every subscription's error callback. An empty
// collection targets all subscriptions.
func (b *Broadcaster) Fail(collection string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if collection == "" || sub.query.Collection == collection {
			sub.mu.Lock()
			sub.pendingErr = err
			sub.mu.Unlock()
			sub.signal()
		}
	}
}

// Close releases all subscriptions and waits for their goroutines.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uint64]*subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
		<-sub.done
	}
}

func (s *subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) takeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.pendingErr
	s.pendingErr = nil
	return err
}

func (s *subscription) run(ctx context.Context, load Loader, onSnapshot SnapshotFunc, onError ErrorFunc) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}

		if err := s.takeErr(); err != nil {
			if onError != nil && ctx.Err() == nil {
				onError(err)
			}
			continue
		}

		docs, err := load(ctx, s.query)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if onError != nil {
				onError(err)
			}
			continue
		}
		if onSnapshot != nil {
			onSnapshot(docs)
		}
	}
}
