// Package livesync keeps local mirrors of the remote collections while a
// session is authenticated.
package livesync

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/yigit/unilife/internal/app/models"
	"github.com/yigit/unilife/internal/gateway"
	"github.com/yigit/unilife/internal/pkg/apperrors"
	"github.com/yigit/unilife/internal/pkg/metrics"
	"github.com/yigit/unilife/internal/session"
)

// Event reports a change to one cache.
type Event struct {
	Collection string
	Degraded   bool
	// Cleared is set when the syncer stopped and the cache was emptied
	Cleared bool
}

// Listener receives cache events. It runs on a subscription goroutine and
// must not block.
type Listener func(Event)

// cacheHandle is the type-erased part of a Cache the syncer drives.
type cacheHandle interface {
	Collection() string
	Query() gateway.Query
	Replace(docs []gateway.Document) (int, error)
	Fail(err error)
	Clear()
	Status() Status
	Snapshot() any
}

// Syncer owns the five collection caches and their subscriptions.
type Syncer struct {
	store   gateway.DocumentStore
	logger  zerolog.Logger
	metrics *metrics.Metrics

	users         *Cache[models.User]
	circles       *Cache[models.Circle]
	notes         *Cache[models.Note]
	announcements *Cache[models.Announcement]
	noteRequests  *Cache[models.NoteRequest]
	all           []cacheHandle

	mu     sync.Mutex
	active atomic.Bool
	unsubs []gateway.Unsubscribe

	listenersMu sync.RWMutex
	listeners   map[uint64]Listener
	nextID      uint64
}

// NewSyncer creates a stopped syncer over store.
func NewSyncer(store gateway.DocumentStore, m *metrics.Metrics, logger zerolog.Logger) *Syncer {
	s := &Syncer{
		store:   store,
		logger:  logger,
		metrics: m,
		users: NewCache(gateway.Collection(models.CollectionUsers),
			models.DecodeUser, func(u models.User) string { return u.ID }),
		circles: NewCache(gateway.Collection(models.CollectionCircles),
			models.DecodeCircle, func(c models.Circle) string { return c.ID }),
		notes: NewCache(gateway.Collection(models.CollectionNotes).OrderByDesc("createdAt"),
			models.DecodeNote, func(n models.Note) string { return n.ID }),
		announcements: NewCache(gateway.Collection(models.CollectionAnnouncements).OrderByDesc("timestamp"),
			models.DecodeAnnouncement, func(a models.Announcement) string { return a.ID }),
		noteRequests: NewCache(gateway.Collection(models.CollectionNoteRequests).OrderByDesc("timestamp"),
			models.DecodeNoteRequest, func(r models.NoteRequest) string { return r.ID }),
		listeners: make(map[uint64]Listener),
	}
	s.all = []cacheHandle{s.users, s.circles, s.notes, s.announcements, s.noteRequests}
	return s
}

// Follow drives the syncer from sess: caches run exactly while the session
// is authenticated. It also makes the session's current user reactive.
func (s *Syncer) Follow(sess *session.Store) (unfollow func()) {
	sess.SetUserLookup(s.UserLookup)
	reconcile := func(session.State) {
		// Re-read so out-of-order notifications settle on the latest state.
		if sess.State().Authenticated {
			s.Start()
		} else {
			s.Stop()
		}
	}
	unsubscribe := sess.OnChange(reconcile)
	reconcile(sess.State())
	return unsubscribe
}

// Start subscribes every cache. It is a no-op while already active.
func (s *Syncer) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active.Load() {
		return
	}
	s.active.Store(true)

	for _, c := range s.all {
		c := c
		log := s.logger.With().Str("collection", c.Collection()).Logger()
		unsub := s.store.Subscribe(c.Query(),
			func(docs []gateway.Document) {
				if !s.active.Load() {
					return
				}
				dropped, err := c.Replace(docs)
				if dropped > 0 {
					log.Warn().Err(err).Int("dropped", dropped).Msg("Dropped documents that did not decode")
				}
				s.metrics.SnapshotApplied(c.Collection(), len(docs)-dropped, dropped)
				s.emit(Event{Collection: c.Collection()})
			},
			func(err error) {
				if !s.active.Load() {
					return
				}
				log.Error().Err(err).Msg("Collection subscription failed, keeping last snapshot")
				c.Fail(err)
				s.metrics.SubscriptionFailed(c.Collection())
				s.emit(Event{Collection: c.Collection(), Degraded: true})
			},
		)
		s.unsubs = append(s.unsubs, unsub)
	}
	s.logger.Info().Int("collections", len(s.all)).Msg("Live sync started")
}

// Stop releases every subscription together and empties all caches. Once
// it returns no snapshot callback runs.
func (s *Syncer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active.Load() {
		return
	}
	s.active.Store(false)

	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil

	for _, c := range s.all {
		c.Clear()
		s.metrics.CacheCleared(c.Collection())
		s.emit(Event{Collection: c.Collection(), Cleared: true})
	}
	s.logger.Info().Msg("Live sync stopped, caches cleared")
}

// Active reports whether caches are being served.
func (s *Syncer) Active() bool {
	return s.active.Load()
}

// OnUpdate registers fn for cache events.
func (s *Syncer) OnUpdate(fn Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

func (s *Syncer) emit(ev Event) {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	for _, fn := range s.listeners {
		fn(ev)
	}
}

// Statuses returns the state of every cache, in a fixed order.
func (s *Syncer) Statuses() []Status {
	out := make([]Status, 0, len(s.all))
	for _, c := range s.all {
		out = append(out, c.Status())
	}
	return out
}

// Snapshot returns the contents of the named collection's cache.
func (s *Syncer) Snapshot(collection string) (any, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	for _, c := range s.all {
		if c.Collection() == collection {
			return c.Snapshot(), nil
		}
	}
	return nil, notFound("collection", collection)
}

// Collections lists the cached collection names in a fixed order.
func (s *Syncer) Collections() []string {
	out := make([]string, 0, len(s.all))
	for _, c := range s.all {
		out = append(out, c.Collection())
	}
	return out
}

// Degraded reports whether any subscription is failing.
func (s *Syncer) Degraded() bool {
	for _, c := range s.all {
		if c.Status().Degraded {
			return true
		}
	}
	return false
}

func (s *Syncer) guard() error {
	if !s.active.Load() {
		return apperrors.ErrNotAuthenticated
	}
	return nil
}

func notFound(entity, id string) error {
	return apperrors.NewResourceNotFoundError(fmt.Sprintf("%s %s not found", entity, id))
}

// UserLookup returns the cached user with id while active.
func (s *Syncer) UserLookup(id string) (models.User, bool) {
	if !s.active.Load() {
		return models.User{}, false
	}
	return s.users.Get(id)
}

// Users returns every cached user.
func (s *Syncer) Users() ([]models.User, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	return s.users.Items(), nil
}

// User returns one cached user.
func (s *Syncer) User(id string) (models.User, error) {
	if err := s.guard(); err != nil {
		return models.User{}, err
	}
	u, ok := s.users.Get(id)
	if !ok {
		return models.User{}, notFound("user", id)
	}
	return u, nil
}

// Circles returns every cached circle.
func (s *Syncer) Circles() ([]models.Circle, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	return s.circles.Items(), nil
}

// Circle returns one cached circle.
func (s *Syncer) Circle(id string) (models.Circle, error) {
	if err := s.guard(); err != nil {
		return models.Circle{}, err
	}
	c, ok := s.circles.Get(id)
	if !ok {
		return models.Circle{}, notFound("circle", id)
	}
	return c, nil
}

// Notes returns cached notes, newest first. A non-empty circleID filters.
func (s *Syncer) Notes(circleID string) ([]models.Note, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if circleID == "" {
		return s.notes.Items(), nil
	}
	return s.notes.Filter(func(n models.Note) bool { return n.CircleID == circleID }), nil
}

// Note returns one cached note.
func (s *Syncer) Note(id string) (models.Note, error) {
	if err := s.guard(); err != nil {
		return models.Note{}, err
	}
	n, ok := s.notes.Get(id)
	if !ok {
		return models.Note{}, notFound("note", id)
	}
	return n, nil
}

// Announcements returns cached announcements, newest first. A non-empty
// circleID filters.
func (s *Syncer) Announcements(circleID string) ([]models.Announcement, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if circleID == "" {
		return s.announcements.Items(), nil
	}
	return s.announcements.Filter(func(a models.Announcement) bool { return a.CircleID == circleID }), nil
}

// NoteRequests returns cached note requests, newest first. A non-empty
// circleID filters.
func (s *Syncer) NoteRequests(circleID string) ([]models.NoteRequest, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if circleID == "" {
		return s.noteRequests.Items(), nil
	}
	return s.noteRequests.Filter(func(r models.NoteRequest) bool { return r.CircleID == circleID }), nil
}

// NoteRequest returns one cached note request.
func (s *Syncer) NoteRequest(id string) (models.NoteRequest, error) {
	if err := s.guard(); err != nil {
		return models.NoteRequest{}, err
	}
	r, ok := s.noteRequests.Get(id)
	if !ok {
		return models.NoteRequest{}, notFound("note request", id)
	}
	return r, nil
}
