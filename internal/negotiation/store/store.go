// Package store is the client-resident cache of negotiations. It applies the
// caller's intents against the remote server of record: terminal actions are
// applied optimistically and rolled back to the exact prior record when the
// remote call fails.
package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"paylesscars/internal/events"
	"paylesscars/internal/negotiation/domain"
	"paylesscars/internal/negotiation/ports"
	"paylesscars/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const defaultPageSize = 50

// Option configures a Store.
type Option func(*Store)

// WithEventBus publishes events.NegotiationCacheChanged after every change.
func WithEventBus(bus events.Publisher) Option {
	return func(s *Store) { s.bus = bus }
}

// WithSnapshotStore persists the committed list between runs.
func WithSnapshotStore(snapshots ports.SnapshotStore) Option {
	return func(s *Store) { s.snapshots = snapshots }
}

func WithLogger(log *logger.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithPageSize sets the page size used when List walks every page.
func WithPageSize(size int) Option {
	return func(s *Store) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// ListOptions filters List. A nil Status lists everything.
type ListOptions struct {
	Status *domain.Status
}

// View is a cached negotiation plus what the current user may do with it.
type View struct {
	Negotiation  domain.Negotiation
	Party        domain.Party
	NeedsRefresh bool
	MyTurn       bool
	Actions      []domain.Action
}

// State exposes the loading and error flags.
type State struct {
	Loading bool
	Err     error
	Pending []uuid.UUID
}

// pendingOp is the in-flight guard entry for one negotiation id. For
// optimistic operations it also holds the rollback snapshot.
type pendingOp struct {
	op         string
	optimistic bool
	snapshot   domain.Negotiation
	generation uint64
}

type Store struct {
	api       ports.NegotiationAPI
	userID    uuid.UUID
	bus       events.Publisher
	snapshots ports.SnapshotStore
	log       *logger.Logger
	now       func() time.Time
	pageSize  int
	fetches   singleflight.Group

	mu          sync.RWMutex
	list        []domain.Negotiation
	records     map[uuid.UUID]domain.Negotiation
	generations map[uuid.UUID]uint64
	stale       map[uuid.UUID]struct{}
	writeSeq    uint64
	pending     map[uuid.UUID]*pendingOp
	loading     int
	lastErr     error
	closed      bool
}

// New creates a store acting on behalf of userID against api.
func New(api ports.NegotiationAPI, userID uuid.UUID, opts ...Option) *Store {
	s := &Store{
		api:         api,
		userID:      userID,
		log:         logger.Discard(),
		now:         time.Now,
		pageSize:    defaultPageSize,
		records:     make(map[uuid.UUID]domain.Negotiation),
		generations: make(map[uuid.UUID]uint64),
		stale:       make(map[uuid.UUID]struct{}),
		pending:     make(map[uuid.UUID]*pendingOp),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Warm seeds an empty cache from the snapshot store. Loaded records are
// still subject to NeedsRefresh.
func (s *Store) Warm(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}

	loaded, err := s.snapshots.Load(ctx, s.userID)
	if err != nil {
		return wrap("Warm", uuid.Nil, err)
	}

	s.mu.Lock()
	if len(s.list) > 0 || len(loaded) == 0 {
		s.mu.Unlock()
		return nil
	}
	for _, n := range loaded {
		s.putLocked(n)
	}
	s.list = cloneAll(loaded)
	s.mu.Unlock()

	s.publish(ctx, events.CacheRefreshed, nil)
	return nil
}

// Close flushes the committed list to the snapshot store. Later operations
// fail with ErrStoreClosed.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	committed := s.committedListLocked()
	s.mu.Unlock()

	if s.snapshots == nil {
		return nil
	}
	if err := s.snapshots.Save(ctx, s.userID, committed); err != nil {
		return wrap("Close", uuid.Nil, err)
	}
	return nil
}

// =============================================================================
// Readers
// =============================================================================

// Negotiations returns the list view, newest first.
func (s *Store) Negotiations() []domain.Negotiation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.list)
}

// Negotiation returns the cached record for id.
func (s *Store) Negotiation(id uuid.UUID) (domain.Negotiation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.records[id]
	if !ok {
		return domain.Negotiation{}, false
	}
	return n.Clone(), true
}

// View annotates the cached record with the caller's affordances at now.
// A record past its expiry, or one the server reported a conflict on,
// reports NeedsRefresh and no actions.
func (s *Store) View(id uuid.UUID, now time.Time) (View, bool) {
	s.mu.RLock()
	n, ok := s.records[id]
	_, stale := s.stale[id]
	s.mu.RUnlock()
	if !ok {
		return View{}, false
	}
	n = n.Clone()

	view := View{Negotiation: n, NeedsRefresh: stale || n.NeedsRefresh(now)}
	party, err := n.PartyOf(s.userID)
	if err != nil {
		return view, true
	}
	view.Party = party
	if view.NeedsRefresh {
		return view, true
	}
	view.MyTurn = n.IsMyTurn(party)
	view.Actions = domain.AvailableActions(n, party, now)
	return view, true
}

// State returns the loading flag, the last error and the ids with an
// operation in flight.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make([]uuid.UUID, 0, len(s.pending))
	for id := range s.pending {
		pending = append(pending, id)
	}
	slices.SortFunc(pending, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })

	return State{Loading: s.loading > 0, Err: s.lastErr, Pending: pending}
}

// =============================================================================
// Cache bookkeeping (callers hold s.mu)
// =============================================================================

// putLocked writes n to both views unconditionally.
func (s *Store) putLocked(n domain.Negotiation) {
	n = n.Clone()
	s.records[n.ID] = n
	for i := range s.list {
		if s.list[i].ID == n.ID {
			s.list[i] = n.Clone()
			break
		}
	}
	s.bumpLocked(n.ID)
}

// mergeLocked writes an authoritative value unless the cache already holds a
// newer version of it.
func (s *Store) mergeLocked(n domain.Negotiation) bool {
	if cached, ok := s.records[n.ID]; ok && cached.Version > n.Version {
		return false
	}
	s.putLocked(n)
	delete(s.stale, n.ID)
	return true
}

// markStaleLocked forces the next action on id to re-fetch first.
func (s *Store) markStaleLocked(id uuid.UUID) {
	s.stale[id] = struct{}{}
}

func (s *Store) prependLocked(n domain.Negotiation) {
	s.list = slices.DeleteFunc(s.list, func(item domain.Negotiation) bool { return item.ID == n.ID })
	s.list = append([]domain.Negotiation{n.Clone()}, s.list...)
	s.putLocked(n)
	delete(s.stale, n.ID)
}

func (s *Store) replaceListLocked(items []domain.Negotiation) {
	for _, old := range s.list {
		s.bumpLocked(old.ID)
	}
	s.list = cloneAll(items)
	for _, n := range items {
		s.records[n.ID] = n.Clone()
		s.bumpLocked(n.ID)
		delete(s.stale, n.ID)
	}
}

func (s *Store) bumpLocked(id uuid.UUID) {
	s.writeSeq++
	s.generations[id] = s.writeSeq
}

// committedListLocked is the list view with every optimistic value swapped
// back to its pre-optimistic snapshot.
func (s *Store) committedListLocked() []domain.Negotiation {
	committed := make([]domain.Negotiation, 0, len(s.list))
	for _, n := range s.list {
		if p, ok := s.pending[n.ID]; ok && p.optimistic && s.generations[n.ID] == p.generation {
			committed = append(committed, p.snapshot.Clone())
			continue
		}
		committed = append(committed, n.Clone())
	}
	return committed
}

func (s *Store) startRemote() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.loading++
	s.lastErr = nil
	return nil
}

func (s *Store) finishRemote(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--
	if err != nil {
		s.lastErr = err
	}
}

func (s *Store) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

func (s *Store) publish(ctx context.Context, change events.CacheChange, n *domain.Negotiation) {
	if s.bus == nil {
		return
	}
	event := events.NegotiationCacheChanged{
		BaseEvent: events.NewBaseEventAt(s.now()),
		Change:    change,
	}
	if n != nil {
		id := n.ID
		event.NegotiationID = &id
		event.Status = n.Status.String()
	}
	s.bus.Publish(ctx, event)
}

func (s *Store) persist(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	s.mu.RLock()
	committed := s.committedListLocked()
	s.mu.RUnlock()

	if err := s.snapshots.Save(ctx, s.userID, committed); err != nil {
		s.log.Warn("negotiation snapshot save failed", "error", err.Error())
	}
}

func cloneAll(items []domain.Negotiation) []domain.Negotiation {
	out := make([]domain.Negotiation, len(items))
	for i, n := range items {
		out[i] = n.Clone()
	}
	return out
}
