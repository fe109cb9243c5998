// Package store implements the reactive permissioned data store behind the
// Roof Flow dashboard. It owns the canonical in-memory snapshot of all domain
// entities, applies business invariants on mutation, and optionally mirrors
// the snapshot bidirectionally against a remote tenant-scoped document store.
//
// With no remote configured the store runs standalone: all operations apply
// synchronously to local state and starter data is seeded. With a remote,
// mutators apply optimistically to local state, then write through
// asynchronously; inbound change-stream events carry the authoritative state
// back in and overwrite optimistic records.
package store

import (
	"context"
	"sync"
	"time"

	"roofflow/api/internal/docstore"
	"roofflow/api/internal/domain"
	"roofflow/api/internal/perm"
)

// DefaultMaxIssuePriority caps the FIFO-ish issue queue position. Five bands
// match the original product; it is tunable via Options.
const DefaultMaxIssuePriority = 5

// goalHorizonDays is the default quarterly-goal due date offset.
const goalHorizonDays = 75

// defaultSyncTimeout bounds each outbound remote write.
const defaultSyncTimeout = 10 * time.Second

// Remote is the outbound/inbound bridge to a tenant-scoped document store.
// docstore.Tenant implements it.
type Remote interface {
	Create(ctx context.Context, collection, id string, fields map[string]any) error
	MergePatch(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Subscribe(ctx context.Context, collection string, fn func([]docstore.Document)) (func(), error)
}

// Indexer receives created and updated records for search indexing.
// Implementations must not block; the store calls these inline.
type Indexer interface {
	IndexTodo(domain.TodoItem)
	IndexIssue(domain.IssueItem)
	IndexGoal(domain.QuarterlyGoal)
}

type Options struct {
	// Remote enables bidirectional sync. Nil means standalone mode.
	Remote Remote
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
	// MaxIssuePriority overrides the issue queue ceiling (default 5).
	MaxIssuePriority int
	// OnSyncError observes failed outbound writes after local rollback.
	OnSyncError func(op string, err error)
	// Indexer receives records for search indexing. Optional.
	Indexer Indexer
	// SkipSeed suppresses starter data in standalone mode.
	SkipSeed bool
	// SeedEmptyRemote seeds starter data into a remote tenant whose roster
	// is empty, then writes it through. Without it a fresh tenant has no
	// users and nobody can ever sign in.
	SeedEmptyRemote bool
	// OwnerPasswordHash is the bcrypt hash stored on the seeded owner so
	// the first sign-in works out of the box.
	OwnerPasswordHash string
	// SyncTimeout bounds each outbound write (default 10s).
	SyncTimeout time.Duration
}

// Store is safe for concurrent use. All snapshot mutation happens under mu,
// by the store's own mutators and by inbound sync callbacks only.
type Store struct {
	mu sync.RWMutex

	todos       map[string]domain.TodoItem
	issues      map[string]domain.IssueItem
	goals       map[string]domain.QuarterlyGoal
	kpis        map[string]domain.KpiDefinition
	kpiEntries  map[string]domain.KpiEntry
	templates   map[string]domain.MeetingTemplate
	runs        map[string]domain.MeetingRun      // keyed by week key
	meetingFeed map[string]domain.MeetingFeedback // keyed by week key
	roles       map[string]domain.Role
	users       map[string]domain.User
	feedback    map[string]domain.FeedbackItem
	vision      domain.Vision
	hasVision   bool

	subscribers map[int]func()
	nextSubID   int
	revision    uint64
	closed      bool

	remote      Remote
	cancels     []func()
	clock       func() time.Time
	maxPriority int
	syncTimeout time.Duration
	onSyncError func(op string, err error)
	indexer     Indexer
	ownerHash   string
}

// Open constructs a store with an explicit lifecycle. Callers own the
// instance and must Close it to release inbound subscriptions.
func Open(opts Options) (*Store, error) {
	s := &Store{
		todos:       make(map[string]domain.TodoItem),
		issues:      make(map[string]domain.IssueItem),
		goals:       make(map[string]domain.QuarterlyGoal),
		kpis:        make(map[string]domain.KpiDefinition),
		kpiEntries:  make(map[string]domain.KpiEntry),
		templates:   make(map[string]domain.MeetingTemplate),
		runs:        make(map[string]domain.MeetingRun),
		meetingFeed: make(map[string]domain.MeetingFeedback),
		roles:       make(map[string]domain.Role),
		users:       make(map[string]domain.User),
		feedback:    make(map[string]domain.FeedbackItem),
		subscribers: make(map[int]func()),
		remote:      opts.Remote,
		clock:       opts.Clock,
		maxPriority: opts.MaxIssuePriority,
		syncTimeout: opts.SyncTimeout,
		onSyncError: opts.OnSyncError,
		indexer:     opts.Indexer,
		ownerHash:   opts.OwnerPasswordHash,
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.maxPriority <= 0 {
		s.maxPriority = DefaultMaxIssuePriority
	}
	if s.syncTimeout <= 0 {
		s.syncTimeout = defaultSyncTimeout
	}

	if s.remote == nil {
		if !opts.SkipSeed {
			s.seed()
		}
		return s, nil
	}

	if err := s.attach(); err != nil {
		s.Close()
		return nil, err
	}

	// attach delivered each collection's current set synchronously, so an
	// empty roster here means a first run against a fresh tenant.
	if opts.SeedEmptyRemote {
		s.mu.Lock()
		empty := len(s.users) == 0
		if empty {
			s.seed()
		}
		s.mu.Unlock()
		if empty {
			if err := s.pushSeed(); err != nil {
				s.Close()
				return nil, err
			}
			s.notify()
		}
	}
	return s, nil
}

// Close tears down inbound subscriptions and rejects further mutation.
// Safe to call more than once.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancels := s.cancels
	s.cancels = nil
	s.subscribers = make(map[int]func())
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Subscribe registers a callback invoked after every snapshot change, local
// or inbound. The callback must re-query the store for current state. The
// returned cancel unregisters it.
func (s *Store) Subscribe(fn func()) (cancel func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// SetIndexer installs (or replaces) the search indexer after Open. The
// search service needs a store reference for its fallback path, so the
// two are bound in this order.
func (s *Store) SetIndexer(idx Indexer) {
	s.mu.Lock()
	s.indexer = idx
	s.mu.Unlock()
}

// Revision increments on every snapshot change.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Can is the presentation-layer pre-check; gated mutators enforce the same
// predicate themselves.
func (s *Store) Can(actor domain.User, code perm.Code) bool {
	return perm.HasPermission(actor, s.Roles(), code)
}

func (s *Store) now() time.Time {
	return s.clock()
}

// notify invokes subscribers outside the lock. Mutators call it after every
// applied change so reactive consumers re-render.
func (s *Store) notify() {
	s.mu.Lock()
	s.revision++
	fns := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Store) gate(actor domain.User, code perm.Code) error {
	if s.isClosed() {
		return ErrClosed
	}
	if !perm.HasPermission(actor, s.Roles(), code) {
		return ErrPermissionDenied
	}
	return nil
}
