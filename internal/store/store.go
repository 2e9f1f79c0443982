package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"guest-session-store/internal/repository"
)

// Table is the key-value table surface consumed by the store.
// *repository.Client satisfies this interface.
type Table interface {
	Put(ctx context.Context, item repository.Item) error
	PutIfAbsent(ctx context.Context, item repository.Item) (bool, error)
	Get(ctx context.Context, pk, sk string) (repository.Item, error)
	QueryPrefix(ctx context.Context, pk, skPrefix, pageToken string) (repository.Page, error)
	QueryOwner(ctx context.Context, ownerUserID, pageToken string) (repository.Page, error)
	ScanPrefix(ctx context.Context, skPrefix, filterAttr, filterValue string) ([]repository.Item, error)
	ScanMissing(ctx context.Context, skPrefix, missingAttr string) ([]repository.Item, error)
	Update(ctx context.Context, pk, sk string, ops []repository.UpdateOp) error
}

// SummaryTrigger receives fire-and-forget summary generation requests when a
// session or conversation finishes. Implementations must return immediately.
type SummaryTrigger interface {
	TriggerSession(propertyID, sessionID string)
	TriggerConversation(propertyID, conversationID string)
}

type noopTrigger struct{}

func (noopTrigger) TriggerSession(string, string)      {}
func (noopTrigger) TriggerConversation(string, string) {}

// Store is the session/event store for guest conversations and voice-call
// diagnostics. It is safe for concurrent use; ordering guarantees are
// per-key additive appends only.
type Store struct {
	table     Table
	keyCache  *cache.Cache
	log       *zap.Logger
	clock     func() time.Time
	summaries SummaryTrigger
	resolvers []resolver
}

// StoreOption configures a [Store].
type StoreOption func(*Store)

// WithClock overrides the time source. Defaults to [time.Now]. Useful for
// controlling timestamps and durations in tests.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		s.clock = clock
	}
}

// WithKeyCache injects the session key cache. The default cache holds
// entries for an hour with a ten minute janitor sweep.
func WithKeyCache(c *cache.Cache) StoreOption {
	return func(s *Store) {
		s.keyCache = c
	}
}

// New creates a Store over the given table.
func New(table Table, logger *zap.Logger, opts ...StoreOption) (*Store, error) {
	if table == nil {
		return nil, errors.New("store: table must not be nil")
	}
	if logger == nil {
		return nil, errors.New("store: logger must not be nil")
	}
	s := &Store{
		table:     table,
		log:       logger,
		clock:     time.Now,
		summaries: noopTrigger{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.keyCache == nil {
		s.keyCache = cache.New(1*time.Hour, 10*time.Minute)
	}
	s.resolvers = []resolver{
		&cacheResolver{cache: s.keyCache},
		&pointerResolver{table: s.table},
		&voiceScanResolver{table: s.table},
	}
	return s, nil
}

// SetSummaryTrigger wires the summary generator. Wired after construction
// because the generator reads back through the store.
func (s *Store) SetSummaryTrigger(t SummaryTrigger) {
	if t != nil {
		s.summaries = t
	}
}

func (s *Store) now() time.Time {
	return s.clock().UTC()
}

func (s *Store) nowRFC3339() string {
	return s.now().Format(time.RFC3339)
}

// newUUID is a seam for deterministic ids in tests.
var newUUID = uuid.NewString
