// Package store is the single writer for orders, product mappings and
// settings. Every mutation is serialized, then persisted as one blob through a
// kv.Store. Persistence failures are reported but never roll back memory.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"posbackend/internal/clock"
	"posbackend/internal/events"
	"posbackend/internal/kv"
	"posbackend/internal/metrics"
	"posbackend/internal/models"
)

// StateKey is the kv key the whole store is persisted under.
const StateKey = "pos-order-store"

const (
	outboxSize     = 256
	publishTimeout = 5 * time.Second
)

// Store owns the order collection (most recent first), product mappings and
// settings. The zero value is not usable; construct with New.
type Store struct {
	mu       sync.RWMutex
	orders   []models.Order
	ids      map[int64]struct{}
	mappings []models.ProductMapping
	settings models.Settings
	lastSync *time.Time
	version  uint64

	persistMu        sync.Mutex
	persistedVersion uint64
	failedVersion    uint64
	persistErr       error

	kv        kv.Store
	publisher events.Publisher
	// outbox is nil when events are discarded. Batches are queued under mu so
	// they are delivered in mutation order.
	outbox       chan []events.Event
	outboxDone   chan struct{}
	outboxClosed bool

	idgen   *snowflake.Node
	clock   clock.Clock
	metrics *metrics.Registry
	logger  *zap.Logger
}

// Option customizes a Store.
type Option func(*Store)

func WithPublisher(p events.Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(s *Store) { s.metrics = m }
}

// WithNodeID sets the snowflake node used for manual order ids.
func WithNodeID(node int64) Option {
	return func(s *Store) {
		if n, err := snowflake.NewNode(node); err == nil {
			s.idgen = n
		}
	}
}

func New(backend kv.Store, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		orders:    []models.Order{},
		ids:       make(map[int64]struct{}),
		mappings:  []models.ProductMapping{},
		kv:        backend,
		publisher: events.Nop{},
		clock:     clock.Real(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.idgen == nil {
		s.idgen, _ = snowflake.NewNode(1)
	}
	if _, nop := s.publisher.(events.Nop); !nop && s.publisher != nil {
		s.outbox = make(chan []events.Event, outboxSize)
		s.outboxDone = make(chan struct{})
		go s.publishLoop()
	}
	return s
}

// Shutdown delivers queued events and stops the publishing goroutine. Later
// mutations still apply and persist but publish nothing.
func (s *Store) Shutdown() {
	s.mu.Lock()
	if s.outbox == nil || s.outboxClosed {
		s.mu.Unlock()
		return
	}
	s.outboxClosed = true
	close(s.outbox)
	s.mu.Unlock()
	<-s.outboxDone
}

func (s *Store) publishLoop() {
	defer close(s.outboxDone)
	for evs := range s.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := s.publisher.Publish(ctx, evs...); err != nil {
			s.logger.Warn("publish events failed", zap.Int("events", len(evs)), zap.Error(err))
		}
		cancel()
	}
}

// enqueueLocked hands evs to the publishing goroutine without blocking. A full
// outbox drops the batch. Caller holds s.mu.
func (s *Store) enqueueLocked(evs ...events.Event) {
	if s.outbox == nil || s.outboxClosed || len(evs) == 0 {
		return
	}
	select {
	case s.outbox <- evs:
	default:
		s.logger.Warn("event outbox full, dropping events", zap.Int("events", len(evs)))
		if s.metrics != nil {
			s.metrics.EventsDropped.Add(float64(len(evs)))
		}
	}
}

// Load hydrates the store from the persisted blob, keeping local overlay
// state. A missing blob leaves the store empty.
func (s *Store) Load(ctx context.Context) error {
	raw, err := s.kv.Get(ctx, StateKey)
	if errors.Is(err, kv.ErrNotFound) {
		s.logger.Info("no persisted state, starting empty")
		return nil
	}
	if err != nil {
		return err
	}

	var state models.StoreState
	if err := json.Unmarshal(raw, &state); err != nil {
		return err
	}

	s.mu.Lock()
	s.orders = make([]models.Order, 0, len(state.Orders))
	s.ids = make(map[int64]struct{}, len(state.Orders))
	for _, o := range state.Orders {
		if _, dup := s.ids[o.ID]; dup {
			continue
		}
		if !o.OverlayConsistent() {
			s.logger.Warn("clearing inconsistent overlay", zap.Int64("orderId", o.ID))
			o.ClearOverlay()
		}
		if o.Products == nil {
			o.Products = []models.LineItem{}
		}
		s.orders = append(s.orders, o)
		s.ids[o.ID] = struct{}{}
	}
	s.mappings = state.Mappings
	if s.mappings == nil {
		s.mappings = []models.ProductMapping{}
	}
	s.settings = state.Settings
	s.lastSync = state.LastSync
	s.mu.Unlock()

	s.observe()
	s.logger.Info("state loaded",
		zap.Int("orders", len(state.Orders)),
		zap.Int("mappings", len(state.Mappings)),
	)
	return nil
}

// snapshotLocked captures the persistable state. Caller holds s.mu.
func (s *Store) snapshotLocked() (models.StoreState, uint64) {
	s.version++
	orders := make([]models.Order, len(s.orders))
	for i, o := range s.orders {
		orders[i] = o.Clone()
	}
	mappings := make([]models.ProductMapping, len(s.mappings))
	copy(mappings, s.mappings)
	var lastSync *time.Time
	if s.lastSync != nil {
		t := *s.lastSync
		lastSync = &t
	}
	return models.StoreState{
		Settings: s.settings,
		Orders:   orders,
		Mappings: mappings,
		LastSync: lastSync,
	}, s.version
}

// persist writes a snapshot taken under the write lock. Writes are serialized
// and a snapshot older than the last one written is dropped. A failure stays
// reported until a snapshot at least as new as the failed one is written.
func (s *Store) persist(state models.StoreState, version uint64) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if version <= s.persistedVersion {
		return
	}

	raw, err := json.Marshal(state)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = s.kv.Set(ctx, StateKey, raw)
		cancel()
	}
	if err != nil {
		s.persistErr = err
		if version > s.failedVersion {
			s.failedVersion = version
		}
		s.logger.Error("persist failed", zap.Uint64("version", version), zap.Error(err))
		if s.metrics != nil {
			s.metrics.PersistFailures.Inc()
		}
		return
	}
	s.persistedVersion = version
	if version >= s.failedVersion {
		s.persistErr = nil
	}
}

// PersistError returns the error of the most recent failed write, or nil once
// a later write succeeds.
func (s *Store) PersistError() error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	return s.persistErr
}

// commit persists and updates gauges after a mutation.
func (s *Store) commit(state models.StoreState, version uint64) {
	s.persist(state, version)
	s.observe()
}

func (s *Store) observe() {
	if s.metrics == nil {
		return
	}
	s.mu.RLock()
	total, open := len(s.orders), 0
	for _, o := range s.orders {
		if !o.IsClosed {
			open++
		}
	}
	s.mu.RUnlock()
	s.metrics.StoredOrders.Set(float64(total))
	s.metrics.OpenOrders.Set(float64(open))
}
