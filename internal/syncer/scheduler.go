// Package syncer polls the remote order source on a fixed interval while a
// credential is configured and feeds every successful batch into the store.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"posbackend/internal/clock"
	"posbackend/internal/metrics"
	"posbackend/internal/models"
	"posbackend/internal/remote"
)

// DefaultInterval is the polling cadence while connected.
const DefaultInterval = 15 * time.Second

const syncKey = "sync"

// ErrNotConnected is reported when a sync is requested without a credential.
var ErrNotConnected = errors.New("not connected")

// Fetcher lists remote orders. It reports failures inside the result.
type Fetcher interface {
	Fetch(ctx context.Context, token string, f remote.Filters) remote.FetchResult
}

// Store is the part of the order store the scheduler drives.
type Store interface {
	APIToken() string
	Merge(incoming []models.Order) int
	RecordSyncAttempt(at time.Time)
}

type State int32

const (
	Idle State = iota
	Syncing
)

func (s State) String() string {
	if s == Syncing {
		return "syncing"
	}
	return "idle"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Result describes one finished sync cycle.
type Result struct {
	Success bool      `json:"success"`
	Fetched int       `json:"fetched"`
	Merged  int       `json:"merged"`
	Skipped int       `json:"skipped"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

type Status struct {
	State      State   `json:"state"`
	Connected  bool    `json:"connected"`
	LastResult *Result `json:"lastResult,omitempty"`
}

type Scheduler struct {
	fetcher  Fetcher
	store    Store
	clock    clock.Clock
	interval time.Duration
	filters  remote.Filters
	metrics  *metrics.Registry
	logger   *zap.Logger

	state   atomic.Int32
	group   singleflight.Group
	refresh chan struct{}
	cycles  sync.WaitGroup

	mu   sync.Mutex
	last *Result
}

type Option func(*Scheduler)

func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithFilters sets the listing filters sent on every cycle.
func WithFilters(f remote.Filters) Option {
	return func(s *Scheduler) { s.filters = f }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func New(fetcher Fetcher, store Store, logger *zap.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		fetcher:  fetcher,
		store:    store,
		clock:    clock.Real(),
		interval: DefaultInterval,
		logger:   logger,
		refresh:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run schedules cycles until ctx is done. While a credential is present it
// syncs immediately and then on every tick; without one it stays idle. Run
// waits for any cycle it started before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	var (
		ticker clock.Ticker
		tickC  <-chan time.Time
	)
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
		s.cycles.Wait()
	}()

	apply := func() {
		connected := s.store.APIToken() != ""
		switch {
		case connected && ticker == nil:
			ticker = s.clock.NewTicker(s.interval)
			tickC = ticker.C()
			s.logger.Info("connected, polling started", zap.Duration("interval", s.interval))
			s.trigger(ctx)
		case !connected && ticker != nil:
			ticker.Stop()
			ticker, tickC = nil, nil
			s.logger.Info("disconnected, polling stopped")
		}
	}

	apply()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.refresh:
			apply()
		case <-tickC:
			s.trigger(ctx)
		}
	}
}

// Refresh asks Run to re-read connectivity, e.g. after the credential changed.
func (s *Scheduler) Refresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

// trigger starts a cycle unless one is already in flight.
func (s *Scheduler) trigger(ctx context.Context) {
	if State(s.state.Load()) == Syncing {
		s.logger.Debug("tick skipped, sync in flight")
		if s.metrics != nil {
			s.metrics.SyncSkippedTicks.Inc()
		}
		return
	}
	ch := s.group.DoChan(syncKey, func() (any, error) {
		return s.cycle(ctx), nil
	})
	s.cycles.Add(1)
	go func() {
		defer s.cycles.Done()
		<-ch
	}()
}

// SyncNow runs a cycle and returns its result. If a cycle is already in
// flight the caller shares its result instead of starting another fetch.
func (s *Scheduler) SyncNow(ctx context.Context) Result {
	if s.store.APIToken() == "" {
		return Result{Error: ErrNotConnected.Error(), At: s.clock.Now()}
	}
	v, _, _ := s.group.Do(syncKey, func() (any, error) {
		return s.cycle(context.WithoutCancel(ctx)), nil
	})
	return v.(Result)
}

func (s *Scheduler) Status() Status {
	st := Status{
		State:     State(s.state.Load()),
		Connected: s.store.APIToken() != "",
	}
	s.mu.Lock()
	if s.last != nil {
		r := *s.last
		st.LastResult = &r
	}
	s.mu.Unlock()
	return st
}

func (s *Scheduler) cycle(ctx context.Context) (res Result) {
	s.state.Store(int32(Syncing))
	if s.metrics != nil {
		s.metrics.SyncInFlight.Set(1)
	}
	started := s.clock.Now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sync cycle panicked", zap.Any("panic", r))
			res = Result{Error: fmt.Sprintf("sync panicked: %v", r)}
		}
		res.At = s.clock.Now()
		// later callers must start a fresh cycle, not join this finished one
		s.group.Forget(syncKey)
		s.store.RecordSyncAttempt(res.At)
		s.finish(res, res.At.Sub(started))
		s.state.Store(int32(Idle))
	}()

	token := s.store.APIToken()
	if token == "" {
		return Result{Error: ErrNotConnected.Error()}
	}

	fetched := s.fetcher.Fetch(ctx, token, s.filters)
	res = Result{Fetched: len(fetched.Orders), Skipped: fetched.Skipped}
	if !fetched.OK() {
		res.Error = fetched.Error
		return res
	}
	if len(fetched.Orders) > 0 {
		res.Merged = s.store.Merge(fetched.Orders)
	}
	res.Success = true
	return res
}

func (s *Scheduler) finish(res Result, took time.Duration) {
	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()

	fields := []zap.Field{
		zap.Bool("success", res.Success),
		zap.Int("fetched", res.Fetched),
		zap.Int("merged", res.Merged),
		zap.Int("skipped", res.Skipped),
		zap.Duration("took", took),
	}
	if res.Success {
		s.logger.Info("sync cycle finished", fields...)
	} else {
		s.logger.Warn("sync cycle failed", append(fields, zap.String("error", res.Error))...)
	}

	if s.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case !res.Success:
		outcome = "error"
	case res.Fetched == 0:
		outcome = "empty"
	}
	s.metrics.SyncCycles.WithLabelValues(outcome).Inc()
	s.metrics.SyncInFlight.Set(0)
	s.metrics.SyncDurationSec.Observe(took.Seconds())
	s.metrics.LastSyncUnix.Set(float64(res.At.Unix()))
	s.metrics.OrdersMerged.Add(float64(res.Merged))
	s.metrics.OrdersRejected.Add(float64(res.Skipped))
}
