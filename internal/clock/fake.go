package clock

import (
	"sync"
	"time"
)

// Fake is a Clock whose time only moves when Advance is called and whose
// tickers fire only when Tick is called.
//
// Tick blocks until every active ticker's consumer has received the tick (or
// the ticker is stopped), so a test knows the consumer observed it.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	changed *sync.Cond
}

// NewFake returns a Fake clock set to initial.
func NewFake(initial time.Time) *Fake {
	f := &Fake{now: initial}
	f.changed = sync.NewCond(&f.mu)
	return f
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d without firing tickers.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	t := &fakeTicker{
		owner: f,
		ch:    make(chan time.Time),
		done:  make(chan struct{}),
	}
	f.mu.Lock()
	f.tickers = append(f.tickers, t)
	f.changed.Broadcast()
	f.mu.Unlock()
	return t
}

// Tick delivers the current time to every active ticker.
func (f *Fake) Tick() {
	f.mu.Lock()
	now := f.now
	active := make([]*fakeTicker, len(f.tickers))
	copy(active, f.tickers)
	f.mu.Unlock()

	for _, t := range active {
		select {
		case t.ch <- now:
		case <-t.done:
		}
	}
}

// ActiveTickers returns the number of tickers not yet stopped.
func (f *Fake) ActiveTickers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

// WaitForTickers blocks until exactly n tickers are active.
func (f *Fake) WaitForTickers(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.tickers) != n {
		f.changed.Wait()
	}
}

func (f *Fake) remove(t *fakeTicker) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, candidate := range f.tickers {
		if candidate == t {
			f.tickers = append(f.tickers[:i], f.tickers[i+1:]...)
			break
		}
	}
	f.changed.Broadcast()
}

type fakeTicker struct {
	owner *Fake
	ch    chan time.Time
	done  chan struct{}
	once  sync.Once
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.once.Do(func() {
		close(t.done)
		t.owner.remove(t)
	})
}
