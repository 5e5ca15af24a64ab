package playback

import (
	"sync"
	"time"
)

// DefaultInterval is the wall-clock time between ticks.
const DefaultInterval = 500 * time.Millisecond

// Ticker delivers ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker is the default TickerFunc.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// clock drives one session. tick runs on the clock goroutine; returning false
// halts the clock. At most one tick is in flight per clock.
type clock struct {
	ticker  Ticker
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func startClock(ticker Ticker, tick func() bool) *clock {
	k := &clock{
		ticker:  ticker,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go k.run(tick)
	return k
}

func (k *clock) run(tick func() bool) {
	defer close(k.stopped)
	defer k.ticker.Stop()
	for {
		select {
		case <-k.done:
			return
		case <-k.ticker.C():
			if !tick() {
				return
			}
		}
	}
}

// stop is safe to call from inside tick and more than once.
func (k *clock) stop() {
	k.once.Do(func() { close(k.done) })
}

// wait blocks until the clock goroutine has exited. Must not be called from
// inside tick.
func (k *clock) wait() {
	<-k.stopped
}
