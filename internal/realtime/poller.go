// Package realtime slides the dashboard's time window forward while
// realtime mode is on.
package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Zachdehooge/lsr-dashboard/internal/state"
)

// DefaultInterval is the tick period.
const DefaultInterval = 60 * time.Second

// ReloadFunc is told that the window moved and data should be reloaded. It
// must not block.
type ReloadFunc func(snap state.Snapshot)

// Ticker is the subset of *time.Ticker the poller needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct{ *time.Ticker }

func (t stdTicker) C() <-chan time.Time { return t.Ticker.C }

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// WithTicker overrides the ticker factory.
func WithTicker(newTicker func(time.Duration) Ticker) Option {
	return func(p *Poller) {
		if newTicker != nil {
			p.newTicker = newTicker
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// Poller owns at most one ticker. It is idle until Start and idle again
// after Stop; both are safe to call any number of times.
type Poller struct {
	store     *state.Store
	reload    ReloadFunc
	interval  time.Duration
	now       func() time.Time
	newTicker func(time.Duration) Ticker
	logger    zerolog.Logger

	mu     sync.Mutex
	ticker Ticker
	stopCh chan struct{}
}

// New creates an idle poller over store. reload may be nil.
func New(store *state.Store, reload ReloadFunc, opts ...Option) *Poller {
	p := &Poller{
		store:    store,
		reload:   reload,
		interval: DefaultInterval,
		now:      time.Now,
		newTicker: func(d time.Duration) Ticker {
			return stdTicker{time.NewTicker(d)}
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start registers the ticker. Calling Start while running does nothing.
// Cancelling ctx stops the poller.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ticker != nil {
		return
	}
	p.ticker = p.newTicker(p.interval)
	p.stopCh = make(chan struct{})
	go p.run(ctx, p.ticker, p.stopCh)

	p.logger.Info().Dur("interval", p.interval).Msg("realtime poller started")
}

// Stop cancels the ticker. Calling Stop while idle does nothing.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ticker == nil {
		return
	}
	p.ticker.Stop()
	close(p.stopCh)
	p.ticker = nil
	p.stopCh = nil

	p.logger.Info().Msg("realtime poller stopped")
}

// Running reports whether a ticker is registered.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticker != nil
}

func (p *Poller) run(ctx context.Context, ticker Ticker, stopCh chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			p.stopIfCurrent(ticker)
			return
		case <-stopCh:
			return
		case <-ticker.C():
			select {
			case <-stopCh:
				return
			default:
			}
			if err := p.Tick(); err != nil {
				p.logger.Warn().Err(err).Msg("realtime tick skipped")
			}
		}
	}
}

// stopIfCurrent stops the poller when ctx ended the loop that owns ticker.
func (p *Poller) stopIfCurrent(ticker Ticker) {
	p.mu.Lock()
	current := p.ticker == ticker
	p.mu.Unlock()
	if current {
		p.Stop()
	}
}

// Tick runs one realtime step: with realtime on and a valid seconds value,
// the window becomes [now-seconds, now] and a reload is signalled. With
// realtime off nothing happens. An invalid seconds value leaves the window
// untouched and is returned as an error.
func (p *Poller) Tick() error {
	if !p.store.Realtime() {
		return nil
	}
	snap, slid, err := p.store.SlideWindow(p.now())
	if err != nil {
		return fmt.Errorf("realtime window not moved: %w", err)
	}
	if !slid {
		return nil
	}

	p.logger.Debug().
		Time("sts", snap.STS).
		Time("ets", snap.ETS).
		Int64("seconds", snap.Seconds).
		Msg("realtime window moved")

	if p.reload != nil {
		p.reload(snap)
	}
	return nil
}
