// Package resilience classifies failures from external services and guards
// the calls that produce them with retries and circuit breakers.
package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BreakerState is the observable state of a Breaker.
type BreakerState int

const (
	// BreakerClosed admits every call.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the cooldown ends.
	BreakerOpen
	// BreakerProbing admits calls again; the first recorded result decides
	// whether the breaker closes or reopens.
	BreakerProbing
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen rejects a call while its breaker is cooling down.
var ErrBreakerOpen = eris.New("breaker open")

// BreakerConfig tunes a Breaker. The zero value is usable.
type BreakerConfig struct {
	// Name appears in the trip log.
	Name string

	// Threshold is the number of consecutive tripping failures that opens
	// the breaker. Default: 3.
	Threshold int

	// Cooldown is how long the breaker rejects calls before admitting
	// probes. Default: 1m.
	Cooldown time.Duration

	// ShouldTrip decides which errors count toward the threshold. Errors it
	// rejects are neutral. Default: every non-nil error counts.
	ShouldTrip func(err error) bool
}

// Breaker is a consecutive-failure circuit breaker with a two-step surface:
// Allow gates the call, Record settles it. After Threshold tripping failures
// the breaker rejects calls for Cooldown, then admits probes; a successful
// probe closes it, a failed one restarts the cooldown.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time

	now func() time.Time
}

// NewBreaker builds a breaker, applying defaults for zero config fields.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = func(err error) bool { return err != nil }
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Allow reports whether a call may proceed, returning ErrBreakerOpen while
// the breaker is cooling down. Once the cooldown ends, calls are admitted as
// probes; concurrent probes are all admitted and the first recorded result
// decides the next state.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen {
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return ErrBreakerOpen
		}
		b.state = BreakerProbing
	}
	return nil
}

// Record settles a call that Allow admitted. Errors rejected by ShouldTrip
// are neutral: they neither trip the breaker nor reset its failure count.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.state = BreakerClosed
		b.failures = 0
		return
	}
	if !b.cfg.ShouldTrip(err) {
		return
	}

	b.failures++
	if b.state == BreakerProbing || b.failures >= b.cfg.Threshold {
		b.trip()
	}
}

// trip opens the breaker and starts the cooldown. Caller holds the lock.
func (b *Breaker) trip() {
	b.openedAt = b.now()
	if b.state == BreakerOpen {
		return
	}
	b.state = BreakerOpen
	zap.L().Warn("breaker opened",
		zap.String("name", b.cfg.Name),
		zap.Int("failures", b.failures),
		zap.Duration("cooldown", b.cfg.Cooldown),
	)
}

// State reports the current state, accounting for an elapsed cooldown.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return BreakerProbing
	}
	return b.state
}

// Reset closes the breaker and clears its failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
}

// BreakerSet keys breakers by name, creating each on first use. All breakers
// share one config; the name feeds the trip log.
type BreakerSet struct {
	mu  sync.RWMutex
	cfg BreakerConfig
	set map[string]*Breaker
}

// NewBreakerSet builds an empty set over the shared config.
func NewBreakerSet(cfg BreakerConfig) *BreakerSet {
	return &BreakerSet{cfg: cfg, set: make(map[string]*Breaker)}
}

// Get returns the breaker for name, creating it if needed.
func (s *BreakerSet) Get(name string) *Breaker {
	s.mu.RLock()
	b, ok := s.set[name]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.set[name]; ok {
		return b
	}
	cfg := s.cfg
	cfg.Name = name
	b = NewBreaker(cfg)
	s.set[name] = b
	return b
}

// States snapshots the state of every breaker in the set.
func (s *BreakerSet) States() map[string]BreakerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	states := make(map[string]BreakerState, len(s.set))
	for name, b := range s.set {
		states[name] = b.State()
	}
	return states
}
