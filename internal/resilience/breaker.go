// Package resilience provides circuit breaker and provider failover
// primitives for the external backends the pipeline depends on (LLM, STT,
// TTS).
//
// The central type is [Breaker], a three-state circuit breaker
// (closed → open → half-open) that stops a failing backend from dragging
// every turn to its timeout. [FallbackGroup] composes multiple instances of
// any provider type with per-entry breakers so a failing primary is bypassed
// in favour of healthy fallbacks.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] when the breaker is open and the
// cooldown has not yet elapsed.
var ErrOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards all calls.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrOpen] until the cooldown elapses.
	StateOpen

	// StateHalfOpen admits a limited number of probe calls. Enough successes
	// close the breaker; any failure re-opens it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds the tuning knobs for a [Breaker]. Zero-value fields
// fall back to defaults.
type BreakerConfig struct {
	// Name labels the breaker in log output.
	Name string

	// FailureLimit is the number of consecutive failures in the closed state
	// before the breaker opens. Default: 5.
	FailureLimit int

	// Cooldown is how long the breaker stays open before admitting probes.
	// Default: 30s.
	Cooldown time.Duration

	// ProbeLimit is the number of half-open probe calls allowed before the
	// breaker decides to close or re-open. Default: 3.
	ProbeLimit int
}

// Breaker implements the three-state circuit breaker pattern.
type Breaker struct {
	name         string
	failureLimit int
	cooldown     time.Duration
	probeLimit   int
	logger       *slog.Logger

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probes      int
	probeFails  int
}

// NewBreaker returns a closed [Breaker] with the supplied configuration.
func NewBreaker(cfg BreakerConfig, logger *slog.Logger) *Breaker {
	if cfg.FailureLimit <= 0 {
		cfg.FailureLimit = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeLimit <= 0 {
		cfg.ProbeLimit = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Breaker{
		name:         cfg.Name,
		failureLimit: cfg.FailureLimit,
		cooldown:     cfg.Cooldown,
		probeLimit:   cfg.ProbeLimit,
		logger:       logger,
	}
}

// Do runs fn if the breaker admits the call. In the open state it returns
// [ErrOpen] without calling fn; in the half-open state only the probe budget
// is admitted.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) < b.cooldown {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = StateHalfOpen
		b.probes = 0
		b.probeFails = 0
		b.logger.Info("circuit breaker half-open", "name", b.name)
	case StateHalfOpen:
		if b.probes >= b.probeLimit {
			b.mu.Unlock()
			return ErrOpen
		}
	}
	probing := b.state == StateHalfOpen
	if probing {
		b.probes++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.fail(probing)
	} else {
		b.succeed(probing)
	}
	return err
}

// fail updates failure accounting. Caller holds b.mu.
func (b *Breaker) fail(probing bool) {
	b.lastFailure = time.Now()
	if probing {
		b.probeFails++
		// One failed probe re-opens immediately.
		b.state = StateOpen
		b.failures = b.failureLimit
		b.logger.Warn("circuit breaker re-opened", "name", b.name)
		return
	}
	b.failures++
	if b.failures >= b.failureLimit {
		b.state = StateOpen
		b.logger.Warn("circuit breaker opened",
			"name", b.name, "consecutive_failures", b.failures)
	}
}

// succeed updates success accounting. Caller holds b.mu.
func (b *Breaker) succeed(probing bool) {
	if probing {
		if b.probes-b.probeFails >= b.probeLimit {
			b.state = StateClosed
			b.failures = 0
			b.probes = 0
			b.probeFails = 0
			b.logger.Info("circuit breaker closed", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// State reports the breaker's mode. An open breaker whose cooldown has
// elapsed reports half-open; the actual transition happens on the next Do.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && time.Since(b.lastFailure) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker back to closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probes = 0
	b.probeFails = 0
	b.logger.Info("circuit breaker reset", "name", b.name)
}
