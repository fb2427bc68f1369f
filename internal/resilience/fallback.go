package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or
// has an open breaker.
var ErrAllFailed = errors.New("resilience: all providers failed")

// FallbackConfig configures the per-entry breaker created for each provider
// in a [FallbackGroup].
type FallbackConfig struct {
	Breaker BreakerConfig
}

// entry pairs a provider value with its dedicated breaker.
type entry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// FallbackGroup wraps a primary and zero or more fallback instances of the
// same provider type. When the primary fails or its breaker is open, the
// next healthy fallback is tried in registration order.
type FallbackGroup[T any] struct {
	entries []entry[T]
	cfg     FallbackConfig
	logger  *slog.Logger
}

// NewFallbackGroup creates a group with primary as the first entry.
// Additional fallbacks are registered via [FallbackGroup.AddFallback].
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig, logger *slog.Logger) *FallbackGroup[T] {
	if logger == nil {
		logger = slog.Default()
	}
	g := &FallbackGroup[T]{cfg: cfg, logger: logger}
	g.add(primaryName, primary)
	return g
}

// AddFallback appends a fallback provider. Fallbacks are tried in the order
// they are added, after the primary.
func (g *FallbackGroup[T]) AddFallback(name string, fallback T) {
	g.add(name, fallback)
}

func (g *FallbackGroup[T]) add(name string, value T) {
	bc := g.cfg.Breaker
	bc.Name = name
	g.entries = append(g.entries, entry[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(bc, g.logger),
	})
}

// Execute tries fn against each entry in order until one succeeds. Entries
// with an open breaker are skipped. Returns [ErrAllFailed] wrapping the last
// error when every entry fails.
func (g *FallbackGroup[T]) Execute(fn func(T) error) error {
	var lastErr error
	for i := range g.entries {
		e := &g.entries[i]
		err := e.breaker.Do(func() error {
			return fn(e.value)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			g.logger.Debug("provider skipped, circuit open", "provider", e.name)
		} else {
			g.logger.Warn("provider failed, trying next",
				"provider", e.name, "error", err)
		}
	}
	return fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// ExecuteWithResult tries fn against each entry until one succeeds,
// returning the result value. A package-level function because Go does not
// support method-level type parameters.
func ExecuteWithResult[T any, R any](g *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range g.entries {
		e := &g.entries[i]
		var result R
		err := e.breaker.Do(func() error {
			var inner error
			result, inner = fn(e.value)
			return inner
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			g.logger.Debug("provider skipped, circuit open", "provider", e.name)
		} else {
			g.logger.Warn("provider failed, trying next",
				"provider", e.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
