package agent

import (
	"time"

	"campusnerd/internal/extract"
)

const defaultMaxSteps = 6

// Scope is the browsing context of one question. It is opened before the
// first step and closed on every exit path.
type Scope interface {
	extract.PageSource
	Close() error
}

// ScopeFactory opens a new Scope.
type ScopeFactory func() Scope

// Option configures an Agent.
type Option func(*Agent)

// WithMaxSteps sets the step budget per question.
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

// WithTimeout sets a wall-clock budget per question. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(a *Agent) { a.timeout = d }
}

// WithScopes sets how browsing scopes are opened. Without it tools run with
// no browsing context and report that as an observation.
func WithScopes(f ScopeFactory) Option {
	return func(a *Agent) { a.scopes = f }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(a *Agent) { a.temperature = t }
}

// WithClock overrides the clock used for "today" in prompts and for timing.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

// WithStepHook registers a callback invoked after every recorded step.
func WithStepHook(f func(Step)) Option {
	return func(a *Agent) { a.onStep = f }
}
