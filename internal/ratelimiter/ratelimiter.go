package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// CommandLimiter throttles the rate at which a single session may execute
// commands, using a token bucket.
//
// Each session constructs its own limiter, so one chatty client cannot eat
// into another client's budget. A zero rate disables limiting entirely.
//
// Thread safety:
// All methods are safe for concurrent use, although a session drives its
// limiter from a single goroutine.
type CommandLimiter struct {
	limiter *rate.Limiter
}

// New creates a CommandLimiter with the specified sustained rate and burst
// capacity.
//
// Parameters:
//   - commandsPerSecond: maximum sustained rate (tokens added per second)
//   - burst: bucket capacity (commands that may run back to back)
//
// A commandsPerSecond of 0 means unlimited.
func New(commandsPerSecond, burst uint) *CommandLimiter {
	if commandsPerSecond == 0 {
		// Unlimited: a very large finite limit avoids rate.Inf edge cases.
		commandsPerSecond = 1_000_000_000
		burst = commandsPerSecond
	}

	if burst == 0 {
		burst = commandsPerSecond
	}

	return &CommandLimiter{
		limiter: rate.NewLimiter(rate.Limit(commandsPerSecond), int(burst)),
	}
}

// Allow reports whether one command may run now, consuming a token if so.
// This is the fast path; it never blocks.
func (r *CommandLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or the context is cancelled.
//
// Sessions use Wait rather than Allow: a client that exceeds its budget is
// slowed down, not served errors.
func (r *CommandLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the current number of available tokens. Monitoring and
// tests only; the value may change immediately after the call.
func (r *CommandLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
