// Package retry provides the bounded retry policy applied to operations
// that depend on an up-to-date cluster topology.
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Policy retries an operation whose failures may be cured by refreshing
// the topology. After each retryable failure it sleeps Delay, runs the
// Recover hook (best-effort), and tries again, up to Attempts extra tries.
// The final error is returned unchanged so callers see the original
// failure kind.
type Policy struct {
	// Attempts is the number of retries after the first try.
	Attempts int
	// Delay is slept between tries. Zero means retry immediately.
	Delay time.Duration
	// Retryable classifies errors; nil retries everything.
	Retryable func(error) bool
	// Recover runs before each retry, typically a forced topology
	// refresh. It must swallow its own failures.
	Recover func(context.Context)

	Logger *zap.Logger
}

// Do runs op up to Attempts+1 times
func (p *Policy) Do(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= p.Attempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}

		lastErr = err
		if attempt == p.Attempts {
			break
		}

		if p.Logger != nil {
			p.Logger.Debug("Retrying after topology-sensitive failure",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", p.Attempts+1),
				zap.Error(err))
		}

		if p.Delay > 0 {
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(p.Delay):
			}
		}

		if p.Recover != nil {
			p.Recover(ctx)
		}
	}

	return lastErr
}
