// Package resil provides small resilience primitives — retry with
// backoff and an adaptive circuit breaker — for the transport layer,
// where a flaky SSH dial or a wedged remote command is a fact of life
// rather than an exceptional case.
package resil

import (
	"context"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
)

// Retry calls fn up to attempts times, waiting between attempts with
// exponential backoff and full jitter. It returns as soon as fn succeeds,
// or the last error once attempts are exhausted.
func Retry[T any](ctx context.Context, attempts int, initialDelay time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	if attempts <= 0 {
		attempts = 1
	}

	meter := otel.Meter("blockwart-transport")
	attemptCounter, _ := meter.Int64Counter("blockwart_transport_retry_attempts_total")
	successCounter, _ := meter.Int64Counter("blockwart_transport_retry_success_total")
	failCounter, _ := meter.Int64Counter("blockwart_transport_retry_failures_total")

	cur := initialDelay
	var lastErr error

	for i := 0; i < attempts; i++ {
		v, err := fn()
		attemptCounter.Add(ctx, 1)
		if err == nil {
			successCounter.Add(ctx, 1)
			return v, nil
		}
		lastErr = err

		if i == attempts-1 {
			break
		}
		if cur > 30*time.Second {
			cur = 30 * time.Second
		}
		sleep := time.Duration(rand.Int63n(int64(cur) + 1))
		select {
		case <-ctx.Done():
			failCounter.Add(ctx, 1)
			return zero, ctx.Err()
		case <-time.After(sleep):
		}
		cur *= 2
	}

	failCounter.Add(ctx, 1)
	return zero, lastErr
}
