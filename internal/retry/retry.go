// Package retry is the single point of resilience policy for exchange
// calls. Every gateway operation routes through Do; no endpoint carries
// its own retry loop.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"optionflow/config"
	"optionflow/logger"
	"optionflow/models"
)

// Executor retries fallible operations with bounded attempts and
// exponential backoff. Terminal failures (see models.IsTerminal) abort
// immediately without consuming remaining attempts.
type Executor struct {
	cfg config.RetryConfig
	log *logger.Log
}

// NewExecutor creates an Executor, filling unset knobs with defaults.
func NewExecutor(cfg config.RetryConfig) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2
	}
	return &Executor{cfg: cfg, log: logger.GetLogger()}
}

// Do runs op up to the configured number of attempts, sleeping between
// attempts along an exponential curve capped at max_delay. The backoff
// sleep honors ctx so an operator level deadline bounds the whole retried
// operation, not just one attempt. The last failure is returned wrapped
// with the operation name.
func Do[T any](ctx context.Context, ex *Executor, name string, op func() (T, error)) (T, error) {
	var zero T

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = ex.cfg.BaseDelay
	bo.MaxInterval = ex.cfg.MaxDelay
	bo.Multiplier = float64(ex.cfg.BackoffMultiplier)
	bo.MaxElapsedTime = 0 // bounded by attempts, not wall clock
	bo.Reset()

	log := ex.log.WithComponent("retry").WithFields(logger.Fields{"operation": name})

	var lastErr error
	for attempt := 1; attempt <= ex.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s: %w", name, err)
		}

		result, err := op()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if models.IsTerminal(err) {
			log.WithError(err).WithFields(logger.Fields{"attempt": attempt}).Warn("terminal failure, not retrying")
			return zero, fmt.Errorf("%s: %w", name, err)
		}

		if attempt == ex.cfg.MaxAttempts {
			break
		}

		wait := bo.NextBackOff()
		log.WithError(err).WithFields(logger.Fields{
			"attempt":  attempt,
			"retry_in": wait.String(),
		}).Warn("retryable failure")
		logger.IncrementRetry()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%s: %w", name, ctx.Err())
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("%s: exhausted %d attempts: %w", name, ex.cfg.MaxAttempts, lastErr)
}
