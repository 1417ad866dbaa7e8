// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"time"
)

// RetryPolicy bounds how often a provider request is repeated after a
// transient failure. Backoff is linear: attempt n sleeps n*Backoff before
// running.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration

	// sleep is swapped out in tests.
	sleep func(context.Context, time.Duration) error
}

// DefaultRetryPolicy mirrors the published etiquette of the free backends:
// three attempts, two seconds apart and growing.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 2 * time.Second}
}

// Do runs op until it succeeds, returns a non-retryable error, or attempts
// are exhausted. The last error is returned in the exhausted case.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if serr := sleep(ctx, time.Duration(attempt-1)*p.Backoff); serr != nil {
				return serr
			}
		}

		err = op()
		if err == nil {
			return nil
		}

		if !Retryable(err) {
			return err
		}
	}

	return err
}

// RateGate serializes requests to one backend and enforces a minimum delay
// between them. Backends are queried strictly sequentially in this engine,
// so no locking is needed; the gate only tracks the last request time.
type RateGate struct {
	MinInterval time.Duration

	last  time.Time
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewRateGate builds a gate with the given minimum inter-request delay.
func NewRateGate(minInterval time.Duration) *RateGate {
	return &RateGate{MinInterval: minInterval}
}

// Wait blocks until the backend may be queried again.
func (g *RateGate) Wait(ctx context.Context) error {
	now := g.now
	if now == nil {
		now = time.Now
	}

	sleep := g.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	if !g.last.IsZero() {
		if wait := g.MinInterval - now().Sub(g.last); wait > 0 {
			if err := sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	g.last = now()

	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
