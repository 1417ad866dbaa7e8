// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryLinearBackoff(t *testing.T) {
	var slept []time.Duration

	p := RetryPolicy{
		MaxAttempts: 3,
		Backoff:     2 * time.Second,
		sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)

			return nil
		},
	}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++

		return &GeocodingError{Type: ErrorTypeNetwork, Message: "boom"}
	})

	if err == nil {
		t.Fatal("Do() succeeded after exhausting attempts")
	}

	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}

	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("slept %v, want %v", slept, want)
	}

	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestRetryStopsOnSuccess(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, sleep: func(context.Context, time.Duration) error { return nil }}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 2 {
			return &GeocodingError{Type: ErrorTypeRateLimit, Message: "slow down"}
		}

		return nil
	})
	if err != nil {
		t.Fatalf("Do(): %v", err)
	}

	if calls != 2 {
		t.Errorf("op called %d times, want 2", calls)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, sleep: func(context.Context, time.Duration) error { return nil }}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++

		return &GeocodingError{Type: ErrorTypeQuotaExceeded, Message: "quota spent"}
	})

	if err == nil {
		t.Fatal("Do() swallowed a quota error")
	}

	if calls != 1 {
		t.Errorf("op called %d times, want 1: quota errors never recover within a run", calls)
	}
}

func TestRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}

	calls := 0
	err := p.Do(ctx, func() error {
		calls++

		return &GeocodingError{Type: ErrorTypeNetwork, Message: "boom"}
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() = %v, want context.Canceled", err)
	}

	if calls != 1 {
		t.Errorf("op called %d times after cancellation, want 1", calls)
	}
}

func TestRateGate(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var slept []time.Duration

	g := NewRateGate(1100 * time.Millisecond)
	g.now = func() time.Time { return clock }
	g.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		clock = clock.Add(d)

		return nil
	}

	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait(): %v", err)
	}

	if len(slept) != 0 {
		t.Errorf("first request slept %v, want none", slept)
	}

	clock = clock.Add(100 * time.Millisecond)

	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("second Wait(): %v", err)
	}

	if len(slept) != 1 || slept[0] != time.Second {
		t.Errorf("second request slept %v, want [1s]", slept)
	}

	clock = clock.Add(2 * time.Second)

	if err := g.Wait(context.Background()); err != nil {
		t.Fatalf("third Wait(): %v", err)
	}

	if len(slept) != 1 {
		t.Errorf("request after a long gap slept again: %v", slept)
	}
}
