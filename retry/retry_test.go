package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock records sleeps without blocking.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	policy := DefaultPolicy()

	calls := 0
	err := policy.Do(t.Context(), clock, func(context.Context) error {
		calls++
		if calls <= 2 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	want := []time.Duration{5 * time.Second, 15 * time.Second}
	if len(clock.sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", clock.sleeps, want)
	}
	for i, d := range want {
		if clock.sleeps[i] != d {
			t.Errorf("sleep[%d] = %v, want %v", i, clock.sleeps[i], d)
		}
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	policy := Policy{MaxRetries: 2, BaseDelay: time.Second, Multiplier: 2}

	sentinel := errors.New("permanently broken")
	calls := 0
	err := policy.Do(t.Context(), clock, func(context.Context) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Do() error = %v, want wrapped %v", err, sentinel)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnCancellation(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	policy := DefaultPolicy()

	ctx, cancel := context.WithCancel(t.Context())
	calls := 0
	err := policy.Do(ctx, clock, func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDelayCapsAtMax(t *testing.T) {
	policy := Policy{MaxRetries: 5, BaseDelay: time.Minute, Multiplier: 10, MaxDelay: 2 * time.Minute}
	if d := policy.Delay(3); d != 2*time.Minute {
		t.Errorf("Delay(3) = %v, want 2m", d)
	}
}
