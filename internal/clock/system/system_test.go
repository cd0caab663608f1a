// Package system exercises the real-time clock adapter.
package system

import (
	"testing"
	"time"
)

// TestClockNowWithinBounds ensures the clock tracks time.Now.
func TestClockNowWithinBounds(t *testing.T) {
	t.Parallel()

	clk := New()
	requireNotNil(t, clk)

	before := time.Now()
	got := clk.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

// TestClockElapsedNonNegative checks successive readings never go backwards.
func TestClockElapsedNonNegative(t *testing.T) {
	t.Parallel()

	clk := New()
	first := clk.Now()
	time.Sleep(time.Millisecond)
	second := clk.Now()
	if d := second.Sub(first); d <= 0 {
		t.Fatalf("expected positive elapsed time, got %v", d)
	}
}

func requireNotNil(t *testing.T, v any) {
	t.Helper()
	if v == nil {
		t.Fatal("expected value to be non-nil")
	}
}
