package sse

import (
	"testing"
	"time"
)

func TestNextDelay(t *testing.T) {
	base := 1000 * time.Millisecond
	max := 30000 * time.Millisecond

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1000 * time.Millisecond},
		{2, 2000 * time.Millisecond},
		{3, 4000 * time.Millisecond},
		{5, 16000 * time.Millisecond},
		{6, 30000 * time.Millisecond}, // 32s clamped
		{10, 30000 * time.Millisecond},
		{100, 30000 * time.Millisecond}, // would overflow unclamped
	}
	for _, c := range cases {
		if got := NextDelay(c.attempt, base, max); got != c.want {
			t.Fatalf("NextDelay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestNextDelayMonotonic(t *testing.T) {
	base := 1000 * time.Millisecond
	max := 30000 * time.Millisecond
	prev := time.Duration(0)
	for attempt := 1; attempt <= 20; attempt++ {
		d := NextDelay(attempt, base, max)
		if d < prev {
			t.Fatalf("delay decreased at attempt %d: %v < %v", attempt, d, prev)
		}
		if d > max {
			t.Fatalf("delay exceeds max at attempt %d: %v", attempt, d)
		}
		prev = d
	}
}

func TestShouldRetry(t *testing.T) {
	if !ShouldRetry(1, 5) || !ShouldRetry(5, 5) {
		t.Fatal("attempts within budget should retry")
	}
	if ShouldRetry(6, 5) {
		t.Fatal("attempt past budget should not retry")
	}
	if ShouldRetry(1, 0) {
		t.Fatal("zero budget should never retry")
	}
}
