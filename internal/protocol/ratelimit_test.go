package protocol

import (
	"testing"
	"time"
)

func TestNewErrorBackoffGrowsWithStreak(t *testing.T) {
	hook := NewErrorBackoff(5*time.Millisecond, 100*time.Millisecond)

	start := time.Now()
	hook(1)
	firstElapsed := time.Since(start)

	start = time.Now()
	hook(4)
	fourthElapsed := time.Since(start)

	if firstElapsed >= fourthElapsed {
		t.Fatalf("expected backoff for streak=4 (%v) to exceed streak=1 (%v)", fourthElapsed, firstElapsed)
	}
}

func TestNewErrorBackoffCapsAtMax(t *testing.T) {
	hook := NewErrorBackoff(10*time.Millisecond, 20*time.Millisecond)

	start := time.Now()
	hook(1000)
	elapsed := time.Since(start)

	// max (20ms) plus at most half that in jitter (10ms) plus scheduling slack.
	if elapsed > 60*time.Millisecond {
		t.Fatalf("backoff for huge streak = %v, want capped near max", elapsed)
	}
}

func TestNewErrorBackoffNoopForZeroStreak(t *testing.T) {
	hook := NewErrorBackoff(50*time.Millisecond, time.Second)

	start := time.Now()
	hook(0)
	elapsed := time.Since(start)

	if elapsed > 5*time.Millisecond {
		t.Fatalf("expected no sleep for streak=0, elapsed %v", elapsed)
	}
}
