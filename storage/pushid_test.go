package storage

import (
	"testing"
	"time"
)

func TestPushIDGenerator_Format(t *testing.T) {
	g := NewPushIDGenerator(fixedClock(1700000000000))
	id := g.Next()
	if len(id) != 20 {
		t.Fatalf("expected 20 characters, got %d (%s)", len(id), id)
	}
	for _, c := range id {
		if !containsRune(pushChars, c) {
			t.Fatalf("unexpected character %q in %s", c, id)
		}
	}
}

func TestPushIDGenerator_SameMillisecondIncreases(t *testing.T) {
	g := NewPushIDGenerator(fixedClock(1700000000000))
	prev := g.Next()
	for i := 0; i < 1000; i++ {
		next := g.Next()
		if next <= prev {
			t.Fatalf("expected %s > %s", next, prev)
		}
		if next[:8] != prev[:8] {
			t.Fatalf("expected shared time prefix, got %s and %s", prev, next)
		}
		prev = next
	}
}

func TestPushIDGenerator_ClockGoingBackwards(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	g := NewPushIDGenerator(func() time.Time { return now })
	first := g.Next()

	now = now.Add(-time.Hour)
	second := g.Next()
	if second <= first {
		t.Fatalf("expected %s > %s after clock moved back", second, first)
	}
}

func TestPushIDGenerator_LaterTimeSortsAfter(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	g := NewPushIDGenerator(func() time.Time { return now })
	first := g.Next()
	now = now.Add(time.Millisecond)
	if second := g.Next(); second <= first {
		t.Fatalf("expected %s > %s", second, first)
	}
}

func containsRune(s string, r rune) bool {
	for _, c := range s {
		if c == r {
			return true
		}
	}
	return false
}
