package storage

import (
	"math/rand/v2"
	"sync"
	"time"
)

// pushChars is ordered by ASCII value so generated keys sort by creation time.
const pushChars = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

// PushIDGenerator produces 20 character, time-ordered keys in the same format
// the hosted realtime store uses: 8 characters of milliseconds followed by 12
// random characters that are incremented instead of redrawn within the same
// millisecond. Keys never go backwards, even if the clock does.
type PushIDGenerator struct {
	mu       sync.Mutex
	now      func() time.Time
	lastTime int64
	lastRand [12]int
}

func NewPushIDGenerator(now func() time.Time) *PushIDGenerator {
	if now == nil {
		now = time.Now
	}
	return &PushIDGenerator{now: now}
}

func (g *PushIDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now().UnixMilli()
	if ts <= g.lastTime {
		ts = g.lastTime
		g.increment()
	} else {
		for i := range g.lastRand {
			g.lastRand[i] = rand.IntN(len(pushChars))
		}
	}
	g.lastTime = ts

	var id [20]byte
	t := ts
	for i := 7; i >= 0; i-- {
		id[i] = pushChars[t%64]
		t /= 64
	}
	for i, r := range g.lastRand {
		id[8+i] = pushChars[r]
	}
	return string(id[:])
}

func (g *PushIDGenerator) increment() {
	for i := len(g.lastRand) - 1; i >= 0; i-- {
		if g.lastRand[i] < len(pushChars)-1 {
			g.lastRand[i]++
			return
		}
		g.lastRand[i] = 0
	}
}
