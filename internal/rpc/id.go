package rpc

import (
	"math/rand"
	"sync"
	"time"
)

// IDGenerator issues 64-bit correlation ids seeded by wall-clock time:
// unix milliseconds × 1e6 plus random jitter. Seeding by time keeps ids from
// colliding across concurrent requesters without central coordination; the
// monotonic floor keeps them unique within one process even when many ids are
// drawn inside the same millisecond.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// Next returns a fresh id, strictly greater than any id issued before it.
func (g *IDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli()*1_000_000 + rand.Int63n(1_000_000)
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}
