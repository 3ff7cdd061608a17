package main

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// rateGate spaces requests per source: at least delayMin between permits,
// plus jitter up to delayMax. One instance is shared by every worker so
// the ceiling holds regardless of fan-out.
type rateGate struct {
	mu       sync.Mutex
	next     map[sourceID]time.Time
	delayMin time.Duration
	delayMax time.Duration
	now      func() time.Time
}

func newRateGate(delayMin, delayMax time.Duration) *rateGate {
	if delayMax < delayMin {
		delayMin, delayMax = delayMax, delayMin
	}
	return &rateGate{
		next:     make(map[sourceID]time.Time),
		delayMin: delayMin,
		delayMax: delayMax,
		now:      time.Now,
	}
}

func (g *rateGate) interval() time.Duration {
	if g.delayMax <= g.delayMin {
		return g.delayMin
	}
	return g.delayMin + time.Duration(rand.Int63n(int64(g.delayMax-g.delayMin)))
}

// acquire blocks until the caller may issue a request against src. The
// slot is reserved under the lock, then waited out without holding it, so
// sources never delay each other.
func (g *rateGate) acquire(ctx context.Context, src sourceID) error {
	g.mu.Lock()
	now := g.now()
	at := g.next[src]
	if at.Before(now) {
		at = now
	}
	g.next[src] = at.Add(g.interval())
	g.mu.Unlock()

	return sleepCtx(ctx, at.Sub(now))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
