/*
ranking.go - Leaderboard with a bounded-staleness cache

The ranking is a read-only projection over all balances. It tolerates
seconds of staleness, so it is served from a small TTL cache that every
successful write invalidates. The write path itself stays immediately
consistent; only this read path trades freshness for latency.
*/
package quest

import (
	"context"
	"sync"
	"time"

	"github.com/ncoin/reward-engine/ledger"
)

type rankCache struct {
	mu      sync.Mutex
	fetched time.Time
	ranks   []ledger.RankEntry
	valid   bool
}

func (c *rankCache) get(ttl time.Duration, now time.Time) ([]ledger.RankEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || now.Sub(c.fetched) > ttl {
		return nil, false
	}
	out := make([]ledger.RankEntry, len(c.ranks))
	copy(out, c.ranks)
	return out, true
}

func (c *rankCache) set(ranks []ledger.RankEntry, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ranks = ranks
	c.fetched = now
	c.valid = true
}

func (c *rankCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}

// Ranking returns non-admin accounts by balance, highest first. The
// result may lag writes by up to RankingTTL.
func (e *Engine) Ranking(ctx context.Context) ([]ledger.RankEntry, error) {
	now := e.now()
	if ranks, ok := e.ranks.get(e.RankingTTL, now); ok {
		return ranks, nil
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	ranks, err := e.Store.Ranking(ctx)
	if err != nil {
		return nil, err
	}
	e.ranks.set(ranks, now)

	out := make([]ledger.RankEntry, len(ranks))
	copy(out, ranks)
	return out, nil
}
