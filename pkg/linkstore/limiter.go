package linkstore

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// FidLimiterPool throttles Merge throughput per fid so one noisy or
// misbehaving fid cannot starve the shared KV batch path. Entries for fids
// that go quiet are reclaimed on a TTL.
type FidLimiterPool struct {
	mu            sync.Mutex
	entries       map[uint32]*limiterEntry
	rps           float64
	burst         int
	ttl           time.Duration
	cleanupPeriod time.Duration
	startCleanup  sync.Once
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewFidLimiterPool builds a pool handing out a rate.Limiter(rps, burst) per
// fid on first use. Entries idle past ttl are reclaimed on a sweep every
// cleanupPeriod; both fall back to sane defaults when non-positive.
func NewFidLimiterPool(rps float64, burst int, ttl, cleanupPeriod time.Duration) *FidLimiterPool {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if cleanupPeriod <= 0 {
		cleanupPeriod = time.Minute
	}
	return &FidLimiterPool{
		entries:       make(map[uint32]*limiterEntry),
		rps:           rps,
		burst:         burst,
		ttl:           ttl,
		cleanupPeriod: cleanupPeriod,
	}
}

// Allow reports whether a merge for fid may proceed right now.
func (p *FidLimiterPool) Allow(fid uint32) bool {
	return p.get(fid).Allow()
}

func (p *FidLimiterPool) get(fid uint32) *rate.Limiter {
	p.startCleanup.Do(func() { go p.cleanupLoop() })

	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[fid]; ok {
		e.lastSeen = time.Now()
		return e.limiter
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.entries[fid] = &limiterEntry{limiter: l, lastSeen: time.Now()}
	return l
}

func (p *FidLimiterPool) cleanupLoop() {
	ticker := time.NewTicker(p.cleanupPeriod)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-p.ttl)
		p.mu.Lock()
		for fid, e := range p.entries {
			if e.lastSeen.Before(cutoff) {
				delete(p.entries, fid)
			}
		}
		p.mu.Unlock()
	}
}
