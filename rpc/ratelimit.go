package rpc

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const visitorIdleTTL = 5 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter keeps one token bucket per client source.
type clientLimiter struct {
	perSecond rate.Limit
	burst     int

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
	clockNow  func() time.Time
}

func newClientLimiter(perSecond float64, burst int) *clientLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		visitors:  make(map[string]*visitor),
		clockNow:  time.Now,
	}
}

func (l *clientLimiter) allow(source string) bool {
	if source == "" {
		source = "unknown"
	}
	now := l.clockNow()

	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) >= visitorIdleTTL {
		for id, v := range l.visitors {
			if now.Sub(v.lastSeen) >= visitorIdleTTL {
				delete(l.visitors, id)
			}
		}
		l.lastSweep = now
	}
	v, ok := l.visitors[source]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.visitors[source] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}
