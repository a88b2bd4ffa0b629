package rpc

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter throttles JSON-RPC traffic per wallet connector. Every connector
// draws from its own token bucket, so a node-backed wallet forwarding reads
// cannot starve the injected wallet sharing the same limiter.
type Limiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

// NewLimiter allows perSecond requests per connector, with a burst of one
// second's worth of requests plus one.
func NewLimiter(perSecond float64) *Limiter {
	return &Limiter{
		limit:   rate.Limit(perSecond),
		burst:   int(perSecond) + 1,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until connector may send another request or ctx ends.
func (l *Limiter) Wait(ctx context.Context, connector string) error {
	return l.bucket(connector).Wait(ctx)
}

// Release forgets the bucket of a connector whose connection was closed.
// The next connection starts with a full burst.
func (l *Limiter) Release(connector string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, connector)
}

func (l *Limiter) bucket(connector string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[connector]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[connector] = b
	}
	return b
}
