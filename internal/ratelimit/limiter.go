// Package ratelimit provides per-host request rate limiting for API calls.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks per-host request rates using a token bucket algorithm.
// Each language edition lives on its own host, so buckets are keyed by
// host and a bulk expansion in one language cannot starve another.
type Limiter struct {
	rate  rate.Limit
	burst int
	hosts sync.Map // map[string]*entry

	stop chan struct{}
}

// New creates a Limiter that allows r requests per second per host with
// the given burst size. A background goroutine evicts stale entries every
// 60 seconds. Call Stop to release resources.
func New(r float64, burst int) *Limiter {
	l := &Limiter{
		rate:  rate.Limit(r),
		burst: burst,
		stop:  make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Wait blocks until a request to the given host is permitted or the
// context is done.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	now := time.Now()
	v, _ := l.hosts.LoadOrStore(host, &entry{
		limiter:  rate.NewLimiter(l.rate, l.burst),
		lastSeen: now,
	})
	e := v.(*entry)
	e.lastSeen = now
	return e.limiter.Wait(ctx)
}

// Allow reports whether a request to the given host would be permitted
// right now, without blocking or consuming a token on refusal.
func (l *Limiter) Allow(host string) bool {
	now := time.Now()
	v, _ := l.hosts.LoadOrStore(host, &entry{
		limiter:  rate.NewLimiter(l.rate, l.burst),
		lastSeen: now,
	})
	e := v.(*entry)
	e.lastSeen = now
	return e.limiter.Allow()
}

// Stop terminates the background cleanup goroutine.
func (l *Limiter) Stop() {
	close(l.stop)
}

const staleAfter = 5 * time.Minute

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.hosts.Range(func(key, value any) bool {
				e := value.(*entry)
				if now.Sub(e.lastSeen) > staleAfter {
					l.hosts.Delete(key)
				}
				return true
			})
		}
	}
}
