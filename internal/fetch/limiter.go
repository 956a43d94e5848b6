package fetch

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// hostLimiter applies a politeness rate limit per remote host, so hammering
// one provider's API cascade doesn't starve or trip rate limits on another.
type hostLimiter struct {
	mu    sync.Mutex
	limit rate.Limit
	burst int
	hosts map[string]*rate.Limiter
}

func newHostLimiter(limit rate.Limit, burst int) *hostLimiter {
	return &hostLimiter{
		limit: limit,
		burst: burst,
		hosts: make(map[string]*rate.Limiter),
	}
}

func (l *hostLimiter) wait(ctx context.Context, host string) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	lim, ok := l.hosts[host]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.hosts[host] = lim
	}
	l.mu.Unlock()
	return lim.Wait(ctx)
}
