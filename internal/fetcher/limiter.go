package fetcher

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// adaptiveLimiter slows down after a 429 and recovers on success, bounded
// between a quarter and twice the initial rate.
type adaptiveLimiter struct {
	host    string
	mu      sync.Mutex
	limiter *rate.Limiter
	current rate.Limit
	minRate rate.Limit
	maxRate rate.Limit
}

func newAdaptiveLimiter(host string, initial rate.Limit, burst int) *adaptiveLimiter {
	return &adaptiveLimiter{
		host:    host,
		limiter: rate.NewLimiter(initial, burst),
		current: initial,
		minRate: initial / 4,
		maxRate: initial * 2,
	}
}

func (a *adaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate by 20%.
func (a *adaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.current * 1.2
	if next > a.maxRate {
		next = a.maxRate
	}
	a.current = next
	a.limiter.SetLimit(next)
}

// OnRateLimit halves the rate.
func (a *adaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.current * 0.5
	if next < a.minRate {
		next = a.minRate
	}
	a.current = next
	a.limiter.SetLimit(next)
	zap.L().Warn("fetch: host rate limited, slowing down",
		zap.String("host", a.host),
		zap.Float64("new_rate", float64(next)),
	)
}

// Limit returns the current rate.
func (a *adaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// hostLimiters lazily creates one adaptive limiter per host.
type hostLimiters struct {
	mu       sync.Mutex
	rps      rate.Limit
	limiters map[string]*adaptiveLimiter
}

func newHostLimiters(rps float64) *hostLimiters {
	return &hostLimiters{
		rps:      rate.Limit(rps),
		limiters: make(map[string]*adaptiveLimiter),
	}
}

func (h *hostLimiters) get(host string) *adaptiveLimiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.limiters[host]; ok {
		return l
	}
	burst := int(h.rps)
	if burst < 1 {
		burst = 1
	}
	l := newAdaptiveLimiter(host, h.rps, burst)
	h.limiters[host] = l
	return l
}
