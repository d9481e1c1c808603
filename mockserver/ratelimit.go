package mockserver

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiter pairs a token-bucket limiter with the last time its IP was seen, so idle buckets can
// be reclaimed.
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP. Adapted directly from
// zerooo111-fermi-api-gateway's internal/ratelimit.IPRateLimiter, generalized to serve both the
// REST and WS buckets a MockedExchangeServer keeps separate (spec §4.6.1).
type IPRateLimiter struct {
	mu              sync.Mutex
	limiters        map[string]*ipLimiter
	rate            rate.Limit
	burst           int
	cleanupInterval time.Duration
	stop            chan struct{}
}

// NewIPRateLimiter constructs a limiter allowing r requests/second per IP with burst b.
func NewIPRateLimiter(r float64, b int) *IPRateLimiter {
	l := &IPRateLimiter{
		limiters:        make(map[string]*ipLimiter),
		rate:            rate.Limit(r),
		burst:           b,
		cleanupInterval: 5 * time.Minute,
		stop:            make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow reports whether a request from ip may proceed now.
func (l *IPRateLimiter) Allow(ip string) bool {
	return l.getLimiter(ip).Allow()
}

func (l *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(l.rate, l.burst), lastSeen: time.Now()}
		l.limiters[ip] = entry
		return entry.limiter
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// Close stops the background cleanup goroutine.
func (l *IPRateLimiter) Close() { close(l.stop) }

func (l *IPRateLimiter) cleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			for ip, entry := range l.limiters {
				if time.Since(entry.lastSeen) > time.Hour {
					delete(l.limiters, ip)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}

// extractIP mirrors zerooo111-fermi-api-gateway's ExtractIP: X-Forwarded-For, then X-Real-IP,
// then RemoteAddr.
func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
