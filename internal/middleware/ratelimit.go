package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Rate limiter bookkeeping limits.
const (
	maxTrackedClients = 10000
	clientTTL         = 5 * time.Minute
)

// clientLimiter hands out one token bucket per client key. Idle clients
// expire from the LRU after clientTTL.
type clientLimiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

func newClientLimiter(requestsPerMin int) *clientLimiter {
	burst := requestsPerMin / 10
	if burst < 1 {
		burst = 1
	}

	return &clientLimiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, clientTTL),
		limit:    rate.Limit(float64(requestsPerMin) / 60.0),
		burst:    burst,
	}
}

func (cl *clientLimiter) allow(key string) bool {
	cl.mu.Lock()
	limiter, ok := cl.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(cl.limit, cl.burst)
		cl.limiters.Add(key, limiter)
	}
	cl.mu.Unlock()

	return limiter.Allow()
}

// RateLimit returns a middleware that allows each client IP roughly
// requestsPerMin requests per minute and answers 429 beyond that.
// A non-positive requestsPerMin disables limiting.
//
// The client is the socket peer. X-Forwarded-For and X-Real-IP are only
// honoured when the peer falls inside one of trustedProxies.
func RateLimit(requestsPerMin int, trustedProxies []netip.Prefix, logger *zap.Logger) Middleware {
	if requestsPerMin <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	limiter := newClientLimiter(requestsPerMin)
	retryAfter := strconv.Itoa(int((time.Minute / time.Duration(requestsPerMin)).Seconds()) + 1)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustedProxies)
			if !limiter.allow(ip) {
				logger.Warn("rate limit exceeded",
					zap.String("client_ip", ip),
					zap.String("path", r.URL.Path),
					zap.String("request_id", getRequestID(r)),
				)
				w.Header().Set("Retry-After", retryAfter)
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the socket peer address unless the peer is a trusted
// proxy. Behind trusted proxies it walks X-Forwarded-For from the right and
// returns the first hop that is not itself trusted.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}

	if !isTrusted(peer, trusted) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !isTrusted(hop, trusted) {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	return peer
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
