// Package limits bounds how much of the server a single client can hold.
package limits

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// ConnectionLimiter caps concurrent long-lived connections per client IP.
// A live form keeps its WebSocket open for the whole session, so the cap is
// held from upgrade until the session ends.
type ConnectionLimiter struct {
	max int

	mu    sync.Mutex
	conns map[string]int

	blocked atomic.Int64
}

// NewConnectionLimiter returns a limiter allowing max connections per IP.
// A non-positive max disables the limit.
func NewConnectionLimiter(max int) *ConnectionLimiter {
	return &ConnectionLimiter{max: max, conns: make(map[string]int)}
}

// Acquire takes a slot for ip and reports whether one was free.
func (l *ConnectionLimiter) Acquire(ip string) bool {
	if l.max <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conns[ip] >= l.max {
		l.blocked.Add(1)
		return false
	}
	l.conns[ip]++
	return true
}

// Release frees a slot taken by Acquire.
func (l *ConnectionLimiter) Release(ip string) {
	if l.max <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	switch n := l.conns[ip]; {
	case n <= 1:
		delete(l.conns, ip)
	default:
		l.conns[ip] = n - 1
	}
}

// Count returns the open connections of ip.
func (l *ConnectionLimiter) Count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conns[ip]
}

// Blocked returns how many connections were refused so far.
func (l *ConnectionLimiter) Blocked() int64 {
	return l.blocked.Load()
}

// ClientIP extracts the client address of r. The first X-Forwarded-For hop
// and X-Real-IP are honored before RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
