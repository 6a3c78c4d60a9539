package utils

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

// InputValidationMiddleware sets standard security headers, restricts
// POST/PUT bodies to known content types, and rejects paths carrying
// traversal sequences.
func InputValidationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") &&
				!strings.HasPrefix(ct, "multipart/form-data") &&
				!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
				http.Error(w, "invalid content type", http.StatusBadRequest)
				return
			}
		}

		if strings.Contains(r.URL.Path, "..") || strings.Contains(r.URL.Path, "/.") {
			http.Error(w, "invalid path", http.StatusBadRequest)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type ipRateLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	ips   map[string]*ipRateLimiter
	rate  rate.Limit
	burst int
}

func newRateLimiter(r rate.Limit, burst int) *rateLimiter {
	return &rateLimiter{ips: make(map[string]*ipRateLimiter), rate: r, burst: burst}
}

func (rl *rateLimiter) get(ip string) *ipRateLimiter {
	if l, ok := rl.ips[ip]; ok {
		l.lastSeen = time.Now()
		return l
	}
	l := &ipRateLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst), lastSeen: time.Now()}
	rl.ips[ip] = l
	return l
}

// RateLimitMiddleware builds a per-IP token-bucket limiter. loginPath
// and registerPath (when the request path has either prefix) are
// throttled below defaultLimit to slow brute-force attempts.
func RateLimitMiddleware(r rate.Limit, burst, defaultLimit int) mux.MiddlewareFunc {
	limiter := newRateLimiter(r, burst)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		for range ticker.C {
			for ip, l := range limiter.ips {
				if time.Since(l.lastSeen) > 30*time.Minute {
					delete(limiter.ips, ip)
				}
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			l := limiter.get(ip)

			limit := defaultLimit
			switch {
			case strings.HasPrefix(r.URL.Path, "/api/login"):
				limit = 5
			case strings.HasPrefix(r.URL.Path, "/api/users") && r.Method == http.MethodPost:
				limit = 3
			}

			if !l.limiter.AllowN(time.Now(), limit) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
