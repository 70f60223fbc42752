package gateway

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/flemzord/ctxpack/internal/security"
)

// authMiddleware validates Bearer token or Basic auth credentials using
// constant-time comparison. If an AuditLogger is provided, auth_success and
// auth_failure events are emitted. If a RateLimiter is provided, clients
// that exhaust their auth failure budget are rejected before their
// credentials are checked.
func authMiddleware(cfg AuthConfig, auditLogger *security.AuditLogger, rateLimiter *security.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientID(r)
			if rateLimiter != nil && rateLimiter.Exceeded(security.KindAuthFailure, client) {
				emitAuthEvent(auditLogger, security.EventRateLimit, r, "too many failed auth attempts")
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}

			fail := func(detail string) {
				if rateLimiter != nil {
					_ = rateLimiter.Allow(security.KindAuthFailure, client)
				}
				emitAuthEvent(auditLogger, security.EventAuthFailure, r, detail)
				writeError(w, http.StatusUnauthorized, "unauthorized")
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				fail("missing authorization header")
				return
			}

			if cfg.BearerToken != "" {
				if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
					if constantTimeEqual(after, cfg.BearerToken) {
						emitAuthEvent(auditLogger, security.EventAuthSuccess, r, "bearer")
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			if cfg.BasicUser != "" && cfg.BasicPass != "" {
				user, pass, ok := r.BasicAuth()
				if ok && constantTimeEqual(user, cfg.BasicUser) && constantTimeEqual(pass, cfg.BasicPass) {
					emitAuthEvent(auditLogger, security.EventAuthSuccess, r, "basic")
					next.ServeHTTP(w, r)
					return
				}
			}

			fail("invalid credentials")
		})
	}
}

// rateLimitMiddleware caps requests per client.
func rateLimitMiddleware(rateLimiter *security.RateLimiter, auditLogger *security.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := rateLimiter.Allow(security.KindRequest, clientID(r)); err != nil {
				emitAuthEvent(auditLogger, security.EventRateLimit, r, "request limit")
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// emitAuthEvent records an auth or rate-limit outcome for r.
func emitAuthEvent(logger *security.AuditLogger, eventType security.EventType, r *http.Request, detail string) {
	logger.Log(security.AuditEvent{
		Type:   eventType,
		Detail: detail,
		Metadata: map[string]string{
			"remote_addr": r.RemoteAddr,
			"method":      r.Method,
			"path":        r.URL.Path,
		},
	})
}

// clientID is the remote host without its port.
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
