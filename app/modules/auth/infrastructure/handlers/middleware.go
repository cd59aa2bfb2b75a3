package authhandlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	authdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/auth/domain"
	authjwt "github.com/Black-And-White-Club/dupr-bridge/app/modules/auth/infrastructure/jwt"
	"golang.org/x/time/rate"
)

const (
	// pruneAbove is the bucket count past which idle callers are dropped.
	pruneAbove = 500
	// idleAfter is how long a caller may stay quiet before its bucket is dropped.
	idleAfter = 10 * time.Minute
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// CallerRateLimiter keeps one token bucket per caller. Authenticated requests
// are keyed by user, so organizers behind one NAT do not share a budget;
// anonymous requests fall back to the client IP.
type CallerRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	r       rate.Limit
	b       int
}

func NewCallerRateLimiter(r rate.Limit, b int) *CallerRateLimiter {
	return &CallerRateLimiter{buckets: make(map[string]*bucket), r: r, b: b}
}

// GetLimiter returns the bucket of key, creating it on first use.
func (l *CallerRateLimiter) GetLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if len(l.buckets) > pruneAbove {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > idleAfter {
				delete(l.buckets, k)
			}
		}
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.r, l.b)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// CallerKey identifies the caller of r for rate limiting. It reads the
// claims stored by Authenticate, so Authenticate must run first.
func CallerKey(r *http.Request) string {
	if claims, ok := ClaimsFromContext(r.Context()); ok && claims.UserID != "" {
		return "user:" + claims.UserID
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ip:" + ip
}

// RateLimitMiddleware answers 429 with a Retry-After hint once the caller's
// bucket is empty.
func RateLimitMiddleware(limiter *CallerRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.GetLimiter(CallerKey(r)).Reserve()
			if !res.OK() {
				writeAuthError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			if wait := res.Delay(); wait > 0 {
				res.Cancel()
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeAuthError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware lets the configured organizer consoles call the API with a
// bearer token. Cookies are never used, so credentials are not allowed.
// Preflights are answered here; an empty origin list disables CORS headers.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[strings.TrimSpace(o)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			_, allowed := origins[origin]
			if origin != "" && allowed {
				h := w.Header()
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-Id")
				h.Set("Access-Control-Expose-Headers", "Retry-After, X-Request-Id")
				h.Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if !allowed {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ErrMissingToken is recorded when a request carries no bearer token.
var ErrMissingToken = errors.New("missing bearer token")

type contextKey int

const (
	claimsKey contextKey = iota
	authErrKey
)

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *authdomain.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the claims stored by Authenticate, if any.
func ClaimsFromContext(ctx context.Context) (*authdomain.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*authdomain.Claims)
	return claims, ok && claims != nil
}

// AuthErrorFromContext returns why Authenticate could not identify the caller.
func AuthErrorFromContext(ctx context.Context) error {
	err, _ := ctx.Value(authErrKey).(error)
	return err
}

// Authenticate parses the bearer token of every request. It never rejects:
// the outcome is stored in the request context for RequireRole and for
// handlers that report authentication failures themselves.
func Authenticate(provider authjwt.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := bearerToken(r)
			if !ok {
				ctx = context.WithValue(ctx, authErrKey, ErrMissingToken)
			} else if claims, err := provider.ValidateToken(token); err != nil {
				ctx = context.WithValue(ctx, authErrKey, err)
			} else {
				ctx = WithClaims(ctx, claims)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose claims do not grant min.
func RequireRole(min authdomain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				msg := "unauthorized"
				if err := AuthErrorFromContext(r.Context()); err != nil {
					msg = err.Error()
				}
				writeAuthError(w, http.StatusUnauthorized, msg)
				return
			}
			if !claims.Role.Allows(min) {
				writeAuthError(w, http.StatusForbidden, "requires role "+min.String())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
