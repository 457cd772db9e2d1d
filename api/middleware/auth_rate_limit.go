package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anucarts/marketplace-backend/api/responses"
	pkgerrors "github.com/anucarts/marketplace-backend/pkg/errors"
	"github.com/anucarts/marketplace-backend/pkg/logger"
)

const maxAuthBodyBytes = 64 << 10

type rateLimiterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// AuthRateLimitPolicy throttles one auth surface (login or signup) with
// fixed-window counters per client IP and per submitted email.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{name: name, window: window, ipLimit: ipLimit, emailLimit: emailLimit}
}

// counter is one dimension of a policy. subject extracts the value to count
// on, returning "" to skip the dimension for this request.
type counter struct {
	dimension string
	limit     int
	subject   func(r *http.Request, body []byte) string
}

func (p AuthRateLimitPolicy) counters() []counter {
	var out []counter
	if p.ipLimit > 0 {
		out = append(out, counter{dimension: "ip", limit: p.ipLimit, subject: func(r *http.Request, _ []byte) string {
			return clientIP(r)
		}})
	}
	if p.emailLimit > 0 {
		// Emails are hashed so raw addresses never land in Redis.
		out = append(out, counter{dimension: "email", limit: p.emailLimit, subject: func(_ *http.Request, body []byte) string {
			if email := submittedEmail(body); email != "" {
				sum := sha256.Sum256([]byte(email))
				return hex.EncodeToString(sum[:])
			}
			return ""
		}})
	}
	return out
}

// AuthRateLimit rejects requests with 429 once any counter of the policy is
// over its limit for the current window. Counters are namespaced by policy,
// so login failures never consume the signup budget.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	counters := policy.counters()
	return func(next http.Handler) http.Handler {
		if store == nil || policy.window <= 0 || len(counters) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			body, err := io.ReadAll(io.LimitReader(r.Body, maxAuthBodyBytes))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			for _, c := range counters {
				subject := c.subject(r, body)
				if subject == "" {
					continue
				}
				hits, err := store.IncrWithTTL(ctx, store.RateLimitKey(policy.name+":"+c.dimension+":"+subject), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rate limit counter"))
					return
				}
				if hits > int64(c.limit) {
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{
							"policy":    policy.name,
							"dimension": c.dimension,
							"hits":      hits,
							"limit":     c.limit,
						}), "auth.rate_limited")
					}
					w.Header().Set("Retry-After", strconv.Itoa(int(policy.window.Seconds())))
					responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop set by the load balancer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func submittedEmail(body []byte) string {
	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(payload.Email))
}
