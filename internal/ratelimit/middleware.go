package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/backend-fieldsales/internal/common"
	"github.com/noah-isme/backend-fieldsales/internal/obs"
)


// New builds a fixed-window limiter allowing perMinute requests. Counters
// live in Redis when rdb is set so replicas share them, else in process.
func New(rdb *redis.Client, perMinute int) (*limiter.Limiter, error) {
	rate := limiter.Rate{Period: time.Minute, Limit: int64(perMinute)}
	var store limiter.Store
	if rdb != nil {
		s, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "ratelimit", MaxRetry: 3})
		if err != nil {
			return nil, fmt.Errorf("ratelimit: redis store: %w", err)
		}
		store = s
	} else {
		store = memory.NewStore()
	}
	return limiter.New(store, rate), nil
}

// Key identifies the caller: the employee code header when set, otherwise
// the client address. RemoteAddr is expected to be rewritten by chi's
// RealIP middleware upstream.
func Key(r *http.Request) string {
	if emp := strings.TrimSpace(r.Header.Get(obs.EmployeeHeader)); emp != "" {
		return "emp:" + emp
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// Handler enforces rate limits before delegating to the next handler.
type Handler struct {
	Limiter *limiter.Limiter
	Key     func(*http.Request) string
	OnError func(error)
}

// Middleware implements the http.Handler middleware interface. Store errors
// let the request through.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		keyFn := h.Key
		if keyFn == nil {
			keyFn = Key
		}
		lc, err := h.Limiter.Get(r.Context(), keyFn(r))
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(lc.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(lc.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(lc.Reset, 10))

		if lc.Reached {
			retryAfter := lc.Reset - time.Now().Unix()
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
