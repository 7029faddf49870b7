package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-fieldsales/internal/ledger"
	"github.com/noah-isme/backend-fieldsales/internal/tablestore"
)

// errDisabled marks an optional dependency that is not configured.
var errDisabled = errors.New("disabled")

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips readiness; the API clears it while draining on shutdown.
func SetReady(v bool) { ready.Store(v) }

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingStore(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Probe checks the ledger connector and the optional Redis client.
type Probe struct {
	Conn  ledger.Connector
	Redis *redis.Client
}

// PingStore reaches the ledger backend.
func (p Probe) PingStore(ctx context.Context, timeout time.Duration) error {
	if p.Conn == nil {
		return errors.New("ledger store not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return tablestore.Ping(ctx, p.Conn)
}

// PingRedis reports errDisabled when no client is configured.
func (p Probe) PingRedis(ctx context.Context, timeout time.Duration) error {
	if p.Redis == nil {
		return errDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Redis.Ping(ctx).Err()
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	StoreTimeout time.Duration
	RedisTimeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes. Redis is optional, so
// a disabled Redis does not fail readiness.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Checker == nil || !ready.Load() {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()
	storeStatus := "ok"
	if err := h.Checker.PingStore(ctx, h.storeTimeout()); err != nil {
		storeStatus = err.Error()
	}
	redisStatus := "ok"
	redisOK := true
	if err := h.Checker.PingRedis(ctx, h.redisTimeout()); err != nil {
		redisStatus = err.Error()
		redisOK = errors.Is(err, errDisabled)
	}
	status := map[string]string{
		"store": storeStatus,
		"redis": redisStatus,
	}
	w.Header().Set("Content-Type", "application/json")
	if storeStatus != "ok" || !redisOK {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func (h Handler) storeTimeout() time.Duration {
	if h.StoreTimeout <= 0 {
		return 2 * time.Second
	}
	return h.StoreTimeout
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}
