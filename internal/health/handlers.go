package health

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/resilience"
)

// Checker probes the service's backing stores. PingDB may return ErrSkipped when orders are
// kept in memory.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// BreakerState reports the gateway circuit breaker state.
type BreakerState interface {
	State() resilience.State
}

// ErrSkipped marks a dependency that is not configured.
var ErrSkipped = errors.New("skipped")

var draining atomic.Bool

// SetReady toggles readiness. The API clears it when shutdown starts so the load balancer
// stops routing before connections are drained.
func SetReady(ready bool) { draining.Store(!ready) }

// Handler exposes liveness and readiness endpoints.
type Handler struct {
	Checker      Checker
	Gateway      BreakerState
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness. An open gateway breaker is reported but does not fail readiness:
// callbacks must still be accepted while status checks are shed.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if draining.Load() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	if h.Checker == nil {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "dependencies unavailable"})
		return
	}
	ctx := r.Context()
	ok := true
	status := map[string]string{"db": "ok", "redis": "ok"}
	if err := h.Checker.PingDB(ctx, orDefault(h.DBTimeout, 500*time.Millisecond)); errors.Is(err, ErrSkipped) {
		status["db"] = "memory"
	} else if err != nil {
		status["db"] = err.Error()
		ok = false
	}
	if err := h.Checker.PingRedis(ctx, orDefault(h.RedisTimeout, 300*time.Millisecond)); err != nil {
		status["redis"] = err.Error()
		ok = false
	}
	if h.Gateway != nil {
		status["paytm"] = h.Gateway.State().String()
	}
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, status)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
