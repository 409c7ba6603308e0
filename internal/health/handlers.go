package health

import (
	"context"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/gmeppo/eppo-proposals/internal/common"
)

// Probe checks a single dependency.
type Probe func(ctx context.Context) error

// Check pairs a probe with its timeout.
type Check struct {
	Probe   Probe
	Timeout time.Duration
}

var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady toggles readiness, typically to false once shutdown begins.
func SetReady(v bool) {
	ready.Store(v)
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checks map[string]Check
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every dependency probe and reports 503 when any fails or the
// process is draining.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	}
	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		check := h.Checks[name]
		status[name] = "ok"
		if err := run(r.Context(), check); err != nil {
			status[name] = err.Error()
			healthy = false
		}
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, status)
}

func run(ctx context.Context, check Check) error {
	if check.Probe == nil {
		return nil
	}
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return check.Probe(ctx)
}
