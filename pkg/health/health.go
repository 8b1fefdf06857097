// Package health exposes liveness and readiness probe endpoints backed by
// periodically executed checks.
//
// Liveness answers "is the process able to make progress" and readiness
// answers "should traffic be routed here". All checks share one background
// ticker goroutine; check results are cached between runs so probe handlers
// never block on a slow dependency.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes a single dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	// lastErr holds the result of the most recent run. Written only by the
	// ticker goroutine, read by probe handlers.
	lastErr atomic.Pointer[error]
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.lastErr.Store(&err)
}

func (c *check) failure() error {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	// Not yet run; treat as healthy so startup probes don't flap.
	return nil
}

// Health runs registered checks in the background and serves their cached
// results over HTTP.
type Health struct {
	mu        sync.Mutex
	liveness  []*check
	readiness []*check

	ready   atomic.Bool
	started atomic.Bool
	stop    context.CancelFunc
	done    chan struct{}
}

// New returns a Health with no checks registered. The service reports not
// ready until SetReady(true) is called.
func New() *Health {
	return &Health{done: make(chan struct{})}
}

// AddLivenessCheck registers a check that contributes to /livez. Must be
// called before Start.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, &check{name: name, timeout: timeout, fn: fn})
}

// AddReadinessCheck registers a check that contributes to /readyz. Must be
// called before Start.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, &check{name: name, timeout: timeout, fn: fn})
}

// Start launches the background goroutine that re-runs every registered
// check at the given interval. Checks also run once immediately so the first
// probe after Start sees real results.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	if !h.started.CompareAndSwap(false, true) {
		return
	}
	ctx, h.stop = context.WithCancel(ctx)

	h.mu.Lock()
	checks := make([]*check, 0, len(h.liveness)+len(h.readiness))
	checks = append(checks, h.liveness...)
	checks = append(checks, h.readiness...)
	h.mu.Unlock()

	go func() {
		defer close(h.done)
		for _, c := range checks {
			c.run(ctx)
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, c := range checks {
					c.run(ctx)
				}
			}
		}
	}()
}

// Stop cancels the background checker and waits for it to exit.
func (h *Health) Stop() {
	if h.stop == nil {
		return
	}
	h.stop()
	<-h.done
}

// SetReady flips the manual readiness gate. The gate is ANDed with the
// readiness checks: during shutdown SetReady(false) drains traffic even
// while dependencies are still healthy.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the manual gate is open and all readiness checks
// pass.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(h.collect(h.readiness)) == 0
}

type probeResponse struct {
	Status  string            `json:"status"`
	Details map[string]string `json:"details,omitempty"`
}

// LiveEndpoint is the HTTP handler for the liveness probe.
func (h *Health) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.collect(h.liveness))
}

// ReadyEndpoint is the HTTP handler for the readiness probe.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	failures := h.collect(h.readiness)
	if !h.ready.Load() && len(failures) == 0 {
		failures = map[string]string{"service": "not ready"}
	}
	h.respond(w, failures)
}

func (h *Health) collect(checks []*check) map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var failures map[string]string
	for _, c := range checks {
		if err := c.failure(); err != nil {
			if failures == nil {
				failures = make(map[string]string)
			}
			failures[c.name] = err.Error()
		}
	}
	return failures
}

func (h *Health) respond(w http.ResponseWriter, failures map[string]string) {
	resp := probeResponse{Status: "ok", Details: failures}
	code := http.StatusOK
	if len(failures) > 0 {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
