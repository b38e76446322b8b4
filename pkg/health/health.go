// Package health serves Kubernetes-style liveness and readiness probes.
//
// All registered checks run from a single scheduler goroutine on a fixed
// interval. A check flips to unhealthy after three consecutive failures and
// back to healthy on the first success, so a single slow probe does not
// bounce the service out of rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const failureThreshold = 3

// CheckFunc reports on one dependency. Nil means healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	// fails is only touched by the scheduler goroutine.
	fails int
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.lastErr.Store(&err)

	if err != nil {
		c.fails++
		if c.fails >= failureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.fails = 0
	c.healthy.Store(true)
}

func (c *check) failure() (string, bool) {
	if c.healthy.Load() {
		return "", false
	}
	if p := c.lastErr.Load(); p != nil && *p != nil {
		return (*p).Error(), true
	}
	return "check is unhealthy", true
}

// Service tracks liveness and readiness checks. The zero value is not
// usable; call New.
type Service struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New creates a Service in the not-ready state. Call SetReady(true) once
// initialization is complete.
func New() *Service {
	return &Service{}
}

func newCheck(name string, timeout time.Duration, fn CheckFunc) *check {
	c := &check{name: name, timeout: timeout, fn: fn}
	c.healthy.Store(true)
	return c
}

// AddLivenessCheck registers a process-level check, like goroutine count.
func (s *Service) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveness = append(s.liveness, newCheck(name, timeout, fn))
}

// AddReadinessCheck registers a dependency check, like store connectivity.
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readiness = append(s.readiness, newCheck(name, timeout, fn))
}

// Start launches the scheduler goroutine. Register all checks first.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	checks := make([]*check, 0, len(s.liveness)+len(s.readiness))
	checks = append(checks, s.liveness...)
	checks = append(checks, s.readiness...)
	s.mu.Unlock()

	go func() {
		runAll := func() {
			for _, c := range checks {
				c.run(ctx)
			}
		}
		runAll()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runAll()
			}
		}
	}()
}

// Stop cancels the scheduler. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// SetReady flips the manual readiness gate. Set false during graceful
// shutdown to drain traffic before the listener closes.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// IsReady reports whether the gate is open and every readiness check passes.
func (s *Service) IsReady() bool {
	if !s.ready.Load() {
		return false
	}

	s.mu.RLock()
	checks := s.readiness
	s.mu.RUnlock()

	for _, c := range checks {
		if !c.healthy.Load() {
			return false
		}
	}
	return true
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint handles /livez.
func (s *Service) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	checks := make([]*check, len(s.liveness))
	copy(checks, s.liveness)
	s.mu.RUnlock()

	writeStatus(w, failures(checks))
}

// ReadyEndpoint handles /readyz.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	checks := make([]*check, len(s.readiness))
	copy(checks, s.readiness)
	s.mu.RUnlock()

	fails := failures(checks)
	if !s.ready.Load() {
		fails["_readiness"] = "service is not ready"
	}
	writeStatus(w, fails)
}

func failures(checks []*check) map[string]string {
	fails := make(map[string]string)
	for _, c := range checks {
		if msg, failed := c.failure(); failed {
			fails[c.name] = msg
		}
	}
	return fails
}

func writeStatus(w http.ResponseWriter, fails map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(fails) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = fails
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
