package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PendingCounter counts events still waiting to be relayed.
type PendingCounter interface {
	CountUnsentTradeOutbox(ctx context.Context) (int64, error)
}

type HealthStatus struct {
	Healthy           bool     `json:"healthy"`
	DatabaseConnected bool     `json:"database_connected"`
	NATSConnected     bool     `json:"nats_connected"`
	BreakerState      string   `json:"breaker_state"`
	PendingEvents     int64    `json:"pending_events"`
	Errors            []string `json:"errors"`
}

// HealthChecker reports on the relay's dependencies.
type HealthChecker struct {
	db        Pinger
	pending   PendingCounter
	nats      func() bool
	breaker   *BreakerPublisher
	threshold int64
}

// NewHealthChecker builds a checker. nats and breaker may be nil.
func NewHealthChecker(db Pinger, pending PendingCounter, nats func() bool, breaker *BreakerPublisher) *HealthChecker {
	return &HealthChecker{
		db:        db,
		pending:   pending,
		nats:      nats,
		breaker:   breaker,
		threshold: 1000,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{Healthy: true, Errors: []string{}}

	if err := h.db.PingContext(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
	} else {
		status.DatabaseConnected = true
	}

	if h.nats != nil {
		status.NATSConnected = h.nats()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	if h.breaker != nil {
		status.BreakerState = h.breaker.State()
		if status.BreakerState == "open" {
			status.Healthy = false
			status.Errors = append(status.Errors, "publisher circuit breaker is open")
		}
	}

	if status.DatabaseConnected {
		pending, err := h.pending.CountUnsentTradeOutbox(ctx)
		if err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("failed to count pending events: %v", err))
		} else {
			status.PendingEvents = pending
			if pending > h.threshold {
				status.Errors = append(status.Errors, fmt.Sprintf("high pending event count: %d", pending))
			}
		}
	}
	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}
