// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package status

import (
	"context"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
)

// AlertMonitor periodically inspects meter counts and logs an alert whenever
// the number of events observed during the last interval crosses the
// configured threshold for that meter. Thresholds are keyed by
// "<meterName>.<kind>", e.g. "Refocus.failure".
type AlertMonitor struct {
	logger     hclog.Logger
	status     *SystemStatus
	clock      clockwork.Clock
	interval   time.Duration
	thresholds map[string]float64

	previous map[string]int64
}

func NewAlertMonitor(status *SystemStatus, thresholds map[string]float64, interval time.Duration, clock clockwork.Clock, logger hclog.Logger) *AlertMonitor {
	return &AlertMonitor{
		logger:     logger.Named("alert"),
		status:     status,
		clock:      clock,
		interval:   interval,
		thresholds: thresholds,
		previous:   make(map[string]int64),
	}
}

// Run blocks, checking thresholds every interval until the context ends.
func (m *AlertMonitor) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.check()
		}
	}
}

// check compares per-interval deltas against the configured thresholds.
func (m *AlertMonitor) check() {
	for key, limit := range m.thresholds {
		current := m.status.counterByKey(key)
		delta := current - m.previous[key]
		m.previous[key] = current

		if float64(delta) >= limit {
			m.logger.Warn("meter threshold exceeded",
				"meter", key, "count", delta, "threshold", limit)
		}
	}
}

// counterByKey reads a counter by its composed "<name>.<kind>" key.
func (s *SystemStatus) counterByKey(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[key]
}
