// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package status exposes named meters and timers for the ETL pipeline. It is
// a thin facade over go-metrics so processors never talk to the sink
// directly; everything here is side-effect free to the rest of the system.
package status

import (
	"fmt"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	metrics "github.com/hashicorp/go-metrics"
)

// MeterType labels the terminal outcome of a processor operation.
type MeterType string

const (
	MeterSuccess     MeterType = "success"
	MeterFailure     MeterType = "failure"
	MeterNoData      MeterType = "no_data"
	MeterAuthFailure MeterType = "authentication_failure"
)

// SystemStatus tracks named counters and timers. Counts are kept locally for
// alert checks and forwarded to the process-wide go-metrics sink.
type SystemStatus struct {
	logger hclog.Logger

	mu       sync.Mutex
	counters map[string]int64
}

func New(logger hclog.Logger) *SystemStatus {
	return &SystemStatus{
		logger:   logger.Named("status"),
		counters: make(map[string]int64),
	}
}

// Meter marks one event of the given kind under the named meter.
func (s *SystemStatus) Meter(name string, kind MeterType) {
	metrics.IncrCounterWithLabels([]string{"meter", string(kind)}, 1,
		[]metrics.Label{{Name: "processor", Value: name}})

	s.mu.Lock()
	s.counters[meterKey(name, kind)]++
	s.mu.Unlock()
}

// Timer returns a running timing context for the named operation. Callers
// must Stop it.
func (s *SystemStatus) Timer(name, op string) *Timing {
	return &Timing{
		start: time.Now(),
		labels: []metrics.Label{
			{Name: "processor", Value: name},
			{Name: "op", Value: op},
		},
	}
}

// Counter returns the current count for a meter. Used by alert checks and
// tests.
func (s *SystemStatus) Counter(name string, kind MeterType) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[meterKey(name, kind)]
}

// Timing measures the duration of a single operation.
type Timing struct {
	start  time.Time
	labels []metrics.Label
}

func (t *Timing) Stop() {
	metrics.MeasureSinceWithLabels([]string{"timer"}, t.start, t.labels)
}

func meterKey(name string, kind MeterType) string {
	return fmt.Sprintf("%s.%s", name, kind)
}
