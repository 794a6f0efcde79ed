// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package person

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status values for operation metrics.
const (
	StatusSuccess  = "success"
	StatusInvalid  = "invalid"
	StatusNotFound = "not_found"
	StatusConflict = "conflict"
	StatusError    = "error"
)

// OperationsTotal counts lifecycle operations by action and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var OperationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sitter_person_operations_total",
		Help: "Total number of person lifecycle operations",
	},
	[]string{"action", "status"},
)

// OperationDuration observes lifecycle operation latency.
// Use RegisterMetrics to register this with a Prometheus registry.
var OperationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "sitter_person_operation_duration_seconds",
		Help:    "Person lifecycle operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"action"},
)

// ProcessedFailures counts processed-stage hook failures that were swallowed.
// Use RegisterMetrics to register this with a Prometheus registry.
var ProcessedFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sitter_person_processed_failures_total",
		Help: "Total number of processed hook failures after commit",
	},
	[]string{"hook", "action"},
)

// RegisterMetrics registers person package metrics with the given registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(OperationsTotal)
	reg.MustRegister(OperationDuration)
	reg.MustRegister(ProcessedFailures)
}

func recordOperation(action Action, err error, duration time.Duration) {
	OperationsTotal.WithLabelValues(string(action), statusOf(err)).Inc()
	OperationDuration.WithLabelValues(string(action)).Observe(duration.Seconds())
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrValidation):
		return StatusInvalid
	case errors.Is(err, ErrNotFound):
		return StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return StatusConflict
	default:
		return StatusError
	}
}
