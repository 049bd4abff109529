// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reasoner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metrics
// =============================================================================

var (
	providerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "honeypot_reasoner_provider_calls_total",
		Help: "Remote reasoner provider calls by schema and outcome.",
	}, []string{"schema", "outcome"})

	providerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "honeypot_reasoner_provider_latency_seconds",
		Help:    "Remote reasoner provider call latency by schema.",
		Buckets: prometheus.DefBuckets,
	}, []string{"schema"})

	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "honeypot_reasoner_fallbacks_total",
		Help: "Capability calls answered by the deterministic fallback.",
	}, []string{"stage"})
)

func observeProviderCall(schema string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	providerCallsTotal.WithLabelValues(schema, outcome).Inc()
	providerLatency.WithLabelValues(schema).Observe(elapsed.Seconds())
}
