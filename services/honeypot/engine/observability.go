// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "honeypot_engine_turns_total",
		Help: "Turns processed by the engagement engine.",
	})

	turnLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "honeypot_engine_turn_latency_seconds",
		Help:    "End-to-end latency of one engagement turn.",
		Buckets: prometheus.DefBuckets,
	})

	sessionsReported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "honeypot_engine_sessions_reported_total",
		Help: "Sessions whose final report was delivered.",
	})
)
