// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autoyou_session_ops_total",
		Help: "Total session store operations by operation and status",
	}, []string{"op", "status"})

	appendEventDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "autoyou_session_append_event_duration_seconds",
		Help:    "AppendEvent duration in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	interactionsDerivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autoyou_session_interactions_derived_total",
		Help: "Interaction facts derived at append time by kind",
	}, []string{"kind"})

	analyticsQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autoyou_analytics_query_duration_seconds",
		Help:    "Analytics query duration in seconds",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5},
	}, []string{"query"})
)
