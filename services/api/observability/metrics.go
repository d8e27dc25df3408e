// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability holds the Prometheus metrics shared by the API
// service and the analysis pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "contractguard"

var (
	// AnalysesTotal counts contract analysis runs by outcome
	// (reviewed, needs_negotiation, partial_failure, failed).
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analyses_total",
		Help:      "Contract analysis pipeline runs by outcome.",
	}, []string{"outcome"})

	// ClausesScoredTotal counts per-clause scoring attempts by outcome
	// (ok, failed).
	ClausesScoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "clauses_scored_total",
		Help:      "Clause risk scoring attempts by outcome.",
	}, []string{"outcome"})

	// RecommendationFallbacksTotal counts clauses whose recommendations came
	// (fully or partly) from the static library.
	RecommendationFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recommendation_fallbacks_total",
		Help:      "Clauses recommended from the static library fallback.",
	})

	// NegotiationRoundsTotal counts negotiation round transitions by action
	// (continue, accept, conclude, stall).
	NegotiationRoundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "negotiation_rounds_total",
		Help:      "Negotiation round transitions by next action.",
	}, []string{"action"})

	// RequestDuration observes HTTP handler latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)
