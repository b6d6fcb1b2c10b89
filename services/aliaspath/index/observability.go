// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "aliaspath.index"

const (
	statusSuccess    = "success"
	statusError      = "error"
	statusSuperseded = "superseded"
)

var (
	// buildsTotal counts finished builds.
	//
	// Labels:
	//   - status: "success", "error" or "superseded"
	buildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aliaspath",
			Subsystem: "index",
			Name:      "builds_total",
			Help:      "Symbol index builds by outcome.",
		},
		[]string{"status"},
	)

	// buildDuration measures wall time of one build.
	buildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "aliaspath",
			Subsystem: "index",
			Name:      "build_duration_seconds",
			Help:      "Duration of symbol index builds in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// filesSkippedTotal counts resolved files left out of a build.
	//
	// Labels:
	//   - reason: a SkipReason value
	filesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aliaspath",
			Subsystem: "index",
			Name:      "files_skipped_total",
			Help:      "Resolved files that contributed no tokens, by reason.",
		},
		[]string{"reason"},
	)

	// tokenCacheTotal counts token cache lookups.
	//
	// Labels:
	//   - result: "hit", "miss" or "error"
	tokenCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aliaspath",
			Subsystem: "index",
			Name:      "token_cache_requests_total",
			Help:      "Token cache lookups by result.",
		},
		[]string{"result"},
	)

	// indexTokens is the size of the published index.
	indexTokens = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "aliaspath",
			Subsystem: "index",
			Name:      "tokens",
			Help:      "Tokens in the currently published symbol index.",
		},
	)
)

func startBuildSpan(ctx context.Context, documentPath string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "index.Build",
		trace.WithAttributes(attribute.String("index.document", documentPath)),
	)
}

func finishBuild(span trace.Span, start time.Time, idx *SymbolIndex, err error) {
	buildDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		buildsTotal.WithLabelValues(statusError).Inc()
		return
	}
	stats := idx.Stats()
	span.SetAttributes(
		attribute.String("index.build_id", idx.BuildID()),
		attribute.Int("index.tokens", stats.TotalTokens),
		attribute.Int("index.files", stats.FileCount),
		attribute.Int("index.skipped", stats.SkippedCount),
	)
	buildsTotal.WithLabelValues(statusSuccess).Inc()
}
