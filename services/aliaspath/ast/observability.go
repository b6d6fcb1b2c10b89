// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

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

const tracerName = "aliaspath.ast"

const (
	parserScript = "script"
	parserStyle  = "style"
)

var (
	// parseDuration measures time spent parsing one file.
	//
	// Labels:
	//   - parser: "script" or "style"
	//   - status: "success" or "error"
	parseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aliaspath",
			Subsystem: "parse",
			Name:      "duration_seconds",
			Help:      "Duration of symbol extraction per file in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"parser", "status"},
	)

	// parseTokensTotal counts tokens emitted per parser.
	parseTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aliaspath",
			Subsystem: "parse",
			Name:      "tokens_total",
			Help:      "Symbol tokens emitted by the parsers.",
		},
		[]string{"parser"},
	)

	// recoveredTotal counts constructs whose extraction panicked and was
	// skipped.
	recoveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aliaspath",
			Subsystem: "parse",
			Name:      "recovered_total",
			Help:      "Constructs skipped after a recovered extraction failure.",
		},
		[]string{"parser"},
	)
)

func startParseSpan(ctx context.Context, parser, filePath string, size int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "ast."+parser+".Parse",
		trace.WithAttributes(
			attribute.String("parse.parser", parser),
			attribute.String("parse.file", filePath),
			attribute.Int("parse.size_bytes", size),
		),
	)
}

func finishParse(span trace.Span, parser string, start time.Time, tokens int, err error) {
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Int("parse.tokens", tokens))
	parseDuration.WithLabelValues(parser, status).Observe(time.Since(start).Seconds())
	if tokens > 0 {
		parseTokensTotal.WithLabelValues(parser).Add(float64(tokens))
	}
}
