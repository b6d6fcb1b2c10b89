// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lsp

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

const tracerName = "aliaspath.lsp"

var (
	// messagesTotal counts handled messages.
	//
	// Labels:
	//   - method: the JSON-RPC method
	//   - status: "ok" or "error"
	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aliaspath",
			Subsystem: "lsp",
			Name:      "messages_total",
			Help:      "Language server messages by method and outcome.",
		},
		[]string{"method", "status"},
	)

	// messageDuration measures handling time per method.
	//
	// Labels:
	//   - method: the JSON-RPC method
	messageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aliaspath",
			Subsystem: "lsp",
			Name:      "message_duration_seconds",
			Help:      "Time to handle a language server message.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method"},
	)
)

// knownMethods bounds the method label; anything else is "other".
var knownMethods = map[string]struct{}{
	methodInitialize:       {},
	methodInitialized:      {},
	methodShutdown:         {},
	methodExit:             {},
	methodDidOpen:          {},
	methodDidChange:        {},
	methodDidClose:         {},
	methodDidChangeConfig:  {},
	methodDidChangeFolders: {},
	methodDefinition:       {},
	methodCompletion:       {},
}

func methodLabel(method string) string {
	if _, ok := knownMethods[method]; ok {
		return method
	}
	return "other"
}

func startMessageSpan(ctx context.Context, msg Message) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "lsp.Handle",
		trace.WithAttributes(
			attribute.String("lsp.method", msg.Method),
			attribute.Bool("lsp.request", msg.IsRequest()),
		),
	)
}

func finishMessage(span trace.Span, method string, start time.Time, rerr *ResponseError) {
	label := methodLabel(method)
	messageDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if rerr != nil {
		span.SetStatus(codes.Error, rerr.Message)
		span.SetAttributes(attribute.Int("lsp.error_code", rerr.Code))
		messagesTotal.WithLabelValues(label, "error").Inc()
		return
	}
	messagesTotal.WithLabelValues(label, "ok").Inc()
}
