// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lookup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	queryLiteral    = "literal"
	queryIdentifier = "identifier"
	queryImport     = "import"
	queryComplete   = "complete"
)

// lookupsTotal counts lookups by query and whether anything was found.
//
// Labels:
//   - query: "literal", "identifier", "import" or "complete"
//   - result: "hit" or "miss"
var lookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "aliaspath",
		Subsystem: "lookup",
		Name:      "requests_total",
		Help:      "Definition and completion lookups by outcome.",
	},
	[]string{"query", "result"},
)

func recordLookup(query string, results int) {
	result := "hit"
	if results == 0 {
		result = "miss"
	}
	lookupsTotal.WithLabelValues(query, result).Inc()
}
