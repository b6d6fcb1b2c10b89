// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const tracerName = "aliaspath.resolve"

const (
	outcomeFound     = "found"
	outcomeMissing   = "missing"
	outcomeDuplicate = "duplicate"
	outcomeExcluded  = "excluded"
)

// resolveCandidatesTotal counts probed candidate paths by outcome.
//
// Labels:
//   - outcome: "found", "missing", "duplicate", "excluded"
var resolveCandidatesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "aliaspath",
		Subsystem: "resolve",
		Name:      "candidates_total",
		Help:      "Candidate paths probed during alias resolution, by outcome.",
	},
	[]string{"outcome"},
)
