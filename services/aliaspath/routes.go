// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package aliaspath

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RegisterRoutes registers the alias path routes under rg.
//
// Description:
//
//	Creates an /aliaspath group with the following endpoints:
//
//	POST /v1/aliaspath/resolve - Resolve a module specifier to files
//	POST /v1/aliaspath/imports - List a document's import references
//	POST /v1/aliaspath/symbols - Parse one file into tokens
//	POST /v1/aliaspath/index - Build the symbol index of a document
//	POST /v1/aliaspath/definition - Go to definition at a position
//	POST /v1/aliaspath/complete - Completion at a position
//
// Health Endpoints:
//
//	GET  /v1/aliaspath/health - Health check
//
// Example:
//
//	svc, _ := aliaspath.NewService(aliaspath.DefaultServiceConfig())
//	handlers := aliaspath.NewHandlers(svc)
//
//	v1 := router.Group("/v1")
//	aliaspath.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	ap := rg.Group("/aliaspath")
	{
		ap.POST("/resolve", handlers.HandleResolve)
		ap.POST("/imports", handlers.HandleImports)
		ap.POST("/symbols", handlers.HandleSymbols)

		ap.POST("/index", handlers.HandleIndex)
		ap.POST("/definition", handlers.HandleDefinition)
		ap.POST("/complete", handlers.HandleComplete)

		ap.GET("/health", handlers.HandleHealth)
	}
}

// NewRouter builds the complete HTTP router: recovery, tracing middleware,
// the /metrics endpoint and the /v1 routes. debug adds request logging.
func NewRouter(handlers *Handlers, debug bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("aliaspath"))
	if debug {
		router.Use(gin.Logger())
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}
