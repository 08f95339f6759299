// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianGOAP/services/goap"
)

// ServiceName identifies the server in traces.
const ServiceName = "goap-service"

// RegisterRoutes registers the /v1/goap endpoints with rg.
//
// Endpoints:
//
//	POST   /v1/goap/process - Plan and execute a request
//	POST   /v1/goap/validate - Dry-run validation and pattern lookup
//	GET    /v1/goap/patterns - List learned patterns
//	GET    /v1/goap/patterns/:id - Get one pattern
//	DELETE /v1/goap/patterns/:id - Delete one pattern
//	GET    /v1/goap/metrics/snapshot - Aggregate request metrics
//	GET    /v1/goap/health - Liveness
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	g := rg.Group("/goap")
	g.POST("/process", h.HandleProcess)
	g.POST("/validate", h.HandleValidate)
	g.GET("/patterns", h.HandleListPatterns)
	g.GET("/patterns/:id", h.HandleGetPattern)
	g.DELETE("/patterns/:id", h.HandleDeletePattern)
	g.GET("/metrics/snapshot", h.HandleMetrics)
	g.GET("/health", h.HandleHealth)
}

// NewRouter builds the engine with recovery, tracing and the Prometheus
// scrape endpoint at /metrics.
func NewRouter(sys *goap.System, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(ServiceName))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	RegisterRoutes(router.Group("/v1"), NewHandlers(sys, logger))
	return router
}
