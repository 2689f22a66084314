// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graphd

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianGraph/services/graphd/telemetry"
)

// RouterConfig controls NewRouter.
type RouterConfig struct {
	// ServiceName names otelgin spans.
	ServiceName string

	// RateLimit is requests per second on push and pull. Zero disables.
	RateLimit float64
	RateBurst int

	// MaxBodyBytes caps push and pull bodies. Zero disables.
	MaxBodyBytes int64

	// MetricsHandler, when set, is mounted at GET /metrics.
	MetricsHandler http.Handler

	// HTTPMetrics, when set, records request metrics.
	HTTPMetrics *telemetry.HTTPMetrics

	Logger *slog.Logger
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(cfg RouterConfig, h *Handlers) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoMethod(HandleMethodNotAllowed)
	router.NoRoute(HandleNotFound)

	router.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}
	if cfg.HTTPMetrics != nil {
		router.Use(telemetry.GinMetrics(cfg.HTTPMetrics))
	}
	router.Use(RequestContext(cfg.Logger))

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	RegisterRoutes(router, h, limiter, cfg.MaxBodyBytes)
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}
	return router
}

// RegisterRoutes registers all graph routes.
//
// Endpoints:
//
//	GET  /                  - Availability probe
//	POST /push              - Merge a push document
//	POST /pull              - Project a pull query
//	POST /v1/graph/push     - Same as /push
//	POST /v1/graph/pull     - Same as /pull
//	GET  /v1/graph/health   - Liveness with node count
//	GET  /v1/graph/ready    - Readiness after journal load
//	GET  /v1/graph/stats    - Node, edge and rights counts
//	GET  /v1/graph/changes  - WebSocket change feed
func RegisterRoutes(router *gin.Engine, h *Handlers, limiter *rate.Limiter, maxBodyBytes int64) {
	router.GET("/", h.HandleRoot)

	write := []gin.HandlerFunc{RateLimit(limiter), LimitBody(maxBodyBytes)}

	router.POST("/push", append(write, h.HandlePush)...)
	router.POST("/pull", append(write, h.HandlePull)...)

	v1 := router.Group("/v1/graph")
	{
		v1.POST("/push", append(write, h.HandlePush)...)
		v1.POST("/pull", append(write, h.HandlePull)...)
		v1.GET("/health", h.HandleHealth)
		v1.GET("/ready", h.HandleReady)
		v1.GET("/stats", h.HandleStats)
		v1.GET("/changes", h.HandleChanges)
	}
}
