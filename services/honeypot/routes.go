// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package honeypot

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the engagement API with the router.
//
// Description:
//
//	Registers all /api/* endpoints with the given Gin router group. The
//	router group should already have any required middleware applied.
//
// Endpoints:
//
//	POST /api/message - Process one inbound message
//	GET  /api/health - Liveness probe
//	GET  /api/ready - Readiness probe with session count
//	GET  /api/debug/session/:id - Inspect canonical session state
//
// Usage:
//
//	handlers := honeypot.NewHandlers(eng, store)
//	api := router.Group("/api")
//	honeypot.RegisterRoutes(api, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rg.POST("/message", handlers.HandleMessage)

	rg.GET("/health", handlers.HandleHealth)
	rg.GET("/ready", handlers.HandleReady)

	debug := rg.Group("/debug")
	{
		debug.GET("/session/:id", handlers.HandleSession)
	}
}
