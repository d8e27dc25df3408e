// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/contractguard-ai/contractguard/services/agent"
	"github.com/contractguard-ai/contractguard/services/api/handlers"
	"github.com/contractguard-ai/contractguard/services/api/middleware"
	"github.com/contractguard-ai/contractguard/services/storage"
)

// SetupRoutes registers the full API surface. An empty apiToken puts the auth
// middleware into development mode.
func SetupRoutes(router *gin.Engine, orch *agent.Orchestrator, store *storage.Store, apiToken string) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(middleware.Auth(apiToken))
	{
		contracts := v1.Group("/contracts")
		{
			contracts.POST("", handlers.CreateContract(store))
			contracts.GET("", handlers.ListContracts(store))
			contracts.GET("/:contractId", handlers.GetContract(store))
			contracts.DELETE("/:contractId", handlers.DeleteContract(store))
			contracts.POST("/:contractId/analyze", handlers.AnalyzeContract(orch))
			contracts.POST("/:contractId/negotiate", handlers.StartNegotiation(orch))
		}
		negotiations := v1.Group("/negotiations")
		{
			negotiations.GET("/:sessionId", handlers.GetNegotiation(store))
			negotiations.POST("/:sessionId/sent", handlers.MarkRoundSent(orch))
			negotiations.POST("/:sessionId/respond", handlers.RespondNegotiation(orch))
		}
	}
}
