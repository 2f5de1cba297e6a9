package main

import (
	"net/http"

	"voiceagent-platform/internal/auth"
	"voiceagent-platform/internal/calls"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps appDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":             "ok",
			"provider":           deps.provider.Name(),
			"live_sessions":      deps.registry.Count(),
			"unknown_event_refs": deps.lifecycle.UnknownRefCount(),
		})
	})

	// Provider webhooks (public path, shared-secret header checked inside).
	webhook := calls.WebhookHandler{Lifecycle: deps.lifecycle, Secret: deps.cfg.Provider.WebhookSecret}
	r.POST("/webhooks/voice", webhook.Handle)

	// Cron-driven scheduler trigger.
	internal := r.Group("/internal")
	internal.Use(auth.RequireSharedSecret(deps.cfg.Scheduler.TriggerToken))
	{
		internal.POST("/scheduler/tick", deps.handlers.TickScheduler)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(deps.authManager))
	{
		callGroup := v1.Group("/calls")
		{
			callGroup.POST("/:call_id/control/inject", deps.handlers.InjectMessage)
			callGroup.POST("/:call_id/control/end", deps.handlers.EndCall)
		}

		v1.GET("/audit/dispatches", deps.handlers.ExportDispatches)
		v1.POST("/scheduling/slots", deps.handlers.QuerySlots)
	}
}
