package api

import (
	"net/http"

	"fupm-backend/internal/auth/delivery"
	authUsecase "fupm-backend/internal/auth/usecase"
	requestDelivery "fupm-backend/internal/request/delivery"
	"fupm-backend/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, requestHandler *requestDelivery.RequestHandler, cfg *config.Config) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Periodic trigger, guarded by the shared cron secret
		cron := api.Group("/cron")
		cron.Use(delivery.CronAuthMiddleware(cfg.CronSecret))
		{
			cron.GET("", requestHandler.Cron)
			cron.POST("", requestHandler.Cron)
		}

		api.POST("/sync", delivery.AuthMiddleware(authUsecase), requestHandler.Sync)

		// Request routes (protected)
		requests := api.Group("/requests")
		requests.Use(delivery.AuthMiddleware(authUsecase))
		{
			requests.GET("", requestHandler.ListRequests)
			requests.GET("/:id", requestHandler.GetRequest)
			requests.PATCH("/:id", requestHandler.UpdateRequest)
			requests.DELETE("/:id", requestHandler.DeleteRequest)
			requests.POST("/:id/followup", requestHandler.SendFollowup)
		}

		api.GET("/voices", delivery.AuthMiddleware(authUsecase), requestHandler.ListVoices)

		// Settings routes (protected)
		settings := api.Group("/settings")
		settings.Use(delivery.AuthMiddleware(authUsecase))
		{
			settings.GET("", requestHandler.GetSettings)
			settings.PATCH("", requestHandler.UpdateSettings)

			// Runtime configuration of the local model fallback, process-wide
			ollama := settings.Group("/ollama")
			ollama.Use(delivery.AdminMiddleware(cfg.AdminEmails))
			{
				ollama.GET("", GetOllamaSettings)
				ollama.PUT("", UpdateOllamaSettings)
				ollama.POST("/test", TestOllamaConnection)
			}
		}
	}
}
