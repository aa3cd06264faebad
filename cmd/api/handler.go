package api

import (
	authUsecase "fupm-backend/internal/auth/usecase"
	requestDelivery "fupm-backend/internal/request/delivery"
	"fupm-backend/pkg/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	authUsecase    authUsecase.AuthUsecase
	requestHandler *requestDelivery.RequestHandler
	config         *config.Config
	logger         *zap.Logger
}

func NewHandler(authUc authUsecase.AuthUsecase, requestHandler *requestDelivery.RequestHandler, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		authUsecase:    authUc,
		requestHandler: requestHandler,
		config:         cfg,
		logger:         logger,
	}
}

// Router builds the gin engine with CORS and every route mounted.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.requestHandler, h.config)
	return r
}
