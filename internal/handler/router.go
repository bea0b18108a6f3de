package handler

import (
	"net/http"

	"github.com/SergeiKhy/shortlink/internal/middleware"
	"github.com/SergeiKhy/shortlink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func NewRouter(
	linkService service.LinkService,
	baseURL string,
	logger *zap.Logger,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.Default()

	// Middleware для логгирования
	router.Use(func(c *gin.Context) {
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
		)
		c.Next()
	})

	linkHandler := NewLinkHandler(linkService, baseURL, logger)

	// Идентичность владельца приходит от внешнего identity-сервиса
	requireOwner := middleware.NewIdentity(middleware.IdentityConfig{}).Middleware()
	optionalOwner := middleware.NewIdentity(middleware.IdentityConfig{Optional: true}).Middleware()

	router.GET("/api/v1/health", HealthCheck)

	api := router.Group("/api/url")
	{
		// Создание доступно и анонимно, и от имени владельца
		api.POST("/shorten", optionalOwner, linkHandler.CreateLink)

		// Операции владельца
		api.GET("/my-urls", requireOwner, linkHandler.MyLinks)
		api.GET("/:shortID/stats", requireOwner, linkHandler.GetStats)
		api.PATCH("/:shortID", requireOwner, linkHandler.UpdateLink)
		api.DELETE("/:shortID", requireOwner, linkHandler.DeleteLink)
	}

	// Редирект (корневой путь) - публичный
	router.GET("/:shortID", linkHandler.Redirect)

	return router
}

// HealthCheck отвечает на probe-запросы
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "shortlink",
	})
}
