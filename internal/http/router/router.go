package router

import (
	"github.com/gin-gonic/gin"

	"afterlife.app/publisher/internal/http/handler"
)

func SetupRoutes(router *gin.Engine, webhook *handler.WebhookHandler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	TelegramRouter(router.Group("/telegram"), webhook)
}

func TelegramRouter(rg *gin.RouterGroup, webhook *handler.WebhookHandler) {
	rg.POST("/webhook", webhook.Receive)
}
