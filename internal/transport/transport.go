package transport

import (
	"lotteryplus/internal/transport/middleware"

	"github.com/gin-gonic/gin"
)

// InitRoutes builds the router: the public ticket API, the secret-guarded
// payment webhook and the token-guarded operator endpoints.
func InitRoutes(ticketHandler *TicketHandler, webhookHandler *WebhookHandler, adminHandler *AdminHandler, webhookSecret, adminToken string) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	api := router.Group("/api/v1")
	{
		tickets := api.Group("/tickets")
		{
			tickets.POST("/reserve", ticketHandler.Reserve)
			tickets.GET("/:owner", ticketHandler.OwnerTickets)
		}

		api.GET("/leaderboard", ticketHandler.Leaderboard)
		api.GET("/draws", ticketHandler.Draws)

		admin := api.Group("/admin")
		admin.Use(middleware.AdminToken(adminToken))
		{
			admin.POST("/draw", adminHandler.Draw)
			admin.GET("/status", adminHandler.Status)
		}
	}

	webhook := router.Group("/webhook")
	webhook.Use(middleware.WebhookSecret(webhookSecret))
	{
		webhook.POST("/payments", webhookHandler.HandlePaymentEvent)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return router
}
