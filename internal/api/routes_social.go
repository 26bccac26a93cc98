package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/regprofile/internal/handlers"
)

func registerSocialRoutes(profile *gin.RouterGroup, handler *handlers.SocialProfileHandler, limiter gin.HandlerFunc) {
	social := profile.Group("/social")
	social.Use(limiter)
	{
		social.POST("/link-callback", handler.LinkCallback)
		social.GET("/status", handler.Status)
		social.POST("/disconnect", handler.Disconnect)
		social.GET("/history", handler.History)
	}
}

func registerOAuthRoutes(r *gin.Engine, handler *handlers.OAuthHandler, requireAuth, limiter gin.HandlerFunc) {
	flow := r.Group("/oauth/:provider")
	flow.Use(limiter)
	{
		flow.GET("/start", requireAuth, handler.Start)
		flow.GET("/callback", handler.Callback)
	}
}
