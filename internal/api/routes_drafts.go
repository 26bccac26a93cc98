package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/regprofile/internal/handlers"
)

func registerDraftRoutes(profile *gin.RouterGroup, handler *handlers.DraftHandler) {
	draft := profile.Group("/draft")
	{
		draft.POST("", handler.Save)
		draft.GET("/:section", handler.Get)
		draft.DELETE("/:section", handler.Delete)
		draft.POST("/:section/applied", handler.MarkApplied)
	}
}
