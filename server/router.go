package server

import (
	"net/http"

	"github.com/askdocs/askdocs/engine/auth"
	"github.com/askdocs/askdocs/engine/auth/model"
	"github.com/gin-gonic/gin"
)

func registerRoutes(router *gin.Engine, deps Deps) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authn := auth.NewMiddleware(deps.Gate)
	api := router.Group("/api/v1")
	api.Use(authn.Authenticate())

	docs := &documentHandlers{knowledge: deps.Knowledge}
	api.POST("/documents", docs.upload)
	api.POST("/documents/text", docs.ingestText)
	api.GET("/documents", docs.list)
	api.GET("/documents/:id", docs.get)
	api.DELETE("/documents/:id", docs.remove)

	ask := &askHandler{knowledge: deps.Knowledge}
	api.POST("/ask", ask.ask)

	sessions := &sessionHandlers{knowledge: deps.Knowledge}
	api.GET("/sessions", sessions.list)
	api.GET("/sessions/:id/messages", sessions.messages)
	api.DELETE("/sessions/:id", sessions.remove)

	keys := &keyHandlers{issue: deps.Issue, list: deps.List, revoke: deps.Revoke}
	admin := api.Group("/keys")
	admin.Use(authn.RequireRole(model.RoleAdmin))
	admin.POST("", keys.create)
	admin.GET("", keys.index)
	admin.DELETE("/:id", keys.remove)

	super := api.Group("")
	super.Use(authn.RequireRole(model.RoleSuperadmin))
	super.POST("/reset", docs.reset)
}
