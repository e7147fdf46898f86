package server

import (
	"net/http"

	"github.com/askdocs/askdocs/engine/auth"
	"github.com/askdocs/askdocs/engine/auth/model"
	"github.com/askdocs/askdocs/engine/core"
	"github.com/askdocs/askdocs/engine/knowledge"
	"github.com/gin-gonic/gin"
)

// callerKey returns the authenticated key record or aborts with 401. The
// authentication middleware always stores it, so a miss means the route was
// registered outside the authenticated group.
func callerKey(c *gin.Context) (*model.APIKey, bool) {
	key, ok := auth.KeyFromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
	}
	return key, ok
}

type sessionHandlers struct {
	knowledge *knowledge.Service
}

func (h *sessionHandlers) list(c *gin.Context) {
	caller, ok := callerKey(c)
	if !ok {
		return
	}
	sessions, err := h.knowledge.ListSessions(c.Request.Context(), caller.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *sessionHandlers) messages(c *gin.Context) {
	caller, ok := callerKey(c)
	if !ok {
		return
	}
	messages, err := h.knowledge.SessionMessages(c.Request.Context(), core.ID(c.Param("id")), caller.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *sessionHandlers) remove(c *gin.Context) {
	caller, ok := callerKey(c)
	if !ok {
		return
	}
	if err := h.knowledge.DeleteSession(c.Request.Context(), core.ID(c.Param("id")), caller.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
