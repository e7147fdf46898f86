package server

import (
	"net/http"

	"github.com/askdocs/askdocs/engine/auth"
	"github.com/askdocs/askdocs/engine/auth/model"
	"github.com/askdocs/askdocs/engine/auth/uc"
	"github.com/askdocs/askdocs/engine/core"
	"github.com/gin-gonic/gin"
)

type keyHandlers struct {
	issue  *uc.Issue
	list   *uc.List
	revoke *uc.Revoke
}

type createKeyRequest struct {
	Role  string `json:"role" binding:"required"`
	Label string `json:"label"`
}

// create issues a new key. The plaintext secret appears in this response and
// nowhere else.
func (h *keyHandlers) create(c *gin.Context) {
	var req createKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role is required"})
		return
	}
	role := model.Role(req.Role)
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	issuer, ok := auth.KeyFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}
	key, plaintext, err := h.issue.Execute(c.Request.Context(), role, req.Label, issuer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":      key.ID,
		"role":    key.Role,
		"label":   key.Label,
		"api_key": plaintext,
	})
}

func (h *keyHandlers) index(c *gin.Context) {
	keys, err := h.list.Execute(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

func (h *keyHandlers) remove(c *gin.Context) {
	if err := h.revoke.Execute(c.Request.Context(), core.ID(c.Param("id"))); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
