package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/askdocs/askdocs/engine/core"
	"github.com/askdocs/askdocs/engine/knowledge"
	"github.com/gin-gonic/gin"
)

type askHandler struct {
	knowledge *knowledge.Service
}

type askRequest struct {
	Question  string `json:"question" binding:"required"`
	SessionID string `json:"session_id"`
}

// ask streams a generated answer as server-sent events inside the caller's
// conversation thread. The first event carries the session id so clients can
// continue the thread; a client disconnect cancels the request context,
// which stops generation upstream.
func (h *askHandler) ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}
	caller, ok := callerKey(c)
	if !ok {
		return
	}

	sessionID, stream, err := h.knowledge.Ask(c.Request.Context(), caller.ID, core.ID(req.SessionID), req.Question)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	announced := false
	c.Stream(func(_ io.Writer) bool {
		if !announced {
			announced = true
			c.SSEvent("session", sessionID.String())
			return true
		}
		frag, ok := <-stream
		if !ok {
			c.SSEvent("done", "")
			return false
		}
		if frag.Err != nil {
			c.SSEvent("error", errorEvent(frag.Err))
			return false
		}
		c.SSEvent("token", frag.Text)
		return true
	})
}

func errorEvent(err error) gin.H {
	var coded *core.Error
	if errors.As(err, &coded) {
		return gin.H{"error": coded.Error(), "code": coded.Code}
	}
	return gin.H{"error": "generation failed"}
}
