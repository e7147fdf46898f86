package server

import (
	"errors"
	"net/http"

	"github.com/askdocs/askdocs/engine/core"
	"github.com/gin-gonic/gin"
)

var codeStatus = map[string]int{
	core.CodeUnsupportedFormat:   http.StatusUnsupportedMediaType,
	core.CodeProviderUnavailable: http.StatusBadGateway,
	core.CodeProviderTimeout:     http.StatusGatewayTimeout,
	core.CodeIndexCorruption:     http.StatusInternalServerError,
	core.CodeAuthFailure:         http.StatusUnauthorized,
	core.CodeInsufficientRole:    http.StatusForbidden,
	core.CodePersistenceFailure:  http.StatusInternalServerError,
	core.CodeAlreadyBootstrapped: http.StatusConflict,
	core.CodeNotFound:            http.StatusNotFound,
}

// respondError maps engine error codes onto HTTP statuses. Unknown errors
// become opaque 500s; internal detail never leaves the process.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	var coded *core.Error
	if errors.As(err, &coded) {
		status, ok := codeStatus[coded.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		body := gin.H{"error": coded.Error(), "code": coded.Code}
		for _, detail := range []string{"document_id", "session_id"} {
			if v, ok := coded.Details[detail]; ok {
				body[detail] = v
			}
		}
		c.AbortWithStatusJSON(status, body)
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
