package server

import (
	"io"
	"net/http"

	"github.com/askdocs/askdocs/engine/core"
	"github.com/askdocs/askdocs/engine/knowledge"
	"github.com/gin-gonic/gin"
)

// maxUploadBytes bounds a single document upload.
const maxUploadBytes = 32 << 20

type documentHandlers struct {
	knowledge *knowledge.Service
}

func (h *documentHandlers) upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds upload limit"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded file"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded file"})
		return
	}
	if len(data) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds upload limit"})
		return
	}

	doc, err := h.knowledge.UploadDocument(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *documentHandlers) list(c *gin.Context) {
	docs, err := h.knowledge.ListDocuments(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *documentHandlers) get(c *gin.Context) {
	doc, err := h.knowledge.GetDocument(c.Request.Context(), core.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *documentHandlers) remove(c *gin.Context) {
	if err := h.knowledge.DeleteDocument(c.Request.Context(), core.ID(c.Param("id"))); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type ingestTextRequest struct {
	Text   string `json:"text" binding:"required"`
	Source string `json:"source"`
}

// ingestText indexes raw text posted as JSON, without a file upload.
func (h *documentHandlers) ingestText(c *gin.Context) {
	var req ingestTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	doc, err := h.knowledge.IngestText(c.Request.Context(), req.Source, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// reset wipes the knowledge base. The route is gated to superadmin callers.
func (h *documentHandlers) reset(c *gin.Context) {
	removed, err := h.knowledge.Reset(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents_removed": removed})
}
