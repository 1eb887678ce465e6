package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"verity/internal/domain"
	"verity/internal/service"
)

const maxUploadBytes = 50 << 20

// DocumentHandler handles document upload, extraction, and review endpoints.
type DocumentHandler struct {
	svc service.ExtractionService
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(svc service.ExtractionService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// Upload handles POST /api/v1/documents. The PDF arrives as multipart form
// data together with its property, period, and document type; extraction is
// queued and the caller polls the document for completion.
func (h *DocumentHandler) Upload(c *gin.Context) {
	propertyID, err := uuid.Parse(c.PostForm("property_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_PROPERTY_ID", "property_id must be a valid UUID")
		return
	}
	periodID, err := uuid.Parse(c.PostForm("period_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_PERIOD_ID", "period_id must be a valid UUID")
		return
	}

	docType := domain.DocumentType(c.PostForm("document_type"))
	if !domain.AllowedDocumentTypes[docType] {
		RespondError(c, http.StatusBadRequest, "UNSUPPORTED_DOCUMENT_TYPE", "unsupported document type")
		return
	}

	qualityScore := 0.5
	if qs := c.PostForm("quality_score"); qs != "" {
		parsed, parseErr := strconv.ParseFloat(qs, 64)
		if parseErr != nil || parsed < 0 || parsed > 1 {
			RespondError(c, http.StatusBadRequest, "INVALID_QUALITY_SCORE", "quality_score must be between 0 and 1")
			return
		}
		qualityScore = parsed
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > maxUploadBytes {
		RespondError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size")
		return
	}
	fileBytes, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "UNREADABLE_FILE", "could not read uploaded file")
		return
	}
	if len(fileBytes) > maxUploadBytes {
		RespondError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size")
		return
	}

	name := c.PostForm("name")
	if name == "" {
		name = header.Filename
	}

	doc, err := h.svc.CreateAndExtract(c.Request.Context(), &service.CreateDocumentInput{
		PropertyID:   propertyID,
		PeriodID:     periodID,
		Name:         name,
		DocumentType: docType,
		QualityScore: qualityScore,
		FileBytes:    fileBytes,
		ContentType:  header.Header.Get("Content-Type"),
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondAccepted(c, doc)
}

// List handles GET /api/v1/documents
func (h *DocumentHandler) List(c *gin.Context) {
	offset, limit := pagination(c)

	docs, total, err := h.svc.List(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondPaginated(c, docs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// GetByID handles GET /api/v1/documents/:id
func (h *DocumentHandler) GetByID(c *gin.Context) {
	docID, ok := pathID(c)
	if !ok {
		return
	}

	doc, err := h.svc.GetByID(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, doc)
}

// GetFields handles GET /api/v1/documents/:id/fields
func (h *DocumentHandler) GetFields(c *gin.Context) {
	docID, ok := pathID(c)
	if !ok {
		return
	}

	fields, err := h.svc.ListFields(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, fields)
}

// Retry handles POST /api/v1/documents/:id/retry
func (h *DocumentHandler) Retry(c *gin.Context) {
	docID, ok := pathID(c)
	if !ok {
		return
	}

	doc, err := h.svc.RetryExtraction(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondAccepted(c, doc)
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func pagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}
