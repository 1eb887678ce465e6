package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"verity/internal/concordance"
	"verity/internal/service"
)

// ConcordanceHandler serves the per-upload agreement audit table.
type ConcordanceHandler struct {
	docs        service.ExtractionService
	concordance *concordance.Service
}

// NewConcordanceHandler creates a new ConcordanceHandler.
func NewConcordanceHandler(docs service.ExtractionService, svc *concordance.Service) *ConcordanceHandler {
	return &ConcordanceHandler{docs: docs, concordance: svc}
}

// Get handles GET /api/v1/documents/:id/concordance
func (h *ConcordanceHandler) Get(c *gin.Context) {
	docID, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := h.docs.GetByID(c.Request.Context(), docID); err != nil {
		HandleError(c, err)
		return
	}

	rows, err := h.concordance.ListByUpload(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"rows":    rows,
		"summary": concordance.Summarize(docID, rows),
	})
}

// Rebuild handles POST /api/v1/documents/:id/concordance/rebuild
func (h *ConcordanceHandler) Rebuild(c *gin.Context) {
	docID, ok := pathID(c)
	if !ok {
		return
	}
	doc, err := h.docs.GetByID(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	rows, err := h.concordance.Rebuild(c.Request.Context(), doc)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"rows":    rows,
		"summary": concordance.Summarize(docID, rows),
	})
}

// ExportCSV handles GET /api/v1/documents/:id/concordance/export/csv.
// The body starts with a UTF-8 BOM so Excel renders the glyph columns.
func (h *ConcordanceHandler) ExportCSV(c *gin.Context) {
	docID, ok := pathID(c)
	if !ok {
		return
	}
	doc, err := h.docs.GetByID(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	rows, err := h.concordance.ListByUpload(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	filename := concordance.BuildFilename(doc.Name)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)

	if _, err := c.Writer.Write(concordance.BOM); err != nil {
		log.Printf("concordanceHandler.ExportCSV: writing BOM for %s: %v", docID, err)
		return
	}

	w := concordance.NewWriter(c.Writer)
	if err := w.WriteHeader(); err != nil {
		log.Printf("concordanceHandler.ExportCSV: writing header for %s: %v", docID, err)
		return
	}
	if err := w.WriteRows(rows); err != nil {
		log.Printf("concordanceHandler.ExportCSV: writing rows for %s: %v", docID, err)
		return
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Printf("concordanceHandler.ExportCSV: flushing export for %s: %v", docID, err)
	}
}

// ExportXLSX handles GET /api/v1/documents/:id/concordance/export/xlsx.
func (h *ConcordanceHandler) ExportXLSX(c *gin.Context) {
	docID, ok := pathID(c)
	if !ok {
		return
	}
	doc, err := h.docs.GetByID(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	rows, err := h.concordance.ListByUpload(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	filename := concordance.BuildXLSXFilename(doc.Name)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)

	if err := concordance.WriteXLSX(c.Writer, rows, concordance.Summarize(docID, rows)); err != nil {
		log.Printf("concordanceHandler.ExportXLSX: writing workbook for %s: %v", docID, err)
	}
}
