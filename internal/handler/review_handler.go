package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"verity/internal/domain"
	"verity/internal/ensemble"
	"verity/internal/service"
)

// ReviewHandler handles the human review queue and resolution advice.
type ReviewHandler struct {
	svc        service.ExtractionService
	confidence *ensemble.ConfidenceEngine
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(svc service.ExtractionService, confidence *ensemble.ConfidenceEngine) *ReviewHandler {
	return &ReviewHandler{svc: svc, confidence: confidence}
}

// ListQueue handles GET /api/v1/review/queue, ordered lowest confidence first.
func (h *ReviewHandler) ListQueue(c *gin.Context) {
	offset, limit := pagination(c)

	docs, total, err := h.svc.ListReviewQueue(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondPaginated(c, docs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

type updateReviewRequest struct {
	Status     domain.ReviewStatus `json:"status" binding:"required"`
	ReviewerID uuid.UUID           `json:"reviewer_id" binding:"required"`
	Notes      string              `json:"notes"`
}

// UpdateReview handles PUT /api/v1/documents/:id/review
func (h *ReviewHandler) UpdateReview(c *gin.Context) {
	docID, ok := pathID(c)
	if !ok {
		return
	}

	var req updateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "status and reviewer_id are required")
		return
	}
	switch req.Status {
	case domain.ReviewStatusInReview, domain.ReviewStatusApproved, domain.ReviewStatusRejected:
	default:
		RespondError(c, http.StatusBadRequest, "INVALID_STATUS", "status must be in_review, approved, or rejected")
		return
	}

	doc, err := h.svc.UpdateReview(c.Request.Context(), &service.UpdateReviewInput{
		DocumentID: docID,
		ReviewerID: req.ReviewerID,
		Status:     req.Status,
		Notes:      req.Notes,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, doc)
}

type recommendRequest struct {
	FieldName  string                  `json:"field_name"`
	Candidates []ensemble.ValueOpinion `json:"candidates" binding:"required"`
}

type recommendResponse struct {
	FieldName string                      `json:"field_name,omitempty"`
	Decision  ensemble.ResolutionDecision `json:"decision"`
	Flag      flagAdvice                  `json:"flag"`
}

type flagAdvice struct {
	ShouldFlag bool                  `json:"should_flag"`
	Priority   domain.ReviewPriority `json:"priority"`
	Reason     string                `json:"reason"`
}

// Recommend handles POST /api/v1/review/recommend. Reviewer tooling posts a
// field's candidate values and gets the resolution cascade's advice back.
func (h *ReviewHandler) Recommend(c *gin.Context) {
	var req recommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "candidates are required")
		return
	}

	decision := h.confidence.RecommendResolutionStrategy(req.Candidates)
	shouldFlag, priority, reason := h.confidence.ShouldFlagForReview(
		decision.Confidence, decision.Strategy != domain.ResolutionNoConflict && len(req.Candidates) > 1, nil)

	RespondOK(c, recommendResponse{
		FieldName: req.FieldName,
		Decision:  decision,
		Flag: flagAdvice{
			ShouldFlag: shouldFlag,
			Priority:   priority,
			Reason:     reason,
		},
	})
}
