package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"verity/internal/concordance"
	"verity/internal/domain"
	"verity/internal/ensemble"
	"verity/internal/port"
)

const defaultMaxExtractAttempts = 3

// CreateDocumentInput is the DTO for uploading a document and queueing extraction.
type CreateDocumentInput struct {
	PropertyID   uuid.UUID
	PeriodID     uuid.UUID
	Name         string
	DocumentType domain.DocumentType
	QualityScore float64
	FileBytes    []byte
	ContentType  string
}

// UpdateReviewInput is the DTO for recording a human review decision.
type UpdateReviewInput struct {
	DocumentID uuid.UUID
	ReviewerID uuid.UUID
	Status     domain.ReviewStatus
	Notes      string
}

// ExtractionService defines the document extraction contract.
type ExtractionService interface {
	CreateAndExtract(ctx context.Context, input *CreateDocumentInput) (*domain.Document, error)
	GetByID(ctx context.Context, docID uuid.UUID) (*domain.Document, error)
	List(ctx context.Context, offset, limit int) ([]domain.Document, int, error)
	ListFields(ctx context.Context, docID uuid.UUID) ([]domain.EnsembleField, error)
	RetryExtraction(ctx context.Context, docID uuid.UUID) (*domain.Document, error)
	ListReviewQueue(ctx context.Context, offset, limit int) ([]domain.Document, int, error)
	UpdateReview(ctx context.Context, input *UpdateReviewInput) (*domain.Document, error)
	ExtractDocument(ctx context.Context, doc *domain.Document, maxAttempts int)
}

type extractionService struct {
	docRepo     port.DocumentRepository
	fieldRepo   port.EnsembleFieldRepository
	ensemble    *ensemble.Engine
	concordance *concordance.Service
	storage     port.ObjectStorage
	bucket      string
}

// NewExtractionService creates a new ExtractionService implementation.
func NewExtractionService(
	docRepo port.DocumentRepository,
	fieldRepo port.EnsembleFieldRepository,
	ensembleEngine *ensemble.Engine,
	concordanceService *concordance.Service,
	storage port.ObjectStorage,
	bucket string,
) ExtractionService {
	return &extractionService{
		docRepo:     docRepo,
		fieldRepo:   fieldRepo,
		ensemble:    ensembleEngine,
		concordance: concordanceService,
		storage:     storage,
		bucket:      bucket,
	}
}

// CreateAndExtract uploads the document to object storage and queues it for
// extraction. The queue worker claims it from there; the caller gets the
// queued document back immediately.
func (s *extractionService) CreateAndExtract(ctx context.Context, input *CreateDocumentInput) (*domain.Document, error) {
	if !domain.AllowedDocumentTypes[input.DocumentType] {
		return nil, domain.ErrUnsupportedDocumentType
	}

	docID := uuid.New()
	key := fmt.Sprintf("documents/%s/%s.pdf", input.PropertyID, docID)

	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	if _, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.bucket,
		Key:         key,
		Body:        bytes.NewReader(input.FileBytes),
		ContentType: contentType,
	}); err != nil {
		return nil, fmt.Errorf("uploading document: %w", err)
	}

	doc := &domain.Document{
		ID:               docID,
		PropertyID:       input.PropertyID,
		PeriodID:         input.PeriodID,
		Name:             input.Name,
		DocumentType:     input.DocumentType,
		StorageBucket:    s.bucket,
		StorageKey:       key,
		QualityScore:     input.QualityScore,
		ExtractionStatus: domain.ExtractionStatusQueued,
		ReviewStatus:     domain.ReviewStatusPending,
		ValidationErrors: json.RawMessage("[]"),
		EnginesUsed:      json.RawMessage("[]"),
	}

	log.Printf("extractionService.CreateAndExtract: queueing document %s (%s) for property %s",
		doc.ID, doc.DocumentType, doc.PropertyID)

	if err := s.docRepo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}
	return doc, nil
}

func (s *extractionService) GetByID(ctx context.Context, docID uuid.UUID) (*domain.Document, error) {
	return s.docRepo.GetByID(ctx, docID)
}

func (s *extractionService) List(ctx context.Context, offset, limit int) ([]domain.Document, int, error) {
	return s.docRepo.List(ctx, offset, limit)
}

func (s *extractionService) ListFields(ctx context.Context, docID uuid.UUID) ([]domain.EnsembleField, error) {
	if _, err := s.docRepo.GetByID(ctx, docID); err != nil {
		return nil, err
	}
	return s.fieldRepo.ListByDocument(ctx, docID)
}

// RetryExtraction puts a failed or completed document back on the queue.
func (s *extractionService) RetryExtraction(ctx context.Context, docID uuid.UUID) (*domain.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.ExtractionStatus == domain.ExtractionStatusProcessing {
		return nil, fmt.Errorf("document %s is already being processed", docID)
	}

	if err := s.docRepo.Requeue(ctx, docID); err != nil {
		return nil, fmt.Errorf("requeueing document: %w", err)
	}
	log.Printf("extractionService.RetryExtraction: requeued document %s", docID)

	return s.docRepo.GetByID(ctx, docID)
}

func (s *extractionService) ListReviewQueue(ctx context.Context, offset, limit int) ([]domain.Document, int, error) {
	return s.docRepo.ListNeedingReview(ctx, offset, limit)
}

func (s *extractionService) UpdateReview(ctx context.Context, input *UpdateReviewInput) (*domain.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, input.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.ExtractionStatus != domain.ExtractionStatusCompleted {
		return nil, domain.ErrDocumentNotExtracted
	}

	now := time.Now().UTC()
	doc.ReviewStatus = input.Status
	doc.ReviewedBy = &input.ReviewerID
	doc.ReviewedAt = &now
	doc.ReviewerNotes = input.Notes
	if input.Status == domain.ReviewStatusApproved || input.Status == domain.ReviewStatusRejected {
		doc.NeedsReview = false
	}

	if err := s.docRepo.UpdateReview(ctx, doc); err != nil {
		return nil, fmt.Errorf("updating review status: %w", err)
	}
	return doc, nil
}

// ExtractDocument performs the core extraction: S3 download, ensemble vote,
// field persistence, document update, and concordance rebuild. It is called
// by the queue worker with the document already claimed into processing
// status and its attempt counter incremented.
func (s *extractionService) ExtractDocument(ctx context.Context, doc *domain.Document, maxAttempts int) {
	fileBytes, err := s.storage.Download(ctx, doc.StorageBucket, doc.StorageKey)
	if err != nil {
		s.handleExtractionError(ctx, doc, fmt.Sprintf("downloading document: %v", err), maxAttempts)
		return
	}

	result := s.ensemble.ExtractWithEnsemble(ctx, fileBytes, doc.DocumentType, doc.QualityScore)
	if !result.Success {
		msg := domain.ErrAllEnginesFailed.Error()
		if len(result.ValidationErrors) > 0 {
			msg = result.ValidationErrors[0]
		}
		s.handleExtractionError(ctx, doc, msg, maxAttempts)
		return
	}

	fields, err := ensembleFieldRows(doc.ID, result)
	if err != nil {
		s.failExtraction(ctx, doc, fmt.Sprintf("encoding field results: %v", err))
		return
	}
	if err := s.fieldRepo.ReplaceForDocument(ctx, doc.ID, fields); err != nil {
		s.failExtraction(ctx, doc, fmt.Sprintf("saving field results: %v", err))
		return
	}

	validationJSON, _ := json.Marshal(result.ValidationErrors)
	if result.ValidationErrors == nil {
		validationJSON = json.RawMessage("[]")
	}
	enginesJSON, _ := json.Marshal(result.EnginesUsed)

	now := time.Now().UTC()
	doc.ExtractionStatus = domain.ExtractionStatusCompleted
	doc.ExtractionError = ""
	doc.OverallConfidence = result.OverallConfidence
	doc.QualityGatePassed = result.QualityGatePassed
	doc.ValidationErrors = validationJSON
	doc.EnginesUsed = enginesJSON
	doc.NeedsReview = len(result.NeedsReviewFields) > 0 || !result.QualityGatePassed
	doc.ExtractedAt = &now

	if err := s.docRepo.UpdateExtractionResults(ctx, doc); err != nil {
		log.Printf("extractionService.ExtractDocument: failed to save results for %s: %v", doc.ID, err)
		return
	}

	log.Printf("extractionService.ExtractDocument: document %s extracted, %d fields, confidence %.3f, gate passed %t",
		doc.ID, result.TotalFieldsExtracted, result.OverallConfidence, result.QualityGatePassed)

	if s.concordance != nil {
		if _, err := s.concordance.Rebuild(ctx, doc); err != nil {
			log.Printf("extractionService.ExtractDocument: concordance rebuild failed for %s: %v", doc.ID, err)
		}
	}
}

// handleExtractionError requeues the document when attempts remain, otherwise
// marks it permanently failed.
func (s *extractionService) handleExtractionError(ctx context.Context, doc *domain.Document, errMsg string, maxAttempts int) {
	if doc.ExtractAttempts < maxAttempts {
		log.Printf("extractionService.handleExtractionError: document %s attempt %d failed, requeueing: %s",
			doc.ID, doc.ExtractAttempts, errMsg)
		if err := s.docRepo.Requeue(ctx, doc.ID); err != nil {
			log.Printf("extractionService.handleExtractionError: failed to requeue %s: %v", doc.ID, err)
		}
		return
	}
	s.failExtraction(ctx, doc, errMsg)
}

func (s *extractionService) failExtraction(ctx context.Context, doc *domain.Document, errMsg string) {
	log.Printf("extractionService.failExtraction: document %s failed: %s", doc.ID, errMsg)
	if err := s.docRepo.MarkFailed(ctx, doc.ID, doc.ExtractAttempts, errMsg); err != nil {
		log.Printf("extractionService.failExtraction: failed to update status for %s: %v", doc.ID, err)
	}
}

// ensembleFieldRows converts a vote result into persistable rows, field names
// sorted so reruns write rows in a stable order.
func ensembleFieldRows(docID uuid.UUID, result *ensemble.DocumentResult) ([]domain.EnsembleField, error) {
	names := make([]string, 0, len(result.Fields))
	for name := range result.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]domain.EnsembleField, 0, len(names))
	for _, name := range names {
		fr := result.Fields[name]

		enginesJSON, err := json.Marshal(fr.EnginesUsed)
		if err != nil {
			return nil, fmt.Errorf("marshaling engines for field %s: %w", name, err)
		}
		metadataJSON, err := json.Marshal(fr.Candidates)
		if err != nil {
			return nil, fmt.Errorf("marshaling candidates for field %s: %w", name, err)
		}

		rows = append(rows, domain.EnsembleField{
			ID:                 uuid.New(),
			DocumentID:         docID,
			FieldName:          fr.FieldName,
			FieldType:          fr.FieldType,
			FinalValue:         fr.FinalValue,
			Confidence:         fr.Confidence,
			ConsensusCount:     fr.ConsensusCount,
			ConflictDetected:   fr.ConflictDetected,
			ResolutionStrategy: fr.ResolutionStrategy,
			NeedsReview:        fr.NeedsReview,
			EnginesUsed:        enginesJSON,
			Metadata:           metadataJSON,
		})
	}
	return rows, nil
}
