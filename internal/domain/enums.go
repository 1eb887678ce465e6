package domain

// DocumentType represents the kinds of financial statements the platform ingests.
type DocumentType string

const (
	DocTypeBalanceSheet      DocumentType = "balance_sheet"
	DocTypeIncomeStatement   DocumentType = "income_statement"
	DocTypeCashFlow          DocumentType = "cash_flow"
	DocTypeRentRoll          DocumentType = "rent_roll"
	DocTypeMortgageStatement DocumentType = "mortgage_statement"
)

// AllowedDocumentTypes is the set of document types accepted for extraction.
var AllowedDocumentTypes = map[DocumentType]bool{
	DocTypeBalanceSheet:      true,
	DocTypeIncomeStatement:   true,
	DocTypeCashFlow:          true,
	DocTypeRentRoll:          true,
	DocTypeMortgageStatement: true,
}

// EngineName identifies an extraction engine.
type EngineName string

const (
	EnginePyMuPDF    EngineName = "pymupdf"
	EnginePDFPlumber EngineName = "pdfplumber"
	EngineCamelot    EngineName = "camelot"
	EngineLayoutLM   EngineName = "layoutlmv3"
	EngineEasyOCR    EngineName = "easyocr"
	EngineTesseract  EngineName = "tesseract"
)

// KnownEngines lists all engines in canonical order. Concordance columns and
// deterministic tie-breaks iterate engines in this order.
var KnownEngines = []EngineName{
	EnginePyMuPDF,
	EnginePDFPlumber,
	EngineCamelot,
	EngineLayoutLM,
	EngineEasyOCR,
	EngineTesseract,
}

// EngineDisplayNames maps engine identifiers to their export column headers.
var EngineDisplayNames = map[EngineName]string{
	EnginePyMuPDF:    "PyMuPDF",
	EnginePDFPlumber: "PDFPlumber",
	EngineCamelot:    "Camelot",
	EngineLayoutLM:   "LayoutLMv3",
	EngineEasyOCR:    "EasyOCR",
	EngineTesseract:  "Tesseract",
}

// OCRCapableEngines marks engines that can read scanned (image-only) documents.
var OCRCapableEngines = map[EngineName]bool{
	EngineLayoutLM:  true,
	EngineEasyOCR:   true,
	EngineTesseract: true,
}

// FieldType categorizes extracted fields for engine reliability weighting.
type FieldType string

const (
	FieldTypeAccountCode FieldType = "account_code"
	FieldTypeAmount      FieldType = "amount"
	FieldTypeAccountName FieldType = "account_name"
	FieldTypeHeaderField FieldType = "header_field"
)

// ResolutionStrategy describes how a field's final value was chosen.
type ResolutionStrategy string

const (
	ResolutionConsensus    ResolutionStrategy = "consensus"
	ResolutionWeightedVote ResolutionStrategy = "weighted_vote"
	ResolutionAIOverride   ResolutionStrategy = "ai_override"
	ResolutionSingleEngine ResolutionStrategy = "single_engine"
	ResolutionHumanReview  ResolutionStrategy = "human_review"
	ResolutionNoData       ResolutionStrategy = "no_data"
	ResolutionNoConflict   ResolutionStrategy = "no_conflict"
)

// ReviewPriority ranks how urgently a human should look at a result.
type ReviewPriority string

const (
	PriorityNone     ReviewPriority = "none"
	PriorityLow      ReviewPriority = "low"
	PriorityMedium   ReviewPriority = "medium"
	PriorityHigh     ReviewPriority = "high"
	PriorityCritical ReviewPriority = "critical"
)

// ConflictSeverity classifies cross-engine disagreement on a field.
type ConflictSeverity string

const (
	SeverityLow    ConflictSeverity = "low"
	SeverityMedium ConflictSeverity = "medium"
	SeverityHigh   ConflictSeverity = "high"
)

// ExtractionStatus represents the lifecycle of a document's extraction.
type ExtractionStatus string

const (
	ExtractionStatusQueued     ExtractionStatus = "queued"
	ExtractionStatusProcessing ExtractionStatus = "processing"
	ExtractionStatusCompleted  ExtractionStatus = "completed"
	ExtractionStatusFailed     ExtractionStatus = "failed"
)

// ReviewStatus represents the human review lifecycle of an extracted document.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusInReview ReviewStatus = "in_review"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)
