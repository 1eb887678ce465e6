package ensemble_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verity/internal/domain"
	"verity/internal/ensemble"
	"verity/internal/port"
)

func TestCalculateFieldConfidence_NoOpinions(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	conf, method, conflict := e.CalculateFieldConfidence("total_assets", nil)

	assert.Equal(t, 0.0, conf)
	assert.Equal(t, domain.ResolutionNoData, method)
	assert.Nil(t, conflict)
}

func TestCalculateFieldConfidence_SingleOpinion(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	conf, method, conflict := e.CalculateFieldConfidence("total_assets", []ensemble.ValueOpinion{
		{Engine: domain.EngineCamelot, Value: "1250000.00", Confidence: 0.92},
	})

	assert.InDelta(t, 0.92, conf, 1e-9)
	assert.Equal(t, domain.ResolutionSingleEngine, method)
	assert.Nil(t, conflict)
}

func TestCalculateFieldConfidence_AgreementAfterNormalization(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	// Different surface formats of the same number must not count as a conflict.
	conf, method, conflict := e.CalculateFieldConfidence("total_assets", []ensemble.ValueOpinion{
		{Engine: domain.EngineCamelot, Value: "$1,234.56", Confidence: 0.90},
		{Engine: domain.EnginePDFPlumber, Value: "1234.56", Confidence: 0.80},
	})

	// Weighted average: (0.90*0.90 + 0.80*0.85) / (0.90 + 0.85)
	assert.InDelta(t, 1.49/1.75, conf, 1e-9)
	assert.Equal(t, domain.ResolutionConsensus, method)
	assert.Nil(t, conflict)
}

func TestCalculateFieldConfidence_TwoWayConflict(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	conf, method, conflict := e.CalculateFieldConfidence("total_revenue", []ensemble.ValueOpinion{
		{Engine: domain.EngineCamelot, Value: "100", Confidence: 0.90},
		{Engine: domain.EnginePyMuPDF, Value: "200", Confidence: 0.85},
	})

	// Base (0.90*0.90 + 0.85*0.80) / 1.70 penalized 10% for two distinct values.
	base := (0.90*0.90 + 0.85*0.80) / 1.70
	assert.InDelta(t, base*0.90, conf, 1e-9)
	assert.Equal(t, domain.ResolutionWeightedVote, method)

	require.NotNil(t, conflict)
	assert.Equal(t, "total_revenue", conflict.FieldName)
	assert.Equal(t, []string{"100", "200"}, conflict.Values)
	assert.Equal(t, []domain.EngineName{domain.EngineCamelot, domain.EnginePyMuPDF}, conflict.Engines)
	assert.InDelta(t, 0.05, conflict.Spread, 1e-9)
	assert.Equal(t, domain.SeverityLow, conflict.Severity)
}

func TestCalculateFieldConfidence_WideSpreadGoesToHumanReview(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	conf, method, conflict := e.CalculateFieldConfidence("total_expenses", []ensemble.ValueOpinion{
		{Engine: domain.EngineCamelot, Value: "100", Confidence: 0.95},
		{Engine: domain.EngineTesseract, Value: "200", Confidence: 0.50},
	})

	// Penalty 0.10 (two distinct) + 0.15 (spread > 0.3).
	base := (0.95*0.90 + 0.50*0.50) / 1.40
	assert.InDelta(t, base*0.75, conf, 1e-9)
	assert.Equal(t, domain.ResolutionHumanReview, method)
	require.NotNil(t, conflict)
	assert.Equal(t, domain.SeverityHigh, conflict.Severity)
}

func TestCalculateFieldConfidence_ThreeDistinctValues(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	conf, method, conflict := e.CalculateFieldConfidence("ending_balance", []ensemble.ValueOpinion{
		{Engine: domain.EngineCamelot, Value: "100", Confidence: 0.85},
		{Engine: domain.EnginePDFPlumber, Value: "200", Confidence: 0.80},
		{Engine: domain.EnginePyMuPDF, Value: "300", Confidence: 0.75},
	})

	base := (0.85*0.90 + 0.80*0.85 + 0.75*0.80) / (0.90 + 0.85 + 0.80)
	assert.InDelta(t, base*0.85, conf, 1e-9)
	assert.Equal(t, domain.ResolutionAIOverride, method)
	require.NotNil(t, conflict)
	assert.Len(t, conflict.Values, 3)
}

func TestCalculateFieldConfidence_ConflictPenalizesAgainstAgreement(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)
	opinions := func(secondValue string) []ensemble.ValueOpinion {
		return []ensemble.ValueOpinion{
			{Engine: domain.EngineCamelot, Value: "500", Confidence: 0.90},
			{Engine: domain.EnginePDFPlumber, Value: secondValue, Confidence: 0.85},
		}
	}

	agreed, _, _ := e.CalculateFieldConfidence("total_assets", opinions("500"))
	conflicted, _, _ := e.CalculateFieldConfidence("total_assets", opinions("600"))

	assert.Less(t, conflicted, agreed)
}

func TestDetectConflicts(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	results := []*port.ExtractionResult{
		{
			EngineName: domain.EnginePyMuPDF,
			Success:    true,
			ExtractedData: map[string]port.FieldValue{
				"total_assets":  {Value: "1,000.00", Confidence: 0.90},
				"total_revenue": {Value: "250.00", Confidence: 0.88},
			},
		},
		{
			EngineName: domain.EngineCamelot,
			Success:    true,
			ExtractedData: map[string]port.FieldValue{
				"total_assets":  {Value: "$1,000", Confidence: 0.92},
				"total_revenue": {Value: "275.00", Confidence: 0.85},
			},
		},
		{
			// Failed engines never contribute opinions.
			EngineName: domain.EngineTesseract,
			Success:    false,
			ExtractedData: map[string]port.FieldValue{
				"total_revenue": {Value: "999", Confidence: 0.30},
			},
		},
	}

	conflicts := e.DetectConflicts(results, ensemble.FieldNames(results))

	require.Len(t, conflicts, 1)
	assert.Equal(t, "total_revenue", conflicts[0].FieldName)
	assert.ElementsMatch(t, []string{"250", "275"}, conflicts[0].Values)
}

func TestRecommendResolutionStrategy_NoCandidates(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	d := e.RecommendResolutionStrategy(nil)

	assert.Equal(t, domain.ResolutionNoConflict, d.Strategy)
	assert.Equal(t, domain.PriorityNone, d.Priority)
	assert.False(t, d.NeedsReview)
}

func TestRecommendResolutionStrategy_SingleCandidate(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	d := e.RecommendResolutionStrategy([]ensemble.ValueOpinion{
		{Engine: domain.EnginePDFPlumber, Value: "1500.00", Confidence: 0.81},
	})

	assert.Equal(t, domain.ResolutionSingleEngine, d.Strategy)
	assert.Equal(t, "1500.00", d.ChosenValue)
	assert.InDelta(t, 0.81, d.Confidence, 1e-9)
	assert.Contains(t, d.Reasoning, "pdfplumber")
}

func TestRecommendResolutionStrategy_ClearLeader(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	d := e.RecommendResolutionStrategy([]ensemble.ValueOpinion{
		{Engine: domain.EngineEasyOCR, Value: "200", Confidence: 0.60},
		{Engine: domain.EngineCamelot, Value: "100", Confidence: 0.95},
	})

	assert.Equal(t, domain.ResolutionWeightedVote, d.Strategy)
	assert.Equal(t, "100", d.ChosenValue)
	assert.InDelta(t, 0.95, d.Confidence, 1e-9)
	assert.False(t, d.NeedsReview)
}

func TestRecommendResolutionStrategy_ConfidentMajority(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	d := e.RecommendResolutionStrategy([]ensemble.ValueOpinion{
		{Engine: domain.EnginePyMuPDF, Value: "100", Confidence: 0.80},
		{Engine: domain.EngineCamelot, Value: "100.00", Confidence: 0.75},
		{Engine: domain.EngineTesseract, Value: "200", Confidence: 0.72},
	})

	assert.Equal(t, domain.ResolutionConsensus, d.Strategy)
	assert.Equal(t, "100", d.ChosenValue)
	assert.InDelta(t, (0.80+0.75)/2, d.Confidence, 1e-9)
	assert.Equal(t, domain.PriorityNone, d.Priority)
}

func TestRecommendResolutionStrategy_AllLowConfidence(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	d := e.RecommendResolutionStrategy([]ensemble.ValueOpinion{
		{Engine: domain.EngineTesseract, Value: "100", Confidence: 0.55},
		{Engine: domain.EngineEasyOCR, Value: "200", Confidence: 0.60},
	})

	assert.Equal(t, domain.ResolutionHumanReview, d.Strategy)
	assert.Equal(t, "200", d.ChosenValue)
	assert.True(t, d.NeedsReview)
	assert.Equal(t, domain.PriorityHigh, d.Priority)
}

func TestRecommendResolutionStrategy_ManyDistinctValues(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	d := e.RecommendResolutionStrategy([]ensemble.ValueOpinion{
		{Engine: domain.EnginePyMuPDF, Value: "100", Confidence: 0.75},
		{Engine: domain.EnginePDFPlumber, Value: "200", Confidence: 0.72},
		{Engine: domain.EngineCamelot, Value: "300", Confidence: 0.71},
	})

	assert.Equal(t, domain.ResolutionAIOverride, d.Strategy)
	assert.Equal(t, "100", d.ChosenValue)
	assert.InDelta(t, (0.75+0.72+0.71)/3, d.Confidence, 1e-9)
	assert.True(t, d.NeedsReview)
	assert.Equal(t, domain.PriorityMedium, d.Priority)
}

func TestRecommendResolutionStrategy_FallsBackToTopCandidate(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	d := e.RecommendResolutionStrategy([]ensemble.ValueOpinion{
		{Engine: domain.EngineCamelot, Value: "100", Confidence: 0.75},
		{Engine: domain.EnginePyMuPDF, Value: "200", Confidence: 0.72},
	})

	assert.Equal(t, domain.ResolutionWeightedVote, d.Strategy)
	assert.Equal(t, "100", d.ChosenValue)
	assert.Contains(t, d.Reasoning, "camelot")
}

func TestRecommendResolutionStrategy_TieBreaksOnCanonicalEngineOrder(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	// Equal confidence: pymupdf outranks tesseract in canonical order, so its
	// value must win regardless of the candidate slice order.
	d := e.RecommendResolutionStrategy([]ensemble.ValueOpinion{
		{Engine: domain.EngineTesseract, Value: "200", Confidence: 0.80},
		{Engine: domain.EnginePyMuPDF, Value: "100", Confidence: 0.80},
	})

	assert.Equal(t, "100", d.ChosenValue)
}

func TestShouldFlagForReview_Ladder(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	cases := []struct {
		name       string
		confidence float64
		conflicts  bool
		warnings   []string
		flag       bool
		priority   domain.ReviewPriority
	}{
		{"critical below 0.50", 0.40, false, nil, true, domain.PriorityCritical},
		{"high below 0.70", 0.60, false, nil, true, domain.PriorityHigh},
		{"high on conflicts", 0.90, true, nil, true, domain.PriorityHigh},
		{"medium on many warnings", 0.90, false, []string{"a", "b", "c"}, true, domain.PriorityMedium},
		{"low on one warning", 0.90, false, []string{"a"}, true, domain.PriorityLow},
		{"clean result not flagged", 0.95, false, nil, false, domain.PriorityNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			flag, priority, reason := e.ShouldFlagForReview(tc.confidence, tc.conflicts, tc.warnings)
			assert.Equal(t, tc.flag, flag)
			assert.Equal(t, tc.priority, priority)
			if tc.flag {
				assert.NotEmpty(t, reason)
			} else {
				assert.Empty(t, reason)
			}
		})
	}
}

func TestAggregateExtractionResults_AllEnginesFailed(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	summary := e.AggregateExtractionResults([]*port.ExtractionResult{
		{EngineName: domain.EnginePyMuPDF, Success: false},
		{EngineName: domain.EngineCamelot, Success: false},
	})

	assert.False(t, summary.Success)
	assert.Equal(t, 0.0, summary.Confidence)
	assert.Equal(t, []domain.EngineName{domain.EnginePyMuPDF, domain.EngineCamelot}, summary.FailedEngines)
	assert.True(t, summary.NeedsReview)
	assert.Equal(t, domain.PriorityCritical, summary.ReviewPriority)
}

func TestAggregateExtractionResults_WeightedAverage(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	summary := e.AggregateExtractionResults([]*port.ExtractionResult{
		{EngineName: domain.EngineCamelot, Success: true, OverallConfidence: 0.90},
		{EngineName: domain.EngineTesseract, Success: true, OverallConfidence: 0.40},
	})

	assert.True(t, summary.Success)
	assert.InDelta(t, (0.90*0.90+0.40*0.50)/1.40, summary.Confidence, 1e-9)
	assert.Equal(t, []domain.EngineName{domain.EngineCamelot, domain.EngineTesseract}, summary.EnginesUsed)
	assert.Empty(t, summary.FailedEngines)
}

func TestAggregateExtractionResults_PartialFailureFlagsReview(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	summary := e.AggregateExtractionResults([]*port.ExtractionResult{
		{EngineName: domain.EngineCamelot, Success: true, OverallConfidence: 0.92},
		{EngineName: domain.EnginePyMuPDF, Success: true, OverallConfidence: 0.95},
		{EngineName: domain.EngineEasyOCR, Success: false},
	})

	assert.True(t, summary.Success)
	assert.True(t, summary.NeedsReview)
	assert.Equal(t, domain.PriorityLow, summary.ReviewPriority)
	assert.Equal(t, []domain.EngineName{domain.EngineEasyOCR}, summary.FailedEngines)
}

func TestAggregateExtractionResults_WarningsRaisePriority(t *testing.T) {
	e := ensemble.NewConfidenceEngine(nil)

	summary := e.AggregateExtractionResults([]*port.ExtractionResult{
		{EngineName: domain.EngineCamelot, Success: true, OverallConfidence: 0.92,
			Warnings: []string{"page 3 unreadable"}},
	})

	assert.True(t, summary.NeedsReview)
	assert.Equal(t, domain.PriorityMedium, summary.ReviewPriority)
	assert.Equal(t, []string{"page 3 unreadable"}, summary.Warnings)
}
