package ensemble

import (
	"context"
	"log"
	"sort"

	"verity/internal/domain"
	"verity/internal/normalize"
	"verity/internal/port"
)

// Config holds the tunable thresholds and weight tables for ensemble voting.
// A Config is read-only once the engine is constructed, so one Engine can
// serve concurrent documents.
type Config struct {
	// ConsensusThreshold is the confidence at which a field auto-commits.
	ConsensusThreshold float64
	// ReviewThreshold flags fields below it for validation.
	ReviewThreshold float64
	// LowConfidenceThreshold marks a document a re-extraction candidate.
	LowConfidenceThreshold float64
	// ConsensusBonus is added when at least three engines agree on the
	// winning value; StrongConsensusBonus replaces it at five or more.
	ConsensusBonus       float64
	StrongConsensusBonus float64
	// HighTrustEngine may override a vote when it backs the winning value
	// together with at least one other engine.
	HighTrustEngine domain.EngineName
	Weights         WeightTable
}

// DefaultConfig returns the stock ensemble configuration.
func DefaultConfig() Config {
	return Config{
		ConsensusThreshold:     0.95,
		ReviewThreshold:        0.90,
		LowConfidenceThreshold: 0.85,
		ConsensusBonus:         0.15,
		StrongConsensusBonus:   0.20,
		HighTrustEngine:        domain.EngineLayoutLM,
		Weights:                DefaultFieldWeights(),
	}
}

// Engine orchestrates multiple extraction engines for one document and turns
// their raw outputs into per-field decisions gated on cross-field accounting
// identities.
type Engine struct {
	cfg     Config
	engines []port.ExtractionEngine
}

// NewEngine creates an ensemble Engine over the given extraction engines.
func NewEngine(cfg Config, engines []port.ExtractionEngine) *Engine {
	if cfg.Weights == nil {
		cfg.Weights = DefaultFieldWeights()
	}
	return &Engine{cfg: cfg, engines: engines}
}

// SelectEngines picks which engines to run for a document based on its
// quality score. Clean digital PDFs skip raw OCR (slow and noisy there);
// likely scans run OCR-capable engines first.
func (e *Engine) SelectEngines(documentType domain.DocumentType, qualityScore float64) []port.ExtractionEngine {
	switch {
	case qualityScore > 0.8:
		var structured []port.ExtractionEngine
		for _, eng := range e.engines {
			if !domain.OCRCapableEngines[eng.Name()] {
				structured = append(structured, eng)
			}
		}
		if len(structured) > 0 {
			return structured
		}
		return e.engines
	case qualityScore > 0.5:
		return e.engines
	default:
		ordered := make([]port.ExtractionEngine, 0, len(e.engines))
		for _, eng := range e.engines {
			if domain.OCRCapableEngines[eng.Name()] {
				ordered = append(ordered, eng)
			}
		}
		for _, eng := range e.engines {
			if !domain.OCRCapableEngines[eng.Name()] {
				ordered = append(ordered, eng)
			}
		}
		return ordered
	}
}

// ExtractWithEnsemble runs the selected engines against the document and
// votes on every extracted field. Individual engine failures are logged and
// tolerated; only total failure produces an unsuccessful result.
func (e *Engine) ExtractWithEnsemble(ctx context.Context, pdfBytes []byte, documentType domain.DocumentType, qualityScore float64) *DocumentResult {
	selected := e.SelectEngines(documentType, qualityScore)
	results, failed := e.runEngines(ctx, selected, pdfBytes)

	if len(results) == 0 {
		return &DocumentResult{
			Success:           false,
			OverallConfidence: 0.0,
			Fields:            map[string]*FieldResult{},
			FailedEngines:     failed,
			ValidationErrors:  []string{"no extraction engine produced a result"},
		}
	}

	byField := organizeByField(flatten(results))

	fieldNames := make([]string, 0, len(byField))
	for name := range byField {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)

	fields := make(map[string]*FieldResult, len(fieldNames))
	var needsReview []string
	for _, name := range fieldNames {
		fr := e.ensembleVote(name, byField[name])
		fields[name] = fr
		if fr.NeedsReview {
			needsReview = append(needsReview, name)
		}
	}

	validationErrors := e.qualityGates(documentType, fields)

	used := make([]domain.EngineName, 0, len(results))
	for _, r := range results {
		used = append(used, r.EngineName)
	}

	highConfidence := 0
	for _, fr := range fields {
		if fr.Confidence >= e.cfg.ReviewThreshold {
			highConfidence++
		}
	}

	return &DocumentResult{
		Success:              true,
		OverallConfidence:    e.overallConfidence(fields),
		Fields:               fields,
		NeedsReviewFields:    needsReview,
		QualityGatePassed:    len(validationErrors) == 0,
		ValidationErrors:     validationErrors,
		EnginesUsed:          used,
		FailedEngines:        failed,
		TotalFieldsExtracted: len(fields),
		HighConfidenceFields: highConfidence,
	}
}

type engineOutcome struct {
	result *port.ExtractionResult
	name   domain.EngineName
	err    error
}

// runEngines invokes every selected engine concurrently and collects the
// successful results in canonical engine order. One engine's crash never
// aborts the batch.
func (e *Engine) runEngines(ctx context.Context, selected []port.ExtractionEngine, pdfBytes []byte) ([]*port.ExtractionResult, []domain.EngineName) {
	outcomes := make(chan engineOutcome, len(selected))
	for _, eng := range selected {
		go func(eng port.ExtractionEngine) {
			res, err := eng.Extract(ctx, pdfBytes)
			outcomes <- engineOutcome{result: res, name: eng.Name(), err: err}
		}(eng)
	}

	var results []*port.ExtractionResult
	var failed []domain.EngineName
	for range selected {
		out := <-outcomes
		if out.err != nil {
			log.Printf("ensemble.Engine: engine %s failed: %v", out.name, out.err)
			failed = append(failed, out.name)
			continue
		}
		if out.result == nil || !out.result.Success {
			log.Printf("ensemble.Engine: engine %s reported unsuccessful extraction", out.name)
			failed = append(failed, out.name)
			continue
		}
		results = append(results, out.result)
	}

	// Results arrive in completion order; re-sort so the vote is a pure
	// function of the input set.
	sort.Slice(results, func(i, j int) bool {
		return engineRank(results[i].EngineName) < engineRank(results[j].EngineName)
	})
	sort.Slice(failed, func(i, j int) bool {
		return engineRank(failed[i]) < engineRank(failed[j])
	})
	return results, failed
}

// flatten turns each engine's extracted data into FieldExtraction records.
func flatten(results []*port.ExtractionResult) []FieldExtraction {
	var extractions []FieldExtraction
	for _, r := range results {
		names := make([]string, 0, len(r.ExtractedData))
		for name := range r.ExtractedData {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fv := r.ExtractedData[name]
			extractions = append(extractions, FieldExtraction{
				FieldName:  name,
				Value:      fv.Value,
				Confidence: fv.Confidence,
				Engine:     r.EngineName,
				BBox:       fv.BBox,
				Page:       fv.Page,
			})
		}
	}
	return extractions
}

func organizeByField(extractions []FieldExtraction) map[string][]FieldExtraction {
	byField := make(map[string][]FieldExtraction)
	for _, ex := range extractions {
		byField[ex.FieldName] = append(byField[ex.FieldName], ex)
	}
	return byField
}

// voteCandidate accumulates the weighted score for one distinct normalized value.
type voteCandidate struct {
	rawValue   string
	normalized string
	score      float64
	engines    []domain.EngineName
}

// ensembleVote decides one field's final value. Each candidate value
// accumulates confidence x field-type weight; the winner is the highest
// score. Confidence is the winning score over the candidate extraction count
// (a deliberate raw normalization, distinct from the confidence engine's
// weighted average), plus a consensus bonus when enough engines agree.
func (e *Engine) ensembleVote(fieldName string, extractions []FieldExtraction) *FieldResult {
	fieldType := DetectFieldType(fieldName)

	candidates := make(map[string]*voteCandidate)
	var order []string
	for _, ex := range extractions {
		n := normalize.Normalize(ex.Value)
		c, ok := candidates[n]
		if !ok {
			c = &voteCandidate{rawValue: ex.Value, normalized: n}
			candidates[n] = c
			order = append(order, n)
		}
		c.score += ex.Confidence * e.cfg.Weights.Weight(fieldType, ex.Engine)
		c.engines = append(c.engines, ex.Engine)
	}

	// Winner by score; equal scores break on lexical order of the
	// normalized value so the vote is deterministic regardless of input
	// iteration order.
	sort.SliceStable(order, func(i, j int) bool {
		ci, cj := candidates[order[i]], candidates[order[j]]
		if ci.score != cj.score {
			return ci.score > cj.score
		}
		return ci.normalized < cj.normalized
	})
	winner := candidates[order[0]]

	conflict := len(candidates) > 1
	agree := len(winner.engines)

	confidence := winner.score / float64(len(extractions))
	switch {
	case agree >= 5:
		confidence += e.cfg.StrongConsensusBonus
	case agree >= 3:
		confidence += e.cfg.ConsensusBonus
	}
	confidence = clamp01(confidence)

	var strategy domain.ResolutionStrategy
	switch {
	case agree >= 3 && !conflict:
		strategy = domain.ResolutionConsensus
	case containsEngine(winner.engines, e.cfg.HighTrustEngine) && agree >= 2:
		strategy = domain.ResolutionAIOverride
	case conflict:
		strategy = domain.ResolutionWeightedVote
	default:
		strategy = domain.ResolutionSingleEngine
	}

	needsReview := confidence < e.cfg.ReviewThreshold ||
		(conflict && confidence < e.cfg.ConsensusThreshold)

	summaries := make([]CandidateSummary, 0, len(order))
	var enginesUsed []domain.EngineName
	for _, key := range order {
		c := candidates[key]
		summaries = append(summaries, CandidateSummary{
			Value:      c.rawValue,
			Normalized: c.normalized,
			Score:      c.score,
			Engines:    c.engines,
		})
		enginesUsed = append(enginesUsed, c.engines...)
	}

	return &FieldResult{
		FieldName:          fieldName,
		FieldType:          fieldType,
		FinalValue:         winner.rawValue,
		Confidence:         confidence,
		ConsensusCount:     agree,
		ConflictDetected:   conflict,
		EnginesUsed:        enginesUsed,
		ResolutionStrategy: strategy,
		NeedsReview:        needsReview,
		Candidates:         summaries,
	}
}

// overallConfidence averages field confidences with critical accounting
// fields counted twice.
func (e *Engine) overallConfidence(fields map[string]*FieldResult) float64 {
	if len(fields) == 0 {
		return 0
	}
	var sum, weight float64
	for name, fr := range fields {
		w := 1.0
		if CriticalFields[name] {
			w = 2.0
		}
		sum += fr.Confidence * w
		weight += w
	}
	return clamp01(sum / weight)
}

func containsEngine(engines []domain.EngineName, target domain.EngineName) bool {
	for _, e := range engines {
		if e == target {
			return true
		}
	}
	return false
}
