package ensemble

import (
	"fmt"
	"sort"

	"verity/internal/domain"
	"verity/internal/normalize"
	"verity/internal/port"
)

// ConfidenceEngine computes per-field aggregate confidence from the opinions
// of multiple engines, classifies conflicts, and recommends resolution
// strategies. It is purely computational and safe for concurrent use: the
// weight table is read-only after construction.
type ConfidenceEngine struct {
	weights map[domain.EngineName]float64
}

// NewConfidenceEngine creates a ConfidenceEngine with the given engine weight
// table. A nil table selects DefaultEngineWeights.
func NewConfidenceEngine(weights map[domain.EngineName]float64) *ConfidenceEngine {
	if weights == nil {
		weights = DefaultEngineWeights()
	}
	return &ConfidenceEngine{weights: weights}
}

func (e *ConfidenceEngine) weight(engine domain.EngineName) float64 {
	if w, ok := e.weights[engine]; ok {
		return w
	}
	return defaultEngineWeight
}

// CalculateFieldConfidence combines per-engine opinions about one field into a
// single confidence score. When all values agree after normalization the
// score is the weighted average of engine confidences; when they disagree, a
// penalty proportional to the disagreement is applied and a Conflict record
// is returned. An empty opinion set is the normal "nothing extracted" case
// and yields (0, no_data, nil), never an error.
func (e *ConfidenceEngine) CalculateFieldConfidence(fieldName string, opinions []ValueOpinion) (float64, domain.ResolutionStrategy, *Conflict) {
	if len(opinions) == 0 {
		return 0.0, domain.ResolutionNoData, nil
	}

	distinct := distinctNormalized(opinions)
	if len(distinct) == 1 {
		conf := e.weightedAverage(opinions)
		method := domain.ResolutionSingleEngine
		if len(opinions) > 1 {
			method = domain.ResolutionConsensus
		}
		return clamp01(conf), method, nil
	}

	conf, method := e.resolveConflictConfidence(opinions, len(distinct))
	spread := confidenceSpread(opinions)
	conflict := &Conflict{
		FieldName: fieldName,
		Values:    distinct,
		Engines:   opinionEngines(opinions),
		Spread:    spread,
		Severity:  conflictSeverity(spread),
	}
	return conf, method, conflict
}

// resolveConflictConfidence penalizes the weighted base confidence by how many
// distinct values conflict and how far apart the engines' confidences are.
// The penalty is capped at 0.30 by construction, so the result never goes
// negative for base confidences in [0,1].
func (e *ConfidenceEngine) resolveConflictConfidence(opinions []ValueOpinion, distinctCount int) (float64, domain.ResolutionStrategy) {
	spread := confidenceSpread(opinions)

	penalty := 0.0
	if distinctCount >= 3 {
		penalty += 0.15
	} else if distinctCount == 2 {
		penalty += 0.10
	}
	if spread > 0.3 {
		penalty += 0.15
	} else if spread > 0.15 {
		penalty += 0.10
	}

	weightedBase := e.weightedAverage(opinions)
	conf := clamp01(weightedBase * (1 - penalty))

	var method domain.ResolutionStrategy
	switch {
	case spread > 0.3:
		method = domain.ResolutionHumanReview
	case distinctCount >= 3:
		method = domain.ResolutionAIOverride
	default:
		method = domain.ResolutionWeightedVote
	}
	return conf, method
}

// DetectConflicts inspects successful engine results field by field and
// returns a record for every field whose normalized values disagree.
func (e *ConfidenceEngine) DetectConflicts(results []*port.ExtractionResult, fieldNames []string) []Conflict {
	var conflicts []Conflict
	for _, field := range fieldNames {
		opinions := opinionsForField(results, field)
		if len(opinions) < 2 {
			continue
		}
		distinct := distinctNormalized(opinions)
		if len(distinct) < 2 {
			continue
		}
		spread := confidenceSpread(opinions)
		conflicts = append(conflicts, Conflict{
			FieldName: field,
			Values:    distinct,
			Engines:   opinionEngines(opinions),
			Spread:    spread,
			Severity:  conflictSeverity(spread),
		})
	}
	return conflicts
}

// ResolutionDecision is the outcome of RecommendResolutionStrategy.
type ResolutionDecision struct {
	Strategy    domain.ResolutionStrategy `json:"strategy"`
	ChosenValue string                    `json:"chosen_value"`
	Confidence  float64                   `json:"confidence"`
	NeedsReview bool                      `json:"needs_review"`
	Priority    domain.ReviewPriority     `json:"priority"`
	Reasoning   string                    `json:"reasoning"`
}

// RecommendResolutionStrategy picks a resolution for a set of conflicting
// candidates via a strict priority cascade. The rules overlap, so the order
// is load-bearing: each rule applies only when every earlier rule declined.
func (e *ConfidenceEngine) RecommendResolutionStrategy(candidates []ValueOpinion) ResolutionDecision {
	// Rule 1: nothing to resolve.
	if len(candidates) == 0 {
		return ResolutionDecision{
			Strategy:  domain.ResolutionNoConflict,
			Priority:  domain.PriorityNone,
			Reasoning: "no candidate values supplied",
		}
	}

	// Rule 2: a single candidate wins outright.
	if len(candidates) == 1 {
		c := candidates[0]
		return ResolutionDecision{
			Strategy:    domain.ResolutionSingleEngine,
			ChosenValue: c.Value,
			Confidence:  clamp01(c.Confidence),
			Priority:    domain.PriorityNone,
			Reasoning:   fmt.Sprintf("only %s produced a value", c.Engine),
		}
	}

	sorted := sortByConfidence(candidates)
	top := sorted[0]

	// Rule 3: a clear confidence leader takes the vote.
	if top.Confidence-sorted[1].Confidence > 0.20 {
		return ResolutionDecision{
			Strategy:    domain.ResolutionWeightedVote,
			ChosenValue: top.Value,
			Confidence:  clamp01(top.Confidence),
			Priority:    domain.PriorityNone,
			Reasoning: fmt.Sprintf("%s leads by %.2f confidence over the runner-up",
				top.Engine, top.Confidence-sorted[1].Confidence),
		}
	}

	// Rule 4: a confident majority forms a consensus.
	if value, supporters, ok := confidentMajority(sorted); ok {
		var sum float64
		for _, s := range supporters {
			sum += s.Confidence
		}
		return ResolutionDecision{
			Strategy:    domain.ResolutionConsensus,
			ChosenValue: value,
			Confidence:  clamp01(sum / float64(len(supporters))),
			Priority:    domain.PriorityNone,
			Reasoning:   fmt.Sprintf("%d engines with confidence >= 0.70 agree", len(supporters)),
		}
	}

	// Rule 5: nobody is confident; a human decides.
	allLow := true
	for _, c := range sorted {
		if c.Confidence >= 0.70 {
			allLow = false
			break
		}
	}
	if allLow {
		return ResolutionDecision{
			Strategy:    domain.ResolutionHumanReview,
			ChosenValue: top.Value,
			Confidence:  clamp01(top.Confidence),
			NeedsReview: true,
			Priority:    domain.PriorityHigh,
			Reasoning:   "all candidates below 0.70 confidence",
		}
	}

	// Rule 6: too many distinct answers to trust a simple vote.
	if len(distinctNormalized(sorted)) >= 3 {
		var sum float64
		for _, c := range sorted {
			sum += c.Confidence
		}
		return ResolutionDecision{
			Strategy:    domain.ResolutionAIOverride,
			ChosenValue: top.Value,
			Confidence:  clamp01(sum / float64(len(sorted))),
			NeedsReview: true,
			Priority:    domain.PriorityMedium,
			Reasoning:   "three or more distinct candidate values",
		}
	}

	// Rule 7: fall back to the top-confidence candidate.
	return ResolutionDecision{
		Strategy:    domain.ResolutionWeightedVote,
		ChosenValue: top.Value,
		Confidence:  clamp01(top.Confidence),
		Priority:    domain.PriorityNone,
		Reasoning:   fmt.Sprintf("defaulting to highest-confidence candidate from %s", top.Engine),
	}
}

// AggregateSummary is the document-level rollup of raw engine results.
type AggregateSummary struct {
	Success        bool                  `json:"success"`
	Confidence     float64               `json:"confidence"`
	EnginesUsed    []domain.EngineName   `json:"engines_used"`
	FailedEngines  []domain.EngineName   `json:"failed_engines"`
	Warnings       []string              `json:"warnings"`
	NeedsReview    bool                  `json:"needs_review"`
	ReviewPriority domain.ReviewPriority `json:"review_priority"`
}

// AggregateExtractionResults rolls up raw engine results into a document-level
// summary. Total engine failure is reported as an unsuccessful summary naming
// the failed engines, not as an error.
func (e *ConfidenceEngine) AggregateExtractionResults(results []*port.ExtractionResult) *AggregateSummary {
	var succeeded []*port.ExtractionResult
	var failed []domain.EngineName
	for _, r := range results {
		if r.Success {
			succeeded = append(succeeded, r)
		} else {
			failed = append(failed, r.EngineName)
		}
	}

	if len(succeeded) == 0 {
		return &AggregateSummary{
			Success:        false,
			Confidence:     0.0,
			FailedEngines:  failed,
			NeedsReview:    true,
			ReviewPriority: domain.PriorityCritical,
		}
	}

	var weightedSum, weightSum float64
	var used []domain.EngineName
	var warnings []string
	for _, r := range succeeded {
		w := e.weight(r.EngineName)
		weightedSum += r.OverallConfidence * w
		weightSum += w
		used = append(used, r.EngineName)
		warnings = append(warnings, r.Warnings...)
	}
	conf := clamp01(weightedSum / weightSum)

	needsReview := conf < 0.70 || len(warnings) > 0 || len(failed) > 0
	priority := domain.PriorityNone
	switch {
	case conf < 0.50:
		priority = domain.PriorityCritical
	case conf < 0.70:
		priority = domain.PriorityHigh
	case len(warnings) > 0:
		priority = domain.PriorityMedium
	case needsReview:
		priority = domain.PriorityLow
	}

	return &AggregateSummary{
		Success:        true,
		Confidence:     conf,
		EnginesUsed:    used,
		FailedEngines:  failed,
		Warnings:       warnings,
		NeedsReview:    needsReview,
		ReviewPriority: priority,
	}
}

// ShouldFlagForReview applies the review priority ladder. Rules are evaluated
// in order and the first match wins.
func (e *ConfidenceEngine) ShouldFlagForReview(confidence float64, hasConflicts bool, warnings []string) (bool, domain.ReviewPriority, string) {
	switch {
	case confidence < 0.50:
		return true, domain.PriorityCritical, fmt.Sprintf("confidence %.2f below 0.50", confidence)
	case confidence < 0.70:
		return true, domain.PriorityHigh, fmt.Sprintf("confidence %.2f below 0.70", confidence)
	case hasConflicts:
		return true, domain.PriorityHigh, "engines disagree on one or more fields"
	case len(warnings) > 2:
		return true, domain.PriorityMedium, fmt.Sprintf("%d extraction warnings", len(warnings))
	case len(warnings) >= 1:
		return true, domain.PriorityLow, fmt.Sprintf("%d extraction warning(s)", len(warnings))
	default:
		return false, domain.PriorityNone, ""
	}
}

func (e *ConfidenceEngine) weightedAverage(opinions []ValueOpinion) float64 {
	var weightedSum, weightSum float64
	for _, o := range opinions {
		w := e.weight(o.Engine)
		weightedSum += o.Confidence * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return weightedSum / weightSum
}

// opinionsForField zips each successful engine's value and confidence for the
// named field. Unsuccessful engines are never authoritative and are skipped.
func opinionsForField(results []*port.ExtractionResult, field string) []ValueOpinion {
	var opinions []ValueOpinion
	for _, r := range results {
		if !r.Success {
			continue
		}
		fv, ok := r.ExtractedData[field]
		if !ok {
			continue
		}
		opinions = append(opinions, ValueOpinion{
			Engine:     r.EngineName,
			Value:      fv.Value,
			Confidence: fv.Confidence,
		})
	}
	return opinions
}

// FieldNames returns the sorted union of field names across all successful
// results. Sorting keeps conflict detection output deterministic.
func FieldNames(results []*port.ExtractionResult) []string {
	seen := make(map[string]bool)
	for _, r := range results {
		if !r.Success {
			continue
		}
		for name := range r.ExtractedData {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// distinctNormalized returns the distinct normalized values in first-seen order.
func distinctNormalized(opinions []ValueOpinion) []string {
	seen := make(map[string]bool)
	var distinct []string
	for _, o := range opinions {
		n := normalize.Normalize(o.Value)
		if !seen[n] {
			seen[n] = true
			distinct = append(distinct, n)
		}
	}
	return distinct
}

func opinionEngines(opinions []ValueOpinion) []domain.EngineName {
	engines := make([]domain.EngineName, 0, len(opinions))
	for _, o := range opinions {
		engines = append(engines, o.Engine)
	}
	return engines
}

func confidenceSpread(opinions []ValueOpinion) float64 {
	if len(opinions) == 0 {
		return 0
	}
	min, max := opinions[0].Confidence, opinions[0].Confidence
	for _, o := range opinions[1:] {
		if o.Confidence < min {
			min = o.Confidence
		}
		if o.Confidence > max {
			max = o.Confidence
		}
	}
	return max - min
}

func conflictSeverity(spread float64) domain.ConflictSeverity {
	switch {
	case spread > 0.3:
		return domain.SeverityHigh
	case spread > 0.15:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// sortByConfidence returns a copy sorted by confidence descending. Ties break
// on canonical engine order so the cascade stays deterministic.
func sortByConfidence(candidates []ValueOpinion) []ValueOpinion {
	sorted := make([]ValueOpinion, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		return engineRank(sorted[i].Engine) < engineRank(sorted[j].Engine)
	})
	return sorted
}

func engineRank(name domain.EngineName) int {
	for i, e := range domain.KnownEngines {
		if e == name {
			return i
		}
	}
	return len(domain.KnownEngines)
}

// confidentMajority finds, among candidates with confidence >= 0.70, the value
// with the most supporters (ties broken by summed confidence). It reports ok
// only when the majority value has at least two supporting engines.
func confidentMajority(candidates []ValueOpinion) (string, []ValueOpinion, bool) {
	groups := make(map[string][]ValueOpinion)
	var order []string
	for _, c := range candidates {
		if c.Confidence < 0.70 {
			continue
		}
		n := normalize.Normalize(c.Value)
		if _, ok := groups[n]; !ok {
			order = append(order, n)
		}
		groups[n] = append(groups[n], c)
	}

	var best []ValueOpinion
	for _, key := range order {
		group := groups[key]
		switch {
		case best == nil:
			best = group
		case len(group) > len(best):
			best = group
		case len(group) == len(best) && sumConfidence(group) > sumConfidence(best):
			best = group
		}
	}

	if len(best) < 2 {
		return "", nil, false
	}
	// Report the raw value of the majority's first supporter, not the
	// normalized key, so callers see what an engine actually produced.
	return best[0].Value, best, true
}

func sumConfidence(opinions []ValueOpinion) float64 {
	var sum float64
	for _, o := range opinions {
		sum += o.Confidence
	}
	return sum
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
