package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

const (
	weakConceptThreshold  = 0.5
	gapReviewThreshold    = 0.6
	advancementThreshold  = 0.8
	lowConfidenceCutoff   = 0.4
	severeStruggleCutoff  = 0.7
	maxGapRecommendations = 3

	// RecommendationTTL bounds how long a generated recommendation stays
	// actionable before lazy expiry hides it.
	RecommendationTTL = 14 * 24 * time.Hour
)

// ConceptLinks describes how a concept relates to the rest of the
// course material. Optional: generators degrade gracefully without it.
type ConceptLinks struct {
	Prerequisites []string
	BuildsOn      []string
}

// StrategyWeights tune how a strategy scores candidate recommendations.
type StrategyWeights struct {
	MasteryGap    float64
	Confidence    float64
	Velocity      float64
	LearningStyle float64
}

const (
	StrategyStruggling = "struggling"
	StrategyAdvanced   = "advanced"
	StrategyBalanced   = "balanced"
)

// RecommendationInput is everything the rule engine needs for one
// student: the current profile, per-concept masteries, recent (<=30d)
// unresolved struggle patterns, and optional extras.
type RecommendationInput struct {
	Profile           *types.StudentPerformanceProfile
	Masteries         []*types.ConceptMastery
	RecentStruggles   []*types.StrugglePattern
	LearningStyle     string
	Concepts          map[string]ConceptLinks
	TimeBudgetMinutes int
}

// Reranker is the optional external re-ranking collaborator. It may
// reorder the ranked list; any failure falls back silently to the
// rule-based order. Pure enhancement, never a correctness dependency.
type Reranker interface {
	Rerank(ctx context.Context, studentContext string, ids []uuid.UUID) ([]uuid.UUID, error)
}

// RecommendationEngine produces a ranked, optionally budget-packed list
// of learning recommendations.
type RecommendationEngine interface {
	Generate(ctx context.Context, in RecommendationInput) ([]*types.LearningRecommendation, error)
}

type recommendationEngine struct {
	reranker Reranker
	log      *logger.Logger
}

func NewRecommendationEngine(reranker Reranker, baseLog *logger.Logger) RecommendationEngine {
	return &recommendationEngine{
		reranker: reranker,
		log:      baseLog.With("service", "RecommendationEngine"),
	}
}

func (e *recommendationEngine) Generate(ctx context.Context, in RecommendationInput) ([]*types.LearningRecommendation, error) {
	if in.Profile == nil {
		return nil, fmt.Errorf("recommendation input requires a profile")
	}

	strategy, weights := e.selectStrategy(in)

	var recs []*types.LearningRecommendation
	recs = append(recs, e.knowledgeGapReviews(in, strategy, weights)...)
	recs = append(recs, e.advancementRecommendations(in)...)
	recs = append(recs, e.confidenceBuilding(in, strategy)...)
	recs = append(recs, e.struggleInterventions(in)...)
	recs = append(recs, e.learningStyleMatched(in, weights)...)

	rankRecommendations(recs)
	recs = e.applyReranking(ctx, in, recs)

	if in.TimeBudgetMinutes > 0 {
		recs = packToBudget(recs, in.TimeBudgetMinutes)
	}
	return recs, nil
}

// selectStrategy classifies the student from the profile and recent
// struggle history, and picks the matching weight vector.
func (e *recommendationEngine) selectStrategy(in RecommendationInput) (string, StrategyWeights) {
	weak := 0
	for _, m := range in.Masteries {
		if m.MasteryLevel < weakConceptThreshold {
			weak++
		}
	}
	struggles := len(in.RecentStruggles)

	switch {
	case in.Profile.OverallMastery < 0.5 || weak > 3 || struggles > 2:
		return StrategyStruggling, StrategyWeights{MasteryGap: 0.4, Confidence: 0.3, Velocity: 0.1, LearningStyle: 0.2}
	case in.Profile.OverallMastery > 0.8 && weak < 2 && struggles == 0:
		return StrategyAdvanced, StrategyWeights{MasteryGap: 0.1, Confidence: 0.3, Velocity: 0.3, LearningStyle: 0.3}
	default:
		return StrategyBalanced, StrategyWeights{MasteryGap: 0.25, Confidence: 0.25, Velocity: 0.25, LearningStyle: 0.25}
	}
}

// Rule 1: review the lowest-mastery concepts, preferring unmet
// prerequisites over the concept itself when any exist.
func (e *recommendationEngine) knowledgeGapReviews(in RecommendationInput, strategy string, weights StrategyWeights) []*types.LearningRecommendation {
	known := map[string]float64{}
	for _, m := range in.Masteries {
		known[m.Concept] = m.MasteryLevel
	}

	gaps := make([]*types.ConceptMastery, 0, len(in.Masteries))
	for _, m := range in.Masteries {
		if m.MasteryLevel < gapReviewThreshold {
			gaps = append(gaps, m)
		}
	}
	sort.SliceStable(gaps, func(i, j int) bool { return gaps[i].MasteryLevel < gaps[j].MasteryLevel })
	if len(gaps) > maxGapRecommendations {
		gaps = gaps[:maxGapRecommendations]
	}

	var out []*types.LearningRecommendation
	for _, gap := range gaps {
		targets := []string{gap.Concept}
		reasoning := fmt.Sprintf("Mastery of %s is %.2f, below the %.2f review threshold.", gap.Concept, gap.MasteryLevel, gapReviewThreshold)

		if links, ok := in.Concepts[gap.Concept]; ok {
			var unmet []string
			for _, prereq := range links.Prerequisites {
				if level, seen := known[prereq]; !seen || level < gapReviewThreshold {
					unmet = append(unmet, prereq)
				}
			}
			if len(unmet) > 0 {
				targets = unmet
				reasoning = fmt.Sprintf("Mastery of %s is %.2f; its prerequisites %v are not yet solid, so review them first.", gap.Concept, gap.MasteryLevel, unmet)
			}
		}

		priority := types.PriorityMedium
		score := weights.MasteryGap*(1-gap.MasteryLevel) + weights.Confidence*(1-in.Profile.ConfidenceLevel)
		if strategy == StrategyStruggling || score > 0.4 {
			priority = types.PriorityHigh
		}

		out = append(out, e.draft(in, types.RecommendationReview, priority, targets,
			[]string{fmt.Sprintf("Review the core material for %v", targets)},
			30, reasoning))
	}
	return out
}

// Rule 2: advance from mastered, improving concepts to the concepts
// that build on them.
func (e *recommendationEngine) advancementRecommendations(in RecommendationInput) []*types.LearningRecommendation {
	var out []*types.LearningRecommendation
	for _, m := range in.Masteries {
		if m.MasteryLevel < advancementThreshold || m.ImprovementTrend != types.TrendImproving {
			continue
		}
		next := []string{m.Concept}
		reasoning := fmt.Sprintf("Mastery of %s is %.2f and improving; ready for more challenging material.", m.Concept, m.MasteryLevel)
		if links, ok := in.Concepts[m.Concept]; ok && len(links.BuildsOn) > 0 {
			next = links.BuildsOn
			reasoning = fmt.Sprintf("Mastery of %s is %.2f and improving; %v build on it.", m.Concept, m.MasteryLevel, links.BuildsOn)
		}
		out = append(out, e.draft(in, types.RecommendationAdvance, types.PriorityLow, next,
			[]string{fmt.Sprintf("Start the next topic: %v", next)},
			25, reasoning))
	}
	return out
}

// Rule 3: a single confidence-building recommendation when overall
// confidence is low.
func (e *recommendationEngine) confidenceBuilding(in RecommendationInput, strategy string) []*types.LearningRecommendation {
	if in.Profile.ConfidenceLevel >= lowConfidenceCutoff {
		return nil
	}
	priority := types.PriorityMedium
	if strategy == StrategyStruggling {
		priority = types.PriorityHigh
	}
	return []*types.LearningRecommendation{
		e.draft(in, types.RecommendationPractice, priority, nil,
			[]string{"Practice problems slightly below current level to build momentum"},
			20,
			fmt.Sprintf("Confidence level %.2f is below %.2f; low-stakes practice rebuilds it.", in.Profile.ConfidenceLevel, lowConfidenceCutoff)),
	}
}

// Rule 4: one recommendation per unresolved struggle pattern, action
// text verbatim from the pattern's suggested interventions.
func (e *recommendationEngine) struggleInterventions(in RecommendationInput) []*types.LearningRecommendation {
	var out []*types.LearningRecommendation
	for _, p := range in.RecentStruggles {
		var actions []string
		if len(p.SuggestedInterventions) > 0 {
			_ = json.Unmarshal(p.SuggestedInterventions, &actions)
		}
		var concepts []string
		if len(p.ConceptsInvolved) > 0 {
			_ = json.Unmarshal(p.ConceptsInvolved, &concepts)
		}

		recType := types.RecommendationReview
		priority := types.PriorityMedium
		if p.Severity > severeStruggleCutoff {
			recType = types.RecommendationSeekHelp
			priority = types.PriorityHigh
		}
		out = append(out, e.draft(in, recType, priority, concepts, actions, 30,
			fmt.Sprintf("A %s pattern (severity %.2f) was detected on %v.", p.PatternType, p.Severity, concepts)))
	}
	return out
}

// Rule 5: learning-style-matched content when a style profile exists.
func (e *recommendationEngine) learningStyleMatched(in RecommendationInput, weights StrategyWeights) []*types.LearningRecommendation {
	if in.LearningStyle == "" || weights.LearningStyle <= 0 {
		return nil
	}
	return []*types.LearningRecommendation{
		e.draft(in, types.RecommendationPractice, types.PriorityLow, nil,
			[]string{fmt.Sprintf("Work with %s-oriented materials for current topics", in.LearningStyle)},
			15,
			fmt.Sprintf("Student's %s learning style matches this content format.", in.LearningStyle)),
	}
}

func (e *recommendationEngine) draft(in RecommendationInput, recType, priority string, concepts, actions []string, minutes int, reasoning string) *types.LearningRecommendation {
	expires := time.Now().UTC().Add(RecommendationTTL)
	return &types.LearningRecommendation{
		ID:                   uuid.New(),
		ProfileID:            in.Profile.ID,
		TenantID:             in.Profile.TenantID,
		RecommendationType:   recType,
		Priority:             priority,
		Concepts:             jsonStrings(concepts),
		SuggestedActions:     jsonStrings(actions),
		EstimatedTimeMinutes: minutes,
		Reasoning:            reasoning,
		Status:               types.RecommendationActive,
		ExpiresAt:            &expires,
	}
}

var priorityRank = map[string]int{
	types.PriorityHigh:   0,
	types.PriorityMedium: 1,
	types.PriorityLow:    2,
}

var typeRank = map[string]int{
	types.RecommendationSeekHelp: 0,
	types.RecommendationReview:   1,
	types.RecommendationPractice: 2,
	types.RecommendationAdvance:  3,
}

// rankRecommendations stable-sorts by priority, then type, then
// ascending estimated time.
func rankRecommendations(recs []*types.LearningRecommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if priorityRank[recs[i].Priority] != priorityRank[recs[j].Priority] {
			return priorityRank[recs[i].Priority] < priorityRank[recs[j].Priority]
		}
		if typeRank[recs[i].RecommendationType] != typeRank[recs[j].RecommendationType] {
			return typeRank[recs[i].RecommendationType] < typeRank[recs[j].RecommendationType]
		}
		return recs[i].EstimatedTimeMinutes < recs[j].EstimatedTimeMinutes
	})
}

// applyReranking asks the external collaborator for a new order and
// keeps the rule-based order on any failure or malformed response.
func (e *recommendationEngine) applyReranking(ctx context.Context, in RecommendationInput, recs []*types.LearningRecommendation) []*types.LearningRecommendation {
	if e.reranker == nil || len(recs) < 2 {
		return recs
	}

	ids := make([]uuid.UUID, len(recs))
	byID := make(map[uuid.UUID]*types.LearningRecommendation, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
		byID[r.ID] = r
	}

	summary := fmt.Sprintf("overall mastery %.2f, learning velocity %.2f, confidence %.2f, %d recent struggles",
		in.Profile.OverallMastery, in.Profile.LearningVelocity, in.Profile.ConfidenceLevel, len(in.RecentStruggles))

	reordered, err := e.reranker.Rerank(ctx, summary, ids)
	if err != nil {
		e.log.Debug("reranker unavailable, keeping rule-based order", "error", err)
		return recs
	}
	if len(reordered) != len(recs) {
		return recs
	}
	out := make([]*types.LearningRecommendation, 0, len(recs))
	seen := make(map[uuid.UUID]bool, len(recs))
	for _, id := range reordered {
		r, ok := byID[id]
		if !ok || seen[id] {
			return recs
		}
		seen[id] = true
		out = append(out, r)
	}
	return out
}

// packToBudget greedily keeps recommendations that fit the remaining
// time budget, in ranked order. The first recommendation is always
// kept, even over budget, so the result is never empty.
func packToBudget(recs []*types.LearningRecommendation, budgetMinutes int) []*types.LearningRecommendation {
	if len(recs) == 0 {
		return recs
	}
	out := []*types.LearningRecommendation{recs[0]}
	remaining := budgetMinutes - recs[0].EstimatedTimeMinutes
	for _, r := range recs[1:] {
		if r.EstimatedTimeMinutes <= remaining {
			out = append(out, r)
			remaining -= r.EstimatedTimeMinutes
		}
	}
	return out
}
