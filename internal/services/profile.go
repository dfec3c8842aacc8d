package services

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

const (
	// Recency half-life for mastery weighting: a 30-day-old attempt
	// counts half as much as one from today.
	masteryHalfLifeDays = 30.0

	trendDelta = 0.05
)

// ProfileCalculator recomputes a student performance profile from raw
// assessment responses. Pure: persistence is the caller's job.
type ProfileCalculator interface {
	Compute(tenantID, studentID, courseID uuid.UUID, responses []*types.AssessmentResponse, now time.Time) (*types.StudentPerformanceProfile, []*types.ConceptMastery)
}

type profileCalculator struct {
	log *logger.Logger
}

func NewProfileCalculator(baseLog *logger.Logger) ProfileCalculator {
	return &profileCalculator{log: baseLog.With("service", "ProfileCalculator")}
}

func (c *profileCalculator) Compute(tenantID, studentID, courseID uuid.UUID, responses []*types.AssessmentResponse, now time.Time) (*types.StudentPerformanceProfile, []*types.ConceptMastery) {
	profile := &types.StudentPerformanceProfile{
		ID:        uuid.New(),
		TenantID:  tenantID,
		StudentID: studentID,
		CourseID:  courseID,
	}

	byConcept := map[string][]*types.AssessmentResponse{}
	for _, r := range responses {
		if r.Concept == "" {
			continue
		}
		byConcept[r.Concept] = append(byConcept[r.Concept], r)
	}

	concepts := make([]string, 0, len(byConcept))
	for concept := range byConcept {
		concepts = append(concepts, concept)
	}
	sort.Strings(concepts)

	var masteries []*types.ConceptMastery
	masterySum, confidenceSum := 0.0, 0.0
	for _, concept := range concepts {
		rows := byConcept[concept]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].AnsweredAt.Before(rows[j].AnsweredAt) })

		mastery := recencyWeightedMean(rows, now)
		confidence := scoreConsistency(rows)
		masteries = append(masteries, &types.ConceptMastery{
			ID:               uuid.New(),
			ProfileID:        profile.ID,
			Concept:          concept,
			MasteryLevel:     mastery,
			ConfidenceScore:  confidence,
			AssessmentCount:  len(rows),
			ImprovementTrend: improvementTrend(rows),
		})
		masterySum += mastery
		confidenceSum += confidence
	}

	if len(masteries) > 0 {
		profile.OverallMastery = masterySum / float64(len(masteries))
		profile.ConfidenceLevel = confidenceSum / float64(len(masteries))
	}
	profile.LearningVelocity = learningVelocity(responses)
	profile.LastCalculated = now

	raw, _ := json.Marshal(map[string]interface{}{
		"total_responses": len(responses),
		"concept_count":   len(masteries),
	})
	profile.PerformanceData = datatypes.JSON(raw)

	return profile, masteries
}

func recencyWeightedMean(rows []*types.AssessmentResponse, now time.Time) float64 {
	weightedSum, weightTotal := 0.0, 0.0
	for _, r := range rows {
		ageDays := now.Sub(r.AnsweredAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		w := math.Pow(0.5, ageDays/masteryHalfLifeDays)
		weightedSum += w * r.Score
		weightTotal += w
	}
	if weightTotal == 0 {
		return 0
	}
	return weightedSum / weightTotal
}

// scoreConsistency maps score spread to a [0,1] confidence: consistent
// results with enough attempts score high, erratic or sparse ones low.
func scoreConsistency(rows []*types.AssessmentResponse) float64 {
	scores := make([]float64, len(rows))
	for i, r := range rows {
		scores[i] = r.Score
	}
	consistency := 1 - math.Min(1, 2*stdDeviation(scores))
	coverage := math.Min(float64(len(rows))/5.0, 1.0)
	return consistency * coverage
}

// improvementTrend compares the first and second half of the
// chronological attempts.
func improvementTrend(rows []*types.AssessmentResponse) string {
	if len(rows) < 4 {
		return types.TrendStable
	}
	mid := len(rows) / 2
	first := make([]float64, 0, mid)
	second := make([]float64, 0, len(rows)-mid)
	for i, r := range rows {
		if i < mid {
			first = append(first, r.Score)
		} else {
			second = append(second, r.Score)
		}
	}
	diff := mean(second) - mean(first)
	switch {
	case diff > trendDelta:
		return types.TrendImproving
	case diff < -trendDelta:
		return types.TrendDeclining
	default:
		return types.TrendStable
	}
}

// learningVelocity is the overall score gain per active week across
// the window.
func learningVelocity(responses []*types.AssessmentResponse) float64 {
	if len(responses) < 4 {
		return 0
	}
	sorted := append([]*types.AssessmentResponse(nil), responses...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].AnsweredAt.Before(sorted[j].AnsweredAt) })

	span := sorted[len(sorted)-1].AnsweredAt.Sub(sorted[0].AnsweredAt)
	weeks := span.Hours() / (24 * 7)
	if weeks < 1 {
		weeks = 1
	}

	mid := len(sorted) / 2
	first := make([]float64, 0, mid)
	second := make([]float64, 0, len(sorted)-mid)
	for i, r := range sorted {
		if i < mid {
			first = append(first, r.Score)
		} else {
			second = append(second, r.Score)
		}
	}
	velocity := (mean(second) - mean(first)) / weeks
	return math.Max(-1, math.Min(1, velocity))
}
