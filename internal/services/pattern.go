package services

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

const (
	// Rule 1: a concept needs this many scored attempts before a gap
	// can be called, and a mean below the threshold flags one.
	knowledgeGapMinAttempts = 3
	knowledgeGapThreshold   = 0.6

	// Rule 2: time anomalies only count against a baseline of at least
	// this many timed responses.
	confidenceMinTimed     = 10
	confidenceMinAnomalies = 3
	confidenceTimeFactor   = 1.5
	confidenceScoreCeiling = 0.5
)

// PatternDetector runs the rule-based struggle analysis over a
// student's recent assessment responses. Detection is pure; persisting
// the returned patterns is the caller's job.
type PatternDetector interface {
	Detect(tenantID, studentID uuid.UUID, courseID *uuid.UUID, responses []*types.AssessmentResponse, now time.Time) []*types.StrugglePattern
}

type patternDetector struct {
	log *logger.Logger
}

func NewPatternDetector(baseLog *logger.Logger) PatternDetector {
	return &patternDetector{log: baseLog.With("service", "PatternDetector")}
}

func (d *patternDetector) Detect(tenantID, studentID uuid.UUID, courseID *uuid.UUID, responses []*types.AssessmentResponse, now time.Time) []*types.StrugglePattern {
	var out []*types.StrugglePattern
	out = append(out, d.detectKnowledgeGaps(tenantID, studentID, courseID, responses, now)...)
	if p := d.detectConfidenceIssue(tenantID, studentID, courseID, responses, now); p != nil {
		out = append(out, p)
	}
	return out
}

func (d *patternDetector) detectKnowledgeGaps(tenantID, studentID uuid.UUID, courseID *uuid.UUID, responses []*types.AssessmentResponse, now time.Time) []*types.StrugglePattern {
	scoresByConcept := map[string][]float64{}
	for _, r := range responses {
		if r.Concept == "" {
			continue
		}
		scoresByConcept[r.Concept] = append(scoresByConcept[r.Concept], r.Score)
	}

	concepts := make([]string, 0, len(scoresByConcept))
	for c := range scoresByConcept {
		concepts = append(concepts, c)
	}
	sort.Strings(concepts)

	var out []*types.StrugglePattern
	for _, concept := range concepts {
		scores := scoresByConcept[concept]
		if len(scores) < knowledgeGapMinAttempts {
			continue
		}
		avg := mean(scores)
		if avg >= knowledgeGapThreshold {
			continue
		}
		severity := math.Max(0, (knowledgeGapThreshold-avg)/knowledgeGapThreshold)
		confidence := math.Min(float64(len(scores))/5.0, 1.0)
		out = append(out, &types.StrugglePattern{
			ID:               uuid.New(),
			TenantID:         tenantID,
			StudentID:        studentID,
			CourseID:         courseID,
			PatternType:      types.PatternKnowledgeGap,
			ConceptsInvolved: jsonStrings([]string{concept}),
			Severity:         severity,
			ConfidenceScore:  confidence,
			SuggestedInterventions: jsonStrings([]string{
				fmt.Sprintf("Review foundational material for %s", concept),
				fmt.Sprintf("Work through guided practice problems on %s", concept),
			}),
			DetectedAt: now,
		})
	}
	return out
}

func (d *patternDetector) detectConfidenceIssue(tenantID, studentID uuid.UUID, courseID *uuid.UUID, responses []*types.AssessmentResponse, now time.Time) *types.StrugglePattern {
	var timed []*types.AssessmentResponse
	for _, r := range responses {
		if r.TimeSpentSec > 0 {
			timed = append(timed, r)
		}
	}
	if len(timed) < confidenceMinTimed {
		return nil
	}

	// Bucket response times by difficulty quartile so a slow answer is
	// judged against peers of similar difficulty.
	bucketTotals := map[int]float64{}
	bucketCounts := map[int]int{}
	for _, r := range timed {
		b := difficultyBucket(r.Difficulty)
		bucketTotals[b] += float64(r.TimeSpentSec)
		bucketCounts[b]++
	}

	anomalies := 0
	conceptSet := map[string]bool{}
	for _, r := range timed {
		b := difficultyBucket(r.Difficulty)
		avg := bucketTotals[b] / float64(bucketCounts[b])
		if float64(r.TimeSpentSec) > confidenceTimeFactor*avg && r.Score < confidenceScoreCeiling {
			anomalies++
			if r.Concept != "" {
				conceptSet[r.Concept] = true
			}
		}
	}
	if anomalies < confidenceMinAnomalies {
		return nil
	}

	concepts := make([]string, 0, len(conceptSet))
	for c := range conceptSet {
		concepts = append(concepts, c)
	}
	sort.Strings(concepts)

	return &types.StrugglePattern{
		ID:               uuid.New(),
		TenantID:         tenantID,
		StudentID:        studentID,
		CourseID:         courseID,
		PatternType:      types.PatternConfidenceIssue,
		ConceptsInvolved: jsonStrings(concepts),
		Severity:         float64(anomalies) / float64(len(timed)),
		ConfidenceScore:  0.7,
		SuggestedInterventions: jsonStrings([]string{
			"Start with lower-difficulty problems to rebuild confidence",
			"Use worked examples before attempting timed assessments",
		}),
		DetectedAt: now,
	}
}

func difficultyBucket(difficulty float64) int {
	switch {
	case difficulty < 0.25:
		return 0
	case difficulty < 0.5:
		return 1
	case difficulty < 0.75:
		return 2
	default:
		return 3
	}
}

func jsonStrings(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	raw, _ := json.Marshal(values)
	return datatypes.JSON(raw)
}
