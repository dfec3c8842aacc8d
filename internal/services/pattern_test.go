package services

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/lumenlabs/lumen-analytics/internal/domain"
)

func response(concept string, score, difficulty float64, timeSpent int) *types.AssessmentResponse {
	return &types.AssessmentResponse{
		ID:           uuid.New(),
		Concept:      concept,
		Score:        score,
		Difficulty:   difficulty,
		TimeSpentSec: timeSpent,
		AnsweredAt:   time.Now().UTC(),
	}
}

func patternsOfType(patterns []*types.StrugglePattern, patternType string) []*types.StrugglePattern {
	var out []*types.StrugglePattern
	for _, p := range patterns {
		if p.PatternType == patternType {
			out = append(out, p)
		}
	}
	return out
}

func TestKnowledgeGapDetection(t *testing.T) {
	detector := NewPatternDetector(testLogger(t))
	responses := []*types.AssessmentResponse{
		response("algebra", 0.3, 0.5, 60),
		response("algebra", 0.4, 0.5, 60),
		response("algebra", 0.35, 0.5, 60),
	}

	patterns := detector.Detect(uuid.New(), uuid.New(), nil, responses, time.Now().UTC())
	gaps := patternsOfType(patterns, types.PatternKnowledgeGap)
	if len(gaps) != 1 {
		t.Fatalf("got %d knowledge gaps, want 1", len(gaps))
	}
	gap := gaps[0]

	// mean 0.35, severity (0.6-0.35)/0.6, confidence 3/5.
	wantSeverity := (0.6 - 0.35) / 0.6
	if math.Abs(gap.Severity-wantSeverity) > 1e-9 {
		t.Fatalf("severity = %v, want %v", gap.Severity, wantSeverity)
	}
	if math.Abs(gap.ConfidenceScore-0.6) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.6", gap.ConfidenceScore)
	}

	var concepts []string
	if err := json.Unmarshal(gap.ConceptsInvolved, &concepts); err != nil {
		t.Fatalf("decode concepts: %v", err)
	}
	if len(concepts) != 1 || concepts[0] != "algebra" {
		t.Fatalf("concepts = %v, want [algebra]", concepts)
	}

	var interventions []string
	if err := json.Unmarshal(gap.SuggestedInterventions, &interventions); err != nil {
		t.Fatalf("decode interventions: %v", err)
	}
	if len(interventions) == 0 {
		t.Fatal("expected suggested interventions")
	}
}

func TestKnowledgeGapNeedsThreeAttempts(t *testing.T) {
	detector := NewPatternDetector(testLogger(t))
	responses := []*types.AssessmentResponse{
		response("algebra", 0.1, 0.5, 60),
		response("algebra", 0.2, 0.5, 60),
	}

	patterns := detector.Detect(uuid.New(), uuid.New(), nil, responses, time.Now().UTC())
	if gaps := patternsOfType(patterns, types.PatternKnowledgeGap); len(gaps) != 0 {
		t.Fatalf("two attempts must not flag a gap, got %d", len(gaps))
	}
}

func TestKnowledgeGapThresholdIsExclusive(t *testing.T) {
	detector := NewPatternDetector(testLogger(t))
	responses := []*types.AssessmentResponse{
		response("algebra", 0.6, 0.5, 60),
		response("algebra", 0.6, 0.5, 60),
		response("algebra", 0.6, 0.5, 60),
	}

	patterns := detector.Detect(uuid.New(), uuid.New(), nil, responses, time.Now().UTC())
	if gaps := patternsOfType(patterns, types.PatternKnowledgeGap); len(gaps) != 0 {
		t.Fatalf("mean exactly at the threshold must not flag a gap, got %d", len(gaps))
	}
}

func TestConfidenceIssueDetection(t *testing.T) {
	detector := NewPatternDetector(testLogger(t))

	var responses []*types.AssessmentResponse
	// Nine quick correct answers and three slow misses at the same
	// difficulty: bucket average 120s, anomaly cutoff 180s.
	for i := 0; i < 9; i++ {
		responses = append(responses, response("stats", 0.8, 0.5, 60))
	}
	for i := 0; i < 3; i++ {
		responses = append(responses, response("geometry", 0.3, 0.5, 300))
	}

	patterns := detector.Detect(uuid.New(), uuid.New(), nil, responses, time.Now().UTC())
	issues := patternsOfType(patterns, types.PatternConfidenceIssue)
	if len(issues) != 1 {
		t.Fatalf("got %d confidence issues, want 1", len(issues))
	}
	issue := issues[0]

	if math.Abs(issue.Severity-3.0/12.0) > 1e-9 {
		t.Fatalf("severity = %v, want %v", issue.Severity, 3.0/12.0)
	}
	if issue.ConfidenceScore != 0.7 {
		t.Fatalf("confidence = %v, want 0.7", issue.ConfidenceScore)
	}

	var concepts []string
	if err := json.Unmarshal(issue.ConceptsInvolved, &concepts); err != nil {
		t.Fatalf("decode concepts: %v", err)
	}
	if len(concepts) != 1 || concepts[0] != "geometry" {
		t.Fatalf("concepts = %v, want [geometry]", concepts)
	}
}

func TestConfidenceIssueNeedsBaseline(t *testing.T) {
	detector := NewPatternDetector(testLogger(t))

	var responses []*types.AssessmentResponse
	for i := 0; i < 5; i++ {
		responses = append(responses, response("stats", 0.9, 0.5, 60))
	}
	for i := 0; i < 3; i++ {
		responses = append(responses, response("stats", 0.2, 0.5, 400))
	}

	// Only 8 timed responses: below the baseline minimum.
	patterns := detector.Detect(uuid.New(), uuid.New(), nil, responses, time.Now().UTC())
	if issues := patternsOfType(patterns, types.PatternConfidenceIssue); len(issues) != 0 {
		t.Fatalf("expected no confidence issue below the timed baseline, got %d", len(issues))
	}
}
