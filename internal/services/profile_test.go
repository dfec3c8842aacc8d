package services

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/lumenlabs/lumen-analytics/internal/domain"
)

func timedResponse(concept string, score float64, answeredAt time.Time) *types.AssessmentResponse {
	return &types.AssessmentResponse{
		ID:         uuid.New(),
		Concept:    concept,
		Score:      score,
		AnsweredAt: answeredAt,
	}
}

func TestComputeEmptyResponses(t *testing.T) {
	calc := NewProfileCalculator(testLogger(t))
	now := time.Now().UTC()

	profile, masteries := calc.Compute(uuid.New(), uuid.New(), uuid.New(), nil, now)
	if profile.OverallMastery != 0 || profile.ConfidenceLevel != 0 || profile.LearningVelocity != 0 {
		t.Fatalf("empty input must yield a zeroed profile, got %+v", profile)
	}
	if len(masteries) != 0 {
		t.Fatalf("expected no masteries, got %d", len(masteries))
	}
	if !profile.LastCalculated.Equal(now) {
		t.Fatal("last calculated must be stamped")
	}

	var data map[string]interface{}
	if err := json.Unmarshal(profile.PerformanceData, &data); err != nil {
		t.Fatalf("performance data must be valid json: %v", err)
	}
}

func TestComputeRecencyWeighting(t *testing.T) {
	calc := NewProfileCalculator(testLogger(t))
	now := time.Now().UTC()

	// Old low scores, recent high scores: the weighted mastery must sit
	// above the plain average.
	responses := []*types.AssessmentResponse{
		timedResponse("algebra", 0.2, now.AddDate(0, 0, -80)),
		timedResponse("algebra", 0.2, now.AddDate(0, 0, -70)),
		timedResponse("algebra", 0.9, now.AddDate(0, 0, -2)),
		timedResponse("algebra", 0.9, now.AddDate(0, 0, -1)),
	}

	_, masteries := calc.Compute(uuid.New(), uuid.New(), uuid.New(), responses, now)
	if len(masteries) != 1 {
		t.Fatalf("got %d masteries, want 1", len(masteries))
	}
	m := masteries[0]
	plain := (0.2 + 0.2 + 0.9 + 0.9) / 4
	if m.MasteryLevel <= plain {
		t.Fatalf("recency weighting should pull mastery above %v, got %v", plain, m.MasteryLevel)
	}
	if m.ImprovementTrend != types.TrendImproving {
		t.Fatalf("trend = %s, want %s", m.ImprovementTrend, types.TrendImproving)
	}
	if m.AssessmentCount != 4 {
		t.Fatalf("assessment count = %d, want 4", m.AssessmentCount)
	}
}

func TestComputeConsistentScoresGiveFullConfidence(t *testing.T) {
	calc := NewProfileCalculator(testLogger(t))
	now := time.Now().UTC()

	var responses []*types.AssessmentResponse
	for i := 0; i < 5; i++ {
		responses = append(responses, timedResponse("algebra", 0.7, now.AddDate(0, 0, -i)))
	}

	_, masteries := calc.Compute(uuid.New(), uuid.New(), uuid.New(), responses, now)
	if len(masteries) != 1 {
		t.Fatalf("got %d masteries, want 1", len(masteries))
	}
	if math.Abs(masteries[0].ConfidenceScore-1.0) > 1e-9 {
		t.Fatalf("confidence = %v, want 1.0 for five identical scores", masteries[0].ConfidenceScore)
	}
}

func TestComputeDecliningTrend(t *testing.T) {
	calc := NewProfileCalculator(testLogger(t))
	now := time.Now().UTC()

	responses := []*types.AssessmentResponse{
		timedResponse("algebra", 0.9, now.AddDate(0, 0, -20)),
		timedResponse("algebra", 0.8, now.AddDate(0, 0, -15)),
		timedResponse("algebra", 0.4, now.AddDate(0, 0, -10)),
		timedResponse("algebra", 0.3, now.AddDate(0, 0, -5)),
	}

	_, masteries := calc.Compute(uuid.New(), uuid.New(), uuid.New(), responses, now)
	if masteries[0].ImprovementTrend != types.TrendDeclining {
		t.Fatalf("trend = %s, want %s", masteries[0].ImprovementTrend, types.TrendDeclining)
	}
}

func TestComputeAveragesAcrossConcepts(t *testing.T) {
	calc := NewProfileCalculator(testLogger(t))
	now := time.Now().UTC()

	responses := []*types.AssessmentResponse{
		timedResponse("algebra", 0.8, now),
		timedResponse("geometry", 0.4, now),
	}

	profile, masteries := calc.Compute(uuid.New(), uuid.New(), uuid.New(), responses, now)
	if len(masteries) != 2 {
		t.Fatalf("got %d masteries, want 2", len(masteries))
	}
	if math.Abs(profile.OverallMastery-0.6) > 1e-9 {
		t.Fatalf("overall mastery = %v, want 0.6", profile.OverallMastery)
	}
	for _, m := range masteries {
		if m.ProfileID != profile.ID {
			t.Fatal("masteries must reference the computed profile")
		}
	}
}

func TestComputeLearningVelocityBounded(t *testing.T) {
	calc := NewProfileCalculator(testLogger(t))
	now := time.Now().UTC()

	// A huge jump over a short span still clamps to [-1, 1].
	responses := []*types.AssessmentResponse{
		timedResponse("algebra", 0.0, now.AddDate(0, 0, -3)),
		timedResponse("algebra", 0.0, now.AddDate(0, 0, -2)),
		timedResponse("algebra", 1.0, now.AddDate(0, 0, -1)),
		timedResponse("algebra", 1.0, now),
	}

	profile, _ := calc.Compute(uuid.New(), uuid.New(), uuid.New(), responses, now)
	if profile.LearningVelocity < -1 || profile.LearningVelocity > 1 {
		t.Fatalf("velocity %v outside [-1, 1]", profile.LearningVelocity)
	}
	if profile.LearningVelocity <= 0 {
		t.Fatalf("velocity = %v, want positive for improving scores", profile.LearningVelocity)
	}
}
