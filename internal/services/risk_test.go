package services

import (
	"math"
	"strings"
	"testing"
)

func healthyRiskInput() RiskInput {
	return RiskInput{
		OverallMastery:       0.8,
		LearningVelocity:     0.5,
		ConfidenceLevel:      0.7,
		UnresolvedStruggles:  0,
		MeanStruggleSeverity: 0.1,
	}
}

func TestRiskHealthyStudentScoresZero(t *testing.T) {
	scorer := NewRiskScorer(DefaultRiskWeights(), DefaultRiskThresholds(), testLogger(t))

	assessment := scorer.Score(healthyRiskInput())
	if assessment.Score != 0 {
		t.Fatalf("score = %v, want 0", assessment.Score)
	}
	if assessment.AtRisk {
		t.Fatal("healthy student must not be at risk")
	}
	if len(assessment.Reasons) != 0 {
		t.Fatalf("expected no reasons, got %v", assessment.Reasons)
	}
}

func TestRiskEachIndicatorContributesItsWeight(t *testing.T) {
	weights := DefaultRiskWeights()
	cases := []struct {
		name   string
		mutate func(*RiskInput)
		weight float64
		phrase string
	}{
		{"low mastery", func(in *RiskInput) { in.OverallMastery = 0.4 }, weights.LowMastery, "mastery"},
		{"low velocity", func(in *RiskInput) { in.LearningVelocity = 0.0 }, weights.LowVelocity, "velocity"},
		{"low confidence", func(in *RiskInput) { in.ConfidenceLevel = 0.2 }, weights.LowConfidence, "confidence"},
		{"many struggles", func(in *RiskInput) { in.UnresolvedStruggles = 3 }, weights.ManyStruggles, "struggle"},
		{"high severity", func(in *RiskInput) { in.MeanStruggleSeverity = 0.8 }, weights.HighSeverity, "severity"},
	}

	scorer := NewRiskScorer(weights, DefaultRiskThresholds(), testLogger(t))
	for _, tc := range cases {
		in := healthyRiskInput()
		tc.mutate(&in)
		assessment := scorer.Score(in)
		if math.Abs(assessment.Score-tc.weight) > 1e-9 {
			t.Fatalf("%s: score = %v, want %v", tc.name, assessment.Score, tc.weight)
		}
		if len(assessment.Reasons) != 1 || !strings.Contains(assessment.Reasons[0], tc.phrase) {
			t.Fatalf("%s: reasons = %v, want one mentioning %q", tc.name, assessment.Reasons, tc.phrase)
		}
	}
}

func TestRiskThresholdsAreStrict(t *testing.T) {
	thresholds := DefaultRiskThresholds()
	scorer := NewRiskScorer(DefaultRiskWeights(), thresholds, testLogger(t))

	in := healthyRiskInput()
	in.OverallMastery = thresholds.Mastery
	in.UnresolvedStruggles = thresholds.StruggleCount
	in.MeanStruggleSeverity = thresholds.MeanSeverity
	assessment := scorer.Score(in)
	if assessment.Score != 0 {
		t.Fatalf("values at the threshold must not fire, score = %v, reasons = %v", assessment.Score, assessment.Reasons)
	}
}

func TestRiskScoreIsCappedAndAllReasonsReported(t *testing.T) {
	scorer := NewRiskScorer(DefaultRiskWeights(), DefaultRiskThresholds(), testLogger(t))

	assessment := scorer.Score(RiskInput{
		OverallMastery:       0.2,
		LearningVelocity:     -0.5,
		ConfidenceLevel:      0.1,
		UnresolvedStruggles:  5,
		MeanStruggleSeverity: 0.9,
	})
	// Raw sum is 1.1; the score is capped.
	if assessment.Score != 1.0 {
		t.Fatalf("score = %v, want 1.0", assessment.Score)
	}
	if !assessment.AtRisk {
		t.Fatal("expected at-risk")
	}
	if len(assessment.Reasons) != 5 {
		t.Fatalf("got %d reasons, want 5: %v", len(assessment.Reasons), assessment.Reasons)
	}
}

func TestRiskAtRiskLineIsStrict(t *testing.T) {
	weights := RiskWeights{LowMastery: 0.6}
	thresholds := DefaultRiskThresholds()
	scorer := NewRiskScorer(weights, thresholds, testLogger(t))

	in := healthyRiskInput()
	in.OverallMastery = 0.4
	assessment := scorer.Score(in)
	if assessment.Score != 0.6 {
		t.Fatalf("score = %v, want 0.6", assessment.Score)
	}
	if assessment.AtRisk {
		t.Fatal("score exactly at the line must not flag at-risk")
	}
}
