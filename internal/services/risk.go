package services

import (
	"fmt"

	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

// RiskWeights are the per-indicator contributions to the at-risk score.
// Each indicator contributes its full weight only when its threshold is
// crossed; nothing is scaled. The values are empirically chosen
// configuration, not domain law.
type RiskWeights struct {
	LowMastery    float64
	LowVelocity   float64
	LowConfidence float64
	ManyStruggles float64
	HighSeverity  float64
}

func DefaultRiskWeights() RiskWeights {
	return RiskWeights{
		LowMastery:    0.4,
		LowVelocity:   0.2,
		LowConfidence: 0.2,
		ManyStruggles: 0.2,
		HighSeverity:  0.1,
	}
}

// RiskThresholds are the indicator cutoffs and the at-risk line.
type RiskThresholds struct {
	Mastery       float64
	Velocity      float64
	Confidence    float64
	StruggleCount int
	MeanSeverity  float64
	AtRisk        float64
}

func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{
		Mastery:       0.5,
		Velocity:      0.1,
		Confidence:    0.3,
		StruggleCount: 2,
		MeanSeverity:  0.7,
		AtRisk:        0.6,
	}
}

type RiskInput struct {
	OverallMastery       float64
	LearningVelocity     float64
	ConfidenceLevel      float64
	UnresolvedStruggles  int
	MeanStruggleSeverity float64
}

type RiskAssessment struct {
	Score   float64
	AtRisk  bool
	Reasons []string
}

// RiskScorer turns a profile snapshot into an at-risk assessment with
// one human-readable reason per fired indicator.
type RiskScorer interface {
	Score(in RiskInput) RiskAssessment
}

type riskScorer struct {
	weights    RiskWeights
	thresholds RiskThresholds
	log        *logger.Logger
}

func NewRiskScorer(weights RiskWeights, thresholds RiskThresholds, baseLog *logger.Logger) RiskScorer {
	return &riskScorer{
		weights:    weights,
		thresholds: thresholds,
		log:        baseLog.With("service", "RiskScorer"),
	}
}

func (s *riskScorer) Score(in RiskInput) RiskAssessment {
	score := 0.0
	var reasons []string

	if in.OverallMastery < s.thresholds.Mastery {
		score += s.weights.LowMastery
		reasons = append(reasons, fmt.Sprintf("overall mastery %.2f is below %.2f", in.OverallMastery, s.thresholds.Mastery))
	}
	if in.LearningVelocity < s.thresholds.Velocity {
		score += s.weights.LowVelocity
		reasons = append(reasons, fmt.Sprintf("learning velocity %.2f is below %.2f", in.LearningVelocity, s.thresholds.Velocity))
	}
	if in.ConfidenceLevel < s.thresholds.Confidence {
		score += s.weights.LowConfidence
		reasons = append(reasons, fmt.Sprintf("confidence level %.2f is below %.2f", in.ConfidenceLevel, s.thresholds.Confidence))
	}
	if in.UnresolvedStruggles > s.thresholds.StruggleCount {
		score += s.weights.ManyStruggles
		reasons = append(reasons, fmt.Sprintf("%d unresolved struggle patterns (more than %d)", in.UnresolvedStruggles, s.thresholds.StruggleCount))
	}
	if in.MeanStruggleSeverity > s.thresholds.MeanSeverity {
		score += s.weights.HighSeverity
		reasons = append(reasons, fmt.Sprintf("mean struggle severity %.2f exceeds %.2f", in.MeanStruggleSeverity, s.thresholds.MeanSeverity))
	}

	if score > 1.0 {
		score = 1.0
	}
	return RiskAssessment{
		Score:   score,
		AtRisk:  score > s.thresholds.AtRisk,
		Reasons: reasons,
	}
}
