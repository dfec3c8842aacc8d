// Package domain re-exports the model types so callers can import a
// single package as `types`.
package domain

import (
	"github.com/lumenlabs/lumen-analytics/internal/domain/analytics"
)

type (
	PrivacyConsent            = analytics.PrivacyConsent
	AnalyticsTask             = analytics.AnalyticsTask
	StudentPerformanceProfile = analytics.StudentPerformanceProfile
	ConceptMastery            = analytics.ConceptMastery
	StrugglePattern           = analytics.StrugglePattern
	LearningRecommendation    = analytics.LearningRecommendation
	AnonymizedBenchmark       = analytics.AnonymizedBenchmark
	InstructorAlert           = analytics.InstructorAlert
	BatchLog                  = analytics.BatchLog
	AssessmentResponse        = analytics.AssessmentResponse
)

const (
	TaskPerformanceUpdate        = analytics.TaskPerformanceUpdate
	TaskRecommendationGeneration = analytics.TaskRecommendationGeneration
	TaskPatternDetection         = analytics.TaskPatternDetection
	TaskAlertCheck               = analytics.TaskAlertCheck

	TaskStatusPending    = analytics.TaskStatusPending
	TaskStatusProcessing = analytics.TaskStatusProcessing
	TaskStatusCompleted  = analytics.TaskStatusCompleted
	TaskStatusFailed     = analytics.TaskStatusFailed

	TrendImproving = analytics.TrendImproving
	TrendStable    = analytics.TrendStable
	TrendDeclining = analytics.TrendDeclining

	PatternKnowledgeGap    = analytics.PatternKnowledgeGap
	PatternSkillDeficit    = analytics.PatternSkillDeficit
	PatternConfidenceIssue = analytics.PatternConfidenceIssue
	PatternMisconception   = analytics.PatternMisconception

	RecommendationReview   = analytics.RecommendationReview
	RecommendationPractice = analytics.RecommendationPractice
	RecommendationAdvance  = analytics.RecommendationAdvance
	RecommendationSeekHelp = analytics.RecommendationSeekHelp

	PriorityHigh   = analytics.PriorityHigh
	PriorityMedium = analytics.PriorityMedium
	PriorityLow    = analytics.PriorityLow

	RecommendationActive    = analytics.RecommendationActive
	RecommendationCompleted = analytics.RecommendationCompleted
	RecommendationDismissed = analytics.RecommendationDismissed

	BenchmarkCourseAverage         = analytics.BenchmarkCourseAverage
	BenchmarkPercentileBands       = analytics.BenchmarkPercentileBands
	BenchmarkDifficultyCalibration = analytics.BenchmarkDifficultyCalibration
)

// MinimumSampleSize re-exports the per-type privacy floor.
func MinimumSampleSize(benchmarkType string) int {
	return analytics.MinimumSampleSize(benchmarkType)
}
