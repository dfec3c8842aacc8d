package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/lumenlabs/lumen-analytics/internal/domain"
)

func SeedConsent(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID, studentID uuid.UUID, courseID *uuid.UUID, mutate func(*types.PrivacyConsent)) *types.PrivacyConsent {
	tb.Helper()
	c := &types.PrivacyConsent{
		ID:                          uuid.New(),
		TenantID:                    tenantID,
		StudentID:                   studentID,
		CourseID:                    courseID,
		PerformanceAnalyticsConsent: true,
		PredictiveAnalyticsConsent:  true,
		BenchmarkComparisonConsent:  true,
		InstructorVisibilityConsent: true,
		AnonymizationRequired:       true,
		RetentionDays:               365,
		ConsentVersion:              "v1",
		UpdatedAt:                   time.Now().UTC(),
	}
	if mutate != nil {
		mutate(c)
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed consent: %v", err)
	}
	return c
}

func SeedProfile(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID, studentID, courseID uuid.UUID, mastery float64) *types.StudentPerformanceProfile {
	tb.Helper()
	p := &types.StudentPerformanceProfile{
		ID:               uuid.New(),
		TenantID:         tenantID,
		StudentID:        studentID,
		CourseID:         courseID,
		OverallMastery:   mastery,
		LearningVelocity: 0.1,
		ConfidenceLevel:  0.5,
		PerformanceData:  datatypes.JSON([]byte("{}")),
		LastCalculated:   time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed profile: %v", err)
	}
	return p
}

func SeedResponse(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID, studentID, courseID uuid.UUID, concept string, score float64, answeredAt time.Time) *types.AssessmentResponse {
	tb.Helper()
	r := &types.AssessmentResponse{
		ID:           uuid.New(),
		TenantID:     tenantID,
		StudentID:    studentID,
		CourseID:     courseID,
		AssessmentID: uuid.New(),
		Concept:      concept,
		Score:        score,
		Difficulty:   0.5,
		TimeSpentSec: 60,
		AnsweredAt:   answeredAt,
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed response: %v", err)
	}
	return r
}

func SeedTask(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, taskType string, studentID, courseID *uuid.UUID) *types.AnalyticsTask {
	tb.Helper()
	t := &types.AnalyticsTask{
		ID:        uuid.New(),
		TaskType:  taskType,
		TenantID:  tenantID,
		StudentID: studentID,
		CourseID:  courseID,
		Priority:  5,
		Payload:   datatypes.JSON([]byte("{}")),
		Status:    types.TaskStatusPending,
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed task: %v", err)
	}
	return t
}
