package queue

import (
	"context"
	"encoding/json"
	"time"

	repos "github.com/lumenlabs/lumen-analytics/internal/data/repos/analytics"
	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/ctxutil"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
	apperr "github.com/lumenlabs/lumen-analytics/internal/pkg/errors"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
	"github.com/lumenlabs/lumen-analytics/internal/services"
)

// Only struggles detected in this window feed recommendation rules.
const struggleWindow = 30 * 24 * time.Hour

// RecommendationGenerationHandler regenerates a student's active
// recommendation set from the current profile, masteries, and recent
// struggle history.
type RecommendationGenerationHandler struct {
	consent         services.ConsentService
	engine          services.RecommendationEngine
	profiles        repos.ProfileRepo
	masteries       repos.ConceptMasteryRepo
	patterns        repos.StrugglePatternRepo
	recommendations repos.RecommendationRepo
	log             *logger.Logger
}

func NewRecommendationGenerationHandler(
	consent services.ConsentService,
	engine services.RecommendationEngine,
	profiles repos.ProfileRepo,
	masteries repos.ConceptMasteryRepo,
	patterns repos.StrugglePatternRepo,
	recommendations repos.RecommendationRepo,
	baseLog *logger.Logger,
) *RecommendationGenerationHandler {
	return &RecommendationGenerationHandler{
		consent:         consent,
		engine:          engine,
		profiles:        profiles,
		masteries:       masteries,
		patterns:        patterns,
		recommendations: recommendations,
		log:             baseLog.With("handler", types.TaskRecommendationGeneration),
	}
}

func (h *RecommendationGenerationHandler) Type() string { return types.TaskRecommendationGeneration }

func (h *RecommendationGenerationHandler) Run(ctx context.Context, task *types.AnalyticsTask) error {
	if task.StudentID == nil || task.CourseID == nil {
		return apperr.NewValidation("recommendation_generation requires student and course ids")
	}
	studentID, courseID := *task.StudentID, *task.CourseID

	decision, err := h.consent.Validate(ctx, studentID, &courseID, services.OpPredictive)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return apperr.NewConsentDenied(string(services.OpPredictive), decision.Reason)
	}

	tenantID, _ := ctxutil.TenantID(ctx)
	profile, err := h.profiles.Get(dbctx.New(ctx), tenantID, studentID, courseID)
	if err != nil {
		return apperr.NewTransient("load profile", err)
	}
	if profile == nil {
		return apperr.NewValidation("no performance profile for student %s in course %s", studentID, courseID)
	}

	masteries, err := h.masteries.ListByProfile(dbctx.New(ctx), profile.ID)
	if err != nil {
		return apperr.NewTransient("load masteries", err)
	}
	now := time.Now().UTC()
	struggles, err := h.patterns.ListRecentUnresolved(dbctx.New(ctx), tenantID, studentID, now.Add(-struggleWindow))
	if err != nil {
		return apperr.NewTransient("load struggle patterns", err)
	}

	input := services.RecommendationInput{
		Profile:           profile,
		Masteries:         masteries,
		RecentStruggles:   struggles,
		LearningStyle:     learningStyle(profile),
		TimeBudgetMinutes: timeBudget(task),
	}
	recs, err := h.engine.Generate(ctx, input)
	if err != nil {
		return err
	}

	if err := h.recommendations.ExpireActive(dbctx.New(ctx), profile.ID); err != nil {
		return apperr.NewTransient("expire recommendations", err)
	}
	if _, err := h.recommendations.Create(dbctx.New(ctx), recs); err != nil {
		return apperr.NewTransient("persist recommendations", err)
	}

	h.log.Info("recommendations regenerated",
		"student_id", studentID,
		"course_id", courseID,
		"count", len(recs),
	)
	return nil
}

func learningStyle(profile *types.StudentPerformanceProfile) string {
	if len(profile.PerformanceData) == 0 {
		return ""
	}
	var data struct {
		LearningStyle string `json:"learning_style"`
	}
	if err := json.Unmarshal(profile.PerformanceData, &data); err != nil {
		return ""
	}
	return data.LearningStyle
}

func timeBudget(task *types.AnalyticsTask) int {
	if len(task.Payload) == 0 {
		return 0
	}
	var payload struct {
		TimeBudgetMinutes int `json:"time_budget_minutes"`
	}
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return 0
	}
	return payload.TimeBudgetMinutes
}
