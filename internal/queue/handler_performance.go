package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/lumenlabs/lumen-analytics/internal/clients/redis"
	repos "github.com/lumenlabs/lumen-analytics/internal/data/repos/analytics"
	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/ctxutil"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
	apperr "github.com/lumenlabs/lumen-analytics/internal/pkg/errors"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
	"github.com/lumenlabs/lumen-analytics/internal/services"
)

// Responses older than this window no longer influence the profile.
const performanceWindow = 90 * 24 * time.Hour

// PerformanceUpdateHandler recomputes a student's performance profile
// and concept masteries from their recent assessment responses, then
// queues a recommendation refresh.
type PerformanceUpdateHandler struct {
	consent    services.ConsentService
	calculator services.ProfileCalculator
	responses  repos.AssessmentResponseRepo
	profiles   repos.ProfileRepo
	masteries  repos.ConceptMasteryRepo
	tasks      repos.TaskRepo
	enqueuer   Enqueuer
	log        *logger.Logger
}

func NewPerformanceUpdateHandler(
	consent services.ConsentService,
	calculator services.ProfileCalculator,
	responses repos.AssessmentResponseRepo,
	profiles repos.ProfileRepo,
	masteries repos.ConceptMasteryRepo,
	tasks repos.TaskRepo,
	enqueuer Enqueuer,
	baseLog *logger.Logger,
) *PerformanceUpdateHandler {
	return &PerformanceUpdateHandler{
		consent:    consent,
		calculator: calculator,
		responses:  responses,
		profiles:   profiles,
		masteries:  masteries,
		tasks:      tasks,
		enqueuer:   enqueuer,
		log:        baseLog.With("handler", types.TaskPerformanceUpdate),
	}
}

func (h *PerformanceUpdateHandler) Type() string { return types.TaskPerformanceUpdate }

func (h *PerformanceUpdateHandler) Run(ctx context.Context, task *types.AnalyticsTask) error {
	if task.StudentID == nil || task.CourseID == nil {
		return apperr.NewValidation("performance_update requires student and course ids")
	}
	studentID, courseID := *task.StudentID, *task.CourseID

	decision, err := h.consent.Validate(ctx, studentID, &courseID, services.OpPerformance)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return apperr.NewConsentDenied(string(services.OpPerformance), decision.Reason)
	}

	tenantID, _ := ctxutil.TenantID(ctx)
	now := time.Now().UTC()
	responses, err := h.responses.ListByStudentCourse(dbctx.New(ctx), tenantID, studentID, courseID, now.Add(-performanceWindow))
	if err != nil {
		return apperr.NewTransient("load responses", err)
	}

	profile, masteries := h.calculator.Compute(tenantID, studentID, courseID, responses, now)
	persisted, err := h.profiles.Upsert(dbctx.New(ctx), profile)
	if err != nil {
		return apperr.NewTransient("upsert profile", err)
	}
	// The upsert may resolve to a pre-existing row; repoint the
	// masteries before writing them.
	for _, m := range masteries {
		m.ProfileID = persisted.ID
	}
	if err := h.masteries.UpsertBatch(dbctx.New(ctx), masteries); err != nil {
		return apperr.NewTransient("upsert masteries", err)
	}

	h.enqueueRecommendationRefresh(ctx, task)

	h.log.Info("profile recomputed",
		"student_id", studentID,
		"course_id", courseID,
		"responses", len(responses),
		"concepts", len(masteries),
	)
	return nil
}

// enqueueRecommendationRefresh emits the follow-up task. Failures are
// logged but not fatal: the next performance update re-triggers it.
func (h *PerformanceUpdateHandler) enqueueRecommendationRefresh(ctx context.Context, parent *types.AnalyticsTask) {
	followUp := &types.AnalyticsTask{
		ID:        uuid.New(),
		TaskType:  types.TaskRecommendationGeneration,
		TenantID:  parent.TenantID,
		StudentID: parent.StudentID,
		CourseID:  parent.CourseID,
		Priority:  parent.Priority,
		Status:    types.TaskStatusPending,
	}
	if _, err := h.tasks.Create(dbctx.New(ctx), []*types.AnalyticsTask{followUp}); err != nil {
		h.log.Warn("follow-up task row not created", "error", err)
		return
	}
	env := redisclient.TaskEnvelope{
		TaskID:   followUp.ID.String(),
		TaskType: followUp.TaskType,
		TenantID: followUp.TenantID.String(),
		Priority: followUp.Priority,
	}
	if followUp.StudentID != nil {
		env.StudentID = followUp.StudentID.String()
	}
	if followUp.CourseID != nil {
		env.CourseID = followUp.CourseID.String()
	}
	if err := h.enqueuer.Enqueue(ctx, env); err != nil {
		h.log.Warn("follow-up task not enqueued", "task_id", followUp.ID, "error", err)
	}
}
