package queue

import (
	"context"
	"time"

	repos "github.com/lumenlabs/lumen-analytics/internal/data/repos/analytics"
	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/ctxutil"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
	apperr "github.com/lumenlabs/lumen-analytics/internal/pkg/errors"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
	"github.com/lumenlabs/lumen-analytics/internal/services"
)

// Detection reads the same 30-day window the recommendation rules do.
const detectionWindow = 30 * 24 * time.Hour

// PatternDetectionHandler runs the struggle analysis over a student's
// recent responses and persists any detected patterns.
type PatternDetectionHandler struct {
	consent   services.ConsentService
	detector  services.PatternDetector
	responses repos.AssessmentResponseRepo
	patterns  repos.StrugglePatternRepo
	log       *logger.Logger
}

func NewPatternDetectionHandler(
	consent services.ConsentService,
	detector services.PatternDetector,
	responses repos.AssessmentResponseRepo,
	patterns repos.StrugglePatternRepo,
	baseLog *logger.Logger,
) *PatternDetectionHandler {
	return &PatternDetectionHandler{
		consent:   consent,
		detector:  detector,
		responses: responses,
		patterns:  patterns,
		log:       baseLog.With("handler", types.TaskPatternDetection),
	}
}

func (h *PatternDetectionHandler) Type() string { return types.TaskPatternDetection }

func (h *PatternDetectionHandler) Run(ctx context.Context, task *types.AnalyticsTask) error {
	if task.StudentID == nil || task.CourseID == nil {
		return apperr.NewValidation("pattern_detection requires student and course ids")
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
	now := time.Now().UTC()
	responses, err := h.responses.ListByStudentCourse(dbctx.New(ctx), tenantID, studentID, courseID, now.Add(-detectionWindow))
	if err != nil {
		return apperr.NewTransient("load responses", err)
	}

	detected := h.detector.Detect(tenantID, studentID, &courseID, responses, now)
	if len(detected) > 0 {
		if _, err := h.patterns.Create(dbctx.New(ctx), detected); err != nil {
			return apperr.NewTransient("persist struggle patterns", err)
		}
	}

	h.log.Info("pattern detection finished",
		"student_id", studentID,
		"course_id", courseID,
		"responses", len(responses),
		"patterns", len(detected),
	)
	return nil
}
