package queue

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	repos "github.com/lumenlabs/lumen-analytics/internal/data/repos/analytics"
	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/ctxutil"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
	apperr "github.com/lumenlabs/lumen-analytics/internal/pkg/errors"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
	"github.com/lumenlabs/lumen-analytics/internal/services"
)

// An alert is escalated to high priority when any student crosses this
// risk score.
const highRiskCutoff = 0.85

// AlertCheckHandler scans every profile in a course, scores at-risk
// indicators, and raises one instructor alert covering all flagged
// students. Students without instructor-visibility consent are skipped
// entirely.
type AlertCheckHandler struct {
	consent  services.ConsentService
	risk     services.RiskScorer
	profiles repos.ProfileRepo
	patterns repos.StrugglePatternRepo
	alerts   repos.AlertRepo
	log      *logger.Logger
}

func NewAlertCheckHandler(
	consent services.ConsentService,
	risk services.RiskScorer,
	profiles repos.ProfileRepo,
	patterns repos.StrugglePatternRepo,
	alerts repos.AlertRepo,
	baseLog *logger.Logger,
) *AlertCheckHandler {
	return &AlertCheckHandler{
		consent:  consent,
		risk:     risk,
		profiles: profiles,
		patterns: patterns,
		alerts:   alerts,
		log:      baseLog.With("handler", types.TaskAlertCheck),
	}
}

func (h *AlertCheckHandler) Type() string { return types.TaskAlertCheck }

type atRiskStudent struct {
	StudentID uuid.UUID `json:"student_id"`
	RiskScore float64   `json:"risk_score"`
	Reasons   []string  `json:"reasons"`
}

func (h *AlertCheckHandler) Run(ctx context.Context, task *types.AnalyticsTask) error {
	if task.CourseID == nil {
		return apperr.NewValidation("alert_check requires a course id")
	}
	courseID := *task.CourseID
	tenantID, _ := ctxutil.TenantID(ctx)

	profiles, err := h.profiles.ListByCourse(dbctx.New(ctx), tenantID, courseID)
	if err != nil {
		return apperr.NewTransient("load course profiles", err)
	}
	unresolved, err := h.patterns.ListUnresolvedByCourse(dbctx.New(ctx), tenantID, courseID)
	if err != nil {
		return apperr.NewTransient("load struggle patterns", err)
	}

	struggleCount := map[uuid.UUID]int{}
	severitySum := map[uuid.UUID]float64{}
	for _, p := range unresolved {
		struggleCount[p.StudentID]++
		severitySum[p.StudentID] += p.Severity
	}

	var flagged []atRiskStudent
	for _, profile := range profiles {
		decision, err := h.consent.Validate(ctx, profile.StudentID, &courseID, services.OpInstructorVisibility)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			continue
		}

		count := struggleCount[profile.StudentID]
		meanSeverity := 0.0
		if count > 0 {
			meanSeverity = severitySum[profile.StudentID] / float64(count)
		}
		assessment := h.risk.Score(services.RiskInput{
			OverallMastery:       profile.OverallMastery,
			LearningVelocity:     profile.LearningVelocity,
			ConfidenceLevel:      profile.ConfidenceLevel,
			UnresolvedStruggles:  count,
			MeanStruggleSeverity: meanSeverity,
		})
		if assessment.AtRisk {
			flagged = append(flagged, atRiskStudent{
				StudentID: profile.StudentID,
				RiskScore: assessment.Score,
				Reasons:   assessment.Reasons,
			})
		}
	}

	if len(flagged) == 0 {
		h.log.Info("alert check found no at-risk students", "course_id", courseID, "profiles", len(profiles))
		return nil
	}

	priority := types.PriorityMedium
	studentIDs := make([]string, len(flagged))
	for i, s := range flagged {
		studentIDs[i] = s.StudentID.String()
		if s.RiskScore >= highRiskCutoff {
			priority = types.PriorityHigh
		}
	}
	ids, _ := json.Marshal(studentIDs)
	data, _ := json.Marshal(map[string]interface{}{"students": flagged})

	if _, err := h.alerts.Create(dbctx.New(ctx), &types.InstructorAlert{
		TenantID:   tenantID,
		CourseID:   courseID,
		Priority:   priority,
		StudentIDs: datatypes.JSON(ids),
		AlertData:  datatypes.JSON(data),
	}); err != nil {
		return apperr.NewTransient("persist alert", err)
	}

	h.log.Info("instructor alert raised",
		"course_id", courseID,
		"at_risk", len(flagged),
		"priority", priority,
	)
	return nil
}
