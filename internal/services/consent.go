package services

import (
	"context"

	"github.com/google/uuid"

	repos "github.com/lumenlabs/lumen-analytics/internal/data/repos/analytics"
	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/ctxutil"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
	apperr "github.com/lumenlabs/lumen-analytics/internal/pkg/errors"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

type ConsentOperation string

const (
	OpPerformance          ConsentOperation = "performance"
	OpPredictive           ConsentOperation = "predictive"
	OpBenchmark            ConsentOperation = "benchmark"
	OpInstructorVisibility ConsentOperation = "instructor_visibility"
)

const (
	ReasonNoConsent  = "no consent found"
	ReasonWithdrawn  = "consent withdrawn"
	ReasonNotGranted = "consent not granted"
)

// ConsentDecision is the outcome of a gate check. When Allowed is false
// Reason says why; Consent carries the record that decided it (nil when
// none exists).
type ConsentDecision struct {
	Allowed bool
	Consent *types.PrivacyConsent
	Reason  string
}

// ConsentService is the mandatory precondition for every profile
// read/write and every benchmark contribution. Read-only: validation
// never mutates consent state.
type ConsentService interface {
	Validate(ctx context.Context, studentID uuid.UUID, courseID *uuid.UUID, op ConsentOperation) (ConsentDecision, error)
}

type consentService struct {
	repo repos.ConsentRepo
	log  *logger.Logger
}

func NewConsentService(repo repos.ConsentRepo, baseLog *logger.Logger) ConsentService {
	return &consentService{
		repo: repo,
		log:  baseLog.With("service", "ConsentService"),
	}
}

func (s *consentService) Validate(ctx context.Context, studentID uuid.UUID, courseID *uuid.UUID, op ConsentOperation) (ConsentDecision, error) {
	tenantID, ok := ctxutil.TenantID(ctx)
	if !ok {
		return ConsentDecision{}, apperr.NewValidation("consent check requires a tenant in context")
	}
	if studentID == uuid.Nil {
		return ConsentDecision{}, apperr.NewValidation("consent check requires a student id")
	}

	consent, err := s.repo.GetEffective(dbctx.New(ctx), tenantID, studentID, courseID)
	if err != nil {
		return ConsentDecision{}, apperr.NewTransient("consent lookup", err)
	}
	if consent == nil {
		return ConsentDecision{Allowed: false, Reason: ReasonNoConsent}, nil
	}
	// Withdrawal overrides every stored flag.
	if consent.Withdrawn() {
		return ConsentDecision{Allowed: false, Consent: consent, Reason: ReasonWithdrawn}, nil
	}

	allowed := false
	switch op {
	case OpPerformance:
		allowed = consent.PerformanceAnalyticsConsent
	case OpPredictive:
		allowed = consent.PredictiveAnalyticsConsent
	case OpBenchmark:
		allowed = consent.BenchmarkComparisonConsent
	case OpInstructorVisibility:
		allowed = consent.InstructorVisibilityConsent
	default:
		return ConsentDecision{}, apperr.NewValidation("unknown consent operation %q", op)
	}

	if !allowed {
		return ConsentDecision{Allowed: false, Consent: consent, Reason: string(op) + " " + ReasonNotGranted}, nil
	}
	return ConsentDecision{Allowed: true, Consent: consent}, nil
}
