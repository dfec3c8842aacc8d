package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	repos "github.com/lumenlabs/lumen-analytics/internal/data/repos/analytics"
	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/ctxutil"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
	apperr "github.com/lumenlabs/lumen-analytics/internal/pkg/errors"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
	"github.com/lumenlabs/lumen-analytics/internal/privacy"
)

// BenchmarkValidity is the cache window for published benchmarks.
const BenchmarkValidity = 7 * 24 * time.Hour

// BenchmarkQuery identifies one benchmark. Concept is required for
// difficulty_calibration; AssessmentID optionally narrows
// course_average.
type BenchmarkQuery struct {
	CourseID         uuid.UUID
	BenchmarkType    string
	AggregationLevel string
	Concept          string
	AssessmentID     *uuid.UUID
}

// BenchmarkCache is the hot cache in front of the benchmark table.
// Implemented by the redis client; a nil cache disables it.
type BenchmarkCache interface {
	Get(ctx context.Context, key string) (*types.AnonymizedBenchmark, bool, error)
	Set(ctx context.Context, key string, row *types.AnonymizedBenchmark, ttl time.Duration) error
}

// BenchmarkService computes consent-filtered, noise-perturbed
// cross-student statistics. It never publishes an aggregate whose true
// consenting sample is below the type's floor.
type BenchmarkService interface {
	GetOrCompute(ctx context.Context, q BenchmarkQuery) (*types.AnonymizedBenchmark, error)
}

type benchmarkService struct {
	benchmarks repos.BenchmarkRepo
	responses  repos.AssessmentResponseRepo
	profiles   repos.ProfileRepo
	masteries  repos.ConceptMasteryRepo
	consent    ConsentService
	noise      *privacy.NoiseEngine
	cache      BenchmarkCache
	log        *logger.Logger
}

func NewBenchmarkService(
	benchmarks repos.BenchmarkRepo,
	responses repos.AssessmentResponseRepo,
	profiles repos.ProfileRepo,
	masteries repos.ConceptMasteryRepo,
	consent ConsentService,
	noise *privacy.NoiseEngine,
	cache BenchmarkCache,
	baseLog *logger.Logger,
) BenchmarkService {
	return &benchmarkService{
		benchmarks: benchmarks,
		responses:  responses,
		profiles:   profiles,
		masteries:  masteries,
		consent:    consent,
		noise:      noise,
		cache:      cache,
		log:        baseLog.With("service", "BenchmarkService"),
	}
}

func (s *benchmarkService) GetOrCompute(ctx context.Context, q BenchmarkQuery) (*types.AnonymizedBenchmark, error) {
	tenantID, ok := ctxutil.TenantID(ctx)
	if !ok {
		return nil, apperr.NewValidation("benchmark request requires a tenant in context")
	}
	if q.CourseID == uuid.Nil {
		return nil, apperr.NewValidation("benchmark request requires a course id")
	}
	if q.BenchmarkType == types.BenchmarkDifficultyCalibration && q.Concept == "" {
		return nil, apperr.NewValidation("difficulty_calibration requires a concept")
	}
	if q.AggregationLevel == "" {
		q.AggregationLevel = "course"
	}

	now := time.Now().UTC()
	key := s.cacheKey(tenantID, q)

	if s.cache != nil {
		cached, hit, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn("benchmark cache read failed", "error", err)
		} else if hit && cached.ValidUntil.After(now) {
			return cached, nil
		}
	}

	dbc := dbctx.New(ctx)
	existing, err := s.benchmarks.GetValid(dbc, tenantID, q.CourseID, q.BenchmarkType, q.AggregationLevel, q.Concept, q.AssessmentID, now)
	if err != nil {
		return nil, apperr.NewTransient("benchmark lookup", err)
	}
	if existing != nil {
		s.cacheSet(ctx, key, existing, now)
		return existing, nil
	}

	scores, err := s.consentingScores(ctx, dbc, tenantID, q)
	if err != nil {
		return nil, err
	}

	// The floor is checked against the true consenting sample size,
	// before any noise enters the picture.
	floor := types.MinimumSampleSize(q.BenchmarkType)
	if len(scores) < floor {
		return nil, apperr.NewInsufficientData(floor, len(scores))
	}

	row, err := s.computeNoised(tenantID, q, scores, now)
	if err != nil {
		return nil, err
	}
	if _, err := s.benchmarks.Create(dbc, row); err != nil {
		return nil, apperr.NewTransient("benchmark persist", err)
	}
	s.cacheSet(ctx, key, row, now)
	return row, nil
}

// consentingScores gathers candidate per-student values and keeps only
// those whose benchmark consent check passes. The join is mandatory: a
// student's value never enters the aggregate without it.
func (s *benchmarkService) consentingScores(ctx context.Context, dbc dbctx.Context, tenantID uuid.UUID, q BenchmarkQuery) ([]float64, error) {
	var candidates []repos.StudentScore
	var err error
	switch q.BenchmarkType {
	case types.BenchmarkCourseAverage:
		candidates, err = s.responses.ListStudentAverages(dbc, tenantID, q.CourseID, q.AssessmentID)
	case types.BenchmarkPercentileBands:
		var profiles []*types.StudentPerformanceProfile
		profiles, err = s.profiles.ListByCourse(dbc, tenantID, q.CourseID)
		for _, p := range profiles {
			candidates = append(candidates, repos.StudentScore{StudentID: p.StudentID, Score: p.OverallMastery})
		}
	case types.BenchmarkDifficultyCalibration:
		candidates, err = s.masteries.ListStudentConceptMastery(dbc, tenantID, q.CourseID, q.Concept)
	default:
		return nil, apperr.NewValidation("unknown benchmark type %q", q.BenchmarkType)
	}
	if err != nil {
		return nil, apperr.NewTransient("benchmark candidates", err)
	}

	courseID := q.CourseID
	out := make([]float64, 0, len(candidates))
	for _, c := range candidates {
		decision, err := s.consent.Validate(ctx, c.StudentID, &courseID, OpBenchmark)
		if err != nil {
			return nil, err
		}
		if !decision.Allowed {
			continue
		}
		out = append(out, c.Score)
	}
	return out, nil
}

func (s *benchmarkService) computeNoised(tenantID uuid.UUID, q BenchmarkQuery, scores []float64, now time.Time) (*types.AnonymizedBenchmark, error) {
	n := len(scores)
	tier := privacy.TierForSampleSize(n)

	noised := func(v float64) float64 {
		return privacy.Clamp01(v + s.noise.Laplace(tier.Sensitivity, tier.Epsilon))
	}

	// The stddev term gets noise scaled by 1/sqrt(n); its marginal
	// sensitivity shrinks with the sample.
	stddev := stdDeviation(scores) + s.noise.Laplace(tier.Sensitivity/math.Sqrt(float64(n)), tier.Epsilon)
	if stddev < 0 {
		stddev = 0
	}

	noisedN := n + int(math.Round(s.noise.Laplace(tier.Sensitivity, tier.Epsilon)))
	if noisedN < 1 {
		noisedN = 1
	}

	percentiles := map[string]float64{
		"p25": noised(percentileLinear(scores, 25)),
		"p75": noised(percentileLinear(scores, 75)),
		"p90": noised(percentileLinear(scores, 90)),
	}
	rawPercentiles, err := json.Marshal(percentiles)
	if err != nil {
		return nil, fmt.Errorf("marshal percentiles: %w", err)
	}

	return &types.AnonymizedBenchmark{
		ID:               uuid.New(),
		TenantID:         tenantID,
		CourseID:         q.CourseID,
		Concept:          q.Concept,
		AssessmentID:     q.AssessmentID,
		BenchmarkType:    q.BenchmarkType,
		AggregationLevel: q.AggregationLevel,
		SampleSize:       noisedN,
		MeanScore:        noised(mean(scores)),
		MedianScore:      noised(medianInterpolated(scores)),
		StdDeviation:     stddev,
		Percentiles:      datatypes.JSON(rawPercentiles),
		Epsilon:          tier.Epsilon,
		NoiseScale:       tier.Sensitivity / tier.Epsilon,
		CalculatedAt:     now,
		ValidUntil:       now.Add(BenchmarkValidity),
	}, nil
}

func (s *benchmarkService) cacheSet(ctx context.Context, key string, row *types.AnonymizedBenchmark, now time.Time) {
	if s.cache == nil {
		return
	}
	ttl := row.ValidUntil.Sub(now)
	if ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, key, row, ttl); err != nil {
		s.log.Warn("benchmark cache write failed", "error", err)
	}
}

func (s *benchmarkService) cacheKey(tenantID uuid.UUID, q BenchmarkQuery) string {
	assessment := ""
	if q.AssessmentID != nil {
		assessment = q.AssessmentID.String()
	}
	return strings.Join([]string{
		"benchmark", tenantID.String(), q.CourseID.String(),
		q.BenchmarkType, q.AggregationLevel, q.Concept, assessment,
	}, ":")
}
