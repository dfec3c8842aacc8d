package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	BenchmarkCourseAverage         = "course_average"
	BenchmarkPercentileBands       = "percentile_bands"
	BenchmarkDifficultyCalibration = "difficulty_calibration"
)

// MinimumSampleSize is the per-type floor on the true consenting sample.
// Below it no benchmark row is ever created or returned.
func MinimumSampleSize(benchmarkType string) int {
	switch benchmarkType {
	case BenchmarkCourseAverage:
		return 10
	case BenchmarkPercentileBands:
		return 20
	case BenchmarkDifficultyCalibration:
		return 30
	default:
		return 30
	}
}

// AnonymizedBenchmark holds differentially private cross-student
// statistics. Every published number, including the sample size, has
// noise applied; the epsilon and scale used are recorded on the row.
type AnonymizedBenchmark struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_benchmark_key" json:"tenant_id"`
	CourseID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_benchmark_key" json:"course_id"`
	Concept          string         `gorm:"column:concept;not null;default:'';index:idx_benchmark_key" json:"concept,omitempty"`
	AssessmentID     *uuid.UUID     `gorm:"type:uuid;index:idx_benchmark_key" json:"assessment_id,omitempty"`
	BenchmarkType    string         `gorm:"column:benchmark_type;not null;index:idx_benchmark_key" json:"benchmark_type"`
	AggregationLevel string         `gorm:"column:aggregation_level;not null;index:idx_benchmark_key" json:"aggregation_level"`
	SampleSize       int            `gorm:"column:sample_size;not null" json:"sample_size"`
	MeanScore        float64        `gorm:"column:mean_score;not null" json:"mean_score"`
	MedianScore      float64        `gorm:"column:median_score;not null" json:"median_score"`
	StdDeviation     float64        `gorm:"column:std_deviation;not null" json:"std_deviation"`
	Percentiles      datatypes.JSON `gorm:"column:percentiles;type:jsonb" json:"percentiles"`
	Epsilon          float64        `gorm:"column:epsilon;not null" json:"epsilon"`
	NoiseScale       float64        `gorm:"column:noise_scale;not null" json:"noise_scale"`
	CalculatedAt     time.Time      `gorm:"column:calculated_at;not null;default:now()" json:"calculated_at"`
	ValidUntil       time.Time      `gorm:"column:valid_until;not null;index" json:"valid_until"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (AnonymizedBenchmark) TableName() string { return "anonymized_benchmark" }
