package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
	"github.com/lumenlabs/lumen-analytics/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "lumen_analytics", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		log.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.PrivacyConsent{},
		&types.AnalyticsTask{},
		&types.StudentPerformanceProfile{},
		&types.ConceptMastery{},
		&types.StrugglePattern{},
		&types.LearningRecommendation{},
		&types.AnonymizedBenchmark{},
		&types.InstructorAlert{},
		&types.BatchLog{},
		&types.AssessmentResponse{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	s.log.Info("Configuring foreign key relationships for postgres tables...")
	if err := s.db.Exec(`
		ALTER TABLE "concept_mastery"
		DROP CONSTRAINT IF EXISTS "fk_concept_mastery_profile_id";
		ALTER TABLE "concept_mastery"
		ADD CONSTRAINT "fk_concept_mastery_profile_id"
		FOREIGN KEY ("profile_id")
		REFERENCES "student_performance_profile"("id")
		ON DELETE CASCADE
	`).Error; err != nil {
		return fmt.Errorf("failed to add fk_concept_mastery_profile_id: %w", err)
	}
	if err := s.db.Exec(`
		ALTER TABLE "learning_recommendation"
		DROP CONSTRAINT IF EXISTS "fk_learning_recommendation_profile_id";
		ALTER TABLE "learning_recommendation"
		ADD CONSTRAINT "fk_learning_recommendation_profile_id"
		FOREIGN KEY ("profile_id")
		REFERENCES "student_performance_profile"("id")
		ON DELETE CASCADE
	`).Error; err != nil {
		return fmt.Errorf("failed to add fk_learning_recommendation_profile_id: %w", err)
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
