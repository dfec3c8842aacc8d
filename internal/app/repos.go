package app

import (
	"gorm.io/gorm"

	repos "github.com/lumenlabs/lumen-analytics/internal/data/repos/analytics"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

type Repos struct {
	Consent         repos.ConsentRepo
	Task            repos.TaskRepo
	Profile         repos.ProfileRepo
	ConceptMastery  repos.ConceptMasteryRepo
	StrugglePattern repos.StrugglePatternRepo
	Recommendation  repos.RecommendationRepo
	Benchmark       repos.BenchmarkRepo
	Alert           repos.AlertRepo
	BatchLog        repos.BatchLogRepo
	Response        repos.AssessmentResponseRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Consent:         repos.NewConsentRepo(db, log),
		Task:            repos.NewTaskRepo(db, log),
		Profile:         repos.NewProfileRepo(db, log),
		ConceptMastery:  repos.NewConceptMasteryRepo(db, log),
		StrugglePattern: repos.NewStrugglePatternRepo(db, log),
		Recommendation:  repos.NewRecommendationRepo(db, log),
		Benchmark:       repos.NewBenchmarkRepo(db, log),
		Alert:           repos.NewAlertRepo(db, log),
		BatchLog:        repos.NewBatchLogRepo(db, log),
		Response:        repos.NewAssessmentResponseRepo(db, log),
	}
}
