package app

import (
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
	"github.com/lumenlabs/lumen-analytics/internal/privacy"
	"github.com/lumenlabs/lumen-analytics/internal/services"
)

type Services struct {
	Consent        services.ConsentService
	Profile        services.ProfileCalculator
	Pattern        services.PatternDetector
	Recommendation services.RecommendationEngine
	Risk           services.RiskScorer
	Benchmark      services.BenchmarkService
}

func wireServices(log *logger.Logger, reposet Repos, clients Clients) Services {
	log.Info("Wiring services...")

	noise := privacy.NewNoiseEngine()
	consent := services.NewConsentService(reposet.Consent, log)

	// A nil reranker keeps the rule-based order.
	var reranker services.Reranker
	if clients.Reranker != nil {
		reranker = clients.Reranker
	}

	return Services{
		Consent:        consent,
		Profile:        services.NewProfileCalculator(log),
		Pattern:        services.NewPatternDetector(log),
		Recommendation: services.NewRecommendationEngine(reranker, log),
		Risk:           services.NewRiskScorer(services.DefaultRiskWeights(), services.DefaultRiskThresholds(), log),
		Benchmark:      services.NewBenchmarkService(reposet.Benchmark, reposet.Response, reposet.Profile, reposet.ConceptMastery, consent, noise, clients.BenchmarkCache, log),
	}
}
