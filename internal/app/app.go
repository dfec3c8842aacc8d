package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/lumenlabs/lumen-analytics/internal/db"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
	"github.com/lumenlabs/lumen-analytics/internal/queue"
)

// App is the fully wired analytics worker: repos, services, clients,
// and the task consumer that drives them.
type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Services Services
	Clients  Clients
	Consumer *queue.Consumer
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clients, err := wireClients(cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(log, reposet, clients)

	registry := queue.NewRegistry()
	handlers := []queue.Handler{
		queue.NewPerformanceUpdateHandler(serviceset.Consent, serviceset.Profile, reposet.Response, reposet.Profile, reposet.ConceptMastery, reposet.Task, clients.TaskQueue, log),
		queue.NewRecommendationGenerationHandler(serviceset.Consent, serviceset.Recommendation, reposet.Profile, reposet.ConceptMastery, reposet.StrugglePattern, reposet.Recommendation, log),
		queue.NewPatternDetectionHandler(serviceset.Consent, serviceset.Pattern, reposet.Response, reposet.StrugglePattern, log),
		queue.NewAlertCheckHandler(serviceset.Consent, serviceset.Risk, reposet.Profile, reposet.StrugglePattern, reposet.Alert, log),
	}
	for _, h := range handlers {
		if err := registry.Register(h); err != nil {
			clients.Close()
			log.Sync()
			return nil, fmt.Errorf("register handler: %w", err)
		}
	}

	consumer := queue.NewConsumer(clients.TaskQueue, reposet.Task, reposet.BatchLog, registry, cfg.Consumer, log)

	return &App{
		Log:      log,
		DB:       theDB,
		Cfg:      cfg,
		Repos:    reposet,
		Services: serviceset,
		Clients:  clients,
		Consumer: consumer,
	}, nil
}

// Run blocks on the consumer loop until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.Consumer.Run(ctx)
}

func (a *App) Close() {
	a.Clients.Close()
	a.Log.Sync()
}
