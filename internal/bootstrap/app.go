package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"situation-backend/internal/actionitems"
	"situation-backend/internal/analyses"
	"situation-backend/internal/llm"
	"situation-backend/internal/llm/openai"
	"situation-backend/internal/realtime"
	"situation-backend/internal/services/health"
	"situation-backend/internal/shared/config"
	"situation-backend/internal/shared/server"
	"situation-backend/internal/shared/storage/db"
)

// App holds the wired application dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Redis  *redis.Client

	AnalysesRepo    analyses.Repo
	ActionItemsRepo actionitems.Repo
	LLM             llm.Client

	AnalysesService    *analyses.Service
	ActionItemsService *actionitems.Service
	Watcher            *analyses.Watcher
	HealthService      *health.Service

	AnalysisHandler   *analyses.Handler
	ActionItemHandler *actionitems.Handler
}

// Build wires every dependency from configuration. Dev-like environments
// fall back to in-memory repositories when Postgres is unreachable;
// production treats the same failures as fatal.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB

	app.Redis = buildRedis(ctx, cfg)

	if sqlDB != nil {
		app.AnalysesRepo = &analyses.PGRepo{DB: sqlDB}
		app.ActionItemsRepo = actionitems.NewPGRepo(sqlDB)
	} else {
		app.AnalysesRepo = analyses.NewMemoryRepo()
		app.ActionItemsRepo = actionitems.NewMemoryRepo()
	}

	app.LLM = buildLLM(cfg)
	app.Watcher = analyses.NewWatcher(app.AnalysesRepo, cfg.WatchInterval, cfg.WatchAttempts)

	strategy, err := buildStrategy(cfg, app)
	if err != nil {
		return nil, err
	}

	var notifier analyses.Notifier
	if app.Redis != nil {
		notifier = realtime.NewNotifier(app.Redis)
	}

	app.AnalysesService = &analyses.Service{
		Repo:     app.AnalysesRepo,
		Strategy: strategy,
		Notifier: notifier,
	}
	app.ActionItemsService = actionitems.NewService(app.ActionItemsRepo, app.AnalysesRepo)
	app.HealthService = health.NewService(app.DB, app.Redis)

	var waiter analyses.Waiter = app.Watcher
	if app.Redis != nil {
		waiter = realtime.NewWatcher(app.Redis, app.AnalysesRepo, cfg.WatchInterval*time.Duration(cfg.WatchAttempts))
	}
	app.AnalysisHandler = analyses.NewHandler(app.AnalysesService, waiter)
	app.ActionItemHandler = actionitems.NewHandler(app.ActionItemsService)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:            cfg,
		HealthService:     app.HealthService,
		AnalysisHandler:   app.AnalysisHandler,
		ActionItemHandler: app.ActionItemHandler,
	})

	return app, nil
}

// Close releases held connections.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildRedis(ctx context.Context, cfg config.Config) *redis.Client {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil
	}
	client, err := realtime.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.Printf("bootstrap: redis unavailable, push notifications disabled: %v", err)
		return nil
	}
	return client
}

func buildLLM(cfg config.Config) llm.Client {
	client, err := openai.New(openai.Config{
		APIKey:          cfg.OpenAIAPIKey,
		AssistantID:     cfg.AssistantID,
		VisionModel:     cfg.VisionModel,
		PollInterval:    cfg.RunPollInterval,
		MaxPollAttempts: cfg.RunPollAttempts,
	})
	if err != nil {
		log.Printf("bootstrap: openai not configured, submissions will fail until it is: %v", err)
		return llm.PlaceholderClient{}
	}
	return client
}

func buildStrategy(cfg config.Config, app *App) (analyses.Strategy, error) {
	switch cfg.Strategy {
	case config.StrategyWebhook:
		if strings.TrimSpace(cfg.WebhookURL) == "" {
			return nil, fmt.Errorf("ANALYSIS_WEBHOOK_URL is required for the webhook strategy")
		}
		return &analyses.WebhookStrategy{
			URL:     cfg.WebhookURL,
			Watcher: app.Watcher,
		}, nil
	default:
		return &analyses.DirectStrategy{LLM: app.LLM}, nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
