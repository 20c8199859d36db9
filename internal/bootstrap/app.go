package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/generation"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/llm"
	openai "github.com/mrskwiw/content-jumpstart-backend-sub005/internal/llm/openai"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/posts"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/projects"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/qa"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/queue"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/revisions"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/scope"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/services/health"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/config"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/server"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/storage/db"
	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/storage/object"
	localstore "github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/storage/object/local"
	s3store "github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/storage/object/s3"
)

var errDatabaseRequired = errors.New("DATABASE_URL is required")

// App holds the wired dependency graph shared by the API server and the
// queue worker.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client
	LLM    llm.Client

	Budget    *generation.Budget
	Scheduler *generation.Scheduler
	Gate      *qa.Gate

	ProjectRepo  projects.Repo
	PostRepo     posts.Repo
	RevisionRepo revisions.Repo
	ScopeEngine  *scope.Engine

	ProjectService  *projects.Service
	RevisionService *revisions.Service

	ProjectHandler  *projects.Handler
	RevisionHandler *revisions.Handler
	ScopeHandler    *scope.Handler
	Health          *health.Service
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		Health:          app.Health,
		ProjectHandler:  app.ProjectHandler,
		RevisionHandler: app.RevisionHandler,
		ScopeHandler:    app.ScopeHandler,
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, errDatabaseRequired
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
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		// No queue in dev mode: jobs run in-process.
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			if isDevLike(cfg.Env) {
				log.Printf("bootstrap: OPENAI_API_KEY empty; using canned content")
				return llm.CannedClient{Model: cfg.LLMModel}, nil
			}
			return llm.PlaceholderClient{}, nil
		}
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLMModel)
	case "canned":
		return llm.CannedClient{Model: cfg.LLMModel}, nil
	default:
		return llm.PlaceholderClient{}, nil
	}
}

func buildServices(app *App) error {
	cfg := app.Config

	if app.DB != nil {
		app.ProjectRepo = &projects.PGRepo{DB: app.DB}
		app.PostRepo = &posts.PGRepo{DB: app.DB}
		app.RevisionRepo = &revisions.PGRepo{DB: app.DB}
		app.ScopeEngine = scope.NewEngine(scope.NewPGStore(app.DB))
	} else {
		app.ProjectRepo = projects.NewMemoryRepo()
		app.PostRepo = posts.NewMemoryRepo()
		app.RevisionRepo = revisions.NewMemoryRepo()
		app.ScopeEngine = scope.NewEngine(scope.NewMemoryStore())
	}

	llmClient, err := buildLLM(cfg)
	if err != nil {
		return err
	}
	app.LLM = llmClient

	app.Budget = generation.NewBudget(generation.BudgetConfig{
		RequestLimit: cfg.GenRequestLimit,
		TokenLimit:   cfg.GenTokenLimit,
		Threshold:    cfg.GenBudgetThreshold,
		Window:       cfg.GenWindow,
	})
	retry := generation.NewRetryPolicy(cfg.GenMaxAttempts, cfg.GenBaseBackoff, cfg.GenMaxBackoff)
	app.Scheduler, err = generation.NewScheduler(app.LLM, app.Budget, retry, cfg.GenAttemptTimeout)
	if err != nil {
		return err
	}
	app.Gate = qa.NewGate(0)

	app.RevisionService = &revisions.Service{
		Repo:         app.RevisionRepo,
		Projects:     app.ProjectRepo,
		Posts:        app.PostRepo,
		Scope:        app.ScopeEngine,
		Scheduler:    app.Scheduler,
		Gate:         app.Gate,
		Store:        app.Store,
		Queue:        app.Queue,
		Concurrency:  cfg.GenConcurrency,
		BatchTimeout: cfg.GenBatchTimeout,
	}
	app.ProjectService = &projects.Service{
		Repo:                    app.ProjectRepo,
		Posts:                   app.PostRepo,
		Scope:                   app.ScopeEngine,
		DefaultAllowedRevisions: cfg.DefaultAllowedRevisions,
	}

	app.ProjectHandler = projects.NewHandler(app.ProjectService, app.RevisionService)
	app.RevisionHandler = revisions.NewHandler(app.RevisionService)
	app.ScopeHandler = scope.NewHandler(app.ScopeEngine)
	app.Health = health.NewService(app.DB, app.Queue != nil)
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
