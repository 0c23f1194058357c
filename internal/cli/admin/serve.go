package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/satriadhikara/dock/internal/api/handlers"
	"github.com/satriadhikara/dock/internal/config"
	"github.com/satriadhikara/dock/internal/database"
	"github.com/satriadhikara/dock/internal/jobs"
	dockopenai "github.com/satriadhikara/dock/internal/openai"
	"github.com/satriadhikara/dock/internal/repository"
	"github.com/satriadhikara/dock/internal/server"
	"github.com/satriadhikara/dock/internal/service"
	"github.com/satriadhikara/dock/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the dock API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	contractRepo := repository.NewContractRepository(pool)
	chunkRepo := repository.NewKnowledgeChunkRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(sessionRepo, uuidGen, cfg.AnonOwnerID)
	if cfg.AllowAnonymous() {
		log.Printf("anonymous access enabled (owner %s)", cfg.AnonOwnerID)
	}

	var (
		ingestRunner handlers.IngestRunner     = &noOpIngest{}
		knowledgeMgr handlers.KnowledgeManager = &noOpKnowledge{}
		retriever    handlers.Retriever        = &noOpRetriever{}
		chatStreamer handlers.ChatStreamer     = &noOpChat{}
	)

	if cfg.HasOpenAI() {
		embeddingClient := dockopenai.NewClientWithConfig(dockopenai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.OpenAIBaseURL,
			EmbeddingModel:      openai.EmbeddingModel(cfg.EmbeddingModel),
			EmbeddingDimensions: cfg.EmbeddingDimensions,
		})
		chatModel := dockopenai.NewChatClient(dockopenai.ChatConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.ChatModel,
		})

		retrievalSvc := service.NewRetrievalService(chunkRepo, embeddingClient)
		knowledgeSvc := service.NewKnowledgeService(chunkRepo, embeddingClient)
		ingestSvc := service.NewIngestServiceWithConfig(contractRepo, chunkRepo, embeddingClient, service.IngestConfig{
			Additive: cfg.IngestAdditive,
		})
		copilotSvc := service.NewCopilotServiceWithConfig(chatModel, retrievalSvc, knowledgeSvc, service.CopilotConfig{
			MaxSteps:      cfg.CopilotMaxSteps,
			TopK:          cfg.RetrievalTopK,
			MinSimilarity: cfg.RetrievalMinSimilarity,
		})

		ingestRunner = ingestSvc
		knowledgeMgr = knowledgeSvc
		retriever = retrievalSvc
		chatStreamer = copilotSvc
	} else {
		log.Println("OPENAI_API_KEY not set: chat, search and ingestion disabled")
	}

	sweepInterval := time.Duration(cfg.SessionSweepIntervalSec) * time.Second
	sweeper := jobs.NewWorker(jobs.NewSessionSweeper(authSvc), sweepInterval)
	go sweeper.Start(ctx)
	log.Println("session sweeper started")

	routerCfg := server.RouterConfig{
		OwnerResolver:    authSvc,
		ChatHandler:      handlers.NewChatHandler(chatStreamer),
		KnowledgeHandler: handlers.NewKnowledgeHandler(ingestRunner, knowledgeMgr),
		SearchHandler:    handlers.NewSearchHandler(retriever, cfg.RetrievalTopK, cfg.RetrievalMinSimilarity),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

var errNoEmbeddingProvider = fmt.Errorf("embedding provider not configured: DOCK_OPENAI_API_KEY required")

type noOpIngest struct{}

func (noOpIngest) Ingest(ctx context.Context, ownerID string) (*service.IngestResult, error) {
	return nil, errNoEmbeddingProvider
}

type noOpKnowledge struct{}

func (noOpKnowledge) AddKnowledge(ctx context.Context, ownerID, content string) (string, error) {
	return "", errNoEmbeddingProvider
}

func (noOpKnowledge) ListChunks(ctx context.Context, input service.ListChunksInput) (*service.ListChunksOutput, error) {
	return nil, errNoEmbeddingProvider
}

func (noOpKnowledge) PurgeContract(ctx context.Context, ownerID, contractID string) (int64, error) {
	return 0, errNoEmbeddingProvider
}

type noOpRetriever struct{}

func (noOpRetriever) Retrieve(ctx context.Context, ownerID, query string, topK int, minSimilarity float64) ([]*service.RetrievalResult, error) {
	return nil, errNoEmbeddingProvider
}

type noOpChat struct{}

func (noOpChat) Chat(ctx context.Context, ownerID string, history []service.Message) <-chan service.StreamEvent {
	events := make(chan service.StreamEvent, 1)
	events <- service.StreamEvent{Err: errNoEmbeddingProvider}
	close(events)
	return events
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	upErr := m.Up()
	if upErr != nil && upErr != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if upErr == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
