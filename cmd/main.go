package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/shenikar/resq_dispatch/internal/assignment"
	"github.com/shenikar/resq_dispatch/internal/config"
	v1 "github.com/shenikar/resq_dispatch/internal/handler/http/v1"
	"github.com/shenikar/resq_dispatch/internal/inference"
	"github.com/shenikar/resq_dispatch/internal/intake"
	"github.com/shenikar/resq_dispatch/internal/pipeline"
	"github.com/shenikar/resq_dispatch/internal/realtime"
	"github.com/shenikar/resq_dispatch/internal/repository"
	"github.com/shenikar/resq_dispatch/internal/search"
	"github.com/shenikar/resq_dispatch/internal/service"
	"github.com/shenikar/resq_dispatch/internal/transcription"
	"github.com/shenikar/resq_dispatch/internal/webhook"
	"github.com/shenikar/resq_dispatch/pkg/logger"
	"github.com/shenikar/resq_dispatch/pkg/postgres"
	redisclient "github.com/shenikar/resq_dispatch/pkg/redis"
	"github.com/sirupsen/logrus"

	_ "github.com/shenikar/resq_dispatch/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title ResQ Dispatch API
// @version 1.0
// @description Incident intake, analysis, dispatcher approval and real-time console updates.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func runMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	migrationURL := cfg.DatabaseURL
	if !strings.HasPrefix(migrationURL, "pgx5://") {
		migrationURL = strings.Replace(migrationURL, "postgres://", "pgx5://", 1)
	}

	m, err := migrate.New(
		"file://migrations",
		migrationURL,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations applied successfully")
	return nil
}

// newGateway собирает цепочку провайдеров вывода: основная модель, резервная, правила
func newGateway(ctx context.Context, cfg *config.Config, log *logrus.Logger) inference.Gateway {
	var providers []inference.Gateway
	if cfg.GeminiAPIKey != "" {
		for _, model := range []string{cfg.LLMModel, cfg.LLMFallbackModel} {
			if model == "" {
				continue
			}
			gw, err := inference.NewGeminiGateway(ctx, cfg.GeminiAPIKey, model)
			if err != nil {
				log.WithError(err).WithField("model", model).Warn("Gemini gateway disabled")
				continue
			}
			providers = append(providers, gw)
		}
	} else {
		log.Warn("GEMINI_API_KEY is not set, using rule-based inference only")
	}
	providers = append(providers, inference.NewRuleGateway())
	return inference.NewFallbackGateway(log, providers...)
}

func newEmbedder(ctx context.Context, cfg *config.Config, log *logrus.Logger) inference.Embedder {
	if cfg.GeminiAPIKey != "" {
		embedder, err := inference.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel)
		if err == nil {
			return embedder
		}
		log.WithError(err).Warn("Gemini embedder disabled, falling back to hash embedder")
	}
	return inference.NewHashEmbedder(64)
}

// newSearcher возвращает Qdrant, если он настроен, иначе in-memory индекс с базовыми процедурами
func newSearcher(ctx context.Context, cfg *config.Config, embedder inference.Embedder, log *logrus.Logger) (search.Searcher, error) {
	if cfg.QdrantURL != "" {
		log.WithField("url", cfg.QdrantURL).Info("Using Qdrant vector search")
		return search.NewQdrantClient(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.StageTimeout), nil
	}
	mem := search.NewMemorySearcher()
	if err := search.SeedSOPs(ctx, mem, embedder.Embed); err != nil {
		return nil, err
	}
	log.Info("Using in-memory vector search with built-in SOPs")
	return mem, nil
}

// rehydrateRoster восстанавливает загрузку командиров по активным инцидентам
func rehydrateRoster(ctx context.Context, cfg *config.Config, roster *assignment.Roster, store service.IncidentService, log *logrus.Logger) error {
	for _, commander := range cfg.Commanders {
		active, err := store.QueryActive(ctx, commander.ID)
		if err != nil {
			return fmt.Errorf("failed to load active incidents of %s: %w", commander.ID, err)
		}
		for _, incident := range active {
			roster.Track(commander.ID, incident.ID)
		}
		if len(active) > 0 {
			log.WithFields(logrus.Fields{"commander_id": commander.ID, "active": len(active)}).Info("Commander workload restored")
		}
	}
	return nil
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Service: "resq-dispatch"})

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запуск миграций
	if err := runMigrations(cfg, log); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Подключение к PostgreSQL
	dbpool, err := postgres.NewPostgresDB(ctx, cfg.DatabaseURL, postgres.DefaultPoolOptions)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer dbpool.Close()
	log.Info("Successfully connected to PostgreSQL")

	// Инициализация Redis клиента
	redisClient, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Info("Successfully connected to Redis")

	// Рассылка событий: локальный hub или hub за Redis pub/sub для нескольких экземпляров
	hub := realtime.NewHub(cfg.SubscriberBuffer, log)
	var broadcaster service.EventPublisher = hub
	if cfg.BroadcastMode == "redis" {
		relay := realtime.NewRedisRelay(redisClient, cfg.BroadcastChannel, hub, log)
		relay.Start(ctx)
		broadcaster = relay
	}
	consoles := realtime.NewSessionManager(hub, log)

	// Инициализация издателя вебхуков
	webhookPublisher := webhook.NewRedisWebhookPublisher(redisClient)

	// Инициализация и запуск воркера вебхуков
	webhookWorker := webhook.NewWebhookWorker(redisClient, log, cfg)
	webhookWorker.Start(ctx)

	// Инициализация репозиториев
	incidentRepo := repository.NewIncidentRepository(dbpool, redisClient, cfg.IncidentCacheTTL)
	sessionRepo := repository.NewSessionRepository(redisClient, cfg.SessionTTL)

	// Хранилище инцидентов и назначение командиров
	roster := assignment.NewRoster(cfg.Commanders)
	store := service.NewIncidentStore(incidentRepo, roster, service.Publishers(broadcaster, webhookPublisher), log)
	if err := rehydrateRoster(ctx, cfg, roster, store, log); err != nil {
		log.Fatalf("Failed to restore commander roster: %v", err)
	}
	approvals := service.NewApprovalGate(store, roster, log)

	// Конвейер анализа
	embedder := newEmbedder(ctx, cfg, log)
	searcher, err := newSearcher(ctx, cfg, embedder, log)
	if err != nil {
		log.Fatalf("Failed to initialize vector search: %v", err)
	}
	supervisor, err := pipeline.NewSupervisor(
		newGateway(ctx, cfg, log),
		embedder,
		searcher,
		pipeline.NewKeywordGuard(cfg.SafetyBlocklist),
		pipeline.Config{StageTimeout: cfg.StageTimeout, PipelineTimeout: cfg.PipelineTimeout},
		log,
	)
	if err != nil {
		log.Fatalf("Failed to initialize analysis pipeline: %v", err)
	}

	// Прием обращений
	var transcriber transcription.Transcriber
	if cfg.TranscriptionURL != "" {
		transcriber = transcription.NewHTTPClient(cfg.TranscriptionURL, cfg.TranscriptionAPIKey, cfg.StageTimeout)
	}
	adapter := intake.NewAdapter(transcriber, log)
	submissions := service.NewSubmissionService(adapter, supervisor, store, sessionRepo, log)

	// Инициализация хэндлеров
	handler := v1.NewHandler(submissions, store, approvals, consoles, log, cfg)
	handler.AddReadinessCheck("postgres", dbpool.Ping)
	handler.AddReadinessCheck("redis", func(ctx context.Context) error {
		return redisclient.Ping(ctx, redisClient)
	})

	// Настройка Gin роутера
	router := gin.Default()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Запуск HTTP-сервера
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	// Запуск сервера в горутине
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	// консоли на WebSocket не завершаются через Shutdown сервера
	consoles.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server gracefully stopped")
}
