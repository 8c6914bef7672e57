package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/zap"

	"webintel-server/internal/api"
	"webintel-server/internal/config"
	"webintel-server/internal/fetch"
	"webintel-server/internal/generation"
	"webintel-server/internal/jobs"
	"webintel-server/internal/logger"
	"webintel-server/internal/pipeline"
	"webintel-server/internal/routing"
	"webintel-server/internal/store"
	"webintel-server/internal/testcases"
	"webintel-server/internal/token"
)

func main() {
	// Загрузка переменных окружения
	if err := godotenv.Load(); err != nil {
		// Логируем как предупреждение, т.к. в production .env может не использоваться
		fmt.Printf("Warning: could not load .env file: %v\n", err)
	}

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгеров: zap для HTTP слоя, zerolog для контекстов задач
	zapLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync() //nolint:errcheck

	jobLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	zapLogger.Info("Starting webintel-server",
		zap.Int("port", cfg.ServerPort),
		zap.String("aiClientType", cfg.AIClientType),
		zap.String("primaryModel", cfg.PrimaryModel),
		zap.String("fallbackModel", cfg.FallbackModel),
		zap.String("apiKey", cfg.MaskedAPIKey()),
	)

	// Таблица уровней моделей
	tiers, err := cfg.Tiers()
	if err != nil {
		zapLogger.Fatal("invalid tier configuration", zap.Error(err))
	}
	table, err := routing.NewTable(tiers)
	if err != nil {
		zapLogger.Fatal("invalid tier configuration", zap.Error(err))
	}

	// Оценка токенов
	estimator, err := token.New(cfg.Tokenizer, cfg.PrimaryModel)
	if err != nil {
		zapLogger.Fatal("failed to create token estimator", zap.Error(err))
	}

	// AI клиент и движок генерации
	aiClient, err := generation.NewAIClient(cfg)
	if err != nil {
		zapLogger.Fatal("failed to create AI client", zap.Error(err))
	}
	engine := generation.NewEngine(aiClient, table, estimator, generation.Options{
		MaxAttempts:    cfg.AIMaxAttempts,
		BaseRetryDelay: cfg.AIBaseRetryDelay,
		MaxItems:       cfg.GenerationMaxItems,
	})

	// Хранилище артефактов
	fileStore, err := store.NewFileStore(cfg.OutputDir)
	if err != nil {
		zapLogger.Fatal("failed to create artifact store", zap.Error(err))
	}

	// Менеджер задач и пайплайн
	manager := jobs.New(jobs.Config{MaxJobs: cfg.MaxJobs}, fileStore)
	runner := pipeline.NewRunner(
		fetch.New(cfg.FetchTimeout),
		engine,
		testcases.New(aiClient),
		fileStore,
		pipeline.Options{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap},
	)

	// HTTP слой
	handler := api.NewHandler(manager, runner, fileStore, table)
	router := api.NewRouter(handler, zapLogger, jobLogger, cfg.CORSAllowedOrigins)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Периодическая очистка устаревших задач
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				manager.CleanupJobs(cfg.JobRetention)
			}
		}
	}()

	go func() {
		zapLogger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Job manager shutdown error", zap.Error(err))
	}

	zapLogger.Info("Server stopped")
}
