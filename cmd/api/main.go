package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"docs-chat/internal/config"
	"docs-chat/internal/document"
	apihttp "docs-chat/internal/http"
	"docs-chat/internal/llm"
	"docs-chat/internal/service"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	if cfg.LogDevelopment {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	var llmClient llm.StreamClient
	if cfg.LLMAPIKey != "" {
		llmClient = llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMResponseTimeout, logger)
	} else {
		logger.Warn("LLM_API_KEY not configured, using mock gateway")
		llmClient = &llm.MockClient{Chunks: []string{"(mock) ", "Configure LLM_API_KEY ", "to get real answers."}}
	}

	fetcher := document.NewFetcher(nil, cfg.DocsExportBaseURL, document.Limits{
		MaxBytes: cfg.MaxDocumentBytes,
		Timeout:  cfg.FetchTimeout,
	}, logger)
	assembler := service.NewContextAssembler(service.DefaultSystemPrompt, cfg.HistoryWindow)

	usage := service.NewMemoryUsageRecorder()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, usage counters stay in memory", zap.Error(err))
		} else {
			usage = service.NewRedisUsageRecorder(redisClient, 7*24*time.Hour, logger)
		}
		cancel()
	}

	chatSvc := service.NewChatService(logger, fetcher, assembler, llmClient, usage)
	chatHandler := apihttp.NewChatHandler(logger, chatSvc)
	router := apihttp.NewRouter(logger, chatHandler, cfg.CORSAllowedOrigin)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("model", llmClient.Model()),
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
