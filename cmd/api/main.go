package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/apexcrm/lead-console/cmd/mainconfig"
	"github.com/apexcrm/lead-console/internal/api/router"
	"github.com/apexcrm/lead-console/internal/chatapi"
	appconfig "github.com/apexcrm/lead-console/internal/config"
	"github.com/apexcrm/lead-console/internal/extraction"
	"github.com/apexcrm/lead-console/internal/leads"
	"github.com/apexcrm/lead-console/internal/llm"
	"github.com/apexcrm/lead-console/internal/notify"
	"github.com/apexcrm/lead-console/internal/observability/metrics"
	"github.com/apexcrm/lead-console/internal/transcript"
	"github.com/apexcrm/lead-console/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting lead console API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Lead storage: Postgres when configured, in-memory otherwise.
	var leadsRepo leads.Repository
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		leadsRepo = leads.NewPostgresRepository(pool)
		logger.Info("using postgres lead repository")
	} else {
		leadsRepo = leads.NewInMemoryRepository()
		logger.Warn("DATABASE_URL not set, using in-memory lead repository")
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Model client for the chat assistant.
	var streamClient llm.StreamClient
	modelID := cfg.BedrockModelID
	switch cfg.LLMProvider {
	case "gemini":
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
		defer gemini.Close()
		streamClient = gemini
		modelID = cfg.GeminiModelID
		logger.Info("using gemini chat model", "model", cfg.GeminiModelID)
	default:
		streamClient = llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg))
		logger.Info("using bedrock chat model", "model", cfg.BedrockModelID)
	}

	// Transcript persistence is optional; without Redis chats still work,
	// they just are not stored.
	var transcriptStore *transcript.Store
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		transcriptStore = transcript.NewStore(redisClient)
		logger.Info("transcript store enabled", "addr", cfg.RedisAddr)
	} else {
		logger.Warn("REDIS_ADDR not set, chat transcripts will not be persisted")
	}

	registry := prometheus.NewRegistry()
	leadMetrics := metrics.NewLeadMetrics(registry)
	chatMetrics := metrics.NewChatMetrics(registry)

	var notifier leads.Notifier
	if svc := notify.NewService(
		notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.NotifyFromEmail,
			FromName:  cfg.NotifyFromName,
		}, logger),
		notify.ServiceConfig{Recipient: cfg.NotifyToEmail},
		logger,
	); svc != nil {
		notifier = svc
		logger.Info("lead capture notifications enabled", "to", cfg.NotifyToEmail)
	}

	leadsHandler := leads.NewHandler(leadsRepo, logger.Component("leads"), leadMetrics, notifier)

	var extractionHandler *extraction.Handler
	if cfg.RecognizerURL != "" {
		recognizer, err := extraction.NewHTTPRecognizer(extraction.HTTPRecognizerConfig{
			BaseURL: cfg.RecognizerURL,
			Timeout: cfg.ExtractTimeout,
			Logger:  logger.Component("extraction"),
		})
		if err != nil {
			logger.Error("failed to create recognizer client", "error", err)
			os.Exit(1)
		}
		archive := extraction.NewDocumentArchive(s3.NewFromConfig(awsCfg), cfg.DocumentBucket, logger)
		extractionHandler = extraction.NewHandler(recognizer, leadsRepo, archive, notifier, logger.Component("extraction"), leadMetrics, cfg.ExtractTimeout)
	} else {
		logger.Warn("RECOGNIZER_URL not set, document extraction disabled")
	}

	chatHandler := chatapi.NewHandler(streamClient, transcriptStore, chatMetrics, logger.Component("chat"), modelID, cfg.StreamTimeout)
	chatSocket := chatapi.NewWSHandler(chatHandler, leadsRepo)

	r := router.New(&router.Config{
		Logger:             logger,
		LeadsHandler:       leadsHandler,
		ExtractionHandler:  extractionHandler,
		ChatHandler:        chatHandler,
		ChatSocketHandler:  chatSocket,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ExtractRateLimit:   2,
		ExtractBurst:       5,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: SSE chat streams outlive any fixed value. The
		// per-stream context deadline bounds them instead.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
