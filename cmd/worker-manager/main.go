// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"resume-ingest/internal/analysis"
	"resume-ingest/internal/common/aws"
	"resume-ingest/internal/common/camunda"
	"resume-ingest/internal/common/config"
	"resume-ingest/internal/common/database"
	"resume-ingest/internal/common/logger"
	"resume-ingest/internal/common/metrics"
	"resume-ingest/internal/common/observability"
	"resume-ingest/internal/dedup"
	"resume-ingest/internal/extraction"
	"resume-ingest/internal/indexing"
	"resume-ingest/internal/notify"
	"resume-ingest/internal/repository"
	"resume-ingest/internal/storage"

	pr "resume-ingest/internal/workers/ingestion/process-resume"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	tracing, err := observability.NewTracing("worker-manager", os.Getenv("JAEGER_ENDPOINT"))
	if err != nil {
		zapLog.Fatal("tracing setup failed", zap.Error(err))
	}
	defer tracing.Shutdown()

	ctx := context.Background()

	// --- Init Camunda Client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Camunda client initialization")

	if err != nil {
		zapLog.Fatal("camunda client failed after retries", zap.Error(err))
	}
	zapLog.Info("Camunda client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init AWS Clients ---
	s3Client, err := aws.NewS3Client(ctx, cfg.Storage.S3.Region, cfg.Storage.S3.Bucket)
	if err != nil {
		zapLog.Fatal("s3 client failed", zap.Error(err))
	}

	var publisher notify.Publisher
	if cfg.Notifications.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		publisher = snsClient
	}

	var emailer notify.Emailer
	if cfg.Notifications.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		emailer = sesClient
	}

	zapLog.Info("External service clients initialized")

	// --- Build Pipeline Components ---
	primary := extraction.NewDocParseProvider(extraction.DocParseConfig{
		BaseURL:      cfg.Providers.DocParse.BaseURL,
		APIKey:       cfg.Providers.DocParse.APIKey,
		Timeout:      config.GetDuration(cfg.Providers.DocParse.Timeout),
		PollInterval: config.GetDuration(cfg.Providers.DocParse.PollInterval),
	}, log)

	fallback := extraction.NewOfflineProvider(log)

	vision := extraction.NewVisionClient(extraction.VisionConfig{
		BaseURL: cfg.Providers.Vision.BaseURL,
		APIKey:  cfg.Providers.Vision.APIKey,
		Model:   cfg.Providers.Vision.Model,
		Timeout: config.GetDuration(cfg.Providers.Vision.Timeout),
	}, log)

	orchestrator := extraction.NewOrchestrator(primary, fallback, primary, vision, metrics.PipelineSink{}, log)

	analyzer, err := analysis.NewAnalyzer(analysis.Config{
		BaseURL: cfg.Providers.Analysis.BaseURL,
		APIKey:  cfg.Providers.Analysis.APIKey,
		Model:   cfg.Providers.Analysis.Model,
		Timeout: config.GetDuration(cfg.Providers.Analysis.Timeout),
	}, log)
	if err != nil {
		zapLog.Fatal("analyzer setup failed", zap.Error(err))
	}

	gateway := storage.NewGateway(s3Client, storage.Config{
		URLTTL:          time.Duration(cfg.Storage.S3.URLTTL) * time.Second,
		DownloadTimeout: config.GetDuration(cfg.Storage.S3.DownloadTimeout),
		MaxFileBytes:    cfg.Storage.S3.MaxFileBytes,
	}, log)

	deduper := dedup.NewDeduper(redisClient, time.Duration(cfg.Pipeline.DedupTTL)*time.Second, log)

	indexer := indexing.NewIndexer(esClient, indexing.Config{
		Index:      cfg.Pipeline.IndexName,
		ChunkChars: cfg.Pipeline.IndexChunkChars,
	}, log)

	notifier := notify.NewNotifier(publisher, emailer, notify.Config{
		TopicARN:    cfg.Notifications.SNS.TopicARN,
		FromAddress: cfg.Notifications.Email.FromEmail,
	}, log)

	repo := repository.NewResumeRepository(pg, log)

	// --- Register Ingestion Worker ---
	handler, err := pr.NewHandler(pr.HandlerOptions{
		AppConfig: cfg,
		Camunda:   camundaClient,
		Dependencies: pr.ServiceDependencies{
			Records:   repo,
			Fetcher:   gateway,
			Extractor: orchestrator,
			Analyzer:  analyzer,
			Deduper:   deduper,
			Indexer:   indexer,
			Notifier:  notifier,
			Tracer:    tracing,
			Logger:    log,
		},
		Logger: log,
	})
	if err != nil {
		zapLog.Fatal("failed to create process-resume handler", zap.Error(err))
	}

	if err := handler.Register(); err != nil {
		zapLog.Fatal("failed to register process-resume worker", zap.Error(err))
	}

	zapLog.Info("All workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			status := "ready"
			code := http.StatusOK
			if err := pg.Ping(r.Context()); err != nil {
				status = "not ready"
				code = http.StatusServiceUnavailable
			} else if err := handler.HealthCheck(r.Context()); err != nil {
				status = "not ready"
				code = http.StatusServiceUnavailable
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			json.NewEncoder(w).Encode(map[string]string{
				"status": status,
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	handler.Close()

	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Camunda client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
