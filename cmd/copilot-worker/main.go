// cmd/copilot-worker/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"farm-copilot/internal/adapters/advisory"
	"farm-copilot/internal/adapters/agro"
	"farm-copilot/internal/adapters/geo"
	"farm-copilot/internal/adapters/knowledge"
	"farm-copilot/internal/adapters/plantid"
	"farm-copilot/internal/adapters/weather"
	"farm-copilot/internal/common/aws"
	"farm-copilot/internal/common/cache"
	"farm-copilot/internal/common/camunda"
	"farm-copilot/internal/common/config"
	"farm-copilot/internal/common/database"
	commonhttp "farm-copilot/internal/common/http"
	"farm-copilot/internal/common/logger"
	"farm-copilot/internal/common/observability"
	"farm-copilot/internal/fetch"
	"farm-copilot/internal/fusion"
	"farm-copilot/internal/language"
	"farm-copilot/internal/pipeline"
	"farm-copilot/internal/ranking"
	"farm-copilot/internal/response"

	aq "farm-copilot/internal/workers/copilot/answer-question"
	ac "farm-copilot/internal/workers/copilot/analyze-conditions"
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
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// backends holds the optional storage clients. Each is nil when not configured.
type backends struct {
	redis    *redis.Client
	postgres *sql.DB
	es       *elasticsearch.Client
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting farm copilot",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.Observability.ServiceName)
	defer obs.Shutdown()

	tracing, err := observability.NewTracing(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint)
	if err != nil {
		zapLog.Fatal("tracing setup failed", zap.Error(err))
	}
	defer tracing.Shutdown()

	ctx := context.Background()

	be, checks := connectBackends(ctx, cfg, zapLog)

	client := commonhttp.NewClient(
		config.GetDuration(cfg.Pipeline.AdapterTimeout),
		commonhttp.WithRateLimit(cfg.APIs.RateLimitPerSecond, int(cfg.APIs.RateLimitPerSecond)+1),
		commonhttp.WithUserAgent(fmt.Sprintf("%s/%s", cfg.App.Name, cfg.App.Version)),
	)

	sharedCache, err := cache.New(cfg.Pipeline.Cache, be.redis, log)
	if err != nil {
		zapLog.Fatal("cache setup failed", zap.Error(err))
	}

	adapters := buildAdapters(cfg, be, client, sharedCache, log)

	closers := []fetch.Option{
		fetch.WithTracer(tracing.Tracer("farm-copilot/fetch")),
		fetch.WithCloser("http", func() error { client.CloseIdleConnections(); return nil }),
	}
	if be.redis != nil {
		closers = append(closers, fetch.WithCloser("redis", be.redis.Close))
	}
	if be.postgres != nil {
		closers = append(closers, fetch.WithCloser("postgres", be.postgres.Close))
	}
	orchestrator := fetch.New(fetch.Config{
		ConcurrencyLimit: cfg.Pipeline.ConcurrencyLimit,
		Timeout:          config.GetDuration(cfg.Pipeline.AdapterTimeout),
	}, log, closers...)

	var translator language.Translator
	if cfg.APIs.Translation.BaseURL != "" {
		translator = language.NewHTTPTranslator(
			commonhttp.NewClient(config.GetDuration(cfg.APIs.Translation.Timeout)),
			cfg.APIs.Translation.BaseURL, cfg.APIs.Translation.APIKey,
		)
	}
	var transcriber language.Transcriber
	if cfg.APIs.Speech.BaseURL != "" {
		transcriber = language.NewHTTPTranscriber(
			commonhttp.NewClient(config.GetDuration(cfg.APIs.Speech.Timeout)),
			cfg.APIs.Speech.BaseURL, cfg.APIs.Speech.APIKey,
		)
	}
	gateway := language.NewGateway(language.NewStatisticalDetector(), translator, transcriber, log)

	opts := []pipeline.Option{
		pipeline.WithRecorder(obs),
		pipeline.WithTopK(cfg.Pipeline.TopK),
	}
	if cfg.Notifications.SNS.Enabled {
		notifier, err := aws.NewSNSNotifier(ctx, cfg.Notifications.SNS.Region, cfg.Notifications.SNS.TopicARN, log)
		if err != nil {
			zapLog.Fatal("sns notifier setup failed", zap.Error(err))
		}
		opts = append(opts, pipeline.WithNotifier(notifier))
	}
	if ses := cfg.Notifications.SES; ses.Enabled {
		notifier, err := aws.NewSESNotifier(ctx, ses.Region, ses.From, ses.Recipients, log)
		if err != nil {
			zapLog.Fatal("ses notifier setup failed", zap.Error(err))
		}
		opts = append(opts, pipeline.WithNotifier(notifier))
	}

	analyzer := fusion.New(fusion.ThresholdsFromConfig(cfg.Thresholds), log)
	copilot := pipeline.New(
		gateway,
		orchestrator,
		adapters,
		ranking.NewEngine(cfg.Pipeline.SourceTrust, ranking.WithDefaultTopK(cfg.Pipeline.TopK)),
		analyzer,
		response.NewAssembler(gateway, log),
		log,
		opts...,
	)

	// --- Zeebe job workers ---
	var (
		camundaClient *camunda.Client
		workers       []interface{ Close() }
	)
	if cfg.Camunda.Enabled() {
		err = retryWithBackoff(func() error {
			var err error
			camundaClient, err = camunda.NewClient(cfg.Camunda)
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		checks = append(checks, readinessCheck{name: "zeebe", fn: camundaClient.HealthCheck})

		answer, err := aq.NewHandler(aq.HandlerOptions{AppConfig: cfg, Camunda: camundaClient, Asker: copilot, Recorder: obs, Logger: log})
		if err != nil {
			zapLog.Fatal("failed to create answer-question handler", zap.Error(err))
		}
		analyze, err := ac.NewHandler(ac.HandlerOptions{AppConfig: cfg, Camunda: camundaClient, Analyzer: analyzer, Recorder: obs, Logger: log})
		if err != nil {
			zapLog.Fatal("failed to create analyze-conditions handler", zap.Error(err))
		}
		for _, h := range []interface {
			Register() error
			Close()
		}{answer, analyze} {
			if err := h.Register(); err != nil {
				zapLog.Fatal("worker registration failed", zap.Error(err))
			}
			workers = append(workers, h)
		}
		zapLog.Info("Zeebe workers registered", zap.Int("count", len(workers)))
	} else {
		zapLog.Info("camunda.broker_address not set, job workers disabled")
	}

	// --- HTTP surface ---
	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           newServer(copilot, checks, log).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown", zap.Error(err))
	}
	for _, w := range workers {
		w.Close()
	}
	if camundaClient != nil {
		if err := camundaClient.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if err := orchestrator.Shutdown(); err != nil {
		zapLog.Error("Error releasing adapter resources", zap.Error(err))
	}

	zapLog.Info("Farm copilot stopped gracefully")
}

// connectBackends opens whichever storage backends are configured and returns
// a readiness check for each.
func connectBackends(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (backends, []readinessCheck) {
	var (
		be     backends
		checks []readinessCheck
	)

	if cfg.Database.Redis.Address != "" {
		rdb := database.NewRedis(cfg.Database.Redis)
		err := retryWithBackoff(func() error {
			return database.PingRedis(ctx, rdb)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		be.redis = rdb
		checks = append(checks, readinessCheck{name: "redis", fn: func(ctx context.Context) error {
			return database.PingRedis(ctx, rdb)
		}})
		zapLog.Info("Redis connected successfully")
	}

	if cfg.Database.Postgres.Host != "" {
		db, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			zapLog.Fatal("postgres setup failed", zap.Error(err))
		}
		err = retryWithBackoff(func() error {
			return db.PingContext(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		be.postgres = db
		checks = append(checks, readinessCheck{name: "postgres", fn: db.PingContext})
		zapLog.Info("PostgreSQL connected successfully")
	}

	if len(cfg.Database.Elasticsearch.Addresses) > 0 {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Fatal("elasticsearch setup failed", zap.Error(err))
		}
		err = retryWithBackoff(func() error {
			return database.PingElasticsearch(ctx, es)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		be.es = es
		checks = append(checks, readinessCheck{name: "elasticsearch", fn: func(ctx context.Context) error {
			return database.PingElasticsearch(ctx, es)
		}})
		zapLog.Info("Elasticsearch connected successfully")
	}

	return be, checks
}

// buildAdapters instantiates the adapters named in pipeline.adapters, in order.
// Adapters whose backend is not configured are skipped with a warning.
func buildAdapters(cfg *config.Config, be backends, client *commonhttp.Client, c cache.Cache, log logger.Logger) []fetch.Adapter {
	geocoder := geo.NewGeocoder(client, cfg.APIs.OpenWeather.GeoURL, cfg.APIs.OpenWeather.APIKey, c, log,
		geo.WithResolveTimeout(config.GetDuration(cfg.Pipeline.AdapterTimeout)))

	var adapters []fetch.Adapter
	for _, name := range cfg.Pipeline.Adapters {
		switch name {
		case weather.Name:
			adapters = append(adapters, weather.New(client, geocoder, cfg.APIs.OpenWeather.BaseURL, cfg.APIs.OpenWeather.APIKey, log))
		case agro.Name:
			adapters = append(adapters, agro.New(client, geocoder, cfg.APIs.Agro.BaseURL, cfg.APIs.Agro.APIKey, log))
		case plantid.Name:
			plantClient := commonhttp.NewClient(config.GetDuration(cfg.APIs.PlantID.Timeout))
			adapters = append(adapters, plantid.New(plantClient, cfg.APIs.PlantID.BaseURL, cfg.APIs.PlantID.APIKey, log))
		case knowledge.Name:
			if be.es == nil {
				log.Warn("knowledge adapter needs elasticsearch, skipping", nil)
				continue
			}
			adapters = append(adapters, knowledge.New(be.es, cfg.Database.Elasticsearch.KnowledgeIndex, log))
		case advisory.Name:
			if be.postgres == nil {
				log.Warn("advisory adapter needs postgres, skipping", nil)
				continue
			}
			adapters = append(adapters, advisory.New(be.postgres, log))
		default:
			log.Warn("unknown adapter in configuration", map[string]interface{}{"adapter": name})
		}
	}

	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, a.Name())
	}
	log.Info("evidence adapters enabled", map[string]interface{}{"adapters": names})
	return adapters
}
