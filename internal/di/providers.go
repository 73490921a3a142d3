package di

import (
	"context"
	"fmt"
	"time"

	"AlphaPulse/internal/domain/models"
	"AlphaPulse/internal/domain/repository"
	"AlphaPulse/internal/handler/api"
	"AlphaPulse/internal/providers"
	internalrepo "AlphaPulse/internal/repository"
	"AlphaPulse/internal/resolver"
	"AlphaPulse/internal/scheduler"
	icache "AlphaPulse/internal/service/cache"
	"AlphaPulse/internal/usecase"
	pkgcache "AlphaPulse/pkg/cache"
	pkgch "AlphaPulse/pkg/clickhouse"
	"AlphaPulse/pkg/config"
	xhttp "AlphaPulse/pkg/http"
	pkgkafka "AlphaPulse/pkg/kafka"
	applogger "AlphaPulse/pkg/logger"
	"AlphaPulse/pkg/metrics"
	"AlphaPulse/pkg/server"
)

// ProvideLogCollector keeps the last warnings and errors in memory for the
// diagnostics endpoint.
func ProvideLogCollector() *applogger.Collector {
	return applogger.NewCollector(200)
}

// ProvideLogger builds the structured application logger.
func ProvideLogger(cfg *config.Config, collector *applogger.Collector) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.WithCollector(collector), nil
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient opens ClickHouse and applies the outcome schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stmts := append([]string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", cfg.ClickHouse.Database),
	}, internalrepo.OutcomeSchema...)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates the alerts producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Producer.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.Producer.RequiredAcks),
		pkgkafka.WithBatch(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the events consumer.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideCacheBackend builds the cache tier: memory-only by default, layered
// over Redis when configured.
func ProvideCacheBackend(cfg *config.Config, log *applogger.Logger) pkgcache.Service {
	mem := pkgcache.NewMemoryCache(
		pkgcache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
	)
	if !cfg.Redis.Enabled {
		return mem
	}
	redis, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		log.Warn("redis unavailable, falling back to memory cache", applogger.Error(err))
		return mem
	}
	return pkgcache.NewLayeredCache(redis, pkgcache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize))
}

// ProvideProviderCache wraps the cache tier with per-class TTL policy.
func ProvideProviderCache(backend pkgcache.Service, cfg *config.Config, log *applogger.Logger) repository.ProviderCache {
	return icache.NewProviderCache(backend, cfg.Cache.TTL, log)
}

// ProvideDedupStore opens the durable dedup gate. Failure here is fatal:
// main aborts rather than starting without a working gate.
func ProvideDedupStore(cfg *config.Config, log *applogger.Logger) (repository.DedupStore, error) {
	return internalrepo.NewBadgerDedupStore(cfg.Dedup.Path, log)
}

// ProvideWeightStore opens the versioned weight profile store.
func ProvideWeightStore(cfg *config.Config, log *applogger.Logger) (repository.WeightStore, error) {
	return internalrepo.NewBadgerWeightStore(cfg.Weights.Path, log)
}

// ProvideOutcomeLog creates the ClickHouse outcome log.
func ProvideOutcomeLog(client *pkgch.Client, log *applogger.Logger) repository.OutcomeLog {
	return internalrepo.NewClickHouseOutcomeLog(client, log)
}

// ProvideAlertPublisher creates the Kafka alert publisher.
func ProvideAlertPublisher(producer *pkgkafka.Producer, cfg *config.Config, log *applogger.Logger) repository.AlertPublisher {
	return internalrepo.NewKafkaAlertPublisher(producer, cfg.Kafka.AlertsTopic, log)
}

// ProvideStream creates the realtime trade stream provider. It is always
// constructed; the app only runs its session loop when enabled.
func ProvideStream(cfg *config.Config, log *applogger.Logger) *providers.Stream {
	return providers.NewStream(providers.StreamConfig{
		WebSocketURL:   cfg.Providers.Stream.WebSocketURL,
		APIKey:         cfg.Providers.Stream.APIKey,
		Symbols:        cfg.Providers.Stream.Symbols,
		ReconnectDelay: cfg.Providers.Stream.ReconnectDelay,
		PingInterval:   cfg.Providers.Stream.PingInterval,
		Staleness:      cfg.Providers.Stream.Staleness,
	}, log)
}

// ProvideRegistry binds the configured chains to the full provider set.
func ProvideRegistry(cfg *config.Config, stream *providers.Stream) (*resolver.Registry, error) {
	available := []providers.Provider{
		providers.NewTiingo(cfg.Providers.Tiingo.BaseURL, cfg.Providers.Tiingo.APIKey, cfg.Resolver.ProviderTimeout),
		providers.NewAlphaVantage(cfg.Providers.AlphaVantage.BaseURL, cfg.Providers.AlphaVantage.APIKey, cfg.Resolver.ProviderTimeout),
		providers.NewYahoo(cfg.Providers.Yahoo.BaseURL, cfg.Resolver.ProviderTimeout),
		providers.NewSentimentService(cfg.Providers.Sentiment.BaseURL, cfg.Providers.Sentiment.Timeout),
		stream,
	}
	return resolver.NewRegistry(available, cfg.Resolver.Chains)
}

// ProvideResolver creates the coalescing, breaker-guarded resolver.
func ProvideResolver(cfg *config.Config, registry *resolver.Registry, cache repository.ProviderCache, m repository.Metrics, log *applogger.Logger) *resolver.Resolver {
	return resolver.New(
		resolver.Config{
			PoolSize:        cfg.Resolver.PoolSize,
			ProviderTimeout: cfg.Resolver.ProviderTimeout,
			RateCapacity:    cfg.Resolver.RateLimit.Capacity,
			RateRefill:      cfg.Resolver.RateLimit.RefillPerSec,
		},
		resolver.BreakerConfig{
			Window:         cfg.Resolver.Breaker.Window,
			Cooldown:       cfg.Resolver.Breaker.Cooldown,
			MinCalls:       cfg.Resolver.Breaker.MinCalls,
			MaxFailureRate: cfg.Resolver.Breaker.MaxFailureRate,
		},
		registry, cache, m, log,
	)
}

// ProvideAggregator creates the composite scorer.
func ProvideAggregator(cfg *config.Config, m repository.Metrics) *usecase.Aggregator {
	return usecase.NewAggregator(usecase.AggregatorConfig{
		DefaultWeight:    cfg.Aggregator.DefaultWeight,
		BullishThreshold: cfg.Aggregator.BullishThreshold,
		BearishThreshold: cfg.Aggregator.BearishThreshold,
	}, m)
}

// ProvideOutcomeTracker creates the alert outcome evaluator.
func ProvideOutcomeTracker(cfg *config.Config, outlog repository.OutcomeLog, res *resolver.Resolver, m repository.Metrics, log *applogger.Logger) *usecase.OutcomeTracker {
	intervals := make([]models.Interval, 0, len(cfg.Outcomes.Intervals))
	for _, raw := range cfg.Outcomes.Intervals {
		intervals = append(intervals, models.Interval(raw))
	}
	return usecase.NewOutcomeTracker(usecase.TrackerConfig{
		Intervals:     intervals,
		SampleGrace:   cfg.Outcomes.SampleGrace,
		PriceWeight:   cfg.Outcomes.PriceWeight,
		VolumeWeight:  cfg.Outcomes.VolumeWeight,
		WinThreshold:  cfg.Outcomes.WinThreshold,
		LossThreshold: cfg.Outcomes.LossThreshold,
	}, outlog, res, m, log)
}

// ProvideWeightAdjuster creates the adaptive weight learner.
func ProvideWeightAdjuster(cfg *config.Config, outlog repository.OutcomeLog, store repository.WeightStore, m repository.Metrics, log *applogger.Logger) *usecase.WeightAdjuster {
	return usecase.NewWeightAdjuster(usecase.AdjusterConfig{
		Mode:            cfg.Weights.Mode,
		Lookback:        cfg.Weights.Lookback,
		MinSamples:      cfg.Weights.MinSamples,
		MinWeight:       cfg.Weights.MinWeight,
		MaxWeight:       cfg.Weights.MaxWeight,
		MaxDelta:        cfg.Weights.MaxDelta,
		Sensitivity:     cfg.Weights.Sensitivity,
		BaselineWinRate: cfg.Weights.BaselineWinRate,
		DefaultWeight:   cfg.Aggregator.DefaultWeight,
	}, outlog, store, m, log)
}

// ProvidePipeline assembles the end-to-end event path.
func ProvidePipeline(
	cfg *config.Config,
	dedup repository.DedupStore,
	res *resolver.Resolver,
	aggregator *usecase.Aggregator,
	weights repository.WeightStore,
	publisher repository.AlertPublisher,
	tracker *usecase.OutcomeTracker,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.Pipeline {
	return usecase.NewPipeline(
		usecase.PipelineConfig{AlertThreshold: cfg.Aggregator.AlertThreshold},
		dedup, res, aggregator, weights, publisher, tracker, m, log,
	)
}

// ProvideEventsHandler binds the pipeline to the events topic.
func ProvideEventsHandler(cfg *config.Config, pipeline *usecase.Pipeline, log *applogger.Logger) *usecase.EventsHandler {
	return usecase.NewEventsHandler(cfg.Kafka.EventsTopic, pipeline, log)
}

// ProvideScheduler wires the recurring maintenance jobs.
func ProvideScheduler(
	cfg *config.Config,
	dedup repository.DedupStore,
	cache repository.ProviderCache,
	outlog repository.OutcomeLog,
	tracker *usecase.OutcomeTracker,
	adjuster *usecase.WeightAdjuster,
	log *applogger.Logger,
) (*scheduler.Scheduler, error) {
	s := scheduler.New(scheduler.Config{
		WeightSchedule:   cfg.Weights.Schedule,
		DedupSweep:       cfg.Dedup.SweepSchedule,
		DedupRetention:   cfg.Dedup.Retention,
		CacheSweep:       cfg.Cache.SweepInterval,
		OutcomePoll:      cfg.Outcomes.PollInterval,
		OutcomeRetention: cfg.Outcomes.Retention,
	}, dedup, cache, outlog, tracker, adjuster, log)
	if err := s.Register(); err != nil {
		return nil, err
	}
	return s, nil
}

// ProvideHTTPServer assembles the API surface.
func ProvideHTTPServer(
	cfg *config.Config,
	log *applogger.Logger,
	collector *applogger.Collector,
	client *pkgch.Client,
	res *resolver.Resolver,
	tracker *usecase.OutcomeTracker,
	adjuster *usecase.WeightAdjuster,
	pipeline *usecase.Pipeline,
) *xhttp.Server {
	handlers := []xhttp.Handler{
		api.NewOutcomesEchoHandler(log, tracker),
		api.NewWeightsEchoHandler(log, adjuster),
		api.NewScoresEchoHandler(log, pipeline),
		api.NewSystemEchoHandler(log, collector, client, res),
	}
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Path != "" {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	}
	return xhttp.NewServer(handlers, opts...)
}

// ProvideApp bundles the full application lifecycle.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	consumer *pkgkafka.Consumer,
	handler *usecase.EventsHandler,
	httpServer *xhttp.Server,
	sched *scheduler.Scheduler,
	stream *providers.Stream,
	dedup repository.DedupStore,
	weights repository.WeightStore,
	publisher repository.AlertPublisher,
	outlog repository.OutcomeLog,
	client *pkgch.Client,
	cache pkgcache.Service,
) *server.App {
	return server.New(cfg, log, consumer, handler, httpServer, sched, stream,
		server.Closers{
			Dedup:      dedup,
			Weights:    weights,
			Publisher:  publisher,
			OutcomeLog: outlog,
			ClickHouse: client,
			Cache:      cache,
		},
	)
}
