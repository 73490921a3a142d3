package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"AlphaPulse/internal/domain/repository"
	"AlphaPulse/internal/providers"
	"AlphaPulse/internal/scheduler"
	"AlphaPulse/internal/usecase"
	pkgcache "AlphaPulse/pkg/cache"
	pkgch "AlphaPulse/pkg/clickhouse"
	"AlphaPulse/pkg/config"
	xhttp "AlphaPulse/pkg/http"
	pkgkafka "AlphaPulse/pkg/kafka"
	applogger "AlphaPulse/pkg/logger"
)

// Closers groups the resources the app owns and must release at shutdown.
type Closers struct {
	Dedup      repository.DedupStore
	Weights    repository.WeightStore
	Publisher  repository.AlertPublisher
	OutcomeLog repository.OutcomeLog
	ClickHouse *pkgch.Client
	Cache      pkgcache.Service
}

// App is the full engine lifecycle: Kafka consumer, HTTP surface, scheduler,
// and the optional realtime stream, started together and shut down in
// reverse order.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	consumer   *pkgkafka.Consumer
	handler    *usecase.EventsHandler
	httpServer *xhttp.Server
	scheduler  *scheduler.Scheduler
	stream     *providers.Stream
	closers    Closers

	streamCancel context.CancelFunc
}

// New creates the App. Dependencies arrive fully constructed from DI.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	consumer *pkgkafka.Consumer,
	handler *usecase.EventsHandler,
	httpServer *xhttp.Server,
	sched *scheduler.Scheduler,
	stream *providers.Stream,
	closers Closers,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		consumer:   consumer,
		handler:    handler,
		httpServer: httpServer,
		scheduler:  sched,
		stream:     stream,
		closers:    closers,
	}
}

// Run starts every component and blocks until an interrupt arrives.
func (a *App) Run() error {
	a.consumer.RegisterHandler(a.handler)
	go func() {
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
		}
	}()
	a.log.Info("kafka consumer started", applogger.String("topic", a.handler.Topic()))

	if a.cfg.Providers.Stream.Enabled {
		var streamCtx context.Context
		streamCtx, a.streamCancel = context.WithCancel(context.Background())
		go a.stream.Run(streamCtx)
		a.log.Info("stream provider started",
			applogger.Strings("symbols", a.cfg.Providers.Stream.Symbols))
	}

	a.scheduler.Start()

	if err := a.httpServer.Start(); err != nil {
		return err
	}
	a.log.Info("engine up",
		applogger.String("environment", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	// stop intake first so nothing new enters the pipeline
	if err := a.consumer.Stop(ctx); err != nil {
		a.log.Warn("kafka consumer stop", applogger.Error(err))
	}
	if a.streamCancel != nil {
		a.streamCancel()
		_ = a.stream.Close()
	}

	a.scheduler.Stop()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Warn("http shutdown", applogger.Error(err))
	}

	if err := a.closers.Publisher.Close(); err != nil {
		a.log.Warn("alert publisher close", applogger.Error(err))
	}
	if err := a.closers.OutcomeLog.Close(); err != nil {
		a.log.Warn("outcome log close", applogger.Error(err))
	}
	if err := a.closers.ClickHouse.Close(); err != nil {
		a.log.Warn("clickhouse close", applogger.Error(err))
	}
	if err := a.closers.Cache.Close(); err != nil {
		a.log.Warn("cache close", applogger.Error(err))
	}
	if err := a.closers.Weights.Close(); err != nil {
		a.log.Warn("weight store close", applogger.Error(err))
	}
	if err := a.closers.Dedup.Close(); err != nil {
		a.log.Warn("dedup store close", applogger.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}
