package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"AlphaBot/internal/service/ratelimit"
	"AlphaBot/internal/usecase"
	"AlphaBot/pkg/config"
	xhttp "AlphaBot/pkg/http"
	pkgkafka "AlphaBot/pkg/kafka"
	applogger "AlphaBot/pkg/logger"
)

// closer is a resource released at shutdown, in registration order.
type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	dispatcher *usecase.BotDispatcher
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	commands   pkgkafka.MessageHandler
	limiter    *ratelimit.Limiter
	closers    []closer
}

// New creates a new App instance with all dependencies. consumer may be nil when
// Kafka is disabled.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	dispatcher *usecase.BotDispatcher,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	commands pkgkafka.MessageHandler,
	limiter *ratelimit.Limiter,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		dispatcher: dispatcher,
		httpServer: httpServer,
		consumer:   consumer,
		commands:   commands,
		limiter:    limiter,
	}
}

// OnClose registers a resource to release after the servers have stopped.
func (a *App) OnClose(name string, fn func() error) {
	if fn != nil {
		a.closers = append(a.closers, closer{name: name, fn: fn})
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts everything and blocks until ctx is done, then shuts down.
func (a *App) RunContext(ctx context.Context) error {
	if len(a.cfg.Bots.Preload) > 0 {
		preloadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := a.dispatcher.Preload(preloadCtx, a.cfg.Bots.Preload)
		cancel()
		if err != nil {
			a.log.Error("bot preload failed", applogger.Error(err))
			a.close()
			return err
		}
		a.log.Info("bots preloaded", applogger.Strings("bots", a.cfg.Bots.Preload))
	}

	if a.consumer != nil && a.commands != nil {
		a.consumer.RegisterHandler(a.commands)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			a.close()
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.commands.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return a.shutdown()
	}
	a.log.Info("http server started",
		applogger.String("host", a.cfg.Server.Host),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("storage", a.cfg.Storage.Backend),
		applogger.String("signal_log", a.cfg.SignalLog.Backend),
		applogger.String("lock", a.cfg.Lock.Mode),
	)

	if a.limiter.Enabled() {
		go a.sweepLimiter(ctx)
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.RateLimit.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.limiter.Sweep(a.cfg.RateLimit.IdleAfter); n > 0 {
				a.log.Debug("rate limiter swept", applogger.Int("buckets", n))
			}
		}
	}
}

// shutdown stops intake first (HTTP, then Kafka) so no command is half applied, then
// releases the resources.
func (a *App) shutdown() error {
	a.log.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		firstErr = err
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	a.close()
	a.log.Info("shutdown complete")
	return firstErr
}

func (a *App) close() {
	for _, c := range a.closers {
		if err := c.fn(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}
	a.closers = nil
}
