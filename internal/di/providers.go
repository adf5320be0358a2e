package di

import (
	"context"
	"fmt"
	"time"

	"AlphaBot/internal/domain/repository"
	"AlphaBot/internal/handler/api"
	internalrepo "AlphaBot/internal/repository"
	"AlphaBot/internal/service/lock"
	"AlphaBot/internal/service/notify"
	"AlphaBot/internal/service/ratelimit"
	"AlphaBot/internal/services/prediction"
	"AlphaBot/internal/usecase"
	"AlphaBot/pkg/cache"
	pkgch "AlphaBot/pkg/clickhouse"
	"AlphaBot/pkg/config"
	xhttp "AlphaBot/pkg/http"
	pkgkafka "AlphaBot/pkg/kafka"
	applogger "AlphaBot/pkg/logger"
	"AlphaBot/pkg/metrics"
	"AlphaBot/pkg/server"
)

// Resources collects everything that needs closing so ProvideApp can register it.
type Resources struct {
	Cache     cache.Service
	SignalLog repository.SignalLog
	CH        *pkgch.Client
	Producer  *pkgkafka.Producer
	Hub       *notify.Hub
}

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("service", cfg.Service), applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache builds the cache service backing bot state.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if cfg.Storage.Backend == "memory" {
		// bot state must never be evicted, so no size bound here
		return cache.NewMemoryCache(), nil
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.Timeout),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	if cfg.Storage.Backend == "layered" {
		return cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(cfg.Storage.MemoryMaxSize),
			cache.WithLayeredMemoryTTL(cfg.Storage.MemoryTTL),
		), nil
	}
	return rc, nil
}

// ProvideBotStore creates the bot state repository.
func ProvideBotStore(c cache.Service) repository.BotStore {
	return internalrepo.NewCacheBotStore(c)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when the signal log is in memory.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.SignalLog.Backend != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithConnectRetry(cfg.ClickHouse.ConnectRetries, cfg.ClickHouse.ConnectBackoff),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSignalLog creates the history log and makes sure its schema exists.
func ProvideSignalLog(cfg *config.Config, ch *pkgch.Client) (repository.SignalLog, error) {
	if ch == nil {
		return internalrepo.NewMemorySignalLog(), nil
	}

	log := internalrepo.NewClickHouseSignalLog(ch.DB(), cfg.ClickHouse.Database+"."+cfg.SignalLog.Table)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ch.InitSchema(ctx, []string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database}); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	if err := log.Init(ctx); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("signal log schema: %w", err)
	}
	return log, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAutoCreateTopics(cfg.Kafka.AutoCreateTopics),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideHub creates the in-process event hub feeding websocket streams.
func ProvideHub(cfg *config.Config) *notify.Hub {
	return notify.NewHub(cfg.Events.StreamBuffer)
}

// ProvideEventPublisher fans events out to the hub and, when enabled, the events topic.
func ProvideEventPublisher(cfg *config.Config, hub *notify.Hub, producer *pkgkafka.Producer) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NewFanoutPublisher(hub)
	}
	return internalrepo.NewFanoutPublisher(hub, internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topics.Events))
}

// ProvideLocker picks the per-bot lock.
func ProvideLocker(cfg *config.Config, c cache.Service, log *applogger.Logger) repository.Locker {
	if cfg.Lock.Mode == "redis" {
		return lock.NewCacheLocker(c, cfg.Lock.TTL, cfg.Lock.Retry, log)
	}
	return lock.NewKeyedMutex()
}

// ProvideMachine builds the prediction state machine from the configured policies.
func ProvideMachine(cfg *config.Config) (*prediction.Machine, error) {
	ref, err := prediction.ParseReferencePolicy(cfg.Policy.Reference)
	if err != nil {
		return nil, err
	}
	onMismatch, err := prediction.ParseMismatchPolicy(cfg.Policy.OnMismatch)
	if err != nil {
		return nil, err
	}
	agg := prediction.NewAggregator(prediction.WithHoldBand(cfg.Policy.HoldBandBps))
	return prediction.NewMachine(agg, prediction.ResolutionPolicy{Reference: ref, OnMismatch: onMismatch}), nil
}

// ProvideDispatcher creates the bot command dispatcher.
func ProvideDispatcher(
	cfg *config.Config,
	store repository.BotStore,
	signals repository.SignalLog,
	events repository.EventPublisher,
	locker repository.Locker,
	m repository.Metrics,
	machine *prediction.Machine,
	log *applogger.Logger,
) *usecase.BotDispatcher {
	return usecase.NewBotDispatcher(store, signals, events, locker, m, machine, log,
		usecase.WithAutoCreate(cfg.Bots.AutoCreate),
	)
}

// ProvideLimiter creates the per-bot write limiter; zero capacity disables it.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

// ProvideHTTPServer registers the bot API on an Echo server.
func ProvideHTTPServer(
	cfg *config.Config,
	log *applogger.Logger,
	dispatcher *usecase.BotDispatcher,
	limiter *ratelimit.Limiter,
	hub *notify.Hub,
) *xhttp.Server {
	var opts []api.HandlerOption
	if cfg.Server.CORS {
		opts = append(opts, api.WithStreamOrigins(cfg.Server.AllowOrigins))
	}
	h := api.NewBotsEchoHandler(log, dispatcher, limiter, hub, opts...)
	return xhttp.NewServer([]xhttp.Handler{h},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithAllowOrigins(cfg.Server.AllowOrigins),
		xhttp.WithLogger(log),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
	)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.AutoOffsetReset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Topics.DLQ),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TraceHook())
	return consumer, nil
}

// ProvideKafkaCommandsHandler handles the commands topic.
func ProvideKafkaCommandsHandler(
	cfg *config.Config,
	dispatcher *usecase.BotDispatcher,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.KafkaCommandsHandler {
	return usecase.NewKafkaCommandsHandler(cfg.Kafka.Topics.Commands, dispatcher, m, log)
}

// ProvideResources groups closable infrastructure.
func ProvideResources(
	c cache.Service,
	signals repository.SignalLog,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
	hub *notify.Hub,
) *Resources {
	return &Resources{Cache: c, SignalLog: signals, CH: ch, Producer: producer, Hub: hub}
}

// ProvideApp creates the application server and attaches the error-log collector.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	dispatcher *usecase.BotDispatcher,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaCommandsHandler,
	limiter *ratelimit.Limiter,
	res *Resources,
) *server.App {
	if cfg.Logging.Collector.Enabled && res.Producer != nil {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collector.Interval,
			CountThreshold: cfg.Logging.Collector.Threshold,
			Topic:          cfg.Kafka.Topics.Logs,
			Publisher:      res.Producer,
			Service:        cfg.Service,
		})
	}

	app := server.New(cfg, log, dispatcher, httpServer, consumer, kh, limiter)

	// streams first so clients see a close frame, the collector before the producer it
	// publishes through
	app.OnClose("hub", res.Hub.Close)
	app.OnClose("log collector", func() error { log.RemoveCollector(); return nil })
	if res.Producer != nil {
		app.OnClose("kafka producer", res.Producer.Close)
	}
	app.OnClose("signal log", res.SignalLog.Close)
	if res.CH != nil {
		app.OnClose("clickhouse", res.CH.Close)
	}
	app.OnClose("cache", res.Cache.Close)
	return app
}
