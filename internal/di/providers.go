package di

import (
	"context"
	"fmt"
	"time"

	"TrendPulse/internal/bus"
	drepo "TrendPulse/internal/domain/repository"
	"TrendPulse/internal/feed"
	"TrendPulse/internal/handler/api"
	"TrendPulse/internal/indicator"
	mid "TrendPulse/internal/middleware"
	"TrendPulse/internal/regime"
	internalrepo "TrendPulse/internal/repository"
	"TrendPulse/internal/risk"
	icache "TrendPulse/internal/service/cache"
	"TrendPulse/internal/service/exchange"
	"TrendPulse/internal/signal"
	"TrendPulse/internal/usecase"
	pkgcache "TrendPulse/pkg/cache"
	pkgch "TrendPulse/pkg/clickhouse"
	"TrendPulse/pkg/config"
	xhttp "TrendPulse/pkg/http"
	pkgkafka "TrendPulse/pkg/kafka"
	applogger "TrendPulse/pkg/logger"
	"TrendPulse/pkg/metrics"
	"TrendPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	lc := &applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if lc.Level == "" {
		lc.Level = "info"
	}
	if lc.Format == "" {
		lc.Format = "console"
	}
	if lc.Output == "" {
		lc.Output = "stdout"
	}
	return applogger.New(lc)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideBus creates the in-process message bus.
func ProvideBus(log *applogger.Logger) *bus.Bus {
	return bus.New(log)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when the
// archive is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	ch := cfg.Archive.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout, ch.WriteTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	table := archiveTable(cfg)
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + ch.Database,
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (ts DateTime64(3), symbol String, open Float64, high Float64, low Float64, close Float64, volume Float64) ENGINE=ReplacingMergeTree ORDER BY (symbol, ts)", table),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

func archiveTable(cfg *config.Config) string {
	table := cfg.Archive.Table
	if table == "" {
		table = "candles_1m"
	}
	return cfg.Archive.ClickHouse.Database + "." + table
}

// ProvideKafkaProducer creates a Kafka producer, or nil when publishing
// is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Publish.Enabled {
		return nil, nil
	}
	k := cfg.Publish.Kafka
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithBatchSize(k.Producer.BatchSize),
		pkgkafka.WithBatchBytes(k.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(k.Producer.Linger),
		pkgkafka.WithTimeouts(k.Producer.WriteTimeout, k.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(k.Producer.MaxAttempts),
		pkgkafka.WithAsync(k.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideCandleArchive creates the ClickHouse archive repository.
func ProvideCandleArchive(chClient *pkgch.Client, cfg *config.Config) drepo.CandleArchive {
	if chClient == nil {
		return nil
	}
	return internalrepo.NewClickHouseCandleArchive(chClient.DB(), archiveTable(cfg), cfg.Exchange.Symbol)
}

// ProvideSignalSink creates the Kafka signal publisher.
func ProvideSignalSink(producer *pkgkafka.Producer, cfg *config.Config) drepo.SignalSink {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Publish.Kafka.Topic, cfg.Exchange.Symbol)
}

// ProvideHistoricalSource creates the exchange REST client.
func ProvideHistoricalSource(cfg *config.Config) drepo.HistoricalSource {
	timeout := cfg.Exchange.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return exchange.NewRESTClient(cfg.Exchange.RESTURL, timeout)
}

// ProvideLiveStream creates the exchange WebSocket client.
func ProvideLiveStream(cfg *config.Config, log *applogger.Logger) drepo.LiveStream {
	return exchange.NewWSClient(cfg.Exchange.WebSocketURL, cfg.Exchange.PingInterval, log)
}

// ProvidePipeline creates the analytic chain on the bus.
func ProvidePipeline(b *bus.Bus, m drepo.Metrics, log *applogger.Logger, cfg *config.Config) *usecase.Pipeline {
	return usecase.NewPipeline(b, m, log,
		usecase.PipelineConfig{
			Symbol:         cfg.Exchange.Symbol,
			AccountBalance: cfg.Account.Balance,
		},
		regime.Config{
			ADXPeriod:      cfg.Regime.ADXPeriod,
			RSIPeriod:      cfg.Regime.RSIPeriod,
			EMAPeriod:      cfg.Regime.EMAPeriod,
			VolumeLookback: cfg.Regime.VolumeLookback,
		},
		indicator.Config{
			EMAFastPeriod:   cfg.Indicators.EMAFastPeriod,
			EMASlowPeriod:   cfg.Indicators.EMASlowPeriod,
			RSIPeriod:       cfg.Indicators.RSIPeriod,
			BollingerPeriod: cfg.Indicators.BollingerPeriod,
			BollingerK:      cfg.Indicators.BollingerK,
			ATRPeriod:       cfg.Indicators.ATRPeriod,
		},
		signal.Config{
			MinScore:         cfg.Signal.MinScore,
			VolumeSpikeRatio: cfg.Signal.VolumeSpikeRatio,
			BandTouchPercent: cfg.Signal.BandTouchPercent,
		},
		risk.Config{
			BaseRiskPercent:     cfg.Risk.BaseRiskPercent,
			ATRPeriod:           cfg.Indicators.ATRPeriod,
			ATRStopMultiple:     cfg.Risk.ATRStopMultiple,
			MinRewardRisk:       cfg.Risk.MinRewardRisk,
			FallbackStopPercent: cfg.Risk.FallbackStopPercent,
			MaxPositionFraction: cfg.Risk.MaxPositionFraction,
		},
	)
}

// ProvideFeed creates the market data feed.
func ProvideFeed(b *bus.Bus, hist drepo.HistoricalSource, stream drepo.LiveStream, m drepo.Metrics, log *applogger.Logger, cfg *config.Config) *feed.Feed {
	return feed.New(b, hist, stream, m, log, feed.Config{
		Symbol:               cfg.Exchange.Symbol,
		Interval:             cfg.Exchange.Interval,
		HistoryLimit:         cfg.Feed.HistoryLimit,
		BufferCap:            cfg.Feed.BufferCap,
		FetchTimeout:         cfg.Exchange.FetchTimeout,
		ReconnectBase:        cfg.Feed.ReconnectBase,
		ReconnectMax:         cfg.Feed.ReconnectMax,
		MaxReconnectAttempts: cfg.Feed.MaxReconnectAttempts,
	})
}

// ProvideStateView creates the read-side projection of the bus.
func ProvideStateView(b *bus.Bus, cfg *config.Config) *usecase.StateView {
	return usecase.NewStateView(b, cfg.View.CandleHistory, cfg.View.SignalHistory)
}

// ProvideArchiveRouter creates the backend router.
func ProvideArchiveRouter(store drepo.CandleArchive, sink drepo.SignalSink, m drepo.Metrics, cfg *config.Config) *usecase.ArchiveRouter {
	return usecase.NewArchiveRouter(store, sink, m, cfg.Exchange.Symbol)
}

// ProvideArchiveTap bridges the bus to the router through the buffering
// middleware.
func ProvideArchiveTap(b *bus.Bus, router *usecase.ArchiveRouter, m drepo.Metrics, log *applogger.Logger, cfg *config.Config) *usecase.ArchiveTap {
	opts := []mid.PipelineOption{}
	if cfg.Archive.BufferSize > 0 {
		opts = append(opts, mid.WithBufferSize(cfg.Archive.BufferSize))
	}
	pipe := mid.NewArchivePipeline(router, m, opts...)
	return usecase.NewArchiveTap(b, pipe, router, log)
}

// ProvideBytesCache picks a layered memory+Redis cache when Redis is
// configured, a plain in-memory cache otherwise.
func ProvideBytesCache(cfg *config.Config) (icache.BytesCache, error) {
	if cfg.Cache.Redis.Enabled {
		rc, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(cfg.Cache.Redis.Host),
			pkgcache.WithRedisPort(cfg.Cache.Redis.Port),
			pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
			pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return icache.NewServiceBytes(pkgcache.NewLayeredCache(rc)), nil
	}
	return icache.NewServiceBytes(pkgcache.NewMemoryCache()), nil
}

// ProvideHTTPHandler creates the Echo route handler.
func ProvideHTTPHandler(log *applogger.Logger, view *usecase.StateView, router *usecase.ArchiveRouter, cache icache.BytesCache, cfg *config.Config) xhttp.Handler {
	h := api.NewPipelineEchoHandler(log, view, router, cfg.Exchange.Symbol, cfg.Exchange.Interval)
	h.SetCache(cache)
	return h
}

// kafkaLogPublisher lets the logger's aggregation collector flush error
// summaries onto the signal broker.
type kafkaLogPublisher struct {
	p *pkgkafka.Producer
}

func (k kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return k.p.Publish(ctx, topic, nil, payload)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	b *bus.Bus,
	f *feed.Feed,
	pipeline *usecase.Pipeline,
	view *usecase.StateView,
	tap *usecase.ArchiveTap,
	router *usecase.ArchiveRouter,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	handler xhttp.Handler,
) *server.App {
	if producer != nil && cfg.Publish.Kafka.Topic != "" {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Publish.Kafka.Topic + ".logs",
			Publisher:      kafkaLogPublisher{p: producer},
		})
	}
	return server.New(cfg, log, b, f, pipeline, view, tap, router, chClient, handler)
}
