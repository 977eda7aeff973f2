package usecase

import (
	"context"
	"fmt"
	"time"

	"TrendPulse/internal/bus"
	"TrendPulse/internal/domain/models"
	drepo "TrendPulse/internal/domain/repository"
	mid "TrendPulse/internal/middleware"
	applogger "TrendPulse/pkg/logger"
)

// ArchiveRouter routes pipeline output to external backends: closed
// candles to the ClickHouse archive, signals to the Kafka sink. Either
// backend may be nil; the pipeline runs fully without them.
type ArchiveRouter struct {
	store   drepo.CandleArchive
	sink    drepo.SignalSink
	metrics drepo.Metrics
	symbol  string
}

// NewArchiveRouter creates a router for the given backends.
func NewArchiveRouter(store drepo.CandleArchive, sink drepo.SignalSink, metrics drepo.Metrics, symbol string) *ArchiveRouter {
	return &ArchiveRouter{store: store, sink: sink, metrics: metrics, symbol: symbol}
}

// Process stores a single closed candle.
func (r *ArchiveRouter) Process(ctx context.Context, c *models.Candle) error {
	if c == nil {
		return fmt.Errorf("candle is nil")
	}
	if r.store == nil {
		return nil
	}
	start := time.Now()
	if err := r.store.Store(ctx, c); err != nil {
		r.metrics.RecordError("archive_store")
		return fmt.Errorf("store candle: %w", err)
	}
	r.metrics.RecordMessageSent("clickhouse", r.symbol)
	r.metrics.RecordLatency("archive_store", time.Since(start).Seconds())
	return nil
}

// ProcessBatch stores multiple candles in one round-trip.
func (r *ArchiveRouter) ProcessBatch(ctx context.Context, cs []*models.Candle) error {
	if len(cs) == 0 || r.store == nil {
		return nil
	}
	start := time.Now()
	if err := r.store.StoreBatch(ctx, cs); err != nil {
		r.metrics.RecordError("archive_store_batch")
		return fmt.Errorf("store batch: %w", err)
	}
	for range cs {
		r.metrics.RecordMessageSent("clickhouse", r.symbol)
	}
	r.metrics.RecordLatency("archive_store_batch", time.Since(start).Seconds())
	return nil
}

// PublishSignal forwards one signal to the sink.
func (r *ArchiveRouter) PublishSignal(ctx context.Context, s *models.TradingSignal) error {
	if s == nil {
		return fmt.Errorf("signal is nil")
	}
	if r.sink == nil {
		return nil
	}
	start := time.Now()
	if err := r.sink.Publish(ctx, s); err != nil {
		r.metrics.RecordError("signal_publish")
		return fmt.Errorf("publish signal: %w", err)
	}
	r.metrics.RecordMessageSent("kafka", r.symbol)
	r.metrics.RecordLatency("signal_publish", time.Since(start).Seconds())
	return nil
}

// QueryLatest serves archived candles for the HTTP layer.
func (r *ArchiveRouter) QueryLatest(ctx context.Context, symbol string, limit int) ([]models.Candle, error) {
	if r.store == nil {
		return nil, fmt.Errorf("archive not configured")
	}
	return r.store.QueryLatest(ctx, symbol, limit)
}

// QueryRange serves archived candles within an aligned time range.
func (r *ArchiveRouter) QueryRange(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Candle, error) {
	if r.store == nil {
		return nil, fmt.Errorf("archive not configured")
	}
	return r.store.QueryRange(ctx, symbol, from, to, limit)
}

// Enabled reports whether an archive backend is configured.
func (r *ArchiveRouter) Enabled() bool { return r.store != nil }

// Close closes the underlying backends.
func (r *ArchiveRouter) Close() {
	if r.store != nil {
		_ = r.store.Close()
	}
	if r.sink != nil {
		_ = r.sink.Close()
	}
}

// ArchiveTap bridges the bus and the archive router: closed candles go
// through the buffering middleware, signals are published on their own
// short-lived goroutine so bus dispatch never blocks on Kafka.
type ArchiveTap struct {
	pipe   *mid.ArchivePipeline
	router *ArchiveRouter
	log    *applogger.Logger

	pubTimeout time.Duration
	unsubs     []func()
}

// NewArchiveTap registers the tap on the bus.
func NewArchiveTap(b *bus.Bus, pipe *mid.ArchivePipeline, router *ArchiveRouter, log *applogger.Logger) *ArchiveTap {
	t := &ArchiveTap{pipe: pipe, router: router, log: log, pubTimeout: 10 * time.Second}
	t.unsubs = append(t.unsubs,
		b.Register(bus.KindNewClosedCandle, t.onClosedCandle),
		b.Register(bus.KindNewSignal, t.onSignal),
	)
	return t
}

// Start launches the buffering middleware.
func (t *ArchiveTap) Start(ctx context.Context) {
	if t.pipe != nil {
		t.pipe.Start(ctx)
	}
}

func (t *ArchiveTap) onClosedCandle(msg bus.Message) {
	m, ok := msg.(bus.NewClosedCandle)
	if !ok || t.pipe == nil || !t.router.Enabled() {
		return
	}
	c := m.Candle
	if err := t.pipe.Enqueue(&c); err != nil && t.log != nil {
		t.log.Warn("candle archive enqueue failed", applogger.Error(err))
	}
}

func (t *ArchiveTap) onSignal(msg bus.Message) {
	m, ok := msg.(bus.NewSignal)
	if !ok {
		return
	}
	s := m.Signal
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.pubTimeout)
		defer cancel()
		if err := t.router.PublishSignal(ctx, &s); err != nil && t.log != nil {
			t.log.Warn("signal publish failed", applogger.Error(err))
		}
	}()
}

// Close detaches the tap and stops the middleware.
func (t *ArchiveTap) Close() {
	for _, u := range t.unsubs {
		u()
	}
	t.unsubs = nil
	if t.pipe != nil {
		t.pipe.Stop()
	}
}
