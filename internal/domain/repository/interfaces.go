package repository

import (
	"context"
	"time"

	"TrendPulse/internal/domain/models"
)

// HistoricalSource fetches closed candles for bootstrap and reconnect
// reconciliation. An empty (but successful) result is not an error;
// exchange.ErrEmptyHistory distinguishes it from transport failures.
type HistoricalSource interface {
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
}

// LiveStream is the streaming kline subscription. Read returns a candle
// channel and an error channel; a value on the error channel means the
// connection is gone and both channels will be closed.
type LiveStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbol, interval string) error
	Read(ctx context.Context) (<-chan models.Candle, <-chan error)
	Close() error
	IsConnected() bool
}

// CandleArchive stores closed candles and serves historical queries for
// passive consumers. The pipeline runs fully without one configured.
type CandleArchive interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, c *models.Candle) error
	StoreBatch(ctx context.Context, cs []*models.Candle) error
	QueryLatest(ctx context.Context, symbol string, limit int) ([]models.Candle, error)
	QueryRange(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Candle, error)
	Health(ctx context.Context) error
	Close() error
}

// SignalSink fans emitted signals out to external consumers.
type SignalSink interface {
	Publish(ctx context.Context, s *models.TradingSignal) error
	Close() error
}

// Metrics abstracts the pipeline's operational counters.
type Metrics interface {
	RecordMessageSent(sink, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
