package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"TrendPulse/internal/bus"
	"TrendPulse/internal/domain/models"
	drepo "TrendPulse/internal/domain/repository"
	applogger "TrendPulse/pkg/logger"
	"TrendPulse/pkg/ring"
)

const component = "market-data-feed"

// ErrRetryBudgetExhausted is surfaced as a terminal error message once the
// reconnect attempt cap is reached. The pipeline stays alive but silent
// until an external trigger restarts initialization.
var ErrRetryBudgetExhausted = errors.New("feed: reconnect retry budget exhausted")

// State is the feed's connectivity state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// Config holds the feed parameters.
type Config struct {
	Symbol               string
	Interval             string
	HistoryLimit         int           // candles fetched at bootstrap/reconcile
	BufferCap            int           // bounded in-memory candle buffer
	FetchTimeout         time.Duration // historical fetch fails, not hangs
	ReconnectBase        time.Duration
	ReconnectMax         time.Duration
	MaxReconnectAttempts int
}

func (c *Config) applyDefaults() {
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 100
	}
	if c.BufferCap <= 0 {
		c.BufferCap = 200
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = time.Second
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 30 * time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 10
	}
}

// Feed maintains a bounded candle buffer fed by a one-shot historical
// fetch and a live streaming subscription, reconnecting with exponential
// backoff. All buffer mutation happens on the feed's own goroutine, so the
// rolling history needs no locking.
type Feed struct {
	b       *bus.Bus
	hist    drepo.HistoricalSource
	stream  drepo.LiveStream
	metrics drepo.Metrics
	log     *applogger.Logger
	cfg     Config

	buf            *ring.Buffer[models.Candle]
	lastClosedTime int64

	mu    sync.Mutex
	state State

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// wait blocks for a backoff delay; replaced in tests to observe the
	// scheduled delays without sleeping.
	wait func(ctx context.Context, d time.Duration) bool
}

// New creates a feed. It does not connect until Start.
func New(b *bus.Bus, hist drepo.HistoricalSource, stream drepo.LiveStream, metrics drepo.Metrics, log *applogger.Logger, cfg Config) *Feed {
	cfg.applyDefaults()
	f := &Feed{
		b:       b,
		hist:    hist,
		stream:  stream,
		metrics: metrics,
		log:     log,
		cfg:     cfg,
		buf:     ring.New[models.Candle](cfg.BufferCap),
		state:   StateDisconnected,
	}
	f.wait = func(ctx context.Context, d time.Duration) bool {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
			return true
		}
	}
	return f
}

// Start launches the feed loop. It returns immediately; connectivity is
// reported through CONNECTION_STATUS messages.
func (f *Feed) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.wg.Add(1)
	go f.run(runCtx)
	return nil
}

// Shutdown cancels any pending reconnect timer, closes the live
// subscription and waits for the feed goroutine to drain.
func (f *Feed) Shutdown(ctx context.Context) error {
	if f.cancel != nil {
		f.cancel()
	}
	err := f.stream.Close()
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return err
	}
}

// State returns the current connectivity state.
func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Candles returns a copy of the buffered candles, oldest first.
func (f *Feed) Candles() []models.Candle { return f.buf.Values() }

func (f *Feed) run(ctx context.Context) {
	defer f.wg.Done()

	attempt := 0
	reconnect := false
	for {
		if ctx.Err() != nil {
			f.setState(StateDisconnected)
			return
		}
		healthy, err := f.session(ctx, reconnect)
		if ctx.Err() != nil {
			f.setState(StateDisconnected)
			return
		}
		reconnect = true
		if healthy {
			// A session that actually delivered data resets the
			// consecutive-failure budget; merely connecting does not.
			attempt = 0
		}
		attempt++
		f.recordError("stream")
		if attempt > f.cfg.MaxReconnectAttempts {
			if f.log != nil {
				f.log.Error("reconnect budget exhausted", applogger.Error(err),
					applogger.Int("attempts", f.cfg.MaxReconnectAttempts))
			}
			f.setState(StateDisconnected)
			f.publishStatus(false, "offline")
			f.b.Send(bus.TerminalError{
				Header: bus.Header{From: component, Time: time.Now()},
				Err:    fmt.Sprintf("%v: %v", ErrRetryBudgetExhausted, err),
			})
			return
		}
		delay := f.backoffDelay(attempt)
		f.setState(StateReconnecting)
		f.publishStatus(false, fmt.Sprintf("reconnecting in %s (attempt %d/%d)", delay, attempt, f.cfg.MaxReconnectAttempts))
		if f.log != nil {
			f.log.Warn("stream error, scheduling reconnect", applogger.Error(err),
				applogger.Duration("delay", delay), applogger.Int("attempt", attempt))
		}
		if !f.wait(ctx, delay) {
			f.setState(StateDisconnected)
			return
		}
	}
}

// session runs one connect/consume cycle. It reports whether the session
// was healthy (received at least one live update) along with the error
// that ended it. A historical-fetch failure takes the same retry path as a
// socket error.
func (f *Feed) session(ctx context.Context, reconnect bool) (bool, error) {
	f.setState(StateConnecting)
	f.publishStatus(false, "connecting")

	if err := f.reconcile(ctx); err != nil {
		return false, err
	}
	if err := f.stream.Connect(ctx); err != nil {
		return false, err
	}
	if err := f.stream.Subscribe(ctx, f.cfg.Symbol, f.cfg.Interval); err != nil {
		_ = f.stream.Close()
		return false, err
	}
	f.setState(StateConnected)
	if f.buf.Len() == 0 {
		f.publishStatus(true, "connected; warming up")
	} else if reconnect {
		f.publishStatus(true, "reconnected")
	} else {
		f.publishStatus(true, "connected")
	}

	candles, errs := f.stream.Read(ctx)
	healthy := false
	for {
		select {
		case <-ctx.Done():
			_ = f.stream.Close()
			return healthy, ctx.Err()
		case err, ok := <-errs:
			_ = f.stream.Close()
			if !ok || err == nil {
				return healthy, fmt.Errorf("stream closed")
			}
			return healthy, err
		case c, ok := <-candles:
			if !ok {
				_ = f.stream.Close()
				return healthy, fmt.Errorf("stream closed")
			}
			healthy = true
			f.handleCandle(c)
		}
	}
}

// reconcile performs the bounded historical fetch and publishes an
// "initial candles" full-state replace. A payload older than the newest
// buffered closed candle is stale (a live stream raced past it) and is
// dropped rather than rewinding history.
func (f *Feed) reconcile(ctx context.Context) error {
	fctx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	batch, err := f.hist.FetchCandles(fctx, f.cfg.Symbol, f.cfg.Interval, f.cfg.HistoryLimit)
	if err != nil {
		f.recordError("historical_fetch")
		return fmt.Errorf("historical fetch: %w", err)
	}

	clean := make([]models.Candle, 0, len(batch))
	var prev int64
	for _, c := range batch {
		if !c.Valid() || c.Time <= prev {
			f.recordError("malformed_candle")
			if f.log != nil {
				f.log.Warn("malformed historical candle dropped", applogger.Int64("time", c.Time))
			}
			continue
		}
		prev = c.Time
		clean = append(clean, c)
	}
	if len(clean) == 0 {
		return nil
	}
	if f.lastClosedTime > 0 && clean[len(clean)-1].Time < f.lastClosedTime {
		if f.log != nil {
			f.log.Warn("stale historical payload dropped",
				applogger.Int64("payload_newest", clean[len(clean)-1].Time),
				applogger.Int64("buffer_newest", f.lastClosedTime))
		}
		return nil
	}

	f.buf.Reset()
	for _, c := range clean {
		f.buf.Push(c)
		if c.Closed {
			f.lastClosedTime = c.Time
		}
	}
	f.b.Send(bus.InitialCandles{
		Header:  bus.Header{From: component, Time: time.Now()},
		Candles: clean,
	})
	if f.log != nil {
		f.log.Info("initial candles published", applogger.Int("count", len(clean)))
	}
	return nil
}

// handleCandle validates one inbound update and applies it to the buffer.
// Equal-time updates replace in place, which keeps candle times unique and
// lets an in-progress bar be finalized without growing the buffer.
func (f *Feed) handleCandle(c models.Candle) {
	if !c.Valid() {
		f.recordError("malformed_candle")
		if f.log != nil {
			f.log.Warn("malformed candle rejected", applogger.Int64("time", c.Time))
		}
		return
	}
	last, ok := f.buf.Last()
	if ok && c.Time < last.Time {
		f.recordError("out_of_order_candle")
		if f.log != nil {
			f.log.Warn("out-of-order candle rejected",
				applogger.Int64("time", c.Time), applogger.Int64("newest", last.Time))
		}
		return
	}

	if ok && last.Time == c.Time {
		f.buf.ReplaceLast(c)
	} else {
		f.buf.Push(c)
	}

	hdr := bus.Header{From: component, Time: time.Now()}
	if c.Closed {
		f.lastClosedTime = c.Time
		f.b.Send(bus.NewClosedCandle{Header: hdr, Candle: c})
	} else {
		f.b.Send(bus.LiveCandleUpdate{Header: hdr, Candle: c})
	}
	if f.metrics != nil {
		f.metrics.RecordLastPrice(f.cfg.Symbol, c.Close)
	}
}

func (f *Feed) backoffDelay(attempt int) time.Duration {
	d := f.cfg.ReconnectBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= f.cfg.ReconnectMax {
			return f.cfg.ReconnectMax
		}
	}
	if d > f.cfg.ReconnectMax {
		d = f.cfg.ReconnectMax
	}
	return d
}

func (f *Feed) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *Feed) publishStatus(connected bool, detail string) {
	f.b.Send(bus.ConnectionStatus{
		Header: bus.Header{From: component, Time: time.Now()},
		Status: models.ConnectionStatus{
			Connected: connected,
			Detail:    detail,
			Timestamp: time.Now(),
		},
	})
}

func (f *Feed) recordError(kind string) {
	if f.metrics != nil {
		f.metrics.RecordError(kind)
	}
}
