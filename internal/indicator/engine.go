package indicator

import (
	"time"

	"TrendPulse/internal/bus"
	"TrendPulse/internal/domain/models"
	applogger "TrendPulse/pkg/logger"
	"TrendPulse/pkg/ring"
)

const component = "indicator-engine"

// Config holds the indicator periods. Zero values fall back to defaults.
type Config struct {
	EMAFastPeriod   int
	EMASlowPeriod   int
	RSIPeriod       int
	BollingerPeriod int
	BollingerK      float64
	ATRPeriod       int
	HistoryMargin   int
	HistoryCap      int
}

func (c *Config) applyDefaults() {
	if c.EMAFastPeriod <= 0 {
		c.EMAFastPeriod = 9
	}
	if c.EMASlowPeriod <= 0 {
		c.EMASlowPeriod = 21
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = 14
	}
	if c.BollingerPeriod <= 0 {
		c.BollingerPeriod = 20
	}
	if c.BollingerK <= 0 {
		c.BollingerK = 2
	}
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = 14
	}
	if c.HistoryMargin <= 0 {
		c.HistoryMargin = 5
	}
	if c.HistoryCap <= 0 {
		c.HistoryCap = 200
	}
}

// Engine maintains its own bounded candle history, independent of the
// feed's buffer, and republishes a consolidated snapshot once enough
// history exists. Only closed candles feed computation.
type Engine struct {
	b       *bus.Bus
	log     *applogger.Logger
	cfg     Config
	history *ring.Buffer[models.Candle]
	unsubs  []func()
}

// NewEngine creates the engine and subscribes it to candle messages.
func NewEngine(b *bus.Bus, log *applogger.Logger, cfg Config) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		b:       b,
		log:     log,
		cfg:     cfg,
		history: ring.New[models.Candle](cfg.HistoryCap),
	}
	e.unsubs = append(e.unsubs,
		b.Register(bus.KindInitialCandles, e.onMessage),
		b.Register(bus.KindNewClosedCandle, e.onMessage),
	)
	return e
}

// MinHistory returns the minimum-history gate: the largest period plus a
// margin so every indicator has a fully formed window.
func (e *Engine) MinHistory() int {
	n := e.cfg.EMASlowPeriod
	for _, p := range []int{e.cfg.RSIPeriod, e.cfg.BollingerPeriod, e.cfg.ATRPeriod} {
		if p > n {
			n = p
		}
	}
	return n + e.cfg.HistoryMargin
}

// Ready reports whether the minimum-history gate has opened.
func (e *Engine) Ready() bool { return e.history.Len() >= e.MinHistory() }

func (e *Engine) onMessage(msg bus.Message) {
	switch m := msg.(type) {
	case bus.InitialCandles:
		// Full-state replace, then one snapshot immediately after the batch.
		e.history.Reset()
		for _, c := range m.Candles {
			if c.Closed {
				e.history.Push(c)
			}
		}
		e.emit()
	case bus.NewClosedCandle:
		e.history.Push(m.Candle)
		e.emit()
	}
}

func (e *Engine) emit() {
	snap, ok := e.Compute(time.Now())
	if !ok {
		if e.log != nil {
			e.log.Debug("indicators warming up",
				applogger.Int("have", e.history.Len()),
				applogger.Int("need", e.MinHistory()))
		}
		return
	}
	e.b.Send(bus.IndicatorsReady{
		Header:   bus.Header{From: component, Time: snap.Timestamp},
		Snapshot: snap,
	})
}

// Compute recomputes all indicators from the same window snapshot. It
// returns false while below the minimum-history gate; it never returns a
// partial snapshot.
func (e *Engine) Compute(now time.Time) (models.IndicatorSnapshot, bool) {
	if !e.Ready() {
		return models.IndicatorSnapshot{}, false
	}
	candles := e.history.Values()
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	upper, middle, lower := Bollinger(closes, e.cfg.BollingerPeriod, e.cfg.BollingerK)
	snap := models.IndicatorSnapshot{
		EMAFast:         EMA(closes, e.cfg.EMAFastPeriod),
		EMASlow:         EMA(closes, e.cfg.EMASlowPeriod),
		RSI:             RSI(closes, e.cfg.RSIPeriod),
		BollingerUpper:  upper,
		BollingerMiddle: middle,
		BollingerLower:  lower,
		ATR:             ATR(candles, e.cfg.ATRPeriod),
		CurrentPrice:    closes[len(closes)-1],
		Timestamp:       now,
	}
	return snap, true
}

// History returns a copy of the engine's candle window.
func (e *Engine) History() []models.Candle { return e.history.Values() }

// Close detaches the engine from the bus.
func (e *Engine) Close() {
	for _, u := range e.unsubs {
		u()
	}
	e.unsubs = nil
}
