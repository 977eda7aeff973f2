package usecase

import (
	"sync"

	"TrendPulse/internal/bus"
	"TrendPulse/internal/domain/models"
	"TrendPulse/pkg/ring"
)

// StateView is the read side of the bus: it tracks the latest connection
// status, indicator snapshot, regime and signals so HTTP handlers can
// answer without touching the pipeline components. All accessors return
// copies and are safe for concurrent use.
type StateView struct {
	mu sync.RWMutex

	status      models.ConnectionStatus
	hasStatus   bool
	snapshot    models.IndicatorSnapshot
	hasSnapshot bool
	analysis    models.RegimeAnalysis
	hasAnalysis bool
	terminal    string

	candles *ring.Buffer[models.Candle]
	signals *ring.Buffer[models.TradingSignal]

	unsubs []func()
}

// NewStateView creates a view and subscribes it to every message kind it
// renders. candleCap and signalCap bound the retained history.
func NewStateView(b *bus.Bus, candleCap, signalCap int) *StateView {
	if candleCap <= 0 {
		candleCap = 200
	}
	if signalCap <= 0 {
		signalCap = 50
	}
	v := &StateView{
		candles: ring.New[models.Candle](candleCap),
		signals: ring.New[models.TradingSignal](signalCap),
	}
	v.unsubs = append(v.unsubs,
		b.Register(bus.KindConnectionStatus, v.onMessage),
		b.Register(bus.KindInitialCandles, v.onMessage),
		b.Register(bus.KindNewClosedCandle, v.onMessage),
		b.Register(bus.KindLiveCandleUpdate, v.onMessage),
		b.Register(bus.KindIndicatorsReady, v.onMessage),
		b.Register(bus.KindRegimeUpdated, v.onMessage),
		b.Register(bus.KindNewSignal, v.onMessage),
		b.Register(bus.KindTerminalError, v.onMessage),
	)
	return v
}

func (v *StateView) onMessage(msg bus.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch m := msg.(type) {
	case bus.ConnectionStatus:
		v.status = m.Status
		v.hasStatus = true
	case bus.InitialCandles:
		v.candles.Reset()
		for _, c := range m.Candles {
			v.candles.Push(c)
		}
	case bus.NewClosedCandle:
		v.applyCandle(m.Candle)
	case bus.LiveCandleUpdate:
		v.applyCandle(m.Candle)
	case bus.IndicatorsReady:
		v.snapshot = m.Snapshot
		v.hasSnapshot = true
	case bus.RegimeUpdated:
		v.analysis = m.Analysis
		v.hasAnalysis = true
	case bus.NewSignal:
		v.signals.Push(m.Signal)
	case bus.TerminalError:
		v.terminal = m.Err
	}
}

func (v *StateView) applyCandle(c models.Candle) {
	if last, ok := v.candles.Last(); ok && last.Time == c.Time {
		v.candles.ReplaceLast(c)
		return
	}
	v.candles.Push(c)
}

// Status returns the latest connectivity report.
func (v *StateView) Status() (models.ConnectionStatus, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.status, v.hasStatus
}

// Snapshot returns the latest consolidated indicator snapshot.
func (v *StateView) Snapshot() (models.IndicatorSnapshot, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshot, v.hasSnapshot
}

// Regime returns the latest regime analysis.
func (v *StateView) Regime() (models.RegimeAnalysis, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.analysis, v.hasAnalysis
}

// Candles returns up to limit of the most recent candles, oldest first.
func (v *StateView) Candles(limit int) []models.Candle {
	v.mu.RLock()
	defer v.mu.RUnlock()
	all := v.candles.Values()
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all
}

// Signals returns up to limit of the most recent signals, oldest first.
func (v *StateView) Signals(limit int) []models.TradingSignal {
	v.mu.RLock()
	defer v.mu.RUnlock()
	all := v.signals.Values()
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all
}

// LatestSignal returns the most recent signal, if any.
func (v *StateView) LatestSignal() (models.TradingSignal, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.signals.Last()
}

// TerminalError returns the terminal error message, empty when the
// pipeline is healthy.
func (v *StateView) TerminalError() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.terminal
}

// Close detaches the view from the bus.
func (v *StateView) Close() {
	for _, u := range v.unsubs {
		u()
	}
	v.unsubs = nil
}
