package bus

import (
	"time"

	"TrendPulse/internal/domain/models"
)

// Kind identifies a message variant on the bus.
type Kind string

const (
	KindInitialCandles   Kind = "INITIAL_CANDLES"
	KindNewClosedCandle  Kind = "NEW_CLOSED_CANDLE"
	KindLiveCandleUpdate Kind = "LIVE_CANDLE_UPDATE"
	KindConnectionStatus Kind = "CONNECTION_STATUS"
	KindIndicatorsReady  Kind = "INDICATORS_READY"
	KindRegimeUpdated    Kind = "REGIME_UPDATED"
	KindNewSignal        Kind = "NEW_SIGNAL"
	KindTerminalError    Kind = "TERMINAL_ERROR"
)

// Message is the closed set of payloads carried by the bus. Each variant
// has a concrete payload type; there are no untyped payloads and no casts
// on the consumer side. Messages are never mutated after publish.
type Message interface {
	Kind() Kind
	Sender() string
	At() time.Time
}

// Header carries the common envelope fields.
type Header struct {
	From string
	Time time.Time
}

func (h Header) Sender() string { return h.From }
func (h Header) At() time.Time  { return h.Time }

// InitialCandles is a full-state replace: consumers must discard any
// candles they hold and adopt this ordered batch.
type InitialCandles struct {
	Header
	Candles []models.Candle
}

func (InitialCandles) Kind() Kind { return KindInitialCandles }

// NewClosedCandle announces a finalized bar.
type NewClosedCandle struct {
	Header
	Candle models.Candle
}

func (NewClosedCandle) Kind() Kind { return KindNewClosedCandle }

// LiveCandleUpdate announces an in-progress bar, possibly replacing a
// previous update with the same candle time.
type LiveCandleUpdate struct {
	Header
	Candle models.Candle
}

func (LiveCandleUpdate) Kind() Kind { return KindLiveCandleUpdate }

// ConnectionStatus announces a feed connectivity transition.
type ConnectionStatus struct {
	Header
	Status models.ConnectionStatus
}

func (ConnectionStatus) Kind() Kind { return KindConnectionStatus }

// IndicatorsReady carries one consolidated indicator snapshot.
type IndicatorsReady struct {
	Header
	Snapshot models.IndicatorSnapshot
}

func (IndicatorsReady) Kind() Kind { return KindIndicatorsReady }

// RegimeUpdated is published only when the classified regime changes.
type RegimeUpdated struct {
	Header
	Analysis models.RegimeAnalysis
}

func (RegimeUpdated) Kind() Kind { return KindRegimeUpdated }

// NewSignal carries a trading decision, with sizing embedded when the
// action is not HOLD.
type NewSignal struct {
	Header
	Signal models.TradingSignal
}

func (NewSignal) Kind() Kind { return KindNewSignal }

// TerminalError announces an unrecoverable condition, e.g. the reconnect
// budget being exhausted. The pipeline stays alive but silent.
type TerminalError struct {
	Header
	Err string
}

func (TerminalError) Kind() Kind { return KindTerminalError }
