package usecase

import (
	"testing"
	"time"

	"TrendPulse/internal/bus"
	"TrendPulse/internal/domain/models"
)

func viewCandle(t int64, closed bool) models.Candle {
	return models.Candle{
		Time: t, Open: 100, High: 101, Low: 99, Close: 100,
		Volume: 1, Closed: closed,
	}
}

func hdr() bus.Header {
	return bus.Header{From: "test", Time: time.Now()}
}

func TestViewTracksStatusAndTerminal(t *testing.T) {
	b := bus.New(nil)
	v := NewStateView(b, 10, 10)
	defer v.Close()

	if _, ok := v.Status(); ok {
		t.Fatalf("status reported before any message")
	}
	b.Send(bus.ConnectionStatus{Header: hdr(), Status: models.ConnectionStatus{Connected: true, Detail: "connected"}})
	st, ok := v.Status()
	if !ok || !st.Connected || st.Detail != "connected" {
		t.Fatalf("status = %+v, %v", st, ok)
	}

	if v.TerminalError() != "" {
		t.Fatalf("terminal error set while healthy")
	}
	b.Send(bus.TerminalError{Header: hdr(), Err: "offline"})
	if v.TerminalError() != "offline" {
		t.Fatalf("terminal error = %q", v.TerminalError())
	}
}

func TestViewCandleHistory(t *testing.T) {
	b := bus.New(nil)
	v := NewStateView(b, 5, 5)
	defer v.Close()

	b.Send(bus.InitialCandles{Header: hdr(), Candles: []models.Candle{
		viewCandle(60000, true), viewCandle(120000, true),
	}})
	b.Send(bus.LiveCandleUpdate{Header: hdr(), Candle: viewCandle(180000, false)})
	b.Send(bus.NewClosedCandle{Header: hdr(), Candle: viewCandle(180000, true)})

	all := v.Candles(0)
	if len(all) != 3 {
		t.Fatalf("candles = %d, want 3 (equal-time finalize replaces)", len(all))
	}
	if !all[2].Closed {
		t.Fatalf("newest candle not finalized in place")
	}
	if got := v.Candles(2); len(got) != 2 || got[0].Time != 120000 {
		t.Fatalf("limited candles = %+v, want newest two", got)
	}
}

func TestViewInitialCandlesReplaceHistory(t *testing.T) {
	b := bus.New(nil)
	v := NewStateView(b, 10, 10)
	defer v.Close()

	b.Send(bus.NewClosedCandle{Header: hdr(), Candle: viewCandle(60000, true)})
	b.Send(bus.InitialCandles{Header: hdr(), Candles: []models.Candle{
		viewCandle(120000, true), viewCandle(180000, true),
	}})
	all := v.Candles(0)
	if len(all) != 2 || all[0].Time != 120000 {
		t.Fatalf("full-state replace left %+v", all)
	}
}

func TestViewSignals(t *testing.T) {
	b := bus.New(nil)
	v := NewStateView(b, 10, 2)
	defer v.Close()

	if _, ok := v.LatestSignal(); ok {
		t.Fatalf("signal reported before any emission")
	}
	for i := 0; i < 3; i++ {
		b.Send(bus.NewSignal{Header: hdr(), Signal: models.TradingSignal{
			Action: models.ActionHold, Confidence: float64(i),
		}})
	}
	sigs := v.Signals(0)
	if len(sigs) != 2 {
		t.Fatalf("signal history = %d, want bounded at 2", len(sigs))
	}
	last, ok := v.LatestSignal()
	if !ok || last.Confidence != 2 {
		t.Fatalf("latest signal = %+v, %v", last, ok)
	}
}

func TestViewSnapshotAndRegime(t *testing.T) {
	b := bus.New(nil)
	v := NewStateView(b, 10, 10)
	defer v.Close()

	if _, ok := v.Snapshot(); ok {
		t.Fatalf("snapshot reported before warmup")
	}
	if _, ok := v.Regime(); ok {
		t.Fatalf("regime reported before warmup")
	}
	b.Send(bus.IndicatorsReady{Header: hdr(), Snapshot: models.IndicatorSnapshot{RSI: 55}})
	b.Send(bus.RegimeUpdated{Header: hdr(), Analysis: models.RegimeAnalysis{Regime: models.RegimeRanging}})

	if snap, ok := v.Snapshot(); !ok || snap.RSI != 55 {
		t.Fatalf("snapshot = %+v, %v", snap, ok)
	}
	if a, ok := v.Regime(); !ok || a.Regime != models.RegimeRanging {
		t.Fatalf("regime = %+v, %v", a, ok)
	}
}

func TestViewCloseDetaches(t *testing.T) {
	b := bus.New(nil)
	v := NewStateView(b, 10, 10)
	v.Close()
	v.Close() // second close is a no-op

	b.Send(bus.NewClosedCandle{Header: hdr(), Candle: viewCandle(60000, true)})
	if len(v.Candles(0)) != 0 {
		t.Fatalf("detached view still receives messages")
	}
}
