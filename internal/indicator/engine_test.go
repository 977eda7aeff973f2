package indicator

import (
	"testing"
	"time"

	"TrendPulse/internal/bus"
	"TrendPulse/internal/domain/models"
)

func closedCandle(i int) models.Candle {
	base := 100.0 + float64(i)*0.5
	return models.Candle{
		Time:   int64(i+1) * 60000,
		Open:   base,
		High:   base + 2,
		Low:    base - 2,
		Close:  base + 1,
		Volume: 10,
		Closed: true,
	}
}

func sendClosed(b *bus.Bus, c models.Candle) {
	b.Send(bus.NewClosedCandle{Header: bus.Header{From: "test", Time: time.Now()}, Candle: c})
}

func TestMinHistoryGate(t *testing.T) {
	b := bus.New(nil)
	var snaps []models.IndicatorSnapshot
	b.Register(bus.KindIndicatorsReady, func(m bus.Message) {
		snaps = append(snaps, m.(bus.IndicatorsReady).Snapshot)
	})
	e := NewEngine(b, nil, Config{})
	defer e.Close()

	need := e.MinHistory()
	for i := 0; i < need-1; i++ {
		sendClosed(b, closedCandle(i))
	}
	if len(snaps) != 0 {
		t.Fatalf("snapshot emitted below gate: %d", len(snaps))
	}
	sendClosed(b, closedCandle(need-1))
	if len(snaps) != 1 {
		t.Fatalf("snapshots = %d, want 1 once gate opens", len(snaps))
	}
}

func TestSnapshotIsComplete(t *testing.T) {
	b := bus.New(nil)
	var snap models.IndicatorSnapshot
	got := false
	b.Register(bus.KindIndicatorsReady, func(m bus.Message) {
		snap = m.(bus.IndicatorsReady).Snapshot
		got = true
	})
	e := NewEngine(b, nil, Config{})
	defer e.Close()

	for i := 0; i < e.MinHistory(); i++ {
		sendClosed(b, closedCandle(i))
	}
	if !got {
		t.Fatalf("no snapshot emitted")
	}
	if snap.EMAFast == 0 || snap.EMASlow == 0 || snap.RSI == 0 ||
		snap.BollingerUpper == 0 || snap.BollingerMiddle == 0 || snap.BollingerLower == 0 ||
		snap.ATR == 0 || snap.CurrentPrice == 0 {
		t.Fatalf("partial snapshot: %+v", snap)
	}
}

func TestInitialCandlesReplaceEmitsOnce(t *testing.T) {
	b := bus.New(nil)
	count := 0
	b.Register(bus.KindIndicatorsReady, func(bus.Message) { count++ })
	e := NewEngine(b, nil, Config{})
	defer e.Close()

	batch := make([]models.Candle, e.MinHistory()+10)
	for i := range batch {
		batch[i] = closedCandle(i)
	}
	b.Send(bus.InitialCandles{Header: bus.Header{From: "test", Time: time.Now()}, Candles: batch})
	if count != 1 {
		t.Fatalf("snapshots after batch replace = %d, want 1", count)
	}
	if len(e.History()) != len(batch) {
		t.Fatalf("history = %d candles, want %d", len(e.History()), len(batch))
	}
}

func TestLiveCandlesIgnored(t *testing.T) {
	b := bus.New(nil)
	count := 0
	b.Register(bus.KindIndicatorsReady, func(bus.Message) { count++ })
	e := NewEngine(b, nil, Config{})
	defer e.Close()

	for i := 0; i < e.MinHistory()+5; i++ {
		c := closedCandle(i)
		c.Closed = false
		b.Send(bus.LiveCandleUpdate{Header: bus.Header{From: "test", Time: time.Now()}, Candle: c})
	}
	if count != 0 {
		t.Fatalf("live updates must not drive computation, got %d snapshots", count)
	}
	if len(e.History()) != 0 {
		t.Fatalf("live updates leaked into history")
	}
}

// Feeding candles one bar at a time must land on the same snapshot as a
// single full-state replace over the identical series.
func TestStreamingMatchesBatch(t *testing.T) {
	streamBus := bus.New(nil)
	streamed := NewEngine(streamBus, nil, Config{})
	defer streamed.Close()

	batchBus := bus.New(nil)
	batched := NewEngine(batchBus, nil, Config{})
	defer batched.Close()

	series := make([]models.Candle, streamed.MinHistory()+15)
	for i := range series {
		series[i] = closedCandle(i)
	}
	for _, c := range series {
		sendClosed(streamBus, c)
	}
	batchBus.Send(bus.InitialCandles{Header: bus.Header{From: "test", Time: time.Now()}, Candles: series})

	now := time.Now()
	s1, ok1 := streamed.Compute(now)
	s2, ok2 := batched.Compute(now)
	if !ok1 || !ok2 {
		t.Fatalf("compute not ready: stream=%v batch=%v", ok1, ok2)
	}
	if s1 != s2 {
		t.Fatalf("streaming snapshot %+v != batch snapshot %+v", s1, s2)
	}
}

func TestComputeDeterministic(t *testing.T) {
	b := bus.New(nil)
	e := NewEngine(b, nil, Config{})
	defer e.Close()
	for i := 0; i < e.MinHistory()+20; i++ {
		sendClosed(b, closedCandle(i))
	}
	now := time.Now()
	s1, ok1 := e.Compute(now)
	s2, ok2 := e.Compute(now)
	if !ok1 || !ok2 {
		t.Fatalf("compute not ready")
	}
	if s1 != s2 {
		t.Fatalf("recompute over same window differs: %+v vs %+v", s1, s2)
	}
}
