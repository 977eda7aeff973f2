package usecase

import (
	"testing"
	"time"

	"TrendPulse/internal/bus"
	"TrendPulse/internal/domain/models"
	"TrendPulse/internal/indicator"
	"TrendPulse/internal/regime"
	"TrendPulse/internal/risk"
	"TrendPulse/internal/signal"
)

func newTestPipeline(b *bus.Bus) *Pipeline {
	return NewPipeline(b, nil, nil,
		PipelineConfig{Symbol: "BTCUSDT", AccountBalance: 10000},
		regime.Config{}, indicator.Config{}, signal.Config{}, risk.Config{})
}

func trendBar(i int) models.Candle {
	base := 100.0 + float64(i)*0.3
	return models.Candle{
		Time:   int64(i+1) * 60000,
		Open:   base,
		High:   base + 1,
		Low:    base - 0.7,
		Close:  base + 0.3,
		Volume: 10,
		Closed: true,
	}
}

func feedBars(b *bus.Bus, from, to int) {
	for i := from; i < to; i++ {
		b.Send(bus.NewClosedCandle{
			Header: bus.Header{From: "test", Time: time.Now()},
			Candle: trendBar(i),
		})
	}
}

func TestPipelineEmitsOneSignalPerBar(t *testing.T) {
	b := bus.New(nil)
	var signals []models.TradingSignal
	b.Register(bus.KindNewSignal, func(m bus.Message) {
		signals = append(signals, m.(bus.NewSignal).Signal)
	})
	p := newTestPipeline(b)
	defer p.Close()

	feedBars(b, 0, 80)
	if len(signals) == 0 {
		t.Fatalf("no signals after warmup")
	}
	// Once both components are warm, every closed bar scores exactly once.
	before := len(signals)
	feedBars(b, 80, 90)
	if len(signals)-before != 10 {
		t.Fatalf("10 bars produced %d signals", len(signals)-before)
	}
}

func TestPipelineSignalsCarryRegimeAndReason(t *testing.T) {
	b := bus.New(nil)
	var last models.TradingSignal
	got := false
	b.Register(bus.KindNewSignal, func(m bus.Message) {
		last = m.(bus.NewSignal).Signal
		got = true
	})
	p := newTestPipeline(b)
	defer p.Close()

	feedBars(b, 0, 80)
	if !got {
		t.Fatalf("no signal emitted")
	}
	if last.Regime == "" {
		t.Fatalf("signal missing regime context: %+v", last)
	}
	if last.Reason == "" {
		t.Fatalf("signal missing reason")
	}
	if last.Action != models.ActionHold && last.Sizing == nil {
		t.Fatalf("actionable signal without sizing: %+v", last)
	}
}

func TestPipelineActionableSignalsAreSizedOrDowngraded(t *testing.T) {
	b := bus.New(nil)
	var signals []models.TradingSignal
	b.Register(bus.KindNewSignal, func(m bus.Message) {
		signals = append(signals, m.(bus.NewSignal).Signal)
	})
	p := newTestPipeline(b)
	defer p.Close()

	feedBars(b, 0, 120)
	for _, s := range signals {
		if s.Action == models.ActionHold {
			if s.Sizing != nil || s.EntryPrice != 0 {
				t.Fatalf("HOLD carries trade parameters: %+v", s)
			}
			continue
		}
		if s.Sizing == nil || s.StopLoss == 0 || s.TakeProfit == 0 {
			t.Fatalf("actionable signal missing trade parameters: %+v", s)
		}
		if s.Action == models.ActionBuy && s.StopLoss >= s.EntryPrice {
			t.Fatalf("BUY stop %v not below entry %v", s.StopLoss, s.EntryPrice)
		}
		if s.Action == models.ActionSell && s.StopLoss <= s.EntryPrice {
			t.Fatalf("SELL stop %v not above entry %v", s.StopLoss, s.EntryPrice)
		}
	}
}

func TestPipelineFullStateReplaceResetsBaseline(t *testing.T) {
	b := bus.New(nil)
	p := newTestPipeline(b)
	defer p.Close()

	feedBars(b, 0, 80)
	if p.prev == nil {
		t.Fatalf("no crossover baseline after warm bars")
	}
	b.Send(bus.InitialCandles{
		Header:  bus.Header{From: "test", Time: time.Now()},
		Candles: []models.Candle{trendBar(0)},
	})
	if p.prev != nil {
		t.Fatalf("baseline survived a full-state replace")
	}
}

func TestPipelineCloseStopsEvaluation(t *testing.T) {
	b := bus.New(nil)
	count := 0
	b.Register(bus.KindNewSignal, func(bus.Message) { count++ })
	p := newTestPipeline(b)

	feedBars(b, 0, 80)
	if count == 0 {
		t.Fatalf("no signals before close")
	}
	p.Close()
	before := count
	feedBars(b, 80, 90)
	if count != before {
		t.Fatalf("closed pipeline still evaluating")
	}
}
