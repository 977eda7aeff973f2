package risk

import (
	"math"
	"testing"

	"TrendPulse/internal/domain/models"
)

func rangeCandles(n int) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		candles[i] = models.Candle{
			Time: int64(i+1) * 60000,
			Open: 100, High: 102, Low: 98, Close: 100,
			Volume: 1, Closed: true,
		}
	}
	return candles
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestATRStopDistance(t *testing.T) {
	s := NewSizer(Config{})
	// Constant 4-point range: ATR = 4, stop distance = 2.5 * 4 = 10.
	res := s.Size(Input{
		AccountBalance: 10000,
		CurrentPrice:   100,
		Direction:      models.ActionBuy,
		Regime:         models.RegimeWeakTrendUp,
		Confidence:     70,
		Candles:        rangeCandles(30),
	})
	if !near(res.StopLoss, 90) {
		t.Fatalf("stop = %v, want 90", res.StopLoss)
	}
	if !near(res.TakeProfit, 120) {
		t.Fatalf("target = %v, want 120", res.TakeProfit)
	}
	if !near(res.RiskRewardRatio, 2) {
		t.Fatalf("rr = %v, want 2", res.RiskRewardRatio)
	}
	// 1% base risk at 1.0x regime and 1.0x confidence: $100 over a $10 stop.
	if !near(res.RiskAmount, 100) {
		t.Fatalf("risk amount = %v, want 100", res.RiskAmount)
	}
	if !near(res.PositionSize, 10) {
		t.Fatalf("size = %v, want 10", res.PositionSize)
	}
	if ok, why := s.Validate(res, Input{AccountBalance: 10000, CurrentPrice: 100}); !ok {
		t.Fatalf("valid sizing rejected: %s", why)
	}
}

func TestFallbackStopWithoutATR(t *testing.T) {
	s := NewSizer(Config{})
	// Too few candles for ATR: 2% of price stands in.
	res := s.Size(Input{
		AccountBalance: 10000,
		CurrentPrice:   100,
		Direction:      models.ActionBuy,
		Regime:         models.RegimeWeakTrendUp,
		Confidence:     70,
		Candles:        rangeCandles(5),
	})
	if !near(res.StopLoss, 98) {
		t.Fatalf("fallback stop = %v, want 98", res.StopLoss)
	}
	if !near(res.TakeProfit, 104) {
		t.Fatalf("fallback target = %v, want 104", res.TakeProfit)
	}
	if !near(res.RiskRewardRatio, 2) {
		t.Fatalf("rr = %v, want 2", res.RiskRewardRatio)
	}
}

func TestSellMirrorsBuy(t *testing.T) {
	s := NewSizer(Config{})
	in := Input{
		AccountBalance: 10000,
		CurrentPrice:   100,
		Direction:      models.ActionSell,
		Regime:         models.RegimeWeakTrendDown,
		Confidence:     70,
		Candles:        rangeCandles(5),
	}
	res := s.Size(in)
	if !near(res.StopLoss, 102) {
		t.Fatalf("sell stop = %v, want 102 (above entry)", res.StopLoss)
	}
	if !near(res.TakeProfit, 96) {
		t.Fatalf("sell target = %v, want 96 (below entry)", res.TakeProfit)
	}
	if !near(res.RiskRewardRatio, 2) {
		t.Fatalf("rr = %v, want 2", res.RiskRewardRatio)
	}
}

func TestRegimeScalesRisk(t *testing.T) {
	s := NewSizer(Config{})
	base := Input{
		AccountBalance: 10000,
		CurrentPrice:   100,
		Direction:      models.ActionBuy,
		Confidence:     70,
		Candles:        rangeCandles(30),
	}

	strong := base
	strong.Regime = models.RegimeStrongTrendUp
	ranging := base
	ranging.Regime = models.RegimeRanging

	rStrong := s.Size(strong)
	rRanging := s.Size(ranging)
	if !near(rStrong.RiskAmount/rRanging.RiskAmount, 3) {
		t.Fatalf("strong:ranging risk ratio = %v, want 3 (1.5x vs 0.5x)",
			rStrong.RiskAmount/rRanging.RiskAmount)
	}
}

func TestConfidenceScalesRisk(t *testing.T) {
	s := NewSizer(Config{})
	base := Input{
		AccountBalance: 10000,
		CurrentPrice:   100,
		Direction:      models.ActionBuy,
		Regime:         models.RegimeWeakTrendUp,
		Candles:        rangeCandles(30),
	}

	high := base
	high.Confidence = 85
	low := base
	low.Confidence = 30

	rHigh := s.Size(high)
	rLow := s.Size(low)
	if !near(rHigh.RiskAmount, 120) {
		t.Fatalf("risk at confidence 85 = %v, want 120", rHigh.RiskAmount)
	}
	if !near(rLow.RiskAmount, 50) {
		t.Fatalf("risk at confidence 30 = %v, want 50", rLow.RiskAmount)
	}
}

func TestValidateRejectsOversizedPosition(t *testing.T) {
	s := NewSizer(Config{})
	// Tight fallback stop plus aggressive multipliers: the position value
	// blows past a quarter of the account.
	in := Input{
		AccountBalance: 10000,
		CurrentPrice:   100,
		Direction:      models.ActionBuy,
		Regime:         models.RegimeStrongTrendUp,
		Confidence:     90,
		Candles:        rangeCandles(5),
	}
	res := s.Size(in)
	ok, why := s.Validate(res, in)
	if ok {
		t.Fatalf("oversized position passed validation (value %v)", res.PositionSize*in.CurrentPrice)
	}
	if why == "" {
		t.Fatalf("rejection must carry a reason")
	}
}

func TestValidateRejectsZeroSize(t *testing.T) {
	s := NewSizer(Config{})
	ok, why := s.Validate(models.PositionSizeResult{}, Input{AccountBalance: 10000, CurrentPrice: 100})
	if ok {
		t.Fatalf("zero-size result passed validation")
	}
	if why == "" {
		t.Fatalf("rejection must carry a reason")
	}
}
