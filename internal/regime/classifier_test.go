package regime

import (
	"testing"
	"time"

	"TrendPulse/internal/bus"
	"TrendPulse/internal/domain/models"
)

// trendCandle builds bar i of a steady uptrend with constant volume.
func trendCandle(i int) models.Candle {
	base := 100.0 + float64(i)
	return models.Candle{
		Time:   int64(i+1) * 60000,
		Open:   base,
		High:   base + 1.5,
		Low:    base - 0.5,
		Close:  base + 1,
		Volume: 10,
		Closed: true,
	}
}

// flatCandle builds bar i of a dead-flat market.
func flatCandle(i int) models.Candle {
	return models.Candle{
		Time:   int64(i+1) * 60000,
		Open:   100,
		High:   100.05,
		Low:    99.95,
		Close:  100,
		Volume: 10,
		Closed: true,
	}
}

func warmup(c *Classifier, gen func(int) models.Candle, n int) (models.RegimeAnalysis, bool) {
	var last models.RegimeAnalysis
	var ok bool
	for i := 0; i < n; i++ {
		if a, ready := c.Update(gen(i)); ready {
			last, ok = a, true
		}
	}
	return last, ok
}

func TestNotReadyBelowMinHistory(t *testing.T) {
	c := NewClassifier(nil, nil, Config{})
	for i := 0; i < 10; i++ {
		if _, ready := c.Update(trendCandle(i)); ready {
			t.Fatalf("ready after only %d bars", i+1)
		}
	}
}

func TestUptrendClassifiesTrendingUp(t *testing.T) {
	c := NewClassifier(nil, nil, Config{})
	a, ok := warmup(c, trendCandle, 60)
	if !ok {
		t.Fatalf("classifier never became ready")
	}
	if !a.Regime.TrendingUp() {
		t.Fatalf("regime = %s for steady uptrend", a.Regime)
	}
	if a.PlusDI <= a.MinusDI {
		t.Fatalf("+DI %v should dominate -DI %v", a.PlusDI, a.MinusDI)
	}
	if a.EMASlope <= 0 {
		t.Fatalf("EMA slope = %v, want positive", a.EMASlope)
	}
}

func TestFlatMarketClassifiesRanging(t *testing.T) {
	c := NewClassifier(nil, nil, Config{})
	a, ok := warmup(c, flatCandle, 60)
	if !ok {
		t.Fatalf("classifier never became ready")
	}
	if a.Regime != models.RegimeRanging {
		t.Fatalf("regime = %s for flat market, want %s", a.Regime, models.RegimeRanging)
	}
}

func TestConfidenceBounds(t *testing.T) {
	for _, gen := range []func(int) models.Candle{trendCandle, flatCandle} {
		c := NewClassifier(nil, nil, Config{})
		a, ok := warmup(c, gen, 60)
		if !ok {
			t.Fatalf("classifier never became ready")
		}
		if a.Confidence < 10 || a.Confidence > 95 {
			t.Fatalf("confidence = %v, want within [10, 95]", a.Confidence)
		}
	}
}

func TestDeterminism(t *testing.T) {
	c1 := NewClassifier(nil, nil, Config{})
	c2 := NewClassifier(nil, nil, Config{})
	for i := 0; i < 60; i++ {
		cd := trendCandle(i)
		a1, ok1 := c1.Update(cd)
		a2, ok2 := c2.Update(cd)
		if ok1 != ok2 {
			t.Fatalf("readiness diverged at bar %d", i)
		}
		if ok1 && (a1.Regime != a2.Regime || a1.ADX != a2.ADX || a1.Confidence != a2.Confidence) {
			t.Fatalf("classification diverged at bar %d: %+v vs %+v", i, a1, a2)
		}
	}
}

func TestSinceStableWithinRegime(t *testing.T) {
	c := NewClassifier(nil, nil, Config{})
	a, ok := warmup(c, trendCandle, 60)
	if !ok {
		t.Fatalf("classifier never became ready")
	}
	since := a.Since
	for i := 60; i < 70; i++ {
		next, ready := c.Update(trendCandle(i))
		if !ready {
			t.Fatalf("lost readiness at bar %d", i)
		}
		if next.Regime == a.Regime && !next.Since.Equal(since) {
			t.Fatalf("Since moved without a regime change")
		}
		a, since = next, next.Since
	}
}

func TestPublishesOnlyOnTransition(t *testing.T) {
	b := bus.New(nil)
	transitions := 0
	b.Register(bus.KindRegimeUpdated, func(bus.Message) { transitions++ })
	c := NewClassifier(b, nil, Config{})
	defer c.Close()

	for i := 0; i < 80; i++ {
		b.Send(bus.NewClosedCandle{
			Header: bus.Header{From: "test", Time: time.Now()},
			Candle: trendCandle(i),
		})
	}
	if transitions == 0 {
		t.Fatalf("no transition published during warmup into a trend")
	}
	settled := transitions
	for i := 80; i < 100; i++ {
		b.Send(bus.NewClosedCandle{
			Header: bus.Header{From: "test", Time: time.Now()},
			Candle: trendCandle(i),
		})
	}
	if transitions != settled {
		t.Fatalf("same-regime bars published %d extra transitions", transitions-settled)
	}
}

func TestDurationTracksSince(t *testing.T) {
	a := models.RegimeAnalysis{Since: time.Now().Add(-3 * time.Minute)}
	d := a.Duration(time.Now())
	if d < 2*time.Minute || d > 4*time.Minute {
		t.Fatalf("duration = %v, want around 3m", d)
	}
}
