package indicator

import (
	"math"
	"testing"

	"TrendPulse/internal/domain/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	if got := SMA([]float64{1, 2, 3, 4}); !almostEqual(got, 2.5) {
		t.Fatalf("SMA = %v, want 2.5", got)
	}
	if got := SMA(nil); got != 0 {
		t.Fatalf("SMA(nil) = %v, want 0", got)
	}
}

func TestStdDev(t *testing.T) {
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := StdDev(data); !almostEqual(got, 2) {
		t.Fatalf("StdDev = %v, want 2", got)
	}
}

func TestEMAConstantSeries(t *testing.T) {
	src := make([]float64, 40)
	for i := range src {
		src[i] = 50
	}
	if got := EMA(src, 9); !almostEqual(got, 50) {
		t.Fatalf("EMA of constant series = %v, want 50", got)
	}
}

func TestEMAInsufficientData(t *testing.T) {
	if got := EMA([]float64{1, 2}, 9); got != 0 {
		t.Fatalf("EMA below period = %v, want 0", got)
	}
}

func TestEMATracksLatestCloser(t *testing.T) {
	src := make([]float64, 40)
	for i := range src {
		src[i] = float64(i + 1)
	}
	fast := EMA(src, 9)
	slow := EMA(src, 21)
	if fast <= slow {
		t.Fatalf("fast EMA %v should exceed slow EMA %v on a rising series", fast, slow)
	}
}

func TestRSIPinsAt100(t *testing.T) {
	src := make([]float64, 30)
	for i := range src {
		src[i] = float64(i + 1)
	}
	if got := RSI(src, 14); !almostEqual(got, 100) {
		t.Fatalf("RSI of monotone rise = %v, want 100", got)
	}
}

func TestRSIFallingSeriesLow(t *testing.T) {
	src := make([]float64, 30)
	for i := range src {
		src[i] = float64(100 - i)
	}
	if got := RSI(src, 14); got > 5 {
		t.Fatalf("RSI of monotone fall = %v, want near 0", got)
	}
}

func TestRSIInsufficientData(t *testing.T) {
	if got := RSI([]float64{1, 2, 3}, 14); got != 0 {
		t.Fatalf("RSI below period+1 = %v, want 0", got)
	}
}

func TestBollingerConstantSeries(t *testing.T) {
	src := make([]float64, 25)
	for i := range src {
		src[i] = 10
	}
	upper, middle, lower := Bollinger(src, 20, 2)
	if !almostEqual(upper, 10) || !almostEqual(middle, 10) || !almostEqual(lower, 10) {
		t.Fatalf("bands on zero-variance series = %v %v %v, want all 10", upper, middle, lower)
	}
}

func TestBollingerSymmetry(t *testing.T) {
	src := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	upper, middle, lower := Bollinger(src, 20, 2)
	if !almostEqual(upper-middle, middle-lower) {
		t.Fatalf("bands not symmetric: %v %v %v", upper, middle, lower)
	}
}

func TestTrueRangeGapUp(t *testing.T) {
	c := models.Candle{High: 110, Low: 105, Close: 108}
	if got := TrueRange(c, 100); !almostEqual(got, 10) {
		t.Fatalf("TrueRange = %v, want 10 (gap dominates)", got)
	}
}

func TestTrueRangeNoPrev(t *testing.T) {
	c := models.Candle{High: 12, Low: 9, Close: 10}
	if got := TrueRange(c, 0); !almostEqual(got, 3) {
		t.Fatalf("TrueRange without prev = %v, want 3", got)
	}
}

func TestATRConstantRange(t *testing.T) {
	candles := make([]models.Candle, 30)
	for i := range candles {
		candles[i] = models.Candle{
			Time: int64(i+1) * 60000,
			Open: 100, High: 102, Low: 98, Close: 100,
			Volume: 1, Closed: true,
		}
	}
	if got := ATR(candles, 14); !almostEqual(got, 4) {
		t.Fatalf("ATR of constant 4-point range = %v, want 4", got)
	}
}

func TestATRInsufficientData(t *testing.T) {
	candles := make([]models.Candle, 10)
	if got := ATR(candles, 14); got != 0 {
		t.Fatalf("ATR below period+1 = %v, want 0", got)
	}
}
