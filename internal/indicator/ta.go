package indicator

import (
	"math"

	"TrendPulse/internal/domain/models"
)

// SMA calculates the simple average of data.
func SMA(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// StdDev calculates the population standard deviation of data.
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	m := SMA(data)
	var sum float64
	for _, v := range data {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(data)))
}

// EMA calculates the exponential moving average over src, seeded by a
// simple average of the first period values.
func EMA(src []float64, period int) float64 {
	if period <= 0 || len(src) < period {
		return 0
	}
	ema := SMA(src[:period])
	k := 2.0 / float64(period+1)
	for i := period; i < len(src); i++ {
		ema = src[i]*k + ema*(1-k)
	}
	return ema
}

// RSI calculates the latest Wilder-smoothed relative strength index.
// With zero average loss the oscillator pins at 100.
func RSI(src []float64, period int) float64 {
	if period <= 0 || len(src) < period+1 {
		return 0
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		delta := src[i] - src[i-1]
		if delta >= 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	for i := period + 1; i < len(src); i++ {
		delta := src[i] - src[i-1]
		up, down := 0.0, 0.0
		if delta >= 0 {
			up = delta
		} else {
			down = -delta
		}
		avgGain = (avgGain*float64(period-1) + up) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + down) / float64(period)
	}
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Bollinger calculates SMA +/- k standard deviations over the trailing
// period closes.
func Bollinger(closes []float64, period int, k float64) (upper, middle, lower float64) {
	if period <= 0 || len(closes) < period {
		return 0, 0, 0
	}
	recent := closes[len(closes)-period:]
	middle = SMA(recent)
	sd := StdDev(recent)
	return middle + k*sd, middle, middle - k*sd
}

// TrueRange calculates the per-bar true range. The very first bar of a
// series has no previous close and degenerates to high-low.
func TrueRange(c models.Candle, prevClose float64) float64 {
	if prevClose <= 0 {
		return c.High - c.Low
	}
	tr := c.High - c.Low
	if d := math.Abs(c.High - prevClose); d > tr {
		tr = d
	}
	if d := math.Abs(c.Low - prevClose); d > tr {
		tr = d
	}
	return tr
}

// ATR calculates the latest Wilder-smoothed average true range. It needs
// at least period+1 candles so every sampled bar has a previous close.
func ATR(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}
	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		trs = append(trs, TrueRange(candles[i], candles[i-1].Close))
	}
	atr := SMA(trs[:period])
	for i := period; i < len(trs); i++ {
		atr = (atr*float64(period-1) + trs[i]) / float64(period)
	}
	return atr
}
