package models

import "time"

// Regime is the discrete market state produced by the classifier.
type Regime string

const (
	RegimeStrongTrendUp   Regime = "strong-trend-up"
	RegimeStrongTrendDown Regime = "strong-trend-down"
	RegimeWeakTrendUp     Regime = "weak-trend-up"
	RegimeWeakTrendDown   Regime = "weak-trend-down"
	RegimeRanging         Regime = "ranging"
)

// Trending reports whether the regime is any trend state (weak or strong).
func (r Regime) Trending() bool { return r != RegimeRanging && r != "" }

// TrendingUp reports whether the regime is an up-trend state.
func (r Regime) TrendingUp() bool {
	return r == RegimeStrongTrendUp || r == RegimeWeakTrendUp
}

// TrendingDown reports whether the regime is a down-trend state.
func (r Regime) TrendingDown() bool {
	return r == RegimeStrongTrendDown || r == RegimeWeakTrendDown
}

// IndicatorSnapshot is one consolidated indicator reading. All fields are
// computed from the same window; a snapshot is only ever published whole,
// after the minimum-history gate has opened.
type IndicatorSnapshot struct {
	EMAFast         float64   `json:"emaFast"`
	EMASlow         float64   `json:"emaSlow"`
	RSI             float64   `json:"rsi"`
	BollingerUpper  float64   `json:"bollingerUpper"`
	BollingerMiddle float64   `json:"bollingerMiddle"`
	BollingerLower  float64   `json:"bollingerLower"`
	ATR             float64   `json:"atr"`
	CurrentPrice    float64   `json:"currentPrice"`
	Timestamp       time.Time `json:"timestamp"`
}

// RegimeAnalysis is the classifier output for a single bar.
type RegimeAnalysis struct {
	Regime      Regime    `json:"regime"`
	Confidence  float64   `json:"confidence"` // display confidence, 10..95
	ADX         float64   `json:"adx"`
	PlusDI      float64   `json:"plusDI"`
	MinusDI     float64   `json:"minusDI"`
	RSI         float64   `json:"rsi"`
	VolumeRatio float64   `json:"volumeRatio"`
	EMASlope    float64   `json:"emaSlope"` // percent change of EMA between bars
	Since       time.Time `json:"since"`    // start of the current regime
	Timestamp   time.Time `json:"timestamp"`
}

// Duration returns how long the current regime has been in effect.
func (a RegimeAnalysis) Duration(now time.Time) time.Duration {
	if a.Since.IsZero() {
		return 0
	}
	return now.Sub(a.Since)
}
