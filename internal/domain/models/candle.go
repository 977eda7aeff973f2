package models

// Candle represents a single OHLCV bar. Time is epoch milliseconds of the
// bar open. A candle with Closed=false is provisional and may be replaced
// in place until the bar closes; a closed candle is immutable.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Closed bool    `json:"isClosed"`
}

// Valid reports whether the candle carries usable data. Monotonic-time
// checks against a buffer happen at the feed boundary, not here.
func (c Candle) Valid() bool {
	if c.Time <= 0 {
		return false
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return false
	}
	if c.Volume < 0 {
		return false
	}
	if c.High < c.Low {
		return false
	}
	return true
}
