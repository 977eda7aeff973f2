package exchange

import (
	"encoding/json"
	"fmt"
	"strconv"

	"TrendPulse/internal/domain/models"
)

// restEnvelope is the Bybit v5 REST response wrapper.
type restEnvelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// klineResult holds the kline list: rows are reverse-chronological arrays
// of [startTime, open, high, low, close, volume, turnover] as strings.
type klineResult struct {
	Symbol string     `json:"symbol"`
	List   [][]string `json:"list"`
}

// wsKline is one entry of a kline push frame.
type wsKline struct {
	Start   int64  `json:"start"`
	End     int64  `json:"end"`
	Open    string `json:"open"`
	High    string `json:"high"`
	Low     string `json:"low"`
	Close   string `json:"close"`
	Volume  string `json:"volume"`
	Confirm bool   `json:"confirm"`
}

// wsPush is a kline push frame from the public stream.
type wsPush struct {
	Topic string    `json:"topic"`
	Type  string    `json:"type"`
	Data  []wsKline `json:"data"`
}

func parseKlineRow(row []string) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, fmt.Errorf("kline row has %d fields, want >= 6", len(row))
	}
	start, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.Candle{}, fmt.Errorf("parse start %q: %w", row[0], err)
	}
	vals := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		v, err := strconv.ParseFloat(row[i], 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("parse field %d %q: %w", i, row[i], err)
		}
		vals[i-1] = v
	}
	return models.Candle{
		Time:   start,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
		Closed: true,
	}, nil
}

func (k wsKline) toCandle() (models.Candle, error) {
	vals := make([]float64, 5)
	for i, s := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("parse kline field %q: %w", s, err)
		}
		vals[i] = v
	}
	return models.Candle{
		Time:   k.Start,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
		Closed: k.Confirm,
	}, nil
}
