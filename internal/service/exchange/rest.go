package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"TrendPulse/internal/domain/models"
	drepo "TrendPulse/internal/domain/repository"
	xhttp "TrendPulse/pkg/http"
)

// ErrEmptyHistory distinguishes a successful fetch with no rows from a
// transport or exchange failure.
var ErrEmptyHistory = errors.New("exchange: empty kline history")

// RESTClient fetches historical klines from the Bybit v5 market API.
type RESTClient struct {
	baseURL  string
	category string
	client   *xhttp.Client
}

// NewRESTClient creates a historical source with the given request timeout.
func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:  baseURL,
		category: "linear",
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// FetchCandles returns up to limit closed candles, oldest first. The
// exchange's newest row is the still-forming bar and is dropped.
func (c *RESTClient) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	var env restEnvelope
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/v5/market/kline",
		QueryParams: map[string][]string{
			"category": {c.category},
			"symbol":   {symbol},
			"interval": {interval},
			// +1 because the newest (in-progress) row gets dropped.
			"limit": {strconv.Itoa(limit + 1)},
		},
	}, &env)
	if err != nil {
		return nil, fmt.Errorf("fetch klines: %w", err)
	}
	if env.RetCode != 0 {
		return nil, fmt.Errorf("exchange retCode %d: %s", env.RetCode, env.RetMsg)
	}

	var result klineResult
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return nil, fmt.Errorf("decode kline result: %w", err)
	}
	if len(result.List) == 0 {
		return nil, ErrEmptyHistory
	}

	candles := make([]models.Candle, 0, len(result.List))
	for _, row := range result.List {
		cd, err := parseKlineRow(row)
		if err != nil {
			return nil, fmt.Errorf("parse kline: %w", err)
		}
		candles = append(candles, cd)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })

	// Drop the still-forming newest bar. A single-row payload is just that
	// bar, which leaves no closed history to serve.
	candles = candles[:len(candles)-1]
	if len(candles) == 0 {
		return nil, ErrEmptyHistory
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

var _ drepo.HistoricalSource = (*RESTClient)(nil)
