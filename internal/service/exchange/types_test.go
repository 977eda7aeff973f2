package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseKlineRow(t *testing.T) {
	row := []string{"1700000000000", "100.5", "101.2", "99.8", "100.9", "1234.5", "124000"}
	c, err := parseKlineRow(row)
	if err != nil {
		t.Fatalf("parseKlineRow: %v", err)
	}
	if c.Time != 1700000000000 || c.Open != 100.5 || c.High != 101.2 ||
		c.Low != 99.8 || c.Close != 100.9 || c.Volume != 1234.5 {
		t.Fatalf("parsed candle = %+v", c)
	}
	if !c.Closed {
		t.Fatalf("historical rows are closed bars")
	}
}

func TestParseKlineRowRejectsShortAndGarbage(t *testing.T) {
	if _, err := parseKlineRow([]string{"1700000000000", "100"}); err == nil {
		t.Fatalf("short row accepted")
	}
	if _, err := parseKlineRow([]string{"not-a-time", "1", "1", "1", "1", "1"}); err == nil {
		t.Fatalf("bad timestamp accepted")
	}
	if _, err := parseKlineRow([]string{"1700000000000", "1", "x", "1", "1", "1"}); err == nil {
		t.Fatalf("bad price accepted")
	}
}

func TestWSKlineConfirmMapsToClosed(t *testing.T) {
	k := wsKline{
		Start: 1700000000000, Open: "100", High: "101", Low: "99",
		Close: "100.5", Volume: "42", Confirm: true,
	}
	c, err := k.toCandle()
	if err != nil {
		t.Fatalf("toCandle: %v", err)
	}
	if !c.Closed {
		t.Fatalf("confirmed kline must map to a closed candle")
	}

	k.Confirm = false
	c, err = k.toCandle()
	if err != nil {
		t.Fatalf("toCandle: %v", err)
	}
	if c.Closed {
		t.Fatalf("unconfirmed kline must stay provisional")
	}
}

func TestWSPushDecodes(t *testing.T) {
	raw := `{"topic":"kline.1.BTCUSDT","type":"snapshot","data":[{"start":1700000000000,"end":1700000059999,"open":"100","high":"101","low":"99","close":"100.5","volume":"42","confirm":false}]}`
	var push wsPush
	if err := json.Unmarshal([]byte(raw), &push); err != nil {
		t.Fatalf("decode push: %v", err)
	}
	if push.Topic != "kline.1.BTCUSDT" || len(push.Data) != 1 {
		t.Fatalf("push = %+v", push)
	}
	if push.Data[0].Start != 1700000000000 {
		t.Fatalf("start = %d", push.Data[0].Start)
	}
}

func klineServer(t *testing.T, list [][]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v5/market/kline" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		resp := map[string]any{
			"retCode": 0,
			"retMsg":  "OK",
			"result":  map[string]any{"symbol": "BTCUSDT", "list": list},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestFetchCandlesSortsAndDropsFormingBar(t *testing.T) {
	// Bybit lists newest first; the newest row is the in-progress bar.
	srv := klineServer(t, [][]string{
		{"1700000120000", "102", "103", "101", "102.5", "30", "0"},
		{"1700000060000", "101", "102", "100", "101.5", "20", "0"},
		{"1700000000000", "100", "101", "99", "100.5", "10", "0"},
	})
	defer srv.Close()

	c := NewRESTClient(srv.URL, 5*time.Second)
	candles, err := c.FetchCandles(context.Background(), "BTCUSDT", "1", 10)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2 (forming bar dropped)", len(candles))
	}
	if candles[0].Time != 1700000000000 || candles[1].Time != 1700000060000 {
		t.Fatalf("candles not oldest-first: %+v", candles)
	}
}

func TestFetchCandlesOnlyFormingBar(t *testing.T) {
	// A single row is the in-progress bar; dropping it leaves no history.
	srv := klineServer(t, [][]string{
		{"1700000120000", "102", "103", "101", "102.5", "30", "0"},
	})
	defer srv.Close()

	c := NewRESTClient(srv.URL, 5*time.Second)
	if _, err := c.FetchCandles(context.Background(), "BTCUSDT", "1", 10); err != ErrEmptyHistory {
		t.Fatalf("err = %v, want ErrEmptyHistory", err)
	}
}

func TestFetchCandlesEmptyHistory(t *testing.T) {
	srv := klineServer(t, [][]string{})
	defer srv.Close()

	c := NewRESTClient(srv.URL, 5*time.Second)
	if _, err := c.FetchCandles(context.Background(), "BTCUSDT", "1", 10); err != ErrEmptyHistory {
		t.Fatalf("err = %v, want ErrEmptyHistory", err)
	}
}

func TestFetchCandlesExchangeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"retCode": 10001, "retMsg": "params error", "result": map[string]any{},
		})
	}))
	defer srv.Close()

	c := NewRESTClient(srv.URL, 5*time.Second)
	if _, err := c.FetchCandles(context.Background(), "BTCUSDT", "1", 10); err == nil {
		t.Fatalf("non-zero retCode accepted")
	}
}
