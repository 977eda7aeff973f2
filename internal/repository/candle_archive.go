package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"TrendPulse/internal/domain/models"
	"TrendPulse/internal/domain/repository"
)

// ClickHouseCandleArchive implements CandleArchive on ClickHouse.
type ClickHouseCandleArchive struct {
	db     *sql.DB
	table  string
	symbol string
}

// NewClickHouseCandleArchive creates ClickHouse-backed candle storage.
func NewClickHouseCandleArchive(db *sql.DB, table, symbol string) repository.CandleArchive {
	return &ClickHouseCandleArchive{db: db, table: table, symbol: symbol}
}

func (s *ClickHouseCandleArchive) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

func (s *ClickHouseCandleArchive) Store(ctx context.Context, c *models.Candle) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, symbol, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q,
		time.UnixMilli(c.Time),
		s.symbol,
		c.Open,
		c.High,
		c.Low,
		c.Close,
		c.Volume,
	)
	return err
}

func (s *ClickHouseCandleArchive) StoreBatch(ctx context.Context, cs []*models.Candle) error {
	if len(cs) == 0 {
		return nil
	}
	// Multi-row VALUES insert to reduce round-trips, chunked.
	const chunkSize = 2000
	for start := 0; start < len(cs); start += chunkSize {
		end := start + chunkSize
		if end > len(cs) {
			end = len(cs)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, c := range cs[start:end] {
			if c == nil || c.Time <= 0 {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				time.UnixMilli(c.Time),
				s.symbol,
				c.Open,
				c.High,
				c.Low,
				c.Close,
				c.Volume,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, symbol, open, high, low, close, volume) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseCandleArchive) QueryLatest(ctx context.Context, symbol string, limit int) ([]models.Candle, error) {
	q := fmt.Sprintf("SELECT ts, open, high, low, close, volume FROM %s WHERE symbol = ? ORDER BY ts DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		var ts time.Time
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		c.Time = ts.UnixMilli()
		c.Closed = true
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return candles, nil
}

func (s *ClickHouseCandleArchive) QueryRange(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Candle, error) {
	q := fmt.Sprintf("SELECT ts, open, high, low, close, volume FROM %s WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		var ts time.Time
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		c.Time = ts.UnixMilli()
		c.Closed = true
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return candles, nil
}

func (s *ClickHouseCandleArchive) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseCandleArchive) Close() error {
	return nil // Managed by pkg
}
