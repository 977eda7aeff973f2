package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"TrendPulse/internal/domain/models"
	drepo "TrendPulse/internal/domain/repository"
	applogger "TrendPulse/pkg/logger"

	"github.com/gorilla/websocket"
)

// WSClient implements a LiveStream backed by the Bybit v5 public kline
// stream.
type WSClient struct {
	url          string
	pingInterval time.Duration
	log          *applogger.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	connected  bool
	topic      string
	readCancel context.CancelFunc
}

// NewWSClient creates a live kline stream client.
func NewWSClient(url string, pingInterval time.Duration, log *applogger.Logger) *WSClient {
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	return &WSClient{url: url, pingInterval: pingInterval, log: log}
}

// Connect establishes the WebSocket connection.
func (c *WSClient) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("ws connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	if c.log != nil {
		c.log.Info("ws connected", applogger.String("url", c.url))
	}
	return nil
}

// Subscribe subscribes to the kline topic for the symbol and interval.
func (c *WSClient) Subscribe(ctx context.Context, symbol, interval string) error {
	c.mu.Lock()
	conn := c.conn
	c.topic = fmt.Sprintf("kline.%s.%s", interval, symbol)
	topic := c.topic
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("ws not connected")
	}
	sub := map[string]interface{}{"op": "subscribe", "args": []string{topic}}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	if c.log != nil {
		c.log.Info("ws subscribed", applogger.String("topic", topic))
	}
	return nil
}

// Read streams candles and errors. A value on the error channel means the
// connection is gone; both channels are closed afterwards. The ping loop
// is scoped to this call: it stops when the read loop exits or Close is
// called, so per-session reads never accumulate writers on the socket.
func (c *WSClient) Read(ctx context.Context) (<-chan models.Candle, <-chan error) {
	candles := make(chan models.Candle, 256)
	errs := make(chan error, 1)

	rctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.readCancel = cancel
	c.mu.Unlock()

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-rctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn != nil {
					_ = conn.WriteJSON(map[string]string{"op": "ping"})
				}
			}
		}
	}()

	// read loop
	go func() {
		defer cancel()
		defer close(candles)
		defer close(errs)
		for {
			select {
			case <-rctx.Done():
				return
			default:
			}
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				errs <- fmt.Errorf("ws conn nil")
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				errs <- fmt.Errorf("ws read: %w", err)
				return
			}
			var push wsPush
			if err := json.Unmarshal(b, &push); err != nil {
				// op acks and pong frames land here; not klines, skip
				continue
			}
			if !strings.HasPrefix(push.Topic, "kline.") {
				continue
			}
			for _, k := range push.Data {
				cd, err := k.toCandle()
				if err != nil {
					if c.log != nil {
						c.log.Warn("ws kline parse", applogger.Error(err))
					}
					continue
				}
				select {
				case candles <- cd:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return candles, errs
}

// Close stops the current read session and closes the connection.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.readCancel != nil {
		c.readCancel()
		c.readCancel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (c *WSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

var _ drepo.LiveStream = (*WSClient)(nil)
