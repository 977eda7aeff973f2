package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func echoWSServer(t *testing.T) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

// Each connect/Read/Close cycle must tear down both of its goroutines;
// reconnect sessions may not accumulate ping writers on the socket.
func TestReadSessionsLeaveNoGoroutines(t *testing.T) {
	srv := echoWSServer(t)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx := context.Background()
	c := NewWSClient(url, 5*time.Millisecond, nil)

	before := runtime.NumGoroutine()
	for i := 0; i < 5; i++ {
		if err := c.Connect(ctx); err != nil {
			t.Fatalf("connect %d: %v", i, err)
		}
		candles, errs := c.Read(ctx)
		if err := c.Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
		for range candles {
		}
		for range errs {
		}
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("goroutines leaked across sessions: before=%d after=%d",
		before, runtime.NumGoroutine())
}

func TestCloseStopsPingLoopMidSession(t *testing.T) {
	srv := echoWSServer(t)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx := context.Background()
	c := NewWSClient(url, 5*time.Millisecond, nil)
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	candles, errs := c.Read(ctx)

	// Let the ping loop fire at least once against the live conn.
	time.Sleep(20 * time.Millisecond)
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	done := make(chan struct{})
	go func() {
		for range candles {
		}
		for range errs {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("read session did not end after Close")
	}
	if c.IsConnected() {
		t.Fatalf("client still reports connected after Close")
	}
}
