package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TrendPulse/internal/domain/models"
)

type fakeProc struct {
	mu       sync.Mutex
	got      []models.Candle
	failLeft int
}

func (p *fakeProc) Process(ctx context.Context, c *models.Candle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failLeft > 0 {
		p.failLeft--
		return errors.New("store unavailable")
	}
	p.got = append(p.got, *c)
	return nil
}

func (p *fakeProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

type fakeMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{errors: map[string]int{}}
}

func (m *fakeMetrics) RecordMessageSent(sink, symbol string) {}

func (m *fakeMetrics) RecordLastPrice(symbol string, price float64) {}

func (m *fakeMetrics) RecordLatency(op string, seconds float64) {}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func goodCandle(t int64) *models.Candle {
	return &models.Candle{
		Time: t, Open: 100, High: 101, Low: 99, Close: 100,
		Volume: 1, Closed: true,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

func TestEnqueueValidates(t *testing.T) {
	m := newFakeMetrics()
	p := NewArchivePipeline(&fakeProc{}, m)

	if err := p.Enqueue(nil); err == nil {
		t.Fatalf("nil candle accepted")
	}
	bad := goodCandle(60000)
	bad.Close = -1
	if err := p.Enqueue(bad); err == nil {
		t.Fatalf("invalid candle accepted")
	}
	open := goodCandle(60000)
	open.Closed = false
	if err := p.Enqueue(open); err == nil {
		t.Fatalf("unclosed candle accepted")
	}
	if err := p.Enqueue(goodCandle(60000)); err != nil {
		t.Fatalf("valid candle rejected: %v", err)
	}
	if m.errorCount("archive_validate") != 3 {
		t.Fatalf("validate errors = %d, want 3", m.errorCount("archive_validate"))
	}
}

func TestEnqueueNeverBlocksWhenFull(t *testing.T) {
	m := newFakeMetrics()
	p := NewArchivePipeline(&fakeProc{}, m, WithBufferSize(1))

	if err := p.Enqueue(goodCandle(60000)); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := p.Enqueue(goodCandle(120000)); err == nil {
		t.Fatalf("enqueue into full buffer must fail fast")
	}
	if m.errorCount("archive_buffer_full") != 1 {
		t.Fatalf("buffer-full errors = %d, want 1", m.errorCount("archive_buffer_full"))
	}
}

func TestFlusherDrainsBuffer(t *testing.T) {
	proc := &fakeProc{}
	p := NewArchivePipeline(proc, newFakeMetrics())
	p.Start(context.Background())
	defer p.Stop()

	for i := int64(1); i <= 3; i++ {
		if err := p.Enqueue(goodCandle(i * 60000)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	waitFor(t, func() bool { return proc.count() == 3 })
}

func TestFlusherRetriesFailedStore(t *testing.T) {
	proc := &fakeProc{failLeft: 2}
	m := newFakeMetrics()
	p := NewArchivePipeline(proc, m)
	p.Start(context.Background())
	defer p.Stop()

	if err := p.Enqueue(goodCandle(60000)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitFor(t, func() bool { return proc.count() == 1 })
	if m.errorCount("archive_flush") == 0 {
		t.Fatalf("failed stores not recorded")
	}
}

func TestStartAndStopIdempotent(t *testing.T) {
	p := NewArchivePipeline(&fakeProc{}, newFakeMetrics())
	p.Start(context.Background())
	p.Start(context.Background())
	p.Stop()
	p.Stop()
}
