package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TrendPulse/internal/domain/models"
	domrepo "TrendPulse/internal/domain/repository"
)

// Proc is the minimal downstream interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, c *models.Candle) error
}

// ArchivePipeline sits between the bus and the candle archive. Bus
// handlers must not block, so Enqueue only validates and buffers; a
// background flusher drains the buffer into the archive with exponential
// backoff when the store is unavailable.
type ArchivePipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	bufCh   chan *models.Candle
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex

	bufDepthGauge func(int)
}

type PipelineOption func(*ArchivePipeline)

// WithBufferSize sets the buffer capacity used while downstream is
// unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *ArchivePipeline) {
		if n > 0 {
			p.bufCh = make(chan *models.Candle, n)
		}
	}
}

// NewArchivePipeline creates a pipeline in front of proc.
func NewArchivePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *ArchivePipeline {
	p := &ArchivePipeline{
		proc:    proc,
		metrics: metrics,
		bufCh:   make(chan *models.Candle, 1000),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufDepthGauge = func(n int) { p.metrics.RecordLatency("archive_buffer_depth", float64(n)) }
	return p
}

// Start launches background flushing of buffered candles.
func (p *ArchivePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case c := <-p.bufCh:
				if c == nil {
					continue
				}
				if err := p.proc.Process(ctx, c); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("archive_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- c:
					default:
						p.metrics.RecordError("archive_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
					p.bufDepthGauge(len(p.bufCh))
				}
			}
		}
	}()
}

// Stop stops the background flushing. Candles still buffered are lost;
// the archive is a convenience store, not the source of truth.
func (p *ArchivePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Enqueue validates and buffers one candle without blocking.
func (p *ArchivePipeline) Enqueue(c *models.Candle) error {
	if err := validateCandle(c); err != nil {
		p.metrics.RecordError("archive_validate")
		return err
	}
	select {
	case p.bufCh <- c:
		p.bufDepthGauge(len(p.bufCh))
		return nil
	default:
		p.metrics.RecordError("archive_buffer_full")
		return fmt.Errorf("archive buffer full")
	}
}

func validateCandle(c *models.Candle) error {
	if c == nil {
		return fmt.Errorf("candle nil")
	}
	if !c.Valid() {
		return fmt.Errorf("candle invalid at %d", c.Time)
	}
	if !c.Closed {
		return fmt.Errorf("candle not closed at %d", c.Time)
	}
	return nil
}
