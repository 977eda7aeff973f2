package usecase

import (
	"time"

	"TrendPulse/internal/bus"
	"TrendPulse/internal/domain/models"
	drepo "TrendPulse/internal/domain/repository"
	"TrendPulse/internal/indicator"
	"TrendPulse/internal/regime"
	"TrendPulse/internal/risk"
	"TrendPulse/internal/signal"
	applogger "TrendPulse/pkg/logger"
)

const pipelineComponent = "signal-pipeline"

// PipelineConfig holds the evaluation parameters not owned by a single
// analytic component.
type PipelineConfig struct {
	Symbol         string
	AccountBalance float64
}

// Pipeline wires the analytic chain: candle messages feed the regime
// classifier and the indicator engine; every consolidated snapshot is
// scored against the current regime and, for actionable decisions, sized
// before the signal is published.
type Pipeline struct {
	b          *bus.Bus
	classifier *regime.Classifier
	engine     *indicator.Engine
	scorer     *signal.Scorer
	sizer      *risk.Sizer
	metrics    drepo.Metrics
	log        *applogger.Logger
	cfg        PipelineConfig

	prev   *models.IndicatorSnapshot
	unsubs []func()
}

// NewPipeline constructs the full analytic chain on the given bus.
// Registration order matters: the classifier subscribes before the engine
// so its regime state already reflects a candle by the time the engine's
// snapshot for that candle arrives here.
func NewPipeline(
	b *bus.Bus,
	metrics drepo.Metrics,
	log *applogger.Logger,
	cfg PipelineConfig,
	regimeCfg regime.Config,
	indicatorCfg indicator.Config,
	scorerCfg signal.Config,
	riskCfg risk.Config,
) *Pipeline {
	p := &Pipeline{
		b:          b,
		classifier: regime.NewClassifier(b, log, regimeCfg),
		metrics:    metrics,
		log:        log,
		cfg:        cfg,
		scorer:     signal.NewScorer(scorerCfg),
		sizer:      risk.NewSizer(riskCfg),
	}
	p.engine = indicator.NewEngine(b, log, indicatorCfg)
	p.unsubs = append(p.unsubs,
		b.Register(bus.KindIndicatorsReady, p.onSnapshot),
		b.Register(bus.KindInitialCandles, p.onReplace),
	)
	return p
}

// Classifier exposes the regime classifier for read-only queries.
func (p *Pipeline) Classifier() *regime.Classifier { return p.classifier }

// Engine exposes the indicator engine for read-only queries.
func (p *Pipeline) Engine() *indicator.Engine { return p.engine }

func (p *Pipeline) onReplace(bus.Message) {
	// A full-state candle replace invalidates the crossover baseline.
	p.prev = nil
}

func (p *Pipeline) onSnapshot(msg bus.Message) {
	m, ok := msg.(bus.IndicatorsReady)
	if !ok {
		return
	}
	start := time.Now()
	snap := m.Snapshot

	analysis, ok := p.classifier.Current()
	if !ok {
		// Indicators ready but regime still warming up; keep the
		// baseline moving so the first scored bar sees a real previous.
		p.setPrev(snap)
		return
	}

	sig := p.scorer.Score(signal.Input{
		Snapshot: snap,
		Previous: p.prev,
		Candles:  p.engine.History(),
		Regime:   analysis,
		Now:      snap.Timestamp,
	})
	p.setPrev(snap)

	if sig.Action != models.ActionHold {
		in := risk.Input{
			AccountBalance: p.cfg.AccountBalance,
			CurrentPrice:   snap.CurrentPrice,
			Direction:      sig.Action,
			Regime:         analysis.Regime,
			Confidence:     sig.Confidence,
			Candles:        p.engine.History(),
		}
		res := p.sizer.Size(in)
		if ok, why := p.sizer.Validate(res, in); !ok {
			if p.log != nil {
				p.log.Warn("sizing rejected, downgrading to HOLD",
					applogger.String("action", string(sig.Action)),
					applogger.String("why", why))
			}
			if p.metrics != nil {
				p.metrics.RecordError("sizing_rejected")
			}
			sig.Action = models.ActionHold
			sig.Reason += "; not executable: " + why
			sig.EntryPrice = 0
		} else {
			sig.StopLoss = res.StopLoss
			sig.TakeProfit = res.TakeProfit
			sig.Sizing = &res
		}
	}

	p.b.Send(bus.NewSignal{
		Header: bus.Header{From: pipelineComponent, Time: sig.Timestamp},
		Signal: sig,
	})
	if p.log != nil {
		p.log.Info("signal evaluated",
			applogger.String("action", string(sig.Action)),
			applogger.Any("confidence", sig.Confidence),
			applogger.String("regime", string(analysis.Regime)))
	}
	if p.metrics != nil {
		p.metrics.RecordLatency("signal_eval", time.Since(start).Seconds())
	}
}

func (p *Pipeline) setPrev(snap models.IndicatorSnapshot) {
	cp := snap
	p.prev = &cp
}

// Close detaches the pipeline and its components from the bus.
func (p *Pipeline) Close() {
	for _, u := range p.unsubs {
		u()
	}
	p.unsubs = nil
	p.engine.Close()
	p.classifier.Close()
}
