package regime

import (
	"math"
	"time"

	"TrendPulse/internal/bus"
	"TrendPulse/internal/domain/models"
	"TrendPulse/internal/indicator"
	applogger "TrendPulse/pkg/logger"
	"TrendPulse/pkg/ring"
)

const component = "regime-classifier"

// Config holds the classifier thresholds. The 5-state enum is canonical; a
// simpler 3-state detector is the degenerate configuration where
// StrongTrendStrength is set above 1.
type Config struct {
	ADXPeriod           int
	RSIPeriod           int
	EMAPeriod           int
	VolumeLookback      int
	ADXWeak             float64 // trendStrength normalization floor
	ADXStrong           float64 // trendStrength normalization ceiling
	DIDominance         float64 // +DI must exceed this multiple of -DI (and vice versa)
	StrongTrendStrength float64
	WeakTrendStrength   float64
}

func (c *Config) applyDefaults() {
	if c.ADXPeriod <= 0 {
		c.ADXPeriod = 14
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = 14
	}
	if c.EMAPeriod <= 0 {
		c.EMAPeriod = 21
	}
	if c.VolumeLookback <= 0 {
		c.VolumeLookback = 20
	}
	if c.ADXWeak <= 0 {
		c.ADXWeak = 20
	}
	if c.ADXStrong <= 0 {
		c.ADXStrong = 40
	}
	if c.DIDominance <= 0 {
		c.DIDominance = 1.2
	}
	if c.StrongTrendStrength <= 0 {
		c.StrongTrendStrength = 0.7
	}
	if c.WeakTrendStrength <= 0 {
		c.WeakTrendStrength = 0.4
	}
}

// Classifier is a stateful trend/range detector. It owns independent
// rolling buffers and never shares state with the indicator engine, even
// though both reuse the same math.
type Classifier struct {
	b   *bus.Bus
	log *applogger.Logger
	cfg Config

	candles  *ring.Buffer[models.Candle]
	trWin    *ring.Buffer[float64]
	plusWin  *ring.Buffer[float64]
	minusWin *ring.Buffer[float64]

	prevCandle models.Candle
	hasPrev    bool

	adx    float64
	hasADX bool

	current     models.RegimeAnalysis
	hasCurrent  bool
	regimeSince time.Time

	unsubs []func()
}

// NewClassifier creates the classifier and subscribes it to candle
// messages. Construct it before the indicator engine so regime state is
// current when the engine's snapshot triggers scoring.
func NewClassifier(b *bus.Bus, log *applogger.Logger, cfg Config) *Classifier {
	cfg.applyDefaults()
	capacity := 2 * cfg.ADXPeriod
	if cfg.VolumeLookback > capacity {
		capacity = cfg.VolumeLookback
	}
	if 2*cfg.EMAPeriod > capacity {
		capacity = 2 * cfg.EMAPeriod
	}
	c := &Classifier{
		b:        b,
		log:      log,
		cfg:      cfg,
		candles:  ring.New[models.Candle](capacity),
		trWin:    ring.New[float64](cfg.ADXPeriod),
		plusWin:  ring.New[float64](cfg.ADXPeriod),
		minusWin: ring.New[float64](cfg.ADXPeriod),
	}
	if b != nil {
		c.unsubs = append(c.unsubs,
			b.Register(bus.KindInitialCandles, c.onMessage),
			b.Register(bus.KindNewClosedCandle, c.onMessage),
		)
	}
	return c
}

func (c *Classifier) onMessage(msg bus.Message) {
	switch m := msg.(type) {
	case bus.InitialCandles:
		before := c.current.Regime
		c.reset()
		var last models.RegimeAnalysis
		var ok bool
		for _, cd := range m.Candles {
			if !cd.Closed {
				continue
			}
			if a, ready := c.Update(cd); ready {
				last, ok = a, true
			}
		}
		if ok && last.Regime != before {
			c.publish(last)
		}
	case bus.NewClosedCandle:
		prev := models.Regime("")
		if c.hasCurrent {
			prev = c.current.Regime
		}
		a, ready := c.Update(m.Candle)
		if ready && a.Regime != prev {
			c.publish(a)
		}
	}
}

func (c *Classifier) publish(a models.RegimeAnalysis) {
	if c.log != nil {
		c.log.Info("regime transition",
			applogger.String("regime", string(a.Regime)),
			applogger.Any("confidence", a.Confidence),
			applogger.Any("adx", a.ADX))
	}
	c.b.Send(bus.RegimeUpdated{
		Header:   bus.Header{From: component, Time: a.Timestamp},
		Analysis: a,
	})
}

func (c *Classifier) reset() {
	c.candles.Reset()
	c.trWin.Reset()
	c.plusWin.Reset()
	c.minusWin.Reset()
	c.hasPrev = false
	c.hasADX = false
	c.adx = 0
}

// Update advances the classifier by one bar. It returns false while below
// the minimum history needed for a classification; callers must treat that
// as "wait", not "fail".
func (c *Classifier) Update(cd models.Candle) (models.RegimeAnalysis, bool) {
	if c.hasPrev {
		tr := indicator.TrueRange(cd, c.prevCandle.Close)
		plusDM, minusDM := directionalMovement(cd, c.prevCandle)
		c.trWin.Push(tr)
		c.plusWin.Push(plusDM)
		c.minusWin.Push(minusDM)
	}
	c.candles.Push(cd)
	c.prevCandle = cd
	c.hasPrev = true

	if !c.ready() {
		return models.RegimeAnalysis{}, false
	}

	plusDI, minusDI := c.directionalIndexes()
	dx := 0.0
	if sum := plusDI + minusDI; sum > 0 {
		dx = 100 * math.Abs(plusDI-minusDI) / sum
	}
	// Wilder-style running average, seeded from the first computed DX.
	if !c.hasADX {
		c.adx = dx
		c.hasADX = true
	} else {
		p := float64(c.cfg.ADXPeriod)
		c.adx = (c.adx*(p-1) + dx) / p
	}

	candles := c.candles.Values()
	closes := make([]float64, len(candles))
	vols := make([]float64, len(candles))
	for i, b := range candles {
		closes[i] = b.Close
		vols[i] = b.Volume
	}

	rsi := indicator.RSI(closes, c.cfg.RSIPeriod)
	ema := indicator.EMA(closes, c.cfg.EMAPeriod)
	prevEMA := indicator.EMA(closes[:len(closes)-1], c.cfg.EMAPeriod)
	slope := 0.0
	if prevEMA > 0 {
		slope = (ema - prevEMA) / prevEMA * 100
	}
	volRatio := volumeRatio(vols, c.cfg.VolumeLookback)
	price := cd.Close

	reg := c.classify(plusDI, minusDI, rsi, ema, slope, volRatio, price)

	now := time.Now()
	if !c.hasCurrent || reg != c.current.Regime {
		// A same-regime tick never resets the transition timestamp.
		c.regimeSince = now
	}
	a := models.RegimeAnalysis{
		Regime:      reg,
		Confidence:  c.confidence(volRatio),
		ADX:         c.adx,
		PlusDI:      plusDI,
		MinusDI:     minusDI,
		RSI:         rsi,
		VolumeRatio: volRatio,
		EMASlope:    slope,
		Since:       c.regimeSince,
		Timestamp:   now,
	}
	c.current = a
	c.hasCurrent = true
	return a, true
}

// Current returns the latest classification, if any.
func (c *Classifier) Current() (models.RegimeAnalysis, bool) {
	return c.current, c.hasCurrent
}

// Close detaches the classifier from the bus.
func (c *Classifier) Close() {
	for _, u := range c.unsubs {
		u()
	}
	c.unsubs = nil
}

func (c *Classifier) ready() bool {
	if c.trWin.Len() < c.cfg.ADXPeriod {
		return false
	}
	need := c.cfg.EMAPeriod + 1
	if c.cfg.RSIPeriod+1 > need {
		need = c.cfg.RSIPeriod + 1
	}
	if c.cfg.VolumeLookback > need {
		need = c.cfg.VolumeLookback
	}
	return c.candles.Len() >= need
}

func (c *Classifier) directionalIndexes() (plusDI, minusDI float64) {
	avgTR := indicator.SMA(c.trWin.Values())
	if avgTR <= 0 {
		return 0, 0
	}
	plusDI = 100 * indicator.SMA(c.plusWin.Values()) / avgTR
	minusDI = 100 * indicator.SMA(c.minusWin.Values()) / avgTR
	return plusDI, minusDI
}

func (c *Classifier) classify(plusDI, minusDI, rsi, ema, slope, volRatio, price float64) models.Regime {
	strength := 0.5*normalize(c.adx, c.cfg.ADXWeak, c.cfg.ADXStrong) +
		0.3*normalize(volRatio, 0.8, 1.3) +
		0.2*normalize(math.Abs(slope), 0, 0.5)
	strength = clamp(strength, 0, 1)

	up := plusDI > c.cfg.DIDominance*minusDI
	down := minusDI > c.cfg.DIDominance*plusDI

	// Both slope and price-vs-EMA near zero means there is nothing to trend.
	flat := math.Abs(slope) < 0.05 && ema > 0 && math.Abs(price-ema)/ema*100 < 0.1
	if flat || (!up && !down) {
		return models.RegimeRanging
	}

	if up {
		rsiOK := rsi > 45 && rsi < 70
		priceOK := price > ema
		switch {
		case strength > c.cfg.StrongTrendStrength && rsiOK && priceOK:
			return models.RegimeStrongTrendUp
		case strength > c.cfg.WeakTrendStrength && (rsiOK || priceOK):
			return models.RegimeWeakTrendUp
		}
		return models.RegimeRanging
	}

	rsiOK := rsi > 30 && rsi < 55
	priceOK := price < ema
	switch {
	case strength > c.cfg.StrongTrendStrength && rsiOK && priceOK:
		return models.RegimeStrongTrendDown
	case strength > c.cfg.WeakTrendStrength && (rsiOK || priceOK):
		return models.RegimeWeakTrendDown
	}
	return models.RegimeRanging
}

// confidence is a display score, distinct from the signal scorer's
// confidence: anchored at 50, pulled by ADX, nudged by volume extremes.
func (c *Classifier) confidence(volRatio float64) float64 {
	conf := 50 + (c.adx-25)*0.8
	if volRatio > 1.3 {
		conf += 10
	} else if volRatio < 0.8 {
		conf -= 10
	}
	return clamp(conf, 10, 95)
}

func directionalMovement(cur, prev models.Candle) (plusDM, minusDM float64) {
	upMove := cur.High - prev.High
	downMove := prev.Low - cur.Low
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}
	return plusDM, minusDM
}

func volumeRatio(vols []float64, lookback int) float64 {
	if len(vols) < 2 {
		return 1
	}
	n := lookback - 1
	if n > len(vols)-1 {
		n = len(vols) - 1
	}
	prior := vols[len(vols)-1-n : len(vols)-1]
	avg := indicator.SMA(prior)
	if avg <= 0 {
		return 1
	}
	return vols[len(vols)-1] / avg
}

func normalize(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return clamp((v-lo)/(hi-lo), 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
