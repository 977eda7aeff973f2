package signal

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"TrendPulse/internal/domain/models"
)

// Component labels, used verbatim in the reason string.
const (
	LabelEMACrossover    = "ema-crossover"
	LabelRSIConfirmation = "rsi-confirmation"
	LabelVolumeSpike     = "volume-spike"
	LabelBollingerTouch  = "bollinger-touch"
)

// Config holds the confluence weights and thresholds.
type Config struct {
	MaxScore         int     // fixed point budget
	MinScore         int     // below this the recommendation is HOLD
	EMACrossPoints   int
	RSIPoints        int
	VolumePoints     int
	BollingerPoints  int
	VolumeSpikeRatio float64 // current volume vs trailing average
	VolumeLookback   int
	BandTouchPercent float64 // distance to a band counted as a touch
}

func (c *Config) applyDefaults() {
	if c.MaxScore <= 0 {
		c.MaxScore = 9
	}
	if c.MinScore <= 0 {
		c.MinScore = 5
	}
	if c.EMACrossPoints <= 0 {
		c.EMACrossPoints = 3
	}
	if c.RSIPoints <= 0 {
		c.RSIPoints = 2
	}
	if c.VolumePoints <= 0 {
		c.VolumePoints = 2
	}
	if c.BollingerPoints <= 0 {
		c.BollingerPoints = 2
	}
	if c.VolumeSpikeRatio <= 0 {
		c.VolumeSpikeRatio = 1.5
	}
	if c.VolumeLookback <= 0 {
		c.VolumeLookback = 20
	}
	if c.BandTouchPercent <= 0 {
		c.BandTouchPercent = 0.5
	}
}

// Input is everything the scorer looks at for one decision.
type Input struct {
	Snapshot models.IndicatorSnapshot
	Previous *models.IndicatorSnapshot // previous bar's snapshot, for crossover detection
	Candles  []models.Candle           // recent closed candles, oldest first
	Regime   models.RegimeAnalysis
	Now      time.Time
}

type component struct {
	label   string
	points  int
	bullish bool
}

// Scorer is a pure confluence evaluator: same input, same signal.
type Scorer struct {
	cfg Config
}

// NewScorer creates a scorer with the given config.
func NewScorer(cfg Config) *Scorer {
	cfg.applyDefaults()
	return &Scorer{cfg: cfg}
}

// Score evaluates the weighted components and returns a trading decision.
// The reason string names every active component; entry price is attached
// iff the action is not HOLD (stop/target are filled in by the sizer).
func (s *Scorer) Score(in Input) models.TradingSignal {
	active := s.evaluate(in)

	score := 0
	bulls, bears := 0, 0
	for _, c := range active {
		score += c.points
		if c.bullish {
			bulls++
		} else {
			bears++
		}
	}

	action := models.ActionHold
	if score >= s.cfg.MinScore {
		switch {
		case bulls > bears:
			action = models.ActionBuy
		case bears > bulls:
			action = models.ActionSell
		}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	sig := models.TradingSignal{
		Action:     action,
		Confidence: 100 * float64(score) / float64(s.cfg.MaxScore),
		Reason:     reason(active, score, s.cfg.MaxScore),
		Regime:     in.Regime.Regime,
		Timestamp:  now,
	}
	if action != models.ActionHold {
		sig.EntryPrice = in.Snapshot.CurrentPrice
	}
	return sig
}

func (s *Scorer) evaluate(in Input) []component {
	var active []component

	if c, ok := s.emaCrossover(in); ok {
		active = append(active, c)
	}
	if c, ok := s.rsiConfirmation(in); ok {
		active = append(active, c)
	}
	if c, ok := s.volumeSpike(in); ok {
		active = append(active, c)
	}
	if c, ok := s.bollingerTouch(in); ok {
		active = append(active, c)
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].points > active[j].points })
	return active
}

// emaCrossover activates on a fast/slow cross since the previous bar.
func (s *Scorer) emaCrossover(in Input) (component, bool) {
	if in.Previous == nil {
		return component{}, false
	}
	prev, cur := in.Previous, in.Snapshot
	switch {
	case prev.EMAFast <= prev.EMASlow && cur.EMAFast > cur.EMASlow:
		return component{label: LabelEMACrossover, points: s.cfg.EMACrossPoints, bullish: true}, true
	case prev.EMAFast >= prev.EMASlow && cur.EMAFast < cur.EMASlow:
		return component{label: LabelEMACrossover, points: s.cfg.EMACrossPoints, bullish: false}, true
	}
	return component{}, false
}

// rsiConfirmation is regime-dependent: extremes mean reversal in ranging
// markets, momentum-band readings confirm a trend.
func (s *Scorer) rsiConfirmation(in Input) (component, bool) {
	rsi := in.Snapshot.RSI
	reg := in.Regime.Regime
	if reg.Trending() {
		if reg.TrendingUp() && rsi > 45 && rsi < 70 {
			return component{label: LabelRSIConfirmation, points: s.cfg.RSIPoints, bullish: true}, true
		}
		if reg.TrendingDown() && rsi > 30 && rsi < 55 {
			return component{label: LabelRSIConfirmation, points: s.cfg.RSIPoints, bullish: false}, true
		}
		return component{}, false
	}
	if rsi < 30 {
		return component{label: LabelRSIConfirmation, points: s.cfg.RSIPoints, bullish: true}, true
	}
	if rsi > 70 {
		return component{label: LabelRSIConfirmation, points: s.cfg.RSIPoints, bullish: false}, true
	}
	return component{}, false
}

// volumeSpike activates when the current bar's volume is well above the
// trailing average; the bar's direction decides the vote.
func (s *Scorer) volumeSpike(in Input) (component, bool) {
	n := len(in.Candles)
	if n < 2 {
		return component{}, false
	}
	last := in.Candles[n-1]
	lb := s.cfg.VolumeLookback
	if lb > n-1 {
		lb = n - 1
	}
	prior := in.Candles[n-1-lb : n-1]
	sum := 0.0
	for _, c := range prior {
		sum += c.Volume
	}
	avg := sum / float64(len(prior))
	if avg <= 0 || last.Volume < s.cfg.VolumeSpikeRatio*avg {
		return component{}, false
	}
	return component{label: LabelVolumeSpike, points: s.cfg.VolumePoints, bullish: last.Close >= last.Open}, true
}

// bollingerTouch activates within BandTouchPercent of a band. A touch is a
// reversal signal in ranging regimes and continuation/weakness in trends.
func (s *Scorer) bollingerTouch(in Input) (component, bool) {
	snap := in.Snapshot
	price := snap.CurrentPrice
	if price <= 0 || snap.BollingerUpper <= 0 {
		return component{}, false
	}
	nearUpper := math.Abs(price-snap.BollingerUpper)/price*100 <= s.cfg.BandTouchPercent
	nearLower := math.Abs(price-snap.BollingerLower)/price*100 <= s.cfg.BandTouchPercent
	if !nearUpper && !nearLower {
		return component{}, false
	}

	reg := in.Regime.Regime
	bullish := nearLower // ranging default: lower band means reversal up
	if reg.Trending() {
		// With-trend touch is continuation; against-trend touch is weakness.
		if reg.TrendingUp() {
			bullish = nearUpper
		} else {
			bullish = !nearLower
		}
	}
	return component{label: LabelBollingerTouch, points: s.cfg.BollingerPoints, bullish: bullish}, true
}

func reason(active []component, score, maxScore int) string {
	if len(active) == 0 {
		return fmt.Sprintf("no active components (0/%d)", maxScore)
	}
	parts := make([]string, 0, len(active))
	for _, c := range active {
		dir := "bearish"
		if c.bullish {
			dir = "bullish"
		}
		parts = append(parts, fmt.Sprintf("%s:%s(+%d)", c.label, dir, c.points))
	}
	return fmt.Sprintf("%s = %d/%d", strings.Join(parts, ", "), score, maxScore)
}
