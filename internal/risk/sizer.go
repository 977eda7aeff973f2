package risk

import (
	"math"

	"TrendPulse/internal/domain/models"
	"TrendPulse/internal/indicator"
)

// Config holds the risk model parameters.
type Config struct {
	BaseRiskPercent     float64 // fraction of account risked at 1x multipliers
	ATRPeriod           int
	ATRStopMultiple     float64
	MinRewardRisk       float64
	FallbackStopPercent float64 // of price, when ATR is unavailable
	MaxPositionFraction float64 // of account balance, validation bound
}

func (c *Config) applyDefaults() {
	if c.BaseRiskPercent <= 0 {
		c.BaseRiskPercent = 0.01
	}
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = 14
	}
	if c.ATRStopMultiple <= 0 {
		c.ATRStopMultiple = 2.5
	}
	if c.MinRewardRisk <= 0 {
		c.MinRewardRisk = 2.0
	}
	if c.FallbackStopPercent <= 0 {
		c.FallbackStopPercent = 0.02
	}
	if c.MaxPositionFraction <= 0 {
		c.MaxPositionFraction = 0.25
	}
}

// Input is one sizing request.
type Input struct {
	AccountBalance float64
	CurrentPrice   float64
	Direction      models.Action // BUY or SELL
	Regime         models.Regime
	Confidence     float64 // scorer confidence, 0..100
	Candles        []models.Candle
}

// Sizer computes stop-loss, take-profit and position size using a
// volatility-scaled risk model.
type Sizer struct {
	cfg Config
}

// NewSizer creates a sizer with the given config.
func NewSizer(cfg Config) *Sizer {
	cfg.applyDefaults()
	return &Sizer{cfg: cfg}
}

// Size computes trade parameters for a non-HOLD decision. When ATR cannot
// be computed (or is non-positive) it falls back to a fixed
// percent-of-price stop instead of failing.
func (s *Sizer) Size(in Input) models.PositionSizeResult {
	stopDistance := 0.0
	if atr := indicator.ATR(in.Candles, s.cfg.ATRPeriod); atr > 0 {
		stopDistance = atr * s.cfg.ATRStopMultiple
	} else {
		stopDistance = in.CurrentPrice * s.cfg.FallbackStopPercent
	}

	riskPercent := s.cfg.BaseRiskPercent * regimeMultiplier(in.Regime) * confidenceMultiplier(in.Confidence)
	riskAmount := in.AccountBalance * riskPercent
	positionSize := 0.0
	if stopDistance > 0 {
		positionSize = riskAmount / stopDistance
	}

	rewardDistance := stopDistance * s.cfg.MinRewardRisk
	var stop, target float64
	if in.Direction == models.ActionSell {
		stop = in.CurrentPrice + stopDistance
		target = in.CurrentPrice - rewardDistance
	} else {
		stop = in.CurrentPrice - stopDistance
		target = in.CurrentPrice + rewardDistance
	}

	rr := 0.0
	if d := math.Abs(in.CurrentPrice - stop); d > 0 {
		rr = math.Abs(target-in.CurrentPrice) / d
	}

	return models.PositionSizeResult{
		PositionSize:          positionSize,
		RiskAmount:            riskAmount,
		StopLoss:              stop,
		TakeProfit:            target,
		RiskRewardRatio:       rr,
		MaxAccountRiskPercent: riskPercent * 100,
	}
}

// Validate checks a sizing result against the account limits. A false
// result means "do not execute", not an error: the caller drops the trade
// and carries on.
func (s *Sizer) Validate(res models.PositionSizeResult, in Input) (bool, string) {
	if res.PositionSize <= 0 {
		return false, "non-positive position size"
	}
	if res.RiskRewardRatio < s.cfg.MinRewardRisk-1e-9 {
		return false, "reward:risk below minimum"
	}
	if res.PositionSize*in.CurrentPrice > in.AccountBalance*s.cfg.MaxPositionFraction {
		return false, "position value exceeds max account fraction"
	}
	return true, ""
}

func regimeMultiplier(r models.Regime) float64 {
	switch r {
	case models.RegimeStrongTrendUp, models.RegimeStrongTrendDown:
		return 1.5
	case models.RegimeWeakTrendUp, models.RegimeWeakTrendDown:
		return 1.0
	default:
		return 0.5
	}
}

func confidenceMultiplier(confidence float64) float64 {
	switch {
	case confidence >= 80:
		return 1.2
	case confidence >= 60:
		return 1.0
	case confidence >= 40:
		return 0.8
	default:
		return 0.5
	}
}
