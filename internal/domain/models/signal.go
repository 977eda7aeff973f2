package models

import "time"

// Action is the discrete trading recommendation.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// TradingSignal is the scorer output. EntryPrice, StopLoss, TakeProfit and
// Sizing are populated only when Action != HOLD.
type TradingSignal struct {
	Action     Action              `json:"action"`
	Confidence float64             `json:"confidence"` // 0..100
	Reason     string              `json:"reason"`
	Regime     Regime              `json:"regime"`
	EntryPrice float64             `json:"entryPrice,omitempty"`
	StopLoss   float64             `json:"stopLoss,omitempty"`
	TakeProfit float64             `json:"takeProfit,omitempty"`
	Sizing     *PositionSizeResult `json:"sizing,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}

// PositionSizeResult carries the risk-sized trade parameters. It is always
// internally consistent: RiskRewardRatio = |takeProfit-entry| / |entry-stopLoss|.
type PositionSizeResult struct {
	PositionSize          float64 `json:"positionSize"`
	RiskAmount            float64 `json:"riskAmount"`
	StopLoss              float64 `json:"stopLoss"`
	TakeProfit            float64 `json:"takeProfit"`
	RiskRewardRatio       float64 `json:"riskRewardRatio"`
	MaxAccountRiskPercent float64 `json:"maxAccountRiskPercent"`
}

// ConnectionStatus reports feed connectivity so consumers can render
// "connecting" vs "warming up" vs "offline" without polling.
type ConnectionStatus struct {
	Connected bool      `json:"connected"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}
