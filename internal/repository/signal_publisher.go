package repository

import (
	"context"

	"TrendPulse/internal/domain/models"
	"TrendPulse/internal/domain/repository"
	pkgkafka "TrendPulse/pkg/kafka"
)

// KafkaSignalPublisher implements SignalSink on Kafka.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	symbol   string
}

// NewKafkaSignalPublisher creates a Kafka-backed signal sink. The symbol
// keys the messages so one symbol always lands on one partition.
func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic, symbol string) repository.SignalSink {
	return &KafkaSignalPublisher{producer: producer, topic: topic, symbol: symbol}
}

func (p *KafkaSignalPublisher) Publish(ctx context.Context, s *models.TradingSignal) error {
	return p.producer.Publish(ctx, p.topic, []byte(p.symbol), map[string]interface{}{
		"symbol":     p.symbol,
		"action":     s.Action,
		"confidence": s.Confidence,
		"reason":     s.Reason,
		"regime":     s.Regime,
		"entry":      s.EntryPrice,
		"stopLoss":   s.StopLoss,
		"takeProfit": s.TakeProfit,
		"sizing":     s.Sizing,
		"ts":         s.Timestamp.UnixMilli(),
	})
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
