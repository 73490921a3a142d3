package repository

import (
	"context"
	"fmt"

	"AlphaPulse/internal/domain/models"
	"AlphaPulse/pkg/kafka"
	applogger "AlphaPulse/pkg/logger"
)

// KafkaAlertPublisher dispatches finalized alerts to the downstream alerts
// topic. Keyed by ticker so consumers see per-ticker ordering.
type KafkaAlertPublisher struct {
	producer *kafka.Producer
	topic    string
	log      *applogger.Logger
}

func NewKafkaAlertPublisher(producer *kafka.Producer, topic string, log *applogger.Logger) *KafkaAlertPublisher {
	return &KafkaAlertPublisher{producer: producer, topic: topic, log: log}
}

func (p *KafkaAlertPublisher) Publish(ctx context.Context, a *models.Alert) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(a.Ticker), a); err != nil {
		return fmt.Errorf("publish alert %s: %w", a.AlertID, err)
	}
	p.log.Info("alert published",
		applogger.String("alert_id", a.AlertID),
		applogger.String("ticker", a.Ticker),
		applogger.Float64("score", a.Score.Value),
		applogger.String("label", string(a.Score.Label)),
	)
	return nil
}

func (p *KafkaAlertPublisher) Close() error {
	return p.producer.Close()
}
