package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"AlphaPulse/internal/domain/models"
	applogger "AlphaPulse/pkg/logger"
)

// EventsHandler adapts the pipeline to the Kafka consumer: one normalized
// event per message, JSON-encoded by the ingestion tier.
type EventsHandler struct {
	topic    string
	pipeline *Pipeline
	log      *applogger.Logger
}

func NewEventsHandler(topic string, pipeline *Pipeline, log *applogger.Logger) *EventsHandler {
	return &EventsHandler{topic: topic, pipeline: pipeline, log: log}
}

func (h *EventsHandler) Topic() string { return h.topic }

// Handle decodes and processes one event. A decode failure is permanent, so
// it is logged and swallowed rather than bounced through the retry path.
func (h *EventsHandler) Handle(ctx context.Context, payload []byte) error {
	var event models.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		h.log.Error("undecodable event message",
			applogger.Int("bytes", len(payload)),
			applogger.Error(err),
		)
		return nil
	}
	if err := h.pipeline.Handle(ctx, &event); err != nil {
		return fmt.Errorf("handle event %s: %w", event.CanonicalKey, err)
	}
	return nil
}
