package sink

import (
	"context"
	"errors"
	"time"

	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
	"github.com/kitlyhq/kitly-backend/pkg/outbox/registry"
)

// LogSink writes delivered events to the structured log. It is the default
// destination when no broker is configured.
type LogSink struct {
	logg *logger.Logger
}

func NewLogSink(logg *logger.Logger) (*LogSink, error) {
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &LogSink{logg: logg}, nil
}

func (s *LogSink) Deliver(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_id":       resolved.Envelope.EventID,
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"occurred_at":    resolved.Envelope.OccurredAt.Format(time.RFC3339Nano),
		"topic":          resolved.Descriptor.Topic,
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event delivered")
	return nil
}
