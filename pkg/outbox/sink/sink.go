package sink

import (
	"context"

	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	"github.com/kitlyhq/kitly-backend/pkg/outbox/registry"
)

// Sink delivers a resolved outbox row to its destination. Implementations
// must be safe to call from a single publisher loop; retry bookkeeping is
// the caller's job.
type Sink interface {
	Deliver(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error
}
