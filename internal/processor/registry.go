package processor

import (
	"context"

	"gorm.io/gorm"

	"github.com/kitlyhq/kitly-backend/pkg/db/models"
)

// Handler applies the business effect of one inbound event type. The
// handler runs inside the transaction that also carries the version bump
// and outbox emit; returning an error rolls all of it back.
type Handler interface {
	Handle(ctx context.Context, tx *gorm.DB, event models.InboundEvent) error
}

// Registry maps inbound event types to their handlers. Types without a
// handler are acknowledged and ignored.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to an event type.
func (r *Registry) Register(eventType string, handler Handler) {
	if eventType == "" || handler == nil {
		return
	}
	r.handlers[eventType] = handler
}

// Resolve returns the handler for the event type, if one is registered.
func (r *Registry) Resolve(eventType string) (Handler, bool) {
	handler, ok := r.handlers[eventType]
	return handler, ok
}
