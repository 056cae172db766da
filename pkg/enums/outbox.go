package enums

import "fmt"

// OutboxAggregateType identifies the aggregate an outbound event describes.
// Values match what downstream consumers already key on.
type OutboxAggregateType string

const (
	AggregateTenant       OutboxAggregateType = "Tenant"
	AggregateMembership   OutboxAggregateType = "Membership"
	AggregateSubscription OutboxAggregateType = "Subscription"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateTenant,
	AggregateMembership,
	AggregateSubscription,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType identifies the business change an outbound event carries.
type OutboxEventType string

const (
	EventEntitlementsChanged OutboxEventType = "EntitlementsChanged"
	EventMembershipChanged   OutboxEventType = "MembershipChanged"
	EventInvoiceRecorded     OutboxEventType = "InvoiceRecorded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventEntitlementsChanged,
	EventMembershipChanged,
	EventInvoiceRecorded,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
