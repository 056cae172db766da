package enums

import "fmt"

// EventStatus is the lifecycle state shared by inbound and outbound event rows.
type EventStatus string

const (
	EventStatusPending    EventStatus = "pending"
	EventStatusProcessing EventStatus = "processing"
	EventStatusProcessed  EventStatus = "processed"
	EventStatusFailed     EventStatus = "failed"
)

var validEventStatuses = []EventStatus{
	EventStatusPending,
	EventStatusProcessing,
	EventStatusProcessed,
	EventStatusFailed,
}

// IsValid reports whether the value matches the canonical event_status enum.
func (s EventStatus) IsValid() bool {
	for _, candidate := range validEventStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the processing lifecycle.
func (s EventStatus) IsTerminal() bool {
	return s == EventStatusProcessed || s == EventStatusFailed
}

// ParseEventStatus converts raw input into EventStatus.
func ParseEventStatus(value string) (EventStatus, error) {
	for _, candidate := range validEventStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event status %q", value)
}
