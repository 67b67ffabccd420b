package enums

import "fmt"

// OutboxStatus tracks an event through its delivery lifecycle.
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusCompleted  OutboxStatus = "completed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s OutboxStatus) IsTerminal() bool {
	return s == OutboxStatusCompleted || s == OutboxStatusFailed
}

// OutboxEventType maps to the event_type column on outbox_events.
type OutboxEventType string

const (
	EventContactCreated          OutboxEventType = "contact.created"
	EventOpportunityCreated      OutboxEventType = "opportunity.created"
	EventOpportunityStageChanged OutboxEventType = "opportunity.stage_changed"
	EventInvoiceIssued           OutboxEventType = "invoice.issued"
	EventInvoicePaid             OutboxEventType = "invoice.paid"
)

var validOutboxEventTypes = []OutboxEventType{
	EventContactCreated,
	EventOpportunityCreated,
	EventOpportunityStageChanged,
	EventInvoiceIssued,
	EventInvoicePaid,
}

// IsValid reports whether the value is a registered event type.
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

// OutboxEntityType identifies the domain object an event refers to. The
// reference is soft; no foreign key is enforced.
type OutboxEntityType string

const (
	EntityContact     OutboxEntityType = "contact"
	EntityOpportunity OutboxEntityType = "opportunity"
	EntityInvoice     OutboxEntityType = "invoice"
)

var validOutboxEntityTypes = []OutboxEntityType{
	EntityContact,
	EntityOpportunity,
	EntityInvoice,
}

// IsValid reports whether the value is a known entity type.
func (e OutboxEntityType) IsValid() bool {
	for _, candidate := range validOutboxEntityTypes {
		if candidate == e {
			return true
		}
	}
	return false
}
