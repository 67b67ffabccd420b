// Package payloads holds the typed event bodies stored inside outbox
// envelopes. Payloads are self-contained snapshots; handlers never re-read
// the originating row to interpret them.
package payloads

import "github.com/google/uuid"

// ContactCreated is emitted when a contact row is inserted.
type ContactCreated struct {
	ContactID uuid.UUID `json:"contactId"`
	TenantID  uuid.UUID `json:"tenantId"`
	Name      string    `json:"name"`
	Email     *string   `json:"email,omitempty"`
}

// OpportunityCreated is emitted when a deal card is added to a stage.
type OpportunityCreated struct {
	OpportunityID uuid.UUID `json:"opportunityId"`
	TenantID      uuid.UUID `json:"tenantId"`
	PipelineID    uuid.UUID `json:"pipelineId"`
	StageID       uuid.UUID `json:"stageId"`
	Title         string    `json:"title"`
	Value         string    `json:"value"`
}

// OpportunityStageChanged is emitted when a deal card moves between stages.
type OpportunityStageChanged struct {
	OpportunityID uuid.UUID `json:"opportunityId"`
	TenantID      uuid.UUID `json:"tenantId"`
	PipelineID    uuid.UUID `json:"pipelineId"`
	FromStageID   uuid.UUID `json:"fromStageId"`
	ToStageID     uuid.UUID `json:"toStageId"`
	Title         string    `json:"title"`
}

// InvoiceIssued is emitted when a draft invoice transitions to issued.
type InvoiceIssued struct {
	InvoiceID uuid.UUID `json:"invoiceId"`
	TenantID  uuid.UUID `json:"tenantId"`
	Number    string    `json:"number"`
	Currency  string    `json:"currency"`
	Total     string    `json:"total"`
	ContactID *uuid.UUID `json:"contactId,omitempty"`
}

// InvoicePaid is emitted when a payment is recorded against an invoice.
type InvoicePaid struct {
	InvoiceID uuid.UUID `json:"invoiceId"`
	TenantID  uuid.UUID `json:"tenantId"`
	Number    string    `json:"number"`
	Total     string    `json:"total"`
}
