package enums

// NotificationKind categorizes in-app notifications for the web client.
type NotificationKind string

const (
	NotificationContactCreated     NotificationKind = "contact_created"
	NotificationOpportunityCreated NotificationKind = "opportunity_created"
	NotificationOpportunityMoved   NotificationKind = "opportunity_moved"
	NotificationInvoiceIssued      NotificationKind = "invoice_issued"
	NotificationInvoicePaid        NotificationKind = "invoice_paid"
)
