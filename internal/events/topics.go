package events

// Topic constants for domain events emitted by the platform.
const (
	TopicQuoteCreated    = "quote.created"
	TopicQuoteApproved   = "quote.approved"
	TopicQuoteSettled    = "quote.settled"
	TopicPaymentRecorded = "payment.recorded"
	TopicPaymentVoided   = "payment.voided"
)
