package payments

// Event is a verified webhook notification, parsed into one of the variants
// below before any business logic runs.
type Event interface {
	isEvent()
}

// PaymentConfirmed reports a completed payment. Fields come from the
// checkout session's metadata; zero values mean the processor delivered an
// event without them and the processor of record must skip it.
type PaymentConfirmed struct {
	SessionID   string
	RequestID   string
	DonorName   string
	DonorEmail  string
	AmountCents int64
}

// AccountCapabilityUpdated reports a change to a payout account's ability
// to receive transfers.
type AccountCapabilityUpdated struct {
	AccountID       string
	TransfersActive bool
}

// Unhandled is any event kind this system does not act on. It is
// acknowledged and dropped; the vendor adds kinds over time.
type Unhandled struct {
	Kind string
}

func (PaymentConfirmed) isEvent()         {}
func (AccountCapabilityUpdated) isEvent() {}
func (Unhandled) isEvent()                {}
