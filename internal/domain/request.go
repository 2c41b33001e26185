package domain

import (
	"strings"
	"time"
)

// PayoutState tracks whether a requester can receive transferred funds.
type PayoutState string

const (
	PayoutNone    PayoutState = "none"
	PayoutPending PayoutState = "pending"
	PayoutReady   PayoutState = "ready"
)

// DonationEntry is one confirmed payment appended to a request's ledger.
// SessionID is the processor-issued checkout session id and acts as the
// idempotency key: at most one entry per session id per request.
type DonationEntry struct {
	SessionID   string
	DonorName   string
	DonorEmail  string
	AmountCents int64
	DonatedAt   time.Time
}

// FundingRequest is a funding need with its embedded donation ledger.
// AmountRaisedCents and DonorCount are derived from Donations and must
// never be maintained as free-running counters.
type FundingRequest struct {
	ID              string
	Title           string
	OwnerName       string
	OwnerEmail      string
	GoalCents       int64
	Donations       []DonationEntry
	PayoutAccountID string
	PayoutState     PayoutState

	AmountRaisedCents int64
	DonorCount        int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Donor identifies the paying party on a checkout.
type Donor struct {
	Name  string
	Email string
}

// NormalizeEmail lowercases and trims an email for identity comparison.
// Self-donation checks and donor-history matching both go through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DonorDonation is a single donation joined with its request, as returned
// by donor-history reads.
type DonorDonation struct {
	RequestID    string
	RequestTitle string
	GoalCents    int64
	AmountCents  int64
	DonorName    string
	DonatedAt    time.Time
}
