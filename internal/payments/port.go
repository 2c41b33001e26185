// Package payments defines the boundary to the external payment processor.
// The core services depend on Port only; the Stripe implementation lives in
// this package behind it.
package payments

import (
	"context"

	"server/internal/domain"
)

// Session is a created checkout session the donor is redirected to.
type Session struct {
	ID  string
	URL string
}

// CheckoutParams describes one checkout session to create. TotalCents is
// charged to the donor; FeeCents of it is routed to the platform and the
// remainder to DestinationAccountID. Metadata carries the correlation
// fields the webhook needs to map the payment back to domain entities.
type CheckoutParams struct {
	RequestID            string
	RequestTitle         string
	DestinationAccountID string
	Donor                domain.Donor
	AmountCents          int64
	TotalCents           int64
	FeeCents             int64
	SuccessURL           string
	CancelURL            string
	ProductName          string
	ProductDescription   string
}

// CheckoutInfo is the read-back view of a checkout session, served to the
// post-payment page. The fields come from the session's correlation
// metadata, not from the local ledger.
type CheckoutInfo struct {
	SessionID   string
	RequestID   string
	DonorName   string
	DonorEmail  string
	AmountCents int64
}

// Port is the capability set the core needs from the processor.
type Port interface {
	// CreateAccount provisions a payout account for a requester and
	// returns its id.
	CreateAccount(ctx context.Context, ownerEmail string) (string, error)

	// CreateOnboardingLink returns a URL where the account owner can
	// complete payout onboarding.
	CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)

	// CreateCheckoutSession creates a hosted checkout session with the
	// configured fee split and metadata.
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*Session, error)

	// GetCheckoutSession reads back one session by id.
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutInfo, error)

	// ParseEvent verifies the webhook payload against sigHeader and parses
	// it into a tagged event variant. Returns domain.ErrInvalidSignature
	// when verification fails.
	ParseEvent(ctx context.Context, payload []byte, sigHeader string) (Event, error)
}
