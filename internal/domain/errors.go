package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrMissingDonorEmail   = errors.New("donor email required")
	ErrSelfDonation        = errors.New("self-donation forbidden")
	ErrPayoutNotReady      = errors.New("payout account not ready")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrMalformedEvent      = errors.New("malformed event")
	ErrStorageConflict     = errors.New("storage conflict")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// PayoutNotReadyError carries the onboarding URL the owner needs to finish
// account setup. It unwraps to ErrPayoutNotReady so callers can match it
// with errors.Is.
type PayoutNotReadyError struct {
	RequestID     string
	OnboardingURL string
}

func (e *PayoutNotReadyError) Error() string {
	return fmt.Sprintf("payout account for request %s is not ready to receive funds", e.RequestID)
}

func (e *PayoutNotReadyError) Unwrap() error { return ErrPayoutNotReady }
