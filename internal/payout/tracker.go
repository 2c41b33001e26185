// Package payout tracks whether a requester's external payout account can
// receive transferred funds. State moves none -> pending -> ready, driven
// by account provisioning and by capability notifications from the
// processor; client-asserted state is never trusted.
package payout

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/payments"
)

type Tracker struct {
	store domain.RequestStore
	port  payments.Port
	log   zerolog.Logger
}

func NewTracker(store domain.RequestStore, port payments.Port, log zerolog.Logger) *Tracker {
	return &Tracker{store: store, port: port, log: log}
}

// EnsureAccount returns the request's payout account id, provisioning one
// through the processor when none exists yet. Provisioning moves the state
// to pending; readiness still requires a capability notification.
func (t *Tracker) EnsureAccount(ctx context.Context, req *domain.FundingRequest) (string, error) {
	if req.PayoutAccountID != "" {
		return req.PayoutAccountID, nil
	}
	accountID, err := t.port.CreateAccount(ctx, domain.NormalizeEmail(req.OwnerEmail))
	if err != nil {
		return "", err
	}
	if err := t.store.SetPayoutAccount(ctx, req.ID, accountID); err != nil {
		return "", fmt.Errorf("persist payout account %s: %w", accountID, err)
	}
	req.PayoutAccountID = accountID
	req.PayoutState = domain.PayoutPending
	t.log.Info().Str("request_id", req.ID).Str("account_id", accountID).
		Msg("provisioned payout account")
	return accountID, nil
}

// IsReady reports whether the request's payout account can receive funds.
func (t *Tracker) IsReady(ctx context.Context, requestID string) (bool, error) {
	req, err := t.store.GetByID(ctx, requestID)
	if err != nil {
		return false, err
	}
	return req.PayoutState == domain.PayoutReady, nil
}

// MarkReady transitions the request to ready. Idempotent.
func (t *Tracker) MarkReady(ctx context.Context, requestID string) error {
	return t.store.TransitionReadiness(ctx, requestID, domain.PayoutReady)
}

// Apply records a capability notification for an external account. Ready is
// not one-shot: a later notification reporting transfers inactive moves the
// account back to pending. Unknown accounts are ignored.
func (t *Tracker) Apply(ctx context.Context, accountID string, transfersActive bool) error {
	req, err := t.store.GetByPayoutAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			t.log.Warn().Str("account_id", accountID).
				Msg("capability update for unknown payout account")
			return nil
		}
		return err
	}

	state := domain.PayoutPending
	if transfersActive {
		state = domain.PayoutReady
	}
	if req.PayoutState == state {
		return nil
	}
	if err := t.store.TransitionReadiness(ctx, req.ID, state); err != nil {
		return err
	}
	t.log.Info().Str("request_id", req.ID).Str("account_id", accountID).
		Str("state", string(state)).Msg("payout readiness updated")
	return nil
}

// OnboardingLink returns a fresh account-onboarding URL for the request's
// existing payout account, for the owner-facing remediation flow.
func (t *Tracker) OnboardingLink(ctx context.Context, requestID, refreshURL, returnURL string) (string, error) {
	req, err := t.store.GetByID(ctx, requestID)
	if err != nil {
		return "", err
	}
	if req.PayoutAccountID == "" {
		return "", domain.ErrPayoutNotReady
	}
	return t.port.CreateOnboardingLink(ctx, req.PayoutAccountID, refreshURL, returnURL)
}
