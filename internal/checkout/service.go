// Package checkout validates a donation and opens a hosted checkout
// session with the payment processor. It never writes to the ledger;
// only confirmed webhook events do that.
package checkout

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"server/internal/domain"
	"server/internal/fees"
	"server/internal/payments"
	"server/internal/payout"
)

type Service struct {
	store     domain.RequestStore
	tracker   *payout.Tracker
	port      payments.Port
	rate      fees.Rate
	clientURL string
	log       zerolog.Logger
	printer   *message.Printer
}

func NewService(store domain.RequestStore, tracker *payout.Tracker, port payments.Port,
	rate fees.Rate, clientURL string, log zerolog.Logger) *Service {
	return &Service{
		store:     store,
		tracker:   tracker,
		port:      port,
		rate:      rate,
		clientURL: clientURL,
		log:       log,
		printer:   message.NewPrinter(language.English),
	}
}

// CreateCheckout runs the pre-payment guards and creates a checkout
// session for amountCents toward the given request. The donor is charged
// the grossed-up total so the requester nets exactly amountCents.
//
// When the requester's payout account is not ready, the returned error is
// a *domain.PayoutNotReadyError carrying an onboarding URL.
func (s *Service) CreateCheckout(ctx context.Context, requestID string, amountCents int64, donor domain.Donor) (*payments.Session, error) {
	req, err := s.store.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if amountCents <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	donor.Email = domain.NormalizeEmail(donor.Email)
	// A confirmation without a donor email is dropped on the webhook path,
	// so a session without one would charge money the ledger never records.
	if donor.Email == "" {
		return nil, domain.ErrMissingDonorEmail
	}
	if donor.Name == "" {
		donor.Name = "Anonymous"
	}
	// Re-checked on the webhook path as well; a forged checkout must not
	// slip through either side.
	if donor.Email == domain.NormalizeEmail(req.OwnerEmail) {
		return nil, domain.ErrSelfDonation
	}

	accountID, err := s.tracker.EnsureAccount(ctx, req)
	if err != nil {
		return nil, err
	}
	ready, err := s.tracker.IsReady(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !ready {
		requestURL := s.requestURL(requestID)
		onboardingURL, linkErr := s.port.CreateOnboardingLink(ctx, accountID, requestURL, requestURL)
		if linkErr != nil {
			s.log.Error().Err(linkErr).Str("request_id", requestID).
				Msg("failed to create onboarding link")
		}
		return nil, &domain.PayoutNotReadyError{RequestID: requestID, OnboardingURL: onboardingURL}
	}

	quote, err := fees.QuoteCharge(amountCents, s.rate)
	if err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = "Untitled Request"
	}
	session, err := s.port.CreateCheckoutSession(ctx, payments.CheckoutParams{
		RequestID:            requestID,
		RequestTitle:         title,
		DestinationAccountID: accountID,
		Donor:                donor,
		AmountCents:          amountCents,
		TotalCents:           quote.TotalCents,
		FeeCents:             quote.FeeCents,
		SuccessURL:           s.requestURL(requestID) + "?success=true&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:            s.requestURL(requestID) + "?canceled=true",
		ProductName:          fmt.Sprintf("Donation to: %s", title),
		ProductDescription: s.printer.Sprintf("Donation of $%.2f from %s",
			float64(amountCents)/100, donor.Name),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("request_id", requestID).Str("session_id", session.ID).
		Int64("amount_cents", amountCents).Int64("total_cents", quote.TotalCents).
		Int64("fee_cents", quote.FeeCents).Msg("checkout session created")
	return session, nil
}

func (s *Service) requestURL(requestID string) string {
	return fmt.Sprintf("%s/request/%s", s.clientURL, requestID)
}
