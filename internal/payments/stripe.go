package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/account"
	"github.com/stripe/stripe-go/v82/accountlink"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"server/internal/domain"
)

// Metadata keys embedded in checkout sessions. The webhook relies on these
// to correlate a payment back to a funding request without a second round
// trip to the processor.
const (
	metaRequestID      = "requestId"
	metaDonorName      = "donorName"
	metaDonorEmail     = "donorEmail"
	metaOriginalAmount = "originalAmount"
)

// StripePort implements Port against Stripe Connect with destination
// charges: the donor pays the grossed-up total, the platform keeps the
// application fee, the rest is transferred to the requester's Express
// account.
type StripePort struct {
	webhookSecret string
}

// NewStripePort configures the global Stripe client with secretKey and
// returns a port verifying webhooks with webhookSecret.
func NewStripePort(secretKey, webhookSecret string) *StripePort {
	stripe.Key = secretKey
	return &StripePort{webhookSecret: webhookSecret}
}

func (p *StripePort) CreateAccount(ctx context.Context, ownerEmail string) (string, error) {
	params := &stripe.AccountParams{
		Type:    stripe.String(string(stripe.AccountTypeExpress)),
		Country: stripe.String("US"),
		Email:   stripe.String(ownerEmail),
	}
	params.Context = ctx
	acct, err := account.New(params)
	if err != nil {
		return "", fmt.Errorf("create payout account: %w", upstreamErr(err))
	}
	return acct.ID, nil
}

func (p *StripePort) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx
	link, err := accountlink.New(params)
	if err != nil {
		return "", fmt.Errorf("create onboarding link: %w", upstreamErr(err))
	}
	return link.URL, nil
}

func (p *StripePort) CreateCheckoutSession(ctx context.Context, cp CheckoutParams) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		CustomerEmail:      stripe.String(cp.Donor.Email),
		SuccessURL:         stripe.String(cp.SuccessURL),
		CancelURL:          stripe.String(cp.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String("usd"),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(cp.ProductName),
					Description: stripe.String(cp.ProductDescription),
				},
				UnitAmount: stripe.Int64(cp.TotalCents),
			},
			Quantity: stripe.Int64(1),
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			ApplicationFeeAmount: stripe.Int64(cp.FeeCents),
			TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripe.String(cp.DestinationAccountID),
			},
		},
		Metadata: map[string]string{
			metaRequestID:      cp.RequestID,
			metaDonorName:      cp.Donor.Name,
			metaDonorEmail:     domain.NormalizeEmail(cp.Donor.Email),
			metaOriginalAmount: strconv.FormatInt(cp.AmountCents, 10),
		},
	}
	params.Context = ctx
	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", upstreamErr(err))
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

func (p *StripePort) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutInfo, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := session.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", upstreamErr(err))
	}
	amount, _ := strconv.ParseInt(s.Metadata[metaOriginalAmount], 10, 64)
	return &CheckoutInfo{
		SessionID:   s.ID,
		RequestID:   s.Metadata[metaRequestID],
		DonorName:   s.Metadata[metaDonorName],
		DonorEmail:  domain.NormalizeEmail(s.Metadata[metaDonorEmail]),
		AmountCents: amount,
	}, nil
}

// ParseEvent verifies the raw payload and maps the Stripe event onto the
// tagged variants. A payment_intent.succeeded event is resolved to its
// checkout session so both confirmation kinds converge on the same
// session-id idempotency key.
func (p *StripePort) ParseEvent(ctx context.Context, payload []byte, sigHeader string) (Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("verify webhook payload: %w", domain.ErrInvalidSignature)
	}

	switch event.Type {
	case "checkout.session.completed":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", domain.ErrMalformedEvent)
		}
		return confirmedFromSession(&s), nil

	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", domain.ErrMalformedEvent)
		}
		s, err := p.sessionForIntent(ctx, pi.ID)
		if err != nil {
			return nil, err
		}
		if s == nil {
			return Unhandled{Kind: string(event.Type)}, nil
		}
		return confirmedFromSession(s), nil

	case "account.updated":
		var acct stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
			return nil, fmt.Errorf("decode account: %w", domain.ErrMalformedEvent)
		}
		active := acct.Capabilities != nil &&
			acct.Capabilities.Transfers == stripe.AccountCapabilityStatusActive
		return AccountCapabilityUpdated{AccountID: acct.ID, TransfersActive: active}, nil

	default:
		return Unhandled{Kind: string(event.Type)}, nil
	}
}

func (p *StripePort) sessionForIntent(ctx context.Context, intentID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionListParams{
		PaymentIntent: stripe.String(intentID),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	iter := session.List(params)
	if iter.Next() {
		return iter.CheckoutSession(), nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list sessions for intent %s: %w", intentID, upstreamErr(err))
	}
	return nil, nil
}

func confirmedFromSession(s *stripe.CheckoutSession) PaymentConfirmed {
	amount, _ := strconv.ParseInt(s.Metadata[metaOriginalAmount], 10, 64)
	return PaymentConfirmed{
		SessionID:   s.ID,
		RequestID:   s.Metadata[metaRequestID],
		DonorName:   s.Metadata[metaDonorName],
		DonorEmail:  domain.NormalizeEmail(s.Metadata[metaDonorEmail]),
		AmountCents: amount,
	}
}

func upstreamErr(err error) error {
	if stripeErr, ok := err.(*stripe.Error); ok {
		return fmt.Errorf("%s: %w", stripeErr.Msg, domain.ErrUpstreamUnavailable)
	}
	return fmt.Errorf("%v: %w", err, domain.ErrUpstreamUnavailable)
}
