// Package webhook turns the processor's at-least-once event stream into
// exactly-once ledger mutations. Signature failures are fatal for the
// delivery; malformed or duplicate events are acknowledged and dropped so
// the vendor stops redelivering them; storage failures surface so the
// vendor retries a write that is idempotent by session id.
package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/payments"
	"server/internal/payout"
)

// appendAttempts bounds internal retries on a storage conflict before the
// failure is surfaced for vendor-side redelivery.
const appendAttempts = 3

type Processor struct {
	store   domain.RequestStore
	tracker *payout.Tracker
	port    payments.Port
	log     zerolog.Logger
	now     func() time.Time
}

func NewProcessor(store domain.RequestStore, tracker *payout.Tracker, port payments.Port, log zerolog.Logger) *Processor {
	return &Processor{store: store, tracker: tracker, port: port, log: log, now: time.Now}
}

// Handle verifies and applies one raw webhook delivery. A nil return means
// the delivery is settled and must be acknowledged, including intentional
// no-ops. Errors matching domain.ErrInvalidSignature mean the payload was
// rejected unprocessed; any other error is transient and retry-safe.
func (p *Processor) Handle(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := p.port.ParseEvent(ctx, payload, sigHeader)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedEvent) {
			p.log.Warn().Err(err).Msg("dropping undecodable event")
			return nil
		}
		return err
	}

	switch ev := event.(type) {
	case payments.PaymentConfirmed:
		return p.applyPayment(ctx, ev)
	case payments.AccountCapabilityUpdated:
		return p.tracker.Apply(ctx, ev.AccountID, ev.TransfersActive)
	case payments.Unhandled:
		p.log.Debug().Str("kind", ev.Kind).Msg("ignoring unhandled event kind")
		return nil
	default:
		return nil
	}
}

func (p *Processor) applyPayment(ctx context.Context, ev payments.PaymentConfirmed) error {
	if ev.SessionID == "" || ev.RequestID == "" || ev.DonorEmail == "" || ev.AmountCents <= 0 {
		p.log.Warn().Str("session_id", ev.SessionID).Str("request_id", ev.RequestID).
			Str("donor_email", ev.DonorEmail).Int64("amount_cents", ev.AmountCents).
			Msg("dropping payment confirmation with missing fields")
		return nil
	}

	req, err := p.store.GetByID(ctx, ev.RequestID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			p.log.Warn().Str("request_id", ev.RequestID).
				Msg("payment confirmation for unknown request")
			return nil
		}
		return err
	}

	if domain.NormalizeEmail(ev.DonorEmail) == domain.NormalizeEmail(req.OwnerEmail) {
		p.log.Warn().Str("request_id", ev.RequestID).Str("donor_email", ev.DonorEmail).
			Msg("ignoring self-donation")
		return nil
	}

	entry := domain.DonationEntry{
		SessionID:   ev.SessionID,
		DonorName:   ev.DonorName,
		DonorEmail:  domain.NormalizeEmail(ev.DonorEmail),
		AmountCents: ev.AmountCents,
		DonatedAt:   p.now(),
	}
	if entry.DonorName == "" {
		entry.DonorName = "Anonymous"
	}

	var applied bool
	for attempt := 0; ; attempt++ {
		applied, err = p.store.AppendDonationIfAbsent(ctx, ev.RequestID, entry)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrNotFound) {
			p.log.Warn().Str("request_id", ev.RequestID).
				Msg("request disappeared before donation append")
			return nil
		}
		if !errors.Is(err, domain.ErrStorageConflict) || attempt == appendAttempts-1 {
			return err
		}
	}

	if !applied {
		p.log.Info().Str("session_id", ev.SessionID).Str("request_id", ev.RequestID).
			Msg("duplicate payment confirmation ignored")
		return nil
	}
	p.log.Info().Str("session_id", ev.SessionID).Str("request_id", ev.RequestID).
		Int64("amount_cents", ev.AmountCents).Msg("donation recorded")
	return nil
}
