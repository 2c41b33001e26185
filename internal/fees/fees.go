// Package fees derives the donor-facing charge from the amount the
// requester must receive. All math is integer cents with half-up rounding;
// the requester always nets exactly the requested amount.
package fees

import "server/internal/domain"

// Rate is a platform-fee rate in basis points (500 = 5%).
type Rate int64

const basisPoints = 10000

// Valid reports whether the rate can be applied: non-negative and strictly
// below 100%.
func (r Rate) Valid() bool { return r >= 0 && r < basisPoints }

// Quote is the charge breakdown for a single donation. TotalCents is what
// the donor pays, FeeCents is retained by the platform, and
// TotalCents - FeeCents equals the requested amount by construction.
type Quote struct {
	TotalCents int64
	FeeCents   int64
}

// QuoteCharge grosses up amountCents so the requester nets it after the
// fee: total = round(amount / (1 - r)), fee = total - amount. The fee is
// derived by subtraction rather than rounded independently so the net can
// never drift by a cent.
func QuoteCharge(amountCents int64, rate Rate) (Quote, error) {
	if amountCents <= 0 || !rate.Valid() {
		return Quote{}, domain.ErrInvalidAmount
	}
	denom := int64(basisPoints - rate)
	total := (amountCents*basisPoints + denom/2) / denom
	return Quote{
		TotalCents: total,
		FeeCents:   total - amountCents,
	}, nil
}

// FeePortion is the half-up rounded fee on a total charge, used to
// cross-check a quote against the processor's own fee math.
func FeePortion(totalCents int64, rate Rate) int64 {
	return (totalCents*int64(rate) + basisPoints/2) / basisPoints
}
