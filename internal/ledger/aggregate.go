// Package ledger recomputes the derived read-side totals of a funding
// request from its donation entries. Totals are always rebuilt from the
// entries so they cannot drift from what they summarize.
package ledger

import "server/internal/domain"

// Total sums the entry amounts.
func Total(entries []domain.DonationEntry) int64 {
	var sum int64
	for _, e := range entries {
		sum += e.AmountCents
	}
	return sum
}

// DonorCount counts distinct donor emails, case-insensitively.
func DonorCount(entries []domain.DonationEntry) int {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		seen[domain.NormalizeEmail(e.DonorEmail)] = struct{}{}
	}
	return len(seen)
}

// Recompute refreshes the derived fields on req from its entries.
func Recompute(req *domain.FundingRequest) {
	req.AmountRaisedCents = Total(req.Donations)
	req.DonorCount = DonorCount(req.Donations)
}
