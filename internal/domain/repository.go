package domain

import "context"

// RequestStore handles funding-request persistence. Mutating methods are
// atomic per request id; implementations must not serialize unrelated
// requests behind a shared lock.
type RequestStore interface {
	Create(ctx context.Context, req *FundingRequest) error
	GetByID(ctx context.Context, id string) (*FundingRequest, error)
	GetByPayoutAccount(ctx context.Context, accountID string) (*FundingRequest, error)

	// SetPayoutAccount records a freshly provisioned external account and
	// moves the payout state from none to pending.
	SetPayoutAccount(ctx context.Context, requestID, accountID string) error

	// TransitionReadiness sets the payout state. Idempotent: writing the
	// current state is a no-op, and transitions are re-evaluable in either
	// direction so a later capability revocation can be applied.
	TransitionReadiness(ctx context.Context, requestID string, state PayoutState) error

	// AppendDonationIfAbsent appends entry unless an entry with the same
	// session id already exists, and recomputes the derived totals from the
	// entries in the same atomic unit. Returns false when the entry was
	// already present. Returns ErrStorageConflict on a lost concurrent
	// update; the write is safe to retry.
	AppendDonationIfAbsent(ctx context.Context, requestID string, entry DonationEntry) (bool, error)

	DonationsByDonor(ctx context.Context, donorEmail string) ([]DonorDonation, error)
	TotalRaised(ctx context.Context) (int64, error)
}
