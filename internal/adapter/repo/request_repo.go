package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// RequestRepositoryPG implements domain.RequestStore using PostgreSQL.
// Donations live in their own table with a unique (request_id, session_id)
// constraint; that constraint is the idempotency guarantee under concurrent
// webhook deliveries.
type RequestRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewRequestRepository creates a new funding-request repo.
func NewRequestRepository(pool *pgxpool.Pool) *RequestRepositoryPG {
	return &RequestRepositoryPG{pool: pool}
}

// Schema is the DDL this repository expects. Applied at startup when the
// service owns the database.
const Schema = `
CREATE TABLE IF NOT EXISTS funding_requests (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	owner_name TEXT NOT NULL DEFAULT '',
	owner_email TEXT NOT NULL,
	goal_cents BIGINT NOT NULL DEFAULT 0,
	payout_account_id TEXT,
	payout_state TEXT NOT NULL DEFAULT 'none',
	amount_raised_cents BIGINT NOT NULL DEFAULT 0,
	donor_count INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS donations (
	request_id TEXT NOT NULL REFERENCES funding_requests(id),
	session_id TEXT NOT NULL,
	donor_name TEXT NOT NULL DEFAULT '',
	donor_email TEXT NOT NULL,
	amount_cents BIGINT NOT NULL,
	donated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (request_id, session_id)
);

CREATE INDEX IF NOT EXISTS donations_donor_email_idx ON donations (lower(donor_email));
CREATE UNIQUE INDEX IF NOT EXISTS funding_requests_payout_account_idx
	ON funding_requests (payout_account_id) WHERE payout_account_id IS NOT NULL;
`

// EnsureSchema applies the DDL.
func (r *RequestRepositoryPG) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, Schema)
	return err
}

func (r *RequestRepositoryPG) Create(ctx context.Context, req *domain.FundingRequest) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO funding_requests (id, title, owner_name, owner_email, goal_cents, payout_account_id, payout_state)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7);
`, req.ID, req.Title, req.OwnerName, domain.NormalizeEmail(req.OwnerEmail), req.GoalCents,
		req.PayoutAccountID, string(stateOrNone(req.PayoutState)))
	return err
}

func stateOrNone(s domain.PayoutState) domain.PayoutState {
	if s == "" {
		return domain.PayoutNone
	}
	return s
}

func (r *RequestRepositoryPG) GetByID(ctx context.Context, id string) (*domain.FundingRequest, error) {
	return r.getRequest(ctx, `WHERE id = $1`, id)
}

func (r *RequestRepositoryPG) GetByPayoutAccount(ctx context.Context, accountID string) (*domain.FundingRequest, error) {
	return r.getRequest(ctx, `WHERE payout_account_id = $1`, accountID)
}

func (r *RequestRepositoryPG) getRequest(ctx context.Context, where string, arg any) (*domain.FundingRequest, error) {
	var req domain.FundingRequest
	var accountID *string
	var state string
	err := r.pool.QueryRow(ctx, `
SELECT id, title, owner_name, owner_email, goal_cents, payout_account_id, payout_state,
       amount_raised_cents, donor_count, created_at, updated_at
FROM funding_requests `+where+`;
`, arg).Scan(&req.ID, &req.Title, &req.OwnerName, &req.OwnerEmail, &req.GoalCents,
		&accountID, &state, &req.AmountRaisedCents, &req.DonorCount, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if accountID != nil {
		req.PayoutAccountID = *accountID
	}
	req.PayoutState = domain.PayoutState(state)

	rows, err := r.pool.Query(ctx, `
SELECT session_id, donor_name, donor_email, amount_cents, donated_at
FROM donations
WHERE request_id = $1
ORDER BY donated_at;
`, req.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var d domain.DonationEntry
		if err := rows.Scan(&d.SessionID, &d.DonorName, &d.DonorEmail, &d.AmountCents, &d.DonatedAt); err != nil {
			return nil, err
		}
		req.Donations = append(req.Donations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *RequestRepositoryPG) SetPayoutAccount(ctx context.Context, requestID, accountID string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE funding_requests
SET payout_account_id = $2, payout_state = $3, updated_at = now()
WHERE id = $1;
`, requestID, accountID, string(domain.PayoutPending))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RequestRepositoryPG) TransitionReadiness(ctx context.Context, requestID string, state domain.PayoutState) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE funding_requests
SET payout_state = $2, updated_at = now()
WHERE id = $1;
`, requestID, string(state))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AppendDonationIfAbsent inserts the entry and recomputes the derived
// totals from the donations table inside one transaction. The unique
// primary key makes the check-then-act race harmless: the loser of a
// concurrent delivery of the same session id inserts zero rows.
//
// The transaction opens with a row lock on the funding request so
// concurrent appends of distinct session ids serialize. Without it, two
// recomputes at READ COMMITTED can each sum a snapshot missing the
// other's insert and the committed total loses a donation.
func (r *RequestRepositoryPG) AppendDonationIfAbsent(ctx context.Context, requestID string, entry domain.DonationEntry) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var locked int
	err = tx.QueryRow(ctx, `SELECT 1 FROM funding_requests WHERE id = $1 FOR UPDATE;`, requestID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrNotFound
		}
		return false, mapPgError(err)
	}

	tag, err := tx.Exec(ctx, `
INSERT INTO donations (request_id, session_id, donor_name, donor_email, amount_cents, donated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (request_id, session_id) DO NOTHING;
`, requestID, entry.SessionID, entry.DonorName, domain.NormalizeEmail(entry.DonorEmail),
		entry.AmountCents, entry.DonatedAt)
	if err != nil {
		return false, mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
UPDATE funding_requests
SET amount_raised_cents = (
		SELECT COALESCE(SUM(amount_cents), 0) FROM donations WHERE request_id = $1
	),
	donor_count = (
		SELECT COUNT(DISTINCT lower(donor_email)) FROM donations WHERE request_id = $1
	),
	updated_at = now()
WHERE id = $1;
`, requestID)
	if err != nil {
		return false, mapPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, mapPgError(err)
	}
	return true, nil
}

func (r *RequestRepositoryPG) DonationsByDonor(ctx context.Context, donorEmail string) ([]domain.DonorDonation, error) {
	rows, err := r.pool.Query(ctx, `
SELECT d.request_id, r.title, r.goal_cents, d.amount_cents, d.donor_name, d.donated_at
FROM donations d
JOIN funding_requests r ON r.id = d.request_id
WHERE lower(d.donor_email) = $1
ORDER BY d.donated_at DESC;
`, domain.NormalizeEmail(donorEmail))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.DonorDonation
	for rows.Next() {
		var item domain.DonorDonation
		if err := rows.Scan(&item.RequestID, &item.RequestTitle, &item.GoalCents,
			&item.AmountCents, &item.DonorName, &item.DonatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *RequestRepositoryPG) TotalRaised(ctx context.Context) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM donations;`).Scan(&total)
	return total, err
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign key: donation for a request that does not exist
			return domain.ErrNotFound
		case "40001", "40P01": // serialization failure / deadlock, safe to retry
			return fmt.Errorf("%s: %w", pgErr.Code, domain.ErrStorageConflict)
		}
	}
	return err
}
