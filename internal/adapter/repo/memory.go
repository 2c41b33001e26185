package repo

import (
	"context"
	"sync"

	"server/internal/domain"
	"server/internal/ledger"
)

// MemoryStore is an in-memory RequestStore used by tests and by local runs
// without a database. Each request carries its own lock, so ledger writes
// serialize per request id and unrelated requests only contend on the map
// lookup.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]*requestRecord
	byAccount map[string]string
}

type requestRecord struct {
	mu  sync.Mutex
	req domain.FundingRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]*requestRecord),
		byAccount: make(map[string]string),
	}
}

func (s *MemoryStore) record(id string) (*requestRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

func (s *MemoryStore) Create(ctx context.Context, req *domain.FundingRequest) error {
	rec := &requestRecord{req: *cloneRequest(req)}
	ledger.Recompute(&rec.req)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.req.ID] = rec
	if rec.req.PayoutAccountID != "" {
		s.byAccount[rec.req.PayoutAccountID] = rec.req.ID
	}
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*domain.FundingRequest, error) {
	rec, ok := s.record(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return cloneRequest(&rec.req), nil
}

func (s *MemoryStore) GetByPayoutAccount(ctx context.Context, accountID string) (*domain.FundingRequest, error) {
	s.mu.RLock()
	id, ok := s.byAccount[accountID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *MemoryStore) SetPayoutAccount(ctx context.Context, requestID, accountID string) error {
	rec, ok := s.record(requestID)
	if !ok {
		return domain.ErrNotFound
	}
	rec.mu.Lock()
	rec.req.PayoutAccountID = accountID
	rec.req.PayoutState = domain.PayoutPending
	rec.mu.Unlock()

	s.mu.Lock()
	s.byAccount[accountID] = requestID
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) TransitionReadiness(ctx context.Context, requestID string, state domain.PayoutState) error {
	rec, ok := s.record(requestID)
	if !ok {
		return domain.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.req.PayoutState = state
	return nil
}

// AppendDonationIfAbsent holds the request's lock across the duplicate
// check, the append, and the recompute so two deliveries of the same
// session id cannot both apply.
func (s *MemoryStore) AppendDonationIfAbsent(ctx context.Context, requestID string, entry domain.DonationEntry) (bool, error) {
	rec, ok := s.record(requestID)
	if !ok {
		return false, domain.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, d := range rec.req.Donations {
		if d.SessionID == entry.SessionID {
			return false, nil
		}
	}
	rec.req.Donations = append(rec.req.Donations, entry)
	ledger.Recompute(&rec.req)
	return true, nil
}

func (s *MemoryStore) DonationsByDonor(ctx context.Context, donorEmail string) ([]domain.DonorDonation, error) {
	email := domain.NormalizeEmail(donorEmail)
	var out []domain.DonorDonation
	for _, rec := range s.snapshot() {
		rec.mu.Lock()
		for _, d := range rec.req.Donations {
			if domain.NormalizeEmail(d.DonorEmail) != email {
				continue
			}
			out = append(out, domain.DonorDonation{
				RequestID:    rec.req.ID,
				RequestTitle: rec.req.Title,
				GoalCents:    rec.req.GoalCents,
				AmountCents:  d.AmountCents,
				DonorName:    d.DonorName,
				DonatedAt:    d.DonatedAt,
			})
		}
		rec.mu.Unlock()
	}
	return out, nil
}

func (s *MemoryStore) TotalRaised(ctx context.Context) (int64, error) {
	var total int64
	for _, rec := range s.snapshot() {
		rec.mu.Lock()
		total += ledger.Total(rec.req.Donations)
		rec.mu.Unlock()
	}
	return total, nil
}

func (s *MemoryStore) snapshot() []*requestRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]*requestRecord, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	return recs
}

func cloneRequest(req *domain.FundingRequest) *domain.FundingRequest {
	c := *req
	c.Donations = make([]domain.DonationEntry, len(req.Donations))
	copy(c.Donations, req.Donations)
	return &c
}
