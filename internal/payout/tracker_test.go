package payout

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"server/internal/adapter/repo"
	"server/internal/domain"
	"server/internal/payments"
)

type stubPort struct {
	accountID       string
	accountErr      error
	onboardingURL   string
	createdAccounts int
}

func (s *stubPort) CreateAccount(ctx context.Context, ownerEmail string) (string, error) {
	s.createdAccounts++
	return s.accountID, s.accountErr
}

func (s *stubPort) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	return s.onboardingURL, nil
}

func (s *stubPort) CreateCheckoutSession(ctx context.Context, p payments.CheckoutParams) (*payments.Session, error) {
	return nil, nil
}

func (s *stubPort) GetCheckoutSession(ctx context.Context, sessionID string) (*payments.CheckoutInfo, error) {
	return &payments.CheckoutInfo{SessionID: sessionID}, nil
}

func (s *stubPort) ParseEvent(ctx context.Context, payload []byte, sigHeader string) (payments.Event, error) {
	return payments.Unhandled{}, nil
}

func seed(t *testing.T, store domain.RequestStore, req *domain.FundingRequest) {
	t.Helper()
	if err := store.Create(context.Background(), req); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestEnsureAccount_ProvisionsOnce(t *testing.T) {
	store := repo.NewMemoryStore()
	seed(t, store, &domain.FundingRequest{ID: "req-1", OwnerEmail: "owner@example.com"})
	port := &stubPort{accountID: "acct_1"}
	tracker := NewTracker(store, port, zerolog.Nop())

	req, _ := store.GetByID(context.Background(), "req-1")
	accountID, err := tracker.EnsureAccount(context.Background(), req)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if accountID != "acct_1" {
		t.Fatalf("expected acct_1, got %q", accountID)
	}

	stored, _ := store.GetByID(context.Background(), "req-1")
	if stored.PayoutState != domain.PayoutPending {
		t.Fatalf("expected pending after provisioning, got %q", stored.PayoutState)
	}

	again, err := tracker.EnsureAccount(context.Background(), stored)
	if err != nil || again != "acct_1" {
		t.Fatalf("expected reuse of acct_1, got %q / %v", again, err)
	}
	if port.createdAccounts != 1 {
		t.Fatalf("expected 1 provision call, got %d", port.createdAccounts)
	}
}

func TestIsReady_FollowsStateMachine(t *testing.T) {
	store := repo.NewMemoryStore()
	seed(t, store, &domain.FundingRequest{ID: "req-1", OwnerEmail: "o@example.com"})
	tracker := NewTracker(store, &stubPort{}, zerolog.Nop())

	ready, err := tracker.IsReady(context.Background(), "req-1")
	if err != nil || ready {
		t.Fatalf("expected not ready in state none, got %v / %v", ready, err)
	}

	if err := store.TransitionReadiness(context.Background(), "req-1", domain.PayoutPending); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if ready, _ = tracker.IsReady(context.Background(), "req-1"); ready {
		t.Fatal("expected not ready in state pending")
	}

	if err := tracker.MarkReady(context.Background(), "req-1"); err != nil {
		t.Fatalf("mark ready: %v", err)
	}
	if ready, _ = tracker.IsReady(context.Background(), "req-1"); !ready {
		t.Fatal("expected ready after MarkReady")
	}

	// MarkReady is idempotent.
	if err := tracker.MarkReady(context.Background(), "req-1"); err != nil {
		t.Fatalf("second mark ready: %v", err)
	}
}

func TestApply_TransitionsByAccountID(t *testing.T) {
	store := repo.NewMemoryStore()
	seed(t, store, &domain.FundingRequest{
		ID: "req-1", OwnerEmail: "o@example.com",
		PayoutAccountID: "acct_1", PayoutState: domain.PayoutPending,
	})
	tracker := NewTracker(store, &stubPort{}, zerolog.Nop())

	if err := tracker.Apply(context.Background(), "acct_1", true); err != nil {
		t.Fatalf("apply: %v", err)
	}
	req, _ := store.GetByID(context.Background(), "req-1")
	if req.PayoutState != domain.PayoutReady {
		t.Fatalf("expected ready, got %q", req.PayoutState)
	}

	// Re-applying the same capability is a no-op.
	if err := tracker.Apply(context.Background(), "acct_1", true); err != nil {
		t.Fatalf("idempotent apply: %v", err)
	}

	// Capability loss downgrades.
	if err := tracker.Apply(context.Background(), "acct_1", false); err != nil {
		t.Fatalf("downgrade: %v", err)
	}
	req, _ = store.GetByID(context.Background(), "req-1")
	if req.PayoutState != domain.PayoutPending {
		t.Fatalf("expected pending after capability loss, got %q", req.PayoutState)
	}
}

func TestApply_UnknownAccountIsIgnored(t *testing.T) {
	tracker := NewTracker(repo.NewMemoryStore(), &stubPort{}, zerolog.Nop())
	if err := tracker.Apply(context.Background(), "acct_nope", true); err != nil {
		t.Fatalf("expected unknown account to be ignored, got %v", err)
	}
}

func TestOnboardingLink(t *testing.T) {
	store := repo.NewMemoryStore()
	seed(t, store, &domain.FundingRequest{
		ID: "req-1", OwnerEmail: "o@example.com",
		PayoutAccountID: "acct_1", PayoutState: domain.PayoutPending,
	})
	tracker := NewTracker(store, &stubPort{onboardingURL: "https://connect.example.com/x"}, zerolog.Nop())

	url, err := tracker.OnboardingLink(context.Background(), "req-1", "https://a", "https://b")
	if err != nil {
		t.Fatalf("onboarding link: %v", err)
	}
	if url != "https://connect.example.com/x" {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestOnboardingLink_WithoutAccount(t *testing.T) {
	store := repo.NewMemoryStore()
	seed(t, store, &domain.FundingRequest{ID: "req-1", OwnerEmail: "o@example.com"})
	tracker := NewTracker(store, &stubPort{}, zerolog.Nop())

	_, err := tracker.OnboardingLink(context.Background(), "req-1", "https://a", "https://b")
	if !errors.Is(err, domain.ErrPayoutNotReady) {
		t.Fatalf("expected ErrPayoutNotReady, got %v", err)
	}
}
