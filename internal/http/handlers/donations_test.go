package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"server/internal/adapter/repo"
	"server/internal/checkout"
	"server/internal/domain"
	"server/internal/payments"
	"server/internal/payout"
	"server/internal/webhook"
)

type fakePort struct {
	accountID     string
	onboardingURL string
	session       *payments.Session
	sessionErr    error
	info          *payments.CheckoutInfo
	infoErr       error
	parse         func(payload []byte, sigHeader string) (payments.Event, error)
}

func (f *fakePort) CreateAccount(ctx context.Context, ownerEmail string) (string, error) {
	return f.accountID, nil
}

func (f *fakePort) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	return f.onboardingURL, nil
}

func (f *fakePort) CreateCheckoutSession(ctx context.Context, p payments.CheckoutParams) (*payments.Session, error) {
	return f.session, f.sessionErr
}

func (f *fakePort) GetCheckoutSession(ctx context.Context, sessionID string) (*payments.CheckoutInfo, error) {
	return f.info, f.infoErr
}

func (f *fakePort) ParseEvent(ctx context.Context, payload []byte, sigHeader string) (payments.Event, error) {
	if f.parse != nil {
		return f.parse(payload, sigHeader)
	}
	return payments.Unhandled{}, nil
}

func newTestApp(t *testing.T, store domain.RequestStore, port payments.Port) *App {
	t.Helper()
	log := zerolog.Nop()
	tracker := payout.NewTracker(store, port, log)
	svc := checkout.NewService(store, tracker, port, 500, "https://app.example.com", log)
	proc := webhook.NewProcessor(store, tracker, port, log)
	return NewApp(store, svc, proc, tracker, port, "https://app.example.com", log)
}

func seedReady(t *testing.T, store domain.RequestStore, id string) {
	t.Helper()
	err := store.Create(context.Background(), &domain.FundingRequest{
		ID:              id,
		Title:           "Textbooks",
		OwnerEmail:      "owner@example.com",
		GoalCents:       20000,
		PayoutAccountID: "acct_1",
		PayoutState:     domain.PayoutReady,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestDonationsCheckout_Success(t *testing.T) {
	store := repo.NewMemoryStore()
	seedReady(t, store, "req-1")
	app := newTestApp(t, store, &fakePort{
		session: &payments.Session{ID: "cs_1", URL: "https://pay.example.com/cs_1"},
	})

	req := httptest.NewRequest("POST", "/donations/checkout",
		strings.NewReader(`{"requestId":"req-1","amount":50,"donorName":"Ada","donorEmail":"ada@example.com"}`))
	rr := httptest.NewRecorder()
	app.DonationsCheckout(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		SessionID string `json:"sessionId"`
		URL       string `json:"url"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID != "cs_1" || resp.URL != "https://pay.example.com/cs_1" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestDonationsCheckout_ErrorMapping(t *testing.T) {
	store := repo.NewMemoryStore()
	seedReady(t, store, "req-1")
	app := newTestApp(t, store, &fakePort{
		session: &payments.Session{ID: "cs_1", URL: "https://pay.example.com/cs_1"},
	})

	cases := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"missing request id", `{"amount":50}`, 400},
		{"unknown request", `{"requestId":"missing","amount":50}`, 404},
		{"zero amount", `{"requestId":"req-1","amount":0,"donorEmail":"d@example.com"}`, 400},
		{"missing donor email", `{"requestId":"req-1","amount":50,"donorName":"Ada"}`, 400},
		{"self donation", `{"requestId":"req-1","amount":50,"donorEmail":"OWNER@example.com"}`, 400},
		{"bad json", `{`, 400},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("POST", "/donations/checkout", strings.NewReader(tc.body))
		rr := httptest.NewRecorder()
		app.DonationsCheckout(rr, req)
		if rr.Code != tc.wantCode {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.wantCode, rr.Code, rr.Body.String())
		}
	}
}

func TestDonationsCheckout_NotReadyIncludesOnboardingURL(t *testing.T) {
	store := repo.NewMemoryStore()
	err := store.Create(context.Background(), &domain.FundingRequest{
		ID:              "req-1",
		OwnerEmail:      "owner@example.com",
		PayoutAccountID: "acct_1",
		PayoutState:     domain.PayoutPending,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	app := newTestApp(t, store, &fakePort{onboardingURL: "https://connect.example.com/onboard"})

	req := httptest.NewRequest("POST", "/donations/checkout",
		strings.NewReader(`{"requestId":"req-1","amount":50,"donorEmail":"d@example.com"}`))
	rr := httptest.NewRecorder()
	app.DonationsCheckout(rr, req)

	if rr.Code != 409 {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["onboardingUrl"] != "https://connect.example.com/onboard" {
		t.Fatalf("expected onboarding url in response, got %#v", resp)
	}
}

func getCheckoutSession(app *App, sessionID string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/donations/checkout-session/{sessionID}", app.DonationsCheckoutSession)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/donations/checkout-session/"+sessionID, nil))
	return rr
}

func TestDonationsCheckoutSession_ReadsBackMetadata(t *testing.T) {
	app := newTestApp(t, repo.NewMemoryStore(), &fakePort{
		info: &payments.CheckoutInfo{
			SessionID:   "cs_1",
			RequestID:   "req-1",
			DonorName:   "Ada",
			DonorEmail:  "ada@example.com",
			AmountCents: 5000,
		},
	})

	rr := getCheckoutSession(app, "cs_1")
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["donorName"] != "Ada" || resp["requestId"] != "req-1" {
		t.Fatalf("unexpected response %#v", resp)
	}
	if resp["amount"].(float64) != 50 {
		t.Fatalf("expected amount 50, got %v", resp["amount"])
	}
}

func TestDonationsCheckoutSession_DefaultsAnonymousDonor(t *testing.T) {
	app := newTestApp(t, repo.NewMemoryStore(), &fakePort{
		info: &payments.CheckoutInfo{SessionID: "cs_1", RequestID: "req-1", AmountCents: 100},
	})

	rr := getCheckoutSession(app, "cs_1")
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["donorName"] != "Anonymous" {
		t.Fatalf("expected Anonymous donor, got %v", resp["donorName"])
	}
}

func TestDonationsCheckoutSession_UpstreamFailure(t *testing.T) {
	app := newTestApp(t, repo.NewMemoryStore(), &fakePort{infoErr: domain.ErrUpstreamUnavailable})

	rr := getCheckoutSession(app, "cs_1")
	if rr.Code != 502 {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
}

func TestDonationsHistoryAndTotal(t *testing.T) {
	store := repo.NewMemoryStore()
	seedReady(t, store, "req-1")
	_, _ = store.AppendDonationIfAbsent(context.Background(), "req-1", domain.DonationEntry{
		SessionID: "cs_1", DonorName: "Ada", DonorEmail: "ada@example.com", AmountCents: 5000,
	})
	app := newTestApp(t, store, &fakePort{})

	rr := httptest.NewRecorder()
	app.DonationsHistory(rr, httptest.NewRequest("GET", "/donations/history?email=ADA@example.com", nil))
	if rr.Code != 200 {
		t.Fatalf("history: expected 200, got %d", rr.Code)
	}
	var items []map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&items); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(items) != 1 || items[0]["amount"].(float64) != 50 {
		t.Fatalf("unexpected history %#v", items)
	}

	rr = httptest.NewRecorder()
	app.DonationsHistory(rr, httptest.NewRequest("GET", "/donations/history", nil))
	if rr.Code != 400 {
		t.Fatalf("history without email: expected 400, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	app.DonationsTotal(rr, httptest.NewRequest("GET", "/donations/total", nil))
	if rr.Code != 200 {
		t.Fatalf("total: expected 200, got %d", rr.Code)
	}
	var total map[string]float64
	if err := json.NewDecoder(rr.Body).Decode(&total); err != nil {
		t.Fatalf("decode total: %v", err)
	}
	if total["total"] != 50 {
		t.Fatalf("expected total 50, got %v", total["total"])
	}
}
