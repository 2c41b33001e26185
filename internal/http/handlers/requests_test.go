package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"server/internal/adapter/repo"
	"server/internal/domain"
)

func getRequest(app *App, id string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/requests/{id}", app.RequestsGet)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/requests/"+id, nil))
	return rr
}

func TestRequestsGet_IncludesDerivedTotals(t *testing.T) {
	store := repo.NewMemoryStore()
	seedReady(t, store, "req-1")
	_, _ = store.AppendDonationIfAbsent(context.Background(), "req-1", domain.DonationEntry{
		SessionID: "cs_1", DonorName: "Ada", DonorEmail: "ada@example.com", AmountCents: 5000,
	})
	_, _ = store.AppendDonationIfAbsent(context.Background(), "req-1", domain.DonationEntry{
		SessionID: "cs_2", DonorName: "Grace", DonorEmail: "grace@example.com", AmountCents: 2500,
	})
	app := newTestApp(t, store, &fakePort{})

	rr := getRequest(app, "req-1")
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["amountRaised"].(float64) != 75 {
		t.Fatalf("expected amountRaised 75, got %v", resp["amountRaised"])
	}
	if resp["donorCount"].(float64) != 2 {
		t.Fatalf("expected donorCount 2, got %v", resp["donorCount"])
	}
	if resp["payoutReady"] != true {
		t.Fatalf("expected payoutReady true, got %v", resp["payoutReady"])
	}
	if donations, ok := resp["donations"].([]any); !ok || len(donations) != 2 {
		t.Fatalf("expected 2 donations, got %#v", resp["donations"])
	}
}

func TestRequestsGet_NotFound(t *testing.T) {
	app := newTestApp(t, repo.NewMemoryStore(), &fakePort{})
	rr := getRequest(app, "missing")
	if rr.Code != 404 {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
