package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

type checkoutRequest struct {
	RequestID  string  `json:"requestId"`
	Amount     float64 `json:"amount"` // dollars
	DonorName  string  `json:"donorName"`
	DonorEmail string  `json:"donorEmail"`
}

// DonationsCheckout validates a donation and returns a hosted checkout
// session the donor is redirected to. Nothing is recorded locally here;
// the ledger only moves on a confirmed webhook event.
func (a *App) DonationsCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.RequestID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "requestId is required")
		return
	}
	amountCents := int64(math.Round(req.Amount * 100))

	session, err := a.Checkout.CreateCheckout(r.Context(), req.RequestID, amountCents,
		domain.Donor{Name: req.DonorName, Email: req.DonorEmail})
	if err != nil {
		a.checkoutError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"sessionId": session.ID, "url": session.URL})
}

func (a *App) checkoutError(w http.ResponseWriter, err error) {
	var notReady *domain.PayoutNotReadyError
	switch {
	case errors.As(err, &notReady):
		a.json(w, http.StatusConflict, map[string]any{
			"error":         "Requester payout account is not ready to receive funds.",
			"code":          "payout_not_ready",
			"onboardingUrl": notReady.OnboardingURL,
		})
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "request not found")
	case errors.Is(err, domain.ErrInvalidAmount):
		a.error(w, http.StatusBadRequest, "invalid_amount", "donation amount must be positive")
	case errors.Is(err, domain.ErrMissingDonorEmail):
		a.error(w, http.StatusBadRequest, "missing_donor_email", "donorEmail is required")
	case errors.Is(err, domain.ErrSelfDonation):
		a.error(w, http.StatusBadRequest, "self_donation", "you cannot donate to your own request")
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		a.error(w, http.StatusBadGateway, "upstream_unavailable", "payment processor is unavailable")
	default:
		a.Log.Error().Err(err).Msg("checkout failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create checkout session")
	}
}

// DonationsCheckoutSession reads back a checkout session for the
// post-payment confirmation page. The data comes from the processor's
// session metadata, so it is available even before the webhook lands.
func (a *App) DonationsCheckoutSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "session id is required")
		return
	}
	info, err := a.Payments.GetCheckoutSession(r.Context(), sessionID)
	if err != nil {
		a.Log.Error().Err(err).Str("session_id", sessionID).Msg("failed to fetch checkout session")
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			a.error(w, http.StatusBadGateway, "upstream_unavailable", "failed to fetch checkout session")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to fetch checkout session")
		return
	}
	donorName := info.DonorName
	if donorName == "" {
		donorName = "Anonymous"
	}
	a.json(w, http.StatusOK, map[string]any{
		"donorName":  donorName,
		"donorEmail": info.DonorEmail,
		"amount":     centsToDollars(info.AmountCents),
		"requestId":  info.RequestID,
	})
}

// DonationsHistory lists a donor's confirmed donations across all requests.
func (a *App) DonationsHistory(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "email is required")
		return
	}
	items, err := a.Store.DonationsByDonor(r.Context(), email)
	if err != nil {
		a.Log.Error().Err(err).Msg("failed to load donation history")
		a.error(w, http.StatusInternalServerError, "internal", "failed to fetch donation history")
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, d := range items {
		out = append(out, map[string]any{
			"requestId":    d.RequestID,
			"requestTitle": d.RequestTitle,
			"requestGoal":  centsToDollars(d.GoalCents),
			"amount":       centsToDollars(d.AmountCents),
			"donorName":    d.DonorName,
			"donatedAt":    d.DonatedAt,
		})
	}
	a.json(w, http.StatusOK, out)
}

// DonationsTotal reports the platform-wide raised total.
func (a *App) DonationsTotal(w http.ResponseWriter, r *http.Request) {
	total, err := a.Store.TotalRaised(r.Context())
	if err != nil {
		a.Log.Error().Err(err).Msg("failed to compute total donations")
		a.error(w, http.StatusInternalServerError, "internal", "failed to fetch total donations")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"total": centsToDollars(total)})
}

func centsToDollars(cents int64) float64 {
	return float64(cents) / 100
}
