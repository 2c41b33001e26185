package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"server/internal/domain"
)

type onboardingRequest struct {
	RequestID string `json:"requestId"`
}

// PayoutsOnboarding returns a fresh onboarding URL for the request's
// existing payout account so the owner can finish setup.
func (a *App) PayoutsOnboarding(w http.ResponseWriter, r *http.Request) {
	var req onboardingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RequestID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "requestId is required")
		return
	}

	requestURL := fmt.Sprintf("%s/request/%s", a.ClientURL, req.RequestID)
	url, err := a.Payout.OnboardingLink(r.Context(), req.RequestID, requestURL, requestURL)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "request not found")
		case errors.Is(err, domain.ErrPayoutNotReady):
			a.error(w, http.StatusBadRequest, "no_payout_account",
				"no payout account exists for this request yet")
		case errors.Is(err, domain.ErrUpstreamUnavailable):
			a.error(w, http.StatusBadGateway, "upstream_unavailable", "payment processor is unavailable")
		default:
			a.Log.Error().Err(err).Str("request_id", req.RequestID).Msg("onboarding link failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to create onboarding link")
		}
		return
	}
	a.json(w, http.StatusOK, map[string]any{"url": url})
}
