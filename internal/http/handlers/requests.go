package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

// RequestsGet returns one funding request with its derived ledger totals
// and payout readiness.
func (a *App) RequestsGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, err := a.Store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "request not found")
			return
		}
		a.Log.Error().Err(err).Str("request_id", id).Msg("failed to load request")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load request")
		return
	}

	donations := make([]map[string]any, 0, len(req.Donations))
	for _, d := range req.Donations {
		donations = append(donations, map[string]any{
			"donorName": d.DonorName,
			"amount":    centsToDollars(d.AmountCents),
			"donatedAt": d.DonatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{
		"id":           req.ID,
		"title":        req.Title,
		"goal":         centsToDollars(req.GoalCents),
		"amountRaised": centsToDollars(req.AmountRaisedCents),
		"donorCount":   req.DonorCount,
		"payoutReady":  req.PayoutState == domain.PayoutReady,
		"donations":    donations,
		"createdAt":    req.CreatedAt,
	})
}
