package handlers

import (
	"errors"
	"io"
	"net/http"

	"server/internal/domain"
)

// PaymentsWebhook receives signed notifications from the payment
// processor. The raw body is handed untouched to signature verification,
// so this route must stay clear of body-parsing middleware. Settled
// deliveries are always acknowledged with 200, including intentional
// no-ops; only verification failures and transient storage failures are
// non-2xx, and the processor retries the latter.
func (a *App) PaymentsWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable payload")
		return
	}

	err = a.Webhook.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		a.json(w, http.StatusOK, map[string]any{"received": true})
	case errors.Is(err, domain.ErrInvalidSignature):
		a.error(w, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
	default:
		a.Log.Error().Err(err).Msg("webhook processing failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to process webhook")
	}
}
