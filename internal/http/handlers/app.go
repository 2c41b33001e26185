package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/checkout"
	"server/internal/domain"
	"server/internal/payments"
	"server/internal/payout"
	"server/internal/webhook"
)

type App struct {
	Store    domain.RequestStore
	Checkout *checkout.Service
	Webhook  *webhook.Processor
	Payout   *payout.Tracker
	Payments payments.Port
	Log      zerolog.Logger

	// ClientURL is the browsing frontend, used for onboarding redirects.
	ClientURL string
}

func NewApp(store domain.RequestStore, co *checkout.Service, wh *webhook.Processor,
	po *payout.Tracker, port payments.Port, clientURL string, log zerolog.Logger) *App {
	return &App{
		Store:     store,
		Checkout:  co,
		Webhook:   wh,
		Payout:    po,
		Payments:  port,
		ClientURL: clientURL,
		Log:       log,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{"error": message, "code": errCode})
}
