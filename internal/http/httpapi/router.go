package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

func NewRouter(app *handlers.App, log zerolog.Logger, allowedOrigins []string, checkoutPerMin int) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(allowedOrigins))

	// Health
	r.Get("/v1/healthz", app.Health)

	// Signature verification needs the raw request bytes, so the webhook
	// route takes no body-altering middleware.
	r.Post("/webhooks/payments", app.PaymentsWebhook)

	r.Route("/donations", func(r chi.Router) {
		r.With(middleware.RateLimit(checkoutPerMin, time.Minute)).
			Post("/checkout", app.DonationsCheckout)
		r.Get("/checkout-session/{sessionID}", app.DonationsCheckoutSession)
		r.Get("/history", app.DonationsHistory)
		r.Get("/total", app.DonationsTotal)
	})

	r.Route("/requests", func(r chi.Router) {
		r.Get("/{id}", app.RequestsGet)
	})

	r.Post("/payouts/onboarding", app.PayoutsOnboarding)

	return r
}
