package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/{id}", h.GetOrder)

		r.Post("/{id}/payment/online", h.PayOnline)
		r.Post("/{id}/payment/cod", h.PayCOD)
		r.Post("/{id}/payment/wallet", h.PayWallet)

		r.Post("/{id}/accept", h.RestaurantAccept)
		r.Post("/{id}/reject", h.RestaurantReject)
		r.Post("/{id}/preparing", h.RestaurantPreparing)
		r.Post("/{id}/ready", h.RestaurantReady)

		r.Post("/{id}/cancel", h.CustomerCancel)

		r.Post("/{id}/pickup", h.PartnerPickup)
		r.Post("/{id}/delivered", h.PartnerDelivered)
		r.Post("/{id}/complete", h.PartnerComplete)

		r.Post("/{id}/admin/cancel", h.AdminCancel)
		r.Post("/{id}/admin/status", h.AdminOverride)
	})

	r.Post("/payments/callback", h.PaymentCallback)

	r.Route("/partners/{id}", func(r chi.Router) {
		r.Post("/online", h.PartnerOnline)
		r.Post("/location", h.PartnerLocation)
	})

	r.Get("/wallets/{owner}", h.GetWallet)

	return r
}
