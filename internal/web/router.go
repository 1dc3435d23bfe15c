package web

import (
	"net/http"

	"github.com/NYTimes/gziphandler"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quadmarket/gateway/internal/session"
	"github.com/quadmarket/gateway/logging"
)

// NewRouter assembles the gateway's routes. The guard only intercepts the
// configured protected paths; the auth and operational endpoints stay
// outside it so an expired session can always complete a login.
func NewRouter(h *Handlers, guard *session.Guard, logger logging.Logger, production bool) http.Handler {
	r := chi.NewRouter()

	r.Use(logging.Middleware(logger))
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(securityHeaders(production))
	r.Use(gziphandler.GzipHandler)
	r.Use(guard.Middleware)

	r.Get("/callback", h.Callback)
	r.Get("/logout", h.Logout)
	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/market", func(r chi.Router) {
		r.Get("/user/me", h.CurrentUser)
		r.Get("/user/phone", h.PhoneStatus)
		r.Post("/user/phone/send-code", h.SendPhoneCode)
		r.Post("/user/phone/verify-code", h.VerifyPhoneCode)

		r.Get("/listings", h.Listings)
		r.Post("/listings", h.CreateListing)
		r.Get("/listings/{id}", h.Listing)
		r.Patch("/listings/{id}", h.UpdateListing)
		r.Delete("/listings/{id}", h.DeleteListing)
		r.Post("/listings/{id}/images", h.UploadImages)
		r.Post("/listings/{id}/favorites", h.AddFavorite)
		r.Delete("/listings/{id}/favorites", h.RemoveFavorite)
		r.Post("/listings/{id}/offers", h.CreateOffer)

		r.Get("/favorites", h.Favorites)
		r.Get("/offers/made", h.OffersMade)
		r.Get("/offers/received", h.OffersReceived)
		r.Delete("/offers/{id}", h.DeleteOffer)

		r.Get("/categories", h.Categories)
		r.Get("/tags", h.Tags)
	})

	// Protected pages resolve to marketplace views; the guard has already
	// vouched for the session by the time these run.
	r.Get("/", h.Listings)
	r.Get("/items", forceType(h.Listings, "item"))
	r.Get("/items/{id}", h.Listing)
	r.Get("/sublets", forceType(h.Listings, "sublet"))
	r.Get("/sublets/{id}", h.Listing)

	return r
}

// forceType pins the listing type for the page routes regardless of what
// the query string says.
func forceType(next http.HandlerFunc, listingType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		q.Set("type", listingType)
		r.URL.RawQuery = q.Encode()
		next(w, r)
	}
}
