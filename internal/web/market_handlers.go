package web

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quadmarket/gateway/errors"
	"github.com/quadmarket/gateway/internal/market"
	"github.com/quadmarket/gateway/internal/session"
)

// jar builds the request-scoped cookie jar for market calls.
func (h *Handlers) jar(w http.ResponseWriter, r *http.Request) *session.Jar {
	return session.NewJar(w, r, h.jarOpts)
}

func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, errors.New("web: id path segment is not a number").
			WithHTTPStatusCode(http.StatusBadRequest).
			WithPublicMessage("Invalid id")
	}
	return id, nil
}

// CurrentUser returns the signed-in account.
func (h *Handlers) CurrentUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.market.CurrentUser(r.Context(), h.jar(w, r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// Listings searches listings. Filter parameters pass straight through from
// the browser's query string in the API's own naming.
func (h *Handlers) Listings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := market.ListingQuery{
		Type:      q.Get("type"),
		Title:     q.Get("title"),
		Category:  q.Get("category"),
		Condition: q.Get("condition"),
		MinPrice:  q.Get("min_price"),
		MaxPrice:  q.Get("max_price"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	}
	query.Beds, _ = strconv.Atoi(q.Get("beds"))
	query.Baths, _ = strconv.Atoi(q.Get("baths"))
	query.Limit, _ = strconv.Atoi(q.Get("limit"))
	query.Offset, _ = strconv.Atoi(q.Get("offset"))

	page, err := h.market.Listings(r.Context(), h.jar(w, r), query)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// Listing returns one listing, or a 404 body when it doesn't exist.
func (h *Handlers) Listing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	listing, found, err := h.market.Listing(r.Context(), h.jar(w, r), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !found {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "Listing not found"})
		return
	}
	respondJSON(w, http.StatusOK, listing)
}

// CreateListing relays a new listing to the API.
func (h *Handlers) CreateListing(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeBody(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	listing, err := h.market.CreateListing(r.Context(), h.jar(w, r), payload)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, listing)
}

// UpdateListing relays a partial update.
func (h *Handlers) UpdateListing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	payload, err := decodeBody(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	listing, err := h.market.UpdateListing(r.Context(), h.jar(w, r), id, payload)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listing)
}

// DeleteListing removes a listing the user owns.
func (h *Handlers) DeleteListing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.market.DeleteListing(r.Context(), h.jar(w, r), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// UploadImages relays a multipart photo upload to the API.
func (h *Handlers) UploadImages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	err = h.market.UploadImages(r.Context(), h.jar(w, r), id, r.Body, r.Header.Get("Content-Type"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, nil)
}

// Favorites lists the user's favorited listings.
func (h *Handlers) Favorites(w http.ResponseWriter, r *http.Request) {
	listings, err := h.market.Favorites(r.Context(), h.jar(w, r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listings)
}

// AddFavorite favorites a listing.
func (h *Handlers) AddFavorite(w http.ResponseWriter, r *http.Request) {
	h.favorite(w, r, h.market.AddFavorite)
}

// RemoveFavorite unfavorites a listing.
func (h *Handlers) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	h.favorite(w, r, h.market.RemoveFavorite)
}

func (h *Handlers) favorite(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, jar *session.Jar, id int) error) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := op(r.Context(), h.jar(w, r), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// CreateOffer posts an offer on a listing.
func (h *Handlers) CreateOffer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var payload market.OfferPayload
	if err := decodeInto(r, &payload); err != nil {
		h.respondError(w, r, err)
		return
	}
	offer, err := h.market.CreateOffer(r.Context(), h.jar(w, r), id, payload)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, offer)
}

// DeleteOffer retracts an offer the user made.
func (h *Handlers) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.market.DeleteOffer(r.Context(), h.jar(w, r), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// OffersMade lists offers the user has made.
func (h *Handlers) OffersMade(w http.ResponseWriter, r *http.Request) {
	page, err := h.market.OffersMade(r.Context(), h.jar(w, r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// OffersReceived lists offers on the user's listings.
func (h *Handlers) OffersReceived(w http.ResponseWriter, r *http.Request) {
	page, err := h.market.OffersReceived(r.Context(), h.jar(w, r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// Categories lists the item categories the API accepts.
func (h *Handlers) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.market.Categories(r.Context(), h.jar(w, r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cats)
}

// Tags lists the listing tags the API accepts.
func (h *Handlers) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.market.Tags(r.Context(), h.jar(w, r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tags)
}

// PhoneStatus reports the account's phone verification state.
func (h *Handlers) PhoneStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.market.PhoneStatus(r.Context(), h.jar(w, r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// SendPhoneCode asks the API to text a verification code.
func (h *Handlers) SendPhoneCode(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PhoneNumber string `json:"phone_number"`
	}
	if err := decodeInto(r, &payload); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.market.SendPhoneCode(r.Context(), h.jar(w, r), payload.PhoneNumber); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// VerifyPhoneCode submits the texted code for verification.
func (h *Handlers) VerifyPhoneCode(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code string `json:"code"`
	}
	if err := decodeInto(r, &payload); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.market.VerifyPhoneCode(r.Context(), h.jar(w, r), payload.Code); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
