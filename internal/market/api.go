package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/quadmarket/gateway/errors"
	"github.com/quadmarket/gateway/internal/session"
)

// CurrentUser fetches the account behind the session.
func (c *Client) CurrentUser(ctx context.Context, jar *session.Jar) (User, error) {
	var u User
	err := c.getJSON(ctx, jar, "/market/user/me/", &u)
	return u, err
}

// Listings searches listings with the given filters.
func (c *Client) Listings(ctx context.Context, jar *session.Jar, q ListingQuery) (Page[Listing], error) {
	endpoint := "/market/listings/"
	if params := q.Encode().Encode(); params != "" {
		endpoint += "?" + params
	}
	var page Page[Listing]
	err := c.getJSON(ctx, jar, endpoint, &page)
	return page, err
}

// Listing fetches a single listing. found is false for a 404.
func (c *Client) Listing(ctx context.Context, jar *session.Jar, id int) (Listing, bool, error) {
	raw, found, err := c.GetOrNotFound(ctx, jar, fmt.Sprintf("/market/listings/%d/", id))
	if err != nil || !found {
		return Listing{}, false, err
	}
	var l Listing
	if err := json.Unmarshal(raw, &l); err != nil {
		return Listing{}, false, errors.WrapPrefix(err, "market: decoding listing", 0)
	}
	return l, true, nil
}

// CreateListing posts a new listing. payload follows the API's listing
// schema, including listing_type and additional_data.
func (c *Client) CreateListing(ctx context.Context, jar *session.Jar, payload any) (Listing, error) {
	raw, err := c.Do(ctx, jar, http.MethodPost, "/market/listings/", payload)
	if err != nil {
		return Listing{}, err
	}
	var l Listing
	if err := json.Unmarshal(raw, &l); err != nil {
		return Listing{}, errors.WrapPrefix(err, "market: decoding created listing", 0)
	}
	return l, nil
}

// UpdateListing applies a partial update to a listing the user owns.
func (c *Client) UpdateListing(ctx context.Context, jar *session.Jar, id int, payload any) (Listing, error) {
	raw, err := c.Do(ctx, jar, http.MethodPatch, fmt.Sprintf("/market/listings/%d/", id), payload)
	if err != nil {
		return Listing{}, err
	}
	var l Listing
	if err := json.Unmarshal(raw, &l); err != nil {
		return Listing{}, errors.WrapPrefix(err, "market: decoding updated listing", 0)
	}
	return l, nil
}

// DeleteListing removes a listing the user owns.
func (c *Client) DeleteListing(ctx context.Context, jar *session.Jar, id int) error {
	_, err := c.Do(ctx, jar, http.MethodDelete, fmt.Sprintf("/market/listings/%d/", id), nil)
	return err
}

// UploadImages attaches photos to a listing. body must be a multipart form
// with one or more "images" parts; contentType carries its boundary.
func (c *Client) UploadImages(ctx context.Context, jar *session.Jar, id int, body io.Reader, contentType string) error {
	_, err := c.DoMultipart(ctx, jar, http.MethodPost, fmt.Sprintf("/market/listings/%d/images/", id), body, contentType)
	return err
}

// Favorites lists the user's favorited listings.
func (c *Client) Favorites(ctx context.Context, jar *session.Jar) ([]Listing, error) {
	var listings []Listing
	err := c.getJSON(ctx, jar, "/market/favorites/", &listings)
	return listings, err
}

// AddFavorite favorites a listing.
func (c *Client) AddFavorite(ctx context.Context, jar *session.Jar, id int) error {
	_, err := c.Do(ctx, jar, http.MethodPost, fmt.Sprintf("/market/listings/%d/favorites/", id), nil)
	return err
}

// RemoveFavorite unfavorites a listing.
func (c *Client) RemoveFavorite(ctx context.Context, jar *session.Jar, id int) error {
	_, err := c.Do(ctx, jar, http.MethodDelete, fmt.Sprintf("/market/listings/%d/favorites/", id), nil)
	return err
}

// CreateOffer posts an offer on a listing.
func (c *Client) CreateOffer(ctx context.Context, jar *session.Jar, listingID int, payload OfferPayload) (Offer, error) {
	raw, err := c.Do(ctx, jar, http.MethodPost, fmt.Sprintf("/market/listings/%d/offers/", listingID), payload)
	if err != nil {
		return Offer{}, err
	}
	var o Offer
	if err := json.Unmarshal(raw, &o); err != nil {
		return Offer{}, errors.WrapPrefix(err, "market: decoding offer", 0)
	}
	return o, nil
}

// DeleteOffer retracts an offer the user made.
func (c *Client) DeleteOffer(ctx context.Context, jar *session.Jar, id int) error {
	_, err := c.Do(ctx, jar, http.MethodDelete, fmt.Sprintf("/market/offers/%d/", id), nil)
	return err
}

// OffersMade lists offers the user has made on other sellers' listings.
func (c *Client) OffersMade(ctx context.Context, jar *session.Jar) (Page[Offer], error) {
	var page Page[Offer]
	err := c.getJSON(ctx, jar, "/market/offers/made/", &page)
	return page, err
}

// OffersReceived lists offers on the user's own listings.
func (c *Client) OffersReceived(ctx context.Context, jar *session.Jar) (Page[Offer], error) {
	var page Page[Offer]
	err := c.getJSON(ctx, jar, "/market/offers/received/", &page)
	return page, err
}

// Categories lists the item categories the API accepts.
func (c *Client) Categories(ctx context.Context, jar *session.Jar) ([]string, error) {
	var cats []string
	err := c.getJSON(ctx, jar, "/market/categories/", &cats)
	return cats, err
}

// Tags lists the listing tags the API accepts.
func (c *Client) Tags(ctx context.Context, jar *session.Jar) ([]string, error) {
	var tags []string
	err := c.getJSON(ctx, jar, "/market/tags/", &tags)
	return tags, err
}

// PhoneStatus reports the account's phone verification state.
func (c *Client) PhoneStatus(ctx context.Context, jar *session.Jar) (PhoneStatus, error) {
	var status PhoneStatus
	err := c.getJSON(ctx, jar, "/market/user/phone/", &status)
	return status, err
}

// SendPhoneCode asks the API to text a verification code to the number.
func (c *Client) SendPhoneCode(ctx context.Context, jar *session.Jar, phoneNumber string) error {
	_, err := c.Do(ctx, jar, http.MethodPost, "/market/user/phone/send-code/", map[string]string{
		"phone_number": phoneNumber,
	})
	return err
}

// VerifyPhoneCode submits the texted code back for verification.
func (c *Client) VerifyPhoneCode(ctx context.Context, jar *session.Jar, code string) error {
	_, err := c.Do(ctx, jar, http.MethodPost, "/market/user/phone/verify-code/", map[string]string{
		"code": code,
	})
	return err
}

func (c *Client) getJSON(ctx context.Context, jar *session.Jar, endpoint string, out any) error {
	raw, err := c.Do(ctx, jar, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.WrapPrefix(err, "market: decoding "+endpoint, 0)
	}
	return nil
}
