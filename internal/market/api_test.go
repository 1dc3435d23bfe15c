package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPI_EndpointsAndDecoding(t *testing.T) {
	var gotPath, gotQuery, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotMethod = r.Method

		switch r.URL.Path {
		case "/market/user/me/":
			w.Write([]byte(`{"id": 42, "username": "pat", "first_name": "Pat", "last_name": "Example", "email": "pat@example.edu"}`))
		case "/market/listings/":
			w.Write([]byte(`{"count": 1, "page_size": 20, "offset": 0, "results": [{"id": 7, "title": "Desk lamp", "listing_type": "item"}]}`))
		case "/market/listings/7/favorites/":
			w.WriteHeader(http.StatusNoContent)
		case "/market/offers/made/":
			w.Write([]byte(`{"count": 1, "results": [{"id": 3, "listing": 7, "offered_price": "25.00"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail": "Not found."}`))
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, true)
	ctx := context.Background()

	t.Run("current user", func(t *testing.T) {
		jar, _ := authedJar(t, "AT1")
		u, err := c.CurrentUser(ctx, jar)
		require.NoError(t, err)
		assert.Equal(t, "/market/user/me/", gotPath)
		assert.Equal(t, 42, u.ID)
		assert.Equal(t, "pat", u.Username)
	})

	t.Run("listings with query", func(t *testing.T) {
		jar, _ := authedJar(t, "AT1")
		page, err := c.Listings(ctx, jar, ListingQuery{Type: ListingTypeItem, Limit: 20})
		require.NoError(t, err)
		assert.Equal(t, "/market/listings/", gotPath)
		assert.Equal(t, "limit=20&type=item", gotQuery)
		require.Len(t, page.Results, 1)
		assert.Equal(t, "Desk lamp", page.Results[0].Title)
	})

	t.Run("listing not found", func(t *testing.T) {
		jar, _ := authedJar(t, "AT1")
		_, found, err := c.Listing(ctx, jar, 999)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, "/market/listings/999/", gotPath)
	})

	t.Run("add favorite posts", func(t *testing.T) {
		jar, _ := authedJar(t, "AT1")
		require.NoError(t, c.AddFavorite(ctx, jar, 7))
		assert.Equal(t, http.MethodPost, gotMethod)
		assert.Equal(t, "/market/listings/7/favorites/", gotPath)
	})

	t.Run("offers made", func(t *testing.T) {
		jar, _ := authedJar(t, "AT1")
		page, err := c.OffersMade(ctx, jar)
		require.NoError(t, err)
		assert.Equal(t, "/market/offers/made/", gotPath)
		require.Len(t, page.Results, 1)
		assert.Equal(t, "25.00", page.Results[0].OfferedPrice)
	})
}
