package market

import (
	"encoding/json"
	"net/url"
	"strconv"
)

// Listing types as the backing API reports them.
const (
	ListingTypeItem   = "item"
	ListingTypeSublet = "sublet"
)

// User is the marketplace account behind the session.
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// Page is a paginated API response.
type Page[T any] struct {
	Count    int    `json:"count"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
	PageSize int    `json:"page_size"`
	Offset   int    `json:"offset"`
	Results  []T    `json:"results"`
}

// Listing is a marketplace posting. AdditionalData carries type-specific
// fields; decode it with ItemData or SubletData depending on ListingType.
type Listing struct {
	ID              int             `json:"id"`
	Seller          User            `json:"seller"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Price           string          `json:"price"`
	NegotiablePrice bool            `json:"negotiable_price"`
	ListingType     string          `json:"listing_type"`
	Images          []ListingImage  `json:"images"`
	Favorites       int             `json:"favorites"`
	Favorited       bool            `json:"favorited"`
	CreatedAt       string          `json:"created_at"`
	AdditionalData  json.RawMessage `json:"additional_data"`
}

// ListingImage is an uploaded listing photo.
type ListingImage struct {
	ID    int    `json:"id"`
	Image string `json:"image"`
}

// ItemData is the additional data of an item listing.
type ItemData struct {
	Condition string `json:"condition"`
	Category  string `json:"category"`
}

// SubletData is the additional data of a sublet listing.
type SubletData struct {
	Address   string `json:"address"`
	Beds      int    `json:"beds"`
	Baths     int    `json:"baths"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// ItemData decodes the listing's additional data as an item.
func (l Listing) ItemData() (ItemData, error) {
	var d ItemData
	if len(l.AdditionalData) == 0 {
		return d, nil
	}
	err := json.Unmarshal(l.AdditionalData, &d)
	return d, err
}

// SubletData decodes the listing's additional data as a sublet.
func (l Listing) SubletData() (SubletData, error) {
	var d SubletData
	if len(l.AdditionalData) == 0 {
		return d, nil
	}
	err := json.Unmarshal(l.AdditionalData, &d)
	return d, err
}

// Offer is a price offer on a listing.
type Offer struct {
	ID           int    `json:"id"`
	Listing      int    `json:"listing"`
	ListingTitle string `json:"listing_title"`
	Buyer        User   `json:"buyer"`
	OfferedPrice string `json:"offered_price"`
	Message      string `json:"message"`
	CreatedAt    string `json:"created_at"`
}

// OfferPayload is the body of an offer creation request.
type OfferPayload struct {
	OfferedPrice string `json:"offered_price"`
	Message      string `json:"message,omitempty"`
}

// PhoneStatus reports whether the account has a verified phone number.
type PhoneStatus struct {
	PhoneNumber string `json:"phone_number"`
	Verified    bool   `json:"verified"`
}

// ListingQuery filters and paginates listing searches. Zero values are
// omitted from the query string.
type ListingQuery struct {
	Type      string
	Title     string
	Category  string
	Condition string
	MinPrice  string
	MaxPrice  string
	Beds      int
	Baths     int
	StartDate string
	EndDate   string
	Limit     int
	Offset    int
}

// Encode renders the query as URL parameters in the API's naming.
func (q ListingQuery) Encode() url.Values {
	v := url.Values{}
	setStr := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	setInt := func(key string, val int) {
		if val > 0 {
			v.Set(key, strconv.Itoa(val))
		}
	}

	setStr("type", q.Type)
	setStr("title", q.Title)
	setStr("category", q.Category)
	setStr("condition", q.Condition)
	setStr("min_price", q.MinPrice)
	setStr("max_price", q.MaxPrice)
	setInt("beds", q.Beds)
	setInt("baths", q.Baths)
	setStr("start_date", q.StartDate)
	setStr("end_date", q.EndDate)
	setInt("limit", q.Limit)
	setInt("offset", q.Offset)
	return v
}
