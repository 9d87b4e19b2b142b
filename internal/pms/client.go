package pms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"housekeeper/internal/config"
	"housekeeper/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Client is a typed read adapter over the PMS HTTP API. It holds no
// session state; authentication is supplied by the caller per call, so one
// client is safe to share across concurrent runs.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	pageSize   int
}

func NewClient(cfg config.PMSConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 2
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		pageSize:   pageSize,
	}
}

// bookingPayload is the upstream booking shape, decoded defensively at the
// boundary. Pointers distinguish "absent" from zero values.
type bookingPayload struct {
	ID         *int64 `json:"id"`
	PropertyID *int64 `json:"propertyId"`
	RoomID     *int64 `json:"roomId"`
	Arrival    string `json:"arrival"`
	Departure  string `json:"departure"`
	Status     string `json:"status"`
	GuestName  string `json:"guestName"`
	GuestEmail string `json:"guestEmail"`
	GuestPhone string `json:"guestPhone"`
	Modified   string `json:"modifiedTime"`
}

type bookingListResponse struct {
	Data    []bookingPayload `json:"data"`
	HasMore bool             `json:"hasMore"`
}

// ListBookings pages through the upstream booking listing for each
// property and returns one flat slice. Enumeration order within a property
// follows the upstream response order.
func (c *Client) ListBookings(ctx context.Context, auth models.PMSAuth, propertyIDs []int64, start, end time.Time) ([]models.Booking, error) {
	var bookings []models.Booking

	for _, propertyID := range propertyIDs {
		page := 1
		for {
			params := url.Values{}
			params.Set("propertyId", strconv.FormatInt(propertyID, 10))
			params.Set("arrivalFrom", start.Format(models.DateFormat))
			params.Set("departureTo", end.Format(models.DateFormat))
			params.Set("page", strconv.Itoa(page))
			params.Set("limit", strconv.Itoa(c.pageSize))

			var resp bookingListResponse
			if err := c.doGet(ctx, auth, "/bookings", params, &resp); err != nil {
				return nil, err
			}

			for _, raw := range resp.Data {
				booking, err := decodeBooking(raw)
				if err != nil {
					return nil, err
				}
				bookings = append(bookings, booking)
			}

			if !resp.HasMore {
				break
			}
			page++
		}
	}

	return bookings, nil
}

type ratePayload struct {
	RoomID    *int64      `json:"roomId"`
	RoomName  string      `json:"roomName"`
	Date      string      `json:"date"`
	Price     json.Number `json:"price"`
	Currency  string      `json:"currency"`
	Available *bool       `json:"available"`
}

type rateListResponse struct {
	Data []ratePayload `json:"data"`
}

// GetRates returns the nightly rate snapshot keyed by YYYY-MM-DD. Always a
// fresh fetch; staleness is not tolerated for pricing.
func (c *Client) GetRates(ctx context.Context, auth models.PMSAuth, propertyID, roomID int64, start, end time.Time) (map[string]models.RateEntry, error) {
	params := url.Values{}
	params.Set("propertyId", strconv.FormatInt(propertyID, 10))
	params.Set("roomId", strconv.FormatInt(roomID, 10))
	params.Set("from", start.Format(models.DateFormat))
	params.Set("to", end.Format(models.DateFormat))

	var resp rateListResponse
	if err := c.doGet(ctx, auth, "/rates", params, &resp); err != nil {
		return nil, err
	}

	rates := make(map[string]models.RateEntry, len(resp.Data))
	for _, raw := range resp.Data {
		entry, err := decodeRate(raw, propertyID, roomID)
		if err != nil {
			return nil, err
		}
		rates[entry.Date.Format(models.DateFormat)] = entry
	}
	return rates, nil
}

func decodeBooking(raw bookingPayload) (models.Booking, error) {
	if raw.ID == nil || raw.PropertyID == nil || raw.RoomID == nil || raw.Arrival == "" || raw.Departure == "" || raw.Status == "" {
		return models.Booking{}, fmt.Errorf("%w: booking payload missing mandatory fields", ErrUpstreamRejected)
	}

	checkIn, err := time.ParseInLocation(models.DateFormat, raw.Arrival, time.UTC)
	if err != nil {
		return models.Booking{}, fmt.Errorf("%w: booking %d invalid arrival %q", ErrUpstreamRejected, *raw.ID, raw.Arrival)
	}
	checkOut, err := time.ParseInLocation(models.DateFormat, raw.Departure, time.UTC)
	if err != nil {
		return models.Booking{}, fmt.Errorf("%w: booking %d invalid departure %q", ErrUpstreamRejected, *raw.ID, raw.Departure)
	}

	status := strings.ToLower(strings.TrimSpace(raw.Status))
	switch status {
	case models.BookingStatusConfirmed, models.BookingStatusModified, models.BookingStatusCancelled:
	default:
		return models.Booking{}, fmt.Errorf("%w: booking %d unknown status %q", ErrUpstreamRejected, *raw.ID, raw.Status)
	}

	var modified time.Time
	if raw.Modified != "" {
		if t, err := time.Parse(time.RFC3339, raw.Modified); err == nil {
			modified = t
		}
	}

	return models.Booking{
		ID:         *raw.ID,
		PropertyID: *raw.PropertyID,
		RoomID:     *raw.RoomID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		GuestName:  raw.GuestName,
		GuestEmail: raw.GuestEmail,
		GuestPhone: raw.GuestPhone,
		Status:     status,
		ModifiedAt: modified,
	}, nil
}

func decodeRate(raw ratePayload, propertyID, roomID int64) (models.RateEntry, error) {
	if raw.Date == "" || raw.Price == "" || raw.Currency == "" {
		return models.RateEntry{}, fmt.Errorf("%w: rate payload missing mandatory fields", ErrUpstreamRejected)
	}

	date, err := time.ParseInLocation(models.DateFormat, raw.Date, time.UTC)
	if err != nil {
		return models.RateEntry{}, fmt.Errorf("%w: rate invalid date %q", ErrUpstreamRejected, raw.Date)
	}
	price, err := decimal.NewFromString(raw.Price.String())
	if err != nil {
		return models.RateEntry{}, fmt.Errorf("%w: rate invalid price %q", ErrUpstreamRejected, raw.Price.String())
	}

	available := true
	if raw.Available != nil {
		available = *raw.Available
	}

	return models.RateEntry{
		PropertyID: propertyID,
		RoomID:     roomID,
		RoomName:   raw.RoomName,
		Date:       date,
		Price:      price,
		Currency:   strings.ToUpper(strings.TrimSpace(raw.Currency)),
		Available:  available,
	}, nil
}

func (c *Client) doGet(ctx context.Context, auth models.PMSAuth, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if auth.Token != "" {
		req.Header.Set("token", auth.Token)
	}
	if auth.PropKey != "" {
		req.Header.Set("propkey", auth.PropKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: http %d on %s", ErrUpstreamUnavailable, resp.StatusCode, path)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: http %d on %s", ErrUpstreamRejected, resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUpstreamRejected, err)
	}
	return nil
}
