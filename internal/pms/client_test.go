package pms

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"housekeeper/internal/config"
	"housekeeper/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	return NewClient(config.PMSConfig{
		BaseURL:        baseURL,
		TimeoutSeconds: 5,
		RateLimitRPS:   1000,
		PageSize:       2,
	})
}

func testAuth() models.PMSAuth {
	return models.PMSAuth{Token: "test-token", PropKey: "test-propkey"}
}

func day(s string) time.Time {
	t, err := time.Parse(models.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestListBookings_Pagination(t *testing.T) {
	var gotToken, gotPropKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bookings", r.URL.Path)
		gotToken = r.Header.Get("token")
		gotPropKey = r.Header.Get("propkey")
		assert.Equal(t, "272758", r.URL.Query().Get("propertyId"))
		assert.Equal(t, "2025-07-01", r.URL.Query().Get("arrivalFrom"))
		assert.Equal(t, "2025-07-15", r.URL.Query().Get("departureTo"))

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `{"data":[
				{"id":1,"propertyId":272758,"roomId":570479,"arrival":"2025-07-01","departure":"2025-07-04","status":"confirmed"},
				{"id":2,"propertyId":272758,"roomId":570480,"arrival":"2025-07-02","departure":"2025-07-05","status":"modified"}
			],"hasMore":true}`)
		case "2":
			fmt.Fprint(w, `{"data":[
				{"id":3,"propertyId":272758,"roomId":570481,"arrival":"2025-07-03","departure":"2025-07-06","status":"cancelled"}
			],"hasMore":false}`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	bookings, err := client.ListBookings(context.Background(), testAuth(), []int64{272758}, day("2025-07-01"), day("2025-07-15"))
	require.NoError(t, err)

	assert.Equal(t, "test-token", gotToken)
	assert.Equal(t, "test-propkey", gotPropKey)

	require.Len(t, bookings, 3)
	// Upstream order is preserved.
	assert.Equal(t, int64(1), bookings[0].ID)
	assert.Equal(t, int64(2), bookings[1].ID)
	assert.Equal(t, int64(3), bookings[2].ID)
	assert.Equal(t, models.BookingStatusCancelled, bookings[2].Status)
	assert.Equal(t, "2025-07-04", bookings[0].CheckOut.Format(models.DateFormat))
}

func TestListBookings_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	_, err := client.ListBookings(context.Background(), testAuth(), []int64{272758}, day("2025-07-01"), day("2025-07-15"))
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestListBookings_ClientErrorIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	_, err := client.ListBookings(context.Background(), testAuth(), []int64{272758}, day("2025-07-01"), day("2025-07-15"))
	assert.ErrorIs(t, err, ErrUpstreamRejected)
}

func TestListBookings_MalformedPayloadIsRejected(t *testing.T) {
	cases := map[string]string{
		"missing id":     `{"data":[{"propertyId":272758,"roomId":570479,"arrival":"2025-07-01","departure":"2025-07-04","status":"confirmed"}]}`,
		"missing dates":  `{"data":[{"id":1,"propertyId":272758,"roomId":570479,"status":"confirmed"}]}`,
		"unknown status": `{"data":[{"id":1,"propertyId":272758,"roomId":570479,"arrival":"2025-07-01","departure":"2025-07-04","status":"waitlisted"}]}`,
		"invalid date":   `{"data":[{"id":1,"propertyId":272758,"roomId":570479,"arrival":"July 1st","departure":"2025-07-04","status":"confirmed"}]}`,
		"not json":       `<html>oops</html>`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, payload)
			}))
			defer srv.Close()

			client := testClient(srv.URL)
			_, err := client.ListBookings(context.Background(), testAuth(), []int64{272758}, day("2025-07-01"), day("2025-07-15"))
			assert.ErrorIs(t, err, ErrUpstreamRejected)
		})
	}
}

func TestListBookings_ConnectionRefusedIsUnavailable(t *testing.T) {
	client := testClient("http://127.0.0.1:1")
	_, err := client.ListBookings(context.Background(), testAuth(), []int64{272758}, day("2025-07-01"), day("2025-07-15"))
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestGetRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rates", r.URL.Path)
		assert.Equal(t, "272758", r.URL.Query().Get("propertyId"))
		assert.Equal(t, "570479", r.URL.Query().Get("roomId"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[
			{"roomId":570479,"roomName":"Deluxe Twin","date":"2025-07-01","price":8000,"currency":"jpy"},
			{"roomId":570479,"roomName":"Deluxe Twin","date":"2025-07-02","price":"9000","currency":"JPY","available":false}
		]}`)
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	rates, err := client.GetRates(context.Background(), testAuth(), 272758, 570479, day("2025-07-01"), day("2025-07-03"))
	require.NoError(t, err)
	require.Len(t, rates, 2)

	first := rates["2025-07-01"]
	assert.True(t, first.Price.Equal(decimal.NewFromInt(8000)))
	assert.Equal(t, "JPY", first.Currency)
	assert.True(t, first.Available)
	assert.Equal(t, "Deluxe Twin", first.RoomName)

	second := rates["2025-07-02"]
	assert.False(t, second.Available)
}

func TestGetRates_InvalidPriceIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"roomId":570479,"date":"2025-07-01","price":"eight thousand","currency":"JPY"}]}`)
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	_, err := client.GetRates(context.Background(), testAuth(), 272758, 570479, day("2025-07-01"), day("2025-07-03"))
	assert.ErrorIs(t, err, ErrUpstreamRejected)
}
