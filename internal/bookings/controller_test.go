package bookings

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	c := NewController(f.service, f.finalizer)
	r := gin.New()
	v1 := r.Group("/api/v1")
	SetupBookingRoutes(v1, c)
	SetupBookingAdminRoutes(v1.Group("/admin"), c)
	return r, f
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Errors struct {
		Kind string `json:"kind"`
	} `json:"errors"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestFinalizeEndpoint(t *testing.T) {
	r, f := newRouter(t)
	_, err := f.holds.Reserve(context.Background(), mustKey(t, "A01"), "s1", 0)
	require.NoError(t, err)

	w := doJSON(r, http.MethodPost, "/api/v1/bookings/finalize", map[string]string{
		"stallId": "A01", "bookingDate": "2026-02-01", "sessionId": "s1", "queueId": "t1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/bookings/finalize", map[string]string{
		"stallId": "A01", "bookingDate": "2026-02-01",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/bookings/finalize", map[string]string{
		"stallId": "A01", "bookingDate": "2026-02-01", "sessionId": "s1",
		"customerId": "cust-1", "customerName": "Alice", "customerPhone": "+94771234567",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var booking BookingResponse
	decode(t, w, &booking)
	assert.Equal(t, "A01", booking.StallID)
	assert.Equal(t, "2026-02-01", booking.BookingDate)
	assert.Equal(t, StatusPending, booking.Status)
	require.NotNil(t, booking.Payment)
	assert.Equal(t, 1500.0, booking.Payment.Amount)

	w = doJSON(r, http.MethodPost, "/api/v1/bookings/finalize", map[string]string{
		"stallId": "A01", "bookingDate": "2026-02-01", "sessionId": "s1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_BOOKED", decode(t, w, nil).Errors.Kind)

	w = doJSON(r, http.MethodPost, "/api/v1/bookings/finalize", map[string]string{
		"stallId": "A02", "bookingDate": "2026-02-01", "sessionId": "ghost",
	})
	assert.Equal(t, http.StatusGone, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/bookings/"+booking.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/api/v1/bookings/not-a-uuid", nil).Code)
}

func TestPaymentAndAdminEndpoints(t *testing.T) {
	r, f := newRouter(t)
	b := f.book(t, "A01", "cust-1")
	base := "/api/v1/bookings/" + b.ID.String()

	w := doJSON(r, http.MethodPost, base+"/payment-slip", map[string]string{"customerId": "cust-1", "slipReference": "BOC-1"})
	require.Equal(t, http.StatusOK, w.Code)
	var intent PaymentIntentResponse
	decode(t, w, &intent)
	assert.Equal(t, IntentSubmitted, intent.Status)

	w = doJSON(r, http.MethodPatch, "/api/v1/admin/bookings/"+b.ID.String(), map[string]string{"action": "APPROVE"})
	require.Equal(t, http.StatusOK, w.Code)
	var approved BookingResponse
	decode(t, w, &approved)
	assert.Equal(t, StatusConfirmed, approved.Status)
	assert.Equal(t, PaymentPaid, approved.PaymentStatus)

	w = doJSON(r, http.MethodPatch, "/api/v1/admin/bookings/"+b.ID.String(), map[string]string{"action": "APPROVE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_STATE", decode(t, w, nil).Errors.Kind)

	w = doJSON(r, http.MethodGet, "/api/v1/admin/bookings?status=confirmed&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list BookingListResponse
	decode(t, w, &list)
	assert.EqualValues(t, 1, list.TotalCount)
	assert.Equal(t, 5, list.Limit)
	assert.Equal(t, 1, list.TotalPages)

	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/api/v1/admin/bookings?limit=500", nil).Code)
}
