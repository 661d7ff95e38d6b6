// README: Router tests over in-memory wiring: identity, flow, error mapping.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safar/internal/modules/booking"
	"safar/internal/modules/dispatch"
	"safar/internal/modules/tracking"
	"safar/internal/pubsub"
	"safar/internal/types"
	"safar/internal/ws"
)

type fixedQuoter struct{ m types.Money }

func (q fixedQuoter) Quote(_ context.Context, _ string) (types.Money, error) { return q.m, nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	broker := pubsub.NewMemoryBroker()
	bookingStore := booking.NewMemStore()
	bookings := booking.NewService(bookingStore, broker, fixedQuoter{types.Money{Amount: 10000, Currency: "USD"}}, nil)
	drivers := dispatch.NewMemStore()
	disp := dispatch.NewService(drivers, bookings, dispatch.LeastLoadedPolicy{Counts: bookings}, nil)
	track := tracking.NewService(tracking.NewMemStore(), bookingStore, broker, nil)
	srv := NewServer(ServerDeps{
		Bookings: bookings,
		Dispatch: disp,
		Tracking: track,
		Hub:      ws.NewHub(broker, nil),
	})
	return srv.Routes()
}

func do(t *testing.T, h http.Handler, method, path string, actor, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != "" {
		req.Header.Set("X-Actor-Id", actor)
		req.Header.Set("X-Actor-Role", role)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestIdentityRequired(t *testing.T) {
	h := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/api/bookings", "", "", map[string]any{"service_type": "city_tour"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/bookings/x", nil)
	req.Header.Set("X-Actor-Id", "c1")
	req.Header.Set("X-Actor-Role", "superuser")
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
}

func TestHealthIsOpen(t *testing.T) {
	h := newTestRouter(t)
	w := do(t, h, http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	h := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/api/bookings", "c1", "customer", map[string]any{
		"service_type":  "airport_transfer",
		"meeting_point": map[string]float64{"lat": 41.29, "lng": 69.24},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["id"].(string)

	w = do(t, h, http.MethodPost, "/api/bookings/"+id+"/submit", "c1", "customer", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/bookings/"+id+"/price", "op", "operator", map[string]any{
		"price": map[string]any{"amount": 12000, "currency": "USD"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Guard closed pre-confirmation.
	w = do(t, h, http.MethodGet, "/api/bookings/"+id+"/payment-guard", "c1", "customer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["can_pay"])

	w = do(t, h, http.MethodPost, "/api/bookings/"+id+"/confirm-price", "c1", "customer", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/bookings/"+id+"/payment-guard", "c1", "customer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	guard := decode(t, w)
	assert.Equal(t, true, guard["can_pay"])

	w = do(t, h, http.MethodPost, "/api/bookings/"+id+"/pay", "c1", "customer", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "paid", decode(t, w)["payment_status"])

	// Roster + assignment.
	w = do(t, h, http.MethodPost, "/api/drivers", "op", "operator", map[string]any{"name": "Karim", "phone": "+998901234567"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	driverID := decode(t, w)["driver_id"].(string)

	w = do(t, h, http.MethodPost, "/api/bookings/"+id+"/assign", "op", "operator", map[string]any{
		"driver_id": driverID, "share_contact": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/bookings/"+id+"/respond", driverID, "driver", map[string]any{"accept": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Customer can now see the driver.
	w = do(t, h, http.MethodGet, "/api/bookings/"+id+"/driver", "c1", "customer", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Karim", decode(t, w)["name"])

	// Driver streams a location.
	w = do(t, h, http.MethodPost, "/api/locations", driverID, "driver", map[string]any{
		"booking_id": id, "lat": 41.31, "lng": 69.25,
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/bookings/"+id+"/start", "op", "operator", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, h, http.MethodPost, "/api/bookings/"+id+"/complete", driverID, "driver", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/bookings/"+id+"/history", "op", "operator", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode(t, w)["history"].([]any)
	assert.Len(t, history, 9)
}

func TestProposePriceReportsCurrentStatus(t *testing.T) {
	h := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/api/bookings", "c1", "customer", map[string]any{"service_type": "city_tour"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)
	_ = do(t, h, http.MethodPost, "/api/bookings/"+id+"/submit", "c1", "customer", nil)
	_ = do(t, h, http.MethodPost, "/api/bookings/"+id+"/price", "op", "operator", map[string]any{
		"price": map[string]any{"amount": 12000, "currency": "USD"},
	})

	// A counter-offer keeps the booking awaiting confirmation; the response
	// must report that, not the pre-quote status.
	w = do(t, h, http.MethodPost, "/api/bookings/"+id+"/propose-price", "c1", "customer", map[string]any{
		"amount": map[string]any{"amount": 9000, "currency": "USD"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "awaiting_customer_confirmation", decode(t, w)["status"])

	w = do(t, h, http.MethodGet, "/api/bookings/"+id, "c1", "customer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "awaiting_customer_confirmation", decode(t, w)["status"])
}

func TestErrorMapping(t *testing.T) {
	h := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/api/bookings", "c1", "customer", map[string]any{"service_type": "city_tour"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)

	// Paying a draft: state conflict carrying the current status.
	w = do(t, h, http.MethodPost, "/api/bookings/"+id+"/pay", "c1", "customer", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "draft", decode(t, w)["current_status"])

	// Foreign customer: not found, not forbidden.
	w = do(t, h, http.MethodGet, "/api/bookings/"+id, "c2", "customer", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Operator-only routes are closed to customers.
	w = do(t, h, http.MethodPost, "/api/bookings/"+id+"/price", "c1", "customer", map[string]any{
		"price": map[string]any{"amount": 12000, "currency": "USD"},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Bad price surfaces as 400.
	_ = do(t, h, http.MethodPost, "/api/bookings/"+id+"/submit", "c1", "customer", nil)
	w = do(t, h, http.MethodPost, "/api/bookings/"+id+"/price", "op", "operator", map[string]any{
		"price": map[string]any{"amount": -1, "currency": "USD"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Assignment without a driver id: no unassign edge exists to bind it to.
	w = do(t, h, http.MethodPost, "/api/bookings/"+id+"/assign", "op", "operator", map[string]any{
		"share_contact": true,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Location for an unknown booking.
	w = do(t, h, http.MethodPost, "/api/locations", "d1", "driver", map[string]any{
		"booking_id": "missing", "lat": 1.0, "lng": 2.0,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAutoAssignOverHTTP(t *testing.T) {
	h := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/api/bookings", "c1", "customer", map[string]any{"service_type": "city_tour"})
	id := decode(t, w)["id"].(string)
	_ = do(t, h, http.MethodPost, "/api/bookings/"+id+"/submit", "c1", "customer", nil)
	_ = do(t, h, http.MethodPost, "/api/bookings/"+id+"/price", "op", "operator", map[string]any{
		"price": map[string]any{"amount": 9000, "currency": "USD"},
	})
	_ = do(t, h, http.MethodPost, "/api/bookings/"+id+"/confirm-price", "c1", "customer", nil)

	// No drivers yet: 409 unavailable.
	w = do(t, h, http.MethodPost, "/api/bookings/"+id+"/auto-assign", "op", "operator", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodPost, "/api/drivers", "op", "operator", map[string]any{"name": "Aziz", "phone": "+998907654321"})
	driverID := decode(t, w)["driver_id"].(string)

	w = do(t, h, http.MethodPost, "/api/bookings/"+id+"/auto-assign", "op", "operator", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, driverID, decode(t, w)["driver_id"])
}
