package preview

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takeymahesh06/silaiwala/internal/common/logger"
	"github.com/takeymahesh06/silaiwala/internal/pricing"
)

// fakeBackend prices a request as 500 per unit, doubled for rush orders.
func fakeBackend(t *testing.T, hits *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		var req pricing.QuoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":"error","message":"bad request"}`))
			return
		}
		if req.AreaID == 404 {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not found."}`))
			return
		}
		price := 500 * float64(req.OrderContext.Quantity)
		if req.OrderContext.Urgency == pricing.UrgencyRush {
			price *= 2
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":           "success",
			"service_id":       req.ServiceID,
			"area_id":          req.AreaID,
			"base_price":       500,
			"calculated_price": price,
		})
	}))
}

func TestPreview_FormToPriceThroughCache(t *testing.T) {
	var hits int32
	backend := fakeBackend(t, &hits)
	defer backend.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	log := logger.NewTestLogger(t)
	client := pricing.NewClient(pricing.Config{BaseURL: backend.URL, Timeout: time.Second}, log)
	quoter := pricing.NewCachedQuoter(client, rdb, time.Minute, log)
	c := newTestController(t, quoter)

	form := pricing.FormFields{ServiceID: "3", AreaID: "7", Quantity: "2", Urgency: "normal", FabricCost: "0"}
	sel, err := pricing.SelectionFromForm(form)
	require.NoError(t, err)

	c.Update(sel)
	require.Eventually(t, settledWith(c, 1000), time.Second, 5*time.Millisecond)
	assert.Equal(t, "₹ 1000", Render(c.State()))

	form.Urgency = "rush"
	sel, err = pricing.SelectionFromForm(form)
	require.NoError(t, err)
	c.Update(sel)
	require.Eventually(t, settledWith(c, 2000), time.Second, 5*time.Millisecond)

	// Back to the first selection: served from Redis.
	form.Urgency = "normal"
	sel, err = pricing.SelectionFromForm(form)
	require.NoError(t, err)
	c.Update(sel)
	require.Eventually(t, settledWith(c, 1000), time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Len(t, mr.Keys(), 2)
}

func TestPreview_BackendErrorIsShownInline(t *testing.T) {
	var hits int32
	backend := fakeBackend(t, &hits)
	defer backend.Close()

	client := pricing.NewClient(pricing.Config{BaseURL: backend.URL, Timeout: time.Second}, logger.NewTestLogger(t))
	c := newTestController(t, client)

	c.Update(pricing.Selection{ServiceID: 3, AreaID: 404})
	require.Eventually(t, func() bool { return c.State().Phase == PhaseSettled }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Not found.", Render(c.State()))

	c.Update(pricing.Selection{ServiceID: 3, AreaID: 7})
	require.Eventually(t, settledWith(c, 500), time.Second, 5*time.Millisecond)
	assert.Nil(t, c.State().Error)
}
