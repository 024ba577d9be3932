package preview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takeymahesh06/silaiwala/internal/common/logger"
	"github.com/takeymahesh06/silaiwala/internal/pricing"
)

const testDebounce = 20 * time.Millisecond

type fakeCall struct {
	ctx   context.Context
	req   pricing.QuoteRequest
	reply chan pricing.QuoteResult
}

// fakeQuoter blocks every call until the test replies to it.
type fakeQuoter struct {
	mu          sync.Mutex
	calls       []*fakeCall
	honorCancel bool
	returned    int32
}

func (f *fakeQuoter) FetchQuote(ctx context.Context, req pricing.QuoteRequest) pricing.QuoteResult {
	call := &fakeCall{ctx: ctx, req: req, reply: make(chan pricing.QuoteResult, 1)}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	defer atomic.AddInt32(&f.returned, 1)

	if f.honorCancel {
		select {
		case r := <-call.reply:
			return r
		case <-ctx.Done():
			return pricing.QuoteResult{Status: pricing.StatusError, Message: "cancelled", Cancelled: true}
		}
	}
	return <-call.reply
}

func (f *fakeQuoter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeQuoter) call(i int) *fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func (f *fakeQuoter) waitReturned(t *testing.T, n int32) {
	t.Helper()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&f.returned) >= n }, time.Second, 2*time.Millisecond)
}

func success(price float64) pricing.QuoteResult {
	return pricing.QuoteResult{Status: pricing.StatusSuccess, CalculatedPrice: &price}
}

func failure(msg string) pricing.QuoteResult {
	return pricing.QuoteResult{Status: pricing.StatusError, Message: msg}
}

func newTestController(t *testing.T, q pricing.Quoter) *Controller {
	t.Helper()
	c := NewController(q, WithDebounce(testDebounce), WithLogger(logger.NewTestLogger(t)))
	t.Cleanup(c.Close)
	return c
}

func settledWith(c *Controller, price float64) func() bool {
	return func() bool {
		s := c.State()
		return s.Phase == PhaseSettled && s.Price != nil && *s.Price == price
	}
}

func TestController_SuccessScenario(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","calculated_price":850}`))
	}))
	defer server.Close()

	client := pricing.NewClient(pricing.Config{BaseURL: server.URL, Timeout: time.Second}, logger.NewTestLogger(t))
	c := newTestController(t, client)

	c.Update(pricing.Selection{ServiceID: 3, AreaID: 7, Quantity: 1, Urgency: pricing.UrgencyNormal})

	require.Eventually(t, settledWith(c, 850), time.Second, 5*time.Millisecond)
	s := c.State()
	assert.False(t, s.Loading)
	assert.Nil(t, s.Error)
	assert.Equal(t, 850.0, *s.Price)
	assert.Equal(t, "₹ 850", Render(s))
}

func TestController_ErrorRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	}))
	defer server.Close()

	client := pricing.NewClient(pricing.Config{BaseURL: server.URL, Timeout: time.Second}, logger.NewTestLogger(t))
	c := newTestController(t, client)

	c.Update(pricing.Selection{ServiceID: 3, AreaID: 7})

	require.Eventually(t, func() bool { return c.State().Phase == PhaseSettled }, time.Second, 5*time.Millisecond)
	s := c.State()
	require.NotNil(t, s.Error)
	assert.Equal(t, "boom", *s.Error)
	assert.Nil(t, s.Price)
	assert.False(t, s.Loading)
}

func TestController_DebounceCollapsesBursts(t *testing.T) {
	q := &fakeQuoter{}
	c := NewController(q, WithDebounce(50*time.Millisecond), WithLogger(logger.NewTestLogger(t)))
	defer c.Close()

	for qty := 1; qty <= 5; qty++ {
		c.Update(pricing.Selection{ServiceID: 3, AreaID: 7, Quantity: qty})
	}
	assert.Equal(t, PhaseIdle, c.State().Phase, "nothing is issued before the quiet period")

	require.Eventually(t, func() bool { return q.count() == 1 }, time.Second, 2*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, q.count())
	assert.Equal(t, 5, q.call(0).req.OrderContext.Quantity, "the last change in the burst wins")

	q.call(0).reply <- success(500)
	require.Eventually(t, settledWith(c, 500), time.Second, 2*time.Millisecond)
}

func TestController_OutOfOrderResolution(t *testing.T) {
	// The quoter ignores cancellation so the stale reply really arrives.
	q := &fakeQuoter{}
	c := newTestController(t, q)

	c.Update(pricing.Selection{ServiceID: 3, AreaID: 7, Urgency: pricing.UrgencyNormal})
	require.Eventually(t, func() bool { return q.count() == 1 }, time.Second, 2*time.Millisecond)

	c.Update(pricing.Selection{ServiceID: 3, AreaID: 7, Urgency: pricing.UrgencyRush})
	require.Eventually(t, func() bool { return q.count() == 2 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, pricing.UrgencyRush, q.call(1).req.OrderContext.Urgency)

	// B answers first, A afterwards.
	q.call(1).reply <- success(1200)
	require.Eventually(t, settledWith(c, 1200), time.Second, 2*time.Millisecond)

	q.call(0).reply <- success(800)
	q.waitReturned(t, 2)
	time.Sleep(10 * time.Millisecond)

	s := c.State()
	require.NotNil(t, s.Price)
	assert.Equal(t, 1200.0, *s.Price)
}

func TestController_StaleResultBeforeNewIssue(t *testing.T) {
	q := &fakeQuoter{}
	c := NewController(q, WithDebounce(80*time.Millisecond), WithLogger(logger.NewTestLogger(t)))
	defer c.Close()

	c.Update(pricing.Selection{ServiceID: 3, AreaID: 7})
	require.Eventually(t, func() bool { return q.count() == 1 }, time.Second, 2*time.Millisecond)

	// A newer change is still debouncing when the old reply lands.
	c.Update(pricing.Selection{ServiceID: 4, AreaID: 7})
	q.call(0).reply <- success(300)
	q.waitReturned(t, 1)
	time.Sleep(10 * time.Millisecond)

	s := c.State()
	assert.Nil(t, s.Price)
	assert.True(t, s.Loading)

	require.Eventually(t, func() bool { return q.count() == 2 }, time.Second, 2*time.Millisecond)
	q.call(1).reply <- success(450)
	require.Eventually(t, settledWith(c, 450), time.Second, 2*time.Millisecond)
}

func TestController_NewerChangeCancelsInFlight(t *testing.T) {
	q := &fakeQuoter{honorCancel: true}
	c := newTestController(t, q)

	c.Update(pricing.Selection{ServiceID: 3, AreaID: 7})
	require.Eventually(t, func() bool { return q.count() == 1 }, time.Second, 2*time.Millisecond)

	c.Update(pricing.Selection{ServiceID: 3, AreaID: 8})
	require.Eventually(t, func() bool { return q.call(0).ctx.Err() != nil }, time.Second, 2*time.Millisecond)

	require.Eventually(t, func() bool { return q.count() == 2 }, time.Second, 2*time.Millisecond)
	q.call(1).reply <- failure("Pricing API failed")

	require.Eventually(t, func() bool { return c.State().Phase == PhaseSettled }, time.Second, 2*time.Millisecond)
	assert.Equal(t, "Pricing API failed", *c.State().Error)
}

func TestController_Guard(t *testing.T) {
	q := &fakeQuoter{}
	c := newTestController(t, q)

	for _, sel := range []pricing.Selection{
		{},
		{ServiceID: 3},
		{AreaID: 7},
		{ServiceID: -1, AreaID: 7},
		{ServiceID: 3, AreaID: 0},
	} {
		c.Update(sel)
	}
	time.Sleep(5 * testDebounce)

	assert.Equal(t, 0, q.count())
	s := c.State()
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.False(t, s.Loading)
	assert.Nil(t, s.Error)
	assert.Nil(t, s.Price)
	assert.Equal(t, "", Render(s))
}

func TestController_GuardCancelsScheduledFetch(t *testing.T) {
	q := &fakeQuoter{}
	c := NewController(q, WithDebounce(50*time.Millisecond), WithLogger(logger.NewTestLogger(t)))
	defer c.Close()

	c.Update(pricing.Selection{ServiceID: 3, AreaID: 7})
	c.Update(pricing.Selection{ServiceID: 3})
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, 0, q.count())
	assert.Equal(t, PhaseIdle, c.State().Phase)
}

func TestController_GuardResetsSettledPreview(t *testing.T) {
	q := &fakeQuoter{}
	c := newTestController(t, q)

	c.Update(pricing.Selection{ServiceID: 3, AreaID: 7})
	require.Eventually(t, func() bool { return q.count() == 1 }, time.Second, 2*time.Millisecond)
	q.call(0).reply <- success(700)
	require.Eventually(t, settledWith(c, 700), time.Second, 2*time.Millisecond)

	c.Update(pricing.Selection{AreaID: 7})
	s := c.State()
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Nil(t, s.Price)
}

func TestController_PendingClearsPreviousOutcome(t *testing.T) {
	q := &fakeQuoter{}
	c := newTestController(t, q)

	c.Update(pricing.Selection{ServiceID: 3, AreaID: 7})
	require.Eventually(t, func() bool { return q.count() == 1 }, time.Second, 2*time.Millisecond)
	q.call(0).reply <- failure("boom")
	require.Eventually(t, func() bool { return c.State().Error != nil }, time.Second, 2*time.Millisecond)

	c.Update(pricing.Selection{ServiceID: 3, AreaID: 7, Quantity: 2})
	require.Eventually(t, func() bool { return q.count() == 2 }, time.Second, 2*time.Millisecond)

	s := c.State()
	assert.Equal(t, PhasePending, s.Phase)
	assert.True(t, s.Loading)
	assert.Nil(t, s.Error)
	assert.Nil(t, s.Price)

	q.call(1).reply <- success(900)
	require.Eventually(t, settledWith(c, 900), time.Second, 2*time.Millisecond)
}

func TestController_Close(t *testing.T) {
	t.Run("before the timer fires", func(t *testing.T) {
		q := &fakeQuoter{}
		c := NewController(q, WithDebounce(50*time.Millisecond))

		c.Update(pricing.Selection{ServiceID: 3, AreaID: 7})
		c.Close()
		time.Sleep(150 * time.Millisecond)

		assert.Equal(t, 0, q.count())
	})

	t.Run("while a quote is in flight", func(t *testing.T) {
		q := &fakeQuoter{}
		c := NewController(q, WithDebounce(testDebounce))

		c.Update(pricing.Selection{ServiceID: 3, AreaID: 7})
		require.Eventually(t, func() bool { return q.count() == 1 }, time.Second, 2*time.Millisecond)

		c.Close()
		assert.Error(t, q.call(0).ctx.Err())

		q.call(0).reply <- success(100)
		q.waitReturned(t, 1)
		time.Sleep(10 * time.Millisecond)
		assert.Nil(t, c.State().Price)

		c.Update(pricing.Selection{ServiceID: 3, AreaID: 7})
		time.Sleep(5 * testDebounce)
		assert.Equal(t, 1, q.count())

		c.Close()
	})
}

func TestController_Subscribe(t *testing.T) {
	q := &fakeQuoter{}
	c := newTestController(t, q)

	var (
		mu       sync.Mutex
		rendered []string
	)
	unsubscribe := c.Subscribe(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		rendered = append(rendered, Render(s))
	})

	c.Update(pricing.Selection{ServiceID: 3, AreaID: 7})
	require.Eventually(t, func() bool { return q.count() == 1 }, time.Second, 2*time.Millisecond)
	q.call(0).reply <- success(1250.5)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(rendered) == 2
	}, time.Second, 2*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"Calculating price...", "₹ 1250.5"}, rendered)
	mu.Unlock()

	unsubscribe()
	c.Update(pricing.Selection{})

	mu.Lock()
	assert.Len(t, rendered, 2)
	mu.Unlock()
}

func TestController_Settled(t *testing.T) {
	q := &fakeQuoter{}
	c := newTestController(t, q)
	assert.True(t, c.Settled())

	c.Update(pricing.Selection{ServiceID: 1, AreaID: 2})
	assert.False(t, c.Settled(), "armed debounce is not settled")

	require.Eventually(t, func() bool { return q.count() == 1 }, time.Second, 2*time.Millisecond)
	assert.False(t, c.Settled(), "outstanding quote is not settled")

	q.call(0).reply <- success(300)
	require.Eventually(t, c.Settled, time.Second, 2*time.Millisecond)

	c.Update(pricing.Selection{ServiceID: 1})
	assert.True(t, c.Settled(), "guard settles immediately")
}
