package preview

import (
	"context"
	"sync"
	"time"

	"github.com/takeymahesh06/silaiwala/internal/common/logger"
	"github.com/takeymahesh06/silaiwala/internal/common/metrics"
	"github.com/takeymahesh06/silaiwala/internal/common/observability"
	"github.com/takeymahesh06/silaiwala/internal/pricing"
)

const DefaultDebounce = 300 * time.Millisecond

// Controller turns a stream of selection changes into a debounced price
// preview. Every Update advances the generation; a quote may only write
// state while the generation it was issued under is still current.
type Controller struct {
	quoter   pricing.Quoter
	debounce time.Duration
	logger   logger.Logger
	obs      *observability.Observability

	mu         sync.Mutex
	state      State
	generation uint64
	timer      *time.Timer
	cancel     context.CancelFunc
	changedAt  time.Time
	closed     bool
	listeners  []listener
	nextID     int

	// notifyMu serializes listener calls so the last call always carries
	// the latest state.
	notifyMu sync.Mutex
}

type listener struct {
	id int
	fn func(State)
}

type Option func(*Controller)

// WithDebounce sets the quiet period before a quote is requested.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.debounce = d
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func WithObservability(o *observability.Observability) Option {
	return func(c *Controller) { c.obs = o }
}

func NewController(q pricing.Quoter, opts ...Option) *Controller {
	c := &Controller{
		quoter:   q,
		debounce: DefaultDebounce,
		logger:   logger.NewNoOpLogger(),
		state:    idleState(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the current preview.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Settled reports whether the current state answers the latest Update:
// no debounce is armed and no quote is outstanding.
func (c *Controller) Settled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Generation == c.generation && c.state.Phase != PhasePending
}

// Subscribe registers fn to be called after state changes and returns a
// func that removes it. Listeners run synchronously and must not call back
// into the controller.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// Update feeds the latest selection. A selection without service and area
// resets the preview to idle without touching the network; otherwise the
// debounce timer is (re)armed.
func (c *Controller) Update(sel pricing.Selection) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	c.generation++
	gen := c.generation
	c.cancelInFlight()

	if !sel.Ready() {
		c.stopTimer()
		c.changedAt = time.Time{}
		changed := c.state.Phase != PhaseIdle
		c.state = idleState(gen)
		c.mu.Unlock()
		if changed {
			c.publish()
		}
		return
	}

	if c.stopTimer() {
		metrics.PreviewDebounced.Inc()
	}
	if c.changedAt.IsZero() {
		c.changedAt = time.Now()
	}
	c.timer = time.AfterFunc(c.debounce, func() { c.fire(gen, sel) })
	c.mu.Unlock()
}

// Close stops the timer and makes any in-flight quote a no-op. Later
// Updates are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.generation++
	c.stopTimer()
	c.cancelInFlight()
	c.listeners = nil
}

func (c *Controller) fire(gen uint64, sel pricing.Selection) {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.timer = nil
	c.state = pendingState(gen)
	c.mu.Unlock()

	c.obs.RecordAttempt(ctx, gen)
	c.publish()

	req := pricing.BuildRequest(sel)
	c.logger.Debug("requesting quote", map[string]interface{}{
		"generation": gen,
		"serviceId":  req.ServiceID,
		"areaId":     req.AreaID,
	})
	c.resolve(gen, c.quoter.FetchQuote(ctx, req))
}

func (c *Controller) resolve(gen uint64, res pricing.QuoteResult) {
	c.mu.Lock()
	if c.closed || gen != c.generation || res.Cancelled {
		current := c.generation
		c.mu.Unlock()
		metrics.PreviewSuperseded.Inc()
		c.logger.Debug("discarding superseded quote", map[string]interface{}{
			"generation": gen,
			"current":    current,
		})
		return
	}

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	outcome := metrics.OutcomeSuccess
	if price, ok := res.Price(); ok {
		c.state = priceState(gen, price)
	} else {
		outcome = metrics.OutcomeError
		msg := res.Message
		if msg == "" {
			msg = pricing.MessageUnableToCalculate
		}
		c.state = errorState(gen, msg)
	}
	latency := time.Since(c.changedAt)
	c.changedAt = time.Time{}
	c.mu.Unlock()

	c.obs.RecordSettled(context.Background(), latency, outcome)
	c.publish()
}

// stopTimer reports whether a scheduled fetch was cancelled. Callers hold mu.
func (c *Controller) stopTimer() bool {
	if c.timer == nil {
		return false
	}
	stopped := c.timer.Stop()
	c.timer = nil
	return stopped
}

// cancelInFlight aborts the outstanding request, if any. Callers hold mu.
func (c *Controller) cancelInFlight() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) publish() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	s := c.state
	fns := make([]func(State), len(c.listeners))
	for i, l := range c.listeners {
		fns[i] = l.fn
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
