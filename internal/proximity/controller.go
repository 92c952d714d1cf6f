// Package proximity polls the backend for nearby alerts at an interval that
// adapts to threat severity. The controller is a single-goroutine actor: all
// state lives in the run loop, inputs arrive as posted commands, and fetch
// responses re-enter the loop tagged with the sequence number of the request
// that produced them. That gives the ordering guarantees directly: at most
// one in-flight request, responses applied in issue order, stale responses
// dropped.
package proximity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/crisiswatch/internal/backend"
	"github.com/mr1hm/crisiswatch/internal/geo"
	"github.com/mr1hm/crisiswatch/internal/models"
)

// Polling intervals by severity of the last response.
const (
	IntervalUrgent   = 15 * time.Minute // any critical or high
	IntervalElevated = 30 * time.Minute // medium, nothing above
	IntervalCalm     = 60 * time.Minute // low/unknown or empty
)

const (
	// RadiusDebounce absorbs slider movement before refetching.
	RadiusDebounce = 500 * time.Millisecond
	// MinMoveMiles gates location-triggered fetches.
	MinMoveMiles = 0.5

	backoffBase = time.Second
	backoffCap  = 30 * time.Second
)

// Client is the backend slice the controller consumes. The implementation
// clamps the radius to 50 miles.
type Client interface {
	FetchProximity(ctx context.Context, lat, lon, radiusMi float64) ([]models.ProximityAlert, error)
}

// Snapshot is the controller's published output.
type Snapshot struct {
	Alerts    []models.ProximityAlert
	Interval  time.Duration
	UpdatedAt time.Time
}

// Controller runs the adaptive polling state machine.
type Controller struct {
	client   Client
	clock    clockwork.Clock
	logger   *slog.Logger
	onUpdate func(Snapshot)

	cmds      chan func()
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Actor state. Only the run loop touches anything below.
	location      *models.UserLocation
	radiusMi      float64
	identity      string
	visible       bool
	seq           uint64
	inflight      context.CancelFunc
	lastFetchLoc  *models.UserLocation
	interval      time.Duration
	ticker        clockwork.Ticker
	retries       int
	retryTimer    clockwork.Timer
	debounceTimer clockwork.Timer
	alerts        []models.ProximityAlert
}

// New creates and starts a controller. onUpdate is invoked from the actor
// goroutine after every applied response.
func New(client Client, clock clockwork.Clock, logger *slog.Logger, onUpdate func(Snapshot)) *Controller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		client:   client,
		clock:    clock,
		logger:   logger,
		onUpdate: onUpdate,
		cmds:     make(chan func(), 32),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
		visible:  true,
		interval: IntervalCalm,
	}
	go c.run()
	return c
}

// SetLocation feeds a new canonical location. Fetches are skipped when the
// user moved less than half a mile since the last applied fetch.
func (c *Controller) SetLocation(loc models.UserLocation) {
	c.post(func() { c.onLocation(loc) })
}

// SetRadius feeds a new display radius. Changes are debounced 500 ms and the
// move gate does not apply.
func (c *Controller) SetRadius(radiusMi float64) {
	c.post(func() { c.onRadius(radiusMi) })
}

// SetIdentity starts a new session for a different (or cleared) user.
func (c *Controller) SetIdentity(uid string) {
	c.post(func() { c.onIdentity(uid) })
}

// SetVisible gates polling on page visibility. No fetch is issued while
// hidden; return to visible fetches immediately.
func (c *Controller) SetVisible(visible bool) {
	c.post(func() { c.onVisibility(visible) })
}

// Close aborts any in-flight request, stops all timers and ends the actor.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.closing) })
	<-c.done
}

func (c *Controller) post(fn func()) {
	select {
	case c.cmds <- fn:
	case <-c.closing:
	}
}

func (c *Controller) run() {
	defer close(c.done)

	for {
		var tick, debounce, retry <-chan time.Time
		if c.ticker != nil {
			tick = c.ticker.Chan()
		}
		if c.debounceTimer != nil {
			debounce = c.debounceTimer.Chan()
		}
		if c.retryTimer != nil {
			retry = c.retryTimer.Chan()
		}

		select {
		case <-c.closing:
			c.teardown()
			return
		case fn := <-c.cmds:
			fn()
		case <-tick:
			c.fetch()
		case <-debounce:
			c.debounceTimer = nil
			c.fetch()
		case <-retry:
			c.retryTimer = nil
			c.fetch()
		}
	}
}

func (c *Controller) teardown() {
	if c.inflight != nil {
		c.inflight()
		c.inflight = nil
	}
	c.stopTicker()
	c.stopTimer(&c.debounceTimer)
	c.stopTimer(&c.retryTimer)
}

func (c *Controller) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

func (c *Controller) stopTimer(t *clockwork.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (c *Controller) ready() bool {
	return c.location != nil && c.radiusMi > 0
}

// onLocation applies the move gate: closer than half a mile to the last
// fetched position means the current alert set is still representative.
func (c *Controller) onLocation(loc models.UserLocation) {
	first := c.location == nil
	c.location = &loc

	if !c.ready() {
		return
	}
	if first {
		c.startPolling()
		return
	}
	if c.lastFetchLoc != nil {
		moved, err := geo.Distance(c.lastFetchLoc.Latitude, c.lastFetchLoc.Longitude, loc.Latitude, loc.Longitude)
		if err == nil && moved < MinMoveMiles {
			c.logger.Debug("proximity fetch skipped, moved too little", "moved_mi", moved)
			return
		}
	}
	c.fetch()
}

func (c *Controller) onRadius(radiusMi float64) {
	if radiusMi == c.radiusMi {
		return
	}
	first := c.radiusMi == 0
	c.radiusMi = radiusMi

	if !c.ready() {
		return
	}
	if first {
		c.startPolling()
		return
	}
	// Debounce slider movement; only the final value is fetched.
	c.stopTimer(&c.debounceTimer)
	c.debounceTimer = c.clock.NewTimer(RadiusDebounce)
}

func (c *Controller) onIdentity(uid string) {
	if uid == c.identity {
		return
	}
	c.identity = uid
	// Fresh session: prior fetch position no longer anchors the move gate.
	c.lastFetchLoc = nil
	c.retries = 0
	if c.ready() {
		c.fetch()
	}
}

func (c *Controller) onVisibility(visible bool) {
	if visible == c.visible {
		return
	}
	c.visible = visible
	if !visible {
		// No timer runs while hidden.
		c.stopTicker()
		return
	}
	if c.ready() {
		c.fetch()
		c.restartTicker()
	}
}

// startPolling is the Idle -> Polling transition: first fetch plus the
// periodic timer.
func (c *Controller) startPolling() {
	c.fetch()
	c.restartTicker()
}

func (c *Controller) restartTicker() {
	c.stopTicker()
	if c.visible {
		c.ticker = c.clock.NewTicker(c.interval)
	}
}

// fetch aborts any in-flight request and issues the next one, tagged with a
// fresh sequence number. Hidden sessions issue nothing; the return-to-visible
// transition fetches instead.
func (c *Controller) fetch() {
	if !c.ready() || !c.visible {
		return
	}

	// This fetch supersedes any pending 429 retry; letting the stale timer
	// fire would duplicate the request.
	c.stopTimer(&c.retryTimer)

	if c.inflight != nil {
		c.inflight()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.inflight = cancel

	c.seq++
	seq := c.seq
	loc := *c.location
	radius := c.radiusMi

	go func() {
		alerts, err := c.client.FetchProximity(ctx, loc.Latitude, loc.Longitude, radius)
		c.post(func() { c.onResponse(seq, loc, alerts, err) })
	}()
}

func (c *Controller) onResponse(seq uint64, loc models.UserLocation, alerts []models.ProximityAlert, err error) {
	// Stale-response rejection: only the latest issued request may write.
	if seq != c.seq {
		c.logger.Debug("dropping stale proximity response", "seq", seq, "latest", c.seq)
		return
	}
	c.inflight = nil

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return // cancellation is silent
		}
		if backend.IsRateLimited(err) {
			c.scheduleBackoff()
			return
		}
		c.logger.Warn("proximity fetch failed", "error", err)
		return
	}

	c.retries = 0
	c.lastFetchLoc = &loc
	c.alerts = alerts

	if next := intervalFor(alerts); next != c.interval {
		c.interval = next
		c.restartTicker()
	}

	if c.onUpdate != nil {
		c.onUpdate(Snapshot{
			Alerts:    append([]models.ProximityAlert(nil), alerts...),
			Interval:  c.interval,
			UpdatedAt: c.clock.Now(),
		})
	}
}

// scheduleBackoff handles HTTP 429: one retry after min(1s<<n, 30s). The
// polling interval itself is untouched.
func (c *Controller) scheduleBackoff() {
	delay := backoffBase << c.retries
	if delay > backoffCap || delay <= 0 {
		delay = backoffCap
	}
	c.retries++
	c.logger.Debug("proximity rate limited, backing off", "delay", delay, "attempt", c.retries)

	c.stopTimer(&c.retryTimer)
	c.retryTimer = c.clock.NewTimer(delay)
}

// intervalFor implements the severity ladder: the lowest bucket satisfied by
// the returned severities.
func intervalFor(alerts []models.ProximityAlert) time.Duration {
	switch models.MaxAlertSeverity(alerts) {
	case models.SeverityCritical, models.SeverityHigh:
		return IntervalUrgent
	case models.SeverityMedium:
		return IntervalElevated
	default:
		return IntervalCalm
	}
}
