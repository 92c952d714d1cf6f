package proximity

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/goleak"

	"github.com/mr1hm/crisiswatch/internal/backend"
	"github.com/mr1hm/crisiswatch/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fetchResult struct {
	alerts []models.ProximityAlert
	err    error
}

type fetchCall struct {
	lat, lon, radius float64
	ctx              context.Context
	respond          chan fetchResult
}

// fakeClient hands every fetch to the test, which answers (or cancels) it.
type fakeClient struct {
	calls chan fetchCall
}

func newFakeClient() *fakeClient {
	return &fakeClient{calls: make(chan fetchCall, 8)}
}

func (f *fakeClient) FetchProximity(ctx context.Context, lat, lon, radiusMi float64) ([]models.ProximityAlert, error) {
	call := fetchCall{lat: lat, lon: lon, radius: radiusMi, ctx: ctx, respond: make(chan fetchResult, 1)}
	f.calls <- call
	select {
	case res := <-call.respond:
		return res.alerts, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func alertOf(sev models.Severity) models.ProximityAlert {
	return models.ProximityAlert{ID: "e1", DisasterType: "wildfire", Severity: sev, DistanceMi: 3.2}
}

func newTestController(t *testing.T) (*clockwork.FakeClock, *fakeClient, chan Snapshot, *Controller) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	client := newFakeClient()
	updates := make(chan Snapshot, 8)
	c := New(client, clock, nil, func(s Snapshot) { updates <- s })
	t.Cleanup(c.Close)
	return clock, client, updates, c
}

// flush waits until every command posted so far has been processed.
func flush(c *Controller) {
	ch := make(chan struct{})
	c.post(func() { close(ch) })
	<-ch
}

func awaitCall(t *testing.T, client *fakeClient) fetchCall {
	t.Helper()
	select {
	case call := <-client.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("expected a proximity fetch, none issued")
		return fetchCall{}
	}
}

func expectNoCall(t *testing.T, client *fakeClient) {
	t.Helper()
	select {
	case call := <-client.calls:
		t.Fatalf("unexpected proximity fetch at (%v, %v) r=%v", call.lat, call.lon, call.radius)
	case <-time.After(100 * time.Millisecond):
	}
}

func awaitUpdate(t *testing.T, updates chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s := <-updates:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("expected a snapshot, none published")
		return Snapshot{}
	}
}

func sfLocation() models.UserLocation {
	return models.UserLocation{Latitude: 37.7749, Longitude: -122.4194, Source: models.LocationGeolocation}
}

func TestFirstFetchOnInputsReady(t *testing.T) {
	_, client, updates, c := newTestController(t)

	c.SetRadius(25)
	expectNoCall(t, client) // no location yet

	c.SetLocation(sfLocation())
	call := awaitCall(t, client)
	if call.radius != 25 {
		t.Errorf("fetch radius = %v, want 25", call.radius)
	}
	call.respond <- fetchResult{alerts: []models.ProximityAlert{alertOf(models.SeverityHigh)}}

	snap := awaitUpdate(t, updates)
	if len(snap.Alerts) != 1 {
		t.Fatalf("snapshot has %d alerts, want 1", len(snap.Alerts))
	}
	if snap.Interval != IntervalUrgent {
		t.Errorf("interval = %v, want %v for high severity", snap.Interval, IntervalUrgent)
	}
}

func TestStaleResponseDropped(t *testing.T) {
	clock, client, updates, c := newTestController(t)

	c.SetLocation(sfLocation())
	c.SetRadius(25)
	first := awaitCall(t, client)

	// A radius change supersedes the in-flight request after the debounce.
	c.SetRadius(30)
	flush(c)
	clock.Advance(RadiusDebounce)
	second := awaitCall(t, client)
	if second.radius != 30 {
		t.Fatalf("superseding fetch radius = %v, want 30", second.radius)
	}

	// The first response arrives late. Whether it raced cancellation or not,
	// it must never become the published state.
	first.respond <- fetchResult{alerts: []models.ProximityAlert{alertOf(models.SeverityLow)}}
	second.respond <- fetchResult{alerts: []models.ProximityAlert{alertOf(models.SeverityCritical)}}

	snap := awaitUpdate(t, updates)
	if snap.Alerts[0].Severity != models.SeverityCritical {
		t.Errorf("published severity = %v, want the later request's critical", snap.Alerts[0].Severity)
	}
	select {
	case s := <-updates:
		t.Fatalf("stale response published a snapshot: %+v", s)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRadiusDebounceCoalesces(t *testing.T) {
	clock, client, _, c := newTestController(t)

	c.SetLocation(sfLocation())
	c.SetRadius(10)
	awaitCall(t, client).respond <- fetchResult{}

	// Slider sweep: only the final value should reach the backend.
	c.SetRadius(40)
	c.SetRadius(33)
	c.SetRadius(25)
	flush(c)
	expectNoCall(t, client)

	clock.Advance(RadiusDebounce)
	call := awaitCall(t, client)
	if call.radius != 25 {
		t.Errorf("debounced fetch radius = %v, want 25", call.radius)
	}
	call.respond <- fetchResult{}
	expectNoCall(t, client)
}

func TestMoveGate(t *testing.T) {
	_, client, updates, c := newTestController(t)

	loc := sfLocation()
	c.SetLocation(loc)
	c.SetRadius(25)
	awaitCall(t, client).respond <- fetchResult{}
	awaitUpdate(t, updates)

	// ~0.28 miles north: inside the gate, no fetch.
	near := loc
	near.Latitude += 0.004
	c.SetLocation(near)
	flush(c)
	expectNoCall(t, client)

	// ~1 mile north: outside the gate.
	far := loc
	far.Latitude += 0.0145
	c.SetLocation(far)
	call := awaitCall(t, client)
	if call.lat != far.Latitude {
		t.Errorf("fetch latitude = %v, want %v", call.lat, far.Latitude)
	}
	call.respond <- fetchResult{}
}

func TestVisibilityGate(t *testing.T) {
	clock, client, updates, c := newTestController(t)

	c.SetLocation(sfLocation())
	c.SetRadius(25)
	awaitCall(t, client).respond <- fetchResult{}
	awaitUpdate(t, updates)

	c.SetVisible(false)
	flush(c)

	// Hidden sessions issue nothing, no matter how long.
	clock.Advance(3 * IntervalCalm)
	expectNoCall(t, client)

	// Return to visible fetches exactly once, immediately.
	c.SetVisible(true)
	call := awaitCall(t, client)
	call.respond <- fetchResult{}
	expectNoCall(t, client)
}

func TestAdaptiveIntervalLadder(t *testing.T) {
	clock, client, updates, c := newTestController(t)

	c.SetLocation(sfLocation())
	c.SetRadius(25)
	awaitCall(t, client).respond <- fetchResult{alerts: []models.ProximityAlert{alertOf(models.SeverityMedium)}}
	if snap := awaitUpdate(t, updates); snap.Interval != IntervalElevated {
		t.Fatalf("interval = %v, want %v for medium", snap.Interval, IntervalElevated)
	}

	// The poll fires on the elevated cadence.
	clock.Advance(IntervalElevated)
	call := awaitCall(t, client)
	call.respond <- fetchResult{} // all clear now
	if snap := awaitUpdate(t, updates); snap.Interval != IntervalCalm {
		t.Fatalf("interval = %v, want %v for empty response", snap.Interval, IntervalCalm)
	}

	// Cadence relaxed: the old interval no longer triggers a poll.
	clock.Advance(IntervalElevated)
	expectNoCall(t, client)
	clock.Advance(IntervalCalm - IntervalElevated)
	awaitCall(t, client).respond <- fetchResult{}
}

func TestRateLimitBackoff(t *testing.T) {
	clock, client, updates, c := newTestController(t)

	c.SetLocation(sfLocation())
	c.SetRadius(25)
	awaitCall(t, client).respond <- fetchResult{err: &backend.StatusError{Status: 429, Message: "slow down"}}
	clock.BlockUntil(2) // polling ticker plus the retry timer

	// First retry after 1s.
	clock.Advance(time.Second)
	awaitCall(t, client).respond <- fetchResult{err: &backend.StatusError{Status: 429, Message: "slow down"}}
	clock.BlockUntil(2)

	// Second retry doubles to 2s.
	clock.Advance(time.Second)
	expectNoCall(t, client)
	clock.Advance(time.Second)
	call := awaitCall(t, client)
	call.respond <- fetchResult{alerts: []models.ProximityAlert{alertOf(models.SeverityLow)}}

	snap := awaitUpdate(t, updates)
	if snap.Interval != IntervalCalm {
		t.Errorf("backoff altered polling interval: %v", snap.Interval)
	}

	// Success resets the backoff ladder: the next 429 waits 1s again.
	clock.Advance(IntervalCalm)
	awaitCall(t, client).respond <- fetchResult{err: &backend.StatusError{Status: 429, Message: "slow down"}}
	clock.BlockUntil(2)
	clock.Advance(time.Second)
	awaitCall(t, client).respond <- fetchResult{}
}

func TestSupersedingFetchCancelsPendingRetry(t *testing.T) {
	clock, client, _, c := newTestController(t)

	loc := sfLocation()
	c.SetLocation(loc)
	c.SetRadius(25)
	awaitCall(t, client).respond <- fetchResult{err: &backend.StatusError{Status: 429, Message: "slow down"}}
	clock.BlockUntil(2) // polling ticker plus the retry timer

	// A move outside the gate fetches immediately, superseding the retry.
	far := loc
	far.Latitude += 0.0145
	c.SetLocation(far)
	awaitCall(t, client).respond <- fetchResult{}

	// The stale retry must not fire a duplicate request.
	clock.Advance(time.Second)
	expectNoCall(t, client)
}

func TestIdentityChangeStartsFreshSession(t *testing.T) {
	_, client, updates, c := newTestController(t)

	c.SetLocation(sfLocation())
	c.SetRadius(25)
	awaitCall(t, client).respond <- fetchResult{}
	awaitUpdate(t, updates)

	// Same place, new user: the move gate must not suppress the fetch.
	c.SetIdentity("user-2")
	call := awaitCall(t, client)
	call.respond <- fetchResult{}

	// Setting the same identity again is a no-op.
	c.SetIdentity("user-2")
	flush(c)
	expectNoCall(t, client)
}

func TestCloseAbortsInflight(t *testing.T) {
	_, client, _, c := newTestController(t)

	c.SetLocation(sfLocation())
	c.SetRadius(25)
	call := awaitCall(t, client)

	c.Close()
	select {
	case <-call.ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request not canceled on close")
	}
}
