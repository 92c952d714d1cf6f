// Package app wires the engine together. The coordinator owns all top-level
// state: components feed it through callbacks, the UI surface feeds it
// intents, and every change publishes a complete immutable State snapshot.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/crisiswatch/internal/admin"
	"github.com/mr1hm/crisiswatch/internal/alertview"
	"github.com/mr1hm/crisiswatch/internal/backend"
	"github.com/mr1hm/crisiswatch/internal/filter"
	"github.com/mr1hm/crisiswatch/internal/mapview"
	"github.com/mr1hm/crisiswatch/internal/models"
	"github.com/mr1hm/crisiswatch/internal/proximity"
	"github.com/mr1hm/crisiswatch/internal/report"
	"github.com/mr1hm/crisiswatch/internal/routeplan"
	"github.com/mr1hm/crisiswatch/internal/stream"
)

// State is the published application snapshot.
type State struct {
	Location      *models.UserLocation    `json:"location,omitempty"`
	Preferences   models.AlertPreferences `json:"preferences"`
	Settings      models.MapSettings      `json:"settings"`
	VisibleEvents []models.Event          `json:"visible_events"`
	Notice        string                  `json:"notice,omitempty"`
	Map           mapview.View            `json:"map"`
	Alerts        alertview.View          `json:"alerts"`
	Route         routeplan.Snapshot      `json:"route"`
	ViewportClass ViewportClass           `json:"viewport_class"`
	EmergencyMode bool                    `json:"emergency_mode"`
	PollInterval  time.Duration           `json:"poll_interval_ns"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// LocationSource is the location-service slice the coordinator drives.
type LocationSource interface {
	Request(ctx context.Context) (models.UserLocation, error)
	SetPicked(lat, lon float64) (models.UserLocation, error)
	Stop()
	Current() (models.UserLocation, bool)
}

// PreferenceSource persists preferences and map settings.
type PreferenceSource interface {
	LoadAlertPreferences(ctx context.Context) (models.AlertPreferences, error)
	SaveAlertPreferences(ctx context.Context, p models.AlertPreferences) error
	LoadMapSettings(ctx context.Context) (models.MapSettings, error)
	SaveMapSettings(ctx context.Context, m models.MapSettings) error
}

// EventSource is the event-repository slice the coordinator drives.
type EventSource interface {
	Start(ctx context.Context)
	Stop()
	RefreshAll(ctx context.Context) error
	Snapshot() models.EventSet
}

// ProximityPoller is the poller slice the coordinator drives.
type ProximityPoller interface {
	SetLocation(loc models.UserLocation)
	SetRadius(radiusMi float64)
	SetIdentity(uid string)
	SetVisible(visible bool)
	Close()
}

// Deps collects the coordinator's collaborators.
type Deps struct {
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Location  LocationSource
	Prefs     PreferenceSource
	Events    EventSource
	Poller    ProximityPoller
	Filter    *filter.Engine
	Map       *mapview.Presenter
	AlertView *alertview.Presenter
	Routes    *routeplan.Workflow
	Reports   *report.Workflow
	Admin     *admin.Ops
}

// Coordinator owns top-level state and fans snapshots out to subscribers.
type Coordinator struct {
	clock  clockwork.Clock
	logger *slog.Logger

	location  LocationSource
	prefs     PreferenceSource
	events    EventSource
	poller    ProximityPoller
	filter    *filter.Engine
	mapview   *mapview.Presenter
	alertview *alertview.Presenter
	routes    *routeplan.Workflow
	reports   *report.Workflow
	admin     *admin.Ops

	broadcaster *stream.Broadcaster[State]

	mu           sync.Mutex
	loc          *models.UserLocation
	alertPrefs   models.AlertPreferences
	settings     models.MapSettings
	eventSet     *models.EventSet
	proxAlerts   []models.ProximityAlert
	pollInterval time.Duration
	routeSnap    routeplan.Snapshot
	mask         filter.SourceMask
	hovered      string
	selected     string
	pickerActive bool
	class        ViewportClass
	pendingWidth int
	sizeTimer    clockwork.Timer
	em           emergency
	emActive     bool
	emTimer      clockwork.Timer
	state        State
	closed       bool
}

func NewCoordinator(deps Deps) *Coordinator {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		clock:       clock,
		logger:      logger,
		location:    deps.Location,
		prefs:       deps.Prefs,
		events:      deps.Events,
		poller:      deps.Poller,
		filter:      deps.Filter,
		mapview:     deps.Map,
		alertview:   deps.AlertView,
		routes:      deps.Routes,
		reports:     deps.Reports,
		admin:       deps.Admin,
		broadcaster: stream.NewBroadcaster[State](),
		alertPrefs:  models.DefaultAlertPreferences(),
		settings:    models.DefaultMapSettings(),
		mask:        filter.AllSources(),
		class:       ViewportDesktop,
	}
}

// Start loads persisted preferences, primes the poller and begins event
// refresh. Load failures fall back to defaults and are logged, not fatal.
func (c *Coordinator) Start(ctx context.Context) {
	prefsVal, err := c.prefs.LoadAlertPreferences(ctx)
	if err != nil {
		c.logger.Warn("loading alert preferences failed, using defaults", "error", err)
		prefsVal = models.DefaultAlertPreferences()
	}
	settings, err := c.prefs.LoadMapSettings(ctx)
	if err != nil {
		c.logger.Warn("loading map settings failed, using defaults", "error", err)
		settings = models.DefaultMapSettings()
	}

	c.mu.Lock()
	c.alertPrefs = prefsVal
	c.settings = settings
	c.mu.Unlock()

	c.alertview.SetPreferences(prefsVal)
	c.poller.SetRadius(settings.DisplayRadiusMi)
	c.events.Start(ctx)
	c.publish()
}

// Close tears the engine down: poller, event refresh, watcher, audio, probes.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.sizeTimer != nil {
		c.sizeTimer.Stop()
	}
	if c.emTimer != nil {
		c.emTimer.Stop()
	}
	c.mu.Unlock()

	c.poller.Close()
	c.events.Stop()
	c.location.Stop()
	c.reports.Close()
	if err := c.alertview.Close(); err != nil {
		c.logger.Debug("closing alert presenter failed", "error", err)
	}
	c.broadcaster.Close()
}

// Subscribe registers a snapshot subscriber (SSE clients).
func (c *Coordinator) Subscribe() (string, <-chan State) {
	return c.broadcaster.Subscribe()
}

// Unsubscribe drops a subscriber.
func (c *Coordinator) Unsubscribe(id string) {
	c.broadcaster.Unsubscribe(id)
}

// State returns the last published snapshot. Snapshots are built only on
// publish so that polling never consumes the one-shot viewport animation
// meant for stream subscribers.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reports exposes the report workflow to the UI surface.
func (c *Coordinator) Reports() *report.Workflow { return c.reports }

// Admin exposes the gated report mutations to the UI surface.
func (c *Coordinator) Admin() *admin.Ops { return c.admin }

// --- component callbacks -------------------------------------------------

// OnLocationChange receives every canonical-location replacement.
func (c *Coordinator) OnLocationChange(loc models.UserLocation) {
	c.mu.Lock()
	c.loc = &loc
	settings := c.settings
	c.mu.Unlock()

	c.poller.SetLocation(loc)
	if settings.AutoZoom {
		c.mapview.AutoZoomTo(loc, settings)
	}
	c.publish()
}

// OnEventsChanged receives repository snapshots.
func (c *Coordinator) OnEventsChanged(set models.EventSet) {
	c.mu.Lock()
	c.eventSet = &set
	c.mu.Unlock()
	c.publish()
}

// OnProximity receives poller snapshots.
func (c *Coordinator) OnProximity(snap proximity.Snapshot) {
	c.alertview.SetAlerts(snap.Alerts)

	c.mu.Lock()
	c.proxAlerts = snap.Alerts
	c.pollInterval = snap.Interval
	c.evalEmergencyLocked()
	c.mu.Unlock()
	c.publish()
}

// OnRouteChanged receives route-workflow snapshots.
func (c *Coordinator) OnRouteChanged(snap routeplan.Snapshot) {
	if snap.Phase == routeplan.PhaseRoutesLoaded {
		var coords [][2]float64
		for _, r := range snap.Routes {
			coords = append(coords, r.Geometry...)
		}
		c.mapview.FitRoutes(coords)
	}

	c.mu.Lock()
	c.routeSnap = snap
	c.mu.Unlock()
	c.publish()
}

// --- intents -------------------------------------------------------------

// RequestLocation runs the consent prompt and starts the watcher.
func (c *Coordinator) RequestLocation(ctx context.Context) error {
	_, err := c.location.Request(ctx)
	return err
}

// PickLocation replaces the canonical location with a map pick.
func (c *Coordinator) PickLocation(lat, lon float64) error {
	if _, err := c.location.SetPicked(lat, lon); err != nil {
		return err
	}
	c.mu.Lock()
	c.pickerActive = false
	c.mu.Unlock()
	c.publish()
	return nil
}

// SetPickerActive toggles the location-picker overlay.
func (c *Coordinator) SetPickerActive(active bool) {
	c.mu.Lock()
	c.pickerActive = active
	c.mu.Unlock()
	c.publish()
}

// SetIdentity switches the signed-in user.
func (c *Coordinator) SetIdentity(uid string) {
	c.poller.SetIdentity(uid)
}

// UpdatePreferences validates, persists and applies alert preferences.
func (c *Coordinator) UpdatePreferences(ctx context.Context, p models.AlertPreferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := c.prefs.SaveAlertPreferences(ctx, p); err != nil {
		return fmt.Errorf("save alert preferences: %w", err)
	}
	c.alertview.SetPreferences(p)

	// Filtering changes the active alert set, which can start or end
	// emergency mode without a new poller snapshot.
	c.mu.Lock()
	c.alertPrefs = p
	c.evalEmergencyLocked()
	c.mu.Unlock()
	c.publish()
	return nil
}

// UpdateMapSettings validates, persists and applies map settings. A display
// radius change reaches the poller; a zoom radius change re-aims the camera.
func (c *Coordinator) UpdateMapSettings(ctx context.Context, m models.MapSettings) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := c.prefs.SaveMapSettings(ctx, m); err != nil {
		return fmt.Errorf("save map settings: %w", err)
	}

	c.mu.Lock()
	prev := c.settings
	c.settings = m
	loc := c.loc
	c.mu.Unlock()

	if m.DisplayRadiusMi != prev.DisplayRadiusMi {
		c.poller.SetRadius(m.DisplayRadiusMi)
	}
	if m.AutoZoom && loc != nil && m.ZoomRadiusMi != prev.ZoomRadiusMi {
		c.mapview.AutoZoomTo(*loc, m)
	}
	c.publish()
	return nil
}

// SetSourceMask enables or disables whole event streams.
func (c *Coordinator) SetSourceMask(mask filter.SourceMask) {
	c.mu.Lock()
	c.mask = mask
	c.mu.Unlock()
	c.publish()
}

// SetHovered tracks the single hovered marker.
func (c *Coordinator) SetHovered(id string) {
	c.mu.Lock()
	c.hovered = id
	c.mu.Unlock()
	c.publish()
}

// SetSelected tracks the single selected marker.
func (c *Coordinator) SetSelected(id string) {
	c.mu.Lock()
	c.selected = id
	c.mu.Unlock()
	c.publish()
}

// SetViewport applies a direct user pan/zoom, superseding any queued
// auto-zoom.
func (c *Coordinator) SetViewport(lat, lon, zoom float64) {
	c.mapview.SetViewport(lat, lon, zoom)
	c.publish()
}

// SetVisibility gates polling on page visibility.
func (c *Coordinator) SetVisibility(visible bool) {
	c.poller.SetVisible(visible)
}

// SetWindowSize feeds the debounced viewport classifier.
func (c *Coordinator) SetWindowSize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pendingWidth = width
	if c.sizeTimer != nil {
		c.sizeTimer.Stop()
	}
	c.sizeTimer = c.clock.AfterFunc(SizeDebounce, c.applyPendingSize)
}

func (c *Coordinator) applyPendingSize() {
	c.mu.Lock()
	class := classForWidth(c.pendingWidth)
	changed := class != c.class
	if changed {
		c.class = class
		c.evalEmergencyLocked()
	}
	c.mu.Unlock()

	if changed {
		c.publish()
	}
}

// SetEmergencyOverride applies the manual emergency-mode toggle.
func (c *Coordinator) SetEmergencyOverride(mode OverrideMode) {
	c.mu.Lock()
	c.em.setOverride(mode)
	c.evalEmergencyLocked()
	c.mu.Unlock()
	c.publish()
}

// evalEmergencyLocked recomputes emergency mode and arms the manual-on
// expiry timer when one is pending.
func (c *Coordinator) evalEmergencyLocked() {
	now := c.clock.Now()
	c.emActive = c.em.evaluate(c.class, c.alertview.Active(), now)

	if c.emTimer != nil {
		c.emTimer.Stop()
		c.emTimer = nil
	}
	if deadline, ok := c.em.deadline(); ok {
		c.emTimer = c.clock.AfterFunc(deadline.Sub(now), c.expireOverride)
	}
}

func (c *Coordinator) expireOverride() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.evalEmergencyLocked()
	c.mu.Unlock()
	c.publish()
}

// OpenRoutePanel starts the route workflow at the current location.
func (c *Coordinator) OpenRoutePanel(ctx context.Context) error {
	loc, ok := c.location.Current()
	if !ok {
		return fmt.Errorf("open route panel: no location")
	}
	return c.routes.Open(ctx, loc)
}

// SelectZone switches the evacuation destination.
func (c *Coordinator) SelectZone(zoneID string) error {
	return c.routes.SelectZone(zoneID)
}

// CheckZoneSafety fetches the threat assessment for one zone using the
// display radius as the threat radius.
func (c *Coordinator) CheckZoneSafety(ctx context.Context, zoneID string) error {
	c.mu.Lock()
	radius := c.settings.DisplayRadiusMi
	c.mu.Unlock()
	return c.routes.CheckSafety(ctx, zoneID, radius)
}

// CalculateRoutes asks for routes from the current location to the selected
// zone.
func (c *Coordinator) CalculateRoutes(ctx context.Context, avoidDisasters, alternatives bool) error {
	loc, ok := c.location.Current()
	if !ok {
		return fmt.Errorf("calculate routes: no location")
	}
	return c.routes.Calculate(ctx, loc, avoidDisasters, alternatives)
}

// SelectRoute picks a calculated route.
func (c *Coordinator) SelectRoute(routeID string) error {
	return c.routes.SelectRoute(routeID)
}

// CloseRoutePanel dismisses the panel, preserving navigation overlays when a
// route is selected.
func (c *Coordinator) CloseRoutePanel() {
	c.routes.Close()
}

// SubmitReport submits a draft and triggers the optimistic insert + AI probe.
func (c *Coordinator) SubmitReport(ctx context.Context, draft backend.ReportDraft) (models.Event, error) {
	return c.reports.Submit(ctx, draft)
}

// DismissAlert removes an alert from the visible set.
func (c *Coordinator) DismissAlert(ctx context.Context, alertID string) {
	c.alertview.Dismiss(ctx, alertID)

	c.mu.Lock()
	c.evalEmergencyLocked()
	c.mu.Unlock()
	c.publish()
}

// SetMuted persists the per-device mute flag.
func (c *Coordinator) SetMuted(muted bool) error {
	if err := c.alertview.SetMuted(muted); err != nil {
		return err
	}
	c.publish()
	return nil
}

// --- snapshot ------------------------------------------------------------

func (c *Coordinator) publish() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	state := c.buildLocked()
	c.state = state
	c.mu.Unlock()
	c.broadcaster.Broadcast(state)
}

func (c *Coordinator) buildLocked() State {
	visible := c.filter.Visible(c.eventSet, c.mask, c.loc, c.settings)

	mapView := c.mapview.Render(mapview.Inputs{
		Events:          visible,
		Location:        c.loc,
		Settings:        c.settings,
		Prefs:           c.alertPrefs,
		Zones:           c.routeSnap.Zones,
		SelectedZoneID:  c.routeSnap.SelectedZoneID,
		Routes:          c.routeSnap.Routes,
		SelectedRouteID: c.routeSnap.SelectedRouteID,
		HoveredID:       c.hovered,
		SelectedID:      c.selected,
		PickerActive:    c.pickerActive,
	})

	notice := ""
	if c.eventSet != nil {
		notice = c.eventSet.Notice
	}

	return State{
		Location:      c.loc,
		Preferences:   c.alertPrefs,
		Settings:      c.settings,
		VisibleEvents: visible,
		Notice:        notice,
		Map:           mapView,
		Alerts:        c.alertview.View(),
		Route:         c.routeSnap,
		ViewportClass: c.class,
		EmergencyMode: c.emActive,
		PollInterval:  c.pollInterval,
		UpdatedAt:     c.clock.Now(),
	}
}
