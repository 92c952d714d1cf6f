// Package mapview computes the map presentation: per-source clustered marker
// groups, the proximity circle, safe-zone and route overlays, and the
// viewport. Viewport commands coalesce so only the latest target is honored,
// and near-identical targets are dropped to avoid animation jitter.
package mapview

import (
	"log/slog"
	"math"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/crisiswatch/internal/models"
)

const (
	// HoverScale and SelectScale size markers under the pointer and the
	// current selection. Selection wins when both apply.
	HoverScale  = 1.3
	SelectScale = 1.5

	// Jitter guard: auto-zoom targets closer than this to the current
	// viewport issue no animation.
	ZoomJitter      = 0.5
	CenterJitterDeg = 0.001

	fitPaddingFactor = 1.2
	maxZoom          = 18.0
	milesPerDegree   = 69.0
)

// Viewport is the published camera state.
type Viewport struct {
	CenterLat float64
	CenterLon float64
	Zoom      float64
	MinZoom   float64
	Animate   bool
}

// Circle is the proximity circle around the user.
type Circle struct {
	Latitude  float64
	Longitude float64
	RadiusMi  float64
}

// ZoneMarker is a safe-zone overlay entry.
type ZoneMarker struct {
	Zone     models.SafeZone
	Selected bool
}

// RouteLine is a route polyline overlay entry.
type RouteLine struct {
	RouteID  string
	Geometry [][2]float64 // (lon, lat)
	Selected bool
	Warning  string
}

// View is the full immutable map presentation.
type View struct {
	Groups          []ClusterGroup
	ProximityCircle *Circle
	SafeZones       []ZoneMarker
	Routes          []RouteLine
	PickerActive    bool
	Viewport        Viewport
}

// Inputs is everything the presenter renders from.
type Inputs struct {
	Events          []models.Event
	Location        *models.UserLocation
	Settings        models.MapSettings
	Prefs           models.AlertPreferences
	Zones           []models.SafeZone
	SelectedZoneID  string
	Routes          []models.Route
	SelectedRouteID string
	HoveredID       string
	SelectedID      string
	PickerActive    bool
}

// target is a queued viewport command. Only the newest survives.
type target struct {
	lat, lon, zoom float64
	skipGuard      bool // bounds fits apply unconditionally
}

// Presenter owns the viewport and renders View snapshots.
type Presenter struct {
	clock  clockwork.Clock
	logger *slog.Logger

	mu       sync.Mutex
	viewport Viewport
	pending  *target
}

func NewPresenter(clock clockwork.Clock, logger *slog.Logger) *Presenter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Presenter{
		clock:    clock,
		logger:   logger,
		viewport: Viewport{Zoom: 10},
	}
}

// zoomForRadiusMi is the zoom level whose view spans exactly the given radius
// disk.
func zoomForRadiusMi(radiusMi float64) float64 {
	spanDeg := 2 * radiusMi / milesPerDegree
	if spanDeg <= 0 {
		return maxZoom
	}
	z := math.Log2(360 / spanDeg)
	if z > maxZoom {
		return maxZoom
	}
	if z < 0 {
		return 0
	}
	return z
}

// AutoZoomTo queues a recenter on the user at the zoom-radius level. Called
// by the coordinator when auto_zoom is on and the location or zoom radius
// changed; a pending target is replaced, not queued behind.
func (p *Presenter) AutoZoomTo(loc models.UserLocation, settings models.MapSettings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = &target{lat: loc.Latitude, lon: loc.Longitude, zoom: zoomForRadiusMi(settings.ZoomRadiusMi)}
}

// FitRoutes queues a bounds fit over the given (lon, lat) coordinates with
// padding. The jitter guard does not apply to explicit overview requests.
func (p *Presenter) FitRoutes(coords [][2]float64) {
	if len(coords) == 0 {
		return
	}
	minLat, maxLat := coords[0][1], coords[0][1]
	minLon, maxLon := coords[0][0], coords[0][0]
	for _, c := range coords[1:] {
		minLat = math.Min(minLat, c[1])
		maxLat = math.Max(maxLat, c[1])
		minLon = math.Min(minLon, c[0])
		maxLon = math.Max(maxLon, c[0])
	}

	spanLat := (maxLat - minLat) * fitPaddingFactor
	spanLon := (maxLon - minLon) * fitPaddingFactor
	span := math.Max(math.Max(spanLat, spanLon), 0.001)
	zoom := math.Min(math.Log2(360/span), maxZoom)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = &target{
		lat:       (minLat + maxLat) / 2,
		lon:       (minLon + maxLon) / 2,
		zoom:      zoom,
		skipGuard: true,
	}
}

// SetViewport applies a direct user pan/zoom.
func (p *Presenter) SetViewport(lat, lon, zoom float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = nil // user motion supersedes any queued auto-zoom
	p.viewport.CenterLat = lat
	p.viewport.CenterLon = lon
	p.viewport.Zoom = math.Max(zoom, p.viewport.MinZoom)
	p.viewport.Animate = false
}

// flushViewport applies the pending target, if any, under the jitter guard
// and the dynamic minimum zoom.
func (p *Presenter) flushViewport(settings models.MapSettings) Viewport {
	p.viewport.MinZoom = zoomForRadiusMi(settings.ZoomRadiusMi)
	p.viewport.Animate = false

	t := p.pending
	p.pending = nil
	if t == nil {
		return p.viewport
	}

	zoom := math.Max(t.zoom, p.viewport.MinZoom)
	if !t.skipGuard {
		zoomDelta := math.Abs(zoom - p.viewport.Zoom)
		latDelta := math.Abs(t.lat - p.viewport.CenterLat)
		lonDelta := math.Abs(t.lon - p.viewport.CenterLon)
		if zoomDelta <= ZoomJitter && latDelta <= CenterJitterDeg && lonDelta <= CenterJitterDeg {
			return p.viewport
		}
	}

	p.viewport.CenterLat = t.lat
	p.viewport.CenterLon = t.lon
	p.viewport.Zoom = zoom
	p.viewport.Animate = !settings.ReducedMotion
	return p.viewport
}

// Render computes the presentation for the given inputs. Cluster layout
// errors are swallowed here: the affected group falls back to unclustered
// markers.
func (p *Presenter) Render(in Inputs) View {
	p.mu.Lock()
	defer p.mu.Unlock()

	view := View{
		Viewport:     p.flushViewport(in.Settings),
		PickerActive: in.PickerActive,
	}

	now := p.clock.Now()
	pinned := map[string]bool{}
	if in.HoveredID != "" {
		pinned[in.HoveredID] = true
	}
	if in.SelectedID != "" {
		pinned[in.SelectedID] = true
	}

	bySource := map[models.Source][]Marker{}
	for _, e := range in.Events {
		scale := 1.0
		if e.ID == in.HoveredID {
			scale = HoverScale
		}
		if e.ID == in.SelectedID {
			scale = SelectScale
		}
		bySource[e.Source] = append(bySource[e.Source], Marker{
			EventID:   e.ID,
			Source:    e.Source,
			Latitude:  e.Latitude,
			Longitude: e.Longitude,
			Severity:  e.Severity,
			Opacity:   models.OpacityFor(e.Timestamp, e.Opacity, now),
			Scale:     scale,
		})
	}
	for _, src := range models.AllSources() {
		markers := bySource[src]
		if len(markers) == 0 {
			continue
		}
		group, err := buildGroup(src, markers, view.Viewport.Zoom, pinned)
		if err != nil {
			p.logger.Debug("cluster layout failed, rendering unclustered", "source", src, "error", err)
			group = ClusterGroup{Source: src, Markers: markers}
		}
		view.Groups = append(view.Groups, group)
	}

	if in.Location != nil && in.Prefs.ShowRadiusCircle {
		view.ProximityCircle = &Circle{
			Latitude:  in.Location.Latitude,
			Longitude: in.Location.Longitude,
			RadiusMi:  in.Settings.DisplayRadiusMi,
		}
	}

	// A selected route collapses the overlays down to the chosen path and
	// its destination.
	for _, z := range in.Zones {
		if in.SelectedRouteID != "" && z.ID != in.SelectedZoneID {
			continue
		}
		view.SafeZones = append(view.SafeZones, ZoneMarker{Zone: z, Selected: z.ID == in.SelectedZoneID})
	}
	for _, r := range in.Routes {
		if in.SelectedRouteID != "" && r.RouteID != in.SelectedRouteID {
			continue
		}
		view.Routes = append(view.Routes, RouteLine{
			RouteID:  r.RouteID,
			Geometry: r.Geometry,
			Selected: r.RouteID == in.SelectedRouteID,
			Warning:  r.Warning,
		})
	}

	return view
}
