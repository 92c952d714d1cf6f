// Package routeplan drives the evacuation workflow: safe-zone list, zone
// selection, per-zone safety checks, route calculation and route selection.
package routeplan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mr1hm/crisiswatch/internal/backend"
	"github.com/mr1hm/crisiswatch/internal/models"
)

// Phase is the observable workflow state.
type Phase string

const (
	PhaseClosed            Phase = "closed"
	PhaseZonesLoading      Phase = "zones_loading"
	PhaseZonesLoaded       Phase = "zones_loaded"
	PhaseRoutesCalculating Phase = "routes_calculating"
	PhaseRoutesLoaded      Phase = "routes_loaded"
	PhaseRouteSelected     Phase = "route_selected"
)

// Zone-list query defaults.
const (
	zoneLimit         = 10
	zoneMaxDistanceMi = 50
)

// Snapshot is the published workflow state. Zones, routes and the selection
// ids feed the map overlays.
type Snapshot struct {
	Phase           Phase
	Zones           []models.SafeZone
	SelectedZoneID  string
	Safety          map[string]models.ZoneSafety
	Routes          []models.Route
	SelectedRouteID string
}

// API is the backend slice the workflow consumes.
type API interface {
	ListSafeZones(ctx context.Context, q backend.SafeZoneQuery) ([]models.SafeZone, error)
	ZoneStatus(ctx context.Context, zoneID string, threatRadiusMi float64) (models.ZoneSafety, error)
	CalculateRoutes(ctx context.Context, req backend.RouteRequest) ([]models.Route, error)
}

// Workflow is the route-planning state machine. All methods are safe for
// concurrent use; a calculation superseded by a newer one never lands.
type Workflow struct {
	api      API
	logger   *slog.Logger
	onChange func(Snapshot)

	mu            sync.Mutex
	phase         Phase
	zones         []models.SafeZone
	selectedZone  string
	safety        map[string]models.ZoneSafety
	routes        []models.Route
	selectedRoute string
	calcGen       uint64
}

func NewWorkflow(api API, logger *slog.Logger, onChange func(Snapshot)) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		api:      api,
		logger:   logger,
		onChange: onChange,
		phase:    PhaseClosed,
		safety:   map[string]models.ZoneSafety{},
	}
}

// Open loads the nearest safe zones and pre-selects the closest one.
func (w *Workflow) Open(ctx context.Context, loc models.UserLocation) error {
	w.mu.Lock()
	w.phase = PhaseZonesLoading
	w.publishLocked()
	w.mu.Unlock()

	zones, err := w.api.ListSafeZones(ctx, backend.SafeZoneQuery{
		Latitude:      loc.Latitude,
		Longitude:     loc.Longitude,
		Limit:         zoneLimit,
		MaxDistanceMi: zoneMaxDistanceMi,
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.phase = PhaseClosed
		w.publishLocked()
		return fmt.Errorf("load safe zones: %w", err)
	}

	w.zones = zones
	w.safety = map[string]models.ZoneSafety{}
	w.routes = nil
	w.selectedRoute = ""
	w.selectedZone = ""
	if len(zones) > 0 {
		w.selectedZone = zones[0].ID
	}
	w.phase = PhaseZonesLoaded
	w.publishLocked()
	return nil
}

// SelectZone switches the destination. Any calculated routes and route
// selection are cleared.
func (w *Workflow) SelectZone(zoneID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.zoneByIDLocked(zoneID) == nil {
		return fmt.Errorf("select zone: unknown zone %q", zoneID)
	}
	w.selectedZone = zoneID
	w.routes = nil
	w.selectedRoute = ""
	w.phase = PhaseZonesLoaded
	w.publishLocked()
	return nil
}

// CheckSafety fetches the backend threat assessment for one zone. Checks are
// independent per zone and do not gate the rest of the workflow.
func (w *Workflow) CheckSafety(ctx context.Context, zoneID string, threatRadiusMi float64) error {
	status, err := w.api.ZoneStatus(ctx, zoneID, threatRadiusMi)
	if err != nil {
		return fmt.Errorf("zone status %s: %w", zoneID, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.safety[zoneID] = status
	w.publishLocked()
	return nil
}

// Calculate requests routes from the user to the selected zone. Starting a
// calculation clears prior routes and selection; if a newer calculation
// starts before this one returns, the older result is dropped.
func (w *Workflow) Calculate(ctx context.Context, origin models.UserLocation, avoidDisasters, alternatives bool) error {
	w.mu.Lock()
	zone := w.zoneByIDLocked(w.selectedZone)
	if zone == nil {
		w.mu.Unlock()
		return fmt.Errorf("calculate routes: no zone selected")
	}
	w.calcGen++
	gen := w.calcGen
	w.routes = nil
	w.selectedRoute = ""
	w.phase = PhaseRoutesCalculating
	w.publishLocked()
	w.mu.Unlock()

	routes, err := w.api.CalculateRoutes(ctx, backend.RouteRequest{
		Origin:         [2]float64{origin.Longitude, origin.Latitude},
		Destination:    [2]float64{zone.Longitude, zone.Latitude},
		SafeZoneID:     zone.ID,
		AvoidDisasters: avoidDisasters,
		Alternatives:   alternatives,
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.calcGen {
		w.logger.Debug("dropping superseded route calculation", "zone_id", zone.ID)
		return nil
	}
	if err != nil {
		w.phase = PhaseZonesLoaded
		w.publishLocked()
		return fmt.Errorf("calculate routes: %w", err)
	}

	w.routes = routes
	w.phase = PhaseRoutesLoaded
	w.publishLocked()
	return nil
}

// SelectRoute picks one of the calculated routes and collapses the panel.
func (w *Workflow) SelectRoute(routeID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	found := false
	for _, r := range w.routes {
		if r.RouteID == routeID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("select route: unknown route %q", routeID)
	}
	w.selectedRoute = routeID
	w.phase = PhaseRouteSelected
	w.publishLocked()
	return nil
}

// Close dismisses the panel. Without a selected route everything is cleared;
// with one, the chosen route and its destination stay so navigation can
// continue.
func (w *Workflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.selectedRoute == "" {
		w.resetLocked()
		w.publishLocked()
		return
	}

	// Preserve only the navigation overlays.
	if zone := w.zoneByIDLocked(w.selectedZone); zone != nil {
		w.zones = []models.SafeZone{*zone}
	}
	kept := w.routes[:0]
	for _, r := range w.routes {
		if r.RouteID == w.selectedRoute {
			kept = append(kept, r)
		}
	}
	w.routes = kept
	w.phase = PhaseClosed
	w.publishLocked()
}

// Clear drops all workflow state, including any preserved navigation.
func (w *Workflow) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
	w.publishLocked()
}

// Snapshot returns the current published state.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workflow) resetLocked() {
	w.phase = PhaseClosed
	w.zones = nil
	w.selectedZone = ""
	w.safety = map[string]models.ZoneSafety{}
	w.routes = nil
	w.selectedRoute = ""
}

func (w *Workflow) zoneByIDLocked(id string) *models.SafeZone {
	for i := range w.zones {
		if w.zones[i].ID == id {
			return &w.zones[i]
		}
	}
	return nil
}

func (w *Workflow) snapshotLocked() Snapshot {
	safety := make(map[string]models.ZoneSafety, len(w.safety))
	for k, v := range w.safety {
		safety[k] = v
	}
	return Snapshot{
		Phase:           w.phase,
		Zones:           append([]models.SafeZone(nil), w.zones...),
		SelectedZoneID:  w.selectedZone,
		Safety:          safety,
		Routes:          append([]models.Route(nil), w.routes...),
		SelectedRouteID: w.selectedRoute,
	}
}

func (w *Workflow) publishLocked() {
	if w.onChange != nil {
		w.onChange(w.snapshotLocked())
	}
}
