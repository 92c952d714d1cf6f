// Package filter derives the visible subset of the event set from the source
// mask, the user location and the map settings, and applies preference
// filtering to proximity alerts.
package filter

import (
	"log/slog"
	"sync"

	"github.com/mr1hm/crisiswatch/internal/geo"
	"github.com/mr1hm/crisiswatch/internal/models"
)

// SourceMask enables or disables whole event streams.
type SourceMask struct {
	UserReports   bool
	Wildfires     bool
	WeatherAlerts bool
}

// AllSources returns a mask with every stream enabled.
func AllSources() SourceMask {
	return SourceMask{UserReports: true, Wildfires: true, WeatherAlerts: true}
}

// Enabled reports whether events from the given source pass the mask.
func (m SourceMask) Enabled(s models.Source) bool {
	switch s {
	case models.SourceUserReport:
		return m.UserReports
	case models.SourceWildfire:
		return m.Wildfires
	case models.SourceWeather:
		return m.WeatherAlerts
	}
	return false
}

// Engine computes VisibleEvents. Results are memoized: as long as the caller
// passes the same set and location pointers and equal mask/settings values,
// the previous result is returned without recomputation.
type Engine struct {
	logger *slog.Logger

	mu         sync.Mutex
	memoValid  bool
	memoSet    *models.EventSet
	memoMask   SourceMask
	memoLoc    *models.UserLocation
	memoConfig models.MapSettings
	memoResult []models.Event
	recomputes int
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Visible applies, in order: the source mask, then the display-radius cut.
// The radius cut is skipped when show_all_disasters is set or no location is
// known.
func (e *Engine) Visible(set *models.EventSet, mask SourceMask, loc *models.UserLocation, settings models.MapSettings) []models.Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.memoValid && set == e.memoSet && loc == e.memoLoc && mask == e.memoMask && settings == e.memoConfig {
		return e.memoResult
	}

	var out []models.Event
	if set != nil {
		out = make([]models.Event, 0, len(set.Events))
		for _, ev := range set.Events {
			if !mask.Enabled(ev.Source) {
				continue
			}
			if !settings.ShowAllDisasters && loc != nil {
				d, err := geo.Distance(loc.Latitude, loc.Longitude, ev.Latitude, ev.Longitude)
				if err != nil {
					e.logger.Debug("dropping event with unmeasurable distance", "id", ev.ID, "error", err)
					continue
				}
				if d > settings.DisplayRadiusMi {
					continue
				}
			}
			out = append(out, ev)
		}
	}

	e.memoValid = true
	e.memoSet = set
	e.memoMask = mask
	e.memoLoc = loc
	e.memoConfig = settings
	e.memoResult = out
	e.recomputes++
	return out
}

// Alerts keeps proximity alerts whose severity is selected and whose type
// passes the (possibly empty, meaning all) type filter.
func Alerts(alerts []models.ProximityAlert, prefs models.AlertPreferences) []models.ProximityAlert {
	out := make([]models.ProximityAlert, 0, len(alerts))
	for _, a := range alerts {
		if prefs.AllowsSeverity(a.Severity) && prefs.AllowsType(a.DisasterType) {
			out = append(out, a)
		}
	}
	return out
}
