package models

import "fmt"

// AlertPreferences controls which proximity alerts are surfaced.
type AlertPreferences struct {
	Enabled          bool       `json:"enabled"`
	ShowRadiusCircle bool       `json:"show_radius_circle"`
	SeverityFilter   []Severity `json:"severity_filter"`
	DisasterTypes    []string   `json:"disaster_types"`

	// LegacyRadiusMi predates MapSettings.DisplayRadiusMi and is migrated
	// forward once by the preference store.
	LegacyRadiusMi *float64 `json:"radius_mi,omitempty"`
}

// DefaultAlertPreferences selects everything with alerts on.
func DefaultAlertPreferences() AlertPreferences {
	return AlertPreferences{
		Enabled:          true,
		ShowRadiusCircle: true,
		SeverityFilter:   AllSeverities(),
		DisasterTypes:    []string{"fire", "flood", "earthquake", "storm", "other"},
	}
}

// Validate enforces the save invariant: at least one severity and one type.
func (p *AlertPreferences) Validate() error {
	if len(p.SeverityFilter) == 0 {
		return fmt.Errorf("alert preferences: at least one severity must be selected")
	}
	if len(p.DisasterTypes) == 0 {
		return fmt.Errorf("alert preferences: at least one disaster type must be selected")
	}
	return nil
}

// AllowsSeverity reports whether s passes the severity filter.
func (p *AlertPreferences) AllowsSeverity(s Severity) bool {
	for _, f := range p.SeverityFilter {
		if f == s {
			return true
		}
	}
	return false
}

// AllowsType reports whether t passes the type filter. An empty filter passes
// everything so a malformed stored value never hides all alerts.
func (p *AlertPreferences) AllowsType(t string) bool {
	if len(p.DisasterTypes) == 0 {
		return true
	}
	for _, f := range p.DisasterTypes {
		if f == t {
			return true
		}
	}
	return false
}

// MapSettings controls the map viewport and event display radius.
type MapSettings struct {
	ZoomRadiusMi     float64 `json:"zoom_radius_mi"`
	DisplayRadiusMi  float64 `json:"display_radius_mi"`
	AutoZoom         bool    `json:"auto_zoom"`
	ShowAllDisasters bool    `json:"show_all_disasters"`
	ReducedMotion    bool    `json:"reduced_motion"`
}

// DefaultMapSettings returns the out-of-box map configuration.
func DefaultMapSettings() MapSettings {
	return MapSettings{
		ZoomRadiusMi:    10,
		DisplayRadiusMi: 25,
		AutoZoom:        true,
	}
}

// Validate enforces the [1, 100] mile ranges on save.
func (m *MapSettings) Validate() error {
	if m.ZoomRadiusMi < 1 || m.ZoomRadiusMi > 100 {
		return fmt.Errorf("map settings: zoom_radius_mi %v outside [1, 100]", m.ZoomRadiusMi)
	}
	if m.DisplayRadiusMi < 1 || m.DisplayRadiusMi > 100 {
		return fmt.Errorf("map settings: display_radius_mi %v outside [1, 100]", m.DisplayRadiusMi)
	}
	return nil
}
