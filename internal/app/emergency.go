package app

import (
	"time"

	"github.com/mr1hm/crisiswatch/internal/models"
)

// OverrideMode is the user's manual emergency-mode override.
type OverrideMode string

const (
	OverrideNone OverrideMode = ""
	OverrideOn   OverrideMode = "on"
	OverrideOff  OverrideMode = "off"
)

const (
	// EmergencyHighRadiusMi bounds the auto condition: a critical or high
	// alert this close on a mobile viewport turns emergency mode on.
	EmergencyHighRadiusMi = 10.0
	// EmergencyCriticalRadiusMi is the immediate-danger bound: a critical
	// alert this close force-clears a manual-off override.
	EmergencyCriticalRadiusMi = 5.0
	// OverrideExpiry is how long a manual-on survives after the auto
	// condition stops holding.
	OverrideExpiry = 60 * time.Second
)

// emergency is the override state machine. Callers pass the clock reading;
// the struct holds no timers of its own.
type emergency struct {
	override  OverrideMode
	expiresAt time.Time
}

func (e *emergency) setOverride(mode OverrideMode) {
	e.override = mode
	e.expiresAt = time.Time{}
}

// evaluate applies the transition rules and returns whether emergency mode is
// active.
func (e *emergency) evaluate(class ViewportClass, alerts []models.ProximityAlert, now time.Time) bool {
	auto := class == ViewportMobile && anyAlertWithin(alerts, models.SeverityHigh, EmergencyHighRadiusMi)

	// Immediate danger re-arms auto: a manual-off does not survive a
	// critical alert closing within 5 miles.
	if e.override == OverrideOff && criticalWithin(alerts, EmergencyCriticalRadiusMi) {
		e.setOverride(OverrideNone)
	}

	if e.override == OverrideOn {
		if auto {
			e.expiresAt = time.Time{}
		} else if e.expiresAt.IsZero() {
			e.expiresAt = now.Add(OverrideExpiry)
		} else if !now.Before(e.expiresAt) {
			e.setOverride(OverrideNone)
		}
	}

	switch e.override {
	case OverrideOn:
		return true
	case OverrideOff:
		return false
	}
	return auto
}

// deadline returns the pending manual-on expiry, if one is armed.
func (e *emergency) deadline() (time.Time, bool) {
	if e.override == OverrideOn && !e.expiresAt.IsZero() {
		return e.expiresAt, true
	}
	return time.Time{}, false
}

func anyAlertWithin(alerts []models.ProximityAlert, minSeverity models.Severity, radiusMi float64) bool {
	for _, a := range alerts {
		if a.Severity.AtLeast(minSeverity) && a.DistanceMi <= radiusMi {
			return true
		}
	}
	return false
}

func criticalWithin(alerts []models.ProximityAlert, radiusMi float64) bool {
	for _, a := range alerts {
		if a.Severity == models.SeverityCritical && a.DistanceMi <= radiusMi {
			return true
		}
	}
	return false
}
