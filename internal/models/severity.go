package models

import "time"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityUnknown  Severity = "unknown"
)

// severityRank is the single ordering used by the map, list and alert paths.
// Higher is more severe.
var severityRank = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
	SeverityUnknown:  0,
}

// Rank returns the ordering value for s. Unrecognized severities rank as unknown.
func (s Severity) Rank() int {
	return severityRank[s]
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// ParseSeverity maps a wire string onto a known severity, defaulting to unknown.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return Severity(s)
	default:
		return SeverityUnknown
	}
}

// AllSeverities lists every selectable severity, most severe first.
func AllSeverities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityUnknown}
}

// MaxSeverity returns the most severe value in ss, or unknown for an empty slice.
func MaxSeverity(ss []Severity) Severity {
	max := SeverityUnknown
	for _, s := range ss {
		if s.Rank() > max.Rank() {
			max = s
		}
	}
	return max
}

// Time-decay opacity ladder for map styling. Backend-provided opacity wins;
// this fallback only applies to events lacking the field.
const (
	opacityFresh = 1.0
	opacityDay   = 0.75
	opacityWeek  = 0.5
	opacityStale = 0.3
)

// OpacityFor returns the marker opacity for an event observed at ts, as of now.
// When the backend supplied a value it is used unchanged.
func OpacityFor(ts time.Time, serverOpacity *float64, now time.Time) float64 {
	if serverOpacity != nil {
		return *serverOpacity
	}
	age := now.Sub(ts)
	switch {
	case age <= 24*time.Hour:
		return opacityFresh
	case age <= 3*24*time.Hour:
		return opacityDay
	case age <= 7*24*time.Hour:
		return opacityWeek
	default:
		return opacityStale
	}
}
