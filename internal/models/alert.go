package models

import "time"

// ProximityAlert is a backend-produced hazard near the user. Consumed
// read-only; dismissal is tracked client-side in the alert presenter.
type ProximityAlert struct {
	ID           string    `json:"id"`
	DisasterType string    `json:"disaster_type"`
	Severity     Severity  `json:"alert_severity"`
	DistanceMi   float64   `json:"distance_mi"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	LocationName string    `json:"location_name,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Source       Source    `json:"source"`
}

// MaxAlertSeverity returns the most severe value across alerts.
func MaxAlertSeverity(alerts []ProximityAlert) Severity {
	max := SeverityUnknown
	for _, a := range alerts {
		if a.Severity.Rank() > max.Rank() {
			max = a.Severity
		}
	}
	return max
}
