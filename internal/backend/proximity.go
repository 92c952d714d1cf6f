package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mr1hm/crisiswatch/internal/models"
)

// MaxProximityRadiusMi caps the radius sent to the proximity endpoint. The
// display radius can go to 100 but this call never asks for more than 50;
// whether the backend enforces its own cap is not relied on.
const MaxProximityRadiusMi = 50

type proximityAlertDTO struct {
	ID           string  `json:"id"`
	DisasterType string  `json:"disaster_type"`
	Severity     string  `json:"alert_severity"`
	DistanceMi   float64 `json:"distance_mi"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	LocationName string  `json:"location_name,omitempty"`
	Timestamp    string  `json:"timestamp"`
	Source       string  `json:"source"`
}

// FetchProximity returns alerts within radiusMi of (lat, lon). Auth is
// optional; authenticated calls let the backend apply stored preferences.
func (c *Client) FetchProximity(ctx context.Context, lat, lon, radiusMi float64) ([]models.ProximityAlert, error) {
	if radiusMi > MaxProximityRadiusMi {
		radiusMi = MaxProximityRadiusMi
	}

	query := url.Values{
		"lat":    {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":    {strconv.FormatFloat(lon, 'f', -1, 64)},
		"radius": {strconv.FormatFloat(radiusMi, 'f', -1, 64)},
	}

	var resp struct {
		Alerts []proximityAlertDTO `json:"alerts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/alerts/proximity", query, nil, true, &resp); err != nil {
		return nil, err
	}

	alerts := make([]models.ProximityAlert, 0, len(resp.Alerts))
	for _, d := range resp.Alerts {
		ts, _ := time.Parse(time.RFC3339, d.Timestamp)
		alerts = append(alerts, models.ProximityAlert{
			ID:           d.ID,
			DisasterType: d.DisasterType,
			Severity:     models.ParseSeverity(d.Severity),
			DistanceMi:   d.DistanceMi,
			Latitude:     d.Latitude,
			Longitude:    d.Longitude,
			LocationName: d.LocationName,
			Timestamp:    ts,
			Source:       models.Source(d.Source),
		})
	}
	return alerts, nil
}

// Acknowledge dismisses an alert server-side. Best effort; callers swallow
// failures.
func (c *Client) Acknowledge(ctx context.Context, alertID string) error {
	return c.do(ctx, http.MethodPost, "/api/alerts/"+alertID+"/acknowledge", nil, nil, true, nil)
}
