package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mr1hm/crisiswatch/internal/models"
)

// SafeZoneQuery parameterizes the nearest-zones lookup.
type SafeZoneQuery struct {
	Latitude      float64
	Longitude     float64
	Limit         int
	MaxDistanceMi float64
	Type          string // empty for all types
}

// ListSafeZones fetches the nearest safe zones to a point.
func (c *Client) ListSafeZones(ctx context.Context, q SafeZoneQuery) ([]models.SafeZone, error) {
	query := url.Values{
		"lat": {strconv.FormatFloat(q.Latitude, 'f', -1, 64)},
		"lon": {strconv.FormatFloat(q.Longitude, 'f', -1, 64)},
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.MaxDistanceMi > 0 {
		query.Set("max_distance_mi", strconv.FormatFloat(q.MaxDistanceMi, 'f', -1, 64))
	}
	if q.Type != "" {
		query.Set("type", q.Type)
	}

	var zones []models.SafeZone
	if err := c.do(ctx, http.MethodGet, "/api/safe-zones", query, nil, false, &zones); err != nil {
		return nil, err
	}
	return zones, nil
}

// ZoneStatus fetches the backend's safety assessment for one zone.
func (c *Client) ZoneStatus(ctx context.Context, zoneID string, threatRadiusMi float64) (models.ZoneSafety, error) {
	query := url.Values{}
	if threatRadiusMi > 0 {
		query.Set("threat_radius_mi", strconv.FormatFloat(threatRadiusMi, 'f', -1, 64))
	}

	var status models.ZoneSafety
	if err := c.do(ctx, http.MethodGet, "/api/safe-zones/"+zoneID+"/status", query, nil, false, &status); err != nil {
		return models.ZoneSafety{}, err
	}
	return status, nil
}
