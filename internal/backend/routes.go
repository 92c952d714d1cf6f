package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/twpayne/go-polyline"

	"github.com/mr1hm/crisiswatch/internal/models"
)

// RouteRequest is the POST /api/routes/calculate body.
type RouteRequest struct {
	Origin         [2]float64 `json:"origin"`      // (lon, lat)
	Destination    [2]float64 `json:"destination"` // (lon, lat)
	SafeZoneID     string     `json:"safe_zone_id,omitempty"`
	AvoidDisasters bool       `json:"avoid_disasters"`
	Alternatives   bool       `json:"alternatives"`
}

// routeGeometry accepts the two wire encodings the router emits: a raw
// [lon,lat] coordinate array, or an encoded polyline string.
type routeGeometry [][2]float64

func (g *routeGeometry) UnmarshalJSON(data []byte) error {
	var coords [][2]float64
	if err := json.Unmarshal(data, &coords); err == nil {
		*g = coords
		return nil
	}

	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return fmt.Errorf("route geometry is neither coordinates nor polyline: %w", err)
	}
	pts, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return fmt.Errorf("decode polyline geometry: %w", err)
	}
	out := make([][2]float64, 0, len(pts))
	for _, p := range pts {
		// Polylines encode (lat, lon); the route contract is (lon, lat).
		out = append(out, [2]float64{p[1], p[0]})
	}
	*g = out
	return nil
}

type instructionDTO struct {
	Text       string  `json:"text"`
	DistanceMi float64 `json:"distance_mi"`
}

type routeDTO struct {
	RouteID           string           `json:"route_id"`
	Geometry          routeGeometry    `json:"geometry"`
	DistanceMi        float64          `json:"distance_mi"`
	DurationSeconds   int              `json:"duration_seconds"`
	SafetyScore       float64          `json:"safety_score"`
	HeatmapScore      float64          `json:"heatmap_score"`
	IntersectsHazards bool             `json:"intersects_disasters"`
	HazardsNearby     int              `json:"disasters_nearby"`
	MinHazardDistance *float64         `json:"min_disaster_distance_mi,omitempty"`
	EstimatedArrival  *time.Time       `json:"estimated_arrival,omitempty"`
	Waypoints         []instructionDTO `json:"waypoints"`
	IsFastest         bool             `json:"is_fastest,omitempty"`
	IsSafest          bool             `json:"is_safest,omitempty"`
	Warning           string           `json:"warning,omitempty"`
}

func (d *routeDTO) toRoute() models.Route {
	waypoints := make([]models.Instruction, 0, len(d.Waypoints))
	for _, w := range d.Waypoints {
		waypoints = append(waypoints, models.Instruction{Text: w.Text, DistanceMi: w.DistanceMi})
	}
	return models.Route{
		RouteID:           d.RouteID,
		Geometry:          d.Geometry,
		DistanceMi:        d.DistanceMi,
		DurationSeconds:   d.DurationSeconds,
		SafetyScore:       d.SafetyScore,
		HeatmapScore:      d.HeatmapScore,
		IntersectsHazards: d.IntersectsHazards,
		HazardsNearby:     d.HazardsNearby,
		MinHazardDistance: d.MinHazardDistance,
		EstimatedArrival:  d.EstimatedArrival,
		Waypoints:         waypoints,
		IsFastest:         d.IsFastest,
		IsSafest:          d.IsSafest,
		Warning:           d.Warning,
	}
}

// CalculateRoutes asks the backend router for routes to a destination.
func (c *Client) CalculateRoutes(ctx context.Context, req RouteRequest) ([]models.Route, error) {
	var resp struct {
		Routes []routeDTO `json:"routes"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/routes/calculate", nil, req, true, &resp); err != nil {
		return nil, err
	}

	routes := make([]models.Route, 0, len(resp.Routes))
	for i := range resp.Routes {
		routes = append(routes, resp.Routes[i].toRoute())
	}
	return routes, nil
}
