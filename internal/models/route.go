package models

import "time"

// SafeZone is an evacuation facility from the backend catalog.
type SafeZone struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Type              string   `json:"type"` // shelter, hospital, fire_station, ...
	Latitude          float64  `json:"latitude"`
	Longitude         float64  `json:"longitude"`
	Address           string   `json:"address"`
	Capacity          int      `json:"capacity"`
	OperationalStatus string   `json:"operational_status"`
	DistanceFromUser  float64  `json:"distance_from_user_mi"`
	Amenities         []string `json:"amenities,omitempty"`
	Contact           string   `json:"contact,omitempty"`
}

// ZoneSafety is the backend's threat assessment for one zone.
type ZoneSafety struct {
	Safe                    bool     `json:"safe"`
	Threats                 []string `json:"threats"`
	DistanceToNearestThreat *float64 `json:"distance_to_nearest_threat_mi,omitempty"`
}

// Instruction is one turn-by-turn waypoint of a route.
type Instruction struct {
	Text       string  `json:"text"`
	DistanceMi float64 `json:"distance_mi"`
}

// Route is one calculated route alternative.
type Route struct {
	RouteID           string        `json:"route_id"`
	Geometry          [][2]float64  `json:"geometry"` // (lon, lat) pairs
	DistanceMi        float64       `json:"distance_mi"`
	DurationSeconds   int           `json:"duration_seconds"`
	SafetyScore       float64       `json:"safety_score"`  // [0, 100]
	HeatmapScore      float64       `json:"heatmap_score"` // [0, 10]
	IntersectsHazards bool          `json:"intersects_disasters"`
	HazardsNearby     int           `json:"disasters_nearby"`
	MinHazardDistance *float64      `json:"min_disaster_distance_mi,omitempty"`
	EstimatedArrival  *time.Time    `json:"estimated_arrival,omitempty"`
	Waypoints         []Instruction `json:"waypoints"`
	IsFastest         bool          `json:"is_fastest,omitempty"`
	IsSafest          bool          `json:"is_safest,omitempty"`
	Warning           string        `json:"warning,omitempty"`
}
