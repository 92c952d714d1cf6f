package api

import (
	"github.com/mr1hm/crisiswatch/internal/models"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// toGeoJSON exports the visible event set for map shells that speak GeoJSON
// directly. Properties carry the shared header plus a human title per source.
func toGeoJSON(events []models.Event) FeatureCollection {
	features := make([]Feature, 0, len(events))

	for _, e := range events {
		f := Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{e.Longitude, e.Latitude},
			},
			Properties: map[string]any{
				"id":        e.ID,
				"source":    string(e.Source),
				"severity":  string(e.Severity),
				"timestamp": e.Timestamp,
				"title":     eventTitle(e),
			},
		}
		if e.Opacity != nil {
			f.Properties["opacity"] = *e.Opacity
		}
		features = append(features, f)
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}

func eventTitle(e models.Event) string {
	switch {
	case e.Report != nil:
		return e.Report.DisasterType
	case e.Weather != nil:
		return e.Weather.Event
	case e.Wildfire != nil:
		return "wildfire detection"
	}
	return ""
}
