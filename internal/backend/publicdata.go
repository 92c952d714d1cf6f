package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mr1hm/crisiswatch/internal/models"
)

// wildfireDTO is the wire shape of a NASA FIRMS detection.
type wildfireDTO struct {
	ID          string   `json:"id"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Brightness  float64  `json:"brightness"`
	FRP         float64  `json:"frp"`
	AcquireDate string   `json:"acq_date"`
	AcquireTime string   `json:"acq_time"`
	Severity    string   `json:"severity"`
	Timestamp   string   `json:"timestamp"`
	Opacity     *float64 `json:"opacity,omitempty"`
}

func (d *wildfireDTO) toEvent() models.Event {
	ts, err := time.Parse(time.RFC3339, d.Timestamp)
	if err != nil {
		// FIRMS rows carry acq_date even when the bundle omits timestamp.
		ts, _ = time.Parse("2006-01-02", d.AcquireDate)
	}
	return models.Event{
		ID:        d.ID,
		Source:    models.SourceWildfire,
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
		Timestamp: ts,
		Severity:  models.ParseSeverity(d.Severity),
		Opacity:   d.Opacity,
		Wildfire: &models.Wildfire{
			Brightness:  d.Brightness,
			FRP:         d.FRP,
			AcquireDate: d.AcquireDate,
			AcquireTime: d.AcquireTime,
		},
	}
}

// weatherAlertDTO is the wire shape of a NOAA advisory.
type weatherAlertDTO struct {
	ID        string     `json:"id"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Event     string     `json:"event"`
	Severity  string     `json:"severity"`
	Urgency   string     `json:"urgency"`
	Certainty string     `json:"certainty"`
	Headline  string     `json:"headline"`
	AreaDesc  string     `json:"area_desc"`
	Onset     *time.Time `json:"onset,omitempty"`
	Expires   *time.Time `json:"expires,omitempty"`
	Timestamp string     `json:"timestamp"`
	Opacity   *float64   `json:"opacity,omitempty"`
}

func (d *weatherAlertDTO) toEvent() models.Event {
	ts, err := time.Parse(time.RFC3339, d.Timestamp)
	if err != nil && d.Onset != nil {
		ts = *d.Onset
	}
	return models.Event{
		ID:        d.ID,
		Source:    models.SourceWeather,
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
		Timestamp: ts,
		Severity:  models.ParseSeverity(d.Severity),
		Opacity:   d.Opacity,
		Weather: &models.WeatherAlert{
			Event:     d.Event,
			Urgency:   d.Urgency,
			Certainty: d.Certainty,
			Headline:  d.Headline,
			AreaDesc:  d.AreaDesc,
			Onset:     d.Onset,
			Expires:   d.Expires,
		},
	}
}

// PublicData is the decoded wildfire + weather-alert bundle.
type PublicData struct {
	Wildfires     []models.Event
	WeatherAlerts []models.Event
}

// FetchPublicData fetches the public bundle for the given window (days) and
// minimum severity.
func (c *Client) FetchPublicData(ctx context.Context, days int, minSeverity models.Severity) (PublicData, error) {
	query := url.Values{
		"days":     {strconv.Itoa(days)},
		"severity": {string(minSeverity)},
	}

	var resp struct {
		Wildfires     []wildfireDTO     `json:"wildfires"`
		WeatherAlerts []weatherAlertDTO `json:"weather_alerts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/public-data/all", query, nil, false, &resp); err != nil {
		return PublicData{}, err
	}

	out := PublicData{
		Wildfires:     make([]models.Event, 0, len(resp.Wildfires)),
		WeatherAlerts: make([]models.Event, 0, len(resp.WeatherAlerts)),
	}
	for i := range resp.Wildfires {
		out.Wildfires = append(out.Wildfires, resp.Wildfires[i].toEvent())
	}
	for i := range resp.WeatherAlerts {
		out.WeatherAlerts = append(out.WeatherAlerts, resp.WeatherAlerts[i].toEvent())
	}
	return out, nil
}
