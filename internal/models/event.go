package models

import (
	"fmt"
	"time"

	"github.com/mr1hm/crisiswatch/internal/geo"
)

// Source tags the origin of an event.
type Source string

const (
	SourceUserReport Source = "user_report"
	SourceWildfire   Source = "nasa_firms"
	SourceWeather    Source = "noaa"
)

// AllSources lists every event source.
func AllSources() []Source {
	return []Source{SourceUserReport, SourceWildfire, SourceWeather}
}

// AIStatus tracks backend AI enhancement of a user report.
type AIStatus string

const (
	AIStatusPending       AIStatus = "pending"
	AIStatusProcessing    AIStatus = "processing"
	AIStatusCompleted     AIStatus = "completed"
	AIStatusFailed        AIStatus = "failed"
	AIStatusNotApplicable AIStatus = "not_applicable"
)

// Terminal reports whether the enhancement pipeline is done with the report.
func (s AIStatus) Terminal() bool {
	return s == AIStatusCompleted || s == AIStatusFailed || s == AIStatusNotApplicable
}

// Event is a tagged variant: a shared header plus exactly one source-specific
// payload matching Source.
type Event struct {
	ID         string    `json:"id"`
	Source     Source    `json:"source"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Timestamp  time.Time `json:"timestamp"`
	Severity   Severity  `json:"severity"`
	Confidence *float64  `json:"confidence,omitempty"`
	Opacity    *float64  `json:"opacity,omitempty"` // backend time-decay value when present

	Report   *UserReport   `json:"report,omitempty"`
	Wildfire *Wildfire     `json:"wildfire,omitempty"`
	Weather  *WeatherAlert `json:"weather_alert,omitempty"`
}

// UserReport is the payload of a user-submitted event.
type UserReport struct {
	UserID          string   `json:"user_id,omitempty"` // empty for legacy reports
	DisplayName     string   `json:"display_name"`
	DisasterType    string   `json:"disaster_type"`
	Description     string   `json:"description"`
	ImageURL        string   `json:"image_url,omitempty"`
	AIStatus        AIStatus `json:"ai_analysis_status"`
	AIReasoning     string   `json:"ai_reasoning,omitempty"`
	ConfidenceLevel string   `json:"confidence_level,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	UserCredibility *float64 `json:"user_credibility,omitempty"`
}

// Wildfire is the payload of a satellite fire detection.
type Wildfire struct {
	Brightness  float64 `json:"brightness"`
	FRP         float64 `json:"frp"` // fire radiative power, MW
	AcquireDate string  `json:"acq_date"`
	AcquireTime string  `json:"acq_time"`
}

// WeatherAlert is the payload of a government weather advisory.
type WeatherAlert struct {
	Event     string     `json:"event"`
	Urgency   string     `json:"urgency"`
	Certainty string     `json:"certainty"`
	Headline  string     `json:"headline"`
	AreaDesc  string     `json:"area_desc"`
	Onset     *time.Time `json:"onset,omitempty"`
	Expires   *time.Time `json:"expires,omitempty"`
}

// Validate enforces the event invariants: a source tag and a valid position,
// and a payload matching the source.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event missing id")
	}
	if !geo.IsValidCoordinates(e.Latitude, e.Longitude) {
		return fmt.Errorf("event %s: %w", e.ID, geo.ErrInvalidCoordinates)
	}
	switch e.Source {
	case SourceUserReport:
		if e.Report == nil {
			return fmt.Errorf("event %s: user_report source without report payload", e.ID)
		}
	case SourceWildfire:
		if e.Wildfire == nil {
			return fmt.Errorf("event %s: nasa_firms source without wildfire payload", e.ID)
		}
	case SourceWeather:
		if e.Weather == nil {
			return fmt.Errorf("event %s: noaa source without weather payload", e.ID)
		}
	default:
		return fmt.Errorf("event %s: unknown source %q", e.ID, e.Source)
	}
	return nil
}

// EventSet is the unified, bulk-replaced collection held by the repository.
// Notice carries the user-facing degraded-data message when the last refresh
// lost one of its streams; it is empty after a fully successful refresh.
type EventSet struct {
	Events    []Event   `json:"events"`
	FetchedAt time.Time `json:"fetched_at"`
	Notice    string    `json:"notice,omitempty"`
}

// ByID returns the event with the given id, if present.
func (s EventSet) ByID(id string) (Event, bool) {
	for _, e := range s.Events {
		if e.ID == id {
			return e, true
		}
	}
	return Event{}, false
}

// CountBySource returns the number of events carrying the given tag.
func (s EventSet) CountBySource(src Source) int {
	n := 0
	for _, e := range s.Events {
		if e.Source == src {
			n++
		}
	}
	return n
}
