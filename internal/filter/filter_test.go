package filter

import (
	"testing"
	"time"

	"github.com/mr1hm/crisiswatch/internal/models"
)

func eventAt(id string, source models.Source, lat, lon float64) models.Event {
	e := models.Event{
		ID: id, Source: source, Latitude: lat, Longitude: lon,
		Timestamp: time.Now(), Severity: models.SeverityMedium,
	}
	switch source {
	case models.SourceUserReport:
		e.Report = &models.UserReport{DisplayName: "anon", DisasterType: "fire"}
	case models.SourceWildfire:
		e.Wildfire = &models.Wildfire{Brightness: 320}
	case models.SourceWeather:
		e.Weather = &models.WeatherAlert{Event: "Flood Watch"}
	}
	return e
}

func testSet() *models.EventSet {
	return &models.EventSet{Events: []models.Event{
		eventAt("r1", models.SourceUserReport, 37.7749, -122.4194), // at the user
		eventAt("wf1", models.SourceWildfire, 37.80, -122.41),      // ~1.7 mi away
		eventAt("wa1", models.SourceWeather, 38.5, -121.5),         // ~70 mi away
	}}
}

func userLoc() *models.UserLocation {
	return &models.UserLocation{Latitude: 37.7749, Longitude: -122.4194, Source: models.LocationGeolocation}
}

func TestVisible_SourceMask(t *testing.T) {
	engine := NewEngine(nil)
	settings := models.DefaultMapSettings()
	settings.ShowAllDisasters = true

	mask := AllSources()
	mask.Wildfires = false
	got := engine.Visible(testSet(), mask, nil, settings)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	for _, e := range got {
		if e.Source == models.SourceWildfire {
			t.Error("disabled source leaked through the mask")
		}
	}
}

func TestVisible_RadiusCut(t *testing.T) {
	engine := NewEngine(nil)
	settings := models.DefaultMapSettings() // display radius 25, show_all off

	got := engine.Visible(testSet(), AllSources(), userLoc(), settings)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2 inside 25 mi", len(got))
	}
	for _, e := range got {
		if e.ID == "wa1" {
			t.Error("event beyond display radius kept")
		}
	}
}

func TestVisible_ShowAllBypassesRadius(t *testing.T) {
	engine := NewEngine(nil)
	settings := models.DefaultMapSettings()
	settings.ShowAllDisasters = true

	got := engine.Visible(testSet(), AllSources(), userLoc(), settings)
	if len(got) != 3 {
		t.Errorf("got %d events, want all 3 with show_all", len(got))
	}
}

func TestVisible_NoLocationKeepsAll(t *testing.T) {
	engine := NewEngine(nil)
	got := engine.Visible(testSet(), AllSources(), nil, models.DefaultMapSettings())
	if len(got) != 3 {
		t.Errorf("got %d events, want all 3 without a location", len(got))
	}
}

func TestVisible_Memoized(t *testing.T) {
	engine := NewEngine(nil)
	set := testSet()
	loc := userLoc()
	settings := models.DefaultMapSettings()

	engine.Visible(set, AllSources(), loc, settings)
	engine.Visible(set, AllSources(), loc, settings)
	if engine.recomputes != 1 {
		t.Errorf("recomputed %d times for identical inputs, want 1", engine.recomputes)
	}

	// A new snapshot pointer invalidates the memo even with equal contents.
	other := testSet()
	engine.Visible(other, AllSources(), loc, settings)
	if engine.recomputes != 2 {
		t.Errorf("recomputed %d times after new snapshot, want 2", engine.recomputes)
	}

	// So does a settings change by value.
	settings.DisplayRadiusMi = 5
	engine.Visible(other, AllSources(), loc, settings)
	if engine.recomputes != 3 {
		t.Errorf("recomputed %d times after settings change, want 3", engine.recomputes)
	}
}

func TestAlerts_PreferenceFilter(t *testing.T) {
	alerts := []models.ProximityAlert{
		{ID: "a1", DisasterType: "fire", Severity: models.SeverityCritical},
		{ID: "a2", DisasterType: "flood", Severity: models.SeverityLow},
		{ID: "a3", DisasterType: "earthquake", Severity: models.SeverityHigh},
	}

	prefs := models.DefaultAlertPreferences() // all severities, all types
	if got := Alerts(alerts, prefs); len(got) != 3 {
		t.Errorf("defaults filtered %d alerts, want 3", len(got))
	}

	prefs.SeverityFilter = []models.Severity{models.SeverityCritical, models.SeverityHigh}
	prefs.DisasterTypes = []string{"fire"}
	got := Alerts(alerts, prefs)
	if len(got) != 1 || got[0].ID != "a1" {
		t.Errorf("got %+v, want only a1", got)
	}
}
