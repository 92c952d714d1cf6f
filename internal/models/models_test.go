package models

import (
	"testing"
	"time"
)

func TestSeverityOrdering(t *testing.T) {
	order := []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityUnknown}
	for i := 0; i < len(order)-1; i++ {
		if order[i].Rank() <= order[i+1].Rank() {
			t.Errorf("expected %s to rank above %s", order[i], order[i+1])
		}
	}
	if !SeverityHigh.AtLeast(SeverityMedium) {
		t.Error("high should be at least medium")
	}
	if SeverityLow.AtLeast(SeverityCritical) {
		t.Error("low should not be at least critical")
	}
}

func TestParseSeverity(t *testing.T) {
	if got := ParseSeverity("critical"); got != SeverityCritical {
		t.Errorf("ParseSeverity(critical) = %s", got)
	}
	if got := ParseSeverity("Extreme"); got != SeverityUnknown {
		t.Errorf("ParseSeverity(Extreme) = %s, want unknown", got)
	}
	if got := ParseSeverity(""); got != SeverityUnknown {
		t.Errorf("ParseSeverity(empty) = %s, want unknown", got)
	}
}

func TestMaxSeverity(t *testing.T) {
	if got := MaxSeverity(nil); got != SeverityUnknown {
		t.Errorf("MaxSeverity(nil) = %s", got)
	}
	got := MaxSeverity([]Severity{SeverityLow, SeverityHigh, SeverityMedium})
	if got != SeverityHigh {
		t.Errorf("MaxSeverity = %s, want high", got)
	}
}

func TestOpacityFor(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		age  time.Duration
		want float64
	}{
		{time.Hour, 1.0},
		{23 * time.Hour, 1.0},
		{48 * time.Hour, 0.75},
		{5 * 24 * time.Hour, 0.5},
		{30 * 24 * time.Hour, 0.3},
	}
	for _, tt := range tests {
		if got := OpacityFor(now.Add(-tt.age), nil, now); got != tt.want {
			t.Errorf("OpacityFor(age=%v) = %v, want %v", tt.age, got, tt.want)
		}
	}

	// Backend value wins regardless of age.
	server := 0.42
	if got := OpacityFor(now.Add(-90*24*time.Hour), &server, now); got != 0.42 {
		t.Errorf("server opacity ignored: got %v", got)
	}
}

func TestEventValidate(t *testing.T) {
	valid := Event{
		ID: "r1", Source: SourceUserReport, Latitude: 37.7, Longitude: -122.4,
		Timestamp: time.Now(), Severity: SeverityHigh,
		Report: &UserReport{DisplayName: "anon", DisasterType: "fire", AIStatus: AIStatusPending},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid event rejected: %v", err)
	}

	badCoords := valid
	badCoords.Latitude = 95
	if err := badCoords.Validate(); err == nil {
		t.Error("expected error for out-of-range latitude")
	}

	wrongPayload := valid
	wrongPayload.Source = SourceWildfire
	if err := wrongPayload.Validate(); err == nil {
		t.Error("expected error for source/payload mismatch")
	}

	noSource := valid
	noSource.Source = ""
	if err := noSource.Validate(); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestAIStatusTerminal(t *testing.T) {
	for status, want := range map[AIStatus]bool{
		AIStatusPending:       false,
		AIStatusProcessing:    false,
		AIStatusCompleted:     true,
		AIStatusFailed:        true,
		AIStatusNotApplicable: true,
	} {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestAlertPreferencesValidate(t *testing.T) {
	p := DefaultAlertPreferences()
	if err := p.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	p.SeverityFilter = nil
	if err := p.Validate(); err == nil {
		t.Error("expected error with no severities selected")
	}

	p = DefaultAlertPreferences()
	p.DisasterTypes = nil
	if err := p.Validate(); err == nil {
		t.Error("expected error with no types selected")
	}
}

func TestAlertPreferencesFilters(t *testing.T) {
	p := AlertPreferences{
		SeverityFilter: []Severity{SeverityCritical, SeverityHigh},
		DisasterTypes:  []string{"fire"},
	}
	if !p.AllowsSeverity(SeverityCritical) || p.AllowsSeverity(SeverityLow) {
		t.Error("severity filter misbehaves")
	}
	if !p.AllowsType("fire") || p.AllowsType("flood") {
		t.Error("type filter misbehaves")
	}

	// Empty type filter passes everything.
	p.DisasterTypes = nil
	if !p.AllowsType("flood") {
		t.Error("empty type filter should pass all types")
	}
}

func TestMapSettingsValidate(t *testing.T) {
	m := DefaultMapSettings()
	if err := m.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	m.DisplayRadiusMi = 0.5
	if err := m.Validate(); err == nil {
		t.Error("expected error for display radius below 1")
	}

	m = DefaultMapSettings()
	m.ZoomRadiusMi = 101
	if err := m.Validate(); err == nil {
		t.Error("expected error for zoom radius above 100")
	}
}

func TestEventSet(t *testing.T) {
	set := EventSet{Events: []Event{
		{ID: "a", Source: SourceWildfire},
		{ID: "b", Source: SourceWeather},
		{ID: "c", Source: SourceWildfire},
	}}

	if _, ok := set.ByID("b"); !ok {
		t.Error("ByID failed to find b")
	}
	if _, ok := set.ByID("zzz"); ok {
		t.Error("ByID found a missing id")
	}
	if n := set.CountBySource(SourceWildfire); n != 2 {
		t.Errorf("CountBySource(nasa_firms) = %d, want 2", n)
	}
}
