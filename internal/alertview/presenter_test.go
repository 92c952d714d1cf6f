package alertview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mr1hm/crisiswatch/internal/auth"
	"github.com/mr1hm/crisiswatch/internal/models"
)

type fakeBeeper struct {
	beeps  int
	freq   float64
	length time.Duration
	closed bool
}

func (b *fakeBeeper) Beep(frequencyHz float64, duration time.Duration) {
	b.beeps++
	b.freq = frequencyHz
	b.length = duration
}

func (b *fakeBeeper) Close() error {
	b.closed = true
	return nil
}

type memMuteStore struct{ muted bool }

func (s *memMuteStore) Muted() bool { return s.muted }

func (s *memMuteStore) SetMuted(muted bool) error {
	s.muted = muted
	return nil
}

type fakeAck struct {
	ids []string
	err error
}

func (a *fakeAck) Acknowledge(ctx context.Context, alertID string) error {
	a.ids = append(a.ids, alertID)
	return a.err
}

func alert(id string, sev models.Severity, distanceMi float64) models.ProximityAlert {
	return models.ProximityAlert{ID: id, DisasterType: "fire", Severity: sev, DistanceMi: distanceMi}
}

func newTestPresenter() (*Presenter, *fakeBeeper, *memMuteStore, *fakeAck) {
	beeper := &fakeBeeper{}
	store := &memMuteStore{}
	ack := &fakeAck{}
	p := NewPresenter(beeper, store, ack, auth.Guest, nil)
	return p, beeper, store, ack
}

func TestTone_OnRisingCountWithHighSeverity(t *testing.T) {
	p, beeper, _, _ := newTestPresenter()

	p.SetAlerts([]models.ProximityAlert{alert("a1", models.SeverityHigh, 3)})
	if beeper.beeps != 1 {
		t.Fatalf("beeps = %d, want 1", beeper.beeps)
	}
	if beeper.freq != 800 || beeper.length != 500*time.Millisecond {
		t.Errorf("tone = %v Hz for %v, want 800 Hz for 500ms", beeper.freq, beeper.length)
	}

	// Same set again: count flat, no tone.
	p.SetAlerts([]models.ProximityAlert{alert("a1", models.SeverityHigh, 3)})
	if beeper.beeps != 1 {
		t.Errorf("beeps = %d after flat update, want 1", beeper.beeps)
	}

	// Count falls: silent. Rises again: tone.
	p.SetAlerts(nil)
	p.SetAlerts([]models.ProximityAlert{
		alert("a1", models.SeverityHigh, 3),
		alert("a2", models.SeverityCritical, 1),
	})
	if beeper.beeps != 2 {
		t.Errorf("beeps = %d after re-rise, want 2", beeper.beeps)
	}
}

func TestTone_RequiresHighOrCritical(t *testing.T) {
	p, beeper, _, _ := newTestPresenter()

	p.SetAlerts([]models.ProximityAlert{
		alert("a1", models.SeverityMedium, 3),
		alert("a2", models.SeverityLow, 5),
	})
	if beeper.beeps != 0 {
		t.Errorf("beeps = %d for medium/low, want 0", beeper.beeps)
	}
}

func TestTone_Muted(t *testing.T) {
	p, beeper, store, _ := newTestPresenter()
	store.muted = true

	p.SetAlerts([]models.ProximityAlert{alert("a1", models.SeverityCritical, 2)})
	if beeper.beeps != 0 {
		t.Errorf("beeps = %d while muted, want 0", beeper.beeps)
	}
}

func TestView_GroupsBySeverity(t *testing.T) {
	p, _, _, _ := newTestPresenter()

	p.SetAlerts([]models.ProximityAlert{
		alert("far-high", models.SeverityHigh, 9),
		alert("crit", models.SeverityCritical, 4),
		alert("near-high", models.SeverityHigh, 2),
	})

	view := p.View()
	if view.Count != 3 {
		t.Fatalf("count = %d, want 3", view.Count)
	}
	if len(view.Groups) != 2 || view.Groups[0].Severity != models.SeverityCritical {
		t.Fatalf("groups = %+v, want critical first", view.Groups)
	}
	high := view.Groups[1]
	if high.Alerts[0].ID != "near-high" {
		t.Errorf("high group order = %+v, want nearest first", high.Alerts)
	}
}

func TestView_PreferenceFiltered(t *testing.T) {
	p, _, _, _ := newTestPresenter()

	prefs := models.DefaultAlertPreferences()
	prefs.SeverityFilter = []models.Severity{models.SeverityCritical}
	p.SetPreferences(prefs)

	p.SetAlerts([]models.ProximityAlert{
		alert("a1", models.SeverityCritical, 2),
		alert("a2", models.SeverityLow, 3),
	})
	if view := p.View(); view.Count != 1 {
		t.Errorf("count = %d with severity filter, want 1", view.Count)
	}

	prefs.Enabled = false
	p.SetPreferences(prefs)
	if view := p.View(); view.Count != 0 {
		t.Errorf("count = %d with alerts disabled, want 0", view.Count)
	}
}

func TestDismiss_GuestStaysLocal(t *testing.T) {
	p, _, _, ack := newTestPresenter()

	p.SetAlerts([]models.ProximityAlert{alert("a1", models.SeverityHigh, 3)})
	p.Dismiss(context.Background(), "a1")

	if view := p.View(); view.Count != 0 {
		t.Errorf("count = %d after dismiss, want 0", view.Count)
	}
	if len(ack.ids) != 0 {
		t.Error("guest dismiss must not call acknowledge")
	}
}

func TestDismiss_AuthedAcknowledgesBestEffort(t *testing.T) {
	beeper := &fakeBeeper{}
	ack := &fakeAck{err: errors.New("503")}
	tokens := &auth.Static{Token: "t", User: &auth.Identity{UID: "user-1"}}
	p := NewPresenter(beeper, &memMuteStore{}, ack, tokens, nil)

	p.SetAlerts([]models.ProximityAlert{alert("a1", models.SeverityHigh, 3)})
	p.Dismiss(context.Background(), "a1") // failure swallowed

	if len(ack.ids) != 1 || ack.ids[0] != "a1" {
		t.Errorf("acknowledge calls = %v, want [a1]", ack.ids)
	}
	if view := p.View(); view.Count != 0 {
		t.Errorf("count = %d, dismissal must stick despite ack failure", view.Count)
	}
}

func TestDismiss_ResetsToneBaseline(t *testing.T) {
	p, beeper, _, _ := newTestPresenter()

	p.SetAlerts([]models.ProximityAlert{alert("a1", models.SeverityHigh, 3)})
	p.Dismiss(context.Background(), "a1")

	// A new alert after a dismissal is a rise from the dismissed baseline.
	p.SetAlerts([]models.ProximityAlert{
		alert("a1", models.SeverityHigh, 3),
		alert("a2", models.SeverityHigh, 5),
	})
	if beeper.beeps != 2 {
		t.Errorf("beeps = %d, want 2 (initial plus post-dismiss rise)", beeper.beeps)
	}
}

func TestClose_ReleasesBeeper(t *testing.T) {
	p, beeper, _, _ := newTestPresenter()
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !beeper.closed {
		t.Error("beeper not closed")
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	p.SetAlerts([]models.ProximityAlert{alert("a1", models.SeverityCritical, 1)})
	if beeper.beeps != 0 {
		t.Error("closed presenter must not beep")
	}
}
