// Package alertview presents proximity alerts: the bell badge count, the
// severity-grouped list, the audible cue, and dismissal.
package alertview

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mr1hm/crisiswatch/internal/auth"
	"github.com/mr1hm/crisiswatch/internal/filter"
	"github.com/mr1hm/crisiswatch/internal/models"
)

// Tone parameters of the audible cue.
const (
	ToneFrequencyHz = 800
	ToneDuration    = 500 * time.Millisecond
)

// Beeper plays the alert tone. The audio device is created on first use and
// released on Close.
type Beeper interface {
	Beep(frequencyHz float64, duration time.Duration)
	Close() error
}

// MuteStore persists the per-device mute flag.
type MuteStore interface {
	Muted() bool
	SetMuted(muted bool) error
}

// Acknowledger dismisses an alert server-side.
type Acknowledger interface {
	Acknowledge(ctx context.Context, alertID string) error
}

// Group is one severity bucket of the expanded list.
type Group struct {
	Severity models.Severity
	Alerts   []models.ProximityAlert
}

// View is the published alert presentation.
type View struct {
	Groups []Group
	Count  int
	Muted  bool
}

// Presenter tracks active alerts and decides when the cue plays.
type Presenter struct {
	beeper Beeper
	store  MuteStore
	ack    Acknowledger
	tokens auth.TokenProvider
	logger *slog.Logger

	mu        sync.Mutex
	prefs     models.AlertPreferences
	alerts    []models.ProximityAlert
	dismissed map[string]struct{}
	lastCount int
	closed    bool
}

func NewPresenter(beeper Beeper, store MuteStore, ack Acknowledger, tokens auth.TokenProvider, logger *slog.Logger) *Presenter {
	if tokens == nil {
		tokens = auth.Guest
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Presenter{
		beeper:    beeper,
		store:     store,
		ack:       ack,
		tokens:    tokens,
		logger:    logger,
		prefs:     models.DefaultAlertPreferences(),
		dismissed: map[string]struct{}{},
	}
}

// SetPreferences swaps the filtering preferences. No cue plays on a
// preference change even if it exposes more alerts.
func (p *Presenter) SetPreferences(prefs models.AlertPreferences) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefs = prefs
	p.lastCount = len(p.activeLocked())
}

// SetAlerts replaces the alert set from the poller. The tone plays only when
// the active count strictly rises, the active set holds a critical or high
// alert, and the device is not muted.
func (p *Presenter) SetAlerts(alerts []models.ProximityAlert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.alerts = alerts

	active := p.activeLocked()
	rising := len(active) > p.lastCount
	p.lastCount = len(active)

	if !rising || p.store.Muted() {
		return
	}
	if !models.MaxAlertSeverity(active).AtLeast(models.SeverityHigh) {
		return
	}
	if p.beeper != nil {
		p.beeper.Beep(ToneFrequencyHz, ToneDuration)
	}
}

// activeLocked is the preference-filtered alert set minus dismissals.
func (p *Presenter) activeLocked() []models.ProximityAlert {
	if !p.prefs.Enabled {
		return nil
	}
	active := make([]models.ProximityAlert, 0, len(p.alerts))
	for _, a := range filter.Alerts(p.alerts, p.prefs) {
		if _, ok := p.dismissed[a.ID]; ok {
			continue
		}
		active = append(active, a)
	}
	return active
}

// Active returns the preference-filtered, undismissed alerts.
func (p *Presenter) Active() []models.ProximityAlert {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeLocked()
}

// View returns the severity-grouped presentation, most severe group first and
// nearest alert first within each group.
func (p *Presenter) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	active := p.activeLocked()
	bySeverity := map[models.Severity][]models.ProximityAlert{}
	for _, a := range active {
		bySeverity[a.Severity] = append(bySeverity[a.Severity], a)
	}

	var groups []Group
	for _, sev := range models.AllSeverities() {
		alerts := bySeverity[sev]
		if len(alerts) == 0 {
			continue
		}
		sort.Slice(alerts, func(i, j int) bool { return alerts[i].DistanceMi < alerts[j].DistanceMi })
		groups = append(groups, Group{Severity: sev, Alerts: alerts})
	}

	return View{Groups: groups, Count: len(active), Muted: p.store.Muted()}
}

// Dismiss removes the alert locally and, for signed-in users, acknowledges it
// server-side. The acknowledge is best effort.
func (p *Presenter) Dismiss(ctx context.Context, alertID string) {
	p.mu.Lock()
	p.dismissed[alertID] = struct{}{}
	p.lastCount = len(p.activeLocked())
	authed := false
	if id := p.tokens.Identity(); id != nil && id.UID != "" {
		authed = true
	}
	p.mu.Unlock()

	if authed && p.ack != nil {
		if err := p.ack.Acknowledge(ctx, alertID); err != nil {
			p.logger.Debug("alert acknowledge failed", "alert_id", alertID, "error", err)
		}
	}
}

// SetMuted persists the per-device mute flag.
func (p *Presenter) SetMuted(muted bool) error {
	return p.store.SetMuted(muted)
}

// Close releases the audio device.
func (p *Presenter) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if p.beeper != nil {
		return p.beeper.Close()
	}
	return nil
}
