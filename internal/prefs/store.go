// Package prefs persists alert preferences and map settings. Remote storage
// is authoritative for signed-in users; guests get the device store. Loads
// fall back to the last-known local copy when the backend is unreachable.
package prefs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mr1hm/crisiswatch/internal/auth"
	"github.com/mr1hm/crisiswatch/internal/models"
)

const (
	guestNamespace  = "guest"
	deviceNamespace = "device" // per-device flags, shared across identities

	keyAlertPrefs   = "alert_preferences"
	keyMapSettings  = "map_settings"
	keyMuted        = "alerts_muted"
	keyPWADismissed = "pwa_install_dismissed_at"
)

// RemoteAPI is the backend slice the store consumes.
type RemoteAPI interface {
	GetAlertPreferences(ctx context.Context) (models.AlertPreferences, error)
	PutAlertPreferences(ctx context.Context, prefs models.AlertPreferences) (models.AlertPreferences, error)
	PutMapSettings(ctx context.Context, settings models.MapSettings) (models.MapSettings, error)
}

// Store is the preference store.
type Store struct {
	local  *LocalStore
	remote RemoteAPI
	tokens auth.TokenProvider
	logger *slog.Logger
}

func NewStore(local *LocalStore, remote RemoteAPI, tokens auth.TokenProvider, logger *slog.Logger) *Store {
	if tokens == nil {
		tokens = auth.Guest
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{local: local, remote: remote, tokens: tokens, logger: logger}
}

// namespace scopes local copies per user so a guest's settings don't bleed
// into a signed-in session on the same device.
func (s *Store) namespace() string {
	if id := s.tokens.Identity(); id != nil && id.UID != "" {
		return id.UID
	}
	return guestNamespace
}

func (s *Store) authenticated() bool {
	id := s.tokens.Identity()
	return id != nil && id.UID != ""
}

// LoadAlertPreferences returns stored preferences, defaults when nothing is
// stored, and the last-known local copy when the backend is unreachable.
func (s *Store) LoadAlertPreferences(ctx context.Context) (models.AlertPreferences, error) {
	ns := s.namespace()

	if s.authenticated() {
		remote, err := s.remote.GetAlertPreferences(ctx)
		if err == nil {
			// Keep the local copy current for offline fallback.
			if perr := s.local.put(ns, keyAlertPrefs, remote); perr != nil {
				s.logger.Warn("caching alert preferences locally failed", "error", perr)
			}
			return s.migrateLegacyRadius(ns, remote), nil
		}
		s.logger.Warn("remote alert preferences unavailable, using local copy", "error", err)
	}

	var local models.AlertPreferences
	err := s.local.get(ns, keyAlertPrefs, &local)
	if errors.Is(err, errNotFound) {
		return models.DefaultAlertPreferences(), nil
	}
	if err != nil {
		return models.AlertPreferences{}, err
	}
	return s.migrateLegacyRadius(ns, local), nil
}

// SaveAlertPreferences validates and persists. Remote failures surface; the
// local copy is written regardless so the fallback stays fresh.
func (s *Store) SaveAlertPreferences(ctx context.Context, p models.AlertPreferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	ns := s.namespace()

	if err := s.local.put(ns, keyAlertPrefs, p); err != nil {
		return err
	}
	if s.authenticated() {
		if _, err := s.remote.PutAlertPreferences(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// LoadMapSettings returns stored map settings or defaults. The backend has no
// read endpoint for map settings, so the device copy is the source of truth.
func (s *Store) LoadMapSettings(ctx context.Context) (models.MapSettings, error) {
	var settings models.MapSettings
	err := s.local.get(s.namespace(), keyMapSettings, &settings)
	if errors.Is(err, errNotFound) {
		return models.DefaultMapSettings(), nil
	}
	if err != nil {
		return models.MapSettings{}, err
	}
	return settings, nil
}

// SaveMapSettings validates and persists, remote best included for signed-in
// users. Remote failures surface.
func (s *Store) SaveMapSettings(ctx context.Context, m models.MapSettings) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := s.local.put(s.namespace(), keyMapSettings, m); err != nil {
		return err
	}
	if s.authenticated() {
		if _, err := s.remote.PutMapSettings(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// migrateLegacyRadius copies a legacy radius_mi forward into
// MapSettings.DisplayRadiusMi exactly once, when no display radius was ever
// stored.
func (s *Store) migrateLegacyRadius(ns string, p models.AlertPreferences) models.AlertPreferences {
	if p.LegacyRadiusMi == nil {
		return p
	}

	var settings models.MapSettings
	err := s.local.get(ns, keyMapSettings, &settings)
	if errors.Is(err, errNotFound) {
		settings = models.DefaultMapSettings()
		settings.DisplayRadiusMi = *p.LegacyRadiusMi
		if verr := settings.Validate(); verr == nil {
			if perr := s.local.put(ns, keyMapSettings, settings); perr != nil {
				s.logger.Warn("legacy radius migration failed", "error", perr)
				return p
			}
			s.logger.Info("migrated legacy radius_mi to map settings", "radius_mi", *p.LegacyRadiusMi)
		}
	}

	p.LegacyRadiusMi = nil
	// Persist the cleared flag so the copy happens only once.
	if perr := s.local.put(ns, keyAlertPrefs, p); perr != nil {
		s.logger.Warn("clearing legacy radius flag failed", "error", perr)
	}
	return p
}

// Muted returns the per-device alert mute flag.
func (s *Store) Muted() bool {
	var muted bool
	if err := s.local.get(deviceNamespace, keyMuted, &muted); err != nil {
		return false
	}
	return muted
}

// SetMuted persists the per-device mute flag.
func (s *Store) SetMuted(muted bool) error {
	return s.local.put(deviceNamespace, keyMuted, muted)
}

// PWADismissedAt returns when the install prompt was dismissed, if ever.
func (s *Store) PWADismissedAt() (time.Time, bool) {
	var ts time.Time
	if err := s.local.get(deviceNamespace, keyPWADismissed, &ts); err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// SetPWADismissedAt records dismissal of the install prompt.
func (s *Store) SetPWADismissedAt(ts time.Time) error {
	return s.local.put(deviceNamespace, keyPWADismissed, ts)
}
