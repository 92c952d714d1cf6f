package backend

import (
	"context"
	"net/http"

	"github.com/mr1hm/crisiswatch/internal/models"
)

// GetAlertPreferences fetches the signed-in user's alert preferences.
func (c *Client) GetAlertPreferences(ctx context.Context) (models.AlertPreferences, error) {
	var prefs models.AlertPreferences
	if err := c.do(ctx, http.MethodGet, "/api/alerts/preferences", nil, nil, true, &prefs); err != nil {
		return models.AlertPreferences{}, err
	}
	return prefs, nil
}

// PutAlertPreferences stores alert preferences remotely and returns the
// persisted copy.
func (c *Client) PutAlertPreferences(ctx context.Context, prefs models.AlertPreferences) (models.AlertPreferences, error) {
	var saved models.AlertPreferences
	if err := c.do(ctx, http.MethodPut, "/api/alerts/preferences", nil, prefs, true, &saved); err != nil {
		return models.AlertPreferences{}, err
	}
	return saved, nil
}

// PutMapSettings stores map settings remotely and returns the persisted copy.
func (c *Client) PutMapSettings(ctx context.Context, settings models.MapSettings) (models.MapSettings, error) {
	var saved models.MapSettings
	if err := c.do(ctx, http.MethodPut, "/api/settings/map", nil, settings, true, &saved); err != nil {
		return models.MapSettings{}, err
	}
	return saved, nil
}
