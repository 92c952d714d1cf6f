// Package api is the local surface the browser shell talks to: one snapshot
// endpoint, one SSE stream, and intent endpoints that feed the coordinator.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/crisiswatch/internal/admin"
	"github.com/mr1hm/crisiswatch/internal/app"
	"github.com/mr1hm/crisiswatch/internal/backend"
	"github.com/mr1hm/crisiswatch/internal/filter"
	"github.com/mr1hm/crisiswatch/internal/location"
	"github.com/mr1hm/crisiswatch/internal/models"
)

type Handler struct {
	coord    *app.Coordinator
	provider *location.RemoteProvider
	logger   *slog.Logger
}

func NewHandler(coord *app.Coordinator, provider *location.RemoteProvider, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		coord:    coord,
		provider: provider,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/api/state", h.getState)
	r.GET("/api/stream", h.stream)
	r.GET("/api/events", h.getEvents)

	r.POST("/api/location/request", h.requestLocation)
	r.POST("/api/location/fix", h.reportFix)
	r.POST("/api/location/deny", h.denyLocation)
	r.POST("/api/location/pick", h.pickLocation)
	r.POST("/api/location/picker", h.setPicker)

	r.PUT("/api/preferences", h.putPreferences)
	r.PUT("/api/settings", h.putSettings)
	r.PUT("/api/sources", h.putSources)

	r.POST("/api/map/hover", h.setHover)
	r.POST("/api/map/select", h.setSelect)
	r.POST("/api/map/viewport", h.setViewport)

	r.POST("/api/window", h.setWindow)
	r.POST("/api/visibility", h.setVisibility)
	r.POST("/api/emergency", h.setEmergencyOverride)

	r.POST("/api/routes/open", h.openRoutes)
	r.POST("/api/routes/zone", h.selectZone)
	r.POST("/api/routes/zone/safety", h.checkZoneSafety)
	r.POST("/api/routes/calculate", h.calculateRoutes)
	r.POST("/api/routes/select", h.selectRoute)
	r.DELETE("/api/routes", h.closeRoutes)

	r.POST("/api/reports", h.submitReport)
	r.PATCH("/api/reports/:id", h.editReport)
	r.DELETE("/api/reports/:id", h.deleteReport)

	r.POST("/api/alerts/:id/dismiss", h.dismissAlert)
	r.PUT("/api/alerts/mute", h.setMuted)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getState(c *gin.Context) {
	c.JSON(http.StatusOK, h.coord.State())
}

func (h *Handler) getEvents(c *gin.Context) {
	fc := toGeoJSON(h.coord.State().VisibleEvents)
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

// requestLocation runs the consent flow. The call blocks until the shell
// posts a fix or a denial, or the acquisition times out.
func (h *Handler) requestLocation(c *gin.Context) {
	if err := h.coord.RequestLocation(c.Request.Context()); err != nil {
		c.JSON(locationStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fixRequest carries a coordinate pair. Zero is a valid latitude and
// longitude, so range validation happens downstream, not in binding.
type fixRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (h *Handler) reportFix(c *gin.Context) {
	var req fixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fix payload"})
		return
	}
	h.provider.Report(req.Latitude, req.Longitude, time.Now())
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *Handler) denyLocation(c *gin.Context) {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid denial payload"})
		return
	}
	h.provider.Deny(classifyDenial(req.Code))
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *Handler) pickLocation(c *gin.Context) {
	var req fixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pick payload"})
		return
	}
	if err := h.coord.PickLocation(req.Latitude, req.Longitude); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) setPicker(c *gin.Context) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid picker payload"})
		return
	}
	h.coord.SetPickerActive(req.Active)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) putPreferences(c *gin.Context) {
	var prefs models.AlertPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid preferences payload"})
		return
	}
	if err := h.coord.UpdatePreferences(c.Request.Context(), prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) putSettings(c *gin.Context) {
	var settings models.MapSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings payload"})
		return
	}
	if err := h.coord.UpdateMapSettings(c.Request.Context(), settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) putSources(c *gin.Context) {
	var req struct {
		UserReports   bool `json:"user_reports"`
		Wildfires     bool `json:"wildfires"`
		WeatherAlerts bool `json:"weather_alerts"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sources payload"})
		return
	}
	h.coord.SetSourceMask(filter.SourceMask{
		UserReports:   req.UserReports,
		Wildfires:     req.Wildfires,
		WeatherAlerts: req.WeatherAlerts,
	})
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) setHover(c *gin.Context) {
	var req struct {
		ID string `json:"id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hover payload"})
		return
	}
	h.coord.SetHovered(req.ID)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) setSelect(c *gin.Context) {
	var req struct {
		ID string `json:"id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid select payload"})
		return
	}
	h.coord.SetSelected(req.ID)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) setViewport(c *gin.Context) {
	var req struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Zoom      float64 `json:"zoom"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid viewport payload"})
		return
	}
	h.coord.SetViewport(req.Latitude, req.Longitude, req.Zoom)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) setWindow(c *gin.Context) {
	var req struct {
		Width  int `json:"width" binding:"required"`
		Height int `json:"height" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window payload"})
		return
	}
	h.coord.SetWindowSize(req.Width, req.Height)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) setVisibility(c *gin.Context) {
	var req struct {
		Visible bool `json:"visible"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visibility payload"})
		return
	}
	h.coord.SetVisibility(req.Visible)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) setEmergencyOverride(c *gin.Context) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid emergency payload"})
		return
	}
	switch app.OverrideMode(req.Mode) {
	case app.OverrideNone, app.OverrideOn, app.OverrideOff:
		h.coord.SetEmergencyOverride(app.OverrideMode(req.Mode))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid override mode"})
	}
}

func (h *Handler) openRoutes(c *gin.Context) {
	if err := h.coord.OpenRoutePanel(c.Request.Context()); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) selectZone(c *gin.Context) {
	var req struct {
		ZoneID string `json:"zone_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid zone payload"})
		return
	}
	if err := h.coord.SelectZone(req.ZoneID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) checkZoneSafety(c *gin.Context) {
	var req struct {
		ZoneID string `json:"zone_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid zone payload"})
		return
	}
	if err := h.coord.CheckZoneSafety(c.Request.Context(), req.ZoneID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) calculateRoutes(c *gin.Context) {
	var req struct {
		AvoidDisasters bool `json:"avoid_disasters"`
		Alternatives   bool `json:"alternatives"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid calculate payload"})
		return
	}
	if err := h.coord.CalculateRoutes(c.Request.Context(), req.AvoidDisasters, req.Alternatives); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) selectRoute(c *gin.Context) {
	var req struct {
		RouteID string `json:"route_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid route payload"})
		return
	}
	if err := h.coord.SelectRoute(req.RouteID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) closeRoutes(c *gin.Context) {
	h.coord.CloseRoutePanel()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) submitReport(c *gin.Context) {
	var draft backend.ReportDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report payload"})
		return
	}
	event, err := h.coord.SubmitReport(c.Request.Context(), draft)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (h *Handler) editReport(c *gin.Context) {
	var patch backend.ReportPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid patch payload"})
		return
	}
	event, err := h.coord.Admin().Edit(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		c.JSON(adminStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *Handler) deleteReport(c *gin.Context) {
	if err := h.coord.Admin().Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(adminStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) dismissAlert(c *gin.Context) {
	h.coord.DismissAlert(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) setMuted(c *gin.Context) {
	var req struct {
		Muted bool `json:"muted"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mute payload"})
		return
	}
	if err := h.coord.SetMuted(req.Muted); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func locationStatus(err error) int {
	switch {
	case errors.Is(err, location.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, location.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, location.ErrUnavailable), errors.Is(err, location.ErrUnsupported):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func adminStatus(err error) int {
	switch {
	case errors.Is(err, admin.ErrNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, admin.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, admin.ErrDeclined):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func classifyDenial(code string) error {
	switch code {
	case "permission_denied":
		return location.ErrPermissionDenied
	case "timeout":
		return location.ErrTimeout
	case "unsupported":
		return location.ErrUnsupported
	default:
		return location.ErrUnavailable
	}
}
