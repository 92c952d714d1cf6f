package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/mr1hm/crisiswatch/internal/models"
)

// reportDTO is the wire shape of a user report. The serializer for the
// user_report variant lives here; wildfire and weather serializers live in
// publicdata.go.
type reportDTO struct {
	ID              string   `json:"id"`
	UserID          string   `json:"user_id,omitempty"`
	DisplayName     string   `json:"display_name"`
	DisasterType    string   `json:"disaster_type"`
	Severity        string   `json:"severity"`
	Description     string   `json:"description"`
	ImageURL        string   `json:"image_url,omitempty"`
	Latitude        float64  `json:"latitude"`
	Longitude       float64  `json:"longitude"`
	Timestamp       string   `json:"timestamp"`
	AIStatus        string   `json:"ai_analysis_status,omitempty"`
	AIReasoning     string   `json:"ai_reasoning,omitempty"`
	ConfidenceLevel string   `json:"confidence_level,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	UserCredibility *float64 `json:"user_credibility,omitempty"`
	Opacity         *float64 `json:"opacity,omitempty"`
}

func (d *reportDTO) toEvent() models.Event {
	ts, err := time.Parse(time.RFC3339, d.Timestamp)
	if err != nil {
		ts = time.Time{}
	}
	status := models.AIStatus(d.AIStatus)
	if status == "" {
		status = models.AIStatusNotApplicable
	}
	return models.Event{
		ID:         d.ID,
		Source:     models.SourceUserReport,
		Latitude:   d.Latitude,
		Longitude:  d.Longitude,
		Timestamp:  ts,
		Severity:   models.ParseSeverity(d.Severity),
		Confidence: d.ConfidenceScore,
		Opacity:    d.Opacity,
		Report: &models.UserReport{
			UserID:          d.UserID,
			DisplayName:     d.DisplayName,
			DisasterType:    d.DisasterType,
			Description:     d.Description,
			ImageURL:        d.ImageURL,
			AIStatus:        status,
			AIReasoning:     d.AIReasoning,
			ConfidenceLevel: d.ConfidenceLevel,
			ConfidenceScore: d.ConfidenceScore,
			UserCredibility: d.UserCredibility,
		},
	}
}

// ReportDraft is a report submission, id-less by definition.
type ReportDraft struct {
	DisplayName  string  `json:"display_name"`
	DisasterType string  `json:"disaster_type"`
	Severity     string  `json:"severity"`
	Description  string  `json:"description"`
	ImageURL     string  `json:"image_url,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	// RecaptchaToken authorizes anonymous submission when no bearer exists.
	RecaptchaToken string `json:"recaptcha_token,omitempty"`
}

// ReportPatch is a partial edit. Nil fields are omitted from the request.
type ReportPatch struct {
	DisasterType *string  `json:"disaster_type,omitempty"`
	Severity     *string  `json:"severity,omitempty"`
	Description  *string  `json:"description,omitempty"`
	ImageURL     *string  `json:"image_url,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	// AIReasoning is only sent when the text actually changed; the workflow
	// layer enforces that.
	AIReasoning *string `json:"ai_reasoning,omitempty"`
}

// SubmitResult is the POST /api/reports response.
type SubmitResult struct {
	ID         string       `json:"id"`
	Event      models.Event `json:"-"`
	Confidence *float64     `json:"confidence,omitempty"`
}

// ListReports fetches all user reports.
func (c *Client) ListReports(ctx context.Context) ([]models.Event, error) {
	var dtos []reportDTO
	if err := c.do(ctx, http.MethodGet, "/api/reports", nil, nil, true, &dtos); err != nil {
		return nil, err
	}
	events := make([]models.Event, 0, len(dtos))
	for i := range dtos {
		events = append(events, dtos[i].toEvent())
	}
	return events, nil
}

// GetReport fetches one report by id.
func (c *Client) GetReport(ctx context.Context, id string) (models.Event, error) {
	var dto reportDTO
	if err := c.do(ctx, http.MethodGet, "/api/reports/"+id, nil, nil, true, &dto); err != nil {
		return models.Event{}, err
	}
	return dto.toEvent(), nil
}

// SubmitReport creates a report. Uses bearer auth when available; anonymous
// submissions ride on the draft's recaptcha token.
func (c *Client) SubmitReport(ctx context.Context, draft ReportDraft) (SubmitResult, error) {
	var resp struct {
		ID         string    `json:"id"`
		Data       reportDTO `json:"data"`
		Confidence *float64  `json:"confidence,omitempty"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/reports", nil, draft, true, &resp); err != nil {
		return SubmitResult{}, err
	}
	if resp.Data.ID == "" {
		resp.Data.ID = resp.ID
	}
	return SubmitResult{
		ID:         resp.ID,
		Event:      resp.Data.toEvent(),
		Confidence: resp.Confidence,
	}, nil
}

// UpdateReport edits a report and returns the updated event.
func (c *Client) UpdateReport(ctx context.Context, id string, patch ReportPatch) (models.Event, error) {
	var resp struct {
		Data reportDTO `json:"data"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/reports/"+id, nil, patch, true, &resp); err != nil {
		return models.Event{}, err
	}
	if resp.Data.ID == "" {
		resp.Data.ID = id
	}
	return resp.Data.toEvent(), nil
}

// DeleteReport removes a report.
func (c *Client) DeleteReport(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/reports/"+id, nil, nil, true, nil)
}

// EnhanceAI asks the backend to (re)run AI analysis on a report.
func (c *Client) EnhanceAI(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/reports/"+id+"/enhance-ai", nil, nil, true, nil)
}
