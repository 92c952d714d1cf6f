// Package admin guards report edits and deletions: allowed for the admin
// claim or the report's owner, and deletion only past an explicit
// confirmation.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mr1hm/crisiswatch/internal/auth"
	"github.com/mr1hm/crisiswatch/internal/backend"
	"github.com/mr1hm/crisiswatch/internal/models"
)

var (
	// ErrNotAllowed means the caller is neither an admin nor the owner.
	ErrNotAllowed = errors.New("admin: not allowed")
	// ErrNotFound means the report is not in the repository.
	ErrNotFound = errors.New("admin: report not found")
	// ErrDeclined means the user did not confirm the deletion.
	ErrDeclined = errors.New("admin: deletion not confirmed")
)

// API is the backend slice the operations consume.
type API interface {
	UpdateReport(ctx context.Context, id string, patch backend.ReportPatch) (models.Event, error)
	DeleteReport(ctx context.Context, id string) error
}

// Repository receives the optimistic mutations.
type Repository interface {
	Snapshot() models.EventSet
	Update(id string, mutate func(*models.Event)) bool
	Remove(id string) bool
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer func(e models.Event) bool

// Ops performs gated report mutations.
type Ops struct {
	api     API
	repo    Repository
	tokens  auth.TokenProvider
	confirm Confirmer
	logger  *slog.Logger
}

func NewOps(api API, repo Repository, tokens auth.TokenProvider, confirm Confirmer, logger *slog.Logger) *Ops {
	if tokens == nil {
		tokens = auth.Guest
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ops{api: api, repo: repo, tokens: tokens, confirm: confirm, logger: logger}
}

// allowed implements the gate: admin claim OR ownership. Legacy reports
// without an owner are admin-only.
func (o *Ops) allowed(e models.Event) bool {
	id := o.tokens.Identity()
	if id == nil || id.UID == "" {
		return false
	}
	if id.Admin {
		return true
	}
	return e.Report != nil && e.Report.UserID != "" && e.Report.UserID == id.UID
}

func (o *Ops) lookup(id string) (models.Event, error) {
	set := o.repo.Snapshot()
	e, ok := set.ByID(id)
	if !ok {
		return models.Event{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// Edit updates a report and applies the result optimistically. An
// ai_reasoning override rides along only when the text actually changed.
func (o *Ops) Edit(ctx context.Context, id string, patch backend.ReportPatch) (models.Event, error) {
	current, err := o.lookup(id)
	if err != nil {
		return models.Event{}, err
	}
	if !o.allowed(current) {
		return models.Event{}, fmt.Errorf("%w: edit %s", ErrNotAllowed, id)
	}

	if patch.AIReasoning != nil && current.Report != nil && *patch.AIReasoning == current.Report.AIReasoning {
		patch.AIReasoning = nil
	}

	updated, err := o.api.UpdateReport(ctx, id, patch)
	if err != nil {
		return models.Event{}, fmt.Errorf("edit report %s: %w", id, err)
	}

	if !o.repo.Update(id, func(e *models.Event) { *e = updated }) {
		o.logger.Debug("edited report vanished from the set", "report_id", id)
	}
	return updated, nil
}

// Delete removes a report after confirmation and drops it from the set.
func (o *Ops) Delete(ctx context.Context, id string) error {
	current, err := o.lookup(id)
	if err != nil {
		return err
	}
	if !o.allowed(current) {
		return fmt.Errorf("%w: delete %s", ErrNotAllowed, id)
	}
	if o.confirm == nil || !o.confirm(current) {
		return ErrDeclined
	}

	if err := o.api.DeleteReport(ctx, id); err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	o.repo.Remove(id)
	return nil
}
