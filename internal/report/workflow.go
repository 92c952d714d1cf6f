// Package report handles report submission and the AI-enhancement probe. A
// submitted report lands in the event repository immediately; when the
// backend marks it pending, a background probe polls the detail endpoint
// until enhancement finishes or the attempt budget runs out.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/crisiswatch/internal/backend"
	"github.com/mr1hm/crisiswatch/internal/models"
)

const (
	// AIProbeInterval is the detail-poll cadence while enhancement runs.
	AIProbeInterval = 3 * time.Second
	// AIProbeMaxAttempts bounds the probe; enhancement slower than this is
	// picked up by the next bulk refresh instead.
	AIProbeMaxAttempts = 15
)

// API is the backend slice the workflow consumes.
type API interface {
	SubmitReport(ctx context.Context, draft backend.ReportDraft) (backend.SubmitResult, error)
	GetReport(ctx context.Context, id string) (models.Event, error)
}

// Repository receives the optimistic mutations.
type Repository interface {
	Insert(e models.Event) error
	Update(id string, mutate func(*models.Event)) bool
}

// Workflow submits reports and runs AI probes. Probes never block the caller
// and swallow their own errors.
type Workflow struct {
	api    API
	repo   Repository
	clock  clockwork.Clock
	logger *slog.Logger

	mu     sync.Mutex
	probes map[string]*probeHandle
	closed bool
	wg     sync.WaitGroup
}

type probeHandle struct {
	cancel context.CancelFunc
}

func NewWorkflow(api API, repo Repository, clock clockwork.Clock, logger *slog.Logger) *Workflow {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		api:    api,
		repo:   repo,
		clock:  clock,
		logger: logger,
		probes: map[string]*probeHandle{},
	}
}

// Submit sends the draft and inserts the returned report optimistically. A
// pending AI status starts the background probe. Submission failures surface;
// probe failures never do.
func (w *Workflow) Submit(ctx context.Context, draft backend.ReportDraft) (models.Event, error) {
	res, err := w.api.SubmitReport(ctx, draft)
	if err != nil {
		return models.Event{}, fmt.Errorf("submit report: %w", err)
	}

	ev := res.Event
	if err := w.repo.Insert(ev); err != nil {
		w.logger.Warn("optimistic insert of submitted report failed", "report_id", ev.ID, "error", err)
	}

	if ev.Report != nil && !ev.Report.AIStatus.Terminal() {
		w.startProbe(ev.ID)
	}
	return ev, nil
}

// startProbe launches (or replaces) the enhancement probe for a report.
func (w *Workflow) startProbe(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if prev, ok := w.probes[id]; ok {
		prev.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &probeHandle{cancel: cancel}
	w.probes[id] = h

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.finishProbe(id, h)
		w.probe(ctx, id)
	}()
}

func (w *Workflow) finishProbe(id string, h *probeHandle) {
	h.cancel()
	w.mu.Lock()
	if w.probes[id] == h {
		delete(w.probes, id)
	}
	w.mu.Unlock()
}

func (w *Workflow) probe(ctx context.Context, id string) {
	for attempt := 1; attempt <= AIProbeMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-w.clock.After(AIProbeInterval):
		}

		ev, err := w.api.GetReport(ctx, id)
		if err != nil {
			w.logger.Debug("ai probe fetch failed", "report_id", id, "attempt", attempt, "error", err)
			continue
		}
		if ev.Report == nil {
			return
		}

		switch ev.Report.AIStatus {
		case models.AIStatusCompleted, models.AIStatusFailed:
			w.upsert(ev)
			return
		case models.AIStatusNotApplicable:
			return
		default:
			// pending or processing, keep polling
		}
	}
	w.logger.Debug("ai probe gave up", "report_id", id, "attempts", AIProbeMaxAttempts)
}

// upsert folds the enhanced report back into the repository.
func (w *Workflow) upsert(ev models.Event) {
	updated := w.repo.Update(ev.ID, func(e *models.Event) {
		*e = ev
	})
	if !updated {
		if err := w.repo.Insert(ev); err != nil {
			w.logger.Debug("ai probe upsert failed", "report_id", ev.ID, "error", err)
		}
	}
}

// Close cancels all probes and waits for them to exit.
func (w *Workflow) Close() {
	w.mu.Lock()
	w.closed = true
	for _, h := range w.probes {
		h.cancel()
	}
	w.mu.Unlock()
	w.wg.Wait()
}
