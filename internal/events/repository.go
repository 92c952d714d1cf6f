// Package events holds the unified event set: user reports plus the public
// wildfire and weather-alert streams. The set is replaced in bulk by refresh
// and amended in place by optimistic mutations.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/mr1hm/crisiswatch/internal/backend"
	"github.com/mr1hm/crisiswatch/internal/models"
)

const (
	// RefreshInterval is the wall-clock cadence of bulk refresh.
	RefreshInterval = 5 * time.Minute
	// PublicDataWindowDays is the fixed fetch window for the public bundle.
	PublicDataWindowDays = 3
)

// ErrAllSourcesFailed is returned when both independent fetches fail and the
// set would otherwise be empty.
var ErrAllSourcesFailed = errors.New("events: all sources failed")

// PartialError reports that exactly one of the two independent fetches
// failed. The set still holds whatever succeeded; callers surface this as a
// non-modal notice, not a failure.
type PartialError struct {
	ReportsErr error
	PublicErr  error
}

func (e *PartialError) Error() string {
	if e.ReportsErr != nil {
		return fmt.Sprintf("events: user reports unavailable: %v", e.ReportsErr)
	}
	return fmt.Sprintf("events: public data unavailable: %v", e.PublicErr)
}

// Notice is the user-facing form of the failure, suitable for the non-modal
// degraded-data banner.
func (e *PartialError) Notice() string {
	if e.ReportsErr != nil {
		return "Community reports are temporarily unavailable."
	}
	return "Wildfire and weather data are temporarily unavailable."
}

// Fetcher is the backend slice the repository consumes.
type Fetcher interface {
	ListReports(ctx context.Context) ([]models.Event, error)
	FetchPublicData(ctx context.Context, days int, minSeverity models.Severity) (backend.PublicData, error)
}

// Repository fetches and holds the unified EventSet.
type Repository struct {
	fetcher     Fetcher
	clock       clockwork.Clock
	logger      *slog.Logger
	minSeverity models.Severity
	interval    time.Duration
	onChange    func(models.EventSet)

	mu  sync.RWMutex
	set models.EventSet

	refreshing atomic.Bool

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewRepository creates a repository. onChange receives a snapshot copy after
// every change; pass nil to skip notifications.
func NewRepository(fetcher Fetcher, clock clockwork.Clock, logger *slog.Logger, minSeverity models.Severity, onChange func(models.EventSet)) *Repository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if minSeverity == "" {
		minSeverity = models.SeverityLow
	}
	return &Repository{
		fetcher:     fetcher,
		clock:       clock,
		logger:      logger,
		minSeverity: minSeverity,
		interval:    RefreshInterval,
		onChange:    onChange,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// SetRefreshInterval overrides the default auto-refresh cadence. Must be
// called before Start.
func (r *Repository) SetRefreshInterval(d time.Duration) {
	if d > 0 {
		r.interval = d
	}
}

// RefreshAll fetches both streams concurrently and replaces the set in bulk.
// The two fetches fail independently: one failure yields a *PartialError and
// keeps the successful stream; two failures yield ErrAllSourcesFailed.
// Concurrent calls coalesce: a refresh already in flight makes this a no-op.
func (r *Repository) RefreshAll(ctx context.Context) error {
	if !r.refreshing.CompareAndSwap(false, true) {
		return nil
	}
	defer r.refreshing.Store(false)

	var (
		reports []models.Event
		public  backend.PublicData

		reportsErr error
		publicErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reports, reportsErr = r.fetcher.ListReports(gctx)
		return nil // failures are collected, not propagated
	})
	g.Go(func() error {
		public, publicErr = r.fetcher.FetchPublicData(gctx, PublicDataWindowDays, r.minSeverity)
		return nil
	})
	_ = g.Wait()

	if reportsErr != nil && publicErr != nil {
		return fmt.Errorf("%w: reports: %v; public: %v", ErrAllSourcesFailed, reportsErr, publicErr)
	}

	merged := make([]models.Event, 0, len(reports)+len(public.Wildfires)+len(public.WeatherAlerts))
	merged = r.appendValid(merged, reports)
	merged = r.appendValid(merged, public.Wildfires)
	merged = r.appendValid(merged, public.WeatherAlerts)

	var partial *PartialError
	if reportsErr != nil {
		partial = &PartialError{ReportsErr: reportsErr}
	} else if publicErr != nil {
		partial = &PartialError{PublicErr: publicErr}
	}

	// A full success clears any earlier degraded-data notice.
	set := models.EventSet{Events: merged, FetchedAt: r.clock.Now()}
	if partial != nil {
		set.Notice = partial.Notice()
	}
	r.replace(set)

	if partial != nil {
		return partial
	}
	return nil
}

// appendValid deduplicates by id and drops events violating the invariants.
func (r *Repository) appendValid(dst []models.Event, src []models.Event) []models.Event {
	for _, e := range src {
		if err := e.Validate(); err != nil {
			r.logger.Debug("dropping invalid event", "error", err)
			continue
		}
		dup := false
		for i := range dst {
			if dst[i].ID == e.ID {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, e)
		}
	}
	return dst
}

// Start runs the auto refresh until Stop or ctx cancellation. Ticks
// never overlap: a tick arriving mid-refresh is dropped by RefreshAll.
func (r *Repository) Start(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(r.done)

		ticker := r.clock.NewTicker(r.interval)
		defer ticker.Stop()

		r.refresh(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.Chan():
				r.refresh(ctx)
			}
		}
	}()
}

func (r *Repository) refresh(ctx context.Context) {
	err := r.RefreshAll(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
	case errors.As(err, new(*PartialError)):
		r.logger.Warn("partial event refresh", "error", err)
	default:
		r.logger.Error("event refresh failed", "error", err)
	}
}

// Stop halts auto refresh and waits for the loop to exit. Safe to call more
// than once, and before Start (the loop exits on its first select).
func (r *Repository) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	if r.started.Load() {
		<-r.done
	}
}

// Snapshot returns a copy of the current set.
func (r *Repository) Snapshot() models.EventSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := models.EventSet{
		Events:    append([]models.Event(nil), r.set.Events...),
		FetchedAt: r.set.FetchedAt,
		Notice:    r.set.Notice,
	}
	return out
}

// Insert applies an optimistic insert; an event with the same id is replaced.
func (r *Repository) Insert(e models.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	replaced := false
	for i := range r.set.Events {
		if r.set.Events[i].ID == e.ID {
			r.set.Events[i] = e
			replaced = true
			break
		}
	}
	if !replaced {
		r.set.Events = append(r.set.Events, e)
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snap)
	return nil
}

// Update applies an optimistic in-place mutation to the event with the given
// id. Returns false when the id is absent.
func (r *Repository) Update(id string, mutate func(*models.Event)) bool {
	r.mu.Lock()
	found := false
	for i := range r.set.Events {
		if r.set.Events[i].ID == id {
			mutate(&r.set.Events[i])
			found = true
			break
		}
	}
	var snap models.EventSet
	if found {
		snap = r.snapshotLocked()
	}
	r.mu.Unlock()

	if found {
		r.notify(snap)
	}
	return found
}

// Remove applies an optimistic delete. Returns false when the id is absent.
func (r *Repository) Remove(id string) bool {
	r.mu.Lock()
	found := false
	for i := range r.set.Events {
		if r.set.Events[i].ID == id {
			r.set.Events = append(r.set.Events[:i], r.set.Events[i+1:]...)
			found = true
			break
		}
	}
	var snap models.EventSet
	if found {
		snap = r.snapshotLocked()
	}
	r.mu.Unlock()

	if found {
		r.notify(snap)
	}
	return found
}

func (r *Repository) replace(set models.EventSet) {
	r.mu.Lock()
	r.set = set
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.notify(snap)
}

func (r *Repository) snapshotLocked() models.EventSet {
	return models.EventSet{
		Events:    append([]models.Event(nil), r.set.Events...),
		FetchedAt: r.set.FetchedAt,
		Notice:    r.set.Notice,
	}
}

func (r *Repository) notify(snap models.EventSet) {
	if r.onChange != nil {
		r.onChange(snap)
	}
}
