// Package location owns the canonical user location. One value is
// authoritative at a time; it is replaced wholesale by the watcher or the
// map picker, never mutated.
package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/crisiswatch/internal/geo"
	"github.com/mr1hm/crisiswatch/internal/models"
)

// Classified acquisition failures.
var (
	ErrPermissionDenied = errors.New("location: permission denied")
	ErrUnavailable      = errors.New("location: position unavailable")
	ErrTimeout          = errors.New("location: acquisition timed out")
	ErrUnsupported      = errors.New("location: not supported on this device")
)

const (
	// AcquireTimeout bounds the initial fix.
	AcquireTimeout = 30 * time.Second
	// WatchMaximumAge is how stale a cached provider fix may be.
	WatchMaximumAge = 60 * time.Second
)

// Fix is a raw position from the provider.
type Fix struct {
	Latitude   float64
	Longitude  float64
	AcquiredAt time.Time
}

// Options forwards acquisition tuning to the provider. High accuracy stays
// off; it trades battery for precision the proximity radius doesn't need.
type Options struct {
	Timeout      time.Duration
	MaximumAge   time.Duration
	HighAccuracy bool
}

// Provider abstracts the platform geolocation source. Implementations map
// their native failures onto the classified errors above.
type Provider interface {
	// Acquire returns a single fix, honoring opts.Timeout.
	Acquire(ctx context.Context, opts Options) (Fix, error)
	// Watch streams fixes until ctx is done. The returned channel is closed
	// by the provider on teardown.
	Watch(ctx context.Context, opts Options) (<-chan Fix, error)
}

// Service publishes the canonical location as immutable snapshots.
type Service struct {
	provider Provider
	clock    clockwork.Clock
	logger   *slog.Logger
	onChange func(models.UserLocation)

	mu        sync.Mutex
	current   *models.UserLocation
	watchStop context.CancelFunc
	watchDone chan struct{}
}

// NewService wires a provider to a change callback. onChange is called with a
// copy on every replacement, never concurrently with itself.
func NewService(provider Provider, clock clockwork.Clock, logger *slog.Logger, onChange func(models.UserLocation)) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		clock:    clock,
		logger:   logger,
		onChange: onChange,
	}
}

// Request performs the single permission prompt: one fix, then a background
// watcher. Returns the classified error when acquisition fails.
func (s *Service) Request(ctx context.Context) (models.UserLocation, error) {
	opts := Options{Timeout: AcquireTimeout, MaximumAge: WatchMaximumAge}

	acquireCtx, cancel := context.WithTimeout(ctx, AcquireTimeout)
	defer cancel()

	fix, err := s.provider.Acquire(acquireCtx, opts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.UserLocation{}, ErrTimeout
		}
		return models.UserLocation{}, err
	}
	if !geo.IsValidCoordinates(fix.Latitude, fix.Longitude) {
		return models.UserLocation{}, fmt.Errorf("location: provider fix: %w", geo.ErrInvalidCoordinates)
	}

	loc := s.fromFix(fix)
	s.replace(loc)
	s.startWatcher(opts)
	return loc, nil
}

// Stop releases the watcher. The canonical location is retained.
func (s *Service) Stop() {
	s.mu.Lock()
	stop, done := s.watchStop, s.watchDone
	s.watchStop, s.watchDone = nil, nil
	s.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
}

// SetPicked replaces the canonical location with a user-chosen point and
// releases the watcher so background fixes cannot override the pick.
func (s *Service) SetPicked(lat, lon float64) (models.UserLocation, error) {
	if !geo.IsValidCoordinates(lat, lon) {
		return models.UserLocation{}, geo.ErrInvalidCoordinates
	}
	s.Stop()

	loc := models.UserLocation{
		Latitude:   lat,
		Longitude:  lon,
		AcquiredAt: s.clock.Now(),
		Source:     models.LocationPicked,
	}
	s.replace(loc)
	return loc, nil
}

// Current returns the canonical location, if any.
func (s *Service) Current() (models.UserLocation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return models.UserLocation{}, false
	}
	return *s.current, true
}

func (s *Service) fromFix(fix Fix) models.UserLocation {
	at := fix.AcquiredAt
	if at.IsZero() {
		at = s.clock.Now()
	}
	return models.UserLocation{
		Latitude:   fix.Latitude,
		Longitude:  fix.Longitude,
		AcquiredAt: at,
		Source:     models.LocationGeolocation,
	}
}

func (s *Service) replace(loc models.UserLocation) {
	s.mu.Lock()
	s.current = &loc
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(loc)
	}
}

func (s *Service) startWatcher(opts Options) {
	s.Stop() // at most one watcher

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	fixes, err := s.provider.Watch(ctx, opts)
	if err != nil {
		cancel()
		close(done)
		s.logger.Warn("location watcher unavailable", "error", err)
		return
	}

	s.mu.Lock()
	s.watchStop = cancel
	s.watchDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		for fix := range fixes {
			if !geo.IsValidCoordinates(fix.Latitude, fix.Longitude) {
				s.logger.Debug("dropping invalid watcher fix", "lat", fix.Latitude, "lon", fix.Longitude)
				continue
			}
			s.replace(s.fromFix(fix))
		}
	}()
}
