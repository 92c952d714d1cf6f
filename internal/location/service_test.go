package location

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mr1hm/crisiswatch/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeProvider scripts acquisition results and exposes the watch channel.
type fakeProvider struct {
	mu         sync.Mutex
	acquireFix Fix
	acquireErr error
	watchErr   error
	watch      chan Fix
	watchCount int
}

func (p *fakeProvider) Acquire(ctx context.Context, opts Options) (Fix, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.acquireErr != nil {
		return Fix{}, p.acquireErr
	}
	return p.acquireFix, nil
}

func (p *fakeProvider) Watch(ctx context.Context, opts Options) (<-chan Fix, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watchErr != nil {
		return nil, p.watchErr
	}
	p.watchCount++
	ch := make(chan Fix)
	p.watch = ch
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (p *fakeProvider) push(fix Fix) {
	p.mu.Lock()
	ch := p.watch
	p.mu.Unlock()
	ch <- fix
}

func collector() (func(models.UserLocation), func() []models.UserLocation) {
	var mu sync.Mutex
	var got []models.UserLocation
	record := func(loc models.UserLocation) {
		mu.Lock()
		got = append(got, loc)
		mu.Unlock()
	}
	snapshot := func() []models.UserLocation {
		mu.Lock()
		defer mu.Unlock()
		return append([]models.UserLocation(nil), got...)
	}
	return record, snapshot
}

func TestService_RequestPublishesAndWatches(t *testing.T) {
	provider := &fakeProvider{acquireFix: Fix{Latitude: 37.7, Longitude: -122.4}}
	record, snapshot := collector()

	svc := NewService(provider, nil, nil, record)
	defer svc.Stop()

	loc, err := svc.Request(context.Background())
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if loc.Source != models.LocationGeolocation {
		t.Errorf("source = %s, want geolocation", loc.Source)
	}
	if cur, ok := svc.Current(); !ok || cur.Latitude != 37.7 {
		t.Errorf("Current() = %+v, %v", cur, ok)
	}

	// A watcher fix replaces the canonical value.
	provider.push(Fix{Latitude: 37.71, Longitude: -122.41})

	deadline := time.Now().Add(time.Second)
	for {
		if locs := snapshot(); len(locs) >= 2 {
			if locs[1].Latitude != 37.71 {
				t.Errorf("watcher fix not published: %+v", locs[1])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for watcher fix")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestService_RequestClassifiedError(t *testing.T) {
	provider := &fakeProvider{acquireErr: ErrPermissionDenied}
	svc := NewService(provider, nil, nil, nil)

	_, err := svc.Request(context.Background())
	if err != ErrPermissionDenied {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
	if _, ok := svc.Current(); ok {
		t.Error("no canonical location should exist after a failed request")
	}
}

func TestService_RequestRejectsInvalidFix(t *testing.T) {
	provider := &fakeProvider{acquireFix: Fix{Latitude: 95, Longitude: 0}}
	svc := NewService(provider, nil, nil, nil)

	if _, err := svc.Request(context.Background()); err == nil {
		t.Error("expected error for out-of-range provider fix")
	}
}

func TestService_SetPickedReplacesAndStopsWatcher(t *testing.T) {
	provider := &fakeProvider{acquireFix: Fix{Latitude: 37.7, Longitude: -122.4}}
	record, snapshot := collector()

	svc := NewService(provider, nil, nil, record)
	defer svc.Stop()

	if _, err := svc.Request(context.Background()); err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	loc, err := svc.SetPicked(40.0, -105.0)
	if err != nil {
		t.Fatalf("SetPicked failed: %v", err)
	}
	if loc.Source != models.LocationPicked {
		t.Errorf("source = %s, want picked", loc.Source)
	}

	cur, _ := svc.Current()
	if cur.Latitude != 40.0 || cur.Source != models.LocationPicked {
		t.Errorf("canonical location = %+v, want the picked point", cur)
	}

	locs := snapshot()
	if len(locs) < 2 {
		t.Fatalf("expected at least 2 published snapshots, got %d", len(locs))
	}
}

func TestService_SetPickedValidates(t *testing.T) {
	svc := NewService(&fakeProvider{}, nil, nil, nil)
	if _, err := svc.SetPicked(0, 181); err == nil {
		t.Error("expected error for invalid picked coordinates")
	}
}

func TestService_StopIdempotent(t *testing.T) {
	provider := &fakeProvider{acquireFix: Fix{Latitude: 1, Longitude: 1}}
	svc := NewService(provider, nil, nil, nil)

	if _, err := svc.Request(context.Background()); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	svc.Stop()
	svc.Stop() // second stop must not panic or hang

	if provider.watchCount != 1 {
		t.Errorf("watchCount = %d, want 1", provider.watchCount)
	}
}
