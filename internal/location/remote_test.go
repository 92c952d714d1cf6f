package location

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRemoteProvider_AcquireResolvesOnReport(t *testing.T) {
	p := NewRemoteProvider()

	got := make(chan Fix, 1)
	go func() {
		fix, err := p.Acquire(context.Background(), Options{})
		if err != nil {
			t.Errorf("Acquire failed: %v", err)
		}
		got <- fix
	}()

	// Give Acquire a moment to register before the fix arrives.
	time.Sleep(10 * time.Millisecond)
	p.Report(37.7, -122.4, time.Now())

	select {
	case fix := <-got:
		if fix.Latitude != 37.7 || fix.Longitude != -122.4 {
			t.Errorf("fix = %+v", fix)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire did not resolve")
	}
}

func TestRemoteProvider_AcquireFailsOnDeny(t *testing.T) {
	p := NewRemoteProvider()

	errs := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background(), Options{})
		errs <- err
	}()

	time.Sleep(10 * time.Millisecond)
	p.Deny(ErrPermissionDenied)

	select {
	case err := <-errs:
		if !errors.Is(err, ErrPermissionDenied) {
			t.Errorf("err = %v, want ErrPermissionDenied", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire did not fail")
	}
}

func TestRemoteProvider_AcquireHonorsContext(t *testing.T) {
	p := NewRemoteProvider()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := p.Acquire(ctx, Options{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}

	// A late fix must not leak into the abandoned waiter.
	p.Report(1, 1, time.Now())
}

func TestRemoteProvider_WatchStreamsAndClosesOnCancel(t *testing.T) {
	p := NewRemoteProvider()
	ctx, cancel := context.WithCancel(context.Background())

	fixes, err := p.Watch(ctx, Options{})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	p.Report(10, 20, time.Now())
	select {
	case fix := <-fixes:
		if fix.Latitude != 10 || fix.Longitude != 20 {
			t.Errorf("fix = %+v", fix)
		}
	case <-time.After(time.Second):
		t.Fatal("watcher received no fix")
	}

	cancel()
	for {
		if _, ok := <-fixes; !ok {
			return
		}
	}
}
