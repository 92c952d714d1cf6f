package location

import (
	"context"
	"sync"
	"time"
)

// RemoteProvider is a Provider fed over the local UI surface: the browser
// shell owns the real geolocation API and pushes fixes (or classified
// failures) to the engine. Acquire resolves on the next pushed fix; Watch
// streams every subsequent one.
type RemoteProvider struct {
	mu       sync.Mutex
	pending  []chan acquireResult
	watchers map[uint64]chan Fix
	nextID   uint64
}

type acquireResult struct {
	fix Fix
	err error
}

func NewRemoteProvider() *RemoteProvider {
	return &RemoteProvider{watchers: map[uint64]chan Fix{}}
}

// Report delivers a fix from the shell. Pending Acquire calls resolve with it
// and active watchers receive it; a watcher that has fallen behind misses the
// fix rather than blocking the surface.
func (p *RemoteProvider) Report(lat, lon float64, at time.Time) {
	fix := Fix{Latitude: lat, Longitude: lon, AcquiredAt: at}

	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	for _, ch := range p.watchers {
		select {
		case ch <- fix:
		default:
		}
	}
	p.mu.Unlock()

	for _, ch := range pending {
		ch <- acquireResult{fix: fix}
	}
}

// Deny fails every pending Acquire with a classified error (the shell reports
// permission denials and hardware failures here). Watchers are unaffected.
func (p *RemoteProvider) Deny(err error) {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, ch := range pending {
		ch <- acquireResult{err: err}
	}
}

func (p *RemoteProvider) Acquire(ctx context.Context, opts Options) (Fix, error) {
	ch := make(chan acquireResult, 1)
	p.mu.Lock()
	p.pending = append(p.pending, ch)
	p.mu.Unlock()

	select {
	case res := <-ch:
		return res.fix, res.err
	case <-ctx.Done():
		p.drop(ch)
		return Fix{}, ctx.Err()
	}
}

func (p *RemoteProvider) Watch(ctx context.Context, opts Options) (<-chan Fix, error) {
	ch := make(chan Fix, 1)

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.watchers[id] = ch
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.watchers, id)
		p.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func (p *RemoteProvider) drop(ch chan acquireResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.pending {
		if c == ch {
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			return
		}
	}
}
