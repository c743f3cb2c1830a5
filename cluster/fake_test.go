// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package cluster

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/tochemey/grainmesh/discovery"
	gerrors "github.com/tochemey/grainmesh/errors"
)

// fakeProvider is a discovery provider driven by the tests.
// Every Watch call hands a new stream to the test through streams.
type fakeProvider struct {
	mu            sync.Mutex
	registrations []discovery.Registration
	statuses      []any

	registerErr   error
	deregisterErr error
	// registering, when set, is signalled on Register which then blocks
	// until registerRelease is closed or, unless ignoreCancel, ctx ends
	registering     chan struct{}
	registerRelease chan struct{}
	ignoreCancel    bool

	statusErr     error
	watchFailures *atomic.Int32

	watches      *atomic.Int32
	deregistered *atomic.Int32
	closed       *atomic.Int32
	streams      chan chan<- discovery.Event
}

var _ discovery.Provider = (*fakeProvider)(nil)

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		watchFailures: atomic.NewInt32(0),
		watches:       atomic.NewInt32(0),
		deregistered:  atomic.NewInt32(0),
		closed:        atomic.NewInt32(0),
		streams:       make(chan chan<- discovery.Event, 8),
	}
}

func (p *fakeProvider) ID() string {
	return "fake"
}

func (p *fakeProvider) Register(ctx context.Context, registration discovery.Registration) error {
	if p.registering != nil {
		p.registering <- struct{}{}
		done := ctx.Done()
		if p.ignoreCancel {
			done = nil
		}
		select {
		case <-done:
			return gerrors.NewRegistrationError("fake", ctx.Err())
		case <-p.registerRelease:
		}
	}

	if p.registerErr != nil {
		return p.registerErr
	}

	p.mu.Lock()
	p.registrations = append(p.registrations, registration)
	p.mu.Unlock()
	return nil
}

func (p *fakeProvider) Deregister(context.Context) error {
	p.deregistered.Inc()
	return p.deregisterErr
}

func (p *fakeProvider) UpdateStatus(_ context.Context, statusValue any) error {
	if p.statusErr != nil {
		return p.statusErr
	}

	p.mu.Lock()
	p.statuses = append(p.statuses, statusValue)
	p.mu.Unlock()
	return nil
}

func (p *fakeProvider) Watch(ctx context.Context, _ string) (<-chan discovery.Event, error) {
	p.watches.Inc()
	if p.watchFailures.Load() > 0 {
		p.watchFailures.Dec()
		return nil, fmt.Errorf("registry unreachable")
	}

	in := make(chan discovery.Event, 16)
	out := make(chan discovery.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-in:
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}

				if _, ok := event.(discovery.WatchFailed); ok {
					return
				}
			}
		}
	}()

	p.streams <- in
	return out, nil
}

func (p *fakeProvider) Close() error {
	p.closed.Inc()
	return nil
}

func (p *fakeProvider) Registrations() []discovery.Registration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]discovery.Registration(nil), p.registrations...)
}

func (p *fakeProvider) Statuses() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.statuses...)
}

// nextStream returns the stream of the next Watch call
func (p *fakeProvider) nextStream(t *testing.T) chan<- discovery.Event {
	t.Helper()
	select {
	case stream := <-p.streams:
		return stream
	case <-time.After(5 * time.Second):
		require.FailNow(t, "watch was not started")
		return nil
	}
}

// fakeTransport answers every delivery with the owner ID.
// The first stale deliveries fail with a stale owner error.
type fakeTransport struct {
	mu     sync.Mutex
	owners []string
	stale  int
}

var _ Transport = (*fakeTransport)(nil)

func (x *fakeTransport) Send(ctx context.Context, owner *discovery.Member, identity, kind string, message any) error {
	_, err := x.Request(ctx, owner, identity, kind, message)
	return err
}

func (x *fakeTransport) Request(_ context.Context, owner *discovery.Member, _, _ string, _ any) (any, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.owners = append(x.owners, owner.ID)
	if x.stale > 0 {
		x.stale--
		return nil, gerrors.NewErrStaleOwner(owner.ID, nil)
	}
	return owner.ID, nil
}

func (x *fakeTransport) Owners() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]string(nil), x.owners...)
}
