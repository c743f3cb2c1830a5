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

package topology

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"github.com/tochemey/grainmesh/discovery"
	gerrors "github.com/tochemey/grainmesh/errors"
	"github.com/tochemey/grainmesh/log"
)

const (
	// DefaultCoalesceWindow is the default window presence events are folded in
	DefaultCoalesceWindow = 100 * time.Millisecond
	// DefaultResyncGrace is the default grace given to a restarted watch
	DefaultResyncGrace = 5 * time.Second

	mailboxSize = 1024
)

// errStreamClosed is returned by Consume when the stream ends without a terminal event
var errStreamClosed = errors.New("presence events stream closed")

// entry is a known member along with the watch epoch it was last reported in
type entry struct {
	member *discovery.Member
	epoch  uint64
}

// resync marks the start of a new presence stream
type resync struct{}

// Assembler folds presence events into versioned topologies.
// The member map is owned by a single goroutine; events, restarts and
// timers all go through its mailbox.
type Assembler struct {
	store            *Store
	logger           log.Logger
	clock            clock.Clock
	window           time.Duration
	resyncGrace      time.Duration
	listeners        []Listener
	onAddressChanged func(discovery.AddressChanged)

	mailbox chan any
	stopCh  chan struct{}
	doneCh  chan struct{}
	started *atomic.Bool
	stopped *atomic.Bool

	// state owned by the run loop
	members     map[string]*entry
	version     uint64
	epoch       uint64
	reconciling bool
	seen        bool
	dirty       bool
	last        *Topology

	// processed counts the handled mailbox messages
	processed *atomic.Uint64
}

// NewAssembler creates an Assembler publishing into the given store
func NewAssembler(store *Store, opts ...Option) *Assembler {
	assembler := &Assembler{
		store:       store,
		logger:      log.DefaultLogger,
		clock:       clock.New(),
		window:      DefaultCoalesceWindow,
		resyncGrace: DefaultResyncGrace,
		mailbox:     make(chan any, mailboxSize),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		started:     atomic.NewBool(false),
		stopped:     atomic.NewBool(false),
		members:     make(map[string]*entry),
		processed:   atomic.NewUint64(0),
	}

	for _, opt := range opts {
		opt.Apply(assembler)
	}

	if assembler.window <= 0 {
		assembler.window = DefaultCoalesceWindow
	}

	if assembler.resyncGrace <= 0 {
		assembler.resyncGrace = DefaultResyncGrace
	}

	return assembler
}

// Start starts the fold loop
func (a *Assembler) Start() {
	if a.started.CompareAndSwap(false, true) {
		go a.run()
	}
}

// Stop stops the fold loop and waits for it to exit
func (a *Assembler) Stop() {
	if !a.stopped.CompareAndSwap(false, true) {
		return
	}

	close(a.stopCh)
	if a.started.Load() {
		<-a.doneCh
	}
}

// Consume folds the given presence stream until it ends.
// Members known from a previous stream are kept until the new stream reported its view.
// It returns the error of a terminal WatchFailed, or an error when the stream
// closed without one. It returns nil when ctx is done or the assembler stopped.
func (a *Assembler) Consume(ctx context.Context, events <-chan discovery.Event) error {
	if !a.send(ctx, resync{}) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.stopCh:
			return nil
		case event, ok := <-events:
			if !ok {
				return gerrors.NewErrWatchFailed(errStreamClosed)
			}

			switch x := event.(type) {
			case discovery.WatchFailed:
				return x.Err
			case discovery.AddressChanged:
				a.logger.Error(gerrors.NewErrCriticalAddressChange(x.Previous, x.Current))
				if a.onAddressChanged != nil {
					a.onAddressChanged(x)
				}
			default:
				if !a.send(ctx, event) {
					return nil
				}
			}
		}
	}
}

// Current returns the last published topology
func (a *Assembler) Current() *Topology {
	return a.store.Current()
}

func (a *Assembler) send(ctx context.Context, message any) bool {
	select {
	case a.mailbox <- message:
		return true
	case <-ctx.Done():
		return false
	case <-a.stopCh:
		return false
	}
}

func (a *Assembler) run() {
	defer close(a.doneCh)

	var (
		window *clock.Timer
		grace  *clock.Timer
	)

	// nil channels block forever until their timer is armed
	var windowC, graceC <-chan time.Time

	for {
		select {
		case <-a.stopCh:
			if window != nil {
				window.Stop()
			}
			if grace != nil {
				grace.Stop()
			}
			return

		case message := <-a.mailbox:
			switch x := message.(type) {
			case resync:
				a.startResync()
				if grace != nil {
					grace.Stop()
					graceC = nil
				}
				if a.reconciling {
					grace = a.clock.Timer(a.resyncGrace)
					graceC = grace.C
				}
			case discovery.Event:
				a.fold(x)
				if a.dirty && windowC == nil {
					window = a.clock.Timer(a.window)
					windowC = window.C
				}
			}
			a.processed.Inc()

		case <-windowC:
			windowC = nil
			if a.reconciling && a.seen {
				a.reconcile()
				grace.Stop()
				graceC = nil
			}
			a.flush()

		case <-graceC:
			graceC = nil
			if a.reconciling {
				a.logger.Warn("restarted presence stream stayed silent, dropping the members it did not report")
				a.reconcile()
				a.flush()
			}
		}
	}
}

// fold applies one presence event. Last write wins by arrival order.
func (a *Assembler) fold(event discovery.Event) {
	switch x := event.(type) {
	case discovery.Joined:
		a.upsert(x.Member)
	case discovery.Updated:
		a.upsert(x.Member)
	case discovery.Left:
		if _, ok := a.members[x.MemberID]; ok {
			delete(a.members, x.MemberID)
			a.dirty = true
		}
		a.seen = true
	}
}

func (a *Assembler) upsert(member *discovery.Member) {
	if member == nil || member.ID == "" {
		return
	}

	a.members[member.ID] = &entry{member: member.Clone(), epoch: a.epoch}
	a.seen = true
	a.dirty = true
}

func (a *Assembler) startResync() {
	a.epoch++
	a.seen = false
	a.reconciling = len(a.members) > 0
	if a.reconciling {
		a.logger.Infof("presence stream restarted, reconciling %d known members", len(a.members))
	}
}

// reconcile drops the members the current stream did not report
func (a *Assembler) reconcile() {
	for id, known := range a.members {
		if known.epoch < a.epoch {
			a.logger.Debugf("member=(%s) not reported after stream restart", id)
			delete(a.members, id)
			a.dirty = true
		}
	}
	a.reconciling = false
}

// flush publishes the folded member map when it differs from the last publication
func (a *Assembler) flush() {
	if !a.dirty {
		return
	}
	a.dirty = false

	members := make([]*discovery.Member, 0, len(a.members))
	for _, known := range a.members {
		members = append(members, known.member)
	}

	next := New(a.version+1, members)
	if a.last != nil && a.last.SameMembers(next) {
		return
	}

	a.version = next.Version
	a.last = next
	if !a.store.Apply(next) {
		return
	}

	a.logger.Debugf("topology version=(%d) published with %d candidates out of %d members",
		next.Version, len(next.Members), len(next.All))

	for _, listener := range a.listeners {
		listener(next)
	}
}
