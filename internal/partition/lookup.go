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

package partition

import (
	"context"
	"errors"
	"slices"
	"strings"

	goset "github.com/deckarep/golang-set/v2"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"

	"github.com/tochemey/grainmesh/discovery"
	gerrors "github.com/tochemey/grainmesh/errors"
	"github.com/tochemey/grainmesh/internal/metric"
	"github.com/tochemey/grainmesh/internal/placement"
	"github.com/tochemey/grainmesh/internal/topology"
	"github.com/tochemey/grainmesh/log"
)

const mailboxSize = 1024

type result struct {
	owner *discovery.Member
	err   error
}

type getRequest struct {
	ctx      context.Context
	identity string
	kind     string
	reply    chan result
}

type cancelRequest struct {
	request *getRequest
}

type topologyUpdate struct {
	topology *topology.Topology
}

type invalidateRequest struct {
	identity string
	kind     string
	ownerID  string
}

type leaveRequest struct {
	memberID string
	done     chan struct{}
}

type snapshotRequest struct {
	reply chan []Activation
}

// Lookup answers which member owns an identity.
// The activation cache is owned by a single goroutine and every request
// goes through its mailbox.
type Lookup struct {
	strategy placement.Strategy
	logger   log.Logger
	metric   *metric.ClusterMetric

	mailbox chan any
	stopCh  chan struct{}
	doneCh  chan struct{}
	started *atomic.Bool
	stopped *atomic.Bool

	invalidations *atomic.Uint64
	size          *atomic.Int64

	// state owned by the run loop
	topology    *topology.Topology
	generation  uint64
	activations map[activationKey]*Activation
	excluded    goset.Set[string]
	waiters     []*getRequest
}

// NewLookup creates a Lookup placing identities with the given strategy
func NewLookup(strategy placement.Strategy, opts ...Option) *Lookup {
	if strategy == nil {
		strategy = placement.NewRing(nil, placement.DefaultReplicaPoints)
	}

	lookup := &Lookup{
		strategy:      strategy,
		logger:        log.DefaultLogger,
		mailbox:       make(chan any, mailboxSize),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		started:       atomic.NewBool(false),
		stopped:       atomic.NewBool(false),
		invalidations: atomic.NewUint64(0),
		size:          atomic.NewInt64(0),
		activations:   make(map[activationKey]*Activation),
		excluded:      goset.NewThreadUnsafeSet[string](),
	}

	for _, opt := range opts {
		opt.Apply(lookup)
	}
	return lookup
}

// Start starts the lookup loop
func (l *Lookup) Start() {
	if l.started.CompareAndSwap(false, true) {
		go l.run()
	}
}

// Stop stops the lookup loop. Pending and later lookups fail with
// ErrNoMembersAvailable joined with ErrClusterShutdown.
func (l *Lookup) Stop() {
	if !l.stopped.CompareAndSwap(false, true) {
		return
	}

	close(l.stopCh)
	if l.started.Load() {
		<-l.doneCh
	}
}

// GetOrActivate returns the member owning the identity of the given kind.
// Before the first topology the call waits; when ctx is done or the lookup
// stops first it fails with ErrNoMembersAvailable.
func (l *Lookup) GetOrActivate(ctx context.Context, identity, kind string) (*discovery.Member, error) {
	if strings.TrimSpace(identity) == "" || strings.TrimSpace(kind) == "" {
		return nil, gerrors.ErrInvalidIdentity
	}

	l.record(ctx, kind)

	request := &getRequest{
		ctx:      ctx,
		identity: identity,
		kind:     kind,
		reply:    make(chan result, 1),
	}

	select {
	case l.mailbox <- request:
	case <-ctx.Done():
		return nil, errors.Join(gerrors.NewErrNoMembersAvailable(kind), ctx.Err())
	case <-l.stopCh:
		return nil, errors.Join(gerrors.NewErrNoMembersAvailable(kind), gerrors.ErrClusterShutdown)
	}

	select {
	case reply := <-request.reply:
		return reply.owner, reply.err
	case <-ctx.Done():
		// best effort, suspend and apply prune cancelled waiters as well
		select {
		case l.mailbox <- cancelRequest{request: request}:
		default:
		}
		return nil, errors.Join(gerrors.NewErrNoMembersAvailable(kind), ctx.Err())
	case <-l.stopCh:
		return nil, errors.Join(gerrors.NewErrNoMembersAvailable(kind), gerrors.ErrClusterShutdown)
	}
}

// OnTopology hands a new topology to the lookup.
// Topologies not newer than the current one are dropped.
func (l *Lookup) OnTopology(topology *topology.Topology) {
	l.send(topologyUpdate{topology: topology})
}

// Invalidate drops the activation of the identity when it still points at the given owner
func (l *Lookup) Invalidate(identity, kind, ownerID string) {
	l.send(invalidateRequest{identity: identity, kind: kind, ownerID: ownerID})
}

// Leave evicts every activation owned by the given member and stops placing
// identities on it. It is called for this process on shutdown.
func (l *Lookup) Leave(memberID string) {
	done := make(chan struct{})
	if !l.send(leaveRequest{memberID: memberID, done: done}) {
		return
	}

	select {
	case <-done:
	case <-l.stopCh:
	}
}

// Activations returns a snapshot of the cached activations sorted by kind then identity
func (l *Lookup) Activations() []Activation {
	reply := make(chan []Activation, 1)
	if !l.send(snapshotRequest{reply: reply}) {
		return nil
	}

	select {
	case activations := <-reply:
		return activations
	case <-l.stopCh:
		return nil
	}
}

// Invalidations returns the number of activations invalidated so far
func (l *Lookup) Invalidations() uint64 {
	return l.invalidations.Load()
}

// Size returns the number of cached activations
func (l *Lookup) Size() int64 {
	return l.size.Load()
}

func (l *Lookup) send(message any) bool {
	select {
	case l.mailbox <- message:
		return true
	case <-l.stopCh:
		return false
	}
}

func (l *Lookup) run() {
	defer close(l.doneCh)

	for {
		select {
		case <-l.stopCh:
			return
		case message := <-l.mailbox:
			l.handle(message)
		}
	}
}

func (l *Lookup) handle(message any) {
	switch x := message.(type) {
	case *getRequest:
		if l.topology == nil {
			l.suspend(x)
			return
		}
		owner, err := l.resolve(x.identity, x.kind)
		x.reply <- result{owner: owner, err: err}

	case cancelRequest:
		l.waiters = slices.DeleteFunc(l.waiters, func(waiter *getRequest) bool {
			return waiter == x.request
		})

	case topologyUpdate:
		l.apply(x.topology)

	case invalidateRequest:
		key := activationKey{identity: x.identity, kind: x.kind}
		if activation, ok := l.activations[key]; ok && activation.Owner.ID == x.ownerID {
			l.evict(key)
			l.invalidated(x.kind)
		}

	case leaveRequest:
		l.excluded.Add(x.memberID)
		for key, activation := range l.activations {
			if activation.Owner.ID == x.memberID {
				l.evict(key)
			}
		}
		close(x.done)

	case snapshotRequest:
		x.reply <- l.snapshot()
	}
}

// suspend parks a lookup until the first topology arrives
func (l *Lookup) suspend(request *getRequest) {
	waiters := l.waiters[:0]
	for _, waiter := range l.waiters {
		if waiter.ctx.Err() == nil {
			waiters = append(waiters, waiter)
		}
	}
	l.waiters = append(waiters, request)
}

func (l *Lookup) apply(next *topology.Topology) {
	if next == nil || (l.topology != nil && next.Version <= l.topology.Version) {
		return
	}

	l.topology = next
	l.generation++
	l.logger.Debugf("lookup moved to topology version=(%d) generation=(%d)", next.Version, l.generation)

	waiters := l.waiters
	l.waiters = nil
	for _, waiter := range waiters {
		if waiter.ctx.Err() != nil {
			continue
		}
		owner, err := l.resolve(waiter.identity, waiter.kind)
		waiter.reply <- result{owner: owner, err: err}
	}
}

// resolve returns the owner of the identity. A cached activation of an older
// generation is validated against the current topology on the way.
func (l *Lookup) resolve(identity, kind string) (*discovery.Member, error) {
	candidates := l.candidates(kind)
	if len(candidates) == 0 {
		return nil, gerrors.NewErrNoMembersAvailable(kind)
	}

	key := activationKey{identity: identity, kind: kind}
	activation, cached := l.activations[key]
	if cached && activation.Generation == l.generation {
		return activation.Owner, nil
	}

	owner, ok := l.strategy.Owner(placement.Key(identity, kind), candidates)
	if !ok {
		return nil, gerrors.NewErrNoMembersAvailable(kind)
	}

	if cached && activation.Owner.ID != owner.ID {
		l.logger.Debugf("identity=(%s/%s) moved from member=(%s) to member=(%s)", kind, identity, activation.Owner.ID, owner.ID)
		l.invalidated(kind)
	}

	if !cached {
		l.size.Inc()
	}

	l.activations[key] = &Activation{
		Identity:   identity,
		Kind:       kind,
		Owner:      owner,
		Generation: l.generation,
	}
	return owner, nil
}

func (l *Lookup) candidates(kind string) []*discovery.Member {
	candidates := l.topology.Candidates(kind)
	if l.excluded.Cardinality() == 0 {
		return candidates
	}

	return slices.DeleteFunc(candidates, func(member *discovery.Member) bool {
		return l.excluded.Contains(member.ID)
	})
}

func (l *Lookup) evict(key activationKey) {
	delete(l.activations, key)
	l.size.Dec()
}

func (l *Lookup) invalidated(kind string) {
	l.invalidations.Inc()
	if l.metric != nil {
		l.metric.Invalidations().Add(context.Background(), 1, otelmetric.WithAttributes(attribute.String("kind", kind)))
	}
}

func (l *Lookup) record(ctx context.Context, kind string) {
	if l.metric != nil {
		l.metric.LookupsCount().Add(ctx, 1, otelmetric.WithAttributes(attribute.String("kind", kind)))
	}
}

func (l *Lookup) snapshot() []Activation {
	activations := make([]Activation, 0, len(l.activations))
	for _, activation := range l.activations {
		copied := *activation
		copied.Owner = activation.Owner.Clone()
		activations = append(activations, copied)
	}

	slices.SortFunc(activations, func(a, b Activation) int {
		if c := strings.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		return strings.Compare(a.Identity, b.Identity)
	})
	return activations
}
