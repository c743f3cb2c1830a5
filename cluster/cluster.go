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
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/flowchartsman/retry"
	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/tochemey/grainmesh/discovery"
	gerrors "github.com/tochemey/grainmesh/errors"
	"github.com/tochemey/grainmesh/eventstream"
	"github.com/tochemey/grainmesh/internal/chain"
	"github.com/tochemey/grainmesh/internal/metric"
	"github.com/tochemey/grainmesh/internal/partition"
	"github.com/tochemey/grainmesh/internal/placement"
	"github.com/tochemey/grainmesh/internal/topology"
	"github.com/tochemey/grainmesh/log"
)

// watchStartRetries bounds the attempts of one provider Watch call before backing off
const watchStartRetries = 3

// Cluster is a member of a grainmesh cluster.
// It registers this process with the discovery provider, keeps the topology
// up to date from the provider watch and routes identities to their owner.
type Cluster struct {
	name     string
	provider discovery.Provider

	host        string
	port        int
	kinds       []string
	statusValue any
	statusCodec discovery.StatusCodec

	logger             log.Logger
	transport          Transport
	strategy           placement.Strategy
	coalesceWindow     time.Duration
	shutdownTimeout    time.Duration
	watchRetryDelay    time.Duration
	watchMaxRetryDelay time.Duration
	meterProvider      otelmetric.MeterProvider
	clock              clock.Clock

	store        *topology.Store
	assembler    *topology.Assembler
	lookup       *partition.Lookup
	eventsStream *eventstream.EventsStream
	meter        otelmetric.Meter
	metric       *metric.ClusterMetric
	observation  otelmetric.Registration

	// lifecycle serializes StartMember and Shutdown. A channel lets the
	// waiters give up when their context ends.
	lifecycle   chan struct{}
	started     *atomic.Bool
	stopped     *atomic.Bool
	registered  *atomic.Bool
	cancelWatch context.CancelFunc
	watchDone   chan struct{}

	// startMu guards the cancellation of an in-flight StartMember
	startMu     sync.Mutex
	stopping    bool
	cancelStart context.CancelFunc

	registrationMu sync.Mutex
	registration   discovery.Registration

	// previous is the last topology seen by the topology listener
	previous *topology.Topology
}

// New creates a cluster member using the given discovery provider
func New(name string, provider discovery.Provider, opts ...Option) (*Cluster, error) {
	cl := &Cluster{
		name:               name,
		provider:           provider,
		logger:             log.DefaultLogger,
		shutdownTimeout:    DefaultShutdownTimeout,
		watchRetryDelay:    DefaultWatchRetryDelay,
		watchMaxRetryDelay: DefaultWatchMaxRetryDelay,
		coalesceWindow:     topology.DefaultCoalesceWindow,
		clock:              clock.New(),
		started:            atomic.NewBool(false),
		stopped:            atomic.NewBool(false),
		registered:         atomic.NewBool(false),
		lifecycle:          make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt.Apply(cl)
	}

	if provider == nil {
		return nil, gerrors.NewErrInvalidConfig(errors.New("discovery provider is required"))
	}

	if cl.strategy == nil {
		cl.strategy = placement.NewRing(nil, placement.DefaultReplicaPoints)
	}

	if cl.meterProvider == nil {
		cl.meterProvider = otel.GetMeterProvider()
	}

	cl.registration = discovery.Registration{
		ClusterName: name,
		Host:        cl.host,
		Port:        cl.port,
		Kinds:       cl.kinds,
		StatusValue: cl.statusValue,
		StatusCodec: cl.statusCodec,
	}

	if err := cl.registration.Validate(); err != nil {
		return nil, gerrors.NewErrInvalidConfig(err)
	}

	cl.meter = metric.NewProvider(metric.WithMeterProvider(cl.meterProvider)).Meter()
	instruments, err := metric.NewClusterMetric(cl.meter)
	if err != nil {
		return nil, err
	}

	cl.logger = cl.logger.With("cluster", name)
	cl.metric = instruments
	cl.store = topology.NewStore()
	cl.eventsStream = eventstream.New()
	cl.lookup = partition.NewLookup(cl.strategy,
		partition.WithLogger(cl.logger),
		partition.WithMetric(instruments))
	cl.assembler = topology.NewAssembler(cl.store,
		topology.WithLogger(cl.logger),
		topology.WithClock(cl.clock),
		topology.WithCoalesceWindow(cl.coalesceWindow),
		topology.WithListeners(cl.lookup.OnTopology, cl.publish),
		topology.WithAddressChangedHandler(cl.reregister))

	return cl, nil
}

// Name returns the cluster name
func (cl *Cluster) Name() string {
	return cl.name
}

// Address returns the address this member is registered with
func (cl *Cluster) Address() string {
	cl.registrationMu.Lock()
	defer cl.registrationMu.Unlock()
	return cl.registration.Address()
}

// Running reports whether the member started and is not shut down
func (cl *Cluster) Running() bool {
	return cl.started.Load() && !cl.stopped.Load()
}

// StartMember registers this process with the discovery provider and starts
// watching the cluster membership. A registration failure is returned as is
// and not retried. Calling StartMember again is a no-op.
// A Shutdown issued while StartMember is registering cancels its context.
func (cl *Cluster) StartMember(ctx context.Context) error {
	if err := cl.acquire(ctx); err != nil {
		return err
	}
	defer cl.release()

	if cl.stopped.Load() {
		return gerrors.ErrClusterShutdown
	}

	if cl.started.Load() {
		return nil
	}

	startCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cl.startMu.Lock()
	if cl.stopping {
		cl.startMu.Unlock()
		return gerrors.ErrClusterShutdown
	}
	cl.cancelStart = cancel
	cl.startMu.Unlock()

	defer func() {
		cl.startMu.Lock()
		cl.cancelStart = nil
		cl.startMu.Unlock()
	}()

	cl.logger.Infof("starting member on address=(%s) with discovery=(%s)", cl.Address(), cl.provider.ID())

	if err := chain.
		New(chain.WithFailFast(), chain.WithContext(startCtx)).
		AddContextRunner(cl.register).
		AddRunner(cl.observe).
		Run(); err != nil {
		cl.logger.Errorf("failed to start member: %v", err)
		if cl.isStopping() {
			return errors.Join(gerrors.ErrClusterShutdown, err)
		}
		return err
	}

	// registered but the shutdown already gave up on us
	if cl.isStopping() {
		cl.logger.Warn("member start aborted by shutdown")
		return gerrors.ErrClusterShutdown
	}

	cl.lookup.Start()
	cl.assembler.Start()

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	cl.cancelWatch = cancelWatch
	cl.watchDone = make(chan struct{})
	go cl.supervise(watchCtx, cl.watchDone)

	cl.started.Store(true)
	cl.logger.Infof("member started on address=(%s)", cl.Address())
	return nil
}

// Shutdown leaves the cluster: it evicts the identities this member owns,
// stops watching the membership and deregisters this process.
// An in-flight StartMember is cancelled and waited for until ctx or the
// shutdown timeout ends. Deregistration failures are logged.
// Calling Shutdown again, or before StartMember, is safe.
func (cl *Cluster) Shutdown(ctx context.Context) (err error) {
	ctx, cancel := context.WithTimeout(ctx, cl.shutdownTimeout)
	defer cancel()

	cl.startMu.Lock()
	cl.stopping = true
	if cl.cancelStart != nil {
		cl.cancelStart()
	}
	cl.startMu.Unlock()

	if err := cl.acquire(ctx); err != nil {
		cl.logger.Warn("member start did not return within the shutdown timeout")
		return fmt.Errorf("failed to wait for the member start: %w", err)
	}
	defer cl.release()

	if !cl.stopped.CompareAndSwap(false, true) {
		return nil
	}

	defer func() {
		cl.eventsStream.Close()
		err = multierr.Combine(err, cl.logger.Flush())
	}()

	if !cl.started.Load() {
		cl.lookup.Stop()
		cl.assembler.Stop()
		// a start aborted after its registration leaves a record behind
		return chain.
			New(chain.WithRunAll(), chain.WithContext(ctx)).
			AddContextRunnerIf(cl.registered.Load(), cl.provider.Deregister).
			AddRunnerIf(cl.observation != nil, cl.unobserve).
			AddRunner(cl.provider.Close).
			Run()
	}

	cl.logger.Info("shutdown process begins")

	// stop serving stale answers for the identities this member hosts
	for _, self := range cl.self() {
		cl.lookup.Leave(self.ID)
	}

	cl.cancelWatch()
	select {
	case <-cl.watchDone:
	case <-ctx.Done():
		cl.logger.Warn("discovery watch did not stop within the shutdown timeout")
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := cl.provider.Deregister(egCtx); err != nil {
			cl.logger.Warnf("failed to deregister member: %v", err)
		}
		return nil
	})
	eg.Go(func() error {
		cl.assembler.Stop()
		cl.lookup.Stop()
		return nil
	})
	_ = eg.Wait()

	if err := chain.
		New(chain.WithRunAll()).
		AddRunnerIf(cl.observation != nil, cl.unobserve).
		AddRunner(cl.provider.Close).
		Run(); err != nil {
		cl.logger.Errorf("failed to shutdown cleanly: %v", err)
		return err
	}

	cl.logger.Info("member shut down")
	return nil
}

// GetOrActivate returns the member owning the identity of the given kind.
// It waits for the first topology after start; when ctx is done first it fails
// with errors.ErrNoMembersAvailable, which callers retry with a backoff.
func (cl *Cluster) GetOrActivate(ctx context.Context, identity, kind string) (*discovery.Member, error) {
	if err := cl.checkRunning(); err != nil {
		return nil, err
	}
	return cl.lookup.GetOrActivate(ctx, identity, kind)
}

// Send delivers a message to the owner of the identity without waiting for a response
func (cl *Cluster) Send(ctx context.Context, identity, kind string, message any) error {
	if cl.transport == nil {
		return gerrors.ErrTransportNotSet
	}

	return cl.route(ctx, identity, kind, func(owner *discovery.Member) error {
		return cl.transport.Send(ctx, owner, identity, kind, message)
	})
}

// Request delivers a message to the owner of the identity and returns its response
func (cl *Cluster) Request(ctx context.Context, identity, kind string, message any) (any, error) {
	if cl.transport == nil {
		return nil, gerrors.ErrTransportNotSet
	}

	var response any
	err := cl.route(ctx, identity, kind, func(owner *discovery.Member) error {
		var err error
		response, err = cl.transport.Request(ctx, owner, identity, kind, message)
		return err
	})
	return response, err
}

// UpdateStatus propagates a new status value of this member.
// Registry failures are logged and retried on the next call.
func (cl *Cluster) UpdateStatus(ctx context.Context, value any) error {
	if err := cl.checkRunning(); err != nil {
		return err
	}

	cl.registrationMu.Lock()
	cl.registration.StatusValue = value
	cl.registrationMu.Unlock()

	if err := cl.provider.UpdateStatus(ctx, value); err != nil {
		if errors.Is(err, gerrors.ErrStatusEncoding) {
			return err
		}
		cl.logger.Warnf("failed to update the member status: %v", err)
	}
	return nil
}

// Members returns every known member, candidates or not
func (cl *Cluster) Members() []*discovery.Member {
	view := cl.Topology()
	if view == nil {
		return nil
	}
	return view.Members
}

// Topology returns the current membership view, nil before the first one
func (cl *Cluster) Topology() *View {
	current := cl.store.Current()
	if current == nil {
		return nil
	}
	return newView(current)
}

// Activations returns the identity activations cached by this member
func (cl *Cluster) Activations() []partition.Activation {
	return cl.lookup.Activations()
}

// Subscribe creates a subscriber of the cluster events:
// TopologyChanged, MemberJoined and MemberLeft.
func (cl *Cluster) Subscribe() (eventstream.Subscriber, error) {
	if cl.stopped.Load() {
		return nil, gerrors.ErrClusterShutdown
	}

	subscriber := cl.eventsStream.AddSubscriber()
	cl.eventsStream.Subscribe(subscriber, TopologyTopic)
	return subscriber, nil
}

// Unsubscribe removes a subscriber created by Subscribe
func (cl *Cluster) Unsubscribe(subscriber eventstream.Subscriber) error {
	if subscriber == nil {
		return nil
	}

	cl.eventsStream.Unsubscribe(subscriber, TopologyTopic)
	cl.eventsStream.RemoveSubscriber(subscriber)
	return nil
}

// route resolves the owner and delivers to it. On a stale owner the activation
// is invalidated and the delivery retried once.
func (cl *Cluster) route(ctx context.Context, identity, kind string, deliver func(owner *discovery.Member) error) error {
	owner, err := cl.GetOrActivate(ctx, identity, kind)
	if err != nil {
		return err
	}

	err = deliver(owner)
	if !errors.Is(err, gerrors.ErrStaleOwner) {
		return err
	}

	cl.logger.Warnf("member=(%s) no longer hosts identity=(%s/%s), resolving again", owner.ID, kind, identity)
	cl.lookup.Invalidate(identity, kind, owner.ID)
	cl.metric.StaleOwnerRetries().Add(ctx, 1)

	if owner, err = cl.GetOrActivate(ctx, identity, kind); err != nil {
		return err
	}

	if err = deliver(owner); errors.Is(err, gerrors.ErrStaleOwner) {
		return gerrors.NewErrStaleOwner(owner.ID, err)
	}
	return err
}

func (cl *Cluster) checkRunning() error {
	if cl.stopped.Load() {
		return gerrors.ErrClusterShutdown
	}

	if !cl.started.Load() {
		return gerrors.ErrClusterNotStarted
	}
	return nil
}

func (cl *Cluster) register(ctx context.Context) error {
	cl.registrationMu.Lock()
	registration := cl.registration
	cl.registrationMu.Unlock()
	if err := cl.provider.Register(ctx, registration); err != nil {
		return err
	}
	cl.registered.Store(true)
	return nil
}

// acquire takes the lifecycle lock unless ctx ends first
func (cl *Cluster) acquire(ctx context.Context) error {
	select {
	case cl.lifecycle <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cl *Cluster) release() {
	<-cl.lifecycle
}

func (cl *Cluster) isStopping() bool {
	cl.startMu.Lock()
	defer cl.startMu.Unlock()
	return cl.stopping
}

// observe registers the callback reporting the membership gauges
func (cl *Cluster) observe() error {
	registration, err := cl.meter.RegisterCallback(func(_ context.Context, observer otelmetric.Observer) error {
		if current := cl.store.Current(); current != nil {
			observer.ObserveInt64(cl.metric.TopologyVersion(), int64(current.Version))
			observer.ObserveInt64(cl.metric.MembersCount(), int64(len(current.All)))
			observer.ObserveInt64(cl.metric.CandidatesCount(), int64(len(current.Members)))
		}
		observer.ObserveInt64(cl.metric.ActivationsCount(), cl.lookup.Size())
		return nil
	}, cl.metric.Observables()...)
	if err != nil {
		return fmt.Errorf("failed to register the cluster metrics callback: %w", err)
	}

	cl.observation = registration
	return nil
}

func (cl *Cluster) unobserve() error {
	return cl.observation.Unregister()
}

// supervise keeps the provider watch running until ctx is done.
// A failed or closed watch is restarted after a backoff and is never fatal.
func (cl *Cluster) supervise(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	delay := cl.watchRetryDelay
	for {
		startedAt := cl.clock.Now()
		err := cl.watch(ctx)
		if ctx.Err() != nil {
			return
		}

		// a stream that lived long enough resets the backoff
		if cl.clock.Since(startedAt) > cl.watchMaxRetryDelay {
			delay = cl.watchRetryDelay
		}

		cl.logger.Warnf("discovery watch stopped, restarting in %s: %v", delay, err)
		cl.metric.WatchRestarts().Add(ctx, 1)

		select {
		case <-ctx.Done():
			return
		case <-cl.clock.After(delay):
		}

		delay = min(delay*2, cl.watchMaxRetryDelay)
	}
}

// watch runs one provider watch until its stream ends
func (cl *Cluster) watch(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var events <-chan discovery.Event
	retrier := retry.NewRetrier(watchStartRetries, cl.watchRetryDelay, cl.watchMaxRetryDelay)
	if err := retrier.RunContext(streamCtx, func(ctx context.Context) error {
		var err error
		events, err = cl.provider.Watch(streamCtx, cl.name)
		return err
	}); err != nil {
		return gerrors.NewErrWatchFailed(err)
	}

	err := cl.assembler.Consume(streamCtx, events)

	// let the provider release the stream
	cancel()
	for range events {
	}
	return err
}

// reregister registers this member again under its new address
func (cl *Cluster) reregister(event discovery.AddressChanged) {
	cl.logger.Errorf("CRITICAL: %v, registering again", gerrors.NewErrCriticalAddressChange(event.Previous, event.Current))

	host, rawPort, err := net.SplitHostPort(event.Current)
	if err != nil {
		cl.logger.Errorf("invalid address=(%s) reported for this member: %v", event.Current, err)
		return
	}

	port, err := strconv.Atoi(rawPort)
	if err != nil {
		cl.logger.Errorf("invalid address=(%s) reported for this member: %v", event.Current, err)
		return
	}

	cl.registrationMu.Lock()
	cl.registration.Host = host
	cl.registration.Port = port
	cl.registrationMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), cl.shutdownTimeout)
	defer cancel()

	if err := cl.register(ctx); err != nil {
		cl.logger.Warnf("failed to register member on its new address=(%s), will retry on the next change: %v", event.Current, err)
		return
	}
	cl.logger.Infof("member registered again on address=(%s)", event.Current)
}

// publish announces a new topology on the events stream.
// It runs on the assembler goroutine, in version order.
func (cl *Cluster) publish(current *topology.Topology) {
	joined, left := candidatesDiff(cl.previous, current)
	cl.previous = current

	for _, member := range left {
		cl.eventsStream.Publish(TopologyTopic, &MemberLeft{Member: member})
	}

	for _, member := range joined {
		cl.eventsStream.Publish(TopologyTopic, &MemberJoined{Member: member})
	}

	cl.eventsStream.Publish(TopologyTopic, &TopologyChanged{View: *newView(current)})
}

// self returns the known members registered with this member address
func (cl *Cluster) self() []*discovery.Member {
	current := cl.store.Current()
	if current == nil {
		return nil
	}

	address := cl.Address()
	var members []*discovery.Member
	for _, member := range current.All {
		if member.Address() == address {
			members = append(members, member)
		}
	}
	return members
}
