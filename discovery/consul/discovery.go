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

package consul

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/benbjohnson/clock"
	goset "github.com/deckarep/golang-set/v2"
	"github.com/flowchartsman/retry"
	"github.com/hashicorp/consul/api"
	"go.uber.org/atomic"

	"github.com/tochemey/grainmesh/discovery"
	gerrors "github.com/tochemey/grainmesh/errors"
	"github.com/tochemey/grainmesh/log"
)

// ProviderName is the consul provider id
const ProviderName = "consul"

// Discovery is the poll/lease discovery provider backed by the Consul agent.
// Registration is a service carrying the member labels as meta, kept alive by a TTL check.
// Watch runs blocking health queries and diffs the results against the last known set.
type Discovery struct {
	config *Config
	client client
	logger log.Logger
	clock  clock.Clock

	mu           sync.Mutex
	registration *discovery.Registration
	service      *api.AgentServiceRegistration
	dirty        bool
	stopBeat     context.CancelFunc
	beatDone     chan struct{}

	closed *atomic.Bool
}

var _ discovery.Provider = (*Discovery)(nil)

// NewDiscovery creates an instance of the Consul discovery provider
func NewDiscovery(config *Config, logger log.Logger) (*Discovery, error) {
	if config == nil {
		config = new(Config)
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, gerrors.NewErrInvalidConfig(fmt.Errorf("consul discovery config is invalid: %w", err))
	}

	consulClient, err := newAPIClient(config)
	if err != nil {
		return nil, err
	}
	return newDiscovery(config, consulClient, logger, clock.New()), nil
}

func newDiscovery(config *Config, client client, logger log.Logger, clk clock.Clock) *Discovery {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Discovery{
		config: config,
		client: client,
		logger: logger.With("discovery", ProviderName),
		clock:  clk,
		closed: atomic.NewBool(false),
	}
}

// ID returns the discovery provider id
func (x *Discovery) ID() string {
	return ProviderName
}

// Register upserts the service of this member and starts the TTL heartbeat
func (x *Discovery) Register(ctx context.Context, registration discovery.Registration) error {
	if x.closed.Load() {
		return gerrors.NewRegistrationError(ProviderName, gerrors.ErrAlreadyClosed)
	}

	if err := registration.Validate(); err != nil {
		return gerrors.NewRegistrationError(ProviderName, err)
	}

	labels, err := registration.Labels()
	if err != nil {
		return gerrors.NewRegistrationError(ProviderName, err)
	}

	service := x.buildService(&registration, labels)

	x.mu.Lock()
	defer x.mu.Unlock()

	// the address changed, the previous service must not linger until its TTL expires
	if x.service != nil && x.service.ID != service.ID {
		if err := x.deregister(ctx, x.service.ID); err != nil {
			x.logger.Warnf("failed to remove previous service=(%s): %v", x.service.ID, err)
		}
	}

	if err := x.register(ctx, service); err != nil {
		return gerrors.NewRegistrationError(ProviderName, err)
	}

	x.registration = &registration
	x.service = service
	x.dirty = false
	x.startHeartbeat()

	x.logger.Infof("member=(%s) registered in cluster=(%s)", service.ID, registration.ClusterName)
	return nil
}

// Deregister stops the heartbeat and removes the service from the agent
func (x *Discovery) Deregister(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.stopHeartbeat()
	if x.service == nil {
		return nil
	}

	serviceID := x.service.ID
	x.service = nil
	x.registration = nil
	if err := x.deregister(ctx, serviceID); err != nil {
		return fmt.Errorf("failed to deregister service=(%s): %w", serviceID, err)
	}

	x.logger.Infof("member=(%s) deregistered", serviceID)
	return nil
}

// UpdateStatus re-registers the service with the new status meta.
// A failed write is retried on the next call or heartbeat.
func (x *Discovery) UpdateStatus(ctx context.Context, statusValue any) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.service == nil {
		return gerrors.ErrNotRegistered
	}

	status, err := x.registration.EncodeStatus(statusValue)
	if err != nil {
		return err
	}

	x.registration.StatusValue = statusValue
	x.service.Meta[discovery.LabelStatus] = status
	x.dirty = true

	if err := x.register(ctx, x.service); err != nil {
		return fmt.Errorf("failed to update status of service=(%s): %w", x.service.ID, err)
	}

	x.dirty = false
	return nil
}

// Watch starts a blocking query loop over the cluster services
func (x *Discovery) Watch(ctx context.Context, clusterName string) (<-chan discovery.Event, error) {
	if x.closed.Load() {
		return nil, gerrors.ErrAlreadyClosed
	}

	events := make(chan discovery.Event, 16)
	go x.watch(ctx, clusterName, events)
	return events, nil
}

// Close stops the heartbeat. The service is left to the TTL check.
func (x *Discovery) Close() error {
	if !x.closed.CompareAndSwap(false, true) {
		return nil
	}

	x.mu.Lock()
	x.stopHeartbeat()
	x.mu.Unlock()
	return nil
}

func (x *Discovery) watch(ctx context.Context, cluster string, events chan<- discovery.Event) {
	defer close(events)

	known := make(map[string]*discovery.Member)
	var index uint64

	for ctx.Err() == nil {
		var (
			entries []*api.ServiceEntry
			next    uint64
		)

		// transient failures are absorbed here and the known set is kept,
		// so a reconnect only yields the real differences
		retrier := retry.NewRetrier(x.config.WatchRetries, x.config.WatchRetryDelay, x.config.WatchMaxRetryDelay)
		err := retrier.RunContext(ctx, func(ctx context.Context) error {
			var err error
			entries, next, err = x.client.Services(ctx, cluster, index, x.config.QueryOptions)
			if err != nil && ctx.Err() == nil {
				x.logger.Warnf("failed to query services of cluster=(%s): %v", cluster, err)
			}
			return err
		})

		if err != nil {
			if ctx.Err() != nil {
				return
			}

			x.logger.Errorf("watch of cluster=(%s) failed: %v", cluster, err)
			select {
			case events <- discovery.WatchFailed{Err: gerrors.NewErrWatchFailed(err)}:
			case <-ctx.Done():
			}
			return
		}

		// consul may reset its index, in which case the query must restart from scratch
		if next < index {
			index = 0
		} else {
			index = next
		}

		current := x.toMembers(cluster, entries)
		for _, event := range diff(known, current) {
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
		known = current
	}
}

func (x *Discovery) toMembers(cluster string, entries []*api.ServiceEntry) map[string]*discovery.Member {
	members := make(map[string]*discovery.Member, len(entries))
	for _, entry := range entries {
		if entry == nil || entry.Service == nil {
			continue
		}

		labels := discovery.Labels(maps.Clone(entry.Service.Meta))
		if labels == nil || labels.Cluster() != cluster {
			x.logger.Debugf("skipping service=(%s): not a member of cluster=(%s)", entry.Service.ID, cluster)
			continue
		}

		if _, ok := labels[discovery.LabelPort]; !ok {
			labels[discovery.LabelPort] = strconv.Itoa(entry.Service.Port)
		}

		host := entry.Service.Address
		if host == "" && entry.Node != nil {
			host = entry.Node.Address
		}

		alive := entry.Checks.AggregatedStatus() == api.HealthPassing
		member, err := labels.Member(entry.Service.ID, host, alive)
		if err != nil {
			x.logger.Warnf("skipping service=(%s): %v", entry.Service.ID, err)
			continue
		}
		members[member.ID] = member
	}
	return members
}

func (x *Discovery) buildService(registration *discovery.Registration, labels discovery.Labels) *api.AgentServiceRegistration {
	serviceID := x.config.ServiceID
	if serviceID == "" {
		serviceID = fmt.Sprintf("%s-%s", registration.ClusterName, registration.Address())
	}

	return &api.AgentServiceRegistration{
		ID:      serviceID,
		Name:    registration.ClusterName,
		Tags:    []string{registration.ClusterName},
		Port:    registration.Port,
		Address: registration.Host,
		Meta:    labels,
		Check: &api.AgentServiceCheck{
			CheckID:                        checkID(serviceID),
			TTL:                            x.config.HealthCheck.TTL.String(),
			DeregisterCriticalServiceAfter: x.config.HealthCheck.DeregisterCriticalServiceAfter.String(),
			Status:                         api.HealthPassing,
		},
	}
}

func (x *Discovery) register(ctx context.Context, service *api.AgentServiceRegistration) error {
	ctx, cancel := context.WithTimeout(ctx, x.config.Timeout)
	defer cancel()
	return x.client.Register(ctx, service)
}

func (x *Discovery) deregister(ctx context.Context, serviceID string) error {
	ctx, cancel := context.WithTimeout(ctx, x.config.Timeout)
	defer cancel()
	return x.client.Deregister(ctx, serviceID)
}

// startHeartbeat must be called with the lock held
func (x *Discovery) startHeartbeat() {
	if x.stopBeat != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	x.stopBeat = cancel
	x.beatDone = make(chan struct{})
	go x.heartbeat(ctx, x.beatDone)
}

// stopHeartbeat must be called with the lock held
func (x *Discovery) stopHeartbeat() {
	if x.stopBeat == nil {
		return
	}

	cancel, done := x.stopBeat, x.beatDone
	x.stopBeat, x.beatDone = nil, nil
	cancel()

	// the heartbeat takes the lock on every beat
	x.mu.Unlock()
	<-done
	x.mu.Lock()
}

func (x *Discovery) heartbeat(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := x.clock.Ticker(x.config.HealthCheck.TTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			x.beat(ctx)
		}
	}
}

func (x *Discovery) beat(ctx context.Context) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.service == nil || ctx.Err() != nil {
		return
	}

	if x.dirty {
		if err := x.register(ctx, x.service); err != nil {
			x.logger.Warnf("failed to refresh service=(%s): %v", x.service.ID, err)
			return
		}
		x.dirty = false
	}

	callCtx, cancel := context.WithTimeout(ctx, x.config.Timeout)
	defer cancel()
	if err := x.client.PassTTL(callCtx, checkID(x.service.ID)); err != nil {
		x.logger.Warnf("failed to heartbeat service=(%s): %v", x.service.ID, err)
	}
}

func checkID(serviceID string) string {
	return "service:" + serviceID
}

// diff computes the presence events turning previous into current.
// Events are sorted by member id within each kind so that the output is deterministic.
func diff(previous, current map[string]*discovery.Member) []discovery.Event {
	before := goset.NewThreadUnsafeSet[string]()
	for id := range previous {
		before.Add(id)
	}

	after := goset.NewThreadUnsafeSet[string]()
	for id := range current {
		after.Add(id)
	}

	events := make([]discovery.Event, 0)
	for _, id := range sorted(before.Difference(after)) {
		events = append(events, discovery.Left{MemberID: id})
	}

	for _, id := range sorted(after.Difference(before)) {
		events = append(events, discovery.Joined{Member: current[id]})
	}

	for _, id := range sorted(after.Intersect(before)) {
		if !previous[id].Equal(current[id]) {
			events = append(events, discovery.Updated{Member: current[id]})
		}
	}
	return events
}

func sorted(set goset.Set[string]) []string {
	ids := set.ToSlice()
	slices.Sort(ids)
	return ids
}
