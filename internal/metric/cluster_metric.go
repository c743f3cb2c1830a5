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

package metric

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// ClusterMetric groups the instruments describing the membership view
// and the identity routing of one member.
//
// Instruments:
//   - cluster.topology.version     (Int64ObservableGauge)
//   - cluster.members.count        (Int64ObservableGauge)
//   - cluster.candidates.count     (Int64ObservableGauge)
//   - cluster.activations.count    (Int64ObservableGauge)
//   - cluster.lookups.count        (Int64Counter)
//   - cluster.invalidations.count  (Int64Counter)
//   - cluster.stale_owner.retries  (Int64Counter)
//   - cluster.watch.restarts       (Int64Counter)
type ClusterMetric struct {
	topologyVersion   metric.Int64ObservableGauge
	membersCount      metric.Int64ObservableGauge
	candidatesCount   metric.Int64ObservableGauge
	activationsCount  metric.Int64ObservableGauge
	lookupsCount      metric.Int64Counter
	invalidations     metric.Int64Counter
	staleOwnerRetries metric.Int64Counter
	watchRestarts     metric.Int64Counter
}

// NewClusterMetric creates the cluster instruments using the provided Meter.
// It returns an error if any instrument cannot be created.
func NewClusterMetric(meter metric.Meter) (*ClusterMetric, error) {
	instruments := new(ClusterMetric)
	var err error

	if instruments.topologyVersion, err = meter.Int64ObservableGauge(
		"cluster.topology.version",
		metric.WithDescription("Version of the current topology"),
	); err != nil {
		return nil, fmt.Errorf("failed to create topologyVersion instrument, %w", err)
	}

	if instruments.membersCount, err = meter.Int64ObservableGauge(
		"cluster.members.count",
		metric.WithDescription("Total number of known members, candidates or not"),
	); err != nil {
		return nil, fmt.Errorf("failed to create membersCount instrument, %w", err)
	}

	if instruments.candidatesCount, err = meter.Int64ObservableGauge(
		"cluster.candidates.count",
		metric.WithDescription("Total number of members eligible to own identities"),
	); err != nil {
		return nil, fmt.Errorf("failed to create candidatesCount instrument, %w", err)
	}

	if instruments.activationsCount, err = meter.Int64ObservableGauge(
		"cluster.activations.count",
		metric.WithDescription("Total number of cached identity activations"),
	); err != nil {
		return nil, fmt.Errorf("failed to create activationsCount instrument, %w", err)
	}

	if instruments.lookupsCount, err = meter.Int64Counter(
		"cluster.lookups.count",
		metric.WithDescription("Total number of identity owner lookups"),
	); err != nil {
		return nil, fmt.Errorf("failed to create lookupsCount instrument, %w", err)
	}

	if instruments.invalidations, err = meter.Int64Counter(
		"cluster.invalidations.count",
		metric.WithDescription("Total number of invalidated identity activations"),
	); err != nil {
		return nil, fmt.Errorf("failed to create invalidations instrument, %w", err)
	}

	if instruments.staleOwnerRetries, err = meter.Int64Counter(
		"cluster.stale_owner.retries",
		metric.WithDescription("Total number of requests re-routed after a stale owner"),
	); err != nil {
		return nil, fmt.Errorf("failed to create staleOwnerRetries instrument, %w", err)
	}

	if instruments.watchRestarts, err = meter.Int64Counter(
		"cluster.watch.restarts",
		metric.WithDescription("Total number of discovery watch restarts"),
	); err != nil {
		return nil, fmt.Errorf("failed to create watchRestarts instrument, %w", err)
	}

	return instruments, nil
}

// TopologyVersion returns the gauge of the current topology version
func (x *ClusterMetric) TopologyVersion() metric.Int64ObservableGauge {
	return x.topologyVersion
}

// MembersCount returns the gauge of the known members
func (x *ClusterMetric) MembersCount() metric.Int64ObservableGauge {
	return x.membersCount
}

// CandidatesCount returns the gauge of the routable members
func (x *ClusterMetric) CandidatesCount() metric.Int64ObservableGauge {
	return x.candidatesCount
}

// ActivationsCount returns the gauge of cached activations
func (x *ClusterMetric) ActivationsCount() metric.Int64ObservableGauge {
	return x.activationsCount
}

// LookupsCount returns the lookups counter
func (x *ClusterMetric) LookupsCount() metric.Int64Counter {
	return x.lookupsCount
}

// Invalidations returns the invalidations counter
func (x *ClusterMetric) Invalidations() metric.Int64Counter {
	return x.invalidations
}

// StaleOwnerRetries returns the stale owner retries counter
func (x *ClusterMetric) StaleOwnerRetries() metric.Int64Counter {
	return x.staleOwnerRetries
}

// WatchRestarts returns the watch restarts counter
func (x *ClusterMetric) WatchRestarts() metric.Int64Counter {
	return x.watchRestarts
}

// Observables returns the instruments to pass to Meter.RegisterCallback
func (x *ClusterMetric) Observables() []metric.Observable {
	return []metric.Observable{
		x.topologyVersion,
		x.membersCount,
		x.candidatesCount,
		x.activationsCount,
	}
}
