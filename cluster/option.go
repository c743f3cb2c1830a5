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
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/metric"

	"github.com/tochemey/grainmesh/discovery"
	"github.com/tochemey/grainmesh/internal/placement"
	"github.com/tochemey/grainmesh/log"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(cl *Cluster)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(cl *Cluster)

// Apply applies the Cluster's option
func (f OptionFunc) Apply(c *Cluster) {
	f(c)
}

// WithHost sets the host advertised to the other members
func WithHost(host string) Option {
	return OptionFunc(func(cl *Cluster) {
		cl.host = host
	})
}

// WithPort sets the port advertised to the other members
func WithPort(port int) Option {
	return OptionFunc(func(cl *Cluster) {
		cl.port = port
	})
}

// WithKinds sets the virtual actor kinds this member can host
func WithKinds(kinds ...string) Option {
	return OptionFunc(func(cl *Cluster) {
		cl.kinds = discovery.NormalizeKinds(kinds)
	})
}

// WithStatus sets the initial status value of the member and its codec
func WithStatus(value any, codec discovery.StatusCodec) Option {
	return OptionFunc(func(cl *Cluster) {
		cl.statusValue = value
		cl.statusCodec = codec
	})
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(cl *Cluster) {
		cl.logger = logger
	})
}

// WithTransport sets the transport messages are delivered with
func WithTransport(transport Transport) Option {
	return OptionFunc(func(cl *Cluster) {
		cl.transport = transport
	})
}

// WithPlacement sets the placement strategy.
// Every member of a cluster must use the same strategy.
func WithPlacement(strategy placement.Strategy) Option {
	return OptionFunc(func(cl *Cluster) {
		cl.strategy = strategy
	})
}

// WithCoalesceWindow sets the window presence events are folded in
// before a new topology is applied
func WithCoalesceWindow(window time.Duration) Option {
	return OptionFunc(func(cl *Cluster) {
		cl.coalesceWindow = window
	})
}

// WithShutdownTimeout sets the Cluster shutdown timeout.
func WithShutdownTimeout(timeout time.Duration) Option {
	return OptionFunc(func(cl *Cluster) {
		cl.shutdownTimeout = timeout
	})
}

// WithWatchBackoff sets the delays between discovery watch restarts
func WithWatchBackoff(delay, maxDelay time.Duration) Option {
	return OptionFunc(func(cl *Cluster) {
		cl.watchRetryDelay = delay
		cl.watchMaxRetryDelay = maxDelay
	})
}

// WithMeterProvider sets the meter provider of the cluster instruments
func WithMeterProvider(meterProvider metric.MeterProvider) Option {
	return OptionFunc(func(cl *Cluster) {
		cl.meterProvider = meterProvider
	})
}

// WithClock sets the clock
func WithClock(clk clock.Clock) Option {
	return OptionFunc(func(cl *Cluster) {
		cl.clock = clk
	})
}
