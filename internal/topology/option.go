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
	"time"

	"github.com/benbjohnson/clock"

	"github.com/tochemey/grainmesh/discovery"
	"github.com/tochemey/grainmesh/log"
)

// Listener is notified of every published topology, in version order
type Listener func(*Topology)

// Option is the interface that applies an Assembler option.
type Option interface {
	// Apply sets the Option value of an Assembler.
	Apply(assembler *Assembler)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(assembler *Assembler)

// Apply applies the Assembler's option
func (f OptionFunc) Apply(assembler *Assembler) {
	f(assembler)
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(assembler *Assembler) {
		assembler.logger = logger
	})
}

// WithClock sets the clock driving the coalescing window
func WithClock(clk clock.Clock) Option {
	return OptionFunc(func(assembler *Assembler) {
		assembler.clock = clk
	})
}

// WithCoalesceWindow sets the window presence events are folded in
// before a topology is published.
func WithCoalesceWindow(window time.Duration) Option {
	return OptionFunc(func(assembler *Assembler) {
		assembler.window = window
	})
}

// WithResyncGrace sets how long the members known before a watch restart are
// kept when the new watch stays silent.
func WithResyncGrace(grace time.Duration) Option {
	return OptionFunc(func(assembler *Assembler) {
		assembler.resyncGrace = grace
	})
}

// WithListeners adds topology listeners
func WithListeners(listeners ...Listener) Option {
	return OptionFunc(func(assembler *Assembler) {
		assembler.listeners = append(assembler.listeners, listeners...)
	})
}

// WithAddressChangedHandler sets the handler of AddressChanged events
func WithAddressChangedHandler(handler func(discovery.AddressChanged)) Option {
	return OptionFunc(func(assembler *Assembler) {
		assembler.onAddressChanged = handler
	})
}
