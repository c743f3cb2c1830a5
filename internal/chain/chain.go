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

package chain

import (
	"context"

	"go.uber.org/multierr"
)

// Chain runs a sequence of steps in insertion order.
// Steps only run when Run is called.
type Chain struct {
	failFast bool
	ctx      context.Context
	runners  []func(ctx context.Context) error
}

// Option configures a chain at creation time.
type Option func(*Chain)

// New creates a chain. By default every step runs and all errors are returned.
func New(opts ...Option) *Chain {
	chain := &Chain{ctx: context.Background()}
	for _, opt := range opts {
		opt(chain)
	}
	return chain
}

// AddRunner adds a step to the chain
func (c *Chain) AddRunner(fn func() error) *Chain {
	return c.AddContextRunner(func(context.Context) error { return fn() })
}

// AddRunnerIf adds a step to the chain when the condition holds
func (c *Chain) AddRunnerIf(condition bool, fn func() error) *Chain {
	if !condition {
		return c
	}
	return c.AddRunner(fn)
}

// AddContextRunner adds a step receiving the chain context
func (c *Chain) AddContextRunner(fn func(ctx context.Context) error) *Chain {
	c.runners = append(c.runners, fn)
	return c
}

// AddContextRunnerIf adds a step receiving the chain context when the condition holds
func (c *Chain) AddContextRunnerIf(condition bool, fn func(ctx context.Context) error) *Chain {
	if !condition {
		return c
	}
	return c.AddContextRunner(fn)
}

// Run runs the steps. A fail fast chain stops at the first error and returns it,
// otherwise the errors of all steps are combined.
func (c *Chain) Run() error {
	var err error
	for _, runner := range c.runners {
		if runErr := runner(c.ctx); runErr != nil {
			if c.failFast {
				return runErr
			}
			err = multierr.Append(err, runErr)
		}
	}
	return err
}

// WithFailFast stops the chain on the first error.
func WithFailFast() Option {
	return func(c *Chain) { c.failFast = true }
}

// WithRunAll runs every step regardless of errors.
func WithRunAll() Option {
	return func(c *Chain) { c.failFast = false }
}

// WithContext sets the context handed to the steps
func WithContext(ctx context.Context) Option {
	return func(c *Chain) { c.ctx = ctx }
}
