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

	"github.com/tochemey/grainmesh/discovery"
)

// Transport delivers messages to the member hosting an identity.
// It hides whether the member is this process or a remote one.
//
// An implementation returns an error wrapping errors.ErrStaleOwner when the
// member turned out not to host the identity anymore at delivery time, so that
// the cluster re-resolves the owner.
type Transport interface {
	// Send delivers a message without waiting for a response
	Send(ctx context.Context, owner *discovery.Member, identity, kind string, message any) error
	// Request delivers a message and waits for the response
	Request(ctx context.Context, owner *discovery.Member, identity, kind string, message any) (any, error)
}
