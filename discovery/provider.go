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

package discovery

import (
	"context"
)

// Provider bridges one external registry to the presence event stream
// and publishes this process's own membership fact to that registry.
type Provider interface {
	// ID returns the discovery backend name
	ID() string
	// Register announces this process as a member of the cluster.
	// It returns a RegistrationError when the process is not eligible or the registry rejects the write.
	// Registering again after a failure, or with a new address, is safe.
	Register(ctx context.Context, registration Registration) error
	// Deregister removes this process's membership fact. Best effort.
	Deregister(ctx context.Context) error
	// UpdateStatus propagates a new application status value. Best effort,
	// a failed update is retried on the next call.
	UpdateStatus(ctx context.Context, statusValue any) error
	// Watch returns the presence events of the named cluster.
	// The channel is closed when ctx is done or right after a terminal WatchFailed.
	// Calling Watch again starts a fresh stream.
	Watch(ctx context.Context, clusterName string) (<-chan Event, error)
	// Close releases the provider resources
	Close() error
}
