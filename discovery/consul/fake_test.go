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
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/consul/api"
)

// fakeConsul is an in-memory agent honoring blocking query semantics
type fakeConsul struct {
	mu            sync.Mutex
	services      map[string]*api.AgentServiceRegistration
	health        map[string]string
	passes        map[string]int
	index         uint64
	changed       chan struct{}
	failures      int
	registerErr   error
	deregisterErr error
	registrations int
}

var _ client = (*fakeConsul)(nil)

func newFakeConsul() *fakeConsul {
	return &fakeConsul{
		services: make(map[string]*api.AgentServiceRegistration),
		health:   make(map[string]string),
		passes:   make(map[string]int),
		index:    1,
		changed:  make(chan struct{}),
	}
}

func (f *fakeConsul) Register(_ context.Context, service *api.AgentServiceRegistration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registrations++
	if f.registerErr != nil {
		return f.registerErr
	}

	clone := *service
	clone.Meta = maps.Clone(service.Meta)
	f.services[service.ID] = &clone
	if _, ok := f.health[service.ID]; !ok {
		f.health[service.ID] = service.Check.Status
	}
	f.notify()
	return nil
}

func (f *fakeConsul) Deregister(_ context.Context, serviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deregisterErr != nil {
		return f.deregisterErr
	}
	delete(f.services, serviceID)
	delete(f.health, serviceID)
	f.notify()
	return nil
}

func (f *fakeConsul) PassTTL(_ context.Context, checkID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passes[checkID]++
	return nil
}

func (f *fakeConsul) Services(ctx context.Context, cluster string, waitIndex uint64, options *QueryOptions) ([]*api.ServiceEntry, uint64, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, 0, errors.New("connection refused")
	}

	if waitIndex >= f.index {
		changed := f.changed
		f.mu.Unlock()
		select {
		case <-changed:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-time.After(options.WaitTime):
		}
		f.mu.Lock()
	}
	defer f.mu.Unlock()

	ids := slices.Sorted(maps.Keys(f.services))
	entries := make([]*api.ServiceEntry, 0, len(ids))
	for _, id := range ids {
		service := f.services[id]
		if service.Name != cluster {
			continue
		}
		entries = append(entries, &api.ServiceEntry{
			Node: &api.Node{Address: "192.168.1.1"},
			Service: &api.AgentService{
				ID:      service.ID,
				Service: service.Name,
				Tags:    service.Tags,
				Port:    service.Port,
				Address: service.Address,
				Meta:    maps.Clone(service.Meta),
			},
			Checks: api.HealthChecks{
				&api.HealthCheck{CheckID: checkID(id), Status: f.health[id]},
			},
		})
	}
	return entries, f.index, nil
}

// notify must be called with the lock held
func (f *fakeConsul) notify() {
	f.index++
	close(f.changed)
	f.changed = make(chan struct{})
}

func (f *fakeConsul) put(service *api.AgentServiceRegistration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.services[service.ID] = service
	f.health[service.ID] = api.HealthPassing
	f.notify()
}

func (f *fakeConsul) remove(serviceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.services, serviceID)
	f.notify()
}

func (f *fakeConsul) setHealth(serviceID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.health[serviceID] = status
	f.notify()
}

// fail makes the next n queries fail and releases the pending blocking query
func (f *fakeConsul) fail(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = n
	f.notify()
}

func (f *fakeConsul) pendingFailures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures
}

func (f *fakeConsul) setRegisterErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerErr = err
}

func (f *fakeConsul) service(serviceID string) (*api.AgentServiceRegistration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	service, ok := f.services[serviceID]
	return service, ok
}

func (f *fakeConsul) passCount(checkID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.passes[checkID]
}
