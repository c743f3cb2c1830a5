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

	"github.com/hashicorp/consul/api"
)

// client is the slice of the consul API the provider relies on
type client interface {
	Register(ctx context.Context, service *api.AgentServiceRegistration) error
	Deregister(ctx context.Context, serviceID string) error
	PassTTL(ctx context.Context, checkID string) error
	// Services runs a blocking health query and returns the entries with the next wait index
	Services(ctx context.Context, cluster string, waitIndex uint64, options *QueryOptions) ([]*api.ServiceEntry, uint64, error)
}

// apiClient implements client on top of the consul agent HTTP API
type apiClient struct {
	client *api.Client
}

var _ client = (*apiClient)(nil)

func newAPIClient(config *Config) (*apiClient, error) {
	consulConfig := api.DefaultConfig()
	consulConfig.Address = config.Address
	consulConfig.Datacenter = config.Datacenter
	consulConfig.Token = config.Token

	consulClient, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return &apiClient{client: consulClient}, nil
}

func (c *apiClient) Register(ctx context.Context, service *api.AgentServiceRegistration) error {
	opts := api.ServiceRegisterOpts{ReplaceExistingChecks: true}.WithContext(ctx)
	return c.client.Agent().ServiceRegisterOpts(service, opts)
}

func (c *apiClient) Deregister(ctx context.Context, serviceID string) error {
	return c.client.Agent().ServiceDeregisterOpts(serviceID, (&api.QueryOptions{}).WithContext(ctx))
}

func (c *apiClient) PassTTL(ctx context.Context, checkID string) error {
	return c.client.Agent().UpdateTTLOpts(checkID, "", api.HealthPassing, (&api.QueryOptions{}).WithContext(ctx))
}

func (c *apiClient) Services(ctx context.Context, cluster string, waitIndex uint64, options *QueryOptions) ([]*api.ServiceEntry, uint64, error) {
	query := &api.QueryOptions{
		WaitIndex:  waitIndex,
		WaitTime:   options.WaitTime,
		AllowStale: options.AllowStale,
		Near:       options.Near,
	}

	entries, meta, err := c.client.Health().Service(cluster, cluster, false, query.WithContext(ctx))
	if err != nil {
		return nil, 0, err
	}
	return entries, meta.LastIndex, nil
}
