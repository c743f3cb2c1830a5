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
	"time"

	"github.com/tochemey/grainmesh/discovery"
	"github.com/tochemey/grainmesh/internal/validation"
)

// backend configuration keys recognized by FromConfig
const (
	AddressKey    = "address"
	DatacenterKey = "datacenter"
	TokenKey      = "token"
	ServiceIDKey  = "service_id"
	TTLKey        = "ttl"
	WaitTimeKey   = "wait_time"
	AllowStaleKey = "allow_stale"
	RetriesKey    = "watch_retries"
)

// Config defines the configuration options for the Consul provider.
type Config struct {
	// Address is the address of the Consul agent to connect to.
	// Default: "127.0.0.1:8500"
	Address string
	// Datacenter specifies the Consul datacenter to use.
	// If empty, the agent's default datacenter is used.
	Datacenter string
	// Token is the Consul ACL token used for authenticated requests.
	Token string
	// Timeout bounds every write issued to the agent.
	// Default: 10s
	Timeout time.Duration
	// ServiceID overrides the registered service ID, which is also the member ID.
	// Default: "<cluster>-<host>:<port>"
	ServiceID string
	// QueryOptions specifies the blocking query options used by Watch.
	QueryOptions *QueryOptions
	// HealthCheck configures the TTL check attached to the registered service.
	HealthCheck *HealthCheck
	// WatchRetries is the number of consecutive failed queries tolerated
	// before Watch emits a terminal WatchFailed.
	// Default: 5
	WatchRetries int
	// WatchRetryDelay is the initial backoff between failed queries.
	// Default: 200ms
	WatchRetryDelay time.Duration
	// WatchMaxRetryDelay caps the backoff between failed queries.
	// Default: 5s
	WatchMaxRetryDelay time.Duration
}

var _ validation.Validator = (*Config)(nil)

// QueryOptions defines the options of the blocking health query
type QueryOptions struct {
	// WaitTime is the maximum duration a blocking query waits for changes.
	// Default: 10s
	WaitTime time.Duration
	// AllowStale indicates whether results may be served by follower servers.
	AllowStale bool
	// Near sorts the results by network distance to the given node.
	Near string
}

// HealthCheck defines the TTL check of the registered service.
// The provider heartbeats the check every TTL/2.
type HealthCheck struct {
	// TTL is the time to live of the check.
	// Default: 10s
	TTL time.Duration
	// DeregisterCriticalServiceAfter lets the agent reap the service
	// when the check stays critical for that long.
	// Default: 1m
	DeregisterCriticalServiceAfter time.Duration
}

// Sanitize sets the defaults
func (config *Config) Sanitize() {
	if config.Address == "" {
		config.Address = "127.0.0.1:8500"
	}

	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	if config.QueryOptions == nil {
		config.QueryOptions = new(QueryOptions)
	}

	if config.QueryOptions.WaitTime <= 0 {
		config.QueryOptions.WaitTime = 10 * time.Second
	}

	if config.HealthCheck == nil {
		config.HealthCheck = new(HealthCheck)
	}

	if config.HealthCheck.TTL <= 0 {
		config.HealthCheck.TTL = 10 * time.Second
	}

	if config.HealthCheck.DeregisterCriticalServiceAfter <= 0 {
		config.HealthCheck.DeregisterCriticalServiceAfter = time.Minute
	}

	if config.WatchRetries <= 0 {
		config.WatchRetries = 5
	}

	if config.WatchRetryDelay <= 0 {
		config.WatchRetryDelay = 200 * time.Millisecond
	}

	if config.WatchMaxRetryDelay < config.WatchRetryDelay {
		config.WatchMaxRetryDelay = max(5*time.Second, config.WatchRetryDelay)
	}
}

// Validate checks if the configuration is valid.
func (config *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("Address", config.Address)).
		AddAssertion(config.HealthCheck != nil && config.HealthCheck.TTL > 0, "HealthCheck TTL is invalid").
		AddAssertion(config.QueryOptions != nil && config.QueryOptions.WaitTime > 0, "QueryOptions WaitTime is invalid").
		AddAssertion(config.WatchRetries > 0, "WatchRetries is invalid").
		Validate()
}

// FromConfig builds a sanitized Config from the backend settings
func FromConfig(settings discovery.Config) (*Config, error) {
	config := &Config{
		QueryOptions: new(QueryOptions),
		HealthCheck:  new(HealthCheck),
	}

	var err error
	if _, ok := settings[AddressKey]; ok {
		if config.Address, err = settings.GetString(AddressKey); err != nil {
			return nil, err
		}
	}

	if _, ok := settings[DatacenterKey]; ok {
		if config.Datacenter, err = settings.GetString(DatacenterKey); err != nil {
			return nil, err
		}
	}

	if _, ok := settings[TokenKey]; ok {
		if config.Token, err = settings.GetString(TokenKey); err != nil {
			return nil, err
		}
	}

	if _, ok := settings[ServiceIDKey]; ok {
		if config.ServiceID, err = settings.GetString(ServiceIDKey); err != nil {
			return nil, err
		}
	}

	if _, ok := settings[TTLKey]; ok {
		if config.HealthCheck.TTL, err = settings.GetDuration(TTLKey); err != nil {
			return nil, err
		}
	}

	if _, ok := settings[WaitTimeKey]; ok {
		if config.QueryOptions.WaitTime, err = settings.GetDuration(WaitTimeKey); err != nil {
			return nil, err
		}
	}

	if _, ok := settings[AllowStaleKey]; ok {
		if config.QueryOptions.AllowStale, err = settings.GetBool(AllowStaleKey); err != nil {
			return nil, err
		}
	}

	if _, ok := settings[RetriesKey]; ok {
		if config.WatchRetries, err = settings.GetInt(RetriesKey); err != nil {
			return nil, err
		}
	}

	config.Sanitize()
	return config, config.Validate()
}
