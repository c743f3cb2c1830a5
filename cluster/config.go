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
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tochemey/grainmesh/discovery"
	"github.com/tochemey/grainmesh/discovery/consul"
	"github.com/tochemey/grainmesh/discovery/kubernetes"
	gerrors "github.com/tochemey/grainmesh/errors"
	"github.com/tochemey/grainmesh/internal/validation"
	"github.com/tochemey/grainmesh/log"
)

const (
	// DefaultShutdownTimeout is the default bound of Shutdown
	DefaultShutdownTimeout = 30 * time.Second
	// DefaultWatchRetryDelay is the default initial delay between watch restarts
	DefaultWatchRetryDelay = 200 * time.Millisecond
	// DefaultWatchMaxRetryDelay is the default maximum delay between watch restarts
	DefaultWatchMaxRetryDelay = 10 * time.Second
)

// Config is the operator facing configuration of a cluster member
type Config struct {
	// ClusterName is the logical cluster identifier
	ClusterName string
	// DiscoveryBackend is the discovery backend: consul or kubernetes
	DiscoveryBackend string
	// BackendConfig holds the backend connection settings
	BackendConfig discovery.Config
	// Host is the advertised host
	Host string
	// Port is the advertised port
	Port int
	// Kinds lists the virtual actor kinds this member can host
	Kinds []string
	// StatusValue is the optional application status payload
	StatusValue any
	// StatusCodec serializes StatusValue
	StatusCodec discovery.StatusCodec
	// CoalesceWindow is the window presence events are folded in.
	// Zero means the default.
	CoalesceWindow time.Duration
	// ShutdownTimeout bounds Shutdown. Zero means the default.
	ShutdownTimeout time.Duration
	// Logger is the logger. Defaults to log.DefaultLogger.
	Logger log.Logger
}

var _ validation.Validator = (*Config)(nil)

// Sanitize trims the settings and sets the defaults
func (config *Config) Sanitize() {
	config.ClusterName = strings.TrimSpace(config.ClusterName)
	config.DiscoveryBackend = strings.ToLower(strings.TrimSpace(config.DiscoveryBackend))
	config.Host = strings.TrimSpace(config.Host)
	config.Kinds = discovery.NormalizeKinds(config.Kinds)

	if config.BackendConfig == nil {
		config.BackendConfig = discovery.NewConfig()
	}

	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}

	if config.Logger == nil {
		config.Logger = log.DefaultLogger
	}
}

// Validate checks the configuration
func (config *Config) Validate() error {
	backends := []string{consul.ProviderName, kubernetes.ProviderName}
	chain := validation.New(validation.AllErrors()).
		AddValidator(validation.NewEmptyStringValidator("ClusterName", config.ClusterName)).
		AddValidator(validation.NewNameValidator("ClusterName", config.ClusterName)).
		AddAssertion(slices.Contains(backends, config.DiscoveryBackend),
			fmt.Sprintf("the [DiscoveryBackend] value=(%s) is not one of %v", config.DiscoveryBackend, backends)).
		AddValidator(validation.NewAddressValidator(config.Host, config.Port)).
		AddAssertion(config.CoalesceWindow >= 0, "the [CoalesceWindow] is invalid")

	for _, kind := range config.Kinds {
		chain.AddValidator(validation.NewNameValidator("Kind", kind))
	}
	return chain.Validate()
}

// NewFromConfig creates a cluster member from the configuration.
// The options are applied after the configuration.
func NewFromConfig(config *Config, opts ...Option) (*Cluster, error) {
	if config == nil {
		return nil, gerrors.NewErrInvalidConfig(fmt.Errorf("cluster config is required"))
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, gerrors.NewErrInvalidConfig(err)
	}

	provider, err := NewProvider(config.DiscoveryBackend, config.BackendConfig, config.Logger)
	if err != nil {
		return nil, err
	}

	options := []Option{
		WithHost(config.Host),
		WithPort(config.Port),
		WithKinds(config.Kinds...),
		WithStatus(config.StatusValue, config.StatusCodec),
		WithLogger(config.Logger),
		WithShutdownTimeout(config.ShutdownTimeout),
	}

	if config.CoalesceWindow > 0 {
		options = append(options, WithCoalesceWindow(config.CoalesceWindow))
	}

	return New(config.ClusterName, provider, append(options, opts...)...)
}
