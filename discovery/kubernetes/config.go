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

package kubernetes

import (
	"fmt"
	"os"
	"strings"
	"time"

	"k8s.io/client-go/kubernetes"

	"github.com/tochemey/grainmesh/discovery"
	"github.com/tochemey/grainmesh/internal/validation"
)

// backend configuration keys recognized by FromConfig
const (
	NamespaceKey    = "namespace"
	PodNameKey      = "pod_name"
	ResyncPeriodKey = "resync_period"
	SyncTimeoutKey  = "sync_timeout"
)

const namespaceFile = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"

// Config defines the kubernetes provider configuration.
// Namespace and pod name are explicit so that several providers can coexist in one process.
type Config struct {
	// Namespace is the namespace of this pod and of its peers
	Namespace string
	// PodName is the name of this pod
	PodName string
	// ResyncPeriod is the informer resync period.
	// Default: 30s
	ResyncPeriod time.Duration
	// SyncTimeout bounds the initial informer cache sync of Watch.
	// Default: 30s
	SyncTimeout time.Duration
	// Client is the kubernetes API client.
	// When nil the in-cluster configuration is used.
	Client kubernetes.Interface
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets the defaults
func (config *Config) Sanitize() {
	config.Namespace = strings.TrimSpace(config.Namespace)
	config.PodName = strings.TrimSpace(config.PodName)

	if config.ResyncPeriod <= 0 {
		config.ResyncPeriod = 30 * time.Second
	}

	if config.SyncTimeout <= 0 {
		config.SyncTimeout = 30 * time.Second
	}
}

// Validate checks the configuration.
// Namespace and pod name are checked at registration time, where their absence
// means the process is not running in kubernetes.
func (config *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddAssertion(config.ResyncPeriod > 0, "ResyncPeriod is invalid").
		AddAssertion(config.SyncTimeout > 0, "SyncTimeout is invalid").
		Validate()
}

// LoadNamespace reads the namespace of the service account mounted in the pod
func LoadNamespace() (string, error) {
	bytea, err := os.ReadFile(namespaceFile)
	if err != nil {
		return "", fmt.Errorf("failed to read the pod namespace: %w", err)
	}
	return strings.TrimSpace(string(bytea)), nil
}

// FromConfig builds a sanitized Config from the backend settings.
// Missing namespace and pod name fall back to the service account namespace and the host name.
func FromConfig(settings discovery.Config) (*Config, error) {
	config := new(Config)

	var err error
	if _, ok := settings[NamespaceKey]; ok {
		if config.Namespace, err = settings.GetString(NamespaceKey); err != nil {
			return nil, err
		}
	} else if namespace, err := LoadNamespace(); err == nil {
		config.Namespace = namespace
	}

	if _, ok := settings[PodNameKey]; ok {
		if config.PodName, err = settings.GetString(PodNameKey); err != nil {
			return nil, err
		}
	} else if hostname, err := os.Hostname(); err == nil {
		config.PodName = hostname
	}

	if _, ok := settings[ResyncPeriodKey]; ok {
		if config.ResyncPeriod, err = settings.GetDuration(ResyncPeriodKey); err != nil {
			return nil, err
		}
	}

	if _, ok := settings[SyncTimeoutKey]; ok {
		if config.SyncTimeout, err = settings.GetDuration(SyncTimeoutKey); err != nil {
			return nil, err
		}
	}

	config.Sanitize()
	return config, config.Validate()
}
