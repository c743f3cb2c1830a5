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
	"strings"

	"github.com/tochemey/grainmesh/discovery"
	"github.com/tochemey/grainmesh/discovery/consul"
	"github.com/tochemey/grainmesh/discovery/kubernetes"
	gerrors "github.com/tochemey/grainmesh/errors"
	"github.com/tochemey/grainmesh/log"
)

// NewProvider creates the discovery provider of the named backend
func NewProvider(backend string, settings discovery.Config, logger log.Logger) (discovery.Provider, error) {
	if settings == nil {
		settings = discovery.NewConfig()
	}

	switch strings.ToLower(strings.TrimSpace(backend)) {
	case consul.ProviderName:
		config, err := consul.FromConfig(settings)
		if err != nil {
			return nil, gerrors.NewErrInvalidConfig(err)
		}
		provider, err := consul.NewDiscovery(config, logger)
		if err != nil {
			return nil, err
		}
		return provider, nil

	case kubernetes.ProviderName:
		config, err := kubernetes.FromConfig(settings)
		if err != nil {
			return nil, gerrors.NewErrInvalidConfig(err)
		}
		provider, err := kubernetes.NewDiscovery(config, logger)
		if err != nil {
			return nil, err
		}
		return provider, nil

	default:
		return nil, gerrors.NewErrUnknownBackend(backend)
	}
}
