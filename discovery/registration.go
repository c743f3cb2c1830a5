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
	"net"
	"strconv"

	"github.com/tochemey/grainmesh/internal/validation"
)

// Registration is the membership fact a member announces to the registry
type Registration struct {
	// ClusterName is the logical cluster identifier
	ClusterName string
	// Host is the advertised host
	Host string
	// Port is the advertised port
	Port int
	// Kinds lists the virtual actor kinds this process can host
	Kinds []string
	// StatusValue is the optional application status payload
	StatusValue any
	// StatusCodec serializes StatusValue. Defaults to NoopCodec.
	StatusCodec StatusCodec
}

var _ validation.Validator = (*Registration)(nil)

// Validate checks the registration
func (r *Registration) Validate() error {
	chain := validation.New(validation.AllErrors()).
		AddValidator(validation.NewEmptyStringValidator("ClusterName", r.ClusterName)).
		AddValidator(validation.NewNameValidator("ClusterName", r.ClusterName)).
		AddValidator(validation.NewAddressValidator(r.Host, r.Port))

	for _, kind := range r.Kinds {
		chain.AddValidator(validation.NewNameValidator("Kind", kind))
	}
	return chain.Validate()
}

// Address returns the advertised host:port
func (r *Registration) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// EncodeStatus encodes the given status value with the registration codec
func (r *Registration) EncodeStatus(value any) (string, error) {
	codec := r.StatusCodec
	if codec == nil {
		codec = NoopCodec{}
	}
	return codec.Encode(value)
}

// Labels renders the label set of the registration
func (r *Registration) Labels() (Labels, error) {
	status, err := r.EncodeStatus(r.StatusValue)
	if err != nil {
		return nil, err
	}

	return Labels{
		LabelCluster: r.ClusterName,
		LabelKinds:   JoinKinds(r.Kinds),
		LabelPort:    strconv.Itoa(r.Port),
		LabelStatus:  status,
	}, nil
}
