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
	"slices"
	"strconv"
)

// Member is one process participating in the cluster
// as reported by a discovery backend.
type Member struct {
	// ID is the stable unique token of the member, e.g. the pod UID
	ID string
	// Host is the advertised host
	Host string
	// Port is the advertised port
	Port int
	// Kinds lists the virtual actor kinds the member can host, sorted
	Kinds []string
	// Alive states whether the backend considers the member ready
	Alive bool
	// Status is the encoded application status value
	Status string
}

// Address returns the member host:port
func (m *Member) Address() string {
	return net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
}

// HasKind reports whether the member can host the given kind
func (m *Member) HasKind(kind string) bool {
	return slices.Contains(m.Kinds, kind)
}

// IsCandidate reports whether the member is eligible to own identities:
// alive with a resolvable address.
func (m *Member) IsCandidate() bool {
	return m.Alive && m.Host != "" && m.Port > 0
}

// Equal reports whether both members carry the same field values
func (m *Member) Equal(other *Member) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.ID == other.ID &&
		m.Host == other.Host &&
		m.Port == other.Port &&
		m.Alive == other.Alive &&
		m.Status == other.Status &&
		slices.Equal(m.Kinds, other.Kinds)
}

// Clone returns a deep copy of the member
func (m *Member) Clone() *Member {
	clone := *m
	clone.Kinds = slices.Clone(m.Kinds)
	return &clone
}
