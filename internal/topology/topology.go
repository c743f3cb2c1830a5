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

package topology

import (
	"slices"
	"strings"

	"github.com/dgryski/go-farm"

	"github.com/tochemey/grainmesh/discovery"
)

const idSeparator = ";"

// Topology is a versioned view of the cluster members.
// A published Topology is never mutated.
type Topology struct {
	// Version increases by one on every publication of an assembler
	Version uint64
	// Members lists the candidates sorted by ID
	Members []*discovery.Member
	// All lists every known member sorted by ID, candidates or not
	All []*discovery.Member
	// Hash fingerprints the candidate IDs so that views can be compared across members
	Hash uint32
}

// New builds the topology of the given members.
// The members are copied.
func New(version uint64, members []*discovery.Member) *Topology {
	all := make([]*discovery.Member, 0, len(members))
	for _, member := range members {
		all = append(all, member.Clone())
	}

	slices.SortFunc(all, func(a, b *discovery.Member) int {
		return strings.Compare(a.ID, b.ID)
	})

	candidates := make([]*discovery.Member, 0, len(all))
	ids := make([]string, 0, len(all))
	for _, member := range all {
		if member.IsCandidate() {
			candidates = append(candidates, member)
			ids = append(ids, member.ID)
		}
	}

	return &Topology{
		Version: version,
		Members: candidates,
		All:     all,
		Hash:    farm.Fingerprint32([]byte(strings.Join(ids, idSeparator))),
	}
}

// Member returns the known member with the given id
func (t *Topology) Member(id string) (*discovery.Member, bool) {
	index, ok := slices.BinarySearchFunc(t.All, id, func(member *discovery.Member, id string) int {
		return strings.Compare(member.ID, id)
	})
	if !ok {
		return nil, false
	}
	return t.All[index], true
}

// IsCandidate reports whether the given member id is a candidate of this topology
func (t *Topology) IsCandidate(id string) bool {
	member, ok := t.Member(id)
	return ok && member.IsCandidate()
}

// Candidates returns the candidates hosting the given kind, sorted by ID
func (t *Topology) Candidates(kind string) []*discovery.Member {
	candidates := make([]*discovery.Member, 0, len(t.Members))
	for _, member := range t.Members {
		if member.HasKind(kind) {
			candidates = append(candidates, member)
		}
	}
	return candidates
}

// SameMembers reports whether both topologies carry the same members,
// regardless of their versions
func (t *Topology) SameMembers(other *Topology) bool {
	if other == nil {
		return false
	}
	return slices.EqualFunc(t.All, other.All, func(a, b *discovery.Member) bool {
		return a.Equal(b)
	})
}
