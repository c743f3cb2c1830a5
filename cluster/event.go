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
	"slices"
	"strings"

	"github.com/tochemey/grainmesh/discovery"
	"github.com/tochemey/grainmesh/internal/topology"
)

// TopologyTopic is the events stream topic cluster events are published on
const TopologyTopic = "grainmesh.cluster.topology"

// View is a snapshot of the membership known by this member
type View struct {
	// Version increases on every membership change observed by this member
	Version uint64
	// Hash fingerprints the candidates. Members holding the same candidates share it.
	Hash uint32
	// Candidates lists the members eligible to own identities, sorted by ID
	Candidates []*discovery.Member
	// Members lists every known member, sorted by ID
	Members []*discovery.Member
}

// TopologyChanged is published whenever a new topology is applied
type TopologyChanged struct {
	View
}

// MemberJoined is published when a member becomes a candidate
type MemberJoined struct {
	Member *discovery.Member
}

// MemberLeft is published when a member stops being a candidate
type MemberLeft struct {
	Member *discovery.Member
}

func newView(snapshot *topology.Topology) *View {
	return &View{
		Version:    snapshot.Version,
		Hash:       snapshot.Hash,
		Candidates: slices.Clone(snapshot.Members),
		Members:    slices.Clone(snapshot.All),
	}
}

// candidatesDiff returns the candidates that joined and left between two topologies
func candidatesDiff(previous, current *topology.Topology) (joined, left []*discovery.Member) {
	var before []*discovery.Member
	if previous != nil {
		before = previous.Members
	}

	after := current.Members
	i, j := 0, 0
	for i < len(before) || j < len(after) {
		switch {
		case j == len(after):
			left = append(left, before[i])
			i++
		case i == len(before):
			joined = append(joined, after[j])
			j++
		default:
			switch c := strings.Compare(before[i].ID, after[j].ID); {
			case c < 0:
				left = append(left, before[i])
				i++
			case c > 0:
				joined = append(joined, after[j])
				j++
			default:
				i++
				j++
			}
		}
	}
	return joined, left
}
