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

package placement

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dgryski/go-farm"

	"github.com/tochemey/grainmesh/discovery"
	"github.com/tochemey/grainmesh/hash"
	"github.com/tochemey/grainmesh/internal/xsync"
)

const (
	// RingName is the name of the consistent hash ring strategy
	RingName = "ring"
	// DefaultReplicaPoints is the default number of points per candidate on the ring
	DefaultReplicaPoints = 64

	maxCachedRings = 32
)

// replicaPoint is one position of a candidate on the ring
type replicaPoint struct {
	point  uint64
	member *discovery.Member
}

// hashRing is the immutable ring of one candidate set
type hashRing struct {
	points  []replicaPoint
	members map[string]*discovery.Member
}

// Ring is a consistent hash ring strategy.
// Removing a candidate only moves the identities it owned.
type Ring struct {
	hasher        hash.Hasher
	replicaPoints int
	rings         *xsync.Map[uint64, *hashRing]
}

var _ Strategy = (*Ring)(nil)

// NewRing creates a Ring strategy. A nil hasher falls back to the default one
// and a non positive replicaPoints to DefaultReplicaPoints.
func NewRing(hasher hash.Hasher, replicaPoints int) *Ring {
	if hasher == nil {
		hasher = hash.DefaultHasher()
	}

	if replicaPoints <= 0 {
		replicaPoints = DefaultReplicaPoints
	}

	return &Ring{
		hasher:        hasher,
		replicaPoints: replicaPoints,
		rings:         xsync.NewMap[uint64, *hashRing](),
	}
}

// Name implementation
func (x *Ring) Name() string {
	return RingName
}

// Owner implementation
func (x *Ring) Owner(key string, candidates []*discovery.Member) (*discovery.Member, bool) {
	if len(candidates) == 0 {
		return nil, false
	}

	ring := x.ring(sortedByID(candidates))
	point := x.hasher.HashCode([]byte(key))
	index := sort.Search(len(ring.points), func(i int) bool {
		return ring.points[i].point >= point
	})

	// wrap around
	if index == len(ring.points) {
		index = 0
	}
	return ring.points[index].member, true
}

// ring returns the ring of the candidates, building it on a cache miss.
// Rings are keyed by the candidates fingerprint.
func (x *Ring) ring(candidates []*discovery.Member) *hashRing {
	fingerprint := fingerprint(candidates)
	if cached, ok := x.rings.Get(fingerprint); ok && sameCandidates(cached, candidates) {
		return cached
	}

	ring := x.build(candidates)
	if x.rings.Len() >= maxCachedRings {
		x.rings.Reset()
	}
	x.rings.Set(fingerprint, ring)
	return ring
}

func (x *Ring) build(candidates []*discovery.Member) *hashRing {
	points := make([]replicaPoint, 0, len(candidates)*x.replicaPoints)
	members := make(map[string]*discovery.Member, len(candidates))
	for _, member := range candidates {
		members[member.ID] = member
		for replica := range x.replicaPoints {
			identity := member.ID + "#" + strconv.Itoa(replica)
			points = append(points, replicaPoint{
				point:  x.hasher.HashCode([]byte(identity)),
				member: member,
			})
		}
	}

	// colliding points are ordered by member ID so that every member builds the same ring
	sort.Slice(points, func(i, j int) bool {
		if points[i].point != points[j].point {
			return points[i].point < points[j].point
		}
		return points[i].member.ID < points[j].member.ID
	})

	return &hashRing{points: points, members: members}
}

func fingerprint(candidates []*discovery.Member) uint64 {
	ids := make([]string, len(candidates))
	for i, member := range candidates {
		ids[i] = member.ID
	}
	return farm.Fingerprint64([]byte(strings.Join(ids, ";")))
}

// sameCandidates guards the cache against fingerprint collisions and
// against members whose fields changed under the same ID
func sameCandidates(ring *hashRing, candidates []*discovery.Member) bool {
	if len(ring.members) != len(candidates) {
		return false
	}

	for _, member := range candidates {
		if cached, ok := ring.members[member.ID]; !ok || !cached.Equal(member) {
			return false
		}
	}
	return true
}
