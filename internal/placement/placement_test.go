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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/grainmesh/discovery"
	"github.com/tochemey/grainmesh/hash"
)

func candidates(ids ...string) []*discovery.Member {
	members := make([]*discovery.Member, 0, len(ids))
	for index, id := range ids {
		members = append(members, &discovery.Member{
			ID:    id,
			Host:  "10.0.0.1",
			Port:  9000 + index,
			Kinds: []string{"Order"},
			Alive: true,
		})
	}
	return members
}

func without(members []*discovery.Member, id string) []*discovery.Member {
	remaining := make([]*discovery.Member, 0, len(members))
	for _, member := range members {
		if member.ID != id {
			remaining = append(remaining, member)
		}
	}
	return remaining
}

func strategies() []Strategy {
	return []Strategy{NewRing(nil, 0), NewModulo(nil)}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "Order/order-42", Key("order-42", "Order"))
}

func TestOwner(t *testing.T) {
	for _, strategy := range strategies() {
		t.Run(strategy.Name(), func(t *testing.T) {
			t.Run("With no candidates", func(t *testing.T) {
				owner, ok := strategy.Owner(Key("order-42", "Order"), nil)
				assert.False(t, ok)
				assert.Nil(t, owner)
			})
			t.Run("With a single candidate", func(t *testing.T) {
				members := candidates("m1")
				for i := range 50 {
					owner, ok := strategy.Owner(Key(fmt.Sprintf("order-%d", i), "Order"), members)
					require.True(t, ok)
					assert.Equal(t, "m1", owner.ID)
				}
			})
			t.Run("With repeated calls", func(t *testing.T) {
				members := candidates("m1", "m2", "m3")
				for i := range 100 {
					key := Key(fmt.Sprintf("order-%d", i), "Order")
					first, ok := strategy.Owner(key, members)
					require.True(t, ok)
					second, ok := strategy.Owner(key, members)
					require.True(t, ok)
					assert.Equal(t, first.ID, second.ID)
				}
			})
			t.Run("With members computing independently", func(t *testing.T) {
				// each process builds its own candidates and strategy, in whatever order
				local := candidates("m1", "m2", "m3", "m4")
				remote := candidates("m4", "m2", "m3", "m1")
				var other Strategy
				switch strategy.Name() {
				case RingName:
					other = NewRing(hash.DefaultHasher(), DefaultReplicaPoints)
				default:
					other = NewModulo(hash.DefaultHasher())
				}

				for i := range 200 {
					key := Key(fmt.Sprintf("order-%d", i), "Order")
					expected, _ := strategy.Owner(key, local)
					actual, _ := other.Owner(key, remote)
					assert.Equal(t, expected.ID, actual.ID, key)
				}
			})
			t.Run("With every candidate owning identities", func(t *testing.T) {
				members := candidates("m1", "m2", "m3")
				owners := make(map[string]int)
				for i := range 1000 {
					owner, _ := strategy.Owner(Key(fmt.Sprintf("order-%d", i), "Order"), members)
					owners[owner.ID]++
				}
				assert.Len(t, owners, 3)
			})
		})
	}
}

func TestRingBoundedRemap(t *testing.T) {
	ring := NewRing(nil, DefaultReplicaPoints)
	members := candidates("m1", "m2", "m3", "m4", "m5")
	remaining := without(members, "m3")

	moved := 0
	for i := range 2000 {
		key := Key(fmt.Sprintf("order-%d", i), "Order")
		before, _ := ring.Owner(key, members)
		after, _ := ring.Owner(key, remaining)
		if before.ID != "m3" {
			assert.Equal(t, before.ID, after.ID, key)
			continue
		}
		assert.NotEqual(t, "m3", after.ID)
		moved++
	}

	// only the identities of the removed member moved
	assert.Positive(t, moved)
	assert.Less(t, moved, 2000/2)
}

func TestRingCache(t *testing.T) {
	ring := NewRing(nil, 8)
	members := candidates("m1", "m2")

	owner, ok := ring.Owner("Order/order-1", members)
	require.True(t, ok)
	assert.Equal(t, 1, ring.rings.Len())

	_, _ = ring.Owner("Order/order-2", members)
	assert.Equal(t, 1, ring.rings.Len())

	// same IDs with changed fields rebuild the ring
	moved := candidates("m1", "m2")
	moved[0].Port, moved[1].Port = 9100, 9101
	updated, ok := ring.Owner("Order/order-1", moved)
	require.True(t, ok)
	assert.Equal(t, owner.ID, updated.ID)
	assert.GreaterOrEqual(t, updated.Port, 9100)

	for i := range maxCachedRings + 1 {
		_, _ = ring.Owner("Order/order-1", candidates(fmt.Sprintf("n%d", i)))
	}
	assert.LessOrEqual(t, ring.rings.Len(), maxCachedRings)
}

func TestModuloHasher(t *testing.T) {
	// a constant hash always picks the first candidate by ID
	modulo := NewModulo(hash.HasherFunc(func([]byte) uint64 { return 0 }))
	owner, ok := modulo.Owner("Order/order-42", candidates("m3", "m1", "m2"))
	require.True(t, ok)
	assert.Equal(t, "m1", owner.ID)
}
