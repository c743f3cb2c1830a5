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
	"go.uber.org/atomic"
)

// Store holds the current topology.
// It only moves forward: a topology whose version is not strictly greater
// than the current one is dropped.
type Store struct {
	current *atomic.Pointer[Topology]
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{current: atomic.NewPointer[Topology](nil)}
}

// Apply sets the given topology as the current one.
// It returns false when the topology is older than or as old as the current one.
func (s *Store) Apply(topology *Topology) bool {
	if topology == nil {
		return false
	}

	for {
		current := s.current.Load()
		if current != nil && topology.Version <= current.Version {
			return false
		}

		if s.current.CompareAndSwap(current, topology) {
			return true
		}
	}
}

// Current returns the current topology, nil before the first one
func (s *Store) Current() *Topology {
	return s.current.Load()
}
