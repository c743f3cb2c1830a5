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
	"github.com/tochemey/grainmesh/discovery"
	"github.com/tochemey/grainmesh/hash"
)

// ModuloName is the name of the modulo strategy
const ModuloName = "modulo"

// Modulo reduces the key hash modulo the number of candidates sorted by ID.
// It is cheap, but most identities move on every membership change.
type Modulo struct {
	hasher hash.Hasher
}

var _ Strategy = (*Modulo)(nil)

// NewModulo creates a Modulo strategy. A nil hasher falls back to the default one.
func NewModulo(hasher hash.Hasher) *Modulo {
	if hasher == nil {
		hasher = hash.DefaultHasher()
	}
	return &Modulo{hasher: hasher}
}

// Name implementation
func (x *Modulo) Name() string {
	return ModuloName
}

// Owner implementation
func (x *Modulo) Owner(key string, candidates []*discovery.Member) (*discovery.Member, bool) {
	if len(candidates) == 0 {
		return nil, false
	}

	sorted := sortedByID(candidates)
	index := x.hasher.HashCode([]byte(key)) % uint64(len(sorted))
	return sorted[index], true
}
