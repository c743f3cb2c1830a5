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
	"slices"
	"strings"

	"github.com/tochemey/grainmesh/discovery"
)

// Strategy computes the owner of an identity key among candidates.
// Owner is a pure function: members holding the same candidates agree on the owner.
type Strategy interface {
	// Name returns the strategy name
	Name() string
	// Owner returns the candidate owning the key.
	// It returns false when there is no candidate.
	Owner(key string, candidates []*discovery.Member) (*discovery.Member, bool)
}

// Key returns the placement key of an identity of a given kind
func Key(identity, kind string) string {
	return kind + "/" + identity
}

// sortedByID returns the candidates sorted by ID, copying them only when needed
func sortedByID(candidates []*discovery.Member) []*discovery.Member {
	byID := func(a, b *discovery.Member) int {
		return strings.Compare(a.ID, b.ID)
	}

	if slices.IsSortedFunc(candidates, byID) {
		return candidates
	}

	sorted := slices.Clone(candidates)
	slices.SortFunc(sorted, byID)
	return sorted
}
