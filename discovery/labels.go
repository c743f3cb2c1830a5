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
	"fmt"
	"slices"
	"strconv"
	"strings"

	goset "github.com/deckarep/golang-set/v2"
)

// Registry keys of the per-member label set.
// The keys are valid both as kubernetes label names and as consul service meta keys.
const (
	LabelCluster = "grainmesh-cluster"
	LabelKinds   = "grainmesh-kinds"
	LabelPort    = "grainmesh-port"
	LabelStatus  = "grainmesh-status"
)

const kindSeparator = ","

// Labels is the per-member label set persisted into the registry
type Labels map[string]string

// Cluster returns the cluster name label
func (l Labels) Cluster() string {
	return l[LabelCluster]
}

// Kinds returns the kinds label as a sorted, deduplicated list
func (l Labels) Kinds() []string {
	raw := strings.TrimSpace(l[LabelKinds])
	if raw == "" {
		return nil
	}
	return NormalizeKinds(strings.Split(raw, kindSeparator))
}

// Port returns the port label
func (l Labels) Port() (int, error) {
	raw, ok := l[LabelPort]
	if !ok {
		return 0, fmt.Errorf("label=(%s) not found", LabelPort)
	}
	return strconv.Atoi(raw)
}

// Status returns the encoded status value label
func (l Labels) Status() string {
	return l[LabelStatus]
}

// Member builds the member described by the labels
func (l Labels) Member(id, host string, alive bool) (*Member, error) {
	port, err := l.Port()
	if err != nil {
		return nil, err
	}

	return &Member{
		ID:     id,
		Host:   host,
		Port:   port,
		Kinds:  l.Kinds(),
		Alive:  alive,
		Status: l.Status(),
	}, nil
}

// JoinKinds renders kinds the way the kinds label stores them
func JoinKinds(kinds []string) string {
	return strings.Join(NormalizeKinds(kinds), kindSeparator)
}

// NormalizeKinds trims, deduplicates and sorts the given kinds
func NormalizeKinds(kinds []string) []string {
	set := goset.NewThreadUnsafeSet[string]()
	for _, kind := range kinds {
		if kind = strings.TrimSpace(kind); kind != "" {
			set.Add(kind)
		}
	}

	if set.Cardinality() == 0 {
		return nil
	}

	normalized := set.ToSlice()
	slices.Sort(normalized)
	return normalized
}

// MergeKinds returns the sorted union of both kind lists
func MergeKinds(existing, requested []string) []string {
	return NormalizeKinds(append(slices.Clone(existing), requested...))
}
