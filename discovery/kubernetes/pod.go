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

package kubernetes

import (
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"

	"github.com/tochemey/grainmesh/discovery"
)

// the cluster and port are labels so that peers can select on them.
// kinds and status are annotations since their values do not fit the label value grammar.
var (
	labelKeys      = []string{discovery.LabelCluster, discovery.LabelPort}
	annotationKeys = []string{discovery.LabelKinds, discovery.LabelStatus}
)

// podLabels reads the member label set spread over the pod labels and annotations
func podLabels(pod *corev1.Pod) discovery.Labels {
	labels := make(discovery.Labels, len(labelKeys)+len(annotationKeys))
	for _, key := range labelKeys {
		if value, ok := pod.GetLabels()[key]; ok {
			labels[key] = value
		}
	}

	for _, key := range annotationKeys {
		if value, ok := pod.GetAnnotations()[key]; ok {
			labels[key] = value
		}
	}
	return labels
}

// podToMember converts a cluster pod into a Member.
// The member is alive when the pod is running and all its containers are ready.
func podToMember(pod *corev1.Pod) (*discovery.Member, error) {
	alive := pod.Status.Phase == corev1.PodRunning
	for _, status := range pod.Status.ContainerStatuses {
		alive = alive && status.Ready
	}

	member, err := podLabels(pod).Member(string(pod.GetUID()), pod.Status.PodIP, alive)
	if err != nil {
		return nil, fmt.Errorf("pod=(%s) is not a valid member: %w", pod.GetName(), err)
	}
	return member, nil
}

// hasContainerPort reports whether one of the pod containers declares the port
func hasContainerPort(pod *corev1.Pod, port int) bool {
	for _, container := range pod.Spec.Containers {
		for _, containerPort := range container.Ports {
			if int(containerPort.ContainerPort) == port {
				return true
			}
		}
	}
	return false
}

// labelsPatch renders a JSON merge patch setting the given member labels.
// A nil value removes the key.
func labelsPatch(values map[string]*string) ([]byte, error) {
	labels := make(map[string]any)
	annotations := make(map[string]any)
	for key, value := range values {
		var target map[string]any
		switch key {
		case discovery.LabelKinds, discovery.LabelStatus:
			target = annotations
		default:
			target = labels
		}

		if value == nil {
			target[key] = nil
			continue
		}
		target[key] = *value
	}

	metadata := make(map[string]any)
	if len(labels) > 0 {
		metadata["labels"] = labels
	}
	if len(annotations) > 0 {
		metadata["annotations"] = annotations
	}
	return json.Marshal(map[string]any{"metadata": metadata})
}
