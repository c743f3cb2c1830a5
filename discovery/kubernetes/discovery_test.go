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
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes/fake"
	clienttesting "k8s.io/client-go/testing"

	"github.com/tochemey/grainmesh/discovery"
	gerrors "github.com/tochemey/grainmesh/errors"
	"github.com/tochemey/grainmesh/log"
)

const (
	namespace = "default"
	ownPod    = "orders-0"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("k8s.io/klog/v2.(*flushDaemon).run.func1"),
		goleak.IgnoreTopFunction("k8s.io/apimachinery/pkg/watch.(*Broadcaster).loop"))
}

func newPod(name, ip string, ready bool, labels, annotations map[string]string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   namespace,
			UID:         types.UID("uid-" + name),
			Labels:      labels,
			Annotations: annotations,
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{
				{
					Name:  "grainmesh",
					Ports: []corev1.ContainerPort{{Name: "remoting", ContainerPort: 9000}},
				},
			},
		},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			PodIP: ip,
			ContainerStatuses: []corev1.ContainerStatus{
				{Name: "grainmesh", Ready: ready},
			},
		},
	}
}

func memberPod(name, ip, cluster string, ready bool) *corev1.Pod {
	return newPod(name, ip, ready,
		map[string]string{
			discovery.LabelCluster: cluster,
			discovery.LabelPort:    "9000",
		},
		map[string]string{
			discovery.LabelKinds: "Order",
		})
}

// newClient returns a fake clientset together with a channel closed once the
// first pods watch is established. The fake clientset does not replay events
// that happen between the informer list and its watch.
func newClient(objects ...runtime.Object) (*fake.Clientset, <-chan struct{}) {
	client := fake.NewClientset(objects...)
	started := make(chan struct{})
	var once sync.Once
	client.PrependWatchReactor("pods", func(action clienttesting.Action) (bool, watch.Interface, error) {
		watcher, err := client.Tracker().Watch(action.GetResource(), action.GetNamespace())
		if err != nil {
			return false, nil, err
		}
		once.Do(func() { close(started) })
		return true, watcher, nil
	})
	return client, started
}

func newTestDiscovery(t *testing.T, client *fake.Clientset) *Discovery {
	t.Helper()
	provider, err := NewDiscovery(&Config{
		Namespace:   namespace,
		PodName:     ownPod,
		SyncTimeout: 3 * time.Second,
		Client:      client,
	}, log.DiscardLogger)
	require.NoError(t, err)
	return provider
}

func testRegistration() discovery.Registration {
	return discovery.Registration{
		ClusterName: "orders",
		Host:        "10.0.0.1",
		Port:        9000,
		Kinds:       []string{"Order"},
		StatusValue: "starting",
		StatusCodec: discovery.StringCodec{},
	}
}

func getPod(t *testing.T, client *fake.Clientset, name string) *corev1.Pod {
	t.Helper()
	pod, err := client.CoreV1().Pods(namespace).Get(context.Background(), name, metav1.GetOptions{})
	require.NoError(t, err)
	return pod
}

func next(t *testing.T, events <-chan discovery.Event) discovery.Event {
	t.Helper()
	select {
	case event, ok := <-events:
		require.True(t, ok, "events channel closed")
		return event
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no event received")
		return nil
	}
}

func waitStarted(t *testing.T, started <-chan struct{}) {
	t.Helper()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "pods watch not started")
	}
}

func TestConfig(t *testing.T) {
	t.Run("With defaults", func(t *testing.T) {
		config := &Config{Namespace: " default ", PodName: "orders-0 "}
		config.Sanitize()
		require.NoError(t, config.Validate())
		assert.Equal(t, "default", config.Namespace)
		assert.Equal(t, "orders-0", config.PodName)
		assert.Equal(t, 30*time.Second, config.ResyncPeriod)
		assert.Equal(t, 30*time.Second, config.SyncTimeout)
	})
	t.Run("With FromConfig", func(t *testing.T) {
		config, err := FromConfig(discovery.Config{
			NamespaceKey:    "payments",
			PodNameKey:      "payments-1",
			ResyncPeriodKey: "1m",
			SyncTimeoutKey:  5 * time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, "payments", config.Namespace)
		assert.Equal(t, "payments-1", config.PodName)
		assert.Equal(t, time.Minute, config.ResyncPeriod)
		assert.Equal(t, 5*time.Second, config.SyncTimeout)
	})
	t.Run("With invalid FromConfig value", func(t *testing.T) {
		_, err := FromConfig(discovery.Config{
			NamespaceKey:   "payments",
			PodNameKey:     "payments-1",
			SyncTimeoutKey: true,
		})
		require.Error(t, err)
	})
}

func TestPodToMember(t *testing.T) {
	t.Run("With ready pod", func(t *testing.T) {
		pod := memberPod("orders-1", "10.0.0.2", "orders", true)
		pod.Annotations[discovery.LabelKinds] = "Payment,Order"
		pod.Annotations[discovery.LabelStatus] = "ready"

		member, err := podToMember(pod)
		require.NoError(t, err)
		assert.Equal(t, "uid-orders-1", member.ID)
		assert.Equal(t, "10.0.0.2:9000", member.Address())
		assert.Equal(t, []string{"Order", "Payment"}, member.Kinds)
		assert.Equal(t, "ready", member.Status)
		assert.True(t, member.IsCandidate())
	})
	t.Run("With pending pod", func(t *testing.T) {
		pod := memberPod("orders-1", "", "orders", false)
		pod.Status.Phase = corev1.PodPending

		member, err := podToMember(pod)
		require.NoError(t, err)
		assert.False(t, member.Alive)
		assert.False(t, member.IsCandidate())
	})
	t.Run("With one container not ready", func(t *testing.T) {
		pod := memberPod("orders-1", "10.0.0.2", "orders", true)
		pod.Status.ContainerStatuses = append(pod.Status.ContainerStatuses, corev1.ContainerStatus{Name: "sidecar"})

		member, err := podToMember(pod)
		require.NoError(t, err)
		assert.False(t, member.Alive)
	})
	t.Run("With missing port label", func(t *testing.T) {
		pod := memberPod("orders-1", "10.0.0.2", "orders", true)
		delete(pod.Labels, discovery.LabelPort)

		_, err := podToMember(pod)
		require.Error(t, err)
	})
}

func TestLabelsPatch(t *testing.T) {
	cluster := "orders"
	kinds := "Order"
	data, err := labelsPatch(map[string]*string{
		discovery.LabelCluster: &cluster,
		discovery.LabelKinds:   &kinds,
		discovery.LabelPort:    nil,
	})
	require.NoError(t, err)

	var patch map[string]map[string]map[string]*string
	require.NoError(t, json.Unmarshal(data, &patch))

	metadata := patch["metadata"]
	require.Contains(t, metadata["labels"], discovery.LabelPort)
	assert.Nil(t, metadata["labels"][discovery.LabelPort])
	assert.Equal(t, "orders", *metadata["labels"][discovery.LabelCluster])
	assert.Equal(t, "Order", *metadata["annotations"][discovery.LabelKinds])
	assert.NotContains(t, metadata["labels"], discovery.LabelKinds)
}

func TestRegister(t *testing.T) {
	t.Run("With labels and annotations patched", func(t *testing.T) {
		pod := newPod(ownPod, "10.0.0.1", true, map[string]string{"app": "orders"},
			map[string]string{discovery.LabelKinds: "Invoice"})
		client, _ := newClient(pod)
		provider := newTestDiscovery(t, client)
		assert.Equal(t, ProviderName, provider.ID())

		require.NoError(t, provider.Register(context.Background(), testRegistration()))

		actual := getPod(t, client, ownPod)
		assert.Equal(t, "orders", actual.Labels[discovery.LabelCluster])
		assert.Equal(t, "9000", actual.Labels[discovery.LabelPort])
		assert.Equal(t, "orders", actual.Labels["app"])
		assert.Equal(t, "Invoice,Order", actual.Annotations[discovery.LabelKinds])
		assert.Equal(t, "starting", actual.Annotations[discovery.LabelStatus])

		// registering again is an upsert
		require.NoError(t, provider.Register(context.Background(), testRegistration()))
		assert.Equal(t, "Invoice,Order", getPod(t, client, ownPod).Annotations[discovery.LabelKinds])
		require.NoError(t, provider.Close())
	})
	t.Run("With not running in kubernetes", func(t *testing.T) {
		client, _ := newClient()
		provider, err := NewDiscovery(&Config{Client: client}, log.DiscardLogger)
		require.NoError(t, err)

		err = provider.Register(context.Background(), testRegistration())
		require.ErrorIs(t, err, gerrors.ErrRegistration)
		var registrationErr *gerrors.RegistrationError
		require.True(t, errors.As(err, &registrationErr))
		assert.Equal(t, ProviderName, registrationErr.Backend())
	})
	t.Run("With own pod not found", func(t *testing.T) {
		client, _ := newClient()
		provider := newTestDiscovery(t, client)
		err := provider.Register(context.Background(), testRegistration())
		require.ErrorIs(t, err, gerrors.ErrRegistration)
	})
	t.Run("With invalid registration", func(t *testing.T) {
		client, _ := newClient(newPod(ownPod, "10.0.0.1", true, nil, nil))
		provider := newTestDiscovery(t, client)
		registration := testRegistration()
		registration.Port = 0
		err := provider.Register(context.Background(), registration)
		require.ErrorIs(t, err, gerrors.ErrRegistration)
	})
	t.Run("With patch rejected", func(t *testing.T) {
		client, _ := newClient(newPod(ownPod, "10.0.0.1", true, nil, nil))
		client.PrependReactor("patch", "pods", func(clienttesting.Action) (bool, runtime.Object, error) {
			return true, nil, errors.New("forbidden")
		})
		provider := newTestDiscovery(t, client)
		err := provider.Register(context.Background(), testRegistration())
		require.ErrorIs(t, err, gerrors.ErrRegistration)
		assert.ErrorIs(t, provider.UpdateStatus(context.Background(), "ready"), gerrors.ErrNotRegistered)
	})
	t.Run("With closed provider", func(t *testing.T) {
		client, _ := newClient(newPod(ownPod, "10.0.0.1", true, nil, nil))
		provider := newTestDiscovery(t, client)
		require.NoError(t, provider.Close())
		err := provider.Register(context.Background(), testRegistration())
		require.ErrorIs(t, err, gerrors.ErrAlreadyClosed)
	})
}

func TestUpdateStatus(t *testing.T) {
	client, _ := newClient(newPod(ownPod, "10.0.0.1", true, nil, nil))
	provider := newTestDiscovery(t, client)
	ctx := context.Background()

	require.ErrorIs(t, provider.UpdateStatus(ctx, "ready"), gerrors.ErrNotRegistered)

	require.NoError(t, provider.Register(ctx, testRegistration()))
	require.NoError(t, provider.UpdateStatus(ctx, "ready"))
	assert.Equal(t, "ready", getPod(t, client, ownPod).Annotations[discovery.LabelStatus])

	require.ErrorIs(t, provider.UpdateStatus(ctx, 42), gerrors.ErrStatusEncoding)
	assert.Equal(t, "ready", getPod(t, client, ownPod).Annotations[discovery.LabelStatus])
}

func TestDeregister(t *testing.T) {
	client, _ := newClient(newPod(ownPod, "10.0.0.1", true, nil, nil))
	provider := newTestDiscovery(t, client)
	ctx := context.Background()

	// not registered yet
	require.NoError(t, provider.Deregister(ctx))

	require.NoError(t, provider.Register(ctx, testRegistration()))
	require.NoError(t, provider.Deregister(ctx))

	pod := getPod(t, client, ownPod)
	assert.NotContains(t, pod.Labels, discovery.LabelCluster)
	assert.ErrorIs(t, provider.UpdateStatus(ctx, "ready"), gerrors.ErrNotRegistered)
}

func TestWatch(t *testing.T) {
	t.Run("With presence events", func(t *testing.T) {
		client, started := newClient(
			memberPod("orders-1", "10.0.0.2", "orders", true),
			memberPod("payments-1", "10.0.0.3", "payments", true),
			newPod("sidecar", "10.0.0.4", true, map[string]string{"app": "other"}, nil),
		)
		provider := newTestDiscovery(t, client)
		pods := client.CoreV1().Pods(namespace)

		ctx, cancel := context.WithCancel(context.Background())
		events, err := provider.Watch(ctx, "orders")
		require.NoError(t, err)

		joined, ok := next(t, events).(discovery.Joined)
		require.True(t, ok)
		assert.Equal(t, "uid-orders-1", joined.Member.ID)
		assert.Equal(t, []string{"Order"}, joined.Member.Kinds)
		assert.True(t, joined.Member.Alive)

		waitStarted(t, started)

		// readiness lost
		notReady := memberPod("orders-1", "10.0.0.2", "orders", false)
		_, err = pods.UpdateStatus(ctx, notReady, metav1.UpdateOptions{})
		require.NoError(t, err)

		updated, ok := next(t, events).(discovery.Updated)
		require.True(t, ok)
		assert.Equal(t, "uid-orders-1", updated.Member.ID)
		assert.False(t, updated.Member.Alive)

		// a new member joins
		_, err = pods.Create(ctx, memberPod("orders-2", "10.0.0.5", "orders", true), metav1.CreateOptions{})
		require.NoError(t, err)
		joined, ok = next(t, events).(discovery.Joined)
		require.True(t, ok)
		assert.Equal(t, "uid-orders-2", joined.Member.ID)

		// the cluster label is removed
		unlabeled := memberPod("orders-2", "10.0.0.5", "orders", true)
		delete(unlabeled.Labels, discovery.LabelCluster)
		_, err = pods.Update(ctx, unlabeled, metav1.UpdateOptions{})
		require.NoError(t, err)
		left, ok := next(t, events).(discovery.Left)
		require.True(t, ok)
		assert.Equal(t, "uid-orders-2", left.MemberID)

		// the pod is deleted
		require.NoError(t, pods.Delete(ctx, "orders-1", metav1.DeleteOptions{}))
		left, ok = next(t, events).(discovery.Left)
		require.True(t, ok)
		assert.Equal(t, "uid-orders-1", left.MemberID)

		cancel()
		for range events {
		}
	})
	t.Run("With own address change", func(t *testing.T) {
		client, started := newClient(newPod(ownPod, "10.0.0.1", true, nil, nil))
		provider := newTestDiscovery(t, client)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		require.NoError(t, provider.Register(ctx, testRegistration()))

		events, err := provider.Watch(ctx, "orders")
		require.NoError(t, err)

		joined, ok := next(t, events).(discovery.Joined)
		require.True(t, ok)
		assert.Equal(t, "uid-"+ownPod, joined.Member.ID)

		waitStarted(t, started)

		pod := getPod(t, client, ownPod)
		pod.Status.PodIP = "10.0.0.9"
		_, err = client.CoreV1().Pods(namespace).UpdateStatus(ctx, pod, metav1.UpdateOptions{})
		require.NoError(t, err)

		var changed discovery.AddressChanged
		for changed.Current == "" {
			if event, ok := next(t, events).(discovery.AddressChanged); ok {
				changed = event
			}
		}
		assert.Equal(t, "10.0.0.1:9000", changed.Previous)
		assert.Equal(t, "10.0.0.9:9000", changed.Current)

		cancel()
		for range events {
		}
	})
	t.Run("With cache sync timeout", func(t *testing.T) {
		client, _ := newClient()
		client.PrependReactor("list", "pods", func(clienttesting.Action) (bool, runtime.Object, error) {
			return true, nil, errors.New("unavailable")
		})
		provider, err := NewDiscovery(&Config{
			Namespace:   namespace,
			PodName:     ownPod,
			SyncTimeout: 200 * time.Millisecond,
			Client:      client,
		}, log.DiscardLogger)
		require.NoError(t, err)

		events, err := provider.Watch(context.Background(), "orders")
		require.NoError(t, err)

		failed, ok := next(t, events).(discovery.WatchFailed)
		require.True(t, ok)
		assert.ErrorIs(t, failed.Err, gerrors.ErrWatchFailed)

		_, open := <-events
		assert.False(t, open)
	})
	t.Run("With closed provider", func(t *testing.T) {
		client, _ := newClient()
		provider := newTestDiscovery(t, client)
		require.NoError(t, provider.Close())
		_, err := provider.Watch(context.Background(), "orders")
		require.ErrorIs(t, err, gerrors.ErrAlreadyClosed)
	})
}
