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
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"go.uber.org/atomic"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/cache"

	"github.com/tochemey/grainmesh/discovery"
	gerrors "github.com/tochemey/grainmesh/errors"
	"github.com/tochemey/grainmesh/log"
)

// ProviderName is the kubernetes provider id
const ProviderName = "kubernetes"

var errNotInKubernetes = errors.New("not running in kubernetes: namespace and pod name are required")

// Discovery is the watch-stream discovery provider.
// This pod registers itself by patching its own labels and annotations,
// and peers are watched with a shared informer selecting on the cluster label.
type Discovery struct {
	config *Config
	client kubernetes.Interface
	logger log.Logger

	mu           sync.Mutex
	registration *discovery.Registration
	// reportedIP is the last pod IP an AddressChanged was emitted for
	reportedIP string

	closed *atomic.Bool
}

var _ discovery.Provider = (*Discovery)(nil)

// NewDiscovery creates an instance of the kubernetes discovery provider
func NewDiscovery(config *Config, logger log.Logger) (*Discovery, error) {
	if config == nil {
		config = new(Config)
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, gerrors.NewErrInvalidConfig(fmt.Errorf("kubernetes discovery config is invalid: %w", err))
	}

	if logger == nil {
		logger = log.DefaultLogger
	}

	client := config.Client
	if client == nil {
		restConfig, err := rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to get the in-cluster config of the kubernetes provider: %w", err)
		}

		if client, err = kubernetes.NewForConfig(restConfig); err != nil {
			return nil, fmt.Errorf("failed to create the kubernetes client api: %w", err)
		}
	}

	return &Discovery{
		config: config,
		client: client,
		logger: logger.With("discovery", ProviderName),
		closed: atomic.NewBool(false),
	}, nil
}

// ID returns the discovery provider id
func (x *Discovery) ID() string {
	return ProviderName
}

// Register patches this pod with the member labels.
// Kinds already advertised by the pod are kept.
func (x *Discovery) Register(ctx context.Context, registration discovery.Registration) error {
	if x.closed.Load() {
		return gerrors.NewRegistrationError(ProviderName, gerrors.ErrAlreadyClosed)
	}

	if x.config.Namespace == "" || x.config.PodName == "" {
		return gerrors.NewRegistrationError(ProviderName, errNotInKubernetes)
	}

	if err := registration.Validate(); err != nil {
		return gerrors.NewRegistrationError(ProviderName, err)
	}

	x.logger.Infof("registering pod=(%s) on address=(%s)", x.config.PodName, registration.Address())

	pods := x.client.CoreV1().Pods(x.config.Namespace)
	pod, err := pods.Get(ctx, x.config.PodName, metav1.GetOptions{})
	if err != nil {
		return gerrors.NewRegistrationError(ProviderName, fmt.Errorf("unable to get own pod=(%s): %w", x.config.PodName, err))
	}

	if !hasContainerPort(pod, registration.Port) {
		x.logger.Warnf("registration port=(%d) does not match any of the container ports of pod=(%s)", registration.Port, x.config.PodName)
	}

	registration.Kinds = discovery.MergeKinds(podLabels(pod).Kinds(), registration.Kinds)
	memberLabels, err := registration.Labels()
	if err != nil {
		return gerrors.NewRegistrationError(ProviderName, err)
	}

	values := make(map[string]*string, len(memberLabels))
	for key, value := range memberLabels {
		values[key] = &value
	}

	if err := x.patch(ctx, values); err != nil {
		return gerrors.NewRegistrationError(ProviderName, fmt.Errorf("unable to update labels of pod=(%s): %w", x.config.PodName, err))
	}

	x.mu.Lock()
	x.registration = &registration
	x.reportedIP = registration.Host
	x.mu.Unlock()
	return nil
}

// Deregister removes the cluster label, which takes the pod out of every peer selector
func (x *Discovery) Deregister(ctx context.Context) error {
	x.mu.Lock()
	registered := x.registration != nil
	x.registration = nil
	x.mu.Unlock()

	if !registered {
		return nil
	}

	x.logger.Infof("deregistering pod=(%s)", x.config.PodName)
	if err := x.patch(ctx, map[string]*string{discovery.LabelCluster: nil}); err != nil {
		return fmt.Errorf("unable to remove the cluster label of pod=(%s): %w", x.config.PodName, err)
	}
	return nil
}

// UpdateStatus patches the status annotation of this pod
func (x *Discovery) UpdateStatus(ctx context.Context, statusValue any) error {
	x.mu.Lock()
	registration := x.registration
	x.mu.Unlock()

	if registration == nil {
		return gerrors.ErrNotRegistered
	}

	status, err := registration.EncodeStatus(statusValue)
	if err != nil {
		return err
	}

	x.logger.Debugf("updating the status value of pod=(%s)", x.config.PodName)
	if err := x.patch(ctx, map[string]*string{discovery.LabelStatus: &status}); err != nil {
		return fmt.Errorf("unable to update the status of pod=(%s): %w", x.config.PodName, err)
	}

	x.mu.Lock()
	if x.registration != nil {
		x.registration.StatusValue = statusValue
	}
	x.mu.Unlock()
	return nil
}

// Watch starts an informer on the pods of the cluster
func (x *Discovery) Watch(ctx context.Context, clusterName string) (<-chan discovery.Event, error) {
	if x.closed.Load() {
		return nil, gerrors.ErrAlreadyClosed
	}

	events := make(chan discovery.Event, 16)
	go x.watch(ctx, clusterName, events)
	return events, nil
}

// Close marks the provider closed. Running watches stop with their context.
func (x *Discovery) Close() error {
	x.closed.Store(true)
	return nil
}

func (x *Discovery) watch(ctx context.Context, cluster string, events chan<- discovery.Event) {
	defer close(events)

	selector := labels.SelectorFromSet(labels.Set{discovery.LabelCluster: cluster}).String()
	x.logger.Infof("starting to watch pods with selector=(%s)", selector)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	factory := informers.NewSharedInformerFactoryWithOptions(
		x.client,
		x.config.ResyncPeriod,
		informers.WithNamespace(x.config.Namespace),
		informers.WithTweakListOptions(func(options *metav1.ListOptions) {
			options.LabelSelector = selector
		}))

	emit := func(event discovery.Event) {
		select {
		case events <- event:
		case <-watchCtx.Done():
		}
	}

	// handlers of one registration are invoked sequentially
	watcher := &podWatcher{
		discovery: x,
		cluster:   cluster,
		members:   make(map[string]*discovery.Member),
		emit:      emit,
	}

	informer := factory.Core().V1().Pods().Informer()
	_, err := informer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc: func(obj any) {
			if pod, ok := obj.(*corev1.Pod); ok {
				watcher.upsert(pod)
			}
		},
		UpdateFunc: func(_, newObj any) {
			if pod, ok := newObj.(*corev1.Pod); ok {
				watcher.upsert(pod)
			}
		},
		DeleteFunc: func(obj any) {
			if tombstone, ok := obj.(cache.DeletedFinalStateUnknown); ok {
				obj = tombstone.Obj
			}
			if pod, ok := obj.(*corev1.Pod); ok {
				watcher.remove(pod)
			}
		},
	})

	if err != nil {
		emit(discovery.WatchFailed{Err: gerrors.NewErrWatchFailed(err)})
		return
	}

	factory.Start(watchCtx.Done())
	// the informer goroutines, handlers included, are gone once Shutdown returns
	defer factory.Shutdown()

	syncCtx, cancelSync := context.WithTimeout(watchCtx, x.config.SyncTimeout)
	synced := cache.WaitForCacheSync(syncCtx.Done(), informer.HasSynced)
	cancelSync()

	if !synced {
		if ctx.Err() != nil {
			return
		}

		x.logger.Errorf("pods cache of cluster=(%s) failed to sync", cluster)
		cancel()
		factory.Shutdown()
		select {
		case events <- discovery.WatchFailed{Err: gerrors.NewErrWatchFailed(errors.New("pods cache failed to sync"))}:
		case <-ctx.Done():
		}
		return
	}

	<-watchCtx.Done()
	x.logger.Info("the pods watcher is stopping")
}

// podWatcher turns the pod notifications of one watch into presence events
type podWatcher struct {
	discovery *Discovery
	cluster   string
	members   map[string]*discovery.Member
	emit      func(discovery.Event)
}

// upsert handles a pod that was added or modified.
// A pod that no longer carries the cluster label, or is not a valid member anymore, leaves.
func (w *podWatcher) upsert(pod *corev1.Pod) {
	id := string(pod.GetUID())
	known, isKnown := w.members[id]

	if !w.discovery.inCluster(w.cluster, pod) {
		w.leave(id, isKnown)
		return
	}

	member, err := podToMember(pod)
	if err != nil {
		w.discovery.logger.Warn(err)
		w.leave(id, isKnown)
		return
	}

	w.members[id] = member
	switch {
	case !isKnown:
		w.discovery.logger.Debugf("pod=(%s) joined cluster=(%s)", pod.GetName(), w.cluster)
		w.emit(discovery.Joined{Member: member.Clone()})
	case !known.Equal(member):
		w.emit(discovery.Updated{Member: member.Clone()})
	}

	w.discovery.checkOwnAddress(pod, w.emit)
}

// remove handles a deleted pod. The final state of a pod that stopped matching
// the selector may already miss the cluster label, hence the lookup by UID.
func (w *podWatcher) remove(pod *corev1.Pod) {
	id := string(pod.GetUID())
	_, isKnown := w.members[id]
	if isKnown {
		w.discovery.logger.Debugf("pod=(%s) left cluster=(%s)", pod.GetName(), w.cluster)
	}
	w.leave(id, isKnown)
}

func (w *podWatcher) leave(id string, known bool) {
	if !known {
		return
	}
	delete(w.members, id)
	w.emit(discovery.Left{MemberID: id})
}

// checkOwnAddress surfaces an unexpected change of this pod IP after registration
func (x *Discovery) checkOwnAddress(pod *corev1.Pod, emit func(discovery.Event)) {
	if pod.GetName() != x.config.PodName || pod.Status.PodIP == "" {
		return
	}

	x.mu.Lock()
	registration := x.registration
	reported := x.reportedIP
	if registration == nil || pod.Status.PodIP == reported {
		x.mu.Unlock()
		return
	}
	x.reportedIP = pod.Status.PodIP
	x.mu.Unlock()

	previous := net.JoinHostPort(reported, strconv.Itoa(registration.Port))
	current := net.JoinHostPort(pod.Status.PodIP, strconv.Itoa(registration.Port))
	x.logger.Error(gerrors.NewErrCriticalAddressChange(previous, current))
	emit(discovery.AddressChanged{Previous: previous, Current: current})
}

func (x *Discovery) inCluster(cluster string, pod *corev1.Pod) bool {
	podCluster, ok := pod.GetLabels()[discovery.LabelCluster]
	switch {
	case !ok:
		x.logger.Infof("pod=(%s) is not a cluster member", pod.GetName())
		return false
	case podCluster != cluster:
		x.logger.Infof("pod=(%s) is from another cluster=(%s)", pod.GetName(), podCluster)
		return false
	default:
		return true
	}
}

func (x *Discovery) patch(ctx context.Context, values map[string]*string) error {
	data, err := labelsPatch(values)
	if err != nil {
		return err
	}

	_, err = x.client.CoreV1().Pods(x.config.Namespace).Patch(ctx, x.config.PodName, types.MergePatchType, data, metav1.PatchOptions{})
	return err
}
