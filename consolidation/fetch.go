package consolidation

import (
	"context"
	"errors"

	"github.com/infacloud/kubectl-consolidation/config"
	"github.com/infacloud/kubectl-consolidation/kube"
	"github.com/infacloud/kubectl-consolidation/types"
	"github.com/infacloud/kubectl-consolidation/utils"
	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	apiextclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
)

var log = utils.GetLogger()

// Fetcher issues the read-only queries behind a report.
type Fetcher struct {
	Core          kubernetes.Interface
	Dynamic       dynamic.Interface
	APIExtensions apiextclientset.Interface

	// ScopedFetchLimit is the largest node count for which pods and events
	// are queried per node instead of cluster-wide. 0 always fetches
	// cluster-wide.
	ScopedFetchLimit int
	// NodeClaims adds NodeClaim-involved events to the event signal.
	NodeClaims bool
}

func NewFetcher(clients *kube.Clients, opts *config.Options) *Fetcher {
	return &Fetcher{
		Core:             clients.Core,
		Dynamic:          clients.Dynamic,
		APIExtensions:    clients.APIExtensions,
		ScopedFetchLimit: opts.ScopedFetchLimit,
		NodeClaims:       opts.NodeClaims,
	}
}

// NodeQuery selects the nodes to list. Names and Selector are exclusive.
type NodeQuery struct {
	Names         []string
	Selector      string
	FieldSelector string
}

// PodFetch is the outcome of a pod query. Nodes whose pods could not be
// read are recorded so their utilization renders as unknown.
type PodFetch struct {
	Pods           []corev1.Pod
	Unavailable    sets.Set[string]
	AllUnavailable bool
}

// Known reports whether pod data for nodeName was fetched.
func (p PodFetch) Known(nodeName string) bool {
	return !p.AllUnavailable && !p.Unavailable.Has(nodeName)
}

// Snapshot is everything a table report reads besides the nodes themselves.
type Snapshot struct {
	PodFetch
	Events     []corev1.Event
	NodeClaims []types.NodeClaim
}

// ListNodes returns the nodes for q. Errors are returned untouched so the
// API server's message reaches the user verbatim.
func (f *Fetcher) ListNodes(ctx context.Context, q NodeQuery) ([]corev1.Node, error) {
	if len(q.Names) > 0 {
		nodes := make([]corev1.Node, 0, len(q.Names))
		seen := sets.New[string]()
		for _, name := range q.Names {
			if seen.Has(name) {
				continue
			}
			seen.Insert(name)
			node, err := f.Core.CoreV1().Nodes().Get(ctx, name, metav1.GetOptions{})
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, *node)
		}
		return nodes, nil
	}
	list, err := f.Core.CoreV1().Nodes().List(ctx, metav1.ListOptions{
		LabelSelector: q.Selector,
		FieldSelector: q.FieldSelector,
	})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (f *Fetcher) scoped(nodeNames []string) bool {
	return len(nodeNames) > 0 && len(nodeNames) <= f.ScopedFetchLimit
}

// Fetch reads pods and events for nodeNames concurrently and waits for both.
// Neither query can fail the report; failures degrade to empty data.
func (f *Fetcher) Fetch(ctx context.Context, nodeNames []string) *Snapshot {
	snap := &Snapshot{}
	var g errgroup.Group
	g.Go(func() error {
		snap.PodFetch = f.FetchPods(ctx, nodeNames)
		return nil
	})
	g.Go(func() error {
		snap.Events = f.FetchNodeEvents(ctx, nodeNames)
		if f.NodeClaims {
			snap.NodeClaims, snap.Events = f.appendNodeClaimEvents(ctx, nodeNames, snap.Events)
		}
		return nil
	})
	_ = g.Wait()
	log.Debugf("fetched %d pods and %d events for %d nodes", len(snap.Pods), len(snap.Events), len(nodeNames))
	return snap
}

// FetchPods lists pods bound to nodeNames, one query per node when the set
// is small and a single cluster-wide query otherwise.
func (f *Fetcher) FetchPods(ctx context.Context, nodeNames []string) PodFetch {
	result := PodFetch{Unavailable: sets.New[string]()}
	if !f.scoped(nodeNames) {
		list, err := f.Core.CoreV1().Pods(corev1.NamespaceAll).List(ctx, metav1.ListOptions{})
		if err != nil {
			log.WithField("scope", "cluster").Warnf("unable to list pods, blockers and utilization will be incomplete: %v", err)
			result.AllUnavailable = true
			return result
		}
		result.Pods = list.Items
		return result
	}
	for _, name := range nodeNames {
		list, err := f.Core.CoreV1().Pods(corev1.NamespaceAll).List(ctx, metav1.ListOptions{
			FieldSelector: fields.OneTermEqualSelector("spec.nodeName", name).String(),
		})
		if err != nil {
			log.WithField("node", name).Warnf("unable to list pods: %v", err)
			result.Unavailable.Insert(name)
			continue
		}
		for i := range list.Items {
			if list.Items[i].Spec.NodeName == name {
				result.Pods = append(result.Pods, list.Items[i])
			}
		}
	}
	return result
}

// FetchNodeEvents lists events whose involved object is one of nodeNames
// (or any Node when the set is large).
func (f *Fetcher) FetchNodeEvents(ctx context.Context, nodeNames []string) []corev1.Event {
	if !f.scoped(nodeNames) {
		return f.listEvents(ctx, types.KindNode, "")
	}
	var events []corev1.Event
	for _, name := range nodeNames {
		events = append(events, f.listEvents(ctx, types.KindNode, name)...)
	}
	return events
}

func (f *Fetcher) listEvents(ctx context.Context, kind, name string) []corev1.Event {
	selector := fields.OneTermEqualSelector("involvedObject.kind", kind)
	if name != "" {
		selector = fields.AndSelectors(selector, fields.OneTermEqualSelector("involvedObject.name", name))
	}
	list, err := f.Core.CoreV1().Events(corev1.NamespaceAll).List(ctx, metav1.ListOptions{
		FieldSelector: selector.String(),
	})
	if err != nil {
		log.WithField("kind", kind).WithField("name", name).Warnf("unable to list events: %v", err)
		return nil
	}
	events := make([]corev1.Event, 0, len(list.Items))
	for i := range list.Items {
		obj := list.Items[i].InvolvedObject
		if obj.Kind != kind || (name != "" && obj.Name != name) {
			continue
		}
		events = append(events, list.Items[i])
	}
	return events
}

// appendNodeClaimEvents adds events about NodeClaims backing nodeNames. A
// missing NodeClaim CRD only produces a warning.
func (f *Fetcher) appendNodeClaimEvents(ctx context.Context, nodeNames []string, events []corev1.Event) ([]types.NodeClaim, []corev1.Event) {
	if f.APIExtensions == nil || f.Dynamic == nil {
		log.Warn("NodeClaim events requested but no client is available for custom resources")
		return nil, events
	}
	gvr, err := kube.NodeClaimGVR(ctx, f.APIExtensions)
	if errors.Is(err, kube.ErrNodeClaimCRDMissing) {
		log.Warnf("%v; continuing with Node events only", err)
		return nil, events
	}
	if err != nil {
		log.Warnf("unable to check for NodeClaim support: %v", err)
		return nil, events
	}
	claims, err := kube.ListNodeClaims(ctx, f.Dynamic, gvr)
	if err != nil {
		log.Warnf("unable to list NodeClaims: %v", err)
		return nil, events
	}
	log.Debugf("nodeclaims: %s", utils.GetJsonStr(claims))

	if !f.scoped(nodeNames) {
		return claims, append(events, f.listEvents(ctx, types.KindNodeClaim, "")...)
	}
	wanted := sets.New[string](nodeNames...)
	for _, c := range claims {
		if wanted.Has(c.NodeName) {
			events = append(events, f.listEvents(ctx, types.KindNodeClaim, c.Name)...)
		}
	}
	return claims, events
}
