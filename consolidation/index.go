package consolidation

import (
	"sort"

	"github.com/infacloud/kubectl-consolidation/types"
	corev1 "k8s.io/api/core/v1"
)

// Index groups pods and node events by node name so each node is looked up
// once instead of scanning the whole snapshot per node.
type Index struct {
	PodsByNode   map[string][]types.PodRecord
	EventsByNode map[string][]types.NodeEvent
}

// BuildIndex groups pods by spec.nodeName and events by the node they
// involve. NodeClaim events are attributed to the node the claim launched;
// events of any other kind are dropped.
func BuildIndex(pods []corev1.Pod, events []corev1.Event, claims []types.NodeClaim) *Index {
	idx := &Index{
		PodsByNode:   make(map[string][]types.PodRecord),
		EventsByNode: make(map[string][]types.NodeEvent),
	}
	for i := range pods {
		rec := NewPodRecord(&pods[i])
		if rec.NodeName == "" {
			continue
		}
		idx.PodsByNode[rec.NodeName] = append(idx.PodsByNode[rec.NodeName], rec)
	}
	for node := range idx.PodsByNode {
		recs := idx.PodsByNode[node]
		sort.Slice(recs, func(i, j int) bool { return recs[i].Key() < recs[j].Key() })
	}

	claimNode := make(map[string]string, len(claims))
	for _, c := range claims {
		if c.NodeName != "" {
			claimNode[c.Name] = c.NodeName
		}
	}
	for i := range events {
		e := &events[i]
		var node string
		switch e.InvolvedObject.Kind {
		case types.KindNode:
			node = e.InvolvedObject.Name
		case types.KindNodeClaim:
			node = claimNode[e.InvolvedObject.Name]
		}
		if node == "" {
			continue
		}
		idx.EventsByNode[node] = append(idx.EventsByNode[node], types.NodeEvent{
			NodeName: node,
			Kind:     e.InvolvedObject.Kind,
			Reason:   e.Reason,
			Message:  e.Message,
		})
	}
	return idx
}

// NewPodRecord projects a pod onto the fields the report uses.
func NewPodRecord(pod *corev1.Pod) types.PodRecord {
	rec := types.PodRecord{
		NodeName:          pod.Spec.NodeName,
		Namespace:         pod.Namespace,
		Name:              pod.Name,
		Annotations:       pod.Annotations,
		CreationTimestamp: pod.CreationTimestamp.Time,
	}
	for _, c := range pod.Spec.Containers {
		rec.Requests = append(rec.Requests, types.ContainerRequest{
			CPU:    c.Resources.Requests[corev1.ResourceCPU],
			Memory: c.Resources.Requests[corev1.ResourceMemory],
		})
	}
	for _, v := range pod.Spec.Volumes {
		if v.EmptyDir != nil {
			rec.LocalStorage = true
			break
		}
	}
	return rec
}
