package consolidation

import (
	"io"

	"github.com/infacloud/kubectl-consolidation/types"
	"github.com/infacloud/kubectl-consolidation/utils"
	"k8s.io/utils/clock"
)

var PodHeaders = []string{"NODE", "NAMESPACE", "POD", "AGE", "REASON"}

// PodBlockerReason returns why a single pod blocks consolidation. Blocking
// annotations take priority; a pod with none but an emptyDir volume is
// reported as local-storage.
func PodBlockerReason(p types.PodRecord) (string, bool) {
	if code, ok := AnnotationBlocker(p.Annotations); ok {
		return code, true
	}
	if p.LocalStorage {
		return CodeLocalStorage, true
	}
	return "", false
}

// FindBlockingPods returns the blocking pods among pods, which are expected
// to be bound to nodeName.
func FindBlockingPods(pods []types.PodRecord, nodeName string, clk clock.PassiveClock) []types.PodBlocker {
	var blockers []types.PodBlocker
	for _, p := range pods {
		reason, ok := PodBlockerReason(p)
		if !ok {
			continue
		}
		blockers = append(blockers, types.PodBlocker{
			NodeName:  nodeName,
			Namespace: p.Namespace,
			PodName:   p.Name,
			Age:       utils.FormatAge(clk, p.CreationTimestamp),
			Reason:    reason,
		})
	}
	return blockers
}

func RenderPodBlockers(w io.Writer, blockers []types.PodBlocker, noHeaders bool) error {
	rows := make([][]string, 0, len(blockers))
	for _, b := range blockers {
		rows = append(rows, []string{b.NodeName, b.Namespace, b.PodName, b.Age, b.Reason})
	}
	return RenderTable(w, PodHeaders, rows, noHeaders)
}
