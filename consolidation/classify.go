package consolidation

import (
	"fmt"

	"github.com/infacloud/kubectl-consolidation/types"
	"k8s.io/apimachinery/pkg/util/sets"
)

// Classifier derives a node's blocker codes from utilization, pod
// annotations and consolidation events.
type Classifier struct {
	// UtilizationThreshold is the percent at or above which a node is
	// flagged high-utilization. 0 disables the signal.
	UtilizationThreshold int
}

// Classify returns the blocker set for one node. pods and events must be
// the node's own groupings from an Index.
func (c Classifier) Classify(pods []types.PodRecord, events []types.NodeEvent, util Utilization) types.BlockerSet {
	blockers := types.NewBlockerSet()

	if c.overThreshold(util.CPU) || c.overThreshold(util.Memory) {
		blockers.Insert(CodeHighUtilization)
	}

	live := sets.New[string]()
	for _, p := range pods {
		live.Insert(p.Key())
		if code, ok := AnnotationBlocker(p.Annotations); ok {
			blockers.Insert(code)
		}
	}

	for _, e := range events {
		if !IsConsolidationEvent(e) {
			continue
		}
		// events outlive the pods they mention
		if ref, ok := ReferencedPod(e.Message); ok && !live.Has(ref) {
			continue
		}
		if code, ok := NormalizeMessage(e.Message); ok {
			blockers.Insert(code)
		}
	}
	return blockers
}

func (c Classifier) overThreshold(p types.Percent) bool {
	return c.UtilizationThreshold > 0 && p.Valid && p.Value >= int64(c.UtilizationThreshold)
}

// ClassifyAll classifies every node in order. A failure anywhere is
// returned as an error instead of a partial result.
func (c Classifier) ClassifyAll(nodeNames []string, idx *Index, usage []Utilization) (result []types.BlockerSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("blocker classification failed: %v", r)
		}
	}()
	if len(usage) != len(nodeNames) {
		return nil, fmt.Errorf("blocker classification failed: %d nodes but %d utilization entries", len(nodeNames), len(usage))
	}
	result = make([]types.BlockerSet, len(nodeNames))
	for i, name := range nodeNames {
		result[i] = c.Classify(idx.PodsByNode[name], idx.EventsByNode[name], usage[i])
	}
	return result, nil
}
