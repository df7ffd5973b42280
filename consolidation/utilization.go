package consolidation

import (
	"github.com/infacloud/kubectl-consolidation/types"
	corev1 "k8s.io/api/core/v1"
)

// Karpenter node labels.
const (
	LabelProvisionerName = "karpenter.sh/provisioner-name"
	LabelNodePool        = "karpenter.sh/nodepool"
	LabelCapacityType    = "karpenter.sh/capacity-type"
)

// Utilization is requested/allocatable per resource, floored to a percent.
type Utilization struct {
	CPU    types.Percent
	Memory types.Percent
}

// NodeUtilization sums container requests of pods against the node's
// allocatable capacity. When pod data is unknown both values are invalid.
func NodeUtilization(node *corev1.Node, pods []types.PodRecord, known bool) Utilization {
	if !known {
		return Utilization{}
	}
	var cpuMilli, memBytes int64
	for _, p := range pods {
		for _, r := range p.Requests {
			cpuMilli += r.CPU.MilliValue()
			memBytes += r.Memory.Value()
		}
	}
	allocCPU := node.Status.Allocatable[corev1.ResourceCPU]
	allocMem := node.Status.Allocatable[corev1.ResourceMemory]
	return Utilization{
		CPU:    percent(cpuMilli, allocCPU.MilliValue()),
		Memory: percent(memBytes, allocMem.Value()),
	}
}

func percent(requested, allocatable int64) types.Percent {
	if allocatable <= 0 {
		return types.Percent{Value: 0, Valid: true}
	}
	return types.Percent{Value: requested * 100 / allocatable, Valid: true}
}

// Provisioner returns the provisioner (or, on newer Karpenter, nodepool)
// that launched node.
func Provisioner(node *corev1.Node) string {
	if v := node.Labels[LabelProvisionerName]; v != "" {
		return v
	}
	if v := node.Labels[LabelNodePool]; v != "" {
		return v
	}
	return types.None
}

func CapacityType(node *corev1.Node) string {
	if v := node.Labels[LabelCapacityType]; v != "" {
		return v
	}
	return types.None
}
