package consolidation

import (
	"testing"
	"time"

	"github.com/infacloud/kubectl-consolidation/types"
	"gotest.tools/assert"
)

func TestNodeUtilization(t *testing.T) {
	node := newNode("node-1", time.Hour, withAllocatable("3920m", "15Gi"))
	pods := records(
		newPod("default", "a", "node-1", withRequests("1", "4Gi")),
		newPod("default", "b", "node-1", withRequests("500m", "1536Mi")),
		newPod("default", "c", "node-1"),
	)

	got := NodeUtilization(node, pods, true)
	// 1500m / 3920m = 38.2%, 5.5Gi / 15Gi = 36.6%
	assert.Equal(t, got.CPU, valid(38))
	assert.Equal(t, got.Memory, valid(36))
	assert.Equal(t, got.CPU.String(), "38%")
}

func TestNodeUtilizationDecimalSuffixes(t *testing.T) {
	node := newNode("node-1", time.Hour, withAllocatable("2", "4G"))
	pods := records(newPod("default", "a", "node-1", withRequests("0.5", "1G")))

	got := NodeUtilization(node, pods, true)
	assert.Equal(t, got.CPU, valid(25))
	assert.Equal(t, got.Memory, valid(25))
}

func TestNodeUtilizationZeroAllocatable(t *testing.T) {
	node := newNode("node-1", time.Hour, withAllocatable("0", "0"))
	pods := records(newPod("default", "a", "node-1", withRequests("1", "1Gi")))

	got := NodeUtilization(node, pods, true)
	assert.Equal(t, got.CPU, valid(0))
	assert.Equal(t, got.Memory, valid(0))
}

func TestNodeUtilizationUnknown(t *testing.T) {
	got := NodeUtilization(newNode("node-1", time.Hour), nil, false)
	assert.Equal(t, got.CPU.String(), "-")
	assert.Equal(t, got.Memory.String(), "-")

	got = NodeUtilization(newNode("node-1", time.Hour), nil, true)
	assert.Equal(t, got.CPU.String(), "0%")
}

func TestProvisionerAndCapacityType(t *testing.T) {
	bare := newNode("bare", time.Hour)
	assert.Equal(t, Provisioner(bare), types.None)
	assert.Equal(t, CapacityType(bare), types.None)

	legacy := newNode("legacy", time.Hour,
		withLabel(LabelProvisionerName, "default"),
		withLabel(LabelNodePool, "ignored"),
		withLabel(LabelCapacityType, "spot"))
	assert.Equal(t, Provisioner(legacy), "default")
	assert.Equal(t, CapacityType(legacy), "spot")

	pool := newNode("pool", time.Hour, withLabel(LabelNodePool, "general"), withLabel(LabelCapacityType, "on-demand"))
	assert.Equal(t, Provisioner(pool), "general")
	assert.Equal(t, CapacityType(pool), "on-demand")
}
