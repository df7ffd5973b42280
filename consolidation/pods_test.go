package consolidation

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/infacloud/kubectl-consolidation/types"
	"gotest.tools/assert"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	clocktesting "k8s.io/utils/clock/testing"
)

func TestFindBlockingPods(t *testing.T) {
	clk := clocktesting.NewFakePassiveClock(testNow)
	fresh := newPod("default", "cache", "node-1", withEmptyDir())
	fresh.CreationTimestamp = metav1.NewTime(testNow.Add(-45 * time.Second))

	pods := records(
		newPod("default", "batch", "node-1", withAnnotation(AnnotationDoNotEvict, "true")),
		fresh,
		newPod("default", "web", "node-1"),
		newPod("kube-system", "agent", "node-1", withEmptyDir(), withAnnotation(AnnotationDoNotDisrupt, "true")),
		newPod("default", "opted-out", "node-1", withAnnotation(AnnotationDoNotDisrupt, "false")),
	)

	got := FindBlockingPods(pods, "node-1", clk)
	assert.DeepEqual(t, got, []types.PodBlocker{
		{NodeName: "node-1", Namespace: "default", PodName: "batch", Age: "2h", Reason: CodeDoNotEvict},
		{NodeName: "node-1", Namespace: "default", PodName: "cache", Age: "45s", Reason: CodeLocalStorage},
		{NodeName: "node-1", Namespace: "kube-system", PodName: "agent", Age: "2h", Reason: CodeDoNotDisrupt},
	})
}

func TestFindBlockingPodsNone(t *testing.T) {
	clk := clocktesting.NewFakePassiveClock(testNow)
	got := FindBlockingPods(records(newPod("default", "web", "node-1")), "node-1", clk)
	assert.Equal(t, len(got), 0)
	assert.Equal(t, len(FindBlockingPods(nil, "node-1", clk)), 0)
}

func TestRenderPodBlockers(t *testing.T) {
	var buf bytes.Buffer
	err := RenderPodBlockers(&buf, []types.PodBlocker{
		{NodeName: "node-1", Namespace: "default", PodName: "batch", Age: "2h", Reason: CodeDoNotEvict},
	}, false)
	assert.NilError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.DeepEqual(t, strings.Fields(lines[0]), PodHeaders)
	assert.DeepEqual(t, strings.Fields(lines[1]), []string{"node-1", "default", "batch", "2h", "do-not-evict"})

	buf.Reset()
	assert.NilError(t, RenderPodBlockers(&buf, nil, false))
	assert.DeepEqual(t, strings.Fields(buf.String()), PodHeaders)
}
