package consolidation

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/infacloud/kubectl-consolidation/config"
	"gotest.tools/assert"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	clocktesting "k8s.io/utils/clock/testing"
)

type reportFixture struct {
	cs       *fake.Clientset
	reporter *Reporter
	out      *bytes.Buffer
	errOut   *bytes.Buffer
}

func newReportFixture(objs ...runtime.Object) *reportFixture {
	cs := fake.NewSimpleClientset(objs...)
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &reportFixture{
		cs: cs,
		reporter: &Reporter{
			Fetcher:    &Fetcher{Core: cs, ScopedFetchLimit: config.DefaultScopedFetchLimit},
			Classifier: Classifier{UtilizationThreshold: config.DefaultUtilizationThreshold},
			Clock:      clocktesting.NewFakePassiveClock(testNow),
			Out:        out,
			ErrOut:     errOut,
		},
		out:    out,
		errOut: errOut,
	}
}

// tableRows returns the whitespace-split lines of the rendered table,
// header first.
func tableRows(s string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		rows = append(rows, strings.Fields(line))
	}
	return rows
}

func lastCell(row []string) string { return row[len(row)-1] }

func TestReportAnnotatedPod(t *testing.T) {
	fx := newReportFixture(
		newNode("node-1", 5*time.Hour, withLabel(LabelNodePool, "default"), withLabel(LabelCapacityType, "spot")),
		newPod("default", "web", "node-1", withAnnotation(AnnotationDoNotDisrupt, "true"), withRequests("1", "4Gi")),
	)
	opts := config.NewOptions()
	opts.Nodes = []string{"node-1"}

	assert.NilError(t, fx.reporter.Run(context.Background(), opts))
	rows := tableRows(fx.out.String())
	assert.Equal(t, len(rows), 2)
	assert.DeepEqual(t, rows[0], []string{
		"NAME", "STATUS", "ROLES", "AGE", "VERSION",
		"PROVISIONER", "CAPACITY-TYPE", "CPU-UTIL", "MEM-UTIL", "CONSOLIDATION-BLOCKER",
	})
	assert.DeepEqual(t, rows[1], []string{
		"node-1", "Ready", "<none>", "5h", "v1.29.1-eks-1",
		"default", "spot", "25%", "25%", "do-not-disrupt",
	})
}

func TestReportStaleEvent(t *testing.T) {
	fx := newReportFixture(
		newNode("node-2", time.Hour),
		newPod("default", "still-here", "node-2"),
		newEvent("e1", "Node", "node-2", "CannotConsolidate", `Pod "ns/pod-x" has "karpenter.sh/do-not-disrupt" annotation`),
	)
	opts := config.NewOptions()
	opts.Nodes = []string{"node-2"}

	assert.NilError(t, fx.reporter.Run(context.Background(), opts))
	rows := tableRows(fx.out.String())
	assert.Equal(t, lastCell(rows[1]), "<none>")
}

func TestReportEventSignals(t *testing.T) {
	fx := newReportFixture(
		newNode("node-1", 2*time.Hour),
		newNode("node-2", time.Hour),
		newEvent("e1", "Node", "node-1", "DisruptionBlocked", `Cannot disrupt Node: pdb "default/web" prevents pod evictions`),
		newEvent("e2", "Node", "node-2", "Unconsolidatable", "Can't replace with a cheaper node: would increase cost (consolidation)"),
	)
	assert.NilError(t, fx.reporter.Run(context.Background(), config.NewOptions()))

	rows := tableRows(fx.out.String())
	assert.Equal(t, len(rows), 3)
	// oldest first
	assert.Equal(t, rows[1][0], "node-1")
	assert.Equal(t, lastCell(rows[1]), "pdb-violation")
	assert.Equal(t, rows[2][0], "node-2")
	assert.Equal(t, lastCell(rows[2]), "would-increase-cost")
}

func TestReportPodsMode(t *testing.T) {
	fx := newReportFixture(
		newPod("default", "batch", "node-1", withAnnotation(AnnotationDoNotEvict, "true")),
		newPod("default", "guarded", "node-2", withAnnotation(AnnotationDoNotDisrupt, "true")),
		newPod("cache", "redis", "node-3", withEmptyDir()),
		newPod("default", "web", "node-3"),
	)
	opts := config.NewOptions()
	opts.Pods = true
	opts.Nodes = []string{"node-3", "node-1"}

	assert.NilError(t, fx.reporter.Run(context.Background(), opts))
	rows := tableRows(fx.out.String())
	assert.DeepEqual(t, rows, [][]string{
		{"NODE", "NAMESPACE", "POD", "AGE", "REASON"},
		{"node-3", "cache", "redis", "2h", "local-storage"},
		{"node-1", "default", "batch", "2h", "do-not-evict"},
	})
}

func TestReportPodsModeNamespace(t *testing.T) {
	fx := newReportFixture(
		newPod("default", "batch", "node-1", withAnnotation(AnnotationDoNotEvict, "true")),
		newPod("jobs", "etl", "node-1", withAnnotation(AnnotationDoNotEvict, "true")),
	)
	opts := config.NewOptions()
	opts.Pods = true
	opts.Nodes = []string{"node-1"}
	opts.Namespace = "jobs"

	assert.NilError(t, fx.reporter.Run(context.Background(), opts))
	rows := tableRows(fx.out.String())
	assert.Equal(t, len(rows), 2)
	assert.Equal(t, rows[1][2], "etl")
}

func TestReportOutputPassthrough(t *testing.T) {
	fx := newReportFixture(
		newNode("node-1", time.Hour),
		newPod("default", "web", "node-1", withAnnotation(AnnotationDoNotDisrupt, "true")),
		newEvent("e1", "Node", "node-1", "DisruptionBlocked", "pdb prevents"),
	)
	opts := config.NewOptions()
	opts.Output = "json"

	assert.NilError(t, fx.reporter.Run(context.Background(), opts))
	assert.Assert(t, strings.Contains(fx.out.String(), `"name": "node-1"`))
	assert.Assert(t, !strings.Contains(fx.out.String(), "do-not-disrupt"))
	assert.Equal(t, len(listCalls(fx.cs, "pods")), 0)
	assert.Equal(t, len(listCalls(fx.cs, "events")), 0)
}

func TestReportNoNodes(t *testing.T) {
	fx := newReportFixture()
	assert.NilError(t, fx.reporter.Run(context.Background(), config.NewOptions()))
	assert.Equal(t, fx.out.String(), "")
	assert.Equal(t, fx.errOut.String(), "No resources found\n")
}

func TestReportMissingNode(t *testing.T) {
	fx := newReportFixture(newNode("node-1", time.Hour))
	opts := config.NewOptions()
	opts.Nodes = []string{"node-9"}

	err := fx.reporter.Run(context.Background(), opts)
	assert.Error(t, err, `nodes "node-9" not found`)
	assert.Equal(t, fx.out.String(), "")
}

func TestComputeColumnsClassificationFallback(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	fx := newReportFixture()
	nodes := []corev1.Node{
		*newNode("node-1", time.Hour, withLabel(LabelCapacityType, "spot")),
		*newNode("node-2", time.Hour),
	}
	idx := BuildIndex([]corev1.Pod{
		*newPod("default", "web", "node-1", withAnnotation(AnnotationDoNotDisrupt, "true"), withRequests("1", "4Gi")),
	}, nil, nil)

	// one name more than there are nodes makes classification fail
	columns := fx.reporter.computeColumns(nodes, []string{"node-1", "node-2", "node-3"}, idx, PodFetch{})

	assert.Equal(t, len(columns), 2)
	rows := MergeRows(NodeRows(nodes, false, false, fx.reporter.Clock), columns)
	for _, row := range rows {
		assert.Equal(t, lastCell(row.Cells()), "<none>")
	}
	assert.DeepEqual(t, columns[0].Cells(), []string{"<none>", "spot", "25%", "25%", "<none>"})
	assert.Assert(t, strings.Contains(logs.String(), "blocker classification failed"))
}
