package consolidation

import (
	"context"
	"fmt"
	"io"

	"github.com/infacloud/kubectl-consolidation/config"
	"github.com/infacloud/kubectl-consolidation/types"
	"github.com/infacloud/kubectl-consolidation/utils"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/utils/clock"
)

// Reporter runs one invocation: node table, pod detail or passthrough.
type Reporter struct {
	Fetcher    *Fetcher
	Classifier Classifier
	Clock      clock.PassiveClock
	Out        io.Writer
	ErrOut     io.Writer
}

func NewReporter(fetcher *Fetcher, opts *config.Options, out, errOut io.Writer) *Reporter {
	return &Reporter{
		Fetcher:    fetcher,
		Classifier: Classifier{UtilizationThreshold: opts.UtilizationThreshold},
		Clock:      clock.RealClock{},
		Out:        out,
		ErrOut:     errOut,
	}
}

// Run dispatches on opts. Only a failed node listing (or an invalid
// output request) is returned as an error; everything else degrades.
func (r *Reporter) Run(ctx context.Context, opts *config.Options) error {
	if opts.Pods {
		return r.RunPods(ctx, opts)
	}

	nodes, err := r.Fetcher.ListNodes(ctx, NodeQuery{
		Names:         opts.Nodes,
		Selector:      opts.Selector,
		FieldSelector: opts.FieldSelector,
	})
	if err != nil {
		return err
	}
	if err := SortNodes(nodes, opts.SortBy); err != nil {
		return err
	}

	if opts.Output != "" {
		return PrintNodes(r.Out, nodes, opts.Output, opts.ShowLabels, opts.NoHeaders, r.Clock)
	}
	if len(nodes) == 0 {
		fmt.Fprintln(r.ErrOut, "No resources found")
		return nil
	}
	return r.RunTable(ctx, nodes, opts)
}

// RunTable prints the node listing with the consolidation columns appended.
func (r *Reporter) RunTable(ctx context.Context, nodes []corev1.Node, opts *config.Options) error {
	names := make([]string, len(nodes))
	for i := range nodes {
		names[i] = nodes[i].Name
	}

	var snap *Snapshot
	_ = utils.WithSpinner(fmt.Sprintf("analyzing %d nodes", len(nodes)), func() error {
		snap = r.Fetcher.Fetch(ctx, names)
		return nil
	})

	idx := BuildIndex(snap.Pods, snap.Events, snap.NodeClaims)
	columns := r.computeColumns(nodes, names, idx, snap.PodFetch)

	rows := MergeRows(NodeRows(nodes, opts.ShowLabels, false, r.Clock), columns)
	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = row.Cells()
	}
	headers := append(NodeHeaders(opts.ShowLabels, false), ComputedHeaders...)
	return RenderTable(r.Out, headers, cells, opts.NoHeaders)
}

func (r *Reporter) computeColumns(nodes []corev1.Node, names []string, idx *Index, pods PodFetch) []*types.NodeColumns {
	usage := make([]Utilization, len(nodes))
	for i := range nodes {
		usage[i] = NodeUtilization(&nodes[i], idx.PodsByNode[names[i]], pods.Known(names[i]))
	}

	blockers, err := r.Classifier.ClassifyAll(names, idx, usage)
	if err != nil {
		log.Warnf("%v; reporting %s for every node", err, types.None)
		blockers = make([]types.BlockerSet, len(nodes))
	}

	columns := make([]*types.NodeColumns, len(nodes))
	for i := range nodes {
		columns[i] = &types.NodeColumns{
			Provisioner:  Provisioner(&nodes[i]),
			CapacityType: CapacityType(&nodes[i]),
			CPU:          usage[i].CPU,
			Memory:       usage[i].Memory,
			Blockers:     blockers[i],
		}
	}
	return columns
}

// RunPods lists blocking pods on the nodes named in opts, in argument order.
func (r *Reporter) RunPods(ctx context.Context, opts *config.Options) error {
	if len(opts.Nodes) == 0 {
		return config.NewArgError("--pods requires at least one node name")
	}
	nodes := uniqueNames(opts.Nodes)

	var fetched PodFetch
	_ = utils.WithSpinner(fmt.Sprintf("listing pods on %d nodes", len(nodes)), func() error {
		fetched = r.Fetcher.FetchPods(ctx, nodes)
		return nil
	})

	pods := fetched.Pods
	if opts.Namespace != "" {
		pods = filterNamespace(pods, opts.Namespace)
	}
	idx := BuildIndex(pods, nil, nil)

	var blockers []types.PodBlocker
	for _, name := range nodes {
		blockers = append(blockers, FindBlockingPods(idx.PodsByNode[name], name, r.Clock)...)
	}
	return RenderPodBlockers(r.Out, blockers, opts.NoHeaders)
}

func uniqueNames(names []string) []string {
	seen := sets.New[string]()
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen.Has(n) {
			seen.Insert(n)
			out = append(out, n)
		}
	}
	return out
}

func filterNamespace(pods []corev1.Pod, namespace string) []corev1.Pod {
	out := make([]corev1.Pod, 0, len(pods))
	for i := range pods {
		if pods[i].Namespace == namespace {
			out = append(out, pods[i])
		}
	}
	return out
}
