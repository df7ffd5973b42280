package consolidation

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/infacloud/kubectl-consolidation/types"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/duration"
	"k8s.io/utils/clock"
)

var (
	baseHeaders     = []string{"NAME", "STATUS", "ROLES", "AGE", "VERSION"}
	wideHeaders     = []string{"INTERNAL-IP", "EXTERNAL-IP", "OS-IMAGE", "KERNEL-VERSION", "CONTAINER-RUNTIME"}
	labelsHeader    = "LABELS"
	ComputedHeaders = []string{"PROVISIONER", "CAPACITY-TYPE", "CPU-UTIL", "MEM-UTIL", "CONSOLIDATION-BLOCKER"}
)

const (
	labelNodeRolePrefix = "node-role.kubernetes.io/"
	labelNodeRole       = "kubernetes.io/role"
)

// NodeHeaders returns the base listing headers.
func NodeHeaders(showLabels, wide bool) []string {
	h := append([]string{}, baseHeaders...)
	if wide {
		h = append(h, wideHeaders...)
	}
	if showLabels {
		h = append(h, labelsHeader)
	}
	return h
}

// NodeRows formats the base listing columns for nodes, in order.
func NodeRows(nodes []corev1.Node, showLabels, wide bool, clk clock.PassiveClock) []types.NodeRow {
	rows := make([]types.NodeRow, 0, len(nodes))
	for i := range nodes {
		n := &nodes[i]
		cells := []string{
			n.Name,
			nodeStatus(n),
			nodeRoles(n),
			duration.HumanDuration(clk.Since(n.CreationTimestamp.Time)),
			n.Status.NodeInfo.KubeletVersion,
		}
		if wide {
			cells = append(cells,
				nodeAddress(n, corev1.NodeInternalIP),
				nodeAddress(n, corev1.NodeExternalIP),
				orNone(n.Status.NodeInfo.OSImage),
				orNone(n.Status.NodeInfo.KernelVersion),
				orNone(n.Status.NodeInfo.ContainerRuntimeVersion),
			)
		}
		if showLabels {
			cells = append(cells, formatLabels(n.Labels))
		}
		rows = append(rows, types.NodeRow{NodeName: n.Name, Cells: cells})
	}
	return rows
}

// MergeRows pairs row i with columns[i]. Rows without computed columns
// render <error> rather than failing the report.
func MergeRows(rows []types.NodeRow, columns []*types.NodeColumns) []types.NodeReportRow {
	out := make([]types.NodeReportRow, len(rows))
	for i, r := range rows {
		out[i] = types.NodeReportRow{Row: r}
		if i < len(columns) {
			out[i].Columns = columns[i]
		}
	}
	return out
}

// RenderTable writes an aligned table. Cells must not contain tabs.
func RenderTable(w io.Writer, headers []string, rows [][]string, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 6, 4, 3, ' ', 0)
	if !noHeaders {
		if _, err := fmt.Fprintln(tw, strings.Join(headers, "\t")); err != nil {
			return err
		}
	}
	for _, r := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(r, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func nodeStatus(n *corev1.Node) string {
	status := "Unknown"
	for _, c := range n.Status.Conditions {
		if c.Type != corev1.NodeReady {
			continue
		}
		switch c.Status {
		case corev1.ConditionTrue:
			status = "Ready"
		case corev1.ConditionFalse:
			status = "NotReady"
		}
		break
	}
	if n.Spec.Unschedulable {
		status += ",SchedulingDisabled"
	}
	return status
}

func nodeRoles(n *corev1.Node) string {
	var roles []string
	for k, v := range n.Labels {
		switch {
		case strings.HasPrefix(k, labelNodeRolePrefix):
			if role := strings.TrimPrefix(k, labelNodeRolePrefix); role != "" {
				roles = append(roles, role)
			}
		case k == labelNodeRole && v != "":
			roles = append(roles, v)
		}
	}
	if len(roles) == 0 {
		return types.None
	}
	sort.Strings(roles)
	return strings.Join(roles, ",")
}

func nodeAddress(n *corev1.Node, t corev1.NodeAddressType) string {
	for _, a := range n.Status.Addresses {
		if a.Type == t {
			return a.Address
		}
	}
	return types.None
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return types.None
	}
	pairs := make([]string, 0, len(labels))
	for k, v := range labels {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func orNone(s string) string {
	if s == "" {
		return types.None
	}
	return s
}
