package types

import (
	"fmt"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/sets"
)

// Sentinels rendered in place of computed columns.
const (
	None   = "<none>"
	Error  = "<error>"
	NoData = "-"
)

// Involved object kinds that carry consolidation events.
const (
	KindNode      = "Node"
	KindNodeClaim = "NodeClaim"
)

// NodeRow is one line of the node listing: the node name plus the base
// columns (NAME STATUS ROLES AGE VERSION [LABELS]) already formatted.
type NodeRow struct {
	NodeName string
	Cells    []string
}

type ContainerRequest struct {
	CPU    resource.Quantity
	Memory resource.Quantity
}

// PodRecord is the reduced projection of a pod used by the report.
type PodRecord struct {
	NodeName          string
	Namespace         string
	Name              string
	Annotations       map[string]string
	Requests          []ContainerRequest
	LocalStorage      bool
	CreationTimestamp time.Time
}

// Key returns "namespace/name", the form events use to reference pods.
func (p PodRecord) Key() string {
	return p.Namespace + "/" + p.Name
}

type NodeEvent struct {
	NodeName string
	Kind     string
	Reason   string
	Message  string
}

// Percent is a utilization percentage; an invalid Percent renders as NoData.
type Percent struct {
	Value int64
	Valid bool
}

func (p Percent) String() string {
	if !p.Valid {
		return NoData
	}
	return fmt.Sprintf("%d%%", p.Value)
}

// BlockerSet is the deduplicated set of blocker codes for one node.
type BlockerSet = sets.Set[string]

func NewBlockerSet(codes ...string) BlockerSet {
	return sets.New[string](codes...)
}

// FormatBlockers renders a set sorted and comma-joined, or None when empty.
func FormatBlockers(b BlockerSet) string {
	if b.Len() == 0 {
		return None
	}
	return strings.Join(sets.List(b), ",")
}

// NodeColumns are the computed columns appended to a NodeRow.
type NodeColumns struct {
	Provisioner  string
	CapacityType string
	CPU          Percent
	Memory       Percent
	Blockers     BlockerSet
}

// Cells renders the computed columns in header order.
func (c NodeColumns) Cells() []string {
	return []string{c.Provisioner, c.CapacityType, c.CPU.String(), c.Memory.String(), FormatBlockers(c.Blockers)}
}

// ErrorCells is what a row gets when its computed columns are missing.
func ErrorCells() []string {
	return []string{Error, Error, Error, Error, Error}
}

type NodeReportRow struct {
	Row     NodeRow
	Columns *NodeColumns
}

func (r NodeReportRow) Cells() []string {
	cells := append([]string{}, r.Row.Cells...)
	if r.Columns == nil {
		return append(cells, ErrorCells()...)
	}
	return append(cells, r.Columns.Cells()...)
}

type PodBlocker struct {
	NodeName  string
	Namespace string
	PodName   string
	Age       string
	Reason    string
}

// NodeClaim is the projection of a karpenter.sh NodeClaim needed to
// attribute its events to a node.
type NodeClaim struct {
	Name     string
	NodeName string
}
