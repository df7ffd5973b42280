package consolidation

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/infacloud/kubectl-consolidation/config"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/util/jsonpath"
	"k8s.io/utils/clock"
	"sigs.k8s.io/yaml"
)

// PrintNodes writes nodes in one of the passthrough formats without any
// consolidation analysis.
func PrintNodes(w io.Writer, nodes []corev1.Node, format string, showLabels, noHeaders bool, clk clock.PassiveClock) error {
	switch {
	case format == "json":
		data, err := json.MarshalIndent(nodeList(nodes), "", "    ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case format == "yaml":
		data, err := yaml.Marshal(nodeList(nodes))
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case format == "name":
		for i := range nodes {
			if _, err := fmt.Fprintf(w, "node/%s\n", nodes[i].Name); err != nil {
				return err
			}
		}
		return nil
	case format == "wide":
		rows := NodeRows(nodes, showLabels, true, clk)
		cells := make([][]string, len(rows))
		for i, r := range rows {
			cells[i] = r.Cells
		}
		return RenderTable(w, NodeHeaders(showLabels, true), cells, noHeaders)
	case strings.HasPrefix(format, "jsonpath="):
		return printJSONPath(w, nodes, strings.TrimPrefix(format, "jsonpath="))
	}
	return config.NewArgError("unable to match a printer suitable for the output format %q", format)
}

// nodeList wraps nodes the way kubectl prints a list, with the type
// information the typed client strips.
func nodeList(nodes []corev1.Node) *corev1.List {
	list := &corev1.List{
		TypeMeta: metav1.TypeMeta{Kind: "List", APIVersion: "v1"},
		ListMeta: metav1.ListMeta{ResourceVersion: ""},
		Items:    make([]runtime.RawExtension, 0, len(nodes)),
	}
	for i := range nodes {
		n := nodes[i].DeepCopy()
		n.TypeMeta = metav1.TypeMeta{Kind: "Node", APIVersion: "v1"}
		list.Items = append(list.Items, runtime.RawExtension{Object: n})
	}
	return list
}

func printJSONPath(w io.Writer, nodes []corev1.Node, template string) error {
	jp := jsonpath.New("output").AllowMissingKeys(true)
	if err := jp.Parse(relaxedJSONPath(template)); err != nil {
		return config.NewArgError("error parsing jsonpath %s, %v", template, err)
	}
	data, err := json.Marshal(nodeList(nodes))
	if err != nil {
		return err
	}
	var obj interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	return jp.Execute(w, obj)
}

// relaxedJSONPath accepts ".a.b", "a.b" and "{.a.b}" alike.
func relaxedJSONPath(expr string) string {
	expr = strings.TrimSpace(expr)
	if strings.Contains(expr, "{") {
		return expr
	}
	if !strings.HasPrefix(expr, ".") {
		expr = "." + expr
	}
	return "{" + expr + "}"
}

// SortNodes orders nodes by the JSONPath sortBy, or by creation time
// (oldest first) when sortBy is empty.
func SortNodes(nodes []corev1.Node, sortBy string) error {
	if sortBy == "" {
		sort.SliceStable(nodes, func(i, j int) bool {
			ti, tj := nodes[i].CreationTimestamp, nodes[j].CreationTimestamp
			if ti.Equal(&tj) {
				return nodes[i].Name < nodes[j].Name
			}
			return ti.Before(&tj)
		})
		return nil
	}

	jp := jsonpath.New("sort-by").AllowMissingKeys(true)
	if err := jp.Parse(relaxedJSONPath(sortBy)); err != nil {
		return config.NewArgError("invalid --sort-by %q: %v", sortBy, err)
	}
	keys := make([]interface{}, len(nodes))
	for i := range nodes {
		obj, err := runtime.DefaultUnstructuredConverter.ToUnstructured(&nodes[i])
		if err != nil {
			return err
		}
		results, err := jp.FindResults(obj)
		if err != nil {
			return config.NewArgError("invalid --sort-by %q: %v", sortBy, err)
		}
		if len(results) > 0 && len(results[0]) > 0 {
			keys[i] = results[0][0].Interface()
		}
	}

	order := make([]int, len(nodes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return lessValue(keys[order[a]], keys[order[b]]) })
	sorted := make([]corev1.Node, len(nodes))
	for i, idx := range order {
		sorted[i] = nodes[idx]
	}
	copy(nodes, sorted)
	return nil
}

// lessValue orders missing values first, then numbers numerically,
// quantities such as "3920m" or "16Gi" by amount and everything else by
// its string form.
func lessValue(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b != nil
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa < fb
		}
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			qa, errA := resource.ParseQuantity(sa)
			qb, errB := resource.ParseQuantity(sb)
			if errA == nil && errB == nil {
				return qa.Cmp(qb) < 0
			}
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func toFloat(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
