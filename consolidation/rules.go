package consolidation

import (
	"regexp"

	"github.com/infacloud/kubectl-consolidation/types"
	"k8s.io/apimachinery/pkg/util/sets"
)

// Blocker codes. Every code the report can print is listed here.
const (
	CodeHighUtilization   = "high-utilization"
	CodeDoNotEvict        = "do-not-evict"
	CodeDoNotDisrupt      = "do-not-disrupt"
	CodeDoNotConsolidate  = "do-not-consolidate"
	CodePDBViolation      = "pdb-violation"
	CodeLocalStorage      = "local-storage"
	CodeNonReplicated     = "non-replicated"
	CodeWouldIncreaseCost = "would-increase-cost"
	CodeInUseSecurityGrp  = "in-use-security-group"
	CodeOnDemandProtect   = "on-demand-protection"
)

const (
	AnnotationDoNotEvict       = "karpenter.sh/do-not-evict"
	AnnotationDoNotDisrupt     = "karpenter.sh/do-not-disrupt"
	AnnotationDoNotConsolidate = "karpenter.sh/do-not-consolidate"
)

// AnnotationRule maps a pod annotation set to "true" onto a code.
type AnnotationRule struct {
	Annotation string
	Code       string
}

// AnnotationRules are evaluated in order; the first match wins.
var AnnotationRules = []AnnotationRule{
	{AnnotationDoNotEvict, CodeDoNotEvict},
	{AnnotationDoNotDisrupt, CodeDoNotDisrupt},
	{AnnotationDoNotConsolidate, CodeDoNotConsolidate},
}

// MessageRule maps an event message pattern onto a code.
type MessageRule struct {
	Pattern *regexp.Regexp
	Code    string
}

// MessageRules are evaluated in order; the first match wins.
var MessageRules = []MessageRule{
	{regexp.MustCompile(`(?i)pdb.*prevent`), CodePDBViolation},
	{regexp.MustCompile(`(?i)local storage`), CodeLocalStorage},
	{regexp.MustCompile(`(?i)non-replicated`), CodeNonReplicated},
	{regexp.MustCompile(`(?i)would increase cost`), CodeWouldIncreaseCost},
	{regexp.MustCompile(`(?i)in-use security group`), CodeInUseSecurityGrp},
	{regexp.MustCompile(`(?i)on-demand`), CodeOnDemandProtect},
	{regexp.MustCompile(`(?i)do-not-consolidate`), CodeDoNotConsolidate},
	{regexp.MustCompile(`(?i)do-not-disrupt`), CodeDoNotDisrupt},
	{regexp.MustCompile(`(?i)do-not-evict`), CodeDoNotEvict},
}

var (
	blockingReasons = sets.New[string]("CannotConsolidate", "DeprovisioningBlocked", "DisruptionBlocked")
	relevantMessage = regexp.MustCompile(`(?i)consolidat|deprovision|disrupt`)
	podReference    = regexp.MustCompile(`(?i)\bpod "([^"/]+)/([^"]+)"`)
)

// AnnotationBlocker returns the code of the first annotation rule matching
// annotations.
func AnnotationBlocker(annotations map[string]string) (string, bool) {
	for _, r := range AnnotationRules {
		if annotations[r.Annotation] == "true" {
			return r.Code, true
		}
	}
	return "", false
}

// NormalizeMessage maps a free-text event message onto a code. Messages no
// rule recognizes yield false.
func NormalizeMessage(message string) (string, bool) {
	for _, r := range MessageRules {
		if r.Pattern.MatchString(message) {
			return r.Code, true
		}
	}
	return "", false
}

// IsConsolidationEvent reports whether e is about consolidation at all.
func IsConsolidationEvent(e types.NodeEvent) bool {
	return blockingReasons.Has(e.Reason) || relevantMessage.MatchString(e.Message)
}

// ReferencedPod extracts "namespace/name" from a message of the form
// `Pod "namespace/name" ...`, in either case.
func ReferencedPod(message string) (string, bool) {
	m := podReference.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return m[1] + "/" + m[2], true
}
