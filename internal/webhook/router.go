package webhook

import (
	"log"
	"regexp"
	"sort"
	"strconv"

	"github.com/lucasnoah/adwd/internal/guard"
	"github.com/lucasnoah/adwd/internal/workflow"
)

// triggerLabels maps issue labels to workflow kinds in priority order:
// the first label present on the issue wins.
var triggerLabels = []struct {
	label string
	kind  workflow.Kind
}{
	{"bug", workflow.KindPlanImplement},
	{"implement", workflow.KindPlanImplement},
	{"feature", workflow.KindPlan},
	{"chore", workflow.KindPlan},
	{"plan", workflow.KindPlan},
}

// Router maps webhook events to workflow kinds, consulting the dedup
// cache before committing to a trigger.
type Router struct {
	dedup *guard.DedupCache
}

// NewRouter creates a router backed by the given dedup cache.
func NewRouter(dedup *guard.DedupCache) *Router {
	return &Router{dedup: dedup}
}

// DetermineWorkflow maps an issue event to a workflow kind and the label
// that selected it. Only "opened" and "labeled" actions are considered.
// Returns ok=false when no workflow applies or the trigger was recently
// deduplicated.
func (r *Router) DetermineWorkflow(issue *Issue, action string) (kind workflow.Kind, label string, ok bool) {
	if action != "opened" && action != "labeled" {
		return "", "", false
	}

	labels := issue.LabelNames()
	for _, t := range triggerLabels {
		if containsString(labels, t.label) {
			kind = t.kind
			label = t.label
			break
		}
	}
	if kind == "" {
		return "", "", false
	}

	// Dedup last: GitHub delivers "opened" and "labeled" for one creation.
	if !r.dedup.ShouldTrigger(issue.Number, string(kind)) {
		log.Printf("adwd: suppressed duplicate %s trigger for issue #%d", kind, issue.Number)
		return "", "", false
	}

	return kind, label, true
}

var issueRefRe = regexp.MustCompile(`(?i)(?:closes|fixes|resolves)\s+#(\d+)`)

// ExtractIssueReferences finds issue-closing references (closes/fixes/
// resolves #N, case-insensitive) in a PR body. The result is deduplicated
// and sorted; an empty body yields an empty slice.
func ExtractIssueReferences(body string) []int {
	seen := make(map[int]bool)
	for _, m := range issueRefRe.FindAllStringSubmatch(body, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		seen[n] = true
	}

	refs := make([]int, 0, len(seen))
	for n := range seen {
		refs = append(refs, n)
	}
	sort.Ints(refs)
	return refs
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
