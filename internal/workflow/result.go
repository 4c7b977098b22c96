package workflow

import (
	"regexp"

	"github.com/lithammer/shortuuid/v3"
)

// Kind names a workflow triggered by a webhook event or CLI command.
type Kind string

const (
	// KindPlan produces an implementation plan only.
	KindPlan Kind = "chore"
	// KindPlanImplement plans, implements, and opens a PR.
	KindPlanImplement Kind = "chore_implement"
)

// NewID returns a short random workflow identifier. Eight characters of a
// shortuuid keeps IDs readable in branch names and comments while staying
// unique enough for a single daemon's lifetime.
func NewID() string {
	return shortuuid.New()[:8]
}

// Result captures the outcome of a workflow run. It is written as JSON to
// the workflow's artifact directory and summarized in issue comments.
type Result struct {
	WorkflowID string `json:"adw_id"`
	Issue      int    `json:"issue"`
	Kind       Kind   `json:"kind"`
	Branch     string `json:"branch,omitempty"`
	PlanPath   string `json:"plan_path,omitempty"`
	PRURL      string `json:"pr_url,omitempty"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

var planPathRe = regexp.MustCompile(`specs/chore-[a-zA-Z0-9\-]+\.md`)

// ExtractPlanPath finds the plan file path in a planner agent's output.
// Returns the empty string when no plan path is present.
func ExtractPlanPath(output string) string {
	return planPathRe.FindString(output)
}

// maxPromptBody bounds how much of an issue body goes into an agent prompt.
const maxPromptBody = 500

// truncateBody caps an issue body before it is rendered into a prompt
// template.
func truncateBody(body string) string {
	if len(body) > maxPromptBody {
		return body[:maxPromptBody] + "..."
	}
	return body
}
