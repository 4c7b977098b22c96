package webhook

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/lucasnoah/adwd/internal/github"
	"github.com/lucasnoah/adwd/internal/remediate"
	"github.com/lucasnoah/adwd/internal/review"
	"github.com/lucasnoah/adwd/internal/workflow"
)

// WorkflowRunner is the slice of workflow operations the handlers drive.
// *workflow.Runner satisfies it.
type WorkflowRunner interface {
	Run(ctx context.Context, issueNumber int, kind workflow.Kind) (*workflow.Result, error)
	Review(ctx context.Context, workflowID string, issueNumber int, diffSummary string) (*workflow.ReviewOutcome, error)
}

// ReviewHandler acts on parsed review outcomes. *remediate.Orchestrator
// satisfies it.
type ReviewHandler interface {
	HandleReviewResult(ctx context.Context, p remediate.Params) *remediate.ActionResult
}

// Forge is the slice of GitHub operations the handlers need.
type Forge interface {
	GetIssue(number int) (*github.Issue, error)
	CommentIssue(number int, body string) error
}

// Handler turns routed webhook events into workflow runs and review cycles.
type Handler struct {
	router *Router
	runner WorkflowRunner
	orch   ReviewHandler
	gh     Forge
}

// NewHandler wires a webhook handler.
func NewHandler(router *Router, runner WorkflowRunner, orch ReviewHandler, gh Forge) *Handler {
	return &Handler{router: router, runner: runner, orch: orch, gh: gh}
}

// EventResult reports what an event handler did. It is serialized into the
// webhook HTTP response.
type EventResult struct {
	Triggered    bool                    `json:"workflow_triggered"`
	Reason       string                  `json:"reason,omitempty"`
	Kind         workflow.Kind           `json:"workflow_type,omitempty"`
	IssueNumber  int                     `json:"issue_number,omitempty"`
	PRNumber     int                     `json:"pr_number,omitempty"`
	WorkflowID   string                  `json:"adw_id,omitempty"`
	Success      bool                    `json:"success"`
	Error        string                  `json:"error,omitempty"`
	IssueNumbers []int                   `json:"issue_numbers,omitempty"`
	ReviewAction *remediate.ActionResult `json:"review_action,omitempty"`
}

// HandleIssueEvent routes an issues event to a workflow run. Events with
// no matching label, an ignored action, or a deduplicated trigger report
// Triggered=false with a reason.
func (h *Handler) HandleIssueEvent(ctx context.Context, ev *IssueEvent) *EventResult {
	kind, label, ok := h.router.DetermineWorkflow(&ev.Issue, ev.Action)
	if !ok {
		return &EventResult{
			Reason:      "no matching workflow for this issue event",
			IssueNumber: ev.Issue.Number,
		}
	}

	result := &EventResult{
		Triggered:   true,
		Kind:        kind,
		IssueNumber: ev.Issue.Number,
	}

	detected := fmt.Sprintf(
		"**Workflow Detected: `%s` label**\n\n**Workflow:** `%s`\n\nWorkflow execution is starting. Results will be posted here.",
		label, kind,
	)
	if err := h.gh.CommentIssue(ev.Issue.Number, detected); err != nil {
		log.Printf("adwd: post workflow detection comment to issue #%d: %v", ev.Issue.Number, err)
	}

	run, err := h.runner.Run(ctx, ev.Issue.Number, kind)
	if run != nil {
		result.WorkflowID = run.WorkflowID
	}
	if err != nil {
		log.Printf("adwd: %s workflow for issue #%d: %v", kind, ev.Issue.Number, err)
		result.Error = err.Error()

		body := fmt.Sprintf(
			"**Workflow Error**\n\n**ADW ID:** `%s`\n\n```\n%s\n```\n\nThe workflow encountered an error. Check the daemon logs for details.",
			result.WorkflowID, err.Error(),
		)
		if cerr := h.gh.CommentIssue(ev.Issue.Number, body); cerr != nil {
			log.Printf("adwd: post workflow error comment to issue #%d: %v", ev.Issue.Number, cerr)
		}
		return result
	}

	result.Success = run.Success
	return result
}

// HandlePullRequestEvent runs the review cycle for a PR that closes at
// least one issue. The review verdict is posted to every linked issue and
// then handed to the remediation orchestrator.
func (h *Handler) HandlePullRequestEvent(ctx context.Context, ev *PullRequestEvent) *EventResult {
	if ev.Action != "opened" && ev.Action != "synchronize" {
		return &EventResult{
			Reason:   fmt.Sprintf("PR action %q does not trigger review", ev.Action),
			PRNumber: ev.Number,
		}
	}

	refs := ExtractIssueReferences(ev.PullRequest.Body)
	if len(refs) == 0 {
		return &EventResult{
			Reason:   "no issue references found in PR body",
			PRNumber: ev.Number,
		}
	}

	result := &EventResult{
		Triggered:    true,
		Kind:         "review",
		PRNumber:     ev.Number,
		IssueNumbers: refs,
	}

	prURL := ev.PullRequest.HTMLURL
	if prURL == "" {
		prURL = fmt.Sprintf("https://github.com/%s/pull/%d", ev.Repository.FullName, ev.Number)
	}

	// Minted before the start comment; every later comment references it.
	reviewID := workflow.NewID()
	result.WorkflowID = reviewID

	started := fmt.Sprintf(
		"**Pull Request Review Started**\n\n**PR:** [#%d](%s)\n**ADW ID:** `%s`\n\nAutomated review is in progress. Results will be posted shortly.",
		ev.Number, prURL, reviewID,
	)
	for _, issue := range refs {
		if err := h.gh.CommentIssue(issue, started); err != nil {
			log.Printf("adwd: post review start comment to issue #%d: %v", issue, err)
		}
	}

	var diffSummary string
	if ev.PullRequest.Head.Ref != "" {
		base := ev.PullRequest.Base.Ref
		if base == "" {
			base = "main"
		}
		diffSummary = fmt.Sprintf("PR #%d merges %s into %s", ev.Number, ev.PullRequest.Head.Ref, base)
	}

	outcome, err := h.runner.Review(ctx, reviewID, refs[0], diffSummary)
	if err != nil {
		log.Printf("adwd: review workflow for PR #%d: %v", ev.Number, err)
		result.Error = err.Error()

		body := fmt.Sprintf(
			"**Pull Request Review Failed**\n\n**PR:** [#%d](%s)\n**ADW ID:** `%s`\n\nThe review workflow encountered an error:\n```\n%s\n```",
			ev.Number, prURL, reviewID, err.Error(),
		)
		for _, issue := range refs {
			if cerr := h.gh.CommentIssue(issue, body); cerr != nil {
				log.Printf("adwd: post review error comment to issue #%d: %v", issue, cerr)
			}
		}
		return result
	}
	result.WorkflowID = outcome.WorkflowID

	reviewComment := formatReviewComment(outcome.Output, ev.Number, prURL, outcome.WorkflowID)
	for _, issue := range refs {
		if err := h.gh.CommentIssue(issue, reviewComment); err != nil {
			log.Printf("adwd: post review results to issue #%d: %v", issue, err)
		}
	}

	originalPrompt, issueTitle := h.issueContext(refs[0], ev.Number)

	result.ReviewAction = h.orch.HandleReviewResult(ctx, remediate.Params{
		ReviewWorkflowID: outcome.WorkflowID,
		ReviewOutput:     outcome.Output,
		PRNumber:         ev.Number,
		Issues:           refs,
		Repo:             ev.Repository.FullName,
		OriginalPrompt:   originalPrompt,
		IssueTitle:       issueTitle,
	})
	result.Success = true
	return result
}

// issueContext fetches the primary issue so the remediation prompt can
// carry the original task text. Fetch failures fall back to a PR-based
// placeholder rather than aborting the review cycle.
func (h *Handler) issueContext(issueNumber, prNumber int) (originalPrompt, issueTitle string) {
	issue, err := h.gh.GetIssue(issueNumber)
	if err != nil {
		log.Printf("adwd: fetch issue #%d for review context: %v", issueNumber, err)
		return fmt.Sprintf("Implement changes for PR #%d", prNumber), fmt.Sprintf("PR #%d", prNumber)
	}
	return fmt.Sprintf("# %s\n\n%s", issue.Title, issue.Body), issue.Title
}

// formatReviewComment renders a reviewer's verdict as a markdown comment.
func formatReviewComment(raw string, prNumber int, prURL, workflowID string) string {
	v := review.Parse(raw)

	var b strings.Builder
	b.WriteString("**Pull Request Review Complete**\n\n")
	fmt.Fprintf(&b, "**PR:** [#%d](%s)\n", prNumber, prURL)
	fmt.Fprintf(&b, "**ADW ID:** `%s`\n", workflowID)
	fmt.Fprintf(&b, "**Status:** %s\n", v.Status)

	if v.Summary != "" {
		fmt.Fprintf(&b, "\n## Summary\n%s\n", v.Summary)
	}

	if v.HasIssues() {
		b.WriteString("\n## Issues Found\n")
		for _, sev := range review.Severities {
			if len(v.Issues[sev]) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n### %s\n", sev)
			for _, item := range v.Issues[sev] {
				fmt.Fprintf(&b, "- %s\n", item)
			}
		}
	}

	if len(v.Recommendations) > 0 {
		b.WriteString("\n## Recommendations\n")
		for i, rec := range v.Recommendations {
			fmt.Fprintf(&b, "%d. %s\n", i+1, rec)
		}
	}

	return strings.TrimSpace(b.String())
}
