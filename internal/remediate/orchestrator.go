package remediate

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/lucasnoah/adwd/internal/github"
	"github.com/lucasnoah/adwd/internal/guard"
	"github.com/lucasnoah/adwd/internal/prompt"
	"github.com/lucasnoah/adwd/internal/review"
	"github.com/lucasnoah/adwd/internal/workflow"
)

// Action tags reported in an ActionResult.
const (
	ActionApproved         = "approved"
	ActionChangesRequested = "changes_requested"
	ActionMaxAttempts      = "max_attempts_reached"
	ActionCommentOnly      = "comment_only"
	ActionError            = "error"
)

// GitHub is the slice of forge operations the orchestrator needs.
// *github.Client satisfies it.
type GitHub interface {
	MergePR(prNumber int, method string) error
	CommentIssue(number int, body string) error
}

// Runner triggers a fresh implementation cycle. *workflow.Runner satisfies it.
type Runner interface {
	Reimplement(ctx context.Context, issueNumber int, remediationPrompt string) (*workflow.Result, error)
}

// Recorder persists review outcomes. *db.DB satisfies it.
type Recorder interface {
	LogReviewResult(workflowID string, issue int, prNumber int, approvalStatus string, action string, attempt int, summary string) error
}

// Policy holds the configuration knobs the orchestrator consults. It is a
// snapshot of the workflows section of the config, taken at construction.
type Policy struct {
	AutoMergeOnApproval      bool
	AutoReimplementOnChanges bool
	MergeMethod              string
	MaxAttempts              int
}

// Params carries one review outcome into HandleReviewResult.
type Params struct {
	// ReviewWorkflowID identifies the workflow run that produced the review.
	ReviewWorkflowID string
	// ReviewOutput is the reviewer agent's raw free-text output.
	ReviewOutput string
	// PRNumber is the pull request that was reviewed.
	PRNumber int
	// Issues are the issue numbers the PR claims to close. The first entry
	// is the primary issue for attempt tracking.
	Issues []int
	// Repo is the "owner/name" the PR belongs to.
	Repo string
	// OriginalPrompt is the task text the implementation was built from.
	OriginalPrompt string
	// IssueTitle is the primary issue's title.
	IssueTitle string
}

// ActionResult reports what the orchestrator did with a review.
type ActionResult struct {
	Action                    string                        `json:"action"`
	Success                   bool                          `json:"success"`
	ApprovalStatus            review.Status                 `json:"approval_status,omitempty"`
	Summary                   string                        `json:"summary,omitempty"`
	Recommendations           []string                      `json:"recommendations,omitempty"`
	Issues                    map[review.Severity][]string `json:"issues,omitempty"`
	AttemptCount              int                           `json:"attempt_count,omitempty"`
	MergeAttempted            bool                          `json:"merge_attempted,omitempty"`
	ReimplementationAttempted bool                          `json:"reimplementation_attempted,omitempty"`
	NewWorkflowID             string                        `json:"new_adw_id,omitempty"`
	Error                     string                        `json:"error,omitempty"`
}

// Orchestrator turns parsed review verdicts into actions: merge, re-implement,
// or leave for discussion. All collaborator failures are absorbed into the
// returned ActionResult so the webhook handler stays responsive.
type Orchestrator struct {
	gh       GitHub
	runner   Runner
	attempts *guard.AttemptTracker
	rec      Recorder
	policy   Policy
}

// NewOrchestrator creates an orchestrator. rec may be nil when no event
// log is configured.
func NewOrchestrator(gh GitHub, runner Runner, attempts *guard.AttemptTracker, rec Recorder, policy Policy) *Orchestrator {
	return &Orchestrator{gh: gh, runner: runner, attempts: attempts, rec: rec, policy: policy}
}

// HandleReviewResult parses the review output and drives the resulting
// action. It always returns a result and never panics: collaborator panics
// are recovered and reported as an error action.
func (o *Orchestrator) HandleReviewResult(ctx context.Context, p Params) (result *ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("adwd: review handling panicked for PR #%d: %v", p.PRNumber, r)
			result = &ActionResult{
				Action: ActionError,
				Error:  fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	// The repo identifier must split cleanly before anything touches GitHub.
	if _, _, err := github.SplitRepo(p.Repo); err != nil {
		return &ActionResult{
			Action: ActionError,
			Error:  "invalid repository name format",
		}
	}

	verdict := review.Parse(p.ReviewOutput)
	result = &ActionResult{
		Action:          strings.ToLower(string(verdict.Status)),
		ApprovalStatus:  verdict.Status,
		Summary:         verdict.Summary,
		Recommendations: verdict.Recommendations,
		Issues:          verdict.Issues,
	}

	switch {
	case verdict.Status == review.StatusApproved && o.policy.AutoMergeOnApproval:
		o.handleApproved(p, result)
	case verdict.Status == review.StatusChangesRequested && o.policy.AutoReimplementOnChanges:
		o.handleChangesRequested(ctx, p, &verdict, result)
	default:
		// NEEDS_DISCUSSION, or the relevant auto-action is disabled. The
		// review comment posted upstream is all the feedback the issue gets.
		result.Action = ActionCommentOnly
		result.Success = true
	}

	o.logReview(p, result)
	return result
}

// handleApproved merges the PR and resets attempt counters on success.
func (o *Orchestrator) handleApproved(p Params, result *ActionResult) {
	result.MergeAttempted = true

	mergeErr := o.gh.MergePR(p.PRNumber, o.policy.MergeMethod)
	result.Success = mergeErr == nil
	if mergeErr != nil {
		result.Error = mergeErr.Error()
	}

	if mergeErr == nil {
		for _, issue := range p.Issues {
			o.attempts.Reset(issue)
		}
	}

	prURL := fmt.Sprintf("https://github.com/%s/pull/%d", p.Repo, p.PRNumber)
	body := mergeComment(p.PRNumber, prURL, p.ReviewWorkflowID, mergeErr)
	for _, issue := range p.Issues {
		if err := o.gh.CommentIssue(issue, body); err != nil {
			log.Printf("adwd: post merge comment to issue #%d: %v", issue, err)
		}
	}
}

// handleChangesRequested runs the loop-prevention check and, when allowed,
// kicks off a fresh implementation cycle with the review feedback folded
// into the prompt.
func (o *Orchestrator) handleChangesRequested(ctx context.Context, p Params, verdict *review.Verdict, result *ActionResult) {
	primary := 0
	if len(p.Issues) > 0 {
		primary = p.Issues[0]
	}

	allowed, count := o.attempts.Check(primary, o.policy.MaxAttempts)
	if !allowed {
		log.Printf("adwd: max re-implementation attempts (%d) reached for issue #%d", o.policy.MaxAttempts, primary)
		result.Action = ActionMaxAttempts
		result.AttemptCount = count

		body := maxAttemptsComment(count, o.policy.MaxAttempts)
		for _, issue := range p.Issues {
			if err := o.gh.CommentIssue(issue, body); err != nil {
				log.Printf("adwd: post max attempts comment to issue #%d: %v", issue, err)
			}
		}
		return
	}

	result.AttemptCount = o.attempts.Increment(primary)

	feedback := BuildFeedback(verdict)
	remediationPrompt, err := prompt.RenderTemplate(prompt.TemplateRemediate, prompt.Vars{
		"original_prompt": p.OriginalPrompt,
		"feedback":        feedback,
	})
	if err != nil {
		result.Error = err.Error()
		return
	}

	run, err := o.runner.Reimplement(ctx, primary, remediationPrompt)
	if run != nil {
		result.NewWorkflowID = run.WorkflowID
		// Success reports the planning phase of the new cycle; an
		// implementation failure after a produced plan does not clear it.
		result.Success = run.PlanPath != ""
	}
	if err != nil {
		log.Printf("adwd: re-implementation for issue #%d: %v", primary, err)
		result.Error = err.Error()
		return
	}
	result.ReimplementationAttempted = true

	body := reimplementationComment(p.ReviewWorkflowID, run.WorkflowID, feedback)
	for _, issue := range p.Issues {
		if err := o.gh.CommentIssue(issue, body); err != nil {
			log.Printf("adwd: post re-implementation comment to issue #%d: %v", issue, err)
		}
	}
}

func (o *Orchestrator) logReview(p Params, result *ActionResult) {
	if o.rec == nil {
		return
	}
	primary := 0
	if len(p.Issues) > 0 {
		primary = p.Issues[0]
	}
	err := o.rec.LogReviewResult(
		p.ReviewWorkflowID, primary, p.PRNumber,
		string(result.ApprovalStatus), result.Action, result.AttemptCount, result.Summary,
	)
	if err != nil {
		log.Printf("adwd: log review result for PR #%d: %v", p.PRNumber, err)
	}
}
