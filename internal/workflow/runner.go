package workflow

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/semaphore"

	"github.com/lucasnoah/adwd/internal/github"
	"github.com/lucasnoah/adwd/internal/prompt"
	"github.com/lucasnoah/adwd/internal/worktree"
)

// Forge is the slice of GitHub operations workflows need. *github.Client
// satisfies it; tests supply fakes.
type Forge interface {
	GetIssue(number int) (*github.Issue, error)
	CommentIssue(number int, body string) error
	CreateBranch(dir, branch string) error
	CommitAll(dir, message string) (committed bool, err error)
	PushBranch(dir, branch string) error
	CreatePR(opts github.PRCreateOpts) (*github.PRCreateResult, error)
}

// Recorder persists workflow audit events. *db.DB satisfies it.
type Recorder interface {
	LogWorkflowEvent(workflowID string, issue int, kind string, event string, detail string) error
}

// Worktrees provisions isolated checkouts for workflow runs.
type Worktrees interface {
	Create(opts worktree.CreateOpts) (*worktree.CreateResult, error)
	Remove(workflowID string, deleteBranch bool) error
}

// RunnerOpts configures a Runner.
type RunnerOpts struct {
	// Workdir is the shared repository checkout used when Worktrees is nil.
	Workdir string
	// Worktrees, when set, gives each run its own checkout.
	Worktrees Worktrees
	// MaxConcurrent bounds simultaneous workflow runs.
	MaxConcurrent int
	// ArtifactDir is where per-run result files land.
	ArtifactDir string
}

// Runner drives issue workflows end to end: plan, implement, commit,
// push, and open a PR that closes the issue.
type Runner struct {
	exec        Executor
	forge       Forge
	rec         Recorder
	trees       Worktrees
	workdir     string
	artifactDir string
	sem         *semaphore.Weighted
}

// NewRunner creates a workflow runner.
func NewRunner(exec Executor, forge Forge, rec Recorder, opts RunnerOpts) *Runner {
	max := int64(opts.MaxConcurrent)
	if max < 1 {
		max = 1
	}
	return &Runner{
		exec:        exec,
		forge:       forge,
		rec:         rec,
		trees:       opts.Worktrees,
		workdir:     opts.Workdir,
		artifactDir: opts.ArtifactDir,
		sem:         semaphore.NewWeighted(max),
	}
}

// Run executes a workflow for an issue. KindPlan stops after the planner;
// KindPlanImplement continues through implementation and opens a PR.
func (r *Runner) Run(ctx context.Context, issueNumber int, kind Kind) (*Result, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire workflow slot: %w", err)
	}
	defer r.sem.Release(1)

	id := NewID()
	result := &Result{WorkflowID: id, Issue: issueNumber, Kind: kind}
	r.record(id, issueNumber, kind, "started", "")

	issue, err := r.forge.GetIssue(issueNumber)
	if err != nil {
		return r.fail(result, fmt.Errorf("fetch issue: %w", err))
	}

	branch := worktree.BranchName(issue.Number, issue.Title)
	dir, cleanup, err := r.checkout(id, branch)
	if err != nil {
		return r.fail(result, err)
	}
	defer cleanup()
	result.Branch = branch

	// Plan.
	planPrompt, err := prompt.RenderTemplate(prompt.TemplatePlan, prompt.Vars{
		"issue_title":  issue.Title,
		"issue_number": strconv.Itoa(issue.Number),
		"issue_body":   truncateBody(issue.Body),
	})
	if err != nil {
		return r.fail(result, err)
	}
	planResp, err := r.exec.Execute(ctx, Request{WorkflowID: id, Agent: "planner", Prompt: planPrompt, Workdir: dir})
	if err != nil {
		return r.fail(result, fmt.Errorf("planner: %w", err))
	}

	planPath := ExtractPlanPath(planResp.Output)
	if planPath == "" {
		// A planner that exits cleanly without producing a plan file has
		// not done its job; treat it as a failure, not a silent success.
		return r.fail(result, fmt.Errorf("planner produced no plan file"))
	}
	result.PlanPath = planPath
	r.record(id, issueNumber, kind, "plan_created", planPath)

	if kind == KindPlan {
		if committed, err := r.forge.CommitAll(dir, fmt.Sprintf("docs: plan for issue #%d", issue.Number)); err != nil {
			return r.fail(result, err)
		} else if committed {
			if err := r.forge.PushBranch(dir, branch); err != nil {
				return r.fail(result, err)
			}
		}
		return r.finish(result, issue, "")
	}

	// Implement.
	implPrompt, err := prompt.RenderTemplate(prompt.TemplateImplement, prompt.Vars{
		"issue_title":  issue.Title,
		"issue_number": strconv.Itoa(issue.Number),
		"issue_body":   truncateBody(issue.Body),
		"plan_file":    planPath,
	})
	if err != nil {
		return r.fail(result, err)
	}
	if _, err := r.exec.Execute(ctx, Request{WorkflowID: id, Agent: "implementor", Prompt: implPrompt, Workdir: dir}); err != nil {
		return r.fail(result, fmt.Errorf("implementor: %w", err))
	}
	r.record(id, issueNumber, kind, "implemented", "")

	prURL, err := r.shipChanges(dir, branch, issue, id)
	if err != nil {
		return r.fail(result, err)
	}
	return r.finish(result, issue, prURL)
}

// Reimplement runs a fresh plan+implement cycle for an already-reviewed
// issue. The remediation prompt carrying the review feedback goes to the
// planner, and the implementor then executes the plan it produced.
func (r *Runner) Reimplement(ctx context.Context, issueNumber int, remediationPrompt string) (*Result, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire workflow slot: %w", err)
	}
	defer r.sem.Release(1)

	id := NewID()
	result := &Result{WorkflowID: id, Issue: issueNumber, Kind: KindPlanImplement}
	r.record(id, issueNumber, KindPlanImplement, "reimplement_started", "")

	issue, err := r.forge.GetIssue(issueNumber)
	if err != nil {
		return r.fail(result, fmt.Errorf("fetch issue: %w", err))
	}

	branch := worktree.BranchName(issue.Number, issue.Title)
	dir, cleanup, err := r.checkout(id, branch)
	if err != nil {
		return r.fail(result, err)
	}
	defer cleanup()
	result.Branch = branch

	planResp, err := r.exec.Execute(ctx, Request{WorkflowID: id, Agent: "planner", Prompt: remediationPrompt, Workdir: dir})
	if err != nil {
		return r.fail(result, fmt.Errorf("planner: %w", err))
	}
	planPath := ExtractPlanPath(planResp.Output)
	if planPath == "" {
		return r.fail(result, fmt.Errorf("planner produced no plan file"))
	}
	result.PlanPath = planPath
	r.record(id, issueNumber, KindPlanImplement, "plan_created", planPath)

	implPrompt, err := prompt.RenderTemplate(prompt.TemplateImplement, prompt.Vars{
		"issue_title":  issue.Title,
		"issue_number": strconv.Itoa(issue.Number),
		"issue_body":   truncateBody(issue.Body),
		"plan_file":    planPath,
	})
	if err != nil {
		return r.fail(result, err)
	}
	if _, err := r.exec.Execute(ctx, Request{WorkflowID: id, Agent: "implementor", Prompt: implPrompt, Workdir: dir}); err != nil {
		return r.fail(result, fmt.Errorf("implementor: %w", err))
	}
	r.record(id, issueNumber, KindPlanImplement, "implemented", "remediation")

	prURL, err := r.shipChanges(dir, branch, issue, id)
	if err != nil {
		return r.fail(result, err)
	}
	return r.finish(result, issue, prURL)
}

// ReviewOutcome carries a reviewer run's raw output and the workflow id
// that identifies its artifacts.
type ReviewOutcome struct {
	WorkflowID string
	Output     string
}

// Review runs the reviewer agent against an issue's changes and returns
// its raw output for parsing. Callers that announce the review before it
// starts pass the workflow id they already published; an empty id gets a
// fresh one.
func (r *Runner) Review(ctx context.Context, workflowID string, issueNumber int, diffSummary string) (*ReviewOutcome, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire workflow slot: %w", err)
	}
	defer r.sem.Release(1)

	if workflowID == "" {
		workflowID = NewID()
	}

	issue, err := r.forge.GetIssue(issueNumber)
	if err != nil {
		return nil, fmt.Errorf("fetch issue: %w", err)
	}

	vars := prompt.Vars{
		"issue_title":  issue.Title,
		"issue_number": strconv.Itoa(issue.Number),
		"issue_body":   truncateBody(issue.Body),
	}
	if diffSummary != "" {
		vars["diff_summary"] = diffSummary
	}
	reviewPrompt, err := prompt.RenderTemplate(prompt.TemplateReview, vars)
	if err != nil {
		return nil, err
	}

	resp, err := r.exec.Execute(ctx, Request{WorkflowID: workflowID, Agent: "reviewer", Prompt: reviewPrompt, Workdir: r.workdir})
	if err != nil {
		return nil, fmt.Errorf("reviewer: %w", err)
	}
	r.record(workflowID, issueNumber, "", "review_received", "")
	return &ReviewOutcome{WorkflowID: workflowID, Output: resp.Output}, nil
}

// checkout resolves the directory a run works in. With worktrees enabled
// each run gets an isolated checkout; otherwise the shared workdir is
// branched in place.
func (r *Runner) checkout(id, branch string) (dir string, cleanup func(), err error) {
	if r.trees != nil {
		res, err := r.trees.Create(worktree.CreateOpts{WorkflowID: id, Branch: branch})
		if err != nil {
			return "", nil, fmt.Errorf("create worktree: %w", err)
		}
		return res.Path, func() {
			if err := r.trees.Remove(id, false); err != nil {
				log.Printf("adwd: remove worktree %s: %v", id, err)
			}
		}, nil
	}

	if err := r.forge.CreateBranch(r.workdir, branch); err != nil {
		return "", nil, err
	}
	return r.workdir, func() {}, nil
}

// shipChanges commits, pushes, and ensures a PR exists for the branch.
// Returns the PR URL, or "" when the agent produced no changes to ship.
func (r *Runner) shipChanges(dir, branch string, issue *github.Issue, id string) (string, error) {
	committed, err := r.forge.CommitAll(dir, fmt.Sprintf("feat: implement issue #%d", issue.Number))
	if err != nil {
		return "", err
	}
	if !committed {
		log.Printf("adwd: workflow %s produced no changes for issue #%d", id, issue.Number)
		return "", nil
	}
	if err := r.forge.PushBranch(dir, branch); err != nil {
		return "", err
	}

	pr, err := r.forge.CreatePR(github.PRCreateOpts{
		Title:  fmt.Sprintf("Issue #%d: %s", issue.Number, issue.Title),
		Body:   fmt.Sprintf("Closes #%d\n\nAutomated implementation.", issue.Number),
		Branch: branch,
	})
	if err != nil {
		return "", err
	}
	if !pr.AlreadyExists {
		r.record(id, issue.Number, "", "pr_opened", pr.URL)
	}
	return pr.URL, nil
}

// finish marks the run successful, comments on the issue, and persists
// the result artifact.
func (r *Runner) finish(result *Result, issue *github.Issue, prURL string) (*Result, error) {
	result.Success = true
	result.PRURL = prURL
	r.record(result.WorkflowID, result.Issue, result.Kind, "completed", prURL)

	body := fmt.Sprintf("Workflow `%s` completed for issue #%d.", result.WorkflowID, issue.Number)
	if prURL != "" {
		body += fmt.Sprintf("\n\nPull request: %s", prURL)
	}
	if result.PlanPath != "" {
		body += fmt.Sprintf("\nPlan: `%s`", result.PlanPath)
	}
	if err := r.forge.CommentIssue(issue.Number, body); err != nil {
		log.Printf("adwd: comment on issue #%d: %v", issue.Number, err)
	}

	r.saveResult(result)
	return result, nil
}

// fail marks the run failed and persists the result artifact. The error
// is returned so callers can surface it.
func (r *Runner) fail(result *Result, err error) (*Result, error) {
	result.Success = false
	result.Error = err.Error()
	r.record(result.WorkflowID, result.Issue, result.Kind, "failed", err.Error())
	r.saveResult(result)
	return result, err
}

func (r *Runner) record(id string, issue int, kind Kind, event, detail string) {
	if r.rec == nil {
		return
	}
	if err := r.rec.LogWorkflowEvent(id, issue, string(kind), event, detail); err != nil {
		log.Printf("adwd: log workflow event %s/%s: %v", id, event, err)
	}
}

func (r *Runner) saveResult(result *Result) {
	if r.artifactDir == "" {
		return
	}
	path := filepath.Join(r.artifactDir, result.WorkflowID, "result.json")
	if err := WriteJSON(path, result); err != nil {
		log.Printf("adwd: save result %s: %v", path, err)
	}
}
