package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lucasnoah/adwd/internal/github"
)

// fakeExecutor returns canned outputs keyed by agent name.
type fakeExecutor struct {
	outputs  map[string]string
	errs     map[string]error
	requests []Request
}

func (f *fakeExecutor) Execute(ctx context.Context, req Request) (*Response, error) {
	f.requests = append(f.requests, req)
	if err := f.errs[req.Agent]; err != nil {
		return nil, err
	}
	return &Response{Output: f.outputs[req.Agent]}, nil
}

type fakeForge struct {
	issue      *github.Issue
	issueErr   error
	comments   []string
	branches   []string
	commits    []string
	committed  bool
	pushes     []string
	prs        []github.PRCreateOpts
	prResult   *github.PRCreateResult
	prErr      error
	pushErr    error
}

func (f *fakeForge) GetIssue(number int) (*github.Issue, error) {
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	return f.issue, nil
}

func (f *fakeForge) CommentIssue(number int, body string) error {
	f.comments = append(f.comments, body)
	return nil
}

func (f *fakeForge) CreateBranch(dir, branch string) error {
	f.branches = append(f.branches, branch)
	return nil
}

func (f *fakeForge) CommitAll(dir, message string) (bool, error) {
	f.commits = append(f.commits, message)
	return f.committed, nil
}

func (f *fakeForge) PushBranch(dir, branch string) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushes = append(f.pushes, branch)
	return nil
}

func (f *fakeForge) CreatePR(opts github.PRCreateOpts) (*github.PRCreateResult, error) {
	f.prs = append(f.prs, opts)
	if f.prErr != nil {
		return nil, f.prErr
	}
	if f.prResult != nil {
		return f.prResult, nil
	}
	return &github.PRCreateResult{URL: "https://github.com/org/repo/pull/1"}, nil
}

type fakeRecorder struct {
	events []string
}

func (f *fakeRecorder) LogWorkflowEvent(id string, issue int, kind, event, detail string) error {
	f.events = append(f.events, event)
	return nil
}

func testIssue() *github.Issue {
	return &github.Issue{Number: 42, Title: "Add auth", Body: "Implement login."}
}

func TestRun_PlanImplement(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{
		"planner":     "Plan written to specs/chore-add-auth.md",
		"implementor": "done",
	}}
	forge := &fakeForge{issue: testIssue(), committed: true}
	rec := &fakeRecorder{}

	r := NewRunner(exec, forge, rec, RunnerOpts{Workdir: "/repo", MaxConcurrent: 2})
	result, err := r.Run(context.Background(), 42, KindPlanImplement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Success {
		t.Error("expected success")
	}
	if result.PlanPath != "specs/chore-add-auth.md" {
		t.Errorf("plan path = %q", result.PlanPath)
	}
	if result.Branch != "issue-42-add-auth" {
		t.Errorf("branch = %q", result.Branch)
	}
	if result.PRURL == "" {
		t.Error("expected PR URL")
	}

	// Planner then implementor.
	if len(exec.requests) != 2 || exec.requests[0].Agent != "planner" || exec.requests[1].Agent != "implementor" {
		t.Errorf("unexpected agent sequence: %+v", exec.requests)
	}
	// Implement prompt carries the plan file.
	if !strings.Contains(exec.requests[1].Prompt, "specs/chore-add-auth.md") {
		t.Error("implement prompt should reference the plan file")
	}

	if len(forge.prs) != 1 {
		t.Fatalf("expected 1 PR, got %d", len(forge.prs))
	}
	if !strings.Contains(forge.prs[0].Body, "Closes #42") {
		t.Errorf("PR body should close the issue, got %q", forge.prs[0].Body)
	}
	if len(forge.pushes) != 1 || forge.pushes[0] != "issue-42-add-auth" {
		t.Errorf("expected push of issue branch, got %v", forge.pushes)
	}
	if len(forge.comments) != 1 {
		t.Fatalf("expected completion comment, got %d", len(forge.comments))
	}

	assertEvents(t, rec.events, "started", "plan_created", "implemented", "pr_opened", "completed")
}

func TestRun_PlanOnly(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{
		"planner": "specs/chore-add-auth.md",
	}}
	forge := &fakeForge{issue: testIssue(), committed: true}
	rec := &fakeRecorder{}

	r := NewRunner(exec, forge, rec, RunnerOpts{Workdir: "/repo", MaxConcurrent: 1})
	result, err := r.Run(context.Background(), 42, KindPlan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Success {
		t.Error("expected success")
	}
	if result.PRURL != "" {
		t.Errorf("plan-only workflow should not open a PR, got %q", result.PRURL)
	}
	if len(exec.requests) != 1 || exec.requests[0].Agent != "planner" {
		t.Errorf("expected planner only, got %+v", exec.requests)
	}
	if len(forge.pushes) != 1 {
		t.Errorf("plan commit should be pushed, got %v", forge.pushes)
	}
}

func TestRun_PlannerWithoutPlanFails(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{
		"planner": "I thought about it but wrote nothing down.",
	}}
	forge := &fakeForge{issue: testIssue()}
	rec := &fakeRecorder{}

	r := NewRunner(exec, forge, rec, RunnerOpts{Workdir: "/repo", MaxConcurrent: 1})
	result, err := r.Run(context.Background(), 42, KindPlanImplement)
	if err == nil {
		t.Fatal("expected error for plan-less planner output")
	}
	if result.Success {
		t.Error("result should not be successful")
	}
	if !strings.Contains(err.Error(), "no plan file") {
		t.Errorf("unexpected error: %v", err)
	}
	// Implementor must not run.
	for _, req := range exec.requests {
		if req.Agent == "implementor" {
			t.Error("implementor should not run without a plan")
		}
	}
	assertEvents(t, rec.events, "started", "failed")
}

func TestRun_IssueFetchError(t *testing.T) {
	exec := &fakeExecutor{}
	forge := &fakeForge{issueErr: errors.New("gh: not found")}

	r := NewRunner(exec, forge, nil, RunnerOpts{Workdir: "/repo", MaxConcurrent: 1})
	_, err := r.Run(context.Background(), 42, KindPlanImplement)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(exec.requests) != 0 {
		t.Error("no agents should run when the issue fetch fails")
	}
}

func TestRun_NoChangesSkipsPR(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{
		"planner":     "specs/chore-noop.md",
		"implementor": "nothing to do",
	}}
	forge := &fakeForge{issue: testIssue(), committed: false}

	r := NewRunner(exec, forge, nil, RunnerOpts{Workdir: "/repo", MaxConcurrent: 1})
	result, err := r.Run(context.Background(), 42, KindPlanImplement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(forge.prs) != 0 {
		t.Error("clean tree should not open a PR")
	}
	if result.PRURL != "" {
		t.Errorf("expected no PR URL, got %q", result.PRURL)
	}
	if !result.Success {
		t.Error("no-change run still completes")
	}
}

func TestReimplement(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{
		"planner":     "Revised plan at specs/chore-fix-auth.md",
		"implementor": "fixed",
	}}
	forge := &fakeForge{issue: testIssue(), committed: true}
	rec := &fakeRecorder{}

	r := NewRunner(exec, forge, rec, RunnerOpts{Workdir: "/repo", MaxConcurrent: 1})
	result, err := r.Reimplement(context.Background(), 42, "# Original Task\n...\n# Review Feedback\n...")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Success {
		t.Error("expected success")
	}
	if result.PlanPath != "specs/chore-fix-auth.md" {
		t.Errorf("plan path = %q", result.PlanPath)
	}

	// A fresh plan phase precedes the implementation.
	if len(exec.requests) != 2 || exec.requests[0].Agent != "planner" || exec.requests[1].Agent != "implementor" {
		t.Fatalf("unexpected agent sequence: %+v", exec.requests)
	}
	// The remediation prompt goes to the planner verbatim.
	if !strings.Contains(exec.requests[0].Prompt, "Review Feedback") {
		t.Error("remediation prompt should be passed to the planner")
	}
	// The implementor works from the plan the new cycle produced.
	if !strings.Contains(exec.requests[1].Prompt, "specs/chore-fix-auth.md") {
		t.Error("implement prompt should reference the new plan file")
	}
	assertEvents(t, rec.events, "reimplement_started", "plan_created", "implemented", "pr_opened", "completed")
}

func TestReimplement_PlannerWithoutPlanFails(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{
		"planner": "Could not decide on an approach.",
	}}
	forge := &fakeForge{issue: testIssue()}
	rec := &fakeRecorder{}

	r := NewRunner(exec, forge, rec, RunnerOpts{Workdir: "/repo", MaxConcurrent: 1})
	result, err := r.Reimplement(context.Background(), 42, "# Review Feedback\n...")
	if err == nil {
		t.Fatal("expected error for plan-less planner output")
	}
	if result.Success || result.PlanPath != "" {
		t.Errorf("result = %+v", result)
	}
	for _, req := range exec.requests {
		if req.Agent == "implementor" {
			t.Error("implementor should not run without a plan")
		}
	}
	assertEvents(t, rec.events, "reimplement_started", "failed")
}

func TestReview(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{
		"reviewer": "## Approval Status\nAPPROVED",
	}}
	forge := &fakeForge{issue: testIssue()}

	r := NewRunner(exec, forge, nil, RunnerOpts{Workdir: "/repo", MaxConcurrent: 1})
	out, err := r.Review(context.Background(), "", 42, "2 files changed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.Output, "APPROVED") {
		t.Errorf("expected reviewer output, got %q", out.Output)
	}
	if len(out.WorkflowID) != 8 {
		t.Errorf("expected 8-char workflow id, got %q", out.WorkflowID)
	}
	if len(exec.requests) != 1 || exec.requests[0].Agent != "reviewer" {
		t.Errorf("expected reviewer run, got %+v", exec.requests)
	}
	if !strings.Contains(exec.requests[0].Prompt, "2 files changed") {
		t.Error("review prompt should include the diff summary")
	}
}

func TestReview_UsesCallerSuppliedID(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{"reviewer": "APPROVED"}}
	forge := &fakeForge{issue: testIssue()}

	r := NewRunner(exec, forge, nil, RunnerOpts{Workdir: "/repo", MaxConcurrent: 1})
	out, err := r.Review(context.Background(), "rev12345", 42, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.WorkflowID != "rev12345" {
		t.Errorf("workflow id = %q, want the supplied one", out.WorkflowID)
	}
	if exec.requests[0].WorkflowID != "rev12345" {
		t.Errorf("executor ran under id %q", exec.requests[0].WorkflowID)
	}
}

func TestReview_SemaphoreRespectsContext(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{"reviewer": "APPROVED"}}
	forge := &fakeForge{issue: testIssue()}

	r := NewRunner(exec, forge, nil, RunnerOpts{Workdir: "/repo", MaxConcurrent: 1})

	// Occupy the only slot.
	if err := r.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	defer r.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Review(ctx, "", 42, "")
	if err == nil {
		t.Fatal("expected error when no slot is available and ctx is done")
	}
	if !strings.Contains(err.Error(), "workflow slot") {
		t.Errorf("unexpected error: %v", err)
	}
	if len(exec.requests) != 0 {
		t.Error("reviewer must not run without a slot")
	}
}

func TestRun_TruncatesLongIssueBody(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{
		"planner":     "specs/chore-long.md",
		"implementor": "done",
	}}
	issue := testIssue()
	issue.Body = strings.Repeat("x", 800)
	forge := &fakeForge{issue: issue, committed: true}

	r := NewRunner(exec, forge, nil, RunnerOpts{Workdir: "/repo", MaxConcurrent: 1})
	if _, err := r.Run(context.Background(), 42, KindPlanImplement); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, req := range exec.requests {
		if strings.Count(req.Prompt, "x") != maxPromptBody {
			t.Errorf("%s prompt carries %d body chars, want %d", req.Agent, strings.Count(req.Prompt, "x"), maxPromptBody)
		}
		if !strings.Contains(req.Prompt, "...") {
			t.Errorf("%s prompt missing truncation marker", req.Agent)
		}
	}
}

func TestRun_SemaphoreRespectsContext(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{"planner": "specs/chore-x.md"}}
	forge := &fakeForge{issue: testIssue()}

	r := NewRunner(exec, forge, nil, RunnerOpts{Workdir: "/repo", MaxConcurrent: 1})

	// Occupy the only slot.
	if err := r.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	defer r.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, 42, KindPlan)
	if err == nil {
		t.Fatal("expected error when no slot is available and ctx is done")
	}
	if !strings.Contains(err.Error(), "workflow slot") {
		t.Errorf("unexpected error: %v", err)
	}
}

func assertEvents(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
