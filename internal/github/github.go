package github

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// BotPrefix marks every comment the daemon posts so that webhook handlers
// can recognize (and ignore) the daemon's own activity.
const BotPrefix = "[ADW-AGENTS]"

// CmdRunner provides gh command execution. Interface for testing.
type CmdRunner interface {
	Run(args ...string) (string, error)
}

// GitRunner provides git command execution. Interface for testing.
type GitRunner interface {
	RunGit(dir string, args ...string) (string, error)
}

// ExecRunner runs gh and git commands via exec.
type ExecRunner struct{}

func (r *ExecRunner) Run(args ...string) (string, error) {
	cmd := exec.Command("gh", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("gh %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// RunGit implements GitRunner using exec.Command.
func (r *ExecRunner) RunGit(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// SplitRepo validates an "owner/name" repository reference.
func SplitRepo(repo string) (owner, name string, err error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q: expected owner/name", repo)
	}
	return parts[0], parts[1], nil
}

// Client provides GitHub operations scoped to a single repository.
// All gh invocations carry an explicit --repo flag so the daemon can
// serve webhooks for repositories it has no local checkout of.
type Client struct {
	repo string
	cmd  CmdRunner
	git  GitRunner
}

// NewClient creates a client for the given owner/name repository. If cmd
// also implements GitRunner, it is used for git operations.
func NewClient(repo string, cmd CmdRunner) (*Client, error) {
	if _, _, err := SplitRepo(repo); err != nil {
		return nil, err
	}
	c := &Client{repo: repo, cmd: cmd}
	if git, ok := cmd.(GitRunner); ok {
		c.git = git
	}
	return c, nil
}

// NewClientWithGit creates a client with a separate git runner.
func NewClientWithGit(repo string, cmd CmdRunner, git GitRunner) (*Client, error) {
	c, err := NewClient(repo, cmd)
	if err != nil {
		return nil, err
	}
	c.git = git
	return c, nil
}

// Repo returns the owner/name this client is scoped to.
func (c *Client) Repo() string {
	return c.repo
}

// Issue represents a GitHub issue.
type Issue struct {
	Number int     `json:"number"`
	Title  string  `json:"title"`
	Body   string  `json:"body"`
	State  string  `json:"state"`
	Labels []Label `json:"labels"`
}

// Label represents a GitHub label.
type Label struct {
	Name string `json:"name"`
}

// ValidateIssueNumber checks that an issue number is positive.
func ValidateIssueNumber(n int) error {
	if n <= 0 {
		return fmt.Errorf("invalid issue number %d: must be positive", n)
	}
	return nil
}

// GetIssue fetches a GitHub issue by number.
func (c *Client) GetIssue(number int) (*Issue, error) {
	if err := ValidateIssueNumber(number); err != nil {
		return nil, err
	}

	out, err := c.cmd.Run("issue", "view", fmt.Sprintf("%d", number), "--repo", c.repo, "--json", "number,title,body,state,labels")
	if err != nil {
		return nil, fmt.Errorf("get issue %d: %w", number, err)
	}

	var issue Issue
	if err := json.Unmarshal([]byte(out), &issue); err != nil {
		return nil, fmt.Errorf("parse issue JSON: %w", err)
	}
	return &issue, nil
}

// CommentIssue posts a comment on an issue. The body is prefixed with
// BotPrefix so the daemon's own comments are distinguishable from human ones.
func (c *Client) CommentIssue(number int, body string) error {
	if err := ValidateIssueNumber(number); err != nil {
		return err
	}
	if !strings.HasPrefix(body, BotPrefix) {
		body = BotPrefix + "\n\n" + body
	}
	_, err := c.cmd.Run("issue", "comment", fmt.Sprintf("%d", number), "--repo", c.repo, "--body", body)
	if err != nil {
		return fmt.Errorf("comment on issue %d: %w", number, err)
	}
	return nil
}

// PRCreateOpts holds options for creating a PR.
type PRCreateOpts struct {
	Title  string
	Body   string
	Branch string
	Base   string
}

// PRCreateResult holds the result of creating a PR.
type PRCreateResult struct {
	URL           string
	AlreadyExists bool
}

// CreatePR creates a pull request for a branch. If an open PR already
// exists for the branch, the existing PR is returned with AlreadyExists set
// instead of failing, so retried workflows converge on the same PR.
func (c *Client) CreatePR(opts PRCreateOpts) (*PRCreateResult, error) {
	existing, err := c.FindPRByBranch(opts.Branch)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.AlreadyExists = true
		return existing, nil
	}

	args := []string{"pr", "create", "--repo", c.repo, "--title", opts.Title, "--body", opts.Body, "--head", opts.Branch}
	if opts.Base != "" {
		args = append(args, "--base", opts.Base)
	}

	out, err := c.cmd.Run(args...)
	if err != nil {
		return nil, fmt.Errorf("create PR: %w", err)
	}
	return &PRCreateResult{URL: out}, nil
}

// FindPRByBranch checks if an open PR exists for a branch.
// Returns nil, nil if none exist.
func (c *Client) FindPRByBranch(branch string) (*PRCreateResult, error) {
	out, err := c.cmd.Run("pr", "list", "--repo", c.repo, "--head", branch, "--json", "url", "--limit", "1")
	if err != nil {
		return nil, fmt.Errorf("find PR by branch: %w", err)
	}

	var prs []struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(out), &prs); err != nil {
		return nil, fmt.Errorf("parse PR list JSON: %w", err)
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return &PRCreateResult{URL: prs[0].URL}, nil
}

// validMergeMethods is the set of allowed merge methods.
var validMergeMethods = map[string]bool{
	"squash": true,
	"merge":  true,
	"rebase": true,
}

// MergePR merges a pull request by number. --auto queues the merge until
// required status checks pass instead of failing on a red PR.
func (c *Client) MergePR(prNumber int, method string) error {
	if prNumber <= 0 {
		return fmt.Errorf("invalid PR number %d: must be positive", prNumber)
	}
	if method == "" {
		method = "squash"
	}
	if !validMergeMethods[method] {
		return fmt.Errorf("invalid merge method %q: must be squash, merge, or rebase", method)
	}

	_, err := c.cmd.Run("pr", "merge", fmt.Sprintf("%d", prNumber), "--repo", c.repo, "--"+method, "--auto")
	if err != nil {
		return fmt.Errorf("merge PR #%d: %w", prNumber, err)
	}
	return nil
}

// CreateBranch creates and checks out a branch in dir. A branch that
// already exists is checked out instead, so retried workflows reuse it.
func (c *Client) CreateBranch(dir, branch string) error {
	if c.git == nil {
		return fmt.Errorf("git runner not configured")
	}
	if strings.HasPrefix(branch, "-") {
		return fmt.Errorf("invalid branch name %q: must not start with -", branch)
	}
	out, err := c.git.RunGit(dir, "checkout", "-b", branch)
	if err != nil {
		if strings.Contains(out, "already exists") {
			_, err = c.git.RunGit(dir, "checkout", branch)
			if err != nil {
				return fmt.Errorf("checkout existing branch %q: %w", branch, err)
			}
			return nil
		}
		return fmt.Errorf("create branch %q: %w", branch, err)
	}
	return nil
}

// CommitAll stages and commits every change in dir. Returns committed=false
// with a nil error when the tree is clean.
func (c *Client) CommitAll(dir, message string) (committed bool, err error) {
	if c.git == nil {
		return false, fmt.Errorf("git runner not configured")
	}
	if _, err := c.git.RunGit(dir, "add", "-A"); err != nil {
		return false, fmt.Errorf("stage changes: %w", err)
	}
	out, err := c.git.RunGit(dir, "commit", "-m", message)
	if err != nil {
		if strings.Contains(out, "nothing to commit") {
			return false, nil
		}
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// PushBranch pushes a branch to the remote.
func (c *Client) PushBranch(dir string, branch string) error {
	if c.git == nil {
		return fmt.Errorf("git runner not configured")
	}
	if strings.HasPrefix(branch, "-") {
		return fmt.Errorf("invalid branch name %q: must not start with -", branch)
	}
	_, err := c.git.RunGit(dir, "push", "-u", "origin", branch)
	if err != nil {
		return fmt.Errorf("push branch: %w", err)
	}
	return nil
}
