package worktree

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// GitRunner provides git commands. Interface for testing.
type GitRunner interface {
	Run(dir string, args ...string) (string, error)
}

// ExecGit implements GitRunner using exec.Command.
type ExecGit struct{}

func (g *ExecGit) Run(dir string, args ...string) (string, error) {
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

// Manager handles git worktree operations for isolated workflow runs.
// Each workflow gets its own checkout keyed by its workflow ID, so
// concurrent agents never trample each other's working tree.
type Manager struct {
	git     GitRunner
	baseDir string // where worktrees are created
	repoDir string // git repo root
}

// NewManager creates a worktree manager.
func NewManager(git GitRunner, repoDir string, baseDir string) *Manager {
	if baseDir == "" {
		baseDir = filepath.Join(repoDir, "worktrees")
	}
	return &Manager{git: git, repoDir: repoDir, baseDir: baseDir}
}

// CreateOpts holds options for creating a worktree.
type CreateOpts struct {
	WorkflowID string
	Branch     string
}

// CreateResult holds the result of creating a worktree.
type CreateResult struct {
	Path   string
	Branch string
}

// Create creates a new git worktree for a workflow run.
func (m *Manager) Create(opts CreateOpts) (*CreateResult, error) {
	if opts.WorkflowID == "" {
		return nil, fmt.Errorf("workflow ID is required")
	}
	if opts.Branch == "" {
		return nil, fmt.Errorf("branch name is required")
	}
	branch := SanitizeBranch(opts.Branch)

	worktreePath := m.Path(opts.WorkflowID)

	// Best-effort fetch so the branch starts from up-to-date main.
	m.git.Run(m.repoDir, "fetch", "origin", "main")

	// Branch explicitly from origin/main, not the local HEAD (which may
	// lag behind if the local branch hasn't been fast-forwarded).
	_, err := m.git.Run(m.repoDir, "worktree", "add", worktreePath, "-b", branch, "origin/main")
	if err != nil {
		// If branch already exists, reattach it instead.
		if strings.Contains(err.Error(), "already exists") {
			_, err = m.git.Run(m.repoDir, "worktree", "add", worktreePath, branch)
			if err != nil {
				return nil, fmt.Errorf("create worktree: %w", err)
			}
		} else {
			return nil, fmt.Errorf("create worktree: %w", err)
		}
	}

	return &CreateResult{
		Path:   worktreePath,
		Branch: branch,
	}, nil
}

// Remove removes a workflow's worktree and optionally deletes its branch.
func (m *Manager) Remove(workflowID string, deleteBranch bool) error {
	if workflowID == "" {
		return fmt.Errorf("workflow ID is required")
	}

	worktreePath := m.Path(workflowID)

	// Capture the branch name before the worktree disappears.
	var branch string
	if deleteBranch {
		out, err := m.git.Run(worktreePath, "rev-parse", "--abbrev-ref", "HEAD")
		if err == nil {
			branch = out
		}
	}

	// Without --force so uncommitted agent work is not destroyed.
	_, err := m.git.Run(m.repoDir, "worktree", "remove", worktreePath)
	if err != nil {
		return fmt.Errorf("remove worktree: %w", err)
	}

	if deleteBranch && branch != "" && branch != "main" && branch != "master" {
		if _, err := m.git.Run(m.repoDir, "branch", "-d", branch); err != nil {
			return fmt.Errorf("delete branch %q: %w", branch, err)
		}
	}

	return nil
}

// Path returns the worktree path for a workflow run.
func (m *Manager) Path(workflowID string) string {
	return filepath.Join(m.baseDir, workflowID)
}

var nonAlphaNum = regexp.MustCompile(`[^a-zA-Z0-9/_-]+`)

// BranchName derives the branch for an issue from its number and title,
// e.g. "issue-42-add-user-auth". Titles are lowercased, sanitized, and
// the whole name capped at 50 characters.
func BranchName(issue int, title string) string {
	slug := SanitizeBranch(strings.ToLower(title))
	slug = strings.ReplaceAll(slug, "/", "-")
	name := fmt.Sprintf("issue-%d-%s", issue, slug)
	name = strings.Trim(name, "-")
	if len(name) > 50 {
		name = strings.TrimRight(name[:50], "-")
	}
	return name
}

// SanitizeBranch cleans up a branch name.
func SanitizeBranch(name string) string {
	s := nonAlphaNum.ReplaceAllString(name, "-")
	s = strings.Trim(s, "-")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
