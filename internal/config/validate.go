package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// validMergeMethods is the set of merge methods gh accepts.
var validMergeMethods = map[string]bool{
	"squash": true,
	"merge":  true,
	"rebase": true,
}

// Validate checks a Config for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.Repo == "" {
		errs = append(errs, ValidationError{Field: "repo", Message: "is required"})
	} else if parts := strings.Split(cfg.Repo, "/"); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		errs = append(errs, ValidationError{Field: "repo", Message: fmt.Sprintf("%q is not owner/name", cfg.Repo)})
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, ValidationError{Field: "server.port", Message: fmt.Sprintf("%d is out of range 1-65535", cfg.Server.Port)})
	}

	if cfg.Server.WebhookSecret == "" {
		errs = append(errs, ValidationError{Field: "server.gh_wb_secret", Message: "is required (set in config or via GH_WB_SECRET)"})
	} else if len(cfg.Server.WebhookSecret) < 16 {
		errs = append(errs, ValidationError{Field: "server.gh_wb_secret", Message: "must be at least 16 characters"})
	}

	w := cfg.Workflows
	if !validMergeMethods[w.MergeMethod] {
		errs = append(errs, ValidationError{
			Field:   "workflows.merge_method",
			Message: fmt.Sprintf("%q must be squash, merge, or rebase", w.MergeMethod),
		})
	}
	if w.MaxReimplementAttempts < 1 || w.MaxReimplementAttempts > 10 {
		errs = append(errs, ValidationError{
			Field:   "workflows.max_reimplement_attempts",
			Message: fmt.Sprintf("%d is out of range 1-10", w.MaxReimplementAttempts),
		})
	}
	if w.MaxConcurrent < 1 {
		errs = append(errs, ValidationError{Field: "workflows.max_concurrent", Message: "must be at least 1"})
	}
	if w.DedupWindowSeconds < 1 {
		errs = append(errs, ValidationError{Field: "workflows.dedup_window_seconds", Message: "must be at least 1"})
	}

	if cfg.Agent.Command == "" {
		errs = append(errs, ValidationError{Field: "agent.command", Message: "is required"})
	}
	if cfg.Agent.UseWorktrees && cfg.Agent.WorktreeDir == "" {
		errs = append(errs, ValidationError{Field: "agent.worktree_dir", Message: "is required when use_worktrees is set"})
	}

	return errs
}
