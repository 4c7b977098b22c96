package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validConfig = `
repo: example/my-app
server:
  host: 127.0.0.1
  port: 9001
  gh_wb_secret: "0123456789abcdef"
workflows:
  auto_merge_on_approval: true
  auto_reimplement_on_changes: false
  merge_method: rebase
  max_reimplement_attempts: 5
  max_concurrent: 2
  dedup_window_seconds: 30
agent:
  command: claude
  model: sonnet
  timeout: "10m"
  workdir: /srv/checkout
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "adwd.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTestConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Repo != "example/my-app" {
		t.Errorf("Repo = %q, want %q", cfg.Repo, "example/my-app")
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9001 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Workflows.MergeMethod != "rebase" {
		t.Errorf("MergeMethod = %q", cfg.Workflows.MergeMethod)
	}
	if cfg.Workflows.AutoReimplementOnChanges {
		t.Error("explicit false should override the default true")
	}
	if cfg.Workflows.MaxReimplementAttempts != 5 {
		t.Errorf("MaxReimplementAttempts = %d", cfg.Workflows.MaxReimplementAttempts)
	}
	if cfg.Agent.Model != "sonnet" {
		t.Errorf("Agent.Model = %q", cfg.Agent.Model)
	}

	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("expected valid config, got: %v", errs)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	minimal := `
repo: example/my-app
server:
  gh_wb_secret: "0123456789abcdef"
`
	path := writeTestConfig(t, minimal)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8001 {
		t.Errorf("default port = %d, want 8001", cfg.Server.Port)
	}
	if !cfg.Workflows.AutoMergeOnApproval {
		t.Error("auto_merge_on_approval should default to true")
	}
	if !cfg.Workflows.AutoReimplementOnChanges {
		t.Error("auto_reimplement_on_changes should default to true")
	}
	if cfg.Workflows.MergeMethod != "squash" {
		t.Errorf("default merge method = %q", cfg.Workflows.MergeMethod)
	}
	if cfg.Workflows.MaxReimplementAttempts != 3 {
		t.Errorf("default max attempts = %d", cfg.Workflows.MaxReimplementAttempts)
	}
	if cfg.Workflows.DedupWindowSeconds != 60 {
		t.Errorf("default dedup window = %d", cfg.Workflows.DedupWindowSeconds)
	}
	if cfg.Agent.Command != "claude" {
		t.Errorf("default agent command = %q", cfg.Agent.Command)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/adwd.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeTestConfig(t, "repo: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestEnvSecretOverride(t *testing.T) {
	t.Setenv("GH_WB_SECRET", "env-secret-0123456789")

	path := writeTestConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.WebhookSecret != "env-secret-0123456789" {
		t.Errorf("expected env override, got %q", cfg.Server.WebhookSecret)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	cfg := Default()
	errs := Validate(cfg)

	if !hasFieldError(errs, "repo") {
		t.Error("expected error for missing repo")
	}
	if !hasFieldError(errs, "server.gh_wb_secret") {
		t.Error("expected error for missing webhook secret")
	}
}

func TestValidate_RepoFormat(t *testing.T) {
	for _, bad := range []string{"noslash", "a/b/c", "/repo", "owner/"} {
		cfg := Default()
		cfg.Repo = bad
		cfg.Server.WebhookSecret = "0123456789abcdef"
		if !hasFieldError(Validate(cfg), "repo") {
			t.Errorf("expected repo error for %q", bad)
		}
	}
}

func TestValidate_ShortSecret(t *testing.T) {
	cfg := Default()
	cfg.Repo = "org/repo"
	cfg.Server.WebhookSecret = "short"

	errs := Validate(cfg)
	if !hasFieldError(errs, "server.gh_wb_secret") {
		t.Error("expected error for short secret")
	}
	for _, e := range errs {
		if e.Field == "server.gh_wb_secret" && !strings.Contains(e.Message, "16") {
			t.Errorf("expected length requirement in message, got %q", e.Message)
		}
	}
}

func TestValidate_MergeMethod(t *testing.T) {
	cfg := Default()
	cfg.Repo = "org/repo"
	cfg.Server.WebhookSecret = "0123456789abcdef"
	cfg.Workflows.MergeMethod = "admin"

	if !hasFieldError(Validate(cfg), "workflows.merge_method") {
		t.Error("expected error for invalid merge method")
	}
}

func TestValidate_AttemptBounds(t *testing.T) {
	for _, n := range []int{0, -1, 11} {
		cfg := Default()
		cfg.Repo = "org/repo"
		cfg.Server.WebhookSecret = "0123456789abcdef"
		cfg.Workflows.MaxReimplementAttempts = n
		if !hasFieldError(Validate(cfg), "workflows.max_reimplement_attempts") {
			t.Errorf("expected error for max_reimplement_attempts=%d", n)
		}
	}

	for _, n := range []int{1, 10} {
		cfg := Default()
		cfg.Repo = "org/repo"
		cfg.Server.WebhookSecret = "0123456789abcdef"
		cfg.Workflows.MaxReimplementAttempts = n
		if hasFieldError(Validate(cfg), "workflows.max_reimplement_attempts") {
			t.Errorf("max_reimplement_attempts=%d should be valid", n)
		}
	}
}

func TestValidate_WorktreeDirRequired(t *testing.T) {
	cfg := Default()
	cfg.Repo = "org/repo"
	cfg.Server.WebhookSecret = "0123456789abcdef"
	cfg.Agent.UseWorktrees = true

	if !hasFieldError(Validate(cfg), "agent.worktree_dir") {
		t.Error("expected error for use_worktrees without worktree_dir")
	}
}

func TestLoadDefault_SearchesHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".adwd")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(validConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	// Run from an empty cwd so ./adwd.yaml does not shadow the home config.
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error: %v", err)
	}
	if cfg.Repo != "example/my-app" {
		t.Errorf("Repo = %q", cfg.Repo)
	}
}

func hasFieldError(errs []ValidationError, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}
