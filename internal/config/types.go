package config

// Config is the top-level daemon configuration parsed from adwd YAML.
type Config struct {
	Repo      string          `yaml:"repo"`
	Server    ServerConfig    `yaml:"server"`
	Workflows WorkflowsConfig `yaml:"workflows"`
	Agent     AgentConfig     `yaml:"agent"`
}

// ServerConfig holds the webhook listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// WebhookSecret signs incoming GitHub webhook payloads. The
	// GH_WB_SECRET environment variable overrides the file value.
	WebhookSecret string `yaml:"gh_wb_secret"`
}

// WorkflowsConfig controls the automated review and remediation loop.
type WorkflowsConfig struct {
	AutoMergeOnApproval      bool   `yaml:"auto_merge_on_approval"`
	AutoReimplementOnChanges bool   `yaml:"auto_reimplement_on_changes"`
	MergeMethod              string `yaml:"merge_method"`
	MaxReimplementAttempts   int    `yaml:"max_reimplement_attempts"`
	MaxConcurrent            int    `yaml:"max_concurrent"`
	DedupWindowSeconds       int    `yaml:"dedup_window_seconds"`
}

// AgentConfig describes how coding agents are invoked.
type AgentConfig struct {
	Command string `yaml:"command"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
	Workdir string `yaml:"workdir"`
	// UseWorktrees runs each workflow in an isolated git worktree
	// instead of the shared workdir checkout.
	UseWorktrees bool   `yaml:"use_worktrees"`
	WorktreeDir  string `yaml:"worktree_dir"`
}

// Default returns a Config populated with the daemon's defaults. Loading
// unmarshals on top of this value, so fields absent from the YAML keep
// their default rather than Go's zero value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8001,
		},
		Workflows: WorkflowsConfig{
			AutoMergeOnApproval:      true,
			AutoReimplementOnChanges: true,
			MergeMethod:              "squash",
			MaxReimplementAttempts:   3,
			MaxConcurrent:            4,
			DedupWindowSeconds:       60,
		},
		Agent: AgentConfig{
			Command: "claude",
			Timeout: "20m",
			Workdir: ".",
		},
	}
}
