package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/lucasnoah/adwd/internal/config"
	"github.com/lucasnoah/adwd/internal/db"
	"github.com/lucasnoah/adwd/internal/github"
	"github.com/lucasnoah/adwd/internal/workflow"
	"github.com/lucasnoah/adwd/internal/worktree"
)

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	return config.LoadDefault()
}

// loadValidConfig loads the config and fails on the first validation error.
func loadValidConfig() (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %s (%d error(s) total)", errs[0], len(errs))
	}
	return cfg, nil
}

func openDatabase() (*db.DB, error) {
	path, err := db.DefaultDBPath()
	if err != nil {
		return nil, fmt.Errorf("db path: %w", err)
	}
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return database, nil
}

// buildRunner assembles the workflow runner and the GitHub client from the
// config. database may be nil for commands that do not log events.
func buildRunner(cfg *config.Config, database *db.DB) (*workflow.Runner, *github.Client, error) {
	gh, err := github.NewClient(cfg.Repo, &github.ExecRunner{})
	if err != nil {
		return nil, nil, err
	}

	timeout, err := time.ParseDuration(cfg.Agent.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("agent timeout %q: %w", cfg.Agent.Timeout, err)
	}

	artifactDir := filepath.Join(cfg.Agent.Workdir, "agents")
	exec := &workflow.ClaudeExecutor{
		Command:     cfg.Agent.Command,
		Model:       cfg.Agent.Model,
		Timeout:     timeout,
		ArtifactDir: artifactDir,
	}

	var trees workflow.Worktrees
	if cfg.Agent.UseWorktrees {
		trees = worktree.NewManager(&worktree.ExecGit{}, cfg.Agent.Workdir, cfg.Agent.WorktreeDir)
	}

	var rec workflow.Recorder
	if database != nil {
		rec = database
	}

	runner := workflow.NewRunner(exec, gh, rec, workflow.RunnerOpts{
		Workdir:       cfg.Agent.Workdir,
		Worktrees:     trees,
		MaxConcurrent: cfg.Workflows.MaxConcurrent,
		ArtifactDir:   artifactDir,
	})
	return runner, gh, nil
}
