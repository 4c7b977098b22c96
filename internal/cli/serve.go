package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/adwd/internal/guard"
	"github.com/lucasnoah/adwd/internal/remediate"
	"github.com/lucasnoah/adwd/internal/web"
	"github.com/lucasnoah/adwd/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook daemon",
	Long: `Start the HTTP receiver for GitHub webhooks. Issue events with a
recognized label trigger plan or plan+implement workflows; pull request
events with issue-closing references trigger the review and remediation
cycle. All webhook deliveries must be signed with the configured secret.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		runner, gh, err := buildRunner(cfg, database)
		if err != nil {
			return err
		}

		tracker := guard.NewAttemptTracker()
		dedup := guard.NewDedupCache(time.Duration(cfg.Workflows.DedupWindowSeconds) * time.Second)

		orch := remediate.NewOrchestrator(gh, runner, tracker, database, remediate.Policy{
			AutoMergeOnApproval:      cfg.Workflows.AutoMergeOnApproval,
			AutoReimplementOnChanges: cfg.Workflows.AutoReimplementOnChanges,
			MergeMethod:              cfg.Workflows.MergeMethod,
			MaxAttempts:              cfg.Workflows.MaxReimplementAttempts,
		})

		handler := webhook.NewHandler(webhook.NewRouter(dedup), runner, orch, gh)
		return web.NewServer(handler, cfg.Server.Host, cfg.Server.Port, cfg.Server.WebhookSecret).Start()
	},
}
