package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/adwd/internal/workflow"
)

var runKinds = map[string]workflow.Kind{
	"chore":           workflow.KindPlan,
	"plan":            workflow.KindPlan,
	"chore_implement": workflow.KindPlanImplement,
	"implement":       workflow.KindPlanImplement,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a workflow for an issue manually",
	Long: `Run the plan or plan+implement workflow for an issue without waiting
for a webhook. The issue is fetched via gh; the result is printed as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		issue, _ := cmd.Flags().GetInt("issue")
		kindName, _ := cmd.Flags().GetString("kind")

		kind, ok := runKinds[kindName]
		if !ok {
			return fmt.Errorf("unknown workflow kind %q (want chore or chore_implement)", kindName)
		}

		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		runner, _, err := buildRunner(cfg, database)
		if err != nil {
			return err
		}

		result, runErr := runner.Run(cmd.Context(), issue, kind)
		if result != nil {
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
		}
		return runErr
	},
}

func init() {
	runCmd.Flags().Int("issue", 0, "issue number to run the workflow for")
	runCmd.Flags().String("kind", "chore_implement", "workflow kind: chore (plan only) or chore_implement")
	runCmd.MarkFlagRequired("issue")
}
