package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/adwd/internal/review"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Parse a review output file into a verdict",
	Long: `Parse a reviewer agent's raw output into the structured verdict the
daemon acts on: approval status, summary, recommendations, and issues by
severity. Useful for inspecting what a given review text would trigger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read review file: %w", err)
		}

		verdict := review.Parse(string(data))
		out, err := json.MarshalIndent(verdict, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	reviewCmd.Flags().StringP("file", "f", "", "path to the review output file")
	reviewCmd.MarkFlagRequired("file")
}
