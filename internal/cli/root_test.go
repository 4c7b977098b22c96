package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags restores default flag values across the command tree so flag
// state set by one test invocation does not leak into the next.
func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func executeCommand(args ...string) (string, error) {
	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	SetVersion("test-version")
	out, err := executeCommand("version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "test-version") {
		t.Errorf("expected version output to contain 'test-version', got: %s", out)
	}
}

func TestRootHelp(t *testing.T) {
	out, err := executeCommand("--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, sub := range []string{"serve", "run", "review", "config", "db", "version"} {
		if !strings.Contains(out, sub) {
			t.Errorf("help output missing subcommand %q", sub)
		}
	}
}

func TestReviewCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "review.md")
	content := "## Approval Status\n[CHANGES_REQUESTED]\n\n## Summary\nNeeds validation.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := executeCommand("review", "--file", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "CHANGES_REQUESTED") {
		t.Errorf("expected parsed status in output, got: %s", out)
	}
	if !strings.Contains(out, "Needs validation.") {
		t.Errorf("expected summary in output, got: %s", out)
	}
}

func TestReviewCommandMissingFile(t *testing.T) {
	_, err := executeCommand("review", "--file", "/does/not/exist.md")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRunRequiresIssueFlag(t *testing.T) {
	_, err := executeCommand("run")
	if err == nil {
		t.Error("expected error when --issue is missing")
	}
}

func TestDBSubcommandHelp(t *testing.T) {
	for _, sub := range []string{"path", "migrate", "reset"} {
		out, err := executeCommand("db", sub, "--help")
		if err != nil {
			t.Errorf("db %s --help failed: %v", sub, err)
		}
		if out == "" {
			t.Errorf("db %s --help produced no output", sub)
		}
	}
}

func TestDBResetRequiresForce(t *testing.T) {
	_, err := executeCommand("db", "reset")
	if err == nil || !strings.Contains(err.Error(), "--force") {
		t.Errorf("expected refusal without --force, got %v", err)
	}
}

func TestUnknownCommand(t *testing.T) {
	_, err := executeCommand("nonexistent")
	if err == nil {
		t.Error("expected error for unknown command, got nil")
	}
}
