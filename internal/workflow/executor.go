package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Request describes one agent invocation within a workflow run.
type Request struct {
	WorkflowID string
	Agent      string // "planner", "implementor", "reviewer"
	Prompt     string
	Workdir    string
}

// Response is what an agent run produced.
type Response struct {
	Output     string
	SessionID  string
	DurationMs int64
}

// Executor runs a coding agent to completion. Interface for testing.
type Executor interface {
	Execute(ctx context.Context, req Request) (*Response, error)
}

// ClaudeExecutor invokes the claude CLI in print mode and parses its JSON
// output. Raw output and the parsed response are persisted under the
// artifact directory for post-mortems.
type ClaudeExecutor struct {
	Command     string
	Model       string
	Timeout     time.Duration
	ArtifactDir string
}

// claudeOutput is the JSON envelope claude prints with --output-format json.
type claudeOutput struct {
	Result    string `json:"result"`
	SessionID string `json:"session_id"`
	IsError   bool   `json:"is_error"`
}

// Execute runs the agent and blocks until it finishes or ctx/timeout fires.
func (e *ClaudeExecutor) Execute(ctx context.Context, req Request) (*Response, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("empty prompt for agent %q", req.Agent)
	}

	command := e.Command
	if command == "" {
		command = "claude"
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := []string{"-p", req.Prompt, "--output-format", "json", "--dangerously-skip-permissions"}
	if e.Model != "" {
		args = append(args, "--model", e.Model)
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	if req.Workdir != "" {
		cmd.Dir = req.Workdir
	}
	out, err := cmd.CombinedOutput()
	elapsed := time.Since(start)

	// Persist raw output regardless of outcome.
	e.saveArtifact(req, "raw_output.json", out)

	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("agent %q timed out after %s", req.Agent, elapsed.Round(time.Second))
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %s: %w", command, req.Agent, strings.TrimSpace(string(out)), err)
	}

	resp := &Response{DurationMs: elapsed.Milliseconds()}

	var parsed claudeOutput
	if jsonErr := json.Unmarshal(out, &parsed); jsonErr == nil {
		if parsed.IsError {
			return nil, fmt.Errorf("agent %q reported an error: %s", req.Agent, firstLine(parsed.Result))
		}
		resp.Output = parsed.Result
		resp.SessionID = parsed.SessionID
	} else {
		// Older CLI versions print plain text; fall back to the raw output.
		resp.Output = strings.TrimSpace(string(out))
	}

	if e.ArtifactDir != "" {
		path := filepath.Join(e.ArtifactDir, req.WorkflowID, req.Agent, "response.json")
		_ = WriteJSON(path, resp)
	}

	return resp, nil
}

// saveArtifact writes a raw agent artifact; failures are non-fatal.
func (e *ClaudeExecutor) saveArtifact(req Request, name string, data []byte) {
	if e.ArtifactDir == "" || data == nil {
		return
	}
	path := filepath.Join(e.ArtifactDir, req.WorkflowID, req.Agent, name)
	if err := WriteAtomic(path, data); err != nil {
		fmt.Fprintf(os.Stderr, "adwd: save artifact %s: %v\n", path, err)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
