package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gzhole/gatekeeper/internal/gatekeeper"
	"github.com/gzhole/gatekeeper/internal/permission"
	"github.com/spf13/cobra"
)

// hookInput is the PreToolUse payload Claude Code writes to stdin.
type hookInput struct {
	SessionID     string        `json:"session_id"`
	Cwd           string        `json:"cwd"`
	HookEventName string        `json:"hook_event_name"`
	ToolName      string        `json:"tool_name"`
	ToolInput     hookToolInput `json:"tool_input"`
}

type hookToolInput struct {
	Command string `json:"command"`
}

type hookOutput struct {
	HookSpecificOutput hookDecision `json:"hookSpecificOutput"`
}

type hookDecision struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision"`
	PermissionDecisionReason string `json:"permissionDecisionReason,omitempty"`
}

// evaluator is the part of the pipeline the commands use.
type evaluator interface {
	Evaluate(ctx context.Context, req gatekeeper.Request) gatekeeper.Decision
}

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Claude Code PreToolUse hook handler",
	Long: `Reads a Claude Code PreToolUse JSON payload from stdin, evaluates Bash
commands and prints the permission decision as hook JSON on stdout.
Other tools pass through without output.

Register it in ~/.claude/settings.json:

  "hooks": {"PreToolUse": [{"matcher": "Bash",
    "hooks": [{"type": "command", "command": "gatekeeper hook"}]}]}`,
	RunE: hookCommand,
}

func init() {
	rootCmd.AddCommand(hookCmd)
}

func hookCommand(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime()
	if err != nil {
		// Without a pipeline nothing can be approved.
		fmt.Fprintf(os.Stderr, "[gatekeeper] warning: %v\n", err)
		return writeHookDecision(os.Stdout, "ask", "gatekeeper unavailable: "+err.Error())
	}
	defer rt.Close()

	return runHook(cmd.Context(), os.Stdin, os.Stdout, rt.pipeline, rt.rules, rt.cfg.Timeouts.Pipeline)
}

// runHook handles one payload. The outer timeout guards the whole call so an
// overrun still produces an answer.
func runHook(ctx context.Context, in io.Reader, out io.Writer, ev evaluator, rules func(cwd string) *permission.Snapshot, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}

	var input hookInput
	if err := json.Unmarshal(data, &input); err != nil {
		fmt.Fprintf(os.Stderr, "[gatekeeper] warning: could not parse hook input: %v\n", err)
		return writeHookDecision(out, "ask", "gatekeeper could not parse the hook input")
	}

	if input.ToolName != "Bash" {
		return nil
	}

	cwd := input.Cwd
	if cwd == "" {
		cwd, _ = os.Getwd()
	}
	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	req := gatekeeper.Request{
		Command:   input.ToolInput.Command,
		Cwd:       cwd,
		SessionID: sessionID,
	}
	if rules != nil {
		req.Rules = rules(cwd)
	}

	d, ok := evaluateWithin(ctx, ev, req, timeout)
	if !ok {
		return writeHookDecision(out, "ask", "gatekeeper timed out")
	}
	return writeHookDecision(out, hookPermission(d.Verdict), fmt.Sprintf("gatekeeper %s: %s", d.Tier, d.Reason))
}

// evaluateWithin returns false when the evaluation did not finish in time.
func evaluateWithin(ctx context.Context, ev evaluator, req gatekeeper.Request, timeout time.Duration) (gatekeeper.Decision, bool) {
	if timeout <= 0 {
		timeout = gatekeeper.DefaultTimeout
	}
	done := make(chan gatekeeper.Decision, 1)
	go func() { done <- ev.Evaluate(ctx, req) }()

	// A little slack past the pipeline's own ceiling so its decision and log
	// line win when both fire together.
	timer := time.NewTimer(timeout + time.Second)
	defer timer.Stop()
	select {
	case d := <-done:
		return d, true
	case <-timer.C:
		return gatekeeper.Decision{}, false
	}
}

func hookPermission(v gatekeeper.Verdict) string {
	switch v {
	case gatekeeper.Allow:
		return "allow"
	case gatekeeper.Deny:
		return "deny"
	default:
		return "ask"
	}
}

func writeHookDecision(out io.Writer, decision, reason string) error {
	data, err := json.Marshal(hookOutput{HookSpecificOutput: hookDecision{
		HookEventName:            "PreToolUse",
		PermissionDecision:       decision,
		PermissionDecisionReason: reason,
	}})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
