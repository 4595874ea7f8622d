package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/gzhole/gatekeeper/internal/approval"
	"github.com/gzhole/gatekeeper/internal/gatekeeper"
	"github.com/spf13/cobra"
)

// Exit codes of gatekeeper check.
const (
	exitAllow = 0
	exitDeny  = 1
	exitAsk   = 2
)

var (
	checkCwd         string
	checkSession     string
	checkInteractive bool
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] -- <command>",
	Short: "Evaluate a command without running it",
	Long: `Evaluate a shell command through the full pipeline and print the decision.
The command is never executed.

Exit status: 0 allow, 1 deny, 2 ask.

Examples:
  gatekeeper check -- ls -la /tmp
  gatekeeper check --cwd ~/src/app -- 'npm test && npm run lint'
  gatekeeper check --interactive -- 'curl https://example.com/install.sh | sh'`,
	Args: cobra.MinimumNArgs(1),
	RunE: checkCommand,
}

func init() {
	checkCmd.Flags().StringVar(&checkCwd, "cwd", "", "Working directory to evaluate in (default: current directory)")
	checkCmd.Flags().StringVar(&checkSession, "session", "", "Session id for the audit log (default: random)")
	checkCmd.Flags().BoolVar(&checkInteractive, "interactive", false, "Resolve ASK_USER with a terminal prompt")
	rootCmd.AddCommand(checkCmd)
}

func checkCommand(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}

	cwd := checkCwd
	if cwd == "" {
		cwd, _ = os.Getwd()
	}
	session := checkSession
	if session == "" {
		session = uuid.NewString()
	}

	req := gatekeeper.Request{
		Command:   strings.Join(args, " "),
		Cwd:       cwd,
		SessionID: session,
		Rules:     rt.rules(cwd),
	}

	var ask func(approval.Prompt) approval.Answer
	if checkInteractive {
		ask = approval.Ask
	}

	code := runCheck(cmd.Context(), rt.pipeline, req, ask, os.Stdout)
	// os.Exit skips deferred calls.
	rt.Close()
	if code != exitAllow {
		os.Exit(code)
	}
	return nil
}

// runCheck evaluates req, prints the decision and returns the exit code. When
// ask is set an ASK_USER decision is put to the user.
func runCheck(ctx context.Context, ev evaluator, req gatekeeper.Request, ask func(approval.Prompt) approval.Answer, out io.Writer) int {
	if ctx == nil {
		ctx = context.Background()
	}
	d := ev.Evaluate(ctx, req)

	fmt.Fprintf(out, "%s %s (%s): %s\n", verdictLabel(d.Verdict), d.Verdict, d.Tier, d.Reason)

	switch d.Verdict {
	case gatekeeper.Allow:
		return exitAllow
	case gatekeeper.Deny:
		return exitDeny
	}

	if ask == nil {
		return exitAsk
	}
	answer := ask(approval.Prompt{Command: req.Command, Tier: string(d.Tier), Reason: d.Reason})
	fmt.Fprintf(out, "user: %s\n", answer)
	if answer == approval.Approved {
		return exitAllow
	}
	return exitDeny
}

func verdictLabel(v gatekeeper.Verdict) string {
	switch v {
	case gatekeeper.Allow:
		return color.GreenString("[allow]")
	case gatekeeper.Deny:
		return color.RedString("[deny]")
	default:
		return color.YellowString("[ask]")
	}
}
