package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/gzhole/gatekeeper/internal/config"
	"github.com/gzhole/gatekeeper/internal/logger"
	"github.com/spf13/cobra"
)

var (
	logFilterSession  string
	logFilterEvent    string
	logFilterDecision string
	logLast           int
	logSummary        bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View and filter the audit log",
	Long: `View the gatekeeper audit log with filtering and summary options.

Examples:
  gatekeeper log                          # Show all entries
  gatekeeper log --last 20                # Show last 20 entries
  gatekeeper log --session 3f2a9c1d       # One session only
  gatekeeper log --event "deny match"     # Only deny signature hits
  gatekeeper log --decision ASK_USER      # Only decisions sent to the user
  gatekeeper log --summary                # Show summary statistics`,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().StringVar(&logFilterSession, "session", "", "Filter by session id or tag")
	logCmd.Flags().StringVar(&logFilterEvent, "event", "", "Filter by event (EVALUATING, DENY MATCH, PERMS MATCH, LOCAL SAID, CLAUDE-API SAID, CLAUDE-LOCAL SAID, WARNING, DECISION)")
	logCmd.Flags().StringVar(&logFilterDecision, "decision", "", "Filter decisions by verdict (ALLOW, DENY, ASK_USER)")
	logCmd.Flags().IntVar(&logLast, "last", 0, "Show last N entries")
	logCmd.Flags().BoolVar(&logSummary, "summary", false, "Show summary statistics")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, logPath, debug)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	entries, err := logger.ReadFile(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No audit log entries found.")
		return nil
	}

	filtered := filterEntries(entries, logFilter{
		session:  logFilterSession,
		event:    logFilterEvent,
		decision: logFilterDecision,
	})

	if logLast > 0 && logLast < len(filtered) {
		filtered = filtered[len(filtered)-logLast:]
	}

	if logSummary {
		printSummary(os.Stdout, entries)
		return nil
	}

	printEntries(os.Stdout, filtered)
	return nil
}

type logFilter struct {
	session  string
	event    string
	decision string
}

func filterEntries(entries []logger.Entry, f logFilter) []logger.Entry {
	if f == (logFilter{}) {
		return entries
	}
	event := strings.ToUpper(strings.ReplaceAll(f.event, "_", " "))

	var filtered []logger.Entry
	for _, e := range entries {
		if f.session != "" && !strings.HasPrefix(e.Tag, f.session) && e.Tag != logger.SessionTag(f.session) {
			continue
		}
		if event != "" && string(e.Event) != event {
			continue
		}
		if f.decision != "" {
			verdict, _, ok := parseDecision(e)
			if !ok || !strings.EqualFold(verdict, f.decision) {
				continue
			}
		}
		filtered = append(filtered, e)
	}
	return filtered
}

// parseDecision splits a DECISION detail, "ALLOW (LOCAL): reason [3ms]", into
// verdict and tier.
func parseDecision(e logger.Entry) (verdict, tier string, ok bool) {
	if e.Event != logger.EventDecision {
		return "", "", false
	}
	head, _, found := strings.Cut(e.Detail, ":")
	if !found {
		return "", "", false
	}
	verdict, rest, found := strings.Cut(head, " (")
	if !found || !strings.HasSuffix(rest, ")") {
		return "", "", false
	}
	return verdict, strings.TrimSuffix(rest, ")"), true
}

var eventColors = map[logger.Event]*color.Color{
	logger.EventEvaluating: color.New(color.FgCyan),
	logger.EventDenyMatch:  color.New(color.FgRed, color.Bold),
	logger.EventPermsMatch: color.New(color.FgGreen),
	logger.EventLocalSaid:  color.New(color.FgBlue),
	logger.EventAPISaid:    color.New(color.FgMagenta),
	logger.EventLocalLLM:   color.New(color.FgMagenta),
	logger.EventWarning:    color.New(color.FgYellow),
}

func eventColor(e logger.Entry) *color.Color {
	if verdict, _, ok := parseDecision(e); ok {
		switch verdict {
		case "ALLOW":
			return color.New(color.FgGreen, color.Bold)
		case "DENY":
			return color.New(color.FgRed, color.Bold)
		default:
			return color.New(color.FgYellow, color.Bold)
		}
	}
	if c, ok := eventColors[e.Event]; ok {
		return c
	}
	return color.New(color.Reset)
}

func printEntries(w io.Writer, entries []logger.Entry) {
	for _, e := range entries {
		fmt.Fprintf(w, "%s [%s] %s %s\n",
			e.Time.Format(logger.TimeFormat),
			e.Tag,
			eventColor(e).Sprintf("%s:", e.Event),
			e.Detail)
		if e.Event == logger.EventDecision {
			fmt.Fprintln(w)
		}
	}
}

func printSummary(w io.Writer, entries []logger.Entry) {
	verdicts := map[string]int{}
	tiers := map[string]int{}
	sessions := map[string]bool{}
	var warnings, llmErrors, decisions int
	var denied []logger.Entry

	for _, e := range entries {
		sessions[e.Tag] = true
		switch e.Event {
		case logger.EventWarning:
			warnings++
		case logger.EventAPISaid, logger.EventLocalLLM:
			if strings.HasPrefix(e.Detail, "error:") {
				llmErrors++
			}
		}
		if verdict, tier, ok := parseDecision(e); ok {
			decisions++
			verdicts[verdict]++
			tiers[tier]++
			if verdict == "DENY" {
				denied = append(denied, e)
			}
		}
	}

	fmt.Fprintln(w, "===========================================")
	fmt.Fprintln(w, "  gatekeeper Audit Summary")
	fmt.Fprintln(w, "===========================================")
	fmt.Fprintf(w, "  Log lines:       %d\n", len(entries))
	fmt.Fprintf(w, "  Sessions:        %d\n", len(sessions))
	fmt.Fprintf(w, "  Decisions:       %d\n", decisions)
	fmt.Fprintf(w, "  ALLOW:           %d\n", verdicts["ALLOW"])
	fmt.Fprintf(w, "  DENY:            %d\n", verdicts["DENY"])
	fmt.Fprintf(w, "  ASK_USER:        %d\n", verdicts["ASK_USER"])
	fmt.Fprintf(w, "  Warnings:        %d\n", warnings)
	fmt.Fprintf(w, "  LLM failures:    %d\n", llmErrors)
	fmt.Fprintln(w, "===========================================")

	if len(tiers) > 0 {
		names := make([]string, 0, len(tiers))
		for t := range tiers {
			names = append(names, t)
		}
		sort.Strings(names)
		fmt.Fprintln(w, "  Decided by tier:")
		for _, t := range names {
			fmt.Fprintf(w, "    %-6s %d\n", t, tiers[t])
		}
	}

	if len(entries) > 0 {
		fmt.Fprintf(w, "  First event:     %s\n", entries[0].Time.Format(logger.TimeFormat))
		fmt.Fprintf(w, "  Last event:      %s\n", entries[len(entries)-1].Time.Format(logger.TimeFormat))
	}

	if len(denied) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Denied:")
		limit := len(denied)
		if limit > 10 {
			limit = 10
		}
		for _, e := range denied[len(denied)-limit:] {
			fmt.Fprintf(w, "    %s [%s] %s\n", e.Time.Format(logger.TimeFormat), e.Tag, e.Detail)
		}
	}

	fmt.Fprintln(w)
}
