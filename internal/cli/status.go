package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gzhole/gatekeeper/internal/config"
	"github.com/gzhole/gatekeeper/internal/llm"
	"github.com/gzhole/gatekeeper/internal/patterns"
	"github.com/gzhole/gatekeeper/internal/permission"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gatekeeper status: config, patterns, LLM transports, rules, audit log",
	Long: `Check how gatekeeper is configured: which LLM transports are in use, how
many permission rules load (and which sources were skipped), and where the
audit log lives.

  gatekeeper status`,
	RunE: statusCommand,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, logPath, debug)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cwd, _ := os.Getwd()
	homeDir, _ := os.UserHomeDir()

	snap := permission.Load(permission.Sources{
		UserSettings: cfg.Paths.ClaudeUserSettings,
		ProjectDir:   cwd,
		RulesFile:    cfg.Paths.Permissions,
		HomeDir:      homeDir,
	})
	ev := buildEvaluator(cfg, newDiagnostics(cfg.Debug))

	printStatus(os.Stdout, cfg, ev, snap)
	return nil
}

func printStatus(w io.Writer, cfg *config.Config, ev *llm.Evaluator, snap *permission.Snapshot) {
	fmt.Fprintln(w, "=======================================================")
	fmt.Fprintln(w, "  gatekeeper Status")
	fmt.Fprintln(w, "=======================================================")
	fmt.Fprintln(w)

	binPath, err := os.Executable()
	if err != nil {
		binPath = "unknown"
	}
	fmt.Fprintf(w, "  Binary:    %s (%s)\n", binPath, Version)
	fmt.Fprintf(w, "  Config:    %s\n", cfg.ConfigDir)
	fmt.Fprintf(w, "  Patterns:  %s (%d deny signatures, %d allowlist entries)\n",
		patterns.Version, len(patterns.Builtin().Deny), len(patterns.Builtin().Allowlist))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "--- LLM tier -------------------------------------------")
	if err := ev.Unavailable(); err != nil {
		fmt.Fprintf(w, "  [!] unavailable: %v\n", err)
	} else {
		fmt.Fprintf(w, "  [ok] transports: %s\n", strings.Join(ev.Transports(), " -> "))
	}
	if cfg.APIKey == "" {
		fmt.Fprintln(w, "  [ ] no API key (set ANTHROPIC_API_KEY or GATEKEEPER_API_KEY)")
	}
	fmt.Fprintf(w, "  Timeouts: pipeline %s, llm %s, api %s\n", cfg.Timeouts.Pipeline, cfg.Timeouts.LLM, cfg.Timeouts.API)
	checkFile(w, "Prompt template", cfg.Paths.Prompt, "using built-in template")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "--- Permission rules -----------------------------------")
	fmt.Fprintf(w, "  %d rule(s) loaded\n", snap.Len())
	if snap != nil {
		for _, r := range snap.Rules {
			fmt.Fprintf(w, "    %-6s %s", r.Kind(), r.Pattern)
			if r.Scope != "" {
				fmt.Fprintf(w, "  (in %s)", r.Scope)
			}
			fmt.Fprintln(w)
		}
	}
	for _, warning := range snap.Warnings {
		fmt.Fprintf(w, "  [!] %s\n", warning)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "--- Audit Log ------------------------------------------")
	checkAuditLog(w, cfg.LogPath)
	fmt.Fprintln(w)
}

func checkFile(w io.Writer, name, path, fallback string) {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "  [ok] %s: %s\n", name, path)
	} else {
		fmt.Fprintf(w, "  [ ] %s: %s\n", name, fallback)
	}
}

func checkAuditLog(w io.Writer, path string) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(w, "  [ ] %s (not yet created, will start on first event)\n", path)
		return
	}
	if err != nil {
		fmt.Fprintf(w, "  [!] %s: %v\n", path, err)
		return
	}

	sizeKB := info.Size() / 1024
	if sizeKB == 0 {
		fmt.Fprintf(w, "  [ok] %s (<1 KB)\n", path)
	} else {
		fmt.Fprintf(w, "  [ok] %s (%d KB)\n", path, sizeKB)
	}
}
