package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logPath    string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "gatekeeper",
	Short: "gatekeeper - pre-execution safety check for AI agent shell commands",
	Long: `gatekeeper decides, before an AI coding assistant runs a shell command,
whether to allow it, deny it, or ask the user. Commands pass through deny
signatures, your permission rules, a local allowlist and finally an LLM
classifier, and every step is written to an audit log.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML file (default: ~/.gatekeeper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "Path to audit log file (default: ~/.gatekeeper/audit.log)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Write debug diagnostics to stderr")
}

func Execute() error {
	return rootCmd.Execute()
}

// newDiagnostics returns the stderr logger used for operational messages.
// The audit trail is separate and always written.
func newDiagnostics(debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
