package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gzhole/gatekeeper/internal/config"
	"github.com/gzhole/gatekeeper/internal/filecontext"
	"github.com/gzhole/gatekeeper/internal/gatekeeper"
	"github.com/gzhole/gatekeeper/internal/llm"
	"github.com/gzhole/gatekeeper/internal/logger"
	"github.com/gzhole/gatekeeper/internal/patterns"
	"github.com/gzhole/gatekeeper/internal/permission"
)

// runtime is everything one command invocation needs to evaluate.
type runtime struct {
	cfg      *config.Config
	pipeline *gatekeeper.Pipeline
	audit    *logger.AuditLogger
	log      *slog.Logger
	homeDir  string
}

func loadRuntime() (*runtime, error) {
	cfg, err := config.Load(configPath, logPath, debug)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	diag := newDiagnostics(cfg.Debug)

	homeDir, _ := os.UserHomeDir()

	audit, err := logger.New(cfg.LogPath)
	if err != nil {
		// Evaluation must still happen without an audit trail.
		diag.Warn("audit log unavailable", "path", cfg.LogPath, "error", err)
	}

	p := gatekeeper.New(gatekeeper.Options{
		Patterns:  patterns.Builtin(),
		HomeDir:   homeDir,
		Extractor: filecontext.NewExtractor(cfg.FileContext.MaxBytes),
		LLM:       buildEvaluator(cfg, diag),
		AuditLog:  audit,
		Logger:    diag,
		Timeout:   cfg.Timeouts.Pipeline,
	})

	return &runtime{cfg: cfg, pipeline: p, audit: audit, log: diag, homeDir: homeDir}, nil
}

func (r *runtime) Close() {
	if err := r.audit.Close(); err != nil {
		r.log.Warn("audit log close failed", "error", err)
	}
}

// rules loads the permission snapshot for an evaluation in cwd.
func (r *runtime) rules(cwd string) *permission.Snapshot {
	return permission.Load(permission.Sources{
		UserSettings: r.cfg.Paths.ClaudeUserSettings,
		ProjectDir:   cwd,
		RulesFile:    r.cfg.Paths.Permissions,
		HomeDir:      r.homeDir,
	})
}

// buildEvaluator picks the transports: with an API key the HTTP API goes
// first and the local claude CLI is the fallback, otherwise the local CLI
// is the only transport.
func buildEvaluator(cfg *config.Config, diag *slog.Logger) *llm.Evaluator {
	tmpl, tmplErr := llm.LoadTemplate(cfg.Paths.Prompt)
	if tmplErr != nil {
		diag.Warn("prompt template rejected, LLM tier disabled", "error", tmplErr)
	}

	var local llm.Classifier
	if !cfg.LLM.DisableLocal {
		local = llm.NewLocalClassifier(cfg.LLM.LocalModel)
	}

	ecfg := llm.Config{
		Template:       tmpl,
		TemplateErr:    tmplErr,
		Timeout:        cfg.Timeouts.LLM,
		PrimaryTimeout: cfg.Timeouts.API,
		Logger:         diag,
	}
	if cfg.APIKey != "" {
		ecfg.Primary = llm.NewAPIClassifier(llm.APIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.LLM.APIModel,
			BaseURL: cfg.LLM.APIBaseURL,
			Logger:  diag,
		})
		ecfg.Fallback = local
	} else {
		ecfg.Primary = local
	}
	return llm.New(ecfg)
}
