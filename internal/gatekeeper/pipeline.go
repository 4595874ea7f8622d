// Package gatekeeper composes the tiers into one ordered evaluation:
//
//	deny signatures -> permission rules -> compound analysis + local
//	allowlist -> LLM classifier
//
// The first tier with a confident answer ends the evaluation. Every step is
// written to the audit log under the caller's session tag.
package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gzhole/gatekeeper/internal/allowlist"
	"github.com/gzhole/gatekeeper/internal/compound"
	"github.com/gzhole/gatekeeper/internal/deny"
	"github.com/gzhole/gatekeeper/internal/filecontext"
	"github.com/gzhole/gatekeeper/internal/llm"
	"github.com/gzhole/gatekeeper/internal/logger"
	"github.com/gzhole/gatekeeper/internal/patterns"
	"github.com/gzhole/gatekeeper/internal/permission"
)

// DefaultTimeout is the overall evaluation ceiling.
const DefaultTimeout = 30 * time.Second

// Request is one command to evaluate.
type Request struct {
	Command   string
	Cwd       string
	SessionID string
	// Rules is the permission snapshot for this evaluation; nil means none.
	Rules *permission.Snapshot
}

// Options configures a Pipeline. Every field is optional.
type Options struct {
	Patterns  *patterns.Compiled
	HomeDir   string
	Extractor *filecontext.Extractor
	LLM       *llm.Evaluator
	AuditLog  *logger.AuditLogger
	Logger    *slog.Logger
	Timeout   time.Duration
}

// Pipeline evaluates commands. It holds no per-evaluation state and is safe
// for concurrent use.
type Pipeline struct {
	deny      *deny.Matcher
	allow     *allowlist.Matcher
	extractor *filecontext.Extractor
	llm       *llm.Evaluator
	audit     *logger.AuditLogger
	logger    *slog.Logger
	timeout   time.Duration
}

func New(opts Options) *Pipeline {
	if opts.Patterns == nil {
		opts.Patterns = patterns.Builtin()
	}
	if opts.Extractor == nil {
		opts.Extractor = filecontext.NewExtractor(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Pipeline{
		deny:      deny.NewMatcher(opts.Patterns, opts.HomeDir),
		allow:     allowlist.NewMatcher(opts.Patterns),
		extractor: opts.Extractor,
		llm:       opts.LLM,
		audit:     opts.AuditLog,
		logger:    opts.Logger,
		timeout:   opts.Timeout,
	}
}

// evaluation carries the per-call state through the tiers.
type evaluation struct {
	p     *Pipeline
	req   Request
	start time.Time
}

func (e *evaluation) log(event logger.Event, format string, args ...any) {
	if err := e.p.audit.Log(e.req.SessionID, event, fmt.Sprintf(format, args...)); err != nil {
		e.p.logger.Warn("audit log write failed", "event", event, "error", err)
	}
}

func (e *evaluation) decide(v Verdict, tier Tier, reason string) Decision {
	d := Decision{Verdict: v, Tier: tier, Reason: reason, Elapsed: time.Since(e.start)}
	e.log(logger.EventDecision, "%s", d)
	e.p.logger.Debug("decision", "verdict", d.Verdict, "tier", d.Tier, "reason", d.Reason, "elapsed", d.Elapsed)
	return d
}

const emptyCommandReason = "input check: empty command"

// Evaluate runs the tiers in order and returns exactly one Decision. It never
// returns ALLOW without an explicit match or a safe verdict.
func (p *Pipeline) Evaluate(ctx context.Context, req Request) Decision {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	e := &evaluation{p: p, req: req, start: time.Now()}
	e.log(logger.EventEvaluating, "%s", req.Command)

	if strings.TrimSpace(req.Command) == "" {
		// Rejected before any tier runs. The allowlist itself never returns
		// anything but ALLOW; the reason prefix keeps the two apart in the log.
		return e.decide(AskUser, TierLocal, emptyCommandReason)
	}
	if req.Rules != nil {
		for _, w := range req.Rules.Warnings {
			e.log(logger.EventWarning, "permission rules: %s", w)
		}
	}

	if m, ok := p.deny.Match(req.Command, req.Cwd); ok {
		e.log(logger.EventDenyMatch, "%s", m)
		return e.decide(Deny, TierDeny, m.String())
	}

	if r, ok := req.Rules.Match(req.Command, req.Cwd); ok {
		e.log(logger.EventPermsMatch, "%q from %s", r.Pattern, r.Source)
		return e.decide(Allow, TierPerms, fmt.Sprintf("permission rule %q", r.Pattern))
	}

	if d, ok := e.local(); ok {
		return d
	}

	return e.classify(ctx)
}

// local runs compound analysis and the allowlist. It only ever returns ALLOW.
func (e *evaluation) local() (Decision, bool) {
	a := compound.Analyze(e.req.Command)
	if !a.LocalEligible() {
		e.log(logger.EventLocalSaid, "%s: %s", a.Class, a.Reason)
		return Decision{}, false
	}

	res := e.p.allow.Check(a.SubCommands)
	if res.Outcome != allowlist.MatchedSafe {
		e.log(logger.EventLocalSaid, "%s (%s): %s", res.Outcome, a.Class, res.Unmatched)
		return Decision{}, false
	}
	e.log(logger.EventLocalSaid, "%s (%s): %s", res.Outcome, a.Class, strings.Join(res.Matched, ", "))
	reason := "allowlisted"
	if len(a.SubCommands) > 1 {
		reason = fmt.Sprintf("all %d sub-commands allowlisted", len(a.SubCommands))
	}
	return e.decide(Allow, TierLocal, reason), true
}

// classify runs the LLM tier. Failures of any kind resolve to ASK_USER.
func (e *evaluation) classify(ctx context.Context) Decision {
	if err := e.p.llm.Unavailable(); err != nil {
		e.log(logger.EventWarning, "%v", err)
		return e.decide(AskUser, TierLLM, err.Error())
	}

	fc, err := e.p.extractor.Extract(e.req.Command, e.req.Cwd)
	switch {
	case err == nil:
		e.p.logger.Debug("file context attached", "path", fc.Path, "truncated", fc.Truncated)
		if len(fc.Redacted) > 0 {
			e.log(logger.EventWarning, "file context %s: redacted %s", fc.Path, strings.Join(fc.Redacted, ", "))
		}
	case errors.Is(err, filecontext.ErrNoScript):
	default:
		e.log(logger.EventWarning, "file context skipped: %v", err)
	}

	res := e.p.llm.Evaluate(ctx, e.req.Command, e.req.Cwd, fc.Render())
	for _, a := range res.Attempts {
		event := logger.EventLocalLLM
		if a.Source == llm.SourceAPI {
			event = logger.EventAPISaid
		}
		if a.Err != nil {
			e.log(event, "error: %v", a.Err)
			continue
		}
		e.log(event, "safe=%t reason: %s", a.Verdict.Safe, a.Verdict.Reason)
	}

	if res.Err != nil {
		if errors.Is(res.Err, llm.ErrTimeout) {
			return e.decide(AskUser, TierLLM, "llm evaluation timed out")
		}
		return e.decide(AskUser, TierLLM, "llm evaluation failed: "+res.Err.Error())
	}
	if res.Verdict.Safe {
		return e.decide(Allow, TierLLM, res.Verdict.Reason)
	}
	return e.decide(AskUser, TierLLM, res.Verdict.Reason)
}
