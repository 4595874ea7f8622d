// Package llm is the last tier: it asks a model whether a command is safe.
// A verdict of safe allows the command; anything else, including every kind
// of failure, sends it to the user.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultPrimaryTimeout = 10 * time.Second
)

var (
	// ErrTimeout is returned when a transport runs out of time.
	ErrTimeout = errors.New("llm evaluation timed out")
	// ErrUnavailable is returned when the tier could not be set up.
	ErrUnavailable = errors.New("llm tier unavailable")
)

// Attempt records one transport call.
type Attempt struct {
	Source  string
	Verdict Verdict
	Err     error
	Elapsed time.Duration
}

// Result is the outcome of an evaluation. Err is set when no transport
// produced a verdict; Verdict and Source then hold zero values.
type Result struct {
	Verdict  Verdict
	Source   string
	Attempts []Attempt
	Err      error
}

// Config wires an Evaluator. Primary is required for the tier to be usable;
// Fallback is tried once when Primary fails.
type Config struct {
	Template *Template
	// TemplateErr is the error from loading a custom template, if any. When
	// set the tier reports itself unavailable.
	TemplateErr    error
	Primary        Classifier
	Fallback       Classifier
	Timeout        time.Duration
	PrimaryTimeout time.Duration
	Logger         *slog.Logger
}

type Evaluator struct {
	template       *Template
	unavailable    error
	primary        Classifier
	fallback       Classifier
	timeout        time.Duration
	primaryTimeout time.Duration
	logger         *slog.Logger
}

func New(cfg Config) *Evaluator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PrimaryTimeout <= 0 {
		cfg.PrimaryTimeout = DefaultPrimaryTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	e := &Evaluator{
		template:       cfg.Template,
		primary:        cfg.Primary,
		fallback:       cfg.Fallback,
		timeout:        cfg.Timeout,
		primaryTimeout: cfg.PrimaryTimeout,
		logger:         cfg.Logger,
	}
	switch {
	case cfg.TemplateErr != nil:
		e.unavailable = fmt.Errorf("%w: %v", ErrUnavailable, cfg.TemplateErr)
	case cfg.Template == nil:
		e.unavailable = fmt.Errorf("%w: no prompt template", ErrUnavailable)
	case cfg.Primary == nil:
		e.unavailable = fmt.Errorf("%w: no transport configured", ErrUnavailable)
	}
	return e
}

// Unavailable reports why the tier cannot run, or nil.
func (e *Evaluator) Unavailable() error {
	if e == nil {
		return fmt.Errorf("%w: not configured", ErrUnavailable)
	}
	return e.unavailable
}

// Transports lists the configured transport names in call order.
func (e *Evaluator) Transports() []string {
	if e == nil {
		return nil
	}
	var names []string
	for _, c := range []Classifier{e.primary, e.fallback} {
		if c != nil {
			names = append(names, c.Name())
		}
	}
	return names
}

// Evaluate classifies a command. The work runs on a context that ignores the
// caller's cancellation but is bounded by the tier timeout, so it always
// returns within that bound.
func (e *Evaluator) Evaluate(ctx context.Context, command, cwd, fileContext string) Result {
	if err := e.Unavailable(); err != nil {
		return Result{Err: err}
	}

	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	prompt := e.template.Render(command, cwd, fileContext)

	var res Result
	for i, c := range []Classifier{e.primary, e.fallback} {
		if c == nil {
			continue
		}
		budget := time.Duration(0)
		if i == 0 && e.fallback != nil {
			budget = e.primaryTimeout
		}

		start := time.Now()
		v, err := classify(tctx, c, prompt, budget)
		attempt := Attempt{Source: c.Name(), Verdict: v, Err: err, Elapsed: time.Since(start)}
		res.Attempts = append(res.Attempts, attempt)

		if err == nil {
			res.Verdict = v
			res.Source = c.Name()
			res.Err = nil
			return res
		}
		e.logger.Warn("llm transport failed", "transport", c.Name(), "error", err, "elapsed", attempt.Elapsed)
		res.Err = err
		if tctx.Err() != nil {
			break
		}
	}
	return res
}

// classify runs one transport call, bounded by budget when positive. The call
// runs in its own goroutine so a transport that ignores its context cannot
// hold the tier past the deadline.
func classify(ctx context.Context, c Classifier, prompt string, budget time.Duration) (Verdict, error) {
	cctx := ctx
	if budget > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	type reply struct {
		v   Verdict
		err error
	}
	done := make(chan reply, 1)
	go func() {
		v, err := c.Classify(cctx, prompt)
		done <- reply{v, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && (errors.Is(r.err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded)) {
			return Verdict{}, fmt.Errorf("%w: %s: %v", ErrTimeout, c.Name(), r.err)
		}
		return r.v, r.err
	case <-cctx.Done():
		return Verdict{}, fmt.Errorf("%w: %s", ErrTimeout, c.Name())
	}
}
