package gatekeeper

import (
	"fmt"
	"time"
)

// Verdict is the final answer for a command.
type Verdict string

const (
	Allow   Verdict = "ALLOW"
	Deny    Verdict = "DENY"
	AskUser Verdict = "ASK_USER"
)

// Tier names the stage that produced a decision.
type Tier string

const (
	TierDeny  Tier = "DENY"
	TierPerms Tier = "PERMS"
	TierLocal Tier = "LOCAL"
	TierLLM   Tier = "LLM"
)

// Decision is the single terminal result of one evaluation.
type Decision struct {
	Verdict Verdict
	Tier    Tier
	Reason  string
	Elapsed time.Duration
}

// String renders the decision the way it appears in the audit log.
func (d Decision) String() string {
	return fmt.Sprintf("%s (%s): %s [%dms]", d.Verdict, d.Tier, d.Reason, d.Elapsed.Milliseconds())
}
