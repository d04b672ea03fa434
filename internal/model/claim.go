package model

import (
	"fmt"
	"strings"
	"time"
)

// Decision is the terminal outcome of processing one claim
type Decision string

const (
	DecisionApprove   Decision = "APPROVE"
	DecisionDeny      Decision = "DENY"
	DecisionUncertain Decision = "UNCERTAIN"
)

// Decisions lists every valid decision, in presentation order
func Decisions() []Decision {
	return []Decision{DecisionApprove, DecisionDeny, DecisionUncertain}
}

// ParseDecision maps a literal onto a Decision, rejecting anything
// outside the closed set
func ParseDecision(s string) (Decision, error) {
	switch Decision(strings.ToUpper(strings.TrimSpace(s))) {
	case DecisionApprove:
		return DecisionApprove, nil
	case DecisionDeny:
		return DecisionDeny, nil
	case DecisionUncertain:
		return DecisionUncertain, nil
	}
	return "", fmt.Errorf("invalid decision %q: must be one of APPROVE, DENY, UNCERTAIN", s)
}

// IsValid reports whether d is one of the three allowed literals
func (d Decision) IsValid() bool {
	_, err := ParseDecision(string(d))
	return err == nil
}

// DecisionResponse is the single structured result of a claim run.
// Exactly one is produced per run, by the terminal tool or by the
// fallback extractor, and it is never mutated afterwards.
type DecisionResponse struct {
	Decision    Decision `json:"decision"`
	Explanation string   `json:"explanation,omitempty"`
}

// ClaimContext carries everything one decision run may consult.
// It is owned by a single run and not shared across runs.
type ClaimContext struct {
	ClaimID      string `json:"claim_id"`
	ClaimText    string `json:"claim_text"`
	MetadataText string `json:"metadata_text,omitempty"`
	Image        []byte `json:"-"`
}

// ToolInvocation records one tool call made during a run
type ToolInvocation struct {
	Name       string `json:"name"`
	Arguments  string `json:"arguments,omitempty"`
	ResultText string `json:"result_text,omitempty"`
}

// RunTermination classifies how an orchestration run ended
type RunTermination string

const (
	TerminatedByTool      RunTermination = "tool"
	TerminatedByText      RunTermination = "text"
	TerminatedByBudget    RunTermination = "budget"
	TerminatedByInjection RunTermination = "injection"
	TerminatedByError     RunTermination = "error"
)

// RunState is the per-run bookkeeping the orchestrator maintains.
// History is strictly append-ordered and reflects real invocation order.
type RunState struct {
	Context     ClaimContext     `json:"-"`
	History     []ToolInvocation `json:"history"`
	StepCount   int              `json:"step_count"`
	Terminated  bool             `json:"terminated"`
	Termination RunTermination   `json:"termination,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
}

// Record appends a tool invocation to the run history
func (r *RunState) Record(name, arguments, result string) {
	r.History = append(r.History, ToolInvocation{
		Name:       name,
		Arguments:  arguments,
		ResultText: result,
	})
}

// StoredDecision is a persisted claim outcome
type StoredDecision struct {
	ClaimID   string    `json:"claim_id"`
	Decision  Decision  `json:"decision"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
