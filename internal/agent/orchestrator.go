package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/claimgate/internal/model"
	"github.com/ppiankov/claimgate/internal/security"
)

// injectionExplanation is the fixed explanation for blocked claims
const injectionExplanation = "Potential prompt injection detected"

// Orchestrator drives the bounded tool-calling loop for one claim at a
// time. The reasoning model is not trusted to self-terminate, so the
// loop guarantees exactly one structured decision within a finite step
// budget: every path out of Run returns a valid DecisionResponse.
type Orchestrator struct {
	reasoner Reasoner
	tools    *Toolbox
	filter   *security.InjectionFilter
	output   *security.OutputValidator
	maxSteps int
	logger   *slog.Logger
}

// NewOrchestrator wires the loop's dependencies. maxSteps bounds the
// number of tool invocations per run.
func NewOrchestrator(reasoner Reasoner, tools *Toolbox, filter *security.InjectionFilter, output *security.OutputValidator, maxSteps int, logger *slog.Logger) *Orchestrator {
	if maxSteps <= 0 {
		maxSteps = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		reasoner: reasoner,
		tools:    tools,
		filter:   filter,
		output:   output,
		maxSteps: maxSteps,
		logger:   logger,
	}
}

// Run processes one claim to completion and returns its decision along
// with the final run state. It never returns an error: failures degrade
// to DENY (injection) or UNCERTAIN (processing errors).
func (o *Orchestrator) Run(ctx context.Context, claim model.ClaimContext) (model.DecisionResponse, *model.RunState) {
	state := &model.RunState{
		Context:   claim,
		StartedAt: time.Now().UTC(),
	}

	// Injection must be caught before any model or tool call is made
	if o.filter.Detect(claim.ClaimText) {
		state.Terminated = true
		state.Termination = model.TerminatedByInjection
		o.logger.Warn("claim blocked by injection filter", "claim_id", claim.ClaimID)
		return model.DecisionResponse{
			Decision:    model.DecisionDeny,
			Explanation: injectionExplanation,
		}, state
	}

	messages := []Message{{
		Role:    RoleUser,
		Content: fmt.Sprintf("###CLAIM_ID###:%s\n###CLAIM###:\n%s", claim.ClaimID, claim.ClaimText),
	}}
	specs := o.tools.Specs()

	var lastText string
	for state.StepCount < o.maxSteps {
		reply, err := o.reasoner.Next(ctx, Request{
			System:   SystemPrompt,
			Messages: messages,
			Tools:    specs,
		})
		if err != nil {
			return o.fail(state, claim, err), state
		}

		if len(reply.ToolCalls) == 0 {
			// Plain text without a terminal tool call: treat as the
			// run's final output and recover a decision from it
			state.Terminated = true
			state.Termination = model.TerminatedByText
			return o.extract(claim, reply.Content), state
		}

		messages = append(messages, *reply)
		if reply.Content != "" {
			lastText = reply.Content
		}

		for _, call := range reply.ToolCalls {
			if call.Name == ToolPresentDecision {
				response, err := o.tools.Terminal(call)
				if err == nil {
					state.Record(call.Name, call.Arguments, string(response.Decision))
					state.StepCount++
					state.Terminated = true
					state.Termination = model.TerminatedByTool
					response.Explanation = o.output.Sanitize(response.Explanation)
					o.logger.Info("claim decided",
						"claim_id", claim.ClaimID,
						"decision", response.Decision,
						"steps", state.StepCount)
					return *response, state
				}
				// Validation failure goes back to the model as tool
				// output so it can correct itself
				result := fmt.Sprintf("Invalid decision: %v", err)
				state.Record(call.Name, call.Arguments, result)
				state.StepCount++
				messages = append(messages, toolResult(call, result))
				continue
			}

			result := o.tools.Dispatch(ctx, claim, call)
			state.Record(call.Name, call.Arguments, result)
			state.StepCount++
			lastText = result
			messages = append(messages, toolResult(call, result))
			o.logger.Debug("tool invoked",
				"claim_id", claim.ClaimID,
				"tool", call.Name,
				"step", state.StepCount)
		}
	}

	// Step budget exhausted without a terminal call: take the last
	// available text and route it through extraction
	state.Terminated = true
	state.Termination = model.TerminatedByBudget
	o.logger.Warn("step budget exhausted", "claim_id", claim.ClaimID, "steps", state.StepCount)
	return o.extract(claim, lastText), state
}

// extract sanitizes final text and recovers a structured decision
func (o *Orchestrator) extract(claim model.ClaimContext, text string) model.DecisionResponse {
	sanitized := o.output.Sanitize(text)
	response := ExtractDecision(sanitized)
	o.logger.Info("claim decided via extraction",
		"claim_id", claim.ClaimID,
		"decision", response.Decision)
	return response
}

// fail converts a reasoner error into the UNCERTAIN degrade path
func (o *Orchestrator) fail(state *model.RunState, claim model.ClaimContext, err error) model.DecisionResponse {
	state.Terminated = true
	state.Termination = model.TerminatedByError
	o.logger.Error("agent processing error", "claim_id", claim.ClaimID, "error", err)
	return model.DecisionResponse{
		Decision:    model.DecisionUncertain,
		Explanation: fmt.Sprintf("Agent processing error: %v", err),
	}
}

func toolResult(call ToolCall, result string) Message {
	return Message{
		Role:       RoleTool,
		Content:    result,
		ToolCallID: call.ID,
		ToolName:   call.Name,
	}
}
