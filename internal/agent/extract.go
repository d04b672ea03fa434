package agent

import (
	"regexp"
	"strings"

	"github.com/ppiankov/claimgate/internal/model"
)

// unparsedExplanation is the fixed explanation when no decision can be
// recovered from the terminal text
const unparsedExplanation = "Could not parse a valid decision from agent response"

var (
	// tier 1: explicit decision tag, e.g. "DECISION: APPROVE" or "**Decision** - DENY"
	decisionTagPattern = regexp.MustCompile(`(?i)decision\b\s*\**\s*[:\-]\s*\**\s*(APPROVE|DENY|UNCERTAIN)`)

	// tier 2: bare keyword, allowing surrounding emphasis markers
	decisionWordPattern = regexp.MustCompile(`(?i)[*_]*\b(APPROVE|DENY|UNCERTAIN)\b[*_]*`)

	// explicit explanation tag, capturing the remainder of the text
	explanationTagPattern = regexp.MustCompile(`(?is)explanation\b\s*\**\s*[:\-]\s*\**\s*(.+)`)
)

// ExtractDecision recovers a structured decision from free-form terminal
// text. It is used only when the run did not exit through a clean
// present_decision call. The parse is total: tagged format first, then a
// keyword scan, then an UNCERTAIN default. Extraction is deterministic,
// so re-extracting the same text always yields the same result.
func ExtractDecision(text string) model.DecisionResponse {
	decision, found := parseDecision(text)
	if !found {
		return model.DecisionResponse{
			Decision:    model.DecisionUncertain,
			Explanation: unparsedExplanation,
		}
	}
	return model.DecisionResponse{
		Decision:    decision,
		Explanation: parseExplanation(text),
	}
}

func parseDecision(text string) (model.Decision, bool) {
	if match := decisionTagPattern.FindStringSubmatch(text); match != nil {
		return model.Decision(strings.ToUpper(match[1])), true
	}
	if match := decisionWordPattern.FindStringSubmatch(text); match != nil {
		return model.Decision(strings.ToUpper(match[1])), true
	}
	return "", false
}

func parseExplanation(text string) string {
	if match := explanationTagPattern.FindStringSubmatch(text); match != nil {
		return strings.TrimSpace(match[1])
	}
	return strings.TrimSpace(text)
}
