package agent

import (
	"testing"

	"github.com/ppiankov/claimgate/internal/model"
)

func TestExtractDecision_TaggedFormat(t *testing.T) {
	cases := []struct {
		name            string
		text            string
		wantDecision    model.Decision
		wantExplanation string
	}{
		{
			"plain tags",
			"DECISION: APPROVE\nEXPLANATION: All requirements met.",
			model.DecisionApprove,
			"All requirements met.",
		},
		{
			"lowercase tags",
			"decision: deny\nexplanation: the incident predates the policy.",
			model.DecisionDeny,
			"the incident predates the policy.",
		},
		{
			"emphasized tags",
			"**Decision**: UNCERTAIN\n**Explanation**: Needs human review.",
			model.DecisionUncertain,
			"Needs human review.",
		},
		{
			"dash separator",
			"Decision - DENY",
			model.DecisionDeny,
			"Decision - DENY",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractDecision(tc.text)
			if got.Decision != tc.wantDecision {
				t.Errorf("decision = %s, want %s", got.Decision, tc.wantDecision)
			}
			if got.Explanation != tc.wantExplanation {
				t.Errorf("explanation = %q, want %q", got.Explanation, tc.wantExplanation)
			}
		})
	}
}

func TestExtractDecision_KeywordFallback(t *testing.T) {
	cases := []struct {
		name         string
		text         string
		wantDecision model.Decision
	}{
		{"bare keyword", "Based on my analysis I would APPROVE this claim.", model.DecisionApprove},
		{"emphasized keyword", "The outcome is **DENY** because documents are missing.", model.DecisionDeny},
		{"first match wins", "Not UNCERTAIN at all: DENY.", model.DecisionUncertain},
		{"case insensitive", "I think we should approve.", model.DecisionApprove},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractDecision(tc.text)
			if got.Decision != tc.wantDecision {
				t.Errorf("decision = %s, want %s", got.Decision, tc.wantDecision)
			}
			if got.Explanation != tc.text {
				t.Errorf("explanation should fall back to full text, got %q", got.Explanation)
			}
		})
	}
}

func TestExtractDecision_TotalDefault(t *testing.T) {
	cases := []string{
		"The claim looks reasonable but I have no verdict.",
		"",
		"APPROVED", // not a bare enum literal
	}

	for _, text := range cases {
		got := ExtractDecision(text)
		if got.Decision != model.DecisionUncertain {
			t.Errorf("ExtractDecision(%q).Decision = %s, want UNCERTAIN", text, got.Decision)
		}
		if got.Explanation != unparsedExplanation {
			t.Errorf("ExtractDecision(%q).Explanation = %q, want fixed fallback", text, got.Explanation)
		}
	}
}

func TestExtractDecision_Idempotent(t *testing.T) {
	texts := []string{
		"DECISION: APPROVE\nEXPLANATION: fine",
		"no verdict here",
		"probably DENY",
	}
	for _, text := range texts {
		first := ExtractDecision(text)
		second := ExtractDecision(text)
		if first != second {
			t.Errorf("extraction not deterministic for %q: %+v vs %+v", text, first, second)
		}
	}
}
