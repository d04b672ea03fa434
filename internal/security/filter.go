// Package security contains the adversarial-input defenses that run
// before and after the reasoning loop. Both filters are pure: they hold
// only immutable pattern tables and perform no I/O.
package security

import (
	"regexp"
	"sort"
	"strings"
)

// RefusalMessage replaces any output that fails validation
const RefusalMessage = "I cannot provide that information for security reasons."

// maxOutputLength is the ceiling beyond which output is treated as a leak
const maxOutputLength = 5000

// InjectionFilter detects prompt-injection attempts in claim text.
// It is deliberately high-recall: blocking a legitimate claim that
// happens to contain a word like "system" is an accepted cost.
type InjectionFilter struct {
	dangerous []*regexp.Regexp
	fuzzy     []string
}

// NewInjectionFilter builds a filter with the standard pattern tables
func NewInjectionFilter() *InjectionFilter {
	return &InjectionFilter{
		dangerous: []*regexp.Regexp{
			regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+instructions?`),
			regexp.MustCompile(`(?i)you\s+are\s+now\s+(in\s+)?developer\s+mode`),
			regexp.MustCompile(`(?i)system\s+override`),
			regexp.MustCompile(`(?i)reveal\s+prompt`),
		},
		fuzzy: []string{"ignore", "bypass", "override", "reveal", "delete", "system"},
	}
}

var wordPattern = regexp.MustCompile(`\b\w+\b`)

// Detect reports whether text contains an injection attempt, either an
// exact phrase pattern or a near-miss of a sensitive vocabulary word.
// A flagged claim must short-circuit the pipeline before any model call.
func (f *InjectionFilter) Detect(text string) bool {
	for _, pattern := range f.dangerous {
		if pattern.MatchString(text) {
			return true
		}
	}

	for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		for _, target := range f.fuzzy {
			if similarWord(word, target) {
				return true
			}
		}
	}
	return false
}

// similarWord implements the interior-anagram test: equal length of at
// least 3, identical first and last character, and the same multiset of
// interior characters. This catches single-character transpositions and
// substitutions without computing full edit distance.
func similarWord(word, target string) bool {
	if len(word) != len(target) || len(word) < 3 {
		return false
	}
	if word[0] != target[0] || word[len(word)-1] != target[len(target)-1] {
		return false
	}
	return sortedInterior(word) == sortedInterior(target)
}

func sortedInterior(s string) string {
	interior := []byte(s[1 : len(s)-1])
	sort.Slice(interior, func(i, j int) bool { return interior[i] < interior[j] })
	return string(interior)
}

// OutputValidator scrubs the orchestrator's final text before it is
// returned or handed to the decision extractor. It never runs on
// intermediate tool arguments.
type OutputValidator struct {
	suspicious []*regexp.Regexp
}

// NewOutputValidator builds a validator with the standard leak signatures
func NewOutputValidator() *OutputValidator {
	return &OutputValidator{
		suspicious: []*regexp.Regexp{
			regexp.MustCompile(`(?i)SYSTEM\s*:\s*You\s+are`), // restated system prompt
			regexp.MustCompile(`(?i)instructions?:\s*\d+\.`), // numbered instruction list
		},
	}
}

// Valid reports whether output is free of leak signatures
func (v *OutputValidator) Valid(output string) bool {
	for _, pattern := range v.suspicious {
		if pattern.MatchString(output) {
			return false
		}
	}
	return true
}

// Sanitize returns output unchanged unless it matches a leak signature
// or exceeds the length ceiling, in which case the entire output is
// replaced with the fixed refusal string
func (v *OutputValidator) Sanitize(output string) string {
	if !v.Valid(output) || len(output) > maxOutputLength {
		return RefusalMessage
	}
	return output
}
