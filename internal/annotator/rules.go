package annotator

import (
	"strings"

	"incident-search/internal/domain"
)

const (
	FallbackCause      = "No specific cause identified."
	FallbackSuggestion = "Escalate to QA team for further investigation."
)

// Rule fires when any of its keywords occurs anywhere in the lowercased text.
type Rule struct {
	Name       string
	Keywords   []string
	Cause      string
	Suggestion string
}

var rules = []Rule{
	{
		Name:       "missing",
		Keywords:   []string{"missing", "not included"},
		Cause:      "Component may have been missed during picking or packing.",
		Suggestion: "Review packaging checklist and train staff on common oversight areas.",
	},
	{
		Name:       "loose",
		Keywords:   []string{"loose", "wobbly", "slipping"},
		Cause:      "Improper tightening or missing fasteners during assembly.",
		Suggestion: "Review torque settings and ensure proper assembly verification steps.",
	},
	{
		Name:       "damaged",
		Keywords:   []string{"damaged", "bent"},
		Cause:      "Likely shipping damage or weak protective materials.",
		Suggestion: "Improve packaging design and consider stronger protective materials.",
	},
	{
		Name:       "incorrect",
		Keywords:   []string{"incorrect", "wrong"},
		Cause:      "Incorrect item picked from inventory or mislabeled part.",
		Suggestion: "Audit inventory labeling and implement double-check at packing stage.",
	},
}

// Rules returns a copy of the ordered rule table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Matches reports whether r fires for already lowercased text.
func (r Rule) Matches(lower string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Annotator implements domain.Annotator with the fixed keyword rules.
type Annotator struct{}

// New returns the rule annotator as a domain.Annotator value.
func New() Annotator { return Annotator{} }

// Analyze implements domain.Annotator.
func (Annotator) Analyze(text string) domain.Annotation { return Analyze(text) }

// Analyze evaluates every rule in order; rules are independent so several may fire.
func Analyze(text string) domain.Annotation {
	lower := strings.ToLower(text)
	var out domain.Annotation
	for _, r := range rules {
		if r.Matches(lower) {
			out.Causes = append(out.Causes, r.Cause)
			out.Suggestions = append(out.Suggestions, r.Suggestion)
		}
	}
	if len(out.Causes) == 0 {
		out.Causes = []string{FallbackCause}
	}
	if len(out.Suggestions) == 0 {
		out.Suggestions = []string{FallbackSuggestion}
	}
	return out
}

// Classify returns the names of the rules that fire for text, in rule order.
func Classify(text string) []string {
	lower := strings.ToLower(text)
	var names []string
	for _, r := range rules {
		if r.Matches(lower) {
			names = append(names, r.Name)
		}
	}
	return names
}
