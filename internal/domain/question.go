package domain

import "strings"

// QuestionType is a closed classification of what a question is asking
// for. Prompt assembly and rerank boosts branch on it instead of
// re-matching strings ad hoc.
type QuestionType string

const (
	QuestionLookup       QuestionType = "lookup"
	QuestionScenario     QuestionType = "scenario"
	QuestionExclusion    QuestionType = "exclusion"
	QuestionQuantitative QuestionType = "quantitative"
)

var quantitativeMarkers = []string{
	"how much", "how many", "how long", "amount", "percentage", "percent",
	"limit", "maximum", "minimum", "period", "days", "months", "years",
	"discount", "sum insured", "premium",
}

var exclusionMarkers = []string{
	"excluded", "exclusion", "not covered", "except", "limitation",
	"restriction", "disallowed",
}

var scenarioMarkers = []string{
	"if ", "when ", "in case", "suppose", "what happens", "would", "scenario",
}

// ClassifyQuestion tags a question by intent. Pure function: the same
// question always yields the same type. Precedence is quantitative >
// exclusion > scenario, with lookup as the default.
func ClassifyQuestion(question string) QuestionType {
	q := strings.ToLower(question)

	for _, m := range quantitativeMarkers {
		if strings.Contains(q, m) {
			return QuestionQuantitative
		}
	}
	for _, m := range exclusionMarkers {
		if strings.Contains(q, m) {
			return QuestionExclusion
		}
	}
	for _, m := range scenarioMarkers {
		if strings.Contains(q, m) {
			return QuestionScenario
		}
	}
	return QuestionLookup
}
