package domain

import "testing"

func TestClassifyQuestion(t *testing.T) {
	cases := []struct {
		question string
		want     QuestionType
	}{
		{"What is the grace period for premium payment?", QuestionQuantitative},
		{"How much does the policy pay for organ donor expenses?", QuestionQuantitative},
		{"What is the maximum discount available?", QuestionQuantitative},
		{"Are cosmetic procedures excluded?", QuestionExclusion},
		{"Is dental treatment not covered under this plan?", QuestionExclusion},
		{"What happens if the insured is hospitalized abroad?", QuestionScenario},
		{"If a claim is filed late, is it still valid?", QuestionScenario},
		{"What is the name of the insurer?", QuestionLookup},
		{"Who underwrites this policy?", QuestionLookup},
	}

	for _, tc := range cases {
		if got := ClassifyQuestion(tc.question); got != tc.want {
			t.Errorf("ClassifyQuestion(%q) = %s, want %s", tc.question, got, tc.want)
		}
	}
}

func TestClassifyQuestionDeterministic(t *testing.T) {
	q := "How long is the waiting period for pre-existing diseases?"
	first := ClassifyQuestion(q)
	for i := 0; i < 10; i++ {
		if got := ClassifyQuestion(q); got != first {
			t.Fatalf("classification not deterministic: %s vs %s", got, first)
		}
	}
}
