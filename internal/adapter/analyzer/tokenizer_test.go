package analyzer

import "testing"

func TestTokenizeRemovesStopwords(t *testing.T) {
	tok := NewTokenizer(false)
	tokens := tok.Tokenize("the grace period of thirty days is provided")

	for _, tk := range tokens {
		if tk == "the" || tk == "of" || tk == "is" {
			t.Errorf("stopword %q survived tokenization", tk)
		}
	}

	want := map[string]bool{"grace": true, "period": true, "thirty": true, "days": true, "provided": true}
	for _, tk := range tokens {
		if !want[tk] {
			t.Errorf("unexpected token %q", tk)
		}
	}
}

func TestStemCollapsesInflections(t *testing.T) {
	cases := []struct{ in, want string }{
		{"exclusions", "exclusion"},
		{"policies", "policy"},
		{"covered", "cover"},
		{"payments", "payment"},
		{"waiting", "wait"},
		{"days", "day"},
		{"bonus", "bonus"},
		{"claim", "claim"},
	}
	for _, tc := range cases {
		if got := stem(tc.in); got != tc.want {
			t.Errorf("stem(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTokenizeStemmingAlignsQueryAndDocument(t *testing.T) {
	tok := NewTokenizer(true)
	docTokens := tok.Tokenize("Cosmetic procedures are excluded under this policy")
	queryTokens := tok.Tokenize("exclusion for cosmetic procedure")

	docSet := make(map[string]bool)
	for _, tk := range docTokens {
		docSet[tk] = true
	}

	matched := 0
	for _, tk := range queryTokens {
		if docSet[tk] {
			matched++
		}
	}
	if matched < 2 {
		t.Errorf("expected stemmed overlap between query %v and doc %v", queryTokens, docTokens)
	}
}

func TestCountTokensApproximation(t *testing.T) {
	tok := NewTokenizer(false)
	if got := tok.CountTokens(""); got != 0 {
		t.Errorf("empty text should count 0 tokens, got %d", got)
	}
	if got := tok.CountTokens("one two three four"); got < 4 || got > 6 {
		t.Errorf("unexpected token estimate %d for four words", got)
	}
}
