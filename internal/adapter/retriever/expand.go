package retriever

import (
	"policyqa/internal/adapter/analyzer"
)

// KeywordExpander pulls the significant terms out of a question so
// they can be issued as supplementary lexical queries. Cheap recall
// insurance for questions whose phrasing diverges from the wording of
// the policy.
type KeywordExpander struct {
	tokenizer *analyzer.Tokenizer
	maxTerms  int
}

func NewKeywordExpander(tokenizer *analyzer.Tokenizer, maxTerms int) *KeywordExpander {
	if maxTerms <= 0 {
		maxTerms = 4
	}
	return &KeywordExpander{tokenizer: tokenizer, maxTerms: maxTerms}
}

// Expand returns up to maxTerms supplementary query terms, in question
// order, de-duplicated.
func (e *KeywordExpander) Expand(question string) []string {
	tokens := e.tokenizer.Tokenize(question)

	seen := make(map[string]struct{}, len(tokens))
	var terms []string
	for _, token := range tokens {
		if len(token) <= 3 {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		terms = append(terms, token)
		if len(terms) == e.maxTerms {
			break
		}
	}
	return terms
}
