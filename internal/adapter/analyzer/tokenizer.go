package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into lexical index tokens with stopword
// removal and light suffix stemming.
type Tokenizer struct {
	stopwords map[string]struct{}
	useStem   bool
}

// NewTokenizer creates a new Tokenizer.
func NewTokenizer(useStemming bool) *Tokenizer {
	return &Tokenizer{
		stopwords: defaultStopwords(),
		useStem:   useStemming,
	}
}

// Tokenize splits text into normalized tokens.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len(word) < 2 {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		if t.useStem {
			word = stem(word)
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// CountTokens returns an approximate LLM token count for budget
// estimation. Average English word is about 1.3 tokens.
func (t *Tokenizer) CountTokens(text string) int {
	words := splitWords(text)
	if len(words) == 0 {
		return 0
	}
	return int(float64(len(words)) * 1.3)
}

// stem strips common English suffixes. Deliberately lighter than a
// full Porter stemmer: policy vocabulary mostly needs plural and
// verbal-inflection collapsing (exclusions/exclusion, covered/cover).
func stem(word string) string {
	if len(word) <= 3 {
		return word
	}
	switch {
	case strings.HasSuffix(word, "ies") && len(word) > 5:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "sses"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "ations"):
		return word[:len(word)-1]
	case strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") && !strings.HasSuffix(word, "us"):
		return word[:len(word)-1]
	case strings.HasSuffix(word, "ing") && len(word) > 6:
		return word[:len(word)-3]
	case strings.HasSuffix(word, "ed") && len(word) > 5:
		return word[:len(word)-2]
	default:
		return word
	}
}

// splitWords splits text into words using unicode word boundaries.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

// defaultStopwords returns a set of common English stopwords.
func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
