package guardrail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"policyqa/internal/adapter/llm"
	"policyqa/internal/domain"
)

func TestPrefilterBlocksCodeRequestsWithoutModelCall(t *testing.T) {
	mock := llm.NewMockClient()
	g := New(mock, DefaultOptions(), nil)

	query, _ := g.Classify(context.Background(), "Please provide Python code to parse this file")
	require.False(t, query.InDomain)
	require.Equal(t, 0, mock.CallCount(), "pre-filter verdicts must not spend a model call")
}

func TestPolicyVocabularySkipsModelCall(t *testing.T) {
	mock := llm.NewMockClient()
	g := New(mock, DefaultOptions(), nil)

	query, _ := g.Classify(context.Background(), "What is the grace period for premium payment?")
	require.True(t, query.InDomain)
	require.Equal(t, 0, mock.CallCount())
}

func TestAmbiguousQuestionUsesClassifier(t *testing.T) {
	mock := llm.NewMockClient(llm.Rule{Match: "domain filter", Reply: "NO"})
	g := New(mock, DefaultOptions(), nil)

	query, _ := g.Classify(context.Background(), "Tell me about quantum entanglement")
	require.False(t, query.InDomain)
	require.Equal(t, 1, mock.CallCount())
}

func TestClassifierFailureAllowsThrough(t *testing.T) {
	mock := llm.NewMockClient()
	mock.DefaultErr = domain.ErrLLMTimeout
	g := New(mock, DefaultOptions(), nil)

	query, _ := g.Classify(context.Background(), "Tell me about something ambiguous")
	require.True(t, query.InDomain, "transient classifier failure must not block questions")
}

func TestVehicleTermsConfigurable(t *testing.T) {
	mock := llm.NewMockClient()
	mock.DefaultReply = "YES"

	strict := New(mock, DefaultOptions(), nil)
	query, _ := strict.Classify(context.Background(), "What is the ideal tyre pressure?")
	require.False(t, query.InDomain)

	opts := DefaultOptions()
	opts.AllowVehicleTerms = true
	lenient := New(mock, opts, nil)
	query, _ = lenient.Classify(context.Background(), "What is the ideal tyre pressure?")
	require.True(t, query.InDomain)
}
