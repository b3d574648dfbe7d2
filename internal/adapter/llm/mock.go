package llm

import (
	"context"
	"strings"
	"sync"

	"policyqa/internal/domain"
	"policyqa/internal/port"
)

// Rule maps a prompt substring to a scripted reply.
type Rule struct {
	Match string
	Reply string
	Err   error
}

// MockClient is a scripted LLM for tests. The first rule whose Match
// appears in the system or user prompt wins; unmatched prompts get
// DefaultReply. Every call is recorded.
type MockClient struct {
	mu           sync.Mutex
	Rules        []Rule
	DefaultReply string
	DefaultErr   error
	TokensPer    int
	Calls        []port.CompletionRequest
}

func NewMockClient(rules ...Rule) *MockClient {
	return &MockClient{Rules: rules, TokensPer: 10}
}

func (m *MockClient) Complete(ctx context.Context, req port.CompletionRequest) (port.Completion, error) {
	if err := ctx.Err(); err != nil {
		return port.Completion{}, domain.ErrLLMTimeout
	}

	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	rules := m.Rules
	tokens := m.TokensPer
	m.mu.Unlock()

	full := req.System + "\n" + req.Prompt
	for _, rule := range rules {
		if strings.Contains(full, rule.Match) {
			if rule.Err != nil {
				return port.Completion{}, rule.Err
			}
			return completion(rule.Reply, tokens), nil
		}
	}
	if m.DefaultErr != nil {
		return port.Completion{}, m.DefaultErr
	}
	return completion(m.DefaultReply, tokens), nil
}

// CallCount returns how many completions were requested so far.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func completion(text string, tokens int) port.Completion {
	return port.Completion{
		Text: text,
		Tokens: domain.TokenUsage{
			Prompt:     tokens,
			Completion: tokens,
			Total:      tokens * 2,
		},
	}
}

var _ port.LLM = (*MockClient)(nil)
