package llm

import "context"

// MockFunc answers one Complete call for MockClient.
type MockFunc func(ctx context.Context, model string, req Request) (Response, error)

// MockClient is a deterministic, fixture-driven Client used by --mock
// scan runs and by every threat-pipeline test: each call is routed
// through Respond rather than a network round trip, the same way
// discovery's mock.Provider serves fixed assets instead of calling GCP.
type MockClient struct {
	Respond MockFunc
	Calls   []Request
}

// NewMockClient wraps fn as a Client. A nil fn always answers with
// Content "[]" (an empty JSON array) and no error.
func NewMockClient(fn MockFunc) *MockClient {
	return &MockClient{Respond: fn}
}

func (m *MockClient) Complete(ctx context.Context, model string, req Request) (Response, error) {
	m.Calls = append(m.Calls, req)
	if m.Respond == nil {
		return Response{Content: "[]"}, nil
	}
	return m.Respond(ctx, model, req)
}

// StaticClient always returns the same content, regardless of the
// request; useful for agents whose test only cares about the happy path.
func StaticClient(content string, inputTokens, outputTokens int) *MockClient {
	return NewMockClient(func(ctx context.Context, model string, req Request) (Response, error) {
		return Response{Content: content, InputTokens: inputTokens, OutputTokens: outputTokens}, nil
	})
}

// FailingClient always returns err; used to exercise every agent's
// graceful-degradation fallback path.
func FailingClient(err error) *MockClient {
	return NewMockClient(func(ctx context.Context, model string, req Request) (Response, error) {
		return Response{}, err
	})
}
