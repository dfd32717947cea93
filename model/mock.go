package model

import (
	"context"
	"sync"
)

// MockResponse scripts one turn of a MockModel conversation.
type MockResponse struct {
	Text      string
	ToolCalls []ToolCall
	Err       error
}

// MockModel is a scriptable Model for tests. Responses are returned in order;
// once exhausted, further calls return the last response.
type MockModel struct {
	mu        sync.Mutex
	responses []MockResponse
	calls     []Request
}

// NewMockModel creates a mock that plays back the given responses in order.
func NewMockModel(responses ...MockResponse) *MockModel {
	return &MockModel{responses: responses}
}

// Generate returns the next scripted response and records the request.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)

	idx := len(m.calls) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	if idx < 0 {
		return &Response{FinishReason: FinishReasonStop}, nil
	}

	scripted := m.responses[idx]
	if scripted.Err != nil {
		return nil, scripted.Err
	}

	resp := &Response{
		Text:         scripted.Text,
		ToolCalls:    scripted.ToolCalls,
		FinishReason: FinishReasonStop,
	}
	if len(scripted.ToolCalls) > 0 {
		resp.FinishReason = FinishReasonToolUse
	}
	return resp, nil
}

// Info identifies the mock provider.
func (m *MockModel) Info() Info {
	return Info{Provider: "mock", Model: "mock"}
}

// Calls returns the requests seen so far, in order.
func (m *MockModel) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}
