package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/routemesh/core"
)

// ErrNoResponse is returned by Collect when a model closes its channels without
// emitting a final response.
var ErrNoResponse = errors.New("model returned no response")

// Request captures the normalized model input produced by classifiers.
type Request struct {
	Instructions string         `json:"instructions"` // System level instructions
	Messages     []core.Message `json:"messages"`     // Conversation turns converted to provider messages
	// Schema is an optional JSON Schema the response text must satisfy.
	Schema     map[string]any `json:"schema,omitempty"`
	SchemaName string         `json:"schema_name,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", etc.
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name                     string `json:"name"`
	Provider                 string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsStructuredOutput bool   `json:"supports_structured_output"`
}

// Model is the minimal interface required by classifiers to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains the channels of a Generate call and returns the final response.
// Partial chunks are concatenated when the provider only streams deltas.
func Collect(ctx context.Context, m Model, req Request) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		final   *Response
		partial strings.Builder
	)
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				partial.WriteString(r.Text)
				continue
			}
			final = &r
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}

	if final == nil {
		if partial.Len() == 0 {
			return Response{}, ErrNoResponse
		}
		return Response{Text: partial.String(), FinishReason: "stop"}, nil
	}
	return *final, nil
}

// MockModel is a lightweight in‑memory Model useful for tests & examples.
// Responses are returned in the order they were queued.
type MockModel struct {
	info      Info
	mu        sync.Mutex
	responses []string
	errs      []error
	requests  []Request
}

// NewMockModel constructs a MockModel with structured output enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{info: Info{Name: name, Provider: "mock", SupportsStructuredOutput: true}}
}

// AddResponse queues a canned completion.
func (m *MockModel) AddResponse(text string) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, text)
	m.errs = append(m.errs, nil)
	return m
}

// AddError queues a failing call.
func (m *MockModel) AddError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, "")
	m.errs = append(m.errs, err)
	return m
}

// Requests returns the requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var (
		text string
		err  = fmt.Errorf("mock model %s: no response queued", m.info.Name)
	)
	if len(m.responses) > 0 {
		text, err = m.responses[0], m.errs[0]
		m.responses, m.errs = m.responses[1:], m.errs[1:]
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if ctxErr := ctx.Err(); ctxErr != nil {
			errCh <- ctxErr
			return
		}
		if err != nil {
			errCh <- err
			return
		}
		respCh <- Response{Text: text, FinishReason: "stop"}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
