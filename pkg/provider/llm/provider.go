// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (e.g., OpenAI GPT-4o, an
// Anthropic model behind any-llm, or a local Ollama instance) and exposes a
// uniform interface for the Ordervox pipeline to perform completions without
// coupling to any specific SDK. The intent classifier, the item extraction
// stage, and the menu resolution agent all speak through this interface.
//
// Implementations must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends
// or when the supplied context is cancelled.
package llm

import "context"

// Usage holds token accounting information returned by the LLM backend.
// Counts are in the model's native token unit and may differ between
// providers for the same textual content.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages and
	// system prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// A zero-value request is invalid; at minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []Message

	// Tools is the set of function/tool definitions offered to the model.
	// The model may choose to call one or more of them in its response.
	Tools []ToolDefinition

	// Temperature controls output randomness in [0.0, 2.0]. The Ordervox
	// parsers run near zero for deterministic extraction.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means use the
	// provider default.
	MaxTokens int

	// SystemPrompt is an optional high-priority instruction injected before
	// the conversation history. Providers without a dedicated system slot
	// prepend it as a "system"-role message.
	SystemPrompt string
}

// Chunk is a single fragment emitted by a streaming completion. A chunk may
// carry text, a finish signal, tool calls, or any combination thereof.
type Chunk struct {
	// Text is the incremental text content of this chunk.
	Text string

	// FinishReason is set on the final chunk: "stop", "length", "tool_calls",
	// or "error" for mid-stream failures.
	FinishReason string

	// ToolCalls contains any tool invocations the model is requesting,
	// accumulated by the provider across delta fragments.
	ToolCalls []ToolCall
}

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply. Empty when the
	// model responds exclusively with tool calls.
	Content string

	// ToolCalls lists all tool invocations requested by the model. The
	// caller executes them and appends the results to the conversation.
	ToolCalls []ToolCall

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines
// and must propagate context cancellation promptly.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled first.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// StreamCompletion sends req to the model and returns a read-only channel
	// that emits Chunk values as they arrive. The channel is closed by the
	// implementation when generation finishes or ctx is cancelled. Callers
	// must drain the channel. Errors after the stream starts are surfaced as
	// a Chunk with FinishReason "error"; the error return is non-nil only for
	// failures that prevent the stream from starting.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// CountTokens estimates the tokens the given messages would consume.
	// The result need not be exact but should not undercount.
	CountTokens(messages []Message) (int, error)
}
