package llm

import "github.com/google/jsonschema-go/jsonschema"

// Conversation roles on the OpenAI-compatible wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Finish reasons reported by the provider for the current pass.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
)

// Message is a single turn in the prompt sequence sent to the provider.
// Ordering is significant; messages are append-only once part of a request.
// Content is a pointer so an assistant message that only carries tool calls
// serializes as an explicit null.
type Message struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Text returns the message content, or "" for a null content.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: &content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: &content}
}

// AssistantMessage builds an assistant-role message carrying tool calls.
// An empty content becomes an explicit null, matching provider expectations.
func AssistantMessage(content string, toolCalls []ToolCall) Message {
	m := Message{Role: RoleAssistant, ToolCalls: toolCalls}
	if content != "" {
		m.Content = &content
	}
	return m
}

// ToolMessage builds a tool-role message answering the given tool call.
func ToolMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, Content: &content, ToolCallID: toolCallID}
}

// ToolCall is a completed, structured request from the model to invoke a tool.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the function and carries its arguments as raw JSON text.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool is one entry of the provider-facing tool catalog.
type Tool struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef declares a callable function and its JSON Schema parameters.
type FunctionDef struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// Chunk is one parsed delta event from the provider stream.
// Chunks are transient: consumed in order, never stored.
type Chunk struct {
	Choices []Choice `json:"choices"`
}

// Choice carries the delta and finish reason for one completion choice.
type Choice struct {
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

// Delta is the incremental payload of a streamed chunk.
type Delta struct {
	Content   string          `json:"content"`
	ToolCalls []ToolCallDelta `json:"tool_calls"`
}

// ToolCallDelta is a fragment of a tool call, keyed by positional index.
// ID arrives at most once; Name and Arguments may arrive as concatenation
// fragments across many chunks.
type ToolCallDelta struct {
	Index    int          `json:"index"`
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// Content returns the text delta of the first choice, if any.
func (c Chunk) Content() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

// ToolCallDeltas returns the tool-call fragments of the first choice.
func (c Chunk) ToolCallDeltas() []ToolCallDelta {
	if len(c.Choices) == 0 {
		return nil
	}
	return c.Choices[0].Delta.ToolCalls
}

// FinishReason returns the finish signal of the first choice, or "".
func (c Chunk) FinishReason() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].FinishReason
}
