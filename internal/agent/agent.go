// Package agent orchestrates one conversational turn: it assembles the
// message context, streams the model's reply to the client, executes any
// tool calls the model requests, then streams a synthesis pass grounded in
// the tool results.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/vibeyhq/vibey/internal/files"
	"github.com/vibeyhq/vibey/internal/llm"
	"github.com/vibeyhq/vibey/internal/log"
	"github.com/vibeyhq/vibey/internal/store"
	"github.com/vibeyhq/vibey/internal/tools"
)

// Progress messages shown to the user while the turn advances.
const (
	statusProcessingFile = "Processing uploaded file…"
	statusThinking       = "Thinking…"
	statusComposing      = "Composing response…"
)

const (
	defaultMaxHistoryTurns = 20
	defaultFileCharBudget  = 12000
	defaultTimeout         = 90 * time.Second
)

// Emitter is the client-facing event channel for one turn.
// Implemented by sse.Writer.
type Emitter interface {
	Status(message string) error
	Token(content string) error
	Error(message string) error
	Done() error
}

// ChatStreamer opens streaming completions against the provider gateway.
type ChatStreamer interface {
	ChatStream(ctx context.Context, messages []llm.Message, toolsEnabled bool) (iter.Seq2[llm.Chunk, error], error)
}

// ToolRunner executes a named tool call, always producing a JSON result.
type ToolRunner interface {
	Execute(ctx context.Context, name string, args map[string]any, userID string) string
}

// HistoryStore persists and recalls chat turns for authenticated users.
type HistoryStore interface {
	SaveMessage(ctx context.Context, userID, role, content string) error
	History(ctx context.Context, userID string, limit int) ([]store.ChatTurn, error)
}

// Upload is a raw uploaded file awaiting text extraction.
type Upload struct {
	Data     []byte
	MimeType string
	Filename string
}

// Turn is one prior exchange supplied by the client. Guests keep history in
// the browser, so it arrives with the request instead of from storage.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one chat turn to run.
type Request struct {
	UserID       string
	Message      string
	File         *Upload
	LocalHistory []Turn
}

// Options configures an Agent.
type Options struct {
	LLM     ChatStreamer
	Tools   ToolRunner
	History HistoryStore
	Logger  log.Logger

	MaxHistoryTurns int
	FileCharBudget  int
	Timeout         time.Duration
}

// Agent runs conversational turns. It holds no per-turn state and is safe
// for concurrent use.
type Agent struct {
	llm     ChatStreamer
	tools   ToolRunner
	history HistoryStore
	logger  log.Logger

	maxHistoryTurns int
	fileCharBudget  int
	timeout         time.Duration

	extract func(data []byte, mimeType, filename string) (files.Extracted, error)
}

// New creates an Agent.
func New(opts Options) *Agent {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	maxTurns := opts.MaxHistoryTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxHistoryTurns
	}
	budget := opts.FileCharBudget
	if budget <= 0 {
		budget = defaultFileCharBudget
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Agent{
		llm:             opts.LLM,
		tools:           opts.Tools,
		history:         opts.History,
		logger:          logger,
		maxHistoryTurns: maxTurns,
		fileCharBudget:  budget,
		timeout:         timeout,
		extract:         files.Extract,
	}
}

// Run executes one turn end to end. Every code path emits a terminal done
// or error event before returning; the caller only has to close the
// connection afterwards.
func (a *Agent) Run(ctx context.Context, req Request, emitter Emitter) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("agent panic", "user_id", req.UserID, "panic", r)
			_ = emitter.Error("An unexpected error occurred.")
		}
	}()

	messages := a.buildContext(ctx, req)

	fullMessage, err := a.applyFile(req, emitter)
	if err != nil {
		a.logger.Error("file extraction failed", "user_id", req.UserID, "error", err)
		_ = emitter.Error(err.Error())
		return
	}
	messages = append(messages, llm.UserMessage(fullMessage))

	// The raw message is persisted, not the file-augmented one.
	a.persist(ctx, req.UserID, llm.RoleUser, req.Message)

	_ = emitter.Status(statusThinking)

	stream, err := a.llm.ChatStream(ctx, messages, true)
	if err != nil {
		a.logger.Error("opening completion stream failed", "user_id", req.UserID, "error", err)
		_ = emitter.Error(err.Error())
		return
	}

	assistant, calls, err := a.consume(stream, emitter)
	if err != nil {
		a.logger.Error("completion stream failed", "user_id", req.UserID, "error", err)
		_ = emitter.Error(err.Error())
		return
	}

	if len(calls) > 0 {
		messages = append(messages, llm.AssistantMessage(assistant, calls))
		messages = a.runTools(ctx, req.UserID, calls, messages, emitter)

		_ = emitter.Status(statusComposing)

		followUp, err := a.llm.ChatStream(ctx, messages, false)
		if err != nil {
			a.logger.Error("opening synthesis stream failed", "user_id", req.UserID, "error", err)
			_ = emitter.Error(err.Error())
			return
		}

		// The pre-tool buffer is discarded; the synthesis pass is the answer.
		assistant, _, err = a.consume(followUp, emitter)
		if err != nil {
			a.logger.Error("synthesis stream failed", "user_id", req.UserID, "error", err)
			_ = emitter.Error(err.Error())
			return
		}
	}

	if assistant != "" {
		a.persist(ctx, req.UserID, llm.RoleAssistant, assistant)
	}

	_ = emitter.Done()
}

// buildContext assembles the system prompt and prior turns. Guests supply
// history with the request; authenticated users load it from storage.
// A history load failure degrades to an empty context rather than failing
// the turn.
func (a *Agent) buildContext(ctx context.Context, req Request) []llm.Message {
	messages := []llm.Message{llm.SystemMessage(systemPrompt)}

	if req.UserID == tools.GuestUserID {
		for _, t := range req.LocalHistory {
			messages = append(messages, llm.Message{Role: t.Role, Content: &t.Content})
		}
		return messages
	}

	turns, err := a.history.History(ctx, req.UserID, a.maxHistoryTurns)
	if err != nil {
		a.logger.Warn("loading chat history failed", "user_id", req.UserID, "error", err)
		return messages
	}
	for _, t := range turns {
		messages = append(messages, llm.Message{Role: t.Role, Content: &t.Content})
	}
	return messages
}

// applyFile extracts an uploaded file and appends it to the user message as
// a fenced block, truncated to the character budget.
func (a *Agent) applyFile(req Request, emitter Emitter) (string, error) {
	if req.File == nil {
		return req.Message, nil
	}

	_ = emitter.Status(statusProcessingFile)

	extracted, err := a.extract(req.File.Data, req.File.MimeType, req.File.Filename)
	if err != nil {
		return "", err
	}

	text := extracted.Text
	if len(text) > a.fileCharBudget {
		text = text[:a.fileCharBudget]
	}

	plural := ""
	if extracted.Pages > 1 {
		plural = "s"
	}
	fileContext := fmt.Sprintf("\n\n---\n📎 **Uploaded file:** `%s` (%d page%s)\n\n```\n%s\n```\n---\n",
		extracted.Filename, extracted.Pages, plural, text)

	return req.Message + "\n" + fileContext, nil
}

// consume drains a completion stream, forwarding text deltas as token
// events and reassembling tool-call fragments. It returns early when the
// provider signals a tool_calls finish so the calls can be executed.
func (a *Agent) consume(stream iter.Seq2[llm.Chunk, error], emitter Emitter) (string, []llm.ToolCall, error) {
	var sb strings.Builder
	var acc callAccumulator

	for chunk, err := range stream {
		if err != nil {
			return sb.String(), nil, err
		}

		if content := chunk.Content(); content != "" {
			sb.WriteString(content)
			_ = emitter.Token(content)
		}

		acc.add(chunk.ToolCallDeltas())

		if chunk.FinishReason() == llm.FinishToolCalls {
			break
		}
	}

	return sb.String(), acc.result(), nil
}

// runTools executes the accumulated calls strictly in declaration order and
// appends one tool-role message per call. Malformed argument JSON degrades
// to an empty-argument call; execution failures come back as error payloads
// from the runner. Neither aborts the turn.
func (a *Agent) runTools(ctx context.Context, userID string, calls []llm.ToolCall, messages []llm.Message, emitter Emitter) []llm.Message {
	for _, call := range calls {
		name := call.Function.Name
		_ = emitter.Status(fmt.Sprintf("Using %s…", strings.ReplaceAll(name, "_", " ")))

		args := map[string]any{}
		if raw := call.Function.Arguments; raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				a.logger.Warn("malformed tool arguments, using empty object",
					"tool", name, "error", err)
				args = map[string]any{}
			}
		}

		result := a.tools.Execute(ctx, name, args, userID)
		messages = append(messages, llm.ToolMessage(call.ID, result))
	}
	return messages
}

// persist writes a chat turn for authenticated users. Persistence failures
// are logged and swallowed; losing a history row must not kill a live
// stream.
func (a *Agent) persist(ctx context.Context, userID, role, content string) {
	if userID == tools.GuestUserID || content == "" {
		return
	}
	if err := a.history.SaveMessage(ctx, userID, role, content); err != nil {
		a.logger.Warn("saving chat message failed", "user_id", userID, "role", role, "error", err)
	}
}
