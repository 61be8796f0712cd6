// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package types contains shared types used across bobbin.
// This package breaks import cycles by providing common types that both
// pkg/agent and pkg/llm packages depend on.
package types

import (
	"context"
	"sync"
	"time"

	"github.com/teradata-labs/bobbin/pkg/tool"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall represents a tool invocation requested by the LLM.
type ToolCall struct {
	// ID is a unique identifier for this tool call
	ID string

	// Name is the tool name
	Name string

	// Input contains the tool parameters as JSON
	Input map[string]interface{}
}

// Message represents a single message in the conversation.
// Messages are immutable once appended to a session.
type Message struct {
	// ID is the unique message identifier
	ID string

	// Role is the message sender (system, user, assistant, tool)
	Role string

	// Content is the message text
	Content string

	// ToolCalls contains tool invocations (if role is assistant)
	ToolCalls []ToolCall

	// ToolUseID is the ID of the tool call this result corresponds to (if role is tool).
	// LLM providers use it to match tool results to tool requests.
	ToolUseID string

	// ToolResult contains the tool execution result (if role is tool)
	ToolResult *tool.Result

	// Timestamp when the message was created
	Timestamp time.Time

	// TokenCount for cost tracking
	TokenCount int

	// CostUSD for cost tracking
	CostUSD float64
}

// Usage tracks LLM token usage and costs.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CostUSD      float64
}

// LLMResponse represents a response from the LLM.
type LLMResponse struct {
	// Content is the text response (if no tool calls)
	Content string

	// ToolCalls contains requested tool executions
	ToolCalls []ToolCall

	// StopReason indicates why the LLM stopped
	StopReason string

	// Usage tracks token usage
	Usage Usage

	// Metadata contains provider-specific metadata
	Metadata map[string]interface{}
}

// LLMProvider is the decision function of the reasoning loop: given the
// conversation and the available tools it returns either a final answer or
// one or more tool calls. Implementations wrap a hosted LLM API; tests use
// a deterministic scripted implementation.
type LLMProvider interface {
	// Chat sends a conversation to the LLM and returns the response
	Chat(ctx context.Context, messages []Message, tools []tool.Tool) (*LLMResponse, error)

	// Name returns the provider name
	Name() string

	// Model returns the model identifier
	Model() string
}

// TokenCallback is called for each token/chunk during streaming.
// Implementations should be lightweight and non-blocking.
type TokenCallback func(token string)

// StreamingLLMProvider extends LLMProvider with token streaming support.
// Use the SupportsStreaming helper to check if a provider implements this
// interface.
type StreamingLLMProvider interface {
	LLMProvider

	// ChatStream streams tokens as they're generated from the LLM.
	// Returns the complete LLMResponse after the stream finishes.
	// The callback is called synchronously and should not block.
	ChatStream(ctx context.Context, messages []Message, tools []tool.Tool,
		tokenCallback TokenCallback) (*LLMResponse, error)
}

// SupportsStreaming checks if a provider supports token streaming.
func SupportsStreaming(provider LLMProvider) bool {
	_, ok := provider.(StreamingLLMProvider)
	return ok
}

// Session represents a conversation session with its ordered history.
// Thread-safe: all methods can be called concurrently.
type Session struct {
	mu sync.RWMutex

	// turnMu serializes reasoning turns within this session. Concurrent
	// requests for the same session id block here; distinct sessions
	// proceed independently.
	turnMu sync.Mutex

	// ID is the unique session identifier
	ID string

	// Messages is the conversation history, in causal turn order
	Messages []Message

	// Context holds session-specific context (dataset, table, etc.)
	Context map[string]interface{}

	// CreatedAt is when the session was created
	CreatedAt time.Time

	// UpdatedAt is when the session was last updated
	UpdatedAt time.Time

	// TotalCostUSD is the accumulated cost for this session
	TotalCostUSD float64

	// TotalTokens is the accumulated token usage
	TotalTokens int
}

// LockTurn acquires the session's turn lock. Exactly one reasoning turn may
// run per session at a time; callers must UnlockTurn when the turn finishes.
func (s *Session) LockTurn() {
	s.turnMu.Lock()
}

// UnlockTurn releases the session's turn lock.
func (s *Session) UnlockTurn() {
	s.turnMu.Unlock()
}

// AddMessage appends a message to the session history.
func (s *Session) AddMessage(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now()
	s.TotalCostUSD += msg.CostUSD
	s.TotalTokens += msg.TokenCount
}

// GetMessages returns a copy of the conversation history.
func (s *Session) GetMessages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]Message, len(s.Messages))
	copy(messages, s.Messages)
	return messages
}

// MessageCount returns the total number of messages in the session.
func (s *Session) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Messages)
}

// LastUpdated returns the session's last update time.
func (s *Session) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.UpdatedAt
}

// CreatedTime returns when the session was created.
func (s *Session) CreatedTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CreatedAt
}

// TokenTotal returns the session's accumulated token usage.
func (s *Session) TokenTotal() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.TotalTokens
}

// ResultSet holds the rows returned by a read-only query.
type ResultSet struct {
	// Columns are the result column names, in select order
	Columns []string

	// Rows are the result rows; values are driver-native Go types
	Rows [][]interface{}

	// RowCount is len(Rows), carried for JSON consumers
	RowCount int
}
