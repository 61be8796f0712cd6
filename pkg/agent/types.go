// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package agent implements the reasoning loop that turns a user message into
// a final answer by alternating LLM decisions with tool executions.
package agent

import (
	"time"

	"github.com/teradata-labs/bobbin/pkg/tool"
	"github.com/teradata-labs/bobbin/pkg/types"
)

// Config holds agent configuration.
type Config struct {
	// Name is the agent name (used for identification and logging)
	Name string

	// SystemPrompt is the system prompt text. When empty, a prompt is
	// generated from the registered tools at session creation time.
	SystemPrompt string

	// MaxSteps is the maximum number of LLM decisions per turn
	MaxSteps int

	// MaxToolExecutions is the maximum number of tool executions per turn
	MaxToolExecutions int

	// ContextBudget caps the estimated token size of the history sent to
	// the LLM. When a session outgrows it, the oldest messages after the
	// system prompt fall out of the window. 0 sends everything.
	ContextBudget int

	// StepTimeout bounds each LLM call and each tool execution
	StepTimeout time.Duration

	// TurnTimeout bounds a whole turn, across all steps
	TurnTimeout time.Duration

	// Retry configuration for LLM calls
	Retry RetryConfig
}

// RetryConfig configures exponential backoff retry logic for LLM calls.
type RetryConfig struct {
	// Enabled enables retry logic
	Enabled bool

	// MaxRetries is the maximum number of retry attempts (0 = no retries)
	MaxRetries int

	// InitialDelay is the initial delay before the first retry
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier (e.g., 2.0 for doubling)
	Multiplier float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:              "bobbin",
		MaxSteps:          10,
		MaxToolExecutions: 20,
		ContextBudget:     200000,
		StepTimeout:       60 * time.Second,
		TurnTimeout:       5 * time.Minute,
		Retry: RetryConfig{
			Enabled:      true,
			MaxRetries:   1,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// Response is the outcome of a completed turn.
type Response struct {
	// Content is the final answer text
	Content string

	// Usage is the accumulated token usage across all steps of the turn
	Usage Usage

	// ToolExecutions records every tool invocation made during the turn
	ToolExecutions []ToolExecution

	// Metadata carries turn statistics (steps, tool_executions, stop_reason)
	Metadata map[string]interface{}
}

// ToolExecution records a single tool invocation within a turn.
type ToolExecution struct {
	// ToolName is the name of the executed tool
	ToolName string

	// Input contains the parameters passed to the tool
	Input map[string]interface{}

	// Result is the tool execution result (may be nil on Go-level error)
	Result *tool.Result

	// Error is the Go-level error, if any
	Error error
}

// Shared conversation types live in pkg/types so the llm providers and the
// server can use them without importing this package.
type Message = types.Message
type ToolCall = types.ToolCall
type Usage = types.Usage
type LLMResponse = types.LLMResponse
type LLMProvider = types.LLMProvider
type Session = types.Session
