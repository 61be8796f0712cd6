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
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/bobbin/pkg/tool"
	"github.com/teradata-labs/bobbin/pkg/types"
)

// Agent drives conversations: it sends the session history to the LLM,
// executes the tool calls the LLM requests, feeds results back, and repeats
// until the LLM produces a final answer or a limit is hit.
type Agent struct {
	config       *Config
	llm          LLMProvider
	tools        *tool.Registry
	executor     *tool.Executor
	memory       *Memory
	tokenCounter *TokenCounter
	logger       *zap.Logger
}

// New creates an agent over the given LLM provider and session memory.
func New(config *Config, llm LLMProvider, memory *Memory, logger *zap.Logger) *Agent {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.L()
	}
	registry := tool.NewRegistry()

	a := &Agent{
		config:       config,
		llm:          llm,
		tools:        registry,
		executor:     tool.NewExecutor(registry),
		memory:       memory,
		tokenCounter: GetTokenCounter(),
		logger:       logger,
	}

	// New sessions start with a system message describing the agent's job
	// and the tools at its disposal.
	memory.SetSystemPromptFunc(func() string {
		if config.SystemPrompt != "" {
			return config.SystemPrompt
		}
		return BuildSystemPrompt(registry.ListTools())
	})

	return a
}

// RegisterTool adds a tool to the agent's registry.
func (a *Agent) RegisterTool(t tool.Tool) {
	a.tools.MustRegister(t)
}

// RegisterTools adds multiple tools to the agent's registry.
func (a *Agent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// ListTools returns the names of all registered tools.
func (a *Agent) ListTools() []string {
	return a.tools.List()
}

// Memory returns the agent's session memory.
func (a *Agent) Memory() *Memory {
	return a.memory
}

// Chat runs one full turn for a session: append the user message, loop
// between LLM decisions and tool executions, and return the final answer.
//
// One turn runs per session at a time; concurrent calls for the same session
// block until the running turn finishes. The returned error is
// ErrStepLimitExceeded (wrapped) when the loop hit a limit, a
// *tool.UnknownToolError when the LLM requested an unregistered tool, or a
// provider/context error.
func (a *Agent) Chat(ctx context.Context, sessionID string, userMessage string) (*Response, error) {
	return a.chat(ctx, sessionID, userMessage, nil)
}

// ChatStream is Chat with token streaming: the callback receives answer
// tokens as the LLM emits them. Requires a provider that implements
// types.StreamingLLMProvider; falls back to buffered Chat otherwise.
func (a *Agent) ChatStream(ctx context.Context, sessionID string, userMessage string, callback types.TokenCallback) (*Response, error) {
	return a.chat(ctx, sessionID, userMessage, callback)
}

func (a *Agent) chat(ctx context.Context, sessionID string, userMessage string, callback types.TokenCallback) (*Response, error) {
	if a.config.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.TurnTimeout)
		defer cancel()
	}

	// Tools that attribute work to a session (ask_human) read the id
	// back out of the context.
	ctx = tool.WithSessionID(ctx, sessionID)

	session := a.memory.GetOrCreateSession(sessionID)

	// One reasoning turn per session at a time.
	session.LockTurn()
	defer session.UnlockTurn()

	start := time.Now()

	userMsg := Message{
		Role:       types.RoleUser,
		Content:    userMessage,
		Timestamp:  time.Now(),
		TokenCount: a.tokenCounter.CountTokens(userMessage),
	}
	session.AddMessage(userMsg)
	if err := a.memory.PersistMessage(ctx, sessionID, userMsg); err != nil {
		a.logger.Warn("failed to persist user message",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}

	response, err := a.runConversationLoop(ctx, session, callback)
	if err != nil {
		a.logger.Warn("turn failed",
			zap.String("session_id", sessionID),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	assistantMsg := Message{
		Role:       types.RoleAssistant,
		Content:    response.Content,
		Timestamp:  time.Now(),
		TokenCount: response.Usage.TotalTokens,
		CostUSD:    response.Usage.CostUSD,
	}
	session.AddMessage(assistantMsg)
	if err := a.memory.PersistMessage(ctx, sessionID, assistantMsg); err != nil {
		a.logger.Warn("failed to persist assistant message",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
	if err := a.memory.PersistSession(ctx, session); err != nil {
		a.logger.Warn("failed to persist session",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}

	a.logger.Info("turn completed",
		zap.String("session_id", sessionID),
		zap.Int("steps", response.Metadata["steps"].(int)),
		zap.Int("tool_executions", response.Metadata["tool_executions"].(int)),
		zap.Int("tokens", response.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)))

	return response, nil
}

// runConversationLoop alternates LLM decisions with tool executions until
// the LLM answers with text or a limit is reached. The assistant message
// carrying the tool calls always enters the history before any of its
// results, so the transcript stays in causal order.
func (a *Agent) runConversationLoop(ctx context.Context, session *Session, callback types.TokenCallback) (*Response, error) {
	tools := a.tools.ListTools()
	stepCount := 0
	toolExecutionCount := 0
	var executions []ToolExecution
	var usage Usage

	for stepCount < a.config.MaxSteps {
		stepCount++

		llmResp, err := a.chatWithRetry(ctx, a.contextWindow(session), tools, callback)
		if err != nil {
			return nil, fmt.Errorf("llm decision failed: %w", err)
		}

		usage.InputTokens += llmResp.Usage.InputTokens
		usage.OutputTokens += llmResp.Usage.OutputTokens
		usage.TotalTokens += llmResp.Usage.TotalTokens
		usage.CostUSD += llmResp.Usage.CostUSD

		// No tool calls means the LLM produced its final answer.
		if len(llmResp.ToolCalls) == 0 {
			return &Response{
				Content:        llmResp.Content,
				Usage:          usage,
				ToolExecutions: executions,
				Metadata: map[string]interface{}{
					"steps":           stepCount,
					"tool_executions": toolExecutionCount,
					"stop_reason":     llmResp.StopReason,
				},
			}, nil
		}

		assistantMsg := Message{
			Role:      types.RoleAssistant,
			Content:   llmResp.Content,
			ToolCalls: llmResp.ToolCalls,
			Timestamp: time.Now(),
		}
		session.AddMessage(assistantMsg)
		if err := a.memory.PersistMessage(ctx, session.ID, assistantMsg); err != nil {
			a.logger.Warn("failed to persist assistant message",
				zap.String("session_id", session.ID),
				zap.Error(err))
		}

		for _, toolCall := range llmResp.ToolCalls {
			if toolExecutionCount >= a.config.MaxToolExecutions {
				return nil, fmt.Errorf("%d tool executions without a final answer: %w",
					toolExecutionCount, ErrStepLimitExceeded)
			}
			toolExecutionCount++

			result, err := a.executeTool(ctx, toolCall)
			if err != nil {
				// An unregistered tool is a configuration fault, not
				// something the LLM can talk its way out of. Abort the
				// turn; the history so far stays in the session.
				var unknown *tool.UnknownToolError
				if errors.As(err, &unknown) {
					a.logger.Error("llm requested unregistered tool",
						zap.String("session_id", session.ID),
						zap.String("tool", toolCall.Name))
					return nil, unknown
				}
				return nil, err
			}

			execution := ToolExecution{
				ToolName: toolCall.Name,
				Input:    toolCall.Input,
				Result:   result,
			}
			executions = append(executions, execution)
			if err := a.memory.PersistToolExecution(ctx, session.ID, execution); err != nil {
				a.logger.Warn("failed to persist tool execution",
					zap.String("session_id", session.ID),
					zap.Error(err))
			}

			toolMsg := Message{
				Role:       types.RoleTool,
				Content:    formatToolResult(toolCall.Name, result),
				ToolUseID:  toolCall.ID,
				ToolResult: result,
				Timestamp:  time.Now(),
			}
			session.AddMessage(toolMsg)
			if err := a.memory.PersistMessage(ctx, session.ID, toolMsg); err != nil {
				a.logger.Warn("failed to persist tool message",
					zap.String("session_id", session.ID),
					zap.Error(err))
			}
		}
	}

	return nil, fmt.Errorf("no final answer after %d steps: %w", stepCount, ErrStepLimitExceeded)
}

// contextWindow returns the history to send to the LLM. Checked before
// every decision step: when the estimated token size exceeds
// Config.ContextBudget, the oldest messages after the system prompt fall
// out until the estimate fits. The window never opens on a tool result,
// so the LLM always sees the assistant message that requested it.
func (a *Agent) contextWindow(session *Session) []Message {
	messages := session.GetMessages()
	budget := a.config.ContextBudget
	if budget <= 0 || a.tokenCounter.EstimateMessagesTokens(messages) <= budget {
		return messages
	}

	keep := 0
	for keep < len(messages) && messages[keep].Role == types.RoleSystem {
		keep++
	}
	head := messages[:keep]
	tail := messages[keep:]

	window := func() []Message {
		out := make([]Message, 0, len(head)+len(tail))
		return append(append(out, head...), tail...)
	}

	for len(tail) > 1 && a.tokenCounter.EstimateMessagesTokens(window()) > budget {
		tail = tail[1:]
		for len(tail) > 1 && tail[0].Role == types.RoleTool {
			tail = tail[1:]
		}
	}

	a.logger.Warn("history over context budget, truncating",
		zap.String("session_id", session.ID),
		zap.Int("budget", budget),
		zap.Int("messages_total", len(messages)),
		zap.Int("messages_sent", len(head)+len(tail)))

	return window()
}

// executeTool runs one tool call under the step timeout. A timed-out
// execution is retried once; a second timeout comes back as a retryable
// timeout Result for the LLM to see.
func (a *Agent) executeTool(ctx context.Context, toolCall ToolCall) (*tool.Result, error) {
	result, err := a.executeOnce(ctx, toolCall)
	if err != nil {
		return nil, err
	}

	if result != nil && result.Error != nil && result.Error.Code == tool.CodeTimeout {
		a.logger.Warn("tool timed out, retrying once",
			zap.String("tool", toolCall.Name),
			zap.Duration("timeout", a.config.StepTimeout))
		return a.executeOnce(ctx, toolCall)
	}

	return result, nil
}

func (a *Agent) executeOnce(ctx context.Context, toolCall ToolCall) (*tool.Result, error) {
	if a.config.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.StepTimeout)
		defer cancel()
	}
	return a.executor.Execute(ctx, toolCall.Name, toolCall.Input)
}

// formatToolResult renders a tool result as text for the LLM. Failures carry
// the error code and suggestion so the LLM can correct its next call.
func formatToolResult(toolName string, result *tool.Result) string {
	if result == nil {
		return fmt.Sprintf("Tool %s returned no result.", toolName)
	}

	if !result.Success {
		if result.Error == nil {
			return fmt.Sprintf("Tool %s failed with no error details.", toolName)
		}
		msg := fmt.Sprintf("Tool %s failed (%s): %s", toolName, result.Error.Code, result.Error.Message)
		if result.Error.Suggestion != "" {
			msg += "\nSuggestion: " + result.Error.Suggestion
		}
		return msg
	}

	if result.Data == nil {
		return fmt.Sprintf("Tool %s completed successfully.", toolName)
	}

	data, err := json.Marshal(result.Data)
	if err != nil {
		return fmt.Sprintf("%v", result.Data)
	}
	return string(data)
}
