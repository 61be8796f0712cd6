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
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/bobbin/pkg/agent"
	"github.com/teradata-labs/bobbin/pkg/tool"
)

// Error kinds returned in non-2xx chat responses.
const (
	ErrKindBadRequest        = "bad_request"
	ErrKindStepLimitExceeded = "step_limit_exceeded"
	ErrKindUnknownTool       = "unknown_tool"
	ErrKindTimeout           = "timeout"
	ErrKindInternal          = "internal"
)

// ChatRequest is the POST /chat request body.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatToolCall describes one tool invocation made while answering. The
// list preserves invocation order.
type ChatToolCall struct {
	ToolName string                 `json:"tool_name"`
	Input    map[string]interface{} `json:"input"`
	Success  bool                   `json:"success"`
	Output   interface{}            `json:"output,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// ChatUsage reports token accounting for the whole turn.
type ChatUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// ChatResponse is the POST /chat success body.
type ChatResponse struct {
	SessionID string         `json:"session_id"`
	Answer    string         `json:"answer"`
	ToolCalls []ChatToolCall `json:"tool_calls"`
	Usage     ChatUsage      `json:"usage"`
}

// ErrorResponse is the body of every non-2xx chat response.
type ErrorResponse struct {
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

func (h *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeChatRequest(w, r)
	if !ok {
		return
	}

	resp, err := h.agent.Chat(r.Context(), req.SessionID, req.Message)
	if err != nil {
		h.writeChatError(w, req.SessionID, err)
		return
	}

	h.writeJSON(w, http.StatusOK, chatResponseFrom(req.SessionID, resp))
}

// decodeChatRequest reads the request from the JSON body, or from query
// parameters for GET streams.
func (h *HTTPServer) decodeChatRequest(w http.ResponseWriter, r *http.Request) (*ChatRequest, bool) {
	var req ChatRequest
	if r.Method == http.MethodGet {
		req.SessionID = r.URL.Query().Get("session_id")
		req.Message = r.URL.Query().Get("message")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrKindBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return nil, false
	}
	if strings.TrimSpace(req.SessionID) == "" {
		h.writeError(w, http.StatusBadRequest, ErrKindBadRequest, "session_id is required")
		return nil, false
	}
	if strings.TrimSpace(req.Message) == "" {
		h.writeError(w, http.StatusBadRequest, ErrKindBadRequest, "message is required")
		return nil, false
	}
	return &req, true
}

func chatResponseFrom(sessionID string, resp *agent.Response) *ChatResponse {
	toolCalls := make([]ChatToolCall, 0, len(resp.ToolExecutions))
	for _, exec := range resp.ToolExecutions {
		call := ChatToolCall{
			ToolName: exec.ToolName,
			Input:    exec.Input,
			Success:  exec.Result != nil && exec.Result.Success,
		}
		if exec.Result != nil {
			call.Output = exec.Result.Data
			if exec.Result.Error != nil {
				call.Error = exec.Result.Error.Message
			}
		}
		if exec.Error != nil {
			call.Error = exec.Error.Error()
		}
		toolCalls = append(toolCalls, call)
	}

	return &ChatResponse{
		SessionID: sessionID,
		Answer:    resp.Content,
		ToolCalls: toolCalls,
		Usage: ChatUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.TotalTokens,
			CostUSD:      resp.Usage.CostUSD,
		},
	}
}

// writeChatError maps a turn failure onto an HTTP status and error kind.
func (h *HTTPServer) writeChatError(w http.ResponseWriter, sessionID string, err error) {
	status, kind := classifyChatError(err)

	h.logger.Warn("chat turn failed",
		zap.String("session_id", sessionID),
		zap.String("error_kind", kind),
		zap.Error(err))

	h.writeError(w, status, kind, err.Error())
}

func classifyChatError(err error) (int, string) {
	var unknownTool *tool.UnknownToolError

	switch {
	case errors.Is(err, agent.ErrStepLimitExceeded):
		return http.StatusUnprocessableEntity, ErrKindStepLimitExceeded
	case errors.As(err, &unknownTool):
		return http.StatusInternalServerError, ErrKindUnknownTool
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrKindTimeout
	default:
		return http.StatusInternalServerError, ErrKindInternal
	}
}

func (h *HTTPServer) writeError(w http.ResponseWriter, status int, kind, message string) {
	h.writeJSON(w, status, &ErrorResponse{ErrorKind: kind, Message: message})
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// handleChatStream answers a chat request over SSE: "token" events carry
// text chunks as the model produces them, one final "done" event carries
// the complete ChatResponse, and failures arrive as an "error" event.
func (h *HTTPServer) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeChatRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, ErrKindInternal, "streaming unsupported by connection")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	flusher.Flush()

	resp, err := h.agent.ChatStream(r.Context(), req.SessionID, req.Message, func(token string) {
		h.sendSSE(w, flusher, "token", map[string]interface{}{"text": token})
	})
	if err != nil {
		_, kind := classifyChatError(err)
		h.logger.Warn("chat stream failed",
			zap.String("session_id", req.SessionID),
			zap.String("error_kind", kind),
			zap.Error(err))
		h.sendSSE(w, flusher, "error", &ErrorResponse{ErrorKind: kind, Message: err.Error()})
		return
	}

	h.sendSSE(w, flusher, "done", chatResponseFrom(req.SessionID, resp))
}

func (h *HTTPServer) sendSSE(w http.ResponseWriter, flusher http.Flusher, event string, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		h.logger.Error("Failed to marshal SSE event", zap.Error(err))
		return
	}

	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
