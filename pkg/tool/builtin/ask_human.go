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
package builtin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/bobbin/pkg/tool"
)

// HumanRequest is a question the agent has escalated to a person.
type HumanRequest struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// Status is "pending" until answered or expired
	Status      string     `json:"status"`
	Response    string     `json:"response"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// HumanRequestStore holds pending questions and their answers.
type HumanRequestStore interface {
	Store(ctx context.Context, req *HumanRequest) error
	Get(ctx context.Context, id string) (*HumanRequest, error)
	ListPending(ctx context.Context) ([]*HumanRequest, error)
	Respond(ctx context.Context, id, response string) error
}

// AskHumanConfig configures the AskHumanTool.
type AskHumanConfig struct {
	Store        HumanRequestStore
	Timeout      time.Duration // Default wait for an answer (default: 5 minutes)
	PollInterval time.Duration // How often to check for answers (default: 1 second)
	Logger       *zap.Logger
}

// AskHumanTool lets the agent escalate a question to a person. Execution
// blocks until someone answers through the pending-questions API or the
// request times out.
type AskHumanTool struct {
	store        HumanRequestStore
	timeout      time.Duration
	pollInterval time.Duration
	logger       *zap.Logger

	// For testing, allows mocking time
	now func() time.Time
}

// NewAskHumanTool creates the ask_human tool.
func NewAskHumanTool(config AskHumanConfig) *AskHumanTool {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Minute
	}
	if config.PollInterval == 0 {
		config.PollInterval = time.Second
	}
	if config.Store == nil {
		config.Store = NewInMemoryHumanRequestStore()
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &AskHumanTool{
		store:        config.Store,
		timeout:      config.Timeout,
		pollInterval: config.PollInterval,
		logger:       config.Logger,
		now:          time.Now,
	}
}

// Store returns the request store, for wiring the answer API.
func (t *AskHumanTool) Store() HumanRequestStore {
	return t.store
}

func (t *AskHumanTool) Name() string {
	return "ask_human"
}

func (t *AskHumanTool) Description() string {
	return "Asks the human user a clarifying question and waits for their answer. " +
		"Use this when the request is ambiguous and you cannot decide between interpretations from the data alone. " +
		"This tool blocks until the human responds or the request times out."
}

func (t *AskHumanTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema(
		"Parameters for asking the human a question",
		map[string]*tool.JSONSchema{
			"question": tool.NewStringSchema("The question for the human. Be clear and specific."),
			"timeout_seconds": tool.NewNumberSchema("Maximum time to wait for an answer in seconds (default: 300).").
				WithDefault(300),
		},
		[]string{"question"},
	)
}

func (t *AskHumanTool) Execute(ctx context.Context, params map[string]interface{}) (*tool.Result, error) {
	start := t.now()

	question, ok := params["question"].(string)
	if !ok || question == "" {
		return tool.ErrorResult(tool.CodeValidation, "question must be a non-empty string", true), nil
	}

	timeout := t.timeout
	if ts, ok := params["timeout_seconds"].(float64); ok && ts > 0 {
		timeout = time.Duration(ts) * time.Second
	}

	now := t.now()
	req := &HumanRequest{
		ID:        uuid.New().String(),
		SessionID: tool.SessionID(ctx),
		Question:  question,
		CreatedAt: now,
		ExpiresAt: now.Add(timeout),
		Status:    "pending",
	}

	if err := t.store.Store(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to store human request: %w", err)
	}

	t.logger.Info("waiting for human response",
		zap.String("request_id", req.ID),
		zap.Duration("timeout", timeout))

	response, timedOut := t.waitForResponse(ctx, req.ID, timeout)
	elapsed := time.Since(start).Milliseconds()

	if timedOut {
		return &tool.Result{
			Success: false,
			Error: &tool.Error{
				Code:      tool.CodeTimeout,
				Message:   fmt.Sprintf("human did not respond within %v", timeout),
				Retryable: true,
			},
			Metadata:        map[string]interface{}{"request_id": req.ID},
			ExecutionTimeMs: elapsed,
		}, nil
	}

	return &tool.Result{
		Success: true,
		Data: map[string]interface{}{
			"request_id": response.ID,
			"response":   response.Response,
		},
		ExecutionTimeMs: elapsed,
	}, nil
}

// waitForResponse polls the store until the request leaves "pending" or the
// timeout elapses.
func (t *AskHumanTool) waitForResponse(ctx context.Context, requestID string, timeout time.Duration) (*HumanRequest, bool) {
	deadline := t.now().Add(timeout)
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, true
		case <-ticker.C:
			if t.now().After(deadline) {
				return nil, true
			}

			req, err := t.store.Get(ctx, requestID)
			if err != nil {
				continue
			}
			if req.Status != "pending" {
				return req, false
			}
		}
	}
}

// InMemoryHumanRequestStore is the default single-instance store.
type InMemoryHumanRequestStore struct {
	mu       sync.RWMutex
	requests map[string]*HumanRequest
}

// NewInMemoryHumanRequestStore creates a new in-memory store.
func NewInMemoryHumanRequestStore() *InMemoryHumanRequestStore {
	return &InMemoryHumanRequestStore{
		requests: make(map[string]*HumanRequest),
	}
}

func (s *InMemoryHumanRequestStore) Store(ctx context.Context, req *HumanRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqCopy := *req
	s.requests[req.ID] = &reqCopy
	return nil
}

func (s *InMemoryHumanRequestStore) Get(ctx context.Context, id string) (*HumanRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, exists := s.requests[id]
	if !exists {
		return nil, fmt.Errorf("request not found: %s", id)
	}

	reqCopy := *req
	return &reqCopy, nil
}

func (s *InMemoryHumanRequestStore) ListPending(ctx context.Context) ([]*HumanRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*HumanRequest
	for _, req := range s.requests {
		if req.Status == "pending" {
			reqCopy := *req
			pending = append(pending, &reqCopy)
		}
	}
	return pending, nil
}

func (s *InMemoryHumanRequestStore) Respond(ctx context.Context, id, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, exists := s.requests[id]
	if !exists {
		return fmt.Errorf("request not found: %s", id)
	}
	if req.Status != "pending" {
		return fmt.Errorf("request already answered (status: %s)", req.Status)
	}

	now := time.Now()
	req.Status = "responded"
	req.Response = response
	req.RespondedAt = &now

	return nil
}

var _ tool.Tool = (*AskHumanTool)(nil)
var _ HumanRequestStore = (*InMemoryHumanRequestStore)(nil)
