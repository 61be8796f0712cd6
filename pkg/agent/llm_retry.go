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
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/bobbin/pkg/tool"
	"github.com/teradata-labs/bobbin/pkg/types"
)

// chatWithRetry wraps LLM Chat calls with exponential backoff retry logic.
// Each attempt runs under the step timeout so one hung call cannot consume
// the whole turn. When a token callback is supplied and the provider
// supports streaming, the call streams instead (streaming bypasses retry).
func (a *Agent) chatWithRetry(ctx context.Context, messages []Message, tools []tool.Tool, callback types.TokenCallback) (*LLMResponse, error) {
	if callback != nil && types.SupportsStreaming(a.llm) {
		return a.chatStreaming(ctx, messages, tools, callback)
	}

	if !a.config.Retry.Enabled || a.config.Retry.MaxRetries == 0 {
		return a.callOnce(ctx, messages, tools)
	}

	var lastErr error
	delay := a.config.Retry.InitialDelay

	for attempt := 0; attempt <= a.config.Retry.MaxRetries; attempt++ {
		response, err := a.callOnce(ctx, messages, tools)
		if err == nil {
			if attempt > 0 {
				a.logger.Info("llm retry succeeded",
					zap.Int("attempt", attempt+1))
			}
			return response, nil
		}

		lastErr = err

		// The turn context being done means the caller gave up; retrying
		// against a dead context only burns time.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("llm call failed (attempt %d/%d): %w",
				attempt+1, a.config.Retry.MaxRetries+1, err)
		}

		if attempt >= a.config.Retry.MaxRetries {
			break
		}

		a.logger.Warn("llm call failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", a.config.Retry.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("llm call failed (attempt %d/%d): %w",
				attempt+1, a.config.Retry.MaxRetries+1, ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * a.config.Retry.Multiplier)
		if delay > a.config.Retry.MaxDelay {
			delay = a.config.Retry.MaxDelay
		}
	}

	a.logger.Error("llm retries exhausted",
		zap.Int("max_retries", a.config.Retry.MaxRetries),
		zap.Error(lastErr))

	return nil, fmt.Errorf("llm call failed after %d attempts: %w",
		a.config.Retry.MaxRetries+1, lastErr)
}

func (a *Agent) callOnce(ctx context.Context, messages []Message, tools []tool.Tool) (*LLMResponse, error) {
	if a.config.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.StepTimeout)
		defer cancel()
	}
	return a.llm.Chat(ctx, messages, tools)
}

// chatStreaming calls the provider's streaming API, forwarding tokens to the
// callback as they arrive.
func (a *Agent) chatStreaming(ctx context.Context, messages []Message, tools []tool.Tool, callback types.TokenCallback) (*LLMResponse, error) {
	streaming, ok := a.llm.(types.StreamingLLMProvider)
	if !ok {
		return a.callOnce(ctx, messages, tools)
	}

	if a.config.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.StepTimeout)
		defer cancel()
	}

	return streaming.ChatStream(ctx, messages, tools, callback)
}
