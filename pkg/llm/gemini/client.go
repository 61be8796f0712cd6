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

// Package gemini implements the LLMProvider interface over Google's
// Generative Language REST API.
package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/teradata-labs/bobbin/pkg/tool"
	"github.com/teradata-labs/bobbin/pkg/types"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client implements the LLMProvider interface for Google Gemini.
type Client struct {
	apiKey      string
	model       string
	baseURL     string
	httpClient  *http.Client
	maxTokens   int
	temperature float64
}

// Config holds configuration for the Gemini client.
type Config struct {
	// Required: Gemini API key from https://aistudio.google.com/
	APIKey string

	// Model to use (default: "gemini-2.5-flash")
	// Available models:
	// - gemini-2.5-pro: Complex reasoning, $1.25-2.50/$10-15 per 1M tokens
	// - gemini-2.5-flash: Best price/performance, $0.30/$2.50 per 1M tokens
	// - gemini-2.5-flash-lite: Fastest/cheapest, similar to Flash pricing
	Model string

	// BaseURL overrides the API endpoint (used by tests)
	BaseURL string

	// Optional configuration
	MaxTokens   int           // Default: 8192
	Temperature float64       // Default: 1.0
	Timeout     time.Duration // Default: 60s
}

// NewClient creates a new Google Gemini client.
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = "gemini-2.5-flash"
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 8192
	}
	if config.Temperature == 0 {
		config.Temperature = 1.0
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	return &Client{
		apiKey:      config.APIKey,
		model:       config.Model,
		baseURL:     strings.TrimSuffix(config.BaseURL, "/"),
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "gemini"
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.model
}

// Chat sends a conversation to Google Gemini and returns the response.
func (c *Client) Chat(ctx context.Context, messages []types.Message, tools []tool.Tool) (*types.LLMResponse, error) {
	req := c.buildRequest(messages, tools)

	resp, err := c.callAPI(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("API call failed: %w", err)
	}

	return c.convertResponse(resp), nil
}

func (c *Client) buildRequest(messages []types.Message, tools []tool.Tool) *GenerateContentRequest {
	req := &GenerateContentRequest{
		Contents: convertMessages(messages),
		GenerationConfig: GenerationConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: c.maxTokens,
		},
	}

	if len(tools) > 0 {
		req.Tools = []Tool{
			{FunctionDeclarations: convertTools(tools)},
		}
	}

	return req
}

// callAPI makes the HTTP request to Gemini's generateContent endpoint.
func (c *Client) callAPI(ctx context.Context, req *GenerateContentRequest) (*GenerateContentResponse, error) {
	apiURL := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(respBody))
	}

	var resp GenerateContentResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("Gemini API error: %s (code: %d)", resp.Error.Message, resp.Error.Code)
	}

	return &resp, nil
}

// convertResponse converts a Gemini response to the provider-neutral format.
func (c *Client) convertResponse(resp *GenerateContentResponse) *types.LLMResponse {
	llmResp := &types.LLMResponse{
		Usage: types.Usage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
			CostUSD:      c.calculateCost(resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount),
		},
		Metadata: map[string]interface{}{
			"provider": "gemini",
			"model":    c.model,
		},
	}

	if len(resp.Candidates) > 0 {
		candidate := resp.Candidates[0]
		llmResp.StopReason = mapFinishReason(candidate.FinishReason)

		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				llmResp.Content += part.Text
			}
			if part.FunctionCall != nil {
				llmResp.StopReason = "tool_use"
				llmResp.ToolCalls = append(llmResp.ToolCalls, types.ToolCall{
					ID:    part.FunctionCall.Name, // Gemini doesn't provide call IDs
					Name:  part.FunctionCall.Name,
					Input: part.FunctionCall.Args,
				})
			}
		}
	}

	return llmResp
}

func mapFinishReason(finishReason string) string {
	switch finishReason {
	case "STOP":
		return "end_turn"
	case "MAX_TOKENS":
		return "max_tokens"
	case "SAFETY", "RECITATION":
		return "content_filter"
	default:
		return finishReason
	}
}

// calculateCost estimates the cost in USD based on token usage.
// Pricing per million tokens. Check https://ai.google.dev/pricing for
// current rates.
func (c *Client) calculateCost(inputTokens, outputTokens int) float64 {
	var inputCostPerM, outputCostPerM float64

	switch c.model {
	case "gemini-2.5-pro":
		inputCostPerM = 1.875
		outputCostPerM = 12.50
	case "gemini-2.5-flash", "gemini-2.5-flash-lite":
		inputCostPerM = 0.30
		outputCostPerM = 2.50
	default:
		// Default to Flash pricing for unknown models
		inputCostPerM = 0.30
		outputCostPerM = 2.50
	}

	inputCost := float64(inputTokens) * inputCostPerM / 1_000_000
	outputCost := float64(outputTokens) * outputCostPerM / 1_000_000
	return inputCost + outputCost
}

// Conversion helpers

func convertMessages(messages []types.Message) []Content {
	var contents []Content

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			// Gemini has no system role; prepend as a user message
			contents = append(contents, Content{
				Role: "user",
				Parts: []Part{
					{Text: "System instruction: " + msg.Content},
				},
			})

		case types.RoleUser:
			contents = append(contents, Content{
				Role: "user",
				Parts: []Part{
					{Text: msg.Content},
				},
			})

		case types.RoleAssistant:
			parts := []Part{}
			if msg.Content != "" {
				parts = append(parts, Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, Part{
					FunctionCall: &FunctionCall{
						Name: tc.Name,
						Args: tc.Input,
					},
				})
			}
			contents = append(contents, Content{
				Role:  "model", // Gemini uses "model" instead of "assistant"
				Parts: parts,
			})

		case types.RoleTool:
			contents = append(contents, Content{
				Role: "function", // Gemini uses "function" for tool results
				Parts: []Part{
					{
						FunctionResponse: &FunctionResponse{
							Name: msg.ToolUseID,
							Response: map[string]interface{}{
								"result": msg.Content,
							},
						},
					},
				},
			})
		}
	}

	return contents
}

func convertTools(tools []tool.Tool) []FunctionDeclaration {
	var declarations []FunctionDeclaration

	for _, t := range tools {
		decl := FunctionDeclaration{
			Name:        t.Name(),
			Description: t.Description(),
		}

		schema := tool.NormalizeSchema(t.InputSchema())
		if schema != nil {
			params := Schema{
				Type:       schema.Type,
				Properties: convertSchemaProperties(schema.Properties),
				Required:   schema.Required,
			}
			if params.Type == "" {
				params.Type = "object"
			}
			decl.Parameters = params
		}

		declarations = append(declarations, decl)
	}

	return declarations
}

func convertSchemaProperties(props map[string]*tool.JSONSchema) map[string]Schema {
	if props == nil {
		return nil
	}

	result := make(map[string]Schema)
	for key, schema := range props {
		s := Schema{
			Type:        schema.Type,
			Description: schema.Description,
			Enum:        schema.Enum,
		}
		if schema.Properties != nil {
			s.Properties = convertSchemaProperties(schema.Properties)
		}
		if schema.Items != nil {
			s.Items = &Schema{
				Type:        schema.Items.Type,
				Description: schema.Items.Description,
			}
		}
		result[key] = s
	}

	return result
}

// ChatStream implements token-by-token streaming using Gemini's
// streamGenerateContent endpoint. The tokenCallback is called for each
// token received.
func (c *Client) ChatStream(ctx context.Context, messages []types.Message,
	tools []tool.Tool, tokenCallback types.TokenCallback) (*types.LLMResponse, error) {

	req := c.buildRequest(messages, tools)

	apiURL := fmt.Sprintf("%s/models/%s:streamGenerateContent?key=%s&alt=sse", c.baseURL, c.model, c.apiKey)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(respBody))
	}

	var contentBuffer strings.Builder
	usage := types.Usage{}
	var finishReason string
	tokenCount := 0
	var toolCalls []types.ToolCall

	scanner := bufio.NewScanner(httpResp.Body)
	for scanner.Scan() {
		line := scanner.Text()

		// SSE format: "data: <json>"
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		jsonData := strings.TrimPrefix(line, "data: ")

		var chunk GenerateContentResponse
		if err := json.Unmarshal([]byte(jsonData), &chunk); err != nil {
			// Skip malformed chunks but continue processing
			continue
		}

		if chunk.Error != nil {
			return nil, fmt.Errorf("Gemini API error: %s (code: %d)", chunk.Error.Message, chunk.Error.Code)
		}

		if len(chunk.Candidates) > 0 {
			candidate := chunk.Candidates[0]

			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					contentBuffer.WriteString(part.Text)
					tokenCount++
					if tokenCallback != nil {
						tokenCallback(part.Text)
					}
				}
				if part.FunctionCall != nil {
					toolCalls = append(toolCalls, types.ToolCall{
						ID:    part.FunctionCall.Name,
						Name:  part.FunctionCall.Name,
						Input: part.FunctionCall.Args,
					})
				}
			}

			if candidate.FinishReason != "" {
				finishReason = candidate.FinishReason
			}
		}

		if chunk.UsageMetadata.TotalTokenCount > 0 {
			usage.InputTokens = chunk.UsageMetadata.PromptTokenCount
			usage.OutputTokens = chunk.UsageMetadata.CandidatesTokenCount
			usage.TotalTokens = chunk.UsageMetadata.TotalTokenCount
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading stream: %w", err)
	}

	if usage.TotalTokens == 0 {
		usage.OutputTokens = tokenCount
		usage.TotalTokens = tokenCount
	}
	usage.CostUSD = c.calculateCost(usage.InputTokens, usage.OutputTokens)

	stopReason := mapFinishReason(finishReason)
	if len(toolCalls) > 0 {
		stopReason = "tool_use"
	}

	return &types.LLMResponse{
		Content:    contentBuffer.String(),
		StopReason: stopReason,
		Usage:      usage,
		ToolCalls:  toolCalls,
		Metadata: map[string]interface{}{
			"provider":  "gemini",
			"model":     c.model,
			"streaming": true,
		},
	}, nil
}

// Ensure Client implements LLMProvider interface.
var _ types.LLMProvider = (*Client)(nil)

// Ensure Client implements StreamingLLMProvider interface.
var _ types.StreamingLLMProvider = (*Client)(nil)
