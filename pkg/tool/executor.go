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
package tool

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"
)

// Executor dispatches tool invocations with schema validation, parameter
// normalization, and timing.
type Executor struct {
	registry *Registry
}

// NewExecutor creates a new tool executor over a registry.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Execute invokes a tool by name with the given parameters.
//
// The error return is reserved for configuration faults (UnknownToolError)
// and context cancellation; every other failure mode comes back as a Result
// with Success=false and a structured Error, so the caller can surface it to
// the LLM as a retryable signal.
func (e *Executor) Execute(ctx context.Context, toolName string, params map[string]interface{}) (*Result, error) {
	t, ok := e.registry.Get(toolName)
	if !ok {
		return nil, &UnknownToolError{Name: toolName}
	}

	// LLMs flip between camelCase and snake_case; match keys to the schema
	// before validating against it.
	normalized := normalizeParametersToSchema(t, params)

	if err := ValidateArguments(t.InputSchema(), normalized); err != nil {
		return &Result{
			Success: false,
			Error: &Error{
				Code:       CodeValidation,
				Message:    err.Error(),
				Retryable:  true,
				Suggestion: "Check the tool's input schema and correct the argument names and types.",
			},
		}, nil
	}

	start := time.Now()
	result, err := t.Execute(ctx, normalized)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &Result{
				Success: false,
				Error: &Error{
					Code:      CodeTimeout,
					Message:   fmt.Sprintf("tool %s timed out after %s", toolName, duration.Round(time.Millisecond)),
					Retryable: true,
				},
				ExecutionTimeMs: duration.Milliseconds(),
			}, nil
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return &Result{
			Success:         false,
			Error:           &Error{Code: CodeExecution, Message: err.Error(), Retryable: false},
			ExecutionTimeMs: duration.Milliseconds(),
		}, nil
	}

	if result == nil {
		result = &Result{Success: true}
	}
	// Executor timing is authoritative, even if the tool set its own.
	result.ExecutionTimeMs = duration.Milliseconds()

	return result, nil
}

// ListAvailableTools returns all tools in the executor's registry.
func (e *Executor) ListAvailableTools() []Tool {
	return e.registry.ListTools()
}

// normalizeParametersToSchema maps parameter names onto the tool's schema
// property names, matching case-insensitively with underscore folding.
func normalizeParametersToSchema(t Tool, params map[string]interface{}) map[string]interface{} {
	if len(params) == 0 {
		return params
	}

	schema := t.InputSchema()
	if schema == nil || schema.Properties == nil {
		return params
	}

	schemaKeys := make(map[string]string)
	for key := range schema.Properties {
		schemaKeys[toLowerUnderscore(key)] = key
	}

	normalized := make(map[string]interface{}, len(params))
	for key, value := range params {
		if schemaKey, exists := schemaKeys[toLowerUnderscore(key)]; exists {
			normalized[schemaKey] = value
		} else {
			normalized[key] = value
		}
	}

	return normalized
}

// toLowerUnderscore converts any naming convention to lowercase with
// underscores, so camelCase, snake_case and PascalCase all match.
func toLowerUnderscore(s string) string {
	if s == "" {
		return ""
	}

	var result []rune
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			result = append(result, '_')
		}
		result = append(result, unicode.ToLower(r))
	}

	return string(result)
}
