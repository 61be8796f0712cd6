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
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teradata-labs/bobbin/pkg/agent"
	"github.com/teradata-labs/bobbin/pkg/tool"
	"github.com/teradata-labs/bobbin/pkg/types"
)

// scriptedProvider returns canned responses in order, one per Chat call.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []*types.LLMResponse
	errs      []error
	calls     int
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []types.Message, tools []tool.Tool) (*types.LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.calls
	p.calls++

	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], nil
	}
	return &types.LLMResponse{Content: "Done.", StopReason: "end_turn"}, nil
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-1" }

func newTestServer(t *testing.T, provider types.LLMProvider, tools ...tool.Tool) *HTTPServer {
	t.Helper()

	config := agent.DefaultConfig()
	config.SystemPrompt = "You are a test assistant."
	config.Retry.Enabled = false
	config.MaxSteps = 3

	ag := agent.New(config, provider, agent.NewMemory(), zap.NewNop())
	ag.RegisterTools(tools...)

	return NewHTTPServer(ag, ":0", zap.NewNop())
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &scriptedProvider{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		corsConfig     CORSConfig
		requestOrigin  string
		requestMethod  string
		expectedOrigin string
		expectedStatus int
	}{
		{
			name: "wildcard origin",
			corsConfig: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST"},
			},
			requestOrigin:  "https://example.com",
			requestMethod:  http.MethodGet,
			expectedOrigin: "*",
			expectedStatus: http.StatusOK,
		},
		{
			name: "specific origin",
			corsConfig: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"https://example.com"},
			},
			requestOrigin:  "https://example.com",
			requestMethod:  http.MethodGet,
			expectedOrigin: "https://example.com",
			expectedStatus: http.StatusOK,
		},
		{
			name: "origin not allowed",
			corsConfig: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"https://example.com"},
			},
			requestOrigin:  "https://evil.test",
			requestMethod:  http.MethodGet,
			expectedOrigin: "",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "CORS disabled",
			corsConfig:     CORSConfig{Enabled: false},
			requestOrigin:  "https://example.com",
			requestMethod:  http.MethodGet,
			expectedOrigin: "",
			expectedStatus: http.StatusOK,
		},
		{
			name: "OPTIONS preflight",
			corsConfig: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			},
			requestOrigin:  "https://example.com",
			requestMethod:  http.MethodOptions,
			expectedOrigin: "*",
			expectedStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := agent.DefaultConfig()
			config.SystemPrompt = "test"
			ag := agent.New(config, &scriptedProvider{}, agent.NewMemory(), zap.NewNop())
			srv := NewHTTPServerWithCORS(ag, ":0", zap.NewNop(), tt.corsConfig)

			req := httptest.NewRequest(tt.requestMethod, "/health", nil)
			req.Header.Set("Origin", tt.requestOrigin)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.expectedOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestStop_Graceful(t *testing.T) {
	srv := newTestServer(t, &scriptedProvider{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
}
