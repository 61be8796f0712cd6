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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teradata-labs/bobbin/pkg/tool"
)

// BuildSystemPrompt generates the default system prompt from the registered
// tools. The prompt tells the LLM what it is, names each tool, and sets the
// ground rules for answering from data.
func BuildSystemPrompt(tools []tool.Tool) string {
	var b strings.Builder

	b.WriteString("You are a data analyst assistant. You answer questions about a tabular dataset ")
	b.WriteString("by running read-only SQL queries through the tools below. ")
	b.WriteString("Never fabricate data - only report what tools actually return.\n\n")
	b.WriteString("Available tools:\n")

	for _, t := range tools {
		b.WriteString(fmt.Sprintf("- %s: %s\n", t.Name(), t.Description()))
	}

	b.WriteString("\nWhen a question needs data, inspect the schema first if you are unsure ")
	b.WriteString("of table or column names, then run a query. ")
	b.WriteString("If a tool reports an error, read the message, fix your call, and try again. ")
	b.WriteString("Answer in plain language and include the numbers the query returned.")

	return b.String()
}

// PromptFile serves a system prompt from a file on disk, reloading it when
// the file changes. Supersedes the generated prompt when configured.
type PromptFile struct {
	path    string
	mu      sync.RWMutex
	content string
	logger  *zap.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewPromptFile loads the prompt file at path.
func NewPromptFile(path string, logger *zap.Logger) (*PromptFile, error) {
	if logger == nil {
		logger = zap.L()
	}

	p := &PromptFile{
		path:   path,
		logger: logger,
		done:   make(chan struct{}),
	}
	if err := p.reload(); err != nil {
		return nil, err
	}

	return p, nil
}

// Content returns the current prompt text.
func (p *PromptFile) Content() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.content
}

// Watch starts watching the prompt file for changes. Edits take effect on
// the next session creation; running sessions keep the prompt they started
// with.
func (p *PromptFile) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory, not the file: editors replace files on save,
	// which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(p.path), err)
	}

	p.watcher = watcher

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-p.done:
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(p.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := p.reload(); err != nil {
					p.logger.Warn("failed to reload prompt file",
						zap.String("path", p.path),
						zap.Error(err))
					continue
				}
				p.logger.Info("prompt file reloaded", zap.String("path", p.path))

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.logger.Warn("prompt watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Close stops the watcher.
func (p *PromptFile) Close() {
	close(p.done)
}

func (p *PromptFile) reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("failed to read prompt file: %w", err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return fmt.Errorf("prompt file %s is empty", p.path)
	}

	p.mu.Lock()
	p.content = content
	p.mu.Unlock()

	return nil
}
