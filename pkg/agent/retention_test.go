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
	"testing"
	"time"
)

func TestRetention_SweepOnce(t *testing.T) {
	mem := NewMemory()

	idle := mem.GetOrCreateSession("idle")
	idle.UpdatedAt = time.Now().Add(-time.Hour)
	mem.GetOrCreateSession("active")

	r := NewRetention(mem, RetentionConfig{MaxIdle: 30 * time.Minute}, nil)

	evicted := r.SweepOnce(context.Background())

	if evicted != 1 {
		t.Errorf("Expected 1 eviction, got %d", evicted)
	}
	if _, ok := mem.GetSession("idle"); ok {
		t.Error("Expected idle session to be evicted")
	}
	if _, ok := mem.GetSession("active"); !ok {
		t.Error("Expected active session to survive")
	}
}

func TestRetention_SweepNothingIdle(t *testing.T) {
	mem := NewMemory()
	mem.GetOrCreateSession("a")
	mem.GetOrCreateSession("b")

	r := NewRetention(mem, RetentionConfig{MaxIdle: time.Hour}, nil)

	if evicted := r.SweepOnce(context.Background()); evicted != 0 {
		t.Errorf("Expected 0 evictions, got %d", evicted)
	}
	if mem.CountSessions() != 2 {
		t.Errorf("Expected both sessions to survive, have %d", mem.CountSessions())
	}
}

func TestRetention_StartDisabledWithoutMaxIdle(t *testing.T) {
	r := NewRetention(NewMemory(), RetentionConfig{}, nil)

	if err := r.Start(); err != nil {
		t.Fatalf("Start with zero MaxIdle should be a no-op, got %v", err)
	}
}

func TestRetention_DefaultSchedule(t *testing.T) {
	r := NewRetention(NewMemory(), RetentionConfig{MaxIdle: time.Hour}, nil)

	if r.config.Schedule != "@every 10m" {
		t.Errorf("Default schedule = %q", r.config.Schedule)
	}
}
