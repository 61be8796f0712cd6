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

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RetentionConfig controls the idle session sweeper.
type RetentionConfig struct {
	// MaxIdle is how long a session may go without updates before it is
	// evicted. Zero disables the sweeper.
	MaxIdle time.Duration

	// Schedule is the cron expression for sweep runs (standard 5-field
	// format, @every syntax accepted). Defaults to every 10 minutes.
	Schedule string
}

// Retention evicts idle sessions on a cron schedule. Evicted sessions leave
// both the in-memory map and the persistent store; a client reusing an
// evicted session id simply starts a fresh conversation.
type Retention struct {
	memory     *Memory
	config     RetentionConfig
	logger     *zap.Logger
	cronEngine *cron.Cron
}

// NewRetention creates a retention sweeper over the given memory.
func NewRetention(memory *Memory, config RetentionConfig, logger *zap.Logger) *Retention {
	if config.Schedule == "" {
		config.Schedule = "@every 10m"
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Retention{
		memory:     memory,
		config:     config,
		logger:     logger,
		cronEngine: cron.New(),
	}
}

// Start schedules the sweep and starts the cron engine.
func (r *Retention) Start() error {
	if r.config.MaxIdle <= 0 {
		r.logger.Info("session retention disabled")
		return nil
	}

	_, err := r.cronEngine.AddFunc(r.config.Schedule, func() {
		r.SweepOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}

	r.cronEngine.Start()
	r.logger.Info("session retention started",
		zap.Duration("max_idle", r.config.MaxIdle),
		zap.String("schedule", r.config.Schedule))
	return nil
}

// Stop stops the cron engine, waiting for a running sweep to finish.
func (r *Retention) Stop() {
	ctx := r.cronEngine.Stop()
	<-ctx.Done()
}

// SweepOnce evicts every session idle longer than MaxIdle. Returns the
// number of sessions evicted.
func (r *Retention) SweepOnce(ctx context.Context) int {
	cutoff := time.Now().Add(-r.config.MaxIdle)
	evicted := 0

	for _, session := range r.memory.ListSessions() {
		if session.LastUpdated().Before(cutoff) {
			r.memory.DeleteSession(session.ID)
			evicted++
		}
	}

	// Sessions that only live in the store (e.g. after a restart) are
	// swept there too.
	if store := r.memory.GetStore(); store != nil {
		ids, err := store.IdleSessionIDs(ctx, cutoff)
		if err != nil {
			r.logger.Warn("failed to list idle sessions in store", zap.Error(err))
		} else {
			for _, id := range ids {
				if err := store.DeleteSession(ctx, id); err != nil {
					r.logger.Warn("failed to delete idle session",
						zap.String("session_id", id),
						zap.Error(err))
					continue
				}
				evicted++
			}
		}
	}

	if evicted > 0 {
		r.logger.Info("evicted idle sessions",
			zap.Int("count", evicted),
			zap.Duration("max_idle", r.config.MaxIdle))
	}

	return evicted
}
