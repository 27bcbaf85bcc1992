package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SweepDailyTasks rolls completed daily tasks back to pending once the local
// calendar day has advanced past their completion day. The comparison is
// against the start of today in local time, not a rolling 24-hour window, so
// a task completed at 23:59 resets on the first sweep after midnight. All
// eligible tasks reset in one statement, so a sweep never leaves a partial
// reset behind. A completed daily task with no completion timestamp is
// inconsistent state and is rolled back as well.
func (e *Engine) SweepDailyTasks() (int64, error) {
	now := e.now()
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	result, err := e.db.Exec(
		`UPDATE tasks SET completed = 0, last_completed_at = NULL, updated_at = ?
		 WHERE type = 'daily' AND completed = 1
		   AND (last_completed_at IS NULL OR last_completed_at < ?)`,
		now.UTC(), startOfToday.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("sweep daily tasks: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

// Sweeper runs SweepDailyTasks on a fixed interval. Staleness up to one
// interval is acceptable; the tunable default is one minute.
type Sweeper struct {
	mu       sync.RWMutex
	engine   *Engine
	interval time.Duration
	onReset  func(count int64)
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSweeper creates a daily-reset sweeper. onReset is invoked after any
// sweep that rolled at least one task back, and may be nil.
func NewSweeper(e *Engine, interval time.Duration, onReset func(count int64)) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		engine:   e,
		interval: interval,
		onReset:  onReset,
	}
}

// Start begins the sweep loop. An immediate sweep runs before the first tick
// so tasks completed before a restart are not stuck until the interval fires.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)

		s.tick()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// Stop cancels the loop and waits for the current sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Sweeper) tick() {
	count, err := s.engine.SweepDailyTasks()
	if err != nil {
		s.engine.logger.Error("daily sweep", "error", err)
		return
	}
	if count > 0 {
		s.engine.logger.Info("daily tasks reset", "count", count)
		if s.onReset != nil {
			s.onReset(count)
		}
	}
}
