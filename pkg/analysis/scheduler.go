// Copyright © 2024 Rak Laptudirm <rak@laptudirm.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package analysis fills a timeline's evaluation cache in the
// background: one cancellable walk per timeline, scoring every position
// through the shared engine client and reporting progress along the way.
package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"laptudirm.com/x/ponder/pkg/game"
	"laptudirm.com/x/ponder/pkg/rules"
)

// Evaluator scores a single position, given by its FEN, in centipawns
// from White's perspective. *uci.Client satisfies it.
type Evaluator interface {
	Evaluate(fen string, moveTime time.Duration) (int, error)
}

// Progress receives (done, total) after every attempted ply.
type Progress interface {
	EvalProgress(done, total int)
}

// ProgressFunc adapts a plain function to the Progress interface.
type ProgressFunc func(done, total int)

func (f ProgressFunc) EvalProgress(done, total int) { f(done, total) }

// Scheduler runs at most one evaluation walk per timeline. Starting a
// walk for a timeline that already has one cancels the old walk first;
// its already-written scores are kept, never rolled back.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[*game.Timeline]*Task

	engine   Evaluator
	moveTime time.Duration
}

// NewScheduler returns a scheduler scoring positions through the given
// engine with the given per-position budget.
func NewScheduler(engine Evaluator, moveTime time.Duration) *Scheduler {
	return &Scheduler{
		tasks:    make(map[*game.Timeline]*Task),
		engine:   engine,
		moveTime: moveTime,
	}
}

// Task is one cancellable evaluation walk bound to a single timeline.
type Task struct {
	id     string
	cancel context.CancelFunc
	ctx    context.Context
	done   chan struct{}
}

// ID returns the task's identifier, used to correlate log lines.
func (t *Task) ID() string { return t.id }

// Cancel asks the walk to stop at its next yield point. Scores already
// written stay valid.
func (t *Task) Cancel() { t.cancel() }

// Wait blocks until the walk has finished or acknowledged cancellation.
func (t *Task) Wait() { <-t.done }

// Start begins a background walk over every ply of the timeline,
// superseding any walk already running for it. Slots that already hold a
// score are skipped, so a resumed walk picks up from the first unset
// slot. The progress sink may be nil.
func (s *Scheduler) Start(line *game.Timeline, progress Progress) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	task := &Task{
		id:     uuid.NewString(),
		cancel: cancel,
		ctx:    ctx,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	if prev := s.tasks[line]; prev != nil {
		prev.Cancel()
	}
	s.tasks[line] = task
	s.mu.Unlock()

	go s.walk(task, line, progress)
	return task
}

// Stop cancels the walk for a timeline, if one is running.
func (s *Scheduler) Stop(line *game.Timeline) {
	s.mu.Lock()
	task := s.tasks[line]
	s.mu.Unlock()

	if task != nil {
		task.Cancel()
	}
}

// StopAll cancels every running walk. Used on shutdown.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	tasks := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	s.mu.Unlock()

	for _, task := range tasks {
		task.Cancel()
	}
}

func (s *Scheduler) walk(task *Task, line *game.Timeline, progress Progress) {
	defer close(task.done)
	defer s.forget(task, line)

	snap := line.Snapshot()
	total := len(snap.Moves) + 1

	logrus.Debugf("analysis: task %s scoring %d positions", task.id, total)

	pos := snap.Initial
	for ply := 0; ply < total; ply++ {
		if ply > 0 {
			pos = rules.Apply(pos, snap.Moves[ply-1])
		}

		// Cooperative cancellation point, once per ply.
		if task.ctx.Err() != nil {
			logrus.Debugf("analysis: task %s cancelled at ply %d", task.id, ply)
			return
		}

		if !snap.Done[ply] {
			cp, err := s.engine.Evaluate(rules.FEN(pos), s.moveTime)
			if err != nil {
				// Leave the slot unset and keep walking; one bad
				// position never aborts the pass.
				logrus.Debugf("analysis: task %s ply %d: %v", task.id, ply, err)
			} else {
				line.SetScore(snap.Gen, ply, game.Score{CP: cp, Valid: true})
			}
		}

		if progress != nil {
			progress.EvalProgress(ply+1, total)
		}
	}

	line.MarkScored(snap.Gen)
	logrus.Debugf("analysis: task %s complete", task.id)
}

func (s *Scheduler) forget(task *Task, line *game.Timeline) {
	s.mu.Lock()
	if s.tasks[line] == task {
		delete(s.tasks, line)
	}
	s.mu.Unlock()
}
