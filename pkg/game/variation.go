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

package game

import (
	"errors"
	"fmt"

	"laptudirm.com/x/ponder/pkg/rules"
)

// ErrIllegalMove is reported when a proposed move is rejected by the
// rules collaborator. No timeline state is touched in that case.
var ErrIllegalMove = errors.New("game: illegal move")

// ErrNoSuchLine is reported when switching to a variation index that
// does not exist.
var ErrNoSuchLine = errors.New("game: no such variation")

// Analyzer is whatever restarts background evaluation for a timeline.
// Variations triggers it after every mutation that leaves a line with
// unscored plies; it never blocks on it.
type Analyzer interface {
	Analyze(*Timeline)
}

// AnalyzerFunc adapts a plain function to the Analyzer interface.
type AnalyzerFunc func(*Timeline)

func (f AnalyzerFunc) Analyze(t *Timeline) { f(t) }

// Variations owns the mainline and every branch forked off it. Index 0
// is always the mainline; exactly one line is active at a time. A fork
// copies its prefix at creation and stays valid regardless of what later
// happens to the line it came from.
type Variations struct {
	lines  []*Timeline
	active int

	// Branch points, for display labels only. branchPly[i] is the ply
	// line i deviated at; 0 for the mainline. No live parent pointers.
	branchPly []int

	analyzer Analyzer
}

// NewVariations returns a collection holding a single empty mainline.
// The analyzer may be nil.
func NewVariations(analyzer Analyzer) *Variations {
	return &Variations{
		lines:     []*Timeline{NewTimeline()},
		branchPly: []int{0},
		analyzer:  analyzer,
	}
}

// Load resets the collection to a single mainline holding the given game
// and starts its evaluation.
func (v *Variations) Load(g rules.Game) {
	mainline := &Timeline{}
	mainline.Load(g.Initial, g.Moves, g.Tags)

	v.lines = []*Timeline{mainline}
	v.branchPly = []int{0}
	v.active = 0

	v.analyze(mainline)
}

// Active returns the currently active timeline.
func (v *Variations) Active() *Timeline {
	return v.lines[v.active]
}

// ActiveIndex returns the index of the active timeline.
func (v *Variations) ActiveIndex() int {
	return v.active
}

// Lines returns the timelines in creation order, mainline first.
func (v *Variations) Lines() []*Timeline {
	return append([]*Timeline(nil), v.lines...)
}

// Label returns the display name of a line: "Main" for the mainline,
// an ordinal with its branch point for forks. Purely presentational.
func (v *Variations) Label(index int) string {
	if index == 0 {
		return "Main"
	}

	return fmt.Sprintf("Variation %d (move %d)", index, v.branchPly[index]/2+1)
}

// Propose decides what a move means relative to the active line:
//
//   - at the tip, the line is extended in place;
//   - matching the next stored move, the cursor just advances;
//   - deviating mid-line, a fork is created from the prefix up to the
//     cursor plus the new move, and becomes active.
//
// Illegal moves are rejected before any state is touched.
func (v *Variations) Propose(move rules.Move) (StepResult, error) {
	line := v.Active()

	if !rules.Legal(line.Position(), move) {
		return StepResult{}, ErrIllegalMove
	}

	ply := line.CurrentPly()

	// At the tip: extend the active line in place.
	if ply == line.Len() {
		result, err := line.Extend(move)
		if err != nil {
			return StepResult{}, err
		}

		v.analyze(line)
		return result, nil
	}

	// Matches the stored continuation: just advance.
	if rules.Equal(move, line.MoveAt(ply)) {
		result, _ := line.StepForward()
		return result, nil
	}

	// A deviation mid-line: fork.
	moves := append(line.Moves()[:ply:ply], move)

	fork := &Timeline{}
	fork.Load(line.InitialPosition(), moves, line.Tags())
	fork.GoToPly(len(moves) - 1)
	result, _ := fork.StepForward()

	v.lines = append(v.lines, fork)
	v.branchPly = append(v.branchPly, ply)
	v.active = len(v.lines) - 1

	v.analyze(fork)
	return result, nil
}

// Switch makes the line at the given index active. If that line still
// has unscored plies its evaluation is resumed.
func (v *Variations) Switch(index int) error {
	if index < 0 || index >= len(v.lines) {
		return fmt.Errorf("%w: %d", ErrNoSuchLine, index)
	}

	v.active = index

	if line := v.lines[index]; !line.FullyScored() {
		v.analyze(line)
	}

	return nil
}

func (v *Variations) analyze(line *Timeline) {
	if v.analyzer != nil {
		v.analyzer.Analyze(line)
	}
}
