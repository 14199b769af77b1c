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

// Package game holds the ply-addressable move history of a loaded chess
// game: single lines (Timeline) and the collection of a mainline plus its
// branches (Variations).
package game

import (
	"errors"
	"sync"

	"laptudirm.com/x/ponder/pkg/rules"
)

// ErrNotAtTip is reported by Extend when the cursor is not at the end of
// the line.
var ErrNotAtTip = errors.New("game: can only extend a timeline at its tip")

// Timeline is a single line of play: an ordered move sequence, a current
// ply cursor, a lazily-built notation cache and a per-ply evaluation
// cache.
//
// The board at the cursor is kept as a stack of positions pushed and
// popped in lockstep with navigation, so the live position is always the
// exact replay of moves[0:currentPly] from the initial position, no
// matter how the cursor got there.
type Timeline struct {
	mu sync.Mutex

	initial   rules.Position
	tags      []rules.Tag
	moves     []rules.Move
	positions []rules.Position // positions[i] = board after moves[:i]
	current   int

	lastMove []string // the two squares touched by the last applied move
	notation []string // nil until computed, cleared by Extend

	scores   []Score // len(moves)+1 slots, index = ply
	scored   bool    // every ply has been attempted
	scoreGen uint64  // bumped by Load, fences stale evaluation writes
}

// StepResult describes a just-applied (or just-undone) move for a
// presentation layer: which piece moved between which squares, and the
// flags an animation would key off. For StepBack the From/To pair is
// swapped, since the visual motion runs in reverse.
type StepResult struct {
	Move  rules.Move
	Piece string
	From  string
	To    string

	Castling  bool
	EnPassant bool
	Promotion bool
}

// NewTimeline returns a timeline holding an empty game from the standard
// starting position.
func NewTimeline() *Timeline {
	var t Timeline
	t.Load(rules.Start(), nil, nil)
	return &t
}

// Load resets the timeline to a new game. The input is assumed to have
// been validated by the rules collaborator already; Load itself never
// fails.
func (t *Timeline) Load(initial rules.Position, moves []rules.Move, tags []rules.Tag) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.initial = initial
	t.tags = append([]rules.Tag(nil), tags...)
	t.moves = append([]rules.Move(nil), moves...)
	t.positions = []rules.Position{initial}
	t.current = 0
	t.lastMove = nil
	t.notation = nil
	t.scores = make([]Score, len(moves)+1)
	t.scored = false
	t.scoreGen++
}

// Len returns the number of moves in the line.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.moves)
}

// CurrentPly returns the cursor, in [0, Len()]. 0 is the initial position.
func (t *Timeline) CurrentPly() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Moves returns a copy of the move sequence.
func (t *Timeline) Moves() []rules.Move {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]rules.Move(nil), t.moves...)
}

// MoveAt returns the move at the given index.
func (t *Timeline) MoveAt(i int) rules.Move {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.moves[i]
}

// Tags returns the PGN headers the game was loaded with.
func (t *Timeline) Tags() []rules.Tag {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]rules.Tag(nil), t.tags...)
}

// InitialPosition returns the position the line replays from.
func (t *Timeline) InitialPosition() rules.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initial
}

// Position returns the board at the cursor.
func (t *Timeline) Position() rules.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.positions[t.current]
}

// FEN returns the FEN text of the board at the cursor.
func (t *Timeline) FEN() string {
	return rules.FEN(t.Position())
}

// PieceMap returns the occupancy of the board at the cursor, in the
// square-name to piece-code shape rendering layers consume.
func (t *Timeline) PieceMap() map[string]string {
	return rules.PieceMap(t.Position())
}

// LastMoveSquares returns the two squares touched by the most recently
// applied or undone move, for highlighting. Empty at ply 0.
func (t *Timeline) LastMoveSquares() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lastMove...)
}

// StepForward applies the next move and advances the cursor. It reports
// false, without touching any state, when the cursor is already at the
// tip.
func (t *Timeline) StepForward() (StepResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stepForward()
}

func (t *Timeline) stepForward() (StepResult, bool) {
	if t.current == len(t.moves) {
		return StepResult{}, false
	}

	move := t.moves[t.current]
	pos := t.positions[t.current]
	facts := rules.Describe(pos, move)

	t.positions = append(t.positions, rules.Apply(pos, move))
	t.current++
	t.lastMove = []string{facts.From, facts.To}

	return StepResult{
		Move:      move,
		Piece:     facts.Piece,
		From:      facts.From,
		To:        facts.To,
		Castling:  facts.Castling,
		EnPassant: facts.EnPassant,
		Promotion: facts.Promotion,
	}, true
}

// StepBack un-applies the last move and moves the cursor back. It reports
// false, without touching any state, at ply 0. From and To are swapped
// relative to StepForward because the visual motion is reversed.
func (t *Timeline) StepBack() (StepResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stepBack()
}

func (t *Timeline) stepBack() (StepResult, bool) {
	if t.current == 0 {
		return StepResult{}, false
	}

	move := t.moves[t.current-1]
	facts := rules.Describe(t.positions[t.current-1], move)

	t.positions = t.positions[:t.current]
	t.current--

	if t.current > 0 {
		prev := rules.Describe(t.positions[t.current-1], t.moves[t.current-1])
		t.lastMove = []string{prev.From, prev.To}
	} else {
		t.lastMove = nil
	}

	return StepResult{
		Move:      move,
		Piece:     facts.Piece,
		From:      facts.To,
		To:        facts.From,
		Castling:  facts.Castling,
		EnPassant: facts.EnPassant,
		Promotion: facts.Promotion,
	}, true
}

// GoToPly moves the cursor to the given ply, clamped into [0, Len()],
// replaying one move at a time from the current position rather than
// rebuilding from scratch.
func (t *Timeline) GoToPly(ply int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ply < 0 {
		ply = 0
	}
	if ply > len(t.moves) {
		ply = len(t.moves)
	}

	for t.current < ply {
		t.stepForward()
	}
	for t.current > ply {
		t.stepBack()
	}
}

// GoToStart rewinds the cursor to the initial position.
func (t *Timeline) GoToStart() { t.GoToPly(0) }

// GoToEnd advances the cursor to the tip.
func (t *Timeline) GoToEnd() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for t.current < len(t.moves) {
		t.stepForward()
	}
}

// Notation returns the SAN text of every move, computing it on first
// access by replaying the whole line and memoizing the result until the
// next Extend.
func (t *Timeline) Notation() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.notation == nil {
		t.notation = make([]string, 0, len(t.moves))
		pos := t.initial
		for _, move := range t.moves {
			t.notation = append(t.notation, rules.SAN(pos, move))
			pos = rules.Apply(pos, move)
		}
	}

	return append([]string(nil), t.notation...)
}

// MoveRow is one numbered row of the move list: White's move and, when
// present, Black's reply.
type MoveRow struct {
	Number int
	White  string
	Black  string
}

// MoveRows returns the move list as numbered White/Black SAN pairs.
func (t *Timeline) MoveRows() []MoveRow {
	notation := t.Notation()

	var rows []MoveRow
	for i := 0; i < len(notation); i += 2 {
		row := MoveRow{Number: i/2 + 1, White: notation[i]}
		if i+1 < len(notation) {
			row.Black = notation[i+1]
		}
		rows = append(rows, row)
	}

	return rows
}

// Extend appends a move at the tip, applies it, grows the evaluation
// cache by one unset slot and invalidates the notation cache. The cursor
// must be at the tip.
func (t *Timeline) Extend(move rules.Move) (StepResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != len(t.moves) {
		return StepResult{}, ErrNotAtTip
	}

	t.moves = append(t.moves, move)
	t.scores = append(t.scores, Score{})
	t.scored = false
	t.notation = nil

	result, _ := t.stepForward()
	return result, nil
}

// ScoreAt returns the evaluation slot for a ply, which may be unset.
func (t *Timeline) ScoreAt(ply int) Score {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ply < 0 || ply >= len(t.scores) {
		return Score{}
	}

	return t.scores[ply]
}

// CurrentScore returns the evaluation slot for the cursor's position.
func (t *Timeline) CurrentScore() Score {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scores[t.current]
}

// Scores returns a copy of every evaluation slot, index = ply.
func (t *Timeline) Scores() []Score {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Score(nil), t.scores...)
}

// Blunders returns the plies where White's evaluation dropped by at
// least the threshold: ply i is flagged when i is even, both slots are
// set, and scores[i] - scores[i-1] <= -threshold. Odd plies are never
// flagged, and unset slots are skipped rather than treated as zero.
func (t *Timeline) Blunders(threshold int) []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var plies []int
	for i := 1; i < len(t.scores); i++ {
		if i%2 != 0 {
			continue
		}
		if !t.scores[i-1].Valid || !t.scores[i].Valid {
			continue
		}
		if t.scores[i].CP-t.scores[i-1].CP <= -threshold {
			plies = append(plies, i)
		}
	}

	return plies
}

// EvalSnapshot is the view of a timeline an evaluation walk works from:
// the positions to score, which slots already hold one, and the
// generation its writes must match to land.
type EvalSnapshot struct {
	Gen     uint64
	Initial rules.Position
	Moves   []rules.Move
	Done    []bool
}

// Snapshot captures the state an evaluation walk needs. The move list is
// copied, so a later Extend cannot shift the walk's footing.
func (t *Timeline) Snapshot() EvalSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	done := make([]bool, len(t.scores))
	for i, s := range t.scores {
		done[i] = s.Valid
	}

	return EvalSnapshot{
		Gen:     t.scoreGen,
		Initial: t.initial,
		Moves:   append([]rules.Move(nil), t.moves...),
		Done:    done,
	}
}

// SetScore writes an evaluation slot. Writes carrying a stale generation
// or an out-of-range ply are dropped; a superseded walk can never corrupt
// a reloaded timeline.
func (t *Timeline) SetScore(gen uint64, ply int, score Score) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.scoreGen || ply < 0 || ply >= len(t.scores) {
		return
	}

	t.scores[ply] = score
}

// MarkScored records that every ply of the given generation has been
// attempted.
func (t *Timeline) MarkScored(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen == t.scoreGen {
		t.scored = true
	}
}

// FullyScored reports whether every ply has been attempted. Callers use
// it to decide whether switching back to this line should resume its
// evaluation.
func (t *Timeline) FullyScored() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scored
}
