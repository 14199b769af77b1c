package game_test

import (
	"reflect"
	"testing"

	"laptudirm.com/x/ponder/pkg/game"
	"laptudirm.com/x/ponder/pkg/rules"
)

// The Italian Game, ten plies of entirely forcing-free theory.
var italian = []string{
	"e4", "e5", "Nf3", "Nc6", "Bc4", "Bc5", "c3", "Nf6", "d4", "exd4",
}

func buildMoves(t *testing.T, sans ...string) (rules.Position, []rules.Move) {
	t.Helper()

	initial := rules.Start()
	pos := initial

	var moves []rules.Move
	for _, san := range sans {
		move, err := rules.ParseMove(pos, san)
		if err != nil {
			t.Fatalf("ParseMove(%q): %v", san, err)
		}
		moves = append(moves, move)
		pos = rules.Apply(pos, move)
	}

	return initial, moves
}

func loadLine(t *testing.T, sans ...string) *game.Timeline {
	t.Helper()

	initial, moves := buildMoves(t, sans...)
	line := &game.Timeline{}
	line.Load(initial, moves, nil)
	return line
}

func TestLoadResetsState(t *testing.T) {
	line := loadLine(t, italian...)

	if line.CurrentPly() != 0 {
		t.Errorf("CurrentPly = %d, want 0", line.CurrentPly())
	}
	if line.Len() != len(italian) {
		t.Errorf("Len = %d, want %d", line.Len(), len(italian))
	}
	if squares := line.LastMoveSquares(); len(squares) != 0 {
		t.Errorf("LastMoveSquares = %v, want empty", squares)
	}
	if scores := line.Scores(); len(scores) != len(italian)+1 {
		t.Errorf("got %d score slots, want %d", len(scores), len(italian)+1)
	}
	for ply, score := range line.Scores() {
		if score.Valid {
			t.Errorf("slot %d set after Load", ply)
		}
	}
}

// Jump-heavy navigation must land on the exact same board as walking
// straight there from a fresh load.
func TestReplayInvariant(t *testing.T) {
	for ply := 0; ply <= len(italian); ply++ {
		direct := loadLine(t, italian...)
		direct.GoToPly(ply)

		navigated := loadLine(t, italian...)
		navigated.GoToEnd()
		navigated.GoToPly(ply)

		if navigated.CurrentPly() != direct.CurrentPly() {
			t.Fatalf("ply %d: cursor diverged: %d vs %d", ply, navigated.CurrentPly(), direct.CurrentPly())
		}
		if !reflect.DeepEqual(navigated.PieceMap(), direct.PieceMap()) {
			t.Fatalf("ply %d: boards diverged after jump-back navigation", ply)
		}
		if navigated.FEN() != direct.FEN() {
			t.Fatalf("ply %d: FEN diverged: %q vs %q", ply, navigated.FEN(), direct.FEN())
		}
	}
}

func TestStepForwardBackIdempotent(t *testing.T) {
	line := loadLine(t, italian...)

	for ply := 0; ply <= len(italian); ply++ {
		line.GoToPly(ply)

		squares := line.PieceMap()
		cursor := line.CurrentPly()
		last := line.LastMoveSquares()

		if _, ok := line.StepForward(); ok {
			if _, ok := line.StepBack(); !ok {
				t.Fatalf("ply %d: StepBack failed after StepForward", ply)
			}
		}

		if line.CurrentPly() != cursor {
			t.Errorf("ply %d: cursor %d after round trip", ply, line.CurrentPly())
		}
		if !reflect.DeepEqual(line.PieceMap(), squares) {
			t.Errorf("ply %d: board changed after round trip", ply)
		}
		if !reflect.DeepEqual(line.LastMoveSquares(), last) {
			t.Errorf("ply %d: LastMoveSquares %v, want %v", ply, line.LastMoveSquares(), last)
		}
	}
}

func TestGoToPlyClamps(t *testing.T) {
	line := loadLine(t, italian...)

	line.GoToPly(-5)
	if line.CurrentPly() != 0 {
		t.Errorf("GoToPly(-5) left cursor at %d", line.CurrentPly())
	}

	line.GoToPly(9999)
	if line.CurrentPly() != line.Len() {
		t.Errorf("GoToPly(9999) left cursor at %d, want %d", line.CurrentPly(), line.Len())
	}
}

func TestNoOpAtBoundaries(t *testing.T) {
	line := loadLine(t, italian...)

	if _, ok := line.StepBack(); ok {
		t.Error("StepBack succeeded at ply 0")
	}
	if line.CurrentPly() != 0 {
		t.Errorf("StepBack at ply 0 moved cursor to %d", line.CurrentPly())
	}

	line.GoToEnd()
	if _, ok := line.StepForward(); ok {
		t.Error("StepForward succeeded at the tip")
	}
	if line.CurrentPly() != line.Len() {
		t.Errorf("StepForward at the tip moved cursor to %d", line.CurrentPly())
	}
}

func TestStepResults(t *testing.T) {
	line := loadLine(t, italian...)

	forward, ok := line.StepForward()
	if !ok {
		t.Fatal("StepForward failed at ply 0")
	}
	if forward.Piece != "P" || forward.From != "e2" || forward.To != "e4" {
		t.Errorf("forward step = %s %s-%s, want P e2-e4", forward.Piece, forward.From, forward.To)
	}
	if got := line.LastMoveSquares(); !reflect.DeepEqual(got, []string{"e2", "e4"}) {
		t.Errorf("LastMoveSquares = %v, want [e2 e4]", got)
	}

	back, ok := line.StepBack()
	if !ok {
		t.Fatal("StepBack failed at ply 1")
	}
	if back.From != "e4" || back.To != "e2" {
		t.Errorf("backward step = %s-%s, want e4-e2 (reversed)", back.From, back.To)
	}
	if got := line.LastMoveSquares(); len(got) != 0 {
		t.Errorf("LastMoveSquares = %v, want empty at ply 0", got)
	}
}

func TestNotationCache(t *testing.T) {
	line := loadLine(t, italian...)

	first := line.Notation()
	second := line.Notation()

	if !reflect.DeepEqual(first, second) {
		t.Error("two Notation calls disagree")
	}
	if !reflect.DeepEqual(first, italian) {
		t.Errorf("Notation = %v, want %v", first, italian)
	}

	line.GoToEnd()
	move, err := rules.ParseMove(line.Position(), "O-O")
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	if _, err := line.Extend(move); err != nil {
		t.Fatalf("Extend: %v", err)
	}

	extended := line.Notation()
	if len(extended) != len(first)+1 {
		t.Fatalf("notation has %d entries after Extend, want %d", len(extended), len(first)+1)
	}
	if extended[len(extended)-1] != "O-O" {
		t.Errorf("last notation entry = %q, want O-O", extended[len(extended)-1])
	}
}

func TestExtendOnlyAtTip(t *testing.T) {
	line := loadLine(t, italian...)
	line.GoToPly(3)

	_, moves := buildMoves(t, italian...)
	if _, err := line.Extend(moves[3]); err != game.ErrNotAtTip {
		t.Errorf("Extend mid-line returned %v, want ErrNotAtTip", err)
	}
	if line.Len() != len(italian) {
		t.Errorf("failed Extend changed Len to %d", line.Len())
	}
}

func TestExtendGrowsScores(t *testing.T) {
	line := loadLine(t, italian...)
	line.GoToEnd()

	snap := line.Snapshot()
	line.SetScore(snap.Gen, 0, game.Score{CP: 30, Valid: true})
	line.MarkScored(snap.Gen)

	move, err := rules.ParseMove(line.Position(), "O-O")
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	if _, err := line.Extend(move); err != nil {
		t.Fatalf("Extend: %v", err)
	}

	if got := len(line.Scores()); got != len(italian)+2 {
		t.Errorf("got %d score slots after Extend, want %d", got, len(italian)+2)
	}
	if line.FullyScored() {
		t.Error("timeline still marked fully scored after Extend")
	}
	if !line.ScoreAt(0).Valid {
		t.Error("Extend dropped an existing score")
	}
}

func TestBlunders(t *testing.T) {
	line := loadLine(t, "e4", "e5", "Qh5")

	snap := line.Snapshot()
	for ply, cp := range []int{20, 15, -210, -190} {
		line.SetScore(snap.Gen, ply, game.Score{CP: cp, Valid: true})
	}

	// The 1->2 transition dropped 225cp onto even ply 2; the odd-ply
	// transitions are skipped.
	if got := line.Blunders(200); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("Blunders(200) = %v, want [2]", got)
	}

	if got := line.Blunders(300); len(got) != 0 {
		t.Errorf("Blunders(300) = %v, want none", got)
	}

	// A drop landing on an odd ply is never flagged, however large.
	for ply, cp := range []int{20, -300, -280, -290} {
		line.SetScore(snap.Gen, ply, game.Score{CP: cp, Valid: true})
	}
	if got := line.Blunders(200); len(got) != 0 {
		t.Errorf("Blunders flagged an odd-ply transition: %v", got)
	}
}

func TestBlundersSkipUnset(t *testing.T) {
	line := loadLine(t, "e4", "e5", "Qh5")

	snap := line.Snapshot()
	line.SetScore(snap.Gen, 0, game.Score{CP: 400, Valid: true})
	line.SetScore(snap.Gen, 2, game.Score{CP: -400, Valid: true})

	// Slot 1 is unset, so neither adjacent transition may fire.
	if got := line.Blunders(100); len(got) != 0 {
		t.Errorf("Blunders with unset slot = %v, want none", got)
	}
}

func TestStaleScoreWritesDropped(t *testing.T) {
	line := loadLine(t, italian...)
	stale := line.Snapshot()

	initial, moves := buildMoves(t, italian...)
	line.Load(initial, moves, nil)

	line.SetScore(stale.Gen, 0, game.Score{CP: 999, Valid: true})
	if line.ScoreAt(0).Valid {
		t.Error("a stale-generation write landed after Load")
	}

	line.MarkScored(stale.Gen)
	if line.FullyScored() {
		t.Error("a stale-generation completion mark landed after Load")
	}
}

func TestMoveRows(t *testing.T) {
	line := loadLine(t, "e4", "e5", "Nf3")

	rows := line.MoveRows()
	want := []game.MoveRow{
		{Number: 1, White: "e4", Black: "e5"},
		{Number: 2, White: "Nf3"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("MoveRows = %v, want %v", rows, want)
	}
}
