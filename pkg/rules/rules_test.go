package rules_test

import (
	"errors"
	"testing"

	"laptudirm.com/x/ponder/pkg/rules"
)

const scholarsMate = `[Event "Casual Game"]
[White "Alpha"]
[Black "Beta"]
[Result "1-0"]

1. e4 e5 2. Qh5 Nc6 3. Bc4 Nf6 4. Qxf7# 1-0
`

func TestParse(t *testing.T) {
	parsed, err := rules.Parse(scholarsMate)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(parsed.Moves) != 7 {
		t.Errorf("got %d moves, want 7", len(parsed.Moves))
	}

	var white string
	for _, tag := range parsed.Tags {
		if tag.Key == "White" {
			white = tag.Value
		}
	}
	if white != "Alpha" {
		t.Errorf("White tag = %q, want %q", white, "Alpha")
	}

	if squares := rules.PieceMap(parsed.Initial); len(squares) != 32 {
		t.Errorf("initial position has %d occupied squares, want 32", len(squares))
	}
}

func TestParseNoGame(t *testing.T) {
	_, err := rules.Parse("definitely not a chess game @@")
	if err == nil {
		t.Fatal("Parse accepted garbage input")
	}
	if !errors.Is(err, rules.ErrNoGame) {
		t.Errorf("error = %v, want ErrNoGame", err)
	}
}

func TestPieceMapShape(t *testing.T) {
	squares := rules.PieceMap(rules.Start())

	cases := map[string]string{
		"e1": "K", "d1": "Q", "a1": "R", "g1": "N", "c1": "B", "e2": "P",
		"e8": "k", "d8": "q", "h8": "r", "b8": "n", "f8": "b", "a7": "p",
	}
	for square, want := range cases {
		if got := squares[square]; got != want {
			t.Errorf("squares[%q] = %q, want %q", square, got, want)
		}
	}

	if _, ok := squares["e4"]; ok {
		t.Error("empty square e4 present in piece map")
	}
}

func TestApplyLeavesOriginal(t *testing.T) {
	start := rules.Start()
	move, err := rules.ParseMove(start, "e4")
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}

	next := rules.Apply(start, move)

	if _, ok := rules.PieceMap(start)["e4"]; ok {
		t.Error("Apply mutated the original position")
	}
	if got := rules.PieceMap(next)["e4"]; got != "P" {
		t.Errorf("after e4, e4 holds %q, want P", got)
	}
}

func TestLegal(t *testing.T) {
	start := rules.Start()

	e4, err := rules.ParseMove(start, "e2e4")
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	if !rules.Legal(start, e4) {
		t.Error("e2e4 reported illegal at the start position")
	}

	// The same move object is illegal once the pawn has left e2.
	after := rules.Apply(start, e4)
	after = rules.Apply(after, mustMove(t, after, "e5"))
	if rules.Legal(after, e4) {
		t.Error("e2e4 reported legal with no pawn on e2")
	}
}

func TestParseMoveBothNotations(t *testing.T) {
	start := rules.Start()

	san, err := rules.ParseMove(start, "Nf3")
	if err != nil {
		t.Fatalf("SAN decode: %v", err)
	}
	long, err := rules.ParseMove(start, "g1f3")
	if err != nil {
		t.Fatalf("UCI decode: %v", err)
	}

	if !rules.Equal(san, long) {
		t.Error("Nf3 and g1f3 decoded to different moves")
	}

	if _, err := rules.ParseMove(start, "Nf6"); err == nil {
		t.Error("decoded a move that is not available")
	}
}

func TestDescribeCastling(t *testing.T) {
	pos := rules.Start()
	for _, san := range []string{"e4", "e5", "Nf3", "Nc6", "Bc4", "Bc5"} {
		pos = rules.Apply(pos, mustMove(t, pos, san))
	}

	castle := mustMove(t, pos, "O-O")
	facts := rules.Describe(pos, castle)

	if !facts.Castling {
		t.Error("O-O not flagged as castling")
	}
	if facts.Piece != "K" {
		t.Errorf("castling piece = %q, want K", facts.Piece)
	}
	if facts.From != "e1" || facts.To != "g1" {
		t.Errorf("castling squares = %s-%s, want e1-g1", facts.From, facts.To)
	}
}

func TestDescribePromotion(t *testing.T) {
	pos, err := rules.FromFEN("8/P7/8/8/8/8/8/k6K w - - 0 1")
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}

	promote := mustMove(t, pos, "a8=Q")
	facts := rules.Describe(pos, promote)

	if !facts.Promotion {
		t.Error("a8=Q not flagged as promotion")
	}
	if facts.Piece != "P" {
		t.Errorf("promoting piece = %q, want P", facts.Piece)
	}
}

func TestSAN(t *testing.T) {
	start := rules.Start()
	move := mustMove(t, start, "g1f3")

	if got := rules.SAN(start, move); got != "Nf3" {
		t.Errorf("SAN = %q, want Nf3", got)
	}
	if got := rules.UCI(move); got != "g1f3" {
		t.Errorf("UCI = %q, want g1f3", got)
	}
}

func mustMove(t *testing.T, pos rules.Position, text string) rules.Move {
	t.Helper()

	move, err := rules.ParseMove(pos, text)
	if err != nil {
		t.Fatalf("ParseMove(%q): %v", text, err)
	}

	return move
}
