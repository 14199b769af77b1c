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

// Package rules wraps the chess rules collaborator. Everything that needs
// knowledge of the laws of chess (parsing, legality, move application,
// notation, board occupancy) goes through this package; the rest of the
// module treats Move and Position as opaque values it only stores and
// replays.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// Move identifies an origin square, a destination square and an optional
// promotion piece. Moves are produced only by this package.
type Move = *chess.Move

// Position is an immutable board state. It is only inspected through the
// functions of this package.
type Position = *chess.Position

// Tag is a single PGN header pair.
type Tag struct {
	Key   string
	Value string
}

// Game is the result of parsing a PGN: its headers, the position the game
// starts from, and the mainline moves in play order.
type Game struct {
	Tags    []Tag
	Initial Position
	Moves   []Move
}

// ErrNoGame is reported when no game could be read from a PGN text.
var ErrNoGame = errors.New("rules: no game found in PGN")

// Parse reads a single game from PGN text. The existing state of the
// caller is never touched on failure.
func Parse(pgn string) (Game, error) {
	update, err := chess.PGN(strings.NewReader(pgn))
	if err != nil {
		return Game{}, fmt.Errorf("%w: %v", ErrNoGame, err)
	}

	parsed := chess.NewGame(update)

	var tags []Tag
	for _, pair := range parsed.TagPairs() {
		tags = append(tags, Tag{Key: pair.Key, Value: pair.Value})
	}

	positions := parsed.Positions()
	if len(positions) == 0 || (len(tags) == 0 && len(parsed.Moves()) == 0) {
		return Game{}, ErrNoGame
	}

	return Game{
		Tags:    tags,
		Initial: positions[0],
		Moves:   parsed.Moves(),
	}, nil
}

// Start returns the standard chess starting position.
func Start() Position {
	return chess.NewGame().Position()
}

// FromFEN builds a position from its FEN text form.
func FromFEN(fen string) (Position, error) {
	update, err := chess.FEN(fen)
	if err != nil {
		return nil, err
	}

	return chess.NewGame(update).Position(), nil
}

// Apply plays a move on a position and returns the resulting position.
// The original position is left untouched, which is what lets callers
// undo by simply retaining prior positions.
func Apply(pos Position, m Move) Position {
	return pos.Update(m)
}

// Legal reports whether a move is playable in a position.
func Legal(pos Position, m Move) bool {
	for _, valid := range pos.ValidMoves() {
		if Equal(valid, m) {
			return true
		}
	}

	return false
}

// Equal reports whether two moves describe the same origin, destination
// and promotion.
func Equal(a, b Move) bool {
	if a == nil || b == nil {
		return a == b
	}

	return a.S1() == b.S1() && a.S2() == b.S2() && a.Promo() == b.Promo()
}

// ParseMove reads a move in UCI ("e2e4") or SAN ("e4") form relative to
// the given position.
func ParseMove(pos Position, text string) (Move, error) {
	m, err := chess.UCINotation{}.Decode(pos, text)
	if err == nil {
		return m, nil
	}

	m, err = chess.AlgebraicNotation{}.Decode(pos, text)
	if err != nil {
		return nil, fmt.Errorf("rules: %q is not a move here", text)
	}

	return m, nil
}

// SAN returns the short algebraic text of a move in a position.
func SAN(pos Position, m Move) string {
	return chess.AlgebraicNotation{}.Encode(pos, m)
}

// UCI returns the long algebraic (UCI) text of a move.
func UCI(m Move) string {
	return chess.UCINotation{}.Encode(nil, m)
}

// FEN returns the FEN text of a position.
func FEN(pos Position) string {
	return pos.String()
}

// WhiteToMove reports whether it is White's turn in a position.
func WhiteToMove(pos Position) bool {
	return pos.Turn() == chess.White
}

// PieceMap maps occupied square names to one-character piece codes,
// uppercase for White and lowercase for Black. Empty squares are absent
// from the map. Rendering layers depend on this exact shape.
func PieceMap(pos Position) map[string]string {
	squares := make(map[string]string)
	for sq, piece := range pos.Board().SquareMap() {
		squares[sq.String()] = pieceCode(piece)
	}

	return squares
}

// Facts describes a move for presentation purposes: the piece that moves
// (as it stands before the move) and the flags an animation layer keys
// off. None of this feeds back into rule decisions.
type Facts struct {
	Piece string
	From  string
	To    string

	Castling  bool
	EnPassant bool
	Promotion bool
}

// Describe collects the presentation facts of a move about to be played
// in a position.
func Describe(pos Position, m Move) Facts {
	return Facts{
		Piece: pieceCode(pos.Board().Piece(m.S1())),
		From:  m.S1().String(),
		To:    m.S2().String(),

		Castling:  m.HasTag(chess.KingSideCastle) || m.HasTag(chess.QueenSideCastle),
		EnPassant: m.HasTag(chess.EnPassant),
		Promotion: m.Promo() != chess.NoPieceType,
	}
}

func pieceCode(piece chess.Piece) string {
	var code string
	switch piece.Type() {
	case chess.King:
		code = "k"
	case chess.Queen:
		code = "q"
	case chess.Rook:
		code = "r"
	case chess.Bishop:
		code = "b"
	case chess.Knight:
		code = "n"
	case chess.Pawn:
		code = "p"
	default:
		return ""
	}

	if piece.Color() == chess.White {
		return strings.ToUpper(code)
	}

	return code
}
