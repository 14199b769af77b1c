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

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"laptudirm.com/x/ponder/pkg/analysis"
	"laptudirm.com/x/ponder/pkg/config"
	"laptudirm.com/x/ponder/pkg/game"
	"laptudirm.com/x/ponder/pkg/rules"
	"laptudirm.com/x/ponder/pkg/uci"
)

// ponder review
func Review() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review [game.pgn]",
		Short: "Step through a game interactively, branching into variations",
		Args:  cobra.MaximumNArgs(1),
		Long: heredoc.Doc(`review loads a game and drops into a prompt where you can
			walk the moves in either direction while the engine scores
			every position in the background.

			Playing a move that differs from the game continues in a new
			variation; the original line is left untouched and you can
			switch between lines at any time.

			Commands:
			  next, back      step one ply forward or backward
			  start, end      jump to the first or last ply
			  jump N          jump to ply N
			  board           print the current position
			  moves           print the move list of the active line
			  lines           list the variations
			  switch N        make variation N the active line
			  eval            print the score of the current position
			  blunders        list the flagged blunders of the active line
			  fen             print the current position's FEN
			  quit            leave the review

			Anything else is read as a move in SAN ("Nf3") or UCI
			("g1f3") form.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flag("config").Value.String())
			if err != nil {
				return err
			}

			text, err := gameText(cmd, args)
			if err != nil {
				return err
			}

			parsed, err := rules.Parse(text)
			if err != nil {
				return err
			}

			client := uci.NewClient(cfg.UCI())
			defer client.Close()

			scheduler := analysis.NewScheduler(client, cfg.Engine.MoveTimeDuration())
			defer scheduler.StopAll()

			variations := game.NewVariations(game.AnalyzerFunc(func(line *game.Timeline) {
				scheduler.Start(line, nil)
			}))
			variations.Load(parsed)

			return reviewLoop(cmd.InOrStdin(), cmd.OutOrStdout(), variations, cfg.BlunderThreshold)
		},
	}

	cmd.Flags().Bool("sample", false, "review the bundled sample game")

	return cmd
}

func reviewLoop(in io.Reader, out io.Writer, variations *game.Variations, threshold int) error {
	printBoard(out, variations.Active())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		line := variations.Active()

		switch fields[0] {
		case "next", "n":
			if result, ok := line.StepForward(); ok {
				fmt.Fprintf(out, "%s %s-%s\n", result.Piece, result.From, result.To)
				printBoard(out, line)
			} else {
				fmt.Fprintln(out, "already at the tip")
			}

		case "back", "b":
			if result, ok := line.StepBack(); ok {
				fmt.Fprintf(out, "%s %s-%s\n", result.Piece, result.From, result.To)
				printBoard(out, line)
			} else {
				fmt.Fprintln(out, "already at the start")
			}

		case "start":
			line.GoToStart()
			printBoard(out, line)

		case "end":
			line.GoToEnd()
			printBoard(out, line)

		case "jump":
			if len(fields) < 2 {
				fmt.Fprintln(out, "usage: jump N")
				continue
			}
			ply, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Fprintln(out, "usage: jump N")
				continue
			}
			line.GoToPly(ply)
			printBoard(out, line)

		case "board":
			printBoard(out, line)

		case "moves":
			for _, row := range line.MoveRows() {
				fmt.Fprintf(out, "%3d. %-8s %s\n", row.Number, row.White, row.Black)
			}

		case "lines":
			for i, l := range variations.Lines() {
				marker := " "
				if i == variations.ActiveIndex() {
					marker = "*"
				}
				state := ""
				if !l.FullyScored() {
					state = " (scoring...)"
				}
				fmt.Fprintf(out, "%s %d: %s, %d moves%s\n", marker, i, variations.Label(i), l.Len(), state)
			}

		case "switch":
			if len(fields) < 2 {
				fmt.Fprintln(out, "usage: switch N")
				continue
			}
			index, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Fprintln(out, "usage: switch N")
				continue
			}
			if err := variations.Switch(index); err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			printBoard(out, variations.Active())

		case "eval":
			fmt.Fprintf(out, "ply %d: %s\n", line.CurrentPly(), line.CurrentScore())

		case "blunders":
			plies := line.Blunders(threshold)
			if len(plies) == 0 {
				fmt.Fprintln(out, "no blunders flagged (yet)")
				continue
			}
			notation := line.Notation()
			for _, ply := range plies {
				fmt.Fprintf(out, "move %d: %s (%s -> %s)\n",
					(ply+1)/2, notation[ply-1], line.ScoreAt(ply-1), line.ScoreAt(ply))
			}

		case "fen":
			fmt.Fprintln(out, line.FEN())

		case "quit", "exit", "q":
			return nil

		case "help":
			fmt.Fprintln(out, "next back start end jump board moves lines switch eval blunders fen quit")

		default:
			if err := propose(out, variations, fields[0]); err != nil {
				fmt.Fprintln(out, err)
			}
		}
	}
}

func propose(out io.Writer, variations *game.Variations, text string) error {
	line := variations.Active()

	move, err := rules.ParseMove(line.Position(), text)
	if err != nil {
		return fmt.Errorf("%q is not a command or a move", text)
	}

	result, err := variations.Propose(move)
	if errors.Is(err, game.ErrIllegalMove) {
		return fmt.Errorf("%q is not legal here", text)
	}
	if err != nil {
		return err
	}

	active := variations.Active()
	fmt.Fprintf(out, "%s %s-%s [%s]\n", result.Piece, result.From, result.To,
		variations.Label(variations.ActiveIndex()))
	printBoard(out, active)
	return nil
}

// printBoard renders the current position as an 8x8 grid of piece codes,
// marking the squares of the last move.
func printBoard(out io.Writer, line *game.Timeline) {
	squares := line.PieceMap()

	last := make(map[string]bool)
	for _, sq := range line.LastMoveSquares() {
		last[sq] = true
	}

	for rank := 8; rank >= 1; rank-- {
		fmt.Fprintf(out, "%d ", rank)
		for file := 'a'; file <= 'h'; file++ {
			name := fmt.Sprintf("%c%d", file, rank)
			code, occupied := squares[name]
			if !occupied {
				code = "."
			}
			if last[name] {
				fmt.Fprintf(out, "(%s)", code)
			} else {
				fmt.Fprintf(out, " %s ", code)
			}
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "   a  b  c  d  e  f  g  h")

	side := "White"
	if !rules.WhiteToMove(line.Position()) {
		side = "Black"
	}
	fmt.Fprintf(out, "ply %d/%d, %s to move\n", line.CurrentPly(), line.Len(), side)
}
