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
	"fmt"
	"io"
	"strings"

	"laptudirm.com/x/ponder/pkg/game"
)

// printReport writes the scored move table followed by the list of
// flagged blunders.
func printReport(w io.Writer, line *game.Timeline, threshold int) {
	tags := tagMap(line)
	if tags["White"] != "" || tags["Black"] != "" {
		fmt.Fprintf(w, "%s vs %s", tags["White"], tags["Black"])
		if tags["Result"] != "" {
			fmt.Fprintf(w, "  %s", tags["Result"])
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w)
	}

	blunders := make(map[int]bool)
	for _, ply := range line.Blunders(threshold) {
		blunders[ply] = true
	}

	notation := line.Notation()
	scores := line.Scores()

	for i, san := range notation {
		ply := i + 1

		if i%2 == 0 {
			fmt.Fprintf(w, "%3d. ", i/2+1)
		} else {
			fmt.Fprint(w, " | ")
		}

		if blunders[ply] {
			san += "??"
		}

		fmt.Fprintf(w, "%-10s %6s", san, scores[ply])

		if i%2 == 1 {
			fmt.Fprintln(w)
		}
	}

	if len(notation)%2 == 1 {
		fmt.Fprintln(w)
	}

	if len(blunders) == 0 {
		fmt.Fprintf(w, "\nNo blunders at the %d centipawn threshold.\n", threshold)
		return
	}

	fmt.Fprintln(w)
	for _, ply := range line.Blunders(threshold) {
		before, after := scores[ply-1], scores[ply]
		fmt.Fprintf(w, "Blunder at move %d: %s (%s -> %s)\n",
			(ply+1)/2, notation[ply-1], before, after)
	}
}

// writeAnnotatedPGN emits the game with an [%eval] comment after every
// scored move.
func writeAnnotatedPGN(w io.Writer, line *game.Timeline, annotator string) error {
	for _, tag := range line.Tags() {
		if _, err := fmt.Fprintf(w, "[%s %q]\n", tag.Key, tag.Value); err != nil {
			return err
		}
	}

	if annotator != "" {
		if _, err := fmt.Fprintf(w, "[Annotator %q]\n", annotator); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	notation := line.Notation()
	scores := line.Scores()

	var sb strings.Builder
	for i, san := range notation {
		if i%2 == 0 {
			sb.WriteString(fmt.Sprintf("%d. ", i/2+1))
		}

		sb.WriteString(san)
		if s := scores[i+1]; s.Valid {
			sb.WriteString(fmt.Sprintf(" { [%%eval %s] }", evalText(s)))
		}
		sb.WriteString(" ")
	}

	if result := tagMap(line)["Result"]; result != "" {
		sb.WriteString(result)
	}

	_, err := fmt.Fprintln(w, strings.TrimSpace(sb.String()))
	return err
}

// evalText renders a score the way PGN eval comments expect: pawns with
// two decimals, or a mate marker at the fixed magnitude.
func evalText(s game.Score) string {
	switch {
	case s.CP >= 10000:
		return "#"
	case s.CP <= -10000:
		return "-#"
	}

	return fmt.Sprintf("%.2f", float64(s.CP)/100)
}

func tagMap(line *game.Timeline) map[string]string {
	tags := make(map[string]string)
	for _, tag := range line.Tags() {
		tags[tag.Key] = tag.Value
	}

	return tags
}
