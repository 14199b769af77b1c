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
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/briandowns/spinner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"laptudirm.com/x/ponder/pkg/analysis"
	"laptudirm.com/x/ponder/pkg/config"
	"laptudirm.com/x/ponder/pkg/data"
	"laptudirm.com/x/ponder/pkg/game"
	"laptudirm.com/x/ponder/pkg/rules"
	"laptudirm.com/x/ponder/pkg/uci"
)

const SPIN = 11

// ponder analyze
func Analyze() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [game.pgn]",
		Short: "Score every position of a game and flag the blunders",
		Args:  cobra.MaximumNArgs(1),
		Long: heredoc.Doc(`analyze loads a game from a PGN file, scores every one of
			its positions with the configured UCI engine, and prints the
			move list with a White-perspective centipawn evaluation next
			to each move. Moves where White's evaluation dropped by at
			least the blunder threshold are marked with ??.

			Pass --sample to analyze the bundled Kasparov vs Topalov,
			Wijk aan Zee 1999 game instead of a file. Pass --annotate to
			emit an evaluation-annotated PGN instead of the table.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flag("config").Value.String())
			if err != nil {
				return err
			}

			threshold, _ := cmd.Flags().GetInt("threshold")
			if threshold <= 0 {
				threshold = cfg.BlunderThreshold
			}

			text, err := gameText(cmd, args)
			if err != nil {
				return err
			}

			parsed, err := rules.Parse(text)
			if err != nil {
				return err
			}

			line := &game.Timeline{}
			line.Load(parsed.Initial, parsed.Moves, parsed.Tags)

			client := uci.NewClient(cfg.UCI())
			defer client.Close()

			scheduler := analysis.NewScheduler(client, cfg.Engine.MoveTimeDuration())

			logrus.Infof("Scoring %d positions with %s...", line.Len()+1, cfg.Engine.Cmd)

			s := spinner.New(spinner.CharSets[SPIN], 100*time.Millisecond)
			progress := spinnerProgress(s)
			s.Start()

			scheduler.Start(line, progress).Wait()
			s.Stop()

			if annotate, _ := cmd.Flags().GetBool("annotate"); annotate {
				return writeAnnotatedPGN(cmd.OutOrStdout(), line, cfg.Engine.Cmd)
			}

			printReport(cmd.OutOrStdout(), line, threshold)
			return nil
		},
	}

	cmd.Flags().Bool("sample", false, "analyze the bundled sample game")
	cmd.Flags().Int("threshold", 0, "blunder threshold in centipawns")
	cmd.Flags().Bool("annotate", false, "emit an evaluation-annotated PGN")

	return cmd
}

// spinnerProgress publishes the walk's position count for the spinner's
// render loop to pick up through its PreUpdate hook. Only that loop ever
// touches s.Suffix, so the walker goroutine and the renderer never race
// on it.
func spinnerProgress(s *spinner.Spinner) analysis.ProgressFunc {
	var done, total atomic.Int64

	s.PreUpdate = func(s *spinner.Spinner) {
		if total.Load() > 0 {
			s.Suffix = fmt.Sprintf(" %d/%d positions", done.Load(), total.Load())
		}
	}

	return func(d, t int) {
		done.Store(int64(d))
		total.Store(int64(t))
	}
}

func gameText(cmd *cobra.Command, args []string) (string, error) {
	if sample, _ := cmd.Flags().GetBool("sample"); sample {
		return data.SampleGame, nil
	}

	if len(args) == 0 {
		return "", errors.New("provide a PGN file or pass --sample")
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}

	return string(raw), nil
}
