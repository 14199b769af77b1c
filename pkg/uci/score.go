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

package uci

import (
	"strconv"
	"strings"
)

// MateScore is the fixed centipawn magnitude a forced mate maps to,
// regardless of distance.
const MateScore = 10000

// score is one "score cp N" or "score mate N" report from the engine,
// from the side to move's point of view.
type score struct {
	cp     int
	mate   int
	isMate bool
}

// centipawns collapses a score to a single centipawn value. Mates keep
// only their sign at the fixed magnitude; "mate 0" means the mover is
// checkmated.
func (s score) centipawns() int {
	if s.isMate {
		if s.mate > 0 {
			return MateScore
		}

		return -MateScore
	}

	return s.cp
}

// parseScore extracts the score from an "info ... score ..." line.
func parseScore(line string) (score, bool) {
	if !strings.HasPrefix(line, "info ") || !strings.Contains(line, " score ") {
		return score{}, false
	}

	parts := strings.Fields(line)
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] != "score" {
			continue
		}

		n, err := strconv.Atoi(parts[i+2])
		if err != nil {
			return score{}, false
		}

		switch parts[i+1] {
		case "cp":
			return score{cp: n}, true
		case "mate":
			return score{mate: n, isMate: true}, true
		default:
			return score{}, false
		}
	}

	return score{}, false
}

// whiteToMove reads the side-to-move field of a FEN. A malformed FEN
// defaults to White.
func whiteToMove(fen string) bool {
	parts := strings.Fields(fen)
	if len(parts) < 2 {
		return true
	}

	return parts[1] == "w"
}
