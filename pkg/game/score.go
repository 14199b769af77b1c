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

import "fmt"

// Score is an optional centipawn evaluation from White's perspective.
// The zero value is "not scored", which is distinct from a score of 0.
type Score struct {
	CP    int
	Valid bool
}

// String renders a score in pawns, "+1.3" style, or "-" when unset.
// Forced mates carry a fixed ±10000 centipawn magnitude and render as "#".
func (s Score) String() string {
	switch {
	case !s.Valid:
		return "-"
	case s.CP >= 10000:
		return "#+"
	case s.CP <= -10000:
		return "#-"
	}

	text := fmt.Sprintf("%+.1f", float64(s.CP)/100)
	if text == "+0.0" || text == "-0.0" {
		return "0.0"
	}

	return text
}
