/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

// modeChange is one +/-<char> token from a MODE command, with its argument
// consumed from the parameter list if the mode takes one (spec.md section
// 6's "low-level mode-string parser" external collaborator — kept thin,
// per SPEC_FULL.md's note that the engine, not this tokenizer, is the
// interesting 80%).
type modeChange struct {
	add  bool
	mode byte
	arg  string
}

// parseModeString tokenizes a mode string (e.g. "+o-k" or "+l") against
// params, consuming one param per mode in takesArg. Unknown leading
// characters (anything but '+'/'-') abort parsing of that token but do not
// fail the whole string, mirroring RFC 2812's "process independently"
// guidance also used by Channel.ApplyMode.
func parseModeString(modestr string, params []string, takesArg func(m byte, add bool) bool) []modeChange {
	var changes []modeChange
	add := true
	pi := 0

	for i := 0; i < len(modestr); i++ {
		switch modestr[i] {
		case '+':
			add = true
		case '-':
			add = false
		default:
			m := modestr[i]
			var arg string
			if takesArg(m, add) {
				if pi < len(params) {
					arg = params[pi]
					pi++
				}
			}
			changes = append(changes, modeChange{add: add, mode: m, arg: arg})
		}
	}
	return changes
}
