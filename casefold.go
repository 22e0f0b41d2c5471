/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

// This file is the "Case-Folded String Key" collaborator from spec.md
// section 2: it exists purely to give the dispatcher/Store a concrete type
// to index nicknames and channel names by. It is intentionally small — the
// spec treats it as externally supplied, and the RFC 1459 fold of ASCII
// below is the only scheme this server implements and advertises (ISUPPORT
// CASEMAPPING=rfc1459).

// foldedKey is a case-folded identifier used as a map key. Display strings
// are kept separately by whatever owns the identifier (Client.nick,
// Channel.name); foldedKey only ever appears as an index.
type foldedKey string

// foldASCII folds a byte in the ASCII range per RFC 1459's casemapping:
// 'A'-'Z' map to 'a'-'z'; unlike strict ASCII, '[', ']', '\\', '~' also fold
// to '{', '}', '|', '^' respectively, matching the extended IRC identifier
// alphabet. All other bytes pass through unchanged.
func foldASCII(b byte) byte {
	switch {
	case b >= 'A' && b <= 'Z':
		return b - 'A' + 'a'
	case b == '[':
		return '{'
	case b == ']':
		return '}'
	case b == '\\':
		return '|'
	case b == '~':
		return '^'
	default:
		return b
	}
}

// foldKey returns the case-folded key for s, for use as a map index.
func foldKey(s string) foldedKey {
	buf := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		buf[i] = foldASCII(s[i])
	}
	return foldedKey(buf)
}

// equalFold reports whether a and b are equal under IRC casemapping.
func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if foldASCII(a[i]) != foldASCII(b[i]) {
			return false
		}
	}
	return true
}

// validNickChar reports whether r is legal at the given zero-based position
// of a nickname, per spec.md section 4.1: first char alphabetic or
// [\]^_, subsequent alphanumeric or []\|_-^.
func validNickChar(r byte, pos int) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case pos == 0:
		switch r {
		case '[', ']', '\\', '^', '_':
			return true
		}
		return false
	default:
		switch {
		case r >= '0' && r <= '9':
			return true
		}
		switch r {
		case '[', ']', '\\', '|', '_', '-', '^':
			return true
		}
		return false
	}
}

// validNickname checks a candidate nickname against spec.md section 4.1's
// syntax rule and the configured NickLen cap.
func validNickname(nick string, maxLen int) bool {
	if len(nick) == 0 || len(nick) > maxLen {
		return false
	}
	for i := 0; i < len(nick); i++ {
		if !validNickChar(nick[i], i) {
			return false
		}
	}
	return true
}
