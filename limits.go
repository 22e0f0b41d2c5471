/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

// Wire-level limits that are not configuration points: they come directly
// from RFC 1459/2812 and the IRCv3 message-tags extension.
const (
	MaxMsgLength  int = 512  // legacy line, including the trailing CRLF
	MaxTagsLength int = 8191 // tag prefix, per IRCv3 message-tags
	MaxMsgParams  int = 15
)

// Limits holds the mutable per-field length caps and timeouts described in
// spec.md section 6's configuration table. The Store holds one *Limits behind
// an atomic pointer (see store.go) so that REHASH can swap them without
// taking the Store's lock.
type Limits struct {
	AwayLen    int
	ChannelLen int
	KeyLen     int
	KickLen    int
	NameLen    int
	NickLen    int
	TopicLen   int
	UserLen    int

	LoginTimeout int // milliseconds
}

// DefaultLimits returns the limits table's documented defaults.
func DefaultLimits() *Limits {
	return &Limits{
		AwayLen:      300,
		ChannelLen:   50,
		KeyLen:       24,
		KickLen:      300,
		NameLen:      64,
		NickLen:      32,
		TopicLen:     300,
		UserLen:      64,
		LoginTimeout: 60000,
	}
}
