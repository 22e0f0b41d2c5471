/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"fmt"
	"strings"

	"github.com/btnmasher/ircd/shared/concurrentmap"
	"github.com/btnmasher/ircd/shared/stringutils"
)

// isupport builds the ISUPPORT (005) token set, generalizing the teacher's
// Server.setISupport into a function of the currently active *Limits so it
// can be rebuilt after a REHASH swaps them in.
type isupport struct {
	tokens concurrentmap.ConcurrentMap[string, string]
}

func newISupport(limits *Limits) *isupport {
	s := &isupport{tokens: concurrentmap.New[string, string]()}
	s.rebuild(limits)
	return s
}

func (s *isupport) rebuild(limits *Limits) {
	s.tokens.Clear()
	s.tokens.Set("chanmodes", "k,l,imnst")
	s.tokens.Set("prefix", "(ov)@+")
	s.tokens.Set("maxpara", fmt.Sprint(MaxMsgParams))
	s.tokens.Set("chanlimit", fmt.Sprintf("#:%d", MaxJoinedChannels))
	s.tokens.Set("nicklen", fmt.Sprint(limits.NickLen))
	s.tokens.Set("userlen", fmt.Sprint(limits.UserLen))
	s.tokens.Set("maxlist", fmt.Sprintf("b:%v", 100))
	s.tokens.Set("casemapping", "rfc1459")
	s.tokens.Set("topiclen", fmt.Sprint(limits.TopicLen))
	s.tokens.Set("kicklen", fmt.Sprint(limits.KickLen))
	s.tokens.Set("chanlen", fmt.Sprint(limits.ChannelLen))
	s.tokens.Set("awaylen", fmt.Sprint(limits.AwayLen))
	s.tokens.Set("keylen", fmt.Sprint(limits.KeyLen))
	s.tokens.Set("network", "")
}

func (s *isupport) setNetwork(name string) {
	s.tokens.Set("network", name)
}

// lines renders the ISUPPORT tokens, chunked to fit under MaxMsgLength,
// for ReplyISupport (005).
func (s *isupport) lines() []string {
	tokens := make([]string, 0, s.tokens.Length())
	s.tokens.ForEach(func(k, v string) error {
		var b strings.Builder
		b.WriteString(strings.ToUpper(k))
		if v != "" {
			b.WriteByte('=')
			b.WriteString(v)
		}
		tokens = append(tokens, b.String())
		return nil
	})
	return stringutils.ChunkJoinStrings(MaxMsgLength-64, space, tokens...)
}
