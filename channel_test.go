/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelMembership(t *testing.T) {
	ch := NewChannel("#test")
	c := testClient("h1", "alice")

	ch.addMember(c, rankOperator)
	assert.True(t, ch.HasMember("alice"))
	assert.True(t, ch.HasMember("ALICE"), "membership lookup is case-folded")
	assert.Equal(t, rankOperator, ch.RankOf("alice"))
	assert.Equal(t, 1, ch.MemberCount())

	ch.removeMember(c)
	assert.False(t, ch.HasMember("alice"))
	assert.True(t, ch.Empty())
}

func TestChannelRenameMemberPreservesRank(t *testing.T) {
	ch := NewChannel("#test")
	c := testClient("h1", "alice")
	ch.addMember(c, rankVoice)

	ch.renameMember("alice", "alicia", c)
	assert.False(t, ch.HasMember("alice"))
	assert.True(t, ch.HasMember("alicia"))
	assert.Equal(t, rankVoice, ch.RankOf("alicia"))
}

func TestChannelApplyModeKeyAndLimit(t *testing.T) {
	ch := NewChannel("#test")

	assert.False(t, ch.ApplyMode(CModeKey, true, ""), "key requires an argument")
	assert.True(t, ch.ApplyMode(CModeKey, true, "secret"))
	assert.Equal(t, "secret", ch.Key())
	assert.True(t, ch.HasMode(CModeKey))

	assert.True(t, ch.ApplyMode(CModeKey, false, ""))
	assert.Equal(t, "", ch.Key())
	assert.False(t, ch.HasMode(CModeKey))

	assert.False(t, ch.ApplyMode(CModeLimit, true, "notanumber"))
	assert.True(t, ch.ApplyMode(CModeLimit, true, "10"))
	assert.Equal(t, 10, ch.Limit())
}

func TestChannelApplyModeUnknown(t *testing.T) {
	ch := NewChannel("#test")
	assert.False(t, ch.ApplyMode('z', true, ""))
}

func TestChannelBanExceptInteraction(t *testing.T) {
	ch := NewChannel("#test")
	assert.True(t, ch.addBan("*!*@bad.host", "op"))
	assert.False(t, ch.addBan("*!*@bad.host", "op"), "duplicate ban mask rejected")
	assert.True(t, ch.banned("evil!user@bad.host"))

	assert.True(t, ch.addExcept("evil!user@bad.host", "op"))
	assert.False(t, ch.banned("evil!user@bad.host"), "except overrides ban")

	assert.True(t, ch.removeBan("*!*@bad.host"))
	assert.False(t, ch.banned("evil!user@bad.host"))
}

func TestChannelInvite(t *testing.T) {
	ch := NewChannel("#test")
	assert.False(t, ch.isInvited("bob"))
	ch.invite("bob")
	assert.True(t, ch.isInvited("BOB"))
}

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern, s string
		want       bool
	}{
		{"*!*@bad.host", "evil!user@bad.host", true},
		{"*!*@bad.host", "evil!user@good.host", false},
		{"nick?", "nick1", true},
		{"nick?", "nick12", false},
		{"*", "anything", true},
	}
	for _, tt := range tests {
		got := globMatch([]byte(tt.pattern), []byte(tt.s))
		assert.Equal(t, tt.want, got, "pattern %q vs %q", tt.pattern, tt.s)
	}
}
