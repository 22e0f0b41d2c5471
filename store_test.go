/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(DefaultConfig())
}

func registerTestClient(t *testing.T, s *Store, nick string) *Client {
	t.Helper()
	c := s.Accept(&net.TCPAddr{}, false)
	require.NoError(t, s.ClaimNick(c, nick))
	c.setUser("user")
	c.setHost("host.example")
	return c
}

func TestStoreClaimNickUniqueness(t *testing.T) {
	s := newTestStore()
	alice := registerTestClient(t, s, "alice")

	bob := s.Accept(&net.TCPAddr{}, false)
	assert.Equal(t, ErrNickInUse, s.ClaimNick(bob, "alice"))
	assert.Equal(t, ErrNickInUse, s.ClaimNick(bob, "ALICE"), "nickname uniqueness is case-folded")

	found, ok := s.FindNick("Alice")
	assert.True(t, ok)
	assert.Equal(t, alice, found)
}

func TestStoreClaimNickRejectsInvalidSyntax(t *testing.T) {
	s := newTestStore()
	c := s.Accept(&net.TCPAddr{}, false)
	assert.Equal(t, ErrErroneousNick, s.ClaimNick(c, "9bot"))
}

func TestStoreClaimNickRename(t *testing.T) {
	s := newTestStore()
	c := registerTestClient(t, s, "alice")

	require.NoError(t, s.ClaimNick(c, "alicia"))
	_, ok := s.FindNick("alice")
	assert.False(t, ok)
	found, ok := s.FindNick("alicia")
	assert.True(t, ok)
	assert.Equal(t, c, found)
}

func TestStoreJoinCreatesChannelWithDefaultModes(t *testing.T) {
	s := newTestStore()
	c := registerTestClient(t, s, "alice")

	ch, created, err := s.Join(c, "#test", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, ch.HasMode(CModeNoExternal))
	assert.True(t, ch.HasMode(CModeTopicLock))
	assert.True(t, ch.HasMode(CModeSecret))
	assert.True(t, ch.IsOperator("alice"), "channel creator becomes operator")
}

func TestStoreJoinEnforcesBanAndKey(t *testing.T) {
	s := newTestStore()
	alice := registerTestClient(t, s, "alice")
	ch, _, err := s.Join(alice, "#test", "")
	require.NoError(t, err)
	require.True(t, ch.ApplyMode(CModeKey, true, "secret"))
	require.True(t, ch.addBan("*!*@bad.host", "alice"))

	bob := registerTestClient(t, s, "bob")
	bob.setHost("bad.host")

	_, _, err = s.Join(bob, "#test", "secret")
	assert.Equal(t, ErrBannedFromChan, err)

	bob.setHost("good.host")
	_, _, err = s.Join(bob, "#test", "wrongkey")
	assert.Equal(t, ErrBadChannelKey, err)

	_, _, err = s.Join(bob, "#test", "secret")
	assert.NoError(t, err)
}

func TestStorePartDestroysEmptyChannel(t *testing.T) {
	s := newTestStore()
	c := registerTestClient(t, s, "alice")
	ch, _, err := s.Join(c, "#test", "")
	require.NoError(t, err)

	s.Part(c, ch)
	_, ok := s.FindChannel("#test")
	assert.False(t, ok, "channel must be destroyed once its last member parts")
}

func TestStoreQuitRemovesFromAllChannelsAndRecordsWhowas(t *testing.T) {
	s := newTestStore()
	c := registerTestClient(t, s, "alice")
	_, _, err := s.Join(c, "#test", "")
	require.NoError(t, err)

	channels := s.Quit(c)
	assert.Len(t, channels, 1)

	_, ok := s.FindChannel("#test")
	assert.False(t, ok)
	_, ok = s.FindNick("alice")
	assert.False(t, ok)

	entries := s.Whowas("alice", 10)
	assert.Len(t, entries, 1)
}

func TestValidChannelName(t *testing.T) {
	assert.True(t, validChannelName("#test", 50))
	assert.False(t, validChannelName("test", 50))
	assert.False(t, validChannelName("#", 50))
	assert.False(t, validChannelName("#has space", 50))
}
