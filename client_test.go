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
)

func testClient(handle, nick string) *Client {
	c := NewClient(handle, &net.TCPAddr{}, false)
	c.setNick(nick)
	c.setUser("user")
	c.setReal("Real Name")
	c.setHost("host.example")
	return c
}

func TestClientRegistration(t *testing.T) {
	c := testClient("h1", "")
	assert.False(t, c.ReadyToRegister(false))

	c.setNick("nick")
	assert.True(t, c.ReadyToRegister(false))
	assert.False(t, c.ReadyToRegister(true), "PASS required but not yet given")

	c.setPassOK(true)
	assert.True(t, c.ReadyToRegister(true))
}

func TestClientReadyToRegisterGatedByCapNegotiation(t *testing.T) {
	c := testClient("h1", "nick")
	c.setCapActive(true)
	assert.False(t, c.ReadyToRegister(false))
	c.setCapActive(false)
	assert.True(t, c.ReadyToRegister(false))
}

func TestClientHostmask(t *testing.T) {
	c := testClient("h1", "nick")
	assert.Equal(t, "nick!user@host.example", c.Hostmask())
}

func TestClientModes(t *testing.T) {
	c := testClient("h1", "nick")
	assert.False(t, c.IsOperator())
	assert.True(t, c.SetMode(UModeOperator, true))
	assert.True(t, c.IsOperator())
	assert.False(t, c.SetMode('z', true), "unrecognized mode flag")
}

func TestClientEnqueueOverflow(t *testing.T) {
	c := NewClient("h1", &net.TCPAddr{}, false)
	for i := 0; i < outboundQueueLen; i++ {
		assert.True(t, c.Enqueue(nil))
	}
	assert.False(t, c.Enqueue(nil), "queue should be full")
	assert.True(t, c.Overflowed())
}

func TestClientKillInvokesKiller(t *testing.T) {
	c := testClient("h1", "nick")
	var got string
	c.SetKiller(func(reason string) { got = reason })
	c.Kill("boom")
	assert.Equal(t, "boom", got)
}

func TestClientKillWithoutKillerIsNoop(t *testing.T) {
	c := testClient("h1", "nick")
	assert.NotPanics(t, func() { c.Kill("boom") })
}
