/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"io"
	"net"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/stretchr/testify/assert"
)

// newTestSession wires a Session over an in-memory net.Pipe, so dispatcher
// behavior can be exercised without a real socket (spec.md section 8's
// "in-memory net.Pipe stands in for the transport" guidance).
func newTestSession(t *testing.T) *Session {
	t.Helper()
	cfg := DefaultConfig()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	srv := NewServer(cfg, WithLogger(logger))

	client, _ := net.Pipe()
	t.Cleanup(func() { client.Close() })

	return newSession(srv, srv.Store(), client, &net.TCPAddr{}, false)
}

func firstOutbound(t *testing.T, s *Session) string {
	t.Helper()
	select {
	case buf := <-s.Client().Outbound():
		return buf.String()
	default:
		t.Fatal("expected a queued outbound line")
		return ""
	}
}

func TestDispatchUnknownCommandRepliesNotImplemented(t *testing.T) {
	sess := newTestSession(t)
	sess.client.setStage(StageRegistered)
	msg, err := Parse("FROBNICATE foo")
	require.NoError(t, err)

	sess.server.dispatcher.Dispatch(sess.store, sess.client, sess, msg)
	out := firstOutbound(t, sess)
	assert.True(t, strings.Contains(out, "421"), "expected ERR_UNKNOWNCOMMAND, got %q", out)
}

func TestDispatchGatesOnRegistrationStage(t *testing.T) {
	sess := newTestSession(t)
	msg, err := Parse("JOIN #test")
	require.NoError(t, err)

	sess.server.dispatcher.Dispatch(sess.store, sess.client, sess, msg)
	out := firstOutbound(t, sess)
	assert.True(t, strings.Contains(out, "451"), "expected ERR_NOTREGISTERED, got %q", out)
}

func TestDispatchEnforcesMinParams(t *testing.T) {
	sess := newTestSession(t)
	sess.client.setStage(StageRegistered)
	msg, err := Parse("JOIN")
	require.NoError(t, err)

	sess.server.dispatcher.Dispatch(sess.store, sess.client, sess, msg)
	out := firstOutbound(t, sess)
	assert.True(t, strings.Contains(out, "461"), "expected ERR_NEEDMOREPARAMS, got %q", out)
}

func TestDispatchEnforcesOperatorOnly(t *testing.T) {
	sess := newTestSession(t)
	sess.client.setStage(StageRegistered)
	sess.client.setNick("alice")
	msg, err := Parse("KILL bob :bye")
	require.NoError(t, err)

	sess.server.dispatcher.Dispatch(sess.store, sess.client, sess, msg)
	out := firstOutbound(t, sess)
	assert.True(t, strings.Contains(out, "481"), "expected ERR_NOPRIVILEGES, got %q", out)
}
