/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"io"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/btnmasher/random"
	"github.com/sirupsen/logrus"
)

// pingTimeout is how long a registered client may stay silent before the
// Session proactively PINGs it (generalizes the teacher's connection.go
// heartbeat timer).
const pingTimeout = 30 * time.Second

// writeTimeout bounds a single socket write.
const writeTimeout = 5 * time.Second

// Session is the per-connection driver named in spec.md section 4.6: it
// reads framed messages, enforces the registration timeout, invokes the
// Dispatcher, pumps the outbound queue, and handles disconnect. It
// generalizes the teacher's connection.go Conn to run over any
// io.ReadWriteCloser (TCP, TLS, or the WebSocket line adapter).
type Session struct {
	server *Server
	store  *Store
	client *Client

	conn    io.ReadWriteCloser
	remote  net.Addr
	scanner *bufio.Scanner
	writer  *bufio.Writer

	heartbeat *time.Timer
	lastPingSent string
	lastPingRecv string

	kill chan struct{}

	// labelMu guards labelBuf, which send and Dispatch (via beginLabeled/
	// flushLabeled, run from readLoop's goroutine) touch. A nil labelBuf means no
	// labeled-response envelope is being accumulated; send appends to it
	// instead of enqueuing directly whenever it is non-nil (spec.md section
	// 4.4/4.7's labeled-response handling).
	labelMu  sync.Mutex
	labelBuf []*Message

	log *logrus.Entry
}

// newSession wraps an accepted connection. isTLS marks whether conn is a TLS
// connection; run completes its handshake before reading.
func newSession(srv *Server, store *Store, conn io.ReadWriteCloser, remote net.Addr, isTLS bool) *Session {
	c := store.Accept(remote, isTLS)
	s := &Session{
		server:    srv,
		store:     store,
		client:    c,
		conn:      conn,
		remote:    remote,
		scanner:   bufio.NewScanner(conn),
		writer:    bufio.NewWriter(conn),
		heartbeat: time.NewTimer(pingTimeout),
		kill:      make(chan struct{}, 1),
		log:       srv.log.WithField("remote", remote.String()),
	}
	s.scanner.Buffer(make([]byte, 0, MaxMsgLength+MaxTagsLength), MaxMsgLength+MaxTagsLength+16)
	c.SetKiller(func(reason string) { s.disconnect(QuitKilled, reason) })
	return s
}

// Client returns the Session's Client entity.
func (s *Session) Client() *Client { return s.client }

// run drives the session until disconnect: starts the outbound pump, then
// blocks in the read loop. Mirrors the teacher's serve()/readLoop()/
// writeLoop() split.
func (s *Session) run() {
	defer s.cleanup()

	if tlsConn, ok := s.conn.(*tls.Conn); ok {
		tlsConn.SetDeadline(time.Now().Add(writeTimeout))
		if err := tlsConn.Handshake(); err != nil {
			s.log.WithError(err).Debug("TLS handshake failed")
			return
		}
	}

	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 64<<10)
			buf = buf[:runtime.Stack(buf, false)]
			s.log.Errorf("panic serving session: %v\n%s", r, buf)
			s.disconnect(QuitKilled, "Server error.")
		}
		s.conn.Close()
	}()

	go s.writeLoop()
	s.readLoop()
}

func (s *Session) readLoop() {
	for {
		deadline := s.readDeadline()
		if setter, ok := s.conn.(interface{ SetReadDeadline(time.Time) error }); ok {
			setter.SetReadDeadline(deadline)
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				if neterr, ok := err.(net.Error); ok && neterr.Timeout() {
					s.sendRaw("ERROR :Registration timeout\r\n")
				}
			}
			s.kill <- struct{}{}
			return
		}

		line := s.scanner.Text()
		msg, err := Parse(line)
		if err != nil {
			s.log.WithError(err).Debug("discarding unparseable line")
			continue
		}

		s.client.touchActivity()
		s.heartbeat.Reset(pingTimeout)
		s.server.dispatcher.Dispatch(s.store, s.client, s, msg)
		msgPool.Recycle(msg)

		if s.client.Stage() == StageQuitting {
			s.kill <- struct{}{}
			return
		}
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.kill:
			return
		case buf, ok := <-s.client.Outbound():
			if !ok {
				return
			}
			s.write(buf)
			if s.client.Overflowed() {
				s.disconnect(QuitOutboundOverflow, ErrOutboundOverflow.Error())
				return
			}
		case <-s.heartbeat.C:
			s.doHeartbeat()
		}
	}
}

func (s *Session) readDeadline() time.Time {
	if s.client.Registered() {
		return time.Now().Add(pingTimeout * 3)
	}
	limit := time.Duration(s.store.Limits().LoginTimeout) * time.Millisecond
	return time.Now().Add(limit)
}

func (s *Session) write(buf *bytes.Buffer) {
	defer bufPool.Recycle(buf)
	if setter, ok := s.conn.(interface{ SetWriteDeadline(time.Time) error }); ok {
		setter.SetWriteDeadline(time.Now().Add(writeTimeout))
	}
	if _, err := s.writer.Write(buf.Bytes()); err != nil {
		s.log.WithError(err).Debug("write error")
		s.kill <- struct{}{}
		return
	}
	if err := s.writer.Flush(); err != nil {
		s.log.WithError(err).Debug("flush error")
		s.kill <- struct{}{}
	}
}

func (s *Session) sendRaw(line string) {
	if _, err := io.WriteString(s.writer, line); err == nil {
		s.writer.Flush()
	}
}

func (s *Session) doHeartbeat() {
	if s.lastPingRecv != s.lastPingSent {
		s.heartbeat.Stop()
		s.disconnect(QuitReadError, "Ping timeout.")
		return
	}
	token := random.String(10)
	s.lastPingSent = token
	s.heartbeat.Reset(pingTimeout)
	// Unlabeled: a server-initiated heartbeat isn't a reply to any client
	// command, so it must never end up folded into an in-progress labeled-
	// response envelope.
	s.sendUnlabeled(newMessage(s.store.Domain()).withCommandAndTrailing(CmdPing, nil, token))
}

// disconnect transitions the client to Quitting, broadcasts QUIT to its
// channels, removes it from the Store, and signals the write loop to stop.
func (s *Session) disconnect(reason QuitReason, text string) {
	if s.client.Stage() == StageQuitting {
		return
	}
	wasRegistered := s.client.Registered()
	s.client.setStage(StageQuitting)

	if text == "" {
		text = reason.String()
	}

	channels := s.store.Quit(s.client)
	if wasRegistered {
		quit := newMessage(s.client.Hostmask()).withCommandAndTrailing(CmdQuit, nil, text)
		stampEvent(quit, s.client)
		seen := make(map[foldedKey]bool)
		for _, ch := range channels {
			for _, m := range ch.Members() {
				key := foldKey(m.Client.Nick())
				if seen[key] || m.Client == s.client {
					continue
				}
				seen[key] = true
				m.Client.Enqueue(quit.RenderBuffer(tagsForCaps(m.Client.Caps())))
			}
		}
		msgPool.Recycle(quit)
	}

	select {
	case s.kill <- struct{}{}:
	default:
	}
}

func (s *Session) cleanup() {
	if s.client.Stage() != StageQuitting {
		s.disconnect(QuitReadError, "Connection closed.")
	}
}

// send renders msg for this session's negotiated capabilities and enqueues
// it, recycling msg afterward. While a labeled-response envelope is being
// accumulated (see beginLabeled), msg is buffered instead, since the caller
// doesn't yet know whether this command will produce one reply or several.
func (s *Session) send(msg *Message) {
	s.labelMu.Lock()
	buffering := s.labelBuf != nil
	if buffering {
		s.labelBuf = append(s.labelBuf, msg)
	}
	s.labelMu.Unlock()
	if buffering {
		return
	}
	s.sendUnlabeled(msg)
}

// sendUnlabeled bypasses any in-progress labeled-response buffering.
// flushLabeled uses it to deliver the envelope, and the heartbeat PING uses
// it since it isn't a reply to any client command and must never be folded
// into another command's envelope.
func (s *Session) sendUnlabeled(msg *Message) {
	defer msgPool.Recycle(msg)
	if !s.client.Enqueue(msg.RenderBuffer(tagsForCaps(s.client.Caps()))) {
		s.disconnect(QuitOutboundOverflow, ErrOutboundOverflow.Error())
	}
}

// beginLabeled starts accumulating this session's replies instead of
// enqueuing them immediately, so flushLabeled can wrap them in the
// labeled-response envelope spec.md section 4.7 describes. Called by
// Dispatch when the inbound command carries a "label" tag.
func (s *Session) beginLabeled() {
	s.labelMu.Lock()
	s.labelBuf = make([]*Message, 0, 4)
	s.labelMu.Unlock()
}

// flushLabeled drains whatever send accumulated while a label was active and
// delivers it as the labeled-response envelope: a command that produced no
// reply gets a bare ACK so the client can still match the label, a single
// reply carries the label tag directly, and multiple replies are wrapped in
// a "labeled-response" BATCH with the label on the BATCH start line and a
// "batch" tag on each wrapped line (spec.md section 4.4 step 4 / 4.7).
func (s *Session) flushLabeled() {
	label, ok := s.client.Label()
	s.client.ClearLabel()

	s.labelMu.Lock()
	msgs := s.labelBuf
	s.labelBuf = nil
	s.labelMu.Unlock()

	if !ok {
		for _, m := range msgs {
			msgPool.Recycle(m)
		}
		return
	}

	switch len(msgs) {
	case 0:
		ack := newMessage(s.store.Domain())
		ack.Command = "ACK"
		ack.SetTag("label", label)
		s.sendUnlabeled(ack)
	case 1:
		msgs[0].SetTag("label", label)
		s.sendUnlabeled(msgs[0])
	default:
		ref := random.String(8)

		start := newMessage(s.store.Domain())
		start.Command = CmdBatch
		start.Params = []string{"+" + ref, "labeled-response"}
		start.SetTag("label", label)
		s.sendUnlabeled(start)

		for _, m := range msgs {
			m.SetTag("batch", ref)
			s.sendUnlabeled(m)
		}

		end := newMessage(s.store.Domain())
		end.Command = CmdBatch
		end.Params = []string{"-" + ref}
		s.sendUnlabeled(end)
	}
}

// withCommandAndTrailing is a small builder helper used by Session/replies
// to fill in a pooled message's Command, Params and Trailing in one call.
func (msg *Message) withCommandAndTrailing(command string, params []string, trailing string) *Message {
	msg.Command = command
	msg.Params = append(msg.Params, params...)
	if trailing != "" {
		msg.WithTrailing(trailing)
	}
	return msg
}
