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

	"github.com/sirupsen/logrus"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// newSpecSession wires a Session over an in-memory net.Pipe, mirroring
// dispatcher_test.go's newTestSession but without a *testing.T dependency,
// since Ginkgo specs drive their own cleanup via DeferCleanup.
func newSpecSession() *Session {
	cfg := DefaultConfig()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	srv := NewServer(cfg, WithLogger(logger))

	client, _ := net.Pipe()
	DeferCleanup(func() { client.Close() })

	return newSession(srv, srv.Store(), client, &net.TCPAddr{}, false)
}

// dispatchLabeled parses line, attaches a "label" tag, and runs it through
// the Dispatcher exactly as an inbound client message would arrive.
func dispatchLabeled(sess *Session, label, line string) {
	msg, err := Parse(line)
	Expect(err).NotTo(HaveOccurred())
	msg.SetTag("label", label)
	sess.server.dispatcher.Dispatch(sess.store, sess.client, sess, msg)
}

// drainOutbound reads every buffered line currently queued without blocking.
func drainOutbound(sess *Session) []string {
	var lines []string
	for {
		select {
		case buf := <-sess.client.Outbound():
			lines = append(lines, buf.String())
		default:
			return lines
		}
	}
}

var _ = Describe("labeled-response envelope", func() {
	var sess *Session

	BeforeEach(func() {
		sess = newSpecSession()
		sess.client.setStage(StageRegistered)
		Expect(sess.store.ClaimNick(sess.client, "alice")).To(Succeed())
		caps := sess.client.Caps()
		caps.add(CapLabeledResponse)
		sess.client.setCaps(caps)
	})

	Context("when the command produces exactly one reply", func() {
		It("attaches the label tag directly, with no BATCH wrapper", func() {
			dispatchLabeled(sess, "l1", "PING :hi")
			lines := drainOutbound(sess)
			Expect(lines).To(HaveLen(1))
			Expect(lines[0]).To(ContainSubstring("@label=l1"))
			Expect(lines[0]).To(ContainSubstring("PONG"))
		})
	})

	Context("when the command produces no reply at all", func() {
		It("sends a bare ACK carrying the label", func() {
			dispatchLabeled(sess, "l2", "PONG :hi")
			lines := drainOutbound(sess)
			Expect(lines).To(HaveLen(1))
			Expect(lines[0]).To(ContainSubstring("@label=l2"))
			Expect(lines[0]).To(ContainSubstring("ACK"))
		})
	})

	Context("when the command produces several reply lines", func() {
		BeforeEach(func() {
			sess.client.setUser("user")
			sess.client.setHost("host.example")
		})

		It("wraps them in a labeled-response BATCH", func() {
			dispatchLabeled(sess, "l3", "WHOIS alice")
			lines := drainOutbound(sess)
			Expect(len(lines)).To(BeNumerically(">=", 3), "expected a BATCH start, one line per WHOIS numeric, and a BATCH end")

			Expect(lines[0]).To(ContainSubstring("BATCH +"))
			Expect(lines[0]).To(ContainSubstring("labeled-response"))
			Expect(lines[0]).To(ContainSubstring("@label=l3"))

			last := lines[len(lines)-1]
			Expect(last).To(MatchRegexp(`BATCH -\S+`))

			for _, line := range lines[1 : len(lines)-1] {
				Expect(line).To(ContainSubstring("batch="))
			}
		})
	})

	Context("when the client never negotiated labeled-response", func() {
		It("sends replies unwrapped, ignoring any label tag on the inbound line", func() {
			caps := sess.client.Caps()
			delete(caps, CapLabeledResponse)
			sess.client.setCaps(caps)

			dispatchLabeled(sess, "l4", "PING :hi")
			lines := drainOutbound(sess)
			Expect(lines).To(HaveLen(1))
			Expect(lines[0]).NotTo(ContainSubstring("label="))
		})
	})
})

var _ = Describe("event tag stamping", func() {
	var sess *Session

	BeforeEach(func() {
		sess = newSpecSession()
		sess.client.setStage(StageRegistered)
		Expect(sess.store.ClaimNick(sess.client, "alice")).To(Succeed())
		sess.client.setUser("user")
		sess.client.setHost("host.example")

		bob := sess.store.Accept(&net.TCPAddr{}, false)
		Expect(sess.store.ClaimNick(bob, "bob")).To(Succeed())
	})

	It("attaches server-time and msgid to a PRIVMSG echoed back to its sender", func() {
		caps := sess.client.Caps()
		caps.add(CapServerTime)
		caps.add(CapMessageIDs)
		caps.add(CapEchoMessage)
		sess.client.setCaps(caps)

		msg, err := Parse("PRIVMSG bob :hello")
		Expect(err).NotTo(HaveOccurred())
		sess.server.dispatcher.Dispatch(sess.store, sess.client, sess, msg)

		lines := drainOutbound(sess)
		Expect(lines).NotTo(BeEmpty())
		found := false
		for _, line := range lines {
			if strings.Contains(line, "PRIVMSG") {
				found = true
				Expect(line).To(ContainSubstring("time="))
				Expect(line).To(ContainSubstring("msgid="))
			}
		}
		Expect(found).To(BeTrue(), "expected an echoed PRIVMSG line")
	})

	It("omits server-time and msgid for a client that never negotiated them", func() {
		msg, err := Parse("PRIVMSG bob :hello")
		Expect(err).NotTo(HaveOccurred())
		sess.client.setCaps(CapSet{CapEchoMessage: true})
		sess.server.dispatcher.Dispatch(sess.store, sess.client, sess, msg)

		lines := drainOutbound(sess)
		for _, line := range lines {
			Expect(line).NotTo(ContainSubstring("time="))
			Expect(line).NotTo(ContainSubstring("msgid="))
		}
	})
})
