/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"net"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Store channel lifecycle", func() {
	var (
		s           *Store
		alice, bob  *Client
		ch          *Channel
	)

	join := func(nick string) *Client {
		c := s.Accept(&net.TCPAddr{}, false)
		Expect(s.ClaimNick(c, nick)).To(Succeed())
		c.setUser("user")
		c.setHost("host.example")
		return c
	}

	BeforeEach(func() {
		s = NewStore(DefaultConfig())
		alice = join("alice")

		var created bool
		var err error
		ch, created, err = s.Join(alice, "#lobby", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeTrue())

		bob = join("bob")
		_, _, err = s.Join(bob, "#lobby", "")
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("founding a channel", func() {
		It("grants the first joiner operator rank and the spec's default modes", func() {
			Expect(ch.IsOperator("alice")).To(BeTrue())
			Expect(ch.HasMode(CModeNoExternal)).To(BeTrue())
			Expect(ch.HasMode(CModeTopicLock)).To(BeTrue())
			Expect(ch.HasMode(CModeSecret)).To(BeTrue())
		})

		It("does not grant operator rank to the second joiner", func() {
			Expect(ch.IsOperator("bob")).To(BeFalse())
		})
	})

	Describe("kicking a member", func() {
		BeforeEach(func() {
			s.Kick(bob, ch)
		})

		It("removes the member from the channel roster", func() {
			Expect(ch.HasMember("bob")).To(BeFalse())
		})

		It("lets the kicked member rejoin when no ban is in place", func() {
			_, _, err := s.Join(bob, "#lobby", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(ch.HasMember("bob")).To(BeTrue())
		})

		Context("when the operator also bans the member's mask", func() {
			BeforeEach(func() {
				Expect(ch.addBan("*!*@host.example", "alice")).To(BeTrue())
			})

			It("refuses the rejoin", func() {
				_, _, err := s.Join(bob, "#lobby", "")
				Expect(err).To(MatchError(ErrBannedFromChan))
			})
		})
	})

	Describe("the last member parting", func() {
		BeforeEach(func() {
			s.Part(bob, ch)
			s.Part(alice, ch)
		})

		It("destroys the channel", func() {
			_, ok := s.FindChannel("#lobby")
			Expect(ok).To(BeFalse())
		})

		It("lets a later join recreate it with fresh default modes and a new operator", func() {
			recreated, created, err := s.Join(bob, "#lobby", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())
			Expect(recreated.IsOperator("bob")).To(BeTrue())
			Expect(recreated.HasMode(CModeSecret)).To(BeTrue())
		})
	})

	Describe("a client quitting", func() {
		It("removes it from every channel it was on and records a whowas entry", func() {
			channels := s.Quit(alice)
			Expect(channels).To(HaveLen(1))

			_, ok := s.FindNick("alice")
			Expect(ok).To(BeFalse())
			Expect(ch.HasMember("alice")).To(BeFalse())

			entries := s.Whowas("alice", 10)
			Expect(entries).To(HaveLen(1))
		})
	})
})
