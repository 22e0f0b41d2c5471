/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

// Reply Builder: the small set of numeric-reply helpers every handler
// reaches for, generalizing the teacher's replies.go into Session methods
// that render through the same per-recipient tag filter as everything else
// (spec.md section 4.7).

func (s *Session) nickOrStar() string {
	if n := s.client.Nick(); n != "" {
		return n
	}
	return "*"
}

func (s *Session) sendNumeric(code uint16, params []string, trailing string) {
	msg := newMessage(s.store.Domain())
	msg.Code = code
	msg.Params = append(msg.Params, params...)
	if trailing != "" {
		msg.WithTrailing(trailing)
	}
	s.send(msg)
}

func (s *Session) replyNotImplemented(cmd string) {
	s.sendNumeric(ReplyUnknownCommand, []string{s.nickOrStar(), cmd}, ErrNotImplemented.Error())
}

func (s *Session) replyNotRegistered() {
	s.sendNumeric(ReplyNotRegistered, []string{s.nickOrStar()}, ErrNotRegistered.Error())
}

func (s *Session) replyNeedMoreParams(cmd string) {
	s.sendNumeric(ReplyNeedMoreParams, []string{s.nickOrStar(), cmd}, ErrMissingParams.Error())
}

func (s *Session) replyNoPrivileges() {
	s.sendNumeric(ReplyNoPrivileges, []string{s.nickOrStar()}, ErrNoPrivileges.Error())
}

func (s *Session) replyNoSuchNick(target string) {
	s.sendNumeric(ReplyNoSuchNick, []string{s.nickOrStar(), target}, ErrNoSuchNick.Error())
}

func (s *Session) replyNoSuchChannel(target string) {
	s.sendNumeric(ReplyNoSuchChannel, []string{s.nickOrStar(), target}, ErrNoSuchChan.Error())
}

func (s *Session) replyError(e Error, code uint16, params ...string) {
	s.sendNumeric(code, append([]string{s.nickOrStar()}, params...), e.Error())
}
