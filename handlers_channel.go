/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"strings"

	"github.com/btnmasher/ircd/shared/stringutils"
)

// MaxJoinedChannels bounds how many channels a single client may be a
// member of at once (spec.md section 4.2's JOIN "too many channels" case).
const MaxJoinedChannels = 100

func registerChannelHandlers(d *Dispatcher) {
	d.Handle(CmdJoin, handleJoin)
	d.Handle(CmdPart, handlePart)
	d.Handle(CmdTopic, handleTopic)
	d.Handle(CmdNames, handleNames)
	d.Handle(CmdList, handleList)
	d.Handle(CmdInvite, handleInvite)
	d.Handle(CmdKick, handleKick)
	d.Handle(CmdMode, handleMode)
}

// broadcastToChannel sends msg to every member of ch except skip (pass ""
// to exclude nobody), filtering tags per each recipient's negotiated caps.
func broadcastToChannel(ch *Channel, msg *Message, skip string) {
	defer msgPool.Recycle(msg)
	for _, m := range ch.Members() {
		if m.Client.Nick() == skip {
			continue
		}
		m.Client.Enqueue(msg.RenderBuffer(tagsForCaps(m.Client.Caps())))
	}
}

func handleJoin(ctx *MessageContext) {
	names := strings.Split(ctx.Msg.Params[0], ",")
	var keys []string
	if len(ctx.Msg.Params) > 1 {
		keys = strings.Split(ctx.Msg.Params[1], ",")
	}

	if ctx.Client.channelCount()+len(names) > MaxJoinedChannels {
		ctx.Session.replyError(ErrTooManyChannels, ReplyTooManyChannels, names[0])
		return
	}

	for i, name := range names {
		key := ""
		if i < len(keys) {
			key = keys[i]
		}

		ch, _, err := ctx.Store.Join(ctx.Client, name, key)
		if err != nil {
			switch err {
			case ErrBannedFromChan:
				ctx.Session.sendNumeric(ReplyBannedFromChan, []string{ctx.Session.nickOrStar(), name}, err.Error())
			case ErrInviteOnlyChan:
				ctx.Session.sendNumeric(ReplyInviteOnlyChan, []string{ctx.Session.nickOrStar(), name}, err.Error())
			case ErrBadChannelKey:
				ctx.Session.sendNumeric(ReplyBadChannelPass, []string{ctx.Session.nickOrStar(), name}, err.Error())
			case ErrChannelIsFull:
				ctx.Session.sendNumeric(ReplyChannelIsFull, []string{ctx.Session.nickOrStar(), name}, err.Error())
			default:
				ctx.Session.replyNoSuchChannel(name)
			}
			continue
		}

		join := newMessage(ctx.Client.Hostmask())
		join.Command = CmdJoin
		join.Params = []string{ch.Name()}
		stampEvent(join, ctx.Client)
		broadcastToChannel(ch, join, "")

		sendTopicAndNames(ctx.Session, ch)
	}
}

func sendTopicAndNames(s *Session, ch *Channel) {
	topic, setBy, setAt := ch.Topic()
	if topic == "" {
		s.sendNumeric(ReplyNoTopic, []string{s.nickOrStar(), ch.Name()}, "No topic is set")
	} else {
		s.sendNumeric(ReplyChanTopic, []string{s.nickOrStar(), ch.Name()}, topic)
		_ = setBy
		_ = setAt
	}
	handleNamesFor(s, ch)
}

func handlePart(ctx *MessageContext) {
	names := strings.Split(ctx.Msg.Params[0], ",")
	reason := ctx.Msg.Trailing

	for _, name := range names {
		ch, ok := ctx.Store.FindChannel(name)
		if !ok || !ch.HasMember(ctx.Client.Nick()) {
			ctx.Session.replyError(ErrNotOnChannel, ReplyNotOnChannel, name)
			continue
		}

		part := newMessage(ctx.Client.Hostmask())
		part.Command = CmdPart
		part.Params = []string{ch.Name()}
		if reason != "" {
			part.WithTrailing(reason)
		}
		stampEvent(part, ctx.Client)
		broadcastToChannel(ch, part, "")

		ctx.Store.Part(ctx.Client, ch)
	}
}

func handleTopic(ctx *MessageContext) {
	name := ctx.Msg.Params[0]
	ch, ok := ctx.Store.FindChannel(name)
	if !ok {
		ctx.Session.replyNoSuchChannel(name)
		return
	}
	if !ch.HasMember(ctx.Client.Nick()) {
		ctx.Session.replyError(ErrNotOnChannel, ReplyNotOnChannel, name)
		return
	}

	if !ctx.Msg.HasTrailing && len(ctx.Msg.Params) < 2 {
		topic, _, _ := ch.Topic()
		if topic == "" {
			ctx.Session.sendNumeric(ReplyNoTopic, []string{ctx.Session.nickOrStar(), name}, "No topic is set")
		} else {
			ctx.Session.sendNumeric(ReplyChanTopic, []string{ctx.Session.nickOrStar(), name}, topic)
		}
		return
	}

	if ch.HasMode(CModeTopicLock) && !ch.IsOperator(ctx.Client.Nick()) {
		ctx.Session.replyError(ErrChanOpPrivsNeeded, ReplyChanOpPrivsNeeded, name)
		return
	}

	ch.SetTopic(ctx.Msg.Trailing, ctx.Client.Hostmask())

	topicMsg := newMessage(ctx.Client.Hostmask())
	topicMsg.Command = CmdTopic
	topicMsg.Params = []string{name}
	topicMsg.WithTrailing(ctx.Msg.Trailing)
	stampEvent(topicMsg, ctx.Client)
	broadcastToChannel(ch, topicMsg, "")
}

func handleNames(ctx *MessageContext) {
	if len(ctx.Msg.Params) < 1 {
		ctx.Store.ForEachChannel(func(ch *Channel) {
			if !ch.HasMode(CModeSecret) {
				handleNamesFor(ctx.Session, ch)
			}
		})
		return
	}
	for _, name := range strings.Split(ctx.Msg.Params[0], ",") {
		if ch, ok := ctx.Store.FindChannel(name); ok {
			handleNamesFor(ctx.Session, ch)
		}
	}
}

func handleNamesFor(s *Session, ch *Channel) {
	var nicks []string
	for _, m := range ch.Members() {
		nick := m.Client.Nick()
		if s.client.HasCap(CapMultiPrefix) {
			nick = m.Prefix + nick
		} else if m.Prefix != "" {
			nick = m.Prefix[:1] + nick
		}
		nicks = append(nicks, nick)
	}
	for _, line := range stringutils.ChunkJoinStrings(MaxMsgLength-64, space, nicks...) {
		s.sendNumeric(ReplyNames, []string{s.nickOrStar(), "=", ch.Name()}, line)
	}
	s.sendNumeric(ReplyEndOfNames, []string{s.nickOrStar(), ch.Name()}, "End of NAMES list")
}

func handleList(ctx *MessageContext) {
	ctx.Session.sendNumeric(ReplyListStart, []string{ctx.Session.nickOrStar()}, "Channel :Users Name")
	list := func(ch *Channel) {
		if ch.HasMode(CModeSecret) {
			return
		}
		topic, _, _ := ch.Topic()
		chars, _ := ch.Modes()
		ctx.Session.sendNumeric(ReplyList, []string{ctx.Session.nickOrStar(), ch.Name(), itoa(ch.MemberCount())}, "["+string(chars)+"] "+topic)
	}
	if len(ctx.Msg.Params) > 0 {
		for _, name := range strings.Split(ctx.Msg.Params[0], ",") {
			if ch, ok := ctx.Store.FindChannel(name); ok {
				list(ch)
			}
		}
	} else {
		ctx.Store.ForEachChannel(list)
	}
	ctx.Session.sendNumeric(ReplyEndOfList, []string{ctx.Session.nickOrStar()}, "End of LIST")
}

func handleInvite(ctx *MessageContext) {
	nick, chanName := ctx.Msg.Params[0], ctx.Msg.Params[1]

	ch, ok := ctx.Store.FindChannel(chanName)
	if !ok {
		ctx.Session.replyNoSuchChannel(chanName)
		return
	}
	if !ch.HasMember(ctx.Client.Nick()) {
		ctx.Session.replyError(ErrNotOnChannel, ReplyNotOnChannel, chanName)
		return
	}
	if ch.HasMode(CModeInviteOnly) && !ch.IsOperator(ctx.Client.Nick()) {
		ctx.Session.replyError(ErrChanOpPrivsNeeded, ReplyChanOpPrivsNeeded, chanName)
		return
	}
	target, ok := ctx.Store.FindNick(nick)
	if !ok {
		ctx.Session.replyNoSuchNick(nick)
		return
	}
	if ch.HasMember(nick) {
		ctx.Session.replyError(ErrUserOnChannel, ReplyUserOnChannel, nick, chanName)
		return
	}

	ch.invite(nick)

	ctx.Session.sendNumeric(ReplyInviting, []string{ctx.Session.nickOrStar(), nick, chanName}, "")

	invite := newMessage(ctx.Client.Hostmask())
	invite.Command = CmdInvite
	invite.Params = []string{nick}
	invite.WithTrailing(chanName)
	stampEvent(invite, ctx.Client)
	target.Enqueue(invite.RenderBuffer(tagsForCaps(target.Caps())))
	msgPool.Recycle(invite)
}

func handleKick(ctx *MessageContext) {
	chanName, targetNick := ctx.Msg.Params[0], ctx.Msg.Params[1]
	reason := ctx.Msg.Trailing
	if reason == "" {
		reason = ctx.Client.Nick()
	}

	ch, ok := ctx.Store.FindChannel(chanName)
	if !ok {
		ctx.Session.replyNoSuchChannel(chanName)
		return
	}
	if !ch.IsOperator(ctx.Client.Nick()) {
		ctx.Session.replyError(ErrChanOpPrivsNeeded, ReplyChanOpPrivsNeeded, chanName)
		return
	}
	target, ok := ctx.Store.FindNick(targetNick)
	if !ok || !ch.HasMember(targetNick) {
		ctx.Session.replyError(ErrUserNotInChannel, ReplyUserNotInChannel, targetNick, chanName)
		return
	}

	kick := newMessage(ctx.Client.Hostmask())
	kick.Command = CmdKick
	kick.Params = []string{chanName, targetNick}
	kick.WithTrailing(reason)
	stampEvent(kick, ctx.Client)
	broadcastToChannel(ch, kick, "")

	ctx.Store.Kick(target, ch)
}

func handleMode(ctx *MessageContext) {
	target := ctx.Msg.Params[0]
	if len(target) > 0 && target[0] == '#' {
		handleChannelMode(ctx, target)
		return
	}
	handleUserMode(ctx, target)
}

func handleChannelMode(ctx *MessageContext, name string) {
	ch, ok := ctx.Store.FindChannel(name)
	if !ok {
		ctx.Session.replyNoSuchChannel(name)
		return
	}

	if len(ctx.Msg.Params) < 2 {
		chars, args := ch.Modes()
		mode := "+" + string(chars)
		ctx.Session.sendNumeric(ReplyChannelModeIs, append([]string{ctx.Session.nickOrStar(), name, mode}, args...), "")
		return
	}

	if !ch.IsOperator(ctx.Client.Nick()) {
		ctx.Session.replyError(ErrChanOpPrivsNeeded, ReplyChanOpPrivsNeeded, name)
		return
	}

	changes := parseModeString(ctx.Msg.Params[1], ctx.Msg.Params[2:], func(m byte, add bool) bool {
		switch m {
		case CModeKey:
			return true
		case CModeLimit:
			return add
		case 'o', 'v':
			return true
		default:
			return false
		}
	})

	var applied []string
	var appliedArgs []string
	add := true
	for _, chg := range changes {
		switch chg.mode {
		case 'o':
			ch.setRank(chg.arg, rankFor(chg.add, rankOperator))
		case 'v':
			ch.setRank(chg.arg, rankFor(chg.add, rankVoice))
		default:
			if !ch.ApplyMode(chg.mode, chg.add, chg.arg) {
				continue
			}
		}
		if chg.add != add || len(applied) == 0 {
			applied = append(applied, signChar(chg.add)+string(chg.mode))
		} else {
			applied[len(applied)-1] += string(chg.mode)
		}
		add = chg.add
		if chg.arg != "" {
			appliedArgs = append(appliedArgs, chg.arg)
		}
	}

	if len(applied) == 0 {
		return
	}

	modeMsg := newMessage(ctx.Client.Hostmask())
	modeMsg.Command = CmdMode
	modeMsg.Params = append([]string{name, strings.Join(applied, "")}, appliedArgs...)
	stampEvent(modeMsg, ctx.Client)
	broadcastToChannel(ch, modeMsg, "")
}

func rankFor(add bool, want rank) rank {
	if add {
		return want
	}
	return rankNone
}

func signChar(add bool) string {
	if add {
		return "+"
	}
	return "-"
}

func handleUserMode(ctx *MessageContext, nick string) {
	if !equalFold(nick, ctx.Client.Nick()) {
		ctx.Session.replyError(ErrUsersDontMatch, ReplyUsersDontMatch)
		return
	}

	if len(ctx.Msg.Params) < 2 {
		ctx.Session.sendNumeric(ReplyUserModeIs, []string{ctx.Session.nickOrStar(), "+" + string(ctx.Client.Modes())}, "")
		return
	}

	changes := parseModeString(ctx.Msg.Params[1], nil, func(byte, bool) bool { return false })
	for _, chg := range changes {
		if chg.mode == UModeOperator && chg.add {
			continue // OPER is the only path to +o
		}
		ctx.Client.SetMode(chg.mode, chg.add)
	}
	ctx.Session.sendNumeric(ReplyUserModeIs, []string{ctx.Session.nickOrStar(), "+" + string(ctx.Client.Modes())}, "")
}
