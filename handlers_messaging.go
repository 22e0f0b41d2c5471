/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import "strings"

func registerMessagingHandlers(d *Dispatcher) {
	d.Handle(CmdPrivMsg, handlePrivmsg)
	d.Handle(CmdNotice, handleNotice)
	d.Handle(CmdTagmsg, handleTagmsg)
}

func handlePrivmsg(ctx *MessageContext) {
	deliverToTargets(ctx, CmdPrivMsg, true)
}

func handleNotice(ctx *MessageContext) {
	deliverToTargets(ctx, CmdNotice, false)
}

// deliverToTargets implements PRIVMSG/NOTICE's shared target-resolution and
// fan-out (spec.md section 4.3). reportErrors is false for NOTICE, which
// never generates an error reply back to the sender (RFC 2812).
func deliverToTargets(ctx *MessageContext, command string, reportErrors bool) {
	if ctx.Msg.Trailing == "" {
		if reportErrors {
			ctx.Session.replyError(ErrNoTextToSend, ReplyNoTextToSend)
		}
		return
	}

	targets := strings.Split(ctx.Msg.Params[0], ",")
	for _, target := range targets {
		if len(target) > 0 && target[0] == '#' {
			deliverToChannel(ctx, command, target, reportErrors)
			continue
		}
		deliverToClient(ctx, command, target, reportErrors)
	}
}

func deliverToChannel(ctx *MessageContext, command, name string, reportErrors bool) {
	ch, ok := ctx.Store.FindChannel(name)
	if !ok {
		if reportErrors {
			ctx.Session.replyNoSuchChannel(name)
		}
		return
	}

	onChannel := ch.HasMember(ctx.Client.Nick())
	if !onChannel && ch.HasMode(CModeNoExternal) {
		if reportErrors {
			ctx.Session.replyError(ErrCannotSendToChan, ReplyCannotSendToChan, name)
		}
		return
	}
	if ch.HasMode(CModeModerated) && !ch.IsVoiced(ctx.Client.Nick()) {
		if reportErrors {
			ctx.Session.replyError(ErrCannotSendToChan, ReplyCannotSendToChan, name)
		}
		return
	}

	msg := newMessage(ctx.Client.Hostmask())
	msg.Command = command
	msg.Params = []string{name}
	msg.WithTrailing(ctx.Msg.Trailing)
	stampEvent(msg, ctx.Client)
	broadcastToChannel(ch, msg, ctx.Client.Nick())

	if ctx.Client.HasCap(CapEchoMessage) {
		echo := newMessage(ctx.Client.Hostmask())
		echo.Command = command
		echo.Params = []string{name}
		echo.WithTrailing(ctx.Msg.Trailing)
		stampEvent(echo, ctx.Client)
		ctx.Session.send(echo)
	}
}

func deliverToClient(ctx *MessageContext, command, nick string, reportErrors bool) {
	target, ok := ctx.Store.FindNick(nick)
	if !ok {
		if reportErrors {
			ctx.Session.replyNoSuchNick(nick)
		}
		return
	}

	msg := newMessage(ctx.Client.Hostmask())
	msg.Command = command
	msg.Params = []string{nick}
	msg.WithTrailing(ctx.Msg.Trailing)
	stampEvent(msg, ctx.Client)
	target.Enqueue(msg.RenderBuffer(tagsForCaps(target.Caps())))
	msgPool.Recycle(msg)

	if away, isAway := target.Away(); isAway && command == CmdPrivMsg {
		ctx.Session.sendNumeric(ReplyAway, []string{ctx.Session.nickOrStar(), nick}, away)
	}

	if ctx.Client.HasCap(CapEchoMessage) {
		echo := newMessage(ctx.Client.Hostmask())
		echo.Command = command
		echo.Params = []string{nick}
		echo.WithTrailing(ctx.Msg.Trailing)
		stampEvent(echo, ctx.Client)
		ctx.Session.send(echo)
	}
}

// handleTagmsg relays a client-tag-only message (no text) to its targets,
// carrying over any client tags the recipient negotiated message-tags for
// (spec.md section 4.5's TAGMSG).
func handleTagmsg(ctx *MessageContext) {
	if len(ctx.Msg.Params) < 1 {
		ctx.Session.replyNeedMoreParams(CmdTagmsg)
		return
	}
	for _, target := range strings.Split(ctx.Msg.Params[0], ",") {
		msg := newMessage(ctx.Client.Hostmask())
		msg.Command = CmdTagmsg
		msg.Params = []string{target}
		msg.Tags = append(msg.Tags, ctx.Msg.Tags...)
		stampEvent(msg, ctx.Client)

		if len(target) > 0 && target[0] == '#' {
			if ch, ok := ctx.Store.FindChannel(target); ok {
				broadcastToChannel(ch, msg, ctx.Client.Nick())
				continue
			}
			msgPool.Recycle(msg)
			continue
		}

		if recipient, ok := ctx.Store.FindNick(target); ok && recipient.HasCap(CapMessageTags) {
			recipient.Enqueue(msg.RenderBuffer(tagsForCaps(recipient.Caps())))
		}
		msgPool.Recycle(msg)
	}
}
