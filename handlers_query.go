/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"strings"
	"time"
)

func registerQueryHandlers(d *Dispatcher) {
	d.Handle(CmdWho, handleWho)
	d.Handle(CmdWhois, handleWhois)
	d.Handle(CmdWhowas, handleWhowas)
	d.Handle(CmdAway, handleAway)
	d.Handle(CmdUserhost, handleUserhost)
	d.Handle(CmdIson, handleIson)
	d.Handle(CmdSetname, handleSetname)
	d.Handle(CmdLusers, handleLusers)
	d.Handle(CmdVersion, handleVersion)
	d.Handle(CmdTime, handleTime)
	d.Handle(CmdMotd, handleMotdCmd)
	d.Handle(CmdInfo, handleInfo)
	d.Handle(CmdAdmin, handleAdmin)
}

func handleWho(ctx *MessageContext) {
	nick := ctx.Session.nickOrStar()

	if len(ctx.Msg.Params) == 0 {
		ctx.Store.ForEachClient(func(c *Client) { sendWhoLine(ctx, c, "*") })
		ctx.Session.sendNumeric(ReplyEndOfWho, []string{nick, "*"}, "End of WHO list")
		return
	}

	mask := ctx.Msg.Params[0]
	if len(mask) > 0 && mask[0] == '#' {
		if ch, ok := ctx.Store.FindChannel(mask); ok {
			for _, m := range ch.Members() {
				sendWhoLine(ctx, m.Client, mask)
			}
		}
	} else if target, ok := ctx.Store.FindNick(mask); ok {
		sendWhoLine(ctx, target, mask)
	}
	ctx.Session.sendNumeric(ReplyEndOfWho, []string{nick, mask}, "End of WHO list")
}

func sendWhoLine(ctx *MessageContext, c *Client, mask string) {
	chanName := "*"
	if chs := c.Channels(); len(chs) > 0 {
		chanName = chs[0].Name()
	}
	flags := "H"
	if c.IsOperator() {
		flags += "*"
	}
	if _, away := c.Away(); away {
		flags = "G" + strings.TrimPrefix(flags, "H")
	}
	trailing := "0 " + c.Real()
	ctx.Session.sendNumeric(ReplyWho, []string{
		ctx.Session.nickOrStar(), chanName, c.User(), c.Host(), ctx.Store.Domain(), c.Nick(), flags,
	}, trailing)
	_ = mask
}

func handleWhois(ctx *MessageContext) {
	nick := ctx.Msg.Params[0]
	me := ctx.Session.nickOrStar()

	target, ok := ctx.Store.FindNick(nick)
	if !ok {
		ctx.Session.replyNoSuchNick(nick)
		ctx.Session.sendNumeric(ReplyEndOfWhois, []string{me, nick}, "End of WHOIS list")
		return
	}

	ctx.Session.sendNumeric(ReplyWhoisUser, []string{me, target.Nick(), target.User(), target.Host(), "*"}, target.Real())
	ctx.Session.sendNumeric(ReplyWhoisServer, []string{me, target.Nick(), ctx.Store.Domain()}, "ircd")

	if target.IsOperator() {
		ctx.Session.sendNumeric(ReplyWhoisOperator, []string{me, target.Nick()}, "is an IRC operator")
	}

	if account := target.Account(); account != "" {
		// 330 RPL_WHOISACCOUNT
		ctx.Session.sendNumeric(330, []string{me, target.Nick(), account}, "is logged in as")
	}

	var chans []string
	for _, ch := range target.Channels() {
		chans = append(chans, ch.RankOf(target.Nick()).prefix()+ch.Name())
	}
	if len(chans) > 0 {
		ctx.Session.sendNumeric(ReplyWhoisChannels, []string{me, target.Nick()}, strings.Join(chans, " "))
	}

	ctx.Session.sendNumeric(ReplyWhoisIdle, []string{me, target.Nick(), itoa(int(target.IdleSeconds())), itoa(int(ctx.Store.CreatedAt().Unix()))}, "seconds idle, signon time")
	ctx.Session.sendNumeric(ReplyEndOfWhois, []string{me, target.Nick()}, "End of WHOIS list")
}

func handleWhowas(ctx *MessageContext) {
	nick := ctx.Msg.Params[0]
	me := ctx.Session.nickOrStar()

	max := 0
	if len(ctx.Msg.Params) > 1 {
		if n, ok := parsePositiveInt(ctx.Msg.Params[1]); ok {
			max = n
		}
	}

	entries := ctx.Store.Whowas(nick, max)
	if len(entries) == 0 {
		ctx.Session.replyError(ErrNoSuchNick, ReplyWasNoSuchNick, nick)
	}
	for _, e := range entries {
		ctx.Session.sendNumeric(ReplyWhoWasUser, []string{me, e.nick, e.user, e.host, "*"}, e.real)
	}
	ctx.Session.sendNumeric(ReplyEndOfWhoWas, []string{me, nick}, "End of WHOWAS")
}

func handleAway(ctx *MessageContext) {
	me := ctx.Session.nickOrStar()
	if ctx.Msg.Trailing == "" {
		ctx.Client.setAway("")
		ctx.Session.sendNumeric(ReplyUnAway, []string{me}, "You are no longer marked as being away")
		return
	}
	ctx.Client.setAway(ctx.Msg.Trailing)
	ctx.Session.sendNumeric(ReplyNowAway, []string{me}, "You have been marked as being away")
}

func handleUserhost(ctx *MessageContext) {
	me := ctx.Session.nickOrStar()
	var replies []string
	for _, nick := range ctx.Msg.Params {
		c, ok := ctx.Store.FindNick(nick)
		if !ok {
			continue
		}
		away := "+"
		if _, isAway := c.Away(); isAway {
			away = "-"
		}
		op := ""
		if c.IsOperator() {
			op = "*"
		}
		replies = append(replies, c.Nick()+op+"="+away+c.User()+"@"+c.Host())
	}
	ctx.Session.sendNumeric(ReplyUserHost, []string{me}, strings.Join(replies, " "))
}

func handleIson(ctx *MessageContext) {
	me := ctx.Session.nickOrStar()
	var online []string
	for _, nick := range ctx.Msg.Params {
		if c, ok := ctx.Store.FindNick(nick); ok {
			online = append(online, c.Nick())
		}
	}
	ctx.Session.sendNumeric(ReplyIsOn, []string{me}, strings.Join(online, " "))
}

func handleSetname(ctx *MessageContext) {
	if ctx.Msg.Trailing == "" {
		ctx.Session.replyNeedMoreParams(CmdSetname)
		return
	}
	ctx.Client.setReal(ctx.Msg.Trailing)

	msg := newMessage(ctx.Client.Hostmask())
	msg.Command = CmdSetname
	msg.WithTrailing(ctx.Msg.Trailing)
	seen := map[foldedKey]bool{foldKey(ctx.Client.Nick()): true}
	for _, ch := range ctx.Client.Channels() {
		for _, m := range ch.Members() {
			key := foldKey(m.Client.Nick())
			if seen[key] || !m.Client.HasCap(CapSetname) {
				continue
			}
			seen[key] = true
			m.Client.Enqueue(msg.RenderBuffer(tagsForCaps(m.Client.Caps())))
		}
	}
	msgPool.Recycle(msg)
}

func handleLusers(ctx *MessageContext) {
	me := ctx.Session.nickOrStar()
	clients := ctx.Store.ClientCount()
	var opers int
	ctx.Store.ForEachClient(func(c *Client) {
		if c.IsOperator() {
			opers++
		}
	})
	ctx.Session.sendNumeric(ReplyUsersOnlineGlobal, []string{me, itoa(clients), "1"}, "users and 1 server")
	ctx.Session.sendNumeric(ReplyOpersOnline, []string{me, itoa(opers)}, "operator(s) online")
	ctx.Session.sendNumeric(ReplyChannelCount, []string{me, itoa(ctx.Store.ChannelCount())}, "channels formed")
	ctx.Session.sendNumeric(ReplyUsersOnlineLocal, []string{me, itoa(clients), itoa(clients)}, "Current local users, max")
}

func handleVersion(ctx *MessageContext) {
	ctx.Session.sendNumeric(ReplyVersion, []string{ctx.Session.nickOrStar(), "ircd-0.1", ctx.Store.Domain()}, "")
}

func handleTime(ctx *MessageContext) {
	ctx.Session.sendNumeric(ReplyTime, []string{ctx.Session.nickOrStar(), ctx.Store.Domain()}, time.Now().Format(time.RFC1123))
}

func handleMotdCmd(ctx *MessageContext) {
	sendMOTD(ctx.Session)
}

func handleInfo(ctx *MessageContext) {
	me := ctx.Session.nickOrStar()
	ctx.Session.sendNumeric(ReplyInfo, []string{me}, "ircd - an IRCv3 server")
	ctx.Session.sendNumeric(ReplyEndOfInfo, []string{me}, "End of INFO list")
}

func handleAdmin(ctx *MessageContext) {
	me := ctx.Session.nickOrStar()
	name, location, mail := ctx.Store.OrgInfo()
	ctx.Session.sendNumeric(ReplyAdminInfoStart, []string{me, ctx.Store.Domain()}, "Administrative info")
	ctx.Session.sendNumeric(ReplyAdminInfo1, []string{me}, location)
	ctx.Session.sendNumeric(ReplyAdminInfo2, []string{me}, name)
	ctx.Session.sendNumeric(ReplyAdminEmail, []string{me}, mail)
}
