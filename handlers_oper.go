/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

func registerOperHandlers(d *Dispatcher) {
	d.Handle(CmdOper, handleOper)
	d.Handle(CmdKill, handleKill)
	d.Handle(CmdRehash, handleRehash)
}

func handleOper(ctx *MessageContext) {
	name, pass := ctx.Msg.Params[0], ctx.Msg.Params[1]

	configured, ok := ctx.Store.OperPassword(name)
	if !ok || configured != pass {
		ctx.Session.replyError(ErrNoOperHost, ReplyNoOperHost)
		return
	}

	ctx.Client.SetMode(UModeOperator, true)
	ctx.Session.sendNumeric(ReplyYoureOper, []string{ctx.Session.nickOrStar()}, "You are now an IRC operator")
}

func handleKill(ctx *MessageContext) {
	nick := ctx.Msg.Params[0]
	reason := ctx.Msg.Trailing
	if reason == "" {
		reason = "Killed by " + ctx.Client.Nick()
	}

	target, ok := ctx.Store.FindNick(nick)
	if !ok {
		ctx.Session.replyNoSuchNick(nick)
		return
	}

	target.Kill("Killed (" + ctx.Client.Nick() + " (" + reason + "))")
}

func handleRehash(ctx *MessageContext) {
	if err := ctx.Session.server.Rehash(ctx.Session.server.cfg.sourcePath); err != nil {
		ctx.Session.sendNumeric(ReplyFileError, []string{ctx.Session.nickOrStar()}, err.Error())
		return
	}
	ctx.Session.sendNumeric(ReplyRehashing, []string{ctx.Session.nickOrStar(), "ircd.yaml"}, "Rehashing")
}
