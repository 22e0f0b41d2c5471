/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"context"
	"strings"
)

func registerRegistrationHandlers(d *Dispatcher) {
	d.Handle(CmdPass, handlePass)
	d.Handle(CmdNick, handleNick)
	d.Handle(CmdUser, handleUser)
	d.Handle(CmdCap, handleCap)
	d.Handle(CmdAuthenticate, handleAuthenticate)
	d.Handle(CmdPing, handlePing)
	d.Handle(CmdPong, handlePong)
	d.Handle(CmdQuit, handleQuit)
}

func handlePass(ctx *MessageContext) {
	if ctx.Client.Stage() != StageFresh {
		ctx.Session.replyError(ErrAlreadyRegistered, ReplyAlreadyRegistered)
		return
	}
	if len(ctx.Msg.Params) < 1 {
		ctx.Session.replyNeedMoreParams(CmdPass)
		return
	}
	configured := ctx.Session.server.cfg.Password
	if configured == "" || ctx.Msg.Params[0] == configured {
		ctx.Client.setPassOK(true)
	} else {
		ctx.Client.setPassOK(false)
	}
	ctx.Client.setStage(StagePassGiven)
}

func handleNick(ctx *MessageContext) {
	if len(ctx.Msg.Params) < 1 {
		ctx.Session.replyError(ErrNoNickGiven, ReplyNoNicknameGiven)
		return
	}
	nick := ctx.Msg.Params[0]

	if err := ctx.Store.ClaimNick(ctx.Client, nick); err != nil {
		switch err {
		case ErrNickInUse:
			ctx.Session.sendNumeric(ReplyNicknameInUse, []string{ctx.Session.nickOrStar(), nick}, err.Error())
		case ErrErroneousNick:
			ctx.Session.sendNumeric(ReplyErroneusNickname, []string{ctx.Session.nickOrStar(), nick}, err.Error())
		}
		return
	}

	advanceRegistration(ctx)
	maybeCompleteRegistration(ctx)
}

func handleUser(ctx *MessageContext) {
	if ctx.Client.Stage() != StageFresh && ctx.Client.Stage() != StagePassGiven &&
		ctx.Client.Stage() != StageNickGiven && ctx.Client.Stage() != StageCapNegotiating {
		ctx.Session.replyError(ErrAlreadyRegistered, ReplyAlreadyRegistered)
		return
	}
	p := ctx.Msg.Params
	ctx.Client.setUser(p[0])
	ctx.Client.setReal(ctx.Msg.Trailing)
	ctx.Client.setHost(hostFromAddr(ctx.Client.RemoteAddr()))

	advanceRegistration(ctx)
	maybeCompleteRegistration(ctx)
}

func advanceRegistration(ctx *MessageContext) {
	switch {
	case ctx.Client.Nick() != "" && ctx.Client.User() != "":
		if ctx.Client.CapActive() {
			ctx.Client.setStage(StageCapNegotiating)
		} else {
			ctx.Client.setStage(StageNickAndUser)
		}
	case ctx.Client.Nick() != "":
		ctx.Client.setStage(StageNickGiven)
	case ctx.Client.User() != "":
		ctx.Client.setStage(StageUserGiven)
	}
}

// maybeCompleteRegistration sends the welcome burst once every
// precondition is satisfied (spec.md section 4.1).
func maybeCompleteRegistration(ctx *MessageContext) {
	passRequired := ctx.Session.server.cfg.Password != ""
	if !ctx.Client.ReadyToRegister(false) {
		return
	}
	if passRequired && !ctx.Client.PassOK() {
		ctx.Session.replyError(ErrPasswdMismatch, ReplyPasswordMistmatch)
		ctx.Session.disconnect(QuitRegistrationTimeout, ErrPasswdMismatch.Error())
		return
	}

	ctx.Client.setStage(StageRegistered)
	sendWelcomeBurst(ctx.Session)
}

func sendWelcomeBurst(s *Session) {
	nick := s.client.Nick()
	domain := s.store.Domain()

	s.sendNumeric(ReplyWelcome, []string{nick}, "Welcome to "+domain+", "+s.client.Hostmask())
	s.sendNumeric(ReplyYourHost, []string{nick}, "Your host is "+domain)
	s.sendNumeric(ReplyCreated, []string{nick}, "This server was created "+s.store.CreatedAt().Format("2006-01-02 15:04:05"))
	s.sendNumeric(ReplyMyInfo, []string{nick, domain}, "")

	for _, line := range s.store.ISupportLines() {
		s.sendNumeric(ReplyISupport, []string{nick, line}, "are supported by this server")
	}

	sendMOTD(s)
}

func sendMOTD(s *Session) {
	nick := s.client.Nick()
	motd := s.store.MOTD()
	if len(motd) == 0 {
		s.sendNumeric(ReplyNoMOTD, []string{nick}, "MOTD File is missing")
		return
	}
	s.sendNumeric(ReplyMOTDStart, []string{nick}, "- "+s.store.Domain()+" Message of the day -")
	for _, line := range motd {
		s.sendNumeric(ReplyMOTD, []string{nick}, "- "+line)
	}
	s.sendNumeric(ReplyEndOFMOTD, []string{nick}, "End of MOTD command")
}

func handleCap(ctx *MessageContext) {
	if len(ctx.Msg.Params) < 1 {
		ctx.Session.replyNeedMoreParams(CmdCap)
		return
	}
	sub := strings.ToUpper(ctx.Msg.Params[0])
	nick := ctx.Session.nickOrStar()

	switch sub {
	case CapLS:
		ctx.Client.setCapActive(true)
		if ctx.Client.Stage() == StageNickAndUser {
			ctx.Client.setStage(StageCapNegotiating)
		}
		sendCapLS(ctx)

	case CapLIST:
		caps := ctx.Client.Caps()
		names := make([]string, 0, len(caps))
		for name := range caps {
			names = append(names, name)
		}
		msg := newMessage(ctx.Store.Domain())
		msg.Command = CmdCap
		msg.Params = []string{nick, CapLIST}
		msg.WithTrailing(strings.Join(names, " "))
		ctx.Session.send(msg)

	case CapREQ:
		handleCapReq(ctx)

	case CapEND:
		ctx.Client.setCapActive(false)
		advanceRegistration(ctx)
		maybeCompleteRegistration(ctx)

	default:
		msg := newMessage(ctx.Store.Domain())
		msg.Code = ReplyInvalidCapCmd
		msg.Params = []string{nick, sub}
		msg.WithTrailing(ErrInvalidCapCmd.Error())
		ctx.Session.send(msg)
	}
}

func sendCapLS(ctx *MessageContext) {
	nick := ctx.Session.nickOrStar()
	values := make([]string, 0, len(supportedCaps))
	for _, cap := range supportedCaps {
		if cap == CapSASL {
			if _, ok := saslAdvertisement(ctx.Session.server.creds != nil); ok {
				values = append(values, cap+"=PLAIN")
				continue
			}
			continue
		}
		values = append(values, cap)
	}
	msg := newMessage(ctx.Store.Domain())
	msg.Command = CmdCap
	msg.Params = []string{nick, CapLS}
	msg.WithTrailing(strings.Join(values, " "))
	ctx.Session.send(msg)
}

func handleCapReq(ctx *MessageContext) {
	nick := ctx.Session.nickOrStar()
	requested := strings.Fields(ctx.Msg.Trailing)

	for _, name := range requested {
		name = strings.TrimPrefix(name, "-")
		if !isSupportedCap(name) {
			msg := newMessage(ctx.Store.Domain())
			msg.Command = CmdCap
			msg.Params = []string{nick, CapNAK}
			msg.WithTrailing(ctx.Msg.Trailing)
			ctx.Session.send(msg)
			return
		}
	}

	ctx.Client.setCapActive(true)
	next := ctx.Client.Caps()
	for _, name := range requested {
		if strings.HasPrefix(name, "-") {
			delete(next, strings.TrimPrefix(name, "-"))
			continue
		}
		next.add(name)
	}
	ctx.Client.setCaps(next)

	msg := newMessage(ctx.Store.Domain())
	msg.Command = CmdCap
	msg.Params = []string{nick, CapACK}
	msg.WithTrailing(ctx.Msg.Trailing)
	ctx.Session.send(msg)
}

func handleAuthenticate(ctx *MessageContext) {
	if len(ctx.Msg.Params) < 1 {
		ctx.Session.replyNeedMoreParams(CmdAuthenticate)
		return
	}
	payload := ctx.Msg.Params[0]

	if ctx.Client.sasl == nil {
		if ctx.Session.server.creds == nil || !mechanismSupported(payload) {
			ctx.Session.sendNumeric(ReplySASLFail, []string{ctx.Session.nickOrStar()}, ErrSaslFail.Error())
			return
		}
		ctx.Client.sasl = newSaslState(func(account, password string) error {
			return ctx.Session.server.creds.Verify(context.Background(), account, password)
		})
		ctx.Client.setStage(StageSaslInProgress)
		ctx.Session.sendRaw("AUTHENTICATE +\r\n")
		return
	}

	done, err := ctx.Client.sasl.feed(payload)
	if !done {
		return
	}

	nick := ctx.Session.nickOrStar()
	if err != nil {
		ctx.Session.sendNumeric(ReplySASLFail, []string{nick}, ErrSaslFail.Error())
		ctx.Client.sasl = nil
		return
	}

	ctx.Client.setAccount(ctx.Client.sasl.Account())
	ctx.Session.sendNumeric(ReplyLoggedIn, []string{nick, ctx.Client.Hostmask(), ctx.Client.Account()}, "You are now logged in as "+ctx.Client.Account())
	ctx.Session.sendNumeric(ReplySASLSuccess, []string{nick}, "SASL authentication successful")

	if ctx.Client.Stage() == StageSaslInProgress {
		advanceRegistration(ctx)
	}
	maybeCompleteRegistration(ctx)
}

func handlePing(ctx *MessageContext) {
	token := ctx.Msg.Trailing
	if token == "" && len(ctx.Msg.Params) > 0 {
		token = ctx.Msg.Params[0]
	}
	msg := newMessage(ctx.Store.Domain())
	msg.Command = CmdPong
	msg.WithTrailing(token)
	ctx.Session.send(msg)
}

func handlePong(ctx *MessageContext) {
	token := ctx.Msg.Trailing
	if token == "" && len(ctx.Msg.Params) > 0 {
		token = ctx.Msg.Params[0]
	}
	ctx.Session.lastPingRecv = token
}

func handleQuit(ctx *MessageContext) {
	reason := ctx.Msg.Trailing
	if reason == "" {
		reason = "Client quit"
	}
	ctx.Session.disconnect(QuitClient, reason)
}

func hostFromAddr(addr interface{ String() string }) string {
	s := addr.String()
	if idx := strings.LastIndexByte(s, ':'); idx >= 0 {
		return s[:idx]
	}
	return s
}
