/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

// Kind classifies an Error for the purposes of connection handling: whether
// the client stays connected, gets disconnected, or the failure is fatal to
// the server itself.
type Kind uint8

const (
	KindProtocol Kind = iota
	KindPermission
	KindResource
	KindExternal
	KindConfig
	KindFatal
)

// Error is a workaround to allow for immutable error strings
// which satisfy the error interface.
type Error string

func (err Error) Error() string {
	return string(err)
}

func (err Error) String() string {
	return string(err)
}

// Immutable error strings.
const (
	ErrNotEnoughData  Error = "did not receive enough data from the client"
	ErrDataTooLong    Error = "received data from the client is too long"
	ErrTagsTooLong    Error = "received tags from the client are too long"
	ErrWhitespace     Error = "all whitespace"
	ErrPrefixed       Error = "prefixed message from client"
	ErrInvalidCapCmd  Error = "invalid CAP command"
	ErrMissingParams  Error = "missing parameters"
	ErrTooManyParams  Error = "too many parameters"
	ErrUserInUse      Error = "this username is currently in use"
	ErrUserAlreadySet Error = "you have already registered"
	ErrNickInUse      Error = "nickname is already in use"
	ErrErroneousNick  Error = "erroneous nickname"
	ErrNickAlreadySet Error = "you already have that nickname"
	ErrNoNickGiven    Error = "no nickname given"
	ErrNotImplemented Error = "unknown command"
	ErrNotRegistered  Error = "you have not registered"
	ErrAlreadyRegistered Error = "you may not reregister"
	ErrPasswdMismatch Error = "password incorrect"
	ErrNoSuchNick     Error = "no such nick/channel"
	ErrNoSuchChan     Error = "no such channel"
	ErrNoSuchServer   Error = "no such server"
	ErrCannotSendToChan Error = "cannot send to channel"
	ErrNoTextToSend   Error = "no text to send"
	ErrTooManyChannels Error = "you have joined too many channels"
	ErrNotOnChannel   Error = "you're not on that channel"
	ErrUserNotInChannel Error = "they aren't on that channel"
	ErrUserOnChannel  Error = "is already on channel"
	ErrChannelIsFull  Error = "cannot join channel (+l)"
	ErrInviteOnlyChan Error = "cannot join channel (+i)"
	ErrBannedFromChan Error = "cannot join channel (+b)"
	ErrBadChannelKey  Error = "cannot join channel (+k)"
	ErrNoSuchBan      Error = "no such ban mask"
	ErrChanOpPrivsNeeded Error = "you're not a channel operator"
	ErrNoPrivileges   Error = "permission denied - you're not an IRC operator"
	ErrNoOperHost     Error = "no O-lines for your host"
	ErrUnknownMode    Error = "unknown mode"
	ErrUnknownUmodeFlag Error = "unknown MODE flag"
	ErrUsersDontMatch Error = "can't change mode for other users"
	ErrInsuffPerms    Error = "insufficient permissions"
	ErrModeAlreadySet Error = "mode already set"
	ErrModeNotSet     Error = "mode is not set"
	ErrRestricted     Error = "your connection is restricted"
	ErrSaslFail       Error = "SASL authentication failed"
	ErrSaslAborted    Error = "SASL authentication aborted"
	ErrSaslAlready    Error = "you have already authenticated using SASL"
	ErrSaslTooLong    Error = "SASL message too long"
	ErrRegistrationTimeout Error = "registration timeout"
	ErrOutboundOverflow    Error = "outbound queue overflow"
	ErrCredentialStoreDown Error = "credential store unavailable"
)
