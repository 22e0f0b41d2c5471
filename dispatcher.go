/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"github.com/sirupsen/logrus"
)

// MessageContext carries one inbound Message through its handler chain,
// generalizing the teacher's router.go MessageContext with the Store and
// Session access every ircd handler needs, plus the registration-stage/
// arity/length gating the teacher's router left to individual handlers.
type MessageContext struct {
	Store   *Store
	Client  *Client
	Session *Session
	Msg     *Message

	handler string
	handled bool
	abort   bool
	err     error
}

func (c *MessageContext) Handled() { c.handled = true }

func (c *MessageContext) AbortWithError(err error) {
	c.abort = true
	c.err = err
}

// MessageHandler processes one command under an already-gated context.
type MessageHandler func(*MessageContext)

// Dispatcher routes inbound Messages to registered handlers, gating on
// RegistrationStage, operator status, and minimum parameter count before
// the handler ever runs (spec.md section 4.1's registration-stage rules
// and section 4.6's dispatcher responsibilities).
type Dispatcher struct {
	logger   *logrus.Entry
	handlers map[string]MessageHandler
}

func NewDispatcher(logger *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		logger:   logger.WithField("sub-component", "dispatcher"),
		handlers: make(map[string]MessageHandler),
	}
}

func (d *Dispatcher) Handle(command string, handler MessageHandler) {
	if command == "" {
		panic("ircd: command must not be an empty string")
	}
	if _, exists := d.handlers[command]; exists {
		panic("ircd: handler already registered for command: " + command)
	}
	d.handlers[command] = handler
}

// Dispatch routes msg, applying the gating checks before invoking the
// registered handler. The caller recycles msg.
func (d *Dispatcher) Dispatch(store *Store, c *Client, sess *Session, msg *Message) {
	log := d.logger.WithField("command", msg.Command)

	if label, ok := msg.Tag("label"); ok && c.HasCap(CapLabeledResponse) {
		c.SetLabel(label)
		sess.beginLabeled()
		defer sess.flushLabeled()
	}

	handler, exists := d.handlers[msg.Command]
	if !exists {
		sess.replyNotImplemented(msg.Command)
		log.Debug("no handler registered for command")
		return
	}

	if min, ok := commandMinStage[msg.Command]; ok {
		if c.Stage() < min {
			sess.replyNotRegistered()
			return
		}
	} else if c.Stage() != StageRegistered {
		sess.replyNotRegistered()
		return
	}

	if need, ok := minParams[msg.Command]; ok && len(msg.Params) < need {
		sess.replyNeedMoreParams(msg.Command)
		return
	}

	if operatorOnly[msg.Command] && !c.IsOperator() {
		sess.replyNoPrivileges()
		return
	}

	ctx := &MessageContext{Store: store, Client: c, Session: sess, Msg: msg, handler: msg.Command}
	handler(ctx)
	if ctx.err != nil {
		log.WithError(ctx.err).Debug("handler reported an error")
	}
}
