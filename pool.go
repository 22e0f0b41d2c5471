/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"bytes"

	"github.com/btnmasher/ircd/shared/itempool"
	"github.com/btnmasher/ircd/shared/pool"
)

// MessagePoolMax sets the message pool buffer length.
const MessagePoolMax = 1000

// BufferPoolMax sets the bytes.Buffer pool length.
const BufferPoolMax = 1000

// bufWrapper adapts *bytes.Buffer to shared/pool.Resettable.
type bufWrapper struct{ *bytes.Buffer }

func (b bufWrapper) Reset() { b.Buffer.Reset() }

var msgPool = itempool.New[*Message](MessagePoolMax, func() *Message {
	return &Message{Params: make([]string, 0, 4), Tags: make([]Tag, 0, 2)}
})

var bufPoolGeneric = pool.New[bufWrapper](func() bufWrapper {
	return bufWrapper{new(bytes.Buffer)}
})

// bufPool exposes the pooled-buffer facade the rest of the package uses;
// keeping the *bytes.Buffer-returning signature avoids threading the
// wrapper type through every caller.
type messageBufferPool struct{}

func (messageBufferPool) New() *bytes.Buffer {
	return bufPoolGeneric.New().Buffer
}

func (messageBufferPool) Recycle(b *bytes.Buffer) {
	bufPoolGeneric.Recycle(bufWrapper{b})
}

var bufPool messageBufferPool

// newMessage takes a Message from the pool with Source pre-filled to source
// (the server name or a client hostmask), mirroring the teacher's
// Conn.newMessage helper.
func newMessage(source string) *Message {
	msg := msgPool.New()
	msg.Source = source
	return msg
}
