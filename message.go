/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"bytes"
	"sort"
	"strings"
	"time"

	"github.com/btnmasher/random"
)

// String constants for constructing a message line.
const (
	space = " "
	crlf  = "\r\n"
	colon = ":"
	atSgn = "@"
	semi  = ";"
	eq    = "="
	padNum = "%03d"
)

// Tag is a single IRCv3 message-tag key/value pair. Value is empty for
// valueless tags (e.g. "+draft/reply").
type Tag struct {
	Key   string
	Value string
}

// Message is the in-memory representation of one IRC protocol line, the
// unit the Framer/Tokenizer (spec.md section 2.1) produces from inbound
// bytes and the Reply Builder (section 4.7) renders back to bytes.
//
//	<message>  = ['@' <tags> <SPACE>] [':' <source> <SPACE>] <command> <params> <crlf>
type Message struct {
	Tags     []Tag
	Source   string   // prefix: nick!user@host or server name; empty for client-originated lines
	Command  string   // IRC command word; empty when Code is set
	Code     uint16   // numeric reply code; 0 means "use Command instead"
	Params   []string // middle parameters, in order
	Trailing string   // the last, colon-prefixed parameter; "" and Params[len-1]=="" are distinct only via HasTrailing
	HasTrailing bool
}

// Scrub resets a Message to its zero value so it is safe to hand back to a
// pool. Satisfies itempool.ScrubbableItem.
func (msg *Message) Scrub() {
	msg.Tags = msg.Tags[:0]
	msg.Source = ""
	msg.Command = ""
	msg.Code = 0
	msg.Params = msg.Params[:0]
	msg.Trailing = ""
	msg.HasTrailing = false
}

// Tag returns the value of the named tag and whether it was present.
func (msg *Message) Tag(key string) (string, bool) {
	for _, t := range msg.Tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// SetTag sets (or replaces) a tag value.
func (msg *Message) SetTag(key, value string) {
	for i := range msg.Tags {
		if msg.Tags[i].Key == key {
			msg.Tags[i].Value = value
			return
		}
	}
	msg.Tags = append(msg.Tags, Tag{Key: key, Value: value})
}

// stampEvent attaches the server-time, msgid, and account tags spec.md
// section 4.3 describes to a message relaying an event from src. Recipients
// that never negotiated server-time/message-ids/account-notify or
// extended-join simply never see these, since tagsForCaps filters the
// rendered tag set per recipient; stamping unconditionally here keeps that
// filtering the single place capability gating happens.
func stampEvent(msg *Message, src *Client) {
	msg.SetTag("time", time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	msg.SetTag("msgid", random.String(12))
	if account := src.Account(); account != "" {
		msg.SetTag("account", account)
	}
}

// WithTrailing sets Trailing/HasTrailing in one call; convenience for
// handlers that build a reply inline.
func (msg *Message) WithTrailing(s string) *Message {
	msg.Trailing = s
	msg.HasTrailing = true
	return msg
}

// render writes the wire form of the message into buf, filtering tags to
// those present in allowedTags (nil means "all tags"); a "+" entry admits
// every client-only tag (key starting with '+'). This is the single
// low-level formatter; callers pass the recipient's filter, usually built
// by tagsForCaps.
func (msg *Message) render(buf *bytes.Buffer, allowedTags map[string]bool) {
	if len(msg.Tags) > 0 {
		wrote := false
		for _, t := range msg.Tags {
			if allowedTags != nil && !allowedTags[t.Key] && !(allowedTags["+"] && strings.HasPrefix(t.Key, "+")) {
				continue
			}
			if !wrote {
				buf.WriteString(atSgn)
				wrote = true
			} else {
				buf.WriteString(semi)
			}
			buf.WriteString(t.Key)
			if t.Value != "" {
				buf.WriteString(eq)
				buf.WriteString(escapeTagValue(t.Value))
			}
		}
		if wrote {
			buf.WriteString(space)
		}
	}

	if msg.Source != "" {
		buf.WriteString(colon)
		buf.WriteString(msg.Source)
		buf.WriteString(space)
	}

	if msg.Code > 0 {
		buf.WriteString(padNumFormat(msg.Code))
	} else {
		buf.WriteString(msg.Command)
	}

	for _, p := range msg.Params {
		buf.WriteString(space)
		buf.WriteString(p)
	}

	if msg.HasTrailing {
		buf.WriteString(space)
		buf.WriteString(colon)
		buf.WriteString(msg.Trailing)
	}

	buf.WriteString(crlf)
}

// RenderBuffer renders msg into a pooled buffer containing no tags the
// recipient did not negotiate; pass nil to render every tag.
func (msg *Message) RenderBuffer(allowedTags map[string]bool) *bytes.Buffer {
	buf := bufPool.New()
	msg.render(buf, allowedTags)
	return buf
}

// String renders msg with every tag present; satisfies fmt.Stringer.
func (msg *Message) String() string {
	var b bytes.Buffer
	msg.render(&b, nil)
	return strings.TrimSuffix(b.String(), crlf)
}

func padNumFormat(code uint16) string {
	// Numerics are always exactly 3 digits.
	digits := [3]byte{'0', '0', '0'}
	for i := 2; i >= 0 && code > 0; i-- {
		digits[i] = byte('0' + code%10)
		code /= 10
	}
	return string(digits[:])
}

func escapeTagValue(v string) string {
	if !strings.ContainsAny(v, ";= \\\r\n") {
		return v
	}
	var b strings.Builder
	for _, r := range v {
		switch r {
		case ';':
			b.WriteString(`\:`)
		case ' ':
			b.WriteString(`\s`)
		case '\\':
			b.WriteString(`\\`)
		case '\r':
			b.WriteString(`\r`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func unescapeTagValue(v string) string {
	if !strings.ContainsRune(v, '\\') {
		return v
	}
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		if v[i] != '\\' || i == len(v)-1 {
			b.WriteByte(v[i])
			continue
		}
		i++
		switch v[i] {
		case ':':
			b.WriteByte(';')
		case 's':
			b.WriteByte(' ')
		case '\\':
			b.WriteByte('\\')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		default:
			b.WriteByte(v[i])
		}
	}
	return b.String()
}

// sortedTagKeys is a small test/debug helper for deterministic comparisons.
func sortedTagKeys(tags []Tag) []string {
	keys := make([]string, len(tags))
	for i, t := range tags {
		keys[i] = t.Key
	}
	sort.Strings(keys)
	return keys
}
