/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import "strings"

// Parse takes one IRC protocol line (CRLF already stripped by the Framer)
// and returns the Message it describes. Extends the teacher's original
// Parse to understand the IRCv3 message-tags prefix and multi-parameter
// middles, per spec.md section 2.1.
func Parse(data string) (*Message, error) {
	if len(data) == 0 {
		return nil, ErrNotEnoughData
	}
	if data[0] != '@' && len(data) > MaxMsgLength {
		return nil, ErrDataTooLong
	}

	data = strings.TrimRight(data, " ")
	if len(data) == 0 {
		return nil, ErrWhitespace
	}

	msg := msgPool.New()

	if data[0] == '@' {
		sp := strings.IndexByte(data, ' ')
		if sp < 0 {
			msgPool.Recycle(msg)
			return nil, ErrNotEnoughData
		}
		tagBlob := data[1:sp]
		if len(tagBlob) > MaxTagsLength {
			msgPool.Recycle(msg)
			return nil, ErrTagsTooLong
		}
		for _, kv := range strings.Split(tagBlob, ";") {
			if kv == "" {
				continue
			}
			if eq := strings.IndexByte(kv, '='); eq >= 0 {
				msg.Tags = append(msg.Tags, Tag{Key: kv[:eq], Value: unescapeTagValue(kv[eq+1:])})
			} else {
				msg.Tags = append(msg.Tags, Tag{Key: kv})
			}
		}
		data = strings.TrimLeft(data[sp+1:], " ")
		if len(data) > MaxMsgLength {
			msgPool.Recycle(msg)
			return nil, ErrDataTooLong
		}
	}

	if len(data) == 0 {
		msgPool.Recycle(msg)
		return nil, ErrWhitespace
	}

	if data[0] == ':' {
		// Clients shouldn't be sending prefixed messages; reject rather
		// than silently trust a claimed identity.
		msgPool.Recycle(msg)
		return nil, ErrPrefixed
	}

	rest := data
	var trailing string
	hasTrailing := false
	if idx := strings.Index(rest, " :"); idx >= 0 {
		trailing = rest[idx+2:]
		hasTrailing = true
		rest = rest[:idx]
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		msgPool.Recycle(msg)
		return nil, ErrNotEnoughData
	}

	msg.Command = strings.ToUpper(fields[0])
	msg.Params = append(msg.Params, fields[1:]...)

	if len(msg.Params) > MaxMsgParams {
		msgPool.Recycle(msg)
		return nil, ErrTooManyParams
	}

	if hasTrailing {
		msg.Trailing = trailing
		msg.HasTrailing = true
	}

	return msg, nil
}
