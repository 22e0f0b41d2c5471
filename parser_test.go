/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParser(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected error
	}{
		{
			name:     "valid message",
			input:    "PRIVMSG nick1 :I am the client",
			expected: nil,
		},
		{
			name:     "valid message with tags",
			input:    "@id=123;account=nick PRIVMSG nick1 :I am the client",
			expected: nil,
		},
		{
			name:     "too many parameters",
			input:    "PRIVMSG 1 2 3 4 5 6 7 8 9 10 11 12 13 14 15 16 :I am the client",
			expected: ErrTooManyParams,
		},
		{
			name:     "client prefixed",
			input:    ":prefix PRIVMSG nick1 :I am the client",
			expected: ErrPrefixed,
		},
		{
			name:     "too long",
			input:    strings.Repeat("a", MaxMsgLength+1),
			expected: ErrDataTooLong,
		},
		{
			name:     "all whitespace",
			input:    "   ",
			expected: ErrWhitespace,
		},
		{
			name:     "empty",
			input:    "",
			expected: ErrNotEnoughData,
		},
		{
			name:     "tag block with no space",
			input:    "@id=123",
			expected: ErrNotEnoughData,
		},
		{
			name:     "tags too long",
			input:    "@" + strings.Repeat("a=b;", MaxTagsLength) + " PRIVMSG nick1 :hi",
			expected: ErrTagsTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse(tt.input)
			assert.Equal(t, tt.expected, err)
			if tt.expected == nil {
				assert.NotNil(t, msg)
			} else {
				assert.Nil(t, msg)
			}
		})
	}
}

func TestParserTags(t *testing.T) {
	msg, err := Parse("@id=123;account=nick JOIN #chan")
	assert.NoError(t, err)
	assert.Equal(t, CmdJoin, msg.Command)
	assert.Len(t, msg.Tags, 2)
	assert.Equal(t, "id", msg.Tags[0].Key)
	assert.Equal(t, "123", msg.Tags[0].Value)
}

func TestParserTrailing(t *testing.T) {
	msg, err := Parse("PRIVMSG #chan :hello there friend")
	assert.NoError(t, err)
	assert.True(t, msg.HasTrailing)
	assert.Equal(t, "hello there friend", msg.Trailing)
	assert.Equal(t, []string{"#chan"}, msg.Params)
}
