/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldKey(t *testing.T) {
	assert.Equal(t, foldedKey("nick{guy}"), foldKey("NICK{GUY}"))
	assert.Equal(t, foldedKey("a|b"), foldKey("A|B"))
}

func TestEqualFold(t *testing.T) {
	assert.True(t, equalFold("Nick", "nick"))
	assert.True(t, equalFold("Nick{away}", "NICK[AWAY]"))
	assert.False(t, equalFold("Nick", "Nick2"))
}

func TestValidNickname(t *testing.T) {
	assert.True(t, validNickname("btnmasher", 16))
	assert.True(t, validNickname("[bot]_99", 16))
	assert.False(t, validNickname("9bot", 16))
	assert.False(t, validNickname("", 16))
	assert.False(t, validNickname("waytoolongofanickname", 9))
}
