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

func TestIsSupportedCap(t *testing.T) {
	assert.True(t, isSupportedCap(CapSASL))
	assert.True(t, isSupportedCap(CapServerTime))
	assert.False(t, isSupportedCap("draft/unknown-cap"))
}

func TestCapSetCloneIsIndependent(t *testing.T) {
	s := CapSet{}
	s.add(CapServerTime)
	clone := s.clone()
	clone.add(CapSetname)

	assert.True(t, s.has(CapServerTime))
	assert.False(t, s.has(CapSetname), "mutating the clone must not affect the original")
	assert.True(t, clone.has(CapSetname))
}

func TestTagsForCaps(t *testing.T) {
	s := CapSet{}
	s.add(CapServerTime)
	s.add(CapLabeledResponse)

	allowed := tagsForCaps(s)
	assert.True(t, allowed["time"])
	assert.True(t, allowed["label"])
	assert.False(t, allowed["msgid"])
}

func TestSaslAdvertisement(t *testing.T) {
	value, ok := saslAdvertisement(false)
	assert.False(t, ok)
	assert.Equal(t, "", value)

	value, ok = saslAdvertisement(true)
	assert.True(t, ok)
	assert.Equal(t, "PLAIN", value)
}
