/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func plainPayload(authzid, authcid, password string) string {
	raw := authzid + "\x00" + authcid + "\x00" + password
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func TestMechanismSupported(t *testing.T) {
	assert.True(t, mechanismSupported("PLAIN"))
	assert.True(t, mechanismSupported("plain"))
	assert.False(t, mechanismSupported("SCRAM-SHA-256"))
}

func TestSaslFeedSuccess(t *testing.T) {
	s := newSaslState(func(account, password string) error {
		if account == "alice" && password == "hunter2" {
			return nil
		}
		return ErrPasswdMismatch
	})

	done, err := s.feed(plainPayload("", "alice", "hunter2"))
	assert.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, saslDone, s.phase)
	assert.Equal(t, "alice", s.Account(), "authcid must be recoverable for Client.account")
}

func TestSaslFeedFailure(t *testing.T) {
	s := newSaslState(func(account, password string) error {
		return ErrPasswdMismatch
	})

	done, err := s.feed(plainPayload("", "alice", "wrong"))
	assert.Equal(t, ErrSaslFail, err)
	assert.True(t, done)
}

func TestSaslFeedBadBase64(t *testing.T) {
	s := newSaslState(func(account, password string) error { return nil })
	done, err := s.feed("not valid base64!!")
	assert.Equal(t, ErrSaslFail, err)
	assert.True(t, done)
}
