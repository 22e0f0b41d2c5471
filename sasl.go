/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"encoding/base64"
	"strings"

	"github.com/emersion/go-sasl"
)

// saslPhase tracks an in-progress AUTHENTICATE exchange (spec.md section
// 4.1's "SASL" sub-state-machine: Idle -> AwaitingMechanism ->
// AwaitingPayload -> Verifying -> Success|Failure).
type saslPhase uint8

const (
	saslIdle saslPhase = iota
	saslAwaitingMechanism
	saslAwaitingPayload
	saslVerifying
	saslDone
)

// saslChunkLen is the AUTHENTICATE line payload size past which a client
// must split its base64 blob across multiple lines, terminated by a
// lone "+" once the final chunk is exactly saslChunkLen bytes.
const saslChunkLen = 400

// saslState is a Client's in-progress SASL exchange. Only the owning
// Session's read-loop goroutine (which runs its handlers) touches it, so it
// carries no mutex of its own.
type saslState struct {
	phase   saslPhase
	server  sasl.Server
	pending strings.Builder

	// account is the authcid the PLAIN callback received, captured here
	// since go-sasl doesn't hand it back from Next; set once the exchange
	// reaches the verifier, regardless of whether it succeeds.
	account string
}

// newSaslState begins a PLAIN exchange. lookup is the credential store's
// verifier, called synchronously from sasl.Server.Next.
func newSaslState(lookup func(account, password string) error) *saslState {
	s := &saslState{phase: saslAwaitingMechanism}
	s.server = sasl.NewPlainServer(func(identity, username, password string) error {
		s.account = username
		return lookup(username, password)
	})
	return s
}

// Account returns the authcid the client authenticated as, valid once feed
// has returned done with a nil error.
func (s *saslState) Account() string { return s.account }

// mechanismSupported reports whether name is an offered SASL mechanism.
// PLAIN is the only one wired to a credential store (spec.md's Open
// Question on SASL mechanisms, decided in favor of PLAIN only).
func mechanismSupported(name string) bool {
	return strings.EqualFold(name, "PLAIN")
}

// feed appends one AUTHENTICATE line's payload (already base64, "+" meaning
// empty) to the pending buffer and, once a non-continuation chunk arrives,
// decodes and runs the exchange. Returns whether the exchange concluded, and
// an error if authentication failed.
func (s *saslState) feed(line string) (done bool, err error) {
	if line == "+" {
		line = ""
	}
	s.pending.WriteString(line)
	if len(line) == saslChunkLen {
		// more continuation lines expected
		return false, nil
	}

	raw := s.pending.String()
	s.pending.Reset()

	var decoded []byte
	if raw != "" {
		decoded, err = base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return true, ErrSaslFail
		}
	}

	s.phase = saslVerifying
	_, done, err = s.server.Next(decoded)
	if err != nil {
		s.phase = saslDone
		return true, ErrSaslFail
	}
	if done {
		s.phase = saslDone
	}
	return done, nil
}
