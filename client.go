/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"bytes"
	"net"
	"sync"
	"time"
)

// RegistrationStage tracks a Client's progress through connection setup,
// per spec.md section 3.
type RegistrationStage uint8

const (
	StageFresh RegistrationStage = iota
	StagePassGiven
	StageNickGiven
	StageUserGiven
	StageNickAndUser
	StageCapNegotiating
	StageSaslInProgress
	StageRegistered
	StageQuitting
)

// User mode flags (spec.md section 3's recognized subset).
const (
	UModeInvisible byte = 'i'
	UModeOperator  byte = 'o'
	UModeWallops   byte = 'w'
	UModeServNotice byte = 's'
)

// QuitReason classifies why a session ended, for ERROR line text and log
// messages (spec.md section 4.6/7).
type QuitReason uint8

const (
	QuitClient QuitReason = iota
	QuitReadError
	QuitOutboundOverflow
	QuitRegistrationTimeout
	QuitKilled
	QuitServerShutdown
)

func (r QuitReason) String() string {
	switch r {
	case QuitReadError:
		return "Read error"
	case QuitOutboundOverflow:
		return "Excess flood"
	case QuitRegistrationTimeout:
		return "Registration timeout"
	case QuitKilled:
		return "Killed"
	case QuitServerShutdown:
		return "Server shutting down"
	default:
		return "Client quit"
	}
}

// outboundQueueLen bounds a Client's pending-lines queue (spec.md section
// 4.1). Once full the client is disconnected rather than allowed to stall
// a writer goroutine indefinitely on a slow reader.
const outboundQueueLen = 4096

// Client is the per-connection state the spec calls "Client" in section 3.
// All exported accessors are concurrency-safe; the Store (store.go) is the
// only code allowed to mutate the fields that participate in its
// invariants (nick, stage, channel membership) directly.
type Client struct {
	mu sync.RWMutex

	handle string // stable for the process lifetime; assigned by the Store

	remoteAddr net.Addr
	tls        bool

	nick    string
	user    string
	real    string
	host    string
	account string

	modes uint32 // bitset over ASCII letters, see umodeBit

	caps CapSet

	label string // label tag of the command currently executing, "" if none

	stage RegistrationStage

	awayMessage string

	operName string

	lastActivity time.Time

	channels map[foldedKey]*Channel

	outbound  chan *bytes.Buffer
	overflowed bool

	sasl *saslState

	capActive bool // true while CAP negotiation is in progress (CAP LS/REQ seen, no CAP END yet)
	passOK    bool // true once PASS has been verified (or none was required)

	whoisIdleSince time.Time

	// killer lets another handler (KILL, server shutdown) force this
	// client's own Session to run its disconnect sequence; set once by
	// newSession right after the Client is created.
	killer func(reason string)
}

// SetKiller wires the callback a forced disconnect invokes. Called once by
// newSession; not for handler use.
func (c *Client) SetKiller(fn func(reason string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.killer = fn
}

// Kill asks this client's own Session to disconnect it with reason. A
// no-op if the session hasn't wired a killer yet (not expected in
// practice, since Accept/newSession run before any command can reach it).
func (c *Client) Kill(reason string) {
	c.mu.RLock()
	fn := c.killer
	c.mu.RUnlock()
	if fn != nil {
		fn(reason)
	}
}

func umodeBit(c byte) uint32 {
	if c < 'a' || c > 'z' {
		return 0
	}
	return 1 << uint(c-'a')
}

// NewClient allocates a Client freshly accepted on addr. handle must be
// unique for the process lifetime; the Server assigns it at accept time.
func NewClient(handle string, addr net.Addr, isTLS bool) *Client {
	now := time.Now()
	return &Client{
		handle:       handle,
		remoteAddr:   addr,
		tls:          isTLS,
		stage:        StageFresh,
		lastActivity: now,
		channels:     make(map[foldedKey]*Channel),
		outbound:     make(chan *bytes.Buffer, outboundQueueLen),
		caps:         CapSet{},
	}
}

func (c *Client) Handle() string { return c.handle }

func (c *Client) Nick() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nick
}

func (c *Client) setNick(nick string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nick = nick
}

func (c *Client) User() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

func (c *Client) setUser(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = name
}

func (c *Client) Real() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.real
}

func (c *Client) setReal(real string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.real = real
}

func (c *Client) Host() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.host
}

func (c *Client) setHost(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.host = host
}

func (c *Client) Account() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account
}

func (c *Client) setAccount(account string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.account = account
}

func (c *Client) Away() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.awayMessage, c.awayMessage != ""
}

func (c *Client) setAway(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.awayMessage = msg
}

func (c *Client) Stage() RegistrationStage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stage
}

func (c *Client) setStage(s RegistrationStage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stage = s
}

func (c *Client) Registered() bool {
	return c.Stage() == StageRegistered
}

func (c *Client) CapActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capActive
}

func (c *Client) setCapActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capActive = active
}

func (c *Client) PassOK() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.passOK
}

func (c *Client) setPassOK(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passOK = ok
}

// ReadyToRegister reports whether every registration precondition bar the
// final welcome burst is satisfied (spec.md section 4.1).
func (c *Client) ReadyToRegister(passRequired bool) bool {
	if passRequired && !c.PassOK() {
		return false
	}
	if c.CapActive() {
		return false
	}
	if c.sasl != nil && c.sasl.phase != saslDone && c.sasl.phase != saslIdle {
		return false
	}
	return c.Nick() != "" && c.User() != ""
}

func (c *Client) Label() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.label, c.label != ""
}

func (c *Client) SetLabel(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.label = label
}

func (c *Client) ClearLabel() {
	c.SetLabel("")
}

// HasMode reports whether the given user mode character is set.
func (c *Client) HasMode(m byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modes&umodeBit(m) != 0
}

// SetMode sets or clears a user mode; returns false if m is not one of the
// recognized subset (spec.md section 3).
func (c *Client) SetMode(m byte, on bool) bool {
	bit := umodeBit(m)
	switch m {
	case UModeInvisible, UModeOperator, UModeWallops, UModeServNotice:
	default:
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.modes |= bit
	} else {
		c.modes &^= bit
	}
	return true
}

// Modes returns the currently-set recognized user mode characters, sorted.
func (c *Client) Modes() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []byte
	for _, m := range []byte{UModeInvisible, UModeOperator, UModeServNotice, UModeWallops} {
		if c.modes&umodeBit(m) != 0 {
			out = append(out, m)
		}
	}
	return out
}

func (c *Client) IsOperator() bool { return c.HasMode(UModeOperator) }

func (c *Client) OperName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.operName
}

func (c *Client) setOperName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.operName = name
}

// Caps returns a copy of the client's negotiated capability set.
func (c *Client) Caps() CapSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.caps.clone()
}

func (c *Client) HasCap(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.caps.has(name)
}

func (c *Client) setCaps(set CapSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.caps = set
}

func (c *Client) TLS() bool { return c.tls }

func (c *Client) RemoteAddr() net.Addr { return c.remoteAddr }

func (c *Client) touchActivity() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = time.Now()
}

func (c *Client) LastActivity() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActivity
}

func (c *Client) IdleSeconds() int64 {
	return int64(time.Since(c.LastActivity()).Seconds())
}

// Hostmask returns "<nick>!<user>@<host>" for use as a message prefix.
func (c *Client) Hostmask() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var b bytes.Buffer
	b.WriteString(c.nick)
	b.WriteByte('!')
	b.WriteString(c.user)
	b.WriteByte('@')
	b.WriteString(c.host)
	return b.String()
}

// channelCount returns how many channels this client currently belongs to.
func (c *Client) channelCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.channels)
}

func (c *Client) addChannel(ch *Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[foldKey(ch.Name())] = ch
}

func (c *Client) removeChannel(ch *Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, foldKey(ch.Name()))
}

func (c *Client) inChannel(ch *Channel) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[foldKey(ch.Name())]
	return ok
}

// Channels returns a snapshot slice of the client's current memberships.
func (c *Client) Channels() []*Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		out = append(out, ch)
	}
	return out
}

// Enqueue hands a pre-rendered line to the client's outbound queue. Returns
// false if the queue was full — the caller (Store.broadcast, session.go)
// must then transition the client to Quitting with QuitOutboundOverflow.
func (c *Client) Enqueue(buf *bytes.Buffer) bool {
	select {
	case c.outbound <- buf:
		return true
	default:
		c.mu.Lock()
		c.overflowed = true
		c.mu.Unlock()
		return false
	}
}

func (c *Client) Outbound() <-chan *bytes.Buffer { return c.outbound }

func (c *Client) Overflowed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.overflowed
}
