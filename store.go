/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"bufio"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btnmasher/random"
)

// Store is the spec's "State Store": one coarse mutex serializing the
// cross-entity mutations its own methods perform (register/rename/join/
// part/quit/kick), generalizing the teacher's scattered Server/UserMap/
// ChanMap/ConnMap combination into one serialization point. The mutex is
// taken inside each Store method and released before it returns; it is not
// held across a whole command, so the replies and broadcasts a handler sends
// after a Store call are not serialized with other sessions' commands.
//
// Limits, MOTD, and the oper table are held behind atomic pointers rather
// than the coarse lock so REHASH can swap them without contending with
// in-flight command handling.
type Store struct {
	mu sync.Mutex

	clients  *clientIndex
	channels *channelIndex
	whowas   *whowasRing

	limits atomic.Pointer[Limits]
	motd   atomic.Pointer[[]string]
	opers  atomic.Pointer[map[string]string]

	isupport *isupport

	domain      string
	orgName     string
	orgLocation string
	orgMail     string
	createdAt   time.Time

	defaultChanModes string

	handleCounter uint64
}

// NewStore builds a Store from cfg and reads the configured MOTD file.
func NewStore(cfg *Config) *Store {
	s := &Store{
		clients:          newClientIndex(),
		channels:         newChannelIndex(),
		whowas:           newWhowasRing(),
		domain:           cfg.Domain,
		orgName:          cfg.OrgName,
		orgLocation:      cfg.OrgLocation,
		orgMail:          cfg.OrgMail,
		createdAt:        time.Now(),
		defaultChanModes: cfg.DefaultChanMode,
		isupport:         newISupport(cfg.limits()),
	}
	s.limits.Store(cfg.limits())
	opers := operMap(cfg.Opers)
	s.opers.Store(&opers)
	motd, _ := readMOTD(cfg.MOTDFile)
	s.motd.Store(&motd)
	s.isupport.setNetwork(cfg.Domain)
	return s
}

func operMap(opers []OperConfig) map[string]string {
	m := make(map[string]string, len(opers))
	for _, o := range opers {
		m[o.Name] = o.Password
	}
	return m
}

func readMOTD(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// Rehash reloads the mutable limits/MOTD/oper table from cfg atomically,
// per spec.md section 5's REHASH semantics: in-flight sessions are
// unaffected except that subsequent commands see the new snapshot.
func (s *Store) Rehash(cfg *Config) {
	s.limits.Store(cfg.limits())
	s.isupport.rebuild(cfg.limits())
	opers := operMap(cfg.Opers)
	s.opers.Store(&opers)
	motd, _ := readMOTD(cfg.MOTDFile)
	s.motd.Store(&motd)
}

func (s *Store) Limits() *Limits { return s.limits.Load() }

func (s *Store) MOTD() []string {
	m := s.motd.Load()
	if m == nil {
		return nil
	}
	return *m
}

func (s *Store) Domain() string { return s.domain }
func (s *Store) CreatedAt() time.Time { return s.createdAt }
func (s *Store) ISupportLines() []string { return s.isupport.lines() }
func (s *Store) OrgInfo() (name, location, mail string) {
	return s.orgName, s.orgLocation, s.orgMail
}

// OperPassword returns the configured password for name and whether an
// entry exists.
func (s *Store) OperPassword(name string) (string, bool) {
	opers := *s.opers.Load()
	pass, ok := opers[name]
	return pass, ok
}

// nextHandle issues a process-lifetime-unique client handle.
func (s *Store) nextHandle() string {
	n := atomic.AddUint64(&s.handleCounter, 1)
	return random.String(8) + "-" + itoa(int(n))
}

// Accept registers a freshly dialed connection and returns its Client,
// indexed by handle only (no nickname yet — NICK/USER claim that).
func (s *Store) Accept(addr net.Addr, isTLS bool) *Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := NewClient(s.nextHandle(), addr, isTLS)
	s.clients.addHandle(c)
	return c
}

// ClaimNick attempts to reserve nick for c. Returns ErrNickInUse if taken
// by a different client, ErrErroneousNick if syntactically invalid.
func (s *Store) ClaimNick(c *Client, nick string) error {
	limits := s.Limits()
	if !validNickname(nick, limits.NickLen) {
		return ErrErroneousNick
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.clients.byNickname(nick); ok && existing != c {
		return ErrNickInUse
	}

	if old := c.Nick(); old != "" {
		if !s.clients.renameNickname(c, old, nick) {
			return ErrNickInUse
		}
		for _, ch := range c.Channels() {
			ch.renameMember(old, nick, c)
		}
	} else {
		if !s.clients.reserveNickname(c, nick) {
			return ErrNickInUse
		}
	}
	c.setNick(nick)
	return nil
}

// FindNick looks up a registered client by nickname.
func (s *Store) FindNick(nick string) (*Client, bool) {
	return s.clients.byNickname(nick)
}

// FindChannel looks up a channel by name without creating it.
func (s *Store) FindChannel(name string) (*Channel, bool) {
	return s.channels.get(name)
}

// Join admits c to the named channel, creating it (and making c its first
// operator) if it does not exist. Returns the channel, whether it was just
// created, and an error for any join-restriction violation (spec.md
// section 4.2's +i/+l/+k/ban checks).
func (s *Store) Join(c *Client, name, key string) (*Channel, bool, error) {
	if !validChannelName(name, s.Limits().ChannelLen) {
		return nil, false, ErrNoSuchChan
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ch, created := s.channels.getOrCreate(name)

	if created {
		for _, m := range []byte(strings.TrimPrefix(s.defaultChanModes, "+")) {
			ch.ApplyMode(m, true, "")
		}
	} else {
		if ch.HasMember(c.Nick()) {
			return ch, false, nil
		}
		if ch.banned(c.Hostmask()) && !ch.isInvited(c.Nick()) {
			return nil, false, ErrBannedFromChan
		}
		if ch.HasMode(CModeInviteOnly) && !ch.isInvited(c.Nick()) {
			return nil, false, ErrInviteOnlyChan
		}
		if ch.HasMode(CModeKey) && ch.Key() != key {
			return nil, false, ErrBadChannelKey
		}
		if limit := ch.Limit(); limit > 0 && ch.MemberCount() >= limit {
			return nil, false, ErrChannelIsFull
		}
	}

	r := rankNone
	if created {
		r = rankOperator
	}
	ch.addMember(c, r)
	c.addChannel(ch)
	return ch, created, nil
}

// Part removes c from ch, destroying ch if it is now empty (spec.md
// section 3's "destroyed when its last member leaves" lifecycle rule).
func (s *Store) Part(c *Client, ch *Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch.removeMember(c)
	c.removeChannel(ch)
	if ch.Empty() {
		s.channels.remove(ch.Name())
	}
}

// Kick is Part on behalf of another client (the kicker), with no
// self-removal bookkeeping beyond what Part already does.
func (s *Store) Kick(target *Client, ch *Channel) {
	s.Part(target, ch)
}

// Quit removes c from every channel it is in and from the nickname and
// handle indices, recording it in the WHOWAS ring. Returns the set of
// channels c was a member of, for the caller to broadcast QUIT into.
func (s *Store) Quit(c *Client) []*Channel {
	s.mu.Lock()
	defer s.mu.Unlock()

	channels := c.Channels()
	for _, ch := range channels {
		ch.removeMember(c)
		if ch.Empty() {
			s.channels.remove(ch.Name())
		}
	}

	if nick := c.Nick(); nick != "" {
		s.clients.releaseNickname(nick)
		s.whowas.record(c)
	}
	s.clients.removeHandle(c)
	return channels
}

// Whowas looks up retired clients by nickname.
func (s *Store) Whowas(nick string, max int) []whowasEntry {
	return s.whowas.lookup(nick, max)
}

// ClientCount and ChannelCount back LUSERS.
func (s *Store) ClientCount() int  { return s.clients.count() }
func (s *Store) ChannelCount() int { return s.channels.count() }

func (s *Store) ForEachClient(do func(*Client))   { s.clients.forEach(do) }
func (s *Store) ForEachChannel(do func(*Channel)) { s.channels.forEach(do) }

// validChannelName reports whether name is a syntactically valid channel
// name under the configured length cap (spec.md section 3: begins with '#'
// or another configured prefix char; here only '#' is supported).
func validChannelName(name string, maxLen int) bool {
	if len(name) < 2 || len(name) > maxLen {
		return false
	}
	if name[0] != '#' {
		return false
	}
	for i := 1; i < len(name); i++ {
		switch name[i] {
		case ' ', ',', '\a', ':':
			return false
		}
	}
	return true
}
