/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"sync"
	"time"
)

// whowasMax bounds the WHOWAS ring buffer (spec.md section 4.4).
const whowasMax = 128

// whowasEntry is a single retired-client record.
type whowasEntry struct {
	nick   string
	user   string
	host   string
	real   string
	quitAt time.Time
}

// whowasRing is a fixed-size ring buffer of retired clients, searched
// newest-first by WHOWAS.
type whowasRing struct {
	mu      sync.RWMutex
	entries []whowasEntry
	next    int
	full    bool
}

func newWhowasRing() *whowasRing {
	return &whowasRing{entries: make([]whowasEntry, whowasMax)}
}

func (r *whowasRing) record(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = whowasEntry{
		nick:   c.Nick(),
		user:   c.User(),
		host:   c.Host(),
		real:   c.Real(),
		quitAt: time.Now(),
	}
	r.next = (r.next + 1) % whowasMax
	if r.next == 0 {
		r.full = true
	}
}

// lookup returns up to max matching entries for nick, most recent first.
func (r *whowasRing) lookup(nick string, max int) []whowasEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := r.next
	if r.full {
		count = whowasMax
	}

	var out []whowasEntry
	for i := 0; i < count && (max <= 0 || len(out) < max); i++ {
		idx := (r.next - 1 - i + whowasMax) % whowasMax
		e := r.entries[idx]
		if equalFold(e.nick, nick) {
			out = append(out, e)
		}
	}
	return out
}
