/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import "github.com/btnmasher/ircd/shared/concurrentmap"

// clientIndex is the nickname -> *Client index described in spec.md
// section 3 ("State Store holds ... the mapping nickname -> Client
// (case-folded)"). It generalizes the teacher's old conn_map.go/UserMap
// pair into the single generic concurrentmap.ConcurrentMap successor
// already present in the teacher's shared/ package, keyed by the folded
// nickname.
type clientIndex struct {
	byNick concurrentmap.ConcurrentMap[foldedKey, *Client]
	byHandle concurrentmap.ConcurrentMap[string, *Client]
}

func newClientIndex() *clientIndex {
	return &clientIndex{
		byNick:   concurrentmap.New[foldedKey, *Client](),
		byHandle: concurrentmap.New[string, *Client](),
	}
}

func (idx *clientIndex) addHandle(c *Client) {
	idx.byHandle.Set(c.Handle(), c)
}

func (idx *clientIndex) removeHandle(c *Client) {
	idx.byHandle.Delete(c.Handle())
}

func (idx *clientIndex) byNickname(nick string) (*Client, bool) {
	return idx.byNick.Get(foldKey(nick))
}

func (idx *clientIndex) nicknameTaken(nick string) bool {
	return idx.byNick.Exists(foldKey(nick))
}

func (idx *clientIndex) reserveNickname(c *Client, nick string) bool {
	key := foldKey(nick)
	if idx.byNick.Exists(key) {
		return false
	}
	idx.byNick.Set(key, c)
	return true
}

func (idx *clientIndex) releaseNickname(nick string) {
	idx.byNick.Delete(foldKey(nick))
}

// renameNickname atomically swaps the index entry from oldNick to newNick.
// Returns false if newNick is already taken by a different client.
func (idx *clientIndex) renameNickname(c *Client, oldNick, newNick string) bool {
	newKey := foldKey(newNick)
	if existing, ok := idx.byNick.Get(newKey); ok && existing != c {
		return false
	}
	idx.byNick.Delete(foldKey(oldNick))
	idx.byNick.Set(newKey, c)
	return true
}

func (idx *clientIndex) count() int {
	return idx.byHandle.Length()
}

func (idx *clientIndex) forEach(do func(*Client)) {
	idx.byHandle.ForEach(func(_ string, c *Client) error {
		do(c)
		return nil
	})
}
