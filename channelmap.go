/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import "github.com/btnmasher/ircd/shared/concurrentmap"

// channelIndex is the channel-name index described in spec.md section 3,
// generalizing the teacher's old chan_map.go ChanMap into the generic
// concurrentmap.ConcurrentMap successor, keyed by the folded channel name.
type channelIndex struct {
	byName concurrentmap.ConcurrentMap[foldedKey, *Channel]
}

func newChannelIndex() *channelIndex {
	return &channelIndex{byName: concurrentmap.New[foldedKey, *Channel]()}
}

func (idx *channelIndex) get(name string) (*Channel, bool) {
	return idx.byName.Get(foldKey(name))
}

func (idx *channelIndex) getOrCreate(name string) (ch *Channel, created bool) {
	key := foldKey(name)
	if existing, ok := idx.byName.Get(key); ok {
		return existing, false
	}
	ch = NewChannel(name)
	idx.byName.Set(key, ch)
	return ch, true
}

func (idx *channelIndex) remove(name string) {
	idx.byName.Delete(foldKey(name))
}

func (idx *channelIndex) count() int {
	return idx.byName.Length()
}

func (idx *channelIndex) forEach(do func(*Channel)) {
	idx.byName.ForEach(func(_ foldedKey, ch *Channel) error {
		do(ch)
		return nil
	})
}
