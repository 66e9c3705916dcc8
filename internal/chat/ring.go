// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package chat

// recentBuffer retains the most recent broadcast messages so newly
// connected stream clients can be backfilled without a store read.
// Not safe for concurrent use; the bus guards it with its own mutex.
type recentBuffer struct {
	capacity int
	msgs     []Message
}

func newRecentBuffer(capacity int) *recentBuffer {
	return &recentBuffer{
		capacity: capacity,
		msgs:     make([]Message, 0, capacity),
	}
}

// add appends a message, evicting the oldest entry past capacity.
func (b *recentBuffer) add(m Message) {
	b.msgs = append(b.msgs, m)
	if len(b.msgs) > b.capacity {
		b.msgs = append(b.msgs[:0], b.msgs[1:]...)
	}
}

// remove drops the entry with the given ID, if present.
func (b *recentBuffer) remove(id string) {
	for i, m := range b.msgs {
		if m.ID == id {
			b.msgs = append(b.msgs[:i], b.msgs[i+1:]...)
			return
		}
	}
}

// snapshot returns a defensive copy, oldest first.
func (b *recentBuffer) snapshot() []Message {
	out := make([]Message, len(b.msgs))
	copy(out, b.msgs)
	return out
}
