package fixup

import (
	"bytes"
	"fmt"
)

// queueSlots is the fixed capacity of the previous-fixup cache; the
// R_PREV_FIXUP opcode class has exactly four variants, one per slot.
const queueSlots = 4

// queueEntry references a fixup's bytes inside the stream being processed.
// The range is a view, not a copy: it is valid only while the owning buffer
// is alive, which is why the queue is reset at every subspace boundary and at
// every encoder flush.
type queueEntry struct {
	start  int
	length int
}

// RelocQueue is the 4-slot most-recently-used cache of previously seen
// fixups. Repeating a cached fixup costs a single R_PREV_FIXUP byte instead
// of re-encoding the whole pattern.
type RelocQueue struct {
	entries [queueSlots]queueEntry
	live    [queueSlots]bool
}

// Reset empties all slots. Queue state must never leak across subspaces or
// across encoder flush boundaries.
func (q *RelocQueue) Reset() {
	*q = RelocQueue{}
}

// Insert pushes a fixup byte range into slot 0, shifting the rest down and
// evicting the oldest entry.
func (q *RelocQueue) Insert(start, length int) {
	copy(q.entries[1:], q.entries[:queueSlots-1])
	copy(q.live[1:], q.live[:queueSlots-1])
	q.entries[0] = queueEntry{start: start, length: length}
	q.live[0] = true
}

// Find returns the first slot whose cached bytes within buf equal b, or -1.
func (q *RelocQueue) Find(buf, b []byte) int {
	for i := 0; i < queueSlots; i++ {
		if !q.live[i] || q.entries[i].length != len(b) {
			continue
		}
		e := q.entries[i]
		if bytes.Equal(buf[e.start:e.start+e.length], b) {
			return i
		}
	}
	return -1
}

// Entry returns the byte range stored in slot i and whether it is occupied.
func (q *RelocQueue) Entry(i int) (start, length int, ok bool) {
	if i < 0 || i >= queueSlots {
		return 0, 0, false
	}
	e := q.entries[i]
	return e.start, e.length, q.live[i]
}

// Promote moves the entry at index to slot 0, shifting the entries above it
// up by one. Promote(0) is a no-op. An index outside the queue is an internal
// consistency violation (the static opcode table only yields 0..3), not a
// data error.
func (q *RelocQueue) Promote(index int) {
	if index == 0 {
		return
	}
	if index < 0 || index >= queueSlots {
		panic(fmt.Sprintf("fixup: reloc queue promote index %d out of range", index))
	}
	e := q.entries[index]
	l := q.live[index]
	copy(q.entries[1:index+1], q.entries[:index])
	copy(q.live[1:index+1], q.live[:index])
	q.entries[0] = e
	q.live[0] = l
}
