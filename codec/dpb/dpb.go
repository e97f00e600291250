/*
DESCRIPTION
  dpb.go provides a decoded picture buffer used by the H.264 and H.265
  parsers to hold finished pictures until they are output in picture order.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package dpb provides a decoded picture buffer ordered by insertion, from
// which pictures are output lowest picture order count first.
package dpb

import "github.com/ausocean/hwdec/hw"

// Entry is a finished picture held in the buffer.
type Entry struct {
	Buffer    hw.Buffer
	Timestamp int64
	POC       int
}

// List is a decoded picture buffer. Entries are kept in insertion order.
type List struct {
	entries []Entry
	cap     int
}

// New returns a List that reports itself full when holding more than
// capacity entries.
func New(capacity int) *List { return &List{cap: capacity} }

// Add appends e.
func (l *List) Add(e Entry) { l.entries = append(l.entries, e) }

// Len returns the number of entries held.
func (l *List) Len() int { return len(l.entries) }

// Cap returns the capacity of the list.
func (l *List) Cap() int { return l.cap }

// Overfull returns true if the list holds more entries than its capacity, in
// which case a picture must be output.
func (l *List) Overfull() bool { return len(l.entries) > l.cap }

// Flush removes and returns the entry with the lowest POC. The scan stops at
// the first zero POC found after a candidate, so pictures before an IDR are
// output before it. ok is false if the list is empty.
func (l *List) Flush() (e Entry, ok bool) {
	idx := -1
	for i, c := range l.entries {
		if idx >= 0 && c.POC == 0 {
			break
		}
		if idx < 0 || c.POC < l.entries[idx].POC {
			idx = i
		}
	}
	if idx < 0 {
		return Entry{}, false
	}
	e = l.entries[idx]
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	return e, true
}

// Find returns the buffer of the entry with the given POC, or nil.
func (l *List) Find(poc int) hw.Buffer {
	for _, e := range l.entries {
		if e.POC == poc {
			return e.Buffer
		}
	}
	return nil
}

// Entries returns the entries in insertion order. The slice must not be
// modified.
func (l *List) Entries() []Entry { return l.entries }

// Clear destroys the buffers of all entries and empties the list.
func (l *List) Clear() {
	for _, e := range l.entries {
		if e.Buffer != nil {
			e.Buffer.Destroy()
		}
	}
	l.entries = nil
}
