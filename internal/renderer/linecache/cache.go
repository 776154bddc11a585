// Package linecache maintains the local mirror of the backend's buffer: a
// versioned, partially populated view of the visible and recently visible
// lines. The backend is the single source of truth; the cache is only ever
// mutated by replaying the declarative update scripts it sends.
package linecache

// StyleSpan is one styled range within a line, in absolute byte offsets
// after wire decoding (the wire form is delta-encoded, see DecodeSpans).
type StyleSpan struct {
	// ID indexes the style table. ID 0 is the selection highlight.
	ID uint64

	// Start is the byte offset of the span within the line.
	Start uint64

	// Len is the span length in bytes.
	Len uint64
}

// Line is one populated slot: immutable text (including the trailing newline
// when present), style spans, and zero or more caret offsets.
type Line struct {
	Text    string
	Styles  []StyleSpan
	Cursors []uint64
}

// HasCursor reports whether any caret sits on this line.
func (l *Line) HasCursor() bool {
	return len(l.Cursors) > 0
}

// Cache is the ordered slot sequence mirroring the backend buffer. A nil
// slot is known to exist but its content has not been fetched (invalid).
//
// The cache is exclusively owned by its view and only touched from the
// consumer goroutine, so it carries no lock. All mutation goes through Apply;
// there are no in-place edits.
type Cache struct {
	slots []*Line
}

// New returns an empty cache (height 0, nothing known yet).
func New() *Cache {
	return &Cache{}
}

// Height returns the total line count of the buffer as last reported by the
// backend, populated or not.
func (c *Cache) Height() uint64 {
	return uint64(len(c.slots))
}

// Line returns the populated line at index i, or nil if the slot is invalid
// or i is out of range.
func (c *Cache) Line(i uint64) *Line {
	if i >= uint64(len(c.slots)) {
		return nil
	}
	return c.slots[i]
}

// Missing reports whether any slot in [first, last) is invalid. Indices past
// the cache height are ignored; the synchronizer clamps before fetching.
func (c *Cache) Missing(first, last uint64) bool {
	if last > uint64(len(c.slots)) {
		last = uint64(len(c.slots))
	}
	for i := first; i < last; i++ {
		if c.slots[i] == nil {
			return true
		}
	}
	return false
}

// InvalidateAll marks every slot invalid while preserving the height. Used
// when the transport drops and the mirror can no longer be trusted.
func (c *Cache) InvalidateAll() {
	for i := range c.slots {
		c.slots[i] = nil
	}
}
