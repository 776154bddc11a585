package linecache

import (
	"errors"

	"github.com/tidwall/gjson"
)

// Protocol inconsistency errors. None of them are fatal: the reducer falls
// back to invalid slots for the affected range, the caller logs, and the
// viewport synchronizer re-requests the lines on the next draw.
var (
	// ErrScriptOverrun indicates an op referenced slots past the end of the
	// previous cache.
	ErrScriptOverrun = errors.New("linecache: update script overran previous cache")

	// ErrScriptLeftover indicates the script ended without consuming the
	// previous cache exactly.
	ErrScriptLeftover = errors.New("linecache: update script left previous cache unconsumed")

	// ErrRestyleInvalidSlot indicates a style-only update targeted a slot
	// whose content was never fetched.
	ErrRestyleInvalidSlot = errors.New("linecache: style update targeted an invalid slot")

	// ErrUnknownOp indicates an op kind outside the protocol's closed set.
	ErrUnknownOp = errors.New("linecache: unknown update op")
)

// OpKind enumerates the diff script operations.
type OpKind int

const (
	// OpCopy takes the next N slots verbatim from the previous cache.
	OpCopy OpKind = iota

	// OpSkip drops the next N slots of the previous cache.
	OpSkip

	// OpInvalidate appends N invalid slots.
	OpInvalidate

	// OpInsert appends literal populated lines.
	OpInsert

	// OpUpdate re-emits the next N slots with text preserved but styles and
	// carets replaced.
	OpUpdate

	opKindCount
)

// String returns the wire name of the op.
func (k OpKind) String() string {
	switch k {
	case OpCopy:
		return "copy"
	case OpSkip:
		return "skip"
	case OpInvalidate:
		return "invalidate"
	case OpInsert:
		return "ins"
	case OpUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Op is one operation of a diff script.
type Op struct {
	Kind OpKind

	// N is the slot count for copy, skip, invalidate and update.
	N uint64

	// Lines carries literal lines for insert, and restyle data (styles and
	// carets, no text) for update.
	Lines []*Line
}

// Apply replays a diff script against the cache, replacing the entire slot
// sequence. There is no partial application: even when the script is
// inconsistent the cache ends up in a well-defined state, with the
// questionable ranges invalid, and the returned error says what was wrong.
//
// Apply itself triggers no fetches; deciding what to do about missing lines
// is the synchronizer's job.
func (c *Cache) Apply(ops []Op) error {
	old := c.slots
	oldLen := uint64(len(old))
	oldIdx := uint64(0)

	out := make([]*Line, 0, len(old))
	var errs []error

	for _, op := range ops {
		switch op.Kind {
		case OpCopy:
			n := op.N
			if oldIdx+n > oldLen {
				avail := oldLen - oldIdx
				out = append(out, old[oldIdx:oldIdx+avail]...)
				for i := avail; i < n; i++ {
					out = append(out, nil)
				}
				oldIdx = oldLen
				errs = append(errs, ErrScriptOverrun)
				continue
			}
			out = append(out, old[oldIdx:oldIdx+n]...)
			oldIdx += n

		case OpSkip:
			oldIdx += op.N
			if oldIdx > oldLen {
				oldIdx = oldLen
				errs = append(errs, ErrScriptOverrun)
			}

		case OpInvalidate:
			for i := uint64(0); i < op.N; i++ {
				out = append(out, nil)
			}

		case OpInsert:
			out = append(out, op.Lines...)

		case OpUpdate:
			for i := uint64(0); i < op.N; i++ {
				if oldIdx >= oldLen {
					out = append(out, nil)
					errs = append(errs, ErrScriptOverrun)
					continue
				}
				prev := old[oldIdx]
				oldIdx++

				if prev == nil {
					// Restyle data for a line we never fetched cannot be
					// applied; the slot stays invalid.
					out = append(out, nil)
					errs = append(errs, ErrRestyleInvalidSlot)
					continue
				}

				restyled := &Line{Text: prev.Text}
				if i < uint64(len(op.Lines)) && op.Lines[i] != nil {
					restyled.Styles = clampSpans(op.Lines[i].Styles, uint64(len(prev.Text)))
					restyled.Cursors = clampCursors(op.Lines[i].Cursors, uint64(len(prev.Text)))
				}
				out = append(out, restyled)
			}

		default:
			errs = append(errs, ErrUnknownOp)
		}
	}

	if oldIdx != oldLen {
		errs = append(errs, ErrScriptLeftover)
	}

	c.slots = out
	return errors.Join(errs...)
}

// ParseOps decodes the "ops" array of an update notification.
func ParseOps(update gjson.Result) []Op {
	raw := update.Get("ops").Array()
	ops := make([]Op, 0, len(raw))

	for _, entry := range raw {
		var op Op
		switch entry.Get("op").String() {
		case "copy":
			op.Kind = OpCopy
		case "skip":
			op.Kind = OpSkip
		case "invalidate":
			op.Kind = OpInvalidate
		case "ins":
			op.Kind = OpInsert
		case "update":
			op.Kind = OpUpdate
		default:
			op.Kind = opKindCount
		}

		op.N = entry.Get("n").Uint()
		if lines := entry.Get("lines"); lines.Exists() {
			for _, l := range lines.Array() {
				op.Lines = append(op.Lines, parseLine(l, op.Kind == OpInsert))
			}
		}
		ops = append(ops, op)
	}
	return ops
}

// parseLine decodes one wire line. For insert ops spans are clamped against
// the line's own text; for update ops the text arrives later (it is taken
// from the old slot), so clamping is deferred to Apply.
func parseLine(entry gjson.Result, clamp bool) *Line {
	line := &Line{Text: entry.Get("text").String()}
	line.Styles = DecodeSpans(entry.Get("styles"))
	for _, c := range entry.Get("cursor").Array() {
		line.Cursors = append(line.Cursors, c.Uint())
	}
	if clamp {
		lineLen := uint64(len(line.Text))
		line.Styles = clampSpans(line.Styles, lineLen)
		line.Cursors = clampCursors(line.Cursors, lineLen)
	}
	return line
}

// DecodeSpans turns the wire's flat delta-encoded triples
// [rel_start, len, style_id, ...] into absolute spans. Each rel_start is
// relative to the end of the previous span and may be negative. Truncated
// trailing triples are dropped.
func DecodeSpans(styles gjson.Result) []StyleSpan {
	raw := styles.Array()
	spans := make([]StyleSpan, 0, len(raw)/3)

	pos := int64(0)
	for i := 0; i+2 < len(raw); i += 3 {
		start := pos + raw[i].Int()
		if start < 0 {
			start = 0
		}
		length := raw[i+1].Int()
		if length < 0 {
			length = 0
		}
		spans = append(spans, StyleSpan{
			ID:    raw[i+2].Uint(),
			Start: uint64(start),
			Len:   uint64(length),
		})
		pos = start + length
	}
	return spans
}

// clampSpans bounds spans to the line length. A slightly malformed span list
// must not take rendering down with it.
func clampSpans(spans []StyleSpan, lineLen uint64) []StyleSpan {
	out := make([]StyleSpan, 0, len(spans))
	for _, s := range spans {
		if s.Start > lineLen {
			s.Start = lineLen
		}
		if s.Start+s.Len > lineLen {
			s.Len = lineLen - s.Start
		}
		if s.Len == 0 {
			continue
		}
		out = append(out, s)
	}
	return out
}

// clampCursors bounds caret offsets to [0, lineLen].
func clampCursors(cursors []uint64, lineLen uint64) []uint64 {
	out := make([]uint64, 0, len(cursors))
	for _, c := range cursors {
		if c > lineLen {
			c = lineLen
		}
		out = append(out, c)
	}
	return out
}
