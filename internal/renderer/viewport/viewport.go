// Package viewport derives the needed line range from scroll position and
// font metrics, asks the backend for lines the mirror is missing, and keeps
// the backend informed of what is visible so it can prioritize and evict its
// own buffer cache.
package viewport

import (
	"math"

	"github.com/glintedit/glint/internal/renderer/linecache"
)

// Metrics are the font measurements the pixel math depends on, in px.
type Metrics struct {
	Width   float64 // advance width of one cell
	Height  float64 // line height
	Ascent  float64
	Descent float64
}

// Requester issues fire-and-forget line-range messages to the backend. Both
// calls are best-effort hints: failures are not retried, since missing lines
// are re-requested on the next sync anyway.
type Requester interface {
	RequestLines(viewID string, first, last uint64) error
	Scroll(viewID string, first, last uint64) error
}

// Viewport tracks one view's scroll state and window size. It is derived
// state: the line range is recomputed on every scroll, resize, or cache
// update, never stored across events.
//
// Owned by the consumer goroutine; no lock.
type Viewport struct {
	viewID string
	req    Requester

	metrics Metrics

	scrollX float64
	scrollY float64
	width   float64
	height  float64
}

// New creates a viewport for a view.
func New(viewID string, req Requester, metrics Metrics) *Viewport {
	return &Viewport{viewID: viewID, req: req, metrics: metrics}
}

// SetMetrics updates the font metrics.
func (v *Viewport) SetMetrics(m Metrics) {
	v.metrics = m
}

// Metrics returns the current font metrics.
func (v *Viewport) Metrics() Metrics {
	return v.metrics
}

// Resize sets the viewport size in px.
func (v *Viewport) Resize(width, height float64) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	v.width = width
	v.height = height
}

// Size returns the viewport size in px.
func (v *Viewport) Size() (width, height float64) {
	return v.width, v.height
}

// Scroll returns the current scroll offsets in px.
func (v *Viewport) Scroll() (x, y float64) {
	return v.scrollX, v.scrollY
}

// ScrollBy adjusts the scroll offsets, clamping at zero. Upper clamping
// happens against the cache height in Clamp.
func (v *Viewport) ScrollBy(dx, dy float64) {
	v.SetScroll(v.scrollX+dx, v.scrollY+dy)
}

// SetScroll sets absolute scroll offsets, clamping at zero.
func (v *Viewport) SetScroll(x, y float64) {
	v.scrollX = math.Max(0, x)
	v.scrollY = math.Max(0, y)
}

// ContentHeight returns the pixel height of the whole buffer, for scrollbar
// bounds.
func (v *Viewport) ContentHeight(lines uint64) float64 {
	return float64(lines)*v.metrics.Height + v.metrics.Descent
}

// Clamp pulls the vertical scroll offset back into the content after the
// buffer shrinks or the window grows.
func (v *Viewport) Clamp(lines uint64) {
	maxY := v.ContentHeight(lines) - v.height
	if maxY < 0 {
		maxY = 0
	}
	if v.scrollY > maxY {
		v.scrollY = maxY
	}
}

// LineRange computes the half-open line range [first, last) that the current
// scroll position needs, against a buffer of the given height. The trailing
// +1 guards against a partially visible last line.
func (v *Viewport) LineRange(lines uint64) (first, last uint64) {
	if lines == 0 || v.metrics.Height <= 0 {
		return 0, 0
	}

	first = uint64(v.scrollY / v.metrics.Height)
	last = uint64((v.scrollY+v.height)/v.metrics.Height) + 1
	if last > lines-1 {
		last = lines - 1
	}
	if first > last {
		first = last
	}
	return first, last
}

// Sync recomputes the needed range against the cache, requests the full
// range from the backend if any line in it is still missing, and
// unconditionally reports the visible range. complete is false when this
// frame will have to draw placeholders.
func (v *Viewport) Sync(cache *linecache.Cache) (first, last uint64, complete bool) {
	first, last = v.LineRange(cache.Height())
	complete = !cache.Missing(first, last)

	if !complete && v.req != nil {
		// The whole contiguous range, not just the missing subset: a request
		// for already-populated lines is a no-op backend-side, and one range
		// is simpler than many.
		_ = v.req.RequestLines(v.viewID, first, last)
	}
	if v.req != nil {
		_ = v.req.Scroll(v.viewID, first, last)
	}
	return first, last, complete
}

// CellAt maps a pixel position inside the viewport to a buffer cell, for
// pointer input. Clamps the line to [0, lines).
func (v *Viewport) CellAt(x, y float64, lines uint64) (line, col uint64) {
	if v.metrics.Width > 0 {
		ax := x + v.scrollX
		if ax > 0 {
			col = uint64(ax/v.metrics.Width + 0.5)
		}
	}

	if v.metrics.Height > 0 {
		ay := y + v.scrollY - v.metrics.Descent
		if ay > 0 {
			line = uint64(ay / v.metrics.Height)
		}
	}
	if lines > 0 && line >= lines {
		line = lines - 1
	}
	return line, col
}

// ScrollTo adjusts the scroll offsets the minimal amount needed to bring the
// target cell inside the viewport, the same edge-fit used for user-driven
// scrolling.
func (v *Viewport) ScrollTo(line, col uint64) {
	m := v.metrics

	top := m.Height*float64(line+1) - m.Ascent
	bottom := top + m.Ascent + m.Descent
	if top < v.scrollY {
		v.scrollY = top
	} else if bottom > v.scrollY+v.height && v.height > 0 {
		v.scrollY = bottom - v.height
	}

	left := m.Width * float64(col)
	right := left + 2*m.Width
	if left < v.scrollX {
		v.scrollX = left
	} else if right > v.scrollX+v.width && v.width > 0 {
		v.scrollX = right - v.width
	}

	v.SetScroll(v.scrollX, v.scrollY)
}
