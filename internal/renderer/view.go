package renderer

import (
	"path/filepath"

	"github.com/rivo/uniseg"
	"github.com/tidwall/gjson"

	"github.com/glintedit/glint/internal/renderer/linecache"
	"github.com/glintedit/glint/internal/renderer/viewport"
)

// Line and StyleSpan are re-exported so the draw layer only needs this
// package.
type (
	Line      = linecache.Line
	StyleSpan = linecache.StyleSpan
)

// View is one editor view: a local mirror of a backend buffer plus the
// scroll state needed to decide which part of it must be on screen.
//
// All fields are owned by the consumer goroutine. Mutation happens only in
// response to backend messages and translated input events.
type View struct {
	ID       string
	FileName string

	// Pristine mirrors the backend's saved/unmodified status for the buffer.
	Pristine bool

	cache *linecache.Cache
	vp    *viewport.Viewport
}

// NewView creates a view with an empty mirror.
func NewView(id, fileName string, req viewport.Requester, m viewport.Metrics) *View {
	return &View{
		ID:       id,
		FileName: fileName,
		Pristine: true,
		cache:    linecache.New(),
		vp:       viewport.New(id, req, m),
	}
}

// Cache exposes the line mirror, read-only for the draw layer.
func (v *View) Cache() *linecache.Cache {
	return v.cache
}

// Viewport exposes the scroll state.
func (v *View) Viewport() *viewport.Viewport {
	return v.vp
}

// ApplyUpdate replays an update notification's diff script into the cache,
// refreshes the pristine flag, and re-clamps the scroll position against the
// new buffer height. The returned error is a protocol inconsistency: logged
// by the caller, never fatal, and self-healing via the next sync.
func (v *View) ApplyUpdate(params gjson.Result) error {
	update := params.Get("update")
	err := v.cache.Apply(linecache.ParseOps(update))

	if pristine := update.Get("pristine"); pristine.Exists() {
		v.Pristine = pristine.Bool()
	}

	v.vp.Clamp(v.cache.Height())
	return err
}

// Sync recomputes the needed line range, fetching and reporting as needed.
// complete is false when this frame must draw placeholders for missing
// lines; the reply to the fetch will trigger another update and a clean
// redraw.
func (v *View) Sync() (first, last uint64, complete bool) {
	return v.vp.Sync(v.cache)
}

// ScrollTo brings a target cell into the viewport using edge-fit scrolling,
// then re-syncs.
func (v *View) ScrollTo(line, col uint64) {
	v.vp.ScrollTo(line, col)
	v.Sync()
}

// CellAt maps viewport-relative pixel coordinates to a buffer cell.
func (v *View) CellAt(x, y float64) (line, col uint64) {
	return v.vp.CellAt(x, y, v.cache.Height())
}

// IsEmpty reports whether the mirror holds nothing but an empty buffer. An
// empty buffer is still one populated slot with empty text, per backend
// convention.
func (v *View) IsEmpty() bool {
	switch v.cache.Height() {
	case 0:
		return true
	case 1:
		line := v.cache.Line(0)
		return line != nil && (line.Text == "" || line.Text == "\n")
	default:
		return false
	}
}

// Title returns the display title for the view: the file's base name, or
// "Untitled", prefixed with '*' while unsaved changes exist.
func (v *View) Title() string {
	title := "Untitled"
	if v.FileName != "" {
		title = filepath.Base(v.FileName)
	}
	if !v.Pristine {
		return "*" + title
	}
	return title
}

// MeasureWidths answers a measure_width backend request: for each request
// group, the pixel width of each string, as grapheme-cluster width times the
// font advance. Tabs and control characters measure like the backend lays
// them out on screen: by cluster count.
func (v *View) MeasureWidths(params gjson.Result) [][]float64 {
	fontWidth := v.vp.Metrics().Width
	groups := params.Array()

	widths := make([][]float64, 0, len(groups))
	for _, group := range groups {
		strs := group.Get("strings").Array()
		ws := make([]float64, 0, len(strs))
		for _, s := range strs {
			ws = append(ws, float64(uniseg.StringWidth(s.String()))*fontWidth)
		}
		widths = append(widths, ws)
	}
	return widths
}

// InvalidateAll marks the whole mirror stale, preserving height. Used when
// the transport closes: the next successful sync after reconnect repopulates
// it.
func (v *View) InvalidateAll() {
	v.cache.InvalidateAll()
}
