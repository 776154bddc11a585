// Package backend renders mirror state to a terminal screen via tcell and
// feeds terminal events back to the application loop.
package backend

import (
	"github.com/gdamore/tcell/v2"

	"github.com/glintedit/glint/internal/renderer"
	"github.com/glintedit/glint/internal/renderer/style"
)

// Terminal owns the tcell screen. Drawing happens on the consumer goroutine
// between messages; a dedicated goroutine polls tcell events into a channel
// so the application loop can select over them alongside backend messages.
type Terminal struct {
	screen tcell.Screen
	events chan tcell.Event
}

// NewTerminal allocates and initializes a screen.
func NewTerminal() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.EnableMouse()
	return &Terminal{
		screen: screen,
		events: make(chan tcell.Event, 16),
	}, nil
}

// NewTerminalWithScreen wraps an existing screen. Used with tcell's
// SimulationScreen in tests.
func NewTerminalWithScreen(screen tcell.Screen) *Terminal {
	return &Terminal{
		screen: screen,
		events: make(chan tcell.Event, 16),
	}
}

// Start begins polling terminal events. The channel closes when the screen
// is finalized.
func (t *Terminal) Start() {
	go func() {
		defer close(t.events)
		for {
			ev := t.screen.PollEvent()
			if ev == nil {
				return
			}
			t.events <- ev
		}
	}()
}

// Events returns the terminal event stream.
func (t *Terminal) Events() <-chan tcell.Event {
	return t.events
}

// Size returns the screen size in cells. The bottom row is reserved for the
// status line; ViewHeight is what the viewport gets.
func (t *Terminal) Size() (width, height int) {
	return t.screen.Size()
}

// ViewHeight returns the number of rows available to the view.
func (t *Terminal) ViewHeight() int {
	_, h := t.screen.Size()
	if h <= 1 {
		return 0
	}
	return h - 1
}

// Fini restores the terminal.
func (t *Terminal) Fini() {
	t.screen.Fini()
}

// Draw renders one view plus the status line and flushes the screen.
// tabWidth is the view's configured tab width in cells.
func (t *Terminal) Draw(v *renderer.View, styles *style.Table, status string, tabWidth int) {
	if tabWidth < 1 {
		tabWidth = 1
	}
	theme := styles.Theme()
	base := tcell.StyleDefault.
		Foreground(toTcell(theme.Foreground)).
		Background(toTcell(theme.Background))

	width, height := t.screen.Size()
	t.screen.Fill(' ', base)

	viewRows := height - 1
	if viewRows < 0 {
		viewRows = 0
	}

	_, scrollY := v.Viewport().Scroll()
	first := uint64(0)
	if lh := v.Viewport().Metrics().Height; lh > 0 {
		first = uint64(scrollY / lh)
	}

	cache := v.Cache()
	t.screen.HideCursor()
	for row := 0; row < viewRows; row++ {
		idx := first + uint64(row)
		if idx >= cache.Height() {
			break
		}
		line := cache.Line(idx)
		if line == nil {
			// Lines in flight from the backend. The pending update will
			// trigger a clean redraw.
			t.screen.SetContent(0, row, '~', nil, base.Dim(true))
			continue
		}
		t.drawLine(row, width, tabWidth, line, styles, base)
		for _, caret := range line.Cursors {
			col := cellColumn(line.Text, caret, tabWidth)
			if col < width {
				t.screen.ShowCursor(col, row)
			}
		}
	}

	t.drawStatus(height-1, width, status, base)
	t.screen.Show()
}

// drawLine writes one buffer line, resolving the style of each cell from the
// line's spans.
func (t *Terminal) drawLine(row, width, tabWidth int, line *renderer.Line, styles *style.Table, base tcell.Style) {
	col := 0
	byteOff := uint64(0)
	for _, r := range line.Text {
		if r == '\n' || col >= width {
			break
		}
		st := base
		if id, ok := spanAt(line.Styles, byteOff); ok {
			st = applyStyle(base, styles, id)
		}
		if r == '\t' {
			next := (col/tabWidth + 1) * tabWidth
			for ; col < next && col < width; col++ {
				t.screen.SetContent(col, row, ' ', nil, st)
			}
		} else {
			t.screen.SetContent(col, row, r, nil, st)
			col++
		}
		byteOff += uint64(len(string(r)))
	}
}

// drawStatus renders the bottom status row in inverted theme colors.
func (t *Terminal) drawStatus(row, width int, status string, base tcell.Style) {
	if row < 0 {
		return
	}
	st := base.Reverse(true)
	col := 0
	for _, r := range status {
		if col >= width {
			break
		}
		t.screen.SetContent(col, row, r, nil, st)
		col++
	}
	for ; col < width; col++ {
		t.screen.SetContent(col, row, ' ', nil, st)
	}
}

// spanAt returns the style id covering the given byte offset. Later spans
// win, matching the order the backend emits overlapping spans in.
func spanAt(spans []renderer.StyleSpan, off uint64) (uint64, bool) {
	id := uint64(0)
	found := false
	for _, s := range spans {
		if off >= s.Start && off < s.Start+s.Len {
			id = s.ID
			found = true
		}
	}
	return id, found
}

// applyStyle layers a style table entry over the theme base.
func applyStyle(base tcell.Style, styles *style.Table, id uint64) tcell.Style {
	s, ok := styles.Get(id)
	if !ok {
		return base
	}
	st := base
	if s.FG != nil {
		st = st.Foreground(toTcell(*s.FG))
	}
	if s.BG != nil {
		st = st.Background(toTcell(*s.BG))
	}
	if s.Weight != nil && *s.Weight >= 600 {
		st = st.Bold(true)
	}
	if s.Italic != nil && *s.Italic {
		st = st.Italic(true)
	}
	if s.Underline != nil && *s.Underline {
		st = st.Underline(true)
	}
	return st
}

// cellColumn converts a byte offset in text to a terminal column, counting
// tab stops at the same width drawLine uses.
func cellColumn(text string, byteOff uint64, tabWidth int) int {
	col := 0
	off := uint64(0)
	for _, r := range text {
		if off >= byteOff {
			break
		}
		if r == '\t' {
			col = (col/tabWidth + 1) * tabWidth
		} else {
			col++
		}
		off += uint64(len(string(r)))
	}
	return col
}

func toTcell(c style.Color) tcell.Color {
	r, g, b := c.RGB()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}
