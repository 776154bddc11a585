// Package style holds the process-wide style table: the mapping from the
// backend's small dense style identifiers to concrete text attributes,
// populated by def_style notifications and read by the draw layer.
package style

import (
	"github.com/lucasb-eyer/go-colorful"
	"github.com/tidwall/gjson"
)

// SelectionID is reserved for the selection highlight and is always present.
const SelectionID uint64 = 0

// Color is an RGBA color. The backend ships colors as packed ARGB u32
// values; theme colors arrive as r/g/b/a component objects.
type Color struct {
	colorful.Color
	Alpha float64
}

// ColorFromARGB unpacks a 0xAARRGGBB value.
func ColorFromARGB(v uint32) Color {
	return Color{
		Color: colorful.Color{
			R: float64(v>>16&0xff) / 255,
			G: float64(v>>8&0xff) / 255,
			B: float64(v&0xff) / 255,
		},
		Alpha: float64(v>>24&0xff) / 255,
	}
}

// RGB returns the color as 8-bit components.
func (c Color) RGB() (r, g, b uint8) {
	cr, cg, cb := c.Clamped().RGB255()
	return cr, cg, cb
}

// Blend mixes two colors in Lab space, which keeps midpoints perceptually
// sane for derived UI colors.
func (c Color) Blend(other Color, t float64) Color {
	return Color{
		Color: c.Clamped().BlendLab(other.Clamped(), t).Clamped(),
		Alpha: c.Alpha*(1-t) + other.Alpha*t,
	}
}

// Style is one style table entry. Nil fields mean "not specified"; the draw
// layer falls back to the theme.
type Style struct {
	FG        *Color
	BG        *Color
	Weight    *uint32
	Italic    *bool
	Underline *bool
}

// Theme carries the editor-wide colors installed by theme_changed.
type Theme struct {
	Foreground   Color
	Background   Color
	Caret        Color
	Selection    Color
	SelectionFG  Color
	HasSelection bool
}

// DefaultTheme is a plain dark scheme used until the backend announces one.
func DefaultTheme() Theme {
	fg := Color{Color: colorful.Color{R: 0.85, G: 0.85, B: 0.85}, Alpha: 1}
	bg := Color{Color: colorful.Color{R: 0.12, G: 0.12, B: 0.12}, Alpha: 1}
	return Theme{
		Foreground:   fg,
		Background:   bg,
		Caret:        fg,
		Selection:    bg.Blend(fg, 0.3),
		SelectionFG:  fg,
		HasSelection: true,
	}
}

// Table maps style ids to attributes. Entries are created or overwritten by
// def_style and never deleted; ids are small dense integers the backend
// reuses.
//
// The table is owned by the consumer goroutine, like all mirror state, so it
// carries no lock. The draw layer reads it between messages.
type Table struct {
	styles map[uint64]Style
	theme  Theme
}

// NewTable creates a table with the default theme and the selection style
// installed at id 0.
func NewTable() *Table {
	t := &Table{styles: make(map[uint64]Style)}
	t.SetTheme(DefaultTheme())
	return t
}

// Define installs or overwrites a style from def_style parameters. Returns
// the style id.
func (t *Table) Define(params gjson.Result) uint64 {
	id := params.Get("id").Uint()

	var s Style
	if v := params.Get("fg_color"); v.Exists() {
		c := ColorFromARGB(uint32(v.Uint()))
		s.FG = &c
	}
	if v := params.Get("bg_color"); v.Exists() {
		c := ColorFromARGB(uint32(v.Uint()))
		s.BG = &c
	}
	if v := params.Get("weight"); v.Exists() {
		w := uint32(v.Uint())
		s.Weight = &w
	}
	if v := params.Get("italic"); v.Exists() {
		b := v.Bool()
		s.Italic = &b
	}
	if v := params.Get("underline"); v.Exists() {
		b := v.Bool()
		s.Underline = &b
	}

	t.styles[id] = s
	return id
}

// Get returns the style for id. ok is false for ids the backend never
// defined; the draw layer then uses theme defaults.
func (t *Table) Get(id uint64) (Style, bool) {
	s, ok := t.styles[id]
	return s, ok
}

// Theme returns the current theme colors.
func (t *Table) Theme() Theme {
	return t.theme
}

// SetTheme installs a theme and rewrites the reserved selection style from
// its selection colors. A theme without explicit selection colors gets one
// derived by blending foreground into background.
func (t *Table) SetTheme(theme Theme) {
	if !theme.HasSelection {
		theme.Selection = theme.Background.Blend(theme.Foreground, 0.3)
		theme.SelectionFG = theme.Foreground
		theme.HasSelection = true
	}
	t.theme = theme

	selBG := theme.Selection
	selFG := theme.SelectionFG
	t.styles[SelectionID] = Style{FG: &selFG, BG: &selBG}
}

// ParseTheme decodes theme_changed parameters. Colors arrive as component
// objects {"r":..,"g":..,"b":..,"a":..} with 0-255 channels.
func ParseTheme(params gjson.Result) Theme {
	settings := params.Get("theme")
	theme := DefaultTheme()

	if c, ok := parseComponentColor(settings.Get("foreground")); ok {
		theme.Foreground = c
		theme.Caret = c
	}
	if c, ok := parseComponentColor(settings.Get("background")); ok {
		theme.Background = c
	}
	if c, ok := parseComponentColor(settings.Get("caret")); ok {
		theme.Caret = c
	}
	theme.HasSelection = false
	if c, ok := parseComponentColor(settings.Get("selection")); ok {
		theme.Selection = c
		theme.SelectionFG = theme.Foreground
		theme.HasSelection = true
	}
	if c, ok := parseComponentColor(settings.Get("selection_foreground")); ok {
		theme.SelectionFG = c
	}
	return theme
}

func parseComponentColor(v gjson.Result) (Color, bool) {
	if !v.Exists() || !v.IsObject() {
		return Color{}, false
	}
	c := Color{
		Color: colorful.Color{
			R: v.Get("r").Float() / 255,
			G: v.Get("g").Float() / 255,
			B: v.Get("b").Float() / 255,
		},
		Alpha: 1,
	}
	if a := v.Get("a"); a.Exists() {
		c.Alpha = a.Float() / 255
	}
	return c, true
}
