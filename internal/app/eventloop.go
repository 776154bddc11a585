package app

import (
	"github.com/gdamore/tcell/v2"

	"github.com/glintedit/glint/internal/rpc"
)

// scrollStep is the wheel scroll distance in lines.
const scrollStep = 3

// handleKey translates a key event into backend edit commands. The front-end
// never mutates text itself; every edit is a command, and the resulting
// update notification is what changes the screen.
func (a *Application) handleKey(ev *tcell.EventKey) {
	if ev.Key() == tcell.KeyCtrlQ {
		a.quitErr = ErrQuit
		return
	}

	v := a.activeView()
	if v == nil {
		return
	}
	id := v.ID
	shift := ev.Modifiers()&tcell.ModShift != 0
	ctrl := ev.Modifiers()&tcell.ModCtrl != 0

	var err error
	switch ev.Key() {
	case tcell.KeyCtrlS:
		a.saveActive()
	case tcell.KeyCtrlW:
		a.closeActive()
	case tcell.KeyCtrlZ:
		err = a.client.Undo(id)
	case tcell.KeyCtrlY:
		err = a.client.Redo(id)
	case tcell.KeyCtrlA:
		err = a.client.SelectAll(id)
	case tcell.KeyCtrlT:
		a.cycleTheme()
	case tcell.KeyCtrlL:
		a.cycleLanguage()
	case tcell.KeyCtrlG:
		a.cycleTabSize()

	case tcell.KeyUp:
		err = pick(shift, a.client.MoveUpAndModifySelection, a.client.MoveUp)(id)
	case tcell.KeyDown:
		err = pick(shift, a.client.MoveDownAndModifySelection, a.client.MoveDown)(id)
	case tcell.KeyLeft:
		switch {
		case ctrl && shift:
			err = a.client.MoveWordLeftAndModifySelection(id)
		case ctrl:
			err = a.client.MoveWordLeft(id)
		default:
			err = pick(shift, a.client.MoveLeftAndModifySelection, a.client.MoveLeft)(id)
		}
	case tcell.KeyRight:
		switch {
		case ctrl && shift:
			err = a.client.MoveWordRightAndModifySelection(id)
		case ctrl:
			err = a.client.MoveWordRight(id)
		default:
			err = pick(shift, a.client.MoveRightAndModifySelection, a.client.MoveRight)(id)
		}

	case tcell.KeyHome:
		switch {
		case ctrl && shift:
			err = a.client.MoveToBeginningOfDocumentAndModifySelection(id)
		case ctrl:
			err = a.client.MoveToBeginningOfDocument(id)
		case shift:
			err = a.client.MoveToLeftEndOfLineAndModifySelection(id)
		default:
			err = a.client.MoveToLeftEndOfLine(id)
		}
	case tcell.KeyEnd:
		switch {
		case ctrl && shift:
			err = a.client.MoveToEndOfDocumentAndModifySelection(id)
		case ctrl:
			err = a.client.MoveToEndOfDocument(id)
		case shift:
			err = a.client.MoveToRightEndOfLineAndModifySelection(id)
		default:
			err = a.client.MoveToRightEndOfLine(id)
		}

	case tcell.KeyPgUp:
		err = pick(shift, a.client.PageUpAndModifySelection, a.client.PageUp)(id)
	case tcell.KeyPgDn:
		err = pick(shift, a.client.PageDownAndModifySelection, a.client.PageDown)(id)

	case tcell.KeyEnter:
		err = a.client.InsertNewline(id)
	case tcell.KeyTab:
		err = a.client.InsertTab(id)
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		err = a.client.DeleteBackward(id)
	case tcell.KeyDelete:
		err = a.client.DeleteForward(id)

	case tcell.KeyRune:
		err = a.client.Insert(id, string(ev.Rune()))
	}

	if err != nil {
		a.logger.WithView(id).Warn("key command: %v", err)
	}
}

func pick(cond bool, yes, no func(string) error) func(string) error {
	if cond {
		return yes
	}
	return no
}

// handleMouse translates pointer events into gestures and wheel scrolling.
func (a *Application) handleMouse(ev *tcell.EventMouse) {
	v := a.activeView()
	if v == nil {
		return
	}
	id := v.ID

	buttons := ev.Buttons()
	switch {
	case buttons&tcell.WheelUp != 0:
		v.Viewport().ScrollBy(0, -scrollStep)
		v.Viewport().Clamp(v.Cache().Height())
		v.Sync()
		return
	case buttons&tcell.WheelDown != 0:
		v.Viewport().ScrollBy(0, scrollStep)
		v.Viewport().Clamp(v.Cache().Height())
		v.Sync()
		return
	}

	x, y := ev.Position()
	line, col := v.CellAt(float64(x), float64(y))

	var err error
	switch {
	case buttons&tcell.Button1 != 0:
		if a.dragging {
			err = a.client.Drag(id, line, col, modifierMask(ev.Modifiers()))
		} else {
			a.dragging = true
			if ev.Modifiers()&tcell.ModShift != 0 {
				err = a.client.GestureRangeSelect(id, line, col)
			} else {
				err = a.client.GesturePointSelect(id, line, col)
			}
		}
	default:
		a.dragging = false
	}

	if err != nil {
		a.logger.WithView(id).Warn("pointer command: %v", err)
	}
}

// modifierMask converts terminal modifiers to the keyboard state mask the
// backend's drag command expects.
func modifierMask(m tcell.ModMask) uint32 {
	var mask uint32
	if m&tcell.ModShift != 0 {
		mask |= rpc.ShiftMask
	}
	if m&tcell.ModCtrl != 0 {
		mask |= rpc.ControlMask
	}
	if m&tcell.ModAlt != 0 {
		mask |= rpc.AltMask
	}
	return mask
}
