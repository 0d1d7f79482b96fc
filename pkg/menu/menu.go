// Package menu provides the pop-up step picker of the interactive view.
package menu

import (
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"hudebug/pkg/syncutil"
)

// Menu is a centered pop-up list of actions. It is drawn on top of the
// view and takes all key input while visible.
type Menu struct {
	mu       syncutil.Mutex
	title    string
	items    []MenuItem
	selected int
	visible  bool
}

// MenuItem represents a single menu item
type MenuItem struct {
	Label    string
	Shortcut rune
	Action   func()
	// Enabled reports whether the item can be chosen; nil means always.
	Enabled func() bool
}

func (it MenuItem) enabled() bool {
	return it.Enabled == nil || it.Enabled()
}

// New creates a hidden menu.
func New(title string) *Menu {
	return &Menu{title: title}
}

// AddItem adds a menu item
func (m *Menu) AddItem(item MenuItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
}

// Show makes the menu visible with the first item selected.
func (m *Menu) Show() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visible = true
	m.selected = 0
}

// Hide hides the menu
func (m *Menu) Hide() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visible = false
}

// Visible returns whether the menu is visible
func (m *Menu) Visible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}

// Selected returns the index of the highlighted item.
func (m *Menu) Selected() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected
}

// HandleKey processes keyboard input. It returns false when the menu is
// hidden and the key should be handled elsewhere.
func (m *Menu) HandleKey(ev *tcell.EventKey) bool {
	m.mu.Lock()
	if !m.visible {
		m.mu.Unlock()
		return false
	}

	var action func()
	switch ev.Key() {
	case tcell.KeyEscape:
		m.visible = false
	case tcell.KeyUp:
		m.moveSelection(-1)
	case tcell.KeyDown, tcell.KeyTab:
		m.moveSelection(1)
	case tcell.KeyEnter:
		action = m.chooseLocked(m.selected)
	case tcell.KeyRune:
		for i, item := range m.items {
			if item.Shortcut != 0 && item.Shortcut == ev.Rune() {
				action = m.chooseLocked(i)
				break
			}
		}
	}
	m.mu.Unlock()

	// Actions run unlocked so they may show or hide the menu themselves.
	if action != nil {
		action()
	}
	return true
}

// chooseLocked hides the menu and returns the action of item i, or nil when
// the item is disabled.
func (m *Menu) chooseLocked(i int) func() {
	if i < 0 || i >= len(m.items) || !m.items[i].enabled() {
		return nil
	}
	m.visible = false
	return m.items[i].Action
}

// moveSelection moves the selection up or down, skipping disabled items
func (m *Menu) moveSelection(direction int) {
	n := len(m.items)
	if n == 0 {
		return
	}
	next := m.selected
	for range n {
		next = (next + direction + n) % n
		if m.items[next].enabled() {
			m.selected = next
			return
		}
	}
}

// Draw renders the menu centered on screen when visible.
func (m *Menu) Draw(s tcell.Screen) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.visible {
		return
	}

	style := tcell.StyleDefault.Background(tcell.ColorDarkBlue).Foreground(tcell.ColorWhite)
	selectedStyle := tcell.StyleDefault.Background(tcell.ColorWhite).Foreground(tcell.ColorBlack)
	disabledStyle := style.Foreground(tcell.ColorGray)

	width, height := m.dimensions()
	screenWidth, screenHeight := s.Size()
	x := max((screenWidth-width)/2, 0)
	y := max((screenHeight-height)/2, 0)

	drawBorder(s, x, y, width, height, style)
	drawText(s, x+(width-runewidth.StringWidth(m.title))/2, y+1, m.title, style.Bold(true))
	for cx := x + 1; cx < x+width-1; cx++ {
		s.SetContent(cx, y+2, '─', nil, style)
	}

	for i, item := range m.items {
		itemY := y + 3 + i
		itemStyle := style
		switch {
		case !item.enabled():
			itemStyle = disabledStyle
		case i == m.selected:
			itemStyle = selectedStyle
		}
		for cx := x + 1; cx < x+width-1; cx++ {
			s.SetContent(cx, itemY, ' ', nil, itemStyle)
		}
		if item.Shortcut != 0 {
			s.SetContent(x+2, itemY, item.Shortcut, nil, itemStyle)
		}
		drawText(s, x+5, itemY, item.Label, itemStyle)
	}
}

// dimensions returns the box size including the border.
func (m *Menu) dimensions() (int, int) {
	width := runewidth.StringWidth(m.title) + 4
	for _, item := range m.items {
		if w := runewidth.StringWidth(item.Label) + 8; w > width {
			width = w
		}
	}
	return width, len(m.items) + 4
}

func drawBorder(s tcell.Screen, x, y, width, height int, style tcell.Style) {
	s.SetContent(x, y, '┌', nil, style)
	s.SetContent(x+width-1, y, '┐', nil, style)
	s.SetContent(x, y+height-1, '└', nil, style)
	s.SetContent(x+width-1, y+height-1, '┘', nil, style)
	for cx := x + 1; cx < x+width-1; cx++ {
		s.SetContent(cx, y, '─', nil, style)
		s.SetContent(cx, y+height-1, '─', nil, style)
	}
	for cy := y + 1; cy < y+height-1; cy++ {
		s.SetContent(x, cy, '│', nil, style)
		s.SetContent(x+width-1, cy, '│', nil, style)
		for cx := x + 1; cx < x+width-1; cx++ {
			s.SetContent(cx, cy, ' ', nil, style)
		}
	}
}

func drawText(s tcell.Screen, x, y int, text string, style tcell.Style) {
	for _, ch := range text {
		s.SetContent(x, y, ch, nil, style)
		x += runewidth.RuneWidth(ch)
	}
}
