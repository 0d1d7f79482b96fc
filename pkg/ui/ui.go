// Package ui renders the serial and bridge feeds side by side on a tcell
// screen.
package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"hudebug/pkg/syncutil"
)

const tabWidth = 4

var (
	headerStyle = tcell.StyleDefault.Bold(true).Background(tcell.ColorNavy).Foreground(tcell.ColorWhite)
	titleStyle  = tcell.StyleDefault.Bold(true).Reverse(true)
	statusStyle = tcell.StyleDefault.Background(tcell.ColorDarkSlateGray).Foreground(tcell.ColorWhite)
	borderStyle = tcell.StyleDefault.Foreground(tcell.ColorGray)
	okStyle     = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	warnStyle   = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	errStyle    = tcell.StyleDefault.Foreground(tcell.ColorRed)
	cmdStyle    = tcell.StyleDefault.Foreground(tcell.ColorAqua).Bold(true)
)

// Pane is one column of the view.
type Pane struct {
	Title string
	Lines []string
}

// Overlay is drawn on top of the panes, for example a pop-up menu.
type Overlay interface {
	Draw(s tcell.Screen)
}

// View draws the header, two panes and a status line.
type View struct {
	screen tcell.Screen

	mu       syncutil.Mutex
	title    string
	status   string
	panes    [2]Pane
	overlays []Overlay
}

// NewView creates a view on screen. Init must be called before drawing.
func NewView(screen tcell.Screen, title string) *View {
	return &View{
		screen: screen,
		title:  title,
		panes:  [2]Pane{{Title: "serial"}, {Title: "adb"}},
	}
}

// Init prepares the screen.
func (v *View) Init() error {
	if err := v.screen.Init(); err != nil {
		return err
	}
	v.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorReset).Foreground(tcell.ColorReset))
	v.screen.Clear()
	return nil
}

// Fini restores the terminal.
func (v *View) Fini() {
	v.screen.Fini()
}

// SetStatus replaces the text of the bottom line.
func (v *View) SetStatus(status string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status = status
}

// SetPanes replaces the content of both panes.
func (v *View) SetPanes(left, right []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.panes[0].Lines = left
	v.panes[1].Lines = right
}

// AddOverlay registers an overlay drawn after the panes on every Draw.
func (v *View) AddOverlay(o Overlay) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.overlays = append(v.overlays, o)
}

// Sync redraws after a resize.
func (v *View) Sync() {
	v.screen.Sync()
	v.Draw()
}

// Draw renders the current state.
func (v *View) Draw() {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := v.screen
	s.Clear()
	width, height := s.Size()
	if width < 3 || height < 4 {
		s.Show()
		return
	}

	drawText(s, 0, 0, width, headerStyle, v.title+"  "+HelpText)
	drawText(s, 0, height-1, width, statusStyle, v.status)

	leftWidth := (width - 1) / 2
	rightX := leftWidth + 1
	v.drawPane(0, 1, leftWidth, height-2, v.panes[0])
	for y := 1; y < height-1; y++ {
		s.SetContent(leftWidth, y, '│', nil, borderStyle)
	}
	v.drawPane(rightX, 1, width-rightX, height-2, v.panes[1])

	for _, o := range v.overlays {
		o.Draw(s)
	}
	s.Show()
}

// drawPane renders the newest lines of p that fit in the box, oldest on top.
func (v *View) drawPane(x, y, width, height int, p Pane) {
	drawText(v.screen, x, y, width, titleStyle, " "+Truncate(p.Title, width-2)+" ")

	rows := height - 1
	lines := p.Lines
	if len(lines) > rows {
		lines = lines[len(lines)-rows:]
	}
	for i, line := range lines {
		drawText(v.screen, x, y+1+i, width, lineStyle(line), expandTabs(line))
	}
}

func lineStyle(line string) tcell.Style {
	switch {
	case strings.HasPrefix(line, "[✓]"):
		return okStyle
	case strings.HasPrefix(line, "[⚠]"):
		return warnStyle
	case strings.HasPrefix(line, "[✗]"):
		return errStyle
	case strings.HasPrefix(line, "$ "), strings.HasPrefix(line, "[ADB TOOL]"):
		return cmdStyle
	default:
		return tcell.StyleDefault
	}
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}

// drawText writes text into a width-cell box and pads the rest with spaces.
// Wide runes take two cells; a rune that does not fit is not drawn.
func drawText(s tcell.Screen, x, y, width int, style tcell.Style, text string) {
	col := 0
	for _, r := range text {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if col+w > width {
			break
		}
		s.SetContent(x+col, y, r, nil, style)
		col += w
	}
	for ; col < width; col++ {
		s.SetContent(x+col, y, ' ', nil, style)
	}
}

// Truncate shortens s to at most width cells, marking the cut with "…".
func Truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}
