package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/stanza-md/stanza/block"
	"github.com/stanza-md/stanza/engine"
)

// remoteAppliedMsg wakes the UI after a remote merge landed.
type remoteAppliedMsg struct{}

// window tracks which blocks the viewport currently shows. The UI updates
// lo/hi as it scrolls; the session asks for them when clipping a
// selection, and parks scroll requests in scrollTo for the next frame.
type window struct {
	lo, hi   int
	scrollTo int
}

func newWindow() *window { return &window{scrollTo: -1} }

func (w *window) MountedRange() (lo, hi int) { return w.lo, w.hi }
func (w *window) ScrollIntoView(index int)   { w.scrollTo = index }

type keyMap struct {
	Up, Down             key.Binding
	NextBlock, PrevBlock key.Binding
	Edit, Leave          key.Binding
	Save, Quit           key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "prev block")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next block")),
		NextBlock: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next block")),
		PrevBlock: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev block")),
		Edit:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "edit")),
		Leave:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "done")),
		Save:      key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Quit:      key.NewBinding(key.WithKeys("ctrl+q", "ctrl+c"), key.WithHelp("ctrl+q", "quit")),
	}
}

type styles struct {
	Block       lipgloss.Style
	Selected    lipgloss.Style
	Editing     lipgloss.Style
	Status      lipgloss.Style
	StatusError lipgloss.Style
	Help        lipgloss.Style
}

func defaultStyles() styles {
	base := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(lipgloss.Color("238")).
		PaddingLeft(1)
	return styles{
		Block:       base,
		Selected:    base.BorderForeground(lipgloss.Color("62")),
		Editing:     base.BorderForeground(lipgloss.Color("205")),
		Status:      lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Background(lipgloss.Color("236")).Padding(0, 1),
		StatusError: lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Background(lipgloss.Color("236")).Padding(0, 1),
		Help:        lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// ui is the Bubble Tea model hosting one session: a scrolling list of
// blocks, the block under the cursor editable in a textarea, the rest
// rendered with glamour.
type ui struct {
	sess *engine.Session
	win  *window
	log  *zap.Logger
	name string

	keys   keyMap
	styles styles

	vp viewport.Model
	ta textarea.Model
	md *glamour.TermRenderer

	width, height int
	cursor        int
	editing       bool
	lineOf        []int // first content line of each block
	lines         int
}

func newUI(sess *engine.Session, win *window, name string, log *zap.Logger) ui {
	ta := textarea.New()
	ta.Placeholder = "Write markdown…"
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	return ui{
		sess:   sess,
		win:    win,
		log:    log,
		name:   name,
		keys:   defaultKeyMap(),
		styles: defaultStyles(),
		vp:     viewport.New(0, 0),
		ta:     ta,
	}
}

func (u ui) Init() tea.Cmd { return textarea.Blink }

func (u ui) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		u.setSize(msg.Width, msg.Height)
		return u, nil
	case remoteAppliedMsg:
		u.clampCursor()
		u.rebuild()
		return u, nil
	case tea.KeyMsg:
		if u.editing {
			return u.updateEditing(msg)
		}
		return u.updateBrowsing(msg)
	}
	var cmd tea.Cmd
	u.vp, cmd = u.vp.Update(msg)
	u.syncWindow()
	return u, cmd
}

func (u ui) View() string {
	if u.width == 0 {
		return "loading…"
	}
	return u.vp.View() + "\n" + u.statusView() + "\n" + u.helpView()
}

func (u ui) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, u.keys.Quit):
		u.sess.Flush()
		return u, tea.Quit
	case key.Matches(msg, u.keys.Save):
		u.sess.Flush()
		u.rebuild()
		return u, nil
	case key.Matches(msg, u.keys.Up), key.Matches(msg, u.keys.PrevBlock):
		u.moveCursor(-1)
		return u, nil
	case key.Matches(msg, u.keys.Down), key.Matches(msg, u.keys.NextBlock):
		u.moveCursor(1)
		return u, nil
	case key.Matches(msg, u.keys.Edit):
		return u, u.enterBlock()
	}
	var cmd tea.Cmd
	u.vp, cmd = u.vp.Update(msg)
	u.syncWindow()
	return u, cmd
}

func (u ui) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, u.keys.Quit):
		u.leaveBlock()
		u.sess.Flush()
		return u, tea.Quit
	case key.Matches(msg, u.keys.Leave):
		u.leaveBlock()
		u.rebuild()
		return u, nil
	case key.Matches(msg, u.keys.Save):
		u.pushEdit()
		u.sess.Flush()
		u.rebuild()
		return u, nil
	}
	var cmd tea.Cmd
	u.ta, cmd = u.ta.Update(msg)
	u.pushEdit()
	u.rebuild()
	return u, cmd
}

func (u *ui) moveCursor(delta int) {
	u.cursor += delta
	u.clampCursor()
	u.scrollToBlock(u.cursor)
	u.rebuild()
}

func (u *ui) enterBlock() tea.Cmd {
	blocks := u.sess.Blocks()
	if len(blocks) == 0 {
		return nil
	}
	if u.cursor >= len(blocks) {
		u.cursor = len(blocks) - 1
	}
	b := blocks[u.cursor]
	if _, _, ok := u.sess.MountBlock(b.ID); !ok {
		return nil
	}
	u.sess.FocusBlock(u.cursor, engine.EdgeEnd)
	u.editing = true
	u.ta.SetValue(b.Markdown)
	u.log.Debug("editing block", zap.Int("block", u.cursor))
	u.rebuild()
	return u.ta.Focus()
}

func (u *ui) leaveBlock() {
	if !u.editing {
		return
	}
	u.pushEdit()
	u.sess.BlurBlock()
	u.ta.Blur()
	u.ta.Reset()
	u.editing = false
	u.log.Debug("left block", zap.Int("block", u.cursor))
}

// pushEdit feeds the textarea's text into the session. Rechunking may
// split or recombine the edited block; when the session's copy diverges
// the textarea resyncs to it.
func (u *ui) pushEdit() {
	if !u.editing {
		return
	}
	u.sess.ReplaceBlockMarkdown(u.cursor, u.ta.Value())
	blocks := u.sess.Blocks()
	if u.cursor >= len(blocks) {
		u.cursor = len(blocks) - 1
	}
	if b := blocks[u.cursor]; block.Normalize(u.ta.Value()) != b.Markdown {
		u.ta.SetValue(b.Markdown)
	}
}

func (u *ui) setSize(w, h int) {
	u.width, u.height = w, h
	statusH := 2
	if h < statusH+1 {
		statusH = 0
	}
	u.vp.Width = w
	u.vp.Height = h - statusH
	u.md = newMarkdownRenderer(contentWidth(w))
	u.rebuild()
}

func contentWidth(w int) int {
	w -= 2 // left border and padding
	if w < 10 {
		w = 10
	}
	return w
}

func newMarkdownRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

func (u *ui) clampCursor() {
	n := len(u.sess.Blocks())
	if n == 0 {
		u.cursor = 0
		return
	}
	if u.cursor >= n {
		u.cursor = n - 1
	}
	if u.cursor < 0 {
		u.cursor = 0
	}
}

func (u *ui) rebuild() {
	blocks := u.sess.Blocks()
	u.clampCursor()
	if u.editing {
		u.sizeTextarea()
	}
	var sb strings.Builder
	u.lineOf = make([]int, len(blocks))
	line := 0
	for i, b := range blocks {
		if i > 0 {
			sb.WriteString("\n\n")
			line++
		}
		u.lineOf[i] = line
		body := u.renderBlock(i, b)
		sb.WriteString(body)
		line += strings.Count(body, "\n") + 1
	}
	u.lines = line
	u.vp.SetContent(sb.String())
	u.consumeScroll()
	u.syncWindow()
}

func (u *ui) sizeTextarea() {
	u.ta.SetWidth(contentWidth(u.width))
	lines := strings.Count(u.ta.Value(), "\n") + 2
	if max := u.vp.Height - 2; max > 0 && lines > max {
		lines = max
	}
	if lines < 3 {
		lines = 3
	}
	u.ta.SetHeight(lines)
}

func (u *ui) renderBlock(i int, b block.Block) string {
	if u.editing && i == u.cursor {
		return u.styles.Editing.Render(u.ta.View())
	}
	body := b.Markdown
	if u.md != nil {
		if out, err := u.md.Render(b.Markdown); err == nil {
			body = strings.Trim(out, "\n")
		}
	}
	if body == "" {
		body = " "
	}
	style := u.styles.Block
	if i == u.cursor {
		style = u.styles.Selected
	}
	return style.Render(body)
}

// consumeScroll honors a scroll request the session parked on the window.
func (u *ui) consumeScroll() {
	if u.win.scrollTo >= 0 {
		u.scrollToBlock(u.win.scrollTo)
	}
	u.win.scrollTo = -1
}

func (u *ui) scrollToBlock(i int) {
	if i < 0 || i >= len(u.lineOf) {
		return
	}
	top := u.lineOf[i]
	if top < u.vp.YOffset {
		u.vp.SetYOffset(top)
		return
	}
	if bottom := u.blockEnd(i); bottom >= u.vp.YOffset+u.vp.Height {
		u.vp.SetYOffset(bottom - u.vp.Height + 1)
	}
}

func (u *ui) blockEnd(i int) int {
	if i+1 < len(u.lineOf) {
		return u.lineOf[i+1] - 2
	}
	return u.lines - 1
}

// syncWindow publishes the visible block range and keeps exactly those
// blocks (plus the one being edited) mounted.
func (u *ui) syncWindow() {
	blocks := u.sess.Blocks()
	if len(blocks) == 0 || len(u.lineOf) != len(blocks) {
		u.win.lo, u.win.hi = 0, 0
		return
	}
	top := u.vp.YOffset
	bottom := top + u.vp.Height - 1
	lo, hi := 0, len(blocks)-1
	for i := range blocks {
		if u.blockEnd(i) >= top {
			lo = i
			break
		}
	}
	for i := len(blocks) - 1; i >= 0; i-- {
		if u.lineOf[i] <= bottom {
			hi = i
			break
		}
	}
	if hi < lo {
		hi = lo
	}
	u.win.lo, u.win.hi = lo, hi
	for i, b := range blocks {
		if (i >= lo && i <= hi) || (u.editing && i == u.cursor) {
			u.sess.MountBlock(b.ID)
		} else {
			u.sess.UnmountBlock(b.ID)
		}
	}
}

func (u ui) statusView() string {
	blocks := u.sess.Blocks()
	mode := fmt.Sprintf("block %d/%d", u.cursor+1, len(blocks))
	if u.editing {
		mode = fmt.Sprintf("editing block %d/%d", u.cursor+1, len(blocks))
	}
	left := fmt.Sprintf("%s · %s · mounted %d-%d", u.name, mode, u.win.lo+1, u.win.hi+1)
	if u.sess.PendingRemote() {
		left += " · merge pending"
	}
	style := u.styles.Status
	if err := u.sess.LastSaveError(); err != nil {
		left += " · save failed: " + err.Error()
		style = u.styles.StatusError
	}
	return style.Width(u.width).Render(left)
}

func (u ui) helpView() string {
	bindings := []key.Binding{u.keys.Up, u.keys.Down, u.keys.Edit, u.keys.Leave, u.keys.Save, u.keys.Quit}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return u.styles.Help.Render(strings.Join(parts, " · "))
}
