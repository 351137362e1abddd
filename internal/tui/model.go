// Package tui renders a selection controller as a Bubble Tea terminal UI.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Sternrassler/catalog-select/pkg/catalog"
	"github.com/Sternrassler/catalog-select/pkg/selection"
)

const (
	countInputCharLimit = 12
	countInputWidth     = 14

	colWidthID     = 8
	colWidthTitle  = 40
	colWidthArtist = 28
)

// Controller is the part of *selection.Controller the UI drives.
type Controller interface {
	State() selection.State
	GoToPage(ctx context.Context, index int) error
	ToggleOne(id int64)
	SelectFirstNInput(ctx context.Context, text string) error
	ClearSelection()
	Subscribe(fn func(selection.State)) (unsubscribe func())
}

// stateMsg carries a state pushed by the controller subscription.
type stateMsg selection.State

// opDoneMsg reports a finished controller call.
type opDoneMsg struct {
	op    string
	err   error
	state selection.State
}

// Model is the Bubble Tea model for the catalog view.
type Model struct {
	ctx context.Context
	ctl Controller

	state  selection.State
	row    int
	input  textinput.Model
	typing bool
	status string
	err    error
}

// NewModel creates a model for ctl. ctx bounds every fetch the UI starts.
func NewModel(ctx context.Context, ctl Controller) *Model {
	ti := textinput.New()
	ti.Placeholder = "how many?"
	ti.CharLimit = countInputCharLimit
	ti.Width = countInputWidth

	return &Model{
		ctx:   ctx,
		ctl:   ctl,
		state: ctl.State(),
		input: ti,
	}
}

// Run starts the UI and blocks until the user quits.
func Run(ctx context.Context, ctl Controller) error {
	p := tea.NewProgram(NewModel(ctx, ctl), tea.WithContext(ctx), tea.WithAltScreen())

	unsubscribe := ctl.Subscribe(func(st selection.State) {
		p.Send(stateMsg(st))
	})
	defer unsubscribe()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init loads the first page.
func (m *Model) Init() tea.Cmd {
	return m.goToPage(0)
}

// Update handles controller messages and keys.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.apply(selection.State(msg))
		return m, nil

	case opDoneMsg:
		m.apply(msg.state)
		m.report(msg)
		return m, nil

	case tea.KeyMsg:
		if m.typing {
			return m.handleInputKey(msg)
		}
		return m.handleKey(msg)
	}

	return m, nil
}

// apply adopts st unless a newer state was already seen.
func (m *Model) apply(st selection.State) {
	if st.Version < m.state.Version {
		return
	}
	m.state = st
	if m.row >= len(st.Records) {
		m.row = max(len(st.Records)-1, 0)
	}
}

func (m *Model) report(msg opDoneMsg) {
	switch {
	case msg.err == nil:
		m.err = nil
		if msg.op == "select" {
			m.status = fmt.Sprintf("selected %d records", len(msg.state.Selection))
		}
	case errors.Is(msg.err, selection.ErrSuperseded):
		// a newer request owns the view
	case catalog.IsFetchError(msg.err) && msg.op == "select":
		m.err = msg.err
		m.status = fmt.Sprintf("kept %d records before the error", len(msg.state.Selection))
	default:
		m.err = msg.err
	}
}

//nolint:exhaustive // only navigation keys matter here
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyLeft:
		return m, m.prevPage()
	case tea.KeyRight:
		return m, m.nextPage()
	case tea.KeyUp:
		m.moveRow(-1)
		return m, nil
	case tea.KeyDown:
		m.moveRow(1)
		return m, nil
	case tea.KeySpace:
		return m, m.toggleRow()
	case tea.KeyRunes:
		if len(msg.Runes) == 0 {
			return m, nil
		}
		switch msg.Runes[0] {
		case 'q':
			return m, tea.Quit
		case 'h':
			return m, m.prevPage()
		case 'l':
			return m, m.nextPage()
		case 'k':
			m.moveRow(-1)
		case 'j':
			m.moveRow(1)
		case 'n':
			m.typing = true
			m.input.SetValue("")
			return m, m.input.Focus()
		case 'c':
			return m, m.clear()
		case 'r':
			return m, m.goToPage(m.state.Cursor)
		}
	}
	return m, nil
}

//nolint:exhaustive // everything else goes to the text input
func (m *Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.typing = false
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		text := m.input.Value()
		m.typing = false
		m.input.Blur()
		m.status = ""
		return m, m.selectFirstN(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) moveRow(delta int) {
	m.row = min(max(m.row+delta, 0), max(len(m.state.Records)-1, 0))
}

func (m *Model) prevPage() tea.Cmd {
	if m.state.Cursor <= 0 {
		return nil
	}
	return m.goToPage(m.state.Cursor - 1)
}

func (m *Model) nextPage() tea.Cmd {
	if m.state.Cursor >= m.state.PageCount-1 {
		return nil
	}
	return m.goToPage(m.state.Cursor + 1)
}

// Controller calls run inside commands: the subscription delivers through
// Program.Send, which needs the update loop to be free.

func (m *Model) goToPage(index int) tea.Cmd {
	ctl, ctx := m.ctl, m.ctx
	return func() tea.Msg {
		err := ctl.GoToPage(ctx, index)
		return opDoneMsg{op: "page", err: err, state: ctl.State()}
	}
}

func (m *Model) toggleRow() tea.Cmd {
	if m.row >= len(m.state.Records) {
		return nil
	}
	id := m.state.Records[m.row].ID
	ctl := m.ctl
	return func() tea.Msg {
		ctl.ToggleOne(id)
		return opDoneMsg{op: "toggle", state: ctl.State()}
	}
}

func (m *Model) selectFirstN(text string) tea.Cmd {
	ctl, ctx := m.ctl, m.ctx
	return func() tea.Msg {
		err := ctl.SelectFirstNInput(ctx, text)
		return opDoneMsg{op: "select", err: err, state: ctl.State()}
	}
}

func (m *Model) clear() tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		ctl.ClearSelection()
		return opDoneMsg{op: "clear", state: ctl.State()}
	}
}

// View renders the page table, pager and prompt.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-4s %-*s %-*s %s",
		"", colWidthID, "ID", colWidthTitle, "Title", colWidthArtist, "Artist")))
	b.WriteString("\n")

	selected := make(map[int64]bool, len(m.state.Selection))
	for _, id := range m.state.Selection {
		selected[id] = true
	}

	if len(m.state.Records) == 0 {
		b.WriteString(mutedStyle.Render("  no records"))
		b.WriteString("\n")
	}
	for i, rec := range m.state.Records {
		box := "[ ]"
		if selected[rec.ID] {
			box = "[x]"
		}
		line := fmt.Sprintf("%-4s %-*d %-*s %s",
			box,
			colWidthID, rec.ID,
			colWidthTitle, truncate(rec.Title, colWidthTitle),
			truncate(firstLine(rec.ArtistDisplay), colWidthArtist))

		switch {
		case i == m.row:
			line = cursorStyle.Render(line)
		case selected[rec.ID]:
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.pager())
	b.WriteString("\n")

	if m.typing {
		b.WriteString("Select first: ")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString(mutedStyle.Render("←/→ page  ↑/↓ row  space toggle  n select first N  c clear  r reload  q quit"))
	return b.String()
}

func (m *Model) pager() string {
	pages := max(m.state.PageCount, 1)
	s := fmt.Sprintf("Page %d of %d  |  %d records  |  %d selected",
		m.state.Cursor+1, pages, m.state.TotalCount, len(m.state.Selection))
	if m.state.Loading {
		s += "  |  loading..."
	}
	return s
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
