// Package termui implements a terminal Screen/Input for the interpreter
// using Bubble Tea, styled with lipgloss and wrapped with
// muesli/reflow/wordwrap. The VM runs on its own goroutine; ReadLine
// blocks that goroutine on a channel the Bubble Tea Update loop feeds
// when the player presses enter.
package termui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

var statusBarStyle = lipgloss.NewStyle().Reverse(true)

// Adapter implements zmachine.Screen and zmachine.Input. It must be
// attached to a running *tea.Program via Attach before the VM starts.
type Adapter struct {
	program *tea.Program
	lines   chan string
}

// NewAdapter builds an unattached adapter; call Attach once the owning
// tea.Program exists.
func NewAdapter() *Adapter {
	return &Adapter{lines: make(chan string)}
}

// Attach wires the adapter to the program that will receive its Screen
// updates.
func (a *Adapter) Attach(p *tea.Program) { a.program = p }

func (a *Adapter) PrintText(text string) { a.program.Send(textMsg(text)) }
func (a *Adapter) NewLine()              { a.program.Send(textMsg("\n")) }
func (a *Adapter) ClearScreen()          { a.program.Send(clearMsg{}) }

func (a *Adapter) ShowStatus(left, right string, v3 bool) {
	a.program.Send(statusMsg{left: left, right: right})
}

// ReadLine blocks the calling goroutine (the VM's run loop) until the
// player submits a line of input, or the program quits, in which case
// the input channel is closed and ReadLine returns an empty line so the
// VM's sread handler degrades the same way it does on an EOF.
func (a *Adapter) ReadLine(maxLen int) (string, error) {
	line, ok := <-a.lines
	if !ok {
		return "", nil
	}
	if len(line) > maxLen {
		line = line[:maxLen]
	}
	return line, nil
}

// Submit delivers a completed input line to a blocked ReadLine call. The
// Bubble Tea model calls this from its Update loop on Enter.
func (a *Adapter) Submit(line string) { a.lines <- line }

// Close unblocks any pending ReadLine once the program is shutting down.
func (a *Adapter) Close() { close(a.lines) }

type textMsg string
type clearMsg struct{}
type statusMsg struct{ left, right string }

// Model is the Bubble Tea model driving the terminal view: a scrolling
// transcript, an optional status bar, and a single-line input box.
type Model struct {
	adapter    *Adapter
	transcript strings.Builder
	status     statusMsg
	input      string
	width      int
	height     int
	quitting   bool
}

// NewModel builds the view model. The VM should be started on its own
// goroutine once the returned tea.Program is running and a has been
// Attach-ed to it.
func NewModel(a *Adapter) Model {
	return Model{adapter: a}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.quitting = true
			m.adapter.Close()
			return m, tea.Quit
		case tea.KeyEnter:
			line := m.input
			m.transcript.WriteString(line + "\n")
			m.input = ""
			go m.adapter.Submit(line)
		case tea.KeyBackspace:
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
		case tea.KeyRunes:
			m.input += string(msg.Runes)
		case tea.KeySpace:
			m.input += " "
		}

	case textMsg:
		m.transcript.WriteString(string(msg))

	case clearMsg:
		m.transcript.Reset()

	case statusMsg:
		m.status = msg
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return "\n"
	}

	var b strings.Builder
	if m.status.left != "" || m.status.right != "" {
		width := m.width
		if width == 0 {
			width = 80
		}
		b.WriteString(statusBarStyle.Width(width).Render(statusLine(m.status, width)))
		b.WriteByte('\n')
	}

	width := m.width
	if width == 0 {
		width = 80
	}
	b.WriteString(wordwrap.String(m.transcript.String(), width))
	b.WriteString("\n> " + m.input)
	return b.String()
}

func statusLine(s statusMsg, width int) string {
	gap := width - len(s.left) - len(s.right)
	if gap < 1 {
		gap = 1
	}
	return s.left + strings.Repeat(" ", gap) + s.right
}
