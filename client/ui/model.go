// Package ui renders the chat session in the terminal.
package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"chatroom/client/cable"
	"chatroom/client/store"
	"chatroom/client/submit"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
)

const (
	dateLayout = "Jan 2 2006"

	textFetchError = "Something went wrong"
	textLoading    = "Loading messages..."
	textEmpty      = "Start Your Message Here"
	textSend       = "Send"
	textSending    = "Sending..."
	placeholder    = "type your message here"

	defaultNoticeDuration = 2 * time.Second
)

type Options struct {
	Store     *store.Store
	Submitter *submit.Submitter
	Events    *Events
	// Status is the connection state shown until the first change arrives.
	Status         cable.Status
	NoticeDuration time.Duration
	Log            zerolog.Logger
}

type loadedMsg struct{ err error }

type sentMsg struct{ err error }

type dismissMsg struct{ id int }

type notice struct {
	id int
	submit.Notice
}

// Model is the bubbletea model of the chat window.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	store     *store.Store
	submitter *submit.Submitter
	events    *Events
	noticeTTL time.Duration
	log       zerolog.Logger

	state   store.State
	status  cable.Status
	sending bool
	notices []notice
	lastID  int

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	width    int
	height   int
}

func New(opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())

	input := textinput.New()
	input.Placeholder = placeholder
	input.Prompt = "› "
	input.Focus()

	vp := viewport.New(0, 0)
	vp.KeyMap = viewport.KeyMap{
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)

	ttl := opts.NoticeDuration
	if ttl <= 0 {
		ttl = defaultNoticeDuration
	}

	m := Model{
		ctx:       ctx,
		cancel:    cancel,
		store:     opts.Store,
		submitter: opts.Submitter,
		events:    opts.Events,
		noticeTTL: ttl,
		log:       opts.Log.With().Str("component", "ui").Logger(),
		status:    opts.Status,
		input:     input,
		viewport:  vp,
		spinner:   sp,
	}
	if m.store != nil {
		m.state = m.store.State()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.events.wait(),
		m.loadCmd(),
		m.spinner.Tick,
		textinput.Blink,
	)
}

func (m Model) loadCmd() tea.Cmd {
	s, ctx := m.store, m.ctx
	return func() tea.Msg {
		return loadedMsg{err: s.LoadInitial(ctx)}
	}
}

func (m Model) sendCmd(body string) tea.Cmd {
	sub, ctx := m.submitter, m.ctx
	return func() tea.Msg {
		return sentMsg{err: sub.Send(ctx, body)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-lipgloss.Width(buttonStyle.Render(textSending))-8, 10)
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancel()
			m.events.Close()
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case stateMsg:
		m.state = store.State(msg)
		m.refresh()
		return m, m.events.wait()

	case statusMsg:
		m.status = cable.Status(msg)
		return m, m.events.wait()

	case sendingMsg:
		m.sending = bool(msg)
		return m, m.events.wait()

	case noticeMsg:
		m.lastID++
		id := m.lastID
		m.notices = append(m.notices, notice{id: id, Notice: submit.Notice(msg)})
		m.layout()
		return m, tea.Batch(
			m.events.wait(),
			tea.Tick(m.noticeTTL, func(time.Time) tea.Msg { return dismissMsg{id: id} }),
		)

	case dismissMsg:
		for i, n := range m.notices {
			if n.id == msg.id {
				m.notices = append(m.notices[:i:i], m.notices[i+1:]...)
				break
			}
		}
		m.layout()
		return m, nil

	case loadedMsg:
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.log.Debug().Err(msg.err).Msg("history unavailable")
		}
		m.state = m.store.State()
		m.refresh()
		return m, nil

	case sentMsg:
		m.sending = m.submitter.Sending()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit validates the input synchronously so the field clears on the
// keypress; the write itself runs as a command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.sending {
		return m, nil
	}
	body, err := m.submitter.Prepare(&m.input)
	if err != nil {
		return m, nil
	}
	m.sending = true
	return m, m.sendCmd(body)
}

func (m *Model) layout() {
	if m.height == 0 {
		return
	}
	// header, blank line, input box (3), blank line, notices
	used := 2 + 3 + 1 + len(m.notices)
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-used, 1)
}

func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) renderMessages() string {
	var b strings.Builder
	width := max(m.width-4, 20)
	for i, msg := range m.state.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(dateStyle.Render(msg.CreatedAt.Local().Format(dateLayout)))
		b.WriteString("\n")
		b.WriteString(bodyStyle.Width(width).Render(msg.Body))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) View() string {
	var b strings.Builder

	header := titleStyle.Render("Chatroom")
	indicator := statusIndicator(m.status)
	gap := max(m.width-lipgloss.Width(header)-lipgloss.Width(indicator), 1)
	b.WriteString(header + strings.Repeat(" ", gap) + indicator)
	b.WriteString("\n\n")

	switch m.state.Status() {
	case store.StatusError:
		b.WriteString(errorTextStyle.Render(textFetchError))
	case store.StatusLoading:
		b.WriteString(placeholderStyle.Render(m.spinner.View() + " " + textLoading))
	case store.StatusEmpty:
		b.WriteString(placeholderStyle.Render(textEmpty))
	default:
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")

	button := buttonStyle.Render(textSend)
	if m.sending {
		button = buttonBusyStyle.Render(textSending)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, inputBoxStyle.Render(m.input.View()), " ", button))

	for _, n := range m.notices {
		style := noticeInfoStyle
		if n.Level == submit.LevelError {
			style = noticeErrorStyle
		}
		b.WriteString("\n")
		b.WriteString(style.Render(n.Title + " " + n.Text))
	}
	return b.String()
}

// Run starts the program and blocks until the user quits.
func Run(opts Options) error {
	m := New(opts)
	defer m.cancel()
	defer opts.Events.Close()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion()).Run()
	return err
}
