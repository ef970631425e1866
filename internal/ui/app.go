package ui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/lumen/internal/backlight"
	"github.com/five82/lumen/internal/battery"
	"github.com/five82/lumen/internal/chatrooms"
	"github.com/five82/lumen/internal/prefs"
	"github.com/five82/lumen/internal/toggle"
)

// brightnessStep is the change applied by one +/- key press.
const brightnessStep = 0.05

// Options configures the UI. Any service may be nil.
type Options struct {
	Context       context.Context
	Settings      *prefs.Store
	Session       *chatrooms.Session
	Backlight     *backlight.Service
	Battery       *battery.Service
	IdleInhibitor *toggle.Toggle
	NightLight    *toggle.Toggle
	RefreshEvery  time.Duration
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Services
	ctx       context.Context
	settings  *prefs.Store
	session   *chatrooms.Session
	backlight *backlight.Service
	battery   *battery.Service
	idle      *toggle.Toggle
	night     *toggle.Toggle
	tick      time.Duration

	// UI state
	keys      keyMap
	inputKeys inputKeyMap
	theme     Theme
	styles    Styles
	width     int
	height    int
	ready     bool

	chat   viewport.Model
	input  textinput.Model
	typing bool

	// Data state
	view   viewState
	toasts toastLog
	status string
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tick := opts.RefreshEvery
	if tick <= 0 {
		tick = time.Second
	}

	themeName := "dark"
	if opts.Settings != nil {
		themeName = opts.Settings.String("theme")
	}
	theme := GetTheme(themeName)

	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "message, or /server /room /newroom /login /register /logout"
	input.CharLimit = 1000

	return Model{
		ctx:       ctx,
		settings:  opts.Settings,
		session:   opts.Session,
		backlight: opts.Backlight,
		battery:   opts.Battery,
		idle:      opts.IdleInhibitor,
		night:     opts.NightLight,
		tick:      tick,
		keys:      defaultKeyMap(),
		inputKeys: defaultInputKeyMap(),
		theme:     theme,
		styles:    theme.Styles(),
		input:     input,
		view:      viewState{themeName: theme.Name},
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tickCmd(m.tick),
		m.readStateCmd(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.updateChat()
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.readStateCmd(), tickCmd(m.tick))

	case stateMsg:
		m.applyState(viewState(msg))
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
		} else {
			m.status = msg.note
		}
		return m, m.readStateCmd()
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := renderHeader(m.view, m.styles, m.width)
	toast, _ := m.toasts.active(m.view.taken)
	help := m.keys.helpLine()
	if m.typing {
		help = m.inputKeys.helpLine()
	}
	footer := renderFooter(toast, m.status, help, m.styles, m.width)
	pane := m.styles.Pane.Render(m.chat.View())

	return lipgloss.JoinVertical(lipgloss.Left, header, pane, m.input.View(), footer)
}

func (m *Model) layout() {
	// header, input and footer take a line each; the pane border takes two
	h := max(m.height-5, 1)
	w := max(m.width-2, 1)
	if !m.ready {
		m.chat = viewport.New(w, h)
	} else {
		m.chat.Width = w
		m.chat.Height = h
	}
	m.input.Width = max(m.width-4, 1)
}

func (m *Model) applyState(v viewState) {
	m.view = v
	if v.themeName != m.theme.Name {
		m.theme = GetTheme(v.themeName)
		m.styles = m.theme.Styles()
	}
	if v.hasChat {
		m.toasts.observe(v.chat.LastError, v.taken)
	}
	m.updateChat()
}

func (m *Model) updateChat() {
	if !m.ready {
		return
	}
	follow := m.chat.AtBottom()
	m.chat.SetContent(renderMessages(m.view.chat.Messages, m.view.taken, m.styles, m.view.chat.Username))
	if follow {
		m.chat.GotoBottom()
	}
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.typing {
		return m.handleInputKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.BrightnessUp):
		return m, m.adjustBrightness(brightnessStep)

	case key.Matches(msg, m.keys.BrightnessDown):
		return m, m.adjustBrightness(-brightnessStep)

	case key.Matches(msg, m.keys.IdleInhibitor):
		return m, m.flip(m.idle)

	case key.Matches(msg, m.keys.NightLight):
		return m, m.flip(m.night)

	case key.Matches(msg, m.keys.CycleTheme):
		return m.cycleTheme()

	case key.Matches(msg, m.keys.FocusInput):
		m.typing = true
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.inputKeys.Blur):
		m.typing = false
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.inputKeys.Submit):
		line := m.input.Value()
		cmd, err := parseCommand(line)
		if err != nil {
			m.status = "error: " + err.Error()
			return m, nil
		}
		m.input.SetValue("")
		session := m.session
		return m, actionCmd(m.ctx, func(ctx context.Context) (string, error) {
			return cmd.run(ctx, session)
		})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) adjustBrightness(delta float64) tea.Cmd {
	bl := m.backlight
	if bl == nil {
		return statusCmd("no backlight device")
	}
	return actionCmd(m.ctx, func(ctx context.Context) (string, error) {
		if err := bl.Adjust(ctx, delta); err != nil {
			return "", err
		}
		v, _ := bl.Value()
		return "brightness " + formatPercent(v), nil
	})
}

func (m Model) flip(t *toggle.Toggle) tea.Cmd {
	if t == nil {
		return statusCmd("toggle not configured")
	}
	return actionCmd(m.ctx, func(ctx context.Context) (string, error) {
		confirmed, err := t.Toggle(ctx)
		if err != nil {
			return "", err
		}
		note := t.Name() + " " + formatToggle(t.State())
		if !confirmed {
			note += " (unconfirmed)"
		}
		return note, nil
	})
}

// cycleTheme writes the next theme to the settings file. The header picks
// it up once the write has been read back.
func (m Model) cycleTheme() (tea.Model, tea.Cmd) {
	next := NextTheme(m.theme.Name)
	if m.settings == nil {
		m.theme = GetTheme(next)
		m.styles = m.theme.Styles()
		m.view.themeName = next
		m.updateChat()
		return m, nil
	}
	settings := m.settings
	return m, actionCmd(m.ctx, func(context.Context) (string, error) {
		if err := settings.SetField("theme", next); err != nil {
			return "", err
		}
		return "theme " + next, nil
	})
}

// readState collects a viewState from every configured service.
func (m Model) readState() viewState {
	v := viewState{themeName: m.theme.Name, taken: time.Now()}
	if m.settings != nil {
		if name := m.settings.String("theme"); name != "" {
			v.themeName = GetTheme(name).Name
		}
	}
	if m.backlight != nil {
		v.brightness, v.hasBrightness = m.backlight.Value()
	}
	if m.battery != nil {
		v.battery, v.hasBattery = m.battery.Value()
	}
	if m.idle != nil {
		v.idle = m.idle.State()
	}
	if m.night != nil {
		v.night = m.night.State()
	}
	if m.session != nil {
		v.chat = m.session.Snapshot()
		v.hasChat = true
	}
	return v
}

// Messages

type tickMsg time.Time

type stateMsg viewState

type actionDoneMsg struct {
	note string
	err  error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) readStateCmd() tea.Cmd {
	return func() tea.Msg {
		return stateMsg(m.readState())
	}
}

func actionCmd(ctx context.Context, fn func(context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		note, err := fn(ctx)
		return actionDoneMsg{note: note, err: err}
	}
}

func statusCmd(note string) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{note: note}
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
