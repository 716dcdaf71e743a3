package ui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog"

	"agora/internal/api"
	"agora/internal/config"
	"agora/internal/db"
	"agora/internal/export"
	"agora/internal/session"
	"agora/internal/stream"
	"agora/internal/transcript"
)

type mode int

const (
	modeSetup mode = iota
	modeChat
	modeHistory
)

// Messages produced by the stream bridge.
type streamEventMsg struct {
	ev stream.Event
}

type streamClosedMsg struct{}

// sessionStartedMsg carries the result of the backend dial. It names the
// controller it dialed for, so a reset during the dial can be detected.
type sessionStartedMsg struct {
	ctrl *session.Controller
	id   string
	sub  stream.Subscription
	err  error
}

type Model struct {
	cfg   *config.Config
	store *db.Store
	log   zerolog.Logger

	width, height int
	ready         bool
	mode          mode

	setup setupForm

	ctrl          *session.Controller
	input         textinput.Model
	vp            viewport.Model
	spin          spinner.Model
	showReasoning bool
	status        string
	startedAt     time.Time

	// Read-only view of an archived conversation; cleared on new submission.
	archived   []transcript.Entry
	archivedID string

	history  historyState
	renderer *glamour.TermRenderer
}

// New creates the application model. store may be nil when the local archive
// is unavailable.
func New(cfg *config.Config, store *db.Store, log zerolog.Logger) Model {
	input := textinput.New()
	input.Placeholder = "What should the agents deliberate on?"
	input.CharLimit = 0
	input.Prompt = "> "

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = StatusWarn

	return Model{
		cfg:           cfg,
		store:         store,
		log:           log,
		mode:          modeSetup,
		setup:         newSetupForm(cfg),
		input:         input,
		spin:          sp,
		showReasoning: cfg.Defaults.ShowReasoning,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// waitEvent bridges the live stream into the bubbletea loop. One event per
// command; Update re-arms it. This keeps the controller single-writer: only
// the Update goroutine ever mutates session state.
func waitEvent(ch <-chan stream.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return streamEventMsg{ev: ev}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp = viewport.New(msg.Width, msg.Height-6)
		m.vp.MouseWheelEnabled = true
		m.input.Width = msg.Width - 4
		if r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(min(msg.Width-8, 100)),
		); err == nil {
			m.renderer = r
		}
		m.ready = true
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		if m.ctrl != nil && m.ctrl.Loading() {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil

	case sessionStartedMsg:
		if msg.ctrl != m.ctrl {
			// A reset raced the dial; the session is gone.
			if msg.sub != nil {
				msg.sub.Close()
			}
			return m, nil
		}
		if err := m.ctrl.Attach(msg.id, msg.sub, msg.err); err != nil {
			m.status = ErrorStyle.Render(err.Error())
			m.refreshViewport()
			return m, nil
		}
		return m, waitEvent(m.ctrl.Events())

	case streamEventMsg:
		// A reset may race a buffered event; the session is gone, drop it.
		if m.ctrl == nil {
			return m, nil
		}
		terminal := m.ctrl.HandleEvent(context.Background(), msg.ev)
		m.refreshViewport()
		if terminal {
			m.onSessionDone()
			return m, nil
		}
		return m, waitEvent(m.ctrl.Events())

	case streamClosedMsg:
		// Channel closed. If we are still loading, the transport died
		// under us; otherwise this is the tail of a deliberate close.
		if m.ctrl != nil && m.ctrl.Loading() {
			m.ctrl.Fail(context.Background(), errors.New("stream connection lost"))
			m.refreshViewport()
			m.onSessionDone()
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeSetup:
			return m.updateSetup(msg)
		case modeHistory:
			return m.updateHistory(msg)
		default:
			return m.updateChat(msg)
		}
	}

	if m.mode == modeChat {
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) onSessionDone() {
	if errMsg := m.ctrl.LastError(); errMsg != "" {
		m.status = ErrorStyle.Render("Deliberation failed: " + errMsg)
	} else {
		m.status = StatusOK.Render("Deliberation complete")
	}
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		if m.ctrl != nil {
			m.ctrl.Close()
		}
		return m, tea.Quit

	case "enter":
		return m.submit()

	case "ctrl+r":
		m.showReasoning = !m.showReasoning
		m.refreshViewport()
		return m, nil

	case "ctrl+e":
		m.exportTranscript()
		return m, nil

	case "ctrl+h":
		if m.store == nil {
			m.status = DimStyle.Render("Local archive unavailable")
			return m, nil
		}
		if err := m.history.load(m.store); err != nil {
			m.status = ErrorStyle.Render("History: " + err.Error())
			return m, nil
		}
		m.mode = modeHistory
		return m, nil

	case "ctrl+k":
		// Back to setup: cancel any in-flight stream, then drop the
		// session along with its credentials.
		if m.ctrl != nil {
			m.ctrl.Reset()
			m.ctrl = nil
		}
		m.archived = nil
		m.status = ""
		m.setup = newSetupForm(m.cfg)
		m.mode = modeSetup
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.vp, cmd = m.vp.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.ctrl == nil {
		return m, nil
	}

	// Begin mutates session state on the update loop; the blocking POST
	// and its retry backoff run in a command so the loop stays responsive.
	err := m.ctrl.Begin(m.input.Value())
	if errors.Is(err, session.ErrEmptyQuestion) || errors.Is(err, session.ErrSessionActive) {
		return m, nil
	}

	m.input.Reset()
	m.archived = nil
	m.archivedID = ""
	m.status = ""
	m.startedAt = time.Now()
	m.refreshViewport()

	ctrl := m.ctrl
	question := ctrl.Question()
	dial := func() tea.Msg {
		id, sub, err := ctrl.Dial(context.Background(), question)
		return sessionStartedMsg{ctrl: ctrl, id: id, sub: sub, err: err}
	}
	return m, tea.Batch(m.spin.Tick, dial)
}

func (m *Model) exportTranscript() {
	entries := m.currentEntries()
	if len(entries) == 0 {
		m.status = DimStyle.Render("Nothing to export")
		return
	}

	dir, err := db.DataDir()
	if err != nil {
		m.status = ErrorStyle.Render("Export: " + err.Error())
		return
	}

	convo := &export.Conversation{
		ID:        m.exportID(),
		Question:  entries[0].Content,
		StartedAt: m.startedAt,
		Entries:   entries,
	}
	if convo.StartedAt.IsZero() {
		convo.StartedAt = time.Now()
	}

	path, err := export.Write(convo, dir)
	if err != nil {
		m.status = ErrorStyle.Render("Export: " + err.Error())
		return
	}
	m.status = StatusOK.Render("Exported to " + path)
}

func (m *Model) exportID() string {
	if m.archivedID != "" {
		return m.archivedID
	}
	if m.ctrl != nil {
		return m.ctrl.ConversationID()
	}
	return ""
}

// currentEntries returns what the chat view shows: an archived conversation
// when one is loaded, otherwise the live session transcript.
func (m *Model) currentEntries() []transcript.Entry {
	if m.archived != nil {
		return m.archived
	}
	if m.ctrl != nil {
		return m.ctrl.Entries()
	}
	return nil
}

// startSession builds a controller from the completed setup form.
func (m *Model) startSession() {
	creds := api.Credentials{
		OpenAI:   m.setup.keyValue(0),
		Gemini:   m.setup.keyValue(1),
		DeepSeek: m.setup.keyValue(2),
	}
	backend := api.NewClient(m.cfg.Backend.URL, m.log)

	var archive session.Archive
	if m.store != nil {
		archive = m.store
	}

	m.ctrl = session.New(backend, archive, creds, m.setup.rounds, m.log)
	m.mode = modeChat
	m.input.Focus()
	m.refreshViewport()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	switch m.mode {
	case modeSetup:
		return m.setup.view(m.width, m.height)
	case modeHistory:
		return m.history.render(m.width, m.height)
	default:
		return m.chatView()
	}
}
