package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotbar/internal/models"
	"github.com/desertthunder/spotbar/internal/session"
	"github.com/desertthunder/spotbar/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlayerView ViewState = iota
	SetupView
	LinksView
)

// Session is the part of [session.Controller] the TUI drives.
type Session interface {
	Attach(ctx context.Context, p session.Presenter)
	Detach()
	Dispatch(ctx context.Context, cmd session.Command) session.Reply
}

// SettingsStore reads the album display mode and saves the client id entered in the setup view.
type SettingsStore interface {
	LoadSettings(ctx context.Context) (models.Settings, error)
	SetClientID(ctx context.Context, clientID string) error
}

const progressStep = 1000

var errEmptyClientID = fmt.Errorf("%w: client id cannot be empty", shared.ErrInvalidInput)

// Model represents the TUI application state.
type Model struct {
	ctx         context.Context
	view        ViewState
	session     Session
	settings    SettingsStore
	presenter   *Presenter
	redirectURI string

	update   models.Update
	received bool
	snapshot *models.Snapshot
	progress int
	album    models.AlbumDisplay

	checkedSetup bool
	busy         bool
	notice       string
	err          error

	width  int
	height int
	input  textinput.Model
	links  list.Model
	bar    progress.Model
	help   help.Model
	keys   keyMap
}

// NewModel creates a new TUI model. The session is attached when the program starts.
func NewModel(ctx context.Context, sess Session, settings SettingsStore, presenter *Presenter, redirectURI string) *Model {
	ti := textinput.New()
	ti.Placeholder = "Spotify Client ID"
	ti.CharLimit = 64
	ti.Width = 40

	return &Model{
		ctx:         ctx,
		view:        PlayerView,
		session:     sess,
		settings:    settings,
		presenter:   presenter,
		redirectURI: redirectURI,
		album:       models.DefaultSettings().AlbumDisplay,
		input:       ti,
		bar:         progress.New(progress.WithSolidFill(spotifyGreen), progress.WithoutPercentage(), progress.WithWidth(32)),
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// Init attaches the session and starts the progress ticker.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.attach(), m.presenter.wait(), m.loadSettings(), m.tick())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.view == LinksView {
			m.links.SetSize(m.listSize())
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case SetupView:
			return m.handleSetupKeys(msg)
		case LinksView:
			return m.handleLinksKeys(msg)
		default:
			return m.handlePlayerKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	switch m.view {
	case SetupView:
		m.input, cmd = m.input.Update(msg)
	case LinksView:
		m.links, cmd = m.links.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStateUpdate:
		u := msg.data.(models.Update)
		m.apply(u)
		if u.Data != nil {
			return m, tea.Batch(m.presenter.wait(), m.loadSettings())
		}
		return m, m.presenter.wait()

	case MsgSetupRequested:
		return m, tea.Batch(m.presenter.wait(), m.enterSetup())

	case MsgPresenterClosed:
		return m, nil

	case MsgTick:
		m.advance()
		return m, m.tick()

	case MsgSettingsLoaded:
		loaded := msg.data.(settingsLoaded)
		if loaded.err != nil {
			m.err = loaded.err
			return m, nil
		}
		m.album = loaded.settings.AlbumDisplay
		if !m.checkedSetup {
			m.checkedSetup = true
			if !loaded.settings.HasClientID() && m.view == PlayerView {
				return m, m.enterSetup()
			}
		}
		return m, nil

	case MsgCommandDone:
		done := msg.data.(commandDone)
		if done.kind == session.CmdGetAuthToken {
			m.busy = false
			m.notice = ""
			if !done.reply.OK && done.reply.Err == nil {
				m.notice = "Login did not complete."
			}
		}
		if done.reply.Err != nil {
			m.err = done.reply.Err
		}
		return m, nil

	case MsgClientSaved:
		if err, _ := msg.data.(error); err != nil {
			m.err = err
			return m, nil
		}
		m.leaveSetup()
		m.notice = "Client ID saved."
		return m, nil
	}
	return m, nil
}

// apply records an update. Only playing and paused updates carry a snapshot worth keeping.
func (m *Model) apply(u models.Update) {
	m.update = u
	m.received = true

	switch u.State {
	case models.StatePlaying, models.StatePaused:
		m.snapshot = u.Data
		m.progress = 0
		if u.Data != nil {
			m.progress = u.Data.ProgressMS
		}
	default:
		m.snapshot = nil
		if m.view == LinksView {
			m.view = PlayerView
		}
	}
}

// advance extrapolates progress by one tick while playing, stopping at the track's end.
func (m *Model) advance() {
	if m.update.State != models.StatePlaying || m.snapshot == nil || m.snapshot.Item == nil {
		return
	}
	if duration := m.snapshot.Item.DurationMS; m.progress < duration {
		m.progress = min(m.progress+progressStep, duration)
	}
}

func (m *Model) handlePlayerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.login):
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.err = nil
		m.notice = "Waiting for authorization in your browser..."
		return m, m.dispatch(session.Command{Kind: session.CmdGetAuthToken})
	case key.Matches(msg, m.keys.logout):
		return m, m.dispatch(session.Command{Kind: session.CmdLogout})
	case key.Matches(msg, m.keys.refresh):
		return m, m.dispatch(session.Command{Kind: session.CmdForcePoll})
	case key.Matches(msg, m.keys.setup):
		return m, m.dispatch(session.Command{Kind: session.CmdOpenSetupPage})
	case key.Matches(msg, m.keys.links):
		if m.snapshot == nil {
			return m, nil
		}
		if items := trackLinks(m.snapshot.Item, m.album); len(items) > 0 {
			m.openLinks(items)
		}
	}
	return m, nil
}

func (m *Model) handleLinksKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.links.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, m.quit()
		case key.Matches(msg, m.keys.back):
			m.view = PlayerView
			return m, nil
		case key.Matches(msg, m.keys.enter):
			m.view = PlayerView
			if selected, ok := m.links.SelectedItem().(linkItem); ok {
				return m, m.dispatch(session.Command{Kind: session.CmdOpenSpotifyURI, URI: selected.uri})
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.links, cmd = m.links.Update(msg)
	return m, cmd
}

func (m *Model) handleSetupKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, m.quit()
	case "esc":
		m.leaveSetup()
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		if value == "" {
			m.err = errEmptyClientID
			return m, nil
		}
		m.err = nil
		return m, m.saveClientID(value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) enterSetup() tea.Cmd {
	m.view = SetupView
	m.err = nil
	m.notice = ""
	m.input.SetValue("")
	return m.input.Focus()
}

func (m *Model) leaveSetup() {
	m.view = PlayerView
	m.input.Blur()
}

func (m *Model) openLinks(items []list.Item) {
	w, h := m.listSize()
	m.links = list.New(items, list.NewDefaultDelegate(), w, h)
	m.links.Title = "Open in Spotify"
	m.links.DisableQuitKeybindings()
	m.view = LinksView
}

func (m *Model) listSize() (int, int) {
	return max(m.width-4, 40), max(m.height-8, 12)
}

func (m *Model) attach() tea.Cmd {
	return func() tea.Msg {
		m.session.Attach(m.ctx, m.presenter)
		return nil
	}
}

// quit stops delivery before detaching so a full buffer cannot hold the session lock.
func (m *Model) quit() tea.Cmd {
	return func() tea.Msg {
		m.presenter.Close()
		m.session.Detach()
		return tea.QuitMsg{}
	}
}

func (m *Model) dispatch(cmd session.Command) tea.Cmd {
	return func() tea.Msg {
		return commandDoneMsg(cmd.Kind, m.session.Dispatch(m.ctx, cmd))
	}
}

func (m *Model) loadSettings() tea.Cmd {
	return func() tea.Msg {
		settings, err := m.settings.LoadSettings(m.ctx)
		return settingsLoadedMsg(settings, err)
	}
}

func (m *Model) saveClientID(clientID string) tea.Cmd {
	return func() tea.Msg {
		return clientSavedMsg(m.settings.SetClientID(m.ctx, clientID))
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return tickMsg() })
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case SetupView:
		return m.renderSetup()
	case LinksView:
		return m.renderLinks()
	default:
		return m.renderPlayer()
	}
}

func (m *Model) renderPlayer() string {
	body, bindings := m.renderState()
	out := styles.frame.Render(body)
	if line := m.statusLine(); line != "" {
		out = fmt.Sprintf("%s\n\n%s", out, line)
	}
	return fmt.Sprintf("%s\n\n%s", out, m.help.ShortHelpView(bindings))
}

func (m *Model) renderState() (string, []key.Binding) {
	controls := []key.Binding{m.keys.refresh, m.keys.logout, m.keys.quit}

	if !m.received || !m.update.State.Known() {
		return "Loading...", []key.Binding{m.keys.quit}
	}

	switch m.update.State {
	case models.StateSetupRequired:
		return message("Setup Required", "spotbar needs a Spotify Client ID before it can connect."),
			[]key.Binding{m.keys.setup, m.keys.quit}
	case models.StateSetupFailed:
		return message("Setup Failed", "Spotify rejected the Client ID. Check it and the redirect URI, then try again."),
			[]key.Binding{m.keys.setup, m.keys.quit}
	case models.StateLogin:
		return message("Connect to Spotify", "Log in to see what is playing."),
			[]key.Binding{m.keys.login, m.keys.setup, m.keys.quit}
	case models.StateReLogin:
		return message("Session Expired", "Please log in again to continue."),
			[]key.Binding{m.keys.login, m.keys.quit}
	case models.StateNetworkError:
		return message("Network Error", "Please check your internet connection."), controls
	case models.StateAPIError:
		return message("Spotify Unavailable", "Could not reach Spotify's servers. Retrying shortly."), controls
	case models.StatePlaying, models.StatePaused:
		if m.snapshot != nil && m.snapshot.Item != nil {
			return m.renderTrack(), append([]key.Binding{m.keys.links}, controls...)
		}
	}
	return message("No Active Device", "Play something on any Spotify app to get started."), controls
}

func (m *Model) renderTrack() string {
	item := m.snapshot.Item

	status := styles.ok.Render("▶ Playing")
	if m.update.State == models.StatePaused {
		status = styles.warn.Render("❚❚ Paused")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s\n%s\n", status, styles.ok.Render(item.Name), item.ArtistNames())
	if item.ShowAlbum(m.album) {
		fmt.Fprintf(&b, "%s\n", styles.help.Render(item.Album.Name))
	}

	var percent float64
	if item.DurationMS > 0 {
		percent = min(float64(m.progress)/float64(item.DurationMS), 1)
	}
	fmt.Fprintf(&b, "\n%s\n%s / %s",
		m.bar.ViewAs(percent),
		shared.FormatMillis(m.progress),
		shared.FormatMillis(item.DurationMS),
	)
	return b.String()
}

func (m *Model) renderSetup() string {
	title := styles.title.Render("Spotify Setup")
	steps := fmt.Sprintf(
		"1. Create an app at https://developer.spotify.com/dashboard\n"+
			"2. Add this redirect URI to the app:\n   %s\n"+
			"3. Paste the app's Client ID below.",
		m.redirectURI,
	)

	out := fmt.Sprintf("%s\n%s\n\n%s", title, steps, m.input.View())
	if line := m.statusLine(); line != "" {
		out = fmt.Sprintf("%s\n\n%s", out, line)
	}

	saveKey := key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "save"),
	)
	helpView := m.help.ShortHelpView([]key.Binding{saveKey, m.keys.back})
	return fmt.Sprintf("%s\n\n%s", styles.frame.Render(out), helpView)
}

func (m *Model) renderLinks() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.links.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) statusLine() string {
	switch {
	case m.err != nil:
		return styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	case m.notice != "":
		return styles.help.Render(m.notice)
	}
	return ""
}

func message(title, text string) string {
	return fmt.Sprintf("%s\n%s", styles.title.Render(title), text)
}
