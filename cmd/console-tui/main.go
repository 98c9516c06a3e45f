// Command console-tui is a terminal operator console: it drives the
// reasoning session directly, renders the live transcript, and exposes
// speech and capture toggles without the web frontend.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vl-adk/go-console/internal/config"
	"github.com/vl-adk/go-console/internal/log"
	"github.com/vl-adk/go-console/pkg/adk"
	"github.com/vl-adk/go-console/pkg/audio"
	"github.com/vl-adk/go-console/pkg/console"
	"github.com/vl-adk/go-console/pkg/speech"
	"github.com/vl-adk/go-console/pkg/transcript"
	"github.com/vl-adk/go-console/pkg/tts"
)

const refreshInterval = 200 * time.Millisecond

type theme struct {
	header    lipgloss.Style
	user      lipgloss.Style
	agent     lipgloss.Style
	notice    lipgloss.Style
	statusBar lipgloss.Style
	statusOn  lipgloss.Style
	statusOff lipgloss.Style
	inputBox  lipgloss.Style
	help      lipgloss.Style
}

func newTheme() theme {
	var (
		mint  = lipgloss.Color("#05ffa1")
		blue  = lipgloss.Color("#01cdfe")
		pink  = lipgloss.Color("#ff71ce")
		muted = lipgloss.Color("#6c7086")
	)
	return theme{
		header:    lipgloss.NewStyle().Foreground(blue).Bold(true).Padding(0, 1),
		user:      lipgloss.NewStyle().Foreground(mint).Bold(true),
		agent:     lipgloss.NewStyle().Foreground(blue),
		notice:    lipgloss.NewStyle().Foreground(pink),
		statusBar: lipgloss.NewStyle().Foreground(muted).Padding(0, 1),
		statusOn:  lipgloss.NewStyle().Foreground(mint).Bold(true),
		statusOff: lipgloss.NewStyle().Foreground(muted),
		inputBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		help: lipgloss.NewStyle().Foreground(muted).Padding(0, 1),
	}
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type model struct {
	session *console.Session

	input      textinput.Model
	transcript viewport.Model
	spin       spinner.Model
	theme      theme

	width  int
	height int
	ready  bool

	lastLen int
}

func newModel(session *console.Session) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.Placeholder = "Message the agent crew..."
	input.CharLimit = 2000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	vp := viewport.New(0, 0)
	vp.MouseWheelEnabled = true

	return model{
		session:    session,
		input:      input,
		transcript: vp,
		spin:       sp,
		theme:      newTheme(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.transcript.Width = msg.Width
		m.transcript.Height = msg.Height - 6
		m.input.Width = msg.Width - 8
		m.ready = true
		m.renderTranscript()
		return m, nil

	case tickMsg:
		if n := m.session.Len(); n != m.lastLen || m.session.Loading() {
			m.lastLen = n
			m.renderTranscript()
		}
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text != "" {
				m.session.Submit(context.Background(), text)
				m.input.Reset()
			}
			return m, nil
		case "ctrl+t":
			m.session.ToggleCapture()
			return m, nil
		case "ctrl+s":
			m.session.SetSpeechEnabled(!m.session.SpeechEnabled())
			return m, nil
		case "ctrl+r":
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			m.session.Reset(ctx)
			m.renderTranscript()
			return m, nil
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.transcript, cmd = m.transcript.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// renderTranscript repaints the viewport and follows the tail.
func (m *model) renderTranscript() {
	atBottom := m.transcript.AtBottom()

	var b strings.Builder
	for _, entry := range m.session.Entries() {
		b.WriteString(m.styleEntry(entry))
		b.WriteString("\n\n")
	}
	m.transcript.SetContent(b.String())
	if atBottom {
		m.transcript.GotoBottom()
	}
}

func (m *model) styleEntry(entry transcript.Entry) string {
	switch {
	case entry.Role == transcript.RoleUser:
		return m.theme.user.Render("you") + "  " + entry.Content
	case strings.HasPrefix(entry.Content, "Error:"):
		return m.theme.notice.Render(entry.Content)
	default:
		return m.theme.agent.Render(entry.Content)
	}
}

func (m model) View() string {
	if !m.ready {
		return "loading..."
	}

	header := m.theme.header.Render("JetBot Operator Console")
	if m.session.Loading() {
		header += "  " + m.spin.View()
	}

	status := m.theme.statusBar.Render(
		m.flag("speech", m.session.SpeechEnabled()) + "  " +
			m.flag("mic", m.session.Listening()) + "  " +
			m.flag("speaking", m.session.Speaking()),
	)
	help := m.theme.help.Render("enter send · ctrl+t mic · ctrl+s speech · ctrl+r reset · esc quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.transcript.View(),
		m.theme.inputBox.Width(m.width-2).Render(m.input.View()),
		status,
		help,
	)
}

func (m *model) flag(name string, on bool) string {
	if on {
		return m.theme.statusOn.Render("● " + name)
	}
	return m.theme.statusOff.Render("○ " + name)
}

func main() {
	config.LoadDotenv()
	log.Init("error") // keep slog output off the alternate screen

	ctx := context.Background()

	provider, speechOK := buildSpeech(ctx)
	defer provider.Close()

	player := audio.NewPlayer()
	queue := speech.New(provider, speech.WithSink(
		func(ctx context.Context, item speech.Item, res *tts.AudioResult) error {
			return player.Play(ctx, res.Audio, res.Format)
		},
	))
	if !speechOK {
		queue.SetEnabled(false)
	}

	client := adk.NewClient(config.AgentURL())
	session := console.NewWithClient(client, queue, nil)
	defer session.Close()

	if err := session.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: reasoning session unavailable: %v\n", err)
	}

	p := tea.NewProgram(newModel(session), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "console-tui: %v\n", err)
		os.Exit(1)
	}
}

// buildSpeech mirrors cmd/console: Gemini on API key, Cloud TTS on
// default credentials, silent-and-disabled with neither.
func buildSpeech(ctx context.Context) (tts.Provider, bool) {
	var providers []tts.Provider

	if key := config.GoogleAPIKey(); key != "" {
		if gemini, err := tts.NewGemini(tts.WithAPIKey(key)); err == nil {
			providers = append(providers, gemini)
		}
	}
	if cloud, err := tts.NewGoogleCloud(ctx); err == nil {
		providers = append(providers, cloud)
	}

	chain, err := tts.NewChain(providers...)
	if err != nil {
		return tts.NewMock(), false
	}
	return chain, true
}
