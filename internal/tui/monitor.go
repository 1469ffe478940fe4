package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// --- Styles ---

var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD"))

	statusOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	statusRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	statusFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// --- Types ---

// Model is the watch monitor: it polls one workspace's pipeline status plus
// the service health endpoint and renders both.
type Model struct {
	apiURL string
	wsID   string

	width  int
	height int

	status     string
	resultDoc  string
	statusErr  string
	doneAt     time.Time
	pollCount  int

	health struct {
		Status        string
		UptimeSeconds int64
		QueueDepth    int
		Workspaces    int
	}

	spinner  spinner.Model
	viewport viewport.Model
	ready    bool
}

type statusMsg struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type healthMsg struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	QueueDepth    int    `json:"queue_depth"`
	Workspaces    int    `json:"workspaces"`
}

type errMsg error

// NewMonitor creates a monitor for one workspace.
func NewMonitor(apiURL, wsID string) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = statusRunning

	return &Model{
		apiURL:  apiURL,
		wsID:    wsID,
		status:  "Processing",
		spinner: sp,
	}
}

// --- Init ---

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.pollStatus(),
		m.pollHealth(),
		tea.EnterAltScreen,
	)
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport = viewport.New(m.width-6, maxInt(m.height-14, 5))
		m.viewport.SetContent(m.resultDoc)
		m.ready = true

	case statusMsg:
		m.pollCount++
		m.statusErr = ""
		m.status = msg.Status
		if msg.Status == "Done" {
			if m.doneAt.IsZero() {
				m.doneAt = time.Now()
			}
			m.resultDoc = prettyJSON(msg.Result)
			if m.ready {
				m.viewport.SetContent(m.resultDoc)
			}
			// Keep polling slowly so a re-run of the workspace shows up.
			return m, tea.Tick(10*time.Second, func(time.Time) tea.Msg { return m.fetchStatus() })
		}
		return m, tea.Tick(2*time.Second, func(time.Time) tea.Msg { return m.fetchStatus() })

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.QueueDepth = msg.QueueDepth
		m.health.Workspaces = msg.Workspaces
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg { return m.fetchHealth() })

	case errMsg:
		m.statusErr = msg.Error()
		return m, tea.Tick(2*time.Second, func(time.Time) tea.Msg { return m.fetchStatus() })

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

// --- View ---

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	header := m.renderHeader()

	statusLine := m.renderStatusLine()
	statusBox := borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Workspace "+m.wsID),
			"  "+statusLine,
		),
	)

	resultBox := ""
	if m.resultDoc != "" && m.ready {
		resultBox = borderStyle.Width(m.width - 4).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				titleStyle.Render("Result"),
				m.viewport.View(),
			),
		)
	}

	help := helpStyle.Render(" [q] Quit • [↑/↓] Scroll Result")

	return docStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left, header, statusBox, resultBox, help),
	)
}

func (m Model) renderHeader() string {
	status := statusOK.Render("RUNNING")
	if m.health.Status != "ok" && m.health.Status != "" {
		status = statusFailed.Render("DEGRADED")
	}

	uptime := time.Duration(m.health.UptimeSeconds) * time.Second

	items := []string{
		fmt.Sprintf("Service: %s", status),
		fmt.Sprintf("Uptime: %s", uptime.String()),
		fmt.Sprintf("Queue: %d", m.health.QueueDepth),
		fmt.Sprintf("Workspaces: %d", m.health.Workspaces),
	}

	cell := lipgloss.NewStyle().Width((m.width - 4) / 4)
	return borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinHorizontal(lipgloss.Top,
			cell.Render(items[0]),
			cell.Render(items[1]),
			cell.Render(items[2]),
			cell.Render(items[3]),
		),
	)
}

func (m Model) renderStatusLine() string {
	if m.statusErr != "" {
		return statusFailed.Render("poll failed: " + m.statusErr)
	}
	switch m.status {
	case "Processing":
		return m.spinner.View() + statusRunning.Render(" Processing") + helpStyle.Render(fmt.Sprintf("  (poll #%d)", m.pollCount))
	case "Done":
		return statusOK.Render("● Done")
	default:
		return statusFailed.Render("∅ " + m.status)
	}
}

// --- Commands ---

func (m Model) pollStatus() tea.Cmd {
	return func() tea.Msg { return m.fetchStatus() }
}

func (m Model) fetchStatus() tea.Msg {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(m.apiURL + "/status?ws=" + url.QueryEscape(m.wsID))
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	var st statusMsg
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return errMsg(err)
	}
	if st.Error != "" {
		return errMsg(fmt.Errorf("%s", st.Error))
	}
	return st
}

func (m Model) pollHealth() tea.Cmd {
	return func() tea.Msg { return m.fetchHealth() }
}

func (m Model) fetchHealth() tea.Msg {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(m.apiURL + "/healthz")
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	var h healthMsg
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return errMsg(err)
	}
	return h
}

func prettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
