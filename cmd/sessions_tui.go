package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	daemonclient "github.com/grovetools/canopy/pkg/daemon"
	"github.com/grovetools/canopy/pkg/keymap"
	"github.com/grovetools/canopy/pkg/models"
	"github.com/grovetools/canopy/tui/theme"
)

// stateMsg carries a daemon state update into the TUI event loop.
type stateMsg daemonclient.StateUpdate

// streamClosedMsg signals that the daemon closed the state stream.
type streamClosedMsg struct{}

// actionErrMsg reports a failed session action.
type actionErrMsg struct{ err error }

type sessionsModel struct {
	client   daemonclient.Client
	updates  <-chan daemonclient.StateUpdate
	cancel   context.CancelFunc
	table    table.Model
	help     help.Model
	keys     keymap.SessionsKeyMap
	theme    *theme.Theme
	sessions []*models.SessionRecord
	lastNote string
	width    int
	closed   bool
}

func newSessionsModel(client daemonclient.Client, updates <-chan daemonclient.StateUpdate, cancel context.CancelFunc, initial []*models.SessionRecord) sessionsModel {
	t := theme.DefaultTheme

	columns := []table.Column{
		{Title: "PID", Width: 8},
		{Title: "STATE", Width: 9},
		{Title: "TOOL", Width: 12},
		{Title: "MODEL", Width: 14},
		{Title: "TASK", Width: 30},
		{Title: "TOKENS", Width: 13},
		{Title: "COST", Width: 8},
	}

	tbl := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(t.Colors.Border).
		BorderBottom(true).
		Bold(true).
		Foreground(t.Colors.Violet)
	styles.Selected = styles.Selected.
		Foreground(t.Colors.Text).
		Background(t.Colors.Border).
		Bold(true)
	tbl.SetStyles(styles)

	m := sessionsModel{
		client:  client,
		updates: updates,
		cancel:  cancel,
		table:   tbl,
		help:    help.New(),
		keys:    keymap.NewSessionsKeyMap(),
		theme:   t,
	}
	m.setSessions(initial)
	return m
}

func (m *sessionsModel) setSessions(sessions []*models.SessionRecord) {
	m.sessions = sessions
	rows := make([]table.Row, 0, len(sessions))
	for _, s := range sessions {
		state := string(s.State)
		if s.PendingOutput {
			state += "!"
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", s.PID),
			state,
			truncate(s.CurrentTool, 12),
			truncate(s.Model, 14),
			truncate(s.TaskDescription, 30),
			fmt.Sprintf("%d/%d", s.InputTokens, s.OutputTokens),
			fmt.Sprintf("$%.2f", s.Cost),
		})
	}
	m.table.SetRows(rows)
}

// selectedPID returns the pid of the highlighted row, or 0.
func (m sessionsModel) selectedPID() int {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.sessions) {
		return 0
	}
	return m.sessions[idx].PID
}

func waitForUpdate(updates <-chan daemonclient.StateUpdate) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return streamClosedMsg{}
		}
		return stateMsg(u)
	}
}

func (m sessionsModel) Init() tea.Cmd {
	return waitForUpdate(m.updates)
}

func (m sessionsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.table.SetHeight(msg.Height - 6)
		m.help.Width = msg.Width
		return m, nil

	case stateMsg:
		m.setSessions(msg.Sessions)
		if msg.UpdateType == "config_reload" {
			m.lastNote = fmt.Sprintf("config changed: %s", msg.ConfigFile)
		} else {
			m.lastNote = fmt.Sprintf("%s update at %s", msg.UpdateType, time.Now().Format("15:04:05"))
		}
		return m, waitForUpdate(m.updates)

	case streamClosedMsg:
		m.closed = true
		m.lastNote = "daemon stream closed"
		return m, tea.Quit

	case actionErrMsg:
		m.lastNote = msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.cancel()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil

		case key.Matches(msg, m.keys.Refresh):
			if pid := m.selectedPID(); pid > 0 {
				return m, m.actionCmd(func(ctx context.Context) error {
					return m.client.Refresh(ctx, pid)
				})
			}
			return m, nil

		case key.Matches(msg, m.keys.Ack):
			if pid := m.selectedPID(); pid > 0 {
				return m, m.actionCmd(func(ctx context.Context) error {
					return m.client.Acknowledge(ctx, pid)
				})
			}
			return m, nil

		case key.Matches(msg, m.keys.MoveUp):
			return m, m.moveSelected(-1)

		case key.Matches(msg, m.keys.MoveDown):
			return m, m.moveSelected(1)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// moveSelected reorders the highlighted session by delta positions.
func (m *sessionsModel) moveSelected(delta int) tea.Cmd {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.sessions) {
		return nil
	}
	target := idx + delta
	if target < 0 || target >= len(m.sessions) {
		return nil
	}
	pid := m.sessions[idx].PID
	return m.actionCmd(func(ctx context.Context) error {
		return m.client.Reorder(ctx, pid, target)
	})
}

func (m sessionsModel) actionCmd(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			return actionErrMsg{err: err}
		}
		return nil
	}
}

func (m sessionsModel) View() string {
	title := m.theme.Title.Render(" CANOPY SESSIONS ")
	status := m.theme.Muted.Render(fmt.Sprintf(" %d session(s)  %s", len(m.sessions), m.lastNote))
	return fmt.Sprintf("%s\n%s\n%s\n%s\n", title, m.table.View(), status, m.help.View(m.keys))
}

func runSessionsTUI(cmd *cobra.Command) error {
	client, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	updates, err := client.StreamState(ctx)
	if err != nil {
		return err
	}

	initCtx, initCancel := context.WithTimeout(ctx, 5*time.Second)
	initial, err := client.GetSessions(initCtx)
	initCancel()
	if err != nil {
		return err
	}

	model := newSessionsModel(client, updates, cancel, initial)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}
