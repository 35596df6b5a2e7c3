package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskledger/internal/observability"
	"github.com/valter-silva-au/taskledger/pkg/models"
)

// Watch panel indices.
const (
	panelLedger = iota
	panelEvents
	panelCount
)

// maxWatchRows caps how many ledger entries and events a panel lists.
const maxWatchRows = 10

type watchModel struct {
	taskID      string
	interval    time.Duration
	activePanel int
	width       int

	task    *models.Task
	ledger  []models.ProgressLogEntry
	events  []observability.Event
	updated time.Time

	loading bool
	err     error
}

// watchLoadedMsg carries a fresh snapshot back to the model.
type watchLoadedMsg struct {
	task   *models.Task
	ledger []models.ProgressLogEntry
	events []observability.Event
	at     time.Time
	err    error
}

// watchTickMsg triggers the periodic refresh.
type watchTickMsg time.Time

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activePanelStyle = panelStyle.
				BorderForeground(lipgloss.Color("62"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	statusUnclaimed  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusClaimed    = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	statusInProgress = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusPaused     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statusBlocked    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusDone       = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newWatchModel(taskID string, interval time.Duration) watchModel {
	return watchModel{
		taskID:   taskID,
		interval: interval,
		loading:  true,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.load, m.tick())
}

func (m watchModel) tick() tea.Cmd {
	if m.interval <= 0 {
		return nil
	}
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return watchTickMsg(t) })
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, m.load
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case watchTickMsg:
		return m, tea.Batch(m.load, m.tick())

	case watchLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.task = msg.task
		m.ledger = msg.ledger
		m.events = msg.events
		m.updated = msg.at
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m watchModel) View() string {
	title := titleStyle.Render(fmt.Sprintf(" Task %s ", m.taskID))
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}
	if m.task == nil {
		return fmt.Sprintf("%s\n\n  Loading...\n\n%s", title, help)
	}

	width := m.width - 4
	if width < 40 {
		width = 76
	}

	summary := m.renderSummary()
	ledger := m.panel(panelLedger, m.renderLedger(), width)
	events := m.panel(panelEvents, m.renderEvents(), width)

	footer := help
	if !m.updated.IsZero() {
		footer = fmt.Sprintf("%s  %s", help, helpStyle.Render("updated "+m.updated.Format("15:04:05")))
	}
	return fmt.Sprintf("%s\n\n%s\n%s\n\n%s", title, summary,
		lipgloss.JoinVertical(lipgloss.Left, ledger, events), footer)
}

func (m watchModel) panel(idx int, content string, width int) string {
	style := panelStyle
	if m.activePanel == idx {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m watchModel) renderSummary() string {
	t := m.task
	var b strings.Builder
	fmt.Fprintf(&b, "  %s\n", t.Title)
	fmt.Fprintf(&b, "  %s  %s\n", styleForStatus(t.Status).Render(string(t.Status)), progressBar(t.ProgressPercentage, 30))
	if t.AssigneeID != nil {
		fmt.Fprintf(&b, "  assignee: %s\n", *t.AssigneeID)
	}
	if t.PauseReason != nil {
		fmt.Fprintf(&b, "  paused: %s\n", *t.PauseReason)
	}
	if t.BlockerReason != nil {
		fmt.Fprintf(&b, "  blocked: %s\n", *t.BlockerReason)
	}
	return b.String()
}

func (m watchModel) renderLedger() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Progress ledger"))
	b.WriteString("\n")
	if len(m.ledger) == 0 {
		b.WriteString("  No progress reported.")
		return b.String()
	}
	for i, e := range m.ledger {
		if i == maxWatchRows {
			fmt.Fprintf(&b, "  ... %d more", len(m.ledger)-maxWatchRows)
			break
		}
		fmt.Fprintf(&b, "  %s  %-12s %3d%% (%+d) %s\n",
			e.ReportedAt.Local().Format("01-02 15:04"), e.ActorID, e.ProgressPercentage, e.ProgressDelta, e.Notes)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m watchModel) renderEvents() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Events"))
	b.WriteString("\n")
	if len(m.events) == 0 {
		b.WriteString("  No events recorded.")
		return b.String()
	}
	start := 0
	if len(m.events) > maxWatchRows {
		start = len(m.events) - maxWatchRows
	}
	for i := len(m.events) - 1; i >= start; i-- {
		e := m.events[i]
		fmt.Fprintf(&b, "  %s  %-24s %s\n", e.Time.Local().Format("01-02 15:04"), e.Type, e.ActorID)
	}
	return strings.TrimRight(b.String(), "\n")
}

func progressBar(pct, width int) string {
	pct = max(0, min(pct, 100))
	filled := pct * width / 100
	return fmt.Sprintf("[%s%s] %3d%%", strings.Repeat("█", filled), strings.Repeat("░", width-filled), pct)
}

func styleForStatus(status models.TaskStatus) lipgloss.Style {
	switch status {
	case models.StatusUnclaimed:
		return statusUnclaimed
	case models.StatusClaimed:
		return statusClaimed
	case models.StatusInProgress:
		return statusInProgress
	case models.StatusPaused:
		return statusPaused
	case models.StatusBlocked:
		return statusBlocked
	case models.StatusDone:
		return statusDone
	default:
		return lipgloss.NewStyle()
	}
}

func (m watchModel) load() tea.Msg {
	return loadWatchSnapshot(context.Background(), m.taskID)
}

func loadWatchSnapshot(ctx context.Context, taskID string) watchLoadedMsg {
	result := watchLoadedMsg{at: time.Now()}
	if Lifecycle == nil {
		result.err = fmt.Errorf("lifecycle service not initialized")
		return result
	}

	task, err := Lifecycle.GetTask(ctx, taskID)
	if err != nil {
		result.err = fmt.Errorf("loading task: %w", err)
		return result
	}
	result.task = task

	ledger, err := Lifecycle.GetTaskProgressLogs(ctx, taskID)
	if err != nil {
		result.err = fmt.Errorf("loading progress logs: %w", err)
		return result
	}
	result.ledger = ledger

	if EventLog != nil {
		events, err := EventLog.Read(observability.EventFilter{TaskID: taskID})
		if err != nil {
			result.err = fmt.Errorf("loading events: %w", err)
			return result
		}
		result.events = events
	}
	return result
}

var watchInterval time.Duration

var taskWatchCmd = &cobra.Command{
	Use:   "watch <task-id>",
	Short: "Live view of a task, its ledger and its events",
	Long: `Open a terminal view of one task that refreshes on an interval.

Switch panels with Tab, refresh with r, quit with q.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLifecycle(); err != nil {
			return err
		}
		// Fail fast on unknown ids instead of opening an empty screen.
		if _, err := Lifecycle.GetTask(cmdContext(cmd), args[0]); err != nil {
			return fmt.Errorf("watching task %s: %w", args[0], err)
		}

		p := tea.NewProgram(newWatchModel(args[0], watchInterval), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	taskWatchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "Refresh interval (0 disables auto refresh)")
	taskCmd.AddCommand(taskWatchCmd)
}
