package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/conclave/internal/orchestrator"
	"github.com/ShayCichocki/conclave/pkg/models"
)

// Controller is the session surface the monitor drives.
type Controller interface {
	ID() string
	Pause()
	Resume()
	Cancel()
	IsPaused() bool
	Snapshot() orchestrator.Snapshot
}

// Monitor is the bubbletea model for a running session.
type Monitor struct {
	ctrl    Controller
	refresh time.Duration

	spinner spinner.Model
	tasks   *TasksPanel
	logs    *LogsPanel

	workflow  string
	status    models.SessionStatus
	paused    bool
	startedAt time.Time
	width     int
	height    int

	done     bool
	report   *orchestrator.FinalReport
	err      error
	quitting bool
}

// NewMonitor creates a monitor for ctrl that polls snapshots every refresh.
func NewMonitor(ctrl Controller, refresh time.Duration) *Monitor {
	if refresh <= 0 {
		refresh = 100 * time.Millisecond
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = agentStyle

	m := &Monitor{
		ctrl:      ctrl,
		refresh:   refresh,
		spinner:   sp,
		tasks:     NewTasksPanel(),
		logs:      NewLogsPanel(500),
		status:    models.SessionRunning,
		startedAt: time.Now(),
		width:     80,
		height:    24,
	}
	snap := ctrl.Snapshot()
	m.applySnapshot(snap)
	m.layout()
	return m
}

// Report returns the final report once the session is done.
func (m *Monitor) Report() *orchestrator.FinalReport { return m.report }

// Err returns the error Await returned, if any.
func (m *Monitor) Err() error { return m.err }

// Init implements tea.Model.
func (m *Monitor) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick())
}

func (m *Monitor) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// Update implements tea.Model.
func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg.String())

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case refreshMsg:
		if m.done {
			return m, nil
		}
		m.applySnapshot(m.ctrl.Snapshot())
		return m, m.tick()

	case SnapshotMsg:
		m.applySnapshot(msg.Snapshot)

	case EventMsg:
		m.handleEvent(msg.Event)

	case SessionDoneMsg:
		m.done = true
		m.report = msg.Report
		m.err = msg.Err
		if msg.Report != nil {
			m.status = msg.Report.Status
			records := make([]models.ExecutionRecord, 0, len(msg.Report.Tasks))
			for _, t := range msg.Report.Tasks {
				records = append(records, models.ExecutionRecord{
					TaskID: t.TaskID, Status: t.Status, Attempts: t.Attempts,
					AgentID: t.AgentID, LastError: t.LastError, Reason: t.Reason,
				})
			}
			m.tasks.SetRecords(records)
		}
		m.logs.Add(LogEntry{Timestamp: time.Now(), Level: m.doneLevel(), Message: m.doneMessage()})
	}
	return m, nil
}

func (m *Monitor) handleKey(key string) tea.Cmd {
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return tea.Quit
	case "p", " ":
		if m.done {
			return nil
		}
		if m.ctrl.IsPaused() {
			m.ctrl.Resume()
		} else {
			m.ctrl.Pause()
		}
		m.paused = m.ctrl.IsPaused()
	case "c":
		if !m.done {
			m.ctrl.Cancel()
			m.logs.Add(LogEntry{Timestamp: time.Now(), Level: LogLevelWarn, Message: "cancel requested"})
		}
	case "up", "k":
		m.tasks.ScrollUp()
	case "down", "j":
		m.tasks.ScrollDown()
	}
	return nil
}

func (m *Monitor) applySnapshot(s orchestrator.Snapshot) {
	if s.Workflow != "" {
		m.workflow = s.Workflow
	}
	if s.Status != "" {
		m.status = s.Status
	}
	m.paused = s.Paused
	m.tasks.SetRecords(s.Records)
}

// handleEvent logs the event and updates the matching row.
func (m *Monitor) handleEvent(e orchestrator.Event) {
	entry := LogEntry{
		Timestamp: e.Timestamp,
		Level:     LogLevelInfo,
		AgentID:   e.AgentID,
		TaskID:    e.TaskID,
		Message:   describe(e),
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	switch e.Type {
	case orchestrator.EventTaskReady:
		m.tasks.Apply(e.TaskID, "", models.TaskStatusReady, 0, "")
	case orchestrator.EventTaskDispatched:
		m.tasks.Apply(e.TaskID, e.AgentID, models.TaskStatusDispatched, e.Attempt, "")
	case orchestrator.EventTaskRetrying:
		entry.Level = LogLevelWarn
		m.tasks.Apply(e.TaskID, e.AgentID, models.TaskStatusRetrying, e.Attempt, "")
	case orchestrator.EventTaskSucceeded:
		m.tasks.Apply(e.TaskID, e.AgentID, models.TaskStatusSucceeded, 0, "")
	case orchestrator.EventTaskFailed:
		entry.Level = LogLevelError
		m.tasks.Apply(e.TaskID, e.AgentID, models.TaskStatusFailed, 0, e.Message)
	case orchestrator.EventTaskSkipped:
		m.tasks.Apply(e.TaskID, "", models.TaskStatusSkipped, 0, e.Message)
	case orchestrator.EventArtifactSuperseded, orchestrator.EventLateResult:
		entry.Level = LogLevelWarn
	case orchestrator.EventSessionPaused:
		m.paused = true
	case orchestrator.EventSessionResumed:
		m.paused = false
	}
	m.logs.Add(entry)
}

// describe renders an event as one log line.
func describe(e orchestrator.Event) string {
	var msg string
	switch e.Type {
	case orchestrator.EventTaskDispatched:
		msg = fmt.Sprintf("dispatched (attempt %d)", e.Attempt)
	case orchestrator.EventTaskRetrying:
		msg = fmt.Sprintf("retrying after attempt %d", e.Attempt)
	case orchestrator.EventArtifactWritten:
		msg = "wrote " + e.Key
	case orchestrator.EventArtifactSuperseded:
		msg = "write to " + e.Key + " superseded"
	default:
		msg = strings.ReplaceAll(string(e.Type), "_", " ")
	}
	if e.Message != "" && e.Type != orchestrator.EventArtifactWritten {
		msg += ": " + e.Message
	}
	if e.Error != nil {
		msg += ": " + e.Error.Error()
	}
	return msg
}

func (m *Monitor) doneLevel() LogLevel {
	if m.err != nil || m.status != models.SessionCompleted {
		return LogLevelError
	}
	return LogLevelInfo
}

func (m *Monitor) doneMessage() string {
	var aborted *orchestrator.AbortedError
	switch {
	case errors.As(m.err, &aborted):
		return "session aborted: " + aborted.Reason
	case m.err != nil:
		return "session error: " + m.err.Error()
	case m.report != nil:
		s := m.report.Summary
		return fmt.Sprintf("session %s: %d succeeded, %d failed, %d skipped in %s",
			m.report.Status, s.Succeeded, s.Failed, s.Skipped, m.report.Duration().Round(time.Millisecond))
	default:
		return "session finished"
	}
}

// layout splits the screen between the tasks table and the activity log.
func (m *Monitor) layout() {
	body := m.height - 2 // header + footer
	if body < 8 {
		body = 8
	}
	tasksH := body * 3 / 5
	m.tasks.SetSize(m.width, tasksH)
	m.logs.SetSize(m.width, body-tasksH)
}

// View implements tea.Model.
func (m *Monitor) View() string {
	if m.quitting {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.tasks.View(),
		m.logs.View(),
		m.footerView(),
	)
}

func (m *Monitor) headerView() string {
	indicator := m.spinner.View()
	if m.done {
		indicator = statusSymbol(models.TaskStatusSucceeded)
		if m.status != models.SessionCompleted {
			indicator = statusSymbol(models.TaskStatusFailed)
		}
	}
	line := fmt.Sprintf("%s %s  session %s  %s  %s", indicator,
		titleStyle.Render(m.workflow), m.ctrl.ID(), string(m.status),
		timeStyle.Render(time.Since(m.startedAt).Round(time.Second).String()))
	if m.paused && !m.done {
		line += "  " + pausedStyle.Render("PAUSED")
	}
	return line
}

func (m *Monitor) footerView() string {
	c := m.tasks.Counts()
	counts := fmt.Sprintf("✓%d", c[models.TaskStatusSucceeded])
	if n := c[models.TaskStatusFailed]; n > 0 {
		counts += errorStyle.Render(fmt.Sprintf(" ✗%d", n))
	}
	if n := c[models.TaskStatusDispatched]; n > 0 {
		counts += fmt.Sprintf(" ▶%d", n)
	}
	if n := c[models.TaskStatusSkipped]; n > 0 {
		counts += hintStyle.Render(fmt.Sprintf(" –%d", n))
	}

	sep := separatorStyle.Render(" │ ")
	if m.done {
		msg := m.doneMessage()
		if m.doneLevel() == LogLevelError {
			msg = errorStyle.Render(msg)
		} else {
			msg = successStyle.Render(msg)
		}
		return counts + sep + msg + sep + hintStyle.Render("q exit")
	}
	return counts + sep + hintStyle.Render("p pause/resume │ c cancel │ ↑/↓ scroll │ q quit")
}

var _ tea.Model = (*Monitor)(nil)
