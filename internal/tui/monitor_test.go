package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/conclave/internal/orchestrator"
	"github.com/ShayCichocki/conclave/pkg/models"
)

type fakeController struct {
	paused    bool
	cancelled int
	snap      orchestrator.Snapshot
}

func (f *fakeController) ID() string                      { return "s-1" }
func (f *fakeController) Pause()                          { f.paused = true }
func (f *fakeController) Resume()                         { f.paused = false }
func (f *fakeController) Cancel()                         { f.cancelled++ }
func (f *fakeController) IsPaused() bool                  { return f.paused }
func (f *fakeController) Snapshot() orchestrator.Snapshot { return f.snap }

func newFake() *fakeController {
	return &fakeController{snap: orchestrator.Snapshot{
		SessionID: "s-1",
		Workflow:  "build",
		Status:    models.SessionRunning,
		Records: []models.ExecutionRecord{
			{TaskID: "b", Status: models.TaskStatusPending},
			{TaskID: "a", Status: models.TaskStatusReady},
		},
	}}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewMonitorLoadsSnapshot(t *testing.T) {
	m := NewMonitor(newFake(), 0)

	if m.workflow != "build" {
		t.Errorf("workflow = %q, want build", m.workflow)
	}
	if len(m.tasks.records) != 2 {
		t.Fatalf("records = %d, want 2", len(m.tasks.records))
	}
	if m.tasks.records[0].TaskID != "a" {
		t.Errorf("records not sorted: first = %q", m.tasks.records[0].TaskID)
	}
	if m.refresh != 100*time.Millisecond {
		t.Errorf("refresh = %v, want default", m.refresh)
	}
}

func TestPauseKeyToggles(t *testing.T) {
	ctrl := newFake()
	m := NewMonitor(ctrl, time.Second)

	m.Update(keyMsg("p"))
	if !ctrl.paused || !m.paused {
		t.Fatal("expected paused after first p")
	}
	if !strings.Contains(m.View(), "PAUSED") {
		t.Error("header should show PAUSED")
	}

	m.Update(keyMsg("p"))
	if ctrl.paused || m.paused {
		t.Fatal("expected resumed after second p")
	}
}

func TestCancelKey(t *testing.T) {
	ctrl := newFake()
	m := NewMonitor(ctrl, time.Second)

	m.Update(keyMsg("c"))
	if ctrl.cancelled != 1 {
		t.Errorf("cancelled = %d, want 1", ctrl.cancelled)
	}
	if m.logs.Len() != 1 {
		t.Errorf("expected a log entry for the cancel request, got %d", m.logs.Len())
	}

	m.Update(SessionDoneMsg{Report: &orchestrator.FinalReport{Status: models.SessionAborted}})
	m.Update(keyMsg("c"))
	if ctrl.cancelled != 1 {
		t.Error("cancel after done should be ignored")
	}
}

func TestQuitKeys(t *testing.T) {
	for _, k := range []string{"q", "ctrl+c"} {
		m := NewMonitor(newFake(), time.Second)
		_, cmd := m.Update(keyMsg(k))
		if cmd == nil {
			t.Fatalf("%s: expected quit command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s: expected tea.QuitMsg", k)
		}
		if m.View() != "" {
			t.Errorf("%s: view should be empty after quit", k)
		}
	}
}

func TestEventUpdatesRows(t *testing.T) {
	m := NewMonitor(newFake(), time.Second)

	m.Update(EventMsg{Event: orchestrator.Event{
		Type: orchestrator.EventTaskDispatched, TaskID: "a", AgentID: "coder", Attempt: 1,
	}})
	r := m.tasks.records[0]
	if r.Status != models.TaskStatusDispatched || r.AgentID != "coder" || r.Attempts != 1 {
		t.Errorf("row a = %+v", r)
	}

	m.Update(EventMsg{Event: orchestrator.Event{
		Type: orchestrator.EventTaskFailed, TaskID: "a", AgentID: "coder", Error: errors.New("boom"),
	}})
	if m.tasks.records[0].Status != models.TaskStatusFailed {
		t.Errorf("row a status = %s, want failed", m.tasks.records[0].Status)
	}
	last := m.logs.entries[m.logs.Len()-1]
	if last.Level != LogLevelError {
		t.Errorf("failure logged at %s, want ERROR", last.Level)
	}
	if !strings.Contains(last.Message, "boom") {
		t.Errorf("log message %q should carry the error", last.Message)
	}

	// Unknown task ids are added as new rows.
	m.Update(EventMsg{Event: orchestrator.Event{Type: orchestrator.EventTaskReady, TaskID: "c"}})
	if len(m.tasks.records) != 3 {
		t.Errorf("records = %d, want 3", len(m.tasks.records))
	}
}

func TestPauseEvents(t *testing.T) {
	m := NewMonitor(newFake(), time.Second)
	m.Update(EventMsg{Event: orchestrator.Event{Type: orchestrator.EventSessionPaused}})
	if !m.paused {
		t.Error("expected paused after session_paused event")
	}
	m.Update(EventMsg{Event: orchestrator.Event{Type: orchestrator.EventSessionResumed}})
	if m.paused {
		t.Error("expected running after session_resumed event")
	}
}

func TestRefreshPollsSnapshot(t *testing.T) {
	ctrl := newFake()
	m := NewMonitor(ctrl, time.Second)

	ctrl.snap.Records = []models.ExecutionRecord{{TaskID: "a", Status: models.TaskStatusSucceeded}}
	_, cmd := m.Update(refreshMsg(time.Now()))
	if cmd == nil {
		t.Error("refresh should schedule the next tick")
	}
	if len(m.tasks.records) != 1 || m.tasks.records[0].Status != models.TaskStatusSucceeded {
		t.Errorf("records = %+v", m.tasks.records)
	}

	m.Update(SessionDoneMsg{Report: &orchestrator.FinalReport{Status: models.SessionCompleted}})
	if _, cmd := m.Update(refreshMsg(time.Now())); cmd != nil {
		t.Error("refresh should stop once the session is done")
	}
}

func TestSessionDone(t *testing.T) {
	m := NewMonitor(newFake(), time.Second)
	now := time.Now()
	report := &orchestrator.FinalReport{
		SessionID:  "s-1",
		Status:     models.SessionFailed,
		StartedAt:  now.Add(-time.Second),
		FinishedAt: now,
		Tasks: []orchestrator.TaskOutcome{
			{TaskID: "a", Status: models.TaskStatusSucceeded, Attempts: 1},
			{TaskID: "b", Status: models.TaskStatusFailed, Attempts: 3, LastError: "boom"},
		},
		Summary: orchestrator.Summary{Succeeded: 1, Failed: 1},
	}

	m.Update(SessionDoneMsg{Report: report})

	if m.Report() != report {
		t.Error("report not retained")
	}
	if m.status != models.SessionFailed {
		t.Errorf("status = %s, want failed", m.status)
	}
	c := m.tasks.Counts()
	if c[models.TaskStatusSucceeded] != 1 || c[models.TaskStatusFailed] != 1 {
		t.Errorf("counts = %v", c)
	}
	view := m.View()
	if !strings.Contains(view, "1 succeeded, 1 failed") {
		t.Errorf("footer should summarize the run:\n%s", view)
	}
}

func TestSessionDoneAborted(t *testing.T) {
	m := NewMonitor(newFake(), time.Second)
	m.Update(SessionDoneMsg{
		Report: &orchestrator.FinalReport{Status: models.SessionAborted},
		Err:    &orchestrator.AbortedError{SessionID: "s-1", Reason: "cancelled"},
	})
	if got := m.doneMessage(); got != "session aborted: cancelled" {
		t.Errorf("doneMessage = %q", got)
	}
	var aborted *orchestrator.AbortedError
	if !errors.As(m.Err(), &aborted) {
		t.Error("Err should return the AbortedError")
	}
}

func TestWindowResize(t *testing.T) {
	m := NewMonitor(newFake(), time.Second)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if m.tasks.width != 120 || m.logs.width != 120 {
		t.Errorf("widths = %d/%d, want 120", m.tasks.width, m.logs.width)
	}
	if m.tasks.height+m.logs.height != 38 {
		t.Errorf("panel heights = %d+%d, want 38", m.tasks.height, m.logs.height)
	}
}

func TestLogsPanelLimit(t *testing.T) {
	p := NewLogsPanel(3)
	for i := 0; i < 5; i++ {
		p.Add(LogEntry{Message: string(rune('a' + i))})
	}
	if p.Len() != 3 {
		t.Fatalf("Len = %d, want 3", p.Len())
	}
	if p.entries[0].Message != "c" {
		t.Errorf("oldest kept = %q, want c", p.entries[0].Message)
	}
}

func TestTasksPanelScroll(t *testing.T) {
	p := NewTasksPanel()
	p.SetSize(60, 6) // two visible rows
	var recs []models.ExecutionRecord
	for _, id := range []string{"a", "b", "c", "d"} {
		recs = append(recs, models.ExecutionRecord{TaskID: id, Status: models.TaskStatusPending})
	}
	p.SetRecords(recs)

	for i := 0; i < 10; i++ {
		p.ScrollDown()
	}
	if p.scrollOffset != 2 {
		t.Errorf("scrollOffset = %d, want 2", p.scrollOffset)
	}
	p.ScrollUp()
	p.ScrollUp()
	p.ScrollUp()
	if p.scrollOffset != 0 {
		t.Errorf("scrollOffset = %d, want 0", p.scrollOffset)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 4, "hel…"},
		{"hello", 1, "h"},
		{"hello", 0, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
