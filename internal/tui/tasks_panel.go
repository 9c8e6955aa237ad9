package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/conclave/pkg/models"
)

// TasksPanel renders the execution records of a session as a table.
type TasksPanel struct {
	records      []models.ExecutionRecord
	scrollOffset int
	width        int
	height       int
}

// NewTasksPanel creates an empty TasksPanel.
func NewTasksPanel() *TasksPanel {
	return &TasksPanel{width: 60, height: 10}
}

// SetSize sets the panel dimensions including its border.
func (p *TasksPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
	p.clampScroll()
}

// SetRecords replaces the table contents. Records are shown in task id order.
func (p *TasksPanel) SetRecords(records []models.ExecutionRecord) {
	p.records = append(p.records[:0], records...)
	sort.Slice(p.records, func(i, j int) bool { return p.records[i].TaskID < p.records[j].TaskID })
	p.clampScroll()
}

// Apply updates one record from an event without waiting for the next snapshot.
func (p *TasksPanel) Apply(taskID, agentID string, status models.TaskStatus, attempt int, reason string) {
	for i := range p.records {
		if p.records[i].TaskID != taskID {
			continue
		}
		r := &p.records[i]
		r.Status = status
		if agentID != "" {
			r.AgentID = agentID
		}
		if attempt > 0 {
			r.Attempts = attempt
		}
		if reason != "" {
			r.Reason = reason
		}
		return
	}
	p.SetRecords(append(p.records, models.ExecutionRecord{
		TaskID: taskID, AgentID: agentID, Status: status, Attempts: attempt, Reason: reason,
	}))
}

// Counts tallies records by status.
func (p *TasksPanel) Counts() map[models.TaskStatus]int {
	counts := make(map[models.TaskStatus]int)
	for _, r := range p.records {
		counts[r.Status]++
	}
	return counts
}

// ScrollUp moves the view one row up.
func (p *TasksPanel) ScrollUp() {
	if p.scrollOffset > 0 {
		p.scrollOffset--
	}
}

// ScrollDown moves the view one row down.
func (p *TasksPanel) ScrollDown() {
	p.scrollOffset++
	p.clampScroll()
}

func (p *TasksPanel) visibleRows() int {
	// border (2) + title (1) + column header (1)
	rows := p.height - 4
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (p *TasksPanel) clampScroll() {
	last := len(p.records) - p.visibleRows()
	if last < 0 {
		last = 0
	}
	if p.scrollOffset > last {
		p.scrollOffset = last
	}
}

// View renders the panel.
func (p *TasksPanel) View() string {
	inner := p.width - 4
	if inner < 20 {
		inner = 20
	}
	idW := inner / 3
	agentW := inner / 4

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("Tasks (%d)", len(p.records))))
	sb.WriteString("\n")
	sb.WriteString(hintStyle.Render(fmt.Sprintf("  %-*s %-10s %-*s %s", idW, "TASK", "STATUS", agentW, "AGENT", "TRY")))

	end := p.scrollOffset + p.visibleRows()
	if end > len(p.records) {
		end = len(p.records)
	}
	for _, r := range p.records[p.scrollOffset:end] {
		line := fmt.Sprintf("%s %-*s %-10s %-*s %d",
			statusSymbol(r.Status),
			idW, truncate(r.TaskID, idW),
			string(r.Status),
			agentW, truncate(r.AgentID, agentW),
			r.Attempts)
		if r.Reason != "" {
			line += " " + truncate(r.Reason, inner-lipgloss.Width(line)-1)
		}
		sb.WriteString("\n")
		sb.WriteString(statusStyle(r.Status).Render(line))
	}

	return borderStyle.Width(p.width - 2).Height(p.height - 2).Render(sb.String())
}

// truncate shortens s to n cells, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if n == 1 || len(r) <= 1 {
		return string(r[:1])
	}
	if len(r) > n-1 {
		r = r[:n-1]
	}
	return string(r) + "…"
}
