package tui

import (
	"fmt"
	"strings"
	"time"
)

// LogLevel represents the severity of a log line.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// LogEntry is one line of the activity log.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	AgentID   string
	TaskID    string
	Message   string
}

// LogsPanel keeps the most recent activity lines, newest at the bottom.
type LogsPanel struct {
	entries []LogEntry
	maxLogs int
	width   int
	height  int
}

// NewLogsPanel creates a LogsPanel keeping at most maxLogs entries.
func NewLogsPanel(maxLogs int) *LogsPanel {
	if maxLogs < 1 {
		maxLogs = 500
	}
	return &LogsPanel{maxLogs: maxLogs, width: 60, height: 10}
}

// SetSize sets the panel dimensions including its border.
func (p *LogsPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// Add appends an entry, dropping the oldest past the limit.
func (p *LogsPanel) Add(e LogEntry) {
	p.entries = append(p.entries, e)
	if over := len(p.entries) - p.maxLogs; over > 0 {
		p.entries = append(p.entries[:0], p.entries[over:]...)
	}
}

// Len returns the number of retained entries.
func (p *LogsPanel) Len() int { return len(p.entries) }

// View renders the tail of the log that fits the panel.
func (p *LogsPanel) View() string {
	rows := p.height - 3
	if rows < 1 {
		rows = 1
	}
	start := len(p.entries) - rows
	if start < 0 {
		start = 0
	}
	inner := p.width - 4

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Activity"))
	for _, e := range p.entries[start:] {
		sb.WriteString("\n")
		sb.WriteString(p.renderEntry(e, inner))
	}
	return borderStyle.Width(p.width - 2).Height(p.height - 2).Render(sb.String())
}

func (p *LogsPanel) renderEntry(e LogEntry, width int) string {
	ts := timeStyle.Render(e.Timestamp.Format("15:04:05"))
	who := e.TaskID
	if e.AgentID != "" {
		who = fmt.Sprintf("%s@%s", e.TaskID, e.AgentID)
	}
	msg := truncate(e.Message, width-len(who)-12)
	switch e.Level {
	case LogLevelError:
		msg = errorStyle.Render(msg)
	case LogLevelWarn:
		msg = warnStyle.Render(msg)
	}
	if who == "" {
		return ts + " " + msg
	}
	return ts + " " + agentStyle.Render(who) + " " + msg
}
