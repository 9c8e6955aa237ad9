package tui

import (
	"time"

	"github.com/ShayCichocki/conclave/internal/orchestrator"
)

// EventMsg carries one session event into the program.
type EventMsg struct {
	Event orchestrator.Event
}

// SnapshotMsg replaces the task table with a fresh session snapshot.
type SnapshotMsg struct {
	Snapshot orchestrator.Snapshot
}

// SessionDoneMsg reports that Await returned.
type SessionDoneMsg struct {
	Report *orchestrator.FinalReport
	Err    error
}

// refreshMsg triggers a snapshot poll.
type refreshMsg time.Time
