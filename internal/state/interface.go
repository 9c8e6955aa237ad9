package state

import (
	"io"

	"github.com/ShayCichocki/conclave/internal/orchestrator"
)

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
}

// ReportStore persists final reports of finished sessions.
type ReportStore interface {
	SaveReport(r *orchestrator.FinalReport) error
	GetReport(id string) (*orchestrator.FinalReport, error)
	ListSessions(limit int) ([]SessionRecord, error)
}

// Archive is the full persistence surface the CLI depends on.
type Archive interface {
	io.Closer
	Migrator
	ReportStore
}

var (
	_ Archive     = (*DB)(nil)
	_ ReportStore = (*DB)(nil)
)
