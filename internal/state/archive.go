package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ShayCichocki/conclave/internal/orchestrator"
	"github.com/ShayCichocki/conclave/pkg/models"
)

// ErrSessionNotFound is returned when no archived session has the requested ID.
var ErrSessionNotFound = errors.New("session not found")

// SessionRecord is the summary row of an archived session.
type SessionRecord struct {
	ID         string               `json:"id"`
	Workflow   string               `json:"workflow"`
	Version    string               `json:"version,omitempty"`
	Status     models.SessionStatus `json:"status"`
	Priority   models.RunPriority   `json:"priority"`
	Reason     string               `json:"reason,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Succeeded  int                  `json:"succeeded"`
	Failed     int                  `json:"failed"`
	Skipped    int                  `json:"skipped"`
	TokensUsed int64                `json:"tokens_used"`
}

// Duration is the wall time of the archived session.
func (r SessionRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SaveReport archives a final report. Saving the same session again
// replaces the earlier copy.
func (db *DB) SaveReport(r *orchestrator.FinalReport) error {
	if r == nil || r.SessionID == "" {
		return fmt.Errorf("save report: session id is required")
	}
	blob, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	return db.Transaction(func(tx *sql.Tx) error {
		if err := deleteSession(tx, r.SessionID); err != nil {
			return err
		}

		_, err := tx.Exec(`
			INSERT INTO sessions (id, workflow, version, status, priority, reason, started_at, finished_at,
				succeeded, failed, skipped, tokens_used, report)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.SessionID, r.Workflow, r.Version, string(r.Status), string(r.Priority), r.Reason,
			formatTime(r.StartedAt), formatTime(r.FinishedAt),
			r.Summary.Succeeded, r.Summary.Failed, r.Summary.Skipped, r.Summary.TokensUsed, string(blob))
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		for _, t := range r.Tasks {
			_, err := tx.Exec(`
				INSERT INTO task_outcomes (session_id, task_id, status, attempts, agent_id, last_error, reason, tokens_used)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, r.SessionID, t.TaskID, string(t.Status), t.Attempts, t.AgentID, t.LastError, t.Reason, t.TokensUsed)
			if err != nil {
				return fmt.Errorf("insert task outcome %s: %w", t.TaskID, err)
			}
		}

		keys := make([]string, 0, len(r.Artifacts))
		for k := range r.Artifacts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			e := r.Artifacts[k]
			value, err := json.Marshal(e.Value)
			if err != nil {
				return fmt.Errorf("encode artifact %s: %w", k, err)
			}
			_, err = tx.Exec(`
				INSERT INTO artifacts (session_id, key, version, task_id, agent_id, confidence, value)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, r.SessionID, k, int64(e.Version), e.Provenance.TaskID, e.Provenance.AgentID,
				nullFloat(e.Provenance.Confidence), string(value))
			if err != nil {
				return fmt.Errorf("insert artifact %s: %w", k, err)
			}
		}

		for i, s := range r.Superseded {
			value, err := json.Marshal(s.Value)
			if err != nil {
				return fmt.Errorf("encode superseded %s: %w", s.Key, err)
			}
			_, err = tx.Exec(`
				INSERT INTO superseded (session_id, seq, key, task_id, winner, confidence, value)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, r.SessionID, i, s.Key, s.Provenance.TaskID, s.Winner.TaskID,
				nullFloat(s.Provenance.Confidence), string(value))
			if err != nil {
				return fmt.Errorf("insert superseded %s: %w", s.Key, err)
			}
		}
		return nil
	})
}

// GetReport returns the archived report for id.
func (db *DB) GetReport(id string) (*orchestrator.FinalReport, error) {
	var blob string
	err := db.QueryRow(`SELECT report FROM sessions WHERE id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}

	var r orchestrator.FinalReport
	if err := json.Unmarshal([]byte(blob), &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &r, nil
}

// ListSessions returns the most recent sessions first. A limit of zero or
// less returns every session.
func (db *DB) ListSessions(limit int) ([]SessionRecord, error) {
	query := `
		SELECT id, workflow, version, status, priority, reason, started_at, finished_at,
			succeeded, failed, skipped, tokens_used
		FROM sessions ORDER BY started_at DESC, id ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var startedAt, finishedAt string
		if err := rows.Scan(&rec.ID, &rec.Workflow, &rec.Version, &rec.Status, &rec.Priority, &rec.Reason,
			&startedAt, &finishedAt, &rec.Succeeded, &rec.Failed, &rec.Skipped, &rec.TokensUsed); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.StartedAt, _ = parseTime(startedAt)
		rec.FinishedAt, _ = parseTime(finishedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FailedTasks returns the failed task outcomes of a session in id order.
func (db *DB) FailedTasks(sessionID string) ([]orchestrator.TaskOutcome, error) {
	rows, err := db.Query(`
		SELECT task_id, status, attempts, agent_id, last_error, reason, tokens_used
		FROM task_outcomes WHERE session_id = ? AND status = ? ORDER BY task_id
	`, sessionID, string(models.TaskStatusFailed))
	if err != nil {
		return nil, fmt.Errorf("list failed tasks: %w", err)
	}
	defer rows.Close()

	var out []orchestrator.TaskOutcome
	for rows.Next() {
		var t orchestrator.TaskOutcome
		if err := rows.Scan(&t.TaskID, &t.Status, &t.Attempts, &t.AgentID, &t.LastError, &t.Reason, &t.TokensUsed); err != nil {
			return nil, fmt.Errorf("scan task outcome: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ArtifactWriters returns the task that produced each archived artifact key.
func (db *DB) ArtifactWriters(sessionID string) (map[string]string, error) {
	rows, err := db.Query(`SELECT key, task_id FROM artifacts WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, taskID string
		if err := rows.Scan(&key, &taskID); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out[key] = taskID
	}
	return out, rows.Err()
}

// PurgeOldSessions deletes sessions that started before now minus olderThan.
// Returns the number of sessions deleted.
func (db *DB) PurgeOldSessions(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	var count int64
	err := db.Transaction(func(tx *sql.Tx) error {
		rows, err := tx.Query(`SELECT id FROM sessions WHERE started_at < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("find old sessions: %w", err)
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan session id: %w", err)
			}
			ids = append(ids, id)
		}
		rows.Close()

		for _, id := range ids {
			if err := deleteSession(tx, id); err != nil {
				return err
			}
		}
		count = int64(len(ids))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge old sessions: %w", err)
	}
	return count, nil
}

// deleteSession removes a session and its child rows.
func deleteSession(tx *sql.Tx, id string) error {
	for _, table := range []string{"superseded", "artifacts", "task_outcomes", "sessions"} {
		col := "session_id"
		if table == "sessions" {
			col = "id"
		}
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, col), id); err != nil {
			return fmt.Errorf("delete %s for %s: %w", table, id, err)
		}
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
