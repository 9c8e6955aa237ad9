package state

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/conclave/internal/artifact"
	"github.com/ShayCichocki/conclave/internal/orchestrator"
	"github.com/ShayCichocki/conclave/pkg/models"
)

func sampleReport(id string, started time.Time) *orchestrator.FinalReport {
	return &orchestrator.FinalReport{
		SessionID:  id,
		Workflow:   "feature-development",
		Version:    "1",
		Status:     models.SessionFailed,
		Priority:   models.PriorityHigh,
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Tasks: []orchestrator.TaskOutcome{
			{TaskID: "design", Status: models.TaskStatusSucceeded, Attempts: 1, AgentID: "architect", TokensUsed: 40},
			{TaskID: "build", Status: models.TaskStatusFailed, Attempts: 3, AgentID: "builder", LastError: "agent error"},
			{TaskID: "ship", Status: models.TaskStatusSkipped, Reason: "dependency failed"},
		},
		Artifacts: map[string]artifact.Entry{
			"design_doc": {
				Key:     "design_doc",
				Value:   map[string]any{"routes": float64(3)},
				Version: 2,
				Provenance: artifact.Provenance{
					TaskID: "design", AgentID: "architect", Confidence: models.Confidence(0.9),
				},
			},
		},
		Superseded: []artifact.Superseded{
			{Key: "design_doc", Value: "draft", Winner: artifact.Provenance{TaskID: "design"}, Provenance: artifact.Provenance{TaskID: "sketch"}},
		},
		Summary: orchestrator.Summary{
			Succeeded: 1, Failed: 1, Skipped: 1, TotalAttempts: 4, TokensUsed: 40,
			Issues: []orchestrator.Issue{{TaskID: "build", Error: "agent error"}},
		},
	}
}

func TestSaveAndGetReport(t *testing.T) {
	db := setupTestDB(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := sampleReport("s1", started)

	require.NoError(t, db.SaveReport(r))

	got, err := db.GetReport("s1")
	require.NoError(t, err)
	assert.Equal(t, r.Workflow, got.Workflow)
	assert.Equal(t, r.Status, got.Status)
	assert.True(t, r.StartedAt.Equal(got.StartedAt))
	assert.Len(t, got.Tasks, 3)
	assert.Equal(t, r.Summary.Issues, got.Summary.Issues)
	assert.Equal(t, map[string]any{"routes": float64(3)}, got.Artifacts["design_doc"].Value)
	require.Len(t, got.Superseded, 1)
	assert.Equal(t, "sketch", got.Superseded[0].Provenance.TaskID)
	assert.Equal(t, "design", got.Superseded[0].Winner.TaskID)

	var winner string
	require.NoError(t, db.QueryRow(`SELECT winner FROM superseded WHERE session_id = ?`, "s1").Scan(&winner))
	assert.Equal(t, "design", winner)

	failed, err := db.FailedTasks("s1")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "build", failed[0].TaskID)
	assert.Equal(t, 3, failed[0].Attempts)

	writers, err := db.ArtifactWriters("s1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"design_doc": "design"}, writers)
}

func TestSaveReport_Replaces(t *testing.T) {
	db := setupTestDB(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	r := sampleReport("s1", started)
	require.NoError(t, db.SaveReport(r))

	r.Status = models.SessionCompleted
	r.Tasks = r.Tasks[:1]
	require.NoError(t, db.SaveReport(r))

	sessions, err := db.ListSessions(0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, models.SessionCompleted, sessions[0].Status)

	failed, err := db.FailedTasks("s1")
	require.NoError(t, err)
	assert.Empty(t, failed, "old task rows are replaced")
}

func TestSaveReport_RequiresID(t *testing.T) {
	db := setupTestDB(t)
	assert.Error(t, db.SaveReport(&orchestrator.FinalReport{}))
	assert.Error(t, db.SaveReport(nil))
}

func TestGetReport_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.GetReport("missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound), "got %v", err)
}

func TestListSessions_Order(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, db.SaveReport(sampleReport("old", base)))
	require.NoError(t, db.SaveReport(sampleReport("mid", base.Add(500*time.Millisecond))))
	require.NoError(t, db.SaveReport(sampleReport("new", base.Add(time.Hour))))

	all, err := db.ListSessions(0)
	require.NoError(t, err)
	ids := make([]string, len(all))
	for i, s := range all {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{"new", "mid", "old"}, ids)
	assert.Equal(t, 90*time.Second, all[0].Duration())
	assert.Equal(t, models.PriorityHigh, all[0].Priority)
	assert.Equal(t, int64(40), all[0].TokensUsed)

	limited, err := db.ListSessions(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestPurgeOldSessions(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()

	require.NoError(t, db.SaveReport(sampleReport("ancient", now.Add(-48*time.Hour))))
	require.NoError(t, db.SaveReport(sampleReport("recent", now.Add(-time.Minute))))

	n, err := db.PurgeOldSessions(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = db.GetReport("ancient")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	failed, err := db.FailedTasks("ancient")
	require.NoError(t, err)
	assert.Empty(t, failed)

	_, err = db.GetReport("recent")
	assert.NoError(t, err)
}
