package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/conclave/internal/config"
	"github.com/ShayCichocki/conclave/internal/state"
	"github.com/ShayCichocki/conclave/pkg/models"
)

var (
	statusLimit int
	statusJSON  bool
	statusPurge time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "Show archived sessions",
	Long: `Display sessions stored in the project archive.

Without arguments, lists the most recent sessions.
With a session id, shows that session's tasks, failures and artifact writers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "Number of sessions to list")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print as JSON")
	statusCmd.Flags().DurationVar(&statusPurge, "purge", 0, "Delete sessions that finished longer ago than this")
}

func archivePath() (string, error) {
	root, err := projectRoot()
	if err != nil {
		return "", err
	}
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return resolveDBPath(root, cfg), nil
}

// resolveDBPath places a relative storage path under the project root.
func resolveDBPath(root string, cfg *config.Config) string {
	path := cfg.Storage.DBPath
	switch {
	case path == "":
		return state.ProjectDBPath(root)
	case !filepath.IsAbs(path):
		return filepath.Join(root, path)
	}
	return path
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	dbPath, err := archivePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintln(out, "No archived sessions. Run 'conclave run <workflow.yaml>' to start.")
		return nil
	}

	db, err := state.OpenMigrated(dbPath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer db.Close()

	if statusPurge > 0 {
		n, err := db.PurgeOldSessions(statusPurge)
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("purged %d sessions", n), color.FgGreen)
	}

	if len(args) == 1 {
		return showSession(out, db, args[0])
	}

	sessions, err := db.ListSessions(statusLimit)
	if err != nil {
		return err
	}
	if statusJSON {
		return writeJSON(out, sessions)
	}
	displaySessions(out, sessions)
	return nil
}

func displaySessions(w io.Writer, sessions []state.SessionRecord) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No archived sessions.")
		return
	}
	fmt.Fprintf(w, "%-10s %-20s %-10s %-8s %-8s %s\n", "SESSION", "WORKFLOW", "STATUS", "TASKS", "AGE", "DURATION")
	for _, s := range sessions {
		tasks := fmt.Sprintf("%d/%d", s.Succeeded, s.Succeeded+s.Failed+s.Skipped)
		fmt.Fprintf(w, "%-10s %-20s %-10s %-8s %-8s %s\n",
			s.ID, s.Workflow, statusLabel(s.Status), tasks,
			formatDuration(time.Since(s.StartedAt)), s.Duration().Round(time.Millisecond))
	}
}

func statusLabel(s models.SessionStatus) string {
	switch s {
	case models.SessionCompleted:
		return color.GreenString(string(s))
	case models.SessionFailed:
		return color.RedString(string(s))
	case models.SessionAborted:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}

func showSession(w io.Writer, db *state.DB, id string) error {
	report, err := db.GetReport(id)
	if errors.Is(err, state.ErrSessionNotFound) {
		return fmt.Errorf("no archived session %q", id)
	}
	if err != nil {
		return err
	}
	if statusJSON {
		return writeJSON(w, report)
	}

	printReport(w, report)

	failed, err := db.FailedTasks(id)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		fmt.Fprintln(w, "\nFailures:")
		for _, t := range failed {
			fmt.Fprintf(w, "  %s: %s\n", t.TaskID, firstNonEmpty(t.LastError, t.Reason))
		}
	}

	writers, err := db.ArtifactWriters(id)
	if err != nil {
		return err
	}
	if len(writers) > 0 {
		keys := make([]string, 0, len(writers))
		for k := range writers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(w, "\nArtifacts:")
		for _, k := range keys {
			fmt.Fprintf(w, "  %-24s by %s\n", k, writers[k])
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// formatDuration formats a duration in human-readable form.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
