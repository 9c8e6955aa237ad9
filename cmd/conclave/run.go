package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/conclave/internal/config"
	"github.com/ShayCichocki/conclave/internal/orchestrator"
	"github.com/ShayCichocki/conclave/internal/signals"
	"github.com/ShayCichocki/conclave/internal/state"
	"github.com/ShayCichocki/conclave/internal/tui"
	"github.com/ShayCichocki/conclave/internal/workflow"
	"github.com/ShayCichocki/conclave/pkg/models"
)

// runFlags are the flags shared by run and plan.
type runFlags struct {
	agents      string
	maxParallel int
	failFast    bool
	timeout     time.Duration
	taskTimeout time.Duration
	priority    string
	dryRun      bool
	monitoring  bool
	noArchive   bool
	jsonOut     bool
	sessionID   string
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run <workflow.yaml>",
	Short: "Run a workflow",
	Long: `Run a workflow against an agent roster.

Tasks are dispatched as their dependencies succeed, up to --max-parallel agent
calls at a time. Failed attempts are retried with exponential backoff.

With --fail-fast (the default) the descendants of a failed task are skipped;
with --fail-fast=false they are failed with reason "dependency failed" and
independent branches keep running.

A running session can be controlled from another terminal with
'conclave pause', 'conclave resume' and 'conclave cancel'.

Without --agents the built-in roster of echo agents is used.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(cmd, args[0], runOpts)
	},
}

func init() {
	addRunFlags(runCmd, &runOpts)
	runCmd.Flags().BoolVar(&runOpts.dryRun, "dry-run", false, "Validate and plan without dispatching")
	runCmd.Flags().BoolVar(&runOpts.monitoring, "monitoring", false, "Show the live monitor")
	runCmd.Flags().BoolVar(&runOpts.noArchive, "no-archive", false, "Do not store the report in the session archive")
	runCmd.Flags().StringVar(&runOpts.sessionID, "session-id", "", "Session identifier (default: generated)")
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVarP(&f.agents, "agents", "a", "", "Agent roster YAML file")
	cmd.Flags().IntVarP(&f.maxParallel, "max-parallel", "p", 0, "Maximum concurrent agent calls")
	cmd.Flags().BoolVar(&f.failFast, "fail-fast", true, "Skip descendants of failed tasks")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Abort the session after this long (0 disables)")
	cmd.Flags().DurationVar(&f.taskTimeout, "task-timeout", 0, "Default per-task timeout")
	cmd.Flags().StringVar(&f.priority, "priority", "", "Run priority: low, normal, high or critical")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Print the result as JSON")
}

// runConfigFor applies explicitly set flags on top of the configuration.
func runConfigFor(cmd *cobra.Command, cfg *config.Config, f runFlags) (orchestrator.RunConfig, error) {
	rc := cfg.ToRunConfig()
	flags := cmd.Flags()
	if flags.Changed("max-parallel") {
		rc.MaxParallelAgents = f.maxParallel
	}
	if flags.Changed("fail-fast") {
		rc.FailFast = f.failFast
	}
	if flags.Changed("timeout") {
		rc.GlobalTimeout = f.timeout
	}
	if flags.Changed("task-timeout") {
		rc.TaskTimeout = f.taskTimeout
	}
	if flags.Changed("priority") {
		rc.Priority = models.RunPriority(f.priority)
	}
	if f.dryRun {
		rc.DryRun = true
	}
	if !rc.Priority.Valid() {
		return rc, fmt.Errorf("invalid priority %q: must be low, normal, high or critical", rc.Priority)
	}
	if rc.MaxParallelAgents < 1 {
		return rc, fmt.Errorf("max-parallel must be at least 1, got %d", rc.MaxParallelAgents)
	}
	return rc, nil
}

// prepared is everything a session needs before it starts.
type prepared struct {
	root     string
	cfg      *config.Config
	def      *workflow.Definition
	registry *orchestrator.AgentRegistry
	run      orchestrator.RunConfig
}

func prepare(cmd *cobra.Command, path string, f runFlags) (*prepared, error) {
	root, err := projectRoot()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	def, err := workflow.Load(path)
	if err != nil {
		return nil, err
	}
	specs, err := loadRoster(f.agents)
	if err != nil {
		return nil, err
	}
	rc, err := runConfigFor(cmd, cfg, f)
	if err != nil {
		return nil, err
	}
	registry, err := buildRegistry(specs, cfg)
	if err != nil {
		return nil, err
	}
	return &prepared{root: root, cfg: cfg, def: def, registry: registry, run: rc}, nil
}

func runWorkflow(cmd *cobra.Command, path string, f runFlags) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("PANIC in run: %v", r)
		}
	}()

	p, err := prepare(cmd, path, f)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := orchestrator.NewDebugLoggerForProject(p.root)
	defer logger.Close()

	// Stale signals from an earlier run must not reach this session.
	signals.Clear(p.root)

	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithProjectContext(p.def.Context),
	}
	if f.sessionID != "" {
		opts = append(opts, orchestrator.WithSessionID(f.sessionID))
	}
	session, err := orchestrator.Start(ctx, p.def.Workflow, p.registry, p.run, opts...)
	if err != nil {
		return err
	}

	// Interrupts cancel the session so a report is still produced.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt, cancelling session...")
			session.Cancel()
		case <-session.Done():
		}
	}()

	if watcher, err := signals.NewWatcher(p.root, session.ID(), p.cfg.Run.PollInterval*5); err != nil {
		printStatus("⚠", fmt.Sprintf("signal files disabled: %v", err), color.FgYellow)
	} else {
		defer watcher.Close()
		go watcher.Watch(ctx)
		go signals.Drive(watcher, session)
	}

	if !f.jsonOut && !p.run.DryRun {
		printStatus("▶", fmt.Sprintf("session %s: %s (%d tasks, max %d parallel)",
			session.ID(), p.def.Workflow.Name(), p.def.Workflow.Size(), p.run.MaxParallelAgents), color.FgCyan)
	}

	printed := make(chan struct{})
	switch {
	case f.monitoring && !p.run.DryRun:
		close(printed)
		if err := tui.Run(ctx, session, p.cfg.TUI.RefreshRate); err != nil {
			printStatus("⚠", err.Error(), color.FgYellow)
		}
	case !f.jsonOut:
		go func() {
			defer close(printed)
			printEvents(out, session.Events())
		}()
	default:
		close(printed)
	}

	report, awaitErr := session.Await(ctx)
	if report == nil {
		return awaitErr
	}
	<-printed

	if !f.noArchive {
		if err := archiveReport(p, report); err != nil {
			printStatus("⚠", fmt.Sprintf("archive: %v", err), color.FgYellow)
		}
	}

	if f.jsonOut {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		printReport(out, report)
	}

	switch {
	case awaitErr != nil:
		return awaitErr
	case report.Status == models.SessionFailed:
		return fmt.Errorf("session %s failed: %d of %d tasks failed", report.SessionID, report.Summary.Failed, len(report.Tasks))
	}
	return nil
}

// archiveReport stores the report in the project database.
func archiveReport(p *prepared, report *orchestrator.FinalReport) error {
	db, err := state.OpenMigrated(resolveDBPath(p.root, p.cfg))
	if err != nil {
		return err
	}
	defer db.Close()
	return db.SaveReport(report)
}

// printEvents writes one line per event until the stream closes.
func printEvents(w io.Writer, events <-chan orchestrator.Event) {
	for e := range events {
		if line := formatEvent(e); line != "" {
			fmt.Fprintln(w, line)
		}
	}
}

func formatEvent(e orchestrator.Event) string {
	who := e.TaskID
	if e.AgentID != "" {
		who = e.TaskID + "@" + e.AgentID
	}
	switch e.Type {
	case orchestrator.EventTaskDispatched:
		return fmt.Sprintf("[STARTED] %s (attempt %d)", who, e.Attempt)
	case orchestrator.EventTaskRetrying:
		return fmt.Sprintf("[RETRY] %s after attempt %d: %v", who, e.Attempt, e.Error)
	case orchestrator.EventTaskSucceeded:
		return fmt.Sprintf("[DONE] %s", who)
	case orchestrator.EventTaskFailed:
		if e.Error != nil {
			return fmt.Sprintf("[FAILED] %s: %v", who, e.Error)
		}
		return fmt.Sprintf("[FAILED] %s: %s", who, e.Message)
	case orchestrator.EventTaskSkipped:
		return fmt.Sprintf("[SKIPPED] %s: %s", who, e.Message)
	case orchestrator.EventArtifactSuperseded:
		return fmt.Sprintf("[SUPERSEDED] %s write to %s", who, e.Key)
	case orchestrator.EventLateResult:
		return fmt.Sprintf("[LATE] %s result discarded", who)
	case orchestrator.EventSessionPaused:
		return "[SESSION] paused"
	case orchestrator.EventSessionResumed:
		return "[SESSION] resumed"
	}
	return ""
}

// printReport prints the outcome of a session.
func printReport(w io.Writer, r *orchestrator.FinalReport) {
	if r.Plan != nil {
		printPlan(w, r.Plan)
		return
	}

	fmt.Fprintln(w)
	for _, t := range r.Tasks {
		line := fmt.Sprintf("%-24s %-10s attempts=%d", t.TaskID, t.Status, t.Attempts)
		if t.AgentID != "" {
			line += " agent=" + t.AgentID
		}
		switch t.Status {
		case models.TaskStatusSucceeded:
			fprintStatus(w, "✓", line, color.FgGreen)
		case models.TaskStatusFailed:
			if t.LastError != "" {
				line += ": " + t.LastError
			} else if t.Reason != "" {
				line += ": " + t.Reason
			}
			fprintStatus(w, "✗", line, color.FgRed)
		default:
			if t.Reason != "" {
				line += ": " + t.Reason
			}
			fprintStatus(w, "–", line, color.FgYellow)
		}
	}

	s := r.Summary
	fmt.Fprintf(w, "\nSession %s %s in %s: %d succeeded, %d failed, %d skipped, %d attempts, ~%d tokens\n",
		r.SessionID, r.Status, r.Duration().Round(time.Millisecond),
		s.Succeeded, s.Failed, s.Skipped, s.TotalAttempts, s.TokensUsed)
	if n := len(r.Superseded); n > 0 {
		fmt.Fprintf(w, "  %d conflicting writes superseded\n", n)
	}
	if r.DroppedEvents > 0 {
		fmt.Fprintf(w, "  %d events dropped\n", r.DroppedEvents)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
