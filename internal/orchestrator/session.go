package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/conclave/internal/artifact"
	"github.com/ShayCichocki/conclave/internal/graph"
	"github.com/ShayCichocki/conclave/pkg/models"
)

const reasonDryRun = "dry run"

// Session is one orchestration run: a workflow, an agent registry, a shared
// artifact store and the execution records of every task.
type Session struct {
	id      string
	wf      *graph.Workflow
	cfg     RunConfig
	coord   *coordinator
	store   *artifact.Store
	emitter *EventEmitter
	pause   *PauseController
	logger  *DebugLogger
	done    chan struct{}
	// report is set before done is closed for dry runs.
	report *FinalReport
}

// Start validates the workflow against the registry and begins the run.
// Validation errors are returned before anything is dispatched.
// Cancelling ctx aborts the session cooperatively, like Cancel.
func Start(ctx context.Context, wf *graph.Workflow, registry *AgentRegistry, cfg RunConfig, opts ...Option) (*Session, error) {
	if wf == nil {
		return nil, fmt.Errorf("start session: workflow is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("start session: agent registry is required")
	}

	o := &sessionOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.policyConfig != nil {
		cfg.Policy = o.policyConfig
	}

	cfg, err := cfg.normalize()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if err := wf.ValidateCapabilities(registry); err != nil {
		return nil, err
	}

	if o.sessionID == "" {
		o.sessionID = uuid.New().String()[:8]
	}
	if o.logger == nil {
		o.logger = NopLogger()
	}
	o.logger = o.logger.ForSession(o.sessionID)
	if o.eventBuffer <= 0 {
		o.eventBuffer = cfg.Policy.Loop.EventBufferSize
	}

	store := artifact.NewStore()
	store.Seed(o.projectContext)

	s := &Session{
		id:      o.sessionID,
		wf:      wf,
		cfg:     cfg,
		store:   store,
		emitter: NewEventEmitter(o.eventBuffer),
		pause:   NewPauseController(),
		logger:  o.logger,
	}

	if cfg.DryRun {
		return s.startDryRun(registry)
	}

	s.coord = newCoordinator(s.id, wf, registry, store, cfg, o.logger, s.emitter, s.pause)
	s.coord.startedAt = time.Now()
	s.done = s.coord.done

	go s.coord.run(ctx)
	return s, nil
}

// startDryRun finishes the session immediately with a plan and all tasks skipped.
func (s *Session) startDryRun(registry *AgentRegistry) (*Session, error) {
	plan, err := Plan(s.wf, registry, s.cfg)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	tasks := make([]TaskOutcome, 0, s.wf.Size())
	for _, id := range s.wf.IDs() {
		tasks = append(tasks, TaskOutcome{TaskID: id, Status: models.TaskStatusSkipped, Reason: reasonDryRun})
	}
	s.report = &FinalReport{
		SessionID:  s.id,
		Workflow:   s.wf.Name(),
		Version:    s.wf.Version(),
		Status:     models.SessionCompleted,
		Priority:   s.cfg.Priority,
		Reason:     reasonDryRun,
		StartedAt:  now,
		FinishedAt: now,
		Tasks:      tasks,
		Artifacts:  s.store.Snapshot(),
		Summary:    summarize(tasks, nil),
		Plan:       plan,
	}
	s.logger.Log("[session] %s dry run: %d phases, %d tasks", s.id, len(plan.Phases), plan.TotalTasks)

	s.done = make(chan struct{})
	close(s.done)
	s.pause.Stop()
	s.emitter.Emit(Event{Type: EventSessionDone, SessionID: s.id, Message: reasonDryRun, Timestamp: now})
	s.emitter.Close()
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Workflow returns the workflow being run.
func (s *Session) Workflow() *graph.Workflow { return s.wf }

// Config returns the normalized run configuration.
func (s *Session) Config() RunConfig { return s.cfg }

// Events returns the session event stream. It is closed when the session ends.
// Events are dropped rather than delaying the run if nobody reads them.
func (s *Session) Events() <-chan Event { return s.emitter.Events() }

// DroppedEventCount returns how many events were dropped so far.
func (s *Session) DroppedEventCount() uint64 { return s.emitter.DroppedCount() }

// Done is closed once the final report is available.
func (s *Session) Done() <-chan struct{} { return s.done }

// Await blocks until the session finishes and returns its FinalReport.
// An aborted session returns the report together with an *AbortedError.
func (s *Session) Await(ctx context.Context) (*FinalReport, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	report := s.finalReport()
	if report.Status == models.SessionAborted {
		return report, &AbortedError{SessionID: s.id, Reason: report.Reason}
	}
	return report, nil
}

func (s *Session) finalReport() *FinalReport {
	if s.coord == nil {
		return s.report
	}
	s.coord.mu.RLock()
	defer s.coord.mu.RUnlock()
	return s.coord.report
}

// Cancel aborts the session cooperatively. Non-terminal tasks are skipped
// with reason "session aborted"; in-flight agent calls are not interrupted.
func (s *Session) Cancel() {
	if s.coord != nil {
		s.coord.cancel()
	}
}

// Pause stops new dispatches. In-flight calls continue.
func (s *Session) Pause() {
	if s.pause.Pause() {
		s.emitter.Emit(Event{Type: EventSessionPaused, SessionID: s.id, Timestamp: time.Now()})
	}
}

// Resume re-enables dispatching after Pause.
func (s *Session) Resume() {
	if s.pause.Resume() {
		s.emitter.Emit(Event{Type: EventSessionResumed, SessionID: s.id, Timestamp: time.Now()})
	}
}

// IsPaused reports whether dispatching is paused.
func (s *Session) IsPaused() bool { return s.pause.IsPaused() }

// Status returns the current session status.
func (s *Session) Status() models.SessionStatus {
	if s.coord == nil {
		return s.report.Status
	}
	s.coord.mu.RLock()
	defer s.coord.mu.RUnlock()
	return s.coord.status
}

// Snapshot returns copies of all execution records and artifacts.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID: s.id,
		Workflow:  s.wf.Name(),
		Status:    s.Status(),
		Paused:    s.pause.IsPaused(),
		Artifacts: s.store.Snapshot(),
		TakenAt:   time.Now(),
	}
	if s.coord != nil {
		snap.Records = s.coord.snapshotRecords()
		return snap
	}
	for _, t := range s.report.Tasks {
		snap.Records = append(snap.Records, models.ExecutionRecord{
			TaskID: t.TaskID, Status: t.Status, Reason: t.Reason,
		})
	}
	return snap
}
