package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/conclave/internal/agent"
	"github.com/ShayCichocki/conclave/internal/artifact"
	"github.com/ShayCichocki/conclave/internal/graph"
	"github.com/ShayCichocki/conclave/pkg/models"
)

const (
	reasonSessionAborted   = "session aborted"
	reasonDependencyFailed = "dependency failed"
)

// call is one in-flight agent invocation.
type call struct {
	id      string
	taskID  string
	agentID string
	attempt int
	started time.Time
}

// completion is delivered to the run loop when a call returns or times out.
type completion struct {
	call     *call
	result   *models.Result
	err      error
	timedOut bool
}

// coordinator drives every task of one session through its state machine.
// Only the run loop goroutine mutates records; readers take snapshots under mu.
type coordinator struct {
	sessionID string
	wf        *graph.Workflow
	registry  *AgentRegistry
	scheduler *Scheduler
	store     *artifact.Store
	cfg       RunConfig
	logger    *DebugLogger
	emitter   *EventEmitter
	pause     *PauseController

	contextKeys []string
	startedAt   time.Time

	mu      sync.RWMutex
	records map[string]*models.ExecutionRecord
	status  models.SessionStatus
	reason  string
	report  *FinalReport

	// Owned by the run loop goroutine.
	succeeded   map[string]bool
	writtenKeys map[string][]string
	tokens      map[string]int64
	inflight    map[string]*call
	retryTimers map[string]*time.Timer
	aborted     bool

	// activeCalls counts agent calls that have not returned yet, including
	// calls whose attempt already timed out.
	activeCalls atomic.Int32

	completions chan completion
	retryDue    chan string
	wake        chan struct{}
	cancelCh    chan struct{}
	cancelOnce  sync.Once
	done        chan struct{}
}

func newCoordinator(sessionID string, wf *graph.Workflow, registry *AgentRegistry, store *artifact.Store,
	cfg RunConfig, logger *DebugLogger, emitter *EventEmitter, pause *PauseController) *coordinator {
	c := &coordinator{
		sessionID:   sessionID,
		wf:          wf,
		registry:    registry,
		scheduler:   NewScheduler(wf, registry, logger),
		store:       store,
		cfg:         cfg,
		logger:      logger,
		emitter:     emitter,
		pause:       pause,
		contextKeys: store.BaselineKeys(),
		records:     make(map[string]*models.ExecutionRecord, wf.Size()),
		status:      models.SessionRunning,
		succeeded:   make(map[string]bool),
		writtenKeys: make(map[string][]string),
		tokens:      make(map[string]int64),
		inflight:    make(map[string]*call),
		retryTimers: make(map[string]*time.Timer),
		completions: make(chan completion, cfg.MaxParallelAgents),
		retryDue:    make(chan string, wf.Size()),
		wake:        make(chan struct{}, 1),
		cancelCh:    make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, id := range wf.IDs() {
		c.records[id] = &models.ExecutionRecord{TaskID: id, Status: models.TaskStatusPending}
	}
	return c
}

// cancel requests a cooperative abort. Safe to call repeatedly.
func (c *coordinator) cancel() {
	c.cancelOnce.Do(func() { close(c.cancelCh) })
}

// nudge wakes the run loop without blocking.
func (c *coordinator) nudge() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *coordinator) emit(ev Event) {
	ev.SessionID = c.sessionID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	c.emitter.Emit(ev)
}

// transition moves a record to next if the state machine allows it.
func (c *coordinator) transition(taskID string, next models.TaskStatus, reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec := c.records[taskID]
	if rec == nil || !rec.Status.CanTransition(next) {
		if rec != nil {
			c.logger.Log("[coordinator] refused transition %s: %s -> %s", taskID, rec.Status, next)
		}
		return false
	}
	now := time.Now()
	rec.Status = next
	switch next {
	case models.TaskStatusReady:
		rec.ReadyAt = now
	case models.TaskStatusSucceeded, models.TaskStatusFailed, models.TaskStatusSkipped:
		rec.FinishedAt = now
		rec.Reason = reason
	}
	return true
}

func (c *coordinator) recordStatus(taskID string) models.TaskStatus {
	if rec := c.records[taskID]; rec != nil {
		return rec.Status
	}
	return ""
}

// promote moves every pending task whose dependencies all succeeded to Ready.
func (c *coordinator) promote() {
	ready := c.wf.ReadyTasks(c.succeeded, func(id string) bool {
		return c.recordStatus(id) == models.TaskStatusPending
	})
	for _, id := range ready {
		if c.transition(id, models.TaskStatusReady, "") {
			c.emit(Event{Type: EventTaskReady, TaskID: id})
		}
	}
}

// readyIDs lists tasks currently in the Ready state.
func (c *coordinator) readyIDs() []string {
	var ids []string
	for _, id := range c.wf.IDs() {
		if c.recordStatus(id) == models.TaskStatusReady {
			ids = append(ids, id)
		}
	}
	return ids
}

// dispatchReady binds ready tasks to agents and starts their calls.
func (c *coordinator) dispatchReady(ctx context.Context) {
	if c.aborted || c.pause.IsPaused() {
		return
	}
	ready := c.readyIDs()
	if len(ready) == 0 {
		return
	}
	slots := c.cfg.MaxParallelAgents - int(c.activeCalls.Load())
	for _, b := range c.scheduler.Schedule(ready, slots) {
		c.dispatch(ctx, b)
	}
}

// dispatch starts one agent call. The binding's reservation is already held.
func (c *coordinator) dispatch(ctx context.Context, b Binding) {
	task := c.wf.Task(b.TaskID)
	a := c.registry.GetAgent(b.AgentID)

	if !c.transition(b.TaskID, models.TaskStatusDispatched, "") {
		c.release(b.AgentID)
		return
	}

	c.mu.Lock()
	rec := c.records[b.TaskID]
	rec.Attempts++
	rec.AgentID = b.AgentID
	rec.StartedAt = time.Now()
	attempt := rec.Attempts
	c.mu.Unlock()

	cl := &call{
		id:      uuid.New().String()[:8],
		taskID:  b.TaskID,
		agentID: b.AgentID,
		attempt: attempt,
		started: time.Now(),
	}
	c.inflight[b.TaskID] = cl

	timeout := task.Timeout
	if timeout <= 0 {
		timeout = c.cfg.TaskTimeout
	}

	c.logger.Log("[coordinator] dispatch %s to %s (attempt %d, call %s, timeout %v)",
		b.TaskID, b.AgentID, attempt, cl.id, timeout)
	c.emit(Event{Type: EventTaskDispatched, TaskID: b.TaskID, AgentID: b.AgentID, Attempt: attempt})

	c.activeCalls.Add(1)
	go c.invoke(ctx, a, cl, c.assembleInput(task, attempt), timeout)
}

// assembleInput gathers project context plus the task's input artifacts.
// Without declared inputs, every key written by a direct dependency is used.
func (c *coordinator) assembleInput(task *models.Task, attempt int) agent.Input {
	artifacts := c.store.Values(c.contextKeys)

	keys := task.Inputs
	if len(keys) == 0 {
		for _, dep := range c.wf.Dependencies(task.ID) {
			keys = append(keys, c.writtenKeys[dep]...)
		}
	}
	for k, v := range c.store.Values(keys) {
		artifacts[k] = v
	}

	return agent.Input{
		TaskID:       task.ID,
		Title:        task.Title,
		Capabilities: task.Capabilities.Clone(),
		Attempt:      attempt,
		Artifacts:    artifacts,
		Params:       task.Params,
		Writes:       append([]string(nil), task.Writes...),
	}
}

// invoke runs one agent call off the loop goroutine. Cancelling the session
// does not interrupt the call; only its own timeout bounds it. If the timeout
// fires first the loop is told immediately, and the reservation is released
// once the call finally returns.
func (c *coordinator) invoke(ctx context.Context, a *agent.Agent, cl *call, in agent.Input, timeout time.Duration) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	type outcome struct {
		result *models.Result
		err    error
	}
	resCh := make(chan outcome, 1)
	go func() {
		// A panicking agent fails the attempt instead of the process.
		defer func() {
			if r := recover(); r != nil {
				resCh <- outcome{err: &agent.AgentError{AgentID: a.ID, TaskID: cl.taskID, Err: fmt.Errorf("panic: %v", r)}}
			}
		}()
		res, err := a.Invoker.Invoke(callCtx, in)
		resCh <- outcome{result: res, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-resCh:
		c.activeCalls.Add(-1)
		c.completions <- completion{call: cl, result: o.result, err: o.err}
	case <-timer.C:
		c.completions <- completion{
			call:     cl,
			err:      fmt.Errorf("%w after %v", agent.ErrTimeout, timeout),
			timedOut: true,
		}
		<-resCh
		c.activeCalls.Add(-1)
		c.release(cl.agentID)
		c.logger.Log("[coordinator] late result of call %s (task %s) discarded", cl.id, cl.taskID)
		c.emit(Event{Type: EventLateResult, TaskID: cl.taskID, AgentID: cl.agentID, Attempt: cl.attempt})
		c.nudge()
	}
}

func (c *coordinator) release(agentID string) {
	c.registry.Release(agentID)
	c.logger.Log("[coordinator] released %s (load %d)", agentID, c.registry.Load(agentID))
}

// handleCompletion applies the outcome of one call.
func (c *coordinator) handleCompletion(m completion) {
	cl := m.call
	if !m.timedOut {
		c.release(cl.agentID)
	}

	cur, ok := c.inflight[cl.taskID]
	if !ok || cur.id != cl.id {
		c.logger.Log("[coordinator] stale completion of call %s (task %s) ignored", cl.id, cl.taskID)
		return
	}
	delete(c.inflight, cl.taskID)

	if c.recordStatus(cl.taskID).IsTerminal() {
		c.logger.Log("[coordinator] result of %s discarded: task already %s", cl.taskID, c.recordStatus(cl.taskID))
		return
	}

	err := m.err
	if err == nil && m.result == nil {
		err = &agent.AgentError{AgentID: cl.agentID, TaskID: cl.taskID, Err: fmt.Errorf("empty result")}
	}
	if err != nil {
		c.registry.RecordOutcome(cl.agentID, false, 0)
		c.handleFailure(cl, err)
		return
	}

	c.handleSuccess(cl, m.result)
}

func (c *coordinator) handleSuccess(cl *call, result *models.Result) {
	task := c.wf.Task(cl.taskID)
	keys := result.Writes
	if len(keys) == 0 {
		keys = task.Writes
	}

	out, err := c.store.Apply(cl.taskID, cl.agentID, result, keys)
	if err != nil {
		// An unresolvable conflict is not retried.
		c.registry.RecordOutcome(cl.agentID, false, result.TokensUsed)
		c.tokens[cl.taskID] += result.TokensUsed
		c.setLastError(cl.taskID, err)
		c.failTask(cl.taskID, err)
		return
	}

	c.registry.RecordOutcome(cl.agentID, true, result.TokensUsed)
	c.tokens[cl.taskID] += result.TokensUsed
	c.writtenKeys[cl.taskID] = append([]string(nil), keys...)

	for _, key := range out.Applied {
		c.emit(Event{Type: EventArtifactWritten, TaskID: cl.taskID, AgentID: cl.agentID, Key: key})
	}
	for _, loser := range out.Displaced {
		c.emit(Event{Type: EventArtifactSuperseded, TaskID: loser.Provenance.TaskID, Key: loser.Key,
			Message: fmt.Sprintf("superseded by %s", cl.taskID)})
	}
	for _, key := range out.Superseded {
		c.emit(Event{Type: EventArtifactSuperseded, TaskID: cl.taskID, AgentID: cl.agentID, Key: key})
	}

	c.transition(cl.taskID, models.TaskStatusSucceeded, "")
	c.succeeded[cl.taskID] = true
	c.logger.Log("[coordinator] task %s succeeded on attempt %d", cl.taskID, cl.attempt)
	c.emit(Event{Type: EventTaskSucceeded, TaskID: cl.taskID, AgentID: cl.agentID, Attempt: cl.attempt})
	c.promote()
}

func (c *coordinator) setLastError(taskID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec := c.records[taskID]; rec != nil {
		rec.LastError = err.Error()
	}
}

// handleFailure retries the task or fails it once attempts are exhausted.
func (c *coordinator) handleFailure(cl *call, err error) {
	task := c.wf.Task(cl.taskID)
	retry := task.Retry.WithDefaults(c.cfg.Retry)
	c.setLastError(cl.taskID, err)

	kind := agent.Classify(err)
	if cl.attempt >= retry.MaxAttempts {
		c.logger.Log("[coordinator] task %s failed after %d attempts (%s): %v", cl.taskID, cl.attempt, kind, err)
		c.failTask(cl.taskID, err)
		return
	}

	delay := retry.Backoff(cl.attempt)
	c.transition(cl.taskID, models.TaskStatusRetrying, "")
	c.logger.Log("[coordinator] task %s attempt %d failed (%s), retry in %v: %v", cl.taskID, cl.attempt, kind, delay, err)
	c.emit(Event{Type: EventTaskRetrying, TaskID: cl.taskID, AgentID: cl.agentID, Attempt: cl.attempt,
		Error: err, Message: fmt.Sprintf("retry in %v", delay)})

	if delay <= 0 {
		c.retryReady(cl.taskID)
		return
	}
	taskID := cl.taskID
	c.retryTimers[taskID] = time.AfterFunc(delay, func() {
		select {
		case c.retryDue <- taskID:
		case <-c.done:
		}
	})
}

// retryReady returns a retrying task to Ready once its backoff elapsed.
func (c *coordinator) retryReady(taskID string) {
	delete(c.retryTimers, taskID)
	if c.recordStatus(taskID) != models.TaskStatusRetrying {
		return
	}
	if c.transition(taskID, models.TaskStatusReady, "") {
		c.emit(Event{Type: EventTaskReady, TaskID: taskID})
	}
}

// failTask marks the task Failed and propagates to its descendants.
func (c *coordinator) failTask(taskID string, err error) {
	if !c.transition(taskID, models.TaskStatusFailed, "") {
		return
	}
	c.emit(Event{Type: EventTaskFailed, TaskID: taskID, Error: err})

	for _, d := range c.wf.Descendants(taskID) {
		if c.recordStatus(d).IsTerminal() {
			continue
		}
		if c.cfg.FailFast {
			if c.transition(d, models.TaskStatusSkipped, reasonDependencyFailed) {
				c.emit(Event{Type: EventTaskSkipped, TaskID: d, Message: fmt.Sprintf("ancestor %s failed", taskID)})
			}
			continue
		}
		if c.transition(d, models.TaskStatusFailed, reasonDependencyFailed) {
			c.emit(Event{Type: EventTaskFailed, TaskID: d, Message: fmt.Sprintf("ancestor %s failed", taskID)})
		}
	}
}

// abort skips every non-terminal task. In-flight calls keep running and
// their results are discarded when they arrive.
func (c *coordinator) abort(reason string) {
	if c.aborted {
		return
	}
	c.aborted = true
	c.mu.Lock()
	c.reason = reason
	c.mu.Unlock()

	for id, t := range c.retryTimers {
		t.Stop()
		delete(c.retryTimers, id)
	}
	for _, id := range c.wf.IDs() {
		if c.recordStatus(id).IsTerminal() {
			continue
		}
		if c.transition(id, models.TaskStatusSkipped, reasonSessionAborted) {
			c.emit(Event{Type: EventTaskSkipped, TaskID: id, Message: reasonSessionAborted})
		}
	}
	c.logger.Log("[coordinator] session %s aborted (%s), waiting for %d in-flight calls",
		c.sessionID, reason, len(c.inflight))
}

// finished reports whether every task is terminal and no call is pending.
func (c *coordinator) finished() bool {
	if len(c.inflight) > 0 {
		return false
	}
	for _, id := range c.wf.IDs() {
		if !c.recordStatus(id).IsTerminal() {
			return false
		}
	}
	return true
}

// snapshotRecords copies the records in task ID order.
func (c *coordinator) snapshotRecords() []models.ExecutionRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.ExecutionRecord, 0, len(c.records))
	for _, rec := range c.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}

// finalStatus derives the session status from the terminal records.
func (c *coordinator) finalStatus(records []models.ExecutionRecord) models.SessionStatus {
	if c.aborted {
		return models.SessionAborted
	}
	for _, r := range records {
		if r.Status != models.TaskStatusSucceeded {
			return models.SessionFailed
		}
	}
	return models.SessionCompleted
}

// buildReport assembles the FinalReport. Called once by the run loop.
func (c *coordinator) buildReport(finishedAt time.Time) *FinalReport {
	records := c.snapshotRecords()
	tasks := make([]TaskOutcome, len(records))
	for i, r := range records {
		tasks[i] = TaskOutcome{
			TaskID:     r.TaskID,
			Status:     r.Status,
			Attempts:   r.Attempts,
			AgentID:    r.AgentID,
			LastError:  r.LastError,
			Reason:     r.Reason,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
			TokensUsed: c.tokens[r.TaskID],
		}
	}

	c.mu.RLock()
	reason := c.reason
	c.mu.RUnlock()

	return &FinalReport{
		SessionID:     c.sessionID,
		Workflow:      c.wf.Name(),
		Version:       c.wf.Version(),
		Status:        c.finalStatus(records),
		Priority:      c.cfg.Priority,
		Reason:        reason,
		StartedAt:     c.startedAt,
		FinishedAt:    finishedAt,
		Tasks:         tasks,
		Artifacts:     c.store.Snapshot(),
		Superseded:    c.store.Superseded(),
		Summary:       summarize(tasks, c.registry.Stats()),
		DroppedEvents: c.emitter.DroppedCount(),
	}
}
