package orchestrator

import (
	"context"
	"time"
)

// run is the coordinator's main loop. A scheduling pass happens after every
// state change and at least once per poll interval, so freed capacity and
// newly ready tasks are acted on promptly without busy waiting.
func (c *coordinator) run(ctx context.Context) {
	defer close(c.done)

	c.logger.Log("[runLoop] session %s started: workflow=%s tasks=%d max_parallel=%d fail_fast=%v",
		c.sessionID, c.wf.Name(), c.wf.Size(), c.cfg.MaxParallelAgents, c.cfg.FailFast)

	ticker := time.NewTicker(c.cfg.Policy.Loop.PollInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if c.cfg.GlobalTimeout > 0 {
		timer := time.NewTimer(c.cfg.GlobalTimeout)
		defer timer.Stop()
		deadline = timer.C
	}
	cancelCh := c.cancelCh
	ctxDone := ctx.Done()

	c.promote()
	for {
		c.dispatchReady(ctx)
		if c.finished() {
			break
		}

		select {
		case m := <-c.completions:
			c.handleCompletion(m)
		case id := <-c.retryDue:
			c.retryReady(id)
		case <-c.wake:
		case <-c.pause.Resumed():
		case <-ticker.C:
		case <-cancelCh:
			cancelCh = nil
			c.abort("cancelled")
		case <-deadline:
			deadline = nil
			c.abort("global timeout")
		case <-ctxDone:
			ctxDone = nil
			c.abort(ctx.Err().Error())
		}
	}

	c.finish()
}

// finish publishes the final report and closes the event stream.
func (c *coordinator) finish() {
	report := c.buildReport(time.Now())

	c.mu.Lock()
	c.status = report.Status
	c.report = report
	c.mu.Unlock()

	c.logger.Log("[runLoop] session %s finished: status=%s succeeded=%d failed=%d skipped=%d attempts=%d",
		c.sessionID, report.Status, report.Summary.Succeeded, report.Summary.Failed,
		report.Summary.Skipped, report.Summary.TotalAttempts)
	c.emit(Event{Type: EventSessionDone, Message: string(report.Status)})

	c.pause.Stop()
	c.emitter.Close()
}
