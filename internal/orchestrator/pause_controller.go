package orchestrator

import (
	"context"
	"log"
	"sync"
)

// PauseController manages pause/resume state for a session.
// While paused no new agent calls are dispatched; in-flight calls continue.
type PauseController struct {
	// paused indicates whether dispatching is paused.
	paused bool
	// stopped indicates the controller was released for good.
	stopped bool
	// mu protects all fields.
	mu sync.RWMutex
	// cond is used to signal when the controller is unpaused or stopped.
	cond *sync.Cond
	// resumed receives a token on every Resume so a select loop can wake.
	resumed chan struct{}
}

// NewPauseController creates a new PauseController.
func NewPauseController() *PauseController {
	p := &PauseController{resumed: make(chan struct{}, 1)}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Pause pauses dispatching. Returns false if already paused.
func (p *PauseController) Pause() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused || p.stopped {
		return false
	}
	p.paused = true
	log.Printf("[orchestrator] paused - no new agent calls will be dispatched")
	return true
}

// Resume resumes dispatching after a pause. Returns false if not paused.
func (p *PauseController) Resume() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return false
	}
	p.paused = false
	log.Printf("[orchestrator] resumed - dispatching enabled")
	p.cond.Broadcast()
	select {
	case p.resumed <- struct{}{}:
	default:
	}
	return true
}

// Stop releases any WaitIfPaused callers and disables further pausing.
func (p *PauseController) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.stopped = true
		p.paused = false
		p.cond.Broadcast()
	}
}

// IsPaused returns whether dispatching is currently paused.
func (p *PauseController) IsPaused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

// Resumed returns a channel that receives after each Resume.
func (p *PauseController) Resumed() <-chan struct{} {
	return p.resumed
}

// WaitIfPaused blocks until the controller is unpaused or stopped.
// Returns ctx.Err() if the context ends first.
func (p *PauseController) WaitIfPaused(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused || p.stopped {
		return nil
	}

	// One goroutine wakes the waiter if the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		case <-done:
		}
	}()

	for p.paused && !p.stopped {
		p.cond.Wait()
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}
