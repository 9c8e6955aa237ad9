package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ShayCichocki/conclave/internal/graph"
)

// PoolConfig contains configuration options for the SessionPool.
type PoolConfig struct {
	// MaxConcurrentSessions bounds running sessions. Zero uses the policy default.
	MaxConcurrentSessions int
	// EventBuffer is the capacity of the aggregated event channel.
	EventBuffer int
	// Logger is passed to every session.
	Logger *DebugLogger
}

var errPoolStopped = errors.New("session pool stopped")

// poolEntry tracks one submitted session.
type poolEntry struct {
	session *Session
	report  *FinalReport
	err     error
	done    chan struct{}
}

// SessionPool runs several sessions concurrently under a shared limit.
type SessionPool struct {
	cfg PoolConfig

	// sessions tracks submitted sessions by ID
	sessions map[string]*poolEntry
	stopped  bool
	mu       sync.RWMutex

	// slots limits concurrently running sessions
	slots chan struct{}

	// events aggregates events from all sessions
	events chan Event

	pause *PauseController

	// ctx and cancel for pool lifecycle
	ctx    context.Context
	cancel context.CancelFunc

	// wg tracks running sessions and forwarders
	wg sync.WaitGroup
}

// NewSessionPool creates a new SessionPool.
func NewSessionPool(cfg PoolConfig) *SessionPool {
	if cfg.MaxConcurrentSessions <= 0 {
		cfg.MaxConcurrentSessions = DefaultRunConfig().Policy.Limits.MaxConcurrentSessions
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 100
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &SessionPool{
		cfg:      cfg,
		sessions: make(map[string]*poolEntry),
		slots:    make(chan struct{}, cfg.MaxConcurrentSessions),
		events:   make(chan Event, cfg.EventBuffer),
		pause:    NewPauseController(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit starts a session once a slot is free and returns its ID.
// It blocks while the pool is paused or full, until ctx ends.
func (p *SessionPool) Submit(ctx context.Context, wf *graph.Workflow, registry *AgentRegistry, cfg RunConfig, opts ...Option) (string, error) {
	if p.ctx.Err() != nil {
		return "", errPoolStopped
	}
	if err := p.pause.WaitIfPaused(ctx); err != nil {
		return "", err
	}
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-p.ctx.Done():
		return "", errPoolStopped
	}

	if p.cfg.Logger != nil {
		opts = append([]Option{WithLogger(p.cfg.Logger)}, opts...)
	}
	s, err := Start(p.ctx, wf, registry, cfg, opts...)
	if err != nil {
		<-p.slots
		return "", err
	}

	entry := &poolEntry{session: s, done: make(chan struct{})}
	// Registration and wg.Add happen under the lock Stop takes before Wait.
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		s.Cancel()
		go func() {
			_, _ = s.Await(context.Background())
			<-p.slots
		}()
		return "", errPoolStopped
	}
	p.sessions[s.ID()] = entry
	p.wg.Add(2)
	p.mu.Unlock()

	go p.forwardEvents(s)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.slots }()

		report, err := s.Await(context.Background())
		if err != nil {
			log.Printf("[pool] session %s ended: %v", s.ID(), err)
		}
		p.mu.Lock()
		entry.report, entry.err = report, err
		p.mu.Unlock()
		close(entry.done)
	}()

	return s.ID(), nil
}

// forwardEvents forwards events from a session to the pool's event channel.
func (p *SessionPool) forwardEvents(s *Session) {
	defer p.wg.Done()
	for event := range s.Events() {
		select {
		case p.events <- event:
		default:
			// Pool consumers are optional; never stall a session on them.
		}
	}
}

// Wait blocks until the session finishes and returns its report.
func (p *SessionPool) Wait(ctx context.Context, id string) (*FinalReport, error) {
	p.mu.RLock()
	entry, ok := p.sessions[id]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown session %s", id)
	}

	select {
	case <-entry.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return entry.report, entry.err
}

// Session returns a submitted session by ID.
func (p *SessionPool) Session(id string) *Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if e, ok := p.sessions[id]; ok {
		return e.session
	}
	return nil
}

// Events returns the channel for receiving aggregated events from all sessions.
func (p *SessionPool) Events() <-chan Event {
	return p.events
}

// Pause holds back new submissions and pauses every running session.
func (p *SessionPool) Pause() {
	p.pause.Pause()
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.sessions {
		e.session.Pause()
	}
}

// Resume undoes Pause.
func (p *SessionPool) Resume() {
	p.pause.Resume()
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.sessions {
		e.session.Resume()
	}
}

// Stop cancels all sessions and waits for them to complete.
// Calling Stop again is a no-op.
func (p *SessionPool) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	p.cancel()
	p.pause.Stop()

	p.mu.RLock()
	for _, e := range p.sessions {
		e.session.Cancel()
	}
	p.mu.RUnlock()

	p.wg.Wait()
	close(p.events)

	return nil
}

// Count returns the number of sessions still running.
func (p *SessionPool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, e := range p.sessions {
		select {
		case <-e.done:
		default:
			n++
		}
	}
	return n
}

// DroppedEventCount returns the total dropped events across all sessions.
func (p *SessionPool) DroppedEventCount() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var total uint64
	for _, e := range p.sessions {
		total += e.session.DroppedEventCount()
	}
	return total
}
