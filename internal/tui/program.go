package tui

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/conclave/internal/orchestrator"
)

// NewProgram creates the monitor program for a session.
func NewProgram(ctrl Controller, refresh time.Duration, opts ...tea.ProgramOption) (*tea.Program, *Monitor) {
	m := NewMonitor(ctrl, refresh)
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return tea.NewProgram(m, opts...), m
}

// ForwardEvents sends every session event to the program until the channel closes.
func ForwardEvents(p *tea.Program, events <-chan orchestrator.Event) {
	for e := range events {
		p.Send(EventMsg{Event: e})
	}
}

// Run shows the monitor until the user quits after the session finishes.
// Quitting early leaves the session running; the caller still owns Await.
func Run(ctx context.Context, s *orchestrator.Session, refresh time.Duration) (retErr error) {
	// Log output corrupts the alt screen.
	original := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(original)

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("monitor panic: %v", r)
		}
	}()

	program, _ := NewProgram(s, refresh, tea.WithContext(ctx))
	go ForwardEvents(program, s.Events())
	go func() {
		report, err := s.Await(ctx)
		program.Send(SessionDoneMsg{Report: report, Err: err})
	}()

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("monitor: %w", err)
	}
	return nil
}
